package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	rerrors "reflexion/internal/errors"
	"reflexion/internal/reflexion"
	"reflexion/internal/storage"
)

var (
	historyLimit  int
	historyShow   string
	historyDelete string
	historyFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List, show or delete stored runs",
	Long: `Inspect the run history written by analyze --save and recompute --save.

Examples:
  reflexion history
  reflexion history --limit 5 --format human
  reflexion history --show 3f2c9a1e-...
  reflexion history --delete 3f2c9a1e-...`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of runs to list (0 for all)")
	historyCmd.Flags().StringVar(&historyShow, "show", "", "Print the stored snapshot of a run")
	historyCmd.Flags().StringVar(&historyDelete, "delete", "", "Delete a run")
	historyCmd.Flags().StringVar(&historyFormat, "format", "json", "Output format (json, human)")
	historyCmd.MarkFlagsMutuallyExclusive("show", "delete")
	rootCmd.AddCommand(historyCmd)
}

// HistoryResponseCLI lists stored runs.
type HistoryResponseCLI struct {
	Database string        `json:"database"`
	Runs     []storage.Run `json:"runs"`
}

// StoredRunResponseCLI is one stored run with its decoded snapshot.
type StoredRunResponseCLI struct {
	Run      storage.Run        `json:"run"`
	Snapshot reflexion.Snapshot `json:"snapshot"`
}

func runHistory(cmd *cobra.Command, args []string) error {
	format, err := checkFormat(historyFormat)
	if err != nil {
		return err
	}

	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	db, store, err := s.openRunStore()
	if err != nil {
		return err
	}
	defer db.Close()

	var resp interface{}
	switch {
	case historyDelete != "":
		if err := store.DeleteRun(historyDelete); err != nil {
			return runLookupError(historyDelete, err)
		}
		s.logger.Info("Run deleted", "run", historyDelete)
		return nil

	case historyShow != "":
		run, payload, err := store.GetRun(historyShow)
		if err != nil {
			return runLookupError(historyShow, err)
		}
		stored := &StoredRunResponseCLI{Run: run}
		if err := json.Unmarshal(payload, &stored.Snapshot); err != nil {
			return rerrors.New(rerrors.InternalError, "stored snapshot is unreadable", err)
		}
		resp = stored

	default:
		runs, err := store.ListRuns(historyLimit)
		if err != nil {
			return err
		}
		if runs == nil {
			runs = []storage.Run{}
		}
		resp = &HistoryResponseCLI{Database: db.Path(), Runs: runs}
	}

	out, err := FormatResponse(resp, format)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)
	return nil
}

func runLookupError(id string, err error) error {
	if errors.Is(err, storage.ErrRunNotFound) {
		return rerrors.New(rerrors.InputInvalid, fmt.Sprintf("no stored run %q", id), err)
	}
	return err
}
