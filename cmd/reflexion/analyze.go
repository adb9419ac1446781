package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	rerrors "reflexion/internal/errors"
	"reflexion/internal/output"
	"reflexion/internal/reflexion"
	"reflexion/internal/storage"
	"reflexion/internal/version"
)

var (
	analyzeInputs          inputFlags
	analyzeFormat          string
	analyzeSave            bool
	analyzeFailOnViolation bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Classify the implementation against the architecture",
	Long: `Build the reflexion graph from the architecture model, the implementation
facts and the mapping, propagate implementation edges to component level and
classify every architecture edge.

Examples:
  reflexion analyze --facts facts.json
  reflexion analyze --model arch.yaml --facts facts.yaml --mapping map.toml
  reflexion analyze --facts facts.json --format human
  reflexion analyze --facts facts.json --save --fail-on-violation`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func init() {
	analyzeInputs.register(analyzeCmd)
	analyzeCmd.Flags().StringVar(&analyzeFormat, "format", "json", "Output format (json, human)")
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "Store the result in the run history")
	analyzeCmd.Flags().BoolVar(&analyzeFailOnViolation, "fail-on-violation", false, "Exit with status 2 when divergent edges exist")
	rootCmd.AddCommand(analyzeCmd)
}

// RunInfoCLI describes the stored or reproducible identity of a result.
type RunInfoCLI struct {
	ID          string    `json:"id,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	DurationMs  int64     `json:"durationMs"`
	InputDigest string    `json:"inputDigest"`
	// PreviousRunID is the newest stored run over the same inputs.
	PreviousRunID string `json:"previousRunId,omitempty"`
	// ResultChanged is set when that run stored a different result.
	ResultChanged bool `json:"resultChanged,omitempty"`
}

// AnalyzeResponseCLI is the output of analyze.
type AnalyzeResponseCLI struct {
	Version  string             `json:"version"`
	Run      RunInfoCLI         `json:"run"`
	Snapshot reflexion.Snapshot `json:"snapshot"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	format, err := checkFormat(analyzeFormat)
	if err != nil {
		return err
	}

	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := newContext()
	defer cancel()

	start := time.Now()
	in, err := analyzeInputs.load(s)
	if err != nil {
		return err
	}
	g, err := reflexion.Analyze(ctx, in.model, in.facts, in.mapping, s.engineOptions())
	if err != nil {
		return err
	}
	snapshot := g.Snapshot()

	digest, err := in.digest()
	if err != nil {
		return err
	}
	resp := &AnalyzeResponseCLI{
		Version: version.Version,
		Run: RunInfoCLI{
			CreatedAt:   start.UTC(),
			DurationMs:  time.Since(start).Milliseconds(),
			InputDigest: digest,
		},
		Snapshot: snapshot,
	}

	if analyzeSave {
		if err := saveRun(s, &resp.Run, snapshot, 0); err != nil {
			return err
		}
	}

	out, err := FormatResponse(resp, format)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)

	return violationGate(analyzeFailOnViolation, snapshot.Summary.Violations)
}

// saveRun stores snapshot in the run history and fills in info.
func saveRun(s *session, info *RunInfoCLI, snapshot reflexion.Snapshot, deltas int) error {
	db, store, err := s.openRunStore()
	if err != nil {
		return err
	}
	defer db.Close()
	return recordRun(store, s.logger, info, snapshot, deltas)
}

// runRecorder is the part of the run store used when saving a result.
type runRecorder interface {
	LatestRunByDigest(digest string) (storage.Run, error)
	GetRun(id string) (storage.Run, []byte, error)
	SaveRun(run storage.Run, payload []byte) (storage.Run, error)
}

// recordRun saves snapshot through store. The newest earlier run with the
// same digest, if any, is recorded as the previous run and its stored result
// is compared with snapshot.
func recordRun(store runRecorder, logger *slog.Logger, info *RunInfoCLI, snapshot reflexion.Snapshot, deltas int) error {
	prev, err := store.LatestRunByDigest(info.InputDigest)
	switch {
	case err == nil:
		info.PreviousRunID = prev.ID
		same, err := sameAsStored(store, prev.ID, snapshot)
		if err != nil {
			return err
		}
		info.ResultChanged = !same
		if same {
			logger.Info("Inputs unchanged since an earlier run", "run", prev.ID, "createdAt", prev.CreatedAt)
		} else {
			logger.Warn("Result differs from an earlier run over the same inputs",
				"run", prev.ID, "engineVersion", prev.EngineVersion)
		}
	case errors.Is(err, storage.ErrRunNotFound):
	default:
		return fmt.Errorf("failed to look up earlier runs: %w", err)
	}

	payload, err := output.DeterministicEncode(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	run, err := store.SaveRun(storage.Run{
		CreatedAt:      info.CreatedAt,
		DurationMs:     info.DurationMs,
		EngineVersion:  version.Version,
		GraphVersion:   snapshot.Version,
		InputDigest:    info.InputDigest,
		ReflexionEdges: snapshot.Summary.ReflexionEdges,
		Violations:     snapshot.Summary.Violations,
		UnmappedEdges:  len(snapshot.Unmapped.Edges),
		Deltas:         deltas,
	}, payload)
	if err != nil {
		return err
	}
	info.ID = run.ID
	info.CreatedAt = run.CreatedAt
	return nil
}

// sameAsStored reports whether the snapshot stored for run id matches
// snapshot, ignoring the graph version.
func sameAsStored(store runRecorder, id string, snapshot reflexion.Snapshot) (bool, error) {
	_, payload, err := store.GetRun(id)
	if err != nil {
		return false, fmt.Errorf("failed to load run %s: %w", id, err)
	}
	var stored reflexion.Snapshot
	if err := json.Unmarshal(payload, &stored); err != nil {
		return false, rerrors.New(rerrors.InternalError, "stored snapshot is unreadable", err)
	}
	return output.SnapshotEqual(stored, snapshot), nil
}

// violationGate turns violations into errViolations when gating is on.
func violationGate(enabled bool, violations int) error {
	if enabled && violations > 0 {
		return fmt.Errorf("%w: %d divergent edge(s)", errViolations, violations)
	}
	return nil
}
