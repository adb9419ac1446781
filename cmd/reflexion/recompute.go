package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"reflexion/internal/config"
	"reflexion/internal/reflexion"
	"reflexion/internal/version"
)

var (
	recomputeInputs          inputFlags
	recomputeDeltas          string
	recomputeFormat          string
	recomputeSave            bool
	recomputeFull            bool
	recomputeFailOnViolation bool
)

var recomputeCmd = &cobra.Command{
	Use:   "recompute",
	Short: "Apply deltas incrementally and report state changes",
	Long: `Analyze the inputs, then apply each delta from a YAML file in order and
reclassify only the affected architecture edges. Every delta reports the
edges whose state changed.

Delta kinds: add_node, remove_node, add_edge, remove_edge, set_mapping,
add_contract, remove_contract, change_contract.

Examples:
  reflexion recompute --facts facts.json --deltas deltas.yaml
  reflexion recompute --facts facts.json --deltas deltas.yaml --format human
  reflexion recompute --facts facts.json --deltas deltas.yaml --full --save`,
	Args: cobra.NoArgs,
	RunE: runRecompute,
}

func init() {
	recomputeInputs.register(recomputeCmd)
	recomputeCmd.Flags().StringVar(&recomputeDeltas, "deltas", "", "Delta file (.yaml)")
	recomputeCmd.Flags().StringVar(&recomputeFormat, "format", "json", "Output format (json, human)")
	recomputeCmd.Flags().BoolVar(&recomputeSave, "save", false, "Store the final result in the run history")
	recomputeCmd.Flags().BoolVar(&recomputeFull, "full", false, "Include the final snapshot in the output")
	recomputeCmd.Flags().BoolVar(&recomputeFailOnViolation, "fail-on-violation", false, "Exit with status 2 when divergent edges remain")
	_ = recomputeCmd.MarkFlagRequired("deltas")
	rootCmd.AddCommand(recomputeCmd)
}

// RecomputeResponseCLI is the output of recompute.
type RecomputeResponseCLI struct {
	Version string                   `json:"version"`
	Run     RunInfoCLI               `json:"run"`
	Results []*reflexion.DeltaResult `json:"results"`
	Summary reflexion.Summary        `json:"summary"`
	// Snapshot is set with --full.
	Snapshot *reflexion.Snapshot `json:"snapshot,omitempty"`
}

func runRecompute(cmd *cobra.Command, args []string) error {
	format, err := checkFormat(recomputeFormat)
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
	in, err := recomputeInputs.load(s)
	if err != nil {
		return err
	}
	deltas, err := reflexion.LoadDeltas(config.ResolvePath(s.root, recomputeDeltas))
	if err != nil {
		return inputError("deltas", err)
	}

	g, err := reflexion.Analyze(ctx, in.model, in.facts, in.mapping, s.engineOptions())
	if err != nil {
		return err
	}

	results := make([]*reflexion.DeltaResult, 0, len(deltas))
	for i, d := range deltas {
		res, err := g.Recompute(ctx, d)
		if err != nil {
			return fmt.Errorf("delta %d (%s): %w", i+1, d, err)
		}
		s.logger.Debug("Delta applied", "index", i+1, "delta", d.String(), "changes", len(res.Changes))
		results = append(results, res)
	}

	snapshot := g.Snapshot()
	digest, err := in.digest(deltas)
	if err != nil {
		return err
	}
	resp := &RecomputeResponseCLI{
		Version: version.Version,
		Run: RunInfoCLI{
			CreatedAt:   start.UTC(),
			DurationMs:  time.Since(start).Milliseconds(),
			InputDigest: digest,
		},
		Results: results,
		Summary: snapshot.Summary,
	}
	if recomputeFull {
		resp.Snapshot = &snapshot
	}

	if recomputeSave {
		if err := saveRun(s, &resp.Run, snapshot, len(deltas)); err != nil {
			return err
		}
	}

	out, err := FormatResponse(resp, format)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), out)

	return violationGate(recomputeFailOnViolation, snapshot.Summary.Violations)
}
