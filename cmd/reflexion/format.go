package main

import (
	"fmt"
	"strings"

	"reflexion/internal/output"
	"reflexion/internal/reflexion"
)

// OutputFormat represents the output format type
type OutputFormat string

const (
	FormatJSON  OutputFormat = "json"
	FormatHuman OutputFormat = "human"
)

// FormatResponse formats a response according to the specified format
func FormatResponse(resp interface{}, format OutputFormat) (string, error) {
	switch format {
	case FormatJSON:
		return formatJSON(resp)
	case FormatHuman:
		return formatHuman(resp)
	default:
		return "", fmt.Errorf("unsupported format: %s", format)
	}
}

// formatJSON formats the response as deterministic, indented JSON
func formatJSON(resp interface{}) (string, error) {
	data, err := output.DeterministicEncodeIndented(resp, "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return string(data), nil
}

// formatHuman formats the response in human-readable format
func formatHuman(resp interface{}) (string, error) {
	switch v := resp.(type) {
	case *AnalyzeResponseCLI:
		return formatAnalyzeHuman(v)
	case *RecomputeResponseCLI:
		return formatRecomputeHuman(v)
	case *HistoryResponseCLI:
		return formatHistoryHuman(v)
	case *StoredRunResponseCLI:
		return formatStoredRunHuman(v)
	default:
		// For unknown types, fall back to JSON
		return formatJSON(resp)
	}
}

func formatAnalyzeHuman(resp *AnalyzeResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Reflexion v%s\n", resp.Version))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	if resp.Run.ID != "" {
		b.WriteString(fmt.Sprintf("Run: %s\n", resp.Run.ID))
	}
	b.WriteString(fmt.Sprintf("Inputs: %s\n", shortDigest(resp.Run.InputDigest)))
	writePrevious(&b, resp.Run)
	b.WriteString(fmt.Sprintf("Duration: %dms\n\n", resp.Run.DurationMs))

	writeSnapshot(&b, &resp.Snapshot)
	return b.String(), nil
}

func formatRecomputeHuman(resp *RecomputeResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Reflexion v%s\n", resp.Version))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	b.WriteString(fmt.Sprintf("Deltas (%d):\n", len(resp.Results)))
	for i, r := range resp.Results {
		b.WriteString(fmt.Sprintf("  %d. %s  (v%d, %d reclassified)\n", i+1, r.Delta, r.Version, r.Reclassified))
		if len(r.Changes) == 0 {
			b.WriteString("       no state changes\n")
		}
		for _, c := range r.Changes {
			b.WriteString(fmt.Sprintf("       %s: %s -> %s\n", c.Triple, stateOrNone(c.Before), stateOrNone(c.After)))
		}
	}
	b.WriteString("\n")

	if resp.Snapshot != nil {
		writeSnapshot(&b, resp.Snapshot)
		return b.String(), nil
	}
	writeSummary(&b, &resp.Summary)
	return b.String(), nil
}

func writePrevious(b *strings.Builder, run RunInfoCLI) {
	switch {
	case run.PreviousRunID == "":
	case run.ResultChanged:
		b.WriteString(fmt.Sprintf("Inputs unchanged since: %s (result differs)\n", run.PreviousRunID))
	default:
		b.WriteString(fmt.Sprintf("Unchanged since: %s\n", run.PreviousRunID))
	}
}

func formatHistoryHuman(resp *HistoryResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Stored runs (%d)\n", len(resp.Runs)))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	b.WriteString(fmt.Sprintf("Database: %s\n\n", resp.Database))

	if len(resp.Runs) == 0 {
		b.WriteString("No runs stored. Use --save with analyze or recompute.\n")
		return b.String(), nil
	}
	for _, r := range resp.Runs {
		b.WriteString(fmt.Sprintf("%s  %s  edges=%d violations=%d unmapped=%d",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.ReflexionEdges, r.Violations, r.UnmappedEdges))
		if r.Deltas > 0 {
			b.WriteString(fmt.Sprintf(" deltas=%d", r.Deltas))
		}
		b.WriteString(fmt.Sprintf("  inputs=%s\n", shortDigest(r.InputDigest)))
	}
	return b.String(), nil
}

func formatStoredRunHuman(resp *StoredRunResponseCLI) (string, error) {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Run %s\n", resp.Run.ID))
	b.WriteString(strings.Repeat("=", 60) + "\n\n")
	b.WriteString(fmt.Sprintf("Created: %s\n", resp.Run.CreatedAt.Format("2006-01-02 15:04:05")))
	b.WriteString(fmt.Sprintf("Engine: v%s\n", resp.Run.EngineVersion))
	b.WriteString(fmt.Sprintf("Inputs: %s\n\n", shortDigest(resp.Run.InputDigest)))

	writeSnapshot(&b, &resp.Snapshot)
	return b.String(), nil
}

func writeSnapshot(b *strings.Builder, s *reflexion.Snapshot) {
	writeSummary(b, &s.Summary)

	b.WriteString("Edges:\n")
	for _, e := range s.Edges {
		b.WriteString(fmt.Sprintf("  [%s] %s -> %s (%s)", e.State, e.Source, e.Target, e.Kind))
		if e.Contract != nil {
			b.WriteString(fmt.Sprintf("  %s", e.Contract.Rule))
			if e.Contract.Lifted {
				b.WriteString(fmt.Sprintf(" via %s", e.Contract.Triple))
			}
		}
		b.WriteString("\n")
		for _, p := range e.Provenance {
			b.WriteString(fmt.Sprintf("      %s\n", p))
		}
		for _, d := range e.Diagnostics {
			b.WriteString(fmt.Sprintf("      ! %s\n", d.Message))
		}
	}

	if len(s.Unmapped.Nodes) > 0 || len(s.Unmapped.Edges) > 0 {
		b.WriteString("\nUnmapped:\n")
		if len(s.Unmapped.Nodes) > 0 {
			b.WriteString(fmt.Sprintf("  Nodes: %s\n", strings.Join(s.Unmapped.Nodes, ", ")))
		}
		for _, u := range s.Unmapped.Edges {
			b.WriteString(fmt.Sprintf("  %s\n", u.Edge))
		}
	}
}

func writeSummary(b *strings.Builder, s *reflexion.Summary) {
	b.WriteString("Summary:\n")
	b.WriteString(fmt.Sprintf("  Conformance: %s (%d violation(s) in %d edge(s))\n",
		output.FormatPercent(s.Conformance), s.Violations, s.ReflexionEdges))
	b.WriteString(fmt.Sprintf("  Derived edges: %d from %d implementation edge(s)\n", s.DerivedEdges, s.ImplementationEdges))
	for _, st := range reflexion.AllStates {
		if n := s.States[st]; n > 0 {
			b.WriteString(fmt.Sprintf("  %-20s %d\n", st, n))
		}
	}
	b.WriteString("\n")
}

func stateOrNone(s reflexion.State) string {
	if s == "" {
		return "(none)"
	}
	return string(s)
}

func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
