// Package facts holds implementation facts: code nodes and the dependency
// edges observed between them, as emitted by an external fact extractor.
package facts

import (
	"fmt"
	"sort"

	"reflexion/internal/architecture"
	rerrors "reflexion/internal/errors"
)

// Node is a concrete code unit. ID is unique; Kind and Path are descriptive.
type Node struct {
	ID   string `json:"id" yaml:"id"`
	Kind string `json:"kind,omitempty" yaml:"kind,omitempty"`
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// Edge is a directed dependency between two nodes. An Edge value is its own
// identity key: duplicates with the same (source, target, kind) collapse.
type Edge struct {
	Source string `json:"source" yaml:"source"`
	Target string `json:"target" yaml:"target"`
	Kind   string `json:"kind" yaml:"kind"`
}

func (e Edge) String() string {
	return e.Source + " -> " + e.Target + " [" + e.Kind + "]"
}

// Less orders edges by source, target, then kind.
func (e Edge) Less(o Edge) bool {
	if e.Source != o.Source {
		return e.Source < o.Source
	}
	if e.Target != o.Target {
		return e.Target < o.Target
	}
	return e.Kind < o.Kind
}

// SortEdges sorts es in place by (source, target, kind).
func SortEdges(es []Edge) {
	sort.Slice(es, func(i, j int) bool { return es[i].Less(es[j]) })
}

// Facts is the full set of ingested nodes and edges.
type Facts struct {
	Nodes []Node `json:"nodes" yaml:"nodes"`
	Edges []Edge `json:"edges" yaml:"edges"`
}

// Validate checks node identity and edge endpoints. Repeated identical nodes
// are accepted; a node ID declared twice with different attributes is not.
// Edges with an empty kind get architecture.DefaultKind.
func (f *Facts) Validate() error {
	seen := make(map[string]Node, len(f.Nodes))
	for _, n := range f.Nodes {
		if n.ID == "" {
			return &InvalidFactError{Subject: "node", Reason: "empty id"}
		}
		if prev, ok := seen[n.ID]; ok && prev != n {
			return &InvalidFactError{Subject: "node " + n.ID, Reason: "declared twice with different attributes"}
		}
		seen[n.ID] = n
	}

	for i := range f.Edges {
		e := &f.Edges[i]
		if e.Kind == "" {
			e.Kind = architecture.DefaultKind
		}
		for _, end := range []string{e.Source, e.Target} {
			if _, ok := seen[end]; !ok {
				edge := *e
				return &UnknownNodeError{Node: end, Edge: &edge}
			}
		}
	}
	return nil
}

// UnknownNodeError reports a reference to a node that was never ingested.
// Edge is set when the reference is an edge endpoint.
type UnknownNodeError struct {
	Node    string
	Edge    *Edge
	Context string
}

func (e *UnknownNodeError) Error() string {
	switch {
	case e.Edge != nil:
		return fmt.Sprintf("edge %s references unknown node %q", e.Edge, e.Node)
	case e.Context != "":
		return fmt.Sprintf("unknown node %q in %s", e.Node, e.Context)
	default:
		return fmt.Sprintf("unknown node %q", e.Node)
	}
}

// ErrorCode implements errors.Coded
func (e *UnknownNodeError) ErrorCode() rerrors.ErrorCode {
	return rerrors.UnknownNode
}

// InvalidFactError reports a malformed node or edge.
type InvalidFactError struct {
	Subject string
	Reason  string
}

func (e *InvalidFactError) Error() string {
	return fmt.Sprintf("invalid fact %s: %s", e.Subject, e.Reason)
}

// ErrorCode implements errors.Coded
func (e *InvalidFactError) ErrorCode() rerrors.ErrorCode {
	return rerrors.InputInvalid
}
