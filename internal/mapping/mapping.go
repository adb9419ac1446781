// Package mapping holds the resolved assignment of implementation nodes to
// architecture components, as produced by an external mapper.
package mapping

import (
	"errors"
	"fmt"
	"sort"

	rerrors "reflexion/internal/errors"
)

// Origin records how a mapping entry was produced.
type Origin string

const (
	// OriginManual is an explicit assignment by a person
	OriginManual Origin = "manual"
	// OriginRule is an assignment made by a mapping rule
	OriginRule Origin = "rule"
	// OriginUnmapped marks a node the mapper could not resolve
	OriginUnmapped Origin = "unmapped"
)

// ParseOrigin converts a string to an Origin; empty means manual.
func ParseOrigin(s string) (Origin, error) {
	switch Origin(s) {
	case "", OriginManual:
		return OriginManual, nil
	case OriginRule:
		return OriginRule, nil
	case OriginUnmapped:
		return OriginUnmapped, nil
	}
	return "", fmt.Errorf("unknown mapping origin %q", s)
}

// Entry is one row of the mapping table. Component is empty for unmapped entries.
type Entry struct {
	Node      string `json:"node"`
	Component string `json:"component,omitempty"`
	Origin    Origin `json:"origin"`
}

// Mapped reports whether the entry resolves to a component.
func (e Entry) Mapped() bool {
	return e.Component != "" && e.Origin != OriginUnmapped
}

// ErrMappingExists is returned by Set when a node is already mapped to a
// different component.
var ErrMappingExists = errors.New("node is already mapped to a different component")

// ConflictError wraps ErrMappingExists with the node and both components.
type ConflictError struct {
	Node     string
	Existing string
	Proposed string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("node %q is mapped to %q, refusing to remap to %q", e.Node, e.Existing, e.Proposed)
}

// Unwrap returns ErrMappingExists
func (e *ConflictError) Unwrap() error {
	return ErrMappingExists
}

// ErrorCode implements errors.Coded
func (e *ConflictError) ErrorCode() rerrors.ErrorCode {
	return rerrors.MappingConflict
}

// Table maps node IDs to components. A node with no entry is unmapped.
// Table is not safe for concurrent mutation.
type Table struct {
	entries map[string]Entry
}

// New creates an empty table
func New() *Table {
	return &Table{entries: make(map[string]Entry)}
}

// FromEntries builds a table, applying Set to each entry in order.
func FromEntries(entries []Entry) (*Table, error) {
	t := New()
	for _, e := range entries {
		if err := t.Set(e.Node, e.Component, e.Origin); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Set assigns node to component. Re-setting the same component only updates
// the origin. Assigning a different component to a mapped node fails with a
// *ConflictError; use SetOverwrite for deliberate remapping. An empty
// component records the node as unmapped.
func (t *Table) Set(node, component string, origin Origin) error {
	if existing, ok := t.entries[node]; ok && existing.Mapped() && component != "" && existing.Component != component {
		return &ConflictError{Node: node, Existing: existing.Component, Proposed: component}
	}
	t.put(node, component, origin)
	return nil
}

// SetOverwrite assigns node to component unconditionally and returns the
// previous component, if the node was mapped.
func (t *Table) SetOverwrite(node, component string, origin Origin) (string, bool) {
	prev, ok := t.Lookup(node)
	t.put(node, component, origin)
	return prev, ok
}

// Remove deletes the entry for node and returns its component, if it was mapped.
func (t *Table) Remove(node string) (string, bool) {
	prev, ok := t.Lookup(node)
	delete(t.entries, node)
	return prev, ok
}

func (t *Table) put(node, component string, origin Origin) {
	if component == "" {
		origin = OriginUnmapped
	} else if origin == "" || origin == OriginUnmapped {
		origin = OriginManual
	}
	t.entries[node] = Entry{Node: node, Component: component, Origin: origin}
}

// Lookup returns the component node maps to.
func (t *Table) Lookup(node string) (string, bool) {
	e, ok := t.entries[node]
	if !ok || !e.Mapped() {
		return "", false
	}
	return e.Component, true
}

// Entry returns the raw entry for node, including explicit unmapped entries.
func (t *Table) Entry(node string) (Entry, bool) {
	e, ok := t.entries[node]
	return e, ok
}

// Entries returns all entries sorted by node.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for _, e := range t.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Node < out[j].Node })
	return out
}

// Len returns the number of entries.
func (t *Table) Len() int {
	return len(t.entries)
}

// Clone returns an independent copy.
func (t *Table) Clone() *Table {
	c := &Table{entries: make(map[string]Entry, len(t.entries))}
	for k, v := range t.entries {
		c.entries[k] = v
	}
	return c
}
