package architecture

import (
	"sort"
	"strings"
)

// Hierarchy is the validated component tree, keyed by qualified name.
type Hierarchy struct {
	components map[string]Component
	children   map[string][]string
	ancestors  map[string][]string // self first, root last
	names      []string
}

// newHierarchy validates components and builds the tree. Qualified names are
// derived from the parent chain, so a parent must itself be declared.
func newHierarchy(components []Component, limits Limits) (*Hierarchy, error) {
	if err := limits.checkComponentCount(len(components)); err != nil {
		return nil, err
	}

	h := &Hierarchy{
		components: make(map[string]Component, len(components)),
		children:   make(map[string][]string),
		ancestors:  make(map[string][]string, len(components)),
	}

	for _, c := range components {
		qn := c.QualifiedName()
		switch {
		case c.Name == "":
			return nil, &HierarchyError{Component: qn, Reason: "component name is empty"}
		case strings.Contains(c.Name, ".") || c.Name == Wildcard:
			return nil, &HierarchyError{Component: qn, Reason: "component name must be a single segment"}
		}
		if _, dup := h.components[qn]; dup {
			return nil, &HierarchyError{Component: qn, Reason: "duplicate component"}
		}
		h.components[qn] = c
		h.names = append(h.names, qn)
	}
	sort.Strings(h.names)

	for _, qn := range h.names {
		c := h.components[qn]
		if c.Parent == "" {
			continue
		}
		if _, ok := h.components[c.Parent]; !ok {
			return nil, &UnknownComponentError{Component: c.Parent, Context: "parent of " + qn}
		}
		h.children[c.Parent] = append(h.children[c.Parent], qn)
	}

	// names is sorted, so a parent's chain is built before its children's.
	for _, qn := range h.names {
		c := h.components[qn]
		chain := []string{qn}
		if c.Parent != "" {
			chain = append(chain, h.ancestors[c.Parent]...)
		}
		if err := limits.checkDepth(qn, len(chain)); err != nil {
			return nil, err
		}
		h.ancestors[qn] = chain
	}

	return h, nil
}

// Has reports whether name is a declared component.
func (h *Hierarchy) Has(name string) bool {
	_, ok := h.components[name]
	return ok
}

// Component returns the declaration for a qualified name.
func (h *Hierarchy) Component(name string) (Component, bool) {
	c, ok := h.components[name]
	return c, ok
}

// Parent returns the parent of name, or false for roots and unknown names.
func (h *Hierarchy) Parent(name string) (string, bool) {
	c, ok := h.components[name]
	if !ok || c.Parent == "" {
		return "", false
	}
	return c.Parent, true
}

// Children returns the direct children of name in sorted order.
func (h *Hierarchy) Children(name string) []string {
	return h.children[name]
}

// Ancestors returns name followed by its ancestors up to the root.
func (h *Hierarchy) Ancestors(name string) []string {
	return h.ancestors[name]
}

// Depth returns the depth of name; roots have depth 1.
func (h *Hierarchy) Depth(name string) int {
	return len(h.ancestors[name])
}

// IsAncestorOrSelf reports whether anc is name or one of its ancestors.
func (h *Hierarchy) IsAncestorOrSelf(anc, name string) bool {
	for _, a := range h.ancestors[name] {
		if a == anc {
			return true
		}
	}
	return false
}

// Nested reports whether a and b are the same component or one contains
// the other.
func (h *Hierarchy) Nested(a, b string) bool {
	return h.IsAncestorOrSelf(a, b) || h.IsAncestorOrSelf(b, a)
}

// Names returns all qualified names in sorted order.
func (h *Hierarchy) Names() []string {
	return h.names
}

// Len returns the number of components.
func (h *Hierarchy) Len() int {
	return len(h.names)
}

// Components returns the declarations in qualified-name order.
func (h *Hierarchy) Components() []Component {
	out := make([]Component, len(h.names))
	for i, qn := range h.names {
		out[i] = h.components[qn]
	}
	return out
}
