package architecture

import "fmt"

// Limits bounds the size of a model accepted by NewIndex.
type Limits struct {
	MaxComponents int // Maximum declared components (default 10000)
	MaxDepth      int // Maximum hierarchy depth, roots are depth 1 (default 32)
}

// DefaultLimits returns the default model limits
func DefaultLimits() Limits {
	return Limits{
		MaxComponents: 10000,
		MaxDepth:      32,
	}
}

func (l Limits) checkComponentCount(n int) error {
	if l.MaxComponents > 0 && n > l.MaxComponents {
		return &HierarchyError{Component: "*", Reason: fmt.Sprintf("component count %d exceeds maximum limit %d", n, l.MaxComponents)}
	}
	return nil
}

func (l Limits) checkDepth(name string, depth int) error {
	if l.MaxDepth > 0 && depth > l.MaxDepth {
		return &HierarchyError{Component: name, Reason: fmt.Sprintf("depth %d exceeds maximum limit %d", depth, l.MaxDepth)}
	}
	return nil
}
