package architecture

import (
	"fmt"
	"strings"

	rerrors "reflexion/internal/errors"
)

// UnknownComponentError reports a reference to a component that is not part
// of the hierarchy. Node is set when the reference comes from a mapping entry.
type UnknownComponentError struct {
	Component string
	Node      string
	Context   string
}

func (e *UnknownComponentError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("node %q is mapped to unknown component %q", e.Node, e.Component)
	}
	if e.Context != "" {
		return fmt.Sprintf("unknown component %q in %s", e.Component, e.Context)
	}
	return fmt.Sprintf("unknown component %q", e.Component)
}

// ErrorCode implements errors.Coded
func (e *UnknownComponentError) ErrorCode() rerrors.ErrorCode {
	return rerrors.UnknownComponent
}

// ContractConflict lists every declaration made for one triple.
type ContractConflict struct {
	Triple       Triple
	Declarations []Contract
}

// ConflictingContractError reports triples declared more than once.
type ConflictingContractError struct {
	Conflicts []ContractConflict
}

func (e *ConflictingContractError) Error() string {
	parts := make([]string, 0, len(e.Conflicts))
	for _, c := range e.Conflicts {
		rules := make([]string, len(c.Declarations))
		for i, d := range c.Declarations {
			rules[i] = string(d.Rule)
		}
		parts = append(parts, fmt.Sprintf("%s declared %d times (%s)", c.Triple, len(c.Declarations), strings.Join(rules, ", ")))
	}
	return "conflicting contracts: " + strings.Join(parts, "; ")
}

// ErrorCode implements errors.Coded
func (e *ConflictingContractError) ErrorCode() rerrors.ErrorCode {
	return rerrors.ConflictingContract
}

// HierarchyError reports a malformed component hierarchy.
type HierarchyError struct {
	Component string
	Reason    string
}

func (e *HierarchyError) Error() string {
	return fmt.Sprintf("invalid hierarchy at %q: %s", e.Component, e.Reason)
}

// ErrorCode implements errors.Coded
func (e *HierarchyError) ErrorCode() rerrors.ErrorCode {
	return rerrors.InvalidHierarchy
}

// InvalidContractError reports a contract or style rule that is malformed on
// its own (unknown rule, empty kind, negative limit).
type InvalidContractError struct {
	Declaration string
	Reason      string
}

func (e *InvalidContractError) Error() string {
	return fmt.Sprintf("invalid declaration %s: %s", e.Declaration, e.Reason)
}

// ErrorCode implements errors.Coded
func (e *InvalidContractError) ErrorCode() rerrors.ErrorCode {
	return rerrors.InputInvalid
}
