package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// UnknownComponent indicates a mapping, contract or rule names a component
	// that is not part of the architecture hierarchy
	UnknownComponent ErrorCode = "UNKNOWN_COMPONENT"
	// ConflictingContract indicates more than one contract for the same
	// (source, target, kind) triple
	ConflictingContract ErrorCode = "CONFLICTING_CONTRACT"
	// UnknownNode indicates an edge or mapping entry references a node that was never ingested
	UnknownNode ErrorCode = "UNKNOWN_NODE"
	// InvalidHierarchy indicates duplicate components, missing parents or cycles
	InvalidHierarchy ErrorCode = "INVALID_HIERARCHY"
	// InvalidDelta indicates a delta that cannot be applied to the current graph
	InvalidDelta ErrorCode = "INVALID_DELTA"
	// MappingConflict indicates an attempt to silently reassign a mapped node
	MappingConflict ErrorCode = "MAPPING_CONFLICT"
	// InputInvalid indicates an input file could not be read or decoded
	InputInvalid ErrorCode = "INPUT_INVALID"
	// ConfigInvalid indicates the configuration failed validation
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// EditInput suggests editing one of the analysis inputs
	EditInput FixActionType = "edit-input"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	File        string        `json:"file,omitempty"`
	URL         string        `json:"url,omitempty"`
}

// Error represents an engine error with code, message, and suggestions
type Error struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a new Error
func New(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// ErrorCode lets *Error satisfy Coded
func (e *Error) ErrorCode() ErrorCode {
	return e.Code
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// Coded is implemented by typed errors that carry a stable code
type Coded interface {
	error
	ErrorCode() ErrorCode
}

// CodeOf returns the code of the first coded error in err's chain.
// Errors without a code map to InternalError; nil maps to "".
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var coded Coded
	if stderrors.As(err, &coded) {
		return coded.ErrorCode()
	}
	return InternalError
}

// IsConfiguration reports whether err is fatal to graph construction
// (as opposed to an internal defect)
func IsConfiguration(err error) bool {
	switch CodeOf(err) {
	case UnknownComponent, ConflictingContract, UnknownNode, InvalidHierarchy, MappingConflict:
		return true
	}
	return false
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	UnknownComponent: {
		{
			Type:        EditInput,
			File:        "ARCHITECTURE.toml",
			Description: "Declare the component in the architecture model or fix the reference",
		},
	},
	ConflictingContract: {
		{
			Type:        EditInput,
			File:        "ARCHITECTURE.toml",
			Description: "Keep exactly one contract per (source, target, kind)",
		},
	},
	UnknownNode: {
		{
			Type:        EditInput,
			Description: "Re-run the fact extractor so edges and mappings only reference ingested nodes",
		},
	},
	InvalidHierarchy: {
		{
			Type:        EditInput,
			File:        "ARCHITECTURE.toml",
			Description: "Component names must be unique and parents must form a tree",
		},
	},
	ConfigInvalid: {
		{
			Type:        RunCommand,
			Command:     "reflexion version",
			Safe:        true,
			Description: "Check that .reflexion/config.json matches this version's schema",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
