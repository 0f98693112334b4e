package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// InvalidProject indicates a project configuration problem
	InvalidProject ErrorCode = "INVALID_PROJECT"
	// NoTranslator indicates no translation pipeline is registered for a path
	NoTranslator ErrorCode = "NO_TRANSLATOR"
	// UnknownEditor indicates an expression names an editor the project lacks
	UnknownEditor ErrorCode = "UNKNOWN_EDITOR"
	// UnknownRepository indicates an expression names a repository the project lacks
	UnknownRepository ErrorCode = "UNKNOWN_REPOSITORY"
	// CodebaseCreationFailed indicates evaluation of an expression failed
	CodebaseCreationFailed ErrorCode = "CODEBASE_CREATION_FAILED"
	// DatabaseCorrupt indicates the equivalence database could not be trusted
	DatabaseCorrupt ErrorCode = "DATABASE_CORRUPT"
	// RepositoryUnavailable indicates a VCS backend could not be reached
	RepositoryUnavailable ErrorCode = "REPOSITORY_UNAVAILABLE"
	// ParseError indicates a malformed expression or revision string
	ParseError ErrorCode = "PARSE_ERROR"
	// Timeout indicates an external command timed out
	Timeout ErrorCode = "TIMEOUT"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// OpenDocs suggests opening documentation
	OpenDocs FixActionType = "open-docs"
	// EditConfig suggests editing the project configuration
	EditConfig FixActionType = "edit-config"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
	URL         string        `json:"url,omitempty"`
}

// MoeError represents a MOE error with code, message, and suggestions
type MoeError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// NewMoeError creates a new MoeError
func NewMoeError(code ErrorCode, message string, cause error, suggestedFixes []FixAction) *MoeError {
	return &MoeError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: suggestedFixes,
	}
}

// Newf creates a MoeError with a formatted message and the default fixes for its code.
func Newf(code ErrorCode, format string, args ...interface{}) *MoeError {
	return NewMoeError(code, fmt.Sprintf(format, args...), nil, GetSuggestedFixes(code))
}

// Wrapf wraps cause in a MoeError with a formatted message.
func Wrapf(cause error, code ErrorCode, format string, args ...interface{}) *MoeError {
	return NewMoeError(code, fmt.Sprintf(format, args...), cause, GetSuggestedFixes(code))
}

// Error implements the error interface
func (e *MoeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *MoeError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *MoeError) WithDetails(details interface{}) *MoeError {
	e.Details = details
	return e
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	InvalidProject: {
		{
			Type:        RunCommand,
			Command:     "moe check-config --strict -c ${project_config}",
			Safe:        true,
			Description: "Validate the project configuration",
		},
	},
	NoTranslator: {
		{
			Type:        EditConfig,
			Description: "Add a translator with matching from_project_space and to_project_space",
		},
	},
	DatabaseCorrupt: {
		{
			Type:        RunCommand,
			Command:     "moe find-equivalence --db ${db_uri}",
			Safe:        true,
			Description: "Inspect the equivalence database after restoring it from backup",
		},
	},
	RepositoryUnavailable: {
		{
			Type:        RunCommand,
			Command:     "moe check-config -c ${project_config}",
			Safe:        true,
			Description: "Check the repository url and type",
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

// CodeOf returns the code of the outermost MoeError in err's chain, or
// InternalError if there is none.
func CodeOf(err error) ErrorCode {
	var me *MoeError
	if stderrors.As(err, &me) {
		return me.Code
	}
	return InternalError
}

// HasCode reports whether any MoeError in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var me *MoeError
		if !stderrors.As(err, &me) {
			return false
		}
		if me.Code == code {
			return true
		}
		err = me.cause
	}
	return false
}

// IsConfiguration reports whether err is a configuration error. These are
// fatal for the current directive and never retried.
func IsConfiguration(err error) bool {
	for err != nil {
		var me *MoeError
		if !stderrors.As(err, &me) {
			return false
		}
		switch me.Code {
		case InvalidProject, NoTranslator, UnknownEditor, UnknownRepository:
			return true
		}
		err = me.cause
	}
	return false
}
