package content

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of content error.
type ErrorType int

const (
	// ErrorFetch indicates the content could not be read or downloaded.
	ErrorFetch ErrorType = iota
	// ErrorNotFound indicates nothing exists at the referenced location.
	ErrorNotFound
	// ErrorTimeout indicates a remote fetch timed out.
	ErrorTimeout
	// ErrorInvalidReference indicates the reference string cannot be interpreted.
	ErrorInvalidReference
	// ErrorTempStorage indicates temporary storage could not be allocated.
	ErrorTempStorage
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	switch t {
	case ErrorFetch:
		return "FetchFailed"
	case ErrorNotFound:
		return "NotFound"
	case ErrorTimeout:
		return "Timeout"
	case ErrorInvalidReference:
		return "InvalidReference"
	case ErrorTempStorage:
		return "TempStorage"
	default:
		return "Unknown"
	}
}

// Error reports that content could not be accessed at all. It is never used
// for content that was read but could not be interpreted.
type Error struct {
	// Type is the error type classification.
	Type ErrorType
	// Message is the human-readable error message.
	Message string
	// Kind is the handle kind (e.g., "file", "http", "entry").
	Kind string
	// Reference is the reference that caused the error.
	Reference string
	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s content error [%s] for '%s': %s (caused by: %v)",
			e.Kind, e.Type.String(), e.Reference, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s content error [%s] for '%s': %s",
		e.Kind, e.Type.String(), e.Reference, e.Message)
}

// Unwrap returns the underlying cause for error wrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error.
func NewError(typ ErrorType, kind, ref, message string, cause error) *Error {
	return &Error{
		Type:      typ,
		Message:   message,
		Kind:      kind,
		Reference: ref,
		Cause:     cause,
	}
}

// NewFetchError creates a fetch failed error.
func NewFetchError(kind, ref string, cause error) *Error {
	return NewError(ErrorFetch, kind, ref, "failed to read content", cause)
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(kind, ref string, cause error) *Error {
	return NewError(ErrorNotFound, kind, ref, "content not found", cause)
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(kind, ref string, cause error) *Error {
	return NewError(ErrorTimeout, kind, ref, "operation timed out", cause)
}

// NewInvalidReferenceError creates an invalid reference error.
func NewInvalidReferenceError(kind, ref, message string) *Error {
	return NewError(ErrorInvalidReference, kind, ref, message, nil)
}

// IsNotFound reports whether err says the referenced content does not exist.
func IsNotFound(err error) bool {
	var cErr *Error
	return errors.As(err, &cErr) && cErr.Type == ErrorNotFound
}
