package loader

import (
	"errors"
	"fmt"
)

// FormatError reports content that was read successfully but cannot be
// interpreted as a model.
type FormatError struct {
	// Source is the location of the offending content.
	Source string
	// Line is the 1-based line number, or 0 when not line specific.
	Line int
	// Message describes the problem.
	Message string
	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	loc := e.Source
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.Source, e.Line)
	}
	if e.Cause != nil {
		return fmt.Sprintf("model format error in %s: %s: %v", loc, e.Message, e.Cause)
	}
	return fmt.Sprintf("model format error in %s: %s", loc, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *FormatError) Unwrap() error {
	return e.Cause
}

func newFormatError(source string, line int, message string, cause error) *FormatError {
	return &FormatError{
		Source:  source,
		Line:    line,
		Message: message,
		Cause:   cause,
	}
}

// IsFormatError reports whether err is a FormatError.
func IsFormatError(err error) bool {
	var fErr *FormatError
	return errors.As(err, &fErr)
}
