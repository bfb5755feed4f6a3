package app

import "fmt"

// AppErrorType represents the type of application error.
type AppErrorType int

const (
	// ValidationFailed indicates invalid options.
	ValidationFailed AppErrorType = iota
	// SetupFailed indicates the pipeline could not be assembled.
	SetupFailed
	// ResolveFailed indicates the reference could not be resolved.
	ResolveFailed
	// ExportFailed indicates the canonical container could not be written.
	ExportFailed
	// InspectFailed indicates an archive could not be inspected.
	InspectFailed
)

// AppError represents an application-layer error.
type AppError struct {
	// Type is the error type.
	Type AppErrorType
	// Message is the error message.
	Message string
	// Cause is the underlying error.
	Cause error
}

// Error returns the error message.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new AppError.
func NewAppError(errType AppErrorType, message string, cause error) *AppError {
	return &AppError{
		Type:    errType,
		Message: message,
		Cause:   cause,
	}
}

// NewValidationError creates a validation error.
func NewValidationError(message string, cause error) *AppError {
	return NewAppError(ValidationFailed, message, cause)
}

// NewSetupError creates a setup error.
func NewSetupError(message string, cause error) *AppError {
	return NewAppError(SetupFailed, message, cause)
}

// NewResolveError creates a resolve error.
func NewResolveError(message string, cause error) *AppError {
	return NewAppError(ResolveFailed, message, cause)
}

// NewExportError creates an export error.
func NewExportError(message string, cause error) *AppError {
	return NewAppError(ExportFailed, message, cause)
}

// NewInspectError creates an inspect error.
func NewInspectError(message string, cause error) *AppError {
	return NewAppError(InspectFailed, message, cause)
}
