package archive

import (
	"errors"
	"fmt"
)

// ErrorType represents the type of archive error.
type ErrorType int

const (
	// ErrorNotArchive indicates the stream does not start like a zip archive.
	ErrorNotArchive ErrorType = iota
	// ErrorCorrupt indicates the entry table is damaged after a valid start.
	ErrorCorrupt
	// ErrorCorruptName indicates an entry name could not be decoded.
	ErrorCorruptName
	// ErrorTruncated indicates the stream ended in the middle of the archive.
	ErrorTruncated
	// ErrorUnsupported indicates an entry uses a layout this scanner cannot follow.
	ErrorUnsupported
	// ErrorEntryNotFound indicates a named entry does not exist in the archive.
	ErrorEntryNotFound
	// ErrorChecksum indicates entry data does not match its recorded CRC-32.
	ErrorChecksum
)

// String returns the string representation of the error type.
func (t ErrorType) String() string {
	switch t {
	case ErrorNotArchive:
		return "NotArchive"
	case ErrorCorrupt:
		return "Corrupt"
	case ErrorCorruptName:
		return "CorruptName"
	case ErrorTruncated:
		return "Truncated"
	case ErrorUnsupported:
		return "Unsupported"
	case ErrorEntryNotFound:
		return "EntryNotFound"
	case ErrorChecksum:
		return "Checksum"
	default:
		return "Unknown"
	}
}

// Error represents an archive scanning error.
type Error struct {
	// Type is the error type classification.
	Type ErrorType
	// Message is the human-readable error message.
	Message string
	// Entry is the entry being read when the error occurred, if known.
	Entry string
	// Index is the zero-based physical position of the entry, or -1.
	Index int
	// Cause is the underlying error, if any.
	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("archive error [%s]: %s", e.Type, e.Message)
	if e.Entry != "" {
		msg = fmt.Sprintf("%s (entry %q)", msg, e.Entry)
	} else if e.Index >= 0 {
		msg = fmt.Sprintf("%s (entry #%d)", msg, e.Index)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying cause for error wrapping.
func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(typ ErrorType, index int, entry, message string, cause error) *Error {
	return &Error{
		Type:    typ,
		Message: message,
		Entry:   entry,
		Index:   index,
		Cause:   cause,
	}
}

// IsNotArchive reports whether err says the stream is not a zip archive at all.
func IsNotArchive(err error) bool {
	var archErr *Error
	return errors.As(err, &archErr) && archErr.Type == ErrorNotArchive
}

// IsType reports whether err is an archive error of the given type.
func IsType(err error, typ ErrorType) bool {
	var archErr *Error
	return errors.As(err, &archErr) && archErr.Type == typ
}
