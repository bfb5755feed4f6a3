package pipeline

import (
	"fmt"

	"github.com/tacogips/modelres/internal/content"
	"github.com/tacogips/modelres/internal/loader"
)

// Reference names the source of a model: a local path, a file or http(s)
// URL, or a nested "archive!/entry" reference.
type Reference string

// ResolvedModel is the canonical, self-contained result of a resolution.
type ResolvedModel struct {
	// Content addresses the primary OBJ entry of the canonical zip. It can
	// be opened any number of times, concurrently.
	Content content.Handle
	// Size is the bounding size of the model.
	Size loader.Size
	// Name is the human-readable default name derived from the reference.
	Name string
}

// OutcomeKind classifies the result of one stage attempt.
type OutcomeKind int

const (
	// OutcomeSuccess means the stage produced a model.
	OutcomeSuccess OutcomeKind = iota
	// OutcomeFormatMismatch means the content was readable but not a model
	// in the form this stage understands. The next stage is tried.
	OutcomeFormatMismatch
	// OutcomeIOFailure means the content could not be read. It is terminal.
	OutcomeIOFailure
	// OutcomeCancelled means the request was superseded, cancelled or its
	// session torn down. It is terminal.
	OutcomeCancelled
)

// String returns the string representation of the outcome kind.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFormatMismatch:
		return "format_mismatch"
	case OutcomeIOFailure:
		return "io_failure"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// StageOutcome is the tagged result of one stage attempt.
type StageOutcome struct {
	Kind  OutcomeKind
	Model *loader.Model
	Size  loader.Size
	Err   error
}

func success(m *loader.Model, size loader.Size) StageOutcome {
	return StageOutcome{Kind: OutcomeSuccess, Model: m, Size: size}
}

func formatMismatch(err error) StageOutcome {
	return StageOutcome{Kind: OutcomeFormatMismatch, Err: err}
}

func ioFailure(err error) StageOutcome {
	return StageOutcome{Kind: OutcomeIOFailure, Err: err}
}

func cancelled(err error) StageOutcome {
	return StageOutcome{Kind: OutcomeCancelled, Err: err}
}

// FailureClass tells the caller how to present a failed resolution.
type FailureClass int

const (
	// FailureFormat means the reference is readable but holds no model,
	// neither directly nor inside an archive.
	FailureFormat FailureClass = iota
	// FailureIO means the content could not be read, opened or written.
	FailureIO
	// FailureCancelled means the resolution was abandoned. It is never
	// shown to the user.
	FailureCancelled
)

// String returns the string representation of the failure class.
func (c FailureClass) String() string {
	switch c {
	case FailureFormat:
		return "format"
	case FailureIO:
		return "io"
	case FailureCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Failure is delivered to the failure callback of a resolution.
type Failure struct {
	Class     FailureClass
	Reference Reference
	Token     Token
	Err       error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	switch f.Class {
	case FailureFormat:
		return fmt.Sprintf("%s is not a supported model: %v", f.Reference, f.Err)
	case FailureCancelled:
		return fmt.Sprintf("resolution of %s was cancelled", f.Reference)
	default:
		return fmt.Sprintf("failed to read %s: %v", f.Reference, f.Err)
	}
}

// Unwrap returns the underlying cause error.
func (f *Failure) Unwrap() error {
	return f.Err
}

// Silent reports whether the failure must not be surfaced to the user.
func (f *Failure) Silent() bool {
	return f.Class == FailureCancelled
}

func failureFor(ref Reference, token Token, out StageOutcome) *Failure {
	class := FailureIO
	switch out.Kind {
	case OutcomeFormatMismatch:
		class = FailureFormat
	case OutcomeCancelled:
		class = FailureCancelled
	}
	return &Failure{Class: class, Reference: ref, Token: token, Err: out.Err}
}
