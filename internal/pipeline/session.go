package pipeline

import "sync"

// State is the caller-visible state of a resolution session.
type State int

const (
	// StateIdle is the initial state, and the state after results are consumed.
	StateIdle State = iota
	// StateReading means a resolution is in flight.
	StateReading
	// StateDone means the last resolution succeeded.
	StateDone
	// StateFailed means the last resolution failed.
	StateFailed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReading:
		return "reading"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// BusyIndicator is told when a session becomes busy and when it becomes
// idle again. It only sees real transitions, never two equal values in a row.
type BusyIndicator interface {
	SetBusy(busy bool)
}

// BusyFunc adapts a function to BusyIndicator.
type BusyFunc func(busy bool)

// SetBusy calls f(busy).
func (f BusyFunc) SetBusy(busy bool) { f(busy) }

// Session tracks Idle/Reading/Done/Failed and drives a busy indicator.
//
// Thread Safety:
//
//	All methods are safe for concurrent use. Indicator calls are made
//	without holding the state lock, in transition order; an indicator must
//	not call back into BeginReading, EndReading, Complete or Reset.
type Session struct {
	edgeMu sync.Mutex // serializes transitions together with their notification

	mu    sync.Mutex
	state State
	busy  BusyIndicator
}

// NewSession creates an idle session. busy may be nil.
func NewSession(busy BusyIndicator) *Session {
	return &Session{busy: busy}
}

// BeginReading enters Reading and engages the busy indicator. It is a no-op
// while already Reading.
func (s *Session) BeginReading() {
	s.transition(func(cur State) (State, bool) {
		return StateReading, cur != StateReading
	})
}

// EndReading leaves Reading for Idle and releases the busy indicator. It
// may be called any number of times, from any goroutine.
func (s *Session) EndReading() {
	s.transition(func(cur State) (State, bool) {
		return StateIdle, cur == StateReading
	})
}

// Complete leaves Reading for Done or Failed and releases the busy
// indicator. It is a no-op unless Reading.
func (s *Session) Complete(ok bool) {
	next := StateFailed
	if ok {
		next = StateDone
	}
	s.transition(func(cur State) (State, bool) {
		return next, cur == StateReading
	})
}

// Reset returns a Done or Failed session to Idle.
func (s *Session) Reset() {
	s.transition(func(cur State) (State, bool) {
		return StateIdle, cur == StateDone || cur == StateFailed
	})
}

// IsReading reports whether a resolution is in flight.
func (s *Session) IsReading() bool {
	return s.State() == StateReading
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Session) transition(next func(cur State) (State, bool)) {
	s.edgeMu.Lock()
	defer s.edgeMu.Unlock()

	s.mu.Lock()
	prev := s.state
	to, ok := next(prev)
	if ok {
		s.state = to
	}
	s.mu.Unlock()
	if !ok {
		return
	}

	wasBusy, isBusy := prev == StateReading, to == StateReading
	if s.busy != nil && wasBusy != isBusy {
		s.busy.SetBusy(isBusy)
	}
}
