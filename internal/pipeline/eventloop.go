package pipeline

import (
	"context"
	"sync"
)

// Dispatcher runs functions on the caller's goroutine. Resolver delivers
// callbacks and busy transitions through it.
type Dispatcher interface {
	Post(fn func())
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(fn func())

// Post calls d(fn).
func (d DispatcherFunc) Post(fn func()) { d(fn) }

// EventLoop is a Dispatcher backed by an unbounded FIFO queue. The owning
// goroutine runs posted functions with Run or Drain. Post never blocks.
type EventLoop struct {
	mu      sync.Mutex
	pending []func()
	wake    chan struct{}
}

// NewEventLoop creates an empty event loop.
func NewEventLoop() *EventLoop {
	return &EventLoop{wake: make(chan struct{}, 1)}
}

// Post queues fn.
func (l *EventLoop) Post(fn func()) {
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Drain runs every queued function, including ones posted while draining,
// and returns how many ran.
func (l *EventLoop) Drain() int {
	n := 0
	for {
		l.mu.Lock()
		if len(l.pending) == 0 {
			l.mu.Unlock()
			return n
		}
		fn := l.pending[0]
		l.pending[0] = nil
		l.pending = l.pending[1:]
		l.mu.Unlock()

		fn()
		n++
	}
}

// Run runs posted functions until ctx is done.
func (l *EventLoop) Run(ctx context.Context) error {
	for {
		l.Drain()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}
