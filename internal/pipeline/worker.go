package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/tacogips/modelres/internal/debug"
)

// ErrExecutorClosed is returned when submitting to a closed executor.
var ErrExecutorClosed = errors.New("pipeline: executor closed")

// Executor runs submitted tasks off the caller's goroutine.
type Executor interface {
	Submit(task func()) error
}

// Worker is a single goroutine running tasks one at a time in submission
// order. The queue is unbounded, so Submit never blocks the caller.
type Worker struct {
	mu      sync.Mutex
	closed  bool
	pending []func()
	wake    chan struct{}
	done    chan struct{}
}

// NewWorker starts a worker. queueSize is the initial queue capacity.
func NewWorker(queueSize int) *Worker {
	if queueSize < 1 {
		queueSize = 1
	}
	w := &Worker{
		pending: make([]func(), 0, queueSize),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	go w.run()
	return w
}

// Submit queues task and returns immediately.
func (w *Worker) Submit(task func()) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrExecutorClosed
	}
	w.pending = append(w.pending, task)
	w.mu.Unlock()
	w.signal()
	return nil
}

// Pending returns the number of queued tasks not yet started.
func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Close stops accepting tasks and waits for queued tasks to finish. It is
// safe to call more than once, but not from a task running on w.
func (w *Worker) Close() error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()
	w.signal()
	<-w.done
	return nil
}

func (w *Worker) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		w.mu.Lock()
		if len(w.pending) == 0 {
			closed := w.closed
			w.mu.Unlock()
			if closed {
				return
			}
			<-w.wake
			continue
		}
		task := w.pending[0]
		w.pending[0] = nil
		w.pending = w.pending[1:]
		w.mu.Unlock()

		w.runTask(task)
	}
}

func (w *Worker) runTask(task func()) {
	defer func() {
		if p := recover(); p != nil {
			debug.Logger().Error("worker task panicked", slog.String("panic", fmt.Sprint(p)))
		}
	}()
	task()
}
