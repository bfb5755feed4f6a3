// Package pipeline resolves model references into canonical, persistable
// models on a background worker.
//
// A request first probes the reference directly as a model. When that is a
// format mismatch, the reference is re-opened and scanned as a zip archive:
// entries are probed in order, and the first model found is accepted only
// once every remaining entry has been read back successfully. The accepted
// model is then repackaged by the Canonicalizer into a self-contained zip.
//
// Results are delivered through a Dispatcher, on the caller's goroutine.
// Every Resolve call gets a Token; a request superseded by a newer one, or
// still running when its Resolver is closed, never invokes its callbacks.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tacogips/modelres/internal/archive"
	"github.com/tacogips/modelres/internal/content"
	"github.com/tacogips/modelres/internal/debug"
	"github.com/tacogips/modelres/internal/loader"
	"github.com/tacogips/modelres/internal/naming"
)

// Token identifies one Resolve call. Tokens increase monotonically per
// Resolver, starting at 1.
type Token uint64

// ContentOpener resolves reference strings into content handles.
type ContentOpener interface {
	Open(ctx context.Context, ref string) (content.Handle, error)
}

// EntryScanner walks archive entries. *archive.Scanner implements it.
type EntryScanner interface {
	Next() (archive.Entry, error)
	NextAny() (archive.Entry, error)
	Open() (io.Reader, error)
}

// ScannerFunc creates an EntryScanner over r.
type ScannerFunc func(r io.Reader) EntryScanner

// Config configures a Resolver.
type Config struct {
	// Content resolves references. Required.
	Content ContentOpener
	// Temp receives canonical archives. Required.
	Temp *content.TempStore
	// Dispatcher runs callbacks on the caller's goroutine. Required.
	Dispatcher Dispatcher
	// Loader loads models. Defaults to the process-wide OBJ cache.
	Loader loader.Loader
	// Executor runs stages. Defaults to a Worker owned by the Resolver.
	Executor Executor
	// QueueSize is the initial queue capacity of the default Worker.
	QueueSize int
	// Busy is told when the session becomes busy and idle.
	Busy BusyIndicator
	// DisableCache makes probes bypass the loader cache.
	DisableCache bool
	// MaxEntries caps how many archive entries are probed. Zero means no cap.
	MaxEntries int
	// NewScanner creates archive scanners. Defaults to archive.NewScanner.
	NewScanner ScannerFunc
	// Logger defaults to the debug logger.
	Logger *slog.Logger
}

// SuccessFunc receives a resolved model.
type SuccessFunc func(ResolvedModel)

// FailureFunc receives a failed resolution.
type FailureFunc func(*Failure)

// Resolver runs resolution requests for one session.
type Resolver struct {
	content    ContentOpener
	probe      *Probe
	canon      *Canonicalizer
	exec       Executor
	worker     *Worker
	dispatcher Dispatcher
	session    *Session
	maxEntries int
	newScanner ScannerFunc
	log        *slog.Logger

	next    atomic.Uint64
	current atomic.Uint64
	closed  atomic.Bool

	mu     sync.Mutex
	result *ResolvedModel
}

// NewResolver creates a resolver. When cfg.Executor is nil the resolver
// starts its own worker, stopped by Close.
func NewResolver(cfg Config) (*Resolver, error) {
	switch {
	case cfg.Content == nil:
		return nil, errors.New("pipeline: content opener is required")
	case cfg.Temp == nil:
		return nil, errors.New("pipeline: temp store is required")
	case cfg.Dispatcher == nil:
		return nil, errors.New("pipeline: dispatcher is required")
	case cfg.MaxEntries < 0:
		return nil, fmt.Errorf("pipeline: max entries must not be negative, got %d", cfg.MaxEntries)
	}

	l := cfg.Loader
	if l == nil {
		l = loader.Shared()
	}
	newScanner := cfg.NewScanner
	if newScanner == nil {
		newScanner = func(r io.Reader) EntryScanner { return archive.NewScanner(r) }
	}
	logger := cfg.Logger
	if logger == nil {
		logger = debug.Logger()
	}

	r := &Resolver{
		content:    cfg.Content,
		probe:      NewProbe(l, !cfg.DisableCache),
		canon:      NewCanonicalizer(cfg.Temp),
		exec:       cfg.Executor,
		dispatcher: cfg.Dispatcher,
		session:    NewSession(cfg.Busy),
		maxEntries: cfg.MaxEntries,
		newScanner: newScanner,
		log:        logger.With(slog.String("session", uuid.NewString())),
	}
	if r.exec == nil {
		r.worker = NewWorker(cfg.QueueSize)
		r.exec = r.worker
	}
	return r, nil
}

// Resolve starts resolving ref and returns immediately. Exactly one of the
// callbacks runs, once, through the dispatcher, unless the request is
// superseded by a later Resolve or the resolver is closed first.
func (r *Resolver) Resolve(ref Reference, onSuccess SuccessFunc, onFailure FailureFunc) Token {
	return r.ResolveContext(context.Background(), ref, onSuccess, onFailure)
}

// ResolveContext is Resolve with a context. Cancelling ctx is observed
// between stages and reported as a silent FailureCancelled.
func (r *Resolver) ResolveContext(ctx context.Context, ref Reference, onSuccess SuccessFunc, onFailure FailureFunc) Token {
	token := Token(r.next.Add(1))
	if r.closed.Load() {
		r.log.Warn("resolve after close ignored", slog.String("ref", string(ref)))
		return token
	}
	if prev := r.current.Swap(uint64(token)); prev != 0 && r.session.IsReading() {
		r.log.Debug("request superseded", slog.Uint64("token", prev), slog.Uint64("by", uint64(token)))
	}

	r.mu.Lock()
	r.result = nil
	r.mu.Unlock()
	r.session.BeginReading()

	start := time.Now()
	err := r.exec.Submit(func() {
		res, out := r.run(ctx, token, ref)
		r.deliver(token, ref, start, res, out, onSuccess, onFailure)
	})
	if err != nil {
		r.deliver(token, ref, start, ResolvedModel{}, ioFailure(err), onSuccess, onFailure)
	}
	return token
}

// Current returns the token of the latest request, or 0 before the first.
func (r *Resolver) Current() Token {
	return Token(r.current.Load())
}

// Result returns the model stored by the last successful request.
func (r *Resolver) Result() (ResolvedModel, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.result == nil {
		return ResolvedModel{}, false
	}
	return *r.result, true
}

// Reset clears the stored result and returns a Done or Failed session to Idle.
func (r *Resolver) Reset() {
	r.mu.Lock()
	r.result = nil
	r.mu.Unlock()
	r.session.Reset()
}

// State returns the session state.
func (r *Resolver) State() State {
	return r.session.State()
}

// IsBusy reports whether a request is in flight.
func (r *Resolver) IsBusy() bool {
	return r.session.IsReading()
}

// Close tears the session down. Queued and running requests still run to
// completion but their results are discarded. The busy indicator is
// released. When the resolver owns its worker, Close waits for it to drain.
func (r *Resolver) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	r.session.EndReading()
	if r.worker != nil {
		return r.worker.Close()
	}
	return nil
}

// run executes the stages on the worker. A panic in any stage becomes an
// I/O failure so the request is still delivered.
func (r *Resolver) run(ctx context.Context, token Token, ref Reference) (res ResolvedModel, out StageOutcome) {
	ctx, span := tracer.Start(ctx, "pipeline.Resolve", trace.WithAttributes(
		attribute.String("modelres.ref", string(ref)),
		attribute.Int64("modelres.token", int64(token)),
	))
	defer span.End()

	defer func() {
		if p := recover(); p != nil {
			res, out = ResolvedModel{}, ioFailure(fmt.Errorf("panic while resolving %s: %v", ref, p))
		}
		span.SetAttributes(attribute.String("modelres.outcome", out.Kind.String()))
		if out.Kind == OutcomeSuccess {
			span.SetStatus(codes.Ok, "")
		} else if out.Err != nil {
			span.RecordError(out.Err)
			span.SetStatus(codes.Error, out.Err.Error())
		}
	}()

	log := r.log.With(slog.Uint64("token", uint64(token)), slog.String("ref", string(ref)))
	log.Debug("resolving")

	h, err := r.content.Open(ctx, string(ref))
	if err != nil {
		if ctx.Err() != nil {
			return ResolvedModel{}, cancelled(err)
		}
		return ResolvedModel{}, ioFailure(err)
	}

	out = r.stage(ctx, log, stageDirect, func(ctx context.Context) StageOutcome {
		return r.probe.Probe(ctx, h)
	})
	if out.Kind == OutcomeFormatMismatch {
		if c, stale := r.checkStale(ctx, token); stale {
			return ResolvedModel{}, c
		}
		out = r.stage(ctx, log, stageArchive, func(ctx context.Context) StageOutcome {
			return r.scanArchive(ctx, log, h)
		})
	}
	if out.Kind != OutcomeSuccess {
		return ResolvedModel{}, out
	}

	if c, stale := r.checkStale(ctx, token); stale {
		return ResolvedModel{}, c
	}
	model := out.Model
	out = r.stage(ctx, log, stageCanonicalize, func(ctx context.Context) StageOutcome {
		res, err = r.canon.Canonicalize(ctx, model, naming.BaseName(string(ref)))
		if err != nil {
			if ctx.Err() != nil {
				return cancelled(err)
			}
			return ioFailure(err)
		}
		return success(model, res.Size)
	})
	if out.Kind != OutcomeSuccess {
		return ResolvedModel{}, out
	}
	if name := naming.DisplayName(string(ref)); name != "" {
		res.Name = name
	}
	return res, out
}

// scanArchive probes archive entries in order. After the first model is
// found, every remaining entry must read back cleanly.
func (r *Resolver) scanArchive(ctx context.Context, log *slog.Logger, h content.Handle) StageOutcome {
	rc, err := h.Open(ctx)
	if err != nil {
		return ioFailure(err)
	}
	defer rc.Close()

	s := r.newScanner(rc)
	var (
		found  StageOutcome
		probed int
	)
	for found.Model == nil {
		entry, err := s.Next()
		if errors.Is(err, io.EOF) {
			if probed == 0 {
				return formatMismatch(fmt.Errorf("archive %s has no candidate entries", h.Key()))
			}
			return formatMismatch(fmt.Errorf("no model among %d entries of %s", probed, h.Key()))
		}
		if err != nil {
			return classifyScanError(err)
		}
		if r.maxEntries > 0 && probed >= r.maxEntries {
			return formatMismatch(fmt.Errorf("no model among the first %d entries of %s", probed, h.Key()))
		}

		probed++
		archiveEntriesProbed.Inc()
		out := r.probe.Probe(ctx, content.NewEntryHandleAt(h, entry.Name, entry.Index))
		log.Debug("probed archive entry", slog.String("entry", entry.Name), slog.String("outcome", out.Kind.String()))
		switch out.Kind {
		case OutcomeSuccess:
			found = out
		case OutcomeFormatMismatch:
			continue
		default:
			return out
		}
	}

	for {
		entry, err := s.NextAny()
		if errors.Is(err, io.EOF) {
			return found
		}
		if err != nil {
			return ioFailure(fmt.Errorf("archive %s is only partially readable: %w", h.Key(), err))
		}
		if entry.IsDir {
			continue
		}
		data, err := s.Open()
		if err == nil {
			_, err = io.Copy(io.Discard, data)
		}
		if err != nil {
			return ioFailure(fmt.Errorf("archive %s is only partially readable: %w", h.Key(), err))
		}
	}
}

func classifyScanError(err error) StageOutcome {
	if archive.IsNotArchive(err) {
		return formatMismatch(err)
	}
	return ioFailure(err)
}

// stage runs one stage inside a span and records its outcome.
func (r *Resolver) stage(ctx context.Context, log *slog.Logger, name string, fn func(context.Context) StageOutcome) StageOutcome {
	ctx, span := tracer.Start(ctx, "pipeline.stage."+name, trace.WithAttributes(
		attribute.String("modelres.stage", name),
	))
	defer span.End()

	started := time.Now()
	out := fn(ctx)

	stageOutcomes.WithLabelValues(name, out.Kind.String()).Inc()
	span.SetAttributes(attribute.String("modelres.outcome", out.Kind.String()))
	if out.Err != nil {
		span.RecordError(out.Err)
	}
	if out.Kind == OutcomeIOFailure {
		span.SetStatus(codes.Error, out.Err.Error())
	}

	attrs := []any{
		slog.String("stage", name),
		slog.String("outcome", out.Kind.String()),
		slog.Duration("elapsed", time.Since(started)),
	}
	if out.Err != nil {
		attrs = append(attrs, slog.String("error", out.Err.Error()))
	}
	log.Debug("stage finished", attrs...)
	return out
}

// checkStale reports whether the request should stop at a stage boundary.
func (r *Resolver) checkStale(ctx context.Context, token Token) (StageOutcome, bool) {
	switch {
	case ctx.Err() != nil:
		return cancelled(ctx.Err()), true
	case r.closed.Load():
		return cancelled(errors.New("session closed")), true
	case Token(r.current.Load()) != token:
		return cancelled(errors.New("request superseded")), true
	}
	return StageOutcome{}, false
}

// deliver posts the terminal outcome to the caller's goroutine. Stale
// results are dropped there, so a later Resolve made on that goroutine is
// always seen.
func (r *Resolver) deliver(token Token, ref Reference, start time.Time, res ResolvedModel, out StageOutcome, onSuccess SuccessFunc, onFailure FailureFunc) {
	r.dispatcher.Post(func() {
		if r.closed.Load() {
			discardedResults.WithLabelValues("closed").Inc()
			r.log.Debug("result discarded after close", slog.Uint64("token", uint64(token)))
			return
		}
		if Token(r.current.Load()) != token {
			discardedResults.WithLabelValues("superseded").Inc()
			r.log.Debug("stale result discarded", slog.Uint64("token", uint64(token)))
			return
		}

		if out.Kind == OutcomeSuccess {
			resolveDuration.WithLabelValues("success").Observe(time.Since(start).Seconds())
			r.mu.Lock()
			r.result = &res
			r.mu.Unlock()
			r.session.Complete(true)
			r.log.Info("resolved", slog.String("ref", string(ref)), slog.String("size", res.Size.String()))
			if onSuccess != nil {
				onSuccess(res)
			}
			return
		}

		failure := failureFor(ref, token, out)
		resolveDuration.WithLabelValues(failure.Class.String()).Observe(time.Since(start).Seconds())
		if failure.Class == FailureCancelled {
			// A cancelled request has no outcome; the session goes back to Idle.
			r.session.EndReading()
		} else {
			r.session.Complete(false)
		}
		if !failure.Silent() {
			r.log.Info("resolution failed", slog.String("ref", string(ref)), slog.String("class", failure.Class.String()))
		}
		if onFailure != nil {
			onFailure(failure)
		}
	})
}
