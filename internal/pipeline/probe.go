package pipeline

import (
	"context"
	"errors"

	"github.com/tacogips/modelres/internal/archive"
	"github.com/tacogips/modelres/internal/content"
	"github.com/tacogips/modelres/internal/loader"
)

// Probe interprets content handles as models through a loader and
// classifies the result.
type Probe struct {
	loader loader.Loader
	cached bool
}

// NewProbe creates a probe. When cached is true the loader's cache-aware
// variant is used.
func NewProbe(l loader.Loader, cached bool) *Probe {
	return &Probe{loader: l, cached: cached}
}

// Probe loads h and measures the model. Content that loads but has no
// geometry, and content the loader cannot interpret, is a format mismatch.
// Every other error is an I/O failure.
func (p *Probe) Probe(ctx context.Context, h content.Handle) StageOutcome {
	var (
		m   *loader.Model
		err error
	)
	if p.cached {
		m, err = p.loader.LoadCached(ctx, h)
	} else {
		m, err = p.loader.Load(ctx, h)
	}
	if err != nil {
		return classifyLoadError(ctx, err)
	}

	size, err := loader.Measure(m)
	if err != nil {
		return formatMismatch(err)
	}
	return success(m, size)
}

func classifyLoadError(ctx context.Context, err error) StageOutcome {
	switch {
	case ctx.Err() != nil:
		return cancelled(ctx.Err())
	case loader.IsFormatError(err), errors.Is(err, loader.ErrEmptyModel), archive.IsNotArchive(err):
		return formatMismatch(err)
	default:
		return ioFailure(err)
	}
}
