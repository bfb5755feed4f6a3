package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tacogips/modelres/internal/config"
	"github.com/tacogips/modelres/internal/content"
	"github.com/tacogips/modelres/internal/debug"
	"github.com/tacogips/modelres/internal/loader"
	"github.com/tacogips/modelres/internal/pipeline"
)

// ResolveOptions contains options for resolving a single reference.
type ResolveOptions struct {
	// Reference is the file path, URL or nested archive reference to resolve.
	Reference string
	// Config supplies resolver and content settings. Nil means defaults.
	Config *config.Config
	// BaseDir anchors relative references. Empty means the working directory.
	BaseDir string
	// OutputPath receives a copy of the canonical container. Empty skips export.
	OutputPath string
	// Overwrite allows replacing an existing OutputPath.
	Overwrite bool
	// Name overrides the display name of the result.
	Name string
	// Busy is notified when the session starts and stops reading.
	Busy pipeline.BusyIndicator
}

// ResolveResult contains the outcome of a successful resolution.
type ResolveResult struct {
	// Name is the human-readable model name.
	Name string
	// Size is the model's bounding box.
	Size loader.Size
	// Entry is the primary model entry inside the canonical container.
	Entry string
	// OutputPath is where the container was written, if anywhere.
	OutputPath string
	// Bytes is the size of the written container.
	Bytes int64
}

// Resolve runs one resolution session to completion on a private event loop
// and optionally exports the canonical container.
func Resolve(ctx context.Context, opts ResolveOptions) (*ResolveResult, error) {
	debug.DebugSection("[app] Resolve workflow start")
	debug.DebugValue("[app] Reference", opts.Reference)
	debug.DebugValue("[app] OutputPath", opts.OutputPath)
	debug.DebugValue("[app] Overwrite", opts.Overwrite)

	if err := validateResolveOptions(opts); err != nil {
		debug.Debug("[app] Resolve options validation failed: %v", err)
		return nil, NewValidationError("invalid resolve options", err)
	}

	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	tempDir, err := config.ExpandPath(cfg.Content.TempDir)
	if err != nil {
		return nil, NewSetupError("invalid temp directory", err)
	}
	temp, err := content.NewTempStore(tempDir)
	if err != nil {
		return nil, NewSetupError("failed to create temporary storage", err)
	}
	defer func() {
		if err := temp.Close(); err != nil {
			debug.Debug("[app] Failed to remove temporary storage: %v", err)
		}
	}()

	manager := content.NewManager(temp, content.ManagerConfig{
		BaseDir:     opts.BaseDir,
		HTTPTimeout: cfg.Content.HTTPTimeout,
		UserAgent:   cfg.Content.UserAgent,
	})

	loop := pipeline.NewEventLoop()
	resolver, err := pipeline.NewResolver(pipeline.Config{
		Content:      manager,
		Temp:         temp,
		Dispatcher:   loop,
		QueueSize:    cfg.Resolver.QueueSize,
		MaxEntries:   cfg.Resolver.MaxEntries,
		DisableCache: !cfg.Resolver.Cache,
		Busy:         opts.Busy,
	})
	if err != nil {
		return nil, NewSetupError("failed to create resolver", err)
	}
	defer resolver.Close()

	loopCtx, stop := context.WithCancel(context.Background())
	defer stop()

	var (
		model   pipeline.ResolvedModel
		failure *pipeline.Failure
	)
	token := resolver.ResolveContext(ctx, pipeline.Reference(opts.Reference),
		func(m pipeline.ResolvedModel) {
			model = m
			stop()
		},
		func(f *pipeline.Failure) {
			failure = f
			stop()
		},
	)
	debug.Debug("[app] Submitted request token=%d", token)

	// Returns once a callback has stopped the loop.
	_ = loop.Run(loopCtx)

	if failure != nil {
		debug.Debug("[app] Resolution failed: class=%s err=%v", failure.Class, failure.Err)
		if failure.Silent() {
			return nil, NewResolveError("resolution cancelled", failure)
		}
		return nil, NewResolveError(fmt.Sprintf("failed to resolve %s", opts.Reference), failure)
	}

	result := &ResolveResult{
		Name: model.Name,
		Size: model.Size,
	}
	if opts.Name != "" {
		result.Name = opts.Name
	}
	if entry, ok := model.Content.(*content.EntryHandle); ok {
		result.Entry = entry.Entry()
	}

	if opts.OutputPath != "" {
		n, err := Export(ctx, model, opts.OutputPath, opts.Overwrite)
		if err != nil {
			return nil, err
		}
		result.OutputPath = opts.OutputPath
		result.Bytes = n
	}

	debug.Debug("[app] Resolve workflow completed: name=%s size=%s", result.Name, result.Size)
	return result, nil
}

// Export copies the canonical container behind m to path. The file is
// written next to path first and renamed into place, so a failed export
// never leaves a partial container behind.
func Export(ctx context.Context, m pipeline.ResolvedModel, path string, overwrite bool) (int64, error) {
	entry, ok := m.Content.(*content.EntryHandle)
	if !ok {
		return 0, NewExportError("resolved content is not a canonical container", nil)
	}

	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return 0, NewExportError(fmt.Sprintf("%s already exists", path), os.ErrExist)
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, NewExportError("failed to create output directory", err)
	}

	src, err := entry.Outer().Open(ctx)
	if err != nil {
		return 0, NewExportError("failed to open canonical container", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return 0, NewExportError("failed to create output file", err)
	}
	tmpPath := tmp.Name()

	n, err := io.Copy(tmp, src)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Rename(tmpPath, path)
	}
	if err != nil {
		os.Remove(tmpPath)
		return 0, NewExportError(fmt.Sprintf("failed to write %s", path), err)
	}

	debug.Debug("[app] Exported %d bytes to %s", n, path)
	return n, nil
}

// validateResolveOptions validates resolve options.
func validateResolveOptions(opts ResolveOptions) error {
	if strings.TrimSpace(opts.Reference) == "" {
		return errors.New("reference cannot be empty")
	}
	if opts.OutputPath != "" && strings.HasSuffix(opts.OutputPath, string(filepath.Separator)) {
		return fmt.Errorf("output path must name a file: %s", opts.OutputPath)
	}
	if opts.Config != nil {
		if err := config.Validate(opts.Config); err != nil {
			return err
		}
	}
	return nil
}
