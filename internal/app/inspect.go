package app

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/tacogips/modelres/internal/archive"
	"github.com/tacogips/modelres/internal/config"
	"github.com/tacogips/modelres/internal/content"
	"github.com/tacogips/modelres/internal/debug"
)

// InspectOptions contains options for listing an archive.
type InspectOptions struct {
	// Reference locates the archive; any reference Resolve accepts works.
	Reference string
	// Config supplies content settings. Nil means defaults.
	Config *config.Config
	// BaseDir anchors relative references.
	BaseDir string
	// Verify reads every entry's data so checksums are checked.
	Verify bool
}

// InspectResult lists the entries found before the scan ended.
type InspectResult struct {
	// Entries holds every entry in physical order, skipped ones included.
	Entries []archive.Entry
	// Candidates is the number of entries a resolution would probe.
	Candidates int
	// Corruption is the error that stopped the scan early, if any.
	Corruption error
}

// Inspect walks the archive behind opts.Reference. A damaged entry table is
// reported in the result rather than as an error, so the entries read
// before it stay visible.
func Inspect(ctx context.Context, opts InspectOptions) (*InspectResult, error) {
	debug.DebugSection("[app] Inspect workflow start")
	debug.DebugValue("[app] Reference", opts.Reference)

	if strings.TrimSpace(opts.Reference) == "" {
		return nil, NewValidationError("invalid inspect options", errors.New("reference cannot be empty"))
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
	defer temp.Close()

	manager := content.NewManager(temp, content.ManagerConfig{
		BaseDir:     opts.BaseDir,
		HTTPTimeout: cfg.Content.HTTPTimeout,
		UserAgent:   cfg.Content.UserAgent,
	})
	h, err := manager.Open(ctx, opts.Reference)
	if err != nil {
		return nil, NewInspectError("failed to open reference", err)
	}
	rc, err := h.Open(ctx)
	if err != nil {
		return nil, NewInspectError("failed to read reference", err)
	}
	defer rc.Close()

	result := &InspectResult{}
	scanner := archive.NewScanner(rc)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, err := scanner.NextAny()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if archive.IsNotArchive(err) {
				return nil, NewInspectError(opts.Reference+" is not a zip archive", err)
			}
			result.Corruption = err
			break
		}

		if opts.Verify && !entry.IsDir {
			if err := drain(scanner); err != nil {
				result.Entries = append(result.Entries, entry)
				result.Corruption = err
				break
			}
		}

		result.Entries = append(result.Entries, entry)
		if !entry.Skipped() {
			result.Candidates++
		}
	}

	debug.Debug("[app] Inspect completed: entries=%d candidates=%d corrupt=%v",
		len(result.Entries), result.Candidates, result.Corruption != nil)
	return result, nil
}

func drain(s *archive.Scanner) error {
	r, err := s.Open()
	if err != nil {
		return err
	}
	_, err = io.Copy(io.Discard, r)
	return err
}
