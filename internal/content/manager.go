package content

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tacogips/modelres/internal/debug"
)

// Manager turns reference strings into handles.
type Manager struct {
	// BaseDir is the directory relative paths are resolved against.
	// If empty, uses the current working directory.
	BaseDir string
	// HTTPClient downloads remote references.
	HTTPClient *http.Client
	// UserAgent is sent with remote requests when non-empty.
	UserAgent string

	temp *TempStore
}

// ManagerConfig holds options for NewManager.
type ManagerConfig struct {
	// BaseDir is the base directory for resolving local paths.
	BaseDir string
	// HTTPTimeout bounds each remote download.
	HTTPTimeout time.Duration
	// UserAgent is sent with remote requests.
	UserAgent string
}

// NewManager creates a manager that spools remote content into temp.
func NewManager(temp *TempStore, cfg ManagerConfig) *Manager {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Manager{
		BaseDir:    cfg.BaseDir,
		HTTPClient: &http.Client{Timeout: timeout},
		UserAgent:  cfg.UserAgent,
		temp:       temp,
	}
}

// TempStore returns the store used for downloads.
func (m *Manager) TempStore() *TempStore {
	return m.temp
}

// Open resolves ref into a handle. Local files are checked for existence;
// remote and nested references are checked lazily when opened.
func (m *Manager) Open(ctx context.Context, ref string) (Handle, error) {
	debug.Debug("[content] Resolving reference: %s", ref)
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, NewInvalidReferenceError("content", ref, "reference cannot be empty")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if outer, entry, ok := SplitNested(ref); ok {
		outerHandle, err := m.Open(ctx, outer)
		if err != nil {
			return nil, err
		}
		debug.Debug("[content] Nested reference: archive=%s entry=%s", outer, entry)
		return NewEntryHandle(outerHandle, entry), nil
	}

	switch {
	case IsRemoteURL(ref):
		if m.temp == nil {
			return nil, NewError(ErrorTempStorage, "http", ref, "no temporary storage for downloads", nil)
		}
		return NewRemoteHandle(ref, m.HTTPClient, m.temp, m.UserAgent), nil
	case strings.HasPrefix(strings.ToLower(ref), "file://"):
		path, err := ParseFileURL(ref)
		if err != nil {
			return nil, NewError(ErrorInvalidReference, "file", ref, "invalid file URL", err)
		}
		return m.openLocal(ref, path)
	case IsURL(ref):
		return nil, NewInvalidReferenceError("content", ref, "unsupported URL scheme")
	default:
		return m.openLocal(ref, ref)
	}
}

func (m *Manager) openLocal(ref, path string) (Handle, error) {
	absPath, err := m.resolvePath(path)
	if err != nil {
		return nil, NewError(ErrorInvalidReference, "file", ref, "failed to resolve path", err)
	}
	debug.Debug("[content] Absolute path: %s", absPath)

	info, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NewNotFoundError("file", ref, err)
		}
		return nil, NewFetchError("file", ref, err)
	}
	if info.IsDir() {
		return nil, NewInvalidReferenceError("file", ref, "reference is a directory")
	}
	return NewFileHandle(absPath), nil
}

// resolvePath resolves a path to an absolute path against BaseDir.
func (m *Manager) resolvePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[2:])
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path), nil
	}
	base := m.BaseDir
	if base == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", err
		}
		base = wd
	}
	return filepath.Abs(filepath.Join(base, path))
}
