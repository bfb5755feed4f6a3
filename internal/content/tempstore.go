package content

import (
	"fmt"
	"os"
	"sync"

	"github.com/tacogips/modelres/internal/debug"
)

// TempStore hands out temporary files under a private directory and removes
// all of them on Close.
type TempStore struct {
	mu     sync.Mutex
	dir    string
	closed bool
}

// NewTempStore creates a store in a fresh directory under parent. An empty
// parent uses the OS temporary directory.
func NewTempStore(parent string) (*TempStore, error) {
	dir, err := os.MkdirTemp(parent, "modelres-*")
	if err != nil {
		return nil, NewError(ErrorTempStorage, "temp", parent, "failed to create temp directory", err)
	}
	debug.Debug("[temp] Created store at %s", dir)
	return &TempStore{dir: dir}, nil
}

// Dir returns the store directory.
func (s *TempStore) Dir() string {
	return s.dir
}

// Create creates a new temporary file whose name follows pattern, as in
// os.CreateTemp. The caller owns the returned file and must close it.
func (s *TempStore) Create(pattern string) (*os.File, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, NewError(ErrorTempStorage, "temp", pattern, "temp store is closed", nil)
	}
	f, err := os.CreateTemp(s.dir, pattern)
	if err != nil {
		return nil, NewError(ErrorTempStorage, "temp", pattern, "failed to create temp file", err)
	}
	return f, nil
}

// Remove deletes one file created by the store.
func (s *TempStore) Remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		debug.Debug("[temp] Failed to remove %s: %v", path, err)
	}
}

// Close removes the store directory and everything in it. It is safe to
// call more than once.
func (s *TempStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := os.RemoveAll(s.dir); err != nil {
		return fmt.Errorf("failed to remove temp directory %s: %w", s.dir, err)
	}
	debug.Debug("[temp] Removed store at %s", s.dir)
	return nil
}
