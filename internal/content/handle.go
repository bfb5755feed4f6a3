// Package content resolves model references into re-openable byte sources.
package content

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tacogips/modelres/internal/archive"
)

// Handle is a re-openable byte source. Every call to Open returns an
// independent reader, so a handle may be opened any number of times,
// concurrently.
type Handle interface {
	// Open returns a fresh reader over the content.
	Open(ctx context.Context) (io.ReadCloser, error)
	// Name returns the last path segment of the content's location.
	Name() string
	// Key returns the canonical location string, usable as a reference.
	Key() string
	// Sibling resolves a path relative to this handle's location.
	Sibling(rel string) (Handle, error)
}

// FileHandle addresses a local file.
type FileHandle struct {
	path string
}

// NewFileHandle creates a handle on the file at path.
func NewFileHandle(path string) *FileHandle {
	return &FileHandle{path: filepath.Clean(path)}
}

// Path returns the file system path of the handle.
func (h *FileHandle) Path() string {
	return h.path
}

// Open opens the file.
func (h *FileHandle) Open(ctx context.Context) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(h.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NewNotFoundError("file", h.path, err)
		}
		return nil, NewFetchError("file", h.path, err)
	}
	return f, nil
}

// Name returns the file name.
func (h *FileHandle) Name() string {
	return filepath.Base(h.path)
}

// Key returns the file path.
func (h *FileHandle) Key() string {
	return h.path
}

// Sibling resolves rel against the file's directory.
func (h *FileHandle) Sibling(rel string) (Handle, error) {
	rel = normalizeRelative(rel)
	if rel == "" || path.IsAbs(rel) || IsURL(rel) {
		return nil, NewInvalidReferenceError("file", rel, "sibling must be a relative path")
	}
	return NewFileHandle(filepath.Join(filepath.Dir(h.path), filepath.FromSlash(rel))), nil
}

// EntryHandle addresses one entry inside a zip archive. Each Open rescans
// the outer content up to the entry.
type EntryHandle struct {
	outer Handle
	entry string
	index int
}

// NewEntryHandle creates a handle on the first entry called entry inside the
// archive at outer.
func NewEntryHandle(outer Handle, entry string) *EntryHandle {
	return &EntryHandle{outer: outer, entry: entry, index: -1}
}

// NewEntryHandleAt creates a handle on the entry at physical position index.
// entry must be that entry's name; it is checked on Open.
func NewEntryHandleAt(outer Handle, entry string, index int) *EntryHandle {
	return &EntryHandle{outer: outer, entry: entry, index: index}
}

// Outer returns the handle of the enclosing archive.
func (h *EntryHandle) Outer() Handle {
	return h.outer
}

// Entry returns the entry path within the archive.
func (h *EntryHandle) Entry() string {
	return h.entry
}

// Open scans the archive and returns a reader positioned on the entry data.
func (h *EntryHandle) Open(ctx context.Context) (io.ReadCloser, error) {
	rc, err := h.outer.Open(ctx)
	if err != nil {
		return nil, err
	}
	var (
		data  io.Reader
		found archive.Entry
	)
	if h.index < 0 {
		data, found, err = archive.Find(rc, h.entry)
	} else {
		data, found, err = archive.FindIndex(rc, h.index)
		if err == nil && found.Name != h.entry {
			rc.Close()
			return nil, NewNotFoundError("entry", h.Key(), fmt.Errorf("entry #%d is now %q", h.index, found.Name))
		}
	}
	if err != nil {
		rc.Close()
		if archive.IsType(err, archive.ErrorEntryNotFound) {
			return nil, NewNotFoundError("entry", h.Key(), err)
		}
		return nil, err
	}
	return &entryReader{Reader: data, closer: rc}, nil
}

// Name returns the last segment of the entry path.
func (h *EntryHandle) Name() string {
	return path.Base(h.entry)
}

// Key returns the nested reference of the entry. Index-addressed handles
// carry the position so duplicate names stay distinct.
func (h *EntryHandle) Key() string {
	key := JoinNested(h.outer.Key(), h.entry)
	if h.index >= 0 {
		key += "#" + strconv.Itoa(h.index)
	}
	return key
}

// Sibling resolves rel against the entry's directory within the same archive.
func (h *EntryHandle) Sibling(rel string) (Handle, error) {
	rel = normalizeRelative(rel)
	if rel == "" || path.IsAbs(rel) || IsURL(rel) {
		return nil, NewInvalidReferenceError("entry", rel, "sibling must be a relative path")
	}
	joined := path.Join(path.Dir(h.entry), rel)
	if joined == ".." || strings.HasPrefix(joined, "../") {
		return nil, NewInvalidReferenceError("entry", JoinNested(h.outer.Key(), joined), "path escapes the archive")
	}
	return NewEntryHandle(h.outer, joined), nil
}

type entryReader struct {
	io.Reader
	closer io.Closer
}

func (r *entryReader) Close() error {
	return r.closer.Close()
}

func normalizeRelative(rel string) string {
	rel = strings.TrimSpace(rel)
	return strings.ReplaceAll(rel, "\\", "/")
}
