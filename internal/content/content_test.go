package content

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
	return p
}

func writeZip(t *testing.T, dir, name string, files map[string]string, order ...string) string {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, n := range order {
		fw, err := w.Create(n)
		require.NoError(t, err)
		_, err = fw.Write([]byte(files[n]))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return writeFile(t, dir, name, buf.String())
}

func readAll(t *testing.T, h Handle) string {
	t.Helper()
	rc, err := h.Open(context.Background())
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

func newTestManager(t *testing.T, base string) *Manager {
	t.Helper()
	temp, err := NewTempStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { temp.Close() })
	return NewManager(temp, ManagerConfig{BaseDir: base})
}

func TestManager_OpenLocal(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "models/chair.obj", "v 0 0 0\n")
	m := newTestManager(t, dir)

	tests := []struct {
		name string
		ref  string
	}{
		{name: "relative path", ref: "models/chair.obj"},
		{name: "absolute path", ref: p},
		{name: "file URL", ref: "file://" + filepath.ToSlash(p)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := m.Open(context.Background(), tt.ref)
			require.NoError(t, err)
			assert.Equal(t, "chair.obj", h.Name())
			assert.Equal(t, p, h.Key())
			assert.Equal(t, "v 0 0 0\n", readAll(t, h))
		})
	}
}

func TestManager_OpenErrors(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "folder"), 0o755))
	m := newTestManager(t, dir)

	tests := []struct {
		name string
		ref  string
		typ  ErrorType
	}{
		{name: "empty", ref: "  ", typ: ErrorInvalidReference},
		{name: "missing file", ref: "nope.obj", typ: ErrorNotFound},
		{name: "directory", ref: "folder", typ: ErrorInvalidReference},
		{name: "unknown scheme", ref: "ftp://example.com/a.obj", typ: ErrorInvalidReference},
		{name: "remote file URL", ref: "file://server/share/a.obj", typ: ErrorInvalidReference},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Open(context.Background(), tt.ref)
			require.Error(t, err)
			var cErr *Error
			require.ErrorAs(t, err, &cErr)
			assert.Equal(t, tt.typ, cErr.Type)
		})
	}
}

func TestFileHandle_ReopenIndependently(t *testing.T) {
	dir := t.TempDir()
	h := NewFileHandle(writeFile(t, dir, "a.obj", "content"))

	first, err := h.Open(context.Background())
	require.NoError(t, err)
	defer first.Close()
	second, err := h.Open(context.Background())
	require.NoError(t, err)
	defer second.Close()

	b1, err := io.ReadAll(first)
	require.NoError(t, err)
	b2, err := io.ReadAll(second)
	require.NoError(t, err)
	assert.Equal(t, b1, b2)
}

func TestFileHandle_Sibling(t *testing.T) {
	dir := t.TempDir()
	h := NewFileHandle(writeFile(t, dir, "models/chair.obj", "v"))
	writeFile(t, dir, "models/tex/wood.png", "png")

	sib, err := h.Sibling("tex\\wood.png")
	require.NoError(t, err)
	assert.Equal(t, "png", readAll(t, sib))

	_, err = h.Sibling("http://example.com/a.png")
	assert.Error(t, err)
	_, err = h.Sibling("")
	assert.Error(t, err)
}

func TestEntryHandle(t *testing.T) {
	dir := t.TempDir()
	files := map[string]string{
		"chair/model.obj":    "v 1 2 3\n",
		"chair/model.mtl":    "newmtl wood\n",
		"chair/tex/wood.png": "png",
	}
	zipPath := writeZip(t, dir, "chair.zip", files, "chair/model.obj", "chair/model.mtl", "chair/tex/wood.png")
	m := newTestManager(t, dir)

	h, err := m.Open(context.Background(), "chair.zip!/chair/model.obj")
	require.NoError(t, err)
	assert.Equal(t, "model.obj", h.Name())
	assert.Equal(t, zipPath+"!/chair/model.obj", h.Key())
	assert.Equal(t, "v 1 2 3\n", readAll(t, h))
	assert.Equal(t, "v 1 2 3\n", readAll(t, h), "entry handles are re-openable")

	mtl, err := h.Sibling("model.mtl")
	require.NoError(t, err)
	assert.Equal(t, "newmtl wood\n", readAll(t, mtl))

	tex, err := mtl.Sibling("tex/wood.png")
	require.NoError(t, err)
	assert.Equal(t, "png", readAll(t, tex))

	_, err = h.Sibling("../../outside.png")
	assert.Error(t, err)

	missing, err := h.Sibling("missing.mtl")
	require.NoError(t, err)
	_, err = missing.Open(context.Background())
	assert.True(t, IsNotFound(err), "got %v", err)
}

func TestEntryHandleAt_DuplicateNames(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, data := range []string{"first", "second"} {
		fw, err := w.Create("m.obj")
		require.NoError(t, err)
		_, err = fw.Write([]byte(data))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	outer := NewFileHandle(writeFile(t, dir, "dupes.zip", buf.String()))

	first := NewEntryHandleAt(outer, "m.obj", 0)
	second := NewEntryHandleAt(outer, "m.obj", 1)
	assert.Equal(t, "first", readAll(t, first))
	assert.Equal(t, "second", readAll(t, second))
	assert.NotEqual(t, first.Key(), second.Key())
	assert.Equal(t, "m.obj", second.Name())
	assert.Equal(t, "first", readAll(t, NewEntryHandle(outer, "m.obj")))

	_, err := NewEntryHandleAt(outer, "other.obj", 1).Open(context.Background())
	assert.True(t, IsNotFound(err), "got %v", err)
}

func TestRemoteHandle_DownloadsOnce(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/models/chair.obj":
			hits.Add(1)
			assert.Equal(t, "modelres-test", r.Header.Get("User-Agent"))
			io.WriteString(w, "v 0 0 0\n")
		case "/models/my%20chair.mtl", "/models/my chair.mtl":
			io.WriteString(w, "newmtl a\n")
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	temp, err := NewTempStore(t.TempDir())
	require.NoError(t, err)
	defer temp.Close()
	m := NewManager(temp, ManagerConfig{UserAgent: "modelres-test"})

	h, err := m.Open(context.Background(), srv.URL+"/models/chair.obj")
	require.NoError(t, err)
	assert.Equal(t, "chair.obj", h.Name())
	assert.Equal(t, "v 0 0 0\n", readAll(t, h))
	assert.Equal(t, "v 0 0 0\n", readAll(t, h))
	assert.Equal(t, int32(1), hits.Load())

	sib, err := h.Sibling("my chair.mtl")
	require.NoError(t, err)
	assert.Equal(t, "newmtl a\n", readAll(t, sib))

	missing, err := h.Sibling("missing.mtl")
	require.NoError(t, err)
	_, err = missing.Open(context.Background())
	assert.True(t, IsNotFound(err), "got %v", err)
}

func TestRemoteHandle_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := newTestManager(t, "")
	h, err := m.Open(context.Background(), srv.URL+"/a.obj")
	require.NoError(t, err)
	_, err = h.Open(context.Background())
	var cErr *Error
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, ErrorFetch, cErr.Type)
}

func TestTempStore_Close(t *testing.T) {
	temp, err := NewTempStore(t.TempDir())
	require.NoError(t, err)

	f, err := temp.Create("canonical-*.zip")
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.FileExists(t, f.Name())

	require.NoError(t, temp.Close())
	require.NoError(t, temp.Close())
	assert.NoDirExists(t, temp.Dir())

	_, err = temp.Create("x-*")
	assert.Error(t, err)
}

func TestSplitNested(t *testing.T) {
	tests := []struct {
		ref       string
		outer     string
		entry     string
		wantFound bool
	}{
		{ref: "a.zip!/b/c.obj", outer: "a.zip", entry: "b/c.obj", wantFound: true},
		{ref: "http://x/a.zip!/c.obj", outer: "http://x/a.zip", entry: "c.obj", wantFound: true},
		{ref: "a.zip!/", wantFound: false},
		{ref: "plain.obj", wantFound: false},
	}
	for _, tt := range tests {
		outer, entry, ok := SplitNested(tt.ref)
		assert.Equal(t, tt.wantFound, ok, tt.ref)
		assert.Equal(t, tt.outer, outer, tt.ref)
		assert.Equal(t, tt.entry, entry, tt.ref)
		if ok {
			assert.Equal(t, tt.ref, JoinNested(outer, entry))
		}
	}
}
