package pipeline

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tacogips/modelres/internal/archive"
	"github.com/tacogips/modelres/internal/content"
	"github.com/tacogips/modelres/internal/loader"
)

const cubeOBJ = `mtllib mats/cube.mtl
v 0 0 0
v 2 0 0
v 2 1 0
v 0 1 0
v 0 0 3
v 2 0 3
v 2 1 3
v 0 1 3
vt 0 0
usemtl wood
f 1/1 2/1 3/1 4/1
f 5 6 7 8
`

const cubeMTL = `newmtl wood
Kd 0.8 0.6 0.4
map_Kd ../textures/wood.png
`

const triangleOBJ = "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"

// manualExecutor queues tasks until the test runs them.
type manualExecutor struct {
	mu    sync.Mutex
	tasks []func()
}

func (e *manualExecutor) Submit(task func()) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.tasks = append(e.tasks, task)
	return nil
}

// RunNext runs the oldest queued task and reports whether there was one.
func (e *manualExecutor) RunNext() bool {
	e.mu.Lock()
	if len(e.tasks) == 0 {
		e.mu.Unlock()
		return false
	}
	task := e.tasks[0]
	e.tasks = e.tasks[1:]
	e.mu.Unlock()
	task()
	return true
}

func (e *manualExecutor) RunAll() {
	for e.RunNext() {
	}
}

// busyRecorder records busy indicator transitions.
type busyRecorder struct {
	mu          sync.Mutex
	transitions []bool
}

func (b *busyRecorder) SetBusy(busy bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.transitions = append(b.transitions, busy)
}

func (b *busyRecorder) Transitions() []bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]bool(nil), b.transitions...)
}

// outcomes collects the callbacks of one request.
type outcomes struct {
	successes []ResolvedModel
	failures  []*Failure
}

func (o *outcomes) onSuccess(m ResolvedModel) { o.successes = append(o.successes, m) }
func (o *outcomes) onFailure(f *Failure)      { o.failures = append(o.failures, f) }

func (o *outcomes) calls() int { return len(o.successes) + len(o.failures) }

type harness struct {
	t        *testing.T
	dir      string
	exec     *manualExecutor
	loop     *EventLoop
	busy     *busyRecorder
	scans    *atomic.Int32
	resolver *Resolver
}

func newHarness(t *testing.T, configure ...func(*Config)) *harness {
	t.Helper()
	dir := t.TempDir()
	temp, err := content.NewTempStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { temp.Close() })

	h := &harness{
		t:     t,
		dir:   dir,
		exec:  &manualExecutor{},
		loop:  NewEventLoop(),
		busy:  &busyRecorder{},
		scans: &atomic.Int32{},
	}
	cfg := Config{
		Content:    content.NewManager(temp, content.ManagerConfig{BaseDir: dir}),
		Temp:       temp,
		Dispatcher: h.loop,
		Loader:     loader.NewCache(loader.NewObjLoader()),
		Executor:   h.exec,
		Busy:       h.busy,
		NewScanner: func(r io.Reader) EntryScanner {
			h.scans.Add(1)
			return archive.NewScanner(r)
		},
	}
	for _, fn := range configure {
		fn(&cfg)
	}
	h.resolver, err = NewResolver(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { h.resolver.Close() })
	return h
}

func (h *harness) resolve(ref string) *outcomes {
	o := &outcomes{}
	h.resolver.Resolve(Reference(ref), o.onSuccess, o.onFailure)
	return o
}

// settle runs every queued task and then every posted delivery.
func (h *harness) settle() {
	h.exec.RunAll()
	h.loop.Drain()
}

func (h *harness) writeFile(name string, data []byte) string {
	h.t.Helper()
	return writeFile(h.t, h.dir, name, data)
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, data, 0o644))
	return p
}

type zipFile struct {
	name string
	data string
}

func buildZip(t *testing.T, files ...zipFile) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, f := range files {
		fw, err := w.CreateHeader(&zip.FileHeader{Name: f.name, Method: zip.Deflate})
		require.NoError(t, err)
		_, err = fw.Write([]byte(f.data))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf.Bytes()
}

// writeCube lays out cube.obj with a material library and a texture in
// sibling directories.
func (h *harness) writeCube(name string) string {
	h.t.Helper()
	p := h.writeFile(name, []byte(cubeOBJ))
	h.writeFile("mats/cube.mtl", []byte(cubeMTL))
	h.writeFile("textures/wood.png", []byte("PNG-WOOD"))
	return p
}

// readCanonical returns the entries of the zip behind a resolved model,
// read with the standard library reader.
func readCanonical(t *testing.T, m ResolvedModel) map[string]string {
	t.Helper()
	entry, ok := m.Content.(*content.EntryHandle)
	require.True(t, ok, "content should address an archive entry, got %T", m.Content)
	file, ok := entry.Outer().(*content.FileHandle)
	require.True(t, ok)

	zr, err := zip.OpenReader(file.Path())
	require.NoError(t, err)
	defer zr.Close()

	files := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		data, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		files[f.Name] = string(data)
	}
	return files
}
