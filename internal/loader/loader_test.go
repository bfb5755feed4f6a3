package loader

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tacogips/modelres/internal/content"
)

const cubeOBJ = `# unit cube
mtllib cube.mtl
o cube
v 0 0 0
v 2 0 0
v 2 1 0
v 0 1 0
v 0 0 3
v 2 0 3
v 2 1 3
v 0 1 3
vt 0 0
vn 0 0 1
usemtl wood
f 1/1/1 2/1/1 3/1/1 4/1/1
f 5//1 6//1 7//1 8//1
f -4 -3 -2
`

const cubeMTL = `newmtl wood
Kd 0.8 0.6 0.4
map_Kd -s 1 1 1 textures/wood.png
bump textures/wood_bump.png
map_Ks textures/missing.png
`

func writeFile(t *testing.T, dir, name, data string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(data), 0o644))
	return p
}

func TestObjLoader_LoadWithCompanions(t *testing.T) {
	dir := t.TempDir()
	objPath := writeFile(t, dir, "cube.obj", cubeOBJ)
	writeFile(t, dir, "cube.mtl", cubeMTL)
	writeFile(t, dir, "textures/wood.png", "PNGDATA")
	writeFile(t, dir, "textures/wood_bump.png", "BUMPDATA")

	m, err := NewObjLoader().Load(context.Background(), content.NewFileHandle(objPath))
	require.NoError(t, err)

	assert.Equal(t, 8, m.Vertices)
	assert.Equal(t, 3, m.Elements)
	require.Len(t, m.Libraries, 1)
	assert.Equal(t, "cube.mtl", m.Libraries[0].Ref)
	require.Len(t, m.Textures, 2, "missing textures are skipped")
	assert.Equal(t, "textures/wood.png", m.Textures[0].Ref)
	assert.Equal(t, "PNGDATA", string(m.Textures[0].Data))

	size, err := Measure(m)
	require.NoError(t, err)
	assert.Equal(t, Size{Width: 2, Height: 1, Depth: 3}, size)
}

func TestObjLoader_MissingLibraryIsSkipped(t *testing.T) {
	dir := t.TempDir()
	objPath := writeFile(t, dir, "tri.obj", "mtllib nope.mtl\nv 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n")

	m, err := NewObjLoader().Load(context.Background(), content.NewFileHandle(objPath))
	require.NoError(t, err)
	assert.Empty(t, m.Libraries)
}

func TestObjLoader_EmptyModel(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "zero bytes", data: ""},
		{name: "comments only", data: "# nothing here\n\n"},
		{name: "vertices without faces", data: "v 0 0 0\nv 1 1 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeFile(t, t.TempDir(), "empty.obj", tt.data)
			m, err := NewObjLoader().Load(context.Background(), content.NewFileHandle(p))
			require.NoError(t, err)
			_, err = Measure(m)
			assert.ErrorIs(t, err, ErrEmptyModel)
		})
	}
}

func TestObjLoader_FormatErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "binary", data: "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"},
		{name: "prose", data: "Hello, this is a readme.\n"},
		{name: "bad vertex", data: "v 1 two 3\n"},
		{name: "short face", data: "v 0 0 0\nv 1 0 0\nf 1 2\n"},
		{name: "zero index", data: "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 0 1 2\n"},
		{name: "index out of range", data: "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 9\n"},
		{name: "relative index out of range", data: "v 0 0 0\nf -1 -2 -3\n"},
		{name: "malformed reference", data: "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1/2/3/4 2 3\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := writeFile(t, t.TempDir(), "bad.obj", tt.data)
			_, err := NewObjLoader().Load(context.Background(), content.NewFileHandle(p))
			require.Error(t, err)
			assert.True(t, IsFormatError(err), "got %v", err)
		})
	}
}

func TestObjLoader_LineContinuation(t *testing.T) {
	p := writeFile(t, t.TempDir(), "cont.obj", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 \\\n2 3\n")
	m, err := NewObjLoader().Load(context.Background(), content.NewFileHandle(p))
	require.NoError(t, err)
	assert.Equal(t, 1, m.Elements)
}

type failingHandle struct {
	err error
}

func (h failingHandle) Open(context.Context) (io.ReadCloser, error) { return nil, h.err }
func (h failingHandle) Name() string                                { return "broken.obj" }
func (h failingHandle) Key() string                                 { return "broken.obj" }
func (h failingHandle) Sibling(string) (content.Handle, error)      { return nil, h.err }

func TestObjLoader_ReadErrorIsNotFormatError(t *testing.T) {
	ioErr := errors.New("disk on fire")
	_, err := NewObjLoader().Load(context.Background(), failingHandle{err: ioErr})
	require.ErrorIs(t, err, ioErr)
	assert.False(t, IsFormatError(err))
}

type countingReader struct {
	calls atomic.Int32
	delay time.Duration
}

func (r *countingReader) Load(ctx context.Context, h content.Handle) (*Model, error) {
	r.calls.Add(1)
	time.Sleep(r.delay)
	return &Model{Source: h.Key(), Elements: 1, Bounds: Box{Max: [3]float64{1, 1, 1}}}, nil
}

func TestCache_LoadCached(t *testing.T) {
	reader := &countingReader{}
	c := NewCache(reader)
	h := content.NewFileHandle("/models/a.obj")

	m1, err := c.LoadCached(context.Background(), h)
	require.NoError(t, err)
	m2, err := c.LoadCached(context.Background(), h)
	require.NoError(t, err)
	assert.Same(t, m1, m2)
	assert.Equal(t, int32(1), reader.calls.Load())

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)

	_, err = c.Load(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, int32(2), reader.calls.Load(), "Load bypasses the cache")

	c.Forget(h.Key())
	assert.Equal(t, 0, c.Len())
}

func TestCache_ConcurrentLoadsAreCoalesced(t *testing.T) {
	reader := &countingReader{delay: 50 * time.Millisecond}
	c := NewCache(reader)
	h := content.NewFileHandle("/models/b.obj")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.LoadCached(context.Background(), h)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, reader.calls.Load(), int32(8))
	assert.Equal(t, 1, c.Len())
}

// gatedReader blocks every load until release is closed or the load's own
// context ends.
type gatedReader struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func newGatedReader() *gatedReader {
	return &gatedReader{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (r *gatedReader) Load(ctx context.Context, h content.Handle) (*Model, error) {
	r.calls.Add(1)
	select {
	case r.started <- struct{}{}:
	default:
	}
	select {
	case <-r.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &Model{Source: h.Key(), Elements: 1}, nil
}

func TestCache_CancelledCallerDoesNotFailJoinedCaller(t *testing.T) {
	reader := newGatedReader()
	c := NewCache(reader)
	h := content.NewFileHandle("/models/shared.obj")

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.LoadCached(ctxA, h)
		errA <- err
	}()
	<-reader.started

	type outcome struct {
		m   *Model
		err error
	}
	resB := make(chan outcome, 1)
	go func() {
		m, err := c.LoadCached(context.Background(), h)
		resB <- outcome{m, err}
	}()

	cancelA()
	select {
	case err := <-errA:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Cancelled caller kept waiting on the shared load")
	}

	close(reader.release)
	select {
	case got := <-resB:
		require.NoError(t, got.err)
		assert.Equal(t, h.Key(), got.m.Source)
	case <-time.After(2 * time.Second):
		t.Fatal("Joined caller never received the model")
	}
	assert.Equal(t, 1, c.Len())
}

type cancelOnceReader struct {
	calls atomic.Int32
}

func (r *cancelOnceReader) Load(ctx context.Context, h content.Handle) (*Model, error) {
	if r.calls.Add(1) == 1 {
		return nil, context.Canceled
	}
	return &Model{Source: h.Key(), Elements: 1}, nil
}

func TestCache_RetriesForeignCancellation(t *testing.T) {
	reader := &cancelOnceReader{}
	c := NewCache(reader)
	h := content.NewFileHandle("/models/retry.obj")

	m, err := c.LoadCached(context.Background(), h)
	require.NoError(t, err)
	assert.Equal(t, h.Key(), m.Source)
	assert.Equal(t, int32(2), reader.calls.Load())
}

func TestParseTextureRefs(t *testing.T) {
	refs := parseTextureRefs([]byte(cubeMTL + "refl -type sphere env.jpg\nMAP_KA upper.png\n"))
	assert.Equal(t, []string{"textures/wood.png", "textures/wood_bump.png", "textures/missing.png", "env.jpg", "upper.png"}, refs)
	assert.False(t, strings.Contains(strings.Join(refs, " "), "-s"))
}
