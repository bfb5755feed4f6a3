package pipeline

import (
	"archive/zip"
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/tacogips/modelres/internal/content"
	"github.com/tacogips/modelres/internal/debug"
	"github.com/tacogips/modelres/internal/loader"
	"github.com/tacogips/modelres/internal/naming"
)

// Canonicalizer repackages a loaded model as a zip holding one OBJ file and
// the material libraries and textures it references, all at the top level.
type Canonicalizer struct {
	temp *content.TempStore
	now  func() time.Time
}

// NewCanonicalizer creates a canonicalizer writing into temp.
func NewCanonicalizer(temp *content.TempStore) *Canonicalizer {
	return &Canonicalizer{temp: temp, now: time.Now}
}

// Canonicalize writes m to a temporary zip whose primary entry is named
// after suggestedBaseName, sanitized. The returned model addresses that
// entry. The temporary file is removed when writing fails.
func (c *Canonicalizer) Canonicalize(ctx context.Context, m *loader.Model, suggestedBaseName string) (ResolvedModel, error) {
	if err := ctx.Err(); err != nil {
		return ResolvedModel{}, err
	}
	size, err := loader.Measure(m)
	if err != nil {
		return ResolvedModel{}, err
	}

	base := naming.SanitizeBaseName(suggestedBaseName)
	primary := base + ".obj"
	files := c.layout(m, primary)

	f, err := c.temp.Create(base + "-*.zip")
	if err != nil {
		return ResolvedModel{}, err
	}
	zipPath := f.Name()

	if err := c.write(f, files); err != nil {
		f.Close()
		c.temp.Remove(zipPath)
		return ResolvedModel{}, fmt.Errorf("failed to write canonical archive %s: %w", zipPath, err)
	}
	if err := f.Close(); err != nil {
		c.temp.Remove(zipPath)
		return ResolvedModel{}, fmt.Errorf("failed to close canonical archive %s: %w", zipPath, err)
	}

	debug.Debug("[canonical] Wrote %s (%d files) for %s", zipPath, len(files), m.Source)
	return ResolvedModel{
		Content: content.NewEntryHandle(content.NewFileHandle(zipPath), primary),
		Size:    size,
		Name:    base,
	}, nil
}

type archiveFile struct {
	name string
	data []byte
}

// layout flattens every resource to a unique top-level name and rewrites
// the references to match.
func (c *Canonicalizer) layout(m *loader.Model, primary string) []archiveFile {
	names := newFlatNames(primary)

	libNames := make(map[string]string, len(m.Libraries))
	for _, lib := range m.Libraries {
		libNames[lib.Ref] = names.assign(lib.Ref)
	}
	texNames := make(map[string]string, len(m.Textures))
	for _, tex := range m.Textures {
		texNames[tex.Ref] = names.assign(tex.Ref)
	}

	files := []archiveFile{{
		name: primary,
		data: loader.RewriteLibraries(m.Geometry, lookup(libNames)),
	}}
	for _, lib := range m.Libraries {
		files = append(files, archiveFile{
			name: libNames[lib.Ref],
			data: loader.RewriteTextures(lib.Data, lookup(texNames)),
		})
	}
	for _, tex := range m.Textures {
		files = append(files, archiveFile{name: texNames[tex.Ref], data: tex.Data})
	}
	return files
}

func (c *Canonicalizer) write(f *os.File, files []archiveFile) error {
	zw := zip.NewWriter(f)
	modified := c.now()
	for _, file := range files {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     file.name,
			Method:   zip.Deflate,
			Modified: modified,
		})
		if err != nil {
			return err
		}
		if _, err := w.Write(file.data); err != nil {
			return err
		}
	}
	return zw.Close()
}

func lookup(names map[string]string) func(string) (string, bool) {
	return func(ref string) (string, bool) {
		name, ok := names[ref]
		return name, ok
	}
}

// flatNames hands out top-level entry names, unique regardless of case.
type flatNames struct {
	used map[string]bool
}

func newFlatNames(reserved ...string) *flatNames {
	f := &flatNames{used: make(map[string]bool)}
	for _, name := range reserved {
		f.used[strings.ToLower(name)] = true
	}
	return f
}

func (f *flatNames) assign(ref string) string {
	// Leading dots would hide the entry from the archive scanner.
	name := strings.TrimLeft(path.Base(strings.ReplaceAll(ref, "\\", "/")), ".")
	if name == "" || name == "/" {
		name = "resource"
	}
	ext := path.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 2; f.used[strings.ToLower(candidate)]; i++ {
		candidate = fmt.Sprintf("%s_%d%s", stem, i, ext)
	}
	f.used[strings.ToLower(candidate)] = true
	return candidate
}
