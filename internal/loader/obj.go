package loader

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tacogips/modelres/internal/content"
	"github.com/tacogips/modelres/internal/debug"
)

// ignoredStatements are valid OBJ statements that carry no data this
// loader needs.
var ignoredStatements = map[string]bool{
	"g": true, "o": true, "s": true, "usemtl": true, "mg": true,
	"maplib": true, "usemap": true, "lod": true, "bevel": true,
	"c_interp": true, "d_interp": true, "shadow_obj": true, "trace_obj": true,
	"cstype": true, "deg": true, "bmat": true, "step": true, "curv": true,
	"curv2": true, "surf": true, "parm": true, "trim": true, "hole": true,
	"scrv": true, "sp": true, "end": true, "con": true, "call": true, "csh": true,
}

// textureStatements are MTL statements whose last argument names an image.
var textureStatements = map[string]bool{
	"bump": true, "disp": true, "decal": true, "refl": true,
}

// ObjLoader reads Wavefront OBJ models and their MTL material libraries.
type ObjLoader struct{}

// NewObjLoader creates a new ObjLoader.
func NewObjLoader() *ObjLoader {
	return &ObjLoader{}
}

// Load reads the OBJ file behind h and every material library and texture
// it references. Missing companion files are skipped; any other read error
// is returned unchanged so callers can tell it apart from a FormatError.
func (l *ObjLoader) Load(ctx context.Context, h content.Handle) (*Model, error) {
	debug.Debug("[obj] Loading %s", h.Key())
	data, err := readHandle(ctx, h)
	if err != nil {
		return nil, err
	}
	if isBinaryContent(data) || !utf8.Valid(data) {
		return nil, newFormatError(h.Key(), 0, "content is not OBJ text", nil)
	}

	m := &Model{
		Source:   h.Key(),
		Geometry: data,
		Bounds:   EmptyBox(),
	}
	libs, err := parseGeometry(h.Key(), data, m)
	if err != nil {
		return nil, err
	}

	seenTextures := make(map[string]bool)
	for _, ref := range libs {
		libHandle, err := h.Sibling(ref)
		if err != nil {
			debug.Debug("[obj] Skipping material library %q: %v", ref, err)
			continue
		}
		libData, err := readHandle(ctx, libHandle)
		if content.IsNotFound(err) {
			debug.Debug("[obj] Material library %q not found, skipping", ref)
			continue
		}
		if err != nil {
			return nil, err
		}
		m.Libraries = append(m.Libraries, Resource{Ref: ref, Data: libData})

		for _, texRef := range parseTextureRefs(libData) {
			if seenTextures[texRef] {
				continue
			}
			seenTextures[texRef] = true
			texHandle, err := libHandle.Sibling(texRef)
			if err != nil {
				debug.Debug("[obj] Skipping texture %q: %v", texRef, err)
				continue
			}
			texData, err := readHandle(ctx, texHandle)
			if content.IsNotFound(err) {
				debug.Debug("[obj] Texture %q not found, skipping", texRef)
				continue
			}
			if err != nil {
				return nil, err
			}
			m.Textures = append(m.Textures, Resource{Ref: texRef, Data: texData})
		}
	}

	debug.Debug("[obj] Loaded %s: %d vertices, %d elements, %d libraries, %d textures",
		h.Key(), m.Vertices, m.Elements, len(m.Libraries), len(m.Textures))
	return m, nil
}

// parseGeometry validates OBJ statements, fills counts and bounds in m and
// returns the material libraries in order of appearance.
func parseGeometry(source string, data []byte, m *Model) ([]string, error) {
	var (
		libs      []string
		seenLibs  = make(map[string]bool)
		texCoords int
		normals   int
		maxRef    [3]int
		lineNo    int
		pending   string
	)

	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lineNo++
		line := pending + sc.Text()
		pending = ""
		if strings.HasSuffix(line, "\\") {
			pending = strings.TrimSuffix(line, "\\") + " "
			continue
		}
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		keyword, args := fields[0], fields[1:]
		switch keyword {
		case "v":
			p, err := parseFloats(args, 3, 4)
			if err != nil {
				return nil, newFormatError(source, lineNo, "invalid vertex", err)
			}
			m.Vertices++
			m.Bounds.Extend([3]float64{p[0], p[1], p[2]})
		case "vt":
			if _, err := parseFloats(args, 1, 3); err != nil {
				return nil, newFormatError(source, lineNo, "invalid texture coordinate", err)
			}
			texCoords++
		case "vn":
			if _, err := parseFloats(args, 3, 3); err != nil {
				return nil, newFormatError(source, lineNo, "invalid normal", err)
			}
			normals++
		case "vp":
			if _, err := parseFloats(args, 1, 3); err != nil {
				return nil, newFormatError(source, lineNo, "invalid parameter vertex", err)
			}
		case "f", "l", "p":
			minRefs := map[string]int{"f": 3, "l": 2, "p": 1}[keyword]
			if len(args) < minRefs {
				return nil, newFormatError(source, lineNo,
					fmt.Sprintf("%q needs at least %d vertices", keyword, minRefs), nil)
			}
			counts := [3]int{m.Vertices, texCoords, normals}
			for _, arg := range args {
				if err := checkVertexRef(arg, counts, &maxRef); err != nil {
					return nil, newFormatError(source, lineNo, "invalid vertex reference", err)
				}
			}
			m.Elements++
		case "mtllib":
			if len(args) == 0 {
				return nil, newFormatError(source, lineNo, "mtllib without file name", nil)
			}
			for _, lib := range args {
				if !seenLibs[lib] {
					seenLibs[lib] = true
					libs = append(libs, lib)
				}
			}
		default:
			if !ignoredStatements[keyword] {
				return nil, newFormatError(source, lineNo,
					fmt.Sprintf("unknown statement %q", keyword), nil)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, newFormatError(source, lineNo, "line too long", err)
	}

	// Forward references are legal; they only have to exist by the end.
	final := [3]int{m.Vertices, texCoords, normals}
	for i := range 3 {
		if maxRef[i] > final[i] {
			return nil, newFormatError(source, 0,
				fmt.Sprintf("index %d is out of range", maxRef[i]), nil)
		}
	}
	return libs, nil
}

// checkVertexRef validates one "v", "v/vt", "v//vn" or "v/vt/vn" reference.
// Negative indices are relative to the elements defined so far.
func checkVertexRef(ref string, counts [3]int, maxRef *[3]int) error {
	parts := strings.Split(ref, "/")
	if len(parts) > 3 || parts[0] == "" {
		return fmt.Errorf("malformed reference %q", ref)
	}
	for i, part := range parts {
		if part == "" {
			continue
		}
		idx, err := strconv.Atoi(part)
		if err != nil {
			return fmt.Errorf("malformed reference %q: %w", ref, err)
		}
		switch {
		case idx == 0:
			return fmt.Errorf("index 0 in reference %q", ref)
		case idx < 0:
			if -idx > counts[i] {
				return fmt.Errorf("relative index %d is out of range", idx)
			}
		case idx > maxRef[i]:
			maxRef[i] = idx
		}
	}
	return nil
}

func parseFloats(args []string, minCount, maxCount int) ([]float64, error) {
	if len(args) < minCount || len(args) > maxCount {
		return nil, fmt.Errorf("expected %d to %d numbers, got %d", minCount, maxCount, len(args))
	}
	values := make([]float64, len(args))
	for i, a := range args {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, err
		}
		values[i] = f
	}
	return values, nil
}

// parseTextureRefs returns the image files an MTL library references.
func parseTextureRefs(data []byte) []string {
	var refs []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		if isTextureStatement(fields[0]) {
			refs = append(refs, fields[len(fields)-1])
		}
	}
	return refs
}

func readHandle(ctx context.Context, h content.Handle) ([]byte, error) {
	rc, err := h.Open(ctx)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", h.Key(), err)
	}
	return data, nil
}

// isBinaryContent checks the first 512 bytes for null bytes.
func isBinaryContent(data []byte) bool {
	size := min(len(data), 512)
	return bytes.IndexByte(data[:size], 0) >= 0
}
