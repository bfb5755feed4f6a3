package loader

import (
	"bufio"
	"bytes"
	"strings"
)

// RewriteLibraries returns OBJ text with every mtllib argument replaced by
// rename(lib). Arguments for which rename reports false are dropped, and an
// mtllib statement left without arguments is removed. Other lines are kept
// byte for byte, except that line endings become "\n".
func RewriteLibraries(data []byte, rename func(lib string) (string, bool)) []byte {
	var (
		out      bytes.Buffer
		physical []string
	)
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for sc.Scan() {
		raw := strings.TrimSuffix(sc.Text(), "\r")
		physical = append(physical, raw)
		if strings.HasSuffix(raw, "\\") {
			continue
		}
		logical := joinContinued(physical)
		fields := strings.Fields(stripComment(logical))
		if len(fields) > 0 && fields[0] == "mtllib" {
			var kept []string
			for _, lib := range fields[1:] {
				if name, ok := rename(lib); ok {
					kept = append(kept, name)
				}
			}
			if len(kept) > 0 {
				out.WriteString("mtllib " + strings.Join(kept, " ") + "\n")
			}
		} else {
			for _, line := range physical {
				out.WriteString(line + "\n")
			}
		}
		physical = physical[:0]
	}
	for _, line := range physical {
		out.WriteString(line + "\n")
	}
	return out.Bytes()
}

// RewriteTextures returns MTL text with the image argument of every texture
// statement replaced by rename(ref). Statements whose reference rename
// reports false for are dropped.
func RewriteTextures(data []byte, rename func(ref string) (string, bool)) []byte {
	var out bytes.Buffer
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSuffix(sc.Text(), "\r")
		fields := strings.Fields(line)
		if len(fields) >= 2 && isTextureStatement(fields[0]) {
			name, ok := rename(fields[len(fields)-1])
			if !ok {
				continue
			}
			fields[len(fields)-1] = name
			line = strings.Join(fields, " ")
		}
		out.WriteString(line + "\n")
	}
	return out.Bytes()
}

func isTextureStatement(keyword string) bool {
	keyword = strings.ToLower(keyword)
	return strings.HasPrefix(keyword, "map_") || textureStatements[keyword]
}

func joinContinued(lines []string) string {
	var b strings.Builder
	for i, line := range lines {
		if i < len(lines)-1 {
			b.WriteString(strings.TrimSuffix(line, "\\") + " ")
			continue
		}
		b.WriteString(line)
	}
	return b.String()
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}
