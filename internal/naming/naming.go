// Package naming derives presentation and file names from model references.
package naming

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/tacogips/modelres/internal/content"
)

// FallbackBaseName replaces base names that contain disallowed characters.
const FallbackBaseName = "model"

var (
	safeBaseName = regexp.MustCompile(`^[A-Za-z0-9_. \-]+$`)
	separatorRun = regexp.MustCompile(`[_\-\s]+`)
)

// LastSegment returns the final path segment of ref. For nested references
// it is the last segment of the entry path; for URLs the query and
// fragment are dropped and the segment is unescaped.
func LastSegment(ref string) string {
	ref = strings.TrimSpace(ref)
	if _, entry, ok := content.SplitNested(ref); ok {
		ref = entry
	} else if content.IsURL(ref) {
		if u, err := url.Parse(ref); err == nil {
			ref = u.Path
		}
	}
	ref = strings.ReplaceAll(ref, "\\", "/")
	ref = strings.TrimRight(ref, "/")
	segment := path.Base(ref)
	if unescaped, err := url.PathUnescape(segment); err == nil {
		segment = unescaped
	}
	if segment == "." || segment == "/" {
		return ""
	}
	return segment
}

// BaseName returns the last segment of ref without its extension.
func BaseName(ref string) string {
	segment := LastSegment(ref)
	if ext := path.Ext(segment); ext != "" && len(ext) < len(segment) {
		segment = strings.TrimSuffix(segment, ext)
	}
	return segment
}

// DisplayName returns a human-readable default name for ref: the base name
// with underscore, hyphen and whitespace runs turned into single spaces and
// the first letter upper-cased.
func DisplayName(ref string) string {
	name := strings.TrimSpace(separatorRun.ReplaceAllString(BaseName(ref), " "))
	if name == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + name[size:]
}

// SanitizeBaseName returns name when it only uses letters, digits,
// underscore, dot, hyphen and space and does not start with a dot, and
// FallbackBaseName otherwise. Dot-prefixed names would be skipped as hidden
// entries by the archive scanner.
func SanitizeBaseName(name string) string {
	if !safeBaseName.MatchString(name) || strings.HasPrefix(name, ".") {
		return FallbackBaseName
	}
	return name
}
