package content

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
)

// NestedSeparator separates an archive location from an entry path in a
// nested reference, e.g. "models/chair.zip!/chair/model.obj".
const NestedSeparator = "!/"

// IsURL reports whether ref has a URL scheme such as "http://" or "file://".
func IsURL(ref string) bool {
	i := strings.Index(ref, "://")
	if i <= 0 {
		return false
	}
	for _, c := range ref[:i] {
		if !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '+' || c == '-' || c == '.') {
			return false
		}
	}
	return true
}

// IsRemoteURL reports whether ref is an http or https URL.
func IsRemoteURL(ref string) bool {
	lower := strings.ToLower(ref)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// ParseFileURL extracts the local path from a file:// URL.
func ParseFileURL(ref string) (string, error) {
	if !strings.HasPrefix(strings.ToLower(ref), "file://") {
		return "", fmt.Errorf("not a file URL: %s", ref)
	}
	u, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid file URL: %w", err)
	}
	if u.Host != "" && u.Host != "localhost" {
		return "", fmt.Errorf("file URL with remote host is not supported: %s", ref)
	}
	if u.Path == "" {
		return "", fmt.Errorf("file URL has no path: %s", ref)
	}
	return filepath.FromSlash(u.Path), nil
}

// SplitNested splits a nested reference into its archive location and entry
// path. ok is false when ref does not address an archive entry.
func SplitNested(ref string) (outer, entry string, ok bool) {
	i := strings.Index(ref, NestedSeparator)
	if i <= 0 {
		return "", "", false
	}
	outer = ref[:i]
	entry = ref[i+len(NestedSeparator):]
	if entry == "" {
		return "", "", false
	}
	return outer, entry, true
}

// JoinNested builds the nested reference of entry inside the archive at outer.
func JoinNested(outer, entry string) string {
	return outer + NestedSeparator + entry
}
