// Package build exposes build-time information for the modelres binary.
// The version comes from the embedded VERSION file unless overridden via
// ldflags; commit and date are only known for release builds.
package build

import (
	_ "embed"
	"runtime/debug"
	"strings"
)

//go:embed VERSION
var embeddedVersion string

// Overridable via ldflags, for example:
// -X github.com/tacogips/modelres/internal/build.version=x.y.z
// -X github.com/tacogips/modelres/internal/build.commit=abc1234
var (
	version string
	commit  string
	date    string
)

// Version returns the application version.
// Priority: ldflags > embedded VERSION file
func Version() string {
	if version != "" {
		return version
	}
	return strings.TrimSpace(embeddedVersion)
}

// Commit returns the VCS revision the binary was built from, falling back to
// the toolchain's embedded build settings and then "unknown".
func Commit() string {
	if commit != "" {
		return commit
	}
	if rev := vcsSetting("vcs.revision"); rev != "" {
		if len(rev) > 12 {
			rev = rev[:12]
		}
		return rev
	}
	return "unknown"
}

// Date returns the build date, or "unknown".
func Date() string {
	if date != "" {
		return date
	}
	if t := vcsSetting("vcs.time"); t != "" {
		return t
	}
	return "unknown"
}

func vcsSetting(key string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return ""
	}
	for _, s := range info.Settings {
		if s.Key == key {
			return s.Value
		}
	}
	return ""
}
