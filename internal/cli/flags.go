package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/tacogips/modelres/internal/content"
	"github.com/tacogips/modelres/internal/naming"
)

// Common flag names and descriptions
const (
	// Flag names
	FlagOutput     = "output"
	FlagConfig     = "config"
	FlagForce      = "force"
	FlagName       = "name"
	FlagMaxEntries = "max-entries"
	FlagVerify     = "verify"
	FlagVerbose    = "verbose"
	FlagNoColor    = "no-color"
	FlagQuiet      = "quiet"
	FlagDebug      = "debug"

	// Flag descriptions
	DescOutput     = "Write the canonical container to this file"
	DescConfig     = "Path to config file"
	DescForce      = "Overwrite the output file without asking"
	DescName       = "Display name for the resolved model"
	DescMaxEntries = "Maximum archive entries to probe (0 = unlimited)"
	DescVerify     = "Read every entry's data to check checksums"
	DescVerbose    = "Verbose output"
	DescNoColor    = "Disable colored output"
	DescQuiet      = "Suppress output"
	DescDebug      = "Enable debug logging"
)

// ValidateReference checks that ref is something the content layer can open.
func ValidateReference(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return fmt.Errorf("reference cannot be empty")
	}
	outer := ref
	if o, _, ok := content.SplitNested(ref); ok {
		outer = o
	}
	if content.IsURL(outer) && !content.IsRemoteURL(outer) && !strings.HasPrefix(strings.ToLower(outer), "file://") {
		return fmt.Errorf("unsupported URL scheme: %s", ref)
	}
	return nil
}

// ValidateOutputPath validates the output file path
func ValidateOutputPath(path string) error {
	if path == "" {
		return fmt.Errorf("output path cannot be empty")
	}
	if strings.HasSuffix(path, "/") || strings.HasSuffix(path, string(filepath.Separator)) {
		return fmt.Errorf("output path must name a file: %s", path)
	}
	return nil
}

// defaultOutputPath derives "<name>.zip" from a model name.
func defaultOutputPath(name string) string {
	return naming.SanitizeBaseName(strings.TrimSpace(name)) + ".zip"
}
