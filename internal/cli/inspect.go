package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tacogips/modelres/internal/app"
	"github.com/tacogips/modelres/internal/archive"
)

// inspectCmd represents the inspect command
var inspectCmd = &cobra.Command{
	Use:   "inspect <archive>",
	Short: "List the entries of a zip archive",
	Long: `List the entries of a zip archive in the order a resolution scans them.

Directories and hidden entries are marked as skipped; they are never probed
as models. Scanning stops at the first damaged entry, which is reported.

Examples:
  modelres inspect furniture.zip
  modelres inspect https://example.com/models/lamp.zip --verify`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

var inspectVerify bool

func init() {
	inspectCmd.Flags().BoolVar(&inspectVerify, FlagVerify, false, DescVerify)
}

func runInspect(cmd *cobra.Command, args []string) error {
	ref := args[0]
	if err := ValidateReference(ref); err != nil {
		return err
	}

	result, err := app.Inspect(cmd.Context(), app.InspectOptions{
		Reference: ref,
		Config:    activeConfig,
		Verify:    inspectVerify,
	})
	if err != nil {
		return err
	}

	printHeader(ref)
	for _, entry := range result.Entries {
		printInfo(formatEntry(entry))
	}
	printInfo("")
	printInfo(fmt.Sprintf("%d entries, %d candidates", len(result.Entries), result.Candidates))

	if result.Corruption != nil {
		printErrorMsg(fmt.Sprintf("Archive is damaged after %d entries", len(result.Entries)))
		return fmt.Errorf("corrupt archive: %w", result.Corruption)
	}
	if inspectVerify {
		printSuccess("All entries readable")
	}
	return nil
}

// formatEntry renders one listing line.
func formatEntry(e archive.Entry) string {
	marker := "      "
	switch {
	case e.IsDir:
		marker = "[dir] "
	case e.IsHidden:
		marker = "[skip]"
	}

	size := "?"
	if e.Size >= 0 {
		size = formatBytes(e.Size)
	}
	method := "store"
	if e.Method == archive.MethodDeflate {
		method = "deflate"
	}
	if e.IsDir {
		return fmt.Sprintf("  %s %s", marker, e.Name)
	}
	return fmt.Sprintf("  %s %-40s %10s  %s", marker, e.Name, size, method)
}
