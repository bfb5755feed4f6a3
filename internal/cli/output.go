package cli

import (
	"fmt"
	"io"
	"os"
)

// ANSI color codes
const (
	colorReset   = "\033[0m"
	colorRed     = "\033[31m"
	colorGreen   = "\033[32m"
	colorYellow  = "\033[33m"
	colorBlue    = "\033[34m"
	colorMagenta = "\033[35m"
	colorGray    = "\033[90m"
)

// Destinations for command output; tests swap them for buffers.
var (
	out    io.Writer = os.Stdout
	errOut io.Writer = os.Stderr
)

// printMarked writes "<mark> msg", colouring the mark unless colour is off.
func printMarked(w io.Writer, color, mark, msg string) {
	if globalNoColor {
		fmt.Fprintf(w, "%s %s\n", mark, msg)
		return
	}
	fmt.Fprintf(w, "%s%s%s %s\n", color, mark, colorReset, msg)
}

func printInfo(msg string) {
	if globalQuiet {
		return
	}
	fmt.Fprintln(out, msg)
}

func printSuccess(msg string) {
	if !globalQuiet {
		printMarked(out, colorGreen, "✓", msg)
	}
}

func printWarning(msg string) {
	if !globalQuiet {
		printMarked(out, colorYellow, "⚠", msg)
	}
}

// printErrorMsg is shown even in quiet mode.
func printErrorMsg(msg string) {
	printMarked(errOut, colorRed, "✗", msg)
}

// printVerbose prints only when verbose is set.
func printVerbose(verbose bool, msg string) {
	if verbose && !globalQuiet {
		printMarked(out, colorGray, "[VERBOSE]", msg)
	}
}

func printProgress(msg string) {
	if !globalQuiet {
		printMarked(out, colorBlue, "→", msg)
	}
}

// formatBytes formats bytes as human-readable string
func formatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// printHeader prints a section header
func printHeader(title string) {
	if globalQuiet {
		return
	}
	fmt.Fprintln(out)
	printMarked(out, colorMagenta, "===", title)
}
