// Package debug provides the process-wide diagnostic logger.
//
// Messages go through log/slog so packages can attach structured
// attributes; the handler renders them in a compact "[LEVEL] time msg"
// form on stderr and only colours output when stderr is a terminal.
package debug

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

var (
	mu      sync.RWMutex
	enabled bool
	noColor bool
	out     io.Writer = os.Stderr
	level             = new(slog.LevelVar)
	logger            = slog.New(&consoleHandler{})
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
)

func init() {
	level.Set(slog.LevelWarn)
}

// SetDebug enables or disables debug mode
func SetDebug(enable bool) {
	mu.Lock()
	defer mu.Unlock()
	enabled = enable
	if enable {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelWarn)
	}
}

// IsEnabled returns whether debug mode is enabled
func IsEnabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return enabled
}

// SetNoColor enables or disables colored output
func SetNoColor(disable bool) {
	mu.Lock()
	defer mu.Unlock()
	noColor = disable
}

// SetOutput redirects log output. Colour is only used when w is a terminal.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
}

// Logger returns the structured logger backing this package.
func Logger() *slog.Logger {
	return logger
}

// Debug prints a debug message with timestamp
func Debug(format string, args ...interface{}) {
	if !IsEnabled() {
		return
	}
	logger.Debug(fmt.Sprintf(format, args...))
}

// Debugf is an alias for Debug
func Debugf(format string, args ...interface{}) {
	Debug(format, args...)
}

// DebugSection prints a section header for debug output
func DebugSection(section string) {
	if !IsEnabled() {
		return
	}
	logger.Debug(fmt.Sprintf("=== %s ===", section))
}

// DebugValue prints key=value style debug info
func DebugValue(key string, value interface{}) {
	if !IsEnabled() {
		return
	}
	logger.Debug(fmt.Sprintf("%s = %v", key, value))
}

// DebugJSON prints structured data as JSON for debugging
func DebugJSON(key string, v interface{}) {
	if !IsEnabled() {
		return
	}

	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		Debug("Failed to marshal %s to JSON: %v", key, err)
		return
	}
	logger.Debug(fmt.Sprintf("%s:\n%s", key, string(jsonBytes)))
}

// consoleHandler renders records as "[LEVEL] 15:04:05.000 message k=v".
type consoleHandler struct {
	attrs  []slog.Attr
	groups []string
}

func (h *consoleHandler) Enabled(_ context.Context, l slog.Level) bool {
	return l >= level.Level()
}

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	mu.RLock()
	w := out
	useColor := !noColor && isTerminal(w)
	mu.RUnlock()

	var b strings.Builder
	label, color := levelLabel(r.Level)
	timestamp := r.Time
	if timestamp.IsZero() {
		timestamp = time.Now()
	}
	if useColor {
		fmt.Fprintf(&b, "%s[%s]%s %s%s%s %s", color, label, colorReset,
			colorGray, timestamp.Format("15:04:05.000"), colorReset, r.Message)
	} else {
		fmt.Fprintf(&b, "[%s] %s %s", label, timestamp.Format("15:04:05.000"), r.Message)
	}

	prefix := strings.Join(h.groups, ".")
	writeAttr := func(a slog.Attr) bool {
		if a.Equal(slog.Attr{}) {
			return true
		}
		key := a.Key
		if prefix != "" {
			key = prefix + "." + key
		}
		fmt.Fprintf(&b, " %s=%v", key, a.Value.Resolve())
		return true
	}
	for _, a := range h.attrs {
		writeAttr(a)
	}
	r.Attrs(writeAttr)
	b.WriteByte('\n')

	_, err := io.WriteString(w, b.String())
	return err
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &consoleHandler{groups: h.groups}
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return next
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &consoleHandler{
		attrs:  h.attrs,
		groups: append(append([]string{}, h.groups...), name),
	}
}

func levelLabel(l slog.Level) (string, string) {
	switch {
	case l >= slog.LevelError:
		return "ERROR", colorRed
	case l >= slog.LevelWarn:
		return "WARN", colorYellow
	case l >= slog.LevelInfo:
		return "INFO", colorCyan
	default:
		return "DEBUG", colorCyan
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
