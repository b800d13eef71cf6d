// Package logging provides the structured logger shared by every command,
// plus the log groups that fold subprocess output in CI.
//
// Log lines use log/slog's text format on stderr. Group headers and status
// lines are styled with lipgloss when stderr is a colour-capable terminal,
// and rendered as GitHub Actions workflow commands when running on Actions.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Logger is a slog.Logger that also knows how to open and close log groups.
type Logger struct {
	*slog.Logger

	out    io.Writer
	ci     bool
	header lipgloss.Style
	ok     lipgloss.Style
	failed lipgloss.Style
}

// New creates a Logger writing to w. When verbose is true, Debug records
// are emitted as well.
func New(w io.Writer, verbose bool) *Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	renderer := lipgloss.NewRenderer(w)
	if !ColorEnabled(w) {
		renderer.SetColorProfile(termenv.Ascii)
	}

	return &Logger{
		Logger: slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})),
		out:    w,
		ci:     os.Getenv("GITHUB_ACTIONS") == "true",
		header: renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		ok:     renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("10")),
		failed: renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
	}
}

// Discard returns a Logger that drops everything. Tests use it.
func Discard() *Logger {
	return New(io.Discard, false)
}

// Group opens a named log group and returns the function closing it.
//
//	defer log.Group("Lint")()
func (l *Logger) Group(title string) func() {
	if l.ci {
		fmt.Fprintf(l.out, "::group::%s\n", title)
		return func() { fmt.Fprintln(l.out, "::endgroup::") }
	}
	fmt.Fprintln(l.out, l.header.Render("==> "+title))
	return func() {}
}

// Success prints a highlighted success line.
func (l *Logger) Success(msg string) {
	fmt.Fprintln(l.out, l.ok.Render("✓ "+msg))
}

// Failure prints a highlighted failure line.
func (l *Logger) Failure(msg string) {
	fmt.Fprintln(l.out, l.failed.Render("✗ "+msg))
}

// ColorEnabled reports whether w is a terminal that should receive ANSI
// colours. NO_COLOR disables colours regardless of the terminal.
func ColorEnabled(w io.Writer) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// FormatDuration renders d as HH:MM:SS, truncating sub-second precision.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	seconds := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", seconds/3600, (seconds/60)%60, seconds%60)
}
