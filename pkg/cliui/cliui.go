// Package cliui holds the terminal styling shared by the cometx commands:
// status marks, step spinners, width-aware truncation and markdown answers.
package cliui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/ansi"
	"golang.org/x/term"
)

var (
	SuccessMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")

	DimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	KeyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("75")).Bold(true)
	ValueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	NameStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("213")).Bold(true)
	HeaderStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	WarnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)

	UserPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	AssistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("comet> ")

	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
)

var spinnerFrames = []string{"⣾", "⣽", "⣻", "⢿", "⡿", "⣟", "⣯", "⣷"}

const spinnerInterval = 80 * time.Millisecond

// Step runs fn while showing msg, then prints a ✓ or ✗ with the elapsed
// time. The spinner only animates when w is a terminal; piped output gets
// the final line alone.
func Step(w io.Writer, msg string, fn func() error) error {
	var stop func()
	if f, ok := w.(*os.File); ok && IsTerminal(f) {
		stop = spin(w, msg)
	}

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	if stop != nil {
		stop()
	}
	fmt.Fprintf(w, "\r  %s %s %s\n", Mark(err), msg,
		DimStyle.Render("("+FormatDuration(elapsed)+")"))
	return err
}

// spin draws spinner frames on w until the returned func is called.
func spin(w io.Writer, msg string) func() {
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Go(func() {
		ticker := time.NewTicker(spinnerInterval)
		defer ticker.Stop()
		for frame := 0; ; frame++ {
			fmt.Fprintf(w, "\r  %s %s", spinnerStyle.Render(spinnerFrames[frame%len(spinnerFrames)]), msg)
			select {
			case <-done:
				return
			case <-ticker.C:
			}
		}
	})
	return func() {
		close(done)
		wg.Wait()
	}
}

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

// Truncate shortens s to at most width terminal cells, appending "…" when
// it cuts. Escape sequences and wide runes are measured correctly.
func Truncate(s string, width int) string {
	return ansi.Truncate(s, width, "…")
}

// Width is the display width of s in terminal cells.
func Width(s string) int {
	return ansi.StringWidth(s)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// Wrap width bounds for rendered answers.
const (
	minMarkdownWidth = 40
	maxMarkdownWidth = 100
)

// RenderMarkdown renders an assistant answer for the terminal. Lines wrap at
// the width of stdout, clamped to a readable range. On failure the content is
// returned unchanged with the error.
func RenderMarkdown(content string) (string, error) {
	width := maxMarkdownWidth
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
		width = min(max(w-4, minMarkdownWidth), maxMarkdownWidth)
	}

	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content, err
	}

	rendered, err := r.Render(content)
	if err != nil {
		return content, err
	}
	return rendered, nil
}
