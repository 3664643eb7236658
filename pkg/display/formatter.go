package display

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

const timeLayout = "2006-01-02 15:04"

// New creates a new formatter based on configuration.
func New(cfg Config) Formatter {
	if cfg.Format == "" {
		cfg.Format = FormatTable
	}

	switch cfg.Format {
	case FormatJSON:
		return &jsonFormatter{config: cfg}
	case FormatSimple:
		return &simpleFormatter{config: cfg}
	default:
		return &tableFormatter{config: cfg}
	}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd())) // nolint:gosec
}

// formatNumber formats a number with thousand separators.
func formatNumber(n int) string {
	return humanize.Comma(int64(n))
}

// formatCost formats a USD amount with two decimals and separators.
func formatCost(f float64) string {
	return "$" + humanize.FormatFloat("#,###.##", f)
}

// formatFloat formats a float with the given precision.
func formatFloat(f float64, precision int) string {
	return humanize.CommafWithDigits(f, precision)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}

// styles holds the lipgloss styles bound to one writer.
type styles struct {
	title  lipgloss.Style
	header lipgloss.Style
	active lipgloss.Style
	muted  lipgloss.Style
}

func newStyles(w io.Writer, color bool) styles {
	r := lipgloss.NewRenderer(w)
	if !color {
		plain := r.NewStyle()
		return styles{title: plain, header: plain, active: plain, muted: plain}
	}

	return styles{
		title:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("13")),
		header: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		active: r.NewStyle().Foreground(lipgloss.Color("10")),
		muted:  r.NewStyle().Faint(true),
	}
}

// writeHeader writes a section title.
func writeHeader(w io.Writer, st styles, title string, compact bool) error {
	if compact {
		_, err := fmt.Fprintln(w, st.title.Render(title))
		return err
	}

	_, err := fmt.Fprintf(w, "\n%s\n%s\n\n", st.title.Render(title), strings.Repeat("=", len(title)))
	return err
}
