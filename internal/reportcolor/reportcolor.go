// Package reportcolor decides whether ANSI color is emitted and provides
// the small lipgloss-based palette the formatter and footer use, scoped to
// the handful of tags this runner prints.
package reportcolor

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"golang.org/x/term"
)

// Policy is the resolved value of --gtest_color.
type Policy struct {
	enabled bool

	green  lipgloss.Style
	red    lipgloss.Style
	yellow lipgloss.Style
}

// Resolve applies --gtest_color=yes|no|auto (§6). "auto" enables color only
// when stdout is a terminal: both golang.org/x/term's IsTerminal and
// mattn/go-isatty agree before trusting an unusual descriptor (e.g. a pty
// wrapper one of the two mishandles).
func Resolve(mode string, out *os.File) Policy {
	var enabled bool
	switch mode {
	case "yes":
		enabled = true
	case "no":
		enabled = false
	default:
		fd := out.Fd()
		enabled = term.IsTerminal(int(fd)) && isatty.IsTerminal(fd)
	}

	return Policy{
		enabled: enabled,
		green:   lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		red:     lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true),
		yellow:  lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true),
	}
}

// Enabled reports whether color output is active.
func (p Policy) Enabled() bool { return p.enabled }

// Green wraps s in the success color, used for [==========], [ PASS ], and
// the OK tag.
func (p Policy) Green(s string) string { return p.render(p.green, s) }

// Red wraps s in the failure color, used for FAILED/TIMEOUT/XPASS tags and
// the FAIL/TIMEOUT/XPASS section headers.
func (p Policy) Red(s string) string { return p.render(p.red, s) }

// Yellow wraps s in the warning color, used for the SLOW section and the
// disabled-tests notice.
func (p Policy) Yellow(s string) string { return p.render(p.yellow, s) }

func (p Policy) render(style lipgloss.Style, s string) string {
	if !p.enabled {
		return s
	}
	return style.Render(s)
}
