package ui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Banner printed at the top of interactive commands
const Banner = `
 ┌─┐ tweetvault
 │▓│ media archive for liked posts
 └─┘`

var (
	cyanStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	yellowStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	redStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	greenStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	magentaStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// Color functions for terminal output
var (
	Cyan    = render(cyanStyle)
	Yellow  = render(yellowStyle)
	Red     = render(redStyle)
	Green   = render(greenStyle)
	Magenta = render(magentaStyle)
	Dim     = render(dimStyle)
)

func render(style lipgloss.Style) func(string) string {
	return func(text string) string {
		return style.Render(text)
	}
}

// Printer writes styled one-line messages. Quiet suppresses everything
// except errors.
type Printer struct {
	Out   io.Writer
	Quiet bool
}

func (p Printer) Banner() {
	if !p.Quiet {
		fmt.Fprintln(p.Out, Cyan(Banner))
	}
}

func (p Printer) Error(format string, args ...interface{}) {
	fmt.Fprintln(p.Out, Red(fmt.Sprintf(format, args...)))
}

func (p Printer) Success(format string, args ...interface{}) {
	if !p.Quiet {
		fmt.Fprintln(p.Out, Green(fmt.Sprintf(format, args...)))
	}
}

func (p Printer) Warning(format string, args ...interface{}) {
	if !p.Quiet {
		fmt.Fprintln(p.Out, Yellow(fmt.Sprintf(format, args...)))
	}
}

// Info prints "label: value"
func (p Printer) Info(label, value string) {
	if !p.Quiet {
		fmt.Fprintf(p.Out, "%s: %s\n", Cyan(label), Yellow(value))
	}
}

func (p Printer) Highlight(msg string) {
	if !p.Quiet {
		fmt.Fprintln(p.Out, Magenta(msg))
	}
}
