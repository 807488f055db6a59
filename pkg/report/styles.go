package report

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Palette adapts to terminal capabilities via lipgloss.
var (
	colorGreen   = lipgloss.Color("42")
	colorRed     = lipgloss.Color("196")
	colorYellow  = lipgloss.Color("214")
	colorMagenta = lipgloss.Color("201")
	colorDim     = lipgloss.Color("240")
)

// styles are bound to the renderer of the output writer, so colors are
// dropped when writing to a file or a pipe.
type styles struct {
	id      lipgloss.Style
	pad     lipgloss.Style
	passed  lipgloss.Style
	failed  lipgloss.Style
	skipped lipgloss.Style
	issue   lipgloss.Style
	points  lipgloss.Style
	summary lipgloss.Style
	warn    lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		id:      r.NewStyle().Bold(true),
		pad:     r.NewStyle().Foreground(colorDim),
		passed:  r.NewStyle().Foreground(colorGreen),
		failed:  r.NewStyle().Foreground(colorRed).Bold(true),
		skipped: r.NewStyle().Foreground(colorYellow),
		issue:   r.NewStyle().Foreground(colorMagenta),
		points:  r.NewStyle().Faint(true),
		summary: r.NewStyle().Bold(true),
		warn:    r.NewStyle().Foreground(colorYellow).Bold(true),
	}
}
