package output

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// Styles holds the lipgloss styles used in text mode.
type Styles struct {
	Header1  lipgloss.Style
	Header2  lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Muted    lipgloss.Style
	Identity lipgloss.Style
	Kind     lipgloss.Style
}

// NewStyles builds styles bound to w. Non-terminal writers get plain styles
// so no escape codes leak into files or pipes.
func NewStyles(w io.Writer, isTTY bool) *Styles {
	lr := lipgloss.NewRenderer(w)
	if !isTTY {
		plain := lr.NewStyle()
		return &Styles{
			Header1: plain, Header2: plain, Success: plain, Warning: plain,
			Error: plain, Muted: plain, Identity: plain, Kind: plain,
		}
	}

	return &Styles{
		Header1:  lr.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Header2:  lr.NewStyle().Bold(true),
		Success:  lr.NewStyle().Foreground(lipgloss.Color("10")),
		Warning:  lr.NewStyle().Foreground(lipgloss.Color("11")),
		Error:    lr.NewStyle().Foreground(lipgloss.Color("9")),
		Muted:    lr.NewStyle().Foreground(lipgloss.Color("8")),
		Identity: lr.NewStyle().Foreground(lipgloss.Color("14")),
		Kind:     lr.NewStyle().Italic(true),
	}
}
