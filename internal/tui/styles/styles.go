// Package styles holds the lipgloss styles of the terminal clients.
package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles is a full style set derived from one palette.
type Styles struct {
	Palette *ColorPalette

	Title      lipgloss.Style
	Subtitle   lipgloss.Style
	Persona    lipgloss.Style
	Muted      lipgloss.Style
	Text       lipgloss.Style
	Warning    lipgloss.Style
	Error      lipgloss.Style
	Success    lipgloss.Style
	OpinionBox lipgloss.Style
	Scorecard  lipgloss.Style
	StatusBar  lipgloss.Style
	HelpKey    lipgloss.Style
	HelpDesc   lipgloss.Style
	Prompt     lipgloss.Style
}

// New builds the style set for p. A nil palette uses the default theme.
func New(p *ColorPalette) *Styles {
	if p == nil {
		p = DefaultPalette()
	}
	return &Styles{
		Palette: p,
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Primary),
		Subtitle: lipgloss.NewStyle().
			Foreground(p.Muted).
			Italic(true),
		Persona: lipgloss.NewStyle().
			Bold(true).
			Foreground(p.Primary),
		Muted:   lipgloss.NewStyle().Foreground(p.Muted),
		Text:    lipgloss.NewStyle().Foreground(p.Text),
		Warning: lipgloss.NewStyle().Foreground(p.Warning),
		Error:   lipgloss.NewStyle().Foreground(p.Error).Bold(true),
		Success: lipgloss.NewStyle().Foreground(p.Secondary),
		OpinionBox: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Border).
			Padding(0, 1),
		Scorecard: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.Primary).
			Padding(0, 1),
		StatusBar: lipgloss.NewStyle().
			Foreground(p.Text).
			Background(p.Surface).
			Padding(0, 1),
		HelpKey: lipgloss.NewStyle().
			Foreground(p.Secondary).
			Bold(true),
		HelpDesc: lipgloss.NewStyle().Foreground(p.Muted),
		Prompt:   lipgloss.NewStyle().Foreground(p.Primary).Bold(true),
	}
}

// ToneColor returns the color for a discussion tone; unknown tones are muted.
func (s *Styles) ToneColor(tone string) lipgloss.Color {
	switch tone {
	case "agree":
		return s.Palette.ToneAgree
	case "challenge":
		return s.Palette.ToneChallenge
	case "build":
		return s.Palette.ToneBuild
	case "question":
		return s.Palette.ToneQuestion
	default:
		return s.Palette.Muted
	}
}

// ToneIcon returns a one-character marker for a discussion tone.
func ToneIcon(tone string) string {
	switch tone {
	case "agree":
		return "+"
	case "challenge":
		return "!"
	case "build":
		return ">"
	case "question":
		return "?"
	default:
		return "·"
	}
}

// ScoreBar renders current/limit as a bar width cells wide, colored by how
// full it is.
func (s *Styles) ScoreBar(current, limit, width int) string {
	if width <= 0 {
		return ""
	}
	filled := 0
	if limit > 0 {
		filled = min(max(current, 0)*width/limit, width)
	}
	color := s.Palette.ScoreLow
	switch ratio := float64(current) / float64(max(limit, 1)); {
	case ratio >= 0.7:
		color = s.Palette.ScoreHigh
	case ratio >= 0.4:
		color = s.Palette.ScoreMid
	}
	bar := lipgloss.NewStyle().Foreground(color).Render(strings.Repeat("█", filled))
	return bar + s.Muted.Render(strings.Repeat("░", width-filled))
}
