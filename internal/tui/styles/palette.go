package styles

import (
	"slices"

	"github.com/charmbracelet/lipgloss"
)

// ThemeName represents a named color theme.
type ThemeName string

// Available theme names.
const (
	ThemeDefault       ThemeName = "default"        // Violet/green dark theme
	ThemeDracula       ThemeName = "dracula"        // Dracula theme colors
	ThemeNord          ThemeName = "nord"           // Nord theme - cool blue-gray
	ThemeSolarizedDark ThemeName = "solarized-dark" // Solarized Dark by Ethan Schoonover
)

// BuiltinThemes returns all built-in theme names.
func BuiltinThemes() []string {
	return []string{
		string(ThemeDefault),
		string(ThemeDracula),
		string(ThemeNord),
		string(ThemeSolarizedDark),
	}
}

// IsBuiltinTheme reports whether name is a built-in theme.
func IsBuiltinTheme(name string) bool {
	return slices.Contains(BuiltinThemes(), name)
}

// ColorPalette defines the color scheme for a theme.
type ColorPalette struct {
	// Primary accent color (titles, persona names)
	Primary lipgloss.Color
	// Secondary accent color (success, agreement)
	Secondary lipgloss.Color
	// Warning color (rejections, degraded turns)
	Warning lipgloss.Color
	// Error color (failed turns)
	Error lipgloss.Color
	// Muted color (de-emphasized text)
	Muted lipgloss.Color
	// Surface color (status bar background)
	Surface lipgloss.Color
	// Text color (primary text)
	Text lipgloss.Color
	// Border color (panel borders)
	Border lipgloss.Color

	// Discussion tone colors
	ToneAgree     lipgloss.Color
	ToneChallenge lipgloss.Color
	ToneBuild     lipgloss.Color
	ToneQuestion  lipgloss.Color

	// Score bar colors by fill ratio
	ScoreLow  lipgloss.Color
	ScoreMid  lipgloss.Color
	ScoreHigh lipgloss.Color
}

// DefaultPalette returns the default violet/green dark theme palette.
func DefaultPalette() *ColorPalette {
	return &ColorPalette{
		Primary:   lipgloss.Color("#A78BFA"), // Purple (violet-400)
		Secondary: lipgloss.Color("#10B981"), // Green
		Warning:   lipgloss.Color("#F59E0B"), // Amber
		Error:     lipgloss.Color("#F87171"), // Red (red-400)
		Muted:     lipgloss.Color("#9CA3AF"), // Gray
		Surface:   lipgloss.Color("#1F2937"), // Dark surface
		Text:      lipgloss.Color("#F9FAFB"), // Light text
		Border:    lipgloss.Color("#6B7280"), // Gray-500

		ToneAgree:     lipgloss.Color("#10B981"),
		ToneChallenge: lipgloss.Color("#FB923C"),
		ToneBuild:     lipgloss.Color("#60A5FA"),
		ToneQuestion:  lipgloss.Color("#FBBF24"),

		ScoreLow:  lipgloss.Color("#F87171"),
		ScoreMid:  lipgloss.Color("#FBBF24"),
		ScoreHigh: lipgloss.Color("#10B981"),
	}
}

// DraculaPalette returns the Dracula theme palette.
func DraculaPalette() *ColorPalette {
	return &ColorPalette{
		Primary:   lipgloss.Color("#BD93F9"),
		Secondary: lipgloss.Color("#50FA7B"),
		Warning:   lipgloss.Color("#FFB86C"),
		Error:     lipgloss.Color("#FF5555"),
		Muted:     lipgloss.Color("#6272A4"),
		Surface:   lipgloss.Color("#282A36"),
		Text:      lipgloss.Color("#F8F8F2"),
		Border:    lipgloss.Color("#44475A"),

		ToneAgree:     lipgloss.Color("#50FA7B"),
		ToneChallenge: lipgloss.Color("#FF79C6"),
		ToneBuild:     lipgloss.Color("#8BE9FD"),
		ToneQuestion:  lipgloss.Color("#F1FA8C"),

		ScoreLow:  lipgloss.Color("#FF5555"),
		ScoreMid:  lipgloss.Color("#F1FA8C"),
		ScoreHigh: lipgloss.Color("#50FA7B"),
	}
}

// NordPalette returns the Nord theme palette.
func NordPalette() *ColorPalette {
	return &ColorPalette{
		Primary:   lipgloss.Color("#88C0D0"),
		Secondary: lipgloss.Color("#A3BE8C"),
		Warning:   lipgloss.Color("#EBCB8B"),
		Error:     lipgloss.Color("#BF616A"),
		Muted:     lipgloss.Color("#7B88A1"),
		Surface:   lipgloss.Color("#2E3440"),
		Text:      lipgloss.Color("#ECEFF4"),
		Border:    lipgloss.Color("#4C566A"),

		ToneAgree:     lipgloss.Color("#A3BE8C"),
		ToneChallenge: lipgloss.Color("#D08770"),
		ToneBuild:     lipgloss.Color("#81A1C1"),
		ToneQuestion:  lipgloss.Color("#EBCB8B"),

		ScoreLow:  lipgloss.Color("#BF616A"),
		ScoreMid:  lipgloss.Color("#EBCB8B"),
		ScoreHigh: lipgloss.Color("#A3BE8C"),
	}
}

// SolarizedDarkPalette returns the Solarized Dark palette.
func SolarizedDarkPalette() *ColorPalette {
	return &ColorPalette{
		Primary:   lipgloss.Color("#268BD2"),
		Secondary: lipgloss.Color("#859900"),
		Warning:   lipgloss.Color("#B58900"),
		Error:     lipgloss.Color("#DC322F"),
		Muted:     lipgloss.Color("#839496"),
		Surface:   lipgloss.Color("#073642"),
		Text:      lipgloss.Color("#EEE8D5"),
		Border:    lipgloss.Color("#586E75"),

		ToneAgree:     lipgloss.Color("#859900"),
		ToneChallenge: lipgloss.Color("#CB4B16"),
		ToneBuild:     lipgloss.Color("#2AA198"),
		ToneQuestion:  lipgloss.Color("#B58900"),

		ScoreLow:  lipgloss.Color("#DC322F"),
		ScoreMid:  lipgloss.Color("#B58900"),
		ScoreHigh: lipgloss.Color("#859900"),
	}
}

// GetPalette returns the palette for a built-in theme, or the default
// palette for unknown names.
func GetPalette(name ThemeName) *ColorPalette {
	switch name {
	case ThemeDracula:
		return DraculaPalette()
	case ThemeNord:
		return NordPalette()
	case ThemeSolarizedDark:
		return SolarizedDarkPalette()
	default:
		return DefaultPalette()
	}
}
