package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Theme is a colour palette plus the matching glamour style.
type Theme struct {
	Name      string
	Primary   lipgloss.AdaptiveColor
	Secondary lipgloss.AdaptiveColor
	Text      lipgloss.AdaptiveColor
	TextDim   lipgloss.AdaptiveColor
	Border    lipgloss.AdaptiveColor
	Success   lipgloss.AdaptiveColor
	Warning   lipgloss.AdaptiveColor
	Error     lipgloss.AdaptiveColor
	Info      lipgloss.AdaptiveColor

	// Glamour is a glamour standard style name; empty means auto-detect.
	Glamour string
}

// DefaultTheme adapts to the terminal background.
var DefaultTheme = Theme{
	Name:      "default",
	Primary:   lipgloss.AdaptiveColor{Light: "#C0392B", Dark: "#FF6F61"},
	Secondary: lipgloss.AdaptiveColor{Light: "#2E86C1", Dark: "#5DADE2"},
	Text:      lipgloss.AdaptiveColor{Light: "#1C1C1C", Dark: "#ECECEC"},
	TextDim:   lipgloss.AdaptiveColor{Light: "#707070", Dark: "#8A8A8A"},
	Border:    lipgloss.AdaptiveColor{Light: "#D5D5D5", Dark: "#3C3C3C"},
	Success:   lipgloss.AdaptiveColor{Light: "#1E8449", Dark: "#58D68D"},
	Warning:   lipgloss.AdaptiveColor{Light: "#B9770E", Dark: "#F5B041"},
	Error:     lipgloss.AdaptiveColor{Light: "#B03A2E", Dark: "#EC7063"},
	Info:      lipgloss.AdaptiveColor{Light: "#1F618D", Dark: "#5DADE2"},
}

// DraculaTheme uses the Dracula palette.
var DraculaTheme = Theme{
	Name:      "dracula",
	Primary:   lipgloss.AdaptiveColor{Light: "#BD93F9", Dark: "#BD93F9"},
	Secondary: lipgloss.AdaptiveColor{Light: "#FF79C6", Dark: "#FF79C6"},
	Text:      lipgloss.AdaptiveColor{Light: "#F8F8F2", Dark: "#F8F8F2"},
	TextDim:   lipgloss.AdaptiveColor{Light: "#6272A4", Dark: "#6272A4"},
	Border:    lipgloss.AdaptiveColor{Light: "#6272A4", Dark: "#6272A4"},
	Success:   lipgloss.AdaptiveColor{Light: "#50FA7B", Dark: "#50FA7B"},
	Warning:   lipgloss.AdaptiveColor{Light: "#F1FA8C", Dark: "#F1FA8C"},
	Error:     lipgloss.AdaptiveColor{Light: "#FF5555", Dark: "#FF5555"},
	Info:      lipgloss.AdaptiveColor{Light: "#8BE9FD", Dark: "#8BE9FD"},
	Glamour:   "dracula",
}

// PlainTheme renders without colour, for pipes and tests.
var PlainTheme = Theme{
	Name:    "plain",
	Glamour: "notty",
}

// GetTheme returns a theme by name
func GetTheme(name string) Theme {
	switch name {
	case "dracula":
		return DraculaTheme
	case "plain":
		return PlainTheme
	default:
		return DefaultTheme
	}
}
