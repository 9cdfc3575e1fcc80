package styles

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles holds all the styles for the application
type Styles struct {
	Theme Theme

	// Menu
	Banner       lipgloss.Style
	MenuItem     lipgloss.Style
	MenuSelected lipgloss.Style
	MenuKey      lipgloss.Style

	// Messages
	UserMessage      lipgloss.Style
	AssistantMessage lipgloss.Style
	SystemMessage    lipgloss.Style
	ToolMessage      lipgloss.Style
	ErrorMessage     lipgloss.Style

	// Tools
	ToolName    lipgloss.Style
	ToolRunning lipgloss.Style
	ToolSuccess lipgloss.Style
	ToolError   lipgloss.Style
	ToolResult  lipgloss.Style

	// UI Elements
	Border lipgloss.Style
	Title  lipgloss.Style
	Label  lipgloss.Style
	Help   lipgloss.Style
	Prompt lipgloss.Style
}

// NewStyles creates a new styles instance with the given theme
func NewStyles(theme Theme) *Styles {
	s := &Styles{
		Theme: theme,
	}

	s.Banner = lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true).
		Padding(0, 2).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border)

	s.MenuItem = lipgloss.NewStyle().
		Foreground(theme.Text).
		PaddingLeft(2)

	s.MenuSelected = lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true).
		PaddingLeft(2)

	s.MenuKey = lipgloss.NewStyle().
		Foreground(theme.Secondary).
		Bold(true)

	// Message styles
	s.UserMessage = lipgloss.NewStyle().
		Foreground(theme.Primary)

	s.AssistantMessage = lipgloss.NewStyle().
		Foreground(theme.Text)

	s.SystemMessage = lipgloss.NewStyle().
		Foreground(theme.TextDim).
		Italic(true)

	s.ToolMessage = lipgloss.NewStyle().
		Foreground(theme.Info)

	s.ErrorMessage = lipgloss.NewStyle().
		Foreground(theme.Error).
		Bold(true)

	// Tool styles
	s.ToolName = lipgloss.NewStyle().
		Foreground(theme.Secondary).
		Bold(true)

	s.ToolRunning = lipgloss.NewStyle().
		Foreground(theme.Warning)

	s.ToolSuccess = lipgloss.NewStyle().
		Foreground(theme.Success)

	s.ToolError = lipgloss.NewStyle().
		Foreground(theme.Error)

	s.ToolResult = lipgloss.NewStyle().
		Foreground(theme.TextDim).
		PaddingLeft(1).
		Border(lipgloss.NormalBorder(), false, false, false, true).
		BorderForeground(theme.Border)

	s.Border = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.Border)

	s.Title = lipgloss.NewStyle().
		Foreground(theme.Primary).
		Bold(true).
		MarginBottom(1)

	s.Label = lipgloss.NewStyle().
		Foreground(theme.TextDim)

	s.Help = lipgloss.NewStyle().
		Foreground(theme.TextDim).
		Italic(true).
		MarginTop(1)

	s.Prompt = lipgloss.NewStyle().
		Foreground(theme.Secondary).
		Bold(true)

	return s
}

// RenderRole returns a styled speaker prefix
func (s *Styles) RenderRole(role string) string {
	switch role {
	case "user":
		return s.UserMessage.Bold(true).Render("You:")
	case "assistant":
		return s.AssistantMessage.Bold(true).Render("MyManus:")
	case "clarification":
		return s.AssistantMessage.Bold(true).Render("MyManus (clarifying question):")
	case "report":
		return s.AssistantMessage.Bold(true).Render("MyManus (research report):")
	case "system":
		return s.SystemMessage.Bold(true).Render("System:")
	case "tool":
		return s.ToolMessage.Bold(true).Render("Tool:")
	default:
		return s.Label.Render(role + ":")
	}
}

// RenderToolStatus returns a styled tool status
func (s *Styles) RenderToolStatus(status string) string {
	switch status {
	case "running":
		return s.ToolRunning.Render("● Running")
	case "success":
		return s.ToolSuccess.Render("✓ Complete")
	case "error":
		return s.ToolError.Render("✗ Error")
	default:
		return s.Label.Render("◌ Pending")
	}
}
