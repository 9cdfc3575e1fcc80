package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/key"

	"github.com/xiaokk2024/mymanus1/history"
	"github.com/xiaokk2024/mymanus1/tui/styles"
)

// SessionPicker lists saved sessions, newest first, and returns the one
// picked with enter.
type SessionPicker struct {
	sessions []history.SessionInfo
	selected int
	height   int
	keys     KeyMap
	styles   *styles.Styles

	// SelectedSessionID is empty when the picker was cancelled.
	SelectedSessionID string
}

// NewSessionPicker creates a new session picker
func NewSessionPicker(sessions []history.SessionInfo, s *styles.Styles) *SessionPicker {
	if s == nil {
		s = styles.NewStyles(styles.DefaultTheme)
	}
	return &SessionPicker{
		sessions: sessions,
		height:   24,
		keys:     DefaultKeyMap(),
		styles:   s,
	}
}

func (p *SessionPicker) Init() tea.Cmd {
	return nil
}

func (p *SessionPicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		p.height = msg.Height
		return p, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, p.keys.Up):
			if p.selected > 0 {
				p.selected--
			}
		case key.Matches(msg, p.keys.Down):
			if p.selected < len(p.sessions)-1 {
				p.selected++
			}
		case key.Matches(msg, p.keys.Select):
			if len(p.sessions) > 0 {
				p.SelectedSessionID = p.sessions[p.selected].ID
			}
			return p, tea.Quit
		case key.Matches(msg, p.keys.Quit):
			return p, tea.Quit
		}
	}
	return p, nil
}

func (p *SessionPicker) View() string {
	if len(p.sessions) == 0 {
		return "\nNo saved conversations.\n\nPress [Esc] to start a new conversation.\n"
	}

	var b strings.Builder
	b.WriteString(p.styles.Title.Render("Select a conversation to resume:"))
	b.WriteString("\n")

	start, end := p.window()
	for i := start; i < end; i++ {
		session := p.sessions[i]
		line := fmt.Sprintf("%s - %s (%d messages, %s)",
			session.UpdatedAt.Format("Jan 02 15:04"),
			truncateString(session.Title, 40),
			session.Messages,
			session.Model)

		if i == p.selected {
			b.WriteString(p.styles.MenuSelected.Render("▸ " + line))
		} else {
			b.WriteString(p.styles.MenuItem.Render("  " + line))
		}
		b.WriteString("\n")
	}

	if start > 0 || end < len(p.sessions) {
		b.WriteString(p.styles.Label.Render(fmt.Sprintf("[%d-%d of %d sessions]", start+1, end, len(p.sessions))))
		b.WriteString("\n")
	}

	b.WriteString(p.styles.Help.Render("[↑/↓/j/k] Navigate  [Enter] Select  [Esc/q] Cancel"))
	return b.String()
}

// window returns the visible slice bounds, keeping the selection centred.
func (p *SessionPicker) window() (int, int) {
	visible := p.height - 6
	if visible < 1 {
		visible = 1
	}
	if visible >= len(p.sessions) {
		return 0, len(p.sessions)
	}

	start := 0
	if p.selected > visible/2 {
		start = p.selected - visible/2
		if start+visible > len(p.sessions) {
			start = len(p.sessions) - visible
		}
	}
	return start, start + visible
}

// PickSession runs the picker and returns the chosen ID, or "" if cancelled.
func PickSession(sessions []history.SessionInfo, s *styles.Styles, opts ...tea.ProgramOption) (string, error) {
	picker := NewSessionPicker(sessions, s)
	if _, err := tea.NewProgram(picker, opts...).Run(); err != nil {
		return "", fmt.Errorf("session picker failed: %w", err)
	}
	return picker.SelectedSessionID, nil
}

func truncateString(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
