package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/bubbles/key"

	"github.com/xiaokk2024/mymanus1/tui/styles"
)

var menuItems = []MenuChoice{ChoiceChat, ChoiceResearch, ChoiceClear, ChoiceExit}

// MenuModel is the numbered main menu.
type MenuModel struct {
	title    string
	status   string
	selected int
	choice   MenuChoice
	keys     KeyMap
	styles   *styles.Styles
}

// NewMenu creates the menu. status is shown under the title, for example
// the result of the previous action.
func NewMenu(title, status string, s *styles.Styles) MenuModel {
	if s == nil {
		s = styles.NewStyles(styles.DefaultTheme)
	}
	return MenuModel{
		title:  title,
		status: status,
		keys:   DefaultKeyMap(),
		styles: s,
	}
}

// Choice returns the selected action, ChoiceNone until one is made.
func (m MenuModel) Choice() MenuChoice {
	return m.choice
}

func (m MenuModel) Init() tea.Cmd {
	return nil
}

func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch {
	case key.Matches(keyMsg, m.keys.Up):
		if m.selected > 0 {
			m.selected--
		}
	case key.Matches(keyMsg, m.keys.Down):
		if m.selected < len(menuItems)-1 {
			m.selected++
		}
	case key.Matches(keyMsg, m.keys.Select):
		m.choice = menuItems[m.selected]
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Chat):
		m.choice = ChoiceChat
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Research):
		m.choice = ChoiceResearch
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Clear):
		m.choice = ChoiceClear
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Exit), key.Matches(keyMsg, m.keys.Quit):
		m.choice = ChoiceExit
		return m, tea.Quit
	}
	return m, nil
}

func (m MenuModel) View() string {
	if m.choice != ChoiceNone {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.styles.Banner.Render(m.title))
	b.WriteString("\n")
	if m.status != "" {
		b.WriteString(m.styles.SystemMessage.Render(m.status))
		b.WriteString("\n")
	}
	b.WriteString("\n")

	for i, item := range menuItems {
		line := fmt.Sprintf("%s. %s", m.styles.MenuKey.Render(fmt.Sprint(i+1)), item)
		if i == m.selected {
			b.WriteString(m.styles.MenuSelected.Render("▸ " + line))
		} else {
			b.WriteString(m.styles.MenuItem.Render("  " + line))
		}
		b.WriteString("\n")
	}

	help := make([]string, 0, 4)
	for _, binding := range m.keys.ShortHelp() {
		h := binding.Help()
		help = append(help, fmt.Sprintf("[%s] %s", h.Key, h.Desc))
	}
	b.WriteString(m.styles.Help.Render(strings.Join(help, "  ")))
	return b.String()
}

// RunMenu shows the menu and returns the choice.
func RunMenu(title, status string, s *styles.Styles, opts ...tea.ProgramOption) (MenuChoice, error) {
	final, err := tea.NewProgram(NewMenu(title, status, s), opts...).Run()
	if err != nil {
		return ChoiceNone, fmt.Errorf("menu failed: %w", err)
	}
	if m, ok := final.(MenuModel); ok && m.choice != ChoiceNone {
		return m.choice, nil
	}
	return ChoiceExit, nil
}
