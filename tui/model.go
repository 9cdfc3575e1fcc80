package tui

import (
	"github.com/charmbracelet/bubbles/key"
)

// MenuChoice is the action picked from the main menu.
type MenuChoice int

const (
	ChoiceNone MenuChoice = iota
	ChoiceChat
	ChoiceResearch
	ChoiceClear
	ChoiceExit
)

func (c MenuChoice) String() string {
	switch c {
	case ChoiceChat:
		return "Chat"
	case ChoiceResearch:
		return "Research task"
	case ChoiceClear:
		return "Clear session"
	case ChoiceExit:
		return "Exit"
	default:
		return "none"
	}
}

// KeyMap defines key bindings
type KeyMap struct {
	Up       key.Binding
	Down     key.Binding
	Select   key.Binding
	Quit     key.Binding
	Chat     key.Binding
	Research key.Binding
	Clear    key.Binding
	Exit     key.Binding
}

// DefaultKeyMap returns default key bindings
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "up"),
		),
		Down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "down"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "select"),
		),
		Quit: key.NewBinding(
			key.WithKeys("ctrl+c", "esc", "q"),
			key.WithHelp("q", "quit"),
		),
		Chat: key.NewBinding(
			key.WithKeys("1"),
			key.WithHelp("1", "chat"),
		),
		Research: key.NewBinding(
			key.WithKeys("2"),
			key.WithHelp("2", "research"),
		),
		Clear: key.NewBinding(
			key.WithKeys("3"),
			key.WithHelp("3", "clear"),
		),
		Exit: key.NewBinding(
			key.WithKeys("4"),
			key.WithHelp("4", "exit"),
		),
	}
}

// ShortHelp lists the bindings shown under the menu.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Quit}
}
