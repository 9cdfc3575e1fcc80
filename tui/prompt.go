package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/xiaokk2024/mymanus1/tui/styles"
)

// ErrInputClosed is returned when the user cancels a prompt with ctrl+c,
// ctrl+d or esc.
var ErrInputClosed = errors.New("input closed")

// PromptModel reads one line of text.
type PromptModel struct {
	label     string
	input     textinput.Model
	styles    *styles.Styles
	submitted bool
	cancelled bool
}

// NewPrompt creates a single-line prompt.
func NewPrompt(label, placeholder string, s *styles.Styles) PromptModel {
	if s == nil {
		s = styles.NewStyles(styles.DefaultTheme)
	}
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = "› "
	ti.CharLimit = 0
	ti.Focus()

	return PromptModel{label: label, input: ti, styles: s}
}

// Value returns the entered text.
func (m PromptModel) Value() string {
	return m.input.Value()
}

func (m PromptModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m PromptModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.Type {
		case tea.KeyEnter:
			m.submitted = true
			return m, tea.Quit
		case tea.KeyCtrlC, tea.KeyCtrlD, tea.KeyEsc:
			m.cancelled = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m PromptModel) View() string {
	if m.submitted || m.cancelled {
		return ""
	}
	return fmt.Sprintf("%s\n%s\n", m.styles.Prompt.Render(m.label), m.input.View())
}

// Input reads lines from the user.
type Input interface {
	ReadLine(label string) (string, error)
}

// TeaInput reads each line through a PromptModel program.
type TeaInput struct {
	Styles  *styles.Styles
	Options []tea.ProgramOption
}

// ReadLine runs a prompt and returns the trimmed text.
func (in TeaInput) ReadLine(label string) (string, error) {
	final, err := tea.NewProgram(NewPrompt(label, "", in.Styles), in.Options...).Run()
	if err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}
	m, ok := final.(PromptModel)
	if !ok || m.cancelled {
		return "", ErrInputClosed
	}
	return strings.TrimSpace(m.Value()), nil
}
