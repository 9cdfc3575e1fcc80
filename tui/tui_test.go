package tui

import (
	"bytes"
	"context"
	"errors"
	"io"
	"regexp"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/xiaokk2024/mymanus1/agent"
	"github.com/xiaokk2024/mymanus1/history"
	"github.com/xiaokk2024/mymanus1/llm"
	"github.com/xiaokk2024/mymanus1/tools"
	"github.com/xiaokk2024/mymanus1/tui/styles"
)

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)

func stripANSI(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func plainStyles() *styles.Styles {
	return styles.NewStyles(styles.PlainTheme)
}

type scriptedInput struct {
	lines  []string
	labels []string
}

func (s *scriptedInput) ReadLine(label string) (string, error) {
	s.labels = append(s.labels, label)
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

type fakeAgent struct {
	queries       []string
	replies       map[string]string
	failOn        string
	clarification string
	refinement    string
	researchErr   error
	cleared       bool
}

func (f *fakeAgent) Query(_ context.Context, q string) (*agent.Response, error) {
	f.queries = append(f.queries, q)
	if q == f.failOn {
		return nil, agent.ErrTransport
	}
	return &agent.Response{Content: f.replies[q]}, nil
}

func (f *fakeAgent) QueryStream(context.Context, string) (<-chan agent.StreamEvent, error) {
	ch := make(chan agent.StreamEvent)
	close(ch)
	return ch, nil
}

func (f *fakeAgent) Research(ctx context.Context, question string, clarify agent.Clarifier) (*agent.Report, error) {
	refinement, err := clarify(ctx, f.clarification)
	if err != nil {
		return nil, err
	}
	f.refinement = refinement
	if f.researchErr != nil {
		return nil, f.researchErr
	}
	return &agent.Report{Question: question, Content: "Final report", Path: "research_task/q.md"}, nil
}

func (f *fakeAgent) Clear() { f.cleared = true }

func (f *fakeAgent) GetMemory() []llm.Message { return nil }

func (f *fakeAgent) SetMemory([]llm.Message) {}

func (f *fakeAgent) SetSystemPrompt(string) {}

func (f *fakeAgent) Namespace() *tools.Namespace { return tools.NewNamespace() }

func newTestShell(lines ...string) (*Shell, *scriptedInput, *bytes.Buffer) {
	in := &scriptedInput{lines: lines}
	out := &bytes.Buffer{}
	return NewShell(in, out, plainStyles(), nil), in, out
}

func TestMenuNumberKeysSelectImmediately(t *testing.T) {
	cases := map[string]MenuChoice{
		"1": ChoiceChat,
		"2": ChoiceResearch,
		"3": ChoiceClear,
		"4": ChoiceExit,
		"q": ChoiceExit,
	}
	for k, want := range cases {
		m := NewMenu("MyManus", "", plainStyles())
		updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
		if got := updated.(MenuModel).Choice(); got != want {
			t.Fatalf("key %q: expected %v, got %v", k, want, got)
		}
		if cmd == nil {
			t.Fatalf("key %q: expected quit command", k)
		}
	}
}

func TestMenuNavigationAndEnter(t *testing.T) {
	var model tea.Model = NewMenu("MyManus", "ready", plainStyles())
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyDown})
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyUp})

	view := stripANSI(model.View())
	if !strings.Contains(view, "▸ 2. Research task") {
		t.Fatalf("expected research highlighted, got:\n%s", view)
	}
	if !strings.Contains(view, "ready") {
		t.Fatalf("expected status line in view")
	}

	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if got := model.(MenuModel).Choice(); got != ChoiceResearch {
		t.Fatalf("expected research, got %v", got)
	}
}

func TestPromptSubmitAndCancel(t *testing.T) {
	var model tea.Model = NewPrompt("You", "", plainStyles())
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hi")})
	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyEnter})
	p := model.(PromptModel)
	if !p.submitted || p.Value() != "hi" || cmd == nil {
		t.Fatalf("expected submitted 'hi', got %+v", p.Value())
	}

	model = NewPrompt("You", "", plainStyles())
	model, _ = model.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if !model.(PromptModel).cancelled {
		t.Fatalf("expected cancelled prompt")
	}
}

func TestShellChatSkipsEmptyAndStopsOnQuitWord(t *testing.T) {
	sh, _, out := newTestShell("", "   ", "hello", "退出", "never")
	fa := &fakeAgent{replies: map[string]string{"hello": "Hi there"}}
	sh.Attach(fa)

	if err := sh.Chat(context.Background()); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(fa.queries) != 1 || fa.queries[0] != "hello" {
		t.Fatalf("unexpected queries %v", fa.queries)
	}
	if !strings.Contains(stripANSI(out.String()), "Hi there") {
		t.Fatalf("expected reply in output:\n%s", out.String())
	}
}

func TestShellChatReportsErrorsAndContinues(t *testing.T) {
	sh, _, out := newTestShell("boom", "again")
	fa := &fakeAgent{failOn: "boom", replies: map[string]string{"again": "ok"}}
	sh.Attach(fa)

	if err := sh.Chat(context.Background()); err != nil {
		t.Fatalf("Chat: %v", err)
	}
	text := stripANSI(out.String())
	if !strings.Contains(text, "Error: Could not reach the model") {
		t.Fatalf("expected transport error message:\n%s", text)
	}
	if len(fa.queries) != 2 {
		t.Fatalf("expected chat to continue after the error, got %v", fa.queries)
	}
}

func TestShellWithoutAgent(t *testing.T) {
	sh, _, _ := newTestShell()
	if err := sh.Chat(context.Background()); !errors.Is(err, agent.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestShellResearchPassesRefinement(t *testing.T) {
	sh, in, out := newTestShell("only 2024 papers")
	fa := &fakeAgent{clarification: "Which years?"}
	sh.Attach(fa)

	report, err := sh.Research(context.Background(), "MCP adoption")
	if err != nil {
		t.Fatalf("Research: %v", err)
	}
	if fa.refinement != "only 2024 papers" {
		t.Fatalf("unexpected refinement %q", fa.refinement)
	}
	if report.Path != "research_task/q.md" {
		t.Fatalf("unexpected report %+v", report)
	}
	text := stripANSI(out.String())
	if !strings.Contains(text, "Which years?") || !strings.Contains(text, "research_task/q.md") {
		t.Fatalf("expected clarification and report path in output:\n%s", text)
	}
	if len(in.labels) != 1 {
		t.Fatalf("expected one prompt, got %v", in.labels)
	}
}

func TestShellResearchQuitAborts(t *testing.T) {
	sh, _, out := newTestShell("quit")
	sh.Attach(&fakeAgent{clarification: "Which years?"})

	_, err := sh.Research(context.Background(), "MCP adoption")
	if !errors.Is(err, agent.ErrResearchAborted) {
		t.Fatalf("expected ErrResearchAborted, got %v", err)
	}
	if !strings.Contains(stripANSI(out.String()), "Research task cancelled.") {
		t.Fatalf("expected cancellation notice")
	}
}

func TestShellClear(t *testing.T) {
	sh, _, _ := newTestShell()
	fa := &fakeAgent{}
	sh.Attach(fa)
	if err := sh.Clear(); err != nil || !fa.cleared {
		t.Fatalf("expected agent cleared, err=%v", err)
	}
}

func TestHandleEventPrintsCodeAndResult(t *testing.T) {
	sh, _, out := newTestShell()
	sh.HandleEvent(agent.StreamEvent{
		Type: agent.EventTypeToolStart,
		Tool: &agent.ToolEvent{Name: "python_inter", Code: "x = 2 + 2", Lang: "python"},
	})
	sh.HandleEvent(agent.StreamEvent{
		Type: agent.EventTypeToolResult,
		Tool: &agent.ToolEvent{Name: "python_inter", Result: strings.Repeat("a", 500)},
	})

	text := stripANSI(out.String())
	if !strings.Contains(text, "x = 2 + 2") {
		t.Fatalf("expected code block in output:\n%s", text)
	}
	if !strings.Contains(text, "✓ Complete") || !strings.Contains(text, "…") {
		t.Fatalf("expected truncated successful result:\n%s", text)
	}
}

func TestSplitThinkingTrace(t *testing.T) {
	trace, answer := splitThinkingTrace("<think>\nplan it\n</think>\nThe answer is 4.")
	if trace != "plan it" || answer != "The answer is 4." {
		t.Fatalf("unexpected split %q / %q", trace, answer)
	}
	trace, answer = splitThinkingTrace("plain")
	if trace != "" || answer != "plain" {
		t.Fatalf("unexpected split %q / %q", trace, answer)
	}
}

func TestSessionPickerSelectsAndCancels(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	sessions := []history.SessionInfo{
		{ID: "b", Title: "second", UpdatedAt: now, Messages: 4, Model: "qwen-plus"},
		{ID: "a", Title: strings.Repeat("长", 60), UpdatedAt: now.Add(-time.Hour), Messages: 2, Model: "qwen-plus"},
	}

	p := NewSessionPicker(sessions, plainStyles())
	p.Update(tea.KeyMsg{Type: tea.KeyDown})
	view := stripANSI(p.View())
	if !strings.Contains(view, "▸ Mar 01 09:00 - "+strings.Repeat("长", 37)+"...") {
		t.Fatalf("expected rune-safe truncated selection:\n%s", view)
	}
	p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if p.SelectedSessionID != "a" {
		t.Fatalf("expected session a, got %q", p.SelectedSessionID)
	}

	p = NewSessionPicker(sessions, plainStyles())
	p.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if p.SelectedSessionID != "" {
		t.Fatalf("expected no selection after cancel")
	}
}
