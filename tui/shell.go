package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/xiaokk2024/mymanus1/agent"
	"github.com/xiaokk2024/mymanus1/tui/styles"
)

// quitWords end a chat or abort a research clarification.
var quitWords = map[string]struct{}{
	"quit": {},
	"exit": {},
	"退出":   {},
}

const maxResultPreview = 400

func isQuitWord(s string) bool {
	_, ok := quitWords[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// Shell is the line-oriented chat front-end.
type Shell struct {
	mu     sync.Mutex
	agent  agent.Agent
	in     Input
	out    io.Writer
	render *Renderer
	styles *styles.Styles
	logger *zap.Logger
}

// NewShell creates a shell. The agent is attached later so that
// HandleEvent can be passed to agent.New.
func NewShell(in Input, out io.Writer, s *styles.Styles, logger *zap.Logger) *Shell {
	if s == nil {
		s = styles.NewStyles(styles.DefaultTheme)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Shell{
		in:     in,
		out:    out,
		render: NewRenderer(s, 0),
		styles: s,
		logger: logger,
	}
}

// Attach sets the agent the shell talks to.
func (sh *Shell) Attach(a agent.Agent) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	sh.agent = a
}

func (sh *Shell) current() (agent.Agent, error) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	if sh.agent == nil {
		return nil, agent.ErrNotReady
	}
	return sh.agent, nil
}

// HandleEvent prints tool activity as it happens.
func (sh *Shell) HandleEvent(ev agent.StreamEvent) {
	switch ev.Type {
	case agent.EventTypeToolStart:
		if ev.Tool == nil {
			return
		}
		sh.printf("%s %s\n", sh.styles.RenderToolStatus("running"), sh.styles.ToolName.Render(ev.Tool.Name))
		if ev.Tool.Code != "" {
			sh.printf("%s\n", sh.render.Code(ev.Tool.Lang, ev.Tool.Code))
		}
	case agent.EventTypeToolResult:
		if ev.Tool == nil {
			return
		}
		status := "success"
		if ev.Tool.Error != nil {
			status = "error"
		}
		sh.printf("%s %s\n", sh.styles.RenderToolStatus(status), sh.styles.ToolName.Render(ev.Tool.Name))
		sh.printf("%s\n", sh.styles.ToolResult.Render(preview(ev.Tool.Result, maxResultPreview)))
	case agent.EventTypeError:
		if ev.Error != nil {
			sh.Error(ev.Error)
		}
	}
}

// Chat reads user lines until a quit word or closed input.
func (sh *Shell) Chat(ctx context.Context) error {
	a, err := sh.current()
	if err != nil {
		return err
	}

	sh.printf("%s\n", sh.styles.Help.Render("Type 'quit' to return to the menu."))
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := sh.in.ReadLine("You")
		if errors.Is(err, ErrInputClosed) || errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if isQuitWord(line) {
			return nil
		}

		sh.printf("%s %s\n", sh.styles.RenderRole("user"), line)
		resp, err := a.Query(ctx, line)
		if err != nil {
			sh.logger.Debug("chat turn failed", zap.Error(err))
			sh.Error(err)
			continue
		}
		sh.printf("%s\n\n", sh.render.Assistant("assistant", resp.Content))
	}
}

// Research runs a research task, asking the user to refine the model's
// clarifying question. An empty reply accepts the default continuation and
// a quit word aborts.
func (sh *Shell) Research(ctx context.Context, question string) (*agent.Report, error) {
	a, err := sh.current()
	if err != nil {
		return nil, err
	}

	question = strings.TrimSpace(question)
	if question == "" {
		question, err = sh.in.ReadLine("Research question")
		if err != nil {
			return nil, err
		}
		question = strings.TrimSpace(question)
		if question == "" || isQuitWord(question) {
			return nil, agent.ErrResearchAborted
		}
	}

	clarify := func(ctx context.Context, clarification string) (string, error) {
		sh.printf("%s\n\n", sh.render.Assistant("clarification", clarification))
		reply, err := sh.in.ReadLine("Your answer (enter to let the model decide, 'quit' to stop)")
		if errors.Is(err, ErrInputClosed) || errors.Is(err, io.EOF) || isQuitWord(reply) {
			return "", agent.ErrResearchAborted
		}
		if err != nil {
			return "", err
		}
		return reply, nil
	}

	report, err := a.Research(ctx, question, clarify)
	if err != nil {
		if errors.Is(err, agent.ErrResearchAborted) {
			sh.printf("%s\n", sh.styles.SystemMessage.Render("Research task cancelled."))
		} else {
			sh.Error(err)
		}
		return nil, err
	}

	sh.printf("%s\n", sh.render.Assistant("report", report.Content))
	if report.Path != "" {
		sh.printf("%s %s\n", sh.styles.Label.Render("Report saved to"), report.Path)
	}
	return report, nil
}

// Clear resets the conversation.
func (sh *Shell) Clear() error {
	a, err := sh.current()
	if err != nil {
		return err
	}
	a.Clear()
	sh.printf("%s\n", sh.styles.SystemMessage.Render("Conversation cleared."))
	return nil
}

// Error prints a user-facing error.
func (sh *Shell) Error(err error) {
	msg := err.Error()
	switch {
	case errors.Is(err, agent.ErrTransport):
		msg = "Could not reach the model: " + msg
	case errors.Is(err, agent.ErrMaxIterations):
		msg = "The model kept calling tools without answering. Try rephrasing."
	case errors.Is(err, context.DeadlineExceeded):
		msg = "The request timed out."
	}
	sh.printf("%s\n", sh.styles.ErrorMessage.Render("Error: "+msg))
}

func (sh *Shell) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(sh.out, format, args...)
}

func preview(s string, max int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
