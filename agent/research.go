package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xiaokk2024/mymanus1/llm"
)

// Research runs the two-phase research task. The clarification round has
// tools disabled; the deep dive runs the full loop. On success the report
// is saved and the research messages, minus the leading system message, are
// merged into the main transcript. On failure nothing is saved or merged.
func (a *agent) Research(ctx context.Context, question string, clarify Clarifier) (*Report, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, errors.New("research question is empty")
	}

	a.turn.Lock()
	defer a.turn.Unlock()

	emit := a.handler
	if emit == nil {
		emit = func(StreamEvent) {}
	}

	research := NewTranscript("", 0)
	if first, ok := a.transcript.First(); ok && first.Role == llm.RoleSystem {
		research.Append(first, systemMessage(researchModeNote))
	} else {
		research.Append(systemMessage(researchSystemPrompt))
	}
	research.Append(llm.Message{Role: llm.RoleUser, Content: llm.StringPtr(clarificationPrompt(question))})

	var usage llm.Usage
	var clarification string
	// Each model phase gets its own timeout; the wait for the user does not
	// count against it.
	clarifyCtx, cancelClarify := a.withTimeout(ctx)
	out := a.loop.Complete(clarifyCtx, research.Messages(), nil)
	cancelClarify()

	switch out := out.(type) {
	case FinalAnswer:
		clarification = out.Text
		usage.Add(out.Usage)
		research.Append(out.Message)
	case TransportFailure:
		return nil, fmt.Errorf("clarification round: %w: %w", ErrTransport, out.Err)
	default:
		return nil, fmt.Errorf("clarification round: %w: %w", ErrTransport, ErrEmptyResponse)
	}
	emit(StreamEvent{Type: EventTypeClarification, Content: clarification})

	var refinement string
	if clarify != nil {
		r, err := clarify(ctx, clarification)
		if err != nil {
			return nil, err
		}
		refinement = strings.TrimSpace(r)
	}

	request := refinement
	if request == "" {
		request = defaultContinuation(question, clarification)
	}
	research.Append(llm.Message{Role: llm.RoleUser, Content: llm.StringPtr(deepDivePrompt(request))})

	diveCtx, cancelDive := a.withTimeout(ctx)
	defer cancelDive()
	response, err := a.loop.run(diveCtx, research, a.loop.Catalogue(), emit)
	if err != nil {
		return nil, fmt.Errorf("deep-dive round: %w", err)
	}
	usage.Add(response.Usage)

	report := &Report{
		Question:      question,
		Clarification: clarification,
		Refinement:    refinement,
		Content:       response.Content,
		Usage:         &usage,
	}

	if a.saver != nil {
		path, err := a.saver.Save(response.Content, question, researchDirectory)
		if err != nil {
			return nil, fmt.Errorf("failed to save report: %w", err)
		}
		report.Path = path
	}

	merged := research.Messages()
	a.transcript.Append(merged[1:]...)
	a.transcript.Trim()

	a.logger.Info("research task finished",
		zap.String("question", question),
		zap.String("report", report.Path),
		zap.Int("tool_calls", len(response.ToolCalls)))
	return report, nil
}
