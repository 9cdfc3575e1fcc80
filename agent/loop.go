package agent

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/xiaokk2024/mymanus1/llm"
	"github.com/xiaokk2024/mymanus1/tools"
	"github.com/xiaokk2024/mymanus1/tools/registry"
)

// Outcome is the classified result of one completion round-trip. It is one
// of FinalAnswer, ToolCallsRequested or TransportFailure.
type Outcome interface {
	outcome()
}

// FinalAnswer carries the model's text reply. Truncated is set when the
// endpoint stopped at the token limit.
type FinalAnswer struct {
	Text         string
	Message      llm.Message
	FinishReason string
	Truncated    bool
	Usage        *llm.Usage
}

// ToolCallsRequested carries the calls the model wants executed.
type ToolCallsRequested struct {
	Calls   []tools.ToolCall
	Message llm.Message
	Usage   *llm.Usage
}

// TransportFailure carries any client error.
type TransportFailure struct {
	Err error
}

func (FinalAnswer) outcome()        {}
func (ToolCallsRequested) outcome() {}
func (TransportFailure) outcome()   {}

// Loop drives completion rounds and tool dispatch for one session.
type Loop struct {
	client   llm.Client
	registry *registry.Registry
	ns       *tools.Namespace
	config   Config
	logger   *zap.Logger
	handler  EventHandler
}

// NewLoop creates a loop. A nil reg gives a tool-less session in which every
// requested call fails as an unknown tool.
func NewLoop(client llm.Client, reg *registry.Registry, ns *tools.Namespace, config Config, logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	if reg == nil {
		reg = registry.New(registry.WithLogger(logger))
	}
	if ns == nil {
		ns = tools.NewNamespace()
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = DefaultConfig().MaxIterations
	}
	return &Loop{
		client:   client,
		registry: reg,
		ns:       ns,
		config:   config,
		logger:   logger,
	}
}

// Catalogue returns the tool definitions sent with tool-enabled requests.
func (l *Loop) Catalogue() []llm.ToolDefinition {
	return l.registry.Definitions()
}

// Complete performs one request with the given messages. Tool selection is
// "auto" when the catalogue is non-empty and omitted otherwise.
func (l *Loop) Complete(ctx context.Context, messages []llm.Message, catalogue []llm.ToolDefinition) Outcome {
	if l.client == nil {
		return TransportFailure{Err: ErrNotReady}
	}

	request := &llm.ChatRequest{
		Messages:    messages,
		Temperature: l.config.Temperature,
		MaxTokens:   l.config.MaxTokens,
	}
	if len(catalogue) > 0 {
		request.Tools = catalogue
		request.ToolChoice = llm.ToolChoiceAuto
	}

	response, err := l.client.Chat(ctx, request)
	if err != nil {
		return TransportFailure{Err: err}
	}
	if response == nil || len(response.Choices) == 0 {
		return TransportFailure{Err: fmt.Errorf("no choices in response: %w", ErrEmptyResponse)}
	}

	choice := response.Choices[0]
	message := choice.Message
	if message.Role == "" {
		message.Role = llm.RoleAssistant
	}

	if choice.FinishReason == llm.FinishReasonToolCalls && len(message.ToolCalls) > 0 {
		calls := make([]tools.ToolCall, len(message.ToolCalls))
		for i, tc := range message.ToolCalls {
			calls[i] = tools.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			}
		}
		return ToolCallsRequested{Calls: calls, Message: message, Usage: response.Usage}
	}

	if text := message.Text(); text != "" {
		// A text answer never carries calls into the transcript.
		message.ToolCalls = nil
		truncated := choice.FinishReason == llm.FinishReasonLength
		if truncated {
			l.logger.Warn("answer cut off at the token limit", zap.Int("max_tokens", l.config.MaxTokens))
		}
		return FinalAnswer{
			Text:         text,
			Message:      message,
			FinishReason: choice.FinishReason,
			Truncated:    truncated,
			Usage:        response.Usage,
		}
	}

	return TransportFailure{Err: fmt.Errorf("finish reason %q: %w", choice.FinishReason, ErrEmptyResponse)}
}

// RunTurn loops round-trips and tool dispatch until the model answers with
// text, a round fails or the round cap is exceeded. Messages are appended to
// t as they are produced and are not removed on failure.
func (l *Loop) RunTurn(ctx context.Context, t *Transcript, catalogue []llm.ToolDefinition) (*Response, error) {
	return l.run(ctx, t, catalogue, l.handler)
}

func (l *Loop) run(ctx context.Context, t *Transcript, catalogue []llm.ToolDefinition, emit EventHandler) (*Response, error) {
	if emit == nil {
		emit = func(StreamEvent) {}
	}

	var totalUsage llm.Usage
	var allToolResults []tools.ToolResult

	for round := 1; round <= l.config.MaxIterations; round++ {
		switch out := l.Complete(ctx, t.Messages(), catalogue).(type) {
		case TransportFailure:
			l.logger.Warn("completion failed", zap.Int("round", round), zap.Error(out.Err))
			return nil, fmt.Errorf("%w: %w", ErrTransport, out.Err)

		case FinalAnswer:
			totalUsage.Add(out.Usage)
			t.Append(out.Message)
			emit(StreamEvent{Type: EventTypeMessage, Content: out.Text})
			return &Response{
				Content:      out.Text,
				ToolCalls:    allToolResults,
				Usage:        &totalUsage,
				FinishReason: out.FinishReason,
				Rounds:       round,
			}, nil

		case ToolCallsRequested:
			totalUsage.Add(out.Usage)
			t.Append(out.Message)
			results := l.executeTools(ctx, out.Calls, emit)
			for _, result := range results {
				t.Append(llm.Message{
					Role:       llm.RoleTool,
					Content:    llm.StringPtr(result.Content),
					ToolCallID: result.ID,
					Name:       result.Name,
				})
			}
			allToolResults = append(allToolResults, results...)
		}
	}

	return nil, fmt.Errorf("%w (%d)", ErrMaxIterations, l.config.MaxIterations)
}

// executeTools dispatches calls in order. Later calls see namespace changes
// made by earlier ones.
func (l *Loop) executeTools(ctx context.Context, calls []tools.ToolCall, emit EventHandler) []tools.ToolResult {
	return l.registry.DispatchAll(ctx, calls, l.ns, registry.CallHooks{
		Before: func(call tools.ToolCall) {
			lang, code := codeArgument(call)
			emit(StreamEvent{
				Type: EventTypeToolStart,
				Tool: &ToolEvent{
					ID:   call.ID,
					Name: call.Name,
					Args: string(call.Arguments),
					Code: code,
					Lang: lang,
				},
			})
			l.logger.Debug("dispatching tool", zap.String("tool", call.Name), zap.String("id", call.ID))
		},
		After: func(call tools.ToolCall, result tools.ToolResult) {
			emit(StreamEvent{
				Type: EventTypeToolResult,
				Tool: &ToolEvent{
					ID:     call.ID,
					Name:   call.Name,
					Result: result.Content,
					Error:  result.Error,
				},
			})
		},
	})
}

// codeArgument extracts the code a call is about to run, for display.
func codeArgument(call tools.ToolCall) (lang, code string) {
	var args struct {
		PyCode   string `json:"py_code"`
		SQLQuery string `json:"sql_query"`
	}
	if err := llm.DecodeArguments(call.Arguments, &args); err != nil {
		return "", ""
	}
	switch {
	case strings.TrimSpace(args.PyCode) != "":
		return "python", args.PyCode
	case strings.TrimSpace(args.SQLQuery) != "":
		return "sql", args.SQLQuery
	}
	return "", ""
}
