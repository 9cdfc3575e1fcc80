package agent

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/xiaokk2024/mymanus1/llm"
	"github.com/xiaokk2024/mymanus1/tools"
	"github.com/xiaokk2024/mymanus1/tools/registry"
)

// agent is the main agent implementation
type agent struct {
	loop       *Loop
	config     Config
	transcript *Transcript
	ns         *tools.Namespace
	saver      Saver
	handler    EventHandler
	logger     *zap.Logger

	// turn serialises Query, Research and Clear.
	turn sync.Mutex
}

// New creates a new agent. reg holds the tools resolved at startup.
func New(client llm.Client, reg *registry.Registry, opts ...Option) Agent {
	o := options{config: DefaultConfig(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.ns == nil {
		o.ns = tools.NewNamespace()
	}

	loop := NewLoop(client, reg, o.ns, o.config, o.logger)
	loop.handler = o.handler

	return &agent{
		loop:       loop,
		config:     loop.config,
		transcript: NewTranscript(o.config.SystemPrompt, o.config.MemorySize),
		ns:         o.ns,
		saver:      o.saver,
		handler:    o.handler,
		logger:     o.logger,
	}
}

// Query sends a query and returns the response
func (a *agent) Query(ctx context.Context, query string) (*Response, error) {
	a.turn.Lock()
	defer a.turn.Unlock()
	return a.query(ctx, query, a.handler)
}

func (a *agent) query(ctx context.Context, query string, emit EventHandler) (*Response, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	before := a.transcript.Messages()
	a.transcript.AppendAndTrim(llm.Message{
		Role:    llm.RoleUser,
		Content: llm.StringPtr(query),
	})

	response, err := a.loop.run(ctx, a.transcript, a.loop.Catalogue(), emit)
	if err != nil {
		a.transcript.Replace(before)
		a.logger.Warn("turn failed, transcript restored", zap.Int("messages", len(before)), zap.Error(err))
		return nil, err
	}
	return response, nil
}

// QueryStream sends a query and streams its events. The channel closes
// after a complete or error event.
func (a *agent) QueryStream(ctx context.Context, query string) (<-chan StreamEvent, error) {
	events := make(chan StreamEvent, 100)

	send := func(event StreamEvent) {
		select {
		case events <- event:
		case <-ctx.Done():
		}
	}
	emit := func(event StreamEvent) {
		if a.handler != nil {
			a.handler(event)
		}
		send(event)
	}

	go func() {
		defer close(events)

		a.turn.Lock()
		defer a.turn.Unlock()

		response, err := a.query(ctx, query, emit)
		if err != nil {
			send(StreamEvent{Type: EventTypeError, Error: err})
			return
		}
		send(StreamEvent{Type: EventTypeComplete, Content: response.Content})
	}()

	return events, nil
}

// Clear resets the transcript to the helper prompt and empties the
// namespace.
func (a *agent) Clear() {
	a.turn.Lock()
	defer a.turn.Unlock()

	a.transcript.Reset(clearedSystemPrompt)
	a.ns.Reset()
}

// GetMemory returns the current conversation memory
func (a *agent) GetMemory() []llm.Message {
	return a.transcript.Messages()
}

// SetMemory replaces the transcript. A list without a leading system
// message gets the configured system prompt prepended.
func (a *agent) SetMemory(messages []llm.Message) {
	a.turn.Lock()
	defer a.turn.Unlock()

	a.transcript.Replace(messages)
	if first, ok := a.transcript.First(); !ok || first.Role != llm.RoleSystem {
		a.transcript.SetSystemPrompt(a.config.SystemPrompt)
	}
	a.transcript.Trim()
}

// SetSystemPrompt updates the system prompt
func (a *agent) SetSystemPrompt(prompt string) {
	a.turn.Lock()
	defer a.turn.Unlock()

	a.config.SystemPrompt = prompt
	a.transcript.SetSystemPrompt(prompt)
}

// Namespace returns the session namespace
func (a *agent) Namespace() *tools.Namespace {
	return a.ns
}

func (a *agent) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.config.Timeout > 0 {
		return context.WithTimeout(ctx, a.config.Timeout)
	}
	return context.WithCancel(ctx)
}
