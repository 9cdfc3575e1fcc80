package agent

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/xiaokk2024/mymanus1/llm"
	"github.com/xiaokk2024/mymanus1/tools"
)

// Sentinel errors returned by the agent.
var (
	// ErrTransport wraps every completion failure: network, HTTP status,
	// decoding or an empty response.
	ErrTransport = errors.New("completion request failed")

	// ErrMaxIterations is returned when a turn exceeds the round cap.
	ErrMaxIterations = errors.New("maximum tool-call rounds reached")

	// ErrResearchAborted is returned by a Clarifier to stop research mode.
	ErrResearchAborted = errors.New("research task aborted")

	// ErrNotReady is returned when the agent has no completion client.
	ErrNotReady = errors.New("agent is not ready")

	// ErrEmptyResponse is the transport error for a reply with neither text
	// nor tool calls.
	ErrEmptyResponse = errors.New("model returned no content")
)

// Config contains agent configuration
type Config struct {
	SystemPrompt  string
	MaxIterations int
	Temperature   float32
	MaxTokens     int
	Timeout       time.Duration
	MemorySize    int
	Verbose       bool
}

// DefaultConfig returns a default agent configuration
func DefaultConfig() Config {
	return Config{
		SystemPrompt:  defaultSystemPrompt,
		MaxIterations: 10,
		Timeout:       10 * time.Minute,
		MemorySize:    DefaultTranscriptCap,
	}
}

// Response represents an agent response
type Response struct {
	Content      string
	ToolCalls    []ToolResult
	Usage        *llm.Usage
	FinishReason string
	Rounds       int
}

// ToolResult is an alias for tools.ToolResult
type ToolResult = tools.ToolResult

// Report is the outcome of a research task.
type Report struct {
	Question      string
	Clarification string
	Refinement    string
	Content       string
	Path          string
	Usage         *llm.Usage
}

// Clarifier receives the model's clarifying question and returns the user's
// refinement. An empty refinement selects the default continuation;
// returning ErrResearchAborted stops the task.
type Clarifier func(ctx context.Context, clarification string) (string, error)

// Saver persists research reports.
type Saver interface {
	Save(content, nameHint, directory string) (string, error)
}

// StreamEvent represents one step of a turn, reported as it happens.
type StreamEvent struct {
	Type    EventType
	Content string
	Tool    *ToolEvent
	Error   error
}

// EventType represents the type of stream event
type EventType string

const (
	EventTypeMessage       EventType = "message"
	EventTypeClarification EventType = "clarification"
	EventTypeToolStart     EventType = "tool_start"
	EventTypeToolResult    EventType = "tool_result"
	EventTypeError         EventType = "error"
	EventTypeComplete      EventType = "complete"
)

// ToolEvent contains information about a tool execution
type ToolEvent struct {
	ID     string
	Name   string
	Args   string
	Code   string
	Lang   string
	Result string
	Error  error
}

// EventHandler observes turn progress.
type EventHandler func(StreamEvent)

// Agent interface defines the agent contract
type Agent interface {
	// Query runs one chat turn. On failure the transcript is restored to
	// its state before the call.
	Query(ctx context.Context, query string) (*Response, error)

	// QueryStream runs Query in the background and streams its events.
	QueryStream(ctx context.Context, query string) (<-chan StreamEvent, error)

	// Research runs the two-phase research task.
	Research(ctx context.Context, question string, clarify Clarifier) (*Report, error)

	// Clear resets the transcript and the session namespace
	Clear()

	// GetMemory returns a copy of the transcript
	GetMemory() []llm.Message

	// SetMemory replaces the transcript, for resuming a saved session
	SetMemory(messages []llm.Message)

	// SetSystemPrompt updates the system prompt
	SetSystemPrompt(prompt string)

	// Namespace returns the session namespace
	Namespace() *tools.Namespace
}

// Option is a functional option for configuring the agent
type Option func(*options)

type options struct {
	config  Config
	logger  *zap.Logger
	saver   Saver
	handler EventHandler
	ns      *tools.Namespace
}

// WithSystemPrompt sets the system prompt
func WithSystemPrompt(prompt string) Option {
	return func(o *options) {
		o.config.SystemPrompt = prompt
	}
}

// WithMaxIterations sets the maximum number of completion rounds per turn
func WithMaxIterations(max int) Option {
	return func(o *options) {
		if max > 0 {
			o.config.MaxIterations = max
		}
	}
}

// WithTemperature sets the temperature
func WithTemperature(temp float32) Option {
	return func(o *options) {
		o.config.Temperature = temp
	}
}

// WithMaxTokens sets the max tokens
func WithMaxTokens(max int) Option {
	return func(o *options) {
		o.config.MaxTokens = max
	}
}

// WithTimeout bounds each turn
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.config.Timeout = timeout
	}
}

// WithMemorySize sets the transcript cap
func WithMemorySize(size int) Option {
	return func(o *options) {
		o.config.MemorySize = size
	}
}

// WithVerbose enables verbose mode
func WithVerbose(verbose bool) Option {
	return func(o *options) {
		o.config.Verbose = verbose
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithSaver sets where research reports are written
func WithSaver(s Saver) Option {
	return func(o *options) {
		o.saver = s
	}
}

// WithEventHandler registers an observer for tool and message events
func WithEventHandler(h EventHandler) Option {
	return func(o *options) {
		o.handler = h
	}
}

// WithNamespace supplies the session namespace
func WithNamespace(ns *tools.Namespace) Option {
	return func(o *options) {
		o.ns = ns
	}
}

const defaultSystemPrompt = "You are MyManus, a master-level intelligent assistant."

// clearedSystemPrompt replaces the system prompt after Clear.
const clearedSystemPrompt = "You are MyManus, a helpful assistant."
