package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xiaokk2024/mymanus1/internal/schema"
	"github.com/xiaokk2024/mymanus1/llm"
	"github.com/xiaokk2024/mymanus1/tools"
)

// ErrUnknownTool is returned when a call names a tool that is not registered.
var ErrUnknownTool = errors.New("unknown tool")

// Registry manages the tools available to one agent. Tools are resolved
// once at registration; calls never construct tools.
type Registry struct {
	mu          sync.RWMutex
	tools       map[string]tools.Tool
	order       []string
	definitions map[string]llm.ToolDefinition
	generator   *schema.Generator
	logger      *zap.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a new tool registry
func New(opts ...Option) *Registry {
	r := &Registry{
		tools:       make(map[string]tools.Tool),
		definitions: make(map[string]llm.ToolDefinition),
		generator:   schema.NewGenerator(),
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds a tool and generates its catalogue entry.
func (r *Registry) Register(tool tools.Tool) error {
	def, err := r.generator.ToolDefinition(tool.Name(), tool.Description(), tool.Parameters())
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name()]; exists {
		return fmt.Errorf("tool '%s' is already registered", tool.Name())
	}

	r.tools[tool.Name()] = tool
	r.definitions[tool.Name()] = def
	r.order = append(r.order, tool.Name())
	return nil
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (tools.Tool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	if !exists {
		return nil, fmt.Errorf("%w '%s'", ErrUnknownTool, name)
	}
	return tool, nil
}

// List returns the registered tool names in registration order
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Definitions returns the catalogue sent with every tool-enabled request,
// in registration order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.definitions[name])
	}
	return defs
}

// Execute normalizes the arguments of one call and runs the tool, which
// decodes and validates them itself. Namespace tools receive ns; the others
// ignore it.
func (r *Registry) Execute(ctx context.Context, name string, params json.RawMessage, ns *tools.Namespace) (string, error) {
	tool, err := r.Get(name)
	if err != nil {
		return "", err
	}

	normalized, err := llm.NormalizeArguments(params)
	if err != nil {
		return "", err
	}

	if nt, ok := tool.(tools.NamespaceTool); ok && ns != nil {
		return nt.ExecuteInNamespace(ctx, normalized, ns)
	}
	return tool.Execute(ctx, normalized)
}

// Dispatch runs one tool call and never fails: argument errors, unknown
// tools, handler errors and handler panics all become the result text.
func (r *Registry) Dispatch(ctx context.Context, call tools.ToolCall, ns *tools.Namespace) (result tools.ToolResult) {
	result = tools.ToolResult{
		ID:   call.ID,
		Name: call.Name,
	}

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("panic: %v", p)
			r.logger.Error("tool panicked", zap.String("tool", call.Name), zap.Any("panic", p))
			result.Error = err
			result.Content = fmt.Sprintf("Error: tool '%s' failed: %v", call.Name, err)
		}
	}()

	output, err := r.Execute(ctx, call.Name, call.Arguments, ns)
	switch {
	case err == nil:
		result.Content = output
	case errors.Is(err, ErrUnknownTool):
		r.logger.Warn("unknown tool requested", zap.String("tool", call.Name))
		result.Error = err
		result.Content = fmt.Sprintf("Error: unknown tool '%s'", call.Name)
	case errors.Is(err, llm.ErrInvalidArguments):
		r.logger.Warn("invalid tool arguments", zap.String("tool", call.Name), zap.Error(err))
		result.Error = err
		result.Content = fmt.Sprintf("Error: arguments for tool '%s' are not valid JSON: %s", call.Name, string(call.Arguments))
	default:
		r.logger.Warn("tool failed", zap.String("tool", call.Name), zap.Error(err))
		result.Error = err
		result.Content = fmt.Sprintf("Error: tool '%s' failed: %v", call.Name, err)
	}
	return result
}

// CallHooks observe the calls of a batch. Either func may be nil.
type CallHooks struct {
	Before func(call tools.ToolCall)
	After  func(call tools.ToolCall, result tools.ToolResult)
}

// DispatchAll runs calls one after another, in order. Later calls may
// depend on namespace state left by earlier ones.
func (r *Registry) DispatchAll(ctx context.Context, calls []tools.ToolCall, ns *tools.Namespace, hooks CallHooks) []tools.ToolResult {
	results := make([]tools.ToolResult, 0, len(calls))
	for _, call := range calls {
		if hooks.Before != nil {
			hooks.Before(call)
		}
		result := r.Dispatch(ctx, call, ns)
		if hooks.After != nil {
			hooks.After(call, result)
		}
		results = append(results, result)
	}
	return results
}
