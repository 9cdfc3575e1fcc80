package tools

import (
	"context"
	"encoding/json"
)

// Tool defines the interface that all tools must implement
type Tool interface {
	// Name returns the unique name of the tool
	Name() string

	// Description returns the text the model reads when choosing tools
	Description() string

	// Execute runs the tool with the given parameters
	Execute(ctx context.Context, params json.RawMessage) (string, error)

	// Parameters returns a pointer to the struct describing the tool's
	// parameters. It is used for schema generation and validation.
	Parameters() interface{}
}

// NamespaceTool is an optional interface for tools that read or write the
// session namespace. The dispatcher calls ExecuteInNamespace instead of
// Execute for these tools.
type NamespaceTool interface {
	Tool
	ExecuteInNamespace(ctx context.Context, params json.RawMessage, ns *Namespace) (string, error)
}

// ToolError represents a structured error from a tool
type ToolError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ToolError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = e.Code + ": " + msg
	}
	if detail, ok := e.Details["error"]; ok {
		msg += " (" + toString(detail) + ")"
	}
	return msg
}

// NewToolError creates a new tool error
func NewToolError(code, message string) *ToolError {
	return &ToolError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WithDetail adds a detail to the error
func (e *ToolError) WithDetail(key string, value interface{}) *ToolError {
	e.Details[key] = value
	return e
}

// Error codes shared by the tools and the dispatcher.
const (
	CodeInvalidParams    = "INVALID_PARAMS"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeNotConfigured    = "NOT_CONFIGURED"
	CodeExecutionFailed  = "EXECUTION_FAILED"
	CodeRequestFailed    = "REQUEST_FAILED"
	CodeNoResults        = "NO_RESULTS"
)

// ToolCall represents a request to execute a tool
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult represents the outcome of one dispatch. Content is always the
// text reported back to the model; Error records the contained failure, if
// any.
type ToolResult struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Error   error  `json:"-"`
}

// Failed reports whether the dispatch ended in a contained error.
func (r ToolResult) Failed() bool {
	return r.Error != nil
}

func toString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case error:
		return s.Error()
	default:
		data, _ := json.Marshal(s)
		return string(data)
	}
}
