package registry

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/xiaokk2024/mymanus1/tools"
	"github.com/xiaokk2024/mymanus1/tools/base"
)

type echoParams struct {
	Text string `json:"text" schema:"required" description:"Text to echo"`
}

type echoTool struct {
	base.BaseTool
}

func newEchoTool() *echoTool {
	return &echoTool{BaseTool: base.BaseTool{ToolName: "echo", ToolDesc: "Echo text"}}
}

func (t *echoTool) Parameters() interface{} { return &echoParams{} }

func (t *echoTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	var p echoParams
	if err := tools.DecodeParams(params, &p); err != nil {
		return "", err
	}
	return p.Text, nil
}

// rawTool declares a required field but reads its arguments verbatim.
type rawTool struct {
	base.BaseTool
}

func (t *rawTool) Parameters() interface{} { return &echoParams{} }

func (t *rawTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	return string(params), nil
}

type failingTool struct {
	base.BaseTool
	panics bool
}

func (t *failingTool) Parameters() interface{} { return &struct{}{} }

func (t *failingTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	if t.panics {
		panic("boom")
	}
	return "", errors.New("disk on fire")
}

type counterTool struct {
	base.BaseTool
}

func (t *counterTool) Parameters() interface{} { return &struct{}{} }

func (t *counterTool) Execute(ctx context.Context, params json.RawMessage) (string, error) {
	return "no namespace", nil
}

func (t *counterTool) ExecuteInNamespace(ctx context.Context, params json.RawMessage, ns *tools.Namespace) (string, error) {
	n := 0
	if v, ok := ns.Get("count"); ok {
		n = v.(int)
	}
	n++
	ns.Set("count", n)
	return strings.Repeat("x", n), nil
}

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	r := New()
	for _, tool := range []tools.Tool{
		newEchoTool(),
		&failingTool{BaseTool: base.BaseTool{ToolName: "fail", ToolDesc: "always fails"}},
		&failingTool{BaseTool: base.BaseTool{ToolName: "panic", ToolDesc: "always panics"}, panics: true},
		&counterTool{BaseTool: base.BaseTool{ToolName: "counter", ToolDesc: "counts calls"}},
	} {
		if err := r.Register(tool); err != nil {
			t.Fatalf("Register %s: %v", tool.Name(), err)
		}
	}
	return r
}

func TestRegisterDuplicate(t *testing.T) {
	r := New()
	if err := r.Register(newEchoTool()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register(newEchoTool()); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}

func TestDefinitionsFollowRegistrationOrder(t *testing.T) {
	r := newTestRegistry(t)
	defs := r.Definitions()
	if len(defs) != 4 {
		t.Fatalf("expected 4 definitions, got %d", len(defs))
	}
	if defs[0].Name != "echo" || defs[3].Name != "counter" {
		t.Fatalf("unexpected order: %s ... %s", defs[0].Name, defs[3].Name)
	}
	props := defs[0].Parameters["properties"].(map[string]interface{})
	if _, ok := props["text"]; !ok {
		t.Fatalf("expected text property in schema, got %v", defs[0].Parameters)
	}
	required := defs[0].Parameters["required"].([]string)
	if len(required) != 1 || required[0] != "text" {
		t.Fatalf("expected text to be required, got %v", required)
	}
}

func TestDispatch_Success(t *testing.T) {
	r := newTestRegistry(t)
	res := r.Dispatch(context.Background(), tools.ToolCall{ID: "1", Name: "echo", Arguments: json.RawMessage(`{"text":"hi"}`)}, tools.NewNamespace())
	if res.Failed() || res.Content != "hi" || res.ID != "1" || res.Name != "echo" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDispatch_QuotedArguments(t *testing.T) {
	r := newTestRegistry(t)
	res := r.Dispatch(context.Background(), tools.ToolCall{Name: "echo", Arguments: json.RawMessage(`"{\"text\":\"hi\"}"`)}, nil)
	if res.Failed() || res.Content != "hi" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestDispatch_UnknownTool(t *testing.T) {
	r := newTestRegistry(t)
	res := r.Dispatch(context.Background(), tools.ToolCall{Name: "nonexistent_tool", Arguments: json.RawMessage(`{}`)}, nil)
	if !res.Failed() || !errors.Is(res.Error, ErrUnknownTool) {
		t.Fatalf("expected unknown tool error, got %+v", res)
	}
	if !strings.Contains(res.Content, "unknown tool") || !strings.Contains(res.Content, "nonexistent_tool") {
		t.Fatalf("expected unknown-tool marker and name in %q", res.Content)
	}
}

func TestDispatch_InvalidArguments(t *testing.T) {
	r := newTestRegistry(t)
	for _, raw := range []string{`{"text": "unterminated`, `[1,2]`, `42`} {
		res := r.Dispatch(context.Background(), tools.ToolCall{Name: "echo", Arguments: json.RawMessage(raw)}, nil)
		if !res.Failed() {
			t.Fatalf("expected failure for %s", raw)
		}
		if !strings.Contains(res.Content, "not valid JSON") {
			t.Fatalf("unexpected content for %s: %q", raw, res.Content)
		}
	}
}

func TestDispatch_MissingRequiredParameter(t *testing.T) {
	r := newTestRegistry(t)
	res := r.Dispatch(context.Background(), tools.ToolCall{Name: "echo", Arguments: json.RawMessage(`{}`)}, nil)
	if !res.Failed() || !strings.Contains(res.Content, "text") {
		t.Fatalf("expected validation failure naming the field, got %+v", res)
	}
}

func TestDispatch_HandlerErrorAndPanicAreContained(t *testing.T) {
	r := newTestRegistry(t)

	res := r.Dispatch(context.Background(), tools.ToolCall{Name: "fail"}, nil)
	if !res.Failed() || !strings.Contains(res.Content, "disk on fire") {
		t.Fatalf("expected handler error in content, got %+v", res)
	}

	res = r.Dispatch(context.Background(), tools.ToolCall{Name: "panic"}, nil)
	if !res.Failed() || !strings.Contains(res.Content, "boom") {
		t.Fatalf("expected panic message in content, got %+v", res)
	}
}

func TestDispatchAll_SequentialSharedNamespace(t *testing.T) {
	r := newTestRegistry(t)
	ns := tools.NewNamespace()
	calls := []tools.ToolCall{
		{ID: "a", Name: "counter"},
		{ID: "b", Name: "nonexistent_tool"},
		{ID: "c", Name: "counter"},
	}

	var trace []string
	results := r.DispatchAll(context.Background(), calls, ns, CallHooks{
		Before: func(call tools.ToolCall) { trace = append(trace, "start:"+call.ID) },
		After:  func(call tools.ToolCall, res tools.ToolResult) { trace = append(trace, "done:"+res.ID) },
	})
	if got := strings.Join(trace, " "); got != "start:a done:a start:b done:b start:c done:c" {
		t.Fatalf("unexpected hook order %q", got)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].Content != "x" || results[2].Content != "xx" {
		t.Fatalf("expected namespace state to carry across calls, got %q and %q", results[0].Content, results[2].Content)
	}
	if !results[1].Failed() {
		t.Fatalf("expected middle call to fail")
	}
	for i, id := range []string{"a", "b", "c"} {
		if results[i].ID != id {
			t.Fatalf("results out of order: %v", results)
		}
	}
}

func TestDispatch_NilNamespaceFallsBackToExecute(t *testing.T) {
	r := newTestRegistry(t)
	res := r.Dispatch(context.Background(), tools.ToolCall{Name: "counter"}, nil)
	if res.Content != "no namespace" {
		t.Fatalf("expected plain Execute without namespace, got %q", res.Content)
	}
}

func TestDispatch_PythonScenario(t *testing.T) {
	r := New()
	if err := r.Register(tools.NewPythonTool(nil)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	call := tools.ToolCall{ID: "call_1", Name: "python_inter", Arguments: json.RawMessage(`{"py_code": "2+2"}`)}

	first := r.Dispatch(context.Background(), call, tools.NewNamespace())
	second := r.Dispatch(context.Background(), call, tools.NewNamespace())
	if first.Content != "4" || second.Content != "4" {
		t.Fatalf("expected 4 both times, got %q and %q", first.Content, second.Content)
	}
}

func TestDispatch_ArgumentsReachToolNormalized(t *testing.T) {
	r := New()
	if err := r.Register(&rawTool{BaseTool: base.BaseTool{ToolName: "raw", ToolDesc: "returns its arguments"}}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	res := r.Dispatch(context.Background(), tools.ToolCall{Name: "raw", Arguments: json.RawMessage(`"{ \"extra\": 1 }"`)}, nil)
	if res.Failed() || res.Content != `{"extra":1}` {
		t.Fatalf("expected the tool to receive compact arguments untouched by validation, got %+v", res)
	}
}

func TestDispatchAll_NilHooks(t *testing.T) {
	r := newTestRegistry(t)
	results := r.DispatchAll(context.Background(), []tools.ToolCall{{ID: "1", Name: "echo", Arguments: json.RawMessage(`{"text":"a"}`)}}, nil, CallHooks{})
	if len(results) != 1 || results[0].Content != "a" {
		t.Fatalf("unexpected results %+v", results)
	}
}
