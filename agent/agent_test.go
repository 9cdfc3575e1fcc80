package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/xiaokk2024/mymanus1/llm"
	"github.com/xiaokk2024/mymanus1/tools"
	"github.com/xiaokk2024/mymanus1/tools/registry"
)

// scriptedClient replays canned responses and records every request.
type scriptedClient struct {
	mu        sync.Mutex
	responses []*llm.ChatResponse
	errs      map[int]error
	requests  []llm.ChatRequest
	models    []llm.Model
}

func (c *scriptedClient) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	copied := *req
	copied.Messages = append([]llm.Message(nil), req.Messages...)
	c.requests = append(c.requests, copied)
	idx := len(c.requests) - 1

	if err := c.errs[idx]; err != nil {
		return nil, err
	}
	if idx >= len(c.responses) {
		return nil, fmt.Errorf("script exhausted at request %d", idx)
	}
	return c.responses[idx], nil
}

func (c *scriptedClient) ListModels(ctx context.Context) ([]llm.Model, error) {
	if c.models == nil {
		return nil, errors.New("models unavailable")
	}
	return c.models, nil
}

func (c *scriptedClient) Close() error { return nil }

func (c *scriptedClient) lastRequest(t *testing.T) llm.ChatRequest {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.requests) == 0 {
		t.Fatalf("no requests recorded")
	}
	return c.requests[len(c.requests)-1]
}

func textResponse(text string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Choices: []llm.Choice{{
			Message:      llm.Message{Role: llm.RoleAssistant, Content: llm.StringPtr(text)},
			FinishReason: llm.FinishReasonStop,
		}},
		Usage: &llm.Usage{PromptTokens: 3, CompletionTokens: 2, TotalTokens: 5},
	}
}

func toolResponse(calls ...llm.ToolCall) *llm.ChatResponse {
	return &llm.ChatResponse{
		Choices: []llm.Choice{{
			Message:      llm.Message{Role: llm.RoleAssistant, ToolCalls: calls},
			FinishReason: llm.FinishReasonToolCalls,
		}},
		Usage: &llm.Usage{TotalTokens: 1},
	}
}

func call(id, name, args string) llm.ToolCall {
	return llm.ToolCall{
		ID:       id,
		Type:     "function",
		Function: llm.FunctionCall{Name: name, Arguments: json.RawMessage(args)},
	}
}

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	if err := r.Register(tools.NewPythonTool(zap.NewNop())); err != nil {
		t.Fatalf("register: %v", err)
	}
	return r
}

func TestTranscript_AppendAndTrimKeepsSystemFirst(t *testing.T) {
	tr := NewTranscript("system prompt", DefaultTranscriptCap)
	for i := 1; i < 25; i++ {
		tr.Append(llm.Message{Role: llm.RoleUser, Content: llm.StringPtr(fmt.Sprintf("m%d", i))})
	}
	if tr.Len() != 25 {
		t.Fatalf("expected 25 messages before trimming, got %d", tr.Len())
	}

	tr.AppendAndTrim(llm.Message{Role: llm.RoleUser, Content: llm.StringPtr("latest")})

	msgs := tr.Messages()
	if len(msgs) != 20 {
		t.Fatalf("expected 20 messages, got %d", len(msgs))
	}
	if msgs[0].Role != llm.RoleSystem || msgs[0].Text() != "system prompt" {
		t.Fatalf("message 0 changed: %+v", msgs[0])
	}
	if msgs[1].Text() != "m7" || msgs[19].Text() != "latest" {
		t.Fatalf("unexpected window %q .. %q", msgs[1].Text(), msgs[19].Text())
	}
}

func TestTranscript_NoTrimAtOrBelowCap(t *testing.T) {
	tr := NewTranscript("sys", 3)
	tr.AppendAndTrim(llm.Message{Role: llm.RoleUser, Content: llm.StringPtr("a")})
	tr.AppendAndTrim(llm.Message{Role: llm.RoleAssistant, Content: llm.StringPtr("b")})
	if tr.Len() != 3 {
		t.Fatalf("expected 3 messages, got %d", tr.Len())
	}

	unbounded := NewTranscript("sys", 0)
	for i := 0; i < 50; i++ {
		unbounded.AppendAndTrim(llm.Message{Role: llm.RoleUser, Content: llm.StringPtr("x")})
	}
	if unbounded.Len() != 51 {
		t.Fatalf("expected no trimming with cap 0, got %d", unbounded.Len())
	}
}

func TestTranscript_SetSystemPromptAndReset(t *testing.T) {
	tr := NewTranscript("", 20)
	tr.Append(llm.Message{Role: llm.RoleUser, Content: llm.StringPtr("hi")})
	tr.SetSystemPrompt("new")
	if first, _ := tr.First(); first.Role != llm.RoleSystem || first.Text() != "new" || tr.Len() != 2 {
		t.Fatalf("expected inserted system prompt, got %+v", tr.Messages())
	}
	tr.Reset("fresh")
	if tr.Len() != 1 {
		t.Fatalf("expected one message after reset, got %d", tr.Len())
	}
}

func TestComplete_Classification(t *testing.T) {
	client := &scriptedClient{
		responses: []*llm.ChatResponse{
			toolResponse(call("c1", "python_inter", `{"py_code":"1"}`)),
			textResponse("hello"),
			{Choices: []llm.Choice{{Message: llm.Message{Role: llm.RoleAssistant}, FinishReason: llm.FinishReasonStop}}},
			{},
		},
		errs: map[int]error{4: errors.New("dial tcp: connection refused")},
	}
	loop := NewLoop(client, newRegistry(t), nil, DefaultConfig(), nil)
	msgs := []llm.Message{{Role: llm.RoleUser, Content: llm.StringPtr("q")}}

	out := loop.Complete(context.Background(), msgs, loop.Catalogue())
	calls, ok := out.(ToolCallsRequested)
	if !ok || len(calls.Calls) != 1 || calls.Calls[0].Name != "python_inter" {
		t.Fatalf("expected ToolCallsRequested, got %#v", out)
	}
	if req := client.lastRequest(t); req.ToolChoice != llm.ToolChoiceAuto || len(req.Tools) != 1 {
		t.Fatalf("expected tools with auto choice, got %q %d", req.ToolChoice, len(req.Tools))
	}

	out = loop.Complete(context.Background(), msgs, nil)
	if answer, ok := out.(FinalAnswer); !ok || answer.Text != "hello" {
		t.Fatalf("expected FinalAnswer, got %#v", out)
	}
	if req := client.lastRequest(t); req.ToolChoice != "" || req.Tools != nil {
		t.Fatalf("expected no tool selection without catalogue, got %q", req.ToolChoice)
	}

	for i := 0; i < 3; i++ {
		out = loop.Complete(context.Background(), msgs, nil)
		if _, ok := out.(TransportFailure); !ok {
			t.Fatalf("request %d: expected TransportFailure, got %#v", i+2, out)
		}
	}
}

func TestComplete_ToolCallsWithoutToolFinishReason(t *testing.T) {
	resp := toolResponse(call("c1", "python_inter", `{}`))
	resp.Choices[0].FinishReason = llm.FinishReasonStop
	resp.Choices[0].Message.Content = llm.StringPtr("done")

	loop := NewLoop(&scriptedClient{responses: []*llm.ChatResponse{resp}}, nil, nil, DefaultConfig(), nil)
	out := loop.Complete(context.Background(), nil, nil)
	answer, ok := out.(FinalAnswer)
	if !ok || answer.Text != "done" || answer.Message.ToolCalls != nil {
		t.Fatalf("expected FinalAnswer without calls, got %#v", out)
	}
}

func TestQuery_PythonToolRoundTrip(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		toolResponse(call("call_1", "python_inter", `{"py_code": "2+2"}`)),
		textResponse("2+2 equals 4."),
	}}

	var events []StreamEvent
	a := New(client, newRegistry(t), WithEventHandler(func(e StreamEvent) {
		events = append(events, e)
	}))

	resp, err := a.Query(context.Background(), "What is 2+2?")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resp.Content != "2+2 equals 4." || resp.Rounds != 2 {
		t.Fatalf("unexpected response %+v", resp)
	}
	if len(resp.ToolCalls) != 1 || resp.ToolCalls[0].Content != "4" {
		t.Fatalf("unexpected tool results %+v", resp.ToolCalls)
	}
	if resp.Usage.TotalTokens != 6 {
		t.Fatalf("expected accumulated usage 6, got %d", resp.Usage.TotalTokens)
	}

	mem := a.GetMemory()
	roles := make([]string, len(mem))
	for i, m := range mem {
		roles[i] = string(m.Role)
	}
	if strings.Join(roles, ",") != "system,user,assistant,tool,assistant" {
		t.Fatalf("unexpected transcript roles %v", roles)
	}
	toolMsg := mem[3]
	if toolMsg.Text() != "4" || toolMsg.ToolCallID != "call_1" || toolMsg.Name != "python_inter" {
		t.Fatalf("unexpected tool message %+v", toolMsg)
	}

	second := client.lastRequest(t)
	if got := second.Messages[len(second.Messages)-1].Text(); got != "4" {
		t.Fatalf("expected tool result in second request, got %q", got)
	}

	if len(events) != 3 || events[0].Type != EventTypeToolStart || events[1].Type != EventTypeToolResult || events[2].Type != EventTypeMessage {
		t.Fatalf("unexpected events %+v", events)
	}
	if events[0].Tool.Lang != "python" || events[0].Tool.Code != "2+2" {
		t.Fatalf("expected python code in tool start event, got %+v", events[0].Tool)
	}
}

func TestQuery_UnknownToolDoesNotAbort(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		toolResponse(call("c1", "nonexistent_tool", `{}`)),
		textResponse("Sorry, that tool does not exist."),
	}}
	a := New(client, newRegistry(t))

	resp, err := a.Query(context.Background(), "use a missing tool")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(client.requests) != 2 {
		t.Fatalf("expected a second completion round, got %d", len(client.requests))
	}
	if !strings.Contains(resp.ToolCalls[0].Content, "unknown tool") {
		t.Fatalf("expected unknown tool marker, got %q", resp.ToolCalls[0].Content)
	}
}

func TestQuery_InvalidArgumentsAreFedBack(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		toolResponse(call("c1", "python_inter", `{"py_code": `)),
		textResponse("retrying later"),
	}}
	a := New(client, newRegistry(t))

	resp, err := a.Query(context.Background(), "run something")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if !strings.Contains(resp.ToolCalls[0].Content, "not valid JSON") {
		t.Fatalf("expected invalid JSON message, got %q", resp.ToolCalls[0].Content)
	}
}

func TestQuery_TransportFailureRestoresTranscript(t *testing.T) {
	client := &scriptedClient{errs: map[int]error{0: errors.New("dial tcp 127.0.0.1:1: connection refused")}}
	a := New(client, newRegistry(t))
	before := a.GetMemory()

	_, err := a.Query(context.Background(), "hello")
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	after := a.GetMemory()
	if len(after) != len(before) || after[0].Text() != before[0].Text() {
		t.Fatalf("transcript not restored: %+v", after)
	}
}

func TestRunTurn_TransportFailureKeepsPriorContent(t *testing.T) {
	client := &scriptedClient{
		responses: []*llm.ChatResponse{toolResponse(call("c1", "python_inter", `{"py_code": "1+1"}`))},
		errs:      map[int]error{1: errors.New("connection reset")},
	}
	loop := NewLoop(client, newRegistry(t), nil, DefaultConfig(), nil)
	tr := NewTranscript("sys", DefaultTranscriptCap)
	tr.Append(llm.Message{Role: llm.RoleUser, Content: llm.StringPtr("compute")})

	_, err := loop.RunTurn(context.Background(), tr, loop.Catalogue())
	if !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	msgs := tr.Messages()
	if len(msgs) != 4 || msgs[0].Text() != "sys" || msgs[1].Text() != "compute" || msgs[3].Text() != "2" {
		t.Fatalf("unexpected transcript after failure: %+v", msgs)
	}
}

func TestRunTurn_MaxIterations(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		toolResponse(call("c1", "python_inter", `{"py_code": "1"}`)),
		toolResponse(call("c2", "python_inter", `{"py_code": "2"}`)),
		toolResponse(call("c3", "python_inter", `{"py_code": "3"}`)),
	}}
	cfg := DefaultConfig()
	cfg.MaxIterations = 2
	loop := NewLoop(client, newRegistry(t), nil, cfg, nil)
	tr := NewTranscript("sys", 0)

	_, err := loop.RunTurn(context.Background(), tr, loop.Catalogue())
	if !errors.Is(err, ErrMaxIterations) {
		t.Fatalf("expected ErrMaxIterations, got %v", err)
	}
	if len(client.requests) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(client.requests))
	}
}

func TestQuery_NamespacePersistsAcrossTurnsAndClearResets(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		toolResponse(call("c1", "python_inter", `{"py_code": "x = 20"}`)),
		textResponse("stored"),
		toolResponse(call("c2", "python_inter", `{"py_code": "x * 2"}`)),
		textResponse("40"),
	}}
	a := New(client, newRegistry(t))

	if _, err := a.Query(context.Background(), "set x"); err != nil {
		t.Fatalf("Query: %v", err)
	}
	resp, err := a.Query(context.Background(), "double x")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if resp.ToolCalls[0].Content != "40" {
		t.Fatalf("expected namespace value reused, got %q", resp.ToolCalls[0].Content)
	}

	a.Clear()
	if a.Namespace().Len() != 0 {
		t.Fatalf("expected empty namespace after clear")
	}
	mem := a.GetMemory()
	if len(mem) != 1 || mem[0].Role != llm.RoleSystem || mem[0].Text() != clearedSystemPrompt {
		t.Fatalf("unexpected transcript after clear: %+v", mem)
	}
}

func TestQueryStream_EmitsCompleteEvent(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		toolResponse(call("c1", "python_inter", `{"py_code": "3*3"}`)),
		textResponse("9"),
	}}
	a := New(client, newRegistry(t))

	events, err := a.QueryStream(context.Background(), "3*3?")
	if err != nil {
		t.Fatalf("QueryStream: %v", err)
	}
	var types []EventType
	var last StreamEvent
	for e := range events {
		types = append(types, e.Type)
		last = e
	}
	if last.Type != EventTypeComplete || last.Content != "9" {
		t.Fatalf("expected complete event last, got %v", types)
	}
	if types[0] != EventTypeToolStart {
		t.Fatalf("expected tool start first, got %v", types)
	}
}

func TestQueryStream_ReportsError(t *testing.T) {
	client := &scriptedClient{errs: map[int]error{0: errors.New("boom")}}
	a := New(client, nil)

	events, _ := a.QueryStream(context.Background(), "hi")
	var got error
	for e := range events {
		if e.Type == EventTypeError {
			got = e.Error
		}
	}
	if !errors.Is(got, ErrTransport) {
		t.Fatalf("expected transport error event, got %v", got)
	}
}

func TestSetMemory_PrependsSystemPrompt(t *testing.T) {
	a := New(&scriptedClient{}, nil, WithSystemPrompt("custom"))
	a.SetMemory([]llm.Message{{Role: llm.RoleUser, Content: llm.StringPtr("resumed")}})
	mem := a.GetMemory()
	if len(mem) != 2 || mem[0].Text() != "custom" || mem[1].Text() != "resumed" {
		t.Fatalf("unexpected memory %+v", mem)
	}
}

func TestProbeModel(t *testing.T) {
	client := &scriptedClient{models: []llm.Model{{ID: "qwen-plus"}, {ID: "qwen-max"}}}

	res, err := ProbeModel(context.Background(), client, "qwen-max")
	if err != nil || !res.Found || len(res.Available) != 2 {
		t.Fatalf("unexpected probe %+v (err %v)", res, err)
	}
	res, err = ProbeModel(context.Background(), client, "gpt-4o")
	if err != nil || res.Found {
		t.Fatalf("expected model to be missing, got %+v (err %v)", res, err)
	}

	if _, err := ProbeModel(context.Background(), &scriptedClient{}, "m"); !errors.Is(err, ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestComplete_LengthFinishMarksTruncated(t *testing.T) {
	resp := textResponse("partial answer")
	resp.Choices[0].FinishReason = llm.FinishReasonLength

	loop := NewLoop(&scriptedClient{responses: []*llm.ChatResponse{resp}}, nil, nil, DefaultConfig(), nil)
	out := loop.Complete(context.Background(), nil, nil)
	answer, ok := out.(FinalAnswer)
	if !ok || !answer.Truncated || answer.Text != "partial answer" {
		t.Fatalf("expected truncated FinalAnswer, got %#v", out)
	}
}

func TestRunTurn_WithoutRegistryReportsUnknownTool(t *testing.T) {
	client := &scriptedClient{responses: []*llm.ChatResponse{
		toolResponse(call("c1", "python_inter", `{"py_code": "1"}`)),
		textResponse("no tools here"),
	}}
	loop := NewLoop(client, nil, nil, DefaultConfig(), nil)
	if defs := loop.Catalogue(); len(defs) != 0 {
		t.Fatalf("expected empty catalogue, got %d entries", len(defs))
	}

	var events []EventType
	loop.handler = func(e StreamEvent) { events = append(events, e.Type) }
	tr := NewTranscript("sys", 0)
	resp, err := loop.RunTurn(context.Background(), tr, loop.Catalogue())
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	if len(resp.ToolCalls) != 1 || !errors.Is(resp.ToolCalls[0].Error, registry.ErrUnknownTool) {
		t.Fatalf("expected an unknown-tool result, got %+v", resp.ToolCalls)
	}
	want := []EventType{EventTypeToolStart, EventTypeToolResult, EventTypeMessage}
	if fmt.Sprint(events) != fmt.Sprint(want) {
		t.Fatalf("expected events %v, got %v", want, events)
	}
}
