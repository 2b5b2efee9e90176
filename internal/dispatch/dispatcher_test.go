package dispatch

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/toolbridge/toolbridge/internal/protocol"
	"github.com/toolbridge/toolbridge/internal/security"
	"github.com/toolbridge/toolbridge/internal/tools"
)

func newTestDispatcher(t *testing.T, extra ...tools.Tool) (*Dispatcher, *int32) {
	t.Helper()
	var invocations int32
	registry := tools.NewRegistry()
	builtins := []tools.Tool{
		tools.CurrentTimeTool(),
		tools.CalculateTool(),
	}
	for _, tl := range append(builtins, extra...) {
		orig := tl.Execute
		tl.Execute = func(ctx context.Context, input map[string]interface{}) (string, error) {
			atomic.AddInt32(&invocations, 1)
			return orig(ctx, input)
		}
		if err := registry.Register(tl); err != nil {
			t.Fatalf("register %s: %v", tl.Name, err)
		}
	}
	exec := NewExecutor(2 * time.Second)
	audit := security.NewAuditLogger(false)
	return NewDispatcher(registry, exec, audit, "toolbridge"), &invocations
}

func assistantCall(id, name, arguments string) protocol.Message {
	return protocol.Message{
		Role: protocol.RoleAssistant,
		ToolCalls: []protocol.ToolCall{{
			ID:       id,
			Type:     "function",
			Function: protocol.FunctionCall{Name: name, Arguments: arguments},
		}},
	}
}

func declaredTools(names ...string) []protocol.ToolDef {
	defs := make([]protocol.ToolDef, len(names))
	for i, name := range names {
		defs[i] = protocol.ToolDef{
			Type:     "function",
			Function: protocol.ToolFunction{Name: name},
		}
	}
	return defs
}

func TestDispatchNoToolCalls(t *testing.T) {
	d, invocations := newTestDispatcher(t)
	req := &protocol.ChatCompletionRequest{
		Model: "test-model",
		Messages: []protocol.Message{
			{Role: protocol.RoleUser, Content: "hello"},
		},
	}
	resp := d.Dispatch(context.Background(), req)

	if len(resp.Choices) != 1 {
		t.Fatalf("expected 1 choice, got %d", len(resp.Choices))
	}
	if resp.Choices[0].FinishReason != protocol.FinishStop {
		t.Errorf("finish_reason = %s, want stop", resp.Choices[0].FinishReason)
	}
	if resp.Choices[0].Message.Role != protocol.RoleAssistant {
		t.Errorf("role = %s, want assistant", resp.Choices[0].Message.Role)
	}
	if n := atomic.LoadInt32(invocations); n != 0 {
		t.Errorf("no implementation may run without an explicit call, got %d invocations", n)
	}
	if resp.Model != "test-model" {
		t.Errorf("model not echoed: %s", resp.Model)
	}
	if resp.Object != "chat.completion" {
		t.Errorf("object = %s", resp.Object)
	}
}

// Pending tool_calls without a declared tool list stay undispatched; the
// request gets the capability summary instead.
func TestDispatchRequiresDeclaredTools(t *testing.T) {
	d, invocations := newTestDispatcher(t)
	req := &protocol.ChatCompletionRequest{
		Model: "test-model",
		Messages: []protocol.Message{
			assistantCall("call_1", "calculate", `{"expression":"2+2"}`),
		},
	}
	resp := d.Dispatch(context.Background(), req)

	if len(resp.Choices) != 1 || resp.Choices[0].FinishReason != protocol.FinishStop {
		t.Fatalf("expected single stop choice, got %+v", resp.Choices)
	}
	if n := atomic.LoadInt32(invocations); n != 0 {
		t.Errorf("no implementation may run without a declared tool list, got %d", n)
	}
}

func TestDispatchCalculate(t *testing.T) {
	d, _ := newTestDispatcher(t)
	req := &protocol.ChatCompletionRequest{
		Model: "test-model",
		Tools: declaredTools("calculate"),
		Messages: []protocol.Message{
			{Role: protocol.RoleUser, Content: "what is 2+2*3?"},
			assistantCall("call_1", "calculate", `{"expression":"2+2*3"}`),
		},
	}
	resp := d.Dispatch(context.Background(), req)

	if len(resp.Choices) != 2 {
		t.Fatalf("expected assistant echo + 1 tool message, got %d choices", len(resp.Choices))
	}
	if resp.Choices[0].FinishReason != protocol.FinishToolCalls {
		t.Errorf("finish_reason = %s, want tool_calls", resp.Choices[0].FinishReason)
	}
	toolMsg := resp.Choices[1].Message
	if toolMsg.Role != protocol.RoleTool || toolMsg.ToolCallID != "call_1" {
		t.Errorf("tool message not correlated: %+v", toolMsg)
	}
	var parsed struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal([]byte(toolMsg.Content), &parsed); err != nil {
		t.Fatalf("decode tool content: %v", err)
	}
	if string(parsed.Result) != "8" {
		t.Errorf("result = %s, want 8", parsed.Result)
	}
}

func failureOf(t *testing.T, content string) protocol.FailureDetail {
	t.Helper()
	var payload protocol.FailurePayload
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		t.Fatalf("tool content is not a failure payload: %v\n%s", err, content)
	}
	return payload.Error
}

func TestDispatchUnknownTool(t *testing.T) {
	d, invocations := newTestDispatcher(t)
	req := &protocol.ChatCompletionRequest{
		Model: "test-model",
		Tools: declaredTools("no_such_tool"),
		Messages: []protocol.Message{
			assistantCall("call_1", "no_such_tool", `{}`),
		},
	}
	resp := d.Dispatch(context.Background(), req)

	detail := failureOf(t, resp.Choices[1].Message.Content)
	if detail.Kind != protocol.KindUnknownTool {
		t.Errorf("kind = %s, want unknown_tool", detail.Kind)
	}
	if n := atomic.LoadInt32(invocations); n != 0 {
		t.Errorf("no implementation may run for an unknown tool, got %d", n)
	}
}

func TestDispatchMalformedArguments(t *testing.T) {
	d, invocations := newTestDispatcher(t)
	cases := []struct {
		args string
		want protocol.FailureKind
	}{
		{`not json`, protocol.KindMalformedArguments},
		{`[1,2,3]`, protocol.KindMalformedArguments},
		{`{}`, protocol.KindValidationError}, // expression is required
	}
	for _, tc := range cases {
		req := &protocol.ChatCompletionRequest{
			Model:    "test-model",
			Tools:    declaredTools("calculate"),
			Messages: []protocol.Message{assistantCall("call_1", "calculate", tc.args)},
		}
		resp := d.Dispatch(context.Background(), req)
		detail := failureOf(t, resp.Choices[1].Message.Content)
		if detail.Kind != tc.want {
			t.Errorf("args %q: kind = %s, want %s", tc.args, detail.Kind, tc.want)
		}
	}
	if n := atomic.LoadInt32(invocations); n != 0 {
		t.Errorf("executor must never observe invalid arguments, got %d invocations", n)
	}
}

func TestDispatchDomainError(t *testing.T) {
	d, _ := newTestDispatcher(t)
	req := &protocol.ChatCompletionRequest{
		Model:    "test-model",
		Tools:    declaredTools("calculate"),
		Messages: []protocol.Message{assistantCall("call_1", "calculate", `{"expression":"1/0"}`)},
	}
	resp := d.Dispatch(context.Background(), req)
	detail := failureOf(t, resp.Choices[1].Message.Content)
	if detail.Kind != protocol.KindDomainError {
		t.Errorf("kind = %s, want domain_error", detail.Kind)
	}
}

// Two calls in one request: results appear in declared order and a failure in
// the second never disturbs the first.
func TestDispatchSiblingIndependence(t *testing.T) {
	d, _ := newTestDispatcher(t)
	req := &protocol.ChatCompletionRequest{
		Model: "test-model",
		Tools: declaredTools("get_current_time", "calculate"),
		Messages: []protocol.Message{
			{Role: protocol.RoleUser, Content: "time, then math"},
			{
				Role: protocol.RoleAssistant,
				ToolCalls: []protocol.ToolCall{
					{ID: "call_1", Type: "function", Function: protocol.FunctionCall{Name: "get_current_time", Arguments: `{}`}},
					{ID: "call_2", Type: "function", Function: protocol.FunctionCall{Name: "calculate", Arguments: `{"expression":"2+"}`}},
				},
			},
		},
	}
	resp := d.Dispatch(context.Background(), req)

	if len(resp.Choices) != 3 {
		t.Fatalf("expected echo + 2 tool messages, got %d", len(resp.Choices))
	}
	first := resp.Choices[1].Message
	second := resp.Choices[2].Message
	if first.ToolCallID != "call_1" || second.ToolCallID != "call_2" {
		t.Fatalf("declared order not preserved: %s, %s", first.ToolCallID, second.ToolCallID)
	}
	var ok map[string]interface{}
	if err := json.Unmarshal([]byte(first.Content), &ok); err != nil {
		t.Errorf("first result should be plain success JSON: %v", err)
	}
	if _, isFailure := ok["error"]; isFailure {
		t.Errorf("first call should succeed: %s", first.Content)
	}
	detail := failureOf(t, second.Content)
	if detail.Kind != protocol.KindParseError {
		t.Errorf("second call kind = %s, want parse_error", detail.Kind)
	}
}

func TestDispatchTimeoutKind(t *testing.T) {
	slow := tools.Tool{
		Name:        "sleepy",
		Description: "sleeps past the budget",
		InputSchema: map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{},
			"required":   []string{},
		},
		Execute: func(ctx context.Context, input map[string]interface{}) (string, error) {
			select {
			case <-time.After(5 * time.Second):
				return "{}", nil
			case <-ctx.Done():
				return "", ctx.Err()
			}
		},
	}
	registry := tools.NewRegistry()
	if err := registry.Register(slow); err != nil {
		t.Fatal(err)
	}
	d := NewDispatcher(registry, NewExecutor(30*time.Millisecond), security.NewAuditLogger(false), "toolbridge")

	req := &protocol.ChatCompletionRequest{
		Model:    "test-model",
		Tools:    declaredTools("sleepy"),
		Messages: []protocol.Message{assistantCall("call_1", "sleepy", `{}`)},
	}
	resp := d.Dispatch(context.Background(), req)
	detail := failureOf(t, resp.Choices[1].Message.Content)
	if detail.Kind != protocol.KindTimeout {
		t.Errorf("kind = %s, want timeout", detail.Kind)
	}
}
