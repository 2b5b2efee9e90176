package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/toolbridge/toolbridge/internal/dispatch"
	"github.com/toolbridge/toolbridge/internal/protocol"
	"github.com/toolbridge/toolbridge/internal/security"
	"github.com/toolbridge/toolbridge/internal/tools"
)

func newTestRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	registry := tools.NewRegistry()
	for _, tool := range []tools.Tool{
		tools.CurrentTimeTool(),
		tools.CalculateTool(),
	} {
		if err := registry.Register(tool); err != nil {
			t.Fatal(err)
		}
	}
	return registry
}

func newTestChatHandler(t *testing.T) *ChatHandler {
	t.Helper()
	registry := newTestRegistry(t)
	d := dispatch.NewDispatcher(
		registry,
		dispatch.NewExecutor(2*time.Second),
		security.NewAuditLogger(false),
		ServiceName,
	)
	return NewChatHandler(d)
}

func postCompletions(t *testing.T, h *ChatHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Completions(rec, req)
	return rec
}

func TestCompletionsCalculate(t *testing.T) {
	h := newTestChatHandler(t)
	body := `{
		"model": "gpt-test",
		"tools": [{"type": "function", "function": {"name": "calculate"}}],
		"messages": [
			{"role": "user", "content": "what is 2+2*3?"},
			{"role": "assistant", "tool_calls": [
				{"id": "call_1", "type": "function",
				 "function": {"name": "calculate", "arguments": "{\"expression\":\"2+2*3\"}"}}
			]}
		]
	}`
	rec := postCompletions(t, h, body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body: %s", rec.Code, rec.Body.String())
	}
	resp, err := protocol.DecodeResponse(rec.Body)
	if err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Choices) != 2 {
		t.Fatalf("expected 2 choices, got %d", len(resp.Choices))
	}
	if resp.Choices[0].FinishReason != protocol.FinishToolCalls {
		t.Errorf("finish_reason = %s", resp.Choices[0].FinishReason)
	}
	toolMsg := resp.Choices[1].Message
	if toolMsg.Role != protocol.RoleTool || toolMsg.ToolCallID != "call_1" {
		t.Errorf("tool message not correlated: %+v", toolMsg)
	}
	var result struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.Unmarshal([]byte(toolMsg.Content), &result); err != nil {
		t.Fatalf("tool content: %v", err)
	}
	if string(result.Result) != "8" {
		t.Errorf("result = %s, want 8", result.Result)
	}
}

// Per-call failures ride inside a 200 envelope; only decode failures get 4xx.
func TestCompletionsFailureInsideEnvelope(t *testing.T) {
	h := newTestChatHandler(t)
	body := `{
		"model": "gpt-test",
		"tools": [{"type": "function", "function": {"name": "no_such_tool"}}],
		"messages": [
			{"role": "assistant", "tool_calls": [
				{"id": "call_1", "type": "function",
				 "function": {"name": "no_such_tool", "arguments": "{}"}}
			]}
		]
	}`
	rec := postCompletions(t, h, body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp, err := protocol.DecodeResponse(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	var payload protocol.FailurePayload
	if err := json.Unmarshal([]byte(resp.Choices[1].Message.Content), &payload); err != nil {
		t.Fatalf("failure payload: %v", err)
	}
	if payload.Error.Kind != protocol.KindUnknownTool {
		t.Errorf("kind = %s, want unknown_tool", payload.Error.Kind)
	}
}

func TestCompletionsMalformedBody(t *testing.T) {
	h := newTestChatHandler(t)
	cases := []string{
		`{{`,
		`{"messages":[{"role":"user","content":"hi"}]}`,
		`{"model":"m","messages":[]}`,
	}
	for _, body := range cases {
		rec := postCompletions(t, h, body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
			continue
		}
		var errResp protocol.ErrorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
			t.Errorf("body %q: error response not JSON: %v", body, err)
		}
	}
}

func TestCompletionsNoToolCalls(t *testing.T) {
	h := newTestChatHandler(t)
	body := `{"model":"gpt-test","messages":[{"role":"user","content":"hello"}]}`
	rec := postCompletions(t, h, body)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	resp, err := protocol.DecodeResponse(rec.Body)
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.Choices) != 1 || resp.Choices[0].FinishReason != protocol.FinishStop {
		t.Errorf("expected a single stop choice, got %+v", resp.Choices)
	}
}

func TestToolsList(t *testing.T) {
	h := NewToolsHandler(newTestRegistry(t))
	req := httptest.NewRequest(http.MethodGet, "/tools", nil)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp ToolsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Tools) != 2 {
		t.Fatalf("expected 2 tools, got %d", len(resp.Tools))
	}
	// Registration order is the wire order.
	if resp.Tools[0].Function.Name != "get_current_time" || resp.Tools[1].Function.Name != "calculate" {
		t.Errorf("order: %s, %s", resp.Tools[0].Function.Name, resp.Tools[1].Function.Name)
	}
	if resp.Tools[0].Type != "function" {
		t.Errorf("type = %s", resp.Tools[0].Type)
	}
	if resp.Tools[1].Function.Parameters == nil {
		t.Error("schema missing from discovery payload")
	}
}

func TestHealth(t *testing.T) {
	h := NewHealthHandler(newTestRegistry(t), false, false, "")
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "healthy" {
		t.Errorf("status = %s", resp.Status)
	}
	if resp.Checks["agent"] != "disabled" || resp.Checks["sandbox"] != "unrestricted" {
		t.Errorf("checks = %v", resp.Checks)
	}
}

func TestInfoBanner(t *testing.T) {
	h := NewHealthHandler(newTestRegistry(t), true, true, "/tmp")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.Info(rec, req)

	var resp InfoResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Name != ServiceName {
		t.Errorf("name = %s", resp.Name)
	}
	if len(resp.AvailableTools) != 2 {
		t.Errorf("available_tools = %v", resp.AvailableTools)
	}
}
