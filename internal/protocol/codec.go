package protocol

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
)

var validRoles = map[string]bool{
	RoleSystem:    true,
	RoleUser:      true,
	RoleAssistant: true,
	RoleTool:      true,
}

// DecodeRequest parses and checks a chat-completion request body. Unknown
// fields are tolerated; structural violations are not.
func DecodeRequest(r io.Reader) (*ChatCompletionRequest, error) {
	var req ChatCompletionRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return nil, Failf(KindMalformedRequest, "invalid JSON body: %v", err)
	}
	if err := checkRequest(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func checkRequest(req *ChatCompletionRequest) error {
	if req.Model == "" {
		return Failf(KindMalformedRequest, "model is required")
	}
	if len(req.Messages) == 0 {
		return Failf(KindMalformedRequest, "messages must not be empty")
	}
	for i, m := range req.Messages {
		if !validRoles[m.Role] {
			return Failf(KindMalformedRequest, "messages[%d]: unknown role %q", i, m.Role)
		}
		if len(m.ToolCalls) > 0 && m.Role != RoleAssistant {
			return Failf(KindMalformedRequest, "messages[%d]: tool_calls only allowed on assistant messages", i)
		}
		for j, tc := range m.ToolCalls {
			if tc.Function.Name == "" {
				return Failf(KindMalformedRequest, "messages[%d].tool_calls[%d]: function name is required", i, j)
			}
		}
		if m.Role == RoleTool {
			if m.ToolCallID == "" {
				return Failf(KindMalformedRequest, "messages[%d]: tool message missing tool_call_id", i)
			}
			// A tool message must answer a call issued by the assistant
			// turn immediately before it.
			if !issuedByPreviousAssistant(req.Messages, i, m.ToolCallID) {
				return Failf(KindMalformedRequest, "messages[%d]: tool_call_id %q was not issued by the preceding assistant turn", i, m.ToolCallID)
			}
		}
	}
	return nil
}

// issuedByPreviousAssistant walks back over any run of tool messages to the
// assistant turn that issued them and checks the referenced call ID.
func issuedByPreviousAssistant(msgs []Message, idx int, callID string) bool {
	for i := idx - 1; i >= 0; i-- {
		switch msgs[i].Role {
		case RoleTool:
			continue
		case RoleAssistant:
			for _, tc := range msgs[i].ToolCalls {
				if tc.ID == callID {
					return true
				}
			}
			return false
		default:
			return false
		}
	}
	return false
}

// DecodeResponse parses a chat-completion response, tolerating unknown fields.
func DecodeResponse(r io.Reader) (*ChatCompletionResponse, error) {
	var resp ChatCompletionResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

// EncodeResponse serializes a response in the wire shape. Every choice must
// already carry its finish_reason; the codec refuses to emit one without it.
func EncodeResponse(w io.Writer, resp *ChatCompletionResponse) error {
	for i, c := range resp.Choices {
		if c.FinishReason == "" {
			return fmt.Errorf("encode response: choices[%d] missing finish_reason", i)
		}
	}
	return json.NewEncoder(w).Encode(resp)
}

// NewResponse builds the envelope skeleton for a completed dispatch.
func NewResponse(model string, choices []Choice) *ChatCompletionResponse {
	return &ChatCompletionResponse{
		ID:      "chatcmpl-" + uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: choices,
	}
}
