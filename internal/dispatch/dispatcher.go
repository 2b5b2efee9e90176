package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/toolbridge/toolbridge/internal/protocol"
	"github.com/toolbridge/toolbridge/internal/security"
	"github.com/toolbridge/toolbridge/internal/tools"
)

// Dispatcher turns one decoded chat-completion request into a response:
// every tool call on the last assistant turn runs through registry lookup,
// argument validation and bounded execution, in declared order. Calls are
// independent; one failure never aborts its siblings.
type Dispatcher struct {
	registry *tools.Registry
	exec     *Executor
	audit    *security.AuditLogger
	service  string
}

func NewDispatcher(registry *tools.Registry, exec *Executor, audit *security.AuditLogger, serviceName string) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		exec:     exec,
		audit:    audit,
		service:  serviceName,
	}
}

// Dispatch handles exactly one request. The decision of which tools to call
// was made upstream; this is execution only.
func (d *Dispatcher) Dispatch(ctx context.Context, req *protocol.ChatCompletionRequest) *protocol.ChatCompletionResponse {
	last := req.Messages[len(req.Messages)-1]

	if len(req.Tools) == 0 || last.Role != protocol.RoleAssistant || len(last.ToolCalls) == 0 {
		// The tool path needs both a declared tool list and pending calls
		// on the last assistant turn. Anything else gets the capability
		// summary with finish_reason stop; no implementation runs.
		content := fmt.Sprintf("Hello! I am %s. Available tools: %s.",
			d.service, strings.Join(d.registry.Names(), ", "))
		return protocol.NewResponse(req.Model, []protocol.Choice{{
			Index:        0,
			Message:      protocol.Message{Role: protocol.RoleAssistant, Content: content},
			FinishReason: protocol.FinishStop,
		}})
	}

	choices := make([]protocol.Choice, 0, len(last.ToolCalls)+1)
	choices = append(choices, protocol.Choice{
		Index: 0,
		Message: protocol.Message{
			Role:      protocol.RoleAssistant,
			Content:   "tool calls dispatched",
			ToolCalls: last.ToolCalls,
		},
		FinishReason: protocol.FinishToolCalls,
	})

	for i, tc := range last.ToolCalls {
		content := d.runCall(ctx, tc)
		choices = append(choices, protocol.Choice{
			Index: i + 1,
			Message: protocol.Message{
				Role:       protocol.RoleTool,
				Content:    content,
				ToolCallID: tc.ID,
			},
			FinishReason: protocol.FinishToolCalls,
		})
	}

	return protocol.NewResponse(req.Model, choices)
}

// runCall executes one tool call and returns the tool-role message content:
// the JSON result on success, a structured error payload on failure. A call
// is never dropped silently.
func (d *Dispatcher) runCall(ctx context.Context, tc protocol.ToolCall) string {
	start := time.Now()
	name := tc.Function.Name

	content, err := func() (string, error) {
		t, ok := d.registry.Lookup(name)
		if !ok {
			return "", protocol.Failf(protocol.KindUnknownTool, "unknown tool: %s", name)
		}

		raw, err := decodeArguments(tc.Function.Arguments)
		if err != nil {
			return "", err
		}
		input, err := tools.ValidateArguments(raw, t.InputSchema)
		if err != nil {
			return "", err
		}
		return d.exec.Execute(ctx, t, input)
	}()

	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		kind := protocol.KindOf(err)
		log.Warn().
			Str("tool", name).
			Str("tool_call_id", tc.ID).
			Str("kind", string(kind)).
			Err(err).
			Msg("tool call failed")
		d.audit.LogToolCall(name, tc.ID, tc.Function.Arguments, elapsed, false, err.Error())
		return failureContent(kind, err)
	}

	log.Debug().
		Str("tool", name).
		Str("tool_call_id", tc.ID).
		Int64("execution_time_ms", elapsed).
		Msg("tool call completed")
	d.audit.LogToolCall(name, tc.ID, tc.Function.Arguments, elapsed, true, "")
	return content
}

// decodeArguments parses the serialized arguments object. An empty string
// counts as an empty object; anything that is valid JSON but not an object
// is malformed_arguments.
func decodeArguments(arguments string) (interface{}, error) {
	if strings.TrimSpace(arguments) == "" {
		return map[string]interface{}{}, nil
	}
	var raw interface{}
	if err := json.Unmarshal([]byte(arguments), &raw); err != nil {
		return nil, protocol.Failf(protocol.KindMalformedArguments, "arguments are not valid JSON: %v", err)
	}
	if _, ok := raw.(map[string]interface{}); !ok {
		return nil, protocol.Failf(protocol.KindMalformedArguments, "arguments must be a JSON object")
	}
	return raw, nil
}

func failureContent(kind protocol.FailureKind, err error) string {
	msg := err.Error()
	var te *protocol.ToolError
	if errors.As(err, &te) {
		msg = te.Message
	}
	b, _ := json.Marshal(protocol.FailurePayload{
		Error: protocol.FailureDetail{Kind: kind, Message: msg},
	})
	return string(b)
}
