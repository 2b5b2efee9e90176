package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"
	"github.com/toolbridge/toolbridge/internal/dispatch"
	"github.com/toolbridge/toolbridge/internal/tools"
)

// ToolCall represents a tool invocation request from the LLM
type ToolCall struct {
	ID    string
	Name  string
	Input map[string]interface{}
}

// Agent wraps the Anthropic SDK for a multi-turn tool-calling loop over the
// registry. The deterministic dispatcher never depends on it; this is the
// optional second round against an upstream completion step.
type Agent struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	registry  *tools.Registry
	exec      *dispatch.Executor
}

// New creates an agent backed by Anthropic Claude or a compatible provider
func New(apiKey, model, baseURL string, registry *tools.Registry, exec *dispatch.Executor) *Agent {
	if model == "" {
		model = "claude-sonnet-4-6"
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	client := anthropic.NewClient(opts...)
	return &Agent{
		client:    client,
		model:     model,
		maxTokens: 4096,
		registry:  registry,
		exec:      exec,
	}
}

const systemPrompt = `You are a helpful assistant with access to local utility tools
(clock, weather, calculator, translator, filesystem inspector).
Use a tool whenever it answers the user's question more precisely than you can,
then explain the result in plain language.`

// Run executes the agent loop: the LLM calls registry tools until end_turn.
// Returns (finalText, toolsUsed, error). Tool calls run through the same
// bounded executor as wire-level dispatch.
func (a *Agent) Run(ctx context.Context, userPrompt string) (string, []string, error) {
	registered := a.registry.List()
	anthToolParams := make([]anthropic.ToolUnionUnionParam, len(registered))
	for i, t := range registered {
		var propsRaw interface{}
		if props, ok := t.InputSchema["properties"]; ok {
			propsRaw = props
		}

		schema := map[string]interface{}{
			"type":       "object",
			"properties": propsRaw,
		}
		if required, ok := t.InputSchema["required"]; ok {
			schema["required"] = required
		}
		anthToolParams[i] = anthropic.ToolParam{
			Name:        anthropic.String(t.Name),
			Description: anthropic.String(t.Description),
			InputSchema: anthropic.F[interface{}](schema),
		}
	}

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
	}

	var toolsUsed []string
	maxIter := 10

	for iter := 0; iter < maxIter; iter++ {
		params := anthropic.MessageNewParams{
			Model:     anthropic.F(anthropic.Model(a.model)),
			MaxTokens: anthropic.F(int64(a.maxTokens)),
			Messages:  anthropic.F(messages),
			Tools:     anthropic.F(anthToolParams),
			System: anthropic.F([]anthropic.TextBlockParam{
				anthropic.NewTextBlock(systemPrompt),
			}),
		}

		resp, err := a.client.Messages.New(ctx, params)
		if err != nil {
			return "", toolsUsed, fmt.Errorf("LLM call failed: %w", err)
		}

		var textContent string
		var pendingToolCalls []ToolCall

		for _, block := range resp.Content {
			switch b := block.AsUnion().(type) {
			case anthropic.TextBlock:
				textContent += b.Text
			case anthropic.ToolUseBlock:
				var input map[string]interface{}
				if err := json.Unmarshal(b.Input, &input); err != nil {
					log.Warn().Err(err).Str("tool", b.Name).Msg("failed to parse tool input")
					input = map[string]interface{}{}
				}
				pendingToolCalls = append(pendingToolCalls, ToolCall{
					ID:    b.ID,
					Name:  b.Name,
					Input: input,
				})
			}
		}

		log.Debug().
			Int("iter", iter).
			Str("stop_reason", string(resp.StopReason)).
			Int("tool_calls", len(pendingToolCalls)).
			Msg("agent iteration")

		isDone := resp.StopReason == "end_turn" ||
			resp.StopReason == "stop" ||
			resp.StopReason == "stop_sequence" ||
			resp.StopReason == "max_tokens" ||
			len(pendingToolCalls) == 0
		if isDone {
			return textContent, toolsUsed, nil
		}

		// Force final answer near the iteration budget to avoid runaway loops
		if iter >= 7 {
			messages = append(messages, resp.ToParam())
			messages = append(messages, anthropic.NewUserMessage(
				anthropic.NewTextBlock("You have enough data. Please provide your final answer now without calling any more tools."),
			))
			finalParams := anthropic.MessageNewParams{
				Model:     anthropic.F(anthropic.Model(a.model)),
				MaxTokens: anthropic.F(int64(a.maxTokens)),
				Messages:  anthropic.F(messages),
				System: anthropic.F([]anthropic.TextBlockParam{
					anthropic.NewTextBlock(systemPrompt),
				}),
			}
			finalResp, err := a.client.Messages.New(ctx, finalParams)
			if err != nil {
				return textContent, toolsUsed, fmt.Errorf("final answer call failed: %w", err)
			}
			for _, block := range finalResp.Content {
				if b, ok := block.AsUnion().(anthropic.TextBlock); ok {
					textContent += b.Text
				}
			}
			return textContent, toolsUsed, nil
		}

		messages = append(messages, resp.ToParam())

		var toolResults []anthropic.ContentBlockParamUnion
		for _, tc := range pendingToolCalls {
			toolsUsed = append(toolsUsed, tc.Name)
			result, execErr := a.executeTool(ctx, tc)
			if execErr != nil {
				log.Warn().Err(execErr).Str("tool", tc.Name).Msg("tool execution error")
				result = fmt.Sprintf("error: %v", execErr)
			}
			toolResults = append(toolResults, anthropic.NewToolResultBlock(tc.ID, result, execErr != nil))
		}
		messages = append(messages, anthropic.NewUserMessage(toolResults...))
	}

	return "", toolsUsed, fmt.Errorf("agent loop exceeded max iterations (%d)", maxIter)
}

// executeTool validates and runs one model-requested call through the same
// path wire-level tool calls take.
func (a *Agent) executeTool(ctx context.Context, tc ToolCall) (string, error) {
	t, ok := a.registry.Lookup(tc.Name)
	if !ok {
		return "", fmt.Errorf("unknown tool: %s", tc.Name)
	}
	var raw interface{} = tc.Input
	input, err := tools.ValidateArguments(raw, t.InputSchema)
	if err != nil {
		return "", err
	}
	return a.exec.Execute(ctx, t, input)
}
