package security

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/rs/zerolog/log"
)

// AuditLogger logs tool invocations with hashed argument payloads
type AuditLogger struct {
	enabled bool
}

func NewAuditLogger(enabled bool) *AuditLogger {
	return &AuditLogger{enabled: enabled}
}

// LogToolCall records one dispatched tool invocation
func (a *AuditLogger) LogToolCall(
	toolName, toolCallID, rawArguments string,
	executionTimeMs int64,
	success bool,
	errMsg string,
) {
	if !a.enabled {
		return
	}
	argsHash := hashStr(rawArguments)[:16]

	evt := log.Info().
		Str("event", "tool_audit").
		Str("tool", toolName).
		Str("tool_call_id", toolCallID).
		Str("args_hash", argsHash).
		Int64("execution_time_ms", executionTimeMs).
		Bool("success", success)

	if errMsg != "" {
		evt = evt.Str("error", errMsg)
	}
	evt.Msg("audit")
}

// LogAgentRequest records an AI agent request event
func (a *AuditLogger) LogAgentRequest(prompt string, toolsUsed []string, executionTimeMs int64, success bool) {
	if !a.enabled {
		return
	}
	log.Info().
		Str("event", "agent_audit").
		Str("prompt_hash", hashStr(prompt)[:16]).
		Strs("tools_used", toolsUsed).
		Int64("execution_time_ms", executionTimeMs).
		Bool("success", success).
		Msg("agent audit")
}

func hashStr(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
