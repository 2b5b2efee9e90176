package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/toolbridge/toolbridge/internal/agent"
	"github.com/toolbridge/toolbridge/internal/protocol"
	"github.com/toolbridge/toolbridge/internal/security"
)

// AgentRequest for POST /v1/agent
type AgentRequest struct {
	Prompt  string `json:"prompt"`
	Timeout int    `json:"timeout"` // seconds
}

func (r *AgentRequest) SetDefaults(fallback int) {
	if r.Timeout == 0 {
		r.Timeout = fallback
	}
	if r.Timeout < 10 {
		r.Timeout = 10
	}
	if r.Timeout > 600 {
		r.Timeout = 600
	}
}

// AgentResponse is returned by POST /v1/agent
type AgentResponse struct {
	Status    string   `json:"status"`
	Prompt    string   `json:"prompt"`
	Answer    string   `json:"answer"`
	ToolsUsed []string `json:"tools_used"`
}

// AgentHandler handles POST /v1/agent
type AgentHandler struct {
	agent          *agent.Agent
	audit          *security.AuditLogger
	defaultTimeout int
}

func NewAgentHandler(a *agent.Agent, audit *security.AuditLogger, defaultTimeout int) *AgentHandler {
	return &AgentHandler{agent: a, audit: audit, defaultTimeout: defaultTimeout}
}

// Chat handles POST /v1/agent
func (h *AgentHandler) Chat(w http.ResponseWriter, r *http.Request) {
	if h.agent == nil {
		protocol.WriteError(w, http.StatusServiceUnavailable, "agent is not configured")
		return
	}

	var req AgentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		protocol.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.SetDefaults(h.defaultTimeout)

	if req.Prompt == "" {
		protocol.WriteError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(req.Timeout)*time.Second)
	defer cancel()

	start := time.Now()
	answer, toolsUsed, err := h.agent.Run(ctx, req.Prompt)
	h.audit.LogAgentRequest(req.Prompt, toolsUsed, time.Since(start).Milliseconds(), err == nil)
	if err != nil {
		protocol.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	protocol.WriteJSON(w, http.StatusOK, AgentResponse{
		Status:    "success",
		Prompt:    req.Prompt,
		Answer:    answer,
		ToolsUsed: toolsUsed,
	})
}
