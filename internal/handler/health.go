package handler

import (
	"net/http"
	"time"

	"github.com/toolbridge/toolbridge/internal/protocol"
	"github.com/toolbridge/toolbridge/internal/tools"
)

const (
	ServiceName = "toolbridge"
	version     = "1.0.0"
)

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// HealthHandler handles GET /health and the GET / service banner.
// Liveness must have no side effects, so checks report configuration state
// rather than probing backends.
type HealthHandler struct {
	registry        *tools.Registry
	agentEnabled    bool
	upstreamEnabled bool
	sandboxRoot     string
}

func NewHealthHandler(registry *tools.Registry, agentEnabled, upstreamEnabled bool, sandboxRoot string) *HealthHandler {
	return &HealthHandler{
		registry:        registry,
		agentEnabled:    agentEnabled,
		upstreamEnabled: upstreamEnabled,
		sandboxRoot:     sandboxRoot,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	checks := map[string]string{"server": "ok"}
	if h.agentEnabled {
		checks["agent"] = "enabled"
	} else {
		checks["agent"] = "disabled"
	}
	if h.upstreamEnabled {
		checks["upstream"] = "configured"
	} else {
		checks["upstream"] = "offline fallback"
	}
	if h.sandboxRoot != "" {
		checks["sandbox"] = "restricted"
	} else {
		checks["sandbox"] = "unrestricted"
	}

	protocol.WriteJSON(w, http.StatusOK, HealthResponse{
		Status:    "healthy",
		Version:   version,
		Timestamp: time.Now().Format("2006-01-02 15:04:05"),
		Checks:    checks,
	})
}

// InfoResponse is returned by GET /
type InfoResponse struct {
	Name           string   `json:"name"`
	Version        string   `json:"version"`
	Status         string   `json:"status"`
	AvailableTools []string `json:"available_tools"`
}

// Info handles GET /
func (h *HealthHandler) Info(w http.ResponseWriter, r *http.Request) {
	protocol.WriteJSON(w, http.StatusOK, InfoResponse{
		Name:           ServiceName,
		Version:        version,
		Status:         "running",
		AvailableTools: h.registry.Names(),
	})
}
