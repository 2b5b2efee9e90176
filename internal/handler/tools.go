package handler

import (
	"net/http"

	"github.com/toolbridge/toolbridge/internal/protocol"
	"github.com/toolbridge/toolbridge/internal/tools"
)

// ToolsHandler handles GET /tools capability discovery
type ToolsHandler struct {
	registry *tools.Registry
}

func NewToolsHandler(registry *tools.Registry) *ToolsHandler {
	return &ToolsHandler{registry: registry}
}

// ToolsResponse lists the registered tool schemas in wire form
type ToolsResponse struct {
	Tools []protocol.ToolDef `json:"tools"`
}

// List handles GET /tools
func (h *ToolsHandler) List(w http.ResponseWriter, r *http.Request) {
	registered := h.registry.List()
	defs := make([]protocol.ToolDef, 0, len(registered))
	for _, t := range registered {
		defs = append(defs, protocol.ToolDef{
			Type: "function",
			Function: protocol.ToolFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.InputSchema,
			},
		})
	}
	protocol.WriteJSON(w, http.StatusOK, ToolsResponse{Tools: defs})
}
