package handler

import (
	"errors"
	"net/http"

	"github.com/toolbridge/toolbridge/internal/dispatch"
	"github.com/toolbridge/toolbridge/internal/protocol"
)

// ChatHandler handles POST /v1/chat/completions
type ChatHandler struct {
	dispatcher *dispatch.Dispatcher
}

func NewChatHandler(dispatcher *dispatch.Dispatcher) *ChatHandler {
	return &ChatHandler{dispatcher: dispatcher}
}

// Completions decodes the request, dispatches any tool calls and encodes the
// response envelope. Decode failures are terminal (Rejected, no tool runs);
// everything past decode answers 200 with per-call results inside the
// envelope.
func (h *ChatHandler) Completions(w http.ResponseWriter, r *http.Request) {
	req, err := protocol.DecodeRequest(r.Body)
	if err != nil {
		var te *protocol.ToolError
		if errors.As(err, &te) {
			protocol.WriteKindError(w, http.StatusBadRequest, te.Kind, te.Message)
			return
		}
		protocol.WriteKindError(w, http.StatusBadRequest, protocol.KindMalformedRequest, err.Error())
		return
	}

	resp := h.dispatcher.Dispatch(r.Context(), req)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := protocol.EncodeResponse(w, resp); err != nil {
		// Headers are gone; nothing to do but log via the middleware chain.
		return
	}
}
