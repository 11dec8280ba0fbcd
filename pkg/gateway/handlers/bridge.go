package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/pitchroom/pitchroom/pkg/core"
	"github.com/pitchroom/pitchroom/pkg/gateway/relay"
	"github.com/pitchroom/pitchroom/pkg/gateway/secrets"
)

// BridgeHandler serves GET /v1/calls/bridge: the streaming relay mode.
// After the upgrade the handler is a dumb pipe; frames cross it verbatim.
type BridgeHandler struct {
	Secrets secrets.Resolver
	Bridge  *relay.Bridge
	Logger  *slog.Logger
}

func (h BridgeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.EqualFold(strings.TrimSpace(r.Header.Get("Upgrade")), "websocket") {
		writeError(w, r, core.NewValidationError("Expected WebSocket connection"))
		return
	}

	agentID := strings.TrimSpace(r.URL.Query().Get("agentId"))
	if agentID == "" {
		writeError(w, r, core.NewValidationErrorWithParam("Agent ID is required", "agentId"))
		return
	}

	apiKey, err := h.Secrets.Resolve(r.Context())
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("secret resolution failed", "error", err)
		}
		writeError(w, r, err)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		return
	}

	if err := h.Bridge.Run(r.Context(), conn, apiKey, agentID); err != nil {
		if h.Logger != nil {
			h.Logger.Warn("bridge session ended with error", "agent_id", agentID, "error", err)
		}
	}
}
