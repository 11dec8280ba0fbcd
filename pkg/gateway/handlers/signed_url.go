package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/pitchroom/pitchroom/pkg/core"
	"github.com/pitchroom/pitchroom/pkg/gateway/secrets"
)

// SignedURLFetcher exchanges an agent id for a signed realtime URL.
type SignedURLFetcher interface {
	SignedURL(ctx context.Context, apiKey, agentID string) (string, error)
}

// SignedURLHandler serves POST /v1/calls/signed-url: the request/response
// relay mode. One upstream attempt per call, no retries, fails closed.
type SignedURLHandler struct {
	Secrets  secrets.Resolver
	Upstream SignedURLFetcher
	Logger   *slog.Logger
}

type signedURLRequest struct {
	AgentID string `json:"agent_id"`
}

type signedURLResponse struct {
	URL string `json:"url"`
}

func (h SignedURLHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, r, core.NewValidationError("method not allowed"))
		return
	}

	var req signedURLRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64*1024)).Decode(&req); err != nil {
		writeError(w, r, core.NewValidationError("invalid request body"))
		return
	}

	// Validate before touching the secret store: a missing id must never
	// trigger a lookup.
	agentID := strings.TrimSpace(req.AgentID)
	if agentID == "" {
		writeError(w, r, core.NewValidationErrorWithParam("Agent ID is required", "agent_id"))
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

	url, err := h.Upstream.SignedURL(r.Context(), apiKey, agentID)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("signed url request failed", "agent_id", agentID, "error", err)
		}
		writeError(w, r, err)
		return
	}

	if h.Logger != nil {
		h.Logger.Info("issued signed url", "agent_id", agentID)
	}
	writeJSON(w, http.StatusOK, signedURLResponse{URL: url})
}
