package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/pitchroom/pitchroom/pkg/core"
	"github.com/pitchroom/pitchroom/pkg/gateway/store"
)

// CallsHandler serves /v1/calls: plain CRUD over finished call records.
// Persistence is optional; without a configured store the routes report
// unavailable rather than failing silently.
type CallsHandler struct {
	Store  *store.CallStore
	Logger *slog.Logger
}

type callsResponse struct {
	Calls []store.CallRecord `json:"calls"`
}

func (h CallsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		writeError(w, r, core.NewUnavailableError("call history is not configured"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.list(w, r)
	case http.MethodPost:
		h.create(w, r)
	default:
		writeError(w, r, core.NewValidationError("method not allowed"))
	}
}

func (h CallsHandler) list(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	calls, err := h.Store.Recent(r.Context(), limit)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("list call records failed", "error", err)
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, callsResponse{Calls: calls})
}

func (h CallsHandler) create(w http.ResponseWriter, r *http.Request) {
	var rec store.CallRecord
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&rec); err != nil {
		writeError(w, r, core.NewValidationError("invalid request body"))
		return
	}

	saved, err := h.Store.Insert(r.Context(), rec)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("insert call record failed", "agent_id", rec.AgentID, "error", err)
		}
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, saved)
}
