package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/pitchroom/pitchroom/pkg/gateway/apierror"
	"github.com/pitchroom/pitchroom/pkg/gateway/mw"
)

// writeError maps err onto the canonical taxonomy and writes the flat
// {"error": string} body the dashboard expects. Upstream error detail is
// appended to the message; secret values never reach this path.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	reqID, _ := mw.RequestIDFrom(r.Context())
	coreErr, status := apierror.FromError(err, reqID)

	message := coreErr.Message
	if coreErr.Upstream != "" {
		message += ": " + coreErr.Upstream
	}
	writeJSON(w, status, apierror.Envelope{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
