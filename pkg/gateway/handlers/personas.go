package handlers

import (
	"net/http"

	"github.com/pitchroom/pitchroom/pkg/core"
	"github.com/pitchroom/pitchroom/pkg/gateway/personas"
)

// PersonasHandler serves GET /v1/personas: the static list of role-play
// call partners.
type PersonasHandler struct{}

type personasResponse struct {
	Personas []personas.Persona `json:"personas"`
}

func (PersonasHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, core.NewValidationError("method not allowed"))
		return
	}
	writeJSON(w, http.StatusOK, personasResponse{Personas: personas.All()})
}
