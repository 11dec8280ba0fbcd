package apierror

import (
	"context"
	"errors"
	"net/http"

	"github.com/pitchroom/pitchroom/pkg/core"
)

// Envelope is the wire shape of client-facing errors: a flat message
// string, matching what the dashboard front-end expects.
type Envelope struct {
	Error string `json:"error"`
}

// FromError maps any error onto the canonical taxonomy and an HTTP status.
func FromError(err error, requestID string) (*core.Error, int) {
	if err == nil {
		return nil, http.StatusOK
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &core.Error{
			Type:      core.ErrUpstream,
			Message:   "request timeout",
			RequestID: requestID,
		}, http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return &core.Error{
			Type:      core.ErrAPI,
			Message:   "request cancelled",
			RequestID: requestID,
		}, http.StatusRequestTimeout
	}

	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr != nil {
		out := *coreErr
		out.RequestID = requestID
		return &out, StatusFromType(coreErr.Type)
	}

	// Unknown errors: treat as internal (do not leak details by default).
	return &core.Error{
		Type:      core.ErrAPI,
		Message:   "internal error",
		RequestID: requestID,
	}, http.StatusInternalServerError
}

// StatusFromType maps an error type onto its HTTP status.
func StatusFromType(t core.ErrorType) int {
	switch t {
	case core.ErrValidation:
		return http.StatusBadRequest
	case core.ErrPermission:
		return http.StatusForbidden
	case core.ErrNotFound:
		return http.StatusNotFound
	case core.ErrUnavailable:
		return http.StatusServiceUnavailable
	case core.ErrSecretUnavailable, core.ErrUpstream, core.ErrTransport:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
