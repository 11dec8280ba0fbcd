package core

import (
	"fmt"
)

// Error is the canonical error carried between gateway components.
type Error struct {
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Param     string    `json:"param,omitempty"`
	RequestID string    `json:"request_id,omitempty"`

	// Upstream holds the raw upstream error body, when one exists. It is
	// surfaced to callers but must never contain credentials.
	Upstream string `json:"upstream,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	ErrValidation        ErrorType = "validation_error"
	ErrSecretUnavailable ErrorType = "secret_unavailable"
	ErrUpstream          ErrorType = "upstream_error"
	ErrPermission        ErrorType = "permission_error"
	ErrTransport         ErrorType = "transport_error"
	ErrNotFound          ErrorType = "not_found_error"
	ErrUnavailable       ErrorType = "unavailable_error"
	ErrAPI               ErrorType = "api_error"
)

// NewValidationError creates a validation error for a missing or malformed input.
func NewValidationError(message string) *Error {
	return &Error{Type: ErrValidation, Message: message}
}

// NewValidationErrorWithParam creates a validation error naming the offending parameter.
func NewValidationErrorWithParam(message, param string) *Error {
	return &Error{Type: ErrValidation, Message: message, Param: param}
}

// NewSecretUnavailableError reports a failed or empty secret-store lookup.
// The message must describe the lookup, never the secret value.
func NewSecretUnavailableError(message string) *Error {
	return &Error{Type: ErrSecretUnavailable, Message: message}
}

// NewUpstreamError wraps an upstream non-2xx response or malformed body.
func NewUpstreamError(message, upstreamBody string) *Error {
	return &Error{Type: ErrUpstream, Message: message, Upstream: upstreamBody}
}

// NewPermissionError reports a denied permission (for example microphone access).
func NewPermissionError(message string) *Error {
	return &Error{Type: ErrPermission, Message: message}
}

// NewTransportError reports a connection dropped or failed mid-flight.
func NewTransportError(message string) *Error {
	return &Error{Type: ErrTransport, Message: message}
}

// NewNotFoundError creates a not found error.
func NewNotFoundError(message string) *Error {
	return &Error{Type: ErrNotFound, Message: message}
}

// NewUnavailableError reports an optional subsystem that is not configured.
func NewUnavailableError(message string) *Error {
	return &Error{Type: ErrUnavailable, Message: message}
}

// NewAPIError creates a generic internal error.
func NewAPIError(message string) *Error {
	return &Error{Type: ErrAPI, Message: message}
}
