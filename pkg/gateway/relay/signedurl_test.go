package relay

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pitchroom/pitchroom/pkg/core"
)

func TestSignedURL_RoundTripsUpstreamValue(t *testing.T) {
	const issued = "wss://example/signed?token=abc%20def"

	var gotPath, gotAgent, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAgent = r.URL.Query().Get("agent_id")
		gotKey = r.Header.Get("xi-api-key")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"signed_url":"` + issued + `"}`))
	}))
	defer srv.Close()

	c := SignedURLClient{BaseURL: srv.URL, HTTPClient: srv.Client()}
	got, err := c.SignedURL(context.Background(), "sk_key", "tT9mhGJdnZVWHGHHQMZ4")
	if err != nil {
		t.Fatalf("SignedURL() error = %v", err)
	}
	if got != issued {
		t.Fatalf("SignedURL() = %q, want the unmodified upstream value %q", got, issued)
	}
	if gotPath != "/v1/conversation/get_signed_url" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotAgent != "tT9mhGJdnZVWHGHHQMZ4" {
		t.Fatalf("agent_id = %q", gotAgent)
	}
	if gotKey != "sk_key" {
		t.Fatalf("xi-api-key header = %q", gotKey)
	}
}

func TestSignedURL_MissingAgentIDNeverCallsUpstream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("upstream should not be called")
	}))
	defer srv.Close()

	c := SignedURLClient{BaseURL: srv.URL, HTTPClient: srv.Client()}
	_, err := c.SignedURL(context.Background(), "sk_key", "  ")
	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Type != core.ErrValidation {
		t.Fatalf("error = %v, want validation_error", err)
	}
}

func TestSignedURL_UpstreamErrorWrapsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"invalid api key"}`))
	}))
	defer srv.Close()

	c := SignedURLClient{BaseURL: srv.URL, HTTPClient: srv.Client()}
	_, err := c.SignedURL(context.Background(), "sk_key", "agent_1")

	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Type != core.ErrUpstream {
		t.Fatalf("error = %v, want upstream_error", err)
	}
	if !strings.Contains(coreErr.Upstream, "invalid api key") {
		t.Fatalf("upstream body not preserved: %q", coreErr.Upstream)
	}
}

func TestSignedURL_MalformedBodyIsInvalidFormat(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `<html>oops</html>`},
		{name: "missing field", body: `{"url":"wss://wrong-field"}`},
		{name: "empty field", body: `{"signed_url":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := SignedURLClient{BaseURL: srv.URL, HTTPClient: srv.Client()}
			_, err := c.SignedURL(context.Background(), "sk_key", "agent_1")

			var coreErr *core.Error
			if !errors.As(err, &coreErr) || coreErr.Type != core.ErrUpstream {
				t.Fatalf("error = %v, want upstream_error", err)
			}
			if coreErr.Message != "Invalid response format" {
				t.Fatalf("message = %q, want %q", coreErr.Message, "Invalid response format")
			}
		})
	}
}

func TestSignedURL_EmptyKeyIsSecretUnavailable(t *testing.T) {
	c := SignedURLClient{BaseURL: "http://unused.invalid"}
	_, err := c.SignedURL(context.Background(), "", "agent_1")

	var coreErr *core.Error
	if !errors.As(err, &coreErr) || coreErr.Type != core.ErrSecretUnavailable {
		t.Fatalf("error = %v, want secret_unavailable", err)
	}
}
