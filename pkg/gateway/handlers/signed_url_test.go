package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/pitchroom/pitchroom/pkg/core"
)

type fakeResolver struct {
	calls atomic.Int64
	key   string
	err   error
}

func (r *fakeResolver) Resolve(context.Context) (string, error) {
	r.calls.Add(1)
	if r.err != nil {
		return "", r.err
	}
	return r.key, nil
}

type fakeFetcher struct {
	calls    atomic.Int64
	gotKey   string
	gotAgent string
	url      string
	err      error
}

func (f *fakeFetcher) SignedURL(_ context.Context, apiKey, agentID string) (string, error) {
	f.calls.Add(1)
	f.gotKey = apiKey
	f.gotAgent = agentID
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func postSignedURL(t *testing.T, h SignedURLHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/calls/signed-url", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rr.Body.String(), err)
	}
	return body.Error
}

func TestSignedURL_Success(t *testing.T) {
	resolver := &fakeResolver{key: "sk_secret"}
	fetcher := &fakeFetcher{url: "wss://example/signed"}
	h := SignedURLHandler{Secrets: resolver, Upstream: fetcher}

	rr := postSignedURL(t, h, `{"agent_id":"tT9mhGJdnZVWHGHHQMZ4"}`)

	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%q", rr.Code, rr.Body.String())
	}
	var body struct {
		URL string `json:"url"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.URL != "wss://example/signed" {
		t.Fatalf("url = %q, want the unmodified upstream value", body.URL)
	}
	if fetcher.gotKey != "sk_secret" {
		t.Fatalf("fetcher received key %q", fetcher.gotKey)
	}
	if fetcher.gotAgent != "tT9mhGJdnZVWHGHHQMZ4" {
		t.Fatalf("fetcher received agent %q", fetcher.gotAgent)
	}
}

func TestSignedURL_MissingAgentIDNeverResolvesSecret(t *testing.T) {
	resolver := &fakeResolver{key: "sk_secret"}
	fetcher := &fakeFetcher{url: "wss://example/signed"}
	h := SignedURLHandler{Secrets: resolver, Upstream: fetcher}

	for _, body := range []string{`{}`, `{"agent_id":""}`, `{"agent_id":"   "}`} {
		rr := postSignedURL(t, h, body)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("body %q: status=%d, want 400", body, rr.Code)
		}
		if got := decodeError(t, rr); got != "Agent ID is required" {
			t.Fatalf("body %q: error=%q", body, got)
		}
	}
	if calls := resolver.calls.Load(); calls != 0 {
		t.Fatalf("secret resolver called %d times for invalid requests", calls)
	}
	if calls := fetcher.calls.Load(); calls != 0 {
		t.Fatalf("upstream called %d times for invalid requests", calls)
	}
}

func TestSignedURL_SecretFailureNeverCallsUpstream(t *testing.T) {
	resolver := &fakeResolver{err: core.NewSecretUnavailableError("secret \"ELEVENLABS_API_KEY\" is not set")}
	fetcher := &fakeFetcher{url: "wss://example/signed"}
	h := SignedURLHandler{Secrets: resolver, Upstream: fetcher}

	rr := postSignedURL(t, h, `{"agent_id":"agent_1"}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d, want 500", rr.Code)
	}
	if calls := fetcher.calls.Load(); calls != 0 {
		t.Fatalf("upstream called %d times after secret failure", calls)
	}
	if got := decodeError(t, rr); !strings.Contains(got, "ELEVENLABS_API_KEY") {
		t.Fatalf("error=%q, want descriptive lookup message", got)
	}
}

func TestSignedURL_UpstreamErrorSurfacesDetail(t *testing.T) {
	resolver := &fakeResolver{key: "sk_secret"}
	fetcher := &fakeFetcher{err: core.NewUpstreamError("voice service error", `{"detail":"agent not found"}`)}
	h := SignedURLHandler{Secrets: resolver, Upstream: fetcher}

	rr := postSignedURL(t, h, `{"agent_id":"agent_1"}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d, want 500", rr.Code)
	}
	if got := decodeError(t, rr); !strings.Contains(got, "agent not found") {
		t.Fatalf("error=%q, want upstream detail included", got)
	}
}

func TestSignedURL_MalformedUpstreamBody(t *testing.T) {
	resolver := &fakeResolver{key: "sk_secret"}
	fetcher := &fakeFetcher{err: core.NewUpstreamError("Invalid response format", "")}
	h := SignedURLHandler{Secrets: resolver, Upstream: fetcher}

	rr := postSignedURL(t, h, `{"agent_id":"agent_1"}`)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d, want 500", rr.Code)
	}
	if got := decodeError(t, rr); got != "Invalid response format" {
		t.Fatalf("error=%q", got)
	}
}

func TestSignedURL_InvalidBodyIs400(t *testing.T) {
	h := SignedURLHandler{Secrets: &fakeResolver{}, Upstream: &fakeFetcher{}}

	rr := postSignedURL(t, h, `not json`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rr.Code)
	}
}

func TestSignedURL_MethodNotAllowed(t *testing.T) {
	h := SignedURLHandler{Secrets: &fakeResolver{}, Upstream: &fakeFetcher{}}

	req := httptest.NewRequest(http.MethodGet, "/v1/calls/signed-url", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d, want 400", rr.Code)
	}
}
