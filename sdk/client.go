// Package pitchroom provides the Go client for the relay gateway: a thin
// HTTP client plus the call-session controller that drives one role-play
// call end to end.
package pitchroom

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pitchroom/pitchroom/pkg/gateway/personas"
	"github.com/pitchroom/pitchroom/pkg/gateway/store"
)

// Persona is a role-play call partner served by the gateway.
type Persona = personas.Persona

// Client talks to the relay gateway over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientOption customizes a Client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient creates a gateway client for the given base URL, for example
// "http://localhost:8080".
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Personas fetches the persona list from the gateway.
func (c *Client) Personas(ctx context.Context) ([]Persona, error) {
	var out struct {
		Personas []Persona `json:"personas"`
	}
	if err := c.getJSON(ctx, "/v1/personas", &out); err != nil {
		return nil, err
	}
	return out.Personas, nil
}

// SignedCallURL exchanges an agent id for a single-use realtime
// connection URL. The returned URL is consumed as-is, never stored.
func (c *Client) SignedCallURL(ctx context.Context, agentID string) (string, error) {
	body, err := json.Marshal(map[string]string{"agent_id": agentID})
	if err != nil {
		return "", err
	}

	var out struct {
		URL string `json:"url"`
	}
	if err := c.postJSON(ctx, "/v1/calls/signed-url", body, &out); err != nil {
		return "", err
	}
	if strings.TrimSpace(out.URL) == "" {
		return "", fmt.Errorf("gateway returned an empty connection url")
	}
	return out.URL, nil
}

// SaveCallRecord persists a finished call when the gateway has call
// history configured.
func (c *Client) SaveCallRecord(ctx context.Context, rec store.CallRecord) (store.CallRecord, error) {
	body, err := json.Marshal(rec)
	if err != nil {
		return store.CallRecord{}, err
	}
	var saved store.CallRecord
	if err := c.postJSON(ctx, "/v1/calls", body, &saved); err != nil {
		return store.CallRecord{}, err
	}
	return saved, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: req.Method, URL: req.URL.String(), Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &TransportError{Op: req.Method, URL: req.URL.String(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var envelope struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &envelope) == nil && envelope.Error != "" {
			return fmt.Errorf("gateway error (%d): %s", resp.StatusCode, envelope.Error)
		}
		return fmt.Errorf("gateway error (%d)", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode gateway response: %w", err)
	}
	return nil
}
