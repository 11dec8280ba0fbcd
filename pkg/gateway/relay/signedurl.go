// Package relay talks to the upstream conversational-voice service on
// behalf of browser clients, so the API credential never leaves the
// backend.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pitchroom/pitchroom/pkg/core"
)

const signedURLPath = "/v1/conversation/get_signed_url"

// SignedURLClient fetches short-lived signed connection URLs from the
// voice service. One outbound GET per call attempt, no retries.
type SignedURLClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

type signedURLResponse struct {
	SignedURL string `json:"signed_url"`
}

// SignedURL exchanges the agent id for a signed realtime connection URL.
// The returned URL is passed through untouched; clients connect to exactly
// what the upstream issued.
func (c SignedURLClient) SignedURL(ctx context.Context, apiKey, agentID string) (string, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return "", core.NewValidationErrorWithParam("Agent ID is required", "agent_id")
	}
	if strings.TrimSpace(apiKey) == "" {
		return "", core.NewSecretUnavailableError("voice api key is empty")
	}

	endpoint := strings.TrimRight(strings.TrimSpace(c.BaseURL), "/") + signedURLPath + "?agent_id=" + url.QueryEscape(agentID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", core.NewUpstreamError(fmt.Sprintf("build signed url request: %v", err), "")
	}
	req.Header.Set("xi-api-key", apiKey)
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", core.NewUpstreamError(fmt.Sprintf("signed url request failed: %v", err), "")
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", core.NewUpstreamError("voice service error", strings.TrimSpace(string(body)))
	}
	if readErr != nil {
		return "", core.NewUpstreamError(fmt.Sprintf("read signed url response: %v", readErr), "")
	}

	var decoded signedURLResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", core.NewUpstreamError("Invalid response format", "")
	}
	if strings.TrimSpace(decoded.SignedURL) == "" {
		return "", core.NewUpstreamError("Invalid response format", "")
	}
	return decoded.SignedURL, nil
}
