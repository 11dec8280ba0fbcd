// Package secrets resolves the upstream voice-service API key. Resolved
// values are handed to the relay only; they are never logged and never
// reach the browser client.
package secrets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pitchroom/pitchroom/pkg/core"
)

// Resolver resolves the current value of a named secret.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// EnvResolver reads the secret from the process environment.
type EnvResolver struct {
	Name string
}

func (r EnvResolver) Resolve(_ context.Context) (string, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return "", core.NewSecretUnavailableError("secret name is required")
	}
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		return "", core.NewSecretUnavailableError(fmt.Sprintf("secret %q is not set", name))
	}
	return value, nil
}

// RPCResolver fetches a named secret from a remote secret store via a
// single POST to {BaseURL}/rpc/{Name}. The store is expected to answer
// with a JSON body carrying a "secret" field.
type RPCResolver struct {
	BaseURL    string
	ServiceKey string
	Name       string
	HTTPClient *http.Client
}

type rpcSecretResponse struct {
	Secret string `json:"secret"`
}

func (r RPCResolver) Resolve(ctx context.Context) (string, error) {
	name := strings.TrimSpace(r.Name)
	if name == "" {
		return "", core.NewSecretUnavailableError("secret name is required")
	}
	base := strings.TrimRight(strings.TrimSpace(r.BaseURL), "/")
	if base == "" {
		return "", core.NewSecretUnavailableError("secret store url is not configured")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/rpc/"+name, strings.NewReader("{}"))
	if err != nil {
		return "", core.NewSecretUnavailableError(fmt.Sprintf("build secret lookup for %q: %v", name, err))
	}
	req.Header.Set("Content-Type", "application/json")
	if key := strings.TrimSpace(r.ServiceKey); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
		req.Header.Set("Apikey", key)
	}

	client := r.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", core.NewSecretUnavailableError(fmt.Sprintf("secret lookup for %q failed: %v", name, err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain without echoing; the store's error body may reference key material.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return "", core.NewSecretUnavailableError(fmt.Sprintf("secret lookup for %q returned status %d", name, resp.StatusCode))
	}

	var decoded rpcSecretResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64*1024)).Decode(&decoded); err != nil {
		return "", core.NewSecretUnavailableError(fmt.Sprintf("decode secret lookup for %q: %v", name, err))
	}
	if strings.TrimSpace(decoded.Secret) == "" {
		return "", core.NewSecretUnavailableError(fmt.Sprintf("secret %q is empty", name))
	}
	return strings.TrimSpace(decoded.Secret), nil
}

// Cached wraps a Resolver with a process-wide, time-boxed cache. A zero TTL
// disables caching entirely. Invalidate drops the cached value immediately,
// so a rotation signal takes effect on the next request.
type Cached struct {
	inner Resolver
	ttl   time.Duration
	now   func() time.Time

	mu      sync.Mutex
	value   string
	expires time.Time
}

func NewCached(inner Resolver, ttl time.Duration) *Cached {
	return &Cached{inner: inner, ttl: ttl, now: time.Now}
}

func (c *Cached) Resolve(ctx context.Context) (string, error) {
	if c.ttl <= 0 {
		return c.inner.Resolve(ctx)
	}

	c.mu.Lock()
	if c.value != "" && c.now().Before(c.expires) {
		value := c.value
		c.mu.Unlock()
		return value, nil
	}
	c.mu.Unlock()

	value, err := c.inner.Resolve(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	c.value = value
	c.expires = c.now().Add(c.ttl)
	c.mu.Unlock()
	return value, nil
}

// Invalidate drops the cached secret. Called on rotation signals.
func (c *Cached) Invalidate() {
	c.mu.Lock()
	c.value = ""
	c.expires = time.Time{}
	c.mu.Unlock()
}
