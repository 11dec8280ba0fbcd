package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RelayMode selects how the gateway hands the realtime stream to clients.
// The mode is fixed at startup; the two modes are never mixed at runtime.
type RelayMode string

const (
	// RelayModeSignedURL issues a short-lived signed connection URL and
	// leaves the realtime stream between the client and upstream.
	RelayModeSignedURL RelayMode = "signed_url"
	// RelayModeBridge upgrades the inbound connection and forwards frames
	// to the upstream realtime endpoint for the life of the call.
	RelayModeBridge RelayMode = "bridge"
)

// SecretBackend selects where the upstream API key is resolved from.
type SecretBackend string

const (
	SecretBackendEnv SecretBackend = "env"
	SecretBackendRPC SecretBackend = "rpc"
)

type Config struct {
	Addr string

	RelayMode RelayMode

	// Secret resolution.
	SecretBackend  SecretBackend
	SecretName     string
	SecretRPCURL   string
	SecretRPCKey   string
	SecretCacheTTL time.Duration

	// Upstream voice service.
	VoiceAPIBaseURL string
	VoiceWSBaseURL  string

	// CORS. "*" allows any origin (the dashboard is served from arbitrary
	// preview hosts); a CSV narrows it to an allowlist.
	CORSAllowedOrigins map[string]struct{}
	CORSAllowAll       bool

	// Bridge mode limits.
	BridgeQueueSize    int
	BridgeWriteTimeout time.Duration

	// Optional Postgres call-record store. Empty disables persistence.
	DatabaseURL string

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration

	// Upstream HTTP client defaults.
	UpstreamConnectTimeout        time.Duration
	UpstreamResponseHeaderTimeout time.Duration
}

func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                          envOr("PITCHROOM_ADDR", ":8080"),
		RelayMode:                     RelayMode(envOr("PITCHROOM_RELAY_MODE", string(RelayModeSignedURL))),
		SecretBackend:                 SecretBackend(envOr("PITCHROOM_SECRET_BACKEND", string(SecretBackendEnv))),
		SecretName:                    envOr("PITCHROOM_SECRET_NAME", "ELEVENLABS_API_KEY"),
		SecretRPCURL:                  strings.TrimSpace(os.Getenv("PITCHROOM_SECRET_RPC_URL")),
		SecretRPCKey:                  strings.TrimSpace(os.Getenv("PITCHROOM_SECRET_RPC_KEY")),
		SecretCacheTTL:                envDurationOr("PITCHROOM_SECRET_CACHE_TTL", time.Minute),
		VoiceAPIBaseURL:               envOr("PITCHROOM_VOICE_API_BASE_URL", "https://api.elevenlabs.io"),
		VoiceWSBaseURL:                envOr("PITCHROOM_VOICE_WS_BASE_URL", "wss://api.elevenlabs.io/v2/chat"),
		CORSAllowedOrigins:            make(map[string]struct{}),
		BridgeQueueSize:               envIntOr("PITCHROOM_BRIDGE_QUEUE_SIZE", 64),
		BridgeWriteTimeout:            envDurationOr("PITCHROOM_BRIDGE_WRITE_TIMEOUT", 5*time.Second),
		DatabaseURL:                   strings.TrimSpace(os.Getenv("PITCHROOM_DATABASE_URL")),
		ReadHeaderTimeout:             envDurationOr("PITCHROOM_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:                   envDurationOr("PITCHROOM_READ_TIMEOUT", 30*time.Second),
		ShutdownGracePeriod:           envDurationOr("PITCHROOM_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
		UpstreamConnectTimeout:        envDurationOr("PITCHROOM_CONNECT_TIMEOUT", 5*time.Second),
		UpstreamResponseHeaderTimeout: envDurationOr("PITCHROOM_RESPONSE_HEADER_TIMEOUT", 30*time.Second),
	}

	switch cfg.RelayMode {
	case RelayModeSignedURL, RelayModeBridge:
	default:
		return Config{}, fmt.Errorf("PITCHROOM_RELAY_MODE must be one of signed_url|bridge")
	}

	switch cfg.SecretBackend {
	case SecretBackendEnv, SecretBackendRPC:
	default:
		return Config{}, fmt.Errorf("PITCHROOM_SECRET_BACKEND must be one of env|rpc")
	}
	if cfg.SecretBackend == SecretBackendRPC && cfg.SecretRPCURL == "" {
		return Config{}, fmt.Errorf("PITCHROOM_SECRET_RPC_URL must be set when PITCHROOM_SECRET_BACKEND=rpc")
	}
	if strings.TrimSpace(cfg.SecretName) == "" {
		return Config{}, fmt.Errorf("PITCHROOM_SECRET_NAME must not be empty")
	}
	if cfg.SecretCacheTTL < 0 {
		return Config{}, fmt.Errorf("PITCHROOM_SECRET_CACHE_TTL must be >= 0")
	}

	origins := envOr("PITCHROOM_CORS_ORIGINS", "*")
	if origins == "*" {
		cfg.CORSAllowAll = true
	} else {
		for _, origin := range splitCSV(origins) {
			cfg.CORSAllowedOrigins[origin] = struct{}{}
		}
	}

	if strings.TrimSpace(cfg.VoiceAPIBaseURL) == "" {
		return Config{}, fmt.Errorf("PITCHROOM_VOICE_API_BASE_URL must not be empty")
	}
	if strings.TrimSpace(cfg.VoiceWSBaseURL) == "" {
		return Config{}, fmt.Errorf("PITCHROOM_VOICE_WS_BASE_URL must not be empty")
	}
	if cfg.BridgeQueueSize <= 0 {
		return Config{}, fmt.Errorf("PITCHROOM_BRIDGE_QUEUE_SIZE must be > 0")
	}
	if cfg.BridgeWriteTimeout <= 0 {
		return Config{}, fmt.Errorf("PITCHROOM_BRIDGE_WRITE_TIMEOUT must be > 0")
	}
	if cfg.ReadHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("PITCHROOM_READ_HEADER_TIMEOUT must be > 0")
	}
	if cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("PITCHROOM_READ_TIMEOUT must be > 0")
	}
	if cfg.ShutdownGracePeriod <= 0 {
		return Config{}, fmt.Errorf("PITCHROOM_SHUTDOWN_GRACE_PERIOD must be > 0")
	}
	if cfg.UpstreamConnectTimeout <= 0 {
		return Config{}, fmt.Errorf("PITCHROOM_CONNECT_TIMEOUT must be > 0")
	}
	if cfg.UpstreamResponseHeaderTimeout <= 0 {
		return Config{}, fmt.Errorf("PITCHROOM_RESPONSE_HEADER_TIMEOUT must be > 0")
	}

	return cfg, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envIntOr(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}

func envDurationOr(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return def
	}
	return d
}

func splitCSV(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
