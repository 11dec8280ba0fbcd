package server

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/pitchroom/pitchroom/pkg/gateway/config"
	"github.com/pitchroom/pitchroom/pkg/gateway/handlers"
	"github.com/pitchroom/pitchroom/pkg/gateway/mw"
	"github.com/pitchroom/pitchroom/pkg/gateway/relay"
	"github.com/pitchroom/pitchroom/pkg/gateway/secrets"
	"github.com/pitchroom/pitchroom/pkg/gateway/store"
)

// Server wires the relay gateway: routes, middleware, the secret
// resolver, and whichever relay mode the configuration selects.
type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	secrets    *secrets.Cached
	httpClient *http.Client
	callStore  *store.CallStore
}

// New builds a gateway server. callStore may be nil when call history
// persistence is not configured.
func New(cfg config.Config, logger *slog.Logger, callStore *store.CallStore) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: 10 * time.Second,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: cfg.UpstreamResponseHeaderTimeout,
		},
	}

	s := &Server{
		cfg:        cfg,
		logger:     logger,
		mux:        http.NewServeMux(),
		secrets:    secrets.NewCached(buildResolver(cfg, httpClient), cfg.SecretCacheTTL),
		httpClient: httpClient,
		callStore:  callStore,
	}

	s.routes()
	return s
}

func buildResolver(cfg config.Config, httpClient *http.Client) secrets.Resolver {
	switch cfg.SecretBackend {
	case config.SecretBackendRPC:
		return &secrets.RPCResolver{
			BaseURL:    cfg.SecretRPCURL,
			ServiceKey: cfg.SecretRPCKey,
			Name:       cfg.SecretName,
			HTTPClient: httpClient,
		}
	default:
		return secrets.EnvResolver{Name: cfg.SecretName}
	}
}

func (s *Server) routes() {
	s.mux.Handle("/", handlers.NotFoundHandler{})
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: s.cfg})

	s.mux.Handle("/v1/personas", handlers.PersonasHandler{})
	s.mux.Handle("/v1/calls", handlers.CallsHandler{
		Store:  s.callStore,
		Logger: s.logger,
	})

	switch s.cfg.RelayMode {
	case config.RelayModeBridge:
		s.mux.Handle("/v1/calls/bridge", handlers.BridgeHandler{
			Secrets: s.secrets,
			Bridge: &relay.Bridge{
				UpstreamURL:  s.cfg.VoiceWSBaseURL,
				QueueSize:    s.cfg.BridgeQueueSize,
				WriteTimeout: s.cfg.BridgeWriteTimeout,
				Logger:       s.logger,
			},
			Logger: s.logger,
		})
	default:
		s.mux.Handle("/v1/calls/signed-url", handlers.SignedURLHandler{
			Secrets: s.secrets,
			Upstream: &relay.SignedURLClient{
				BaseURL:    s.cfg.VoiceAPIBaseURL,
				HTTPClient: s.httpClient,
			},
			Logger: s.logger,
		})
	}
}

// InvalidateSecrets drops the cached upstream credential so the next
// request re-resolves it. Wired to SIGHUP for rotation without restart.
func (s *Server) InvalidateSecrets() {
	s.secrets.Invalidate()
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}
