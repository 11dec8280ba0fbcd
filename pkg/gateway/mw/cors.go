package mw

import (
	"net/http"
	"strings"

	"github.com/pitchroom/pitchroom/pkg/gateway/config"
)

var corsAllowedMethods = "GET, POST, OPTIONS"

var corsAllowedHeaders = strings.Join([]string{
	"Authorization",
	"Content-Type",
	"X-Request-ID",
	"X-Client-Info",
	"Apikey",
}, ", ")

// CORS attaches cross-origin headers. The dashboard front-end is served from
// arbitrary preview hosts, so the default configuration allows every origin;
// preflight requests are answered with an empty 200 body.
func CORS(cfg config.Config, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := strings.TrimSpace(r.Header.Get("Origin"))

		if r.Method == http.MethodOptions {
			allowed, value := corsOriginValue(cfg, origin)
			if !allowed {
				http.Error(w, "cors preflight not allowed", http.StatusForbidden)
				return
			}
			setCORSHeaders(w, value)
			w.WriteHeader(http.StatusOK)
			return
		}

		if allowed, value := corsOriginValue(cfg, origin); allowed {
			setCORSHeaders(w, value)
		}

		next.ServeHTTP(w, r)
	})
}

func corsOriginValue(cfg config.Config, origin string) (bool, string) {
	if cfg.CORSAllowAll {
		return true, "*"
	}
	if origin == "" || len(cfg.CORSAllowedOrigins) == 0 {
		return false, ""
	}
	if _, ok := cfg.CORSAllowedOrigins[origin]; ok {
		return true, origin
	}
	return false, ""
}

func setCORSHeaders(w http.ResponseWriter, originValue string) {
	w.Header().Set("Access-Control-Allow-Origin", originValue)
	if originValue != "*" {
		w.Header().Set("Vary", "Origin")
	}
	w.Header().Set("Access-Control-Allow-Methods", corsAllowedMethods)
	w.Header().Set("Access-Control-Allow-Headers", corsAllowedHeaders)
}
