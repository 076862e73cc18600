package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/FocuswithJustin/strutils/internal/config"
	"github.com/FocuswithJustin/strutils/internal/logging"
)

// APIKeyHeader carries the API key on authenticated requests.
const APIKeyHeader = "X-API-Key"

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Enabled bool
	APIKey  string
}

// AuthMiddleware rejects requests without the configured API key. Public
// endpoints and every request while auth is disabled pass through.
func AuthMiddleware(cfg AuthConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isPublicEndpoint(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			key := r.Header.Get(APIKeyHeader)
			if key == "" {
				logging.SecurityEvent("unauthorized_request", "auth",
					"path", r.URL.Path,
					"reason", "missing API key")
				respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing "+APIKeyHeader+" header")
				return
			}
			if subtle.ConstantTimeCompare([]byte(key), []byte(cfg.APIKey)) != 1 {
				logging.SecurityEvent("unauthorized_request", "auth",
					"path", r.URL.Path,
					"reason", "invalid API key")
				respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// isPublicEndpoint reports whether path is reachable without a key.
func isPublicEndpoint(path string) bool {
	switch path {
	case "/", "/healthz":
		return true
	}
	return false
}

// ValidateAuthConfig validates the authentication configuration.
func ValidateAuthConfig(cfg AuthConfig) error {
	if !cfg.Enabled {
		return nil
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("API key is required when authentication is enabled")
	}
	if len(cfg.APIKey) < config.MinAPIKeyLength {
		return fmt.Errorf("API key must be at least %d characters (got %d)", config.MinAPIKeyLength, len(cfg.APIKey))
	}
	return nil
}
