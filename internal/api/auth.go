package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/FocuswithJustin/VoiceRef/internal/logging"
)

// APIKeyHeader carries the API key when authentication is enabled.
const APIKeyHeader = "X-API-Key"

// AuthConfig holds authentication configuration.
type AuthConfig struct {
	Enabled bool
	APIKey  string
}

// AuthMiddleware checks for API key authentication when enabled.
// Health endpoints (/, /health) always bypass authentication. The /ws
// handshake may pass the key as an api_key query parameter instead.
func AuthMiddleware(authCfg AuthConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authCfg.Enabled || isPublicEndpoint(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		if reason := checkAPIKey(r, authCfg, r.URL.Path == "/ws"); reason != "" {
			logging.WarnContext(r.Context(), "unauthorized request",
				"path", r.URL.Path,
				"reason", reason)
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", reason)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// checkAPIKey returns why r is not authorized, or "" if it is. Browsers
// cannot set headers on a WebSocket handshake, so allowQuery also accepts
// an api_key query parameter.
func checkAPIKey(r *http.Request, authCfg AuthConfig, allowQuery bool) string {
	key := r.Header.Get(APIKeyHeader)
	if key == "" && allowQuery {
		key = r.URL.Query().Get("api_key")
	}
	if key == "" {
		return "Missing " + APIKeyHeader + " header"
	}
	if !constantTimeCompare(key, authCfg.APIKey) {
		return "Invalid API key"
	}
	return ""
}

func isPublicEndpoint(path string) bool {
	return path == "/" || path == "/health"
}

// ValidateAuthConfig validates the authentication configuration.
func ValidateAuthConfig(cfg AuthConfig) error {
	if cfg.Enabled && cfg.APIKey == "" {
		return fmt.Errorf("API key is required when authentication is enabled")
	}
	if cfg.Enabled && len(cfg.APIKey) < 16 {
		return fmt.Errorf("API key must be at least 16 characters (got %d)", len(cfg.APIKey))
	}
	return nil
}

func constantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
