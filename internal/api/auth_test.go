package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const testAPIKey = "0123456789abcdef-test"

func TestValidateAuthConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AuthConfig
		wantErr string
	}{
		{"disabled", AuthConfig{}, ""},
		{"disabled ignores key", AuthConfig{APIKey: "x"}, ""},
		{"valid", AuthConfig{Enabled: true, APIKey: testAPIKey}, ""},
		{"missing key", AuthConfig{Enabled: true}, "required"},
		{"short key", AuthConfig{Enabled: true, APIKey: "short"}, "at least 16"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAuthConfig(tt.cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestAuthMiddleware(t *testing.T) {
	cfg := AuthConfig{Enabled: true, APIKey: testAPIKey}
	handler := AuthMiddleware(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		target     string
		key        string
		wantStatus int
	}{
		{"health is public", "/health", "", http.StatusOK},
		{"root is public", "/", "", http.StatusOK},
		{"missing key", "/parse?q=john", "", http.StatusUnauthorized},
		{"wrong key", "/parse?q=john", "nope-nope-nope-nope", http.StatusUnauthorized},
		{"valid key", "/parse?q=john", testAPIKey, http.StatusOK},
		{"query key outside ws", "/parse?q=john&api_key=" + testAPIKey, "", http.StatusUnauthorized},
		{"query key on ws", "/ws?api_key=" + testAPIKey, "", http.StatusOK},
		{"wrong query key on ws", "/ws?api_key=nope", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.key != "" {
				req.Header.Set(APIKeyHeader, tt.key)
			}
			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
		})
	}
}

func TestAuthDisabled(t *testing.T) {
	handler := AuthMiddleware(AuthConfig{}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/parse?q=john", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestAuthEndToEnd(t *testing.T) {
	_, ts := newTestServer(t, Config{Auth: AuthConfig{Enabled: true, APIKey: testAPIKey}}, nil)

	resp, body := get(t, ts.URL+"/parse?q=john+3+16")
	if resp.StatusCode != http.StatusUnauthorized || body.Error == nil || body.Error.Code != "UNAUTHORIZED" {
		t.Errorf("unauthenticated = %d %+v", resp.StatusCode, body.Error)
	}

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/parse?q=john+3+16", nil)
	req.Header.Set(APIKeyHeader, testAPIKey)
	if resp, _ := do(t, req); resp.StatusCode != http.StatusOK {
		t.Errorf("authenticated = %d, want 200", resp.StatusCode)
	}
}

func TestConstantTimeCompare(t *testing.T) {
	if !constantTimeCompare("abc", "abc") {
		t.Error("equal strings should match")
	}
	if constantTimeCompare("abc", "abd") || constantTimeCompare("abc", "abcd") || constantTimeCompare("", "a") {
		t.Error("different strings should not match")
	}
}
