package http //nolint:revive // package name conflicts with stdlib but is acceptable in this context

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jobrunner/mapkit/internal/config"
)

func TestOriginHost(t *testing.T) {
	tests := []struct {
		origin string
		want   string
	}{
		{"https://example.com", "example.com"},
		{"https://example.com:8080", "example.com"},
		{"http://tiles.example.com/path", "tiles.example.com"},
		{"http://localhost:3000", "localhost"},
		{"http://192.168.1.1:8080", "192.168.1.1"},
		{"example.com", "example.com"},
		{"example.com:443", "example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			if got := originHost(tt.origin); got != tt.want {
				t.Errorf("originHost(%q) = %q, want %q", tt.origin, got, tt.want)
			}
		})
	}
}

func TestMatchOrigin(t *testing.T) {
	tests := []struct {
		name    string
		origin  string
		pattern string
		want    bool
	}{
		{"exact", "https://map.example.com", "https://map.example.com", true},
		{"exact scheme mismatch", "http://map.example.com", "https://map.example.com", false},
		{"any", "https://anything.test", "*", true},
		{"wildcard subdomain", "https://tiles.example.com", "*.example.com", true},
		{"wildcard deep subdomain", "https://a.b.example.com:8443", "*.example.com", true},
		{"wildcard bare domain", "https://example.com", "*.example.com", false},
		{"wildcard lookalike", "https://badexample.com", "*.example.com", false},
		{"malformed wildcard", "https://tiles.example.com", "*example.com", false},
		{"different domain", "https://example.org", "https://example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := matchOrigin(tt.origin, tt.pattern); got != tt.want {
				t.Errorf("matchOrigin(%q, %q) = %v, want %v", tt.origin, tt.pattern, got, tt.want)
			}
		})
	}
}

func newCORSServer(origins ...string) *Server {
	return &Server{config: config.ServerConfig{CORS: config.CORSConfig{AllowedOrigins: origins}}}
}

func TestCORSMiddleware(t *testing.T) {
	s := newCORSServer("https://map.example.com", "*.example.org")

	tests := []struct {
		name       string
		method     string
		origin     string
		wantOrigin string
		wantStatus int
		wantNext   bool
	}{
		{"allowed exact", http.MethodGet, "https://map.example.com", "https://map.example.com", http.StatusOK, true},
		{"allowed wildcard", http.MethodPost, "https://app.example.org", "https://app.example.org", http.StatusOK, true},
		{"not allowed", http.MethodGet, "https://evil.test", "", http.StatusOK, true},
		{"no origin", http.MethodGet, "", "", http.StatusOK, true},
		{"preflight", http.MethodOptions, "https://map.example.com", "https://map.example.com", http.StatusNoContent, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				called = true
				w.WriteHeader(http.StatusOK)
			})

			req := httptest.NewRequest(tt.method, "/api/v1/features", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			rr := httptest.NewRecorder()
			s.corsMiddleware(next).ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.wantOrigin {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantOrigin)
			}
			if called != tt.wantNext {
				t.Errorf("next called = %v, want %v", called, tt.wantNext)
			}
			if tt.wantOrigin != "" && rr.Header().Get("Access-Control-Allow-Methods") != "GET, POST, OPTIONS" {
				t.Errorf("Access-Control-Allow-Methods = %q", rr.Header().Get("Access-Control-Allow-Methods"))
			}
		})
	}
}

func TestCORSConfigEnabled(t *testing.T) {
	if (&config.CORSConfig{}).Enabled() {
		t.Error("empty config should be disabled")
	}
	if !(&config.CORSConfig{AllowedOrigins: []string{"*"}}).Enabled() {
		t.Error("config with origins should be enabled")
	}
}
