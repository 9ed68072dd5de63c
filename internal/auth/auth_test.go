package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func serve(cfg Config, path string, header string) *httptest.ResponseRecorder {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := Middleware(cfg)(inner)

	req := httptest.NewRequest("POST", path, nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestMiddlewareDisabled(t *testing.T) {
	w := serve(Config{Enabled: false}, "/api/v1/tle/refresh", "")
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 when auth disabled", w.Code)
	}
}

func TestMiddlewareGuardedPath(t *testing.T) {
	cfg := Config{Enabled: true, Token: "secret"}

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic secret", http.StatusUnauthorized},
		{"wrong token", "Bearer nope", http.StatusUnauthorized},
		{"correct token", "Bearer secret", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(cfg, "/api/v1/tle/refresh", tt.header)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestMiddlewareExemptPaths(t *testing.T) {
	cfg := Config{Enabled: true, Token: "secret"}

	// The read surface stays public even with auth enabled.
	for _, path := range []string{
		"/",
		"/app.js",
		"/styles.css",
		"/healthz",
		"/readyz",
		"/metrics",
		"/api/v1/satellites",
		"/api/v1/timezones",
		"/api/v1/tle/metadata",
		"/api/v1/positions",
		"/api/v1/passes",
		"/api/v1/track/25544",
		"/api/v1/track/25544/csv",
		"/api/v1/stream/positions",
	} {
		if w := serve(cfg, path, ""); w.Code != http.StatusOK {
			t.Errorf("path %s: status = %d, want 200 (exempt)", path, w.Code)
		}
	}
}
