// Package auth guards the mutating endpoints with a bearer token.
package auth

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

// Config controls bearer-token enforcement. With Enabled false the
// middleware passes everything through.
type Config struct {
	Enabled bool
	Token   string
}

// guardedPaths is the mutating surface. Everything else — track
// generation, streaming, probes, the frontend — is read-only and stays
// public even when auth is on.
var guardedPaths = map[string]bool{
	"/api/v1/tle/refresh": true,
}

// Middleware enforces "Authorization: Bearer <token>" on guarded paths.
// Comparison is constant-time so response timing leaks nothing about the
// configured token.
func Middleware(cfg Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || !guardedPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}
			if !tokenMatches(r.Header.Get("Authorization"), cfg.Token) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func tokenMatches(header, want string) bool {
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(want)) == 1
}
