// Package health implements the liveness and readiness probes.
package health

import "net/http"

// Healthz answers 200 whenever the process can serve requests at all.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte("ok\n"))
}

// Readyz builds the readiness probe. ready reports whether a catalog
// dataset has been loaded; until then the probe answers 503 so load
// balancers keep traffic away from an instance that can only serve errors.
func Readyz(ready func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		if !ready() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("loading\n"))
			return
		}
		w.Write([]byte("ready\n"))
	}
}
