package metrics

import (
	"strconv"
	"testing"
)

func TestNormalizeRoute(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/", "/"},
		{"/healthz", "/healthz"},
		{"/readyz", "/readyz"},
		{"/metrics", "/metrics"},
		{"/app.js", "/app.js"},
		{"/styles.css", "/styles.css"},
		{"/api/v1/satellites", "/api/v1/satellites"},
		{"/api/v1/timezones", "/api/v1/timezones"},
		{"/api/v1/track", "/api/v1/track"},
		{"/api/v1/track/csv", "/api/v1/track/csv"},
		{"/api/v1/tle/metadata", "/api/v1/tle/metadata"},
		{"/api/v1/tle/refresh", "/api/v1/tle/refresh"},
		{"/api/v1/positions", "/api/v1/positions"},
		{"/api/v1/stream/positions", "/api/v1/stream/positions"},
		{"/api/v1/passes", "/api/v1/passes"},
		{"/api/v1/track/25544", "/api/v1/track/{norad_id}"},
		{"/api/v1/track/43013", "/api/v1/track/{norad_id}"},
		{"/api/v1/track/25544/csv", "/api/v1/track/{norad_id}/csv"},
		{"/api/v1/track/25544/msgpack", "/api/v1/track/{norad_id}/msgpack"},
		{"/api/v1/track/iss", "other"},
		{"/api/v1/track/25544/xml", "other"},
		{"/api/v1/track/25544/csv/extra", "other"},
		{"/api/v1/unknown", "other"},
		{"/wp-admin", "other"},
		{"/favicon.ico", "other"},
	}

	for _, tc := range cases {
		if got := normalizeRoute(tc.path); got != tc.want {
			t.Errorf("normalizeRoute(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

// Every catalog ID must fold into the same label value or the path
// cardinality grows with the catalog.
func TestNormalizeRouteBoundedCardinality(t *testing.T) {
	seen := make(map[string]struct{})
	for id := 10000; id < 11000; id++ {
		seen[normalizeRoute("/api/v1/track/"+strconv.Itoa(id))] = struct{}{}
		seen[normalizeRoute("/api/v1/track/"+strconv.Itoa(id)+"/csv")] = struct{}{}
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 distinct routes, got %d: %v", len(seen), seen)
	}
}
