// Package httputil has small HTTP request helpers shared by the server
// and the stream limiter.
package httputil

import (
	"net"
	"net/http"
	"strings"
)

// proxyHeaders are consulted in order when the proxy is trusted.
var proxyHeaders = []string{"X-Forwarded-For", "X-Real-IP"}

// ClientIP returns the originating client address for a request. With
// trustProxy set, forwarding headers are consulted first; X-Forwarded-For
// may carry a comma-separated chain, in which case the leftmost entry is
// the client. Header values that do not parse as an IP are ignored.
// Without a trusted proxy in front of the server the headers are
// attacker-controlled, so the default is RemoteAddr only.
func ClientIP(r *http.Request, trustProxy bool) string {
	if trustProxy {
		for _, h := range proxyHeaders {
			if ip := firstForwardedIP(r.Header.Get(h)); ip != "" {
				return ip
			}
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func firstForwardedIP(v string) string {
	first, _, _ := strings.Cut(v, ",")
	first = strings.TrimSpace(first)
	if net.ParseIP(first) == nil {
		return ""
	}
	return first
}
