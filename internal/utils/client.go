package utils

import (
	"net"
	"net/http"
	"strings"
)

// maxUserAgentLen caps the stored user-agent so a hostile client cannot
// bloat session rows.
const maxUserAgentLen = 500

// ClientInfo extracts the originating IP address and user agent from a
// request for session metadata.  Proxy headers are consulted first
// (X-Forwarded-For may carry a chain; the first entry is the client), then
// the transport address.
func ClientInfo(r *http.Request) (ip, userAgent string) {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip = strings.TrimSpace(strings.Split(fwd, ",")[0])
	} else if real := r.Header.Get("X-Real-Ip"); real != "" {
		ip = strings.TrimSpace(real)
	} else if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	} else {
		ip = r.RemoteAddr
	}
	if ip == "" {
		ip = "unknown"
	}

	userAgent = r.Header.Get("User-Agent")
	if userAgent == "" {
		userAgent = "unknown"
	}
	if len(userAgent) > maxUserAgentLen {
		userAgent = userAgent[:maxUserAgentLen]
	}
	return ip, userAgent
}
