package httputil

import (
	"net"
	"net/http"
)

// ClientIP returns the client address of a request without the port.
// RemoteAddr may already be a bare IP when an upstream middleware has
// resolved forwarding headers; IPv6 addresses without a port must come
// back intact, not truncated at their last colon.
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
