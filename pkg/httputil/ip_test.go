package httputil

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		expected   string
	}{
		{"ipv4 with port", "10.0.0.1:1234", "10.0.0.1"},
		{"ipv4 bare", "10.0.0.1", "10.0.0.1"},
		{"ipv6 with port", "[2001:db8::1]:443", "2001:db8::1"},
		// RealIP-style middleware rewrites RemoteAddr to a bare address;
		// an IPv6 address must not be truncated at its last colon.
		{"ipv6 bare", "2001:db8::1", "2001:db8::1"},
		{"ipv6 bare sibling", "2001:db8::2", "2001:db8::2"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			req.RemoteAddr = tt.remoteAddr
			assert.Equal(t, tt.expected, ClientIP(req))
		})
	}
}

func TestClientIP_DistinctIPv6ClientsDistinct(t *testing.T) {
	a := httptest.NewRequest("GET", "/", nil)
	a.RemoteAddr = "2001:db8::1"
	b := httptest.NewRequest("GET", "/", nil)
	b.RemoteAddr = "2001:db8::2"

	assert.NotEqual(t, ClientIP(a), ClientIP(b))
}
