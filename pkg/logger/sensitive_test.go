package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskKey(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		expected string
	}{
		{name: "empty", key: "", expected: ""},
		{name: "live key keeps prefix and tail", key: "ak_live_0123456789abcdef", expected: "ak_live_***cdef"},
		{name: "test key keeps prefix and tail", key: "ak_test_fedcba9876543210", expected: "ak_test_***3210"},
		{name: "no prefix fully masked", key: "notakey", expected: "***"},
		{name: "short random fully masked", key: "ak_live_abc", expected: "***"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MaskKey(tt.key))
		})
	}
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "", MaskToken(""))
	assert.Equal(t, MaskValue, MaskToken("eyJhbGciOiJIUzI1NiJ9.abc.def"))
}
