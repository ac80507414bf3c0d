package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSecureCompare(t *testing.T) {
	assert.True(t, SecureCompare("secret", "secret"))
	assert.False(t, SecureCompare("secret", "Secret"))
	assert.False(t, SecureCompare("secret", "secret2"))
	assert.True(t, SecureCompare("", ""))
}

func TestSecureCompareHash(t *testing.T) {
	mac := hmac.New(sha256.New, []byte("key"))
	mac.Write([]byte("payload"))
	sum := mac.Sum(nil)

	same := make([]byte, len(sum))
	copy(same, sum)
	assert.True(t, SecureCompareHash(sum, same))

	// Single-byte mutation must fail.
	same[0] ^= 0x01
	assert.False(t, SecureCompareHash(sum, same))

	// Length mismatch must fail without panicking.
	assert.False(t, SecureCompareHash(sum, sum[:len(sum)-1]))
}
