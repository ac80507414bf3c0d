// Package security provides security utilities for the authentication gateway.
package security

import (
	"crypto/subtle"
)

// SecureCompare performs a constant-time comparison of two strings.
// This should be used when comparing secrets (API keys, tokens, signatures)
// to prevent timing attacks.
func SecureCompare(a, b string) bool {
	// subtle.ConstantTimeCompare returns 1 if the two slices are equal, 0 otherwise.
	// It runs in constant time regardless of the contents of the slices.
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// SecureCompareBytes performs a constant-time comparison of two byte slices.
func SecureCompareBytes(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// SecureCompareHash compares a computed MAC with a provided one in constant
// time. Length mismatches still perform the comparison so that response time
// does not reveal the expected length.
func SecureCompareHash(computed, provided []byte) bool {
	if len(computed) != len(provided) {
		subtle.ConstantTimeCompare(computed, computed)
		return false
	}
	return subtle.ConstantTimeCompare(computed, provided) == 1
}
