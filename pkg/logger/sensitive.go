package logger

import "strings"

// Credential material must never appear verbatim in logs. These helpers mask
// values before they are attached as log fields.

// MaskValue is the replacement for fully masked values.
const MaskValue = "***"

// MaskKey masks an API key value, keeping the environment prefix and the last
// four characters so operators can correlate log lines with a known key
// without the log leaking the credential.
func MaskKey(key string) string {
	if key == "" {
		return ""
	}
	idx := strings.LastIndex(key, "_")
	if idx == -1 || len(key)-idx-1 <= 8 {
		return MaskValue
	}
	return key[:idx+1] + MaskValue + key[len(key)-4:]
}

// MaskToken fully masks a session or CSRF token, keeping only its length class
// (short/long) hidden. Tokens are random; no fragment is safe to retain.
func MaskToken(token string) string {
	if token == "" {
		return ""
	}
	return MaskValue
}
