package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"
)

// AuditEventType identifies the security decision an event records.
type AuditEventType string

const (
	AuditEventAuthSuccess      AuditEventType = "AUTH_SUCCESS"
	AuditEventAuthFailure      AuditEventType = "AUTH_FAILURE"
	AuditEventReplayDetected   AuditEventType = "REPLAY_DETECTED"
	AuditEventRateLimited      AuditEventType = "RATE_LIMITED"
	AuditEventCSRFRejected     AuditEventType = "CSRF_REJECTED"
	AuditEventPermissionDenied AuditEventType = "PERMISSION_DENIED"
	AuditEventStoreFailure     AuditEventType = "STORE_FAILURE"
)

// AuditLevel is the severity of an audit event.
type AuditLevel string

const (
	AuditLevelInfo     AuditLevel = "INFO"
	AuditLevelWarning  AuditLevel = "WARNING"
	AuditLevelCritical AuditLevel = "CRITICAL"
)

// AuditEvent is an immutable, hash-verifiable record of one security-relevant
// decision. IntegrityHash covers the immutable fields plus the previous
// event's hash, forming a chain: tampering with any stored event breaks
// verification of every later event.
type AuditEvent struct {
	// ID is a unique identifier for this event
	ID string `json:"id"`

	// Timestamp is when the decision was made
	Timestamp time.Time `json:"timestamp"`

	// EventType is the decision category
	EventType AuditEventType `json:"event_type"`

	// Level is the severity
	Level AuditLevel `json:"level"`

	// Details carries decision context (identity, reason, source IP).
	// String-valued so the integrity serialization is stable.
	Details map[string]string `json:"details,omitempty"`

	// PrevHash is the IntegrityHash of the preceding event ("" for the first)
	PrevHash string `json:"prev_hash"`

	// IntegrityHash is hex(SHA-256(PrevHash || canonical serialization))
	IntegrityHash string `json:"integrity_hash"`
}

// CanonicalString returns the stable serialization the integrity hash covers:
// RFC3339Nano timestamp, event type, and level, followed by the details as
// key=value pairs in sorted key order, all newline-joined.
func (e *AuditEvent) CanonicalString() string {
	var b strings.Builder
	b.WriteString(e.Timestamp.UTC().Format(time.RFC3339Nano))
	b.WriteByte('\n')
	b.WriteString(string(e.EventType))
	b.WriteByte('\n')
	b.WriteString(string(e.Level))

	keys := make([]string, 0, len(e.Details))
	for k := range e.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteByte('\n')
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(e.Details[k])
	}
	return b.String()
}

// ComputeIntegrityHash returns the chained hash for this event given the
// previous event's hash.
func (e *AuditEvent) ComputeIntegrityHash(prevHash string) string {
	h := sha256.New()
	h.Write([]byte(prevHash))
	h.Write([]byte(e.CanonicalString()))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyIntegrity recomputes the hash over the stored fields and compares it
// to IntegrityHash, detecting post-hoc tampering.
func (e *AuditEvent) VerifyIntegrity() bool {
	return e.ComputeIntegrityHash(e.PrevHash) == e.IntegrityHash
}
