package graph

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// canonicalJSON marshals v with Go's standard encoder. This is sufficient
// to be canonical for our purposes because: struct fields marshal in the
// struct's declared field order (stable across runs and processes), and
// encoding/json sorts map[string]any keys lexicographically before
// marshalling them — so a WorkflowState's Data map always serialises in
// the same byte sequence regardless of how it was populated.
func canonicalJSON(v any) ([]byte, error) {
	return json.Marshal(v)
}

// hashBytes returns the lowercase hex-encoded SHA-256 digest of b.
func hashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Hash returns a deterministic SHA-256 digest of the WorkflowState's
// observable fields. Two WorkflowState values that are equal under
// Clone-and-compare produce the same Hash, independent of map iteration
// order.
func (s WorkflowState) Hash() (string, error) {
	b, err := canonicalJSON(s)
	if err != nil {
		return "", err
	}
	return hashBytes(b), nil
}

// Hash returns a deterministic SHA-256 digest of the event's observable
// fields, excluding PreviousHash itself (an event does not hash its own
// hash pointer).
func (e StateEvent) Hash() (string, error) {
	cp := e
	cp.PreviousHash = nil
	b, err := canonicalJSON(cp)
	if err != nil {
		return "", err
	}
	return hashBytes(b), nil
}
