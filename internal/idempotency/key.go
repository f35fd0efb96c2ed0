// Package idempotency derives the deterministic keys that collapse duplicate
// submission writes into a single job_results row.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrMissingIdentity is returned when job id or unit name is empty
	ErrMissingIdentity = errors.New("idempotency key requires job id and unit name")

	// ErrEmptyPayload is returned when the payload carries no content.
	// A degenerate key derived from an empty payload could collide across
	// unrelated jobs, so the generator refuses to produce one.
	ErrEmptyPayload = errors.New("idempotency key requires a non-empty payload")
)

// KeyLength is the hex length of generated keys (128 bits of the digest)
const KeyLength = 32

// Key derives a deterministic, collision-resistant key from the job id, the
// unit identifier (directory name) and the unit's input payload. The payload
// is canonicalized before hashing so that semantically identical inputs yield
// the same key regardless of construction order.
func Key(jobID, unit string, payload []byte) (string, error) {
	if jobID == "" || unit == "" {
		return "", ErrMissingIdentity
	}

	canonical, err := canonicalize(payload)
	if err != nil {
		return "", err
	}

	h := sha256.New()
	h.Write([]byte(jobID))
	h.Write([]byte{0})
	h.Write([]byte(unit))
	h.Write([]byte{0})
	h.Write(canonical)

	return hex.EncodeToString(h.Sum(nil))[:KeyLength], nil
}

// canonicalize round-trips the payload through encoding/json so that object
// keys are sorted at every nesting level. encoding/json marshals map keys in
// sorted order, which is the only property we rely on.
func canonicalize(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	var decoded interface{}
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return nil, fmt.Errorf("payload is not valid JSON: %w", err)
	}
	if decoded == nil {
		return nil, ErrEmptyPayload
	}
	if m, ok := decoded.(map[string]interface{}); ok && len(m) == 0 {
		return nil, ErrEmptyPayload
	}

	canonical, err := json.Marshal(decoded)
	if err != nil {
		return nil, fmt.Errorf("failed to canonicalize payload: %w", err)
	}
	return canonical, nil
}
