// Package idempotency models the key -> status -> cached response map used to
// deduplicate retried external requests before they reach the ledger.
package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

var (
	// ErrRequestInProgress is returned while another request holds the key. Callers may retry.
	ErrRequestInProgress = errors.New("a request with this idempotency key is already being processed")
	// ErrKeyReused is returned when a key arrives again with a different payload
	ErrKeyReused     = errors.New("idempotency key was already used with a different payload")
	ErrEmptyKey      = errors.New("idempotency key is required")
	ErrKeyTooLong    = errors.New("idempotency key is too long")
	ErrNotPending    = errors.New("idempotency record is not pending")
	ErrRecordMissing = errors.New("idempotency record not found")
)

const MaxKeyLength = 255

// Status of an idempotency record
type Status string

const (
	StatusPending Status = "pending"
	StatusDone    Status = "done"
)

// Record is one tracked key
type Record struct {
	Key          string
	Scope        string
	RequestHash  string
	Status       Status
	ResponseCode int
	ResponseBody []byte
	LockedAt     time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LeaseExpired reports whether a pending record was abandoned by its holder
func (r *Record) LeaseExpired(now time.Time, lease time.Duration) bool {
	return r.Status == StatusPending && now.Sub(r.LockedAt) >= lease
}

// ValidateKey checks key shape before it touches storage
func ValidateKey(key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	if len(key) > MaxKeyLength {
		return ErrKeyTooLong
	}
	return nil
}

// HashRequest fingerprints a raw request body
func HashRequest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Outcome says what the caller of BeginOrGet must do next
type Outcome int

const (
	// OutcomeProceed means the caller owns the key and must Finalize or Release it
	OutcomeProceed Outcome = iota
	// OutcomeReplay means the cached response must be returned verbatim
	OutcomeReplay
)

// Decision is the result of BeginOrGet
type Decision struct {
	Outcome      Outcome
	ResponseCode int
	ResponseBody []byte
	// LockedAt identifies the caller's claim on a Proceed; Release only frees that claim
	LockedAt time.Time
}
