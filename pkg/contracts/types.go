package contracts

import (
	"encoding/hex"
	"math/big"
	"time"
)

// Handle is an opaque reference to an encrypted value held by the external
// computation engine. The gateway never interprets its contents.
type Handle []byte

// Commitment is the fixed-size digest binding an ordered handle set plus the
// protocol instance's domain tag.
type Commitment [32]byte

// Hex returns the lowercase hex encoding of the commitment.
func (c Commitment) Hex() string {
	return hex.EncodeToString(c[:])
}

// Batch is an administrative grouping window for decryption requests.
// Closed batches are permanent historical records and are never deleted.
type Batch struct {
	ID       uint64    `json:"id"`
	Active   bool      `json:"active"`
	OpenedAt time.Time `json:"opened_at"`
	ClosedAt time.Time `json:"closed_at,omitempty"`
}

// PendingRequest is the per-callback record created when a decryption
// request is dispatched to the oracle. It is mutated exactly once:
// Processed flips false -> true on the first successful callback and is
// never reset. Records are never deleted; they double as the replay guard
// and the audit trail.
type PendingRequest struct {
	RequestID  uint64    `json:"request_id"`
	BatchID    uint64    `json:"batch_id"`
	Commitment Commitment `json:"commitment"`
	// Handles is the exact ordered ciphertext handle set committed at
	// creation time. Re-verification at callback time uses these persisted
	// handles, never anything supplied by the caller.
	Handles   []Handle  `json:"handles"`
	Processed bool      `json:"processed"`
	CreatedAt time.Time `json:"created_at"`
}

// ActorState tracks per-actor role membership and cooldown clocks.
// Submission and decryption dispatch carry independent clocks.
type ActorState struct {
	Actor               string    `json:"actor"`
	IsProvider          bool      `json:"is_provider"`
	LastSubmission      time.Time `json:"last_submission,omitempty"`
	LastDecryptRequest  time.Time `json:"last_decrypt_request,omitempty"`
}

// ProtocolConfig is the single process-wide mutable configuration record.
// Only the owner role may mutate it.
type ProtocolConfig struct {
	Owner    string        `json:"owner"`
	Paused   bool          `json:"paused"`
	Cooldown time.Duration `json:"cooldown"`
}

// CompletionEvent is emitted exactly once per successfully processed
// request, after commitment and attestation checks both passed.
type CompletionEvent struct {
	RequestID   uint64    `json:"request_id"`
	BatchID     uint64    `json:"batch_id"`
	ResultFlag  bool      `json:"result_flag"`
	ResultValue *big.Int  `json:"result_value"`
	ProcessedAt time.Time `json:"processed_at"`
}

// CompletionSink receives completion events for downstream consumption.
type CompletionSink interface {
	Completed(ev CompletionEvent)
}

// Role names carried in admin API tokens.
const (
	RoleOwner    = "owner"
	RoleProvider = "provider"
)
