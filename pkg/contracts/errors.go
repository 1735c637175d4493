package contracts

import "errors"

// Protocol error taxonomy. Every failure surfaced by the gateway wraps one
// of these sentinels so callers can classify with errors.Is and decide
// retry vs. abort. None of them is ever collapsed into a generic error.
var (
	// ErrNotAuthorized: role check failed. Recoverable; the caller may
	// re-authenticate under the correct role.
	ErrNotAuthorized = errors.New("not authorized")

	// ErrServiceSuspended: the global pause flag is set. Retry after unpause.
	ErrServiceSuspended = errors.New("service suspended")

	// ErrCooldownActive: per-actor rate limit. Retry after the window.
	ErrCooldownActive = errors.New("cooldown active")

	// ErrBatchNotActive: target batch is closed. Wait for a new batch.
	ErrBatchNotActive = errors.New("batch not active")

	// ErrUnknownRequest: no pending request under that id. Caller error.
	ErrUnknownRequest = errors.New("unknown request")

	// ErrReplayAttempt: a callback for an already-processed request.
	// Fatal for that callback and logged as a potential-attack signal.
	ErrReplayAttempt = errors.New("replay attempt")

	// ErrStateMismatch: recomputed commitment differs from the stored one.
	// Either a re-derivation bug or a substituted/stale computation.
	ErrStateMismatch = errors.New("commitment state mismatch")

	// ErrInvalidProof: the oracle attestation did not verify. Evidence of a
	// compromised or misconfigured oracle channel.
	ErrInvalidProof = errors.New("invalid oracle proof")
)
