// Package registry owns the pending-request records: one per outstanding
// oracle call, created at dispatch time, flipped to processed by exactly
// one successful callback, never deleted. The stored record carries the
// commitment and the exact handle set it was computed over; nothing on the
// callback path ever trusts caller-supplied handles.
package registry

import (
	"context"
	"fmt"
	"time"

	"github.com/Veilstone-Labs/fhegate/pkg/commitment"
	"github.com/Veilstone-Labs/fhegate/pkg/contracts"
	"github.com/Veilstone-Labs/fhegate/pkg/oracle"
)

// Store persists pending-request records. Implementations must make
// MarkProcessed a single-acquisition flip: for a given id it succeeds at
// most once, ever.
type Store interface {
	Put(ctx context.Context, req *contracts.PendingRequest) error
	// Get returns the record, or contracts.ErrUnknownRequest.
	Get(ctx context.Context, requestID uint64) (*contracts.PendingRequest, error)
	// MarkProcessed flips processed false -> true. Returns
	// contracts.ErrUnknownRequest or contracts.ErrReplayAttempt.
	MarkProcessed(ctx context.Context, requestID uint64) error
}

// Registry creates and looks up pending requests. It is the sole mutator
// of the store.
type Registry struct {
	store      Store
	dispatcher oracle.Dispatcher
	hasher     *commitment.Hasher
	now        func() time.Time
}

// New builds a registry over the given store and oracle dispatcher.
func New(store Store, dispatcher oracle.Dispatcher, hasher *commitment.Hasher) *Registry {
	return &Registry{store: store, dispatcher: dispatcher, hasher: hasher, now: time.Now}
}

// WithClock overrides the record timestamp source. Test hook.
func (r *Registry) WithClock(now func() time.Time) *Registry {
	r.now = now
	return r
}

// Create dispatches the handle set to the oracle, commits it, and persists
// the pending record under the oracle-assigned id. A dispatch failure
// aborts the whole admitted action; nothing is stored.
func (r *Registry) Create(ctx context.Context, batchID uint64, handles []contracts.Handle) (uint64, error) {
	requestID, err := r.dispatcher.RequestDecryption(ctx, handles, oracle.DefaultCallback)
	if err != nil {
		return 0, fmt.Errorf("oracle dispatch: %w", err)
	}

	req := &contracts.PendingRequest{
		RequestID:  requestID,
		BatchID:    batchID,
		Commitment: r.hasher.Commit(handles),
		Handles:    cloneHandles(handles),
		Processed:  false,
		CreatedAt:  r.now().UTC(),
	}
	if err := r.store.Put(ctx, req); err != nil {
		return 0, fmt.Errorf("persist request %d: %w", requestID, err)
	}
	return requestID, nil
}

// Lookup returns the pending record for id.
func (r *Registry) Lookup(ctx context.Context, requestID uint64) (*contracts.PendingRequest, error) {
	return r.store.Get(ctx, requestID)
}

// MarkProcessed flips the record's processed flag. Called only by the
// callback verifier after every check has passed.
func (r *Registry) MarkProcessed(ctx context.Context, requestID uint64) error {
	return r.store.MarkProcessed(ctx, requestID)
}

// Hasher exposes the commitment hasher for callback-side re-derivation.
func (r *Registry) Hasher() *commitment.Hasher {
	return r.hasher
}

func cloneHandles(handles []contracts.Handle) []contracts.Handle {
	out := make([]contracts.Handle, len(handles))
	for i, h := range handles {
		out[i] = append(contracts.Handle(nil), h...)
	}
	return out
}
