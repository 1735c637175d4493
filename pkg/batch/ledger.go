// Package batch groups decryption requests under administrative windows.
// Batch ids increase strictly monotonically; at most one batch is open for
// new requests at any time. Closed batches are permanent records.
package batch

import (
	"fmt"
	"sync"
	"time"

	"github.com/Veilstone-Labs/fhegate/pkg/contracts"
)

// Ledger owns the batch table. It is safe for concurrent use.
type Ledger struct {
	mu      sync.Mutex
	nextID  uint64
	batches map[uint64]*contracts.Batch
	active  uint64 // 0 = none
	now     func() time.Time
}

// NewLedger returns an empty ledger; no batch is active until Open.
func NewLedger() *Ledger {
	return &Ledger{nextID: 1, batches: make(map[uint64]*contracts.Batch), now: time.Now}
}

// WithClock overrides the timestamp source. Test hook.
func (l *Ledger) WithClock(now func() time.Time) *Ledger {
	l.now = now
	return l
}

// Open creates a new batch and makes it the single active one. A still-open
// previous batch is closed first, preserving the at-most-one-active
// invariant structurally rather than by operator discipline.
func (l *Ledger) Open() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.active != 0 {
		l.closeLocked(l.active)
	}

	id := l.nextID
	l.nextID++
	l.batches[id] = &contracts.Batch{ID: id, Active: true, OpenedAt: l.now().UTC()}
	l.active = id
	return id
}

// Close marks the batch inactive. Closing an already-closed batch is a
// no-op so operator tooling can retry blindly; closing an unknown id is
// an error.
func (l *Ledger) Close(id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.batches[id]; !ok {
		return fmt.Errorf("batch %d does not exist", id)
	}
	l.closeLocked(id)
	return nil
}

func (l *Ledger) closeLocked(id uint64) {
	b := l.batches[id]
	if !b.Active {
		return
	}
	b.Active = false
	b.ClosedAt = l.now().UTC()
	if l.active == id {
		l.active = 0
	}
}

// Active returns the currently open batch id, if any.
func (l *Ledger) Active() (uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active, l.active != 0
}

// IsActive reports whether id is the open batch.
func (l *Ledger) IsActive(id uint64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.batches[id]
	return ok && b.Active
}

// Get returns a copy of the batch record.
func (l *Ledger) Get(id uint64) (contracts.Batch, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.batches[id]
	if !ok {
		return contracts.Batch{}, fmt.Errorf("batch %d does not exist", id)
	}
	return *b, nil
}
