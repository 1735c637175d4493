package protocol

import (
	"context"
	"encoding/binary"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/sha3"

	"github.com/Veilstone-Labs/fhegate/pkg/commitment"
	"github.com/Veilstone-Labs/fhegate/pkg/contracts"
	"github.com/Veilstone-Labs/fhegate/pkg/crypto"
	"github.com/Veilstone-Labs/fhegate/pkg/engine"
	"github.com/Veilstone-Labs/fhegate/pkg/oracle"
	"github.com/Veilstone-Labs/fhegate/pkg/registry"
)

const (
	owner    = "owner"
	provider = "alice"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 7, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type captureSink struct {
	mu     sync.Mutex
	events []contracts.CompletionEvent
}

func (s *captureSink) Completed(ev contracts.CompletionEvent) {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
}

func (s *captureSink) all() []contracts.CompletionEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]contracts.CompletionEvent(nil), s.events...)
}

type harness struct {
	scheme *engine.XorScheme
	store  *registry.MemoryStore
	oracle *oracle.SimOracle
	hasher *commitment.Hasher
	sink   *captureSink
	clock  *fakeClock
	svc    *Service
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	scheme := engine.NewXorScheme([]byte("harness-seed"))
	signer, err := crypto.NewAttestationSigner("oracle-test")
	require.NoError(t, err)
	verifier, err := crypto.NewAttestationVerifier(signer.PublicKeyBytes())
	require.NoError(t, err)

	computations := engine.NewRegistry()
	engine.RegisterProofSearch(computations, 1000)

	hasher := commitment.NewHasher("harness-instance")
	store := registry.NewMemoryStore()
	sim := oracle.NewSimOracle(scheme, signer)
	reg := registry.New(store, sim, hasher)

	sink := &captureSink{}
	clock := newFakeClock()

	svc, err := New(Config{
		Owner:    owner,
		Cooldown: 30 * time.Second,
		Engine:   engine.NewXorEngine(scheme, computations),
		Registry: reg,
		Batches:  newLedger(clock),
		Verifier: verifier,
		Sink:     sink,
	})
	require.NoError(t, err)
	svc.WithClock(clock.Now)

	require.NoError(t, svc.SetProvider(owner, provider, true))

	return &harness{scheme: scheme, store: store, oracle: sim, hasher: hasher, sink: sink, clock: clock, svc: svc}
}

// target returns the encrypted proof-search input whose witness is w.
func (h *harness) target(w uint64) engine.Ciphertext {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], w)
	digest := sha3.Sum256(buf[:])
	return engine.Ciphertext(h.scheme.Encrypt(digest[:]))
}

// submitAndRequest walks the happy path up to an outstanding request.
func (h *harness) submitAndRequest(t *testing.T, w uint64) uint64 {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, h.svc.Submit(ctx, provider, h.target(w), engine.ProofSearch))
	h.clock.Advance(time.Minute)
	id, err := h.svc.RequestDecryption(ctx, provider)
	require.NoError(t, err)
	return id
}

func TestEndToEnd_SuccessThenReplay(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	batchID, err := h.svc.OpenBatch(owner)
	require.NoError(t, err)
	require.Equal(t, uint64(1), batchID)

	id := h.submitAndRequest(t, 7)

	cleartext, proof, err := h.oracle.Callback(id)
	require.NoError(t, err)

	event, err := h.svc.HandleCallback(ctx, id, cleartext, proof)
	require.NoError(t, err)
	assert.Equal(t, id, event.RequestID)
	assert.Equal(t, batchID, event.BatchID)
	assert.True(t, event.ResultFlag)
	assert.Equal(t, int64(7), event.ResultValue.Int64())

	req, err := h.store.Get(ctx, id)
	require.NoError(t, err)
	assert.True(t, req.Processed)

	require.Len(t, h.sink.all(), 1, "completion emitted exactly once")

	// Second delivery of the identical, cryptographically valid callback.
	_, err = h.svc.HandleCallback(ctx, id, cleartext, proof)
	assert.ErrorIs(t, err, contracts.ErrReplayAttempt)
	assert.Len(t, h.sink.all(), 1)
}

func TestHandleCallback_UnknownRequest(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.HandleCallback(context.Background(), 404, []byte("x"), []byte("y"))
	assert.ErrorIs(t, err, contracts.ErrUnknownRequest)
}

func TestHandleCallback_StateMismatch(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	// A record whose stored handle set no longer matches its commitment
	// models a substituted or stale computation behind request 42.
	a, b := contracts.Handle("ct-a"), contracts.Handle("ct-b")
	require.NoError(t, h.store.Put(ctx, &contracts.PendingRequest{
		RequestID:  42,
		BatchID:    1,
		Commitment: h.hasher.Commit([]contracts.Handle{a, b}),
		Handles:    []contracts.Handle{b, a},
		CreatedAt:  h.clock.Now(),
	}))

	_, err := h.svc.HandleCallback(ctx, 42, []byte("payload"), []byte("proof"))
	assert.ErrorIs(t, err, contracts.ErrStateMismatch)

	req, err := h.store.Get(ctx, 42)
	require.NoError(t, err)
	assert.False(t, req.Processed, "rejected callback must not mutate state")
	assert.Empty(t, h.sink.all())
}

func TestHandleCallback_InvalidProof(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.OpenBatch(owner)
	require.NoError(t, err)
	id := h.submitAndRequest(t, 7)

	cleartext, proof, err := h.oracle.Callback(id)
	require.NoError(t, err)

	// Commitment check passes (untouched record); the proof does not.
	tampered := append([]byte(nil), proof...)
	tampered[0] ^= 0xFF
	_, err = h.svc.HandleCallback(ctx, id, cleartext, tampered)
	assert.ErrorIs(t, err, contracts.ErrInvalidProof)

	req, err := h.store.Get(ctx, id)
	require.NoError(t, err)
	assert.False(t, req.Processed)

	// The record stayed Pending; the corrected callback still succeeds.
	_, err = h.svc.HandleCallback(ctx, id, cleartext, proof)
	assert.NoError(t, err)
}

func TestHandleCallback_ProofOverDifferentPayload(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.OpenBatch(owner)
	require.NoError(t, err)
	id := h.submitAndRequest(t, 7)

	cleartext, proof, err := h.oracle.Callback(id)
	require.NoError(t, err)

	// Valid proof, substituted cleartext.
	other := append([]byte(nil), cleartext...)
	other[0] ^= 0x01
	_, err = h.svc.HandleCallback(ctx, id, other, proof)
	assert.ErrorIs(t, err, contracts.ErrInvalidProof)
}

func TestSubmit_RequiresProviderRole(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.OpenBatch(owner)
	require.NoError(t, err)

	err = h.svc.Submit(context.Background(), "mallory", h.target(1), engine.ProofSearch)
	assert.ErrorIs(t, err, contracts.ErrNotAuthorized)
}

func TestSubmit_Paused(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.OpenBatch(owner)
	require.NoError(t, err)
	require.NoError(t, h.svc.SetPaused(owner, true))

	err = h.svc.Submit(context.Background(), provider, h.target(1), engine.ProofSearch)
	assert.ErrorIs(t, err, contracts.ErrServiceSuspended)

	require.NoError(t, h.svc.SetPaused(owner, false))
	assert.NoError(t, h.svc.Submit(context.Background(), provider, h.target(1), engine.ProofSearch))
}

func TestSubmit_NoOpenBatch(t *testing.T) {
	h := newHarness(t)
	err := h.svc.Submit(context.Background(), provider, h.target(1), engine.ProofSearch)
	assert.ErrorIs(t, err, contracts.ErrBatchNotActive)
}

func TestRequestDecryption_BatchClosed(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	batchID, err := h.svc.OpenBatch(owner)
	require.NoError(t, err)
	require.NoError(t, h.svc.Submit(ctx, provider, h.target(7), engine.ProofSearch))
	require.NoError(t, h.svc.CloseBatch(owner, batchID))

	_, err = h.svc.RequestDecryption(ctx, provider)
	assert.ErrorIs(t, err, contracts.ErrBatchNotActive)

	// Nothing was dispatched or stored.
	_, err = h.store.Get(ctx, 1)
	assert.ErrorIs(t, err, contracts.ErrUnknownRequest)
}

func TestCooldown_Monotonic(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.OpenBatch(owner)
	require.NoError(t, err)

	require.NoError(t, h.svc.Submit(ctx, provider, h.target(1), engine.ProofSearch))

	// Before the window elapses the identical action is rejected.
	h.clock.Advance(29 * time.Second)
	err = h.svc.Submit(ctx, provider, h.target(1), engine.ProofSearch)
	assert.ErrorIs(t, err, contracts.ErrCooldownActive)

	// At exactly T+C it is admitted again.
	h.clock.Advance(time.Second)
	assert.NoError(t, h.svc.Submit(ctx, provider, h.target(1), engine.ProofSearch))
}

func TestCooldownClocks_Independent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.svc.OpenBatch(owner)
	require.NoError(t, err)

	// A fresh submission does not consume the decryption clock.
	require.NoError(t, h.svc.Submit(ctx, provider, h.target(7), engine.ProofSearch))
	_, err = h.svc.RequestDecryption(ctx, provider)
	assert.NoError(t, err)
}

func TestAdmin_OwnerOnly(t *testing.T) {
	h := newHarness(t)

	assert.ErrorIs(t, h.svc.SetProvider("mallory", "bob", true), contracts.ErrNotAuthorized)
	assert.ErrorIs(t, h.svc.SetPaused("mallory", true), contracts.ErrNotAuthorized)
	assert.ErrorIs(t, h.svc.SetCooldown("mallory", time.Second), contracts.ErrNotAuthorized)
	_, err := h.svc.OpenBatch("mallory")
	assert.ErrorIs(t, err, contracts.ErrNotAuthorized)
	assert.ErrorIs(t, h.svc.CloseBatch("mallory", 1), contracts.ErrNotAuthorized)
}

func TestPolicy_ComposedWithGate(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.OpenBatch(owner)
	require.NoError(t, err)

	p := newDenyPolicy(t, `actor != "alice"`)
	h.svc.policy = p

	err = h.svc.Submit(context.Background(), provider, h.target(1), engine.ProofSearch)
	assert.ErrorIs(t, err, contracts.ErrNotAuthorized)
}
