// Package protocol implements the request/callback integrity protocol: the
// coordinating service that admits actions, binds each outstanding oracle
// request to a commitment over its expected ciphertext set, and accepts a
// callback only when the recomputed commitment and the oracle's attestation
// both check out, at most once per request, ever.
package protocol

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Veilstone-Labs/fhegate/pkg/audit"
	"github.com/Veilstone-Labs/fhegate/pkg/batch"
	"github.com/Veilstone-Labs/fhegate/pkg/contracts"
	"github.com/Veilstone-Labs/fhegate/pkg/crypto"
	"github.com/Veilstone-Labs/fhegate/pkg/engine"
	"github.com/Veilstone-Labs/fhegate/pkg/gate"
	"github.com/Veilstone-Labs/fhegate/pkg/oracle"
	"github.com/Veilstone-Labs/fhegate/pkg/registry"
)

// Config wires the service's collaborators.
type Config struct {
	Owner    string
	Cooldown time.Duration

	Engine   engine.Engine
	Registry *registry.Registry
	Batches  *batch.Ledger
	Verifier *crypto.AttestationVerifier

	// Optional.
	Audit  audit.Logger
	Sink   contracts.CompletionSink
	Policy *gate.Policy
}

// stagedSubmission is a provider's latest engine output, waiting for its
// decryption dispatch.
type stagedSubmission struct {
	batchID uint64
	handles []contracts.Handle
}

// Service owns all protocol state: the batch ledger, the pending-request
// registry, and the actor table. Every admitted action and every callback
// runs to completion under one lock, so no action observes a partially
// updated record. It is constructed at startup; there are no package-level
// singletons.
type Service struct {
	mu sync.Mutex

	cfg      contracts.ProtocolConfig
	eng      engine.Engine
	registry *registry.Registry
	batches  *batch.Ledger
	verifier *crypto.AttestationVerifier
	policy   *gate.Policy

	actors map[string]*contracts.ActorState
	staged map[string]*stagedSubmission

	auditLog audit.Logger
	sink     contracts.CompletionSink
	log      *slog.Logger
	now      func() time.Time
}

// New builds the service. Owner, Engine, Registry, Batches, and Verifier
// are required.
func New(c Config) (*Service, error) {
	switch {
	case c.Owner == "":
		return nil, fmt.Errorf("protocol: owner required")
	case c.Engine == nil:
		return nil, fmt.Errorf("protocol: engine required")
	case c.Registry == nil:
		return nil, fmt.Errorf("protocol: registry required")
	case c.Batches == nil:
		return nil, fmt.Errorf("protocol: batch ledger required")
	case c.Verifier == nil:
		return nil, fmt.Errorf("protocol: attestation verifier required")
	}
	auditLog := c.Audit
	if auditLog == nil {
		auditLog = audit.Nop()
	}
	return &Service{
		cfg:      contracts.ProtocolConfig{Owner: c.Owner, Cooldown: c.Cooldown},
		eng:      c.Engine,
		registry: c.Registry,
		batches:  c.Batches,
		verifier: c.Verifier,
		policy:   c.Policy,
		actors:   make(map[string]*contracts.ActorState),
		staged:   make(map[string]*stagedSubmission),
		auditLog: auditLog,
		sink:     c.Sink,
		log:      slog.Default().With("component", "protocol"),
		now:      time.Now,
	}, nil
}

// WithClock overrides the service clock. Test hook.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Submit runs the encrypted input through the computation engine and stages
// the resulting handle set for the actor's next decryption request.
// Admitted action: provider role, pause flag, submission cooldown.
func (s *Service) Submit(ctx context.Context, actor string, input engine.Ciphertext, computation string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	state := s.actorLocked(actor)
	if err := s.admitLocked(now, *state, gate.Check{
		RequireProvider: true,
		EnforceCooldown: true,
		LastAction:      state.LastSubmission,
	}); err != nil {
		return err
	}

	batchID, ok := s.batches.Active()
	if !ok {
		return fmt.Errorf("no open batch: %w", contracts.ErrBatchNotActive)
	}

	handles, err := s.eng.Evaluate(ctx, input, computation)
	if err != nil {
		return fmt.Errorf("engine evaluation: %w", err)
	}

	s.staged[actor] = &stagedSubmission{batchID: batchID, handles: handles}
	state.LastSubmission = now
	s.auditLog.Record(audit.EventMutation, "submission.staged", actor, 0, map[string]any{
		"batch_id":    batchID,
		"computation": computation,
		"handles":     len(handles),
	})
	return nil
}

// RequestDecryption dispatches the actor's staged handle set to the oracle
// and registers the pending request under the oracle-assigned id.
// Admitted action: provider role, pause flag, decryption cooldown, a clock
// independent from the submission one.
func (s *Service) RequestDecryption(ctx context.Context, actor string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	state := s.actorLocked(actor)
	if err := s.admitLocked(now, *state, gate.Check{
		RequireProvider: true,
		EnforceCooldown: true,
		LastAction:      state.LastDecryptRequest,
	}); err != nil {
		return 0, err
	}

	staged, ok := s.staged[actor]
	if !ok {
		return 0, fmt.Errorf("actor %q has no staged submission", actor)
	}
	if !s.batches.IsActive(staged.batchID) {
		return 0, fmt.Errorf("batch %d: %w", staged.batchID, contracts.ErrBatchNotActive)
	}

	requestID, err := s.registry.Create(ctx, staged.batchID, staged.handles)
	if err != nil {
		return 0, err
	}

	delete(s.staged, actor)
	state.LastDecryptRequest = now
	s.auditLog.Record(audit.EventMutation, "request.created", actor, requestID, map[string]any{
		"batch_id": staged.batchID,
	})
	return requestID, nil
}

// HandleCallback is the sole inbound boundary of the protocol. It is
// publicly reachable and treats every argument as adversarial. Checks run
// in fixed order (existence, replay, commitment, attestation) and state
// mutates only after all of them pass. A rejected callback leaves the
// record Pending so a corrected retry can still succeed.
func (s *Service) HandleCallback(ctx context.Context, requestID uint64, cleartext, proof []byte) (contracts.CompletionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var none contracts.CompletionEvent

	req, err := s.registry.Lookup(ctx, requestID)
	if err != nil {
		s.auditLog.Record(audit.EventCallback, "callback.unknown_request", "", requestID, nil)
		return none, err
	}

	// The replay guard runs before any cryptography: a second commit
	// against a settled request is rejected no matter how well-formed
	// its payload is.
	if req.Processed {
		s.auditLog.Record(audit.EventSecurity, audit.ActionReplayAttempt, "", requestID, nil)
		s.log.Warn("duplicate callback rejected", "request_id", requestID)
		return none, fmt.Errorf("request %d: %w", requestID, contracts.ErrReplayAttempt)
	}

	// Expected handles come from the persisted record, never the caller.
	expected := s.registry.Hasher().Commit(req.Handles)
	if expected != req.Commitment {
		s.auditLog.Record(audit.EventSecurity, audit.ActionStateMismatch, "", requestID, map[string]any{
			"stored":     req.Commitment.Hex(),
			"recomputed": expected.Hex(),
		})
		s.log.Warn("commitment mismatch", "request_id", requestID)
		return none, fmt.Errorf("request %d: %w", requestID, contracts.ErrStateMismatch)
	}

	ok, err := s.verifier.VerifyAttestation(requestID, cleartext, proof)
	if err != nil {
		return none, fmt.Errorf("request %d attestation: %w", requestID, err)
	}
	if !ok {
		s.auditLog.Record(audit.EventSecurity, audit.ActionInvalidProof, "", requestID, nil)
		s.log.Warn("attestation rejected", "request_id", requestID)
		return none, fmt.Errorf("request %d: %w", requestID, contracts.ErrInvalidProof)
	}

	// The payload is oracle-authenticated at this point; a layout the
	// codec rejects means the oracle signed garbage, which is a proof-
	// channel failure, not a protocol state failure.
	value, flag, err := oracle.DecodeResult(cleartext)
	if err != nil {
		s.auditLog.Record(audit.EventSecurity, audit.ActionInvalidProof, "", requestID, map[string]any{
			"reason": "malformed_payload",
		})
		return none, fmt.Errorf("request %d: %v: %w", requestID, err, contracts.ErrInvalidProof)
	}

	if err := s.registry.MarkProcessed(ctx, requestID); err != nil {
		return none, err
	}

	event := contracts.CompletionEvent{
		RequestID:   requestID,
		BatchID:     req.BatchID,
		ResultFlag:  flag,
		ResultValue: value,
		ProcessedAt: s.now().UTC(),
	}
	s.auditLog.Record(audit.EventCallback, "callback.processed", "", requestID, map[string]any{
		"batch_id":    req.BatchID,
		"result_flag": flag,
	})
	if s.sink != nil {
		s.sink.Completed(event)
	}
	return event, nil
}

func (s *Service) admitLocked(now time.Time, state contracts.ActorState, c gate.Check) error {
	if err := gate.Admit(now, s.cfg, state, c); err != nil {
		s.auditLog.Record(audit.EventAdmission, "admission.denied", state.Actor, 0, map[string]any{
			"reason": err.Error(),
		})
		return err
	}
	if s.policy != nil {
		if err := s.policy.Admit(now, s.cfg, state); err != nil {
			s.auditLog.Record(audit.EventAdmission, "admission.policy_denied", state.Actor, 0, nil)
			return err
		}
	}
	return nil
}

func (s *Service) actorLocked(actor string) *contracts.ActorState {
	state, ok := s.actors[actor]
	if !ok {
		state = &contracts.ActorState{Actor: actor}
		s.actors[actor] = state
	}
	return state
}
