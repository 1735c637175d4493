package protocol

import (
	"fmt"
	"time"

	"github.com/Veilstone-Labs/fhegate/pkg/audit"
	"github.com/Veilstone-Labs/fhegate/pkg/contracts"
)

// Owner-gated administration. These are the simple setters behind the
// admission gate's inputs: provider allow-list, pause flag, cooldown
// duration, batch windows.

func (s *Service) requireOwner(caller string) error {
	if caller != s.cfg.Owner {
		return fmt.Errorf("caller %q is not the owner: %w", caller, contracts.ErrNotAuthorized)
	}
	return nil
}

// SetProvider toggles an actor's provider role.
func (s *Service) SetProvider(caller, actor string, isProvider bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	s.actorLocked(actor).IsProvider = isProvider
	s.auditLog.Record(audit.EventMutation, "admin.set_provider", caller, 0, map[string]any{
		"actor":       actor,
		"is_provider": isProvider,
	})
	return nil
}

// SetPaused sets the global pause flag.
func (s *Service) SetPaused(caller string, paused bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	s.cfg.Paused = paused
	s.auditLog.Record(audit.EventMutation, "admin.set_paused", caller, 0, map[string]any{
		"paused": paused,
	})
	return nil
}

// SetCooldown sets the per-actor cooldown window.
func (s *Service) SetCooldown(caller string, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	if d < 0 {
		return fmt.Errorf("cooldown must be non-negative, got %s", d)
	}
	s.cfg.Cooldown = d
	s.auditLog.Record(audit.EventMutation, "admin.set_cooldown", caller, 0, map[string]any{
		"cooldown": d.String(),
	})
	return nil
}

// OpenBatch opens a new batch window and returns its id.
func (s *Service) OpenBatch(caller string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOwner(caller); err != nil {
		return 0, err
	}
	id := s.batches.Open()
	s.auditLog.Record(audit.EventMutation, "admin.open_batch", caller, 0, map[string]any{
		"batch_id": id,
	})
	return id, nil
}

// CloseBatch closes the batch window. Idempotent on already-closed ids.
func (s *Service) CloseBatch(caller string, id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.requireOwner(caller); err != nil {
		return err
	}
	if err := s.batches.Close(id); err != nil {
		return err
	}
	s.auditLog.Record(audit.EventMutation, "admin.close_batch", caller, 0, map[string]any{
		"batch_id": id,
	})
	return nil
}

// Actor returns a copy of the actor's state.
func (s *Service) Actor(actor string) contracts.ActorState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return *s.actorLocked(actor)
}

// ProtocolConfig returns a copy of the current mutable configuration.
func (s *Service) ProtocolConfig() contracts.ProtocolConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}
