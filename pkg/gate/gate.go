// Package gate implements the admission checks applied before any
// state-mutating protocol action: role membership, the global pause flag,
// and the per-actor cooldown clock. The gate is a pure predicate: it
// mutates nothing; on success the caller updates the actor's timestamp for
// whichever clock the action uses.
package gate

import (
	"fmt"
	"time"

	"github.com/Veilstone-Labs/fhegate/pkg/contracts"
)

// Check describes what a given action requires. Submission and decryption
// dispatch reuse the same gate with independently tracked cooldown clocks:
// the caller passes the clock relevant to the action.
type Check struct {
	RequireProvider bool
	// EnforceCooldown gates on LastAction + cooldown.
	EnforceCooldown bool
	// LastAction is the actor's previous admitted action on this clock.
	// The zero time means no previous action.
	LastAction time.Time
}

// Admit applies the checks in fixed order: role, pause, cooldown. The first
// failure wins and maps onto the protocol error taxonomy.
func Admit(now time.Time, cfg contracts.ProtocolConfig, actor contracts.ActorState, c Check) error {
	if c.RequireProvider && !actor.IsProvider {
		return fmt.Errorf("actor %q: %w", actor.Actor, contracts.ErrNotAuthorized)
	}
	if cfg.Paused {
		return contracts.ErrServiceSuspended
	}
	if c.EnforceCooldown && !c.LastAction.IsZero() {
		ready := c.LastAction.Add(cfg.Cooldown)
		if now.Before(ready) {
			return fmt.Errorf("retry in %s: %w", ready.Sub(now), contracts.ErrCooldownActive)
		}
	}
	return nil
}
