//go:build property
// +build property

// Property-based tests for the protocol invariants: replay invariance,
// commitment order sensitivity, and cooldown monotonicity.
package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/Veilstone-Labs/fhegate/pkg/commitment"
	"github.com/Veilstone-Labs/fhegate/pkg/contracts"
	"github.com/Veilstone-Labs/fhegate/pkg/gate"
)

// TestCommitmentOrderSensitivity: commit([A,B]) != commit([B,A]) for A != B,
// and any reordering of a distinct handle list changes the digest.
func TestCommitmentOrderSensitivity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	hasher := commitment.NewHasher("property-instance")

	properties.Property("swapping two distinct handles changes the commitment", prop.ForAll(
		func(a, b string) bool {
			if a == b {
				return true
			}
			ha := contracts.Handle(a)
			hb := contracts.Handle(b)
			c1 := hasher.Commit([]contracts.Handle{ha, hb})
			c2 := hasher.Commit([]contracts.Handle{hb, ha})
			return c1 != c2
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("appending a handle changes the commitment", prop.ForAll(
		func(handles []string, extra string) bool {
			set := make([]contracts.Handle, len(handles))
			for i, h := range handles {
				set[i] = contracts.Handle(h)
			}
			base := hasher.Commit(set)
			return base != hasher.Commit(append(set, contracts.Handle(extra)))
		},
		gen.SliceOf(gen.AnyString()),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

// TestReplayInvariance: however many duplicate deliveries arrive, at most
// one callback per request id ever succeeds.
func TestReplayInvariance(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("at most one callback succeeds per request", prop.ForAll(
		func(deliveries uint8) bool {
			if deliveries == 0 {
				return true
			}
			h := newHarness(t)
			ctx := context.Background()
			if _, err := h.svc.OpenBatch(owner); err != nil {
				return false
			}
			id := h.submitAndRequest(t, 7)
			cleartext, proof, err := h.oracle.Callback(id)
			if err != nil {
				return false
			}

			successes := 0
			for i := 0; i < int(deliveries); i++ {
				if _, err := h.svc.HandleCallback(ctx, id, cleartext, proof); err == nil {
					successes++
				}
			}
			return successes == 1 && len(h.sink.all()) == 1
		},
		gen.UInt8Range(1, 8),
	))

	properties.TestingRun(t)
}

// TestCooldownMonotonicity: an action at T' < T+C is rejected, at T' >= T+C
// admitted, for arbitrary C and elapsed offsets.
func TestCooldownMonotonicity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	base := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	actor := contracts.ActorState{Actor: "p", IsProvider: true}

	properties.Property("admission tracks the cooldown boundary exactly", prop.ForAll(
		func(cooldownSec uint16, elapsedSec uint16) bool {
			cfg := contracts.ProtocolConfig{Owner: "o", Cooldown: time.Duration(cooldownSec) * time.Second}
			check := gate.Check{RequireProvider: true, EnforceCooldown: true, LastAction: base}
			now := base.Add(time.Duration(elapsedSec) * time.Second)

			err := gate.Admit(now, cfg, actor, check)
			if elapsedSec >= cooldownSec {
				return err == nil
			}
			return err != nil
		},
		gen.UInt16Range(1, 3600),
		gen.UInt16Range(0, 7200),
	))

	properties.TestingRun(t)
}
