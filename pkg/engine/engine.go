// Package engine defines the boundary to the external encrypted-computation
// engine. The gateway hands an opaque encrypted input plus a plaintext tag
// selecting the computation; the engine returns an ordered sequence of
// opaque output ciphertext handles. Encrypted contents are never inspected
// on this side of the boundary.
package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/Veilstone-Labs/fhegate/pkg/contracts"
)

// Ciphertext is an opaque encrypted input value.
type Ciphertext []byte

// ErrUnknownComputation is returned for a tag no computation is registered
// under.
var ErrUnknownComputation = errors.New("unknown computation")

// Engine evaluates a named computation over an encrypted input. The handle
// order in the result is significant: it is the order committed at request
// time and re-verified at callback time.
type Engine interface {
	Evaluate(ctx context.Context, input Ciphertext, computation string) ([]contracts.Handle, error)
}

// Computation is a plaintext-domain function plugged into the test engine.
// Real engines run their equivalents homomorphically.
type Computation func(input []byte) (outputs [][]byte, err error)

// Registry maps plaintext computation tags to registered computations.
type Registry struct {
	computations map[string]Computation
}

// NewRegistry returns an empty computation registry.
func NewRegistry() *Registry {
	return &Registry{computations: make(map[string]Computation)}
}

// Register binds a computation under its tag. Re-registering a tag replaces
// the previous binding.
func (r *Registry) Register(tag string, fn Computation) {
	r.computations[tag] = fn
}

// Lookup returns the computation registered under tag.
func (r *Registry) Lookup(tag string) (Computation, error) {
	fn, ok := r.computations[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownComputation, tag)
	}
	return fn, nil
}
