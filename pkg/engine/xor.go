package engine

import (
	"context"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/sha3"

	"github.com/Veilstone-Labs/fhegate/pkg/contracts"
)

const nonceSize = 16

// XorScheme is a deterministic stand-in for a real FHE scheme: a keyed
// stream cipher with random nonces. It has none of the homomorphic or
// security properties of FHE; it exists so the request/callback protocol
// can be exercised end to end in-process. The simulated oracle shares the
// key and plays the decryption side.
type XorScheme struct {
	key [32]byte
}

// NewXorScheme derives the scheme key from seed.
func NewXorScheme(seed []byte) *XorScheme {
	s := &XorScheme{}
	sha3.ShakeSum256(s.key[:], seed)
	return s
}

// Encrypt produces nonce || plaintext XOR keystream(key, nonce).
func (s *XorScheme) Encrypt(plain []byte) contracts.Handle {
	out := make([]byte, nonceSize+len(plain))
	if _, err := rand.Read(out[:nonceSize]); err != nil {
		panic(err)
	}
	s.stream(out[:nonceSize], plain, out[nonceSize:])
	return out
}

// Decrypt reverses Encrypt.
func (s *XorScheme) Decrypt(h contracts.Handle) ([]byte, error) {
	if len(h) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short: %d bytes", len(h))
	}
	out := make([]byte, len(h)-nonceSize)
	s.stream(h[:nonceSize], h[nonceSize:], out)
	return out, nil
}

func (s *XorScheme) stream(nonce, in, out []byte) {
	ks := make([]byte, len(in))
	shake := sha3.NewShake256()
	shake.Write(s.key[:])
	shake.Write(nonce)
	shake.Read(ks)
	for i := range in {
		out[i] = in[i] ^ ks[i]
	}
}

// XorEngine is the in-process Engine implementation over XorScheme. It
// decrypts the input internally, runs the registered plaintext computation,
// and re-encrypts each output as a fresh handle.
type XorEngine struct {
	scheme       *XorScheme
	computations *Registry
}

// NewXorEngine builds an engine over the shared scheme and registry.
func NewXorEngine(scheme *XorScheme, computations *Registry) *XorEngine {
	return &XorEngine{scheme: scheme, computations: computations}
}

// Evaluate implements Engine.
func (e *XorEngine) Evaluate(ctx context.Context, input Ciphertext, computation string) ([]contracts.Handle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fn, err := e.computations.Lookup(computation)
	if err != nil {
		return nil, err
	}
	plain, err := e.scheme.Decrypt(contracts.Handle(input))
	if err != nil {
		return nil, fmt.Errorf("engine input: %w", err)
	}
	outputs, err := fn(plain)
	if err != nil {
		return nil, fmt.Errorf("computation %q: %w", computation, err)
	}
	handles := make([]contracts.Handle, len(outputs))
	for i, out := range outputs {
		handles[i] = e.scheme.Encrypt(out)
	}
	return handles, nil
}
