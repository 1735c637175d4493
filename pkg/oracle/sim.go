package oracle

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"
	"sync"

	"github.com/Veilstone-Labs/fhegate/pkg/contracts"
	"github.com/Veilstone-Labs/fhegate/pkg/crypto"
	"github.com/Veilstone-Labs/fhegate/pkg/engine"
)

// SimOracle is an in-process oracle: it shares the test scheme's key,
// decrypts dispatched handle sets on demand, and signs attestations with
// its own keypair. It backs local development and the end-to-end tests;
// a production deployment replaces it with a relay to the real oracle
// network.
type SimOracle struct {
	mu      sync.Mutex
	scheme  *engine.XorScheme
	signer  *crypto.AttestationSigner
	nextID  uint64
	pending map[uint64][]contracts.Handle
}

// NewSimOracle builds a simulated oracle over the shared scheme.
func NewSimOracle(scheme *engine.XorScheme, signer *crypto.AttestationSigner) *SimOracle {
	return &SimOracle{
		scheme:  scheme,
		signer:  signer,
		nextID:  1,
		pending: make(map[uint64][]contracts.Handle),
	}
}

// RequestDecryption implements Dispatcher. Request ids are never reused.
func (o *SimOracle) RequestDecryption(ctx context.Context, handles []contracts.Handle, callback string) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.nextID
	o.nextID++
	o.pending[id] = append([]contracts.Handle(nil), handles...)
	return id, nil
}

// Callback produces the cleartext payload and attestation the oracle would
// deliver for a dispatched request: value handle decrypted, flag handle
// decrypted, packed in the fixed layout, signed over (id, payload).
// Delivery to the gateway is the caller's job; calling twice models a
// duplicate delivery.
func (o *SimOracle) Callback(id uint64) (cleartext []byte, proof []byte, err error) {
	o.mu.Lock()
	handles, ok := o.pending[id]
	o.mu.Unlock()
	if !ok {
		return nil, nil, fmt.Errorf("no dispatched request %d", id)
	}
	if len(handles) != 2 {
		return nil, nil, fmt.Errorf("request %d: expected 2 handles, got %d", id, len(handles))
	}

	valueBytes, err := o.scheme.Decrypt(handles[0])
	if err != nil {
		return nil, nil, fmt.Errorf("request %d value handle: %w", id, err)
	}
	flagBytes, err := o.scheme.Decrypt(handles[1])
	if err != nil {
		return nil, nil, fmt.Errorf("request %d flag handle: %w", id, err)
	}
	if len(flagBytes) != 1 {
		return nil, nil, fmt.Errorf("request %d: flag plaintext must be 1 byte", id)
	}

	cleartext, err = EncodeResult(new(big.Int).SetBytes(valueBytes), flagBytes[0] != 0)
	if err != nil {
		return nil, nil, err
	}

	sigHex, err := o.signer.SignAttestation(id, cleartext)
	if err != nil {
		return nil, nil, err
	}
	proof, err = hex.DecodeString(sigHex)
	if err != nil {
		return nil, nil, err
	}
	return cleartext, proof, nil
}
