// Package crypto implements the oracle attestation scheme: ed25519
// signatures over JCS-canonical (requestID, cleartext) payloads. The
// verifier side runs inside the gateway; the signer side belongs to the
// oracle and ships here only for the simulated oracle and tests.
package crypto

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// AttestationVerifier checks oracle attestations against a pinned
// verification key.
type AttestationVerifier struct {
	PublicKey ed25519.PublicKey
}

// NewAttestationVerifier pins the oracle's verification key.
func NewAttestationVerifier(pubKeyBytes []byte) (*AttestationVerifier, error) {
	if len(pubKeyBytes) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("invalid public key size: %d", len(pubKeyBytes))
	}
	return &AttestationVerifier{PublicKey: ed25519.PublicKey(pubKeyBytes)}, nil
}

// NewAttestationVerifierHex pins a hex-encoded verification key.
func NewAttestationVerifierHex(pubKeyHex string) (*AttestationVerifier, error) {
	raw, err := hex.DecodeString(pubKeyHex)
	if err != nil {
		return nil, fmt.Errorf("invalid public key encoding: %w", err)
	}
	return NewAttestationVerifier(raw)
}

// VerifyAttestation reports whether proof is a valid oracle signature over
// the canonical (requestID, cleartext) payload. Malformed proofs verify as
// false, not as errors: at the callback boundary both are adversarial input.
func (v *AttestationVerifier) VerifyAttestation(requestID uint64, cleartext []byte, proof []byte) (bool, error) {
	msg, err := CanonicalAttestation(requestID, cleartext)
	if err != nil {
		return false, err
	}
	if len(proof) != ed25519.SignatureSize {
		return false, nil
	}
	return ed25519.Verify(v.PublicKey, msg, proof), nil
}

// VerifyAttestationHex is VerifyAttestation for hex-encoded proofs.
func (v *AttestationVerifier) VerifyAttestationHex(requestID uint64, cleartext []byte, proofHex string) (bool, error) {
	raw, err := hex.DecodeString(proofHex)
	if err != nil {
		return false, nil
	}
	return v.VerifyAttestation(requestID, cleartext, raw)
}
