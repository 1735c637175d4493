package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// AttestationSigner produces oracle attestations. The production oracle
// holds its own key off-process; this implementation backs the simulated
// oracle and key-rotation tooling.
type AttestationSigner struct {
	privKey ed25519.PrivateKey
	pubKey  ed25519.PublicKey
	KeyID   string
}

// NewAttestationSigner generates a fresh ed25519 keypair.
func NewAttestationSigner(keyID string) (*AttestationSigner, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("key generation failed: %w", err)
	}
	return &AttestationSigner{privKey: priv, pubKey: pub, KeyID: keyID}, nil
}

// NewAttestationSignerFromKey wraps an existing private key.
func NewAttestationSignerFromKey(priv ed25519.PrivateKey, keyID string) *AttestationSigner {
	return &AttestationSigner{
		privKey: priv,
		pubKey:  priv.Public().(ed25519.PublicKey),
		KeyID:   keyID,
	}
}

// SignAttestation signs the canonical (requestID, cleartext) payload and
// returns the hex-encoded signature.
func (s *AttestationSigner) SignAttestation(requestID uint64, cleartext []byte) (string, error) {
	msg, err := CanonicalAttestation(requestID, cleartext)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(ed25519.Sign(s.privKey, msg)), nil
}

// PublicKey returns the hex-encoded verification key.
func (s *AttestationSigner) PublicKey() string {
	return hex.EncodeToString(s.pubKey)
}

// PublicKeyBytes returns the raw verification key.
func (s *AttestationSigner) PublicKeyBytes() []byte {
	return append([]byte(nil), s.pubKey...)
}
