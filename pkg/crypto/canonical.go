package crypto

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// attestationPayload is the canonical form of the tuple the oracle signs.
// Field order in the struct is irrelevant: JCS sorts keys, so both sides
// of the channel agree on the exact byte string without a shared encoder.
type attestationPayload struct {
	RequestID uint64 `json:"request_id"`
	Cleartext string `json:"cleartext"`
}

// CanonicalAttestation produces the RFC 8785 canonical JSON bytes the
// oracle's attestation is computed over: (requestID, cleartext). Any change
// to either component changes the signed message.
func CanonicalAttestation(requestID uint64, cleartext []byte) ([]byte, error) {
	raw, err := json.Marshal(attestationPayload{
		RequestID: requestID,
		Cleartext: base64.StdEncoding.EncodeToString(cleartext),
	})
	if err != nil {
		return nil, fmt.Errorf("attestation encoding failed: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("attestation canonicalization failed: %w", err)
	}
	return canonical, nil
}
