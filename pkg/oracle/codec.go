package oracle

import (
	"fmt"
	"math/big"
)

// Cleartext payload layout, fixed and pre-agreed with the oracle: the
// 32-byte big-endian result value first, then the single result-flag byte.
// The payload is decoded exactly once, after the commitment and attestation
// checks have both passed.
const (
	valueSize   = 32
	payloadSize = valueSize + 1
)

// EncodeResult packs (value, flag) into the wire layout. Values wider than
// 32 bytes are a caller bug.
func EncodeResult(value *big.Int, flag bool) ([]byte, error) {
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() < 0 || value.BitLen() > valueSize*8 {
		return nil, fmt.Errorf("result value out of range: %s", value)
	}
	out := make([]byte, payloadSize)
	value.FillBytes(out[:valueSize])
	if flag {
		out[valueSize] = 1
	}
	return out, nil
}

// DecodeResult unpacks the wire layout. Flag bytes other than 0 and 1 are
// rejected: the layout admits exactly one encoding per result.
func DecodeResult(payload []byte) (*big.Int, bool, error) {
	if len(payload) != payloadSize {
		return nil, false, fmt.Errorf("cleartext payload must be %d bytes, got %d", payloadSize, len(payload))
	}
	switch payload[valueSize] {
	case 0:
		return new(big.Int).SetBytes(payload[:valueSize]), false, nil
	case 1:
		return new(big.Int).SetBytes(payload[:valueSize]), true, nil
	default:
		return nil, false, fmt.Errorf("invalid result flag byte: %#x", payload[valueSize])
	}
}
