package engine

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"golang.org/x/crypto/sha3"
)

// ProofSearch is the computation tag for the reference proof-search
// circuit: given a 32-byte target digest, scan candidate witnesses and
// report the first preimage found. The search logic itself is pluggable
// computation over encrypted values; this reference version is the
// plaintext equivalent used with the in-process engine.
const ProofSearch = "proof-search"

// RegisterProofSearch installs the reference proof-search computation.
// Output layout (order is part of the protocol commitment): the 32-byte
// big-endian witness value first, then the single found/not-found byte.
func RegisterProofSearch(r *Registry, limit uint64) {
	r.Register(ProofSearch, func(input []byte) ([][]byte, error) {
		if len(input) != 32 {
			return nil, fmt.Errorf("proof-search target must be 32 bytes, got %d", len(input))
		}

		value := make([]byte, 32)
		flag := []byte{0}
		var candidate [8]byte
		for x := uint64(0); x < limit; x++ {
			binary.BigEndian.PutUint64(candidate[:], x)
			digest := sha3.Sum256(candidate[:])
			if bytes.Equal(digest[:], input) {
				binary.BigEndian.PutUint64(value[24:], x)
				flag[0] = 1
				break
			}
		}
		return [][]byte{value, flag}, nil
	})
}
