// Package commitment binds ordered ciphertext handle sets to fixed-size
// digests. A commitment is computed once at request creation and compared
// byte-for-byte at callback time; any substitution, omission, or reordering
// of handles changes the digest.
package commitment

import (
	"crypto/sha256"
	"encoding/binary"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/sha3"

	"github.com/Veilstone-Labs/fhegate/pkg/contracts"
)

// protocolLabel is the fixed protocol identifier mixed into every domain
// tag. Two gateway instances with different instance IDs can never produce
// colliding commitments for the same handle set.
const protocolLabel = "fhegate/commitment/v1"

// Hasher computes order-sensitive commitments under a per-instance domain
// tag. It is pure: no side effects, no error paths.
type Hasher struct {
	tag [32]byte
}

// NewHasher derives the instance domain tag from the deployment's identity
// (HKDF over the instance ID, salted with the protocol label).
func NewHasher(instanceID string) *Hasher {
	h := &Hasher{}
	r := hkdf.New(sha256.New, []byte(instanceID), []byte(protocolLabel), []byte("domain-tag"))
	if _, err := io.ReadFull(r, h.tag[:]); err != nil {
		// HKDF over sha256 cannot fail for a 32-byte read.
		panic(err)
	}
	return h
}

// Commit hashes the ordered handle list plus the domain tag into a
// commitment. The encoding is length-prefixed so that handle boundaries
// are unambiguous: keccak256(tag || n || (len_i || handle_i)*).
// A nil or empty list commits to the empty set; zero-length handles are
// legal and position-significant.
func (h *Hasher) Commit(handles []contracts.Handle) contracts.Commitment {
	d := sha3.NewLegacyKeccak256()
	d.Write(h.tag[:])

	var buf [4]byte
	binary.BigEndian.PutUint32(buf[:], uint32(len(handles)))
	d.Write(buf[:])

	for _, handle := range handles {
		binary.BigEndian.PutUint32(buf[:], uint32(len(handle)))
		d.Write(buf[:])
		d.Write(handle)
	}

	var c contracts.Commitment
	d.Sum(c[:0])
	return c
}
