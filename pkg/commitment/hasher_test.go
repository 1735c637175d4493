package commitment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veilstone-Labs/fhegate/pkg/contracts"
)

func TestCommit_Deterministic(t *testing.T) {
	h := NewHasher("instance-a")
	handles := []contracts.Handle{[]byte("ct-1"), []byte("ct-2")}

	c1 := h.Commit(handles)
	c2 := h.Commit(handles)
	require.Equal(t, c1, c2)
}

func TestCommit_OrderSensitive(t *testing.T) {
	h := NewHasher("instance-a")
	a := contracts.Handle("ct-a")
	b := contracts.Handle("ct-b")

	assert.NotEqual(t,
		h.Commit([]contracts.Handle{a, b}),
		h.Commit([]contracts.Handle{b, a}),
		"reordering handles must change the commitment")
}

func TestCommit_DomainSeparation(t *testing.T) {
	handles := []contracts.Handle{[]byte("ct-1")}

	c1 := NewHasher("instance-a").Commit(handles)
	c2 := NewHasher("instance-b").Commit(handles)
	assert.NotEqual(t, c1, c2, "instances must not share commitments")
}

func TestCommit_BoundaryUnambiguous(t *testing.T) {
	h := NewHasher("instance-a")

	// Concatenation across handle boundaries must not collide.
	c1 := h.Commit([]contracts.Handle{[]byte("ab"), []byte("c")})
	c2 := h.Commit([]contracts.Handle{[]byte("a"), []byte("bc")})
	assert.NotEqual(t, c1, c2)
}

func TestCommit_EmptySets(t *testing.T) {
	h := NewHasher("instance-a")

	empty := h.Commit(nil)
	assert.Equal(t, empty, h.Commit([]contracts.Handle{}))

	// A single zero-length handle is not the empty set.
	assert.NotEqual(t, empty, h.Commit([]contracts.Handle{{}}))
}
