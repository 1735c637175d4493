package oracle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veilstone-Labs/fhegate/pkg/contracts"
	"github.com/Veilstone-Labs/fhegate/pkg/crypto"
	"github.com/Veilstone-Labs/fhegate/pkg/engine"
)

func TestSimOracle_UniqueIDs(t *testing.T) {
	scheme := engine.NewXorScheme([]byte("seed"))
	signer, err := crypto.NewAttestationSigner("oracle-test")
	require.NoError(t, err)
	o := NewSimOracle(scheme, signer)

	handles := []contracts.Handle{scheme.Encrypt(make([]byte, 32)), scheme.Encrypt([]byte{1})}

	seen := map[uint64]bool{}
	for i := 0; i < 10; i++ {
		id, err := o.RequestDecryption(context.Background(), handles, DefaultCallback)
		require.NoError(t, err)
		assert.False(t, seen[id], "request id %d reused", id)
		seen[id] = true
	}
}

func TestSimOracle_CallbackVerifies(t *testing.T) {
	scheme := engine.NewXorScheme([]byte("seed"))
	signer, err := crypto.NewAttestationSigner("oracle-test")
	require.NoError(t, err)
	o := NewSimOracle(scheme, signer)

	value := make([]byte, 32)
	value[31] = 9
	handles := []contracts.Handle{scheme.Encrypt(value), scheme.Encrypt([]byte{1})}

	id, err := o.RequestDecryption(context.Background(), handles, DefaultCallback)
	require.NoError(t, err)

	cleartext, proof, err := o.Callback(id)
	require.NoError(t, err)

	got, flag, err := DecodeResult(cleartext)
	require.NoError(t, err)
	assert.Equal(t, int64(9), got.Int64())
	assert.True(t, flag)

	verifier, err := crypto.NewAttestationVerifier(signer.PublicKeyBytes())
	require.NoError(t, err)
	ok, err := verifier.VerifyAttestation(id, cleartext, proof)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSimOracle_UnknownRequest(t *testing.T) {
	scheme := engine.NewXorScheme([]byte("seed"))
	signer, err := crypto.NewAttestationSigner("oracle-test")
	require.NoError(t, err)
	o := NewSimOracle(scheme, signer)

	_, _, err = o.Callback(99)
	assert.Error(t, err)
}
