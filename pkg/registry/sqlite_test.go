package registry

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veilstone-Labs/fhegate/pkg/commitment"
	"github.com/Veilstone-Labs/fhegate/pkg/contracts"
)

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s, err := NewSQLiteStore(db)
	require.NoError(t, err)
	return s
}

func sampleRequest(id uint64) *contracts.PendingRequest {
	handles := []contracts.Handle{[]byte("h1"), []byte("h2")}
	return &contracts.PendingRequest{
		RequestID:  id,
		BatchID:    3,
		Commitment: commitment.NewHasher("sqlite-test").Commit(handles),
		Handles:    handles,
		CreatedAt:  time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestSQLiteStore_RoundTrip(t *testing.T) {
	s := newSQLiteStore(t)
	req := sampleRequest(42)
	require.NoError(t, s.Put(context.Background(), req))

	got, err := s.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, req.RequestID, got.RequestID)
	assert.Equal(t, req.BatchID, got.BatchID)
	assert.Equal(t, req.Commitment, got.Commitment)
	assert.Equal(t, req.Handles, got.Handles)
	assert.False(t, got.Processed)
	assert.True(t, req.CreatedAt.Equal(got.CreatedAt))
}

func TestSQLiteStore_Unknown(t *testing.T) {
	s := newSQLiteStore(t)
	_, err := s.Get(context.Background(), 9)
	assert.ErrorIs(t, err, contracts.ErrUnknownRequest)

	err = s.MarkProcessed(context.Background(), 9)
	assert.ErrorIs(t, err, contracts.ErrUnknownRequest)
}

func TestSQLiteStore_ProcessedFlipOnce(t *testing.T) {
	s := newSQLiteStore(t)
	require.NoError(t, s.Put(context.Background(), sampleRequest(42)))

	require.NoError(t, s.MarkProcessed(context.Background(), 42))

	err := s.MarkProcessed(context.Background(), 42)
	assert.ErrorIs(t, err, contracts.ErrReplayAttempt)

	got, err := s.Get(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, got.Processed)
}

func TestSQLiteStore_DuplicateInsert(t *testing.T) {
	s := newSQLiteStore(t)
	require.NoError(t, s.Put(context.Background(), sampleRequest(42)))
	assert.Error(t, s.Put(context.Background(), sampleRequest(42)))
}
