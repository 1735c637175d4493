package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veilstone-Labs/fhegate/pkg/contracts"
)

func TestRelayDispatch(t *testing.T) {
	var got relayRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(relayResponse{RequestID: 42})
	}))
	defer ts.Close()

	relay := NewRelay(ts.URL)
	id, err := relay.RequestDecryption(context.Background(),
		[]contracts.Handle{[]byte("aa"), []byte("bb")}, DefaultCallback)
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)
	assert.Len(t, got.Handles, 2)
	assert.Equal(t, DefaultCallback, got.Callback)
}

func TestRelayRejectsBadStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	_, err := NewRelay(ts.URL).RequestDecryption(context.Background(), nil, DefaultCallback)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestRelayRejectsZeroRequestID(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(relayResponse{RequestID: 0})
	}))
	defer ts.Close()

	_, err := NewRelay(ts.URL).RequestDecryption(context.Background(), nil, DefaultCallback)
	require.Error(t, err)
}
