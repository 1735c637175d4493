package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/Veilstone-Labs/fhegate/pkg/contracts"
)

// MemoryStore is the in-process Store for single-node deployments and
// tests. Records live for the lifetime of the process.
type MemoryStore struct {
	mu       sync.Mutex
	requests map[uint64]*contracts.PendingRequest
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{requests: make(map[uint64]*contracts.PendingRequest)}
}

// Put stores a new record. Request ids are assigned by the oracle and
// never reused; a duplicate id is a dispatcher bug.
func (s *MemoryStore) Put(ctx context.Context, req *contracts.PendingRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.RequestID]; exists {
		return fmt.Errorf("request id %d already exists", req.RequestID)
	}
	cp := *req
	cp.Handles = cloneHandles(req.Handles)
	s.requests[req.RequestID] = &cp
	return nil
}

// Get returns a copy of the record so callers cannot mutate stored state.
func (s *MemoryStore) Get(ctx context.Context, requestID uint64) (*contracts.PendingRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("request %d: %w", requestID, contracts.ErrUnknownRequest)
	}
	cp := *req
	cp.Handles = cloneHandles(req.Handles)
	return &cp, nil
}

// MarkProcessed flips processed under the store lock; the first caller
// wins, every later caller gets ErrReplayAttempt.
func (s *MemoryStore) MarkProcessed(ctx context.Context, requestID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req, ok := s.requests[requestID]
	if !ok {
		return fmt.Errorf("request %d: %w", requestID, contracts.ErrUnknownRequest)
	}
	if req.Processed {
		return fmt.Errorf("request %d: %w", requestID, contracts.ErrReplayAttempt)
	}
	req.Processed = true
	return nil
}
