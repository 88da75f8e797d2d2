package cache

import (
	"context"
	"sync"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore keeps codes and request counters in size-bounded LRU caches.
// Entries expire a fixed time after their last write.
type MemoryStore struct {
	codes    *expirable.LRU[string, string]
	requests *expirable.LRU[string, int]

	// serializes read-compare-write on requests
	mu sync.Mutex
}

// NewMemoryStore creates an in-process OTP store
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		codes:    expirable.NewLRU[string, string](opts.CodeCapacity, nil, opts.CodeTTL),
		requests: expirable.NewLRU[string, int](opts.RequestCapacity, nil, opts.RequestWindow),
	}
}

func (s *MemoryStore) PutCode(_ context.Context, userID, code string) error {
	s.codes.Add(userID, code)
	return nil
}

func (s *MemoryStore) GetCode(_ context.Context, userID string) (string, bool, error) {
	code, ok := s.codes.Get(userID)
	return code, ok, nil
}

func (s *MemoryStore) DeleteCode(_ context.Context, userID string) error {
	s.codes.Remove(userID)
	return nil
}

// ReserveRequest increments the counter for userID unless it already reached max
func (s *MemoryStore) ReserveRequest(_ context.Context, userID string, max int) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count, _ := s.requests.Get(userID)
	if count >= max {
		return count, false, nil
	}
	count++
	s.requests.Add(userID, count)
	return count, true, nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Backend() string { return BackendMemory }
