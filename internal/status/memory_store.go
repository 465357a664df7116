package status

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory implementation of Store for demo/test use.
type MemoryStore struct {
	mu     sync.RWMutex
	checks []*Check
}

// NewMemoryStore creates an in-memory status store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Create(ctx context.Context, c *Check) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *c
	s.checks = append(s.checks, &cp)
	return nil
}

func (s *MemoryStore) List(ctx context.Context, limit int) ([]*Check, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Most recent first
	var result []*Check
	for i := len(s.checks) - 1; i >= 0 && len(result) < limit; i-- {
		cp := *s.checks[i]
		result = append(result, &cp)
	}
	return result, nil
}
