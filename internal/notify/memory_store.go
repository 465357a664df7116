package notify

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store + PreferenceStore for demo/test use.
type MemoryStore struct {
	mu    sync.RWMutex
	logs  []*Log
	prefs map[string]*Preference // keyed by user_id + "\x00" + event_type
}

// NewMemoryStore creates an in-memory notification store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{prefs: make(map[string]*Preference)}
}

func (s *MemoryStore) Append(ctx context.Context, l *Log) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *l
	s.logs = append(s.logs, &cp)
	return nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userID string, limit int) ([]*Log, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Most recent first
	var result []*Log
	for i := len(s.logs) - 1; i >= 0 && len(result) < limit; i-- {
		if s.logs[i].UserID == userID {
			cp := *s.logs[i]
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (s *MemoryStore) Save(ctx context.Context, p *Preference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *p
	cp.Channels = append([]string(nil), p.Channels...)
	cp.UpdatedAt = time.Now().UTC()
	s.prefs[p.UserID+"\x00"+p.EventType] = &cp
	return nil
}

func (s *MemoryStore) Load(ctx context.Context, userID string) ([]*Preference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*Preference
	for _, p := range s.prefs {
		if p.UserID == userID {
			cp := *p
			cp.Channels = append([]string(nil), p.Channels...)
			result = append(result, &cp)
		}
	}
	// Map iteration order is random; present a stable listing.
	sort.Slice(result, func(i, j int) bool {
		return result[i].EventType < result[j].EventType
	})
	return result, nil
}
