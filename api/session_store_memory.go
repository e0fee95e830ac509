package api

import (
	"sync"
	"time"
)

// MemorySessionStore is a thread-safe in-memory SessionStore.
// Sessions are lost on server restart.
type MemorySessionStore struct {
	mu   sync.RWMutex
	data map[string]SessionRecord
}

var _ SessionStore = (*MemorySessionStore)(nil)

// NewMemorySessionStore creates an in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{data: make(map[string]SessionRecord)}
}

func (s *MemorySessionStore) Get(token string) (SessionRecord, bool) {
	s.mu.RLock()
	rec, ok := s.data[token]
	s.mu.RUnlock()
	if !ok {
		return SessionRecord{}, false
	}
	if time.Now().After(rec.ExpiresAt) {
		s.Delete(token)
		return SessionRecord{}, false
	}
	return rec, true
}

func (s *MemorySessionStore) Put(token string, rec SessionRecord) {
	s.mu.Lock()
	s.data[token] = rec
	s.mu.Unlock()
}

func (s *MemorySessionStore) Delete(token string) {
	s.mu.Lock()
	delete(s.data, token)
	s.mu.Unlock()
}

func (s *MemorySessionStore) Sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for token, rec := range s.data {
		if now.After(rec.ExpiresAt) {
			delete(s.data, token)
		}
	}
}
