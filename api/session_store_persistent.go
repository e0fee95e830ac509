package api

import (
	"encoding/json"
	"time"

	"github.com/keygate/storage"
)

const sessionBucket = "sessions"

// PersistentSessionStore stores sessions in a storage.Repository so they
// survive server restarts (BBolt) or are shared across instances (Redis).
// Tokens are 256-bit random values, so the token is used directly as the
// record key.
type PersistentSessionStore struct {
	repo storage.Repository
}

var _ SessionStore = (*PersistentSessionStore)(nil)

// NewPersistentSessionStore creates a session store backed by the given
// repository.
func NewPersistentSessionStore(repo storage.Repository) *PersistentSessionStore {
	return &PersistentSessionStore{repo: repo}
}

func (s *PersistentSessionStore) Get(token string) (SessionRecord, bool) {
	data, err := s.repo.Get(sessionBucket, token)
	if err != nil {
		return SessionRecord{}, false
	}
	var rec SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		// Corrupt entry — remove it.
		_ = s.repo.Delete(sessionBucket, token)
		return SessionRecord{}, false
	}
	if time.Now().After(rec.ExpiresAt) {
		_ = s.repo.Delete(sessionBucket, token)
		return SessionRecord{}, false
	}
	return rec, true
}

func (s *PersistentSessionStore) Put(token string, rec SessionRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		return
	}
	_ = s.repo.Put(sessionBucket, token, data)
}

func (s *PersistentSessionStore) Delete(token string) {
	_ = s.repo.Delete(sessionBucket, token)
}

func (s *PersistentSessionStore) Sweep(now time.Time) {
	tokens, err := s.repo.Keys(sessionBucket)
	if err != nil {
		return
	}
	for _, token := range tokens {
		data, err := s.repo.Get(sessionBucket, token)
		if err != nil {
			continue
		}
		var rec SessionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			_ = s.repo.Delete(sessionBucket, token)
			continue
		}
		if now.After(rec.ExpiresAt) {
			_ = s.repo.Delete(sessionBucket, token)
		}
	}
}
