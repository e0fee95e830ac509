package api

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

const (
	tokenByteLen = 32
	tokenHexLen  = tokenByteLen * 2

	sessionSweepInterval = 5 * time.Minute
)

// SessionRecord is the server-side state for one session token. The token
// itself is the lookup key and is never stored inside the record.
type SessionRecord struct {
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionStore abstracts session record storage so that sessions can live
// in-memory (default), in BBolt, or in Redis.
type SessionStore interface {
	// Get retrieves a session by token. Returns false if the session does
	// not exist or has expired; implementations may lazily delete expired
	// records.
	Get(token string) (SessionRecord, bool)
	// Put creates or replaces the session for the given token.
	Put(token string, rec SessionRecord)
	// Delete removes a session by token. Absent tokens are a no-op.
	Delete(token string)
	// Sweep removes records that expired before now.
	Sweep(now time.Time)
}

// sessionService owns the session table: it is the only component that mints
// tokens, the source of truth for "is this caller authenticated", and the
// owner of the background expiry sweep.
type sessionService struct {
	store SessionStore

	stopOnce sync.Once
	stopCh   chan struct{}
}

func newSessionService(store SessionStore) *sessionService {
	s := &sessionService{
		store:  store,
		stopCh: make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Create mints a fresh high-entropy token, registers it with the given
// lifetime, and returns it. Tokens are never reused.
func (s *sessionService) Create(maxAge time.Duration) (string, error) {
	buf := make([]byte, tokenByteLen)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating session token: %w", err)
	}
	token := hex.EncodeToString(buf)

	now := time.Now()
	s.store.Put(token, SessionRecord{
		ExpiresAt: now.Add(maxAge),
		CreatedAt: now,
	})
	return token, nil
}

// IsValid reports whether the token is syntactically well-formed, present,
// and unexpired. The shape check runs before any store lookup so forged
// tokens fail uniformly without touching the backend.
func (s *sessionService) IsValid(token string) bool {
	if !validTokenShape(token) {
		return false
	}
	_, ok := s.store.Get(token)
	return ok
}

// Remove deletes the session for the token. Idempotent; unknown or malformed
// tokens are a no-op.
func (s *sessionService) Remove(token string) {
	if !validTokenShape(token) {
		return
	}
	s.store.Delete(token)
}

func (s *sessionService) sweepLoop() {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.store.Sweep(time.Now())
		}
	}
}

// Close stops the background sweep goroutine.
func (s *sessionService) Close() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// validTokenShape reports whether the string is exactly tokenHexLen lowercase
// hex characters, the canonical shape of every minted token.
func validTokenShape(token string) bool {
	if len(token) != tokenHexLen {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
