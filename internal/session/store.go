package session

import (
	"crypto/sha256"
	"crypto/subtle"
	"sync"
	"time"
)

// maxSuperseded bounds how many rotated tokens of one session are still
// honoured from browser cookies. A week of half-hourly refreshes fits.
const maxSuperseded = 512

// Match classifies a browser cookie value against the stored session.
type Match int

const (
	NoMatch Match = iota
	// MatchCurrent is the token the store holds now.
	MatchCurrent
	// MatchSuperseded is an earlier token of the same live session, replaced
	// by a refresh since the browser last saw it.
	MatchSuperseded
)

// Store holds the current session token for the HTTP layer.
// Only the auth context writes to it.
type Store interface {
	Set(token string, ttl time.Duration)
	Get() (string, bool)
	Clear()
	Match(value string) Match
}

type MemoryStore struct {
	mu         sync.RWMutex
	token      string
	expiresAt  time.Time
	superseded [][sha256.Size]byte
	now        func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// NewMemoryStoreWithClock is used by tests that need to move time.
func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{now: now}
}

// Set stores token. Replacing a live token keeps the old one as superseded;
// setting into an empty or lapsed store starts a new session.
func (s *MemoryStore) Set(token string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case !s.liveLocked():
		s.superseded = nil
	case s.token != token:
		s.superseded = append(s.superseded, sha256.Sum256([]byte(s.token)))
		if len(s.superseded) > maxSuperseded {
			s.superseded = s.superseded[len(s.superseded)-maxSuperseded:]
		}
	}

	s.token = token
	s.expiresAt = s.now().Add(ttl)
}

func (s *MemoryStore) Get() (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.liveLocked() {
		return "", false
	}

	return s.token, true
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = ""
	s.expiresAt = time.Time{}
	s.superseded = nil
}

// Match compares value with the live session in constant time. An empty or
// lapsed store matches nothing.
func (s *MemoryStore) Match(value string) Match {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if value == "" || !s.liveLocked() {
		return NoMatch
	}

	if subtle.ConstantTimeCompare([]byte(value), []byte(s.token)) == 1 {
		return MatchCurrent
	}

	digest := sha256.Sum256([]byte(value))
	found := 0
	for i := range s.superseded {
		found |= subtle.ConstantTimeCompare(digest[:], s.superseded[i][:])
	}
	if found == 1 {
		return MatchSuperseded
	}

	return NoMatch
}

// ExpiresAt reports when the stored token lapses. Zero when empty.
func (s *MemoryStore) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.expiresAt
}

func (s *MemoryStore) liveLocked() bool {
	return s.token != "" && s.now().Before(s.expiresAt)
}
