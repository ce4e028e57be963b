// Package session keeps per-visitor guestbook state keyed by an opaque cookie id.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"wedding-invites/internal/guestbook"

	"github.com/oklog/ulid/v2"
)

const CookieName = "guest_session"

var ErrInvalidID = errors.New("invalid session id")

// Store loads and saves guestbook sessions. Load returns a fresh session for an
// unknown id.
type Store interface {
	Load(ctx context.Context, id string) (*guestbook.Session, error)
	Save(ctx context.Context, id string, sess *guestbook.Session) error
}

// NewID returns a new session id.
func NewID() string {
	return ulid.Make().String()
}

// ValidID reports whether id looks like one returned by NewID.
func ValidID(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}

// MemoryStore keeps sessions in process. Entries expire ttl after their last
// save and expired entries are pruned on every save.
type MemoryStore struct {
	mu       sync.RWMutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	session guestbook.Session
	expires time.Time
}

// NewMemoryStore creates a store whose entries live for ttl. A ttl of zero or
// less keeps entries forever.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]memoryEntry),
	}
}

func (m *MemoryStore) Load(_ context.Context, id string) (*guestbook.Session, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.sessions[id]
	if !ok || m.expired(entry) {
		return &guestbook.Session{}, nil
	}
	sess := entry.session
	return &sess, nil
}

func (m *MemoryStore) Save(_ context.Context, id string, sess *guestbook.Session) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	if sess == nil {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	for key, entry := range m.sessions {
		if m.expired(entry) {
			delete(m.sessions, key)
		}
	}

	entry := memoryEntry{session: *sess}
	if m.ttl > 0 {
		entry.expires = m.now().Add(m.ttl)
	}
	m.sessions[id] = entry
	return nil
}

// Len returns the number of stored sessions, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *MemoryStore) expired(entry memoryEntry) bool {
	return !entry.expires.IsZero() && !m.now().Before(entry.expires)
}
