package auth

import "sync"

// SessionStore executes the two read-only lookups against the shared auth
// database. A nil row with a nil error means no match; a non-nil error means
// the store itself failed and the caller should surface it.
type SessionStore interface {
	LookupSession(token string) (*SessionRow, error)
	LookupUser(id string) (*User, error)
}

// InMemoryStore holds sessions and users in maps. Used in tests and by
// callers that want to validate against a preloaded snapshot.
type InMemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]SessionRow
	users    map[string]User
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[string]SessionRow),
		users:    make(map[string]User),
	}
}

func (s *InMemoryStore) PutSession(token string, row SessionRow) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[token] = row
}

func (s *InMemoryStore) PutUser(u User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *InMemoryStore) LookupSession(token string) (*SessionRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.sessions[token]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (s *InMemoryStore) LookupUser(id string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	applyDefaults(&u)
	return &u, nil
}
