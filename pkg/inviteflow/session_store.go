package inviteflow

import "sync"

// Storage keys. These names are part of the persisted contract: an existing
// session written by one page must be readable by the next.
const (
	KeyAccessToken        = "access_token"
	KeyUser               = "user"
	KeyPendingInviteToken = "pending_email_invite_token"
)

// SessionStore abstracts the client-local key/value storage that survives a
// full-page redirect to the OAuth provider and back.
type SessionStore interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// MemoryStore is a concurrency-safe in-process SessionStore.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]string)}
}

func (s *MemoryStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.data[key]
	return value, ok
}

func (s *MemoryStore) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
}
