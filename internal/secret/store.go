package secret

import "sync"

// Store abstracts a credentials store keyed by remote endpoint.
// Implementations should be safe to call from multiple goroutines.
// The default is in-memory only; the OS keyring is strictly opt-in.
type Store interface {
	Get(host, user string) (pass string, found bool, err error)
	Set(host, user, pass string) error
	Delete(host, user string) error
}

type memoryStore struct {
	mu    sync.RWMutex
	items map[string]string
}

// NewMemoryStore returns a process-lifetime store; nothing is persisted.
func NewMemoryStore() Store {
	return &memoryStore{items: make(map[string]string)}
}

func (s *memoryStore) Get(host, user string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pass, ok := s.items[makeKey(host, user)]
	return pass, ok, nil
}

func (s *memoryStore) Set(host, user, pass string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[makeKey(host, user)] = pass
	return nil
}

func (s *memoryStore) Delete(host, user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, makeKey(host, user))
	return nil
}
