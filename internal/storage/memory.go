package storage

import "sync"

// memStore implementa Store en memoria. Para tests y modo efímero.
type memStore struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemory crea un Store en memoria.
func NewMemory() Store {
	return &memStore{data: map[string]string{}}
}

func (s *memStore) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok
}

func (s *memStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *memStore) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}
