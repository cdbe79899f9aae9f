// Package memflags provides an in-memory flags.Store for tests.
package memflags

import (
	"sync"

	"github.com/Muhametii00/calendar/flags"
)

// Store is a thread-safe in-memory flags.Store.
type Store struct {
	mu   sync.RWMutex
	data map[string]string
}

var _ flags.Store = (*Store)(nil)

// NewStore creates an empty in-memory Store.
func NewStore() *Store {
	return &Store{data: make(map[string]string)}
}

func (s *Store) Get(key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	return v, ok, nil
}

func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = value
	return nil
}

func (s *Store) Remove(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}
