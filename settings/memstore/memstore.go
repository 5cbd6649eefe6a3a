// Package memstore is the in-memory settings driver for single-process use
// and tests.
package memstore

import (
	"context"
	"sync"

	"github.com/brainmate-ai/tutorchat/settings"
)

// Store keeps settings in a process-local map.
type Store struct {
	mu     sync.RWMutex
	values map[string]map[string]string
}

var _ settings.Store = (*Store)(nil)

func New() *Store {
	return &Store{values: make(map[string]map[string]string)}
}

func (s *Store) Get(ctx context.Context, studentID, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.values[studentID][key]
	return v, ok, nil
}

func (s *Store) Set(ctx context.Context, studentID, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.values[studentID] == nil {
		s.values[studentID] = make(map[string]string)
	}
	s.values[studentID][key] = value
	return nil
}

func (s *Store) Delete(ctx context.Context, studentID, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values[studentID], key)
	return nil
}

func (s *Store) Close() error { return nil }
