package registry

import (
	"context"
	"sync"
)

// MemoryStore keeps the registry in process memory.
type MemoryStore struct {
	mu   sync.Mutex
	data Instances
	// SaveErr, when set, is returned by every Save.
	SaveErr error
}

func NewMemoryStore(initial Instances) *MemoryStore {
	return &MemoryStore{data: initial.Clone()}
}

func (s *MemoryStore) Load(context.Context) (Instances, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, in Instances) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.data = in.Clone()
	return nil
}

func (s *MemoryStore) Close() error { return nil }
