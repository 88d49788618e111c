// internal/cache/memory.go
package cache

import (
	"context"
	"sort"
	"sync"
)

// Store persists artifacts by job key.
type Store interface {
	Get(ctx context.Context, key string) (*Artifact, error)
	Put(ctx context.Context, a *Artifact) error
	Delete(ctx context.Context, key string) error
	List(ctx context.Context) ([]Meta, error)
}

// MemoryStore keeps artifacts in process.
type MemoryStore struct {
	mu        sync.RWMutex
	artifacts map[string]*Artifact
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{artifacts: make(map[string]*Artifact)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) (*Artifact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.artifacts[key]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) Put(ctx context.Context, a *Artifact) error {
	cp := *a
	cp.Meta = a.meta()
	s.mu.Lock()
	s.artifacts[a.Key] = &cp
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.artifacts, key)
	s.mu.Unlock()
	return nil
}

// List returns metadata sorted by key.
func (s *MemoryStore) List(ctx context.Context) ([]Meta, error) {
	s.mu.RLock()
	out := make([]Meta, 0, len(s.artifacts))
	for _, a := range s.artifacts {
		out = append(out, a.Meta)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
