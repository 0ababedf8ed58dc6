package task

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store. Data lives only as long as the value.
type MemoryStore struct {
	mu     sync.RWMutex
	owners map[string]map[string]Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{owners: make(map[string]map[string]Record)}
}

func (m *MemoryStore) List(_ context.Context, owner string) ([]Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	recs := m.owners[owner]
	out := make([]Task, 0, len(recs))
	for id, r := range recs {
		out = append(out, r.WithID(id))
	}
	return out, nil
}

func (m *MemoryStore) Insert(_ context.Context, owner string, r Record) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	recs, ok := m.owners[owner]
	if !ok {
		recs = make(map[string]Record)
		m.owners[owner] = recs
	}
	id := uuid.NewString()
	recs[id] = r
	return id, nil
}

func (m *MemoryStore) Delete(_ context.Context, owner, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	recs := m.owners[owner]
	if _, ok := recs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrRecordNotFound, id)
	}
	delete(recs, id)
	return nil
}
