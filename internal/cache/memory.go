package cache

import (
	"context"
	"sync"

	"receiptmaker/internal/receipt"
)

// MemoryStore keeps defaults in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	loaded  bool
	entries map[receipt.Kind]receipt.Section
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: map[receipt.Kind]receipt.Section{}}
}

func (m *MemoryStore) Get(_ context.Context, kind receipt.Kind) (receipt.Section, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.loaded {
		return nil, false, nil
	}
	return m.entries[kind], true, nil
}

func (m *MemoryStore) Fill(_ context.Context, defaults map[receipt.Kind]receipt.Section) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[receipt.Kind]receipt.Section, len(defaults))
	for k, s := range defaults {
		if s != nil {
			m.entries[k] = receipt.CloneSection(s)
		}
	}
	m.loaded = true
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = map[receipt.Kind]receipt.Section{}
	m.loaded = false
	return nil
}
