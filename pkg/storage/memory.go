package storage

import (
	"context"
	"sync"
)

// Memory keeps slots in process memory. It backs LX_STORAGE_MODE=memory and tests.
type Memory struct {
	mu    sync.RWMutex
	slots map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{slots: make(map[string][]byte)}
}

func (m *Memory) Load(_ context.Context, key string) ([]byte, bool, error) {
	if m == nil {
		return nil, false, ErrNotInitialized
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	payload, ok := m.slots[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(payload))
	copy(out, payload)
	return out, true, nil
}

func (m *Memory) Save(_ context.Context, key string, payload []byte) error {
	if m == nil {
		return ErrNotInitialized
	}
	stored := make([]byte, len(payload))
	copy(stored, payload)
	m.mu.Lock()
	m.slots[key] = stored
	m.mu.Unlock()
	return nil
}

// MemoryFactory hands out one Memory per owner id, mirroring the scoping of
// the database and redis stores.
type MemoryFactory struct {
	mu     sync.Mutex
	owners map[string]*Memory
}

func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{owners: make(map[string]*Memory)}
}

// Scope returns the slots owned by id, creating them on first use.
func (f *MemoryFactory) Scope(id string) Slots {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.owners[id]
	if !ok {
		m = NewMemory()
		f.owners[id] = m
	}
	return m
}
