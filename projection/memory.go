package projection

import (
	"context"
	"maps"
	"sync"
)

// Memory keeps projections in a map. Updates of the same id are serialized,
// different ids proceed in parallel.
type Memory[P any] struct {
	keyedLocks
	mu     sync.RWMutex
	values map[string]P
}

func NewMemory[P any]() *Memory[P] {
	return &Memory[P]{values: make(map[string]P)}
}

func (m *Memory[P]) FetchAndSave(ctx context.Context, id string, update UpdateFunc[P]) error {
	unlock := m.lock(id)
	defer unlock()

	current, _ := m.Get(id)
	next, err := update(ctx, current)
	if err != nil {
		return err
	}

	m.Put(id, next)
	return nil
}

func (m *Memory[P]) Get(id string) (P, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, found := m.values[id]
	return value, found
}

func (m *Memory[P]) Put(id string, projection P) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[id] = projection
}

func (m *Memory[P]) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, id)
}

// All returns a copy of every stored projection keyed by id
func (m *Memory[P]) All() map[string]P {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return maps.Clone(m.values)
}

func (m *Memory[P]) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}
