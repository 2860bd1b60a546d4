package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store. Entries are kept in encoded form so a
// caller mutating a returned entry cannot affect the cache.
type Memory struct {
	mu      sync.RWMutex
	entries map[Key][]byte
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[Key][]byte)}
}

func (m *Memory) Get(_ context.Context, key Key) (*Entry, error) {
	m.mu.RLock()
	data, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return UnmarshalEntry(data)
}

func (m *Memory) Put(_ context.Context, key Key, e *Entry) error {
	data, err := MarshalEntry(e)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[key] = data
	m.mu.Unlock()
	return nil
}

func (m *Memory) Len(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

func (m *Memory) Close() error {
	return nil
}
