package cache

import (
	"context"
	"sync"
)

// MockCache records Get/Set traffic for tests.
type MockCache struct {
	mu      sync.Mutex
	entries map[string]string

	Gets int
	Sets int
	Hits int
}

func NewMockCache() *MockCache {
	return &MockCache{entries: make(map[string]string)}
}

func (m *MockCache) Get(_ context.Context, key string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Gets++
	val, ok := m.entries[key]
	if ok {
		m.Hits++
	}
	return val, ok
}

func (m *MockCache) Set(_ context.Context, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sets++
	m.entries[key] = value
	return nil
}
