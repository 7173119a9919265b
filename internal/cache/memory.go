package cache

import (
	"context"
	"sync"
)

// MemoryCache keeps entries in process memory. Entries are never evicted so
// a stale value stays available when a refresh fails.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewMemoryCache creates an empty in-memory cache
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]Entry),
	}
}

// Get returns the entry stored under key
func (m *MemoryCache) Get(_ context.Context, key string) (*Entry, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	return &entry, true, nil
}

// Set stores entry under key, replacing any previous one
func (m *MemoryCache) Set(_ context.Context, key string, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = entry
	return nil
}

// Len returns the number of cached keys; the health endpoint reports it
func (m *MemoryCache) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.entries)
}
