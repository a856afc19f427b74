// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memoryItem struct {
	value     []byte
	storedAt  time.Time
	expiresAt time.Time // zero means no expiry
}

// MemoryStore is an in-process Store. Readers share a read lock; writers are
// serialized. When maxEntries is positive, a Set on a full store first drops
// expired keys and then the oldest-stored key.
type MemoryStore struct {
	mu         sync.RWMutex
	items      map[string]memoryItem
	maxEntries int

	// now is the clock; tests replace it.
	now func() time.Time
}

// NewMemoryStore returns an empty store. maxEntries <= 0 means unbounded.
func NewMemoryStore(maxEntries int) *MemoryStore {
	return &MemoryStore{
		items:      make(map[string]memoryItem),
		maxEntries: maxEntries,
		now:        time.Now,
	}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	item, ok := m.items[key]
	m.mu.RUnlock()
	if !ok || m.expired(item) {
		return nil, false, nil
	}
	out := make([]byte, len(item.value))
	copy(out, item.value)
	return out, true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	now := m.now()
	item := memoryItem{value: append([]byte(nil), value...), storedAt: now}
	if ttl > 0 {
		item.expiresAt = now.Add(ttl)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.items[key]; !exists && m.maxEntries > 0 && len(m.items) >= m.maxEntries {
		m.evictLocked()
	}
	m.items[key] = item
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Close() error { return nil }

// Keys returns the live keys that start with prefix, sorted.
func (m *MemoryStore) Keys(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k, item := range m.items {
		if strings.HasPrefix(k, prefix) && !m.expired(item) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of stored keys, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *MemoryStore) expired(item memoryItem) bool {
	return !item.expiresAt.IsZero() && !m.now().Before(item.expiresAt)
}

func (m *MemoryStore) evictLocked() {
	for k, item := range m.items {
		if m.expired(item) {
			delete(m.items, k)
		}
	}
	if len(m.items) < m.maxEntries {
		return
	}
	var oldestKey string
	var oldest time.Time
	for k, item := range m.items {
		if oldestKey == "" || item.storedAt.Before(oldest) || (item.storedAt.Equal(oldest) && k < oldestKey) {
			oldestKey, oldest = k, item.storedAt
		}
	}
	delete(m.items, oldestKey)
}
