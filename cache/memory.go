package cache

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	value   string
	expires time.Time
}

// MemoryKV is an in-process KV with lazy TTL expiry. It backs tests
// and server runs without a Redis address configured.
type MemoryKV struct {
	mu     sync.Mutex
	items  map[string]memoryEntry
	hashes map[string]map[string]string
	now    func() time.Time
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{
		items:  make(map[string]memoryEntry),
		hashes: make(map[string]map[string]string),
		now:    time.Now,
	}
}

func (m *MemoryKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var expires time.Time
	if ttl > 0 {
		expires = m.now().Add(ttl)
	}
	m.items[key] = memoryEntry{value: value, expires: expires}
	return nil
}

func (m *MemoryKV) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.items[key]
	if !ok {
		return "", false, nil
	}
	if !entry.expires.IsZero() && m.now().After(entry.expires) {
		delete(m.items, key)
		return "", false, nil
	}
	return entry.value, true, nil
}

func (m *MemoryKV) Del(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.items, key)
	return nil
}

func (m *MemoryKV) HSet(ctx context.Context, key, field, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		h = make(map[string]string)
		m.hashes[key] = h
	}
	h[field] = value
	return nil
}

func (m *MemoryKV) HDel(ctx context.Context, key, field string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.hashes[key]; ok {
		delete(h, field)
	}
	return nil
}

func (m *MemoryKV) HExists(ctx context.Context, key, field string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashes[key]
	if !ok {
		return false, nil
	}
	_, exists := h[field]
	return exists, nil
}
