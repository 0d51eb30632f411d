package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is the in-process cache used when no Redis is configured and in
// tests. Expired entries are dropped lazily on read and by Sweep.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry

	// now is replaceable in tests.
	now func() time.Time
}

type memoryEntry struct {
	val       []byte
	expiresAt time.Time
}

func NewMemory() *Memory {
	return &Memory{
		entries: map[string]memoryEntry{},
		now:     time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	if m == nil {
		return nil, false, nil
	}
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if m.now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.entries, key)
		m.mu.Unlock()
		return nil, false, nil
	}
	return entry.val, true, nil
}

func (m *Memory) Set(_ context.Context, key string, val []byte, ttl time.Duration) error {
	if m == nil || ttl <= 0 {
		return nil
	}
	m.mu.Lock()
	m.entries[key] = memoryEntry{val: val, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

// Sweep removes expired entries and returns how many were dropped.
func (m *Memory) Sweep() int {
	if m == nil {
		return 0
	}
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	dropped := 0
	for key, entry := range m.entries {
		if now.After(entry.expiresAt) {
			delete(m.entries, key)
			dropped++
		}
	}
	return dropped
}

// SetNow overrides the clock; tests only.
func (m *Memory) SetNow(fn func() time.Time) {
	if fn != nil {
		m.now = fn
	}
}
