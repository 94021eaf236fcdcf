package cache

import (
	"context"
	"sync"
	"time"
)

// Memory implements Store with time-based expiration in process memory.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry

	stopCh   chan struct{}
	stopOnce sync.Once
}

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// NewMemory creates an in-process TTL store and starts its cleanup goroutine.
func NewMemory() *Memory {
	m := &Memory{
		entries: make(map[string]*memoryEntry),
		stopCh:  make(chan struct{}),
	}
	go m.cleanup()
	return m
}

// Get retrieves a value if present and not expired.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.entries[key]
	if !exists {
		return nil, false
	}
	if time.Now().After(entry.expires) {
		// Expired entries are swept by the cleanup loop; avoid a write
		// lock upgrade here.
		return nil, false
	}
	return entry.value, true
}

// Set stores a value with the given TTL.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = &memoryEntry{
		value:   value,
		expires: time.Now().Add(ttl),
	}
}

// Clear removes all entries.
func (m *Memory) Clear(_ context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*memoryEntry)
}

// Stop shuts down the cleanup goroutine.
func (m *Memory) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Memory) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.removeExpired()
		}
	}
}

func (m *Memory) removeExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for key, entry := range m.entries {
		if now.After(entry.expires) {
			delete(m.entries, key)
		}
	}
}
