package places

import (
	"context"
	"sync"
	"time"

	"github.com/samirrijal/placesbridge/internal/core/ports"
)

// MemoryStore is an in-process ports.CacheService with the same TTL rules as
// Valkey: ttlSeconds <= 0 keeps a key until deleted, expired keys read as a miss.
// It backs the engine when no Valkey address is configured.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]memoryEntry
	now  func() time.Time
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time // zero = no expiry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]memoryEntry), now: time.Now}
}

func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ports.ErrCacheMiss
	}
	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		m.mu.Lock()
		// Re-check: the key may have been rewritten since the read.
		if cur, ok := m.data[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(m.data, key)
		}
		m.mu.Unlock()
		return nil, ports.ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttlSeconds int) error {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttlSeconds > 0 {
		e.expiresAt = m.now().Add(time.Duration(ttlSeconds) * time.Second)
	}
	m.mu.Lock()
	m.data[key] = e
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}
