package cache

import (
	"context"
	"sync"
	"time"

	"github.com/ignatzorin/shop-backend/internal/goroutine"
)

// Memory хранит значения в памяти процесса с TTL.
type Memory struct {
	mu    sync.RWMutex
	items map[string]*memoryEntry
	now   func() time.Time
}

type memoryEntry struct {
	data      interface{}
	expiresAt time.Time
}

// NewMemory создаёт кэш. Фоновая очистка работает до отмены ctx.
func NewMemory(ctx context.Context, cleanupEvery time.Duration) *Memory {
	m := &Memory{
		items: make(map[string]*memoryEntry),
		now:   time.Now,
	}

	if cleanupEvery > 0 {
		goroutine.SafeGo(func() { m.cleanup(ctx, cleanupEvery) })
	}

	return m
}

// Get возвращает значение, если оно есть и не истекло.
func (m *Memory) Get(key string) (interface{}, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, exists := m.items[key]
	if !exists || m.now().After(entry.expiresAt) {
		return nil, false
	}

	return entry.data, true
}

// Set сохраняет значение с TTL.
func (m *Memory) Set(key string, value interface{}, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.items[key] = &memoryEntry{
		data:      value,
		expiresAt: m.now().Add(ttl),
	}
}

// Take атомарно возвращает и удаляет значение. Второй вызов с тем же ключом ничего не найдёт.
func (m *Memory) Take(key string) (interface{}, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, exists := m.items[key]
	if !exists {
		return nil, false
	}
	delete(m.items, key)

	if m.now().After(entry.expiresAt) {
		return nil, false
	}
	return entry.data, true
}

// Len возвращает количество записей, включая ещё не вычищенные истёкшие.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

func (m *Memory) cleanup(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.evictExpired()
		}
	}
}

func (m *Memory) evictExpired() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for key, entry := range m.items {
		if now.After(entry.expiresAt) {
			delete(m.items, key)
		}
	}
}
