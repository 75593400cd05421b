package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMemory_SetGetExpire(t *testing.T) {
	m := NewMemory(context.Background(), 0)
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	m.Set("k", "v", time.Minute)
	v, ok := m.Get("k")
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	now = now.Add(2 * time.Minute)
	_, ok = m.Get("k")
	assert.False(t, ok)

	m.evictExpired()
	assert.Equal(t, 0, m.Len())
}

func TestMemory_TakeIsSingleUse(t *testing.T) {
	m := NewMemory(context.Background(), 0)
	m.Set("state", 42, time.Minute)

	var hits int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := m.Take("state"); ok {
				atomic.AddInt32(&hits, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), hits)
}
