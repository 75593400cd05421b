package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/shop-backend/internal/cache"
)

const stateKeyPrefix = "shop:oauth:state:"

// AuthState сохраняется между редиректом к провайдеру и возвратом на callback.
type AuthState struct {
	Provider  string    `json:"provider"`
	Nonce     string    `json:"nonce"`
	CreatedAt time.Time `json:"created_at"`
}

// StateStore хранит одноразовые state. Take возвращает nil, если state неизвестен или истёк.
type StateStore interface {
	Put(ctx context.Context, state string, value AuthState, ttl time.Duration) error
	Take(ctx context.Context, state string) (*AuthState, error)
}

// RedisStateStore хранит state в Redis, переживает рестарт и работает на нескольких инстансах.
type RedisStateStore struct {
	client *redis.Client
}

// NewRedisStateStore создаёт хранилище поверх клиента Redis.
func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client}
}

// Put сохраняет state с TTL.
func (s *RedisStateStore) Put(ctx context.Context, state string, value AuthState, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("oauth state: %w", err)
	}
	if err := s.client.Set(ctx, stateKeyPrefix+state, raw, ttl).Err(); err != nil {
		return fmt.Errorf("oauth state: redis set: %w", err)
	}
	return nil
}

// Take читает и удаляет state одной командой GETDEL.
func (s *RedisStateStore) Take(ctx context.Context, state string) (*AuthState, error) {
	raw, err := s.client.GetDel(ctx, stateKeyPrefix+state).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("oauth state: redis getdel: %w", err)
	}

	var out AuthState
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("oauth state: %w", err)
	}
	return &out, nil
}

// MemoryStateStore хранит state в памяти процесса. Подходит для одного инстанса.
type MemoryStateStore struct {
	mem *cache.Memory
}

// NewMemoryStateStore создаёт хранилище поверх in-memory кэша.
func NewMemoryStateStore(mem *cache.Memory) *MemoryStateStore {
	return &MemoryStateStore{mem: mem}
}

// Put сохраняет state с TTL.
func (s *MemoryStateStore) Put(_ context.Context, state string, value AuthState, ttl time.Duration) error {
	s.mem.Set(stateKeyPrefix+state, value, ttl)
	return nil
}

// Take возвращает state и удаляет его.
func (s *MemoryStateStore) Take(_ context.Context, state string) (*AuthState, error) {
	raw, ok := s.mem.Take(stateKeyPrefix + state)
	if !ok {
		return nil, nil
	}
	value, ok := raw.(AuthState)
	if !ok {
		return nil, fmt.Errorf("oauth state: неожиданный тип %T", raw)
	}
	return &value, nil
}
