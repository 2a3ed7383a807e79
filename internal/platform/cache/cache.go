// Package cache wraps the Redis client the admin-broadcast admin-id cache
// and the supply/geocode caches need (spec.md §4.I, §5 "caches have
// explicit TTLs and invalidation hooks"). The teacher's go.mod already
// carries github.com/go-redis/redis/v8 but never wires it to an endpoint;
// this module is its first real consumer.
package cache

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"

	apperrors "github.com/Sebdysart/hustlexp-ai-backend-sub002/infrastructure/errors"
)

// Cache is a narrow string-keyed TTL cache, just wide enough for the admin
// id list and any future address/geocode caching need.
type Cache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Redis adapts a *redis.Client to Cache.
type Redis struct {
	client *redis.Client
}

// NewRedis constructs a Redis cache from a host:port address, a password
// and a database number.
func NewRedis(addr, password string, db int) *Redis {
	return &Redis{client: redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})}
}

func (r *Redis) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, apperrors.ExternalService("redis", err)
	}
	return val, true, nil
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return apperrors.ExternalService("redis", err)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return apperrors.ExternalService("redis", err)
	}
	return nil
}

var _ Cache = (*Redis)(nil)

// InMemory is a Cache backed by a single map with per-key expiry, used for
// local dev and tests instead of a live Redis instance.
type InMemory struct {
	entries map[string]inMemoryEntry
}

type inMemoryEntry struct {
	value   string
	expires time.Time
}

// NewInMemory constructs an empty InMemory cache.
func NewInMemory() *InMemory {
	return &InMemory{entries: make(map[string]inMemoryEntry)}
}

func (m *InMemory) Get(ctx context.Context, key string) (string, bool, error) {
	e, ok := m.entries[key]
	if !ok {
		return "", false, nil
	}
	if !e.expires.IsZero() && time.Now().After(e.expires) {
		delete(m.entries, key)
		return "", false, nil
	}
	return e.value, true, nil
}

func (m *InMemory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	m.entries[key] = inMemoryEntry{value: value, expires: expires}
	return nil
}

func (m *InMemory) Delete(ctx context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

var _ Cache = (*InMemory)(nil)
