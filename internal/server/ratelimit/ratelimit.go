// Package ratelimit enforces fixed-window request limits. The window
// counters live in Redis when an address is configured, or in process
// memory for single-node deployments.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	pkgerrors "judgebox/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// Store is the minimal counter surface the limiter needs.
type Store interface {
	SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Limiter implements a fixed window per key.
type Limiter struct {
	store        Store
	window       time.Duration
	max          int
	storeTimeout time.Duration
}

// New creates a limiter over the given store.
func New(store Store, window time.Duration, max int) *Limiter {
	return &Limiter{store: store, window: window, max: max, storeTimeout: 2 * time.Second}
}

// Allow admits the request or returns a TooManyRequests error. The first
// hit in a window claims the key with the window TTL; later hits bump the
// counter and restore a missing TTL.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	if l == nil || l.max <= 0 {
		return nil
	}
	if l.store == nil {
		return pkgerrors.New(pkgerrors.ServiceUnavailable).WithMessage("rate limit store is unavailable")
	}

	ctxStore, cancel := context.WithTimeout(ctx, l.storeTimeout)
	defer cancel()

	acquired, err := l.store.SetNX(ctxStore, key, 1, l.window)
	if err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.CacheError, "rate limit check failed")
	}
	var count int64
	if acquired {
		count = 1
	} else {
		count, err = l.store.Incr(ctxStore, key)
		if err != nil {
			return pkgerrors.Wrapf(err, pkgerrors.CacheError, "rate limit check failed")
		}
		ttl, ttlErr := l.store.TTL(ctxStore, key)
		if ttlErr == nil && ttl <= 0 {
			_, _ = l.store.Expire(ctxStore, key, l.window)
		}
	}
	if int(count) > l.max {
		return pkgerrors.New(pkgerrors.TooManyRequests).WithMessage(fmt.Sprintf("rate limit exceeded for %s", key))
	}
	return nil
}

// RedisStore adapts a go-redis client to the Store interface.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	return &RedisStore{client: client}, nil
}

func (s *RedisStore) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s *RedisStore) Incr(ctx context.Context, key string) (int64, error) {
	return s.client.Incr(ctx, key).Result()
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return s.client.TTL(ctx, key).Result()
}

func (s *RedisStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.Expire(ctx, key, ttl).Result()
}

// Close releases the redis connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

type memoryEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore is the in-process fallback when no Redis address is set.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry)}
}

func (s *MemoryStore) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[key]; ok && time.Now().Before(entry.expiresAt) {
		return false, nil
	}
	s.entries[key] = &memoryEntry{count: 1, expiresAt: time.Now().Add(ttl)}
	return true, nil
}

func (s *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		entry = &memoryEntry{expiresAt: time.Now().Add(time.Hour)}
		s.entries[key] = entry
	}
	entry.count++
	return entry.count, nil
}

func (s *MemoryStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return -2 * time.Second, nil
	}
	remaining := time.Until(entry.expiresAt)
	if remaining < 0 {
		return -2 * time.Second, nil
	}
	return remaining, nil
}

func (s *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return false, nil
	}
	entry.expiresAt = time.Now().Add(ttl)
	return true, nil
}
