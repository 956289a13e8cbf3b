package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store records provider message ids that have already been processed.
type Store interface {
	// Claim marks key as seen. It reports false when key was claimed before and
	// has not expired.
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)
	// Release forgets key so a failed delivery can be retried by the provider.
	Release(ctx context.Context, key string) error
}

const keyPrefix = "intake:seen:"

// RedisStore claims keys with SET NX EX.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore builds a store over client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, keyPrefix+key, 1, ttl).Result()
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	return s.client.Del(ctx, keyPrefix+key).Err()
}

// sweepEvery is how many claims pass between scans for expired keys.
const sweepEvery = 256

// MemoryStore is the single-process fallback. Expired keys are dropped by a sweep
// that runs every sweepEvery claims.
type MemoryStore struct {
	mu         sync.Mutex
	seen       map[string]time.Time
	now        func() time.Time
	claims     int
	sweepEvery int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{seen: make(map[string]time.Time), now: time.Now, sweepEvery: sweepEvery}
}

func (s *MemoryStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.claims++
	if s.claims >= s.sweepEvery {
		s.claims = 0
		s.sweep(now)
	}
	if expires, ok := s.seen[key]; ok && now.Before(expires) {
		return false, nil
	}
	s.seen[key] = now.Add(ttl)
	return true, nil
}

func (s *MemoryStore) sweep(now time.Time) {
	for key, expires := range s.seen {
		if !now.Before(expires) {
			delete(s.seen, key)
		}
	}
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.seen, key)
	return nil
}
