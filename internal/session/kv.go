package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// KV is the persistence contract of the session store. Implementations must
// be drop-in replaceable: the in-memory store carries identical semantics to
// the Redis one for degraded-mode operation.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, pattern string) ([]string, error)
}

// RedisKV implements KV on a Redis client.
type RedisKV struct {
	client *redis.Client
}

// NewRedisKV builds a Redis-backed KV.
func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

func (r *RedisKV) Set(ctx context.Context, key, value string) error {
	return r.client.Set(ctx, key, value, 0).Err()
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}

func (r *RedisKV) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}

// Ping checks connectivity.
func (r *RedisKV) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return r.client.Ping(ctx).Err()
}

// MemoryKV implements KV in process memory.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]string
}

// NewMemoryKV initializes an empty in-memory KV.
func NewMemoryKV() *MemoryKV {
	return &MemoryKV{data: make(map[string]string)}
}

func (m *MemoryKV) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *MemoryKV) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *MemoryKV) Keys(_ context.Context, pattern string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var keys []string
	for k := range m.data {
		if matchPattern(pattern, k) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// matchPattern supports the single trailing-or-leading * glob the store
// actually uses ("session:*", "profile:*").
func matchPattern(pattern, key string) bool {
	switch {
	case pattern == "*" || pattern == key:
		return true
	case strings.HasSuffix(pattern, "*"):
		return strings.HasPrefix(key, strings.TrimSuffix(pattern, "*"))
	case strings.HasPrefix(pattern, "*"):
		return strings.HasSuffix(key, strings.TrimPrefix(pattern, "*"))
	default:
		return false
	}
}

// FallbackKV wraps a primary KV and degrades to an in-memory KV for the
// remainder of the process lifetime after the first primary failure.
type FallbackKV struct {
	primary KV
	memory  *MemoryKV
	logger  zerolog.Logger

	mu       sync.Mutex
	degraded bool

	// OnDegrade is invoked once when the store flips to memory.
	OnDegrade func()
}

// NewFallbackKV wraps primary with an in-memory fallback.
func NewFallbackKV(primary KV, logger zerolog.Logger) *FallbackKV {
	return &FallbackKV{
		primary: primary,
		memory:  NewMemoryKV(),
		logger:  logger.With().Str("component", "session.kv").Logger(),
	}
}

// Degraded reports whether the store has flipped to memory.
func (f *FallbackKV) Degraded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.degraded
}

func (f *FallbackKV) degrade(err error) {
	f.mu.Lock()
	already := f.degraded
	f.degraded = true
	f.mu.Unlock()
	if already {
		return
	}
	f.logger.Error().Err(err).Msg("session store unreachable, falling back to memory for process lifetime")
	if f.OnDegrade != nil {
		f.OnDegrade()
	}
}

func (f *FallbackKV) backend() KV {
	if f.Degraded() {
		return f.memory
	}
	return f.primary
}

func (f *FallbackKV) Get(ctx context.Context, key string) (string, bool, error) {
	v, ok, err := f.backend().Get(ctx, key)
	if err != nil && !f.Degraded() {
		f.degrade(err)
		return f.memory.Get(ctx, key)
	}
	return v, ok, err
}

func (f *FallbackKV) Set(ctx context.Context, key, value string) error {
	err := f.backend().Set(ctx, key, value)
	if err != nil && !f.Degraded() {
		f.degrade(err)
		return f.memory.Set(ctx, key, value)
	}
	return err
}

func (f *FallbackKV) Delete(ctx context.Context, key string) error {
	err := f.backend().Delete(ctx, key)
	if err != nil && !f.Degraded() {
		f.degrade(err)
		return f.memory.Delete(ctx, key)
	}
	return err
}

func (f *FallbackKV) Keys(ctx context.Context, pattern string) ([]string, error) {
	keys, err := f.backend().Keys(ctx, pattern)
	if err != nil && !f.Degraded() {
		f.degrade(err)
		return f.memory.Keys(ctx, pattern)
	}
	return keys, err
}
