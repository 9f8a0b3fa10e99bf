package engine

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
)

// Completion cache: LLM responses keyed by backend + prompt. L1 lives in
// memory and is bounded by maxEntries; the optional Redis L2 survives
// restarts, so re-running a channel over unchanged comments is free.
var completionCache *tieredCache

var (
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
)

type cacheEntry struct {
	data      string
	expiresAt time.Time
}

// memTier is the bounded in-process tier.
type memTier struct {
	mu         sync.Mutex
	entries    map[string]cacheEntry
	maxEntries int
}

func (m *memTier) get(key string, now time.Time) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return "", false
	}
	if !now.Before(e.expiresAt) {
		delete(m.entries, key)
		return "", false
	}
	return e.data, true
}

func (m *memTier) put(key string, e cacheEntry, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.entries[key]; !exists && m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		m.evictLocked(now)
	}
	m.entries[key] = e
}

// evictLocked drops expired entries, then the soonest-expiring ones (the
// oldest, since every entry gets the same TTL) until there is room for one more.
func (m *memTier) evictLocked(now time.Time) {
	m.sweepLocked(now)
	for len(m.entries) >= m.maxEntries {
		var victim string
		var soonest time.Time
		for k, e := range m.entries {
			if victim == "" || e.expiresAt.Before(soonest) {
				victim, soonest = k, e.expiresAt
			}
		}
		delete(m.entries, victim)
	}
}

func (m *memTier) sweepLocked(now time.Time) {
	for k, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, k)
		}
	}
}

func (m *memTier) sweep(now time.Time) {
	m.mu.Lock()
	m.sweepLocked(now)
	m.mu.Unlock()
}

func (m *memTier) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// tieredCache combines the memory tier with an optional Redis client.
type tieredCache struct {
	l1   *memTier
	rdb  *redis.Client // nil when Redis is not configured or unreachable
	ttl  time.Duration
	stop chan struct{}
}

// InitCache sets up the completion cache. redisURL may be empty to disable L2.
// Calling it again replaces the previous cache and stops its janitor.
func InitCache(redisURL string, ttl time.Duration, maxEntries int, cleanupInterval time.Duration) {
	c := &tieredCache{
		l1:   &memTier{entries: make(map[string]cacheEntry), maxEntries: maxEntries},
		ttl:  ttl,
		stop: make(chan struct{}),
	}
	if redisURL != "" {
		c.rdb = connectRedis(redisURL)
	}

	if completionCache != nil {
		close(completionCache.stop)
	}
	completionCache = c
	slog.Debug("cache: initialized", slog.Duration("ttl", ttl), slog.Bool("redis", c.rdb != nil), slog.Int("max_entries", maxEntries))

	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}
	go c.janitor(cleanupInterval)
}

func connectRedis(redisURL string) *redis.Client {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		slog.Warn("cache: invalid redis URL, L2 disabled", slog.Any("error", err))
		return nil
	}
	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		slog.Warn("cache: redis unreachable, L2 disabled", slog.Any("error", err))
		rdb.Close()
		return nil
	}
	slog.Info("cache: L2 redis connected", slog.String("addr", opts.Addr))
	return rdb
}

func (c *tieredCache) janitor(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case now := <-ticker.C:
			c.l1.sweep(now)
		}
	}
}

// CacheKey builds a deterministic cache key from parts.
func CacheKey(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return fmt.Sprintf("gap:%x", sum[:12])
}

// CacheGet tries L1, then L2. An L2 hit is copied into L1.
func CacheGet(ctx context.Context, key string) (string, bool) {
	c := completionCache
	if c == nil {
		cacheMisses.Add(1)
		return "", false
	}
	now := time.Now()
	if v, ok := c.l1.get(key, now); ok {
		cacheHits.Add(1)
		return v, true
	}
	if c.rdb != nil {
		if v, err := c.rdb.Get(ctx, key).Result(); err == nil {
			slog.Debug("cache: L2 hit", slog.String("key", key))
			c.l1.put(key, cacheEntry{data: v, expiresAt: now.Add(c.ttl)}, now)
			cacheHits.Add(1)
			return v, true
		}
	}
	cacheMisses.Add(1)
	return "", false
}

// CacheSet stores value in both tiers.
func CacheSet(ctx context.Context, key, value string) {
	c := completionCache
	if c == nil {
		return
	}
	now := time.Now()
	c.l1.put(key, cacheEntry{data: value, expiresAt: now.Add(c.ttl)}, now)
	if c.rdb != nil {
		if err := c.rdb.Set(ctx, key, value, c.ttl).Err(); err != nil {
			slog.Debug("cache: L2 set failed", slog.Any("error", err))
		}
	}
}

// CacheStats returns the completion cache hit/miss counters.
func CacheStats() (hits, misses int64) {
	return cacheHits.Load(), cacheMisses.Load()
}

// CachedBackend memoizes successful completions of the wrapped backend.
// Failed or empty completions are never cached.
type CachedBackend struct {
	Backend
}

// WithCompletionCache wraps b so identical prompts are served from the completion cache.
func WithCompletionCache(b Backend) Backend {
	if b == nil {
		return nil
	}
	return &CachedBackend{Backend: b}
}

func (c *CachedBackend) Complete(ctx context.Context, prompt string) (string, error) {
	key := CacheKey("completion", c.Backend.Name(), prompt)
	if hit, ok := CacheGet(ctx, key); ok {
		return hit, nil
	}
	resp, err := c.Backend.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(resp) != "" {
		CacheSet(ctx, key, resp)
	}
	return resp, nil
}
