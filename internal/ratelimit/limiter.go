// Package ratelimit bounds per-user message rates at the gateway with
// token buckets.
package ratelimit

import (
	"strings"
	"sync"
	"time"
)

// maxKeys bounds the bucket map; inactive keys are pruned past it.
const maxKeys = 10000

// Config configures one limiter.
type Config struct {
	// PerSecond is the sustained rate; non-positive disables limiting.
	PerSecond float64 `yaml:"per_second" env:"STRAND_GATEWAY_RATE_PER_SECOND"`
	// Burst is the bucket capacity. Defaults to twice PerSecond.
	Burst int `yaml:"burst" env:"STRAND_GATEWAY_RATE_BURST"`
}

// Enabled reports whether this config limits anything.
func (c Config) Enabled() bool { return c.PerSecond > 0 }

type bucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   float64
	refillRate float64
	lastRefill time.Time
}

func newBucket(cfg Config) *bucket {
	capacity := float64(cfg.Burst)
	if capacity <= 0 {
		capacity = cfg.PerSecond * 2
	}
	return &bucket{
		tokens:     capacity,
		capacity:   capacity,
		refillRate: cfg.PerSecond,
		lastRefill: time.Now(),
	}
}

func (b *bucket) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}

// refill is called with the lock held.
func (b *bucket) refill() {
	now := time.Now()
	b.tokens += now.Sub(b.lastRefill).Seconds() * b.refillRate
	b.lastRefill = now
	if b.tokens > b.capacity {
		b.tokens = b.capacity
	}
}

func (b *bucket) waitTime() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	if b.tokens >= 1 {
		return 0
	}
	return time.Duration((1 - b.tokens) / b.refillRate * float64(time.Second))
}

func (b *bucket) fillRatio() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.refill()
	return b.tokens / b.capacity
}

// Limiter tracks one token bucket per key. Keys are typically user IDs;
// Key composes multi-part keys.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[string]*bucket
	cfg     Config
}

// NewLimiter builds a limiter. A disabled config admits everything.
func NewLimiter(cfg Config) *Limiter {
	return &Limiter{buckets: make(map[string]*bucket), cfg: cfg}
}

// Allow consumes one token for key, reporting whether the request may
// proceed.
func (l *Limiter) Allow(key string) bool {
	if !l.cfg.Enabled() {
		return true
	}
	return l.bucket(key).allow()
}

// WaitTime reports how long key must wait before the next request would
// be admitted.
func (l *Limiter) WaitTime(key string) time.Duration {
	if !l.cfg.Enabled() {
		return 0
	}
	return l.bucket(key).waitTime()
}

// Reset forgets the bucket for key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

func (l *Limiter) bucket(key string) *bucket {
	l.mu.RLock()
	b, ok := l.buckets[key]
	l.mu.RUnlock()
	if ok {
		return b
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok = l.buckets[key]; ok {
		return b
	}
	if len(l.buckets) >= maxKeys {
		l.prune()
	}
	b = newBucket(l.cfg)
	l.buckets[key] = b
	return b
}

// prune drops near-full buckets, which belong to keys that have gone
// quiet. Called with the write lock held.
func (l *Limiter) prune() {
	for key, b := range l.buckets {
		if b.fillRatio() >= 0.9 {
			delete(l.buckets, key)
		}
	}
}

// Key joins parts into a colon-separated limiter key.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
