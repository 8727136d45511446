package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Conversations are bursty: a candidate sends a handful of messages while
// picking a slot, then goes quiet for hours. Buckets idle past this window
// are reclaimed by the janitor.
const (
	idleEviction  = 10 * time.Minute
	sweepInterval = time.Minute
)

// bucket tracks the remaining tokens for one key ("msg:<candidate_id>" or
// "ip:<addr>").
type bucket struct {
	tokens   float64
	lastSeen time.Time
}

// MemoryLimiter is a per-key token bucket held in process memory. Refill is
// continuous (rate tokens per second) up to the burst capacity; a janitor
// goroutine reclaims idle buckets so long-gone candidates don't pin memory.
type MemoryLimiter struct {
	rate  float64
	burst float64

	mu      sync.Mutex
	buckets map[string]*bucket

	stopOnce sync.Once
	done     chan struct{}
}

// NewMemoryLimiter creates a token bucket limiter with the given sustained
// rate (tokens per second per key) and burst capacity. Call Close to stop
// the janitor.
func NewMemoryLimiter(rate float64, burst int) *MemoryLimiter {
	m := &MemoryLimiter{
		rate:    rate,
		burst:   float64(burst),
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	go m.janitor()
	return m
}

// Allow consumes one token for key, reporting whether one was available.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	b, ok := m.buckets[key]
	if !ok {
		// A new key starts full, minus the token this request consumes.
		m.buckets[key] = &bucket{tokens: m.burst - 1, lastSeen: now}
		return true, nil
	}

	b.tokens += now.Sub(b.lastSeen).Seconds() * m.rate
	if b.tokens > m.burst {
		b.tokens = m.burst
	}
	b.lastSeen = now

	if b.tokens < 1 {
		return false, nil
	}
	b.tokens--
	return true, nil
}

// Close stops the janitor. Safe to call more than once.
func (m *MemoryLimiter) Close() error {
	m.stopOnce.Do(func() { close(m.done) })
	return nil
}

func (m *MemoryLimiter) janitor() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep drops buckets idle past the eviction window.
func (m *MemoryLimiter) sweep() {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-idleEviction)
	for key, b := range m.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
}
