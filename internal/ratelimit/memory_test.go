package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"
)

func closeLimiter(t *testing.T, m *MemoryLimiter) {
	t.Helper()
	if err := m.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
}

func TestMemoryLimiterBurstThenDeny(t *testing.T) {
	m := NewMemoryLimiter(10, 3) // 10 msg/s sustained, burst of 3
	defer closeLimiter(t, m)

	ctx := context.Background()
	key := "msg:5f1c7a7e-0000-0000-0000-000000000001"
	for i := 0; i < 3; i++ {
		ok, err := m.Allow(ctx, key)
		if err != nil {
			t.Fatalf("Allow error on message %d: %v", i, err)
		}
		if !ok {
			t.Fatalf("message %d should be within the burst", i)
		}
	}

	ok, err := m.Allow(ctx, key)
	if err != nil {
		t.Fatalf("Allow error: %v", err)
	}
	if ok {
		t.Fatal("fourth message should be denied once the burst is spent")
	}
}

func TestMemoryLimiterRefill(t *testing.T) {
	// 1000 tokens/s refills one per millisecond, so a short sleep after
	// exhausting the burst frees the candidate to message again.
	m := NewMemoryLimiter(1000, 2)
	defer closeLimiter(t, m)

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, _ = m.Allow(ctx, "msg:c1")
	}
	if ok, _ := m.Allow(ctx, "msg:c1"); ok {
		t.Fatal("should be denied immediately after the burst")
	}

	time.Sleep(5 * time.Millisecond)

	ok, err := m.Allow(ctx, "msg:c1")
	if err != nil {
		t.Fatalf("Allow error: %v", err)
	}
	if !ok {
		t.Fatal("expected a token back after the refill window")
	}
}

func TestMemoryLimiterCandidatesIndependent(t *testing.T) {
	m := NewMemoryLimiter(10, 1)
	defer closeLimiter(t, m)

	ctx := context.Background()
	if ok, _ := m.Allow(ctx, "msg:c1"); !ok {
		t.Fatal("first candidate's first message should pass")
	}
	if ok, _ := m.Allow(ctx, "msg:c1"); ok {
		t.Fatal("first candidate's second message should be denied")
	}

	// One noisy candidate must not throttle another.
	if ok, _ := m.Allow(ctx, "msg:c2"); !ok {
		t.Fatal("second candidate should be unaffected")
	}
}

func TestMemoryLimiterConcurrentSameKey(t *testing.T) {
	m := NewMemoryLimiter(100, 50)
	defer closeLimiter(t, m)

	ctx := context.Background()
	var wg sync.WaitGroup
	allowed := make([]int, 10)

	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				ok, err := m.Allow(ctx, "ip:203.0.113.9")
				if err != nil {
					t.Errorf("goroutine %d: Allow error: %v", idx, err)
					return
				}
				if ok {
					allowed[idx]++
				}
			}
		}(g)
	}
	wg.Wait()

	total := 0
	for _, c := range allowed {
		total += c
	}
	if total < 1 || total > 50 {
		t.Fatalf("100 concurrent requests against burst 50: got %d allowed", total)
	}
}

func TestMemoryLimiterSweepEvictsIdle(t *testing.T) {
	m := NewMemoryLimiter(10, 5)
	defer closeLimiter(t, m)

	ctx := context.Background()
	_, _ = m.Allow(ctx, "msg:gone")
	_, _ = m.Allow(ctx, "msg:here")

	m.mu.Lock()
	m.buckets["msg:gone"].lastSeen = time.Now().Add(-idleEviction - time.Minute)
	m.mu.Unlock()

	m.sweep()

	m.mu.Lock()
	_, gone := m.buckets["msg:gone"]
	_, here := m.buckets["msg:here"]
	m.mu.Unlock()

	if gone {
		t.Fatal("idle bucket should be evicted")
	}
	if !here {
		t.Fatal("active bucket should survive the sweep")
	}
}

func TestMemoryLimiterRefillCapsAtBurst(t *testing.T) {
	m := NewMemoryLimiter(1000, 3)
	defer closeLimiter(t, m)

	ctx := context.Background()
	_, _ = m.Allow(ctx, "msg:c1")

	// A long idle period must not accumulate more than the burst.
	m.mu.Lock()
	m.buckets["msg:c1"].lastSeen = time.Now().Add(-time.Hour)
	m.mu.Unlock()

	for i := 0; i < 3; i++ {
		if ok, _ := m.Allow(ctx, "msg:c1"); !ok {
			t.Fatalf("message %d after long idle should pass", i)
		}
	}
	if ok, _ := m.Allow(ctx, "msg:c1"); ok {
		t.Fatal("refill after idle must cap at the burst capacity")
	}
}

func TestMemoryLimiterCloseIdempotent(t *testing.T) {
	m := NewMemoryLimiter(10, 5)
	if err := m.Close(); err != nil {
		t.Fatalf("first Close error: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close error: %v", err)
	}
}

func TestNoopLimiterAlwaysAllows(t *testing.T) {
	var l NoopLimiter
	ctx := context.Background()
	for i := 0; i < 100; i++ {
		ok, err := l.Allow(ctx, "msg:anyone")
		if err != nil {
			t.Fatalf("NoopLimiter.Allow error: %v", err)
		}
		if !ok {
			t.Fatal("NoopLimiter must always allow")
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("NoopLimiter.Close error: %v", err)
	}
}
