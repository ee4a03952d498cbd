package ratelimit

import (
	"sync"
	"testing"
	"time"
)

func TestLimiterAdmitsUpToLimit(t *testing.T) {
	current := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := New(time.Minute, 5)
	limiter.now = func() time.Time { return current }

	admitted := 0
	var rejected Decision
	for i := 0; i < 6; i++ {
		current = current.Add(100 * time.Millisecond)
		decision := limiter.Allow("client-a")
		if decision.Allowed {
			admitted++
		} else {
			rejected = decision
		}
	}

	if admitted != 5 {
		t.Fatalf("expected 5 admitted, got %d", admitted)
	}
	if rejected.RetryAfter <= 0 {
		t.Fatalf("expected a positive retry-after hint, got %s", rejected.RetryAfter)
	}
}

func TestLimiterAdmitsAfterWindowPasses(t *testing.T) {
	current := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := New(time.Minute, 5)
	limiter.now = func() time.Time { return current }

	for i := 0; i < 5; i++ {
		if d := limiter.Allow("client-a"); !d.Allowed {
			t.Fatalf("request %d unexpectedly rejected", i)
		}
	}
	if d := limiter.Allow("client-a"); d.Allowed {
		t.Fatal("sixth request in window should be rejected")
	}

	current = current.Add(61 * time.Second)
	if d := limiter.Allow("client-a"); !d.Allowed {
		t.Fatal("request after window passed should be admitted")
	}
}

func TestLimiterIsolatesClients(t *testing.T) {
	limiter := New(time.Minute, 1)

	if d := limiter.Allow("client-a"); !d.Allowed {
		t.Fatal("first request for client-a should be admitted")
	}
	if d := limiter.Allow("client-b"); !d.Allowed {
		t.Fatal("first request for client-b should be admitted")
	}
	if d := limiter.Allow("client-a"); d.Allowed {
		t.Fatal("second request for client-a should be rejected")
	}
}

func TestLimiterSerializesConcurrentAttempts(t *testing.T) {
	limiter := New(time.Minute, 5)

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if d := limiter.Allow("client-a"); d.Allowed {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if admitted != 5 {
		t.Fatalf("expected exactly 5 admitted under contention, got %d", admitted)
	}
}

func TestLimiterEvictsIdleClients(t *testing.T) {
	current := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := New(time.Minute, 5)
	limiter.now = func() time.Time { return current }

	limiter.Allow("ip:10.0.0.1")
	limiter.Allow("ip:10.0.0.2")

	current = current.Add(2 * time.Minute)
	limiter.Allow("ip:10.0.0.3")

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	if _, ok := limiter.clients["ip:10.0.0.1"]; ok {
		t.Fatal("expired client key should have been evicted")
	}
	if _, ok := limiter.clients["ip:10.0.0.2"]; ok {
		t.Fatal("expired client key should have been evicted")
	}
	if len(limiter.clients) != 1 {
		t.Fatalf("expected only the active key to remain, got %d", len(limiter.clients))
	}
}

func TestLimiterForget(t *testing.T) {
	limiter := New(time.Minute, 1)

	limiter.Allow("client-a")
	if d := limiter.Allow("client-a"); d.Allowed {
		t.Fatal("expected rejection before Forget")
	}

	limiter.Forget("client-a")
	if d := limiter.Allow("client-a"); !d.Allowed {
		t.Fatal("expected admission after Forget")
	}
}
