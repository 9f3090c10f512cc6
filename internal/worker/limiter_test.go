package worker

import (
	"context"
	"testing"
	"time"
)

// proceeds reports whether key gets a token without a real wait
func proceeds(l *Limiter, key string) bool {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	return l.Wait(ctx, key) == nil
}

func TestLimiter_New(t *testing.T) {
	limiter := NewLimiter(10, 5)
	if limiter.defaultBurst != 5 {
		t.Errorf("expected burst 5, got %d", limiter.defaultBurst)
	}

	l2 := NewLimiter(10, -1)
	if l2.defaultBurst != 5 {
		t.Errorf("expected default burst 5 for negative input, got %d", l2.defaultBurst)
	}
}

func TestLimiter_Unlimited(t *testing.T) {
	limiter := NewLimiter(0, 1)
	for i := 0; i < 100; i++ {
		if !proceeds(limiter, "tata-medicare") {
			t.Fatalf("request %d throttled by unlimited limiter", i)
		}
	}
}

func TestLimiter_Wait(t *testing.T) {
	limiter := NewLimiter(100, 1)
	ctx := context.Background()

	if err := limiter.Wait(ctx, "tata-medicare"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
	if err := limiter.Wait(ctx, "star-comprehensive"); err != nil {
		t.Errorf("wait failed: %v", err)
	}
}

func TestLimiter_PerKey(t *testing.T) {
	limiter := NewLimiter(1, 1)

	if !proceeds(limiter, "doc-1") {
		t.Error("first request should pass")
	}
	if proceeds(limiter, "DOC-1 ") {
		t.Error("same key after normalization should be throttled")
	}
	if !proceeds(limiter, "doc-2") {
		t.Error("other key should pass")
	}
}

func TestLimiter_SetKeyRate(t *testing.T) {
	limiter := NewLimiter(10, 10)
	limiter.SetKeyRate("Slow-Policy", 0.1, 1)

	if !proceeds(limiter, "slow-policy") {
		t.Error("first request should pass")
	}
	if proceeds(limiter, "slow-policy") {
		t.Error("second request should be throttled")
	}
	if !proceeds(limiter, "fast-policy") {
		t.Error("other key should pass")
	}
}

func TestLimiter_SetKeyRateUnlimited(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	limiter.SetKeyRate("bulk", 0, 1)

	for i := 0; i < 10; i++ {
		if !proceeds(limiter, "bulk") {
			t.Fatalf("request %d throttled by an unlimited override", i)
		}
	}
}

func TestLimiter_WaitCancelled(t *testing.T) {
	limiter := NewLimiter(0.01, 1)
	_ = limiter.Wait(context.Background(), "doc-1")

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := limiter.Wait(ctx, "doc-1"); err == nil {
		t.Error("expected error when the context expires before a token")
	}
}
