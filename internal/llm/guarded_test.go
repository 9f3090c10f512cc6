package llm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/claimcheck/internal/model"
)

type stubProvider struct {
	calls atomic.Int32
	err   error
}

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return &Response{Text: "{}", Model: "stub"}, nil
}

func breakerConfig() model.BreakerConfig {
	return model.BreakerConfig{
		Enabled:      true,
		MaxRequests:  1,
		Interval:     time.Minute,
		OpenTimeout:  time.Minute,
		MinRequests:  3,
		FailureRatio: 0.6,
	}
}

func TestGuarded_PassesThrough(t *testing.T) {
	stub := &stubProvider{}
	g := NewGuarded(stub, breakerConfig(), model.RateLimitingConfig{})

	resp, err := g.Complete(context.Background(), Request{Prompt: "p"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Text != "{}" || g.Name() != "stub" {
		t.Errorf("unexpected passthrough: %+v name=%s", resp, g.Name())
	}
	if g.State() != "closed" {
		t.Errorf("expected closed breaker, got %s", g.State())
	}
}

func TestGuarded_OpensAfterFailures(t *testing.T) {
	stub := &stubProvider{err: errors.New("upstream 503")}
	g := NewGuarded(stub, breakerConfig(), model.RateLimitingConfig{})

	for i := 0; i < 3; i++ {
		_, err := g.Complete(context.Background(), Request{})
		if !errors.Is(err, stub.err) {
			t.Fatalf("call %d: expected upstream error, got %v", i, err)
		}
	}

	_, err := g.Complete(context.Background(), Request{})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable once open, got %v", err)
	}
	if got := stub.calls.Load(); got != 3 {
		t.Errorf("open breaker must not call through, got %d calls", got)
	}
	if g.State() != "open" {
		t.Errorf("expected open breaker, got %s", g.State())
	}
}

func TestGuarded_BreakerDisabled(t *testing.T) {
	stub := &stubProvider{err: errors.New("boom")}
	g := NewGuarded(stub, model.BreakerConfig{}, model.RateLimitingConfig{})

	for i := 0; i < 5; i++ {
		_, _ = g.Complete(context.Background(), Request{})
	}
	if got := stub.calls.Load(); got != 5 {
		t.Errorf("expected every call to reach the provider, got %d", got)
	}
	if g.State() != "disabled" {
		t.Errorf("expected disabled, got %s", g.State())
	}
}

func TestGuarded_RateLimitHonoursContext(t *testing.T) {
	stub := &stubProvider{}
	g := NewGuarded(stub, model.BreakerConfig{}, model.RateLimitingConfig{RequestsPerSecond: 0.001, BurstSize: 1})

	if _, err := g.Complete(context.Background(), Request{}); err != nil {
		t.Fatalf("first call should use the burst token: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if _, err := g.Complete(ctx, Request{}); err == nil {
		t.Fatal("expected rate limiter error")
	}
	if got := stub.calls.Load(); got != 1 {
		t.Errorf("throttled call must not reach the provider, got %d calls", got)
	}
}
