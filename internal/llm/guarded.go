package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/ppiankov/claimcheck/internal/logging"
	"github.com/ppiankov/claimcheck/internal/model"
)

// ErrUnavailable is returned while the breaker refuses calls
var ErrUnavailable = errors.New("analysis service unavailable")

// Guarded throttles and circuit-breaks calls to another provider.
// An open breaker yields an error, never a substitute reply.
type Guarded struct {
	next    Provider
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewGuarded wraps next. A disabled breaker or a zero rate skips that guard.
func NewGuarded(next Provider, breaker model.BreakerConfig, limits model.RateLimitingConfig) *Guarded {
	g := &Guarded{
		next:   next,
		logger: logging.New("llm"),
	}

	if limits.RequestsPerSecond > 0 {
		burst := limits.BurstSize
		if burst < 1 {
			burst = 1
		}
		g.limiter = rate.NewLimiter(rate.Limit(limits.RequestsPerSecond), burst)
	}

	if breaker.Enabled {
		minRequests := breaker.MinRequests
		ratio := breaker.FailureRatio
		g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        next.Name(),
			MaxRequests: breaker.MaxRequests,
			Interval:    breaker.Interval,
			Timeout:     breaker.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < minRequests {
					return false
				}
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return failureRatio >= ratio
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				g.logger.Warn("circuit breaker state change",
					"provider", name, "from", from.String(), "to", to.String())
			},
		})
	}

	return g
}

// Name returns the wrapped provider name
func (g *Guarded) Name() string {
	return g.next.Name()
}

// Complete waits for a rate token, then calls through the breaker
func (g *Guarded) Complete(ctx context.Context, req Request) (*Response, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	if g.breaker == nil {
		return g.next.Complete(ctx, req)
	}

	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.next.Complete(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, g.next.Name(), err)
		}
		return nil, err
	}
	return out.(*Response), nil
}

// State reports the breaker state, "disabled" without a breaker
func (g *Guarded) State() string {
	if g.breaker == nil {
		return "disabled"
	}
	return g.breaker.State().String()
}
