package llm

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/deusflow/joyfeed/internal/ratelimit"
	"github.com/sony/gobreaker"
)

// Guard wraps a provider with a call budget, a per-call timeout and a
// circuit breaker. It never retries.
type Guard struct {
	next     Generator
	limiter  *ratelimit.AIRateLimiter
	breaker  *gobreaker.CircuitBreaker
	timeout  time.Duration
	observer Observer
}

type GuardOptions struct {
	Limiter          *ratelimit.AIRateLimiter // optional
	Timeout          time.Duration
	FailureThreshold uint32        // consecutive failures before opening
	OpenFor          time.Duration // time spent open before a probe
	Observer         Observer      // optional
	Logger           *slog.Logger
}

func NewGuard(next Generator, opts GuardOptions) *Guard {
	if opts.FailureThreshold == 0 {
		opts.FailureThreshold = 5
	}
	if opts.OpenFor == 0 {
		opts.OpenFor = 30 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	threshold := opts.FailureThreshold
	settings := gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     opts.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("AI circuit breaker state change", "provider", name, "from", from.String(), "to", to.String())
		},
	}
	return &Guard{
		next:     next,
		limiter:  opts.Limiter,
		breaker:  gobreaker.NewCircuitBreaker(settings),
		timeout:  opts.Timeout,
		observer: opts.Observer,
	}
}

func (g *Guard) Name() string { return g.next.Name() }

func (g *Guard) Generate(ctx context.Context, req Request) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Use(g.next.Name()); err != nil {
			g.observe("budget")
			return "", err
		}
	}
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	out, err := g.breaker.Execute(func() (interface{}, error) {
		return g.next.Generate(ctx, req)
	})
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		g.observe("open")
		return "", err
	case err != nil:
		g.observe("error")
		return "", err
	}
	g.observe("ok")
	return out.(string), nil
}

// State exposes the breaker state for health reporting.
func (g *Guard) State() string { return g.breaker.State().String() }

func (g *Guard) observe(result string) {
	if g.observer != nil {
		g.observer.ObserveAICall(g.next.Name(), result)
	}
}
