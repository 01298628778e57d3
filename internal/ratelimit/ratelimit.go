package ratelimit

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

var ErrBudgetExhausted = errors.New("ai request budget exhausted")

// AIRateLimiter caps AI calls per provider and in total within a rolling day.
// A limit of 0 means unlimited.
type AIRateLimiter struct {
	mu        sync.Mutex
	counts    map[string]int
	limits    map[string]int
	total     int
	maxTotal  int
	denied    int
	resetTime time.Time
	window    time.Duration
	now       func() time.Time
	log       *slog.Logger
}

// NewAIRateLimiter creates a limiter that resets daily.
func NewAIRateLimiter(maxTotal int, perProvider map[string]int, log *slog.Logger) *AIRateLimiter {
	if log == nil {
		log = slog.Default()
	}
	limits := make(map[string]int, len(perProvider))
	for k, v := range perProvider {
		limits[k] = v
	}
	rl := &AIRateLimiter{
		counts:   make(map[string]int),
		limits:   limits,
		maxTotal: maxTotal,
		window:   24 * time.Hour,
		now:      time.Now,
		log:      log,
	}
	rl.resetTime = rl.now().Add(rl.window)
	return rl
}

// CanUse reports whether a request to provider would be allowed right now.
func (rl *AIRateLimiter) CanUse(provider string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.checkReset()
	return rl.allowed(provider) == nil
}

// Use books one request against provider, or returns ErrBudgetExhausted.
func (rl *AIRateLimiter) Use(provider string) error {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.checkReset()
	if err := rl.allowed(provider); err != nil {
		rl.denied++
		rl.log.Warn("AI rate limit reached", "provider", provider, "used", rl.counts[provider], "total", rl.total)
		return err
	}

	rl.counts[provider]++
	rl.total++
	rl.log.Debug("AI usage", "provider", provider, "used", rl.counts[provider], "total", rl.total, "max_total", rl.maxTotal)
	return nil
}

func (rl *AIRateLimiter) allowed(provider string) error {
	if limit := rl.limits[provider]; limit > 0 && rl.counts[provider] >= limit {
		return fmt.Errorf("%s: %w", provider, ErrBudgetExhausted)
	}
	if rl.maxTotal > 0 && rl.total >= rl.maxTotal {
		return fmt.Errorf("total: %w", ErrBudgetExhausted)
	}
	return nil
}

func (rl *AIRateLimiter) checkReset() {
	if rl.now().After(rl.resetTime) {
		rl.counts = make(map[string]int)
		rl.total = 0
		rl.denied = 0
		rl.resetTime = rl.now().Add(rl.window)
		rl.log.Info("AI rate limits reset")
	}
}

// GetStats returns a snapshot for the monitoring endpoint.
func (rl *AIRateLimiter) GetStats() map[string]interface{} {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	perProvider := make(map[string]int, len(rl.counts))
	for k, v := range rl.counts {
		perProvider[k] = v
	}
	return map[string]interface{}{
		"total_requests": rl.total,
		"max_total":      rl.maxTotal,
		"denied":         rl.denied,
		"per_provider":   perProvider,
		"reset_time":     rl.resetTime.Format(time.RFC3339),
	}
}
