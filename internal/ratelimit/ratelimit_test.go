package ratelimit

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestUse_PerProviderLimit(t *testing.T) {
	rl := NewAIRateLimiter(0, map[string]int{"gemini": 2}, quiet())

	require.NoError(t, rl.Use("gemini"))
	require.NoError(t, rl.Use("gemini"))
	assert.False(t, rl.CanUse("gemini"))
	assert.ErrorIs(t, rl.Use("gemini"), ErrBudgetExhausted)

	assert.True(t, rl.CanUse("openai"), "other providers keep their own budget")
}

func TestUse_TotalLimit(t *testing.T) {
	rl := NewAIRateLimiter(3, nil, quiet())
	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Use([]string{"a", "b", "c"}[i]))
	}
	assert.ErrorIs(t, rl.Use("d"), ErrBudgetExhausted)
	assert.Equal(t, 1, rl.GetStats()["denied"])
}

func TestUse_DailyReset(t *testing.T) {
	now := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	rl := NewAIRateLimiter(1, nil, quiet())
	rl.now = func() time.Time { return now }
	rl.resetTime = now.Add(24 * time.Hour)

	require.NoError(t, rl.Use("gemini"))
	assert.Error(t, rl.Use("gemini"))

	now = now.Add(25 * time.Hour)
	assert.NoError(t, rl.Use("gemini"))
}

func TestUnlimited(t *testing.T) {
	rl := NewAIRateLimiter(0, nil, quiet())
	for i := 0; i < 100; i++ {
		require.NoError(t, rl.Use("gemini"))
	}
	assert.Equal(t, 100, rl.GetStats()["total_requests"])
}
