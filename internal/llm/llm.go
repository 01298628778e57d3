// Package llm defines the text-generation port used by the classifier and
// the adapters that put budgets, timeouts and a circuit breaker around it.
package llm

import (
	"context"
	"errors"
)

var ErrEmptyResponse = errors.New("empty response from provider")

// Request is a single free-text prompt.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// Generator turns a prompt into free text.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}

// Observer receives one call per provider attempt; result is "ok", "error",
// "budget" or "open".
type Observer interface {
	ObserveAICall(provider, result string)
}
