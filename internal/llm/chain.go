package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Chain tries each generator in order and returns the first answer.
type Chain struct {
	gens []Generator
	log  *slog.Logger
}

func NewChain(log *slog.Logger, gens ...Generator) *Chain {
	if log == nil {
		log = slog.Default()
	}
	return &Chain{gens: gens, log: log}
}

func (c *Chain) Name() string {
	names := make([]string, len(c.gens))
	for i, g := range c.gens {
		names[i] = g.Name()
	}
	return strings.Join(names, ">")
}

func (c *Chain) Generate(ctx context.Context, req Request) (string, error) {
	if len(c.gens) == 0 {
		return "", errors.New("no generators configured")
	}
	var errs []error
	for _, g := range c.gens {
		text, err := g.Generate(ctx, req)
		if err == nil {
			return text, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		c.log.Warn("provider failed, trying next", "provider", g.Name(), "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", g.Name(), err))
	}
	return "", errors.Join(errs...)
}
