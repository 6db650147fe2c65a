package speech

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultAttemptTimeout = 45 * time.Second

// Chain attempts providers in priority order. The first success wins; a
// provider failure moves to the next provider. Exhausting the chain is a
// recoverable condition for the caller (the silent fallback): narration is
// simply absent.
type Chain struct {
	providers      []Provider
	attemptTimeout time.Duration
}

type ChainOption func(*Chain)

// WithAttemptTimeout bounds each individual provider attempt.
func WithAttemptTimeout(timeout time.Duration) ChainOption {
	return func(c *Chain) {
		if timeout > 0 {
			c.attemptTimeout = timeout
		}
	}
}

func NewChain(providers []Provider, opts ...ChainOption) *Chain {
	chain := &Chain{
		providers:      providers,
		attemptTimeout: defaultAttemptTimeout,
	}
	for _, opt := range opts {
		opt(chain)
	}
	return chain
}

// Empty reports whether the chain has no providers to try.
func (c *Chain) Empty() bool {
	return c == nil || len(c.providers) == 0
}

// Synthesize walks the provider chain until one succeeds.
func (c *Chain) Synthesize(ctx context.Context, req Request) (*Result, error) {
	if c.Empty() {
		return nil, fmt.Errorf("no speech providers configured")
	}

	ctx, span := tracer.Start(ctx, "synthesize narration")
	defer span.End()

	var attemptErrs error
	for _, provider := range c.providers {
		result, err := c.attempt(ctx, provider, req)
		if err == nil {
			span.SetAttributes(attribute.String("speech.provider", provider.Name()))
			return result, nil
		}

		logger.WarnContext(ctx, "speech provider failed, falling through",
			"provider", provider.Name(), "error", err)
		attemptErrs = errors.Join(attemptErrs, fmt.Errorf("%s: %w", provider.Name(), err))

		if ctx.Err() != nil {
			break
		}
	}

	err := fmt.Errorf("all speech providers failed: %w", attemptErrs)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return nil, err
}

func (c *Chain) attempt(ctx context.Context, provider Provider, req Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	result, err := provider.Synthesize(ctx, req)
	if err != nil {
		return nil, err
	}
	if result == nil || result.AudioURL == "" {
		return nil, fmt.Errorf("provider returned no audio")
	}
	return result, nil
}
