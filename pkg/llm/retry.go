package llm

import (
	"context"
	"log/slog"
	"time"
)

type retryClient struct {
	inner       Client
	logger      *slog.Logger
	maxAttempts int
	delay       time.Duration
	maxDelay    time.Duration
	multiplier  float64
}

// WithRetry wraps a client with exponential backoff on retryable errors.
func WithRetry(inner Client, cfg *Config, logger *slog.Logger) Client {
	return &retryClient{
		inner:       inner,
		logger:      logger.With("system", "llm"),
		maxAttempts: cfg.MaxAttempts,
		delay:       cfg.RetryDelayDuration(),
		maxDelay:    cfg.MaxRetryDelayDuration(),
		multiplier:  cfg.RetryMultiplier,
	}
}

func (c *retryClient) Model() string {
	return c.inner.Model()
}

func (c *retryClient) Complete(ctx context.Context, req Request) (string, error) {
	delay := c.delay

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		reply, err := c.inner.Complete(ctx, req)
		if err == nil {
			return reply, nil
		}
		lastErr = err

		if !Retryable(err) || attempt == c.maxAttempts {
			break
		}

		c.logger.Warn("llm call failed, retrying",
			"attempt", attempt,
			"delay", delay,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}

		delay = min(time.Duration(float64(delay)*c.multiplier), c.maxDelay)
	}

	return "", lastErr
}
