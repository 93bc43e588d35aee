// Package util holds small shared helpers.
package util

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Backoff returns exponential backoff with jitter. The base delay is doubled
// each attempt, capped at 30 seconds, with random jitter up to 25%.
func Backoff(baseDelay time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	backoff := baseDelay * time.Duration(1<<uint(attempt))
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(backoff)/2)) - backoff/4
	return backoff + jitter
}

// WaitReady calls probe until it succeeds or the context expires. Used at
// startup so the server can come up before its dependencies do.
func WaitReady(ctx context.Context, name string, logger *slog.Logger, probe func(context.Context) error) error {
	var lastErr error
	for attempt := 0; ; attempt++ {
		if err := probe(ctx); err == nil {
			if attempt > 0 {
				logger.Info("dependency became ready", "name", name, "attempts", attempt+1)
			}
			return nil
		} else {
			lastErr = err
			logger.Warn("dependency not ready, retrying", "name", name, "attempt", attempt+1, "error", err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for %s: %w (last error: %v)", name, ctx.Err(), lastErr)
		case <-time.After(Backoff(250*time.Millisecond, attempt)):
		}
	}
}
