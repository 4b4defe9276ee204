package util

import (
	"context"
	"log"
	"time"

	"github.com/cenkalti/backoff/v4"

	"grantdesk/internal/config"
)

// Retry calls fn until it succeeds, cfg.MaxAttempts is reached or ctx ends.
// The delay between attempts grows exponentially from cfg.InitialDelay up to
// cfg.MaxDelay. The last error from fn is returned, or ctx.Err() when ctx ended
// first. Wrap an error in backoff.Permanent to stop retrying at once.
func Retry(ctx context.Context, cfg config.RetryConfig, fn func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.InitialDelay
	if cfg.MaxDelay > 0 {
		policy.MaxInterval = cfg.MaxDelay
	}
	policy.MaxElapsedTime = 0
	policy.Reset()

	attempt := 0
	op := func() error {
		attempt++
		return fn(ctx)
	}
	notify := func(err error, next time.Duration) {
		log.Printf("[RETRY] Attempt %d/%d failed, retrying in %s: %v", attempt, attempts, next, err)
	}
	return backoff.RetryNotify(op, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(attempts-1)), ctx), notify)
}
