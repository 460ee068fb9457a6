package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/tracktable/tracktable/pkg/dialect"
)

// withRetry retries fn with exponential backoff, but only for connection
// errors: a statement that failed to parse or execute will fail the same
// way again, so query errors surface immediately.
func (o *Orchestrator) withRetry(ctx context.Context, op string, fn func() error) error {
	attempts := o.opts.MaxRetries
	if attempts < 1 {
		attempts = 1
	}
	delay := o.opts.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		var connErr *dialect.ConnectionError
		if err == nil || !errors.As(err, &connErr) {
			return err
		}
		if attempt == attempts {
			break
		}
		o.logger.Warn("connection error, retrying",
			"op", op, "attempt", attempt, "max", attempts, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}
