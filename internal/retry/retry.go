package retry

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Op is a fallible operation that can be retried.
type Op func(ctx context.Context) error

// Policy defines retry behavior for a single operation.
type Policy struct {
	// Attempts is the maximum number of attempts, including the first.
	Attempts int

	// Delay is the wait before the second attempt.
	Delay time.Duration

	// Factor multiplies the delay after each failed attempt.
	Factor float64
}

// DefaultPolicy returns the standard policy: 5 attempts with a 60 second
// initial delay doubling after each failure (60s, 120s, 240s, 480s).
func DefaultPolicy() Policy {
	return Policy{
		Attempts: 5,
		Delay:    60 * time.Second,
		Factor:   2,
	}
}

// Do runs op, retrying failures with exponential backoff according to p.
// Each failed attempt is logged as a warning; once all attempts are
// exhausted the final failure is logged as an error and returned, wrapped
// with the attempt count. The backoff sleep blocks only the calling
// goroutine and is cut short if ctx is cancelled.
func Do(ctx context.Context, logger *slog.Logger, name string, p Policy, op Op) error {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.Factor <= 0 {
		p.Factor = 1
	}

	delay := p.Delay
	var lastErr error

	for attempt := 1; attempt <= p.Attempts; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		if attempt == p.Attempts {
			break
		}

		logger.Warn("attempt failed, backing off",
			"op", name,
			"attempt", attempt,
			"max_attempts", p.Attempts,
			"delay", delay,
			"error", err,
		)

		if err := sleep(ctx, delay); err != nil {
			return err
		}
		delay = time.Duration(float64(delay) * p.Factor)
	}

	logger.Error("giving up",
		"op", name,
		"attempts", p.Attempts,
		"error", lastErr,
	)
	return fmt.Errorf("%s failed after %d attempts: %w", name, p.Attempts, lastErr)
}

// Wrap returns op decorated with the retry policy. The wrapped operation
// has the identical contract to op.
func Wrap(logger *slog.Logger, name string, p Policy, op Op) Op {
	return func(ctx context.Context) error {
		return Do(ctx, logger, name, p, op)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
