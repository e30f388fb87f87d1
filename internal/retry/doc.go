// Package retry provides a generic retry combinator with exponential
// backoff.
//
// All failures are treated uniformly: there is no distinction between
// retryable and non-retryable errors, so a permanently failing operation
// still consumes every attempt before giving up.
//
// # Usage
//
//	policy := retry.Policy{Attempts: 5, Delay: 60 * time.Second, Factor: 2}
//	err := retry.Do(ctx, logger, "year 2000", policy, func(ctx context.Context) error {
//	    return fetchYear(ctx, 2000)
//	})
//
// With the default policy the delays between attempts are 60s, 120s,
// 240s and 480s. Delays are deterministic (no jitter).
package retry
