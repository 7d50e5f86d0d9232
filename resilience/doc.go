// Package resilience provides retry with backoff for collection reads.
//
// Reads are idempotent and may be retried; writes go through the mutation
// protocol and are never retried here. A Retry decides per error whether
// another attempt is worthwhile (see RetryConfig.RetryIf) and waits between
// attempts with exponential or constant backoff:
//
//	retry := resilience.NewRetry(resilience.RetryConfig{
//	    MaxAttempts: 3,
//	    RetryIf:     api.IsRetryable,
//	})
//
//	err := retry.Execute(ctx, func(ctx context.Context) error {
//	    return fetchCart(ctx)
//	})
package resilience
