// Package retry provides backoff strategies and a bounded retry loop.
//
// The scheduler uses it for rate-limit retries of a single item, where the
// default strategy is ConstantBackoff: every retry waits the same configured
// duration. Linear and exponential strategies are available through
// NewStrategy for deployments that want the wait to grow.
//
//	err := retry.Do(func() error {
//		return fetchOnce()
//	}, &retry.Config{
//		MaxAttempts: 4,
//		Backoff:     &retry.ConstantBackoff{Delay: 15 * time.Minute},
//		RetryIf:     isRateLimited,
//	})
//	if errors.Is(err, retry.ErrMaxAttempts) {
//		// give up on this item
//	}
package retry
