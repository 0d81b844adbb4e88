// Package ratelimit decides when the upstream is throttling us and how to
// pace requests.
//
// Tracker classifies fetch outcomes, records rate-limit and success
// histories (each capped, oldest dropped first) and answers whether the
// cooldown after the last rate limit is still running. Its state is
// persisted so a restart does not forget a recent rate limit.
//
// SlidingWindow paces individual HTTP requests:
//
//	limiter := ratelimit.PerMinute(60)
//	if err := limiter.Wait(ctx); err != nil {
//		return err
//	}
package ratelimit
