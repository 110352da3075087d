// Package ratelimit paces outbound media requests so a large snapshot does
// not hammer the CDN it references.
//
//	limiter := ratelimit.NewTokenBucket(cfg.Media.RequestsPerMinute, cfg.Media.BurstSize)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
package ratelimit
