// Package retry provides backoff and retry logic for transient media fetch
// failures.
//
// Only errors typed by igarchive/pkg/errors as network, rate_limit or
// server_error are retried by DefaultRetryIf; everything else returns after
// the first attempt.
//
//	err := retry.Do(ctx, func(ctx context.Context) error {
//		return fetch(ctx, url)
//	}, retry.ForMedia(cfg.Media, log))
package retry
