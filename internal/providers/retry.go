package providers

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// newBackOff builds the exact backoff shape spec §7 mandates: 2s initial
// interval, x2 multiplier, 60s cap, 20% jitter, 5 retries before giving up
// and surfacing the last error to the caller. Grounded on the teacher
// pack's own use of cenkalti/backoff (livepeer-catalyst-api's
// clients/input_copy.go CopyFile), generalized into a single reusable
// policy instead of one ad hoc backoff.Retry call per site.
func newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialInterval
	b.Multiplier = multiplier
	b.MaxInterval = maxInterval
	b.RandomizationFactor = jitterFactor
	b.MaxElapsedTime = 0 // bounded by WithMaxRetries below, not wall clock
	return backoff.WithMaxRetries(b, maxRetries)
}

const (
	initialInterval = 2 * time.Second
	maxInterval     = 60 * time.Second
	multiplier      = 2.0
	jitterFactor    = 0.2
	maxRetries      = 5
)

// WithRetry runs op under the shared newBackOff policy, retrying only when op
// returns a *ProviderError with Retryable set. A permanent ProviderError,
// or any other error, returns immediately without consuming a retry.
func WithRetry(ctx context.Context, op func() error) error {
	var lastPermanent error
	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		var perr *ProviderError
		if errors.As(err, &perr) && perr.Retryable {
			return err
		}
		lastPermanent = err
		return backoff.Permanent(err)
	}
	err := backoff.Retry(wrapped, backoff.WithContext(newBackOff(), ctx))
	if err == nil {
		return nil
	}
	if lastPermanent != nil {
		return lastPermanent
	}
	return err
}
