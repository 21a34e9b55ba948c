package rest

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strconv"
	"time"
)

const (
	maxRetries = 5
	firstDelay = time.Second
	maxDelay   = time.Minute
	jitter     = 0.25 // fraction of the delay added or removed at random
)

// retryableStatus reports whether a failed status is worth another attempt:
// request timeout, throttling, and server errors other than the ones that
// mean "never going to work".
func retryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	case http.StatusNotImplemented, http.StatusHTTPVersionNotSupported, http.StatusInsufficientStorage:
		return false
	default:
		return code >= http.StatusInternalServerError
	}
}

// backoff is the wait before retry attempt+1: doubling from firstDelay,
// capped at maxDelay, then spread by up to ±jitter.
func backoff(attempt int) time.Duration {
	d := maxDelay
	if attempt < 6 {
		d = min(firstDelay<<attempt, maxDelay)
	}

	spread := (rand.Float64()*2 - 1) * jitter //nolint:gosec // jitter does not need crypto rand

	return d + time.Duration(float64(d)*spread)
}

// retryWait honors a Retry-After header given in seconds and falls back to
// backoff.
func retryWait(h http.Header, attempt int) time.Duration {
	if secs, err := strconv.Atoi(h.Get("Retry-After")); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}

	return backoff(attempt)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
