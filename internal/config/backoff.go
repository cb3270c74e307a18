package config

import (
	"context"
	"fmt"
	"math/rand/v2"
	"net/http"
	"time"
)

const (
	BASE_BACKOFF   = 1 * time.Second
	MAX_BACKOFF    = 2 * time.Minute
	BACKOFF_FACTOR = 2.0
	JITTER_FACTOR  = 0.5
)

// DoWithBackoff executes the request, retrying transport errors and 5xx
// responses with jittered exponential backoff until maxRetries additional
// attempts have been spent or the context is done.
func DoWithBackoff(ctx context.Context, client *http.Client, req *http.Request, maxRetries int) (*http.Response, error) {
	var lastErr error
	delay := BASE_BACKOFF

	for attempt := 0; ; attempt++ {
		resp, err := client.Do(req.WithContext(ctx))
		if err == nil && resp.StatusCode < 500 {
			return resp, nil
		}

		if err != nil {
			lastErr = err
		} else {
			resp.Body.Close()
			lastErr = fmt.Errorf("server returned status: %d", resp.StatusCode)
		}

		if attempt >= maxRetries {
			if maxRetries > 0 {
				return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
			}
			// With no retry budget, keep trying until the context expires.
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(withJitter(delay)):
		}
		delay = nextBackoffDelay(delay)
	}
}

// withJitter adds up to JITTER_FACTOR of random slack to a delay, capped at
// MAX_BACKOFF.
func withJitter(delay time.Duration) time.Duration {
	delay += time.Duration(rand.Float64() * float64(delay) * JITTER_FACTOR)
	if delay > MAX_BACKOFF {
		delay = MAX_BACKOFF
	}
	return delay
}

func nextBackoffDelay(delay time.Duration) time.Duration {
	delay *= BACKOFF_FACTOR
	if delay >= MAX_BACKOFF {
		delay = MAX_BACKOFF
	}
	return delay
}
