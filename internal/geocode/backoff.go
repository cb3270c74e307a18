package geocode

import (
	"math/rand/v2"
	"sync"
	"time"
)

const (
	baseBackoff   = 1 * time.Second
	maxBackoff    = 2 * time.Minute
	backoffFactor = 2
	jitterFactor  = 0.5
)

type backoffData struct {
	BackoffDelay time.Duration
	NextRetryAt  time.Time
}

// BackoffStore tracks per-provider retry schedules so that a failing
// geocoding provider is skipped in favor of the offline resolver until its
// next retry time, instead of being hammered on every lookup.
type BackoffStore struct {
	mu       sync.RWMutex
	backoffs map[string]backoffData
}

func NewBackoffStore() *BackoffStore {
	return &BackoffStore{
		backoffs: make(map[string]backoffData),
	}
}

func (s *BackoffStore) NextRetryAt(provider string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if backoff, exists := s.backoffs[provider]; exists {
		return backoff.NextRetryAt.UTC(), true
	}
	return time.Time{}, false
}

func (s *BackoffStore) UpdateBackoff(provider string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if backoff, exists := s.backoffs[provider]; exists {
		backoff.BackoffDelay = calculateNewBackoffDelay(backoff.BackoffDelay)
		backoff.NextRetryAt = calculateNextRetryAt(backoff.BackoffDelay)
		s.backoffs[provider] = backoff
	} else {
		s.backoffs[provider] = backoffData{
			BackoffDelay: baseBackoff,
			NextRetryAt:  calculateNextRetryAt(baseBackoff),
		}
	}
}

func (s *BackoffStore) ResetBackoff(provider string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.backoffs, provider)
}

func calculateNextRetryAt(backoff time.Duration) time.Time {
	jitter := time.Duration(rand.Float64() * float64(backoff) * jitterFactor)
	backoff += jitter
	if backoff > maxBackoff {
		backoff = maxBackoff
	}
	return time.Now().Add(backoff).UTC()
}

func calculateNewBackoffDelay(backoffDelay time.Duration) time.Duration {
	backoffDelay *= backoffFactor
	if backoffDelay >= maxBackoff {
		backoffDelay = maxBackoff
	}
	return backoffDelay
}
