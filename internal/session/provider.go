package session

import (
	"context"
	"errors"
	"sync"

	"github.com/revieqt/taralets-server/internal/tracker"
)

// errNoSeed is returned by Current when the client did not supply a coarse
// starting position with the session request.
var errNoSeed = errors.New("no seed position supplied")

// pushProvider adapts the push-based HTTP surface to the tracker's provider
// interface. Permission is decided up front from the session request, the
// optional seed fix backs Current, and fixes POSTed by the client are handed
// to the watch callback via Push.
type pushProvider struct {
	granted bool
	seed    *tracker.Fix

	mu sync.Mutex
	fn func(tracker.Fix)
}

type pushSubscription struct {
	p *pushProvider
}

func (s *pushSubscription) Unsubscribe() {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.fn = nil
}

func (p *pushProvider) RequestPermission(ctx context.Context) (bool, error) {
	return p.granted, nil
}

func (p *pushProvider) Current(ctx context.Context) (tracker.Fix, error) {
	if p.seed == nil {
		return tracker.Fix{}, errNoSeed
	}
	return *p.seed, nil
}

func (p *pushProvider) Watch(opts tracker.WatchOptions, fn func(tracker.Fix)) (tracker.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fn = fn
	return &pushSubscription{p: p}, nil
}

// Push delivers a client-reported fix to the watch callback. It reports
// whether a watch was active to receive it.
func (p *pushProvider) Push(f tracker.Fix) bool {
	p.mu.Lock()
	fn := p.fn
	p.mu.Unlock()

	if fn == nil {
		return false
	}
	fn(f)
	return true
}
