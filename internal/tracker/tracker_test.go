package tracker

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/revieqt/taralets-server/internal/geo"
)

// fakeProvider delivers fixes on demand and records watch/unsubscribe calls.
type fakeProvider struct {
	granted    bool
	permErr    error
	currentFix *Fix

	mu           sync.Mutex
	fn           func(Fix)
	watchOpts    WatchOptions
	unsubscribed bool
}

type fakeSubscription struct {
	p *fakeProvider
}

func (s *fakeSubscription) Unsubscribe() {
	s.p.mu.Lock()
	defer s.p.mu.Unlock()
	s.p.unsubscribed = true
	s.p.fn = nil
}

func (p *fakeProvider) RequestPermission(ctx context.Context) (bool, error) {
	return p.granted, p.permErr
}

func (p *fakeProvider) Current(ctx context.Context) (Fix, error) {
	if p.currentFix == nil {
		return Fix{}, errors.New("no position available")
	}
	return *p.currentFix, nil
}

func (p *fakeProvider) Watch(opts WatchOptions, fn func(Fix)) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.fn = fn
	p.watchOpts = opts
	return &fakeSubscription{p: p}, nil
}

func (p *fakeProvider) deliver(f Fix) {
	p.mu.Lock()
	fn := p.fn
	p.mu.Unlock()
	if fn != nil {
		fn(f)
	}
}

func newTestTracker(p *fakeProvider) *Tracker {
	return New(p, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func heading(h float64) *float64 { return &h }

func TestStartPermissionDenied(t *testing.T) {
	p := &fakeProvider{granted: false}
	tr := newTestTracker(p)

	if err := tr.Start(context.Background()); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if tr.State() != Idle {
		t.Errorf("expected tracker to stay idle, got state %v", tr.State())
	}
	if got := tr.Trace(); len(got) != 0 {
		t.Errorf("expected empty trace, got %v", got)
	}
}

func TestStartUsesHighAccuracyWatch(t *testing.T) {
	p := &fakeProvider{granted: true}
	tr := newTestTracker(p)

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tr.Stop()

	if !p.watchOpts.HighAccuracy {
		t.Error("expected a high-accuracy watch")
	}
	if p.watchOpts.MinInterval != DefaultWatchOptions.MinInterval {
		t.Errorf("unexpected min interval %v", p.watchOpts.MinInterval)
	}
	if p.watchOpts.MinDistance != DefaultWatchOptions.MinDistance {
		t.Errorf("unexpected min distance %v", p.watchOpts.MinDistance)
	}
}

func TestConsecutiveDuplicateFixesAreDeduplicated(t *testing.T) {
	p := &fakeProvider{granted: true}
	tr := newTestTracker(p)

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tr.Stop()

	fix := Fix{Coordinate: geo.Coordinate{Latitude: 10.33, Longitude: 123.9}}
	p.deliver(fix)
	p.deliver(fix)

	if got := tr.Trace(); len(got) != 1 {
		t.Errorf("expected 1 entry after duplicate fixes, got %d", len(got))
	}
}

func TestDistinctFixesAppendInArrivalOrder(t *testing.T) {
	p := &fakeProvider{granted: true}
	tr := newTestTracker(p)

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tr.Stop()

	a := geo.Coordinate{Latitude: 10.33, Longitude: 123.90}
	b := geo.Coordinate{Latitude: 10.34, Longitude: 123.90}
	c := geo.Coordinate{Latitude: 10.34, Longitude: 123.91}
	p.deliver(Fix{Coordinate: a})
	p.deliver(Fix{Coordinate: b})
	p.deliver(Fix{Coordinate: c})
	p.deliver(Fix{Coordinate: a}) // not a consecutive duplicate, so it appends

	got := tr.Trace()
	want := []geo.Coordinate{a, b, c, a}
	if len(got) != len(want) {
		t.Fatalf("expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestHeadingLatestValidWins(t *testing.T) {
	p := &fakeProvider{granted: true}
	tr := newTestTracker(p)

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tr.Stop()

	if _, ok := tr.Heading(); ok {
		t.Error("expected no heading before any fix")
	}

	p.deliver(Fix{Coordinate: geo.Coordinate{Latitude: 10.33, Longitude: 123.90}, Heading: heading(45)})
	p.deliver(Fix{Coordinate: geo.Coordinate{Latitude: 10.34, Longitude: 123.90}, Heading: heading(-5)}) // invalid, ignored
	p.deliver(Fix{Coordinate: geo.Coordinate{Latitude: 10.35, Longitude: 123.90}, Heading: heading(270)})

	h, ok := tr.Heading()
	if !ok || h != 270 {
		t.Errorf("expected heading 270, got %v (ok=%v)", h, ok)
	}
}

func TestSeedFromCurrentPosition(t *testing.T) {
	seed := geo.Coordinate{Latitude: 10.31, Longitude: 123.88}
	p := &fakeProvider{granted: true, currentFix: &Fix{Coordinate: seed}}
	tr := newTestTracker(p)

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tr.Stop()

	got := tr.Trace()
	if len(got) != 1 || got[0] != seed {
		t.Errorf("expected trace seeded with %v, got %v", seed, got)
	}
}

func TestStopCancelsSubscriptionAndKeepsTrace(t *testing.T) {
	p := &fakeProvider{granted: true}
	tr := newTestTracker(p)

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a := geo.Coordinate{Latitude: 10.33, Longitude: 123.90}
	p.deliver(Fix{Coordinate: a, Heading: heading(90)})

	tr.Stop()
	tr.Stop() // idempotent

	if !p.unsubscribed {
		t.Error("expected the subscription to be cancelled")
	}
	if tr.State() != Stopped {
		t.Errorf("expected Stopped state, got %v", tr.State())
	}

	// Late fixes are discarded, earlier data stays readable.
	p.deliver(Fix{Coordinate: geo.Coordinate{Latitude: 10.99, Longitude: 123.99}})
	if got := tr.Trace(); len(got) != 1 || got[0] != a {
		t.Errorf("expected trace unchanged after stop, got %v", got)
	}
	if h, ok := tr.Heading(); !ok || h != 90 {
		t.Errorf("expected heading retained after stop, got %v (ok=%v)", h, ok)
	}
}

func TestStartTwiceFails(t *testing.T) {
	p := &fakeProvider{granted: true}
	tr := newTestTracker(p)

	if err := tr.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer tr.Stop()

	if err := tr.Start(context.Background()); !errors.Is(err, ErrNotIdle) {
		t.Errorf("expected ErrNotIdle, got %v", err)
	}
}

// gatedProvider blocks RequestPermission until released, so two Start calls
// can be forced to overlap.
type gatedProvider struct {
	fakeProvider
	entered chan struct{}
	release chan struct{}

	watchCalls int
}

func (p *gatedProvider) RequestPermission(ctx context.Context) (bool, error) {
	p.entered <- struct{}{}
	<-p.release
	return p.granted, p.permErr
}

func (p *gatedProvider) Watch(opts WatchOptions, fn func(Fix)) (Subscription, error) {
	p.mu.Lock()
	p.watchCalls++
	p.mu.Unlock()
	return p.fakeProvider.Watch(opts, fn)
}

func TestConcurrentStartCreatesOneSubscription(t *testing.T) {
	p := &gatedProvider{
		fakeProvider: fakeProvider{granted: true},
		entered:      make(chan struct{}, 2),
		release:      make(chan struct{}),
	}
	tr := New(p, slog.New(slog.NewTextHandler(io.Discard, nil)))

	errs := make(chan error, 2)
	go func() { errs <- tr.Start(context.Background()) }()

	// Wait for the first call to pass the idle check and block inside the
	// provider, then race a second call against it.
	<-p.entered
	go func() { errs <- tr.Start(context.Background()) }()

	select {
	case <-p.entered:
		t.Fatal("second Start reached the provider while the first was in flight")
	case err := <-errs:
		if !errors.Is(err, ErrNotIdle) {
			t.Fatalf("expected ErrNotIdle from second Start, got %v", err)
		}
	}

	close(p.release)
	if err := <-errs; err != nil {
		t.Fatalf("unexpected error from first Start: %v", err)
	}
	defer tr.Stop()

	p.mu.Lock()
	calls := p.watchCalls
	p.mu.Unlock()
	if calls != 1 {
		t.Errorf("expected exactly one watch subscription, got %d", calls)
	}
	if tr.State() != Tracking {
		t.Errorf("expected tracking state, got %v", tr.State())
	}
}
