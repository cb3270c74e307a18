package tracker

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/revieqt/taralets-server/internal/geo"
)

// ErrPermissionDenied is returned by Start when the location provider refuses
// access. No trace is collected in that case.
var ErrPermissionDenied = errors.New("location permission denied")

// ErrNotIdle is returned by Start on a tracker that is already tracking or
// has been stopped. A tracker runs exactly one session.
var ErrNotIdle = errors.New("tracker is not idle")

// State is the tracker lifecycle: Idle until Start succeeds, Tracking while
// subscribed, Stopped after Stop. Stopped is terminal.
type State int

const (
	Idle State = iota
	Tracking
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Tracking:
		return "tracking"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// Fix is a single position report from a location provider. Heading is nil
// when the device did not report one.
type Fix struct {
	Coordinate geo.Coordinate
	Heading    *float64
	Time       time.Time
}

// WatchOptions configures a position subscription.
type WatchOptions struct {
	HighAccuracy bool
	MinInterval  time.Duration
	MinDistance  float64 // meters
}

// DefaultWatchOptions matches the update cadence the mobile client uses while
// navigating.
var DefaultWatchOptions = WatchOptions{
	HighAccuracy: true,
	MinInterval:  5 * time.Second,
	MinDistance:  5,
}

// Subscription is a handle to an active position watch.
type Subscription interface {
	Unsubscribe()
}

// Provider abstracts the platform location service: permission request,
// one-shot position, and a watch subscription delivering fixes in
// chronological order.
type Provider interface {
	RequestPermission(ctx context.Context) (bool, error)
	Current(ctx context.Context) (Fix, error)
	Watch(opts WatchOptions, fn func(Fix)) (Subscription, error)
}

// Tracker accumulates an append-only, consecutively-deduplicated trace of
// position fixes for one tracking session, along with the most recent valid
// heading.
//
// The subscription callback is the only writer; Trace and Heading may be read
// concurrently from any goroutine.
type Tracker struct {
	provider Provider
	logger   *slog.Logger

	mu       sync.RWMutex
	state    State
	starting bool
	trace    []geo.Coordinate
	heading  *float64
	sub      Subscription
}

func New(provider Provider, logger *slog.Logger) *Tracker {
	return &Tracker{
		provider: provider,
		logger:   logger,
	}
}

// Start requests location permission and begins watching for fixes. If the
// provider can supply a coarse current position before the watch delivers its
// first fix, the trace is seeded with it so early readers never see an empty
// trace.
func (t *Tracker) Start(ctx context.Context) error {
	// The starting flag keeps a second Start call out while this one holds
	// the provider calls outside the lock, so only one subscription is ever
	// created.
	t.mu.Lock()
	if t.state != Idle || t.starting {
		t.mu.Unlock()
		return ErrNotIdle
	}
	t.starting = true
	t.mu.Unlock()

	defer func() {
		t.mu.Lock()
		t.starting = false
		t.mu.Unlock()
	}()

	granted, err := t.provider.RequestPermission(ctx)
	if err != nil {
		return err
	}
	if !granted {
		return ErrPermissionDenied
	}

	if seed, err := t.provider.Current(ctx); err == nil {
		if geo.IsValidLatLon(seed.Coordinate.Latitude, seed.Coordinate.Longitude) {
			t.mu.Lock()
			if len(t.trace) == 0 {
				t.trace = append(t.trace, seed.Coordinate)
			}
			t.mu.Unlock()
		}
	}

	sub, err := t.provider.Watch(DefaultWatchOptions, t.onFix)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.sub = sub
	t.state = Tracking
	t.mu.Unlock()
	return nil
}

// onFix appends the fix to the trace unless it repeats the last stored
// coordinate exactly, and records the heading when the fix carries a valid
// one. Fixes arriving after Stop are discarded.
func (t *Tracker) onFix(f Fix) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.state != Tracking {
		return
	}

	if n := len(t.trace); n == 0 || t.trace[n-1] != f.Coordinate {
		t.trace = append(t.trace, f.Coordinate)
	}

	if f.Heading != nil && isValidHeading(*f.Heading) {
		h := *f.Heading
		t.heading = &h
	}
}

// Stop cancels the position subscription. The trace and heading collected so
// far remain readable. Stop is idempotent.
func (t *Tracker) Stop() {
	t.mu.Lock()
	sub := t.sub
	t.sub = nil
	if t.state == Tracking {
		t.state = Stopped
	}
	t.mu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}
}

// Trace returns a snapshot copy of the collected fixes in arrival order.
func (t *Tracker) Trace() []geo.Coordinate {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]geo.Coordinate(nil), t.trace...)
}

// Heading returns the most recent valid heading in degrees [0, 360). The
// second value is false until the first valid reading arrives.
func (t *Tracker) Heading() (float64, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.heading == nil {
		return 0, false
	}
	return *t.heading, true
}

func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.state
}

func isValidHeading(h float64) bool {
	return !math.IsNaN(h) && !math.IsInf(h, 0) && h >= 0 && h < 360
}
