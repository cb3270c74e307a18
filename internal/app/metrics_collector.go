package app

import (
	"context"
	"time"

	"github.com/revieqt/taralets-server/internal/metrics"
)

// StartMetricsCollection samples store-level gauges in the background: the
// active-sessions gauge tracks how many tracking sessions are held in memory.
// The routine stops when the context is canceled.
func (app *Application) StartMetricsCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.ActiveSessions.Set(float64(app.Sessions.Count()))
			}
		}
	}()
}
