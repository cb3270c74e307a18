package route

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/getsentry/sentry-go"
	"googlemaps.github.io/maps"

	"github.com/revieqt/taralets-server/internal/geo"
	"github.com/revieqt/taralets-server/internal/metrics"
	"github.com/revieqt/taralets-server/internal/report"
	"github.com/revieqt/taralets-server/internal/utils"
)

// Planner snaps an ordered stop list to road geometry using the Google Maps
// Directions API. Provider failures degrade to the straight-line sequence of
// the requested stops; SnapToRoads never returns an error.
type Planner struct {
	// Maps is nil when no API key is configured. The planner then serves
	// straight-line routes only.
	Maps   *maps.Client
	Logger *slog.Logger
}

// NewPlanner creates a route planner. An empty apiKey disables the directions
// provider. Extra client options (custom HTTP client, base URL) are passed
// through to the Maps client.
func NewPlanner(apiKey string, logger *slog.Logger, opts ...maps.ClientOption) (*Planner, error) {
	p := &Planner{Logger: logger}
	if apiKey == "" {
		logger.Info("no directions API key configured, routes will be straight lines")
		return p, nil
	}

	clientOpts := append([]maps.ClientOption{maps.WithAPIKey(apiKey)}, opts...)
	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create directions client: %v", err)
	}
	p.Maps = client
	return p, nil
}

// SnapToRoads requests one road-snapped route through the given stops:
// origin is the first stop, destination the last, and every intermediate stop
// a waypoint in its original order. The decoded overview polyline is
// returned.
//
// Fewer than 2 stops yields an empty sequence without a network call. Any
// provider failure (network error, error status, empty route list,
// undecodable polyline) yields the stop coordinates verbatim.
func (p *Planner) SnapToRoads(ctx context.Context, stops []geo.Coordinate) []geo.Coordinate {
	if len(stops) < 2 {
		return nil
	}

	if p.Maps == nil {
		return p.straightLine(stops, "no_provider")
	}

	req := &maps.DirectionsRequest{
		Origin:      formatLatLng(stops[0]),
		Destination: formatLatLng(stops[len(stops)-1]),
	}
	for _, stop := range stops[1 : len(stops)-1] {
		req.Waypoints = append(req.Waypoints, formatLatLng(stop))
	}

	routes, _, err := p.Maps.Directions(ctx, req)
	if err != nil {
		p.reportFallback(err, "request_error")
		return p.straightLine(stops, "request_error")
	}
	if len(routes) == 0 {
		p.reportFallback(fmt.Errorf("directions returned no routes"), "empty_routes")
		return p.straightLine(stops, "empty_routes")
	}

	decoded, err := DecodePolyline(routes[0].OverviewPolyline.Points)
	if err != nil {
		p.reportFallback(err, "decode_error")
		return p.straightLine(stops, "decode_error")
	}
	if len(decoded) == 0 {
		return p.straightLine(stops, "empty_polyline")
	}

	metrics.DirectionsRequests.WithLabelValues("snapped").Inc()
	metrics.SnappedRoutePoints.Observe(float64(len(decoded)))
	return decoded
}

// straightLine returns a copy of the stops in their original order as the
// degraded route.
func (p *Planner) straightLine(stops []geo.Coordinate, reason string) []geo.Coordinate {
	metrics.DirectionsRequests.WithLabelValues("straight_line").Inc()
	metrics.DirectionsFallbacks.WithLabelValues(reason).Inc()
	return append([]geo.Coordinate(nil), stops...)
}

func (p *Planner) reportFallback(err error, reason string) {
	p.Logger.Warn("directions provider failed, serving straight-line route", "reason", reason, "error", err)
	report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
		Tags:  utils.MakeMap("reason", reason),
		Level: sentry.LevelWarning,
	})
}

func formatLatLng(c geo.Coordinate) string {
	return fmt.Sprintf("%.6f,%.6f", c.Latitude, c.Longitude)
}
