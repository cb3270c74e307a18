package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReverseGeocodeRequests counts reverse-geocode lookups by the source that
	// produced the result (provider, cache, offline).
	ReverseGeocodeRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reverse_geocode_requests_total",
		Help: "Number of reverse geocode lookups, labeled by the source that answered them",
	}, []string{"source"})

	// ReverseGeocodeFallbacks counts provider failures that were absorbed into
	// an offline resolution.
	ReverseGeocodeFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reverse_geocode_fallbacks_total",
		Help: "Number of reverse geocode calls that fell back to the offline resolver, by reason",
	}, []string{"reason"})

	// OfflineResolutionsOutOfCoverage counts offline resolutions for points
	// outside the bundled dataset's bounding box, where the nearest-record
	// answer is a rough approximation at best.
	OfflineResolutionsOutOfCoverage = promauto.NewCounter(prometheus.CounterOpts{
		Name: "offline_resolutions_out_of_coverage_total",
		Help: "Number of offline locality resolutions for points outside the dataset coverage area",
	})
)

var (
	DirectionsRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "directions_requests_total",
		Help: "Number of road-snapping directions requests, by outcome (snapped, straight_line)",
	}, []string{"outcome"})

	DirectionsFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "directions_fallbacks_total",
		Help: "Number of directions calls that degraded to a straight-line route, by reason",
	}, []string{"reason"})

	SnappedRoutePoints = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "snapped_route_points",
		Help:    "Number of points in returned route polylines",
		Buckets: prometheus.ExponentialBuckets(2, 2, 10),
	})
)

var (
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "active_tracking_sessions",
		Help: "Number of live tracking sessions currently held in memory",
	})

	SessionFixes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "session_fixes_total",
		Help: "Number of location fixes pushed into tracking sessions",
	})

	SessionFixesDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "session_fixes_dropped_total",
		Help: "Number of pushed fixes rejected before reaching a tracker, by reason",
	}, []string{"reason"})
)

var (
	// OutgoingLatency tracks the latency of outgoing HTTP requests to the
	// geocoding and directions providers. Populated by the instrumented
	// transport in the app package.
	OutgoingLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "outgoing_request_duration_seconds",
		Help:    "Duration of outgoing HTTP requests to external providers",
		Buckets: prometheus.DefBuckets,
	}, []string{"url", "method", "status"})
)
