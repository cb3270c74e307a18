package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/revieqt/taralets-server/internal/geo"
	"github.com/revieqt/taralets-server/internal/locality"
	"github.com/revieqt/taralets-server/internal/metrics"
	"github.com/revieqt/taralets-server/internal/report"
	"github.com/revieqt/taralets-server/internal/utils"
)

// DefaultBaseURL is the public Nominatim instance used when no other
// reverse-geocoding endpoint is configured.
const DefaultBaseURL = "https://nominatim.openstreetmap.org"

const providerName = "nominatim"

// Service resolves coordinates into human-readable place names. It queries
// the configured reverse-geocoding provider and falls back to the bundled
// offline locality dataset whenever the provider is unreachable, returns a
// bad status, or sends an unparseable body.
//
// LocationName never returns an error: reverse geocoding here is best-effort
// display data, and availability is preferred over precision.
type Service struct {
	BaseURL string
	Logger  *slog.Logger
	Client  *http.Client
	Cache   *Cache
	Backoff *BackoffStore
	Dataset *locality.Dataset
}

// NewService creates a reverse-geocoding service. cache may be nil to disable
// result caching; dataset may be nil, in which case failed lookups resolve to
// the unknown-location sentinel.
func NewService(baseURL string, logger *slog.Logger, client *http.Client, cache *Cache, dataset *locality.Dataset) *Service {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Service{
		BaseURL: baseURL,
		Logger:  logger,
		Client:  client,
		Cache:   cache,
		Backoff: NewBackoffStore(),
		Dataset: dataset,
	}
}

// reverseResponse is the subset of the Nominatim jsonv2 reverse payload this
// service reads. Every field may be absent.
type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Address     struct {
		Road    string `json:"road"`
		Suburb  string `json:"suburb"`
		City    string `json:"city"`
		Town    string `json:"town"`
		Village string `json:"village"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"address"`
}

// LocationName returns a display name for the given point.
//
// Resolution order: cache, provider, offline dataset. Provider failures are
// logged, reported, and absorbed; the provider is then skipped until its
// backoff window elapses.
func (s *Service) LocationName(ctx context.Context, point geo.Coordinate) string {
	if s.Cache != nil {
		if name, ok := s.Cache.Get(ctx, point); ok {
			metrics.ReverseGeocodeRequests.WithLabelValues("cache").Inc()
			return name
		}
	}

	if s.Backoff != nil {
		if retryAt, ok := s.Backoff.NextRetryAt(providerName); ok && time.Now().UTC().Before(retryAt) {
			metrics.ReverseGeocodeFallbacks.WithLabelValues("backoff").Inc()
			return s.resolveOffline(point)
		}
	}

	name, reason, err := s.queryProvider(ctx, point)
	if err != nil {
		s.Logger.Warn("reverse geocode provider failed, using offline resolver", "reason", reason, "error", err)
		report.ReportErrorWithSentryOptions(err, report.SentryReportOptions{
			Tags:  utils.MakeMap("provider", providerName),
			Level: sentry.LevelWarning,
			ExtraContext: map[string]interface{}{
				"latitude":  point.Latitude,
				"longitude": point.Longitude,
			},
		})
		metrics.ReverseGeocodeFallbacks.WithLabelValues(reason).Inc()
		if s.Backoff != nil {
			s.Backoff.UpdateBackoff(providerName)
		}
		return s.resolveOffline(point)
	}

	if s.Backoff != nil {
		s.Backoff.ResetBackoff(providerName)
	}
	metrics.ReverseGeocodeRequests.WithLabelValues("provider").Inc()

	if s.Cache != nil {
		s.Cache.Set(ctx, point, name)
	}
	return name
}

// queryProvider performs the single reverse-geocoding request. On failure it
// returns a short reason label for metrics alongside the error.
func (s *Service) queryProvider(ctx context.Context, point geo.Coordinate) (name, reason string, err error) {
	endpoint := strings.TrimRight(s.BaseURL, "/") + "/reverse"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", "bad_request", fmt.Errorf("failed to create reverse geocode request: %v", err)
	}

	q := req.URL.Query()
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(point.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(point.Longitude, 'f', -1, 64))
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Accept", "application/json")

	resp, err := s.Client.Do(req)
	if err != nil {
		return "", "request_error", fmt.Errorf("reverse geocode request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "bad_status", fmt.Errorf("reverse geocode returned status: %d", resp.StatusCode)
	}

	var decoded reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", "decode_error", fmt.Errorf("failed to decode reverse geocode response: %v", err)
	}

	return composeName(decoded), "", nil
}

// composeName joins the most specific available sub-locality and locality
// fields, skipping absent ones, then falls back to the provider's full
// display name and finally to the unknown-location sentinel.
func composeName(resp reverseResponse) string {
	sub := utils.FirstNonEmpty(resp.Address.Road, resp.Address.Suburb)
	loc := utils.FirstNonEmpty(resp.Address.City, resp.Address.Town, resp.Address.Village, resp.Address.State, resp.Address.Country)

	var parts []string
	if sub != "" {
		parts = append(parts, sub)
	}
	if loc != "" {
		parts = append(parts, loc)
	}
	if len(parts) > 0 {
		return strings.Join(parts, ", ")
	}
	if resp.DisplayName != "" {
		return resp.DisplayName
	}
	return locality.Unknown
}

func (s *Service) resolveOffline(point geo.Coordinate) string {
	if s.Dataset != nil {
		b := s.Dataset.Bounds()
		if !b.Contains(point.Latitude, point.Longitude) {
			metrics.OfflineResolutionsOutOfCoverage.Inc()
		}
	}
	metrics.ReverseGeocodeRequests.WithLabelValues("offline").Inc()
	return s.Dataset.Resolve(point)
}
