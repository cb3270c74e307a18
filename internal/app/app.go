package app

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/revieqt/taralets-server/internal/config"
	"github.com/revieqt/taralets-server/internal/geocode"
	"github.com/revieqt/taralets-server/internal/locality"
	"github.com/revieqt/taralets-server/internal/route"
	"github.com/revieqt/taralets-server/internal/session"
)

// Application wires the navigation services together: the reverse geocoder,
// the route planner, the tracking session store, and the config service. It
// is initialized once at startup and provides every HTTP handler its
// dependencies.
type Application struct {
	ConfigService *config.ConfigService
	Geocoder      *geocode.Service
	Planner       *route.Planner
	Sessions      *session.Store
	Dataset       *locality.Dataset
	Logger        *slog.Logger
	Version       string
}

// New creates and wires all dependencies for the Application.
// mapsAPIKey may be empty; routes are then served as straight lines.
func New(cfg *config.Config, logger *slog.Logger, client *http.Client, mapsAPIKey, version string) (*Application, error) {
	settings := cfg.GetSettings()

	dataset, err := loadDataset(settings.DatasetPath)
	if err != nil {
		return nil, err
	}
	logger.Info("locality dataset loaded", "records", dataset.Len())

	var cache *geocode.Cache
	if settings.RedisAddr != "" {
		cache = geocode.NewCache(settings.RedisAddr, time.Duration(settings.GeocodeCacheTTLMinutes)*time.Minute)
	}

	planner, err := route.NewPlanner(mapsAPIKey, logger)
	if err != nil {
		return nil, err
	}

	return &Application{
		ConfigService: config.NewConfigService(logger, client, cfg),
		Geocoder:      geocode.NewService(settings.GeocodeBaseURL, logger, client, cache, dataset),
		Planner:       planner,
		Sessions:      session.NewStore(logger),
		Dataset:       dataset,
		Logger:        logger,
		Version:       version,
	}, nil
}

func loadDataset(path string) (*locality.Dataset, error) {
	if path == "" {
		return locality.LoadBundled()
	}
	dataset, err := locality.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load locality dataset from %s: %w", path, err)
	}
	return dataset, nil
}
