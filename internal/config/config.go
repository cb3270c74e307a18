package config

import "sync"

// Settings are the reloadable server settings, loaded from a JSON file or a
// remote URL. Zero values are replaced with defaults by ApplyDefaults.
type Settings struct {
	// GeocodeBaseURL is the reverse-geocoding provider endpoint.
	GeocodeBaseURL string `json:"geocode_base_url"`

	// RedisAddr enables the geocode response cache when set.
	RedisAddr string `json:"redis_addr"`

	// GeocodeCacheTTLMinutes controls how long cached location names live.
	GeocodeCacheTTLMinutes int `json:"geocode_cache_ttl_minutes"`

	// DatasetPath points at a locality dataset file. Empty means the
	// bundled dataset.
	DatasetPath string `json:"dataset_path"`

	// SessionIdleTimeoutMinutes is how long a tracking session may go
	// without a fix before the cleanup routine evicts it.
	SessionIdleTimeoutMinutes int `json:"session_idle_timeout_minutes"`

	// SessionSweepIntervalMinutes is how often the cleanup routine runs.
	SessionSweepIntervalMinutes int `json:"session_sweep_interval_minutes"`
}

// ApplyDefaults fills unset fields with production defaults.
func (s *Settings) ApplyDefaults() {
	if s.GeocodeBaseURL == "" {
		s.GeocodeBaseURL = "https://nominatim.openstreetmap.org"
	}
	if s.GeocodeCacheTTLMinutes <= 0 {
		s.GeocodeCacheTTLMinutes = 24 * 60
	}
	if s.SessionIdleTimeoutMinutes <= 0 {
		s.SessionIdleTimeoutMinutes = 30
	}
	if s.SessionSweepIntervalMinutes <= 0 {
		s.SessionSweepIntervalMinutes = 5
	}
}

// Config holds all the configuration settings for our application.
type Config struct {
	Port     int
	Env      string
	Mu       sync.RWMutex
	Settings Settings
}

// NewConfig creates a new instance of a Config struct.
func NewConfig(port int, env string, settings Settings) *Config {
	settings.ApplyDefaults()
	return &Config{
		Port:     port,
		Env:      env,
		Settings: settings,
	}
}

// UpdateConfig safely replaces the reloadable settings.
func (cfg *Config) UpdateConfig(newSettings Settings) {
	newSettings.ApplyDefaults()
	cfg.Mu.Lock()
	defer cfg.Mu.Unlock()
	cfg.Settings = newSettings
}

// GetSettings safely returns a copy of the current settings.
// This method should be used to access the settings from other parts of the
// application.
func (cfg *Config) GetSettings() Settings {
	cfg.Mu.RLock()
	defer cfg.Mu.RUnlock()
	return cfg.Settings
}
