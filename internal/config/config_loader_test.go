package config

import (
	"bytes"
	"context"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

func TestLoadConfigFromFile(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		content := `{
		"geocode_base_url": "https://geocode.test.example.com",
		"redis_addr": "localhost:6379",
		"geocode_cache_ttl_minutes": 60,
		"dataset_path": "/etc/taralets/localities.json",
		"session_idle_timeout_minutes": 45,
		"session_sweep_interval_minutes": 10
		}`
		tmpFile, err := os.CreateTemp("", "config-*.json")
		if err != nil {
			t.Fatalf("Failed to create temporary file: %v", err)
		}
		defer os.Remove(tmpFile.Name())

		if _, err := tmpFile.Write([]byte(content)); err != nil {
			t.Fatalf("Failed to write to temporary file: %v", err)
		}
		tmpFile.Close()

		settings, err := loadConfigFromFile(tmpFile.Name())
		if err != nil {
			t.Fatalf("loadConfigFromFile failed: %v", err)
		}

		expected := Settings{
			GeocodeBaseURL:              "https://geocode.test.example.com",
			RedisAddr:                   "localhost:6379",
			GeocodeCacheTTLMinutes:      60,
			DatasetPath:                 "/etc/taralets/localities.json",
			SessionIdleTimeoutMinutes:   45,
			SessionSweepIntervalMinutes: 10,
		}

		if settings != expected {
			t.Errorf("Expected settings %+v, got %+v", expected, settings)
		}
	})

	t.Run("InvalidJSON", func(t *testing.T) {
		content := `{ this is not valid JSON }`
		tmpFile, err := os.CreateTemp("", "invalid-config-*.json")
		if err != nil {
			t.Fatalf("Failed to create temporary file: %v", err)
		}
		defer os.Remove(tmpFile.Name())

		if _, err := tmpFile.Write([]byte(content)); err != nil {
			t.Fatalf("Failed to write to temporary file: %v", err)
		}
		tmpFile.Close()

		_, err = loadConfigFromFile(tmpFile.Name())
		if err == nil {
			t.Errorf("Expected error with invalid JSON, got none")
		}
	})

	t.Run("NonExistentFile", func(t *testing.T) {
		_, err := loadConfigFromFile("non-existent-file.json")
		if err == nil {
			t.Errorf("Expected error for non-existent file, got none")
		}
	})
}

func TestLoadConfigFromURL(t *testing.T) {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}
	ctx := context.Background()

	t.Run("ValidResponse", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
			 "geocode_base_url": "https://geocode.test.example.com",
			 "redis_addr": "localhost:6379",
			 "geocode_cache_ttl_minutes": 60
			}`))
		}))
		defer ts.Close()

		settings, err := loadConfigFromURL(ctx, client, ts.URL, "user", "pass", 1)
		if err != nil {
			t.Fatalf("loadConfigFromURL failed: %v", err)
		}

		expected := Settings{
			GeocodeBaseURL:         "https://geocode.test.example.com",
			RedisAddr:              "localhost:6379",
			GeocodeCacheTTLMinutes: 60,
		}

		if settings != expected {
			t.Errorf("Expected settings %+v, got %+v", expected, settings)
		}
	})

	t.Run("ErrorResponse", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer ts.Close()

		_, err := loadConfigFromURL(ctx, client, ts.URL, "", "", 1)
		if err == nil {
			t.Errorf("Expected error with 404 response, got none")
		}
	})

	t.Run("InvalidJSONResponse", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{ this is not valid JSON }`))
		}))
		defer ts.Close()

		_, err := loadConfigFromURL(ctx, client, ts.URL, "", "", 1)
		if err == nil {
			t.Errorf("Expected error for invalid JSON response, got none")
		}
	})

	t.Run("InvalidURL", func(t *testing.T) {
		_, err := loadConfigFromURL(ctx, client, "://invalid-url", "", "", 1)
		if err == nil || !strings.Contains(err.Error(), "failed to create request") {
			t.Errorf("Expected request creation error, got: %v", err)
		}
	})
}

func TestValidateConfigFlags(t *testing.T) {
	tests := []struct {
		name        string
		configFile  string
		configURL   string
		extraArgs   []string
		expectError bool
	}{
		{"No config uses defaults", "", "", nil, false},
		{"Valid local config", "config.json", "", nil, false},
		{"Valid remote config", "", "http://example.com/config.json", nil, false},
		{"Both config file and URL", "config.json", "http://example.com/config.json", nil, true},
		{"Config file with extra args", "config.json", "", []string{"extraArg"}, true},
		{"Config URL with extra args", "", "http://example.com/config.json", []string{"extraArg"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flag.CommandLine = flag.NewFlagSet(tt.name, flag.ContinueOnError)
			var output bytes.Buffer
			flag.CommandLine.SetOutput(&output)

			configFile := flag.String("config-file", "", "Path to config file")
			configURL := flag.String("config-url", "", "URL to config")

			args := []string{"cmd"}
			if tt.configFile != "" {
				args = append(args, "--config-file="+tt.configFile)
			}
			if tt.configURL != "" {
				args = append(args, "--config-url="+tt.configURL)
			}
			args = append(args, tt.extraArgs...)

			os.Args = args
			flag.CommandLine.Parse(args[1:])

			err := ValidateConfigFlags(configFile, configURL)

			if (err != nil) != tt.expectError {
				t.Errorf("Expected error: %v, got: %v", tt.expectError, err)
			}

			if err != nil && !strings.Contains(err.Error(), "only one of --config-file or --config-url") {
				t.Errorf("Unexpected error message: %v", err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	var s Settings
	s.ApplyDefaults()

	if s.GeocodeBaseURL != "https://nominatim.openstreetmap.org" {
		t.Errorf("unexpected default geocode base URL %q", s.GeocodeBaseURL)
	}
	if s.GeocodeCacheTTLMinutes != 24*60 {
		t.Errorf("unexpected default cache TTL %d", s.GeocodeCacheTTLMinutes)
	}
	if s.SessionIdleTimeoutMinutes != 30 {
		t.Errorf("unexpected default idle timeout %d", s.SessionIdleTimeoutMinutes)
	}
	if s.SessionSweepIntervalMinutes != 5 {
		t.Errorf("unexpected default sweep interval %d", s.SessionSweepIntervalMinutes)
	}
	if s.RedisAddr != "" {
		t.Errorf("expected cache disabled by default, got %q", s.RedisAddr)
	}

	custom := Settings{GeocodeBaseURL: "https://geocode.test.example.com", GeocodeCacheTTLMinutes: 5}
	custom.ApplyDefaults()
	if custom.GeocodeBaseURL != "https://geocode.test.example.com" || custom.GeocodeCacheTTLMinutes != 5 {
		t.Errorf("defaults overwrote explicit settings: %+v", custom)
	}
}

func TestRefreshConfig(t *testing.T) {
	cfg := NewConfig(4000, "testing", Settings{
		GeocodeBaseURL: "https://stale.example.com",
	})

	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	testLogger := slog.New(slog.NewTextHandler(io.Discard, nil))

	var serverHitCount int
	mockServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serverHitCount++

		user, pass, hasAuth := r.BasicAuth()
		if hasAuth && (user != "testuser" || pass != "testpass") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"geocode_base_url": "https://refreshed.example.com",
			"geocode_cache_ttl_minutes": 90
		}`))
	}))
	defer mockServer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go refreshConfig(ctx, client, mockServer.URL, "testuser", "testpass", cfg, testLogger, 100*time.Millisecond, 1)

	time.Sleep(200 * time.Millisecond)

	if serverHitCount == 0 {
		t.Fatal("Mock server was never called")
	}

	updated := cfg.GetSettings()
	if updated.GeocodeBaseURL != "https://refreshed.example.com" {
		t.Errorf("Config not updated with refreshed settings: %+v", updated)
	}
	if updated.GeocodeCacheTTLMinutes != 90 {
		t.Errorf("Expected refreshed cache TTL 90, got %d", updated.GeocodeCacheTTLMinutes)
	}
}
