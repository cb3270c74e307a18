package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"

	"github.com/revieqt/taralets-server/internal/app"
	"github.com/revieqt/taralets-server/internal/config"
	"github.com/revieqt/taralets-server/internal/report"
)

const version = "1.0.0"

// configRefreshMaxRetries bounds the retry budget of a single remote config
// fetch; the refresh loop itself keeps running regardless.
const configRefreshMaxRetries = 3

func main() {
	var (
		port = flag.Int("port", 4000, "API server port")
		env  = flag.String("env", "development", "Environment (development|staging|production)")

		configFile = flag.String("config-file", "", "Path to a local JSON configuration file")
		configURL  = flag.String("config-url", "", "URL to a remote JSON configuration file")
	)

	flag.Parse()

	if err := config.ValidateConfigFlags(configFile, configURL); err != nil {
		fmt.Println("Error:", err)
		flag.Usage()
		os.Exit(1)
	}

	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	configAuthUser := os.Getenv("CONFIG_AUTH_USER")
	configAuthPass := os.Getenv("CONFIG_AUTH_PASS")
	mapsAPIKey := os.Getenv("GOOGLE_MAPS_API_KEY")

	report.SetupSentry()
	defer report.FlushSentry()
	report.ConfigureScope(*env, version)

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	client := app.NewPooledClient()

	var (
		settings config.Settings
		err      error
	)
	switch {
	case *configFile != "":
		settings, err = config.LoadConfigFromFile(*configFile)
	case *configURL != "":
		settings, err = config.LoadConfigFromURL(ctx, client, *configURL, configAuthUser, configAuthPass, configRefreshMaxRetries)
	}
	if err != nil {
		fmt.Printf("Error loading configuration: %v\n", err)
		os.Exit(1)
	}

	cfg := config.NewConfig(*port, *env, settings)

	application, err := app.New(cfg, logger, client, mapsAPIKey, version)
	if err != nil {
		logger.Error("Failed to initialize application", "error", err)
		report.ReportError(err, sentry.LevelFatal)
		report.FlushSentry()
		os.Exit(1)
	}

	application.StartMetricsCollection(ctx, 30*time.Second)

	current := cfg.GetSettings()
	go application.Sessions.ClearRoutine(ctx,
		time.Duration(current.SessionSweepIntervalMinutes)*time.Minute,
		time.Duration(current.SessionIdleTimeoutMinutes)*time.Minute)

	// If a remote URL is specified, refresh the configuration every minute.
	if *configURL != "" {
		go application.ConfigService.RefreshConfig(ctx, *configURL, configAuthUser, configAuthPass, time.Minute, configRefreshMaxRetries)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      application.Routes(ctx),
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed", "error", err)
		}
	}()

	logger.Info("starting server", "addr", srv.Addr, "env", cfg.Env)
	err = srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		logger.Info("server stopped")
		return
	}
	report.ReportError(err, sentry.LevelFatal)
	report.FlushSentry()
	logger.Error(err.Error())
	os.Exit(1)
}
