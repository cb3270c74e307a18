package app

import (
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/revieqt/taralets-server/internal/config"
)

func newTestApplication(t *testing.T) *Application {
	t.Helper()

	cfg := config.NewConfig(4000, "testing", config.Settings{})
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := &http.Client{}

	app, err := New(cfg, logger, client, "", "test-version")
	if err != nil {
		t.Fatalf("failed to build test application: %v", err)
	}
	return app
}
