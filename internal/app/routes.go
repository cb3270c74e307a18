package app

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/revieqt/taralets-server/internal/middleware"
)

// Routes registers all endpoints and returns the final http.Handler, wrapped
// with the Sentry and security-header middlewares.
//
// Registered routes:
//   - GET    /v1/healthcheck        health and readiness snapshot
//   - GET    /metrics               cached Prometheus exposition
//   - GET    /v1/location/name      reverse geocode with offline fallback
//   - POST   /v1/route              road-snapped polyline for an ordered stop list
//   - POST   /v1/sessions           start a tracking session
//   - POST   /v1/sessions/:id/fixes push a location fix into a session
//   - GET    /v1/sessions/:id       trace snapshot and heading
//   - DELETE /v1/sessions/:id       stop the session, returning the final trace
func (app *Application) Routes(ctx context.Context) http.Handler {
	router := httprouter.New()

	router.HandlerFunc(http.MethodGet, "/v1/healthcheck", app.healthcheckHandler)
	router.Handler(http.MethodGet, "/metrics", middleware.NewCachedPromHandler(ctx, prometheus.DefaultGatherer, 10*time.Second))

	router.HandlerFunc(http.MethodGet, "/v1/location/name", app.locationNameHandler)
	router.HandlerFunc(http.MethodPost, "/v1/route", app.routeHandler)

	router.HandlerFunc(http.MethodPost, "/v1/sessions", app.createSessionHandler)
	router.HandlerFunc(http.MethodPost, "/v1/sessions/:id/fixes", app.pushFixHandler)
	router.HandlerFunc(http.MethodGet, "/v1/sessions/:id", app.getSessionHandler)
	router.HandlerFunc(http.MethodDelete, "/v1/sessions/:id", app.stopSessionHandler)

	handler := middleware.SentryMiddleware(router)
	return middleware.SecurityHeaders(handler)
}
