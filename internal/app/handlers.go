package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/revieqt/taralets-server/internal/geo"
	"github.com/revieqt/taralets-server/internal/session"
	"github.com/revieqt/taralets-server/internal/tracker"
)

// HealthStatus is the JSON response of /v1/healthcheck. The application is
// considered ready when the locality dataset loaded with at least one record,
// since the offline fallback depends on it.
type HealthStatus struct {
	Status         string `json:"status"`
	Environment    string `json:"environment"`
	Version        string `json:"version"`
	DatasetRecords int    `json:"dataset_records"`
	Ready          bool   `json:"ready"`
}

func (app *Application) healthcheckHandler(w http.ResponseWriter, r *http.Request) {
	records := app.Dataset.Len()
	ready := records > 0

	status := HealthStatus{
		Status:         "available",
		Environment:    app.ConfigService.Config.Env,
		Version:        app.Version,
		DatasetRecords: records,
		Ready:          ready,
	}

	w.Header().Set("Content-Type", "application/json")
	if !ready {
		w.WriteHeader(http.StatusInternalServerError)
	}
	json.NewEncoder(w).Encode(status)
}

// locationNameHandler reverse-geocodes ?lat=&lon= into a human-readable
// location name. Provider failures never surface here; the geocoder falls
// back to the offline dataset, so the only client-visible error is a 400 for
// unparseable or out-of-range coordinates.
func (app *Application) locationNameHandler(w http.ResponseWriter, r *http.Request) {
	lat, errLat := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	lon, errLon := strconv.ParseFloat(r.URL.Query().Get("lon"), 64)
	if errLat != nil || errLon != nil || !geo.IsValidLatLon(lat, lon) {
		app.errorResponse(w, http.StatusBadRequest, "lat and lon must be valid coordinates")
		return
	}

	name := app.Geocoder.LocationName(r.Context(), geo.Coordinate{Latitude: lat, Longitude: lon})

	app.writeJSON(w, http.StatusOK, map[string]string{"name": name})
}

type routeRequest struct {
	Stops []geo.Coordinate `json:"stops"`
}

type routeResponse struct {
	Points []geo.Coordinate `json:"points"`
}

// routeHandler snaps the posted stop list to road geometry. Provider failures
// degrade to the straight-line stop sequence, so a well-formed request always
// gets a 200.
func (app *Application) routeHandler(w http.ResponseWriter, r *http.Request) {
	var req routeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		app.errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	for _, stop := range req.Stops {
		if !geo.IsValidLatLon(stop.Latitude, stop.Longitude) {
			app.errorResponse(w, http.StatusBadRequest, "stops contain an invalid coordinate")
			return
		}
	}

	points := app.Planner.SnapToRoads(r.Context(), req.Stops)
	if points == nil {
		points = []geo.Coordinate{}
	}

	app.writeJSON(w, http.StatusOK, routeResponse{Points: points})
}

type createSessionRequest struct {
	PermissionGranted bool            `json:"permission_granted"`
	Seed              *geo.Coordinate `json:"seed,omitempty"`
}

type sessionResponse struct {
	SessionID string           `json:"session_id"`
	State     string           `json:"state"`
	Trace     []geo.Coordinate `json:"trace"`
	Heading   *float64         `json:"heading"`
}

func (app *Application) sessionResponse(s *session.Session) sessionResponse {
	resp := sessionResponse{
		SessionID: s.ID,
		State:     s.Tracker.State().String(),
		Trace:     s.Tracker.Trace(),
	}
	if resp.Trace == nil {
		resp.Trace = []geo.Coordinate{}
	}
	if h, ok := s.Tracker.Heading(); ok {
		resp.Heading = &h
	}
	return resp
}

// createSessionHandler starts a tracking session. The client reports its
// location permission decision up front; a denied permission is a 403 and no
// session is created. An optional seed coordinate pre-populates the trace.
func (app *Application) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		app.errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	var seed *tracker.Fix
	if req.Seed != nil {
		if !geo.IsValidLatLon(req.Seed.Latitude, req.Seed.Longitude) {
			app.errorResponse(w, http.StatusBadRequest, "seed is not a valid coordinate")
			return
		}
		seed = &tracker.Fix{Coordinate: *req.Seed, Time: time.Now().UTC()}
	}

	s, err := app.Sessions.Create(r.Context(), req.PermissionGranted, seed)
	if err != nil {
		if errors.Is(err, tracker.ErrPermissionDenied) {
			app.errorResponse(w, http.StatusForbidden, "location permission denied")
			return
		}
		app.serverErrorResponse(w, err)
		return
	}

	app.writeJSON(w, http.StatusCreated, app.sessionResponse(s))
}

type pushFixRequest struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Heading   *float64 `json:"heading,omitempty"`
}

// pushFixHandler delivers one location fix into a session's tracker.
func (app *Application) pushFixHandler(w http.ResponseWriter, r *http.Request) {
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")

	var req pushFixRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		app.errorResponse(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if !geo.IsValidLatLon(req.Latitude, req.Longitude) {
		app.errorResponse(w, http.StatusBadRequest, "fix is not a valid coordinate")
		return
	}

	fix := tracker.Fix{
		Coordinate: geo.Coordinate{Latitude: req.Latitude, Longitude: req.Longitude},
		Heading:    req.Heading,
		Time:       time.Now().UTC(),
	}

	switch err := app.Sessions.Push(id, fix); {
	case errors.Is(err, session.ErrNotFound):
		app.errorResponse(w, http.StatusNotFound, "session not found")
	case errors.Is(err, session.ErrStopped):
		app.errorResponse(w, http.StatusConflict, "session is stopped")
	case err != nil:
		app.serverErrorResponse(w, err)
	default:
		w.WriteHeader(http.StatusAccepted)
	}
}

// getSessionHandler returns the session's trace snapshot and latest heading.
func (app *Application) getSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")

	s, err := app.Sessions.Get(id)
	if err != nil {
		app.errorResponse(w, http.StatusNotFound, "session not found")
		return
	}

	app.writeJSON(w, http.StatusOK, app.sessionResponse(s))
}

// stopSessionHandler ends tracking for a session and returns the final trace.
// The session stays readable until the cleanup routine evicts it.
func (app *Application) stopSessionHandler(w http.ResponseWriter, r *http.Request) {
	id := httprouter.ParamsFromContext(r.Context()).ByName("id")

	if err := app.Sessions.Stop(id); err != nil {
		app.errorResponse(w, http.StatusNotFound, "session not found")
		return
	}

	s, err := app.Sessions.Get(id)
	if err != nil {
		app.errorResponse(w, http.StatusNotFound, "session not found")
		return
	}

	app.writeJSON(w, http.StatusOK, app.sessionResponse(s))
}

func (app *Application) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (app *Application) errorResponse(w http.ResponseWriter, status int, message string) {
	app.writeJSON(w, status, map[string]string{"error": message})
}

func (app *Application) serverErrorResponse(w http.ResponseWriter, err error) {
	app.Logger.Error("internal server error", "error", err)
	app.errorResponse(w, http.StatusInternalServerError, "internal server error")
}
