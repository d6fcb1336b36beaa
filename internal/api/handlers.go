package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/chadmayfield/weathercache/internal/acquisition"
	"github.com/chadmayfield/weathercache/internal/fetcher"
	"github.com/chadmayfield/weathercache/internal/weather"
)

// Acquirer runs the cache-or-fetch flow for a location.
type Acquirer interface {
	Execute(ctx context.Context, loc weather.Location) (*acquisition.Result, error)
	LastStatus() *fetcher.Status
}

// Lookup is the read side of the store used by the point query and health.
type Lookup interface {
	GetSingle(ctx context.Context, loc weather.Location, ts string) ([]weather.Observation, error)
	Count(ctx context.Context) (int, error)
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Acquirer      Acquirer
	Lookup        Lookup
	Logger        *slog.Logger
	StartTime     time.Time
	Mode          string
	StorageDriver string
	StoragePath   string
	Version       string
}

// apiError is a JSON error response.
type apiError struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg, Code: status})
}

// parseLocation reads the longitude and latitude query parameters.
func parseLocation(r *http.Request) (weather.Location, error) {
	q := r.URL.Query()
	lon, err := parseCoordinate(q.Get("longitude"), "longitude", 180)
	if err != nil {
		return weather.Location{}, err
	}
	lat, err := parseCoordinate(q.Get("latitude"), "latitude", 90)
	if err != nil {
		return weather.Location{}, err
	}
	return weather.Location{Longitude: lon, Latitude: lat}, nil
}

func parseCoordinate(s, name string, limit float64) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("missing '%s' parameter", name)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid '%s' parameter", name)
	}
	if v < -limit || v > limit {
		return 0, fmt.Errorf("'%s' out of range", name)
	}
	return v, nil
}

// errorStatus maps an acquisition failure to an HTTP status.
func errorStatus(err error) int {
	if weather.IsKind(err, weather.KindRemoteService) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// GetObservations handles GET /api/v1/observations
func (h *Handlers) GetObservations(w http.ResponseWriter, r *http.Request) {
	loc, err := parseLocation(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.Acquirer.Execute(r.Context(), loc)
	if err != nil {
		h.Logger.Error("acquisition failed", "location", loc.String(), "request_id", requestID(r.Context()), "error", err)
		var werr *weather.Error
		if errors.As(err, &werr) {
			writeError(w, errorStatus(err), werr.Kind.String())
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get observations")
		return
	}

	type statusResponse struct {
		Text           string `json:"text"`
		Code           int    `json:"code,omitempty"`
		Fetched        int    `json:"fetched"`
		RecordsWritten int    `json:"records_written"`
		Error          string `json:"error,omitempty"`
	}
	type obsResponse struct {
		Longitude    float64          `json:"longitude"`
		Latitude     float64          `json:"latitude"`
		Cached       bool             `json:"cached"`
		Status       *statusResponse  `json:"status,omitempty"`
		Total        int              `json:"total"`
		Observations []map[string]any `json:"observations"`
	}

	resp := obsResponse{
		Longitude:    loc.Longitude,
		Latitude:     loc.Latitude,
		Cached:       res.Cached,
		Total:        len(res.Observations),
		Observations: make([]map[string]any, len(res.Observations)),
	}
	for i := range res.Observations {
		resp.Observations[i] = obsToMap(&res.Observations[i])
	}
	if st := res.Status; st != nil {
		resp.Status = &statusResponse{
			Text:           st.Text,
			Code:           st.Code,
			Fetched:        st.Fetched,
			RecordsWritten: st.RecordsWritten,
		}
		if st.Err != nil {
			resp.Status.Error = st.Err.Error()
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetObservation handles GET /api/v1/observation
func (h *Handlers) GetObservation(w http.ResponseWriter, r *http.Request) {
	loc, err := parseLocation(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ts := r.URL.Query().Get("time")
	if ts == "" {
		writeError(w, http.StatusBadRequest, "missing 'time' parameter (YYYY-MM-DDTHH:MM)")
		return
	}
	if _, err := time.Parse(weather.TimeLayout, ts); err != nil {
		writeError(w, http.StatusBadRequest, "invalid 'time' parameter (YYYY-MM-DDTHH:MM)")
		return
	}

	obs, err := h.Lookup.GetSingle(r.Context(), loc, ts)
	if err != nil {
		h.Logger.Error("point lookup failed", "location", loc.String(), "time", ts, "request_id", requestID(r.Context()), "error", err)
		writeError(w, http.StatusInternalServerError, "failed to get observation")
		return
	}
	if len(obs) == 0 {
		writeError(w, http.StatusNotFound, "no observation found")
		return
	}

	writeJSON(w, http.StatusOK, obsToMap(&obs[0]))
}

// Health handles GET /api/v1/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	type fetchHealth struct {
		Mode       string `json:"mode"`
		LastStatus string `json:"last_status,omitempty"`
		LastCode   int    `json:"last_code,omitempty"`
	}
	type dbHealth struct {
		Driver            string `json:"driver"`
		Status            string `json:"status"`
		SizeBytes         int64  `json:"size_bytes,omitempty"`
		TotalObservations int    `json:"total_observations"`
	}
	type healthResponse struct {
		Status   string      `json:"status"`
		Version  string      `json:"version"`
		Uptime   string      `json:"uptime"`
		Fetch    fetchHealth `json:"fetch"`
		Database dbHealth    `json:"database"`
	}

	resp := healthResponse{
		Status:  "healthy",
		Version: h.Version,
		Uptime:  formatUptime(time.Since(h.StartTime)),
		Fetch:   fetchHealth{Mode: h.Mode},
	}

	if h.Acquirer != nil {
		if st := h.Acquirer.LastStatus(); st != nil {
			resp.Fetch.LastStatus = st.Text
			resp.Fetch.LastCode = st.Code
		}
	}

	// Database health (path omitted to avoid exposing filesystem details).
	resp.Database = dbHealth{
		Driver: h.StorageDriver,
		Status: "ok",
	}
	if h.StorageDriver == "sqlite" && h.StoragePath != "" {
		if info, err := os.Stat(h.StoragePath); err == nil {
			resp.Database.SizeBytes = info.Size()
		}
	}
	if h.Lookup != nil {
		count, err := h.Lookup.Count(r.Context())
		if err != nil {
			resp.Status = "degraded"
			resp.Database.Status = "error"
		} else {
			resp.Database.TotalObservations = count
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// obsToMap converts an Observation to a map with snake_case keys for JSON responses.
// weather.Observation has no JSON tags, so fields are mapped explicitly.
func obsToMap(obs *weather.Observation) map[string]any {
	return map[string]any{
		"longitude":                 obs.Location.Longitude,
		"latitude":                  obs.Location.Latitude,
		"time":                      obs.Time,
		"precipitation_probability": obs.PrecipitationProbability,
		"precipitation":             obs.Precipitation,
		"wind_speed_10m":            obs.WindSpeed10m,
	}
}
