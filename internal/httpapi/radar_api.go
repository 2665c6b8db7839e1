package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/johnrirwin/newsradar/internal/auth"
	"github.com/johnrirwin/newsradar/internal/logging"
	"github.com/johnrirwin/newsradar/internal/models"
)

const defaultRadarWindow = 24 * time.Hour

// RadarAPI serves the market-monitoring view
type RadarAPI struct {
	radar          RadarScanner
	authMiddleware *auth.Middleware
	logger         *logging.Logger
	now            func() time.Time
}

func NewRadarAPI(radar RadarScanner, authMiddleware *auth.Middleware, logger *logging.Logger) *RadarAPI {
	return &RadarAPI{
		radar:          radar,
		authMiddleware: authMiddleware,
		logger:         logger,
		now:            time.Now,
	}
}

func (api *RadarAPI) RegisterRoutes(mux *http.ServeMux, corsMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/api/radar", corsMiddleware(api.authMiddleware.RequireAuth(api.handleScan)))
}

// handleScan runs a scan over articles newer than ?since (date or RFC3339)
// or the last ?window (Go duration). q narrows articles by keyword.
func (api *RadarAPI) handleScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	query := r.URL.Query()
	since := api.now().Add(-defaultRadarWindow)
	if v := query.Get("window"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_input", "window must be a positive duration such as 6h")
			return
		}
		since = api.now().Add(-d)
	}
	if v := query.Get("since"); v != "" {
		t, ok := models.ParseDateFilter(v)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid_input", "since must be a date or RFC3339 timestamp")
			return
		}
		since = t
	}

	ctx, cancel := context.WithTimeout(r.Context(), 4*time.Minute)
	defer cancel()

	resp, err := api.radar.Scan(ctx, since, query.Get("q"))
	if err != nil {
		writeServiceError(w, api.logger, "Radar scan", err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}
