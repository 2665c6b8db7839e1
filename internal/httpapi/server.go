package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/johnrirwin/newsradar/internal/apperr"
	"github.com/johnrirwin/newsradar/internal/auth"
	"github.com/johnrirwin/newsradar/internal/database"
	"github.com/johnrirwin/newsradar/internal/feed"
	"github.com/johnrirwin/newsradar/internal/logging"
	"github.com/johnrirwin/newsradar/internal/models"
)

// RadarScanner runs the market-monitoring pipeline on demand
type RadarScanner interface {
	Scan(ctx context.Context, since time.Time, query string) (models.RadarResponse, error)
}

// FeedService serves and mutates personal feeds
type FeedService interface {
	SmartFetch(ctx context.Context, userID string) (models.FeedPayload, error)
	Feed(ctx context.Context, userID string, filter models.FeedFilter) (models.FeedPayload, error)
	Refresh(ctx context.Context, userID string) (models.RefreshResult, error)
	SetStatus(ctx context.Context, userID, articleID string, status models.FeedStatus, opts feed.StatusOptions) (models.FeedItem, error)
	Preferences(ctx context.Context, userID string) (models.UserPreferences, error)
	UpdatePreferences(ctx context.Context, prefs models.UserPreferences) (models.UserPreferences, error)
}

// LearningService exposes interest learning
type LearningService interface {
	Record(ctx context.Context, in models.Interaction) (models.Interaction, error)
	UpdateWeights(ctx context.Context, userID string) (models.WeightsResult, error)
	DiscoverInterests(ctx context.Context, userID string) ([]models.InterestWeight, error)
	Insights(ctx context.Context, userID string) (models.LearningInsights, error)
}

type Server struct {
	radar          RadarScanner
	feeds          FeedService
	learner        LearningService
	authMiddleware *auth.Middleware
	logger         *logging.Logger
	server         *http.Server
}

func New(radar RadarScanner, feeds FeedService, learner LearningService, authMiddleware *auth.Middleware, logger *logging.Logger) *Server {
	return &Server{
		radar:          radar,
		feeds:          feeds,
		learner:        learner,
		authMiddleware: authMiddleware,
		logger:         logger,
	}
}

// Handler builds the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	radarAPI := NewRadarAPI(s.radar, s.authMiddleware, s.logger)
	radarAPI.RegisterRoutes(mux, s.corsMiddleware)

	feedAPI := NewFeedAPI(s.feeds, s.authMiddleware, s.logger)
	feedAPI.RegisterRoutes(mux, s.corsMiddleware)

	learningAPI := NewLearningAPI(s.learner, s.authMiddleware, s.logger)
	learningAPI.RegisterRoutes(mux, s.corsMiddleware)

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	return mux
}

func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 15 * time.Second,
		// Radar scans and refreshes call out to the LLM and research APIs
		WriteTimeout: 5 * time.Minute,
	}

	s.logger.Info("HTTP API server starting", logging.WithField("addr", addr))
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+auth.DevUserHeader)

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"code":    code,
		"message": message,
	})
}

// writeServiceError maps typed service errors onto HTTP statuses
func writeServiceError(w http.ResponseWriter, logger *logging.Logger, op string, err error) {
	switch {
	case apperr.IsValidation(err):
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
	case errors.Is(err, database.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "resource not found")
	case apperr.IsCollection(err):
		logger.Warn(op+" failed", logging.WithField("error", err.Error()))
		writeError(w, http.StatusBadGateway, "collection_failed", err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		logger.Error(op+" failed", logging.WithField("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
}
