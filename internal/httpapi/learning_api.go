package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/johnrirwin/newsradar/internal/auth"
	"github.com/johnrirwin/newsradar/internal/logging"
	"github.com/johnrirwin/newsradar/internal/models"
)

// LearningAPI handles interaction tracking and learned interests
type LearningAPI struct {
	learner        LearningService
	authMiddleware *auth.Middleware
	logger         *logging.Logger
}

func NewLearningAPI(learner LearningService, authMiddleware *auth.Middleware, logger *logging.Logger) *LearningAPI {
	return &LearningAPI{
		learner:        learner,
		authMiddleware: authMiddleware,
		logger:         logger,
	}
}

func (api *LearningAPI) RegisterRoutes(mux *http.ServeMux, corsMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/api/interactions", corsMiddleware(api.authMiddleware.RequireAuth(api.handleRecord)))
	mux.HandleFunc("/api/learning/update", corsMiddleware(api.authMiddleware.RequireAuth(api.handleUpdate)))
	mux.HandleFunc("/api/learning/interests", corsMiddleware(api.authMiddleware.RequireAuth(api.handleInterests)))
	mux.HandleFunc("/api/learning/insights", corsMiddleware(api.authMiddleware.RequireAuth(api.handleInsights)))
}

func (api *LearningAPI) handleRecord(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	var in models.Interaction
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", "Invalid request body")
		return
	}
	in.UserID = auth.GetUserID(r.Context())
	in.ID = ""
	in.CreatedAt = time.Time{}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	recorded, err := api.learner.Record(ctx, in)
	if err != nil {
		writeServiceError(w, api.logger, "Record interaction", err)
		return
	}
	writeJSON(w, http.StatusCreated, recorded)
}

func (api *LearningAPI) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	result, err := api.learner.UpdateWeights(ctx, auth.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, api.logger, "Update weights", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (api *LearningAPI) handleInterests(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	userID := auth.GetUserID(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	interests, err := api.learner.DiscoverInterests(ctx, userID)
	if err != nil {
		writeServiceError(w, api.logger, "Discover interests", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"userId":    userID,
		"interests": interests,
		"count":     len(interests),
	})
}

func (api *LearningAPI) handleInsights(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	insights, err := api.learner.Insights(ctx, auth.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, api.logger, "Learning insights", err)
		return
	}
	writeJSON(w, http.StatusOK, insights)
}
