package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/johnrirwin/newsradar/internal/auth"
	"github.com/johnrirwin/newsradar/internal/feed"
	"github.com/johnrirwin/newsradar/internal/logging"
	"github.com/johnrirwin/newsradar/internal/models"
)

// FeedAPI handles personal feed requests
type FeedAPI struct {
	feeds          FeedService
	authMiddleware *auth.Middleware
	logger         *logging.Logger
}

func NewFeedAPI(feeds FeedService, authMiddleware *auth.Middleware, logger *logging.Logger) *FeedAPI {
	return &FeedAPI{
		feeds:          feeds,
		authMiddleware: authMiddleware,
		logger:         logger,
	}
}

// RegisterRoutes registers feed routes on the given mux
func (api *FeedAPI) RegisterRoutes(mux *http.ServeMux, corsMiddleware func(http.HandlerFunc) http.HandlerFunc) {
	mux.HandleFunc("/api/feed", corsMiddleware(api.authMiddleware.RequireAuth(api.handleFeed)))
	mux.HandleFunc("/api/feed/refresh", corsMiddleware(api.authMiddleware.RequireAuth(api.handleRefresh)))
	mux.HandleFunc("/api/feed/items/", corsMiddleware(api.authMiddleware.RequireAuth(api.handleItemStatus)))
	mux.HandleFunc("/api/preferences", corsMiddleware(api.authMiddleware.RequireAuth(api.handlePreferences)))
}

// feedFilterParams are the query parameters that switch /api/feed from the
// cached smart fetch to a filtered read of the stored feed
var feedFilterParams = []string{"limit", "offset", "unread", "saved", "liked", "since", "keyword", "minRelevance"}

func (api *FeedAPI) handleFeed(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	userID := auth.GetUserID(r.Context())
	query := r.URL.Query()

	filtered := false
	for _, p := range feedFilterParams {
		if query.Has(p) {
			filtered = true
			break
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 4*time.Minute)
	defer cancel()

	if !filtered {
		payload, err := api.feeds.SmartFetch(ctx, userID)
		if err != nil {
			writeServiceError(w, api.logger, "Smart fetch", err)
			return
		}
		writeJSON(w, http.StatusOK, payload)
		return
	}

	filter, err := parseFeedFilter(query)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_input", err.Error())
		return
	}

	payload, err := api.feeds.Feed(ctx, userID, filter)
	if err != nil {
		writeServiceError(w, api.logger, "Read feed", err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func parseFeedFilter(query map[string][]string) (models.FeedFilter, error) {
	get := func(k string) string {
		if v := query[k]; len(v) > 0 {
			return strings.TrimSpace(v[0])
		}
		return ""
	}

	var f models.FeedFilter
	if v := get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("limit must be a non-negative integer")
		}
		f.Limit = n
	}
	if v := get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, errors.New("offset must be a non-negative integer")
		}
		f.Offset = n
	}
	f.UnreadOnly = get("unread") == "true"
	f.SavedOnly = get("saved") == "true"
	f.LikedOnly = get("liked") == "true"
	if v := get("since"); v != "" {
		t, ok := models.ParseDateFilter(v)
		if !ok {
			return f, errors.New("since must be a date or RFC3339 timestamp")
		}
		f.Since = t
	}
	f.Keyword = get("keyword")
	if v := get("minRelevance"); v != "" {
		m, err := strconv.ParseFloat(v, 64)
		if err != nil || m < 0 || m > 1 {
			return f, errors.New("minRelevance must be between 0 and 1")
		}
		f.MinRelevance = m
	}
	return f, nil
}

func (api *FeedAPI) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	userID := auth.GetUserID(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 4*time.Minute)
	defer cancel()

	result, err := api.feeds.Refresh(ctx, userID)
	if err != nil {
		writeServiceError(w, api.logger, "Feed refresh", err)
		return
	}

	status := http.StatusOK
	if result.Partial() {
		status = http.StatusMultiStatus
	}
	writeJSON(w, status, result)
}

type statusRequest struct {
	ViewDurationSeconds *int `json:"viewDurationSeconds"`
	ClickedReadMore     bool `json:"clickedReadMore"`
}

// handleItemStatus handles POST /api/feed/items/{articleId}/{read|like|dislike|save}
func (api *FeedAPI) handleItemStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	userID := auth.GetUserID(r.Context())

	path := strings.TrimPrefix(r.URL.Path, "/api/feed/items/")
	parts := strings.Split(path, "/")
	if len(parts) != 2 || parts[0] == "" {
		writeError(w, http.StatusNotFound, "not_found", "unknown feed item route")
		return
	}
	articleID, status := parts[0], models.FeedStatus(parts[1])
	if !status.Valid() {
		writeError(w, http.StatusNotFound, "not_found", "unknown status action "+parts[1])
		return
	}

	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_input", "Invalid request body")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	item, err := api.feeds.SetStatus(ctx, userID, articleID, status, feed.StatusOptions{
		ViewDurationSeconds: req.ViewDurationSeconds,
		ClickedReadMore:     req.ClickedReadMore,
	})
	if err != nil {
		writeServiceError(w, api.logger, "Set item status", err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (api *FeedAPI) handlePreferences(w http.ResponseWriter, r *http.Request) {
	userID := auth.GetUserID(r.Context())

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	switch r.Method {
	case http.MethodGet:
		prefs, err := api.feeds.Preferences(ctx, userID)
		if err != nil {
			writeServiceError(w, api.logger, "Get preferences", err)
			return
		}
		writeJSON(w, http.StatusOK, prefs)
	case http.MethodPut:
		var prefs models.UserPreferences
		if err := json.NewDecoder(r.Body).Decode(&prefs); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_input", "Invalid request body")
			return
		}
		// The caller can only write their own preferences
		prefs.UserID = userID

		saved, err := api.feeds.UpdatePreferences(ctx, prefs)
		if err != nil {
			writeServiceError(w, api.logger, "Update preferences", err)
			return
		}
		writeJSON(w, http.StatusOK, saved)
	default:
		methodNotAllowed(w)
	}
}
