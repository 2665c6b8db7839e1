package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnrirwin/newsradar/internal/apperr"
	"github.com/johnrirwin/newsradar/internal/auth"
	"github.com/johnrirwin/newsradar/internal/cache"
	"github.com/johnrirwin/newsradar/internal/config"
	"github.com/johnrirwin/newsradar/internal/database"
	"github.com/johnrirwin/newsradar/internal/feed"
	"github.com/johnrirwin/newsradar/internal/learning"
	"github.com/johnrirwin/newsradar/internal/models"
	"github.com/johnrirwin/newsradar/internal/pipeline"
	"github.com/johnrirwin/newsradar/internal/pipeline/pipelinetest"
	"github.com/johnrirwin/newsradar/internal/testutil"
)

type testServer struct {
	handler   http.Handler
	store     *database.MemoryStore
	collector *pipelinetest.Collector
}

func newTestServer(t *testing.T, authCfg config.AuthConfig) *testServer {
	t.Helper()

	logger := testutil.NullLogger()
	store := database.NewMemoryStore()
	p, _ := pipelinetest.New(map[string]float64{"Fed holds rates": 0.8})

	base := time.Now().Add(-2 * time.Hour)
	collector := &pipelinetest.Collector{Articles: []models.Article{
		pipelinetest.Article("a1", "Fed holds rates - Reuters", "Reuters", base, 10),
		pipelinetest.Article("a2", "Oil jumps", "CNBC", base, 20),
	}}

	mem := cache.NewMemory(time.Hour)
	t.Cleanup(mem.Stop)

	engine := learning.New(store, store, store, store, learning.Config{}, logger)
	updater := feed.New(collector, p, store, engine, cache.NewFeedCache(mem, 30*time.Minute), cache.NewMemoryLocker(), feed.Config{}, logger)
	middleware := auth.NewMiddleware(auth.NewVerifier(authCfg, logger))

	srv := New(pipeline.NewRadar(p, collector), updater, engine, middleware, logger)
	return &testServer{handler: srv.Handler(), store: store, collector: collector}
}

func (ts *testServer) do(t *testing.T, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if user != "" {
		req.Header.Set(auth.DevUserHeader, user)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, config.AuthConfig{})
	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestRequiresIdentity(t *testing.T) {
	ts := newTestServer(t, config.AuthConfig{})
	rec := ts.do(t, http.MethodGet, "/api/feed", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerToken(t *testing.T) {
	cfg := config.AuthConfig{JWTSecret: "test-secret-key-minimum-32-chars-long", JWTIssuer: "newsradar", JWTAudience: "newsradar-users"}
	ts := newTestServer(t, cfg)

	token, err := auth.NewVerifier(cfg, testutil.NullLogger()).IssueToken("reader-1")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/preferences", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	prefs := decode[models.UserPreferences](t, rec)
	assert.Equal(t, "reader-1", prefs.UserID)
}

func TestRadarScan(t *testing.T) {
	ts := newTestServer(t, config.AuthConfig{})

	rec := ts.do(t, http.MethodGet, "/api/radar?window=6h", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[models.RadarResponse](t, rec)
	require.Len(t, resp.Stories, 2)
	assert.Equal(t, "Fed holds rates", resp.Stories[0].Headline)
	assert.Equal(t, 2, resp.Report.ArticlesProcessed)
}

func TestRadarScan_BadParams(t *testing.T) {
	ts := newTestServer(t, config.AuthConfig{})

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/radar?window=soon", "u1", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/radar?since=yesterday", "u1", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, ts.do(t, http.MethodPost, "/api/radar", "u1", nil).Code)
}

func TestRadarScan_CollectionFailure(t *testing.T) {
	ts := newTestServer(t, config.AuthConfig{})
	ts.collector.Err = errors.New("feeds down")

	rec := ts.do(t, http.MethodGet, "/api/radar", "u1", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestFeed_SmartFetchThenCache(t *testing.T) {
	ts := newTestServer(t, config.AuthConfig{})

	rec := ts.do(t, http.MethodGet, "/api/feed", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	first := decode[models.FeedPayload](t, rec)
	assert.Len(t, first.Items, 2)
	assert.False(t, first.FromCache)

	rec = ts.do(t, http.MethodGet, "/api/feed", "u1", nil)
	second := decode[models.FeedPayload](t, rec)
	assert.True(t, second.FromCache)
}

func TestFeed_RefreshAndFilter(t *testing.T) {
	ts := newTestServer(t, config.AuthConfig{})

	rec := ts.do(t, http.MethodPost, "/api/feed/refresh", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[models.RefreshResult](t, rec)
	assert.Equal(t, 2, result.NewItems)

	rec = ts.do(t, http.MethodGet, "/api/feed?limit=1", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	page := decode[models.FeedPayload](t, rec)
	assert.Len(t, page.Items, 1)
	assert.Equal(t, 2, page.TotalItems)

	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/feed?limit=-1", "u1", nil).Code)
	assert.Equal(t, http.StatusBadRequest, ts.do(t, http.MethodGet, "/api/feed?minRelevance=2", "u1", nil).Code)
}

func TestFeed_ItemStatus(t *testing.T) {
	ts := newTestServer(t, config.AuthConfig{})
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/feed/refresh", "u1", nil).Code)

	views := 45
	rec := ts.do(t, http.MethodPost, "/api/feed/items/a1/read", "u1", statusRequest{ViewDurationSeconds: &views})
	require.Equal(t, http.StatusOK, rec.Code)
	item := decode[models.FeedItem](t, rec)
	assert.True(t, item.IsRead)

	rec = ts.do(t, http.MethodPost, "/api/feed/items/a1/like", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	interactions, err := ts.store.ListInteractions(context.Background(), "u1", time.Time{})
	require.NoError(t, err)
	assert.Len(t, interactions, 2)

	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/api/feed/items/missing/like", "u1", nil).Code)
	assert.Equal(t, http.StatusNotFound, ts.do(t, http.MethodPost, "/api/feed/items/a1/share", "u1", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, ts.do(t, http.MethodGet, "/api/feed/items/a1/like", "u1", nil).Code)
}

func TestPreferences_RoundTrip(t *testing.T) {
	ts := newTestServer(t, config.AuthConfig{})

	rec := ts.do(t, http.MethodPut, "/api/preferences", "u1", models.UserPreferences{
		UserID:      "someone-else",
		Keywords:    []string{"Fed"},
		MaxArticles: 10,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	saved := decode[models.UserPreferences](t, rec)
	assert.Equal(t, "u1", saved.UserID)
	assert.Equal(t, []string{"fed"}, saved.Keywords)

	rec = ts.do(t, http.MethodGet, "/api/preferences", "u1", nil)
	got := decode[models.UserPreferences](t, rec)
	assert.Equal(t, 10, got.MaxArticles)

	rec = ts.do(t, http.MethodPut, "/api/preferences", "u1", models.UserPreferences{MaxArticles: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLearning_RecordAndUpdate(t *testing.T) {
	ts := newTestServer(t, config.AuthConfig{})

	views := 45
	for i := 0; i < 3; i++ {
		rec := ts.do(t, http.MethodPost, "/api/interactions", "u1", models.Interaction{
			ArticleID:           "a1",
			Type:                models.InteractionLike,
			ViewDurationSeconds: &views,
			ClickedReadMore:     true,
			MatchedKeywords:     []string{"fed"},
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := ts.do(t, http.MethodPost, "/api/learning/update", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	result := decode[models.WeightsResult](t, rec)
	assert.Equal(t, 3, result.InteractionsApplied)

	rec = ts.do(t, http.MethodGet, "/api/learning/interests", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]interface{}](t, rec)
	assert.EqualValues(t, 1, body["count"])

	rec = ts.do(t, http.MethodGet, "/api/learning/insights", "u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	insights := decode[models.LearningInsights](t, rec)
	assert.Equal(t, 1, insights.TotalLearnedKeywords)
}

func TestLearning_RecordValidation(t *testing.T) {
	ts := newTestServer(t, config.AuthConfig{})

	rec := ts.do(t, http.MethodPost, "/api/interactions", "u1", models.Interaction{ArticleID: "a1", Type: "poke"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", apperr.ValidationError{Err: errors.New("bad")}, http.StatusBadRequest},
		{"not found", database.ErrNotFound, http.StatusNotFound},
		{"collection", &apperr.CollectionError{Err: errors.New("down")}, http.StatusBadGateway},
		{"persistence", &apperr.PersistenceError{Op: "insert", Err: errors.New("disk")}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, testutil.NullLogger(), "test", tt.err)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}
