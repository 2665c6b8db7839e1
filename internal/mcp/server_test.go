package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnrirwin/newsradar/internal/models"
	"github.com/johnrirwin/newsradar/internal/testutil"
)

type fakeRadar struct {
	since time.Time
	query string
	err   error
}

func (f *fakeRadar) Scan(ctx context.Context, since time.Time, query string) (models.RadarResponse, error) {
	f.since, f.query = since, query
	if f.err != nil {
		return models.RadarResponse{}, f.err
	}
	return models.RadarResponse{Stories: []models.Story{{Headline: "A"}, {Headline: "B"}, {Headline: "C"}}}, nil
}

type fakeFeeds struct {
	refreshed []string
}

func (f *fakeFeeds) SmartFetch(ctx context.Context, userID string) (models.FeedPayload, error) {
	return models.FeedPayload{UserID: userID, TotalItems: 1}, nil
}

func (f *fakeFeeds) Refresh(ctx context.Context, userID string) (models.RefreshResult, error) {
	f.refreshed = append(f.refreshed, userID)
	return models.RefreshResult{UserID: userID, NewItems: 2}, nil
}

type fakeInterests struct {
	updated bool
}

func (f *fakeInterests) UpdateWeights(ctx context.Context, userID string) (models.WeightsResult, error) {
	f.updated = true
	return models.WeightsResult{UserID: userID}, nil
}

func (f *fakeInterests) DiscoverInterests(ctx context.Context, userID string) ([]models.InterestWeight, error) {
	return []models.InterestWeight{{UserID: userID, Keyword: "oil", Weight: 0.8, EngagementCount: 3}}, nil
}

type fakeSources struct {
	invalidated int
}

func (f *fakeSources) GetSources() []models.SourceInfo {
	return []models.SourceInfo{{ID: "reuters", Name: "Reuters"}}
}

func (f *fakeSources) Invalidate() { f.invalidated++ }

type fixture struct {
	server    *Server
	handler   *Handler
	radar     *fakeRadar
	feeds     *fakeFeeds
	interests *fakeInterests
	sources   *fakeSources
}

func newFixture() *fixture {
	f := &fixture{radar: &fakeRadar{}, feeds: &fakeFeeds{}, interests: &fakeInterests{}, sources: &fakeSources{}}
	f.handler = NewHandler(f.radar, f.feeds, f.interests, f.sources, testutil.NullLogger())
	f.server = NewServer(f.handler, testutil.NullLogger())
	return f
}

func serve(t *testing.T, s *Server, requests ...string) []Response {
	t.Helper()

	var out strings.Builder
	require.NoError(t, s.Serve(context.Background(), strings.NewReader(strings.Join(requests, "\n")), &out))

	var responses []Response
	scanner := bufio.NewScanner(strings.NewReader(out.String()))
	for scanner.Scan() {
		var r Response
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		responses = append(responses, r)
	}
	return responses
}

func toolText(t *testing.T, r Response) (string, bool) {
	t.Helper()
	raw, err := json.Marshal(r.Result)
	require.NoError(t, err)
	var res CallToolResult
	require.NoError(t, json.Unmarshal(raw, &res))
	require.Len(t, res.Content, 1)
	return res.Content[0].Text, res.IsError
}

func TestServe_Protocol(t *testing.T) {
	f := newFixture()
	responses := serve(t, f.server,
		`{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`,
		`{"jsonrpc":"2.0","method":"initialized"}`,
		`{"jsonrpc":"2.0","id":2,"method":"tools/list"}`,
		`{"jsonrpc":"2.0","id":3,"method":"nope"}`,
		`not json`,
	)

	require.Len(t, responses, 4)
	assert.Nil(t, responses[0].Error)

	raw, _ := json.Marshal(responses[1].Result)
	var list ToolsListResult
	require.NoError(t, json.Unmarshal(raw, &list))
	assert.Len(t, list.Tools, 5)

	require.NotNil(t, responses[2].Error)
	assert.Equal(t, -32601, responses[2].Error.Code)
	require.NotNil(t, responses[3].Error)
	assert.Equal(t, -32700, responses[3].Error.Code)
}

func TestTool_Scan(t *testing.T) {
	f := newFixture()
	f.handler.now = func() time.Time { return time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC) }

	responses := serve(t, f.server,
		`{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"scan_news_radar","arguments":{"hours":6,"query":"oil","limit":2}}}`,
	)
	require.Len(t, responses, 1)

	text, isErr := toolText(t, responses[0])
	assert.False(t, isErr)
	var resp models.RadarResponse
	require.NoError(t, json.Unmarshal([]byte(text), &resp))
	assert.Len(t, resp.Stories, 2)
	assert.Equal(t, "oil", f.radar.query)
	assert.Equal(t, time.Date(2024, 6, 3, 6, 0, 0, 0, time.UTC), f.radar.since)
}

func TestTool_ScanFailure(t *testing.T) {
	f := newFixture()
	f.radar.err = errors.New("all sources failed")

	_, err := f.handler.HandleToolCall(context.Background(), "scan_news_radar", nil)
	assert.Error(t, err)
}

func TestTool_RefreshForce(t *testing.T) {
	f := newFixture()

	result, err := f.handler.HandleToolCall(context.Background(), "refresh_personal_feed", json.RawMessage(`{"user_id":"u1","force":true}`))
	require.NoError(t, err)
	assert.Equal(t, 2, result.(models.RefreshResult).NewItems)
	assert.Equal(t, []string{"u1"}, f.feeds.refreshed)
	assert.Equal(t, 1, f.sources.invalidated)
}

func TestTool_RequiresUser(t *testing.T) {
	f := newFixture()

	for _, name := range []string{"get_personal_feed", "refresh_personal_feed", "discover_interests"} {
		_, err := f.handler.HandleToolCall(context.Background(), name, json.RawMessage(`{}`))
		var toolErr *ToolError
		assert.ErrorAs(t, err, &toolErr, name)
	}
}

func TestTool_Discover(t *testing.T) {
	f := newFixture()

	result, err := f.handler.HandleToolCall(context.Background(), "discover_interests", json.RawMessage(`{"user_id":"u1"}`))
	require.NoError(t, err)
	assert.True(t, f.interests.updated)
	assert.Equal(t, 1, result.(map[string]interface{})["count"])
}

func TestTool_Unknown(t *testing.T) {
	f := newFixture()
	_, err := f.handler.HandleToolCall(context.Background(), "fly_drone", nil)
	assert.Error(t, err)
}
