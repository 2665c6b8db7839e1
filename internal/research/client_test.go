package research

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResearch(t *testing.T) {
	var got searchRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{
			"answer": "The Fed held rates at 5.25%.",
			"results": [
				{"title": "Fed statement", "url": "https://fed.example/statement", "content": "The Committee decided   to maintain the target range."},
				{"title": "", "url": "https://news.example/analysis", "content": "` + strings.Repeat("a", 700) + `"}
			]
		}`))
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, APIKey: "tvly-key"})
	res, err := c.Research(context.Background(), "Fed holds rates. Context: decision day", 50)
	require.NoError(t, err)

	assert.Equal(t, "Bearer tvly-key", auth)
	assert.Equal(t, maxResultsCap, got.MaxResults)
	assert.True(t, got.IncludeAnswer)
	assert.Equal(t, DefaultSearchDepth, got.SearchDepth)

	assert.Equal(t, []string{"https://fed.example/statement", "https://news.example/analysis"}, res.Sources)
	assert.True(t, strings.HasPrefix(res.Report, "The Fed held rates at 5.25%."))
	assert.Contains(t, res.Report, "- **Fed statement**: The Committee decided to maintain the target range.")
	assert.Contains(t, res.Report, "- **https://news.example/analysis**: "+strings.Repeat("a", snippetRunes)+"...")
}

func TestResearch_Failures(t *testing.T) {
	empty := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"answer":"","results":[]}`))
	}))
	defer empty.Close()

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer failing.Close()

	ctx := context.Background()

	_, err := New(Config{BaseURL: empty.URL}).Research(ctx, "q", 5)
	assert.Error(t, err)

	_, err = New(Config{BaseURL: failing.URL}).Research(ctx, "q", 5)
	assert.ErrorContains(t, err, "401")

	_, err = New(Config{BaseURL: empty.URL}).Research(ctx, "  ", 5)
	assert.Error(t, err)
}
