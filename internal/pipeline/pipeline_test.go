package pipeline_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnrirwin/newsradar/internal/apperr"
	"github.com/johnrirwin/newsradar/internal/models"
	"github.com/johnrirwin/newsradar/internal/pipeline/pipelinetest"
)

var base = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

func TestRun_ClustersScoresAndRanks(t *testing.T) {
	p, fakes := pipelinetest.New(map[string]float64{
		"Fed cuts rates":    0.9,
		"Oil slides":        0.4,
		"Chipmaker IPO set": 0.75,
	})

	articles := []models.Article{
		pipelinetest.Article("a1", "Fed cuts rates - Reuters", "Reuters", base, 0),
		pipelinetest.Article("a2", "Fed cuts rates - CNBC", "CNBC", base, 5),
		pipelinetest.Article("a3", "Oil slides", "Blog", base, 1),
		pipelinetest.Article("a4", "Chipmaker IPO set", "Bloomberg", base, 2),
	}

	stories, report, err := p.Run(context.Background(), articles)
	require.NoError(t, err)
	require.Len(t, stories, 3)

	assert.Equal(t, "Fed cuts rates", stories[0].Headline)
	assert.Equal(t, "Chipmaker IPO set", stories[1].Headline)
	assert.Equal(t, "Oil slides", stories[2].Headline)

	assert.Equal(t, 2, stories[0].ArticleCount)
	assert.True(t, stories[0].ResearchEnriched)
	assert.Contains(t, stories[0].Tags, "Central Banks")
	assert.Empty(t, stories[2].Draft)

	assert.Equal(t, 4, report.ArticlesProcessed)
	assert.Equal(t, 3, report.Clusters)
	assert.Equal(t, 3, report.Stories)
	assert.Equal(t, 2, report.Escalated)
	assert.NotEmpty(t, report.RunID)
	for _, s := range stories {
		assert.Equal(t, report.RunID, s.RunID)
	}
	assert.Equal(t, 2, fakes.Researcher.Calls)
}

func TestRun_ScoringFailureSkipsOnlyThatCluster(t *testing.T) {
	p, fakes := pipelinetest.New(map[string]float64{"Good": 0.8})
	fakes.Judge.Fail = map[string]bool{"Bad": true}

	stories, report, err := p.Run(context.Background(), []models.Article{
		pipelinetest.Article("a1", "Good", "x", base, 0),
		pipelinetest.Article("a2", "Bad", "x", base, 0),
	})
	require.NoError(t, err)

	require.Len(t, stories, 1)
	assert.Equal(t, "Good", stories[0].Headline)
	assert.Equal(t, 1, report.ScoringFailures)
	assert.Equal(t, 3, fakes.Judge.Calls, "failed cluster retried once")
	assert.NotEmpty(t, report.Errors)
}

func TestRun_EmbeddingFailureStillScored(t *testing.T) {
	p, fakes := pipelinetest.New(nil)
	fakes.Embedder.Fail = map[string]bool{"Flaky": true}

	stories, report, err := p.Run(context.Background(), []models.Article{
		pipelinetest.Article("a1", "Flaky - A", "x", base, 0),
		pipelinetest.Article("a2", "Flaky - B", "x", base, 0),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, report.EmbeddingFailures)
	assert.Len(t, stories, 2, "each failed article becomes its own singleton")
}

func TestRun_ResearchFailureCounted(t *testing.T) {
	p, fakes := pipelinetest.New(map[string]float64{"Hot": 0.95})
	fakes.Researcher.Err = errors.New("research down")

	stories, report, err := p.Run(context.Background(), []models.Article{
		pipelinetest.Article("a1", "Hot", "x", base, 0),
	})
	require.NoError(t, err)

	require.Len(t, stories, 1)
	assert.False(t, stories[0].ResearchEnriched)
	assert.NotEmpty(t, stories[0].Draft)
	assert.Equal(t, 1, report.ResearchFailures)
}

func TestRun_EmptyAndDuplicateIDs(t *testing.T) {
	p, _ := pipelinetest.New(nil)

	stories, report, err := p.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, stories)
	assert.Zero(t, report.Clusters)

	a := pipelinetest.Article("a1", "Same", "x", base, 0)
	stories, report, err = p.Run(context.Background(), []models.Article{a, a})
	require.NoError(t, err)
	assert.Len(t, stories, 1)
	assert.Equal(t, 1, report.ArticlesProcessed)
}

func TestRun_StableOrderForEqualScores(t *testing.T) {
	p, _ := pipelinetest.New(nil)

	var articles []models.Article
	for i, title := range []string{"Alpha", "Beta", "Gamma", "Delta"} {
		articles = append(articles, pipelinetest.Article(title, title, "x", base, i))
	}

	first, _, err := p.Run(context.Background(), articles)
	require.NoError(t, err)
	second, _, err := p.Run(context.Background(), articles)
	require.NoError(t, err)

	require.Len(t, first, 4)
	for i := range first {
		assert.Equal(t, first[i].Headline, second[i].Headline)
	}
}

func TestScan_CollectionError(t *testing.T) {
	p, _ := pipelinetest.New(nil)
	collector := &pipelinetest.Collector{Err: errors.New("feed host down")}

	_, err := p.Scan(context.Background(), collector, base, "")
	require.Error(t, err)
	assert.True(t, apperr.IsCollection(err))
}

func TestScan_ReturnsRadarResponse(t *testing.T) {
	p, _ := pipelinetest.New(map[string]float64{"Fresh": 0.6})
	collector := &pipelinetest.Collector{Articles: []models.Article{
		pipelinetest.Article("old", "Stale", "x", base, -120),
		pipelinetest.Article("new", "Fresh", "x", base, 30),
	}}

	resp, err := p.Scan(context.Background(), collector, base, "")
	require.NoError(t, err)

	require.Len(t, resp.Stories, 1)
	assert.Equal(t, "Fresh", resp.Stories[0].Headline)
	assert.Equal(t, 1, resp.Report.ArticlesProcessed)
	assert.False(t, resp.GeneratedAt.IsZero())
}
