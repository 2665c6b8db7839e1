// Package pipelinetest provides in-memory stand-ins for the external
// services the pipeline calls, plus a helper that wires a full pipeline
// from them.
package pipelinetest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/johnrirwin/newsradar/internal/dedup"
	"github.com/johnrirwin/newsradar/internal/enrichment"
	"github.com/johnrirwin/newsradar/internal/models"
	"github.com/johnrirwin/newsradar/internal/pipeline"
	"github.com/johnrirwin/newsradar/internal/scoring"
	"github.com/johnrirwin/newsradar/internal/testutil"
)

const dims = 64

// Topic is the part of a title before " - ". Articles sharing a topic are
// near-duplicates for the fake embedder.
func Topic(title string) string {
	if i := strings.Index(title, " - "); i >= 0 {
		return title[:i]
	}
	return title
}

// Embedder gives each topic its own one-hot vector
type Embedder struct {
	mu     sync.Mutex
	topics map[string]int
	Fail   map[string]bool
	Calls  int
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	title := strings.SplitN(text, "\n\n", 2)[0]
	topic := Topic(title)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.Calls++
	if e.Fail[topic] {
		return nil, errors.New("embedding unavailable")
	}
	if e.topics == nil {
		e.topics = map[string]int{}
	}
	idx, ok := e.topics[topic]
	if !ok {
		idx = len(e.topics)
		e.topics[topic] = idx
	}
	vec := make([]float32, dims)
	vec[idx%dims] = 1
	return vec, nil
}

// Judge scores clusters by the topic of their first article
type Judge struct {
	mu      sync.Mutex
	Scores  map[string]float64
	Default float64
	Fail    map[string]bool
	Calls   int
}

func (j *Judge) Judge(ctx context.Context, req scoring.JudgeRequest) ([]byte, error) {
	j.mu.Lock()
	j.Calls++
	j.mu.Unlock()

	if len(req.Articles) == 0 {
		return nil, errors.New("empty request")
	}
	first := req.Articles[0]
	topic := Topic(first.Title)
	if j.Fail[topic] {
		return []byte(`{"hotness": {"overall": 2}}`), nil
	}

	overall, ok := j.Scores[topic]
	if !ok {
		overall = j.Default
	}

	resp := map[string]interface{}{
		"hotness": map[string]interface{}{
			"overall": overall, "unexpectedness": 0.5, "materiality": 0.5,
			"velocity": 0.5, "breadth": 0.5, "credibility": 0.5,
			"reasoning": "fake judgment",
		},
		"headline": topic,
		"why_now":  "Because " + topic,
		"entities": []map[string]interface{}{
			{"name": topic, "type": "company", "relevance": 0.8},
		},
		"timeline": []map[string]interface{}{
			{"timestamp": first.PublishedAt.Format(time.RFC3339), "description": first.Title, "source_url": first.URL, "event_type": "first_mention"},
		},
	}
	return json.Marshal(resp)
}

type Drafter struct {
	Err error
}

func (d *Drafter) Draft(ctx context.Context, req enrichment.DraftRequest) (string, error) {
	if d.Err != nil {
		return "", d.Err
	}
	return fmt.Sprintf("# %s\n\n%s", req.Headline, req.WhyNow), nil
}

type Researcher struct {
	mu    sync.Mutex
	Err   error
	Calls int
}

func (r *Researcher) Research(ctx context.Context, query string, maxSources int) (enrichment.ResearchResult, error) {
	r.mu.Lock()
	r.Calls++
	r.mu.Unlock()
	if r.Err != nil {
		return enrichment.ResearchResult{}, r.Err
	}
	return enrichment.ResearchResult{
		Report:  "Research on " + query,
		Sources: []string{"https://research.example.org/1", "https://research.example.org/2"},
	}, nil
}

// Fakes bundles the stand-ins behind a pipeline built by New
type Fakes struct {
	Embedder   *Embedder
	Judge      *Judge
	Drafter    *Drafter
	Researcher *Researcher
}

// New builds a pipeline from fresh fakes. Topics missing from scores get
// a score of 0.5.
func New(scores map[string]float64) (*pipeline.Pipeline, *Fakes) {
	f := &Fakes{
		Embedder:   &Embedder{},
		Judge:      &Judge{Scores: scores, Default: 0.5},
		Drafter:    &Drafter{},
		Researcher: &Researcher{},
	}
	logger := testutil.NullLogger()

	d := dedup.New(f.Embedder, nil, nil, dedup.Config{}, logger)
	s := scoring.New(f.Judge, nil, scoring.Config{}, logger)
	sel := enrichment.New(f.Drafter, f.Researcher, nil, enrichment.Config{}, logger)
	return pipeline.New(d, s, sel, nil, 0, logger), f
}

// Article builds a test article published at base+minutes
func Article(id, title, source string, base time.Time, minutes int) models.Article {
	return models.Article{
		ID:          id,
		Title:       title,
		Content:     "Content of " + title,
		URL:         "https://news.example.com/" + id,
		Source:      source,
		PublishedAt: base.Add(time.Duration(minutes) * time.Minute),
	}
}

// Collector serves a fixed article list, filtered by since
type Collector struct {
	mu       sync.Mutex
	Articles []models.Article
	Err      error
	Sinces   []time.Time
}

func (c *Collector) Fetch(ctx context.Context, since time.Time, query string) ([]models.Article, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sinces = append(c.Sinces, since)
	if c.Err != nil {
		return nil, c.Err
	}
	var out []models.Article
	for _, a := range c.Articles {
		if a.PublishedAt.After(since) {
			out = append(out, a)
		}
	}
	return out, nil
}

// Add appends articles to be served by later fetches
func (c *Collector) Add(articles ...models.Article) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Articles = append(c.Articles, articles...)
}
