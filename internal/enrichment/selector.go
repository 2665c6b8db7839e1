// Package enrichment decides per story whether a short summary is enough or
// whether it deserves a full draft and deep research.
package enrichment

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/johnrirwin/newsradar/internal/apperr"
	"github.com/johnrirwin/newsradar/internal/logging"
	"github.com/johnrirwin/newsradar/internal/models"
	"github.com/johnrirwin/newsradar/internal/scoring"
)

const (
	DefaultEscalationThreshold = 0.7
	DefaultResearchMaxSources  = 20

	maxDraftArticles   = 5
	maxStorySources    = 5
	maxQueryEntities   = 5
	researchSectionTag = "## Deep Research Analysis"
)

// DraftRequest carries everything the drafter may use
type DraftRequest struct {
	Headline  string
	WhyNow    string
	Reasoning string
	Articles  []models.Article
	Entities  []models.Entity
	Timeline  []models.TimelineEvent
}

// Drafter writes a full narrative draft for an escalated story
type Drafter interface {
	Draft(ctx context.Context, req DraftRequest) (string, error)
}

// ResearchResult is what a deep research pass returns
type ResearchResult struct {
	Report  string
	Sources []string
}

// Researcher runs a deep research pass for a query
type Researcher interface {
	Research(ctx context.Context, query string, maxSources int) (ResearchResult, error)
}

type Config struct {
	EscalationThreshold float64
	DisableResearch     bool
	ResearchMaxSources  int
	DraftTimeout        time.Duration
	ResearchTimeout     time.Duration
}

// Result is the outcome of selecting one story
type Result struct {
	Story         models.Story
	Escalated     bool
	DraftFallback bool
	// ResearchErr is set when research failed; Story is still usable
	ResearchErr error
}

type Selector struct {
	drafter    Drafter
	researcher Researcher
	gate       *semaphore.Weighted
	cfg        Config
	logger     *logging.Logger
}

func New(drafter Drafter, researcher Researcher, gate *semaphore.Weighted, cfg Config, logger *logging.Logger) *Selector {
	if cfg.EscalationThreshold <= 0 {
		cfg.EscalationThreshold = DefaultEscalationThreshold
	}
	if cfg.ResearchMaxSources <= 0 {
		cfg.ResearchMaxSources = DefaultResearchMaxSources
	}
	if cfg.DraftTimeout <= 0 {
		cfg.DraftTimeout = 90 * time.Second
	}
	if cfg.ResearchTimeout <= 0 {
		cfg.ResearchTimeout = 3 * time.Minute
	}
	if gate == nil {
		gate = semaphore.NewWeighted(5)
	}
	return &Selector{
		drafter:    drafter,
		researcher: researcher,
		gate:       gate,
		cfg:        cfg,
		logger:     logger,
	}
}

// Threshold returns the escalation cut-off in use
func (s *Selector) Threshold() float64 {
	return s.cfg.EscalationThreshold
}

// ShouldEscalate reports whether a story with this overall score gets the
// full treatment. The comparison is inclusive.
func (s *Selector) ShouldEscalate(overall float64) bool {
	return overall >= s.cfg.EscalationThreshold
}

// BaseStory builds the un-enriched story from a scored cluster
func BaseStory(scored scoring.Scored) models.Story {
	story := models.Story{
		ID:           scored.Cluster.ID,
		Cluster:      scored.Cluster,
		Headline:     scored.Headline,
		Hotness:      scored.Hotness,
		WhyNow:       scored.WhyNow,
		Entities:     scored.Entities,
		Timeline:     scored.Timeline,
		ArticleCount: scored.Cluster.Size,
	}
	if len(scored.Members) > 0 {
		story.Representative = scored.Members[0]
	}

	urls := make([]string, 0, maxStorySources)
	for _, a := range scored.Members {
		if a.URL != "" {
			urls = append(urls, a.URL)
		}
	}
	story.Sources = MergeSources(nil, urls)
	if len(story.Sources) > maxStorySources {
		story.Sources = story.Sources[:maxStorySources]
	}
	return story
}

// Select applies the escalation policy. Below the threshold no external
// service is called. At or above it a draft is written (falling back to a
// local rendering) and, unless disabled, deep research is appended.
func (s *Selector) Select(ctx context.Context, scored scoring.Scored) Result {
	story := BaseStory(scored)
	if !s.ShouldEscalate(scored.Hotness.Overall) {
		return Result{Story: story}
	}

	res := Result{Escalated: true}

	draft, err := s.draft(ctx, scored)
	if err != nil {
		s.logger.Warn("Draft generation failed, using fallback", logging.WithFields(map[string]interface{}{
			"cluster_id": scored.Cluster.ID,
			"error":      err.Error(),
		}))
		draft = FallbackDraft(story)
		res.DraftFallback = true
	}
	story.Draft = draft

	if s.cfg.DisableResearch || s.researcher == nil {
		res.Story = story
		return res
	}

	query := ResearchQuery(story)
	research, err := s.research(ctx, query)
	if err != nil {
		rerr := &apperr.ResearchError{Query: query, Err: err}
		s.logger.Error("Deep research failed", logging.WithFields(map[string]interface{}{
			"cluster_id": scored.Cluster.ID,
			"error":      rerr.Error(),
		}))
		res.ResearchErr = rerr
		res.Story = story
		return res
	}

	story.Draft = AppendResearch(story.Draft, research)
	story.Sources = MergeSources(story.Sources, research.Sources)
	story.ResearchEnriched = true

	s.logger.Info("Story enriched with deep research", logging.WithFields(map[string]interface{}{
		"cluster_id": scored.Cluster.ID,
		"sources":    len(story.Sources),
	}))

	res.Story = story
	return res
}

func (s *Selector) draft(ctx context.Context, scored scoring.Scored) (string, error) {
	if s.drafter == nil {
		return "", fmt.Errorf("no drafter configured")
	}
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return "", err
	}
	defer s.gate.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.DraftTimeout)
	defer cancel()

	articles := scored.Members
	if len(articles) > maxDraftArticles {
		articles = articles[:maxDraftArticles]
	}

	draft, err := s.drafter.Draft(callCtx, DraftRequest{
		Headline:  scored.Headline,
		WhyNow:    scored.WhyNow,
		Reasoning: scored.Hotness.Reasoning,
		Articles:  articles,
		Entities:  scored.Entities,
		Timeline:  scored.Timeline,
	})
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(draft) == "" {
		return "", fmt.Errorf("drafter returned an empty draft")
	}
	return draft, nil
}

func (s *Selector) research(ctx context.Context, query string) (ResearchResult, error) {
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return ResearchResult{}, err
	}
	defer s.gate.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.ResearchTimeout)
	defer cancel()

	return s.researcher.Research(callCtx, query, s.cfg.ResearchMaxSources)
}

// ResearchQuery is "<headline>. Context: <why_now>. Key entities: <names>"
func ResearchQuery(story models.Story) string {
	names := make([]string, 0, maxQueryEntities)
	for _, e := range story.Entities {
		if len(names) == maxQueryEntities {
			break
		}
		names = append(names, e.Name)
	}
	return fmt.Sprintf("%s. Context: %s. Key entities: %s", story.Headline, story.WhyNow, strings.Join(names, ", "))
}
