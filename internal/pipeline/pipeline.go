// Package pipeline runs articles through deduplication, scoring and
// enrichment and returns the resulting stories ranked by hotness.
package pipeline

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/johnrirwin/newsradar/internal/apperr"
	"github.com/johnrirwin/newsradar/internal/dedup"
	"github.com/johnrirwin/newsradar/internal/enrichment"
	"github.com/johnrirwin/newsradar/internal/logging"
	"github.com/johnrirwin/newsradar/internal/models"
	"github.com/johnrirwin/newsradar/internal/scoring"
	"github.com/johnrirwin/newsradar/internal/tagging"
)

// Collector delivers articles published strictly after since.
// An empty query means no topic filter.
type Collector interface {
	Fetch(ctx context.Context, since time.Time, query string) ([]models.Article, error)
}

type Pipeline struct {
	dedup    *dedup.Deduplicator
	scorer   *scoring.Scorer
	selector *enrichment.Selector
	tagger   *tagging.Tagger
	topK     int
	logger   *logging.Logger
	now      func() time.Time
}

// New wires the stages together. topK <= 0 keeps every story.
func New(d *dedup.Deduplicator, s *scoring.Scorer, sel *enrichment.Selector, tagger *tagging.Tagger, topK int, logger *logging.Logger) *Pipeline {
	if tagger == nil {
		tagger = tagging.New()
	}
	return &Pipeline{
		dedup:    d,
		scorer:   s,
		selector: sel,
		tagger:   tagger,
		topK:     topK,
		logger:   logger,
		now:      time.Now,
	}
}

// Run processes one batch. Failures local to an article or a cluster are
// counted in the report and never abort the run; only cancellation of ctx
// does.
func (p *Pipeline) Run(ctx context.Context, articles []models.Article) ([]models.Story, models.RunReport, error) {
	start := p.now()
	report := models.RunReport{RunID: uuid.NewString()}

	byID := make(map[string]models.Article, len(articles))
	unique := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		if _, dup := byID[a.ID]; dup {
			continue
		}
		byID[a.ID] = a
		unique = append(unique, a)
	}
	report.ArticlesProcessed = len(unique)

	clusters, dreport, err := p.dedup.Cluster(ctx, unique)
	if err != nil {
		return nil, report, fmt.Errorf("clustering articles: %w", err)
	}
	report.Clusters = len(clusters)
	report.EmbeddingFailures = dreport.EmbeddingFailures
	report.Errors = append(report.Errors, dreport.Errors...)

	results := make([]*enrichment.Result, len(clusters))
	var (
		mu   sync.Mutex
		errs []string
	)
	record := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		errs = append(errs, err.Error())
	}

	var g errgroup.Group
	for i, c := range clusters {
		i, c := i, c
		g.Go(func() error {
			members := make([]models.Article, 0, len(c.MemberIDs))
			for _, id := range c.MemberIDs {
				members = append(members, byID[id])
			}

			scored, err := p.scorer.Score(ctx, c, members)
			if err != nil {
				p.logger.Warn("Skipping cluster", logging.WithFields(map[string]interface{}{
					"cluster_id": c.ID,
					"error":      err.Error(),
				}))
				record(err)
				return nil
			}

			res := p.selector.Select(ctx, scored)
			if res.ResearchErr != nil {
				record(res.ResearchErr)
			}
			results[i] = &res
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, report, err
	}

	stories := make([]models.Story, 0, len(results))
	for _, res := range results {
		if res == nil {
			report.ScoringFailures++
			continue
		}
		if res.Escalated {
			report.Escalated++
		}
		if res.ResearchErr != nil {
			report.ResearchFailures++
		}

		story := res.Story
		story.RunID = report.RunID
		story.CreatedAt = start
		story.Tags = p.tagger.InferTags(story.Representative.Title+" "+story.Headline, story.Representative.Content)
		stories = append(stories, story)
	}

	sort.SliceStable(stories, func(i, j int) bool {
		return stories[i].Hotness.Overall > stories[j].Hotness.Overall
	})
	if p.topK > 0 && len(stories) > p.topK {
		stories = stories[:p.topK]
	}

	report.Stories = len(stories)
	report.Errors = append(report.Errors, errs...)
	report.ProcessingDuration = p.now().Sub(start)

	p.logger.Info("Pipeline run complete", logging.WithFields(map[string]interface{}{
		"run_id":             report.RunID,
		"articles":           report.ArticlesProcessed,
		"clusters":           report.Clusters,
		"stories":            report.Stories,
		"escalated":          report.Escalated,
		"scoring_failures":   report.ScoringFailures,
		"research_failures":  report.ResearchFailures,
		"embedding_failures": report.EmbeddingFailures,
		"duration_ms":        report.ProcessingDuration.Milliseconds(),
	}))

	return stories, report, nil
}

// Scan collects articles newer than since and runs them through the
// pipeline for the market-monitoring view.
func (p *Pipeline) Scan(ctx context.Context, collector Collector, since time.Time, query string) (models.RadarResponse, error) {
	articles, err := collector.Fetch(ctx, since, query)
	if err != nil {
		if !apperr.IsCollection(err) {
			err = &apperr.CollectionError{Err: err}
		}
		return models.RadarResponse{}, err
	}

	stories, report, err := p.Run(ctx, articles)
	if err != nil {
		return models.RadarResponse{}, err
	}

	return models.RadarResponse{
		Stories:     stories,
		Report:      report,
		GeneratedAt: p.now(),
	}, nil
}

// Radar binds a pipeline to its collector for on-demand scans
type Radar struct {
	pipeline  *Pipeline
	collector Collector
}

func NewRadar(p *Pipeline, collector Collector) *Radar {
	return &Radar{pipeline: p, collector: collector}
}

func (r *Radar) Scan(ctx context.Context, since time.Time, query string) (models.RadarResponse, error) {
	return r.pipeline.Scan(ctx, r.collector, since, query)
}
