// Package feed keeps each reader's persisted feed current. A refresh pulls
// only articles newer than the reader's watermark, runs them through the
// pipeline, personalizes the stories and merges them into the stored feed.
package feed

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/johnrirwin/newsradar/internal/apperr"
	"github.com/johnrirwin/newsradar/internal/cache"
	"github.com/johnrirwin/newsradar/internal/database"
	"github.com/johnrirwin/newsradar/internal/learning"
	"github.com/johnrirwin/newsradar/internal/logging"
	"github.com/johnrirwin/newsradar/internal/models"
	"github.com/johnrirwin/newsradar/internal/pipeline"
	"github.com/johnrirwin/newsradar/internal/tagging"
)

const (
	DefaultInitialWindow = 24 * time.Hour
	DefaultPageSize      = 50
	MaxPageSize          = 200
)

// Store is the persistence the updater needs
type Store interface {
	InsertNewItems(ctx context.Context, items []models.FeedItem) (int, error)
	QueryItems(ctx context.Context, userID string, f models.FeedFilter) ([]models.FeedItem, int, error)
	SetStatus(ctx context.Context, userID, articleID string, status models.FeedStatus, at time.Time) (models.FeedItem, error)
	DeleteItemsOlderThan(ctx context.Context, cutoff time.Time) (int64, error)

	GetState(ctx context.Context, userID string) (models.UserState, error)
	SaveRefresh(ctx context.Context, userID string, lastSeen, refreshedAt time.Time) error

	GetPreferences(ctx context.Context, userID string) (models.UserPreferences, error)
	SavePreferences(ctx context.Context, prefs models.UserPreferences) error
}

// Runner turns a batch of articles into ranked stories
type Runner interface {
	Run(ctx context.Context, articles []models.Article) ([]models.Story, models.RunReport, error)
}

// Learner supplies learned weights and records reader interactions
type Learner interface {
	Weights(ctx context.Context, userID string) (map[string]float64, error)
	PredictRelevance(c learning.Candidate, weights map[string]float64) float64
	Record(ctx context.Context, in models.Interaction) (models.Interaction, error)
}

type Config struct {
	// InitialWindow bounds the first refresh of a reader with no watermark
	InitialWindow time.Duration
}

type Updater struct {
	collector pipeline.Collector
	runner    Runner
	store     Store
	learner   Learner
	cache     *cache.FeedCache
	locker    cache.Locker
	window    time.Duration
	logger    *logging.Logger
	now       func() time.Time
}

func New(collector pipeline.Collector, runner Runner, store Store, learner Learner, feedCache *cache.FeedCache, locker cache.Locker, cfg Config, logger *logging.Logger) *Updater {
	if cfg.InitialWindow <= 0 {
		cfg.InitialWindow = DefaultInitialWindow
	}
	if locker == nil {
		locker = cache.NewMemoryLocker()
	}
	return &Updater{
		collector: collector,
		runner:    runner,
		store:     store,
		learner:   learner,
		cache:     feedCache,
		locker:    locker,
		window:    cfg.InitialWindow,
		logger:    logger,
		now:       time.Now,
	}
}

// Refresh merges every article newer than the reader's watermark into the
// reader's feed. Refreshes for the same reader never overlap.
func (u *Updater) Refresh(ctx context.Context, userID string) (models.RefreshResult, error) {
	result := models.RefreshResult{UserID: userID}
	if strings.TrimSpace(userID) == "" {
		return result, apperr.ValidationError{Err: errors.New("user id is required")}
	}

	unlock, err := u.locker.Lock(ctx, "refresh:"+userID)
	if err != nil {
		return result, fmt.Errorf("acquiring refresh lock: %w", err)
	}
	defer unlock()

	log := u.logger.With(map[string]interface{}{"user_id": userID})
	started := u.now()

	state, err := u.store.GetState(ctx, userID)
	if err != nil {
		return result, wrapPersistence("get user state", err)
	}
	result.LastSeenPublishedAt = state.LastSeenPublishedAt

	since := state.LastSeenPublishedAt
	if since.IsZero() {
		since = started.Add(-u.window)
	}

	prefs, err := u.store.GetPreferences(ctx, userID)
	if err != nil {
		return result, wrapPersistence("get preferences", err)
	}

	articles, err := u.collector.Fetch(ctx, since, "")
	if err != nil {
		if !apperr.IsCollection(err) {
			err = &apperr.CollectionError{Err: err}
		}
		log.Warn("Refresh aborted", logging.WithField("error", err.Error()))
		return result, err
	}
	result.ArticlesFetched = len(articles)

	lastSeen := state.LastSeenPublishedAt
	for _, a := range articles {
		if a.PublishedAt.After(lastSeen) {
			lastSeen = a.PublishedAt
		}
	}

	articles = filterSources(articles, prefs.Sources)

	var items []models.FeedItem
	if len(articles) > 0 {
		stories, report, err := u.runner.Run(ctx, articles)
		if err != nil {
			return result, err
		}
		result.FailedClusters = report.ScoringFailures
		result.Errors = report.Errors

		weights, err := u.learner.Weights(ctx, userID)
		if err != nil {
			return result, err
		}

		var filtered int
		items, filtered = u.personalize(userID, stories, prefs, weights, started)
		result.FilteredOut = filtered
	}

	inserted, err := u.store.InsertNewItems(ctx, items)
	if err != nil {
		return result, wrapPersistence("insert feed items", err)
	}

	if err := u.store.SaveRefresh(ctx, userID, lastSeen, started); err != nil {
		return result, wrapPersistence("save refresh state", err)
	}
	if u.cache != nil {
		u.cache.Invalidate(userID)
	}

	_, total, err := u.store.QueryItems(ctx, userID, models.FeedFilter{Limit: 1})
	if err != nil {
		return result, wrapPersistence("count feed items", err)
	}

	result.NewItems = inserted
	result.TotalItems = total
	result.LastSeenPublishedAt = lastSeen

	log.Info("Feed refreshed", logging.WithFields(map[string]interface{}{
		"fetched":         result.ArticlesFetched,
		"new_items":       result.NewItems,
		"filtered_out":    result.FilteredOut,
		"failed_clusters": result.FailedClusters,
		"duration_ms":     u.now().Sub(started).Milliseconds(),
	}))
	return result, nil
}

// personalize drops stories the reader excluded, scores the rest and caps
// them at the reader's article budget, most relevant first.
func (u *Updater) personalize(userID string, stories []models.Story, prefs models.UserPreferences, weights map[string]float64, now time.Time) ([]models.FeedItem, int) {
	items := make([]models.FeedItem, 0, len(stories))
	filtered := 0

	for _, story := range stories {
		rep := story.Representative
		if rep.ID == "" {
			continue
		}

		title := story.Headline
		if title == "" {
			title = rep.Title
		}
		text := rep.Title + " " + story.Headline
		body := rep.Content + " " + story.WhyNow

		if tagging.ContainsAny(text, body, prefs.ExcludedKeywords) {
			filtered++
			continue
		}

		matched := tagging.MatchKeywords(text, body, prefs.Keywords)
		relevance := u.learner.PredictRelevance(learning.CandidateFromStory(story, matched), weights)

		items = append(items, models.FeedItem{
			UserID:          userID,
			ArticleID:       rep.ID,
			StoryID:         story.ID,
			Title:           title,
			Summary:         story.WhyNow,
			URL:             rep.URL,
			Source:          rep.Source,
			PublishedAt:     rep.PublishedAt,
			AddedAt:         now,
			RelevanceScore:  relevance,
			Hotness:         story.Hotness.Overall,
			MatchedKeywords: matched,
			Tags:            story.Tags,
			ClusterSize:     story.Cluster.Size,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].RelevanceScore > items[j].RelevanceScore
	})
	if prefs.MaxArticles > 0 && len(items) > prefs.MaxArticles {
		items = items[:prefs.MaxArticles]
	}
	return items, filtered
}

func filterSources(articles []models.Article, allowed []string) []models.Article {
	if len(allowed) == 0 {
		return articles
	}
	set := make(map[string]bool, len(allowed))
	for _, s := range allowed {
		set[strings.ToLower(strings.TrimSpace(s))] = true
	}
	out := make([]models.Article, 0, len(articles))
	for _, a := range articles {
		if set[strings.ToLower(a.Source)] {
			out = append(out, a)
		}
	}
	return out
}

func wrapPersistence(op string, err error) error {
	if apperr.IsPersistence(err) || errors.Is(err, database.ErrNotFound) {
		return err
	}
	return &apperr.PersistenceError{Op: op, Err: err}
}
