// Package aggregator fans collection out over every configured source and
// serves the merged, deduplicated article set to the pipeline.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/johnrirwin/newsradar/internal/cache"
	"github.com/johnrirwin/newsradar/internal/logging"
	"github.com/johnrirwin/newsradar/internal/models"
	"github.com/johnrirwin/newsradar/internal/sources"
	"github.com/johnrirwin/newsradar/internal/tagging"
)

const (
	snapshotCacheKey   = "articles:snapshot"
	DefaultSnapshotTTL = 2 * time.Minute
)

// Aggregator implements pipeline.Collector. One collection pass is shared by
// every caller until the snapshot expires, so concurrent refreshes for
// different readers do not multiply upstream requests.
type Aggregator struct {
	fetchers    []sources.Fetcher
	cache       cache.Cache
	snapshotTTL time.Duration
	logger      *logging.Logger
	mu          sync.Mutex
}

func New(fetchers []sources.Fetcher, c cache.Cache, snapshotTTL time.Duration, logger *logging.Logger) *Aggregator {
	if snapshotTTL <= 0 {
		snapshotTTL = DefaultSnapshotTTL
	}
	return &Aggregator{
		fetchers:    fetchers,
		cache:       c,
		snapshotTTL: snapshotTTL,
		logger:      logger,
	}
}

// Fetch returns articles published strictly after since, newest first. A
// non-empty query keeps only articles mentioning it as a whole phrase.
func (a *Aggregator) Fetch(ctx context.Context, since time.Time, query string) ([]models.Article, error) {
	articles, err := a.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return filterArticles(articles, since, query), nil
}

func (a *Aggregator) snapshot(ctx context.Context) ([]models.Article, error) {
	if cached, ok := a.loadFromCache(); ok {
		return cached, nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// Another caller may have collected while we waited
	if cached, ok := a.loadFromCache(); ok {
		return cached, nil
	}

	articles, err := a.collect(ctx)
	if err != nil {
		return nil, err
	}

	if a.cache != nil && len(articles) > 0 {
		a.cache.SetWithTTL(snapshotCacheKey, articles, a.snapshotTTL)
	}
	return articles, nil
}

func (a *Aggregator) collect(ctx context.Context) ([]models.Article, error) {
	var wg sync.WaitGroup
	results := make(chan sources.FetchResult, len(a.fetchers))

	for _, fetcher := range a.fetchers {
		wg.Add(1)
		go func(f sources.Fetcher) {
			defer wg.Done()

			articles, err := f.Fetch(ctx)
			results <- sources.FetchResult{
				Articles: articles,
				Source:   f.SourceInfo(),
				Error:    err,
			}
		}(fetcher)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	all := make([]models.Article, 0)
	failures := 0
	var lastErr error
	for result := range results {
		if result.Error != nil {
			failures++
			lastErr = result.Error
			a.logger.Warn("Failed to fetch from source", logging.WithFields(map[string]interface{}{
				"source": result.Source.Name,
				"error":  result.Error.Error(),
			}))
			continue
		}

		a.logger.Debug("Fetched articles from source", logging.WithFields(map[string]interface{}{
			"source": result.Source.Name,
			"count":  len(result.Articles),
		}))
		all = append(all, result.Articles...)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(a.fetchers) > 0 && failures == len(a.fetchers) {
		return nil, fmt.Errorf("all %d sources failed: %w", failures, lastErr)
	}

	deduped := deduplicate(all)
	sortByDate(deduped)

	a.logger.Info("Collection complete", logging.WithFields(map[string]interface{}{
		"total_articles": len(deduped),
		"sources_used":   len(a.fetchers),
		"sources_failed": failures,
	}))

	return deduped, nil
}

// Invalidate drops the shared snapshot so the next Fetch collects again
func (a *Aggregator) Invalidate() {
	if a.cache != nil {
		a.cache.Delete(snapshotCacheKey)
	}
}

func (a *Aggregator) loadFromCache() ([]models.Article, bool) {
	if a.cache == nil {
		return nil, false
	}

	cached, ok := a.cache.Get(snapshotCacheKey)
	if !ok || cached == nil {
		return nil, false
	}

	if articles, ok := cached.([]models.Article); ok {
		return articles, true
	}

	// Redis hands back decoded JSON rather than the original slice
	raw, err := json.Marshal(cached)
	if err != nil {
		return nil, false
	}
	var decoded []models.Article
	if err := json.Unmarshal(raw, &decoded); err != nil || len(decoded) == 0 {
		return nil, false
	}
	return decoded, true
}

func (a *Aggregator) GetSources() []models.SourceInfo {
	sourcesInfo := make([]models.SourceInfo, 0, len(a.fetchers))
	for _, f := range a.fetchers {
		sourcesInfo = append(sourcesInfo, f.SourceInfo())
	}
	return sourcesInfo
}

func filterArticles(articles []models.Article, since time.Time, query string) []models.Article {
	query = strings.TrimSpace(query)
	filtered := make([]models.Article, 0, len(articles))
	for _, article := range articles {
		if !since.IsZero() && !article.PublishedAt.After(since) {
			continue
		}
		if query != "" && !tagging.ContainsAny(article.Title, article.Content, []string{query}) {
			continue
		}
		filtered = append(filtered, article)
	}
	return filtered
}

// deduplicate drops repeated ids and repeated links. Copies that only share
// a title are kept so clustering sees every outlet carrying the story.
func deduplicate(articles []models.Article) []models.Article {
	seen := make(map[string]bool)
	urlSeen := make(map[string]bool)
	result := make([]models.Article, 0, len(articles))

	for _, article := range articles {
		if seen[article.ID] {
			continue
		}

		normalizedURL := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(article.URL)), "/")
		if normalizedURL != "" && urlSeen[normalizedURL] {
			continue
		}

		seen[article.ID] = true
		if normalizedURL != "" {
			urlSeen[normalizedURL] = true
		}
		result = append(result, article)
	}

	return result
}

func sortByDate(articles []models.Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		if !articles[i].PublishedAt.Equal(articles[j].PublishedAt) {
			return articles[i].PublishedAt.After(articles[j].PublishedAt)
		}
		return articles[i].ID < articles[j].ID
	})
}
