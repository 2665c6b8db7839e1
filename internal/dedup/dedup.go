// Package dedup groups articles that report the same event. Articles are
// embedded, linked when their cosine similarity reaches a threshold and
// clustered as connected components of that graph.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/johnrirwin/newsradar/internal/apperr"
	"github.com/johnrirwin/newsradar/internal/logging"
	"github.com/johnrirwin/newsradar/internal/models"
)

const (
	DefaultSimilarityThreshold = 0.85
	contentRunesForEmbedding   = 500
)

// DefaultReputableSources score full marks on source reputation
var DefaultReputableSources = []string{"reuters", "bloomberg", "wsj", "ft.com", "cnbc"}

// Embedder turns text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingCache stores vectors keyed by content hash
type EmbeddingCache interface {
	Get(hash string) ([]float32, bool)
	Set(hash string, vec []float32)
}

type Config struct {
	SimilarityThreshold float64
	MaxConcurrent       int
	EmbedTimeout        time.Duration
	ReputableSources    []string
}

func (c Config) withDefaults() Config {
	if c.SimilarityThreshold <= 0 {
		c.SimilarityThreshold = DefaultSimilarityThreshold
	}
	if c.MaxConcurrent <= 0 {
		c.MaxConcurrent = 5
	}
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = 30 * time.Second
	}
	if c.ReputableSources == nil {
		c.ReputableSources = DefaultReputableSources
	}
	return c
}

// Report counts what happened during one clustering pass
type Report struct {
	Articles          int
	Clusters          int
	EmbeddingFailures int
	CacheHits         int
	Errors            []string
}

type Deduplicator struct {
	embedder Embedder
	cache    EmbeddingCache
	gate     *semaphore.Weighted
	cfg      Config
	logger   *logging.Logger
}

// New creates a deduplicator. gate is shared with the other stages that call
// external services; nil creates a private one sized by MaxConcurrent.
func New(embedder Embedder, cache EmbeddingCache, gate *semaphore.Weighted, cfg Config, logger *logging.Logger) *Deduplicator {
	cfg = cfg.withDefaults()
	if gate == nil {
		gate = semaphore.NewWeighted(int64(cfg.MaxConcurrent))
	}
	return &Deduplicator{
		embedder: embedder,
		cache:    cache,
		gate:     gate,
		cfg:      cfg,
		logger:   logger,
	}
}

// ContentHash keys the embedding cache
func ContentHash(a models.Article) string {
	sum := sha256.Sum256([]byte(a.Title + a.Content))
	return hex.EncodeToString(sum[:])
}

// EmbeddingText is the text sent to the embedder for a
func EmbeddingText(a models.Article) string {
	return a.Title + "\n\n" + truncateRunes(a.Content, contentRunesForEmbedding)
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// Cluster partitions articles into clusters of near-duplicates.
// Every input article lands in exactly one cluster. An article whose
// embedding fails becomes a singleton and is counted in the report.
// Clusters are returned largest first.
func (d *Deduplicator) Cluster(ctx context.Context, articles []models.Article) ([]models.Cluster, Report, error) {
	report := Report{Articles: len(articles)}
	if len(articles) == 0 {
		return nil, report, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, report, err
	}

	vectors, err := d.embedAll(ctx, articles, &report)
	if err != nil {
		return nil, report, err
	}

	groups := connectedComponents(vectors, d.cfg.SimilarityThreshold)

	clusters := make([]models.Cluster, 0, len(groups))
	for i, group := range groups {
		members := make([]models.Article, len(group))
		for j, idx := range group {
			members[j] = articles[idx]
		}
		ranked := RankMembers(members, d.cfg.ReputableSources)

		ids := make([]string, len(ranked))
		for j, a := range ranked {
			ids[j] = a.ID
		}
		clusters = append(clusters, models.Cluster{
			ID:               fmt.Sprintf("cluster_%04d", i),
			MemberIDs:        ids,
			RepresentativeID: ids[0],
			Size:             len(ids),
		})
	}

	sort.SliceStable(clusters, func(i, j int) bool {
		return clusters[i].Size > clusters[j].Size
	})
	report.Clusters = len(clusters)

	d.logger.Info("Clustered articles", logging.WithFields(map[string]interface{}{
		"articles":           report.Articles,
		"clusters":           report.Clusters,
		"embedding_failures": report.EmbeddingFailures,
		"cache_hits":         report.CacheHits,
	}))

	return clusters, report, nil
}

// embedAll returns one vector per article; failed articles get nil
func (d *Deduplicator) embedAll(ctx context.Context, articles []models.Article, report *Report) ([][]float32, error) {
	vectors := make([][]float32, len(articles))
	failures := make([]error, len(articles))
	hits := make([]bool, len(articles))

	var g errgroup.Group
	for i := range articles {
		i := i
		hash := ContentHash(articles[i])
		if d.cache != nil {
			if vec, ok := d.cache.Get(hash); ok {
				vectors[i] = vec
				hits[i] = true
				continue
			}
		}

		g.Go(func() error {
			if err := d.gate.Acquire(ctx, 1); err != nil {
				return err
			}
			defer d.gate.Release(1)

			callCtx, cancel := context.WithTimeout(ctx, d.cfg.EmbedTimeout)
			defer cancel()

			vec, err := d.embedder.Embed(callCtx, EmbeddingText(articles[i]))
			if err != nil {
				failures[i] = &apperr.EmbeddingError{ArticleID: articles[i].ID, Err: err}
				return nil
			}
			if len(vec) == 0 {
				failures[i] = &apperr.EmbeddingError{ArticleID: articles[i].ID, Err: fmt.Errorf("empty vector")}
				return nil
			}
			vectors[i] = vec
			if d.cache != nil {
				d.cache.Set(hash, vec)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	for i, err := range failures {
		if hits[i] {
			report.CacheHits++
		}
		if err == nil {
			continue
		}
		report.EmbeddingFailures++
		report.Errors = append(report.Errors, err.Error())
		d.logger.Warn("Embedding failed, isolating article", logging.WithFields(map[string]interface{}{
			"article_id": articles[i].ID,
			"error":      err.Error(),
		}))
	}
	return vectors, nil
}

// connectedComponents returns groups of input indices. Groups are ordered
// by their lowest index and indices within a group ascend.
func connectedComponents(vectors [][]float32, threshold float64) [][]int {
	n := len(vectors)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}

	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra == rb {
			return
		}
		if ra < rb {
			parent[rb] = ra
		} else {
			parent[ra] = rb
		}
	}

	norms := make([]float64, n)
	for i, v := range vectors {
		norms[i] = norm(v)
	}

	for i := 0; i < n; i++ {
		if norms[i] == 0 {
			continue
		}
		for j := i + 1; j < n; j++ {
			if norms[j] == 0 || len(vectors[i]) != len(vectors[j]) {
				continue
			}
			if dot(vectors[i], vectors[j])/(norms[i]*norms[j]) >= threshold {
				union(i, j)
			}
		}
	}

	byRoot := make(map[int]int)
	var groups [][]int
	for i := 0; i < n; i++ {
		root := find(i)
		pos, ok := byRoot[root]
		if !ok {
			pos = len(groups)
			byRoot[root] = pos
			groups = append(groups, nil)
		}
		groups[pos] = append(groups[pos], i)
	}
	return groups
}
