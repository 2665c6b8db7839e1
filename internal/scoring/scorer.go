// Package scoring asks an LLM judge how important a cluster is and turns its
// untrusted JSON answer into a validated hotness judgment.
package scoring

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/johnrirwin/newsradar/internal/apperr"
	"github.com/johnrirwin/newsradar/internal/logging"
	"github.com/johnrirwin/newsradar/internal/models"
)

const (
	maxJudgedArticles   = 3
	maxJudgedContent    = 1000
	defaultJudgeTimeout = 45 * time.Second

	// one retry after a failed attempt, never more
	judgeRetries = 1
)

// JudgeArticle is the bounded view of an article that the judge sees
type JudgeArticle struct {
	Title       string    `json:"title"`
	Source      string    `json:"source"`
	URL         string    `json:"url"`
	PublishedAt time.Time `json:"published_at"`
	Content     string    `json:"content"`
}

// JudgeRequest asks for one cluster's judgment
type JudgeRequest struct {
	ClusterID string         `json:"cluster_id"`
	Articles  []JudgeArticle `json:"articles"`
}

// Judge returns the raw JSON judgment for a cluster
type Judge interface {
	Judge(ctx context.Context, req JudgeRequest) ([]byte, error)
}

// Scored is a cluster plus its validated judgment
type Scored struct {
	Cluster  models.Cluster
	Members  []models.Article
	Hotness  models.HotnessScore
	Headline string
	WhyNow   string
	Entities []models.Entity
	Timeline []models.TimelineEvent
}

type Config struct {
	Timeout time.Duration
}

type Scorer struct {
	judge   Judge
	gate    *semaphore.Weighted
	timeout time.Duration
	retries int
	logger  *logging.Logger
}

func New(judge Judge, gate *semaphore.Weighted, cfg Config, logger *logging.Logger) *Scorer {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultJudgeTimeout
	}
	if gate == nil {
		gate = semaphore.NewWeighted(5)
	}
	return &Scorer{
		judge:   judge,
		gate:    gate,
		timeout: cfg.Timeout,
		retries: judgeRetries,
		logger:  logger,
	}
}

// NewRequest builds the judge request from members in representative order
func NewRequest(cluster models.Cluster, members []models.Article) JudgeRequest {
	n := len(members)
	if n > maxJudgedArticles {
		n = maxJudgedArticles
	}

	req := JudgeRequest{ClusterID: cluster.ID, Articles: make([]JudgeArticle, 0, n)}
	for _, a := range members[:n] {
		req.Articles = append(req.Articles, JudgeArticle{
			Title:       a.Title,
			Source:      a.Source,
			URL:         a.URL,
			PublishedAt: a.PublishedAt,
			Content:     truncateRunes(a.Content, maxJudgedContent),
		})
	}
	return req
}

// Score judges one cluster. members must be in representative order.
// Any transport failure, timeout or invalid answer is a ScoringError once
// the retry budget is spent.
func (s *Scorer) Score(ctx context.Context, cluster models.Cluster, members []models.Article) (Scored, error) {
	if len(members) == 0 {
		return Scored{}, &apperr.ScoringError{ClusterID: cluster.ID, Reason: "cluster has no articles"}
	}

	req := NewRequest(cluster, members)

	var lastErr error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			s.logger.Warn("Retrying cluster judgment", logging.WithFields(map[string]interface{}{
				"cluster_id": cluster.ID,
				"attempt":    attempt + 1,
				"error":      lastErr.Error(),
			}))
		}

		j, err := s.attempt(ctx, req)
		if err == nil {
			return Scored{
				Cluster:  cluster,
				Members:  members,
				Hotness:  j.Hotness,
				Headline: j.Headline,
				WhyNow:   j.WhyNow,
				Entities: j.Entities,
				Timeline: j.Timeline,
			}, nil
		}
		lastErr = err

		// the caller gave up; a retry would fail the same way
		if ctx.Err() != nil {
			break
		}
	}

	var scoringErr *apperr.ScoringError
	if errors.As(lastErr, &scoringErr) {
		return Scored{}, scoringErr
	}
	return Scored{}, &apperr.ScoringError{ClusterID: cluster.ID, Reason: "judge failed", Err: lastErr}
}

func (s *Scorer) attempt(ctx context.Context, req JudgeRequest) (Judgment, error) {
	if err := s.gate.Acquire(ctx, 1); err != nil {
		return Judgment{}, &apperr.ScoringError{ClusterID: req.ClusterID, Reason: "waiting for judge slot", Err: err}
	}
	defer s.gate.Release(1)

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.judge.Judge(callCtx, req)
	if err != nil {
		reason := "judge call failed"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			reason = fmt.Sprintf("judge timed out after %s", s.timeout)
		}
		return Judgment{}, &apperr.ScoringError{ClusterID: req.ClusterID, Reason: reason, Err: err}
	}

	j, err := ParseJudgment(raw)
	if err != nil {
		return Judgment{}, &apperr.ScoringError{ClusterID: req.ClusterID, Reason: "invalid judgment", Err: err}
	}
	return j, nil
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
