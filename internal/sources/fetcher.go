package sources

import (
	"context"
	"time"

	"github.com/johnrirwin/newsradar/internal/models"
)

type Fetcher interface {
	Name() string
	Fetch(ctx context.Context) ([]models.Article, error)
	SourceInfo() models.SourceInfo
}

type FetchResult struct {
	Articles []models.Article
	Source   models.SourceInfo
	Error    error
}

type FetcherConfig struct {
	Timeout   time.Duration
	MaxItems  int
	UserAgent string
	// FullTextMinChars triggers full-page extraction for feed entries whose
	// content is shorter than this. Zero disables extraction.
	FullTextMinChars int
}

func DefaultConfig() FetcherConfig {
	return FetcherConfig{
		Timeout:   30 * time.Second,
		MaxItems:  50,
		UserAgent: "NewsRadar/1.0",
	}
}
