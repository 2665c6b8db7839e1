package sources

import (
	"context"
	"crypto/sha256"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/johnrirwin/newsradar/internal/models"
	"github.com/johnrirwin/newsradar/internal/ratelimit"
)

type RSSFetcher struct {
	name      string
	url       string
	parser    *gofeed.Parser
	limiter   *ratelimit.Limiter
	config    FetcherConfig
	extractor *FullTextExtractor
	now       func() time.Time
}

func NewRSSFetcher(name, url string, limiter *ratelimit.Limiter, config FetcherConfig) *RSSFetcher {
	parser := gofeed.NewParser()
	parser.UserAgent = config.UserAgent

	f := &RSSFetcher{
		name:    name,
		url:     url,
		parser:  parser,
		limiter: limiter,
		config:  config,
		now:     time.Now,
	}
	if config.FullTextMinChars > 0 {
		f.extractor = NewFullTextExtractor(limiter, config)
	}
	return f
}

func (f *RSSFetcher) Name() string {
	return f.name
}

func (f *RSSFetcher) SourceInfo() models.SourceInfo {
	return models.SourceInfo{
		ID:         sourceID(f.name),
		Name:       f.name,
		URL:        f.url,
		SourceType: "news",
		FeedType:   "rss",
		Enabled:    true,
	}
}

func (f *RSSFetcher) Fetch(ctx context.Context) ([]models.Article, error) {
	if err := f.limiter.WaitContext(ctx, f.url); err != nil {
		return nil, err
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, f.config.Timeout)
	defer cancel()

	feed, err := f.parser.ParseURLWithContext(f.url, ctxWithTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSS feed %s: %w", f.url, err)
	}

	return f.convert(ctx, feed), nil
}

func (f *RSSFetcher) convert(ctx context.Context, feed *gofeed.Feed) []models.Article {
	articles := make([]models.Article, 0, len(feed.Items))
	for i, item := range feed.Items {
		if f.config.MaxItems > 0 && i >= f.config.MaxItems {
			break
		}
		if strings.TrimSpace(item.Title) == "" || item.Link == "" {
			continue
		}

		publishedAt := f.now()
		if item.PublishedParsed != nil {
			publishedAt = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			publishedAt = *item.UpdatedParsed
		}

		author := ""
		if item.Author != nil {
			author = item.Author.Name
		}

		raw := item.Content
		if strings.TrimSpace(raw) == "" {
			raw = item.Description
		}
		content := HTMLToText(raw)

		if f.extractor != nil && len([]rune(content)) < f.config.FullTextMinChars {
			if text, err := f.extractor.Extract(ctx, item.Link); err == nil && len(text) > len(content) {
				content = text
			}
		}

		articles = append(articles, models.Article{
			ID:          generateID(f.name, item.Link),
			Title:       HTMLToText(item.Title),
			Content:     content,
			URL:         item.Link,
			Source:      f.name,
			Author:      author,
			PublishedAt: publishedAt.UTC(),
		})
	}
	return articles
}

func generateID(source, url string) string {
	hash := sha256.Sum256([]byte(source + url))
	return fmt.Sprintf("%x", hash[:8])
}

func sourceID(name string) string {
	return strings.ToLower(strings.ReplaceAll(name, " ", "-"))
}
