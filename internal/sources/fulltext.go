package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	readability "github.com/go-shiori/go-readability"

	"github.com/johnrirwin/newsradar/internal/ratelimit"
)

const maxPageBytes = 4 << 20

// FullTextExtractor downloads an article page and extracts its main text
type FullTextExtractor struct {
	client    *http.Client
	limiter   *ratelimit.Limiter
	userAgent string
}

func NewFullTextExtractor(limiter *ratelimit.Limiter, config FetcherConfig) *FullTextExtractor {
	return &FullTextExtractor{
		client:    &http.Client{Timeout: config.Timeout},
		limiter:   limiter,
		userAgent: config.UserAgent,
	}
}

func (e *FullTextExtractor) Extract(ctx context.Context, pageURL string) (string, error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid article url %q: %w", pageURL, err)
	}

	if e.limiter != nil {
		if err := e.limiter.WaitContext(ctx, pageURL); err != nil {
			return "", err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", e.userAgent)

	resp, err := e.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch article page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("article page returned status %d", resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxPageBytes), parsed)
	if err != nil {
		return "", fmt.Errorf("failed to extract article text: %w", err)
	}

	return HTMLToText(article.Content), nil
}
