// Package research runs deep web research for escalated stories against a
// Tavily-compatible search API.
package research

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/johnrirwin/newsradar/internal/enrichment"
)

const (
	DefaultBaseURL     = "https://api.tavily.com"
	DefaultSearchDepth = "advanced"
	maxResultsCap      = 20
	snippetRunes       = 600
)

type Config struct {
	BaseURL     string
	APIKey      string
	SearchDepth string
	Timeout     time.Duration
}

type Client struct {
	baseURL     string
	apiKey      string
	searchDepth string
	httpClient  *http.Client
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.SearchDepth == "" {
		cfg.SearchDepth = DefaultSearchDepth
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Minute
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		searchDepth: cfg.SearchDepth,
		httpClient:  &http.Client{Timeout: cfg.Timeout},
	}
}

type searchRequest struct {
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
	MaxResults    int    `json:"max_results"`
}

type searchResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`
}

type searchResponse struct {
	Answer  string         `json:"answer"`
	Results []searchResult `json:"results"`
}

// Research implements enrichment.Researcher
func (c *Client) Research(ctx context.Context, query string, maxSources int) (enrichment.ResearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return enrichment.ResearchResult{}, errors.New("research query is empty")
	}
	if maxSources <= 0 || maxSources > maxResultsCap {
		maxSources = maxResultsCap
	}

	body, err := json.Marshal(searchRequest{
		Query:         query,
		SearchDepth:   c.searchDepth,
		IncludeAnswer: true,
		MaxResults:    maxSources,
	})
	if err != nil {
		return enrichment.ResearchResult{}, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return enrichment.ResearchResult{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return enrichment.ResearchResult{}, fmt.Errorf("search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return enrichment.ResearchResult{}, fmt.Errorf("research error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return enrichment.ResearchResult{}, fmt.Errorf("decode search response: %w", err)
	}
	if strings.TrimSpace(sr.Answer) == "" && len(sr.Results) == 0 {
		return enrichment.ResearchResult{}, errors.New("research returned no answer and no results")
	}

	return enrichment.ResearchResult{
		Report:  renderReport(sr),
		Sources: sourceURLs(sr.Results),
	}, nil
}

func renderReport(sr searchResponse) string {
	var b strings.Builder
	if answer := strings.TrimSpace(sr.Answer); answer != "" {
		b.WriteString(answer)
		b.WriteString("\n")
	}

	if len(sr.Results) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n")
		}
		b.WriteString("### Findings\n")
		for _, r := range sr.Results {
			title := strings.TrimSpace(r.Title)
			if title == "" {
				title = r.URL
			}
			fmt.Fprintf(&b, "\n- **%s**: %s", title, snippet(r.Content))
		}
		b.WriteString("\n")
	}
	return strings.TrimSpace(b.String())
}

func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= snippetRunes {
		return s
	}
	return string(r[:snippetRunes]) + "..."
}

func sourceURLs(results []searchResult) []string {
	urls := make([]string, 0, len(results))
	for _, r := range results {
		if r.URL != "" {
			urls = append(urls, r.URL)
		}
	}
	return urls
}
