package sources

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/johnrirwin/newsradar/internal/ratelimit"
)

// FeedSource represents a single feed source from config
type FeedSource struct {
	Name     string `json:"name"`
	URL      string `json:"url"`
	Type     string `json:"type"`     // "rss", "reddit"
	Category string `json:"category"` // "news", "community"
	Enabled  bool   `json:"enabled"`
}

// FeedsConfig holds the feeds configuration
type FeedsConfig struct {
	Sources []FeedSource `json:"sources"`
}

// LoadFeedsConfig loads feed sources from a JSON config file
func LoadFeedsConfig(configPath string) (*FeedsConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read feeds config: %w", err)
	}

	var config FeedsConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse feeds config: %w", err)
	}

	return &config, nil
}

// FindFeedsConfig searches for feeds.json in common locations
func FindFeedsConfig() string {
	locations := []string{
		"feeds.json",
		"../feeds.json", // running from cmd/server
		"/app/feeds.json",
		"config/feeds.json",
	}

	if envPath := os.Getenv("FEEDS_CONFIG_PATH"); envPath != "" {
		locations = append([]string{envPath}, locations...)
	}

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			absPath, _ := filepath.Abs(loc)
			return absPath
		}
	}

	return ""
}

// CreateFetchersFromConfig creates fetchers from the feeds configuration
func CreateFetchersFromConfig(config *FeedsConfig, limiter *ratelimit.Limiter, fetcherConfig FetcherConfig) []Fetcher {
	fetchers := make([]Fetcher, 0, len(config.Sources))

	for _, source := range config.Sources {
		if !source.Enabled {
			continue
		}

		var fetcher Fetcher
		switch source.Type {
		case "rss", "news":
			fetcher = NewRSSFetcher(source.Name, source.URL, limiter, fetcherConfig)
		case "reddit":
			fetcher = NewRedditFetcher(extractSubreddit(source.URL, source.Name), limiter, fetcherConfig)
		default:
			continue
		}

		fetchers = append(fetchers, fetcher)
	}

	return fetchers
}

var subredditPattern = regexp.MustCompile(`/r/([^/.\s]+)`)

// extractSubreddit extracts the subreddit name from a Reddit URL
func extractSubreddit(url, fallbackName string) string {
	if matches := subredditPattern.FindStringSubmatch(url); len(matches) > 1 {
		return matches[1]
	}
	return strings.TrimPrefix(fallbackName, "r/")
}

// GetDefaultFeedsConfig returns a default configuration when no config file is found
func GetDefaultFeedsConfig() *FeedsConfig {
	return &FeedsConfig{
		Sources: []FeedSource{
			{Name: "Reuters Business", URL: "https://feeds.reuters.com/reuters/businessNews", Type: "rss", Category: "news", Enabled: true},
			{Name: "CNBC Top News", URL: "https://www.cnbc.com/id/100003114/device/rss/rss.html", Type: "rss", Category: "news", Enabled: true},
			{Name: "FT Markets", URL: "https://www.ft.com/markets?format=rss", Type: "rss", Category: "news", Enabled: true},
			{Name: "WSJ Markets", URL: "https://feeds.a.dj.com/rss/RSSMarketsMain.xml", Type: "rss", Category: "news", Enabled: true},
			{Name: "Bloomberg Markets", URL: "https://feeds.bloomberg.com/markets/news.rss", Type: "rss", Category: "news", Enabled: true},
			{Name: "r/economics", URL: "https://www.reddit.com/r/economics/.rss", Type: "reddit", Category: "community", Enabled: true},
			{Name: "r/finance", URL: "https://www.reddit.com/r/finance/.rss", Type: "reddit", Category: "community", Enabled: true},
		},
	}
}
