package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/johnrirwin/newsradar/internal/models"
	"github.com/johnrirwin/newsradar/internal/ratelimit"
)

const redditBaseURL = "https://www.reddit.com"

// RedditFetcher reads link posts from a subreddit's hot listing
type RedditFetcher struct {
	subreddit string
	baseURL   string
	limiter   *ratelimit.Limiter
	config    FetcherConfig
	client    *http.Client
}

type redditResponse struct {
	Data struct {
		Children []struct {
			Data redditPost `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditPost struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Selftext  string  `json:"selftext"`
	Author    string  `json:"author"`
	URL       string  `json:"url"`
	Permalink string  `json:"permalink"`
	Created   float64 `json:"created_utc"`
	Stickied  bool    `json:"stickied"`
}

func NewRedditFetcher(subreddit string, limiter *ratelimit.Limiter, config FetcherConfig) *RedditFetcher {
	return &RedditFetcher{
		subreddit: subreddit,
		baseURL:   redditBaseURL,
		limiter:   limiter,
		config:    config,
		client: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

func (f *RedditFetcher) Name() string {
	return "r/" + f.subreddit
}

func (f *RedditFetcher) SourceInfo() models.SourceInfo {
	return models.SourceInfo{
		ID:         "r-" + f.subreddit,
		Name:       "r/" + f.subreddit,
		URL:        fmt.Sprintf("%s/r/%s", redditBaseURL, f.subreddit),
		SourceType: "community",
		FeedType:   "reddit",
		Enabled:    true,
	}
}

func (f *RedditFetcher) Fetch(ctx context.Context) ([]models.Article, error) {
	if err := f.limiter.WaitContext(ctx, f.baseURL); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/r/%s/hot.json?limit=%d", f.baseURL, f.subreddit, f.config.MaxItems)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reddit posts: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("reddit returned status %d", resp.StatusCode)
	}

	var data redditResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode reddit response: %w", err)
	}

	articles := make([]models.Article, 0, len(data.Data.Children))
	for _, child := range data.Data.Children {
		post := child.Data
		if post.Stickied || post.Title == "" {
			continue
		}

		// Link posts point at the story; self posts only have the permalink
		link := post.URL
		if link == "" {
			link = f.baseURL + post.Permalink
		}

		articles = append(articles, models.Article{
			ID:          generateID("reddit", post.ID),
			Title:       post.Title,
			Content:     truncate(normalizeText(post.Selftext), 4000),
			URL:         link,
			Source:      "r/" + f.subreddit,
			Author:      post.Author,
			PublishedAt: time.Unix(int64(post.Created), 0).UTC(),
		})
	}

	return articles, nil
}
