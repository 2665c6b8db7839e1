package models

import "time"

// FeedItem is the persisted per-user projection of a story.
// (UserID, ArticleID) is unique.
type FeedItem struct {
	UserID          string     `json:"userId"`
	ArticleID       string     `json:"articleId"`
	StoryID         string     `json:"storyId,omitempty"`
	Title           string     `json:"title"`
	Summary         string     `json:"summary"`
	URL             string     `json:"url"`
	Source          string     `json:"source"`
	PublishedAt     time.Time  `json:"publishedAt"`
	AddedAt         time.Time  `json:"addedAt"`
	RelevanceScore  float64    `json:"relevanceScore"`
	Hotness         float64    `json:"hotness"`
	MatchedKeywords []string   `json:"matchedKeywords"`
	Tags            []string   `json:"tags"`
	ClusterSize     int        `json:"clusterSize"`
	IsRead          bool       `json:"isRead"`
	IsLiked         bool       `json:"isLiked"`
	IsDisliked      bool       `json:"isDisliked"`
	IsSaved         bool       `json:"isSaved"`
	ReadAt          *time.Time `json:"readAt,omitempty"`
	LikedAt         *time.Time `json:"likedAt,omitempty"`
	DislikedAt      *time.Time `json:"dislikedAt,omitempty"`
	SavedAt         *time.Time `json:"savedAt,omitempty"`
}

// FeedFilter narrows a feed query
type FeedFilter struct {
	Limit       int       `json:"limit"`
	Offset      int       `json:"offset"`
	UnreadOnly  bool      `json:"unreadOnly"`
	SavedOnly   bool      `json:"savedOnly"`
	LikedOnly   bool      `json:"likedOnly"`
	Since       time.Time `json:"since"`
	ArticleIDs  []string  `json:"articleIds,omitempty"`
	Keyword     string    `json:"keyword,omitempty"`
	MinRelevance float64  `json:"minRelevance,omitempty"`
}

// FeedStatus is a user-driven status change on a feed item
type FeedStatus string

const (
	StatusRead     FeedStatus = "read"
	StatusLiked    FeedStatus = "like"
	StatusDisliked FeedStatus = "dislike"
	StatusSaved    FeedStatus = "save"
)

// Valid reports whether s is a known status action
func (s FeedStatus) Valid() bool {
	switch s {
	case StatusRead, StatusLiked, StatusDisliked, StatusSaved:
		return true
	}
	return false
}

// FeedPayload is what smart fetch hands to a consumer
type FeedPayload struct {
	UserID      string     `json:"userId"`
	Items       []FeedItem `json:"items"`
	TotalItems  int        `json:"totalItems"`
	GeneratedAt time.Time  `json:"generatedAt"`
	FromCache   bool       `json:"fromCache"`
}

// RefreshResult reports one incremental refresh
type RefreshResult struct {
	UserID              string    `json:"userId"`
	NewItems            int       `json:"newItems"`
	TotalItems          int       `json:"totalItems"`
	ArticlesFetched     int       `json:"articlesFetched"`
	FilteredOut         int       `json:"filteredOut"`
	FailedClusters      int       `json:"failedClusters"`
	Errors              []string  `json:"errors,omitempty"`
	LastSeenPublishedAt time.Time `json:"lastSeenPublishedAt"`
}

// Partial reports whether some clusters failed while the refresh itself succeeded
func (r RefreshResult) Partial() bool {
	return r.FailedClusters > 0 || len(r.Errors) > 0
}

// UserState tracks per-user incremental progress
type UserState struct {
	UserID              string    `json:"userId"`
	LastSeenPublishedAt time.Time `json:"lastSeenPublishedAt"`
	LastRefreshAt       time.Time `json:"lastRefreshAt"`
	LastLearnedAt       time.Time `json:"lastLearnedAt"`
}

// UserPreferences declares what a reader cares about
type UserPreferences struct {
	UserID           string    `json:"userId"`
	Keywords         []string  `json:"keywords"`
	ExcludedKeywords []string  `json:"excludedKeywords"`
	Sources          []string  `json:"sources"`
	MaxArticles      int       `json:"maxArticles"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// FeedCacheEntry is a cached feed payload with its lifetime
type FeedCacheEntry struct {
	UserID    string      `json:"userId"`
	CachedAt  time.Time   `json:"cachedAt"`
	ExpiresAt time.Time   `json:"expiresAt"`
	Payload   FeedPayload `json:"payload"`
}

// Expired reports whether the entry is stale at now
func (e FeedCacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}
