package models

import "time"

// Article is a single raw news item as delivered by a collector.
// Articles are never mutated after collection.
type Article struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Content     string    `json:"content"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	Author      string    `json:"author,omitempty"`
	PublishedAt time.Time `json:"publishedAt"`
}

// Cluster groups articles that report the same underlying event.
type Cluster struct {
	ID               string   `json:"clusterId"`
	MemberIDs        []string `json:"memberArticleIds"`
	RepresentativeID string   `json:"representativeArticleId"`
	Size             int      `json:"size"`
}

// SourceInfo describes a configured collector source
type SourceInfo struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	URL        string `json:"url"`
	SourceType string `json:"sourceType"`
	FeedType   string `json:"feedType"`
	Enabled    bool   `json:"enabled"`
}
