package models

import "time"

type InteractionType string

const (
	InteractionView    InteractionType = "view"
	InteractionClick   InteractionType = "click"
	InteractionLike    InteractionType = "like"
	InteractionDislike InteractionType = "dislike"
	InteractionSave    InteractionType = "save"
)

// Valid reports whether t is a known interaction type
func (t InteractionType) Valid() bool {
	switch t {
	case InteractionView, InteractionClick, InteractionLike, InteractionDislike, InteractionSave:
		return true
	}
	return false
}

// Interaction is one behavioural signal recorded against a feed item
type Interaction struct {
	ID                  string          `json:"id"`
	UserID              string          `json:"userId"`
	ArticleID           string          `json:"articleId"`
	Type                InteractionType `json:"type"`
	ViewDurationSeconds *int            `json:"viewDurationSeconds,omitempty"`
	ClickedReadMore     bool            `json:"clickedReadMore"`
	MatchedKeywords     []string        `json:"matchedKeywords"`
	CreatedAt           time.Time       `json:"createdAt"`
}

// InterestWeight is a learned per-user keyword affinity
type InterestWeight struct {
	UserID          string    `json:"userId"`
	Keyword         string    `json:"keyword"`
	Weight          float64   `json:"weight"`
	EngagementCount int       `json:"engagementCount"`
	LastSeenAt      time.Time `json:"lastSeenAt"`
}

// WeightsResult reports a weight update pass
type WeightsResult struct {
	UserID               string           `json:"userId"`
	Weights              []InterestWeight `json:"weights"`
	UpdatedKeywords      []string         `json:"updatedKeywords"`
	InteractionsApplied  int              `json:"interactionsApplied"`
}

// WeightedKeyword pairs a keyword with its weight for insight listings
type WeightedKeyword struct {
	Keyword string  `json:"keyword"`
	Weight  float64 `json:"weight"`
}

// LearningInsights buckets what has been learned about a user
type LearningInsights struct {
	UserID               string            `json:"userId"`
	TotalLearnedKeywords int               `json:"totalLearnedKeywords"`
	StrongInterests      []WeightedKeyword `json:"strongInterests"`
	ModerateInterests    []WeightedKeyword `json:"moderateInterests"`
	WeakInterests        []WeightedKeyword `json:"weakInterests"`
	Status               string            `json:"status"`
}
