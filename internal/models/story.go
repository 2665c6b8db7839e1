package models

import "time"

type EntityType string

const (
	EntityCompany EntityType = "company"
	EntitySector  EntityType = "sector"
	EntityCountry EntityType = "country"
	EntityPerson  EntityType = "person"
	EntityTicker  EntityType = "ticker"
)

// Valid reports whether t is one of the known entity types
func (t EntityType) Valid() bool {
	switch t {
	case EntityCompany, EntitySector, EntityCountry, EntityPerson, EntityTicker:
		return true
	}
	return false
}

type TimelineEventType string

const (
	EventFirstMention TimelineEventType = "first_mention"
	EventConfirmation TimelineEventType = "confirmation"
	EventUpdate       TimelineEventType = "update"
	EventCorrection   TimelineEventType = "correction"
)

// Valid reports whether t is one of the known timeline event types
func (t TimelineEventType) Valid() bool {
	switch t {
	case EventFirstMention, EventConfirmation, EventUpdate, EventCorrection:
		return true
	}
	return false
}

// HotnessScore is the multi-dimensional importance judgment for a cluster.
// Overall is set by the judge and is not derived from the sub-scores.
type HotnessScore struct {
	Overall        float64 `json:"overall"`
	Unexpectedness float64 `json:"unexpectedness"`
	Materiality    float64 `json:"materiality"`
	Velocity       float64 `json:"velocity"`
	Breadth        float64 `json:"breadth"`
	Credibility    float64 `json:"credibility"`
	Reasoning      string  `json:"reasoning"`
}

type Entity struct {
	Name      string     `json:"name"`
	Type      EntityType `json:"type"`
	Relevance float64    `json:"relevance"`
	Ticker    string     `json:"ticker,omitempty"`
}

type TimelineEvent struct {
	Timestamp   time.Time         `json:"timestamp"`
	Description string            `json:"description"`
	SourceURL   string            `json:"sourceUrl"`
	EventType   TimelineEventType `json:"eventType"`
}

// Story is the externally visible result of one cluster in one pipeline run.
type Story struct {
	ID               string          `json:"id"`
	RunID            string          `json:"runId"`
	Cluster          Cluster         `json:"cluster"`
	Representative   Article         `json:"representative"`
	Headline         string          `json:"headline"`
	Hotness          HotnessScore    `json:"hotness"`
	WhyNow           string          `json:"whyNow"`
	Entities         []Entity        `json:"entities"`
	Timeline         []TimelineEvent `json:"timeline"`
	Sources          []string        `json:"sources"`
	Tags             []string        `json:"tags"`
	Draft            string          `json:"draft,omitempty"`
	ResearchEnriched bool            `json:"researchEnriched"`
	ArticleCount     int             `json:"articleCount"`
	CreatedAt        time.Time       `json:"createdAt"`
}

// RunReport summarises one pipeline run, including per-item failures
type RunReport struct {
	RunID              string        `json:"runId"`
	ArticlesProcessed  int           `json:"articlesProcessed"`
	Clusters           int           `json:"clusters"`
	Stories            int           `json:"stories"`
	EmbeddingFailures  int           `json:"embeddingFailures"`
	ScoringFailures    int           `json:"scoringFailures"`
	ResearchFailures   int           `json:"researchFailures"`
	Escalated          int           `json:"escalated"`
	Errors             []string      `json:"errors,omitempty"`
	ProcessingDuration time.Duration `json:"processingDuration"`
}

// Failed returns the number of clusters that did not yield a story
func (r RunReport) Failed() int {
	return r.ScoringFailures
}

// RadarResponse is the market-monitoring view of a pipeline run
type RadarResponse struct {
	Stories     []Story   `json:"stories"`
	Report      RunReport `json:"report"`
	GeneratedAt time.Time `json:"generatedAt"`
}
