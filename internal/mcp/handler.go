package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/johnrirwin/newsradar/internal/logging"
	"github.com/johnrirwin/newsradar/internal/models"
)

// Radar runs an on-demand pipeline scan
type Radar interface {
	Scan(ctx context.Context, since time.Time, query string) (models.RadarResponse, error)
}

// Feeds serves personal feeds
type Feeds interface {
	SmartFetch(ctx context.Context, userID string) (models.FeedPayload, error)
	Refresh(ctx context.Context, userID string) (models.RefreshResult, error)
}

// Interests exposes learned reader interests
type Interests interface {
	UpdateWeights(ctx context.Context, userID string) (models.WeightsResult, error)
	DiscoverInterests(ctx context.Context, userID string) ([]models.InterestWeight, error)
}

// Sources lists the configured collectors and drops their shared snapshot
type Sources interface {
	GetSources() []models.SourceInfo
	Invalidate()
}

type Handler struct {
	radar     Radar
	feeds     Feeds
	interests Interests
	sources   Sources
	logger    *logging.Logger
	now       func() time.Time
}

func NewHandler(radar Radar, feeds Feeds, interests Interests, sources Sources, logger *logging.Logger) *Handler {
	return &Handler{
		radar:     radar,
		feeds:     feeds,
		interests: interests,
		sources:   sources,
		logger:    logger,
		now:       time.Now,
	}
}

type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

type ScanParams struct {
	Hours int    `json:"hours"`
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type UserParams struct {
	UserID string `json:"user_id"`
	Force  bool   `json:"force"`
}

const userSchema = `{
	"type": "object",
	"properties": {
		"user_id": {
			"type": "string",
			"description": "Reader whose feed to use"
		}
	},
	"required": ["user_id"]
}`

func (h *Handler) GetTools() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "scan_news_radar",
			Description: "Cluster recent financial news into stories, score each for hotness and draft the ones worth escalating.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"hours": {
						"type": "integer",
						"description": "Look back this many hours (default: 24)"
					},
					"query": {
						"type": "string",
						"description": "Only consider articles mentioning this keyword"
					},
					"limit": {
						"type": "integer",
						"description": "Maximum number of stories to return (default: all)"
					}
				}
			}`),
		},
		{
			Name:        "get_personal_feed",
			Description: "Get a reader's personalized feed, served from cache while fresh.",
			InputSchema: json.RawMessage(userSchema),
		},
		{
			Name:        "refresh_personal_feed",
			Description: "Merge articles published since the reader's last refresh into their feed.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {
					"user_id": {
						"type": "string",
						"description": "Reader whose feed to refresh"
					},
					"force": {
						"type": "boolean",
						"description": "Re-collect from sources instead of reusing the shared snapshot"
					}
				},
				"required": ["user_id"]
			}`),
		},
		{
			Name:        "discover_interests",
			Description: "Apply recent interactions to the reader's interest weights and list strong interests they have not declared.",
			InputSchema: json.RawMessage(userSchema),
		},
		{
			Name:        "get_news_sources",
			Description: "List the configured news sources.",
			InputSchema: json.RawMessage(`{
				"type": "object",
				"properties": {}
			}`),
		},
	}
}

func (h *Handler) HandleToolCall(ctx context.Context, name string, arguments json.RawMessage) (interface{}, error) {
	switch name {
	case "scan_news_radar":
		return h.handleScan(ctx, arguments)
	case "get_personal_feed":
		return h.handleFeed(ctx, arguments)
	case "refresh_personal_feed":
		return h.handleRefresh(ctx, arguments)
	case "discover_interests":
		return h.handleDiscover(ctx, arguments)
	case "get_news_sources":
		return h.handleGetSources()
	default:
		return nil, &ToolError{Message: "Unknown tool: " + name}
	}
}

func (h *Handler) handleScan(ctx context.Context, arguments json.RawMessage) (interface{}, error) {
	var params ScanParams
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &params); err != nil {
			return nil, &ToolError{Message: "Invalid arguments: " + err.Error()}
		}
	}
	if params.Hours <= 0 {
		params.Hours = 24
	}

	resp, err := h.radar.Scan(ctx, h.now().Add(-time.Duration(params.Hours)*time.Hour), params.Query)
	if err != nil {
		return nil, &ToolError{Message: "Radar scan failed: " + err.Error()}
	}
	if params.Limit > 0 && len(resp.Stories) > params.Limit {
		resp.Stories = resp.Stories[:params.Limit]
	}
	return resp, nil
}

func parseUser(arguments json.RawMessage) (UserParams, error) {
	var params UserParams
	if len(arguments) > 0 {
		if err := json.Unmarshal(arguments, &params); err != nil {
			return params, &ToolError{Message: "Invalid arguments: " + err.Error()}
		}
	}
	params.UserID = strings.TrimSpace(params.UserID)
	if params.UserID == "" {
		return params, &ToolError{Message: "user_id is required"}
	}
	return params, nil
}

func (h *Handler) handleFeed(ctx context.Context, arguments json.RawMessage) (interface{}, error) {
	params, err := parseUser(arguments)
	if err != nil {
		return nil, err
	}

	payload, err := h.feeds.SmartFetch(ctx, params.UserID)
	if err != nil {
		return nil, &ToolError{Message: "Failed to load feed: " + err.Error()}
	}
	return payload, nil
}

func (h *Handler) handleRefresh(ctx context.Context, arguments json.RawMessage) (interface{}, error) {
	params, err := parseUser(arguments)
	if err != nil {
		return nil, err
	}

	if params.Force && h.sources != nil {
		h.sources.Invalidate()
	}

	result, err := h.feeds.Refresh(ctx, params.UserID)
	if err != nil {
		return nil, &ToolError{Message: "Failed to refresh: " + err.Error()}
	}
	return result, nil
}

func (h *Handler) handleDiscover(ctx context.Context, arguments json.RawMessage) (interface{}, error) {
	params, err := parseUser(arguments)
	if err != nil {
		return nil, err
	}

	if _, err := h.interests.UpdateWeights(ctx, params.UserID); err != nil {
		h.logger.Warn("Weight update before discovery failed", logging.WithFields(map[string]interface{}{
			"user_id": params.UserID,
			"error":   err.Error(),
		}))
	}

	found, err := h.interests.DiscoverInterests(ctx, params.UserID)
	if err != nil {
		return nil, &ToolError{Message: "Failed to discover interests: " + err.Error()}
	}
	return map[string]interface{}{
		"user_id":   params.UserID,
		"interests": found,
		"count":     len(found),
	}, nil
}

func (h *Handler) handleGetSources() (interface{}, error) {
	if h.sources == nil {
		return map[string]interface{}{"sources": []models.SourceInfo{}, "count": 0}, nil
	}
	sources := h.sources.GetSources()
	return map[string]interface{}{
		"sources": sources,
		"count":   len(sources),
	}, nil
}

type ToolError struct {
	Message string
}

func (e *ToolError) Error() string {
	return e.Message
}
