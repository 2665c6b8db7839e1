package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/johnrirwin/newsradar/internal/scoring"
)

const judgeSystemPrompt = `You are a financial news analyst. You receive a cluster of articles that report the same event.
Judge how important the event is for market participants and answer with a single JSON object:
{
  "hotness": {
    "overall": 0-1, "unexpectedness": 0-1, "materiality": 0-1,
    "velocity": 0-1, "breadth": 0-1, "credibility": 0-1,
    "reasoning": "one or two sentences"
  },
  "headline": "neutral headline for the event",
  "why_now": "why this matters right now",
  "entities": [{"name": "...", "type": "company|sector|country|person|ticker", "relevance": 0-1, "ticker": "optional"}],
  "timeline": [{"timestamp": "RFC3339 taken from the articles", "description": "...", "source_url": "...", "event_type": "first_mention|confirmation|update|correction"}]
}
Only use timestamps that appear in the articles. Do not add any text outside the JSON object.`

// Judge implements scoring.Judge. The reply is returned raw; validation is
// the scorer's job.
func (c *Client) Judge(ctx context.Context, req scoring.JudgeRequest) ([]byte, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal judge request: %w", err)
	}

	reply, err := c.complete(ctx, judgeSystemPrompt, string(payload), true)
	if err != nil {
		return nil, fmt.Errorf("judge cluster %s: %w", req.ClusterID, err)
	}
	return []byte(reply), nil
}
