package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/johnrirwin/newsradar/internal/enrichment"
)

const draftSystemPrompt = `You write concise market briefings in Markdown.
Start with a level-one heading holding the headline. Then cover what happened, why it matters now,
who is affected and what to watch next. Cite sources inline by their URL. Do not speculate beyond the material given.`

const draftContentRunes = 1500

// Draft implements enrichment.Drafter
func (c *Client) Draft(ctx context.Context, req enrichment.DraftRequest) (string, error) {
	reply, err := c.complete(ctx, draftSystemPrompt, draftPrompt(req), false)
	if err != nil {
		return "", fmt.Errorf("draft %q: %w", req.Headline, err)
	}
	return reply, nil
}

func draftPrompt(req enrichment.DraftRequest) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Headline: %s\n", req.Headline)
	fmt.Fprintf(&b, "Why now: %s\n", req.WhyNow)
	if req.Reasoning != "" {
		fmt.Fprintf(&b, "Analyst reasoning: %s\n", req.Reasoning)
	}

	if len(req.Entities) > 0 {
		b.WriteString("\nEntities:\n")
		for _, e := range req.Entities {
			fmt.Fprintf(&b, "- %s (%s, relevance %.2f)", e.Name, e.Type, e.Relevance)
			if e.Ticker != "" {
				fmt.Fprintf(&b, " [%s]", e.Ticker)
			}
			b.WriteString("\n")
		}
	}

	if len(req.Timeline) > 0 {
		b.WriteString("\nTimeline:\n")
		for _, ev := range req.Timeline {
			fmt.Fprintf(&b, "- %s %s: %s (%s)\n", ev.Timestamp.UTC().Format(time.RFC3339), ev.EventType, ev.Description, ev.SourceURL)
		}
	}

	b.WriteString("\nArticles:\n")
	for i, a := range req.Articles {
		content := []rune(a.Content)
		if len(content) > draftContentRunes {
			content = content[:draftContentRunes]
		}
		fmt.Fprintf(&b, "\n[%d] %s\nSource: %s\nURL: %s\nPublished: %s\n%s\n",
			i+1, a.Title, a.Source, a.URL, a.PublishedAt.UTC().Format(time.RFC3339), string(content))
	}

	return b.String()
}
