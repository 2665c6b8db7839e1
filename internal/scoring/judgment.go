package scoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/johnrirwin/newsradar/internal/models"
)

// Judgment is a validated judge answer
type Judgment struct {
	Hotness  models.HotnessScore
	Headline string
	WhyNow   string
	Entities []models.Entity
	Timeline []models.TimelineEvent
}

// pointer fields tell a missing value from a zero
type rawJudgment struct {
	Hotness *struct {
		Overall        *float64 `json:"overall"`
		Unexpectedness *float64 `json:"unexpectedness"`
		Materiality    *float64 `json:"materiality"`
		Velocity       *float64 `json:"velocity"`
		Breadth        *float64 `json:"breadth"`
		Credibility    *float64 `json:"credibility"`
		Reasoning      string   `json:"reasoning"`
	} `json:"hotness"`
	Headline string `json:"headline"`
	WhyNow   string `json:"why_now"`
	Entities []struct {
		Name      string   `json:"name"`
		Type      string   `json:"type"`
		Relevance *float64 `json:"relevance"`
		Ticker    string   `json:"ticker"`
	} `json:"entities"`
	Timeline []struct {
		Timestamp   string `json:"timestamp"`
		Description string `json:"description"`
		SourceURL   string `json:"source_url"`
		EventType   string `json:"event_type"`
	} `json:"timeline"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}

// extractJSON strips markdown fences and surrounding prose
func extractJSON(raw []byte) []byte {
	b := bytes.TrimSpace(raw)
	start := bytes.IndexByte(b, '{')
	end := bytes.LastIndexByte(b, '}')
	if start < 0 || end < start {
		return b
	}
	return b[start : end+1]
}

func checkUnit(name string, v *float64) error {
	if v == nil {
		return fmt.Errorf("missing hotness.%s", name)
	}
	if *v < 0 || *v > 1 {
		return fmt.Errorf("hotness.%s = %v out of [0,1]", name, *v)
	}
	return nil
}

// ParseJudgment decodes and validates a raw judge answer
func ParseJudgment(raw []byte) (Judgment, error) {
	var r rawJudgment
	if err := json.Unmarshal(extractJSON(raw), &r); err != nil {
		return Judgment{}, fmt.Errorf("decoding judgment: %w", err)
	}

	if r.Hotness == nil {
		return Judgment{}, errors.New("missing hotness")
	}
	h := r.Hotness
	for _, f := range []struct {
		name string
		v    *float64
	}{
		{"overall", h.Overall},
		{"unexpectedness", h.Unexpectedness},
		{"materiality", h.Materiality},
		{"velocity", h.Velocity},
		{"breadth", h.Breadth},
		{"credibility", h.Credibility},
	} {
		if err := checkUnit(f.name, f.v); err != nil {
			return Judgment{}, err
		}
	}

	j := Judgment{
		Hotness: models.HotnessScore{
			Overall:        *h.Overall,
			Unexpectedness: *h.Unexpectedness,
			Materiality:    *h.Materiality,
			Velocity:       *h.Velocity,
			Breadth:        *h.Breadth,
			Credibility:    *h.Credibility,
			Reasoning:      strings.TrimSpace(h.Reasoning),
		},
		Headline: strings.TrimSpace(r.Headline),
		WhyNow:   strings.TrimSpace(r.WhyNow),
	}
	if j.Headline == "" {
		return Judgment{}, errors.New("empty headline")
	}
	if j.WhyNow == "" {
		return Judgment{}, errors.New("empty why_now")
	}

	entities := make([]models.Entity, 0, len(r.Entities))
	for i, e := range r.Entities {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return Judgment{}, fmt.Errorf("entity %d has no name", i)
		}
		typ := models.EntityType(strings.ToLower(strings.TrimSpace(e.Type)))
		if !typ.Valid() {
			return Judgment{}, fmt.Errorf("entity %q has unknown type %q", name, e.Type)
		}
		if e.Relevance == nil || *e.Relevance < 0 || *e.Relevance > 1 {
			return Judgment{}, fmt.Errorf("entity %q has invalid relevance", name)
		}
		entities = append(entities, models.Entity{
			Name:      name,
			Type:      typ,
			Relevance: *e.Relevance,
			Ticker:    strings.TrimSpace(e.Ticker),
		})
	}
	j.Entities = DedupeEntities(entities)

	timeline := make([]models.TimelineEvent, 0, len(r.Timeline))
	for i, ev := range r.Timeline {
		typ := models.TimelineEventType(strings.ToLower(strings.TrimSpace(ev.EventType)))
		if !typ.Valid() {
			return Judgment{}, fmt.Errorf("timeline event %d has unknown type %q", i, ev.EventType)
		}
		ts, err := parseTimestamp(ev.Timestamp)
		if err != nil {
			return Judgment{}, fmt.Errorf("timeline event %d: %w", i, err)
		}
		timeline = append(timeline, models.TimelineEvent{
			Timestamp:   ts,
			Description: strings.TrimSpace(ev.Description),
			SourceURL:   strings.TrimSpace(ev.SourceURL),
			EventType:   typ,
		})
	}
	sort.SliceStable(timeline, func(a, b int) bool {
		return timeline[a].Timestamp.Before(timeline[b].Timestamp)
	})
	j.Timeline = timeline

	return j, nil
}

// DedupeEntities collapses entities sharing a case-insensitive name and a
// type, keeping the most relevant one at the position first seen.
func DedupeEntities(entities []models.Entity) []models.Entity {
	type key struct {
		name string
		typ  models.EntityType
	}
	pos := make(map[key]int, len(entities))
	out := make([]models.Entity, 0, len(entities))

	for _, e := range entities {
		k := key{strings.ToLower(e.Name), e.Type}
		if i, ok := pos[k]; ok {
			if e.Relevance > out[i].Relevance {
				out[i] = e
			}
			continue
		}
		pos[k] = len(out)
		out = append(out, e)
	}
	return out
}
