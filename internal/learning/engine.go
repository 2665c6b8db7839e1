// Package learning turns reader interactions into per-keyword interest
// weights and uses them to predict how relevant a story is to a reader.
package learning

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/johnrirwin/newsradar/internal/apperr"
	"github.com/johnrirwin/newsradar/internal/logging"
	"github.com/johnrirwin/newsradar/internal/models"
)

const (
	DefaultWeight       = 0.5
	DefaultLearningRate = 0.1
	DefaultLookback     = 30 * 24 * time.Hour

	discoverMinWeight      = 0.7
	discoverMinEngagements = 2
	recencyHorizon         = 48 * time.Hour
	insightsPerBucket      = 10
	activeMinKeywords      = 5
)

// InteractionStore reads and records reader interactions
type InteractionStore interface {
	AddInteraction(ctx context.Context, in models.Interaction) error
	// ListInteractions returns interactions created strictly after since,
	// oldest first.
	ListInteractions(ctx context.Context, userID string, since time.Time) ([]models.Interaction, error)
}

// WeightStore persists learned weights together with the learning cursor
type WeightStore interface {
	GetWeights(ctx context.Context, userID string) ([]models.InterestWeight, error)
	// SaveLearning writes weights and advances the cursor atomically
	SaveLearning(ctx context.Context, userID string, weights []models.InterestWeight, cursor time.Time) error
}

type StateStore interface {
	GetState(ctx context.Context, userID string) (models.UserState, error)
}

type PreferencesStore interface {
	GetPreferences(ctx context.Context, userID string) (models.UserPreferences, error)
}

type Config struct {
	LearningRate float64
	Lookback     time.Duration
}

type Engine struct {
	interactions InteractionStore
	weights      WeightStore
	state        StateStore
	prefs        PreferencesStore
	rate         float64
	lookback     time.Duration
	logger       *logging.Logger
	now          func() time.Time
}

func New(interactions InteractionStore, weights WeightStore, state StateStore, prefs PreferencesStore, cfg Config, logger *logging.Logger) *Engine {
	if cfg.LearningRate <= 0 {
		cfg.LearningRate = DefaultLearningRate
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = DefaultLookback
	}
	return &Engine{
		interactions: interactions,
		weights:      weights,
		state:        state,
		prefs:        prefs,
		rate:         cfg.LearningRate,
		lookback:     cfg.Lookback,
		logger:       logger,
		now:          time.Now,
	}
}

// NormalizeKeyword is the identity under which weights are stored
func NormalizeKeyword(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

// Record validates and stores a new interaction
func (e *Engine) Record(ctx context.Context, in models.Interaction) (models.Interaction, error) {
	if strings.TrimSpace(in.UserID) == "" {
		return in, apperr.ValidationError{Err: errors.New("user id is required")}
	}
	if strings.TrimSpace(in.ArticleID) == "" {
		return in, apperr.ValidationError{Err: errors.New("article id is required")}
	}
	if !in.Type.Valid() {
		return in, apperr.ValidationError{Err: fmt.Errorf("unknown interaction type %q", in.Type)}
	}
	if in.ViewDurationSeconds != nil && *in.ViewDurationSeconds < 0 {
		return in, apperr.ValidationError{Err: errors.New("view duration must not be negative")}
	}

	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = e.now()
	}

	if err := e.interactions.AddInteraction(ctx, in); err != nil {
		return in, wrapPersistence("add interaction", err)
	}
	return in, nil
}

// UpdateWeights applies every interaction newer than the user's cursor and
// inside the lookback window. Applying is idempotent: a second call with no
// new interactions changes nothing.
func (e *Engine) UpdateWeights(ctx context.Context, userID string) (models.WeightsResult, error) {
	result := models.WeightsResult{UserID: userID}

	state, err := e.state.GetState(ctx, userID)
	if err != nil {
		return result, wrapPersistence("get user state", err)
	}

	since := e.now().Add(-e.lookback)
	if state.LastLearnedAt.After(since) {
		since = state.LastLearnedAt
	}

	interactions, err := e.interactions.ListInteractions(ctx, userID, since)
	if err != nil {
		return result, wrapPersistence("list interactions", err)
	}

	current, err := e.weights.GetWeights(ctx, userID)
	if err != nil {
		return result, wrapPersistence("get weights", err)
	}
	byKeyword := make(map[string]*models.InterestWeight, len(current))
	for i := range current {
		w := current[i]
		byKeyword[NormalizeKeyword(w.Keyword)] = &w
	}

	if len(interactions) == 0 {
		result.Weights = sortedWeights(byKeyword)
		return result, nil
	}

	touched := make(map[string]bool)
	cursor := state.LastLearnedAt
	for _, in := range interactions {
		if in.CreatedAt.After(cursor) {
			cursor = in.CreatedAt
		}

		engagement := Engagement(in)
		for _, raw := range in.MatchedKeywords {
			kw := NormalizeKeyword(raw)
			if kw == "" {
				continue
			}
			w, ok := byKeyword[kw]
			if !ok {
				w = &models.InterestWeight{UserID: userID, Keyword: kw, Weight: DefaultWeight}
				byKeyword[kw] = w
			}
			w.Weight = clamp(w.Weight+e.rate*engagement, 0, 1)
			w.EngagementCount++
			if in.CreatedAt.After(w.LastSeenAt) {
				w.LastSeenAt = in.CreatedAt
			}
			touched[kw] = true
		}
	}

	changed := make([]models.InterestWeight, 0, len(touched))
	for kw := range touched {
		changed = append(changed, *byKeyword[kw])
		result.UpdatedKeywords = append(result.UpdatedKeywords, kw)
	}
	sort.Strings(result.UpdatedKeywords)

	if err := e.weights.SaveLearning(ctx, userID, changed, cursor); err != nil {
		return models.WeightsResult{UserID: userID}, wrapPersistence("save weights", err)
	}

	result.Weights = sortedWeights(byKeyword)
	result.InteractionsApplied = len(interactions)

	e.logger.Info("Updated interest weights", logging.WithFields(map[string]interface{}{
		"user_id":      userID,
		"interactions": len(interactions),
		"keywords":     len(touched),
	}))
	return result, nil
}

// Weights returns the user's weights keyed by normalized keyword
func (e *Engine) Weights(ctx context.Context, userID string) (map[string]float64, error) {
	ws, err := e.weights.GetWeights(ctx, userID)
	if err != nil {
		return nil, wrapPersistence("get weights", err)
	}
	out := make(map[string]float64, len(ws))
	for _, w := range ws {
		out[NormalizeKeyword(w.Keyword)] = w.Weight
	}
	return out, nil
}

// Candidate is what relevance prediction needs to know about a story
type Candidate struct {
	MatchedKeywords []string
	PublishedAt     time.Time
	Hotness         float64
}

// CandidateFromStory pairs a story with the reader keywords it matched
func CandidateFromStory(story models.Story, matched []string) Candidate {
	return Candidate{
		MatchedKeywords: matched,
		PublishedAt:     story.Representative.PublishedAt,
		Hotness:         story.Hotness.Overall,
	}
}

// PredictRelevance scores a candidate in [0, 1]:
// 0.5·keyword overlap + 0.2·recency + 0.3·hotness, where keyword overlap is
// the mean learned weight of matched keywords that have one. When no
// matched keyword has a learned weight the hotness alone is returned.
func (e *Engine) PredictRelevance(c Candidate, weights map[string]float64) float64 {
	hotness := clamp(c.Hotness, 0, 1)
	if len(c.MatchedKeywords) == 0 {
		return hotness
	}

	var sum float64
	var n int
	for _, kw := range c.MatchedKeywords {
		if w, ok := weights[NormalizeKeyword(kw)]; ok {
			sum += w
			n++
		}
	}
	if n == 0 {
		return hotness
	}
	overlap := sum / float64(n)

	recency := 0.0
	if !c.PublishedAt.IsZero() {
		age := e.now().Sub(c.PublishedAt)
		if age < 0 {
			age = 0
		}
		recency = clamp(1-float64(age)/float64(recencyHorizon), 0, 1)
	}

	return clamp(0.5*overlap+0.2*recency+0.3*hotness, 0, 1)
}

// DiscoverInterests returns strongly engaged keywords the user has not
// declared, strongest first.
func (e *Engine) DiscoverInterests(ctx context.Context, userID string) ([]models.InterestWeight, error) {
	ws, err := e.weights.GetWeights(ctx, userID)
	if err != nil {
		return nil, wrapPersistence("get weights", err)
	}

	declared := make(map[string]bool)
	if e.prefs != nil {
		prefs, err := e.prefs.GetPreferences(ctx, userID)
		if err != nil {
			return nil, wrapPersistence("get preferences", err)
		}
		for _, k := range prefs.Keywords {
			declared[NormalizeKeyword(k)] = true
		}
	}

	out := []models.InterestWeight{}
	for _, w := range ws {
		if w.Weight >= discoverMinWeight && w.EngagementCount >= discoverMinEngagements && !declared[NormalizeKeyword(w.Keyword)] {
			out = append(out, w)
		}
	}
	sortByWeight(out)
	return out, nil
}

// Insights buckets the user's learned keywords by strength
func (e *Engine) Insights(ctx context.Context, userID string) (models.LearningInsights, error) {
	ws, err := e.weights.GetWeights(ctx, userID)
	if err != nil {
		return models.LearningInsights{}, wrapPersistence("get weights", err)
	}
	sortByWeight(ws)

	ins := models.LearningInsights{
		UserID:               userID,
		TotalLearnedKeywords: len(ws),
		StrongInterests:      []models.WeightedKeyword{},
		ModerateInterests:    []models.WeightedKeyword{},
		WeakInterests:        []models.WeightedKeyword{},
		Status:               "learning",
	}
	if len(ws) > activeMinKeywords {
		ins.Status = "active"
	}

	add := func(bucket *[]models.WeightedKeyword, w models.InterestWeight) {
		if len(*bucket) < insightsPerBucket {
			*bucket = append(*bucket, models.WeightedKeyword{Keyword: w.Keyword, Weight: w.Weight})
		}
	}
	for _, w := range ws {
		switch {
		case w.Weight > 0.7:
			add(&ins.StrongInterests, w)
		case w.Weight > 0.4:
			add(&ins.ModerateInterests, w)
		default:
			add(&ins.WeakInterests, w)
		}
	}
	return ins, nil
}

func sortByWeight(ws []models.InterestWeight) {
	sort.SliceStable(ws, func(i, j int) bool {
		if ws[i].Weight != ws[j].Weight {
			return ws[i].Weight > ws[j].Weight
		}
		return ws[i].Keyword < ws[j].Keyword
	})
}

func sortedWeights(m map[string]*models.InterestWeight) []models.InterestWeight {
	out := make([]models.InterestWeight, 0, len(m))
	for _, w := range m {
		out = append(out, *w)
	}
	sortByWeight(out)
	return out
}

func wrapPersistence(op string, err error) error {
	if apperr.IsPersistence(err) {
		return err
	}
	return &apperr.PersistenceError{Op: op, Err: err}
}
