package database

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/johnrirwin/newsradar/internal/models"
)

// MemoryStore implements every store in process memory. It backs the
// service when no database is configured and keeps the same semantics as
// the Postgres stores.
type MemoryStore struct {
	mu           sync.RWMutex
	items        map[string]map[string]models.FeedItem
	interactions map[string][]models.Interaction
	weights      map[string]map[string]models.InterestWeight
	state        map[string]models.UserState
	prefs        map[string]models.UserPreferences
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		items:        make(map[string]map[string]models.FeedItem),
		interactions: make(map[string][]models.Interaction),
		weights:      make(map[string]map[string]models.InterestWeight),
		state:        make(map[string]models.UserState),
		prefs:        make(map[string]models.UserPreferences),
	}
}

func copyItem(item models.FeedItem) models.FeedItem {
	item.MatchedKeywords = append([]string{}, item.MatchedKeywords...)
	item.Tags = append([]string{}, item.Tags...)
	return item
}

func (m *MemoryStore) InsertNewItems(ctx context.Context, items []models.FeedItem) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	inserted := 0
	for _, item := range items {
		user, ok := m.items[item.UserID]
		if !ok {
			user = make(map[string]models.FeedItem)
			m.items[item.UserID] = user
		}
		if _, exists := user[item.ArticleID]; exists {
			continue
		}
		user[item.ArticleID] = copyItem(item)
		inserted++
	}
	return inserted, nil
}

func matchesFilter(item models.FeedItem, f models.FeedFilter, ids map[string]bool) bool {
	if f.UnreadOnly && item.IsRead {
		return false
	}
	if f.SavedOnly && !item.IsSaved {
		return false
	}
	if f.LikedOnly && !item.IsLiked {
		return false
	}
	if !f.Since.IsZero() && !item.PublishedAt.After(f.Since) {
		return false
	}
	if ids != nil && !ids[item.ArticleID] {
		return false
	}
	if f.MinRelevance > 0 && item.RelevanceScore < f.MinRelevance {
		return false
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		found := false
		for _, k := range item.MatchedKeywords {
			if strings.EqualFold(k, kw) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func (m *MemoryStore) QueryItems(ctx context.Context, userID string, f models.FeedFilter) ([]models.FeedItem, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids map[string]bool
	if len(f.ArticleIDs) > 0 {
		ids = make(map[string]bool, len(f.ArticleIDs))
		for _, id := range f.ArticleIDs {
			ids[id] = true
		}
	}

	matched := make([]models.FeedItem, 0)
	for _, item := range m.items[userID] {
		if matchesFilter(item, f, ids) {
			matched = append(matched, copyItem(item))
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		if !a.PublishedAt.Equal(b.PublishedAt) {
			return a.PublishedAt.After(b.PublishedAt)
		}
		return a.ArticleID < b.ArticleID
	})

	total := len(matched)
	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			matched = matched[:0]
		} else {
			matched = matched[f.Offset:]
		}
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	return matched, total, nil
}

func (m *MemoryStore) GetItem(ctx context.Context, userID, articleID string) (models.FeedItem, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	item, ok := m.items[userID][articleID]
	if !ok {
		return models.FeedItem{}, ErrNotFound
	}
	return copyItem(item), nil
}

func (m *MemoryStore) SetStatus(ctx context.Context, userID, articleID string, status models.FeedStatus, at time.Time) (models.FeedItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[userID][articleID]
	if !ok {
		return models.FeedItem{}, ErrNotFound
	}

	ts := at
	switch status {
	case models.StatusRead:
		item.IsRead, item.ReadAt = true, &ts
	case models.StatusLiked:
		item.IsLiked, item.LikedAt = true, &ts
		item.IsDisliked, item.DislikedAt = false, nil
	case models.StatusDisliked:
		item.IsDisliked, item.DislikedAt = true, &ts
		item.IsLiked, item.LikedAt = false, nil
	case models.StatusSaved:
		item.IsSaved, item.SavedAt = true, &ts
	default:
		return models.FeedItem{}, fmt.Errorf("unknown status %q", status)
	}

	m.items[userID][articleID] = item
	return copyItem(item), nil
}

func (m *MemoryStore) DeleteItemsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, user := range m.items {
		for id, item := range user {
			if item.PublishedAt.Before(cutoff) && !item.IsSaved {
				delete(user, id)
				n++
			}
		}
	}
	return n, nil
}

func (m *MemoryStore) AddInteraction(ctx context.Context, in models.Interaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	in.MatchedKeywords = append([]string{}, in.MatchedKeywords...)
	m.interactions[in.UserID] = append(m.interactions[in.UserID], in)
	return nil
}

func (m *MemoryStore) ListInteractions(ctx context.Context, userID string, since time.Time) ([]models.Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Interaction, 0)
	for _, in := range m.interactions[userID] {
		if in.CreatedAt.After(since) {
			out = append(out, in)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) GetWeights(ctx context.Context, userID string) ([]models.InterestWeight, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.InterestWeight, 0, len(m.weights[userID]))
	for _, w := range m.weights[userID] {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].Keyword < out[j].Keyword
	})
	return out, nil
}

func (m *MemoryStore) SaveLearning(ctx context.Context, userID string, weights []models.InterestWeight, cursor time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.weights[userID]
	if !ok {
		user = make(map[string]models.InterestWeight)
		m.weights[userID] = user
	}
	for _, w := range weights {
		w.UserID = userID
		user[w.Keyword] = w
	}

	st := m.state[userID]
	st.UserID = userID
	st.LastLearnedAt = cursor
	m.state[userID] = st
	return nil
}

func (m *MemoryStore) GetState(ctx context.Context, userID string) (models.UserState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st, ok := m.state[userID]
	if !ok {
		return models.UserState{UserID: userID}, nil
	}
	return st, nil
}

func (m *MemoryStore) SaveRefresh(ctx context.Context, userID string, lastSeen, refreshedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.state[userID]
	st.UserID = userID
	if lastSeen.After(st.LastSeenPublishedAt) {
		st.LastSeenPublishedAt = lastSeen
	}
	st.LastRefreshAt = refreshedAt
	m.state[userID] = st
	return nil
}

func (m *MemoryStore) GetPreferences(ctx context.Context, userID string) (models.UserPreferences, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	prefs, ok := m.prefs[userID]
	if !ok {
		return DefaultPreferences(userID), nil
	}
	return prefs, nil
}

func (m *MemoryStore) SavePreferences(ctx context.Context, prefs models.UserPreferences) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	prefs.Keywords = nonNil(append([]string(nil), prefs.Keywords...))
	prefs.ExcludedKeywords = nonNil(append([]string(nil), prefs.ExcludedKeywords...))
	prefs.Sources = nonNil(append([]string(nil), prefs.Sources...))
	m.prefs[prefs.UserID] = prefs
	return nil
}
