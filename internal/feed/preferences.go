package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/johnrirwin/newsradar/internal/apperr"
	"github.com/johnrirwin/newsradar/internal/models"
)

// Preferences returns the reader's declared interests and filters
func (u *Updater) Preferences(ctx context.Context, userID string) (models.UserPreferences, error) {
	if strings.TrimSpace(userID) == "" {
		return models.UserPreferences{}, apperr.ValidationError{Err: errors.New("user id is required")}
	}
	prefs, err := u.store.GetPreferences(ctx, userID)
	if err != nil {
		return models.UserPreferences{}, wrapPersistence("get preferences", err)
	}
	return prefs, nil
}

// UpdatePreferences normalizes and stores prefs. The cached feed is dropped
// because filters and the article cap apply on the next refresh.
func (u *Updater) UpdatePreferences(ctx context.Context, prefs models.UserPreferences) (models.UserPreferences, error) {
	if strings.TrimSpace(prefs.UserID) == "" {
		return prefs, apperr.ValidationError{Err: errors.New("user id is required")}
	}
	if prefs.MaxArticles < 1 || prefs.MaxArticles > MaxPageSize {
		return prefs, apperr.ValidationError{Err: fmt.Errorf("max articles must be between 1 and %d", MaxPageSize)}
	}

	prefs.Keywords = normalizeList(prefs.Keywords)
	prefs.ExcludedKeywords = normalizeList(prefs.ExcludedKeywords)
	prefs.Sources = normalizeList(prefs.Sources)
	prefs.UpdatedAt = u.now()

	if err := u.store.SavePreferences(ctx, prefs); err != nil {
		return prefs, wrapPersistence("save preferences", err)
	}
	u.Invalidate(prefs.UserID)
	return prefs, nil
}

// Invalidate drops the reader's cached feed
func (u *Updater) Invalidate(userID string) {
	if u.cache != nil {
		u.cache.Invalidate(userID)
	}
}

// normalizeList lowercases, trims and de-duplicates, keeping first-seen order
func normalizeList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}
