package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/johnrirwin/newsradar/internal/models"
)

const defaultMaxArticles = 20

// PreferencesStore persists what readers declared they care about
type PreferencesStore struct {
	db *DB
}

func NewPreferencesStore(db *DB) *PreferencesStore {
	return &PreferencesStore{db: db}
}

// DefaultPreferences is what a user without saved preferences gets
func DefaultPreferences(userID string) models.UserPreferences {
	return models.UserPreferences{
		UserID:           userID,
		Keywords:         []string{},
		ExcludedKeywords: []string{},
		Sources:          []string{},
		MaxArticles:      defaultMaxArticles,
	}
}

func (s *PreferencesStore) GetPreferences(ctx context.Context, userID string) (models.UserPreferences, error) {
	prefs := DefaultPreferences(userID)
	var keywords, excluded, sources pq.StringArray

	err := s.db.QueryRowContext(ctx, `
		SELECT keywords, excluded_keywords, sources, max_articles, updated_at
		FROM user_preferences WHERE user_id = $1
	`, userID).Scan(&keywords, &excluded, &sources, &prefs.MaxArticles, &prefs.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return prefs, nil
	}
	if err != nil {
		return prefs, fmt.Errorf("get preferences: %w", err)
	}

	prefs.Keywords = nonNil([]string(keywords))
	prefs.ExcludedKeywords = nonNil([]string(excluded))
	prefs.Sources = nonNil([]string(sources))
	return prefs, nil
}

func (s *PreferencesStore) SavePreferences(ctx context.Context, prefs models.UserPreferences) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_preferences (user_id, keywords, excluded_keywords, sources, max_articles, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id) DO UPDATE SET
			keywords = EXCLUDED.keywords,
			excluded_keywords = EXCLUDED.excluded_keywords,
			sources = EXCLUDED.sources,
			max_articles = EXCLUDED.max_articles,
			updated_at = EXCLUDED.updated_at
	`,
		prefs.UserID,
		pq.Array(nonNil(prefs.Keywords)),
		pq.Array(nonNil(prefs.ExcludedKeywords)),
		pq.Array(nonNil(prefs.Sources)),
		prefs.MaxArticles,
		prefs.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}
