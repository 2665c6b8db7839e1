package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/johnrirwin/newsradar/internal/models"
)

// StateStore tracks per-user incremental progress
type StateStore struct {
	db *DB
}

func NewStateStore(db *DB) *StateStore {
	return &StateStore{db: db}
}

// GetState returns the user's state; a user never seen has the zero state
func (s *StateStore) GetState(ctx context.Context, userID string) (models.UserState, error) {
	state := models.UserState{UserID: userID}
	var seen, refreshed, learned sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT last_seen_published_at, last_refresh_at, last_learned_at
		FROM user_state WHERE user_id = $1
	`, userID).Scan(&seen, &refreshed, &learned)
	if errors.Is(err, sql.ErrNoRows) {
		return state, nil
	}
	if err != nil {
		return state, fmt.Errorf("get user state: %w", err)
	}

	state.LastSeenPublishedAt = seen.Time
	state.LastRefreshAt = refreshed.Time
	state.LastLearnedAt = learned.Time
	return state, nil
}

// SaveRefresh records a completed refresh. The seen watermark never moves
// backwards.
func (s *StateStore) SaveRefresh(ctx context.Context, userID string, lastSeen, refreshedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_state (user_id, last_seen_published_at, last_refresh_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			last_seen_published_at = GREATEST(user_state.last_seen_published_at, EXCLUDED.last_seen_published_at),
			last_refresh_at = EXCLUDED.last_refresh_at
	`, userID, nullTime(lastSeen), refreshedAt)
	if err != nil {
		return fmt.Errorf("save refresh state: %w", err)
	}
	return nil
}
