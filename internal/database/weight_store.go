package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/johnrirwin/newsradar/internal/models"
)

// WeightStore persists learned interest weights
type WeightStore struct {
	db *DB
}

func NewWeightStore(db *DB) *WeightStore {
	return &WeightStore{db: db}
}

func (s *WeightStore) GetWeights(ctx context.Context, userID string) ([]models.InterestWeight, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT user_id, keyword, weight, engagement_count, last_seen_at
		FROM interest_weights
		WHERE user_id = $1
		ORDER BY weight DESC, keyword
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query weights: %w", err)
	}
	defer rows.Close()

	out := make([]models.InterestWeight, 0)
	for rows.Next() {
		var w models.InterestWeight
		var lastSeen sql.NullTime
		if err := rows.Scan(&w.UserID, &w.Keyword, &w.Weight, &w.EngagementCount, &lastSeen); err != nil {
			return nil, fmt.Errorf("scan weight: %w", err)
		}
		w.LastSeenAt = lastSeen.Time
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate weights: %w", err)
	}
	return out, nil
}

// SaveLearning upserts weights and moves the user's learning cursor in one
// transaction, so an interaction is never applied twice.
func (s *WeightStore) SaveLearning(ctx context.Context, userID string, weights []models.InterestWeight, cursor time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO interest_weights (user_id, keyword, weight, engagement_count, last_seen_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, keyword) DO UPDATE SET
			weight = EXCLUDED.weight,
			engagement_count = EXCLUDED.engagement_count,
			last_seen_at = EXCLUDED.last_seen_at
	`)
	if err != nil {
		return fmt.Errorf("prepare weight upsert: %w", err)
	}
	defer stmt.Close()

	for _, w := range weights {
		if _, err := stmt.ExecContext(ctx, userID, w.Keyword, w.Weight, w.EngagementCount, nullTime(w.LastSeenAt)); err != nil {
			return fmt.Errorf("upsert weight %s: %w", w.Keyword, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO user_state (user_id, last_learned_at) VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET last_learned_at = EXCLUDED.last_learned_at
	`, userID, nullTime(cursor)); err != nil {
		return fmt.Errorf("advance learning cursor: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}
