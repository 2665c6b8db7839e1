package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/johnrirwin/newsradar/internal/models"
)

// InteractionStore records reader interactions
type InteractionStore struct {
	db *DB
}

func NewInteractionStore(db *DB) *InteractionStore {
	return &InteractionStore{db: db}
}

func (s *InteractionStore) AddInteraction(ctx context.Context, in models.Interaction) error {
	var duration sql.NullInt64
	if in.ViewDurationSeconds != nil {
		duration = sql.NullInt64{Int64: int64(*in.ViewDurationSeconds), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO interactions (
			id, user_id, article_id, interaction_type,
			view_duration_seconds, clicked_read_more, matched_keywords, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		in.ID,
		in.UserID,
		in.ArticleID,
		string(in.Type),
		duration,
		in.ClickedReadMore,
		pq.Array(nonNil(in.MatchedKeywords)),
		in.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert interaction: %w", err)
	}
	return nil
}

// ListInteractions returns interactions created strictly after since, oldest first
func (s *InteractionStore) ListInteractions(ctx context.Context, userID string, since time.Time) ([]models.Interaction, error) {
	query, args, err := psql.Select(
		"id", "user_id", "article_id", "interaction_type",
		"view_duration_seconds", "clicked_read_more", "matched_keywords", "created_at",
	).
		From("interactions").
		Where(sq.Eq{"user_id": userID}).
		Where(sq.Gt{"created_at": since}).
		OrderBy("created_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build interaction query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	out := make([]models.Interaction, 0)
	for rows.Next() {
		var in models.Interaction
		var typ string
		var duration sql.NullInt64
		var keywords pq.StringArray

		if err := rows.Scan(&in.ID, &in.UserID, &in.ArticleID, &typ, &duration, &in.ClickedReadMore, &keywords, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		in.Type = models.InteractionType(typ)
		if duration.Valid {
			d := int(duration.Int64)
			in.ViewDurationSeconds = &d
		}
		in.MatchedKeywords = nonNil([]string(keywords))
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate interactions: %w", err)
	}
	return out, nil
}
