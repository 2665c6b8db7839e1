package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/johnrirwin/newsradar/internal/models"
)

// FeedItemStore persists per-user feed items in Postgres.
type FeedItemStore struct {
	db *DB
}

func NewFeedItemStore(db *DB) *FeedItemStore {
	return &FeedItemStore{db: db}
}

var feedItemColumns = []string{
	"user_id", "article_id", "story_id", "title", "summary", "url", "source",
	"published_at", "added_at", "relevance_score", "hotness",
	"matched_keywords", "tags", "cluster_size",
	"is_read", "is_liked", "is_disliked", "is_saved",
	"read_at", "liked_at", "disliked_at", "saved_at",
}

// InsertNewItems adds items whose (user_id, article_id) is not stored yet.
// Existing rows, including their read/like/save flags, are left alone.
// It returns the number of rows actually inserted.
func (s *FeedItemStore) InsertNewItems(ctx context.Context, items []models.FeedItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO feed_items (
			user_id, article_id, story_id, title, summary, url, source,
			published_at, added_at, relevance_score, hotness,
			matched_keywords, tags, cluster_size
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10, $11,
			$12, $13, $14
		)
		ON CONFLICT (user_id, article_id) DO NOTHING
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, item := range items {
		res, err := stmt.ExecContext(ctx,
			item.UserID,
			item.ArticleID,
			nullString(item.StoryID),
			item.Title,
			nullString(item.Summary),
			item.URL,
			nullString(item.Source),
			item.PublishedAt,
			item.AddedAt,
			item.RelevanceScore,
			item.Hotness,
			pq.Array(nonNil(item.MatchedKeywords)),
			pq.Array(nonNil(item.Tags)),
			item.ClusterSize,
		)
		if err != nil {
			return 0, fmt.Errorf("insert feed item %s: %w", item.ArticleID, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}
	return inserted, nil
}

func feedWhere(userID string, f models.FeedFilter) sq.And {
	where := sq.And{sq.Eq{"user_id": userID}}
	if f.UnreadOnly {
		where = append(where, sq.Eq{"is_read": false})
	}
	if f.SavedOnly {
		where = append(where, sq.Eq{"is_saved": true})
	}
	if f.LikedOnly {
		where = append(where, sq.Eq{"is_liked": true})
	}
	if !f.Since.IsZero() {
		where = append(where, sq.Gt{"published_at": f.Since})
	}
	if len(f.ArticleIDs) > 0 {
		where = append(where, sq.Eq{"article_id": f.ArticleIDs})
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		where = append(where, sq.Expr("EXISTS (SELECT 1 FROM unnest(matched_keywords) k WHERE LOWER(k) = LOWER(?))", kw))
	}
	if f.MinRelevance > 0 {
		where = append(where, sq.GtOrEq{"relevance_score": f.MinRelevance})
	}
	return where
}

// QueryItems returns a page of a user's feed and the total matching count.
// Items are ordered by relevance, then recency.
func (s *FeedItemStore) QueryItems(ctx context.Context, userID string, f models.FeedFilter) ([]models.FeedItem, int, error) {
	where := feedWhere(userID, f)

	countSQL, countArgs, err := psql.Select("COUNT(*)").From("feed_items").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := s.db.QueryRowContext(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count feed items: %w", err)
	}

	q := psql.Select(feedItemColumns...).
		From("feed_items").
		Where(where).
		OrderBy("relevance_score DESC", "published_at DESC", "article_id")
	if f.Limit > 0 {
		q = q.Limit(uint64(f.Limit)).Offset(uint64(f.Offset))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build feed query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query feed items: %w", err)
	}
	defer rows.Close()

	items := make([]models.FeedItem, 0)
	for rows.Next() {
		item, err := scanFeedItem(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate feed items: %w", err)
	}

	return items, total, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFeedItem(row rowScanner) (models.FeedItem, error) {
	var item models.FeedItem
	var storyID, summary, source sql.NullString
	var keywords, tags pq.StringArray
	var readAt, likedAt, dislikedAt, savedAt sql.NullTime

	if err := row.Scan(
		&item.UserID,
		&item.ArticleID,
		&storyID,
		&item.Title,
		&summary,
		&item.URL,
		&source,
		&item.PublishedAt,
		&item.AddedAt,
		&item.RelevanceScore,
		&item.Hotness,
		&keywords,
		&tags,
		&item.ClusterSize,
		&item.IsRead,
		&item.IsLiked,
		&item.IsDisliked,
		&item.IsSaved,
		&readAt,
		&likedAt,
		&dislikedAt,
		&savedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return item, ErrNotFound
		}
		return item, fmt.Errorf("scan feed item: %w", err)
	}

	item.StoryID = storyID.String
	item.Summary = summary.String
	item.Source = source.String
	item.MatchedKeywords = nonNil([]string(keywords))
	item.Tags = nonNil([]string(tags))
	item.ReadAt = timePtr(readAt)
	item.LikedAt = timePtr(likedAt)
	item.DislikedAt = timePtr(dislikedAt)
	item.SavedAt = timePtr(savedAt)
	return item, nil
}

// GetItem returns one feed item or ErrNotFound
func (s *FeedItemStore) GetItem(ctx context.Context, userID, articleID string) (models.FeedItem, error) {
	query, args, err := psql.Select(feedItemColumns...).
		From("feed_items").
		Where(sq.Eq{"user_id": userID, "article_id": articleID}).
		ToSql()
	if err != nil {
		return models.FeedItem{}, fmt.Errorf("build item query: %w", err)
	}
	return scanFeedItem(s.db.QueryRowContext(ctx, query, args...))
}

// SetStatus applies a status action to one item. Like and dislike are
// mutually exclusive.
func (s *FeedItemStore) SetStatus(ctx context.Context, userID, articleID string, status models.FeedStatus, at time.Time) (models.FeedItem, error) {
	q := psql.Update("feed_items").Where(sq.Eq{"user_id": userID, "article_id": articleID})

	switch status {
	case models.StatusRead:
		q = q.Set("is_read", true).Set("read_at", at)
	case models.StatusLiked:
		q = q.Set("is_liked", true).Set("liked_at", at).
			Set("is_disliked", false).Set("disliked_at", nil)
	case models.StatusDisliked:
		q = q.Set("is_disliked", true).Set("disliked_at", at).
			Set("is_liked", false).Set("liked_at", nil)
	case models.StatusSaved:
		q = q.Set("is_saved", true).Set("saved_at", at)
	default:
		return models.FeedItem{}, fmt.Errorf("unknown status %q", status)
	}

	query, args, err := q.Suffix("RETURNING " + strings.Join(feedItemColumns, ", ")).ToSql()
	if err != nil {
		return models.FeedItem{}, fmt.Errorf("build status update: %w", err)
	}
	return scanFeedItem(s.db.QueryRowContext(ctx, query, args...))
}

// DeleteItemsOlderThan prunes feed items published before cutoff
func (s *FeedItemStore) DeleteItemsOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM feed_items WHERE published_at < $1 AND NOT is_saved`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete old feed items: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows, nil
}
