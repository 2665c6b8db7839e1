package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// psql builds Postgres-flavoured statements
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Config holds database configuration
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Host:            "localhost",
		Port:            5432,
		User:            "postgres",
		Password:        "postgres",
		Database:        "newsradar",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DSN renders the lib/pq connection string
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// DB wraps the sql.DB connection
type DB struct {
	*sql.DB
	config Config
}

// New creates a new database connection
func New(config Config) (*DB, error) {
	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, config: config}, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.DB.Close()
}

// Migrate runs database migrations
func (db *DB) Migrate(ctx context.Context) error {
	migrations := []string{
		migrationFeedItems,
		migrationFeedItemIndexes,
		migrationInteractions,
		migrationInterestWeights,
		migrationUserState,
		migrationUserPreferences,
	}

	for i, migration := range migrations {
		if _, err := db.ExecContext(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}

	return nil
}

// Migration SQL statements
const migrationFeedItems = `
CREATE TABLE IF NOT EXISTS feed_items (
    user_id VARCHAR(255) NOT NULL,
    article_id VARCHAR(255) NOT NULL,
    story_id VARCHAR(64),
    title TEXT NOT NULL,
    summary TEXT,
    url TEXT NOT NULL,
    source VARCHAR(255),
    published_at TIMESTAMPTZ NOT NULL,
    added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    relevance_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    hotness DOUBLE PRECISION NOT NULL DEFAULT 0,
    matched_keywords TEXT[] NOT NULL DEFAULT '{}',
    tags TEXT[] NOT NULL DEFAULT '{}',
    cluster_size INTEGER NOT NULL DEFAULT 1,
    is_read BOOLEAN NOT NULL DEFAULT FALSE,
    is_liked BOOLEAN NOT NULL DEFAULT FALSE,
    is_disliked BOOLEAN NOT NULL DEFAULT FALSE,
    is_saved BOOLEAN NOT NULL DEFAULT FALSE,
    read_at TIMESTAMPTZ,
    liked_at TIMESTAMPTZ,
    disliked_at TIMESTAMPTZ,
    saved_at TIMESTAMPTZ,
    PRIMARY KEY (user_id, article_id)
);
`

const migrationFeedItemIndexes = `
CREATE INDEX IF NOT EXISTS idx_feed_items_user_relevance ON feed_items(user_id, relevance_score DESC, published_at DESC);
CREATE INDEX IF NOT EXISTS idx_feed_items_user_published ON feed_items(user_id, published_at DESC);
`

const migrationInteractions = `
CREATE TABLE IF NOT EXISTS interactions (
    id UUID PRIMARY KEY,
    user_id VARCHAR(255) NOT NULL,
    article_id VARCHAR(255) NOT NULL,
    interaction_type VARCHAR(20) NOT NULL,
    view_duration_seconds INTEGER,
    clicked_read_more BOOLEAN NOT NULL DEFAULT FALSE,
    matched_keywords TEXT[] NOT NULL DEFAULT '{}',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_interactions_user_created ON interactions(user_id, created_at);
`

const migrationInterestWeights = `
CREATE TABLE IF NOT EXISTS interest_weights (
    user_id VARCHAR(255) NOT NULL,
    keyword VARCHAR(255) NOT NULL,
    weight DOUBLE PRECISION NOT NULL CHECK (weight >= 0 AND weight <= 1),
    engagement_count INTEGER NOT NULL DEFAULT 0,
    last_seen_at TIMESTAMPTZ,
    PRIMARY KEY (user_id, keyword)
);
`

const migrationUserState = `
CREATE TABLE IF NOT EXISTS user_state (
    user_id VARCHAR(255) PRIMARY KEY,
    last_seen_published_at TIMESTAMPTZ,
    last_refresh_at TIMESTAMPTZ,
    last_learned_at TIMESTAMPTZ
);
`

const migrationUserPreferences = `
CREATE TABLE IF NOT EXISTS user_preferences (
    user_id VARCHAR(255) PRIMARY KEY,
    keywords TEXT[] NOT NULL DEFAULT '{}',
    excluded_keywords TEXT[] NOT NULL DEFAULT '{}',
    sources TEXT[] NOT NULL DEFAULT '{}',
    max_articles INTEGER NOT NULL DEFAULT 20,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	t := nt.Time
	return &t
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Store bundles every Postgres-backed store behind one value
type Store struct {
	*FeedItemStore
	*InteractionStore
	*WeightStore
	*StateStore
	*PreferencesStore
}

func NewStore(db *DB) *Store {
	return &Store{
		FeedItemStore:    NewFeedItemStore(db),
		InteractionStore: NewInteractionStore(db),
		WeightStore:      NewWeightStore(db),
		StateStore:       NewStateStore(db),
		PreferencesStore: NewPreferencesStore(db),
	}
}
