package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/johnrirwin/newsradar/internal/apperr"
	"github.com/johnrirwin/newsradar/internal/logging"
	"github.com/johnrirwin/newsradar/internal/models"
)

// SmartFetch serves the reader's cached feed while it is fresh. Otherwise it
// refreshes, reads the feed and caches it. When collection fails the stored
// feed is served uncached so the next call retries.
func (u *Updater) SmartFetch(ctx context.Context, userID string) (models.FeedPayload, error) {
	if u.cache != nil {
		if entry, ok := u.cache.Get(userID); ok {
			payload := entry.Payload
			payload.FromCache = true
			return payload, nil
		}
	}

	_, refreshErr := u.Refresh(ctx, userID)
	if refreshErr != nil && !apperr.IsCollection(refreshErr) {
		return models.FeedPayload{UserID: userID}, refreshErr
	}

	prefs, err := u.store.GetPreferences(ctx, userID)
	if err != nil {
		return models.FeedPayload{UserID: userID}, wrapPersistence("get preferences", err)
	}

	payload, err := u.Feed(ctx, userID, models.FeedFilter{Limit: prefs.MaxArticles})
	if err != nil {
		return payload, err
	}

	if refreshErr != nil {
		u.logger.Warn("Serving stored feed after failed refresh", logging.WithFields(map[string]interface{}{
			"user_id": userID,
			"error":   refreshErr.Error(),
		}))
		return payload, nil
	}

	if u.cache != nil {
		u.cache.Set(userID, payload)
	}
	return payload, nil
}

// Feed reads one page of the reader's persisted feed
func (u *Updater) Feed(ctx context.Context, userID string, filter models.FeedFilter) (models.FeedPayload, error) {
	payload := models.FeedPayload{UserID: userID, Items: []models.FeedItem{}}
	if strings.TrimSpace(userID) == "" {
		return payload, apperr.ValidationError{Err: errors.New("user id is required")}
	}

	switch {
	case filter.Limit <= 0:
		filter.Limit = DefaultPageSize
	case filter.Limit > MaxPageSize:
		filter.Limit = MaxPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	items, total, err := u.store.QueryItems(ctx, userID, filter)
	if err != nil {
		return payload, wrapPersistence("query feed items", err)
	}

	payload.Items = items
	payload.TotalItems = total
	payload.GeneratedAt = u.now()
	return payload, nil
}

// StatusOptions carries optional engagement detail for a status change
type StatusOptions struct {
	ViewDurationSeconds *int
	ClickedReadMore     bool
}

var statusInteraction = map[models.FeedStatus]models.InteractionType{
	models.StatusRead:     models.InteractionView,
	models.StatusLiked:    models.InteractionLike,
	models.StatusDisliked: models.InteractionDislike,
	models.StatusSaved:    models.InteractionSave,
}

// SetStatus flags a feed item and records the matching interaction so the
// learning engine sees it.
func (u *Updater) SetStatus(ctx context.Context, userID, articleID string, status models.FeedStatus, opts StatusOptions) (models.FeedItem, error) {
	if !status.Valid() {
		return models.FeedItem{}, apperr.ValidationError{Err: fmt.Errorf("unknown status %q", status)}
	}
	if opts.ViewDurationSeconds != nil && *opts.ViewDurationSeconds < 0 {
		return models.FeedItem{}, apperr.ValidationError{Err: errors.New("view duration must not be negative")}
	}

	at := u.now()
	item, err := u.store.SetStatus(ctx, userID, articleID, status, at)
	if err != nil {
		return models.FeedItem{}, wrapPersistence("set item status", err)
	}

	_, err = u.learner.Record(ctx, models.Interaction{
		UserID:              userID,
		ArticleID:           articleID,
		Type:                statusInteraction[status],
		ViewDurationSeconds: opts.ViewDurationSeconds,
		ClickedReadMore:     opts.ClickedReadMore,
		MatchedKeywords:     item.MatchedKeywords,
		CreatedAt:           at,
	})
	if err != nil {
		u.logger.Warn("Failed to record interaction", logging.WithFields(map[string]interface{}{
			"user_id":    userID,
			"article_id": articleID,
			"error":      err.Error(),
		}))
	}

	if u.cache != nil {
		u.cache.Invalidate(userID)
	}
	return item, nil
}

// Prune drops unsaved items published before now-maxAge for every reader
func (u *Updater) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	n, err := u.store.DeleteItemsOlderThan(ctx, u.now().Add(-maxAge))
	if err != nil {
		return 0, wrapPersistence("prune feed items", err)
	}
	if n > 0 {
		u.logger.Info("Pruned feed items", logging.WithField("deleted", n))
	}
	return n, nil
}
