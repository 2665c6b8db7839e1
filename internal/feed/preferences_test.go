package feed

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnrirwin/newsradar/internal/apperr"
	"github.com/johnrirwin/newsradar/internal/models"
)

func TestPreferences_Defaults(t *testing.T) {
	h := newHarness(t, nil)

	prefs, err := h.updater.Preferences(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", prefs.UserID)
	assert.Equal(t, 20, prefs.MaxArticles)
}

func TestUpdatePreferences_Normalizes(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	saved, err := h.updater.UpdatePreferences(ctx, models.UserPreferences{
		UserID:      "u1",
		Keywords:    []string{" Fed ", "fed", "", "Oil"},
		Sources:     []string{"Reuters"},
		MaxArticles: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"fed", "oil"}, saved.Keywords)
	assert.Equal(t, []string{}, saved.ExcludedKeywords)
	assert.Equal(t, now, saved.UpdatedAt)

	got, err := h.updater.Preferences(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"reuters"}, got.Sources)
	assert.Equal(t, 5, got.MaxArticles)
}

func TestUpdatePreferences_InvalidatesCache(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.updater.SmartFetch(ctx, "u1")
	require.NoError(t, err)

	_, err = h.updater.UpdatePreferences(ctx, models.UserPreferences{UserID: "u1", MaxArticles: 10})
	require.NoError(t, err)

	payload, err := h.updater.SmartFetch(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, payload.FromCache)
}

func TestUpdatePreferences_Validation(t *testing.T) {
	h := newHarness(t, nil)
	ctx := context.Background()

	_, err := h.updater.UpdatePreferences(ctx, models.UserPreferences{UserID: "u1", MaxArticles: 0})
	assert.True(t, apperr.IsValidation(err))

	_, err = h.updater.UpdatePreferences(ctx, models.UserPreferences{MaxArticles: 10})
	assert.True(t, apperr.IsValidation(err))
}
