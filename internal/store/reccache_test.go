package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinerec/internal/models"
)

func cachedItem(category string, mt models.MediaType, id int64, popularity float64, ttl time.Duration) models.CachedItem {
	now := time.Now().UTC()
	return models.CachedItem{
		CacheKey:    models.CacheKeyFor(category, mt, id),
		ContentID:   id,
		ContentType: mt,
		Category:    category,
		Title:       fmt.Sprintf("Title %d", id),
		VoteAverage: 7.5,
		VoteCount:   1200,
		Popularity:  popularity,
		GenreIDs:    []int{28},
		FetchedAt:   now,
		ExpiresAt:   now.Add(ttl),
		Source:      "scheduled_population",
	}
}

func TestBatchUpsertAndList(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	var items []models.CachedItem
	for i := int64(1); i <= 60; i++ {
		items = append(items, cachedItem("popular", models.MediaTypeMovie, i, float64(i), 7*24*time.Hour))
	}

	written, err := s.BatchUpsertCachedItems(ctx, items)
	require.NoError(t, err)
	assert.Equal(t, 60, written)

	got, err := s.ListCachedByCategory(ctx, "popular", models.MediaTypeMovie, 10)
	require.NoError(t, err)
	require.Len(t, got, 10)
	assert.Equal(t, int64(60), got[0].ContentID, "ordered by popularity desc")
	assert.Equal(t, []int{28}, got[0].GenreIDs)
}

func TestUpsertReplacesExisting(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first := cachedItem("trending", models.MediaTypeTV, 1396, 10, 7*24*time.Hour)
	_, err := s.BatchUpsertCachedItems(ctx, []models.CachedItem{first})
	require.NoError(t, err)

	updated := first
	updated.Popularity = 99
	_, err = s.BatchUpsertCachedItems(ctx, []models.CachedItem{updated})
	require.NoError(t, err)

	got, err := s.ListCachedByCategory(ctx, "trending", models.MediaTypeTV, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 99, got[0].Popularity, 0.001)
}

func TestExpiredRowsInvisible(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.BatchUpsertCachedItems(ctx, []models.CachedItem{
		cachedItem("popular", models.MediaTypeMovie, 1, 5, -time.Hour),
		cachedItem("popular", models.MediaTypeMovie, 2, 5, 7*24*time.Hour),
	})
	require.NoError(t, err)

	got, err := s.ListCachedByCategory(ctx, "popular", models.MediaTypeMovie, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ContentID)

	item, err := s.GetCachedItem(ctx, models.CacheKeyFor("popular", models.MediaTypeMovie, 1))
	require.NoError(t, err)
	assert.Nil(t, item, "expired point read returns nothing")
}

func TestPurgeExpiredCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.BatchUpsertCachedItems(ctx, []models.CachedItem{
		cachedItem("popular", models.MediaTypeMovie, 1, 5, -time.Hour),
		cachedItem("popular", models.MediaTypeMovie, 2, 5, time.Hour),
	})
	require.NoError(t, err)

	purged, err := s.PurgeExpiredCache(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)
}

func TestListFiltersMediaType(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.BatchUpsertCachedItems(ctx, []models.CachedItem{
		cachedItem("hidden_gems", models.MediaTypeMovie, 1, 5, time.Hour),
		cachedItem("hidden_gems", models.MediaTypeTV, 2, 9, time.Hour),
	})
	require.NoError(t, err)

	got, err := s.ListCachedByCategory(ctx, "hidden_gems", models.MediaTypeTV, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.MediaTypeTV, got[0].ContentType)

	both, err := s.ListCachedByCategory(ctx, "hidden_gems", models.MediaTypeBoth, 10)
	require.NoError(t, err)
	assert.Len(t, both, 2)
}
