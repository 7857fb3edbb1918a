package store

import (
	"context"
	"log"
	"sync"

	"cinerec/internal/models"
)

// Bundle is the read-only view over one user's preference data.
type Bundle struct {
	Preferences *models.UserPreferences
	Favorites   []models.FavoriteItem
	Watchlist   []models.WatchlistItem
}

// LoadUserBundle reads preferences, favorites and watchlist in parallel.
// Individual failures degrade to empty collections rather than failing the
// bundle; the pipeline proceeds with what it has.
func (s *Store) LoadUserBundle(ctx context.Context, userID string) *Bundle {
	b := &Bundle{Preferences: &models.UserPreferences{}}

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		prefs, err := s.GetPreferences(ctx, userID)
		if err != nil {
			log.Printf("store: loading preferences for %s: %v", userID, err)
			return
		}
		b.Preferences = prefs
	}()

	go func() {
		defer wg.Done()
		favs, err := s.ListFavorites(ctx, userID)
		if err != nil {
			log.Printf("store: loading favorites for %s: %v", userID, err)
			return
		}
		b.Favorites = favs
	}()

	go func() {
		defer wg.Done()
		wl, err := s.ListWatchlist(ctx, userID)
		if err != nil {
			log.Printf("store: loading watchlist for %s: %v", userID, err)
			return
		}
		b.Watchlist = wl
	}()

	wg.Wait()
	return b
}
