package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"cinerec/internal/models"
)

// GetPreferences returns the stored preferences for a user, or an empty
// record when none exist. The record is normalized before return.
func (s *Store) GetPreferences(ctx context.Context, userID string) (*models.UserPreferences, error) {
	var raw []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT prefs FROM user_preferences WHERE user_id = ?`, userID,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return &models.UserPreferences{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get preferences: %w", err)
	}

	var prefs models.UserPreferences
	if err := json.Unmarshal(raw, &prefs); err != nil {
		return nil, fmt.Errorf("decoding preferences: %w", err)
	}
	prefs.Normalize()
	return &prefs, nil
}

// UpsertPreferences writes the full preference record for a user. The
// preference CRUD surface itself lives outside this service; this write path
// exists for seeding and tests.
func (s *Store) UpsertPreferences(ctx context.Context, userID string, prefs *models.UserPreferences) error {
	raw, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO user_preferences (user_id, prefs, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET prefs=excluded.prefs, updated_at=excluded.updated_at`,
		userID, raw, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert preferences: %w", err)
	}
	return nil
}

// ListFavorites returns a user's favorites, newest first.
func (s *Store) ListFavorites(ctx context.Context, userID string) ([]models.FavoriteItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT media_id, media_type, title, added_at, genre_ids, vote_average, release_date
		FROM favorites WHERE user_id = ? ORDER BY added_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer rows.Close()

	var out []models.FavoriteItem
	for rows.Next() {
		var (
			f        models.FavoriteItem
			addedAt  sql.NullTime
			genreRaw sql.NullString
			voteAvg  sql.NullFloat64
			release  sql.NullString
		)
		if err := rows.Scan(&f.MediaID, &f.MediaType, &f.Title, &addedAt, &genreRaw, &voteAvg, &release); err != nil {
			return nil, fmt.Errorf("scan favorite: %w", err)
		}
		if addedAt.Valid {
			f.AddedAt = addedAt.Time
		}
		if genreRaw.Valid && genreRaw.String != "" {
			json.Unmarshal([]byte(genreRaw.String), &f.GenreIDs)
		}
		if voteAvg.Valid {
			v := voteAvg.Float64
			f.VoteAverage = &v
		}
		if release.Valid {
			f.ReleaseDate = release.String
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) AddFavorite(ctx context.Context, userID string, f models.FavoriteItem) error {
	var genreRaw []byte
	if len(f.GenreIDs) > 0 {
		genreRaw, _ = json.Marshal(f.GenreIDs)
	}
	var addedAt any
	if !f.AddedAt.IsZero() {
		addedAt = f.AddedAt.UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO favorites (user_id, media_id, media_type, title, added_at, genre_ids, vote_average, release_date)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, media_id) DO UPDATE SET
			media_type=excluded.media_type, title=excluded.title, added_at=excluded.added_at,
			genre_ids=excluded.genre_ids, vote_average=excluded.vote_average, release_date=excluded.release_date`,
		userID, f.MediaID, f.MediaType, f.Title, addedAt, nullIfEmpty(genreRaw), f.VoteAverage, nullStr(f.ReleaseDate))
	if err != nil {
		return fmt.Errorf("add favorite: %w", err)
	}
	return nil
}

// ListWatchlist returns a user's watchlist, newest first.
func (s *Store) ListWatchlist(ctx context.Context, userID string) ([]models.WatchlistItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT media_id, media_type, title, added_at, genre_ids
		FROM watchlist WHERE user_id = ? ORDER BY added_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list watchlist: %w", err)
	}
	defer rows.Close()

	var out []models.WatchlistItem
	for rows.Next() {
		var (
			w        models.WatchlistItem
			addedAt  sql.NullTime
			genreRaw sql.NullString
		)
		if err := rows.Scan(&w.MediaID, &w.MediaType, &w.Title, &addedAt, &genreRaw); err != nil {
			return nil, fmt.Errorf("scan watchlist item: %w", err)
		}
		if addedAt.Valid {
			w.AddedAt = addedAt.Time
		}
		if genreRaw.Valid && genreRaw.String != "" {
			json.Unmarshal([]byte(genreRaw.String), &w.GenreIDs)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *Store) AddWatchlistItem(ctx context.Context, userID string, w models.WatchlistItem) error {
	var genreRaw []byte
	if len(w.GenreIDs) > 0 {
		genreRaw, _ = json.Marshal(w.GenreIDs)
	}
	var addedAt any
	if !w.AddedAt.IsZero() {
		addedAt = w.AddedAt.UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO watchlist (user_id, media_id, media_type, title, added_at, genre_ids)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, media_id) DO UPDATE SET
			media_type=excluded.media_type, title=excluded.title, added_at=excluded.added_at,
			genre_ids=excluded.genre_ids`,
		userID, w.MediaID, w.MediaType, w.Title, addedAt, nullIfEmpty(genreRaw))
	if err != nil {
		return fmt.Errorf("add watchlist item: %w", err)
	}
	return nil
}

func nullIfEmpty(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}
