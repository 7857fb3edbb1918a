package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"cinerec/internal/models"
)

// cacheBatchSize caps one batched write to the scheduled cache.
const cacheBatchSize = 25

const upsertCachedItemSQL = `INSERT INTO rec_cache
	(cache_key, content_id, content_type, category, title, overview, poster_path,
	backdrop_path, vote_average, vote_count, popularity, release_date,
	original_language, genre_ids, fetched_at, expires_at, source)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(cache_key) DO UPDATE SET
		title=excluded.title, overview=excluded.overview,
		poster_path=excluded.poster_path, backdrop_path=excluded.backdrop_path,
		vote_average=excluded.vote_average, vote_count=excluded.vote_count,
		popularity=excluded.popularity, release_date=excluded.release_date,
		original_language=excluded.original_language, genre_ids=excluded.genre_ids,
		fetched_at=excluded.fetched_at, expires_at=excluded.expires_at,
		source=excluded.source`

func cachedItemArgs(item *models.CachedItem) []any {
	var genreRaw any
	if len(item.GenreIDs) > 0 {
		b, _ := json.Marshal(item.GenreIDs)
		genreRaw = b
	}
	return []any{
		item.CacheKey, item.ContentID, item.ContentType, item.Category,
		item.Title, item.Overview, item.PosterPath, item.BackdropPath,
		item.VoteAverage, item.VoteCount, item.Popularity, item.ReleaseDate,
		item.OriginalLanguage, genreRaw, item.FetchedAt.UTC(), item.ExpiresAt.UTC(),
		item.Source,
	}
}

// BatchUpsertCachedItems writes items in chunks of at most 25. When a
// batched transaction fails, the chunk falls back to per-item writes so a
// single bad row cannot sink the whole refresh. Returns the number of items
// written.
func (s *Store) BatchUpsertCachedItems(ctx context.Context, items []models.CachedItem) (int, error) {
	var written int
	for start := 0; start < len(items); start += cacheBatchSize {
		end := start + cacheBatchSize
		if end > len(items) {
			end = len(items)
		}
		chunk := items[start:end]

		if err := s.upsertCacheChunkTx(ctx, chunk); err != nil {
			log.Printf("store: batch cache write failed, falling back to per-item writes: %v", err)
			for i := range chunk {
				if _, err := s.db.ExecContext(ctx, upsertCachedItemSQL, cachedItemArgs(&chunk[i])...); err != nil {
					log.Printf("store: cache write %s: %v", chunk[i].CacheKey, err)
					continue
				}
				written++
			}
			continue
		}
		written += len(chunk)
	}
	return written, nil
}

func (s *Store) upsertCacheChunkTx(ctx context.Context, chunk []models.CachedItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for i := range chunk {
		if _, err := tx.ExecContext(ctx, upsertCachedItemSQL, cachedItemArgs(&chunk[i])...); err != nil {
			tx.Rollback()
			return fmt.Errorf("upsert %s: %w", chunk[i].CacheKey, err)
		}
	}
	return tx.Commit()
}

// GetCachedItem reads one row by its point key, ignoring expired entries.
func (s *Store) GetCachedItem(ctx context.Context, cacheKey string) (*models.CachedItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT cache_key, content_id, content_type, category, title, overview,
			poster_path, backdrop_path, vote_average, vote_count, popularity,
			release_date, original_language, genre_ids, fetched_at, expires_at, source
		FROM rec_cache WHERE cache_key = ? AND expires_at > ?`,
		cacheKey, time.Now().UTC())
	item, err := scanCachedItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cached item: %w", err)
	}
	return item, nil
}

// ListCachedByCategory returns unexpired rows for a category, optionally
// filtered by media type, ordered by popularity.
func (s *Store) ListCachedByCategory(ctx context.Context, category string, mediaType models.MediaType, limit int) ([]models.CachedItem, error) {
	q := `SELECT cache_key, content_id, content_type, category, title, overview,
			poster_path, backdrop_path, vote_average, vote_count, popularity,
			release_date, original_language, genre_ids, fetched_at, expires_at, source
		FROM rec_cache WHERE category = ? AND expires_at > ?`
	args := []any{category, time.Now().UTC()}
	if mediaType != "" && mediaType != models.MediaTypeBoth {
		q += ` AND content_type = ?`
		args = append(args, mediaType)
	}
	q += ` ORDER BY popularity DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list cached by category: %w", err)
	}
	defer rows.Close()

	var out []models.CachedItem
	for rows.Next() {
		item, err := scanCachedItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan cached item: %w", err)
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

// PurgeExpiredCache deletes rows past their TTL and reports how many.
func (s *Store) PurgeExpiredCache(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM rec_cache WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge expired cache: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCachedItem(row rowScanner) (*models.CachedItem, error) {
	var (
		item     models.CachedItem
		genreRaw sql.NullString
	)
	err := row.Scan(
		&item.CacheKey, &item.ContentID, &item.ContentType, &item.Category,
		&item.Title, &item.Overview, &item.PosterPath, &item.BackdropPath,
		&item.VoteAverage, &item.VoteCount, &item.Popularity, &item.ReleaseDate,
		&item.OriginalLanguage, &genreRaw, &item.FetchedAt, &item.ExpiresAt, &item.Source,
	)
	if err != nil {
		return nil, err
	}
	if genreRaw.Valid && genreRaw.String != "" {
		json.Unmarshal([]byte(genreRaw.String), &item.GenreIDs)
	}
	return &item, nil
}
