// Package dna condenses a user's favorites list into aggregate taste
// signals: temporally weighted actor and director frequencies, genre and
// decade distributions, and rating statistics.
package dna

import (
	"context"
	"log"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"cinerec/internal/models"
	"cinerec/internal/tmdb"
)

const (
	// enrichParallelism bounds the detail fan-out for favorites that
	// arrive without credits.
	enrichParallelism = 10

	// topCastPerTitle is how many billed cast members of each favorite
	// contribute to the actor frequencies.
	topCastPerTitle = 5

	// rankedListSize caps the preferred actor and director lists.
	rankedListSize = 10

	// watchlistEnrichCap bounds the watchlist detail fan-out.
	watchlistEnrichCap = 20
)

// MetadataSource fetches a single title's detail record.
type MetadataSource interface {
	Detail(ctx context.Context, mediaType models.MediaType, id int64, appendCreditsKeywords bool) (*tmdb.DetailedItem, error)
}

type Analyzer struct {
	source MetadataSource
	now    func() time.Time
}

func NewAnalyzer(source MetadataSource) *Analyzer {
	return &Analyzer{source: source, now: time.Now}
}

// Analyze builds the content profile for a favorites list. Favorites missing
// credits or genres are enriched first; an enrichment failure keeps the raw
// record so one bad title never sinks the profile. An empty list yields an
// empty profile.
func (a *Analyzer) Analyze(ctx context.Context, favorites []models.FavoriteItem) *models.ContentDNA {
	profile := &models.ContentDNA{
		PreferredActors:    []models.NameFrequency{},
		PreferredDirectors: []models.NameFrequency{},
		GenreDistribution:  map[int]float64{},
		DecadePreferences:  map[int]float64{},
	}
	if len(favorites) == 0 {
		return profile
	}

	enriched := a.enrich(ctx, favorites)
	now := a.now().UTC()

	actorWeights := make(map[string]float64)
	directorWeights := make(map[string]float64)
	var ratings []float64

	for i := range enriched {
		f := &enriched[i]
		w := models.TemporalWeight(f.AddedAt, now)

		for j, m := range f.Cast {
			if j >= topCastPerTitle {
				break
			}
			actorWeights[m.Name] += w
		}
		for _, m := range f.Crew {
			if m.Job == "Director" {
				directorWeights[m.Name] += w
			}
		}
		for _, g := range f.GenreIDs {
			profile.GenreDistribution[g] += w
		}
		if d := f.Decade(); d > 0 {
			profile.DecadePreferences[d] += w
		}
		if f.VoteAverage != nil {
			ratings = append(ratings, *f.VoteAverage)
		}
	}

	profile.PreferredActors = rankNames(actorWeights)
	profile.PreferredDirectors = rankNames(directorWeights)
	profile.RatingPatterns = ratingStats(ratings)
	return profile
}

// enrich fills in credits and genres for favorites that lack them. The input
// slice is never mutated.
func (a *Analyzer) enrich(ctx context.Context, favorites []models.FavoriteItem) []models.FavoriteItem {
	out := append([]models.FavoriteItem(nil), favorites...)
	if a.source == nil {
		return out
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichParallelism)

	for i := range out {
		f := &out[i]
		if !needsEnrichment(f) {
			continue
		}
		g.Go(func() error {
			d, err := a.source.Detail(ctx, f.MediaType, f.MediaID, true)
			if err != nil {
				log.Printf("dna: enriching favorite %s/%d: %v", f.MediaType, f.MediaID, err)
				return nil
			}
			applyDetail(f, d)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// EnrichWatchlist fills credits for watchlist items that arrive with genres
// only, so pairwise similarity against them is not capped at the genre term.
// At most 20 items are fetched; failures keep the raw record and the input
// slice is never mutated.
func (a *Analyzer) EnrichWatchlist(ctx context.Context, items []models.WatchlistItem) []models.WatchlistItem {
	out := append([]models.WatchlistItem(nil), items...)
	if a.source == nil {
		return out
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichParallelism)

	var fetched int
	for i := range out {
		w := &out[i]
		if w.MediaType != models.MediaTypeMovie && w.MediaType != models.MediaTypeTV {
			continue
		}
		if len(w.Cast) > 0 {
			continue
		}
		if fetched >= watchlistEnrichCap {
			break
		}
		fetched++
		g.Go(func() error {
			d, err := a.source.Detail(ctx, w.MediaType, w.MediaID, true)
			if err != nil {
				log.Printf("dna: enriching watchlist item %s/%d: %v", w.MediaType, w.MediaID, err)
				return nil
			}
			c := models.Candidate{ID: w.MediaID, MediaType: w.MediaType}
			d.Apply(&c)
			w.Cast = c.Cast
			w.Crew = c.Crew
			if len(w.GenreIDs) == 0 {
				w.GenreIDs = c.GenreIDs
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func needsEnrichment(f *models.FavoriteItem) bool {
	if f.MediaType != models.MediaTypeMovie && f.MediaType != models.MediaTypeTV {
		return false
	}
	return len(f.Cast) == 0 || len(f.GenreIDs) == 0
}

func applyDetail(f *models.FavoriteItem, d *tmdb.DetailedItem) {
	c := models.Candidate{ID: f.MediaID, MediaType: f.MediaType}
	d.Apply(&c)

	if len(f.Cast) == 0 {
		f.Cast = c.Cast
	}
	if len(f.Crew) == 0 {
		f.Crew = c.Crew
	}
	if len(f.GenreIDs) == 0 {
		f.GenreIDs = c.GenreIDs
	}
	if f.VoteAverage == nil && c.VoteCount > 0 {
		v := c.VoteAverage
		f.VoteAverage = &v
	}
	if f.ReleaseDate == "" {
		if d.ReleaseDate != "" {
			f.ReleaseDate = d.ReleaseDate
		} else {
			f.ReleaseDate = d.FirstAirDate
		}
	}
}

// rankNames orders accumulated weights descending, breaking ties by name,
// and rounds frequencies to two decimals.
func rankNames(weights map[string]float64) []models.NameFrequency {
	ranked := make([]models.NameFrequency, 0, len(weights))
	for name, w := range weights {
		ranked = append(ranked, models.NameFrequency{Name: name, Frequency: round2(w)})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Frequency != ranked[j].Frequency {
			return ranked[i].Frequency > ranked[j].Frequency
		}
		return ranked[i].Name < ranked[j].Name
	})
	if len(ranked) > rankedListSize {
		ranked = ranked[:rankedListSize]
	}
	return ranked
}

func ratingStats(ratings []float64) models.RatingPatterns {
	if len(ratings) == 0 {
		return models.RatingPatterns{}
	}
	stats := models.RatingPatterns{
		Count: len(ratings),
		Min:   ratings[0],
		Max:   ratings[0],
	}
	var sum float64
	for _, r := range ratings {
		sum += r
		if r < stats.Min {
			stats.Min = r
		}
		if r > stats.Max {
			stats.Max = r
		}
	}
	stats.Average = round2(sum / float64(len(ratings)))
	return stats
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
