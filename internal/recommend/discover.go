// Package recommend is the personalized recommendation engine: candidate
// discovery fan-out, enrichment, multi-factor scoring with deal-breaker
// vetoes, diversity selection and the pipeline tying them together.
package recommend

import (
	"context"
	"log"
	"sort"
	"sync"

	"cinerec/internal/models"
	"cinerec/internal/tmdb"
)

// MetadataClient is the slice of the upstream client the engine needs.
type MetadataClient interface {
	Popular(ctx context.Context, mediaType models.MediaType, page int) ([]tmdb.RawItem, error)
	Trending(ctx context.Context, scope string, page int) ([]tmdb.RawItem, error)
	Discover(ctx context.Context, mediaType models.MediaType, opts tmdb.DiscoverOptions) ([]tmdb.RawItem, error)
	Search(ctx context.Context, mediaType models.MediaType, query string) ([]tmdb.RawItem, error)
	Similar(ctx context.Context, mediaType models.MediaType, id int64) ([]tmdb.RawItem, error)
	Recommendations(ctx context.Context, mediaType models.MediaType, id int64) ([]tmdb.RawItem, error)
	Detail(ctx context.Context, mediaType models.MediaType, id int64, appendCreditsKeywords bool) (*tmdb.DetailedItem, error)
}

const (
	// DefaultMaxCandidates bounds the merged candidate set.
	DefaultMaxCandidates = 80

	topGenreCount      = 5
	favoriteSeedCount  = 3
	similarTakePerSeed = 10
	trendingPages      = 2
	nichePages         = 2
	popularPages       = 3
)

// Discoverer fans out across discovery strategies and merges their output
// into a deduplicated, bounded candidate set.
type Discoverer struct {
	client        MetadataClient
	maxCandidates int
}

func NewDiscoverer(client MetadataClient) *Discoverer {
	return &Discoverer{client: client, maxCandidates: DefaultMaxCandidates}
}

// SetMaxCandidates overrides the candidate cap (env knob).
func (d *Discoverer) SetMaxCandidates(n int) {
	if n > 0 {
		d.maxCandidates = n
	}
}

type strategy struct {
	name string
	run  func(ctx context.Context) []models.Candidate
}

// Discover runs every applicable strategy in parallel and merges results in
// strategy declaration order: dedupe by id, drop excluded ids, stop at the
// candidate cap. Strategy failures contribute nothing; they never fail the
// set.
func (d *Discoverer) Discover(ctx context.Context, mediaType models.MediaType, prefs *models.UserPreferences, exclude map[int64]bool) []models.Candidate {
	strategies := d.strategies(mediaType, prefs)

	results := make([][]models.Candidate, len(strategies))
	var wg sync.WaitGroup
	for i, s := range strategies {
		i, s := i, s
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.run(ctx)
		}()
	}
	wg.Wait()

	seen := make(map[int64]bool, d.maxCandidates)
	merged := make([]models.Candidate, 0, d.maxCandidates)
	for _, batch := range results {
		for _, c := range batch {
			if len(merged) >= d.maxCandidates {
				return merged
			}
			if c.ID == 0 || seen[c.ID] || exclude[c.ID] {
				continue
			}
			seen[c.ID] = true
			merged = append(merged, c)
		}
	}
	return merged
}

func (d *Discoverer) strategies(mediaType models.MediaType, prefs *models.UserPreferences) []strategy {
	types := mediaType.Expand()
	var out []strategy

	if len(prefs.GenreRatings) > 0 {
		out = append(out, strategy{"top_genres", func(ctx context.Context) []models.Candidate {
			return d.topGenres(ctx, types, prefs.GenreRatings)
		}})
	}
	if len(prefs.FavoriteContent) > 0 {
		out = append(out, strategy{"similar_to_favorite", func(ctx context.Context) []models.Candidate {
			return d.similarToFavorites(ctx, types, prefs.FavoriteContent)
		}})
	}
	if prefs.WantsDiscovery(models.DiscoveryTrending) {
		out = append(out, strategy{"trending", func(ctx context.Context) []models.Candidate {
			return d.trending(ctx, types)
		}})
	}
	if prefs.WantsDiscovery(models.DiscoveryHiddenGems) {
		out = append(out, strategy{"hidden_gems", func(ctx context.Context) []models.Candidate {
			return d.hiddenGems(ctx, types)
		}})
	}
	if prefs.WantsDiscovery(models.DiscoveryAwardWinning) {
		out = append(out, strategy{"award_winning", func(ctx context.Context) []models.Candidate {
			return d.awardWinning(ctx, types)
		}})
	}
	out = append(out, strategy{"popular", func(ctx context.Context) []models.Candidate {
		return d.popular(ctx, types)
	}})
	return out
}

// topGenres queries discover for the user's five highest-rated genres.
func (d *Discoverer) topGenres(ctx context.Context, types []models.MediaType, ratings map[int]int) []models.Candidate {
	genres := topRatedGenres(ratings, topGenreCount)
	var out []models.Candidate
	for _, mt := range types {
		for _, g := range genres {
			items, err := d.client.Discover(ctx, mt, tmdb.DiscoverOptions{WithGenres: []int{g}, Page: 1})
			if err != nil {
				log.Printf("discover: top_genres %s genre %d: %v", mt, g, err)
				continue
			}
			out = appendCandidates(out, items, mt)
		}
	}
	return out
}

// topRatedGenres orders genre ids by rating descending, id ascending on
// ties, and returns the first n.
func topRatedGenres(ratings map[int]int, n int) []int {
	ids := make([]int, 0, len(ratings))
	for g := range ratings {
		ids = append(ids, g)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ratings[ids[i]] != ratings[ids[j]] {
			return ratings[ids[i]] > ratings[ids[j]]
		}
		return ids[i] < ids[j]
	})
	if len(ids) > n {
		ids = ids[:n]
	}
	return ids
}

// similarToFavorites resolves each of the first three free-text favorite
// titles via search, then pulls similar titles and recommendations for the
// first hit.
func (d *Discoverer) similarToFavorites(ctx context.Context, types []models.MediaType, titles []string) []models.Candidate {
	if len(titles) > favoriteSeedCount {
		titles = titles[:favoriteSeedCount]
	}
	var out []models.Candidate
	for _, title := range titles {
		for _, mt := range types {
			hits, err := d.client.Search(ctx, mt, title)
			if err != nil {
				log.Printf("discover: searching %q as %s: %v", title, mt, err)
				continue
			}
			if len(hits) == 0 {
				continue
			}
			seed := hits[0].ID

			similar, err := d.client.Similar(ctx, mt, seed)
			if err != nil {
				log.Printf("discover: similar to %s/%d: %v", mt, seed, err)
			} else {
				out = appendCandidates(out, capItems(similar, similarTakePerSeed), mt)
			}

			recs, err := d.client.Recommendations(ctx, mt, seed)
			if err != nil {
				log.Printf("discover: recommendations for %s/%d: %v", mt, seed, err)
			} else {
				out = appendCandidates(out, capItems(recs, similarTakePerSeed), mt)
			}
		}
	}
	return out
}

// trending pulls the typed trending feeds, two pages per type.
func (d *Discoverer) trending(ctx context.Context, types []models.MediaType) []models.Candidate {
	var out []models.Candidate
	for _, mt := range types {
		for page := 1; page <= trendingPages; page++ {
			items, err := d.client.Trending(ctx, string(mt), page)
			if err != nil {
				log.Printf("discover: trending %s page %d: %v", mt, page, err)
				continue
			}
			out = appendCandidates(out, items, mt)
		}
	}
	return out
}

func (d *Discoverer) hiddenGems(ctx context.Context, types []models.MediaType) []models.Candidate {
	var out []models.Candidate
	for _, mt := range types {
		for page := 1; page <= nichePages; page++ {
			items, err := d.client.Discover(ctx, mt, tmdb.DiscoverOptions{
				SortBy:       "vote_average.desc",
				VoteCountGte: 50,
				VoteCountLte: 500,
				Page:         page,
			})
			if err != nil {
				log.Printf("discover: hidden_gems %s page %d: %v", mt, page, err)
				continue
			}
			out = appendCandidates(out, items, mt)
		}
	}
	return out
}

func (d *Discoverer) awardWinning(ctx context.Context, types []models.MediaType) []models.Candidate {
	var out []models.Candidate
	for _, mt := range types {
		for page := 1; page <= nichePages; page++ {
			items, err := d.client.Discover(ctx, mt, tmdb.DiscoverOptions{
				SortBy:       "vote_average.desc",
				VoteCountGte: 1000,
				Page:         page,
			})
			if err != nil {
				log.Printf("discover: award_winning %s page %d: %v", mt, page, err)
				continue
			}
			out = appendCandidates(out, items, mt)
		}
	}
	return out
}

func (d *Discoverer) popular(ctx context.Context, types []models.MediaType) []models.Candidate {
	var out []models.Candidate
	for _, mt := range types {
		for page := 1; page <= popularPages; page++ {
			items, err := d.client.Popular(ctx, mt, page)
			if err != nil {
				log.Printf("discover: popular %s page %d: %v", mt, page, err)
				continue
			}
			out = appendCandidates(out, items, mt)
		}
	}
	return out
}

func appendCandidates(out []models.Candidate, items []tmdb.RawItem, fallback models.MediaType) []models.Candidate {
	for i := range items {
		out = append(out, items[i].Candidate(fallback))
	}
	return out
}

func capItems(items []tmdb.RawItem, n int) []tmdb.RawItem {
	if len(items) > n {
		return items[:n]
	}
	return items
}
