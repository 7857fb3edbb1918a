// Package populator keeps the persistent recommendation cache warm. A cron
// scheduler runs a daily job over the popular and trending feeds and a
// weekly job over genre, hidden-gem and award-winning discover queries;
// items are batch-written with a 7-day TTL.
package populator

import (
	"context"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"cinerec/internal/models"
	"cinerec/internal/tmdb"
)

const (
	// CacheTTL is how long populated rows stay servable.
	CacheTTL = 7 * 24 * time.Hour

	// Source marks rows written by this job.
	Source = "scheduled_population"

	dailySchedule  = "0 6 * * *"
	weeklySchedule = "0 4 * * 0"

	popularPages = 2
)

// Categories written to the persistent cache.
const (
	CategoryPopular      = "popular"
	CategoryTrending     = "trending"
	CategoryGenre        = "genre"
	CategoryHiddenGems   = "hidden_gems"
	CategoryAwardWinning = "award_winning"
)

// weeklyGenres are the upstream's perennially popular genres: action,
// comedy, drama, science fiction, thriller.
var weeklyGenres = []int{28, 35, 18, 878, 53}

// Client is the slice of the upstream client the populator needs. It is
// backed by a dedicated limiter (8 concurrent, 250 ms gap) so population
// never starves the request path.
type Client interface {
	Popular(ctx context.Context, mediaType models.MediaType, page int) ([]tmdb.RawItem, error)
	Trending(ctx context.Context, scope string, page int) ([]tmdb.RawItem, error)
	Discover(ctx context.Context, mediaType models.MediaType, opts tmdb.DiscoverOptions) ([]tmdb.RawItem, error)
}

// CacheStore is the persistent cache write side.
type CacheStore interface {
	BatchUpsertCachedItems(ctx context.Context, items []models.CachedItem) (int, error)
	PurgeExpiredCache(ctx context.Context) (int64, error)
}

type Populator struct {
	client Client
	store  CacheStore
	cron   *cron.Cron
	now    func() time.Time
}

func New(client Client, store CacheStore) *Populator {
	return &Populator{
		client: client,
		store:  store,
		cron:   cron.New(),
		now:    time.Now,
	}
}

// Start registers the daily and weekly schedules and launches the cron
// loop. Jobs carry a generous deadline; a missed run is made up at the next
// tick rather than retried.
func (p *Populator) Start() error {
	if _, err := p.cron.AddFunc(dailySchedule, func() { p.runScheduled("daily", p.RunDaily) }); err != nil {
		return err
	}
	if _, err := p.cron.AddFunc(weeklySchedule, func() { p.runScheduled("weekly", p.RunWeekly) }); err != nil {
		return err
	}
	p.cron.Start()
	log.Printf("populator: scheduled daily %q and weekly %q", dailySchedule, weeklySchedule)
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (p *Populator) Stop() {
	<-p.cron.Stop().Done()
}

func (p *Populator) runScheduled(name string, run func(context.Context) int) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Minute)
	defer cancel()

	start := p.now()
	written := run(ctx)
	if purged, err := p.store.PurgeExpiredCache(ctx); err != nil {
		log.Printf("populator: purging expired rows: %v", err)
	} else if purged > 0 {
		log.Printf("populator: purged %d expired rows", purged)
	}
	log.Printf("populator: %s run wrote %d items in %s", name, written, time.Since(start).Round(time.Millisecond))
}

// RunDaily populates the popular and trending categories. Returns the
// number of rows written; individual feed failures are logged and skipped.
func (p *Populator) RunDaily(ctx context.Context) int {
	var written int
	for _, mt := range []models.MediaType{models.MediaTypeMovie, models.MediaTypeTV} {
		for page := 1; page <= popularPages; page++ {
			items, err := p.client.Popular(ctx, mt, page)
			if err != nil {
				log.Printf("populator: popular %s page %d: %v", mt, page, err)
				continue
			}
			written += p.write(ctx, CategoryPopular, mt, items)
		}
	}
	for _, scope := range []string{"movie", "tv", "all"} {
		items, err := p.client.Trending(ctx, scope, 1)
		if err != nil {
			log.Printf("populator: trending %s: %v", scope, err)
			continue
		}
		fallback := models.MediaType(scope)
		if scope == "all" {
			fallback = ""
		}
		written += p.write(ctx, CategoryTrending, fallback, items)
	}
	return written
}

// RunWeekly populates the genre, hidden-gem and award-winning categories.
func (p *Populator) RunWeekly(ctx context.Context) int {
	var written int
	for _, mt := range []models.MediaType{models.MediaTypeMovie, models.MediaTypeTV} {
		for _, g := range weeklyGenres {
			items, err := p.client.Discover(ctx, mt, tmdb.DiscoverOptions{WithGenres: []int{g}, Page: 1})
			if err != nil {
				log.Printf("populator: genre %d %s: %v", g, mt, err)
				continue
			}
			written += p.write(ctx, CategoryGenre, mt, items)
		}

		gems, err := p.client.Discover(ctx, mt, tmdb.DiscoverOptions{
			SortBy: "vote_average.desc", VoteCountGte: 50, VoteCountLte: 500, Page: 1,
		})
		if err != nil {
			log.Printf("populator: hidden gems %s: %v", mt, err)
		} else {
			written += p.write(ctx, CategoryHiddenGems, mt, gems)
		}

		awarded, err := p.client.Discover(ctx, mt, tmdb.DiscoverOptions{
			SortBy: "vote_average.desc", VoteCountGte: 1000, Page: 1,
		})
		if err != nil {
			log.Printf("populator: award winning %s: %v", mt, err)
		} else {
			written += p.write(ctx, CategoryAwardWinning, mt, awarded)
		}
	}
	return written
}

// RunFull runs both jobs back to back (manual warm-up).
func (p *Populator) RunFull(ctx context.Context) int {
	return p.RunDaily(ctx) + p.RunWeekly(ctx)
}

// write normalizes raw items into cache rows and batch-upserts them. Items
// without a resolvable media type (mixed feeds) are skipped.
func (p *Populator) write(ctx context.Context, category string, fallback models.MediaType, items []tmdb.RawItem) int {
	now := p.now().UTC()
	rows := make([]models.CachedItem, 0, len(items))
	for i := range items {
		c := items[i].Candidate(fallback)
		if c.ID == 0 || (c.MediaType != models.MediaTypeMovie && c.MediaType != models.MediaTypeTV) {
			continue
		}
		rows = append(rows, models.CachedItem{
			CacheKey:         models.CacheKeyFor(category, c.MediaType, c.ID),
			ContentID:        c.ID,
			ContentType:      c.MediaType,
			Category:         category,
			Title:            c.Title,
			Overview:         c.Overview,
			PosterPath:       c.PosterPath,
			BackdropPath:     c.BackdropPath,
			VoteAverage:      c.VoteAverage,
			VoteCount:        c.VoteCount,
			Popularity:       c.Popularity,
			ReleaseDate:      c.ReleaseDate,
			OriginalLanguage: c.OriginalLanguage,
			GenreIDs:         c.GenreIDs,
			FetchedAt:        now,
			ExpiresAt:        now.Add(CacheTTL),
			Source:           Source,
		})
	}
	if len(rows) == 0 {
		return 0
	}
	written, err := p.store.BatchUpsertCachedItems(ctx, rows)
	if err != nil {
		log.Printf("populator: writing %s batch: %v", category, err)
	}
	return written
}
