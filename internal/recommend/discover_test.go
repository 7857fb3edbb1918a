package recommend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cinerec/internal/models"
	"cinerec/internal/tmdb"
)

// fakeClient is an in-memory MetadataClient. Unset feeds return empty
// results; per-method error hooks simulate upstream failures.
type fakeClient struct {
	mu sync.Mutex

	popular  map[models.MediaType][]tmdb.RawItem
	trending map[string][]tmdb.RawItem
	discover map[models.MediaType][]tmdb.RawItem
	search   map[string][]tmdb.RawItem
	similar  map[int64][]tmdb.RawItem
	recs     map[int64][]tmdb.RawItem
	details  map[int64]string

	searchErr   error
	detailErr   error
	discoverErr error

	calls []string
}

func (f *fakeClient) record(format string, args ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeClient) callCount(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int
	for _, c := range f.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			n++
		}
	}
	return n
}

func (f *fakeClient) Popular(_ context.Context, mt models.MediaType, page int) ([]tmdb.RawItem, error) {
	f.record("popular %s %d", mt, page)
	if page == 1 {
		return f.popular[mt], nil
	}
	return nil, nil
}

func (f *fakeClient) Trending(_ context.Context, scope string, page int) ([]tmdb.RawItem, error) {
	f.record("trending %s %d", scope, page)
	if page == 1 {
		return f.trending[scope], nil
	}
	return nil, nil
}

func (f *fakeClient) Discover(_ context.Context, mt models.MediaType, opts tmdb.DiscoverOptions) ([]tmdb.RawItem, error) {
	f.record("discover %s genres=%v gte=%d lte=%d", mt, opts.WithGenres, opts.VoteCountGte, opts.VoteCountLte)
	if f.discoverErr != nil {
		return nil, f.discoverErr
	}
	if opts.Page == 1 {
		return f.discover[mt], nil
	}
	return nil, nil
}

func (f *fakeClient) Search(_ context.Context, mt models.MediaType, query string) ([]tmdb.RawItem, error) {
	f.record("search %s %s", mt, query)
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return f.search[query], nil
}

func (f *fakeClient) Similar(_ context.Context, mt models.MediaType, id int64) ([]tmdb.RawItem, error) {
	f.record("similar %s %d", mt, id)
	return f.similar[id], nil
}

func (f *fakeClient) Recommendations(_ context.Context, mt models.MediaType, id int64) ([]tmdb.RawItem, error) {
	f.record("recommendations %s %d", mt, id)
	return f.recs[id], nil
}

func (f *fakeClient) Detail(_ context.Context, mt models.MediaType, id int64, _ bool) (*tmdb.DetailedItem, error) {
	f.record("detail %s %d", mt, id)
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	raw, ok := f.details[id]
	if !ok {
		return nil, errors.New("not found")
	}
	var d tmdb.DetailedItem
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func rawItem(id int64, title string) tmdb.RawItem {
	return tmdb.RawItem{
		ID:               id,
		Title:            title,
		Overview:         "An overview long enough to carry signal.",
		VoteAverage:      7.0,
		VoteCount:        800,
		Popularity:       30,
		ReleaseDate:      "2015-06-01",
		OriginalLanguage: "en",
		GenreIDs:         []int{18},
	}
}

func rawItems(start, n int64) []tmdb.RawItem {
	items := make([]tmdb.RawItem, 0, n)
	for id := start; id < start+n; id++ {
		items = append(items, rawItem(id, fmt.Sprintf("Title %d", id)))
	}
	return items
}

func TestDiscoverFallbackOnlyForEmptyPreferences(t *testing.T) {
	client := &fakeClient{popular: map[models.MediaType][]tmdb.RawItem{
		models.MediaTypeMovie: rawItems(1, 5),
	}}
	d := NewDiscoverer(client)

	got := d.Discover(context.Background(), models.MediaTypeMovie, &models.UserPreferences{}, nil)

	require.Len(t, got, 5)
	assert.Equal(t, 3, client.callCount("popular movie"), "three popular pages")
	assert.Zero(t, client.callCount("discover"))
	assert.Zero(t, client.callCount("trending"))
}

func TestDiscoverDeduplicatesAcrossStrategies(t *testing.T) {
	shared := rawItem(42, "Shared")
	client := &fakeClient{
		popular:  map[models.MediaType][]tmdb.RawItem{models.MediaTypeMovie: {shared, rawItem(43, "Only Popular")}},
		trending: map[string][]tmdb.RawItem{"movie": {shared}},
	}
	d := NewDiscoverer(client)
	prefs := &models.UserPreferences{ContentDiscoveryPreference: []string{models.DiscoveryTrending}}

	got := d.Discover(context.Background(), models.MediaTypeMovie, prefs, nil)

	ids := make(map[int64]int)
	for _, c := range got {
		ids[c.ID]++
	}
	assert.Equal(t, 1, ids[42], "shared id appears once")
}

func TestDiscoverDropsExcludedIDs(t *testing.T) {
	client := &fakeClient{popular: map[models.MediaType][]tmdb.RawItem{
		models.MediaTypeMovie: rawItems(1, 5),
	}}
	d := NewDiscoverer(client)

	got := d.Discover(context.Background(), models.MediaTypeMovie, &models.UserPreferences{}, map[int64]bool{2: true, 4: true})

	require.Len(t, got, 3)
	for _, c := range got {
		assert.NotContains(t, []int64{2, 4}, c.ID)
	}
}

func TestDiscoverCapsCandidates(t *testing.T) {
	client := &fakeClient{popular: map[models.MediaType][]tmdb.RawItem{
		models.MediaTypeMovie: rawItems(1, 60),
		models.MediaTypeTV:    rawItems(1000, 60),
	}}
	d := NewDiscoverer(client)

	got := d.Discover(context.Background(), models.MediaTypeBoth, &models.UserPreferences{}, nil)
	assert.Len(t, got, DefaultMaxCandidates)
}

func TestDiscoverTopGenresQueriesTopFive(t *testing.T) {
	client := &fakeClient{discover: map[models.MediaType][]tmdb.RawItem{
		models.MediaTypeMovie: rawItems(1, 2),
	}}
	d := NewDiscoverer(client)
	prefs := &models.UserPreferences{GenreRatings: map[int]int{
		28: 9, 18: 8, 35: 7, 80: 6, 27: 5, 99: 4,
	}}

	d.Discover(context.Background(), models.MediaTypeMovie, prefs, nil)

	assert.Equal(t, 5, client.callCount("discover movie genres=["), "one query per top genre")
	assert.Contains(t, client.calls, "discover movie genres=[28] gte=0 lte=0")
	assert.NotContains(t, client.calls, "discover movie genres=[99] gte=0 lte=0", "sixth genre not queried")
}

func TestDiscoverSimilarToFavoriteChain(t *testing.T) {
	seed := rawItem(603, "The Matrix")
	client := &fakeClient{
		search:  map[string][]tmdb.RawItem{"The Matrix": {seed}},
		similar: map[int64][]tmdb.RawItem{603: rawItems(700, 12)},
		recs:    map[int64][]tmdb.RawItem{603: rawItems(800, 12)},
	}
	d := NewDiscoverer(client)
	prefs := &models.UserPreferences{FavoriteContent: []string{"The Matrix"}}

	got := d.Discover(context.Background(), models.MediaTypeMovie, prefs, nil)

	// 10 similar + 10 recommendations + popular (empty feed).
	assert.Len(t, got, 20, "top 10 taken from each feed")
	assert.Equal(t, 1, client.callCount("search movie The Matrix"))
}

func TestDiscoverHiddenGemsQueryShape(t *testing.T) {
	client := &fakeClient{}
	d := NewDiscoverer(client)
	prefs := &models.UserPreferences{ContentDiscoveryPreference: []string{models.DiscoveryHiddenGems}}

	d.Discover(context.Background(), models.MediaTypeMovie, prefs, nil)
	assert.Contains(t, client.calls, "discover movie genres=[] gte=50 lte=500")
}

func TestDiscoverTrendingExpandsBothTypes(t *testing.T) {
	client := &fakeClient{}
	d := NewDiscoverer(client)
	prefs := &models.UserPreferences{ContentDiscoveryPreference: []string{models.DiscoveryTrending}}

	d.Discover(context.Background(), models.MediaTypeBoth, prefs, nil)
	assert.Equal(t, 2, client.callCount("trending movie"), "two pages per type")
	assert.Equal(t, 2, client.callCount("trending tv"))
	assert.Zero(t, client.callCount("trending all"))
}

func TestDiscoverSurvivesStrategyFailure(t *testing.T) {
	client := &fakeClient{
		searchErr: errors.New("upstream timeout"),
		popular: map[models.MediaType][]tmdb.RawItem{
			models.MediaTypeMovie: rawItems(1, 4),
		},
	}
	d := NewDiscoverer(client)
	prefs := &models.UserPreferences{FavoriteContent: []string{"The Matrix"}}

	got := d.Discover(context.Background(), models.MediaTypeMovie, prefs, nil)
	assert.Len(t, got, 4, "popular fallback still contributes")
}

func TestTopRatedGenresOrdering(t *testing.T) {
	got := topRatedGenres(map[int]int{28: 9, 18: 9, 35: 4}, 2)
	assert.Equal(t, []int{18, 28}, got, "ties break on genre id")
}
