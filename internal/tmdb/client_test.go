package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cinerec/internal/limiter"
	"cinerec/internal/memcache"
	"cinerec/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler, cache *memcache.Cache) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := NewWithBaseURL("test-key", limiter.New(5), cache, srv.URL)
	c.http = srv.Client()
	return c
}

func TestPopularDecodesResults(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/movie/popular" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "test-key" {
			t.Errorf("expected api_key=test-key, got %s", r.URL.Query().Get("api_key"))
		}
		if r.URL.Query().Get("page") != "2" {
			t.Errorf("expected page=2, got %s", r.URL.Query().Get("page"))
		}
		w.Write([]byte(`{"page":2,"results":[{"id":603,"title":"The Matrix","vote_average":8.2,"genre_ids":[28,878]}]}`))
	}), nil)

	items, err := c.Popular(context.Background(), models.MediaTypeMovie, 2)
	if err != nil {
		t.Fatalf("Popular: %v", err)
	}
	if len(items) != 1 || items[0].ID != 603 || items[0].DisplayTitle() != "The Matrix" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestCacheHitSkipsHTTP(t *testing.T) {
	var calls int
	cache := memcache.New()
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"results":[{"id":1,"name":"Dark"}]}`))
	}), cache)

	ctx := context.Background()
	if _, err := c.Popular(ctx, models.MediaTypeTV, 1); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Popular(ctx, models.MediaTypeTV, 1); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 HTTP call, got %d", calls)
	}
}

func TestCacheKeyScrubsCredential(t *testing.T) {
	c := NewWithBaseURL("super-secret", nil, nil, "http://example.test")
	key := c.cacheKey("/movie/popular", pageQuery(1))
	if want := "api_key=%7Bapi_key%7D"; !strings.Contains(key, want) {
		t.Fatalf("cache key %q does not carry the scrubbed credential", key)
	}
	if strings.Contains(key, "super-secret") {
		t.Fatalf("cache key %q leaks the API key", key)
	}
}

func TestRateLimitedNotRetried(t *testing.T) {
	var calls int
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}), nil)

	_, err := c.Trending(context.Background(), "all", 1)
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestUpstreamError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"status_message":"boom"}`))
	}), nil)

	_, err := c.Detail(context.Background(), models.MediaTypeMovie, 42, true)
	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
	if ue.Status != http.StatusInternalServerError {
		t.Fatalf("Status = %d, want 500", ue.Status)
	}
}

func TestCanceledContext(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write([]byte(`{"results":[]}`))
	}), nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Popular(ctx, models.MediaTypeMovie, 1)
	if err == nil {
		t.Fatal("expected error from canceled context")
	}
}

func TestDiscoverQueryShape(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("with_genres") != "18,80" {
			t.Errorf("with_genres = %s", q.Get("with_genres"))
		}
		if q.Get("sort_by") != "vote_average.desc" {
			t.Errorf("sort_by = %s", q.Get("sort_by"))
		}
		if q.Get("vote_count.gte") != "50" || q.Get("vote_count.lte") != "500" {
			t.Errorf("vote_count bounds = %s..%s", q.Get("vote_count.gte"), q.Get("vote_count.lte"))
		}
		w.Write([]byte(`{"results":[]}`))
	}), nil)

	_, err := c.Discover(context.Background(), models.MediaTypeMovie, DiscoverOptions{
		WithGenres:   []int{18, 80},
		Page:         1,
		SortBy:       "vote_average.desc",
		VoteCountGte: 50,
		VoteCountLte: 500,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestDetailAppliesIdempotently(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("append_to_response") != "credits,keywords" {
			t.Error("expected append_to_response=credits,keywords")
		}
		w.Write([]byte(`{
			"id": 603, "title": "The Matrix", "runtime": 136,
			"genres": [{"id":28,"name":"Action"},{"id":878,"name":"Science Fiction"}],
			"credits": {
				"cast": [{"name":"Keanu Reeves","character":"Neo","order":0}],
				"crew": [{"name":"Lana Wachowski","job":"Director"},{"name":"Bill Pope","job":"Director of Photography"}]
			},
			"keywords": {"keywords":[{"name":"simulation"},{"name":"dystopia"}]}
		}`))
	}), nil)

	d, err := c.Detail(context.Background(), models.MediaTypeMovie, 603, true)
	if err != nil {
		t.Fatal(err)
	}

	cand := models.Candidate{ID: 603, MediaType: models.MediaTypeMovie, Title: "The Matrix"}
	d.Apply(&cand)
	d.Apply(&cand)

	if cand.Runtime != 136 {
		t.Fatalf("Runtime = %d, want 136", cand.Runtime)
	}
	if len(cand.Cast) != 1 || cand.Cast[0].Name != "Keanu Reeves" {
		t.Fatalf("cast not applied idempotently: %+v", cand.Cast)
	}
	if len(cand.Crew) != 2 || cand.Crew[0].Job != "Director" {
		t.Fatalf("crew not applied with director first: %+v", cand.Crew)
	}
	if len(cand.Keywords) != 2 {
		t.Fatalf("keywords duplicated on re-apply: %+v", cand.Keywords)
	}
	if len(cand.GenreIDs) != 2 {
		t.Fatalf("genres duplicated on re-apply: %+v", cand.GenreIDs)
	}
}

func TestTVRuntimeFromEpisodes(t *testing.T) {
	d := &DetailedItem{EpisodeRunTime: []int{45, 60}}
	if got := d.EffectiveRuntime(); got != 45 {
		t.Fatalf("EffectiveRuntime = %d, want 45", got)
	}
}
