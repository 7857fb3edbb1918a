package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cinerec/internal/httputil"
	"cinerec/internal/limiter"
	"cinerec/internal/memcache"
	"cinerec/internal/models"
)

const defaultBaseURL = "https://api.themoviedb.org/3"

// apiKeyPlaceholder replaces the credential in cache keys so the same entry
// serves any client regardless of key rotation, and keys never leak.
const apiKeyPlaceholder = "{api_key}"

// Client wraps the upstream movie-metadata API. All calls go through the
// injected limiter; successful GETs are cached in the process-local
// metadata cache keyed by the credential-scrubbed URL.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
	cache   *memcache.Cache
	limiter *limiter.Limiter
}

func New(apiKey string, lim *limiter.Limiter, cache *memcache.Cache) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http:    httputil.NewClientWithTimeout(httputil.MetadataTimeout),
		cache:   cache,
		limiter: lim,
	}
}

// NewWithBaseURL points the client at an alternate endpoint (tests).
func NewWithBaseURL(apiKey string, lim *limiter.Limiter, cache *memcache.Cache, baseURL string) *Client {
	c := New(apiKey, lim, cache)
	c.baseURL = baseURL
	return c
}

func (c *Client) do(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCanceled, err)
		}
		defer c.limiter.Release()
	}

	q := url.Values{}
	for k, vs := range query {
		q[k] = vs
	}
	q.Set("api_key", c.apiKey)
	u := c.baseURL + path + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer httputil.DrainBody(resp)

	body, err := io.ReadAll(io.LimitReader(resp.Body, httputil.MaxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamError{Status: resp.StatusCode, Body: httputil.Truncate(body, 200)}
	}

	return json.RawMessage(body), nil
}

// cachedGet consults the metadata cache before dispatching through the
// limiter; successful responses are inserted on the way out.
func (c *Client) cachedGet(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	key := c.cacheKey(path, query)
	if c.cache != nil {
		if data := c.cache.Get(key); data != nil {
			return data, nil
		}
	}

	data, err := c.do(ctx, path, query)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Set(key, data)
	}
	return data, nil
}

func (c *Client) cacheKey(path string, query url.Values) string {
	q := url.Values{}
	for k, vs := range query {
		q[k] = vs
	}
	q.Set("api_key", apiKeyPlaceholder)
	return c.baseURL + path + "?" + q.Encode()
}

func (c *Client) results(ctx context.Context, path string, query url.Values) ([]RawItem, error) {
	data, err := c.cachedGet(ctx, path, query)
	if err != nil {
		return nil, err
	}
	var page pagedResults
	if err := json.Unmarshal(data, &page); err != nil {
		return nil, fmt.Errorf("decoding results: %w", err)
	}
	return page.Results, nil
}

func pageQuery(page int) url.Values {
	q := url.Values{}
	if page > 0 {
		q.Set("page", strconv.Itoa(page))
	}
	return q
}

// Popular lists the popular feed for a concrete media type.
func (c *Client) Popular(ctx context.Context, mediaType models.MediaType, page int) ([]RawItem, error) {
	return c.results(ctx, fmt.Sprintf("/%s/popular", mediaType), pageQuery(page))
}

// Trending lists the weekly trending feed. scope is "movie", "tv" or "all".
func (c *Client) Trending(ctx context.Context, scope string, page int) ([]RawItem, error) {
	return c.results(ctx, fmt.Sprintf("/trending/%s/week", scope), pageQuery(page))
}

// DiscoverOptions narrows a discover query. Zero values are omitted.
type DiscoverOptions struct {
	WithGenres   []int
	Page         int
	SortBy       string
	VoteCountGte int
	VoteCountLte int
}

func (c *Client) Discover(ctx context.Context, mediaType models.MediaType, opts DiscoverOptions) ([]RawItem, error) {
	q := pageQuery(opts.Page)
	if len(opts.WithGenres) > 0 {
		ids := make([]string, 0, len(opts.WithGenres))
		for _, g := range opts.WithGenres {
			ids = append(ids, strconv.Itoa(g))
		}
		q.Set("with_genres", strings.Join(ids, ","))
	}
	if opts.SortBy != "" {
		q.Set("sort_by", opts.SortBy)
	}
	if opts.VoteCountGte > 0 {
		q.Set("vote_count.gte", strconv.Itoa(opts.VoteCountGte))
	}
	if opts.VoteCountLte > 0 {
		q.Set("vote_count.lte", strconv.Itoa(opts.VoteCountLte))
	}
	return c.results(ctx, fmt.Sprintf("/discover/%s", mediaType), q)
}

func (c *Client) Search(ctx context.Context, mediaType models.MediaType, query string) ([]RawItem, error) {
	q := url.Values{}
	q.Set("query", query)
	return c.results(ctx, fmt.Sprintf("/search/%s", mediaType), q)
}

func (c *Client) Similar(ctx context.Context, mediaType models.MediaType, id int64) ([]RawItem, error) {
	return c.results(ctx, fmt.Sprintf("/%s/%d/similar", mediaType, id), nil)
}

func (c *Client) Recommendations(ctx context.Context, mediaType models.MediaType, id int64) ([]RawItem, error) {
	return c.results(ctx, fmt.Sprintf("/%s/%d/recommendations", mediaType, id), nil)
}

// Detail fetches a single title, optionally with credits and keywords
// appended in the same call.
func (c *Client) Detail(ctx context.Context, mediaType models.MediaType, id int64, appendCreditsKeywords bool) (*DetailedItem, error) {
	q := url.Values{}
	if appendCreditsKeywords {
		q.Set("append_to_response", "credits,keywords")
	}
	data, err := c.cachedGet(ctx, fmt.Sprintf("/%s/%d", mediaType, id), q)
	if err != nil {
		return nil, err
	}
	var d DetailedItem
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decoding detail: %w", err)
	}
	return &d, nil
}
