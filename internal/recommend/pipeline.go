package recommend

import (
	"context"
	"log"
	"sort"
	"time"

	"cinerec/internal/models"
	"cinerec/internal/store"
)

// HardResultCap is the absolute ceiling on returned items.
const HardResultCap = 9

// dropThreshold removes vetoed candidates before the diversity pass.
const dropThreshold = -500.0

// BundleLoader reads one user's preference data.
type BundleLoader interface {
	LoadUserBundle(ctx context.Context, userID string) *store.Bundle
}

// ProfileAnalyzer condenses favorites into a content profile and fills in
// watchlist credits for the similarity factor.
type ProfileAnalyzer interface {
	Analyze(ctx context.Context, favorites []models.FavoriteItem) *models.ContentDNA
	EnrichWatchlist(ctx context.Context, items []models.WatchlistItem) []models.WatchlistItem
}

// Request is one recommendation computation.
type Request struct {
	UserID    string
	MediaType models.MediaType
	Exclude   []int64
	Limit     int
	// Preferences, when non-nil and non-empty, override the stored record.
	Preferences *models.UserPreferences
}

// StageTiming is the wall-clock cost of one pipeline stage.
type StageTiming struct {
	Stage  string `json:"stage"`
	Millis int64  `json:"millis"`
}

// Result is the shaped pipeline output.
type Result struct {
	Items       []models.ScoredCandidate
	Preferences *models.UserPreferences
	Timings     []StageTiming
}

// Pipeline wires the engine stages: load bundle, discover, enrich, score,
// rank, diversify. Upstream failures degrade the result, never the response.
type Pipeline struct {
	loader     BundleLoader
	discoverer *Discoverer
	enricher   *Enricher
	scorer     *Scorer
	analyzer   ProfileAnalyzer
}

func NewPipeline(loader BundleLoader, discoverer *Discoverer, enricher *Enricher, scorer *Scorer, analyzer ProfileAnalyzer) *Pipeline {
	return &Pipeline{
		loader:     loader,
		discoverer: discoverer,
		enricher:   enricher,
		scorer:     scorer,
		analyzer:   analyzer,
	}
}

// Recommend runs the six stages for one request. Any stage yielding nothing
// short-circuits to an empty result carrying the timings observed so far.
func (p *Pipeline) Recommend(ctx context.Context, req *Request) *Result {
	limit := req.Limit
	if limit < 1 {
		limit = 1
	}
	if limit > HardResultCap {
		limit = HardResultCap
	}

	res := &Result{Items: []models.ScoredCandidate{}}
	timer := newStageTimer(res)

	// Stage 1: load the user bundle.
	bundle := p.loader.LoadUserBundle(ctx, req.UserID)
	prefs := bundle.Preferences
	if req.Preferences != nil && !req.Preferences.IsEmpty() {
		override := *req.Preferences
		override.Normalize()
		prefs = &override
	}
	res.Preferences = prefs
	timer.mark("load_bundle")

	// Stage 2: discover candidates.
	exclude := make(map[int64]bool, len(req.Exclude))
	for _, id := range req.Exclude {
		exclude[id] = true
	}
	candidates := p.discoverer.Discover(ctx, req.MediaType, prefs, exclude)
	timer.mark("discover")
	if len(candidates) == 0 {
		log.Printf("pipeline: no candidates discovered for %s", req.UserID)
		return res
	}

	// Stage 3: pre-filter, then enrich the survivors.
	filtered := PreFilter(candidates, prefs)
	enriched := p.enricher.Enrich(ctx, filtered)
	timer.mark("enrich")
	if len(enriched) == 0 {
		log.Printf("pipeline: all candidates filtered for %s", req.UserID)
		return res
	}

	// Stage 4: score against the user's profile.
	profile := p.analyzer.Analyze(ctx, bundle.Favorites)
	watchlist := p.analyzer.EnrichWatchlist(ctx, bundle.Watchlist)
	input := &ScoreInput{
		Preferences: prefs,
		DNA:         profile,
		Favorites:   bundle.Favorites,
		Watchlist:   watchlist,
	}
	scored := make([]models.ScoredCandidate, 0, len(enriched))
	for i := range enriched {
		scored = append(scored, p.scorer.Score(&enriched[i], input))
	}
	timer.mark("score")

	// Stage 5: drop vetoed candidates, rank by score. Discovery insertion
	// order breaks ties.
	ranked := scored[:0]
	for _, sc := range scored {
		if sc.Score > dropThreshold {
			ranked = append(ranked, sc)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	timer.mark("rank")
	if len(ranked) == 0 {
		return res
	}

	// Stage 6: diversity selection.
	res.Items = SelectDiverse(ranked, limit)
	timer.mark("diversify")
	return res
}

type stageTimer struct {
	res  *Result
	last time.Time
}

func newStageTimer(res *Result) *stageTimer {
	return &stageTimer{res: res, last: time.Now()}
}

func (t *stageTimer) mark(stage string) {
	now := time.Now()
	t.res.Timings = append(t.res.Timings, StageTiming{Stage: stage, Millis: now.Sub(t.last).Milliseconds()})
	t.last = now
}
