package recommend

import (
	"context"
	"log"

	"golang.org/x/sync/errgroup"

	"cinerec/internal/models"
)

const (
	// maxEnrichCandidates bounds how many candidates get a detail fetch.
	maxEnrichCandidates = 30

	// enrichParallelism is the detail-fetch batch width.
	enrichParallelism = 10

	// minVoteAverage drops low-quality candidates before enrichment.
	minVoteAverage = 4.0
)

// PreFilter removes candidates that can never be recommended, before any
// detail fetches are spent on them: adult titles when sexual content is a
// deal-breaker, non-English originals for english-preferred users, and
// anything rated below 4.0.
func PreFilter(candidates []models.Candidate, prefs *models.UserPreferences) []models.Candidate {
	dropAdult := prefs.HasDealBreaker(models.DealBreakerSexualContent)
	englishOnly := prefs.InternationalContentPreference == models.InternationalEnglishPreferred

	out := make([]models.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if dropAdult && c.Adult {
			continue
		}
		if englishOnly && c.OriginalLanguage != "" && c.OriginalLanguage != "en" {
			continue
		}
		if c.VoteAverage < minVoteAverage {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Enricher attaches credits, keywords and runtime to candidates.
type Enricher struct {
	client MetadataClient
}

func NewEnricher(client MetadataClient) *Enricher {
	return &Enricher{client: client}
}

// Enrich fetches details for at most 30 candidates, 10 in parallel. A failed
// fetch keeps the un-enriched candidate; enrichment is idempotent (credits
// and keywords are replaced, never appended).
func (e *Enricher) Enrich(ctx context.Context, candidates []models.Candidate) []models.Candidate {
	if len(candidates) > maxEnrichCandidates {
		candidates = candidates[:maxEnrichCandidates]
	}
	out := append([]models.Candidate(nil), candidates...)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichParallelism)
	for i := range out {
		c := &out[i]
		g.Go(func() error {
			d, err := e.client.Detail(ctx, c.MediaType, c.ID, true)
			if err != nil {
				log.Printf("enrich: detail %s/%d: %v", c.MediaType, c.ID, err)
				return nil
			}
			d.Apply(c)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
