package recommend

import (
	"fmt"
	"strings"
	"time"

	"cinerec/internal/models"
	"cinerec/internal/semantic"
	"cinerec/internal/tmdb"
)

// Factor weights. Every factor is clamped to [0, 100] before weighting; the
// deal-breaker term is a sentinel added outside the weighted sum.
const (
	weightGenre      = 0.35
	weightSemantic   = 0.20
	weightSimilarity = 0.20
	weightContext    = 0.10
	weightDiscovery  = 0.10
	weightQuality    = 0.05

	vetoScore = -1000

	neutralGenreScore    = 50.0
	neutralSemanticScore = 50.0
)

// Bayesian shrinkage constants for the quality factor: ratings are pulled
// toward a global prior of 6.0 until vote counts overwhelm it.
const (
	qualityPriorVotes  = 25.0
	qualityPriorRating = 6.0
)

const watchlistInfluenceCap = 50.0

// SemanticScorer is the pluggable text-similarity backend.
type SemanticScorer interface {
	Similarity(a, b string) float64
}

// ScoreInput carries the per-request user signals the scorer reads.
type ScoreInput struct {
	Preferences *models.UserPreferences
	DNA         *models.ContentDNA
	Favorites   []models.FavoriteItem
	Watchlist   []models.WatchlistItem
}

// Scorer computes the seven-factor weighted score for one candidate. It is
// pure apart from the injected clock; candidates may be scored in any order.
type Scorer struct {
	semantic SemanticScorer
	now      func() time.Time
}

func NewScorer(sem SemanticScorer) *Scorer {
	return &Scorer{semantic: sem, now: time.Now}
}

// Score evaluates one candidate. A matched deal-breaker assigns the veto
// sentinel so the candidate is dropped before the diversity pass.
func (s *Scorer) Score(c *models.Candidate, in *ScoreInput) models.ScoredCandidate {
	prefs := in.Preferences
	if prefs == nil {
		prefs = &models.UserPreferences{}
	}

	b := models.ScoreBreakdown{
		Genre:      s.genreScore(c, prefs),
		Semantic:   s.semanticScore(c, prefs, in.Favorites),
		Similarity: s.similarityScore(c, prefs, in.DNA, in.Favorites, in.Watchlist),
		Context:    s.contextScore(c, prefs),
		Discovery:  s.discoveryScore(c, prefs),
		Quality:    s.qualityScore(c),
	}
	if vetoed(c, prefs) {
		b.DealBreaker = vetoScore
	}

	total := b.Genre*weightGenre +
		b.Semantic*weightSemantic +
		b.Similarity*weightSimilarity +
		b.Context*weightContext +
		b.Discovery*weightDiscovery +
		b.Quality*weightQuality +
		b.DealBreaker

	return models.ScoredCandidate{
		Candidate: *c,
		Score:     total,
		Breakdown: b,
		Reason:    buildReason(c, prefs, &b),
	}
}

// genreScore averages the user's ratings over the candidate genres that have
// one, scaled to 0-100. No rated genre means a neutral 50.
func (s *Scorer) genreScore(c *models.Candidate, prefs *models.UserPreferences) float64 {
	if len(prefs.GenreRatings) == 0 || len(c.GenreIDs) == 0 {
		return neutralGenreScore
	}
	var sum float64
	var rated int
	for _, g := range c.GenreIDs {
		if r, ok := prefs.GenreRatings[g]; ok {
			sum += float64(r) * 10
			rated++
		}
	}
	if rated == 0 {
		return neutralGenreScore
	}
	return clampFactor(sum / float64(rated))
}

// semanticScore compares the user's taste text against the candidate text.
// Either side shorter than the scorer's minimum yields a neutral 50.
func (s *Scorer) semanticScore(c *models.Candidate, prefs *models.UserPreferences, favorites []models.FavoriteItem) float64 {
	userText := buildUserProfileText(prefs, favorites)
	movieText := semantic.ExtractMovieText(c)
	if len(strings.TrimSpace(userText)) < 10 || len(strings.TrimSpace(movieText)) < 10 {
		return neutralSemanticScore
	}
	return clampFactor(s.semantic.Similarity(userText, movieText) * 100)
}

// buildUserProfileText enhances the stated preference text with favorite
// titles so the semantic factor sees taste even when mood text is sparse.
func buildUserProfileText(prefs *models.UserPreferences, favorites []models.FavoriteItem) string {
	parts := []string{semantic.ExtractUserPreferenceText(prefs)}
	for i, f := range favorites {
		if i >= 10 {
			break
		}
		parts = append(parts, f.Title)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// vetoed reports whether the candidate trips any of the user's
// deal-breakers.
func vetoed(c *models.Candidate, prefs *models.UserPreferences) bool {
	for _, tag := range prefs.DealBreakers {
		switch tag {
		case models.DealBreakerViolence:
			if hasAnyGenre(c, 28, 27, 53, 80) && c.VoteAverage > 7 {
				return true
			}
		case models.DealBreakerSexualContent, models.DealBreakerProfanity:
			// Profanity shares the adult proxy: certifications are not fetched.
			if c.Adult {
				return true
			}
		case models.DealBreakerSlowPace:
			if hasAnyGenre(c, 18, 36, 99) && c.Runtime > 150 {
				return true
			}
		case models.DealBreakerSubtitles:
			if c.OriginalLanguage != "" && c.OriginalLanguage != "en" {
				return true
			}
		}
	}
	return false
}

func hasAnyGenre(c *models.Candidate, ids ...int) bool {
	for _, g := range c.GenreIDs {
		for _, id := range ids {
			if g == id {
				return true
			}
		}
	}
	return false
}

// similarityScore sums the favorites-derived bonuses, clamped to 0-100.
func (s *Scorer) similarityScore(c *models.Candidate, prefs *models.UserPreferences, profile *models.ContentDNA, favorites []models.FavoriteItem, watchlist []models.WatchlistItem) float64 {
	var score float64
	cs := candidateSignals(c)

	if profile != nil {
		if actor, ok := firstMatch(profile.PreferredActors, cs.cast); ok {
			score += min(actor.Frequency*15, 25)
		}
		if director, ok := firstMatch(profile.PreferredDirectors, cs.directors); ok {
			score += min(director.Frequency*20, 35)
		}
		if len(c.GenreIDs) > 0 && len(profile.GenreDistribution) > 0 {
			var dist float64
			for _, g := range c.GenreIDs {
				dist += profile.GenreDistribution[g]
			}
			score += min(dist*10/float64(len(c.GenreIDs)), 20)
		}
	}

	if maxSim := maxFavoriteSimilarity(cs, favorites); maxSim > 0 {
		score += maxSim * 25
	}

	score += legacyPeopleBonus(cs, prefs)
	score += s.watchlistInfluence(cs, watchlist)

	return clampFactor(score)
}

// signals is the comparable shape of a title for pairwise similarity.
type signals struct {
	genres    []int
	cast      []string
	directors []string
}

func candidateSignals(c *models.Candidate) signals {
	sg := signals{genres: c.GenreIDs}
	for i, m := range c.Cast {
		if i >= 10 {
			break
		}
		sg.cast = append(sg.cast, m.Name)
	}
	for _, m := range c.Crew {
		if m.Job == "Director" {
			sg.directors = append(sg.directors, m.Name)
		}
	}
	return sg
}

func watchlistSignals(w *models.WatchlistItem) signals {
	sg := signals{genres: w.GenreIDs}
	for i, m := range w.Cast {
		if i >= 10 {
			break
		}
		sg.cast = append(sg.cast, m.Name)
	}
	for _, m := range w.Crew {
		if m.Job == "Director" {
			sg.directors = append(sg.directors, m.Name)
		}
	}
	return sg
}

func favoriteSignals(f *models.FavoriteItem) signals {
	sg := signals{genres: f.GenreIDs}
	for i, m := range f.Cast {
		if i >= 10 {
			break
		}
		sg.cast = append(sg.cast, m.Name)
	}
	for _, m := range f.Crew {
		if m.Job == "Director" {
			sg.directors = append(sg.directors, m.Name)
		}
	}
	return sg
}

// contentSimilarity is the pairwise title similarity:
// 0.4·genre Jaccard + 0.3·cast overlap + 0.3·shared director.
func contentSimilarity(a, b signals) float64 {
	sim := 0.4 * jaccardInt(a.genres, b.genres)
	sim += 0.3 * castOverlap(a.cast, b.cast)
	if sharesName(a.directors, b.directors) {
		sim += 0.3
	}
	return sim
}

func jaccardInt(a, b []int) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[int]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	var inter int
	union := len(set)
	for _, v := range b {
		if set[v] {
			inter++
			delete(set, v)
			continue
		}
		union++
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// castOverlap divides the shared-name count by the larger set size.
func castOverlap(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	set := make(map[string]bool, len(a))
	for _, n := range a {
		set[strings.ToLower(n)] = true
	}
	var inter int
	for _, n := range b {
		if set[strings.ToLower(n)] {
			inter++
		}
	}
	larger := len(a)
	if len(b) > larger {
		larger = len(b)
	}
	return float64(inter) / float64(larger)
}

func sharesName(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if strings.EqualFold(x, y) {
				return true
			}
		}
	}
	return false
}

// firstMatch walks the ranked list and returns the first entry appearing in
// names.
func firstMatch(ranked []models.NameFrequency, names []string) (models.NameFrequency, bool) {
	for _, nf := range ranked {
		for _, n := range names {
			if strings.EqualFold(nf.Name, n) {
				return nf, true
			}
		}
	}
	return models.NameFrequency{}, false
}

func maxFavoriteSimilarity(cs signals, favorites []models.FavoriteItem) float64 {
	var best float64
	for i := range favorites {
		if i >= 10 {
			break
		}
		if sim := contentSimilarity(cs, favoriteSignals(&favorites[i])); sim > best {
			best = sim
		}
	}
	return best
}

// legacyPeopleBonus honors the flat favoritePeople lists that predate the
// favorites-derived profile: +20 for an actor match, +25 for a director
// match, each at most once.
func legacyPeopleBonus(cs signals, prefs *models.UserPreferences) float64 {
	var bonus float64
	if sharesName(cs.cast, prefs.FavoritePeople.Actors) {
		bonus += 20
	}
	if sharesName(cs.directors, prefs.FavoritePeople.Directors) {
		bonus += 25
	}
	return bonus
}

// watchlistInfluence adds temporally weighted similarity to watchlist items
// that strongly resemble the candidate, capped at 50.
func (s *Scorer) watchlistInfluence(cs signals, watchlist []models.WatchlistItem) float64 {
	now := s.now().UTC()
	var sum float64
	for i := range watchlist {
		w := &watchlist[i]
		sim := contentSimilarity(cs, watchlistSignals(w))
		if sim <= 0.6 {
			continue
		}
		sum += sim * 20 * models.TemporalWeight(w.AddedAt, now)
	}
	return min(sum, watchlistInfluenceCap)
}

// contextScore rewards runtime and language alignment.
func (s *Scorer) contextScore(c *models.Candidate, prefs *models.UserPreferences) float64 {
	var score float64
	if c.Runtime > 0 && runtimeBucket(c.Runtime) == prefs.RuntimePreference {
		score += 20
	}
	switch prefs.InternationalContentPreference {
	case models.InternationalEnglishPreferred:
		if c.OriginalLanguage == "en" {
			score += 15
		}
	case models.InternationalVeryOpen:
		if c.OriginalLanguage != "" && c.OriginalLanguage != "en" {
			score += 15
		}
	}
	return clampFactor(score)
}

func runtimeBucket(runtime int) string {
	switch {
	case runtime < 90:
		return models.RuntimeShort
	case runtime <= 120:
		return models.RuntimeMedium
	default:
		return models.RuntimeLong
	}
}

// discoveryScore rewards candidates matching the user's discovery flags.
func (s *Scorer) discoveryScore(c *models.Candidate, prefs *models.UserPreferences) float64 {
	var score float64
	if prefs.WantsDiscovery(models.DiscoveryTrending) && c.Popularity > 50 {
		score += 20
	}
	if prefs.WantsDiscovery(models.DiscoveryHiddenGems) && c.VoteCount < 500 && c.VoteAverage > 7 {
		score += 25
	}
	if prefs.WantsDiscovery(models.DiscoveryAwardWinning) && c.VoteAverage > 8 && c.VoteCount > 1000 {
		score += 30
	}
	return clampFactor(score)
}

// qualityScore shrinks the raw rating toward the prior before scaling, so a
// 9.5 from a dozen votes does not outrank a 8.4 from fifty thousand.
func (s *Scorer) qualityScore(c *models.Candidate) float64 {
	n := float64(c.VoteCount)
	weighted := (n/(n+qualityPriorVotes))*c.VoteAverage + (qualityPriorVotes/(n+qualityPriorVotes))*qualityPriorRating
	return clampFactor(weighted * 10)
}

// buildReason assembles the human-readable rationale from the strongest
// facets, joined with " • ".
func buildReason(c *models.Candidate, prefs *models.UserPreferences, b *models.ScoreBreakdown) string {
	var parts []string

	if b.Genre > 70 {
		if names := lovedGenreNames(c, prefs); len(names) > 0 {
			parts = append(parts, "Matches your favorite genres: "+strings.Join(names, ", "))
		}
	}
	switch {
	case b.Semantic > 70:
		parts = append(parts, "Matches your content preferences perfectly")
	case b.Semantic > 60:
		parts = append(parts, "Aligns well with your interests")
	}
	if b.Similarity > 70 {
		parts = append(parts, "Similar to your favorites")
	}
	if b.Quality > 80 {
		parts = append(parts, fmt.Sprintf("Highly rated (%.1f/10)", c.VoteAverage))
	}
	if prefs.WantsDiscovery(models.DiscoveryTrending) && c.Popularity > 50 {
		parts = append(parts, "Currently trending")
	}
	if prefs.WantsDiscovery(models.DiscoveryHiddenGems) && c.VoteCount < 500 && c.VoteAverage > 7 {
		parts = append(parts, "Hidden gem you might love")
	}

	if len(parts) == 0 {
		return "Personalized for you"
	}
	return strings.Join(parts, " • ")
}

// lovedGenreNames lists the candidate genres the user rated 8 or higher.
func lovedGenreNames(c *models.Candidate, prefs *models.UserPreferences) []string {
	var names []string
	for _, g := range c.GenreIDs {
		if prefs.GenreRatings[g] >= 8 {
			if name, ok := tmdb.GenreNames[g]; ok {
				names = append(names, name)
			}
		}
	}
	return names
}

func clampFactor(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
