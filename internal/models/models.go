package models

import (
	"fmt"
	"log"
	"strconv"
	"time"
)

type MediaType string

const (
	MediaTypeMovie MediaType = "movie"
	MediaTypeTV    MediaType = "tv"
	MediaTypeBoth  MediaType = "both"
)

// ParseMediaType validates a caller-supplied media type. An empty value
// defaults to "both".
func ParseMediaType(s string) (MediaType, error) {
	switch MediaType(s) {
	case MediaTypeMovie, MediaTypeTV, MediaTypeBoth:
		return MediaType(s), nil
	case "":
		return MediaTypeBoth, nil
	}
	return "", fmt.Errorf("invalid media type %q", s)
}

// Expand returns the concrete types a filter covers.
func (m MediaType) Expand() []MediaType {
	if m == MediaTypeBoth {
		return []MediaType{MediaTypeMovie, MediaTypeTV}
	}
	return []MediaType{m}
}

// Deal-breaker tags.
const (
	DealBreakerViolence      = "violence"
	DealBreakerSexualContent = "sexualContent"
	DealBreakerProfanity     = "profanity"
	DealBreakerSlowPace      = "slowPace"
	DealBreakerSubtitles     = "subtitles"
)

// Content discovery preferences.
const (
	DiscoveryTrending     = "trending"
	DiscoveryHiddenGems   = "hiddenGems"
	DiscoveryAwardWinning = "awardWinning"
)

// Runtime preferences.
const (
	RuntimeShort  = "short"
	RuntimeMedium = "medium"
	RuntimeLong   = "long"
)

// International content preferences.
const (
	InternationalEnglishPreferred = "englishPreferred"
	InternationalVeryOpen         = "veryOpen"
)

var (
	knownDealBreakers = map[string]bool{
		DealBreakerViolence: true, DealBreakerSexualContent: true,
		DealBreakerProfanity: true, DealBreakerSlowPace: true,
		DealBreakerSubtitles: true,
	}
	knownDiscovery = map[string]bool{
		DiscoveryTrending: true, DiscoveryHiddenGems: true, DiscoveryAwardWinning: true,
	}
	knownRuntime = map[string]bool{
		RuntimeShort: true, RuntimeMedium: true, RuntimeLong: true,
	}
	knownInternational = map[string]bool{
		InternationalEnglishPreferred: true, InternationalVeryOpen: true,
	}
)

type FavoritePeople struct {
	Actors    []string `json:"actors,omitempty"`
	Directors []string `json:"directors,omitempty"`
}

// UserPreferences is the validated preference record for one user. Genre
// ratings are keyed by TMDB genre id with scores 1-10.
type UserPreferences struct {
	GenreRatings                   map[int]int    `json:"genreRatings,omitempty"`
	DealBreakers                   []string       `json:"dealBreakers,omitempty"`
	FavoriteContent                []string       `json:"favoriteContent,omitempty"`
	MoodPreferences                string         `json:"moodPreferences,omitempty"`
	ContentDiscoveryPreference     []string       `json:"contentDiscoveryPreference,omitempty"`
	RuntimePreference              string         `json:"runtimePreference,omitempty"`
	InternationalContentPreference string         `json:"internationalContentPreference,omitempty"`
	FavoritePeople                 FavoritePeople `json:"favoritePeople,omitempty"`
}

// Normalize drops unrecognized preference tags, logging each one. Recognized
// values pass through unchanged.
func (p *UserPreferences) Normalize() {
	p.DealBreakers = filterKnown(p.DealBreakers, knownDealBreakers, "deal-breaker")
	p.ContentDiscoveryPreference = filterKnown(p.ContentDiscoveryPreference, knownDiscovery, "discovery preference")
	if p.RuntimePreference != "" && !knownRuntime[p.RuntimePreference] {
		log.Printf("preferences: ignoring unknown runtime preference %q", p.RuntimePreference)
		p.RuntimePreference = ""
	}
	if p.InternationalContentPreference != "" && !knownInternational[p.InternationalContentPreference] {
		log.Printf("preferences: ignoring unknown international preference %q", p.InternationalContentPreference)
		p.InternationalContentPreference = ""
	}
}

func filterKnown(tags []string, known map[string]bool, kind string) []string {
	var out []string
	for _, t := range tags {
		if known[t] {
			out = append(out, t)
			continue
		}
		log.Printf("preferences: ignoring unknown %s %q", kind, t)
	}
	return out
}

func (p *UserPreferences) HasDealBreaker(tag string) bool {
	for _, t := range p.DealBreakers {
		if t == tag {
			return true
		}
	}
	return false
}

func (p *UserPreferences) WantsDiscovery(tag string) bool {
	for _, t := range p.ContentDiscoveryPreference {
		if t == tag {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the record carries no usable signal.
func (p *UserPreferences) IsEmpty() bool {
	return len(p.GenreRatings) == 0 && len(p.DealBreakers) == 0 &&
		len(p.FavoriteContent) == 0 && p.MoodPreferences == "" &&
		len(p.ContentDiscoveryPreference) == 0 && p.RuntimePreference == "" &&
		p.InternationalContentPreference == "" &&
		len(p.FavoritePeople.Actors) == 0 && len(p.FavoritePeople.Directors) == 0
}

type CastMember struct {
	Name      string `json:"name"`
	Character string `json:"character,omitempty"`
	Order     int    `json:"order"`
}

type CrewMember struct {
	Name string `json:"name"`
	Job  string `json:"job"`
}

// FavoriteItem is one entry of a user's favorites list. Credits and genres
// are filled by enrichment; AddedAt is zero when the timestamp is unknown.
type FavoriteItem struct {
	MediaID     int64        `json:"mediaId"`
	MediaType   MediaType    `json:"mediaType"`
	Title       string       `json:"title"`
	AddedAt     time.Time    `json:"addedAt,omitempty"`
	GenreIDs    []int        `json:"genreIds,omitempty"`
	Cast        []CastMember `json:"cast,omitempty"`
	Crew        []CrewMember `json:"crew,omitempty"`
	VoteAverage *float64     `json:"voteAverage,omitempty"`
	ReleaseDate string       `json:"releaseDate,omitempty"`
}

// Decade returns the release decade (e.g. 1990), or 0 when unknown.
func (f *FavoriteItem) Decade() int {
	c := Candidate{ReleaseDate: f.ReleaseDate}
	return c.Decade()
}

// WatchlistItem is one entry of a user's watchlist. Credits are filled by
// enrichment so pairwise similarity can see more than genre overlap.
type WatchlistItem struct {
	MediaID   int64        `json:"mediaId"`
	MediaType MediaType    `json:"mediaType"`
	Title     string       `json:"title"`
	AddedAt   time.Time    `json:"addedAt,omitempty"`
	GenreIDs  []int        `json:"genreIds,omitempty"`
	Cast      []CastMember `json:"cast,omitempty"`
	Crew      []CrewMember `json:"crew,omitempty"`
}

// Candidate is a normalized item emerging from a discovery strategy,
// possibly enriched with credits, keywords and runtime.
type Candidate struct {
	ID               int64        `json:"id"`
	MediaType        MediaType    `json:"mediaType"`
	Title            string       `json:"title"`
	Overview         string       `json:"overview"`
	PosterPath       string       `json:"posterPath,omitempty"`
	BackdropPath     string       `json:"backdropPath,omitempty"`
	VoteAverage      float64      `json:"voteAverage"`
	VoteCount        int          `json:"voteCount"`
	Popularity       float64      `json:"popularity"`
	ReleaseDate      string       `json:"releaseDate,omitempty"`
	OriginalLanguage string       `json:"originalLanguage,omitempty"`
	Adult            bool         `json:"adult,omitempty"`
	GenreIDs         []int        `json:"genreIds,omitempty"`
	Runtime          int          `json:"runtime,omitempty"`
	Cast             []CastMember `json:"cast,omitempty"`
	Crew             []CrewMember `json:"crew,omitempty"`
	Keywords         []string     `json:"keywords,omitempty"`
}

// ReleaseYear parses the year from ReleaseDate, or 0 when unknown.
func (c *Candidate) ReleaseYear() int {
	if len(c.ReleaseDate) < 4 {
		return 0
	}
	y, err := strconv.Atoi(c.ReleaseDate[:4])
	if err != nil {
		return 0
	}
	return y
}

// Decade returns the release decade (e.g. 1990), or 0 when unknown.
func (c *Candidate) Decade() int {
	if y := c.ReleaseYear(); y > 0 {
		return (y / 10) * 10
	}
	return 0
}

// PrimaryGenre returns the first listed genre id, or 0.
func (c *Candidate) PrimaryGenre() int {
	if len(c.GenreIDs) > 0 {
		return c.GenreIDs[0]
	}
	return 0
}

type ScoreBreakdown struct {
	Genre       float64 `json:"genre"`
	DealBreaker float64 `json:"dealBreaker"`
	Semantic    float64 `json:"semantic"`
	Similarity  float64 `json:"similarity"`
	Context     float64 `json:"context"`
	Discovery   float64 `json:"discovery"`
	Quality     float64 `json:"quality"`
}

type ScoredCandidate struct {
	Candidate
	Score     float64        `json:"score"`
	Breakdown ScoreBreakdown `json:"scoreBreakdown"`
	Reason    string         `json:"recommendationReason"`
}

type NameFrequency struct {
	Name      string  `json:"name"`
	Frequency float64 `json:"frequency"`
}

type RatingPatterns struct {
	Average float64 `json:"average"`
	Count   int     `json:"count"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

// ContentDNA aggregates a user's favorites: temporally weighted actor and
// director frequencies, genre and decade distributions, and rating stats.
type ContentDNA struct {
	PreferredActors    []NameFrequency `json:"preferredActors"`
	PreferredDirectors []NameFrequency `json:"preferredDirectors"`
	GenreDistribution  map[int]float64 `json:"genreDistribution"`
	DecadePreferences  map[int]float64 `json:"decadePreferences"`
	RatingPatterns     RatingPatterns  `json:"ratingPatterns"`
}

// CachedItem is one row of the persistent scheduled cache, keyed by
// "category#mediaType#id" with a 7-day TTL.
type CachedItem struct {
	CacheKey         string    `json:"cacheKey"`
	ContentID        int64     `json:"contentId"`
	ContentType      MediaType `json:"contentType"`
	Category         string    `json:"category"`
	Title            string    `json:"title"`
	Overview         string    `json:"overview,omitempty"`
	PosterPath       string    `json:"posterPath,omitempty"`
	BackdropPath     string    `json:"backdropPath,omitempty"`
	VoteAverage      float64   `json:"voteAverage"`
	VoteCount        int       `json:"voteCount"`
	Popularity       float64   `json:"popularity"`
	ReleaseDate      string    `json:"releaseDate,omitempty"`
	OriginalLanguage string    `json:"originalLanguage,omitempty"`
	GenreIDs         []int     `json:"genreIds,omitempty"`
	FetchedAt        time.Time `json:"fetchedAt"`
	ExpiresAt        time.Time `json:"expiresAt"`
	Source           string    `json:"source"`
}

// CacheKeyFor builds the scheduled-cache point key.
func CacheKeyFor(category string, mediaType MediaType, id int64) string {
	return category + "#" + string(mediaType) + "#" + strconv.FormatInt(id, 10)
}
