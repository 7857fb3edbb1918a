package tmdb

import (
	"sort"

	"cinerec/internal/models"
)

// GenreNames maps TMDB genre ids to human-readable names, movies first,
// then TV-specific ids.
var GenreNames = map[int]string{
	28: "Action", 12: "Adventure", 16: "Animation", 35: "Comedy", 80: "Crime",
	99: "Documentary", 18: "Drama", 10751: "Family", 14: "Fantasy", 36: "History",
	27: "Horror", 10402: "Music", 9648: "Mystery", 10749: "Romance",
	878: "Science Fiction", 10770: "TV Movie", 53: "Thriller", 10752: "War", 37: "Western",
	10759: "Action & Adventure", 10762: "Kids", 10763: "News", 10764: "Reality",
	10765: "Sci-Fi & Fantasy", 10766: "Soap", 10767: "Talk", 10768: "War & Politics",
}

// RawItem is a single entry of an upstream "results" array. Movies and TV
// shows use different field names for title and date; DisplayTitle and
// FirstDate resolve them.
type RawItem struct {
	ID               int64   `json:"id"`
	Title            string  `json:"title"`
	Name             string  `json:"name"`
	Overview         string  `json:"overview"`
	PosterPath       string  `json:"poster_path"`
	BackdropPath     string  `json:"backdrop_path"`
	VoteAverage      float64 `json:"vote_average"`
	VoteCount        int     `json:"vote_count"`
	Popularity       float64 `json:"popularity"`
	ReleaseDate      string  `json:"release_date"`
	FirstAirDate     string  `json:"first_air_date"`
	OriginalLanguage string  `json:"original_language"`
	Adult            bool    `json:"adult"`
	GenreIDs         []int   `json:"genre_ids"`
	MediaType        string  `json:"media_type"`
}

func (r *RawItem) DisplayTitle() string {
	if r.Title != "" {
		return r.Title
	}
	return r.Name
}

func (r *RawItem) FirstDate() string {
	if r.ReleaseDate != "" {
		return r.ReleaseDate
	}
	return r.FirstAirDate
}

// Candidate normalizes a raw result into the pipeline's candidate shape.
// mediaType is the fallback when the item carries no media_type of its own
// (typed endpoints like /movie/popular omit it).
func (r *RawItem) Candidate(mediaType models.MediaType) models.Candidate {
	mt := mediaType
	switch r.MediaType {
	case "movie":
		mt = models.MediaTypeMovie
	case "tv":
		mt = models.MediaTypeTV
	}
	return models.Candidate{
		ID:               r.ID,
		MediaType:        mt,
		Title:            r.DisplayTitle(),
		Overview:         r.Overview,
		PosterPath:       r.PosterPath,
		BackdropPath:     r.BackdropPath,
		VoteAverage:      r.VoteAverage,
		VoteCount:        r.VoteCount,
		Popularity:       r.Popularity,
		ReleaseDate:      r.FirstDate(),
		OriginalLanguage: r.OriginalLanguage,
		Adult:            r.Adult,
		GenreIDs:         r.GenreIDs,
	}
}

type pagedResults struct {
	Page         int       `json:"page"`
	Results      []RawItem `json:"results"`
	TotalPages   int       `json:"total_pages"`
	TotalResults int       `json:"total_results"`
}

type genreRef struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type creditEntry struct {
	Name      string `json:"name"`
	Character string `json:"character"`
	Job       string `json:"job"`
	Order     int    `json:"order"`
}

type keywordRef struct {
	Name string `json:"name"`
}

// DetailedItem is the detail endpoint response with credits and keywords
// appended. Movie keywords arrive under keywords.keywords, TV keywords
// under keywords.results; runtime is a scalar for movies and an
// episode_run_time array for TV.
type DetailedItem struct {
	ID               int64      `json:"id"`
	Title            string     `json:"title"`
	Name             string     `json:"name"`
	Overview         string     `json:"overview"`
	PosterPath       string     `json:"poster_path"`
	BackdropPath     string     `json:"backdrop_path"`
	VoteAverage      float64    `json:"vote_average"`
	VoteCount        int        `json:"vote_count"`
	Popularity       float64    `json:"popularity"`
	ReleaseDate      string     `json:"release_date"`
	FirstAirDate     string     `json:"first_air_date"`
	OriginalLanguage string     `json:"original_language"`
	Adult            bool       `json:"adult"`
	Runtime          int        `json:"runtime"`
	EpisodeRunTime   []int      `json:"episode_run_time"`
	Genres           []genreRef `json:"genres"`
	Credits          struct {
		Cast []creditEntry `json:"cast"`
		Crew []creditEntry `json:"crew"`
	} `json:"credits"`
	Keywords struct {
		Keywords []keywordRef `json:"keywords"`
		Results  []keywordRef `json:"results"`
	} `json:"keywords"`
}

// EffectiveRuntime resolves the movie/TV runtime difference.
func (d *DetailedItem) EffectiveRuntime() int {
	if d.Runtime > 0 {
		return d.Runtime
	}
	if len(d.EpisodeRunTime) > 0 {
		return d.EpisodeRunTime[0]
	}
	return 0
}

// Apply merges detail data into a candidate. Cast and crew are capped at 10
// entries and replaced wholesale, so applying twice yields identical data.
func (d *DetailedItem) Apply(c *models.Candidate) {
	c.Runtime = d.EffectiveRuntime()
	if d.Overview != "" {
		c.Overview = d.Overview
	}
	if d.VoteCount > 0 {
		c.VoteAverage = d.VoteAverage
		c.VoteCount = d.VoteCount
	}

	if len(d.Genres) > 0 {
		genres := make([]int, 0, len(d.Genres))
		for _, g := range d.Genres {
			genres = append(genres, g.ID)
		}
		c.GenreIDs = genres
	}

	cast := append([]creditEntry(nil), d.Credits.Cast...)
	sort.SliceStable(cast, func(i, j int) bool { return cast[i].Order < cast[j].Order })
	if len(cast) > 10 {
		cast = cast[:10]
	}
	c.Cast = c.Cast[:0]
	for _, m := range cast {
		c.Cast = append(c.Cast, models.CastMember{Name: m.Name, Character: m.Character, Order: m.Order})
	}

	// Directors first so the 10-entry cap never drops them.
	crew := append([]creditEntry(nil), d.Credits.Crew...)
	sort.SliceStable(crew, func(i, j int) bool {
		return crew[i].Job == "Director" && crew[j].Job != "Director"
	})
	if len(crew) > 10 {
		crew = crew[:10]
	}
	c.Crew = c.Crew[:0]
	for _, m := range crew {
		c.Crew = append(c.Crew, models.CrewMember{Name: m.Name, Job: m.Job})
	}

	kws := d.Keywords.Keywords
	if len(kws) == 0 {
		kws = d.Keywords.Results
	}
	c.Keywords = c.Keywords[:0]
	for _, k := range kws {
		c.Keywords = append(c.Keywords, k.Name)
	}
}
