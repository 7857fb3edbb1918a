package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"cinerec/internal/models"
	"cinerec/internal/recommend"
	"cinerec/internal/tmdb"
)

const (
	defaultLimit   = 9
	requestTimeout = 30 * time.Second

	sourceGet  = "personalized_lambda"
	sourcePost = "personalized_lambda_post"
)

type recommendationItem struct {
	MediaID      string  `json:"mediaId"`
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"posterPath"`
	BackdropPath string  `json:"backdropPath"`
	VoteAverage  float64 `json:"voteAverage"`
	ReleaseDate  string  `json:"releaseDate"`
	Popularity   float64 `json:"popularity"`
	MediaType    string  `json:"mediaType"`
	Genres       string  `json:"genres"`
	Score        float64 `json:"score"`
	Reason       string  `json:"recommendationReason"`
	ProcessingMS int64   `json:"processingTime"`
}

type recommendationResponse struct {
	Items       []recommendationItem    `json:"items"`
	Source      string                  `json:"source"`
	Preferences *models.UserPreferences `json:"userPreferences"`
	Timings     []recommend.StageTiming `json:"stageTimings,omitempty"`
}

// handleGetRecommendations serves the query-parameter form of the request.
func (s *Server) handleGetRecommendations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	mediaType, err := models.ParseMediaType(q.Get("mediaType"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	exclude, err := parseExcludeCSV(q.Get("exclude"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	s.respond(w, r, &recommend.Request{
		UserID:    userID(q.Get("userId")),
		MediaType: mediaType,
		Exclude:   exclude,
		Limit:     limit,
	}, sourceGet)
}

type postBody struct {
	UserID      string                  `json:"userId"`
	MediaType   string                  `json:"mediaType"`
	Exclude     json.RawMessage         `json:"exclude"`
	Limit       int                     `json:"limit"`
	Preferences *models.UserPreferences `json:"preferences"`
}

// handlePostRecommendations serves the JSON-body form. The exclude field
// accepts a comma-separated string or an array of numbers or numeric
// strings; everything is canonicalized to int64 before comparison.
func (s *Server) handlePostRecommendations(w http.ResponseWriter, r *http.Request) {
	var body postBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	mediaType, err := models.ParseMediaType(body.MediaType)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	exclude, err := parseExcludeJSON(body.Exclude)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := defaultLimit
	if body.Limit != 0 {
		limit = clampLimit(body.Limit)
	}

	s.respond(w, r, &recommend.Request{
		UserID:      userID(body.UserID),
		MediaType:   mediaType,
		Exclude:     exclude,
		Limit:       limit,
		Preferences: body.Preferences,
	}, sourcePost)
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, req *recommend.Request, source string) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	start := time.Now()
	res := s.engine.Recommend(ctx, req)
	elapsed := time.Since(start).Milliseconds()

	items := make([]recommendationItem, 0, len(res.Items))
	for i := range res.Items {
		items = append(items, shapeItem(&res.Items[i], elapsed))
	}
	writeJSON(w, http.StatusOK, &recommendationResponse{
		Items:       items,
		Source:      source,
		Preferences: res.Preferences,
		Timings:     res.Timings,
	})
}

func shapeItem(sc *models.ScoredCandidate, elapsedMS int64) recommendationItem {
	return recommendationItem{
		MediaID:      strconv.FormatInt(sc.ID, 10),
		ID:           sc.ID,
		Title:        sc.Title,
		Overview:     sc.Overview,
		PosterPath:   sc.PosterPath,
		BackdropPath: sc.BackdropPath,
		VoteAverage:  sc.VoteAverage,
		ReleaseDate:  sc.ReleaseDate,
		Popularity:   sc.Popularity,
		MediaType:    string(sc.MediaType),
		Genres:       genreNames(sc.GenreIDs),
		Score:        sc.Score,
		Reason:       sc.Reason,
		ProcessingMS: elapsedMS,
	}
}

// genreNames renders genre ids as a pipe-separated name list.
func genreNames(ids []int) string {
	var names []string
	for _, id := range ids {
		if name, ok := tmdb.GenreNames[id]; ok {
			names = append(names, name)
		}
	}
	return strings.Join(names, "|")
}

func userID(id string) string {
	if id == "" {
		return "default"
	}
	return id
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid limit %q", raw)
	}
	return clampLimit(n), nil
}

func clampLimit(n int) int {
	if n < 1 {
		return 1
	}
	if n > recommend.HardResultCap {
		return recommend.HardResultCap
	}
	return n
}

// parseExcludeCSV parses "27205,603" into ids. Non-numeric entries are an
// input error, not something to guess around.
func parseExcludeCSV(raw string) ([]int64, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			return nil, errInvalidExclude(p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// parseExcludeJSON accepts "1,2", [1, 2] or ["1", "2"].
func parseExcludeJSON(raw json.RawMessage) ([]int64, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var csv string
	if err := json.Unmarshal(raw, &csv); err == nil {
		return parseExcludeCSV(csv)
	}

	var mixed []json.Number
	if err := json.Unmarshal(raw, &mixed); err == nil {
		ids := make([]int64, 0, len(mixed))
		for _, n := range mixed {
			id, err := n.Int64()
			if err != nil {
				return nil, errInvalidExclude(n.String())
			}
			ids = append(ids, id)
		}
		return ids, nil
	}

	var strs []string
	if err := json.Unmarshal(raw, &strs); err == nil {
		return parseExcludeCSV(strings.Join(strs, ","))
	}

	return nil, errInvalidExclude(string(raw))
}

func errInvalidExclude(v string) error {
	return fmt.Errorf("invalid exclude id %q", v)
}
