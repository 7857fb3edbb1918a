// Package semantic scores free-text similarity between a user's stated
// preferences and candidate metadata. The implementation is a term-frequency
// cosine over normalized tokens; callers treat it as a black box behind the
// pipeline's scorer interface.
package semantic

import (
	"math"
	"strings"
	"unicode"

	"cinerec/internal/models"
	"cinerec/internal/tmdb"
)

// minTextLength is the shortest input considered meaningful. Below it the
// score is 0 and callers substitute a neutral value.
const minTextLength = 10

type Scorer struct{}

func NewScorer() *Scorer {
	return &Scorer{}
}

// Similarity returns a value in [0, 1]. It is symmetric and deterministic;
// either input shorter than 10 characters yields 0.
func (s *Scorer) Similarity(a, b string) float64 {
	if len(strings.TrimSpace(a)) < minTextLength || len(strings.TrimSpace(b)) < minTextLength {
		return 0
	}

	va := termFrequencies(a)
	vb := termFrequencies(b)
	if len(va) == 0 || len(vb) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for term, fa := range va {
		normA += fa * fa
		if fb, ok := vb[term]; ok {
			dot += fa * fb
		}
	}
	for _, fb := range vb {
		normB += fb * fb
	}
	if normA == 0 || normB == 0 {
		return 0
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "with": true, "that": true,
	"this": true, "from": true, "his": true, "her": true, "its": true,
	"are": true, "was": true, "has": true, "have": true, "who": true,
	"into": true, "when": true, "their": true, "they": true, "but": true,
}

func termFrequencies(text string) map[string]float64 {
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	freqs := make(map[string]float64, len(tokens))
	for _, tok := range tokens {
		if len(tok) < 3 || stopWords[tok] {
			continue
		}
		freqs[tok]++
	}
	return freqs
}

// ExtractMovieText concatenates the candidate fields that carry semantic
// signal: title, overview and the leading genre names.
func ExtractMovieText(c *models.Candidate) string {
	parts := []string{c.Title, c.Overview}
	for i, g := range c.GenreIDs {
		if i >= 3 {
			break
		}
		if name, ok := tmdb.GenreNames[g]; ok {
			parts = append(parts, name)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// ExtractUserPreferenceText concatenates the non-empty free-text preference
// fields.
func ExtractUserPreferenceText(p *models.UserPreferences) string {
	var parts []string
	if len(p.FavoriteContent) > 0 {
		parts = append(parts, strings.Join(p.FavoriteContent, " "))
	}
	if p.MoodPreferences != "" {
		parts = append(parts, p.MoodPreferences)
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}
