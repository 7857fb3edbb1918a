package recommend

import "cinerec/internal/models"

// diversityShare is the fraction of the result filled greedily before
// genre/decade spread is required.
const diversityShare = 0.7

// SelectDiverse walks candidates in descending-score order and picks up to
// limit of them, favoring unseen primary genres and decades once the first
// 70% of slots are taken. A second pass fills any remaining slots. The
// output preserves the input's score order.
func SelectDiverse(sorted []models.ScoredCandidate, limit int) []models.ScoredCandidate {
	if limit <= 0 || len(sorted) == 0 {
		return nil
	}

	freeSlots := int(diversityShare * float64(limit))
	usedGenres := make(map[int]bool)
	usedDecades := make(map[int]bool)
	picked := make(map[int64]bool, limit)

	take := func(sc *models.ScoredCandidate) {
		picked[sc.ID] = true
		usedGenres[sc.PrimaryGenre()] = true
		usedDecades[sc.Decade()] = true
	}

	for i := range sorted {
		if len(picked) >= limit {
			break
		}
		sc := &sorted[i]
		switch {
		case len(picked) < freeSlots:
			take(sc)
		case !usedGenres[sc.PrimaryGenre()]:
			take(sc)
		case !usedDecades[sc.Decade()]:
			take(sc)
		}
	}

	// Fill remaining slots from the top regardless of spread.
	for i := range sorted {
		if len(picked) >= limit {
			break
		}
		if !picked[sorted[i].ID] {
			take(&sorted[i])
		}
	}

	selected := make([]models.ScoredCandidate, 0, len(picked))
	for _, sc := range sorted {
		if picked[sc.ID] {
			selected = append(selected, sc)
		}
	}
	return selected
}
