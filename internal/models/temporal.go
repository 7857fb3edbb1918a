package models

import (
	"math"
	"time"
)

// maxPreferenceAgeDays bounds how far back preference events keep influence;
// the decay constant is a third of it.
const maxPreferenceAgeDays = 180

const temporalDecayDays = maxPreferenceAgeDays / 3

// TemporalWeight decays an event's importance by its age:
// exp(-days/60), always in (0, 1]. Unknown timestamps weigh 0.5.
func TemporalWeight(addedAt, now time.Time) float64 {
	if addedAt.IsZero() {
		return 0.5
	}
	days := now.Sub(addedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	return math.Exp(-days / temporalDecayDays)
}
