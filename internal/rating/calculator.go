package rating

import "math"

const (
	// MinRating and MaxRating bound every stored rating
	MinRating = 0
	MaxRating = 1000

	// DefaultRating is the baseline for unrated players and for guests
	DefaultRating = 300

	// KFactor is the Elo swing factor
	KFactor = 32

	// WalkoverFactor scales both deltas of a walkover (reduced confidence)
	WalkoverFactor = 0.75

	// NullMatchPenalty is subtracted from both players when both are absent
	NullMatchPenalty = 15

	GoalBonus       = 2
	ConcededPenalty = 1
	CleanSheetBonus = 5
)

// Clamp bounds a rating to [MinRating, MaxRating]
func Clamp(r int) int {
	if r < MinRating {
		return MinRating
	}
	if r > MaxRating {
		return MaxRating
	}
	return r
}

// ApplyDelta returns the clamped rating after adding delta
func ApplyDelta(before, delta int) int {
	return Clamp(before + delta)
}

// expectedScore is the Elo expectation of self against other
func expectedScore(self, other int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(other-self)/400.0))
}

// BaseEloChange returns the rounded Elo deltas for winner and loser.
// On a draw both sides score 0.5 and the argument order is irrelevant.
func BaseEloChange(winnerRating, loserRating int, isDraw bool) (int, int) {
	winnerScore, loserScore := 1.0, 0.0
	if isDraw {
		winnerScore, loserScore = 0.5, 0.5
	}

	winnerDelta := KFactor * (winnerScore - expectedScore(winnerRating, loserRating))
	loserDelta := KFactor * (loserScore - expectedScore(loserRating, winnerRating))

	return int(math.Round(winnerDelta)), int(math.Round(loserDelta))
}

// EnhancedChange computes the raw rating deltas for a match, before clamping.
//
// Both absent is a null match: a flat penalty, no Elo. Exactly one absent is a
// walkover won by the present player, scaled by WalkoverFactor. Otherwise the
// goal outcome drives Elo, plus goal, conceded and clean sheet adjustments.
func EnhancedChange(r1, r2, goals1, goals2 int, absent1, absent2 bool) (int, int) {
	switch {
	case absent1 && absent2:
		return -NullMatchPenalty, -NullMatchPenalty

	case absent1 || absent2:
		if absent2 {
			w, l := BaseEloChange(r1, r2, false)
			return scale(w), scale(l)
		}
		w, l := BaseEloChange(r2, r1, false)
		return scale(l), scale(w)
	}

	var d1, d2 int
	switch {
	case goals1 > goals2:
		d1, d2 = BaseEloChange(r1, r2, false)
	case goals2 > goals1:
		d2, d1 = BaseEloChange(r2, r1, false)
	default:
		d1, d2 = BaseEloChange(r1, r2, true)
	}

	d1 += goalAdjustment(goals1, goals2)
	d2 += goalAdjustment(goals2, goals1)
	return d1, d2
}

func goalAdjustment(scored, conceded int) int {
	adj := GoalBonus*scored - ConcededPenalty*conceded
	if conceded == 0 {
		adj += CleanSheetBonus
	}
	return adj
}

func scale(delta int) int {
	return int(math.Round(float64(delta) * WalkoverFactor))
}
