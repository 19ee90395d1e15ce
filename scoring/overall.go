package scoring

import (
	"ftc/repository"
)

// Overall computes the weight-normalized aggregate of the recorded
// per-criterion scores:
//
//	Σ(score_i × weight_i) / Σ(weight_i)
//
// Weights come from the joined criteria at recompute time, so a later
// weight change affects subsequent recomputations but never rewrites
// stored per-criterion scores. The second return value is false when
// no scores are recorded; callers must leave the current overall score
// untouched in that case.
func Overall(scores []*repository.EvaluationScore) (float64, bool) {
	if len(scores) == 0 {
		return 0, false
	}
	var weighted, total float64
	for _, score := range scores {
		// scores are always read with their criteria joined; a missing
		// join falls back to unit weight
		weight := 1.0
		if score.Criteria != nil {
			weight = score.Criteria.Weight
		}
		weighted += score.Score * weight
		total += weight
	}
	if total == 0 {
		return 0, false
	}
	return weighted / total, true
}
