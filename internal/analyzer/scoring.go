package analyzer

// WeightedScore pairs a nullable category score with its aggregate weight.
type WeightedScore struct {
	Score  *float64
	Weight float64
}

// Aggregate combines weighted category scores into one score:
// sum(score*weight) / sum(weight over non-nil entries). Entries with a nil
// score contribute no weight; they are never averaged as zero. Returns nil
// when every entry is nil. The result is independent of input order, and the
// same rule is applied at every composition level (leaf->meta, meta->overall)
// so nesting depth is invisible to the formula.
func Aggregate(entries []WeightedScore) *float64 {
	var sum, weight float64
	for _, e := range entries {
		if e.Score == nil || e.Weight <= 0 {
			continue
		}
		sum += *e.Score * e.Weight
		weight += e.Weight
	}
	if weight == 0 {
		return nil
	}
	v := sum / weight
	return &v
}

// ClampScore bounds a score to [0,100].
func ClampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ScoreOf is a convenience for building nullable scores.
func ScoreOf(v float64) *float64 {
	return &v
}
