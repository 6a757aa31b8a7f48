package services

// SuggestStage maps questionnaire scores to a maturity stage in [1, 5] by
// averaging the answers and applying the rubric's thresholds. The stage 4
// band (2.5, 2.8] is narrower than the others; the published rubric defines
// it that way and the boundaries must not be regularized.
func SuggestStage(scores []int) int {
	if len(scores) == 0 {
		return 1
	}
	sum := 0
	for _, s := range scores {
		sum += s
	}
	avg := float64(sum) / float64(len(scores))
	switch {
	case avg <= 0.5:
		return 1
	case avg <= 1.5:
		return 2
	case avg <= 2.5:
		return 3
	case avg <= 2.8:
		return 4
	default:
		return 5
	}
}
