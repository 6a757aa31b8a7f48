package services

import (
	"math"
	"sort"
	"time"
)

// Aggregation over assessment records. Everything in this file is a pure
// function over a slice of records; callers are expected to feed it the
// repository's rollup view. Ratios over an empty set are defined as 0.

type StageCount struct {
	Stage   int     `json:"stage"`
	Count   int     `json:"count"`
	Percent float64 `json:"percent"`
}

// StageDistribution counts records per suggested stage, one bucket per stage
// 1 through 5.
func StageDistribution(records []*AssessmentRecord) []StageCount {
	counts := [5]int{}
	for _, rec := range records {
		if rec.SuggestedStage >= 1 && rec.SuggestedStage <= 5 {
			counts[rec.SuggestedStage-1]++
		}
	}
	out := make([]StageCount, 5)
	for i, c := range counts {
		out[i] = StageCount{Stage: i + 1, Count: c, Percent: pct(c, len(records))}
	}
	return out
}

type TeamReadiness struct {
	Team         string  `json:"team"`
	AverageStage float64 `json:"averageStage"`
	Count        int     `json:"count"`
}

// TeamReadinessRanking averages the suggested stage per team, highest first.
// Ties order alphabetically so the ranking is stable.
func TeamReadinessRanking(records []*AssessmentRecord) []TeamReadiness {
	sums := map[string]int{}
	counts := map[string]int{}
	for _, rec := range records {
		sums[rec.Team] += rec.SuggestedStage
		counts[rec.Team]++
	}
	out := make([]TeamReadiness, 0, len(sums))
	for team, sum := range sums {
		out = append(out, TeamReadiness{
			Team:         team,
			AverageStage: float64(sum) / float64(counts[team]),
			Count:        counts[team],
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AverageStage != out[j].AverageStage {
			return out[i].AverageStage > out[j].AverageStage
		}
		return out[i].Team < out[j].Team
	})
	return out
}

type ProgressionSummary struct {
	Finalized         int     `json:"finalized"`
	AccuratePct       float64 `json:"accuratePct"`
	UnderestimatedPct float64 `json:"underestimatedPct"`
	OverestimatedPct  float64 `json:"overestimatedPct"`
}

// ProgressionAccuracy classifies finalized records by the sign of
// assessedStage minus suggestedStage: zero is accurate, negative means the
// submitter underestimated, positive means they overestimated.
func ProgressionAccuracy(records []*AssessmentRecord) ProgressionSummary {
	accurate, under, over, total := 0, 0, 0, 0
	for _, rec := range records {
		if !rec.Finalized || rec.AssessedStage == nil {
			continue
		}
		total++
		switch diff := *rec.AssessedStage - rec.SuggestedStage; {
		case diff > 0:
			over++
		case diff < 0:
			under++
		default:
			accurate++
		}
	}
	return ProgressionSummary{
		Finalized:         total,
		AccuratePct:       pct(accurate, total),
		UnderestimatedPct: pct(under, total),
		OverestimatedPct:  pct(over, total),
	}
}

type QualitySummary struct {
	AverageScore    float64 `json:"averageScore"`
	VarietyPct      float64 `json:"varietyPct"`
	CompletenessPct float64 `json:"completenessPct"`
}

// ResponseQuality reports how informative the answers are: the mean of every
// individual score, the share of records whose answers are not all identical,
// and the share that are fully filled in.
func ResponseQuality(records []*AssessmentRecord) QualitySummary {
	scoreSum, scoreCount := 0, 0
	varied, complete := 0, 0
	for _, rec := range records {
		uniq := map[int]struct{}{}
		for _, s := range rec.Scores {
			scoreSum += s
			scoreCount++
			uniq[s] = struct{}{}
		}
		if len(uniq) > 1 {
			varied++
		}
		if len(rec.Scores) == ScoreCount && rec.SubmitterName != "" && rec.Team != "" {
			complete++
		}
	}
	avg := 0.0
	if scoreCount > 0 {
		avg = float64(scoreSum) / float64(scoreCount)
	}
	return QualitySummary{
		AverageScore:    avg,
		VarietyPct:      pct(varied, len(records)),
		CompletenessPct: pct(complete, len(records)),
	}
}

// Summary is the full rollup the dashboards render.
type Summary struct {
	TotalAssessments  int                `json:"totalAssessments"`
	LatestAssessment  *time.Time         `json:"latestAssessment,omitempty"`
	StageDistribution []StageCount       `json:"stageDistribution"`
	TeamReadiness     []TeamReadiness    `json:"teamReadiness"`
	Progression       ProgressionSummary `json:"progression"`
	Quality           QualitySummary     `json:"quality"`
}

func BuildSummary(records []*AssessmentRecord) *Summary {
	s := &Summary{
		TotalAssessments:  len(records),
		StageDistribution: StageDistribution(records),
		TeamReadiness:     TeamReadinessRanking(records),
		Progression:       ProgressionAccuracy(records),
		Quality:           ResponseQuality(records),
	}
	for _, rec := range records {
		if s.LatestAssessment == nil || rec.CreatedAt.After(*s.LatestAssessment) {
			t := rec.CreatedAt
			s.LatestAssessment = &t
		}
	}
	return s
}

// pct rounds to whole percent, matching how the dashboards display ratios.
func pct(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(part) / float64(total) * 100)
}
