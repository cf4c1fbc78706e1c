// Package gradebook holds the grade computation and configuration engine:
// weighted rubric aggregation, remark classification, configuration
// validation and the stateful ConfigurationStore and GradeSession.
package gradebook

import (
	"fmt"
	"math"
	"slices"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

// Aggregate converts raw criterion scores into a weighted percentage rounded to
// two decimals. Each criterion contributes (raw/scoringRangeMax)*weight.
func Aggregate(raw []int, criteria []models.RubricCriterion, scoringRangeMax int) (float64, error) {
	if scoringRangeMax <= 0 {
		return 0, appErrors.Clone(appErrors.ErrValidation, "scoring range max must be positive")
	}
	if len(raw) != len(criteria) {
		return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("expected %d scores, got %d", len(criteria), len(raw)))
	}
	total := 0.0
	for i, score := range raw {
		if score < 0 || score > scoringRangeMax {
			return 0, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("score %d out of range 0..%d", score, scoringRangeMax))
		}
		total += float64(score) / float64(scoringRangeMax) * float64(criteria[i].WeightPercent)
	}
	return round2(total), nil
}

// Classify derives the remark of a score vector. Any unset criterion yields
// INCOMPLETE; otherwise the threshold comparison is inclusive.
func Classify(raw []int, aggregatedPercent float64, passingThresholdPercent int) models.Remark {
	for _, score := range raw {
		if score == 0 {
			return models.RemarkIncomplete
		}
	}
	if aggregatedPercent >= float64(passingThresholdPercent) {
		return models.RemarkPassed
	}
	return models.RemarkFailed
}

// Recompute refreshes the derived fields of score against cfg.
func Recompute(score *models.StudentScore, cfg *models.GradebookConfiguration) error {
	aggregated, err := Aggregate(score.RawScores, cfg.Criteria, cfg.ScoringRangeMax)
	if err != nil {
		return err
	}
	score.AggregatedPercent = aggregated
	score.Remark = Classify(score.RawScores, aggregated, cfg.PassingThresholdPercent)
	return nil
}

// Fit truncates or zero-pads raw to size and unsets values outside 1..scoringRangeMax.
// The returned slice never aliases raw.
func Fit(raw []int, size, scoringRangeMax int) []int {
	out := make([]int, size)
	for i := 0; i < size && i < len(raw); i++ {
		if raw[i] >= 1 && raw[i] <= scoringRangeMax {
			out[i] = raw[i]
		}
	}
	return out
}

// Normalize fits the score vector to cfg and recomputes its derived fields.
func Normalize(score models.StudentScore, cfg *models.GradebookConfiguration) models.StudentScore {
	score.RawScores = Fit(score.RawScores, len(cfg.Criteria), cfg.ScoringRangeMax)
	// Fit guarantees the Aggregate preconditions.
	_ = Recompute(&score, cfg)
	return score
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Retroactive reports whether editing before into after changes how recorded
// scores aggregate or which dates they belong to. Renames are not retroactive.
func Retroactive(before, after models.GradebookConfiguration) bool {
	if before.ScoringRangeMax != after.ScoringRangeMax || before.PassingThresholdPercent != after.PassingThresholdPercent {
		return true
	}
	if !DateOnly(before.ValidFrom).Equal(DateOnly(after.ValidFrom)) || !DateOnly(before.ValidTo).Equal(DateOnly(after.ValidTo)) {
		return true
	}
	return !slices.EqualFunc(before.Criteria, after.Criteria, func(a, b models.RubricCriterion) bool {
		return a.Name == b.Name && a.WeightPercent == b.WeightPercent
	})
}
