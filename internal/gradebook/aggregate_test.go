package gradebook

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

func criteria(weights ...int) []models.RubricCriterion {
	out := make([]models.RubricCriterion, len(weights))
	for i, w := range weights {
		out[i] = models.RubricCriterion{Position: i, Name: string(rune('A' + i)), WeightPercent: w}
	}
	return out
}

func TestAggregateWeightedScenarios(t *testing.T) {
	cases := []struct {
		name    string
		raw     []int
		weights []int
		max     int
		want    float64
	}{
		{name: "two criteria 60/40", raw: []int{4, 4}, weights: []int{60, 40}, max: 5, want: 80},
		{name: "inclusive boundary case", raw: []int{3, 5}, weights: []int{40, 60}, max: 5, want: 84},
		{name: "all max", raw: []int{10, 10, 10}, weights: []int{50, 30, 20}, max: 10, want: 100},
		{name: "rounded to two decimals", raw: []int{1, 1, 1}, weights: []int{34, 33, 33}, max: 3, want: 33.33},
		{name: "unset counts as zero", raw: []int{0, 5}, weights: []int{50, 50}, max: 5, want: 50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Aggregate(tc.raw, criteria(tc.weights...), tc.max)
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 0.0001)
		})
	}
}

func TestAggregateStaysWithinPercentRange(t *testing.T) {
	weights := [][]int{{100}, {50, 50}, {60, 40}, {10, 20, 30, 40}, {1, 1, 98}}
	for _, w := range weights {
		crit := criteria(w...)
		for max := 1; max <= 10; max++ {
			raw := make([]int, len(w))
			for v := 1; v <= max; v++ {
				for i := range raw {
					raw[i] = v
				}
				got, err := Aggregate(raw, crit, max)
				require.NoError(t, err)
				assert.GreaterOrEqual(t, got, 0.0)
				assert.LessOrEqual(t, got, 100.0)
			}
		}
	}
}

func TestAggregateScaleInvariant(t *testing.T) {
	crit := criteria(25, 25, 50)
	raw := []int{1, 3, 4}
	base, err := Aggregate(raw, crit, 5)
	require.NoError(t, err)

	doubled, err := Aggregate([]int{2, 6, 8}, crit, 10)
	require.NoError(t, err)
	assert.Equal(t, base, doubled)
}

func TestAggregateRejectsBadInput(t *testing.T) {
	_, err := Aggregate([]int{1}, criteria(50, 50), 5)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = Aggregate([]int{6, 1}, criteria(50, 50), 5)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	_, err = Aggregate([]int{1, 1}, criteria(50, 50), 0)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestClassify(t *testing.T) {
	assert.Equal(t, models.RemarkIncomplete, Classify([]int{0, 5}, 50, 70))
	assert.Equal(t, models.RemarkIncomplete, Classify([]int{0, 5}, 100, 0))
	assert.Equal(t, models.RemarkPassed, Classify([]int{3, 5}, 84, 84))
	assert.Equal(t, models.RemarkFailed, Classify([]int{3, 5}, 83.99, 84))
	assert.Equal(t, models.RemarkPassed, Classify([]int{4, 4}, 80, 75))
}

func TestRecomputeIncompleteDespiteHighPartialScore(t *testing.T) {
	cfg := &models.GradebookConfiguration{Criteria: criteria(50, 50), ScoringRangeMax: 5, PassingThresholdPercent: 70}
	score := models.StudentScore{StudentID: "s1", RawScores: []int{0, 5}}
	require.NoError(t, Recompute(&score, cfg))
	assert.Equal(t, models.RemarkIncomplete, score.Remark)
	assert.Equal(t, 50.0, score.AggregatedPercent)
}

func TestFitTruncatesPadsAndUnsetsOutOfRange(t *testing.T) {
	assert.Equal(t, []int{4, 2}, Fit([]int{4, 2, 5}, 2, 5))
	assert.Equal(t, []int{4, 0, 0}, Fit([]int{4}, 3, 5))
	assert.Equal(t, []int{0, 3}, Fit([]int{9, 3}, 2, 5))

	raw := []int{1, 2}
	fitted := Fit(raw, 2, 5)
	fitted[0] = 5
	assert.Equal(t, 1, raw[0])
}

func TestRetroactive(t *testing.T) {
	base := *rubric("cfg-1", 5, 75, 60, 40)

	renamed := *base.Clone()
	renamed.Name = "Midterm"
	assert.False(t, Retroactive(base, renamed))

	shifted := *base.Clone()
	shifted.ValidFrom = shifted.ValidFrom.AddDate(0, 0, 7)
	assert.True(t, Retroactive(base, shifted))

	sameDay := *base.Clone()
	sameDay.ValidTo = sameDay.ValidTo.Add(9 * time.Hour)
	assert.False(t, Retroactive(base, sameDay))

	reweighted := *base.Clone()
	reweighted.Criteria = criteria(50, 50)
	assert.True(t, Retroactive(base, reweighted))

	stricter := *base.Clone()
	stricter.PassingThresholdPercent = 80
	assert.True(t, Retroactive(base, stricter))
}
