package gradebook

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

var validateNow = time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)

func validConfig() models.GradebookConfiguration {
	return models.GradebookConfiguration{
		ID:                      "cfg-1",
		CourseSlug:              "math-7a",
		Name:                    "Term 1 Rubric",
		ScoringRangeMax:         5,
		PassingThresholdPercent: 75,
		ValidFrom:               time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		ValidTo:                 time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC),
		Criteria: []models.RubricCriterion{
			{Name: "Participation", WeightPercent: 60},
			{Name: "Homework", WeightPercent: 40},
		},
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	result := Validate(validConfig(), ValidateOptions{Historical: true, Now: validateNow})
	assert.True(t, result.OK)
	assert.True(t, result.Errors.Empty())
	assert.NoError(t, result.Err())
}

func TestValidateWeightsMustSumToHundred(t *testing.T) {
	cfg := validConfig()
	cfg.Criteria = []models.RubricCriterion{
		{Name: "Quiz", WeightPercent: 50},
		{Name: "Lab", WeightPercent: 30},
		{Name: "Essay", WeightPercent: 15},
	}
	result := Validate(cfg, ValidateOptions{Now: validateNow})
	require.False(t, result.OK)
	assert.Contains(t, result.Errors.Weights, "95")

	err := result.Err()
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	appErr := appErrors.FromError(err)
	details, ok := appErr.Details.(FieldErrors)
	require.True(t, ok)
	assert.NotEmpty(t, details.Weights)
}

func TestValidateNameRules(t *testing.T) {
	siblings := []models.GradebookConfiguration{{ID: "cfg-2", Name: "Midterm"}}

	cases := []struct {
		name    string
		input   string
		maxLen  int
		wantErr bool
	}{
		{name: "blank", input: "   ", wantErr: true},
		{name: "charset", input: "Rubric #1", wantErr: true},
		{name: "allowed punctuation", input: "Rubric v1.2, final-draft_a", wantErr: false},
		{name: "collision is case-insensitive", input: " midterm ", wantErr: true},
		{name: "quick create limit", input: strings.Repeat("a", 21), maxLen: 20, wantErr: true},
		{name: "default limit", input: strings.Repeat("a", 50), wantErr: false},
		{name: "over default limit", input: strings.Repeat("a", 51), wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Name = tc.input
			result := Validate(cfg, ValidateOptions{NameMaxLength: tc.maxLen, Siblings: siblings, Now: validateNow})
			assert.Equal(t, tc.wantErr, result.Errors.Name != "", result.Errors.Name)
		})
	}
}

func TestValidateNameCollisionExcludesSelf(t *testing.T) {
	cfg := validConfig()
	siblings := []models.GradebookConfiguration{{ID: cfg.ID, Name: cfg.Name}}
	result := Validate(cfg, ValidateOptions{Siblings: siblings, Now: validateNow})
	assert.True(t, result.OK)
}

func TestValidateCriteria(t *testing.T) {
	cfg := validConfig()
	cfg.Criteria = []models.RubricCriterion{
		{Name: "Participation", WeightPercent: 25},
		{Name: "participation", WeightPercent: 25},
		{Name: "", WeightPercent: 25},
		{Name: "A very long criterion", WeightPercent: 15},
		{Name: "Lab-work", WeightPercent: 10},
	}
	result := Validate(cfg, ValidateOptions{Now: validateNow})
	require.False(t, result.OK)
	assert.Len(t, result.Errors.Criteria, 4)
	assert.Empty(t, result.Errors.Weights)

	cfg.Criteria = nil
	result = Validate(cfg, ValidateOptions{Now: validateNow})
	assert.NotEmpty(t, result.Errors.Criteria)
	assert.NotEmpty(t, result.Errors.Weights)
}

func TestValidateDateRange(t *testing.T) {
	cfg := validConfig()
	cfg.ValidFrom, cfg.ValidTo = cfg.ValidTo, cfg.ValidFrom
	assert.NotEmpty(t, Validate(cfg, ValidateOptions{Now: validateNow}).Errors.DateRange)

	cfg = validConfig()
	cfg.ValidTo = time.Time{}
	assert.NotEmpty(t, Validate(cfg, ValidateOptions{Now: validateNow}).Errors.DateRange)

	cfg = validConfig()
	cfg.ValidTo = validateNow.AddDate(0, 0, 1)
	assert.NotEmpty(t, Validate(cfg, ValidateOptions{Historical: true, Now: validateNow}).Errors.DateRange)
	assert.Empty(t, Validate(cfg, ValidateOptions{Historical: false, Now: validateNow}).Errors.DateRange)

	cfg = validConfig()
	cfg.ValidFrom = cfg.ValidTo.Add(3 * time.Hour)
	assert.Empty(t, Validate(cfg, ValidateOptions{Now: validateNow}).Errors.DateRange)
}

func TestValidateScaleAndThreshold(t *testing.T) {
	cfg := validConfig()
	cfg.ScoringRangeMax = 0
	cfg.PassingThresholdPercent = 101
	result := Validate(cfg, ValidateOptions{Now: validateNow})
	assert.NotEmpty(t, result.Errors.ScoringRange)
	assert.NotEmpty(t, result.Errors.Threshold)
}
