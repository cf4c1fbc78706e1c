package dto

import (
	"fmt"
	"time"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

// CriterionRequest is one rubric criterion in a configuration payload.
type CriterionRequest struct {
	Name          string `json:"name" validate:"required"`
	WeightPercent int    `json:"weight_percent" validate:"min=0,max=100"`
}

// CreateGradeConfigRequest is the payload creating a gradebook configuration.
type CreateGradeConfigRequest struct {
	Name                    string             `json:"name" validate:"required"`
	Criteria                []CriterionRequest `json:"criteria" validate:"required,min=1,dive"`
	ScoringRangeMax         int                `json:"scoring_range_max" validate:"required,min=1"`
	PassingThresholdPercent int                `json:"passing_threshold_percent" validate:"min=0,max=100"`
	ValidFrom               string             `json:"valid_from" validate:"required,datetime=2006-01-02"`
	ValidTo                 string             `json:"valid_to" validate:"required,datetime=2006-01-02"`
	// NameMaxLength tightens the name limit for quick-create flows.
	NameMaxLength int `json:"name_max_length,omitempty" validate:"omitempty,min=1,max=50"`
}

// UpdateGradeConfigRequest edits a configuration in place; omitted fields are kept.
type UpdateGradeConfigRequest struct {
	Name                    *string            `json:"name,omitempty"`
	Criteria                []CriterionRequest `json:"criteria,omitempty" validate:"omitempty,min=1,dive"`
	ScoringRangeMax         *int               `json:"scoring_range_max,omitempty" validate:"omitempty,min=1"`
	PassingThresholdPercent *int               `json:"passing_threshold_percent,omitempty" validate:"omitempty,min=0,max=100"`
	ValidFrom               *string            `json:"valid_from,omitempty" validate:"omitempty,datetime=2006-01-02"`
	ValidTo                 *string            `json:"valid_to,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// GradeSheetQuery selects a grade sheet.
type GradeSheetQuery struct {
	Date     string `form:"date" validate:"required,datetime=2006-01-02"`
	ConfigID string `form:"criteriaId" validate:"required"`
}

// ExportQuery selects a grade sheet and output format.
type ExportQuery struct {
	GradeSheetQuery
	Format string `form:"format" validate:"omitempty,oneof=xlsx csv pdf"`
}

// StudentScoreRequest is one student's raw score vector.
type StudentScoreRequest struct {
	StudentID string `json:"student_id" validate:"required"`
	RawScores []int  `json:"raw_scores" validate:"required,dive,min=0"`
}

// SaveGradesRequest replaces the scores of a grade sheet.
type SaveGradesRequest struct {
	Scores []StudentScoreRequest `json:"scores" validate:"required,dive"`
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(value string) (time.Time, error) {
	t, err := time.Parse(models.DateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return t, nil
}

// Criteria converts request criteria to model criteria in order.
func Criteria(items []CriterionRequest) []models.RubricCriterion {
	if items == nil {
		return nil
	}
	out := make([]models.RubricCriterion, len(items))
	for i, item := range items {
		out[i] = models.RubricCriterion{Position: i, Name: item.Name, WeightPercent: item.WeightPercent}
	}
	return out
}

// CriterionRequests converts model criteria back to request form.
func CriterionRequests(criteria []models.RubricCriterion) []CriterionRequest {
	out := make([]CriterionRequest, len(criteria))
	for i, criterion := range criteria {
		out[i] = CriterionRequest{Name: criterion.Name, WeightPercent: criterion.WeightPercent}
	}
	return out
}

// NewCreateGradeConfigRequest builds a create payload from a draft configuration.
func NewCreateGradeConfigRequest(cfg models.GradebookConfiguration) CreateGradeConfigRequest {
	return CreateGradeConfigRequest{
		Name:                    cfg.Name,
		Criteria:                CriterionRequests(cfg.Criteria),
		ScoringRangeMax:         cfg.ScoringRangeMax,
		PassingThresholdPercent: cfg.PassingThresholdPercent,
		ValidFrom:               cfg.ValidFrom.Format(models.DateLayout),
		ValidTo:                 cfg.ValidTo.Format(models.DateLayout),
	}
}

// NewUpdateGradeConfigRequest builds a full-replacement update payload from cfg.
func NewUpdateGradeConfigRequest(cfg models.GradebookConfiguration) UpdateGradeConfigRequest {
	from := cfg.ValidFrom.Format(models.DateLayout)
	to := cfg.ValidTo.Format(models.DateLayout)
	return UpdateGradeConfigRequest{
		Name:                    &cfg.Name,
		Criteria:                CriterionRequests(cfg.Criteria),
		ScoringRangeMax:         &cfg.ScoringRangeMax,
		PassingThresholdPercent: &cfg.PassingThresholdPercent,
		ValidFrom:               &from,
		ValidTo:                 &to,
	}
}

// NewSaveGradesRequest builds a save payload from engine scores.
func NewSaveGradesRequest(scores []models.StudentScore) SaveGradesRequest {
	out := SaveGradesRequest{Scores: make([]StudentScoreRequest, len(scores))}
	for i, score := range scores {
		out.Scores[i] = StudentScoreRequest{StudentID: score.StudentID, RawScores: append([]int{}, score.RawScores...)}
	}
	return out
}

// TokenRequest asks the development token endpoint for an access token.
type TokenRequest struct {
	UserID string          `json:"user_id" validate:"required"`
	Role   models.UserRole `json:"role" validate:"required,oneof=SUPERADMIN ADMIN TEACHER STUDENT"`
}

// TokenResponse carries an issued access token.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}
