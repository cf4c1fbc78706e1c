package gradebook

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

const (
	// DefaultNameMaxLength bounds full configuration names.
	DefaultNameMaxLength = 50
	// CriterionNameMaxLength bounds rubric criterion names.
	CriterionNameMaxLength = 15
)

var (
	configNamePattern    = regexp.MustCompile(`^[A-Za-z0-9 _.,-]+$`)
	criterionNamePattern = regexp.MustCompile(`^[A-Za-z0-9 ]+$`)
)

// RegisterValidations installs the gradebook_name and criterion_name tags.
func RegisterValidations(v *validator.Validate) {
	_ = v.RegisterValidation("gradebook_name", func(fl validator.FieldLevel) bool {
		return configNamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("criterion_name", func(fl validator.FieldLevel) bool {
		return criterionNamePattern.MatchString(fl.Field().String())
	})
}

// NewValidator returns a validator with the gradebook tags registered.
func NewValidator() *validator.Validate {
	v := validator.New()
	RegisterValidations(v)
	return v
}

var fieldValidator = NewValidator()

// ValidateOptions carries caller-supplied validation context.
type ValidateOptions struct {
	// NameMaxLength defaults to DefaultNameMaxLength; quick-create flows pass 20 or 25.
	NameMaxLength int
	// Siblings are the other configurations of the same course.
	Siblings []models.GradebookConfiguration
	// Historical rejects validity windows ending after today.
	Historical bool
	Now        time.Time
}

// FieldErrors are the field-scoped validation messages.
type FieldErrors struct {
	Name         string   `json:"name,omitempty"`
	Criteria     []string `json:"criteria,omitempty"`
	Weights      string   `json:"weights,omitempty"`
	DateRange    string   `json:"date_range,omitempty"`
	ScoringRange string   `json:"scoring_range,omitempty"`
	Threshold    string   `json:"threshold,omitempty"`
}

// Empty reports whether no field carries an error.
func (f FieldErrors) Empty() bool {
	return f.Name == "" && len(f.Criteria) == 0 && f.Weights == "" && f.DateRange == "" && f.ScoringRange == "" && f.Threshold == ""
}

// ValidationResult is the outcome of Validate.
type ValidationResult struct {
	OK     bool        `json:"ok"`
	Errors FieldErrors `json:"errors"`
}

// Err converts a failed result into a VALIDATION_ERROR carrying the field errors.
func (r ValidationResult) Err() error {
	if r.OK {
		return nil
	}
	return appErrors.WithDetails(appErrors.ErrValidation, "invalid gradebook configuration", r.Errors)
}

// Validate checks cfg without side effects. It never returns an error; callers
// must check OK before persisting or activating.
func Validate(cfg models.GradebookConfiguration, opts ValidateOptions) ValidationResult {
	if opts.NameMaxLength <= 0 {
		opts.NameMaxLength = DefaultNameMaxLength
	}
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	var errs FieldErrors
	errs.Name = validateName(cfg, opts)
	errs.Criteria = validateCriteria(cfg.Criteria)
	errs.Weights = validateWeights(cfg.Criteria)
	errs.DateRange = validateDateRange(cfg.ValidFrom, cfg.ValidTo, opts)
	if cfg.ScoringRangeMax <= 0 {
		errs.ScoringRange = "scoring range max must be greater than zero"
	}
	if cfg.PassingThresholdPercent < 0 || cfg.PassingThresholdPercent > 100 {
		errs.Threshold = "passing threshold must be between 0 and 100"
	}
	return ValidationResult{OK: errs.Empty(), Errors: errs}
}

func validateName(cfg models.GradebookConfiguration, opts ValidateOptions) string {
	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return "name is required"
	}
	if len([]rune(name)) > opts.NameMaxLength {
		return fmt.Sprintf("name must be at most %d characters", opts.NameMaxLength)
	}
	if err := fieldValidator.Var(name, "gradebook_name"); err != nil {
		return "name may only contain letters, digits, spaces and - _ . ,"
	}
	for _, sibling := range opts.Siblings {
		if cfg.ID != "" && sibling.ID == cfg.ID {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(sibling.Name), name) {
			return "a configuration with this name already exists"
		}
	}
	return ""
}

func validateCriteria(criteria []models.RubricCriterion) []string {
	if len(criteria) == 0 {
		return []string{"at least one criterion is required"}
	}
	var msgs []string
	seen := make(map[string]int, len(criteria))
	for i, criterion := range criteria {
		name := strings.TrimSpace(criterion.Name)
		switch {
		case name == "":
			msgs = append(msgs, fmt.Sprintf("criterion %d: name is required", i+1))
			continue
		case len([]rune(name)) > CriterionNameMaxLength:
			msgs = append(msgs, fmt.Sprintf("criterion %d: name must be at most %d characters", i+1, CriterionNameMaxLength))
		case fieldValidator.Var(name, "criterion_name") != nil:
			msgs = append(msgs, fmt.Sprintf("criterion %d: name may only contain letters, digits and spaces", i+1))
		}
		key := strings.ToLower(name)
		if first, ok := seen[key]; ok {
			msgs = append(msgs, fmt.Sprintf("criterion %d: duplicates criterion %d", i+1, first+1))
			continue
		}
		seen[key] = i
	}
	return msgs
}

func validateWeights(criteria []models.RubricCriterion) string {
	total := 0
	for i, criterion := range criteria {
		if criterion.WeightPercent < 0 || criterion.WeightPercent > 100 {
			return fmt.Sprintf("criterion %d: weight must be between 0 and 100", i+1)
		}
		total += criterion.WeightPercent
	}
	if total != 100 {
		return fmt.Sprintf("weights must sum to 100, got %d", total)
	}
	return ""
}

func validateDateRange(from, to time.Time, opts ValidateOptions) string {
	if from.IsZero() || to.IsZero() {
		return "valid from and valid to are required"
	}
	if DateOnly(from).After(DateOnly(to)) {
		return "valid from must not be after valid to"
	}
	if opts.Historical && DateOnly(to).After(DateOnly(opts.Now)) {
		return "valid to cannot be in the future"
	}
	return ""
}

// DateOnly strips the clock portion of t, keeping its calendar date.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
