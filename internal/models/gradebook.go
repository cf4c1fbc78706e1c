package models

import (
	"time"

	"github.com/lib/pq"
)

// DateLayout is the wire format of grade sheet dates.
const DateLayout = "2006-01-02"

// Remark is the pass/fail classification of a student's aggregated score.
type Remark string

const (
	// RemarkPassed marks a fully graded score at or above the threshold.
	RemarkPassed Remark = "PASSED"
	// RemarkFailed marks a fully graded score below the threshold.
	RemarkFailed Remark = "FAILED"
	// RemarkIncomplete marks a score vector with at least one unset criterion.
	RemarkIncomplete Remark = "INCOMPLETE"
)

// RubricCriterion is a single weighted grading criterion of a configuration.
type RubricCriterion struct {
	ID            string `db:"id" json:"id,omitempty"`
	GradeConfigID string `db:"grade_config_id" json:"-"`
	Position      int    `db:"position" json:"position"`
	Name          string `db:"name" json:"name"`
	WeightPercent int    `db:"weight_percent" json:"weight_percent"`
}

// GradebookConfiguration defines the rubric, scale, threshold and validity window
// governing grades of a course.
type GradebookConfiguration struct {
	ID                      string            `db:"id" json:"id"`
	CourseSlug              string            `db:"course_slug" json:"course_slug"`
	Name                    string            `db:"name" json:"name"`
	ScoringRangeMax         int               `db:"scoring_range_max" json:"scoring_range_max"`
	PassingThresholdPercent int               `db:"passing_threshold_percent" json:"passing_threshold_percent"`
	ValidFrom               time.Time         `db:"valid_from" json:"valid_from"`
	ValidTo                 time.Time         `db:"valid_to" json:"valid_to"`
	Version                 int               `db:"version" json:"version"`
	CreatedAt               time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time         `db:"updated_at" json:"updated_at"`
	Criteria                []RubricCriterion `json:"criteria"`
}

// Clone returns a deep copy of the configuration.
func (c *GradebookConfiguration) Clone() *GradebookConfiguration {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Criteria = append([]RubricCriterion(nil), c.Criteria...)
	return &clone
}

// WeightTotal sums the criteria weights.
func (c *GradebookConfiguration) WeightTotal() int {
	total := 0
	for _, criterion := range c.Criteria {
		total += criterion.WeightPercent
	}
	return total
}

// StudentScore is a student's row in a grade sheet.
type StudentScore struct {
	StudentID         string  `json:"student_id"`
	StudentName       string  `json:"student_name,omitempty"`
	RawScores         []int   `json:"raw_scores"`
	AggregatedPercent float64 `json:"aggregated_percent"`
	Remark            Remark  `json:"remark"`
}

// Clone returns a copy with its own score vector.
func (s StudentScore) Clone() StudentScore {
	s.RawScores = append([]int(nil), s.RawScores...)
	return s
}

// GradeRecord is the persisted score vector of one student for one date.
type GradeRecord struct {
	ID                string        `db:"id" json:"id"`
	CourseSlug        string        `db:"course_slug" json:"course_slug"`
	GradeConfigID     string        `db:"grade_config_id" json:"grade_config_id"`
	StudentID         string        `db:"student_id" json:"student_id"`
	GradeDate         time.Time     `db:"grade_date" json:"grade_date"`
	RawScores         pq.Int64Array `db:"raw_scores" json:"raw_scores"`
	AggregatedPercent float64       `db:"aggregated_percent" json:"aggregated_percent"`
	Remark            Remark        `db:"remark" json:"remark"`
	UpdatedBy         *string       `db:"updated_by" json:"updated_by,omitempty"`
	CreatedAt         time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time     `db:"updated_at" json:"updated_at"`
}

// Ints converts the stored vector to the engine representation.
func (r GradeRecord) Ints() []int {
	out := make([]int, len(r.RawScores))
	for i, v := range r.RawScores {
		out[i] = int(v)
	}
	return out
}

// CourseStudent is a roster entry of a course.
type CourseStudent struct {
	CourseSlug string `db:"course_slug" json:"course_slug"`
	StudentID  string `db:"student_id" json:"student_id"`
	FullName   string `db:"full_name" json:"full_name"`
}

// GradeSheet is the grade listing of a course for one date and configuration.
type GradeSheet struct {
	CourseSlug      string         `json:"course_slug"`
	Date            string         `json:"date"`
	ConfigurationID string         `json:"configuration_id"`
	Scores          []StudentScore `json:"scores"`
}
