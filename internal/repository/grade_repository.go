package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

const gradeScoreColumns = `id, course_slug, grade_config_id, student_id, grade_date, raw_scores, aggregated_percent, remark, updated_by, created_at, updated_at`

// GradeRepository handles persisted score vectors.
type GradeRepository struct {
	db *sqlx.DB
}

// NewGradeRepository creates a new grade repository.
func NewGradeRepository(db *sqlx.DB) *GradeRepository {
	return &GradeRepository{db: db}
}

// ListBySheet returns the grades of one course, date and configuration.
func (r *GradeRepository) ListBySheet(ctx context.Context, courseSlug string, date time.Time, configID string) ([]models.GradeRecord, error) {
	query := `SELECT ` + gradeScoreColumns + ` FROM grade_scores
        WHERE course_slug = $1 AND grade_date = $2 AND grade_config_id = $3 ORDER BY student_id`
	var records []models.GradeRecord
	if err := r.db.SelectContext(ctx, &records, query, courseSlug, date, configID); err != nil {
		return nil, fmt.Errorf("list grades: %w", err)
	}
	return records, nil
}

// ListByConfig returns every grade recorded under a configuration.
func (r *GradeRepository) ListByConfig(ctx context.Context, configID string) ([]models.GradeRecord, error) {
	query := `SELECT ` + gradeScoreColumns + ` FROM grade_scores WHERE grade_config_id = $1 ORDER BY grade_date, student_id`
	var records []models.GradeRecord
	if err := r.db.SelectContext(ctx, &records, query, configID); err != nil {
		return nil, fmt.Errorf("list grades by config: %w", err)
	}
	return records, nil
}

// BulkUpsert writes a grade sheet in one transaction.
func (r *GradeRepository) BulkUpsert(ctx context.Context, records []models.GradeRecord) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const query = `INSERT INTO grade_scores (id, course_slug, grade_config_id, student_id, grade_date, raw_scores, aggregated_percent, remark, updated_by, created_at, updated_at)
        VALUES (:id, :course_slug, :grade_config_id, :student_id, :grade_date, :raw_scores, :aggregated_percent, :remark, :updated_by, :created_at, :updated_at)
        ON CONFLICT (course_slug, grade_config_id, student_id, grade_date)
        DO UPDATE SET raw_scores = EXCLUDED.raw_scores, aggregated_percent = EXCLUDED.aggregated_percent,
            remark = EXCLUDED.remark, updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
	now := time.Now().UTC()
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		if records[i].CreatedAt.IsZero() {
			records[i].CreatedAt = now
		}
		records[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, query, records[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("upsert grade: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grades: %w", err)
	}
	return nil
}
