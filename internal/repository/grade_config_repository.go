package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

const gradeConfigColumns = `id, course_slug, name, scoring_range_max, passing_threshold_percent, valid_from, valid_to, version, created_at, updated_at`

// GradeConfigRepository manages gradebook configurations and their rubric criteria.
type GradeConfigRepository struct {
	db *sqlx.DB
}

// NewGradeConfigRepository creates a new repository instance.
func NewGradeConfigRepository(db *sqlx.DB) *GradeConfigRepository {
	return &GradeConfigRepository{db: db}
}

// List returns the configurations of a course, oldest first, with criteria.
func (r *GradeConfigRepository) List(ctx context.Context, courseSlug string) ([]models.GradebookConfiguration, error) {
	query := `SELECT ` + gradeConfigColumns + ` FROM grade_configs WHERE course_slug = $1 ORDER BY created_at, id`
	var configs []models.GradebookConfiguration
	if err := r.db.SelectContext(ctx, &configs, query, courseSlug); err != nil {
		return nil, fmt.Errorf("list grade configs: %w", err)
	}
	if len(configs) == 0 {
		return configs, nil
	}
	ids := make([]string, len(configs))
	for i := range configs {
		ids[i] = configs[i].ID
	}
	criteria, err := r.loadCriteria(ctx, ids...)
	if err != nil {
		return nil, err
	}
	for i := range configs {
		configs[i].Criteria = criteria[configs[i].ID]
	}
	return configs, nil
}

// FindByID returns a configuration of the course. It returns sql.ErrNoRows when absent.
func (r *GradeConfigRepository) FindByID(ctx context.Context, courseSlug, id string) (*models.GradebookConfiguration, error) {
	query := `SELECT ` + gradeConfigColumns + ` FROM grade_configs WHERE course_slug = $1 AND id = $2`
	var config models.GradebookConfiguration
	if err := r.db.GetContext(ctx, &config, query, courseSlug, id); err != nil {
		return nil, err
	}
	criteria, err := r.loadCriteria(ctx, id)
	if err != nil {
		return nil, err
	}
	config.Criteria = criteria[id]
	return &config, nil
}

// Create inserts a configuration at version 1 with its criteria.
func (r *GradeConfigRepository) Create(ctx context.Context, config *models.GradebookConfiguration) error {
	if config.ID == "" {
		config.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	config.CreatedAt = now
	config.UpdatedAt = now
	config.Version = 1

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const insertConfig = `INSERT INTO grade_configs (id, course_slug, name, scoring_range_max, passing_threshold_percent, valid_from, valid_to, version, created_at, updated_at)
        VALUES (:id, :course_slug, :name, :scoring_range_max, :passing_threshold_percent, :valid_from, :valid_to, :version, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertConfig, config); err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("insert grade config: %w", err)
	}
	if err := r.replaceCriteriaTx(ctx, tx, config.ID, config.Criteria); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grade config: %w", err)
	}
	return nil
}

// Update rewrites the editable fields and criteria of config, bumping its
// version. Rescored grade rows are written in the same transaction so stored
// score vectors never disagree with the rubric. It returns sql.ErrNoRows when
// the configuration does not exist.
func (r *GradeConfigRepository) Update(ctx context.Context, config *models.GradebookConfiguration, rescored []models.GradeRecord) error {
	config.UpdatedAt = time.Now().UTC()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	const updateQuery = `UPDATE grade_configs SET name = :name, scoring_range_max = :scoring_range_max,
        passing_threshold_percent = :passing_threshold_percent, valid_from = :valid_from, valid_to = :valid_to,
        version = version + 1, updated_at = :updated_at
        WHERE id = :id AND course_slug = :course_slug`
	result, err := tx.NamedExecContext(ctx, updateQuery, config)
	if err != nil {
		tx.Rollback() //nolint:errcheck
		return fmt.Errorf("update grade config: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		tx.Rollback() //nolint:errcheck
		return sql.ErrNoRows
	}
	if err := r.replaceCriteriaTx(ctx, tx, config.ID, config.Criteria); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	const rescoreQuery = `UPDATE grade_scores SET raw_scores = :raw_scores, aggregated_percent = :aggregated_percent,
        remark = :remark, updated_by = :updated_by, updated_at = :updated_at WHERE id = :id`
	for i := range rescored {
		rescored[i].UpdatedAt = config.UpdatedAt
		if _, err := tx.NamedExecContext(ctx, rescoreQuery, rescored[i]); err != nil {
			tx.Rollback() //nolint:errcheck
			return fmt.Errorf("rescore grade %s: %w", rescored[i].ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit grade config: %w", err)
	}
	config.Version++
	return nil
}

func (r *GradeConfigRepository) replaceCriteriaTx(ctx context.Context, tx *sqlx.Tx, configID string, criteria []models.RubricCriterion) error {
	if _, err := tx.ExecContext(ctx, "DELETE FROM grade_config_criteria WHERE grade_config_id = $1", configID); err != nil {
		return fmt.Errorf("clear grade config criteria: %w", err)
	}
	const insertCriterion = `INSERT INTO grade_config_criteria (id, grade_config_id, position, name, weight_percent)
        VALUES (:id, :grade_config_id, :position, :name, :weight_percent)`
	for i := range criteria {
		if criteria[i].ID == "" {
			criteria[i].ID = uuid.NewString()
		}
		criteria[i].GradeConfigID = configID
		criteria[i].Position = i
		if _, err := tx.NamedExecContext(ctx, insertCriterion, criteria[i]); err != nil {
			return fmt.Errorf("insert grade config criterion: %w", err)
		}
	}
	return nil
}

func (r *GradeConfigRepository) loadCriteria(ctx context.Context, configIDs ...string) (map[string][]models.RubricCriterion, error) {
	query, args, err := sqlx.In(`SELECT id, grade_config_id, position, name, weight_percent
        FROM grade_config_criteria WHERE grade_config_id IN (?) ORDER BY grade_config_id, position`, configIDs)
	if err != nil {
		return nil, fmt.Errorf("build criteria query: %w", err)
	}
	var rows []models.RubricCriterion
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load grade config criteria: %w", err)
	}
	out := make(map[string][]models.RubricCriterion, len(configIDs))
	for _, row := range rows {
		out[row.GradeConfigID] = append(out[row.GradeConfigID], row)
	}
	return out, nil
}
