package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

func newRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	return sqlxDB, mock, func() {
		require.NoError(t, mock.ExpectationsWereMet())
		sqlxDB.Close()
	}
}

var configColumns = []string{"id", "course_slug", "name", "scoring_range_max", "passing_threshold_percent", "valid_from", "valid_to", "version", "created_at", "updated_at"}

func TestGradeConfigRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeConfigRepository(db)

	from := time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 20, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	mock.ExpectQuery("SELECT id, course_slug, name").
		WithArgs("math-7a").
		WillReturnRows(sqlmock.NewRows(configColumns).
			AddRow("cfg-1", "math-7a", "Term 1", 5, 75, from, to, 1, now, now).
			AddRow("cfg-2", "math-7a", "Term 2", 10, 60, from, to, 3, now, now))
	mock.ExpectQuery("FROM grade_config_criteria WHERE grade_config_id IN").
		WithArgs("cfg-1", "cfg-2").
		WillReturnRows(sqlmock.NewRows([]string{"id", "grade_config_id", "position", "name", "weight_percent"}).
			AddRow("c1", "cfg-1", 0, "Quiz", 60).
			AddRow("c2", "cfg-1", 1, "Lab", 40).
			AddRow("c3", "cfg-2", 0, "Exam", 100))

	configs, err := repo.List(context.Background(), "math-7a")
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Len(t, configs[0].Criteria, 2)
	assert.Equal(t, "Lab", configs[0].Criteria[1].Name)
	assert.Equal(t, 3, configs[1].Version)
	assert.Equal(t, 100, configs[1].WeightTotal())
}

func TestGradeConfigRepositoryListEmptySkipsCriteria(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeConfigRepository(db)

	mock.ExpectQuery("SELECT id, course_slug, name").
		WithArgs("math-7a").
		WillReturnRows(sqlmock.NewRows(configColumns))

	configs, err := repo.List(context.Background(), "math-7a")
	require.NoError(t, err)
	assert.Empty(t, configs)
}

func TestGradeConfigRepositoryFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeConfigRepository(db)

	mock.ExpectQuery("FROM grade_configs WHERE course_slug").
		WithArgs("math-7a", "missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "math-7a", "missing")
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestGradeConfigRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeConfigRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO grade_configs").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM grade_config_criteria").WithArgs(sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO grade_config_criteria").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 0, "Quiz", 60).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO grade_config_criteria").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), 1, "Lab", 40).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	cfg := &models.GradebookConfiguration{
		CourseSlug: "math-7a", Name: "Term 1", ScoringRangeMax: 5, PassingThresholdPercent: 75,
		Criteria: []models.RubricCriterion{{Name: "Quiz", WeightPercent: 60, Position: 4}, {Name: "Lab", WeightPercent: 40}},
	}
	require.NoError(t, repo.Create(context.Background(), cfg))
	assert.NotEmpty(t, cfg.ID)
	assert.Equal(t, 1, cfg.Version)
	assert.Equal(t, cfg.ID, cfg.Criteria[1].GradeConfigID)
	assert.Equal(t, 0, cfg.Criteria[0].Position)
}

func TestGradeConfigRepositoryCreateRollsBack(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeConfigRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO grade_configs").WillReturnError(errors.New("duplicate key"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), &models.GradebookConfiguration{CourseSlug: "math-7a", Name: "Term 1"})
	assert.Error(t, err)
}

func TestGradeConfigRepositoryUpdateWithRescoredGrades(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeConfigRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE grade_configs SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM grade_config_criteria").WithArgs("cfg-1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO grade_config_criteria").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO grade_config_criteria").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE grade_scores SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	cfg := &models.GradebookConfiguration{
		ID: "cfg-1", CourseSlug: "math-7a", Name: "Term 1", Version: 2,
		Criteria: []models.RubricCriterion{{Name: "Quiz", WeightPercent: 60}, {Name: "Lab", WeightPercent: 40}},
	}
	rescored := []models.GradeRecord{{ID: "g1", RawScores: pq.Int64Array{5, 4}, AggregatedPercent: 92, Remark: models.RemarkPassed}}
	require.NoError(t, repo.Update(context.Background(), cfg, rescored))
	assert.Equal(t, 3, cfg.Version)
	assert.Equal(t, cfg.UpdatedAt, rescored[0].UpdatedAt)
}

func TestGradeConfigRepositoryUpdateMissing(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewGradeConfigRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE grade_configs SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Update(context.Background(), &models.GradebookConfiguration{ID: "nope", CourseSlug: "math-7a"}, nil)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}
