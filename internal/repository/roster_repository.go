package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
)

// RosterRepository reads course enrolment.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository creates a roster repository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

// ListByCourse returns the students of a course ordered by name.
func (r *RosterRepository) ListByCourse(ctx context.Context, courseSlug string) ([]models.CourseStudent, error) {
	const query = `SELECT course_slug, student_id, full_name FROM course_students WHERE course_slug = $1 ORDER BY full_name, student_id`
	var students []models.CourseStudent
	if err := r.db.SelectContext(ctx, &students, query, courseSlug); err != nil {
		return nil, fmt.Errorf("list course students: %w", err)
	}
	return students, nil
}
