package gradebook

import (
	"context"
	"errors"
	"time"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

// ConfigurationPersistence stores gradebook configurations of a course.
type ConfigurationPersistence interface {
	ListConfigurations(ctx context.Context, courseSlug string) ([]models.GradebookConfiguration, error)
	CreateConfiguration(ctx context.Context, courseSlug string, draft models.GradebookConfiguration) (*models.GradebookConfiguration, error)
	UpdateConfiguration(ctx context.Context, courseSlug string, cfg models.GradebookConfiguration, confirm bool) (*models.GradebookConfiguration, error)
}

// GradePersistence reads and writes the score batch of a grade sheet.
type GradePersistence interface {
	LoadGrades(ctx context.Context, courseSlug string, date time.Time, configID string) ([]models.StudentScore, error)
	SaveGrades(ctx context.Context, courseSlug string, date time.Time, configID string, scores []models.StudentScore) error
}

// persistenceError keeps typed client-facing errors and wraps anything else as PERSISTENCE_ERROR.
func persistenceError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) && appErr.Code != appErrors.ErrInternal.Code {
		return appErr
	}
	return appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, message)
}
