package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-gradebook-api/internal/dto"
	"github.com/noah-isme/sma-gradebook-api/internal/gradebook"
	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
	"github.com/noah-isme/sma-gradebook-api/pkg/events"
)

type gradeRepository interface {
	ListBySheet(ctx context.Context, courseSlug string, date time.Time, configID string) ([]models.GradeRecord, error)
	BulkUpsert(ctx context.Context, records []models.GradeRecord) error
}

type rosterReader interface {
	ListByCourse(ctx context.Context, courseSlug string) ([]models.CourseStudent, error)
}

type gradeConfigReader interface {
	Get(ctx context.Context, courseSlug, id string) (*models.GradebookConfiguration, error)
}

// GradeService reads and writes grade sheets. Aggregates and remarks are
// always recomputed from the raw scores and the configuration.
type GradeService struct {
	grades    gradeRepository
	roster    rosterReader
	configs   gradeConfigReader
	notifier  notifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewGradeService constructs the service. publisher and metrics may be nil.
func NewGradeService(grades gradeRepository, roster rosterReader, configs gradeConfigReader, publisher EventPublisher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *GradeService {
	if validate == nil {
		validate = gradebook.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeService{
		grades:    grades,
		roster:    roster,
		configs:   configs,
		notifier:  notifier{publisher: publisher, metrics: metrics, logger: logger},
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Sheet returns one row per enrolled student for the date and configuration.
// Students without a stored row get an unset score vector.
func (s *GradeService) Sheet(ctx context.Context, courseSlug string, query dto.GradeSheetQuery) (*models.GradeSheet, *models.GradebookConfiguration, error) {
	date, config, err := s.resolve(ctx, courseSlug, query)
	if err != nil {
		return nil, nil, err
	}
	students, err := s.roster.ListByCourse(ctx, courseSlug)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course roster")
	}
	records, err := s.grades.ListBySheet(ctx, courseSlug, date, config.ID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grades")
	}
	byStudent := make(map[string]models.GradeRecord, len(records))
	for _, record := range records {
		byStudent[record.StudentID] = record
	}

	sheet := &models.GradeSheet{
		CourseSlug:      courseSlug,
		Date:            date.Format(models.DateLayout),
		ConfigurationID: config.ID,
		Scores:          make([]models.StudentScore, 0, len(students)),
	}
	for _, student := range students {
		score := models.StudentScore{StudentID: student.StudentID, StudentName: student.FullName}
		if record, ok := byStudent[student.StudentID]; ok {
			score.RawScores = record.Ints()
		}
		sheet.Scores = append(sheet.Scores, gradebook.Normalize(score, config))
	}
	return sheet, config, nil
}

// Save writes the submitted score vectors in one transaction and returns the
// refreshed sheet.
func (s *GradeService) Save(ctx context.Context, courseSlug string, query dto.GradeSheetQuery, req dto.SaveGradesRequest, actor string) (*models.GradeSheet, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid grades payload")
	}
	date, config, err := s.resolve(ctx, courseSlug, query)
	if err != nil {
		return nil, err
	}
	students, err := s.roster.ListByCourse(ctx, courseSlug)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course roster")
	}
	enrolled := make(map[string]struct{}, len(students))
	for _, student := range students {
		enrolled[student.StudentID] = struct{}{}
	}

	records := make([]models.GradeRecord, 0, len(req.Scores))
	problems := map[string]string{}
	seen := make(map[string]struct{}, len(req.Scores))
	for _, entry := range req.Scores {
		if _, dup := seen[entry.StudentID]; dup {
			problems[entry.StudentID] = "duplicate student"
			continue
		}
		seen[entry.StudentID] = struct{}{}
		if _, ok := enrolled[entry.StudentID]; !ok {
			problems[entry.StudentID] = "student is not enrolled in this course"
			continue
		}
		score := models.StudentScore{StudentID: entry.StudentID, RawScores: entry.RawScores}
		if err := gradebook.Recompute(&score, config); err != nil {
			problems[entry.StudentID] = appErrors.FromError(err).Message
			continue
		}
		raw := make(pq.Int64Array, len(score.RawScores))
		for i, v := range score.RawScores {
			raw[i] = int64(v)
		}
		record := models.GradeRecord{
			CourseSlug:        courseSlug,
			GradeConfigID:     config.ID,
			StudentID:         entry.StudentID,
			GradeDate:         date,
			RawScores:         raw,
			AggregatedPercent: score.AggregatedPercent,
			Remark:            score.Remark,
		}
		if actor != "" {
			record.UpdatedBy = &actor
		}
		records = append(records, record)
	}
	if len(problems) > 0 {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, "invalid grade rows", problems)
	}

	err = s.grades.BulkUpsert(ctx, records)
	s.metrics.RecordGradeSave(len(records), err)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save grades")
	}
	s.notifier.publish(ctx, events.TopicGradesSaved, courseSlug, actor, map[string]interface{}{
		"date":             date.Format(models.DateLayout),
		"configuration_id": config.ID,
		"students":         len(records),
	})
	s.logger.Info("grades saved",
		zap.String("course", courseSlug),
		zap.String("date", date.Format(models.DateLayout)),
		zap.String("configuration_id", config.ID),
		zap.Int("students", len(records)),
		zap.String("actor", actor),
	)

	sheet, _, err := s.Sheet(ctx, courseSlug, query)
	return sheet, err
}

func (s *GradeService) resolve(ctx context.Context, courseSlug string, query dto.GradeSheetQuery) (time.Time, *models.GradebookConfiguration, error) {
	if err := s.validator.Struct(query); err != nil {
		return time.Time{}, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "date and criteriaId are required")
	}
	date, err := dto.ParseDate(query.Date)
	if err != nil {
		return time.Time{}, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid date %q", query.Date))
	}
	config, err := s.configs.Get(ctx, courseSlug, query.ConfigID)
	if err != nil {
		return time.Time{}, nil, err
	}
	return date, config, nil
}
