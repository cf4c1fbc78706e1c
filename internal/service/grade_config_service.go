package service

import (
	"context"
	"database/sql"
	"errors"
	"slices"
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

type gradeConfigRepository interface {
	List(ctx context.Context, courseSlug string) ([]models.GradebookConfiguration, error)
	FindByID(ctx context.Context, courseSlug, id string) (*models.GradebookConfiguration, error)
	Create(ctx context.Context, config *models.GradebookConfiguration) error
	Update(ctx context.Context, config *models.GradebookConfiguration, rescored []models.GradeRecord) error
}

type gradeRecordLister interface {
	ListByConfig(ctx context.Context, configID string) ([]models.GradeRecord, error)
}

// GradeConfigOptions tunes configuration validation.
type GradeConfigOptions struct {
	NameMaxLength int
	Historical    bool
	CacheTTL      time.Duration
}

// GradeConfigService manages gradebook configurations of a course.
type GradeConfigService struct {
	repo      gradeConfigRepository
	grades    gradeRecordLister
	cache     *CacheService
	notifier  notifier
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	opts      GradeConfigOptions
	now       func() time.Time
}

// NewGradeConfigService constructs the service. cache, publisher and metrics may be nil.
func NewGradeConfigService(repo gradeConfigRepository, grades gradeRecordLister, cache *CacheService, publisher EventPublisher, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, opts GradeConfigOptions) *GradeConfigService {
	if validate == nil {
		validate = gradebook.NewValidator()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeConfigService{
		repo:      repo,
		grades:    grades,
		cache:     cache,
		notifier:  notifier{publisher: publisher, metrics: metrics, logger: logger},
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		opts:      opts,
		now:       time.Now,
	}
}

func configListCacheKey(courseSlug string) string {
	return "gradebook:configs:" + courseSlug
}

// List returns the configurations of a course and whether they came from cache.
func (s *GradeConfigService) List(ctx context.Context, courseSlug string) ([]models.GradebookConfiguration, bool, error) {
	var cached []models.GradebookConfiguration
	if s.cache.Get(ctx, configListCacheKey(courseSlug), &cached) {
		return cached, true, nil
	}
	configs, err := s.repo.List(ctx, courseSlug)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list gradebook configurations")
	}
	if configs == nil {
		configs = []models.GradebookConfiguration{}
	}
	s.cache.Set(ctx, configListCacheKey(courseSlug), configs, s.opts.CacheTTL)
	return configs, false, nil
}

// Get returns one configuration of a course.
func (s *GradeConfigService) Get(ctx context.Context, courseSlug, id string) (*models.GradebookConfiguration, error) {
	config, err := s.repo.FindByID(ctx, courseSlug, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "gradebook configuration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load gradebook configuration")
	}
	return config, nil
}

// Create validates and stores a new configuration at version 1.
func (s *GradeConfigService) Create(ctx context.Context, courseSlug string, req dto.CreateGradeConfigRequest, actor string) (*models.GradebookConfiguration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid gradebook configuration payload")
	}
	from, err := dto.ParseDate(req.ValidFrom)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid valid_from")
	}
	to, err := dto.ParseDate(req.ValidTo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid valid_to")
	}
	config := &models.GradebookConfiguration{
		CourseSlug:              courseSlug,
		Name:                    req.Name,
		ScoringRangeMax:         req.ScoringRangeMax,
		PassingThresholdPercent: req.PassingThresholdPercent,
		ValidFrom:               from,
		ValidTo:                 to,
		Criteria:                dto.Criteria(req.Criteria),
	}
	if err := s.validate(ctx, *config, req.NameMaxLength); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, config); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create gradebook configuration")
	}
	s.cache.Invalidate(ctx, configListCacheKey(courseSlug))
	s.metrics.RecordConfigWrite("create")
	s.notifier.publish(ctx, events.TopicConfigCreated, courseSlug, actor, config)
	s.logger.Info("gradebook configuration created",
		zap.String("course", courseSlug),
		zap.String("id", config.ID),
		zap.String("actor", actor),
	)
	return config, nil
}

// Update edits a configuration in place. Changing criteria, scale or threshold
// of a configuration with recorded grades requires confirm; stored score
// vectors are then refitted and re-aggregated in the same transaction.
func (s *GradeConfigService) Update(ctx context.Context, courseSlug, id string, req dto.UpdateGradeConfigRequest, confirm bool, actor string) (*models.GradebookConfiguration, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid gradebook configuration payload")
	}
	existing, err := s.Get(ctx, courseSlug, id)
	if err != nil {
		return nil, err
	}
	updated, err := applyUpdate(*existing.Clone(), req)
	if err != nil {
		return nil, err
	}
	if err := s.validate(ctx, updated, 0); err != nil {
		return nil, err
	}

	var rescored []models.GradeRecord
	if gradebook.Retroactive(*existing, updated) {
		records, err := s.grades.ListByConfig(ctx, id)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load recorded grades")
		}
		if hasRecordedScores(records) && !confirm {
			return nil, appErrors.WithDetails(appErrors.ErrConflict, "grades exist under this configuration; confirmation required",
				map[string]int{"grades": len(records)})
		}
		rescored = rescore(records, &updated, actor)
	}

	if err := s.repo.Update(ctx, &updated, rescored); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "gradebook configuration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update gradebook configuration")
	}
	s.cache.Invalidate(ctx, configListCacheKey(courseSlug))
	s.metrics.RecordConfigWrite("update")
	s.notifier.publish(ctx, events.TopicConfigUpdated, courseSlug, actor, map[string]interface{}{
		"configuration": updated,
		"rescored":      len(rescored),
	})
	s.logger.Info("gradebook configuration updated",
		zap.String("course", courseSlug),
		zap.String("id", id),
		zap.Int("version", updated.Version),
		zap.Int("rescored", len(rescored)),
		zap.String("actor", actor),
	)
	return &updated, nil
}

func (s *GradeConfigService) validate(ctx context.Context, config models.GradebookConfiguration, nameMaxLength int) error {
	if nameMaxLength <= 0 {
		nameMaxLength = s.opts.NameMaxLength
	}
	siblings, err := s.repo.List(ctx, config.CourseSlug)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate gradebook configuration")
	}
	result := gradebook.Validate(config, gradebook.ValidateOptions{
		NameMaxLength: nameMaxLength,
		Siblings:      siblings,
		Historical:    s.opts.Historical,
		Now:           s.now(),
	})
	return result.Err()
}

func applyUpdate(config models.GradebookConfiguration, req dto.UpdateGradeConfigRequest) (models.GradebookConfiguration, error) {
	if req.Name != nil {
		config.Name = *req.Name
	}
	if req.Criteria != nil {
		config.Criteria = dto.Criteria(req.Criteria)
	}
	if req.ScoringRangeMax != nil {
		config.ScoringRangeMax = *req.ScoringRangeMax
	}
	if req.PassingThresholdPercent != nil {
		config.PassingThresholdPercent = *req.PassingThresholdPercent
	}
	if req.ValidFrom != nil {
		from, err := dto.ParseDate(*req.ValidFrom)
		if err != nil {
			return config, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid valid_from")
		}
		config.ValidFrom = from
	}
	if req.ValidTo != nil {
		to, err := dto.ParseDate(*req.ValidTo)
		if err != nil {
			return config, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid valid_to")
		}
		config.ValidTo = to
	}
	return config, nil
}

func hasRecordedScores(records []models.GradeRecord) bool {
	for _, record := range records {
		for _, v := range record.RawScores {
			if v != 0 {
				return true
			}
		}
	}
	return false
}

// rescore refits records to config and returns those whose stored values change.
func rescore(records []models.GradeRecord, config *models.GradebookConfiguration, actor string) []models.GradeRecord {
	var out []models.GradeRecord
	for _, record := range records {
		score := gradebook.Normalize(models.StudentScore{StudentID: record.StudentID, RawScores: record.Ints()}, config)
		raw := make(pq.Int64Array, len(score.RawScores))
		for i, v := range score.RawScores {
			raw[i] = int64(v)
		}
		if slices.Equal(raw, record.RawScores) && score.AggregatedPercent == record.AggregatedPercent && score.Remark == record.Remark {
			continue
		}
		record.RawScores = raw
		record.AggregatedPercent = score.AggregatedPercent
		record.Remark = score.Remark
		if actor != "" {
			record.UpdatedBy = &actor
		}
		out = append(out, record)
	}
	return out
}
