package gradebook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

// StoreOptions tunes validation performed by the store.
type StoreOptions struct {
	NameMaxLength int
	Historical    bool
	Now           func() time.Time
	Logger        *zap.Logger
}

// ConfigurationPatch lists the editable fields of a configuration; nil fields
// are left unchanged. Criteria replaces the whole rubric and must already be
// rebalanced to 100 by the caller.
type ConfigurationPatch struct {
	Name                    *string
	Criteria                []models.RubricCriterion
	ScoringRangeMax         *int
	PassingThresholdPercent *int
	ValidFrom               *time.Time
	ValidTo                 *time.Time
}

// EditOptions carries the caller's confirmation for retroactive edits.
type EditOptions struct {
	Confirm bool
}

// ConfigurationStore tracks the configurations of one course and the current
// selection, keeping a bound GradeSession in step with it.
type ConfigurationStore struct {
	mu          sync.Mutex
	courseSlug  string
	persistence ConfigurationPersistence
	session     *GradeSession
	opts        StoreOptions

	all     []models.GradebookConfiguration
	current *models.GradebookConfiguration
	busy    bool
}

// NewConfigurationStore builds a store; session may be nil.
func NewConfigurationStore(courseSlug string, persistence ConfigurationPersistence, session *GradeSession, opts StoreOptions) *ConfigurationStore {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &ConfigurationStore{courseSlug: courseSlug, persistence: persistence, session: session, opts: opts}
}

// All returns copies of the known configurations.
func (s *ConfigurationStore) All() []models.GradebookConfiguration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.GradebookConfiguration, len(s.all))
	for i := range s.all {
		out[i] = *s.all[i].Clone()
	}
	return out
}

// Current returns the selected configuration, or nil when nothing is selected.
func (s *ConfigurationStore) Current() *models.GradebookConfiguration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Refresh reloads the configuration list. A current selection that no longer
// exists is cleared.
func (s *ConfigurationStore) Refresh(ctx context.Context) error {
	if err := s.begin(); err != nil {
		return err
	}
	list, err := s.persistence.ListConfigurations(ctx, s.courseSlug)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busy = false
	if err != nil {
		return persistenceError(err, "failed to list gradebook configurations")
	}
	s.all = list
	if s.current != nil {
		s.current = s.findLocked(s.current.ID).Clone()
	}
	return nil
}

// SelectExisting makes id current and re-initialises the bound session. A
// configuration whose weights do not sum to 100 cannot be activated.
func (s *ConfigurationStore) SelectExisting(ctx context.Context, id string) error {
	s.mu.Lock()
	found := s.findLocked(id)
	if found == nil {
		s.mu.Unlock()
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("gradebook configuration %s not found", id))
	}
	if msg := validateWeights(found.Criteria); msg != "" {
		s.mu.Unlock()
		return ValidationResult{Errors: FieldErrors{Weights: msg}}.Err()
	}
	s.current = found.Clone()
	s.mu.Unlock()
	return s.activate(ctx)
}

// CreateNew validates and persists draft, then makes the result current.
func (s *ConfigurationStore) CreateNew(ctx context.Context, draft models.GradebookConfiguration) (*models.GradebookConfiguration, error) {
	draft.ID = ""
	draft.CourseSlug = s.courseSlug
	if result := Validate(draft, s.validateOptions()); !result.OK {
		return nil, result.Err()
	}
	if err := s.begin(); err != nil {
		return nil, err
	}
	created, err := s.persistence.CreateConfiguration(ctx, s.courseSlug, draft)
	s.mu.Lock()
	s.busy = false
	if err != nil {
		s.mu.Unlock()
		return nil, persistenceError(err, "failed to create gradebook configuration")
	}
	s.all = append(s.all, *created.Clone())
	s.current = created.Clone()
	s.mu.Unlock()
	s.opts.Logger.Info("gradebook configuration created", zap.String("course", s.courseSlug), zap.String("id", created.ID))
	if err := s.activate(ctx); err != nil {
		return created, err
	}
	return created, nil
}

// EditInPlace applies patch to configuration id. Dropping criteria, or a
// retroactive edit of a configuration whose bound session already holds
// grades, requires opts.Confirm; dropped scores are then re-saved through the
// session. Editing the configuration of a session that is saving is refused.
func (s *ConfigurationStore) EditInPlace(ctx context.Context, id string, patch ConfigurationPatch, opts EditOptions) (*models.GradebookConfiguration, error) {
	s.mu.Lock()
	existing := s.findLocked(id).Clone()
	s.mu.Unlock()
	if existing == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("gradebook configuration %s not found", id))
	}
	merged := applyPatch(*existing, patch)
	if result := Validate(merged, s.validateOptions()); !result.OK {
		return nil, result.Err()
	}

	bound := false
	if s.session != nil {
		state, configID := s.session.binding()
		bound = configID == id && state != StateUninitialized
		if bound && state == StateSaving {
			return nil, appErrors.Clone(appErrors.ErrAlreadyInProgress, "grades are being saved under this configuration")
		}
	}
	shrinking := len(merged.Criteria) < len(existing.Criteria)
	if !opts.Confirm {
		if shrinking {
			return nil, appErrors.Clone(appErrors.ErrConflict, "removing criteria discards recorded scores; confirmation required")
		}
		if bound && Retroactive(*existing, merged) && s.session.HasGrades() {
			return nil, appErrors.Clone(appErrors.ErrConflict, "grades exist under this configuration; confirmation required")
		}
	}

	if err := s.begin(); err != nil {
		return nil, err
	}
	updated, err := s.persistence.UpdateConfiguration(ctx, s.courseSlug, merged, opts.Confirm)
	s.mu.Lock()
	s.busy = false
	if err != nil {
		s.mu.Unlock()
		return nil, persistenceError(err, "failed to update gradebook configuration")
	}
	for i := range s.all {
		if s.all[i].ID == id {
			s.all[i] = *updated.Clone()
		}
	}
	if s.current != nil && s.current.ID == id {
		s.current = updated.Clone()
	}
	s.mu.Unlock()

	if !bound {
		return updated, nil
	}
	dropped, err := s.session.Reshape(updated)
	if err != nil {
		return updated, err
	}
	if (shrinking || dropped) && s.session.State() == StateReady {
		if err := s.session.Save(ctx); err != nil {
			return updated, err
		}
	}
	return updated, nil
}

func (s *ConfigurationStore) activate(ctx context.Context) error {
	if s.session == nil {
		return nil
	}
	date := s.session.Date()
	if date.IsZero() {
		date = s.opts.Now()
	}
	return s.session.Load(ctx, date, s.Current())
}

func (s *ConfigurationStore) begin() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return appErrors.Clone(appErrors.ErrAlreadyInProgress, "a configuration operation is already in progress")
	}
	s.busy = true
	return nil
}

func (s *ConfigurationStore) findLocked(id string) *models.GradebookConfiguration {
	for i := range s.all {
		if s.all[i].ID == id {
			return &s.all[i]
		}
	}
	return nil
}

func (s *ConfigurationStore) validateOptions() ValidateOptions {
	return ValidateOptions{
		NameMaxLength: s.opts.NameMaxLength,
		Siblings:      s.All(),
		Historical:    s.opts.Historical,
		Now:           s.opts.Now(),
	}
}

func applyPatch(cfg models.GradebookConfiguration, patch ConfigurationPatch) models.GradebookConfiguration {
	if patch.Name != nil {
		cfg.Name = *patch.Name
	}
	if patch.Criteria != nil {
		cfg.Criteria = append([]models.RubricCriterion(nil), patch.Criteria...)
		for i := range cfg.Criteria {
			cfg.Criteria[i].Position = i
		}
	}
	if patch.ScoringRangeMax != nil {
		cfg.ScoringRangeMax = *patch.ScoringRangeMax
	}
	if patch.PassingThresholdPercent != nil {
		cfg.PassingThresholdPercent = *patch.PassingThresholdPercent
	}
	if patch.ValidFrom != nil {
		cfg.ValidFrom = *patch.ValidFrom
	}
	if patch.ValidTo != nil {
		cfg.ValidTo = *patch.ValidTo
	}
	return cfg
}
