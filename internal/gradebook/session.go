package gradebook

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

// SessionState is the lifecycle state of a GradeSession.
type SessionState string

const (
	StateUninitialized SessionState = "UNINITIALIZED"
	StateLoading       SessionState = "LOADING"
	StateReady         SessionState = "READY"
	StateSaving        SessionState = "SAVING"
)

type scoreSet map[string]models.StudentScore

func (s scoreSet) clone() scoreSet {
	if s == nil {
		return nil
	}
	out := make(scoreSet, len(s))
	for id, score := range s {
		out[id] = score.Clone()
	}
	return out
}

// GradeSession is the working set of student scores for one course, date and
// configuration. It is meant to be owned by a single caller; the mutex only
// makes completions of in-flight persistence calls atomic.
type GradeSession struct {
	mu          sync.Mutex
	courseSlug  string
	persistence GradePersistence
	logger      *zap.Logger

	state  SessionState
	epoch  uint64
	date   time.Time
	config *models.GradebookConfiguration

	order  []string
	scores scoreSet
	saved  scoreSet
	// edited tracks unsaved SetScore edits, as opposed to changes made by Reset.
	edited bool

	undo       scoreSet
	undoEdited bool
}

// NewGradeSession builds an uninitialised session for courseSlug.
func NewGradeSession(courseSlug string, persistence GradePersistence, logger *zap.Logger) *GradeSession {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeSession{
		courseSlug:  courseSlug,
		persistence: persistence,
		logger:      logger,
		state:       StateUninitialized,
	}
}

// Load (re)initialises the session for date and cfg, discarding unsaved edits.
// A nil cfg leaves the session uninitialised. If another Load starts before the
// fetch completes, this call's result is dropped with STALE_OPERATION.
func (s *GradeSession) Load(ctx context.Context, date time.Time, cfg *models.GradebookConfiguration) error {
	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	if s.edited {
		s.logger.Info("discarding unsaved grade edits", zap.String("course", s.courseSlug), zap.Time("date", s.date))
	}
	s.resetLocked()
	s.date = DateOnly(date)
	s.config = cfg.Clone()
	if cfg == nil {
		s.state = StateUninitialized
		s.mu.Unlock()
		return nil
	}
	s.state = StateLoading
	configID := cfg.ID
	s.mu.Unlock()

	rows, err := s.persistence.LoadGrades(ctx, s.courseSlug, s.date, configID)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return appErrors.Clone(appErrors.ErrStaleOperation, "grade sheet load superseded")
	}
	if err != nil {
		s.state = StateUninitialized
		return persistenceError(err, "failed to load grades")
	}
	s.scores = make(scoreSet, len(rows))
	s.order = make([]string, 0, len(rows))
	for _, row := range rows {
		if _, dup := s.scores[row.StudentID]; dup {
			continue
		}
		s.order = append(s.order, row.StudentID)
		s.scores[row.StudentID] = Normalize(row.Clone(), s.config)
	}
	s.saved = s.scores.clone()
	s.state = StateReady
	s.logger.Debug("grade session ready",
		zap.String("course", s.courseSlug),
		zap.String("configuration_id", configID),
		zap.Int("students", len(s.order)),
	)
	return nil
}

// SetScore sets criterion index of a student to value; 0 unsets it. Aggregate
// and remark are recomputed before returning.
func (s *GradeSession) SetScore(studentID string, index, value int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editableLocked(); err != nil {
		return err
	}
	score, ok := s.scores[studentID]
	if !ok {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s not in grade sheet", studentID))
	}
	if index < 0 || index >= len(s.config.Criteria) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("criterion index %d out of range", index))
	}
	if value < 0 || value > s.config.ScoringRangeMax {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("score must be between 0 and %d", s.config.ScoringRangeMax))
	}
	score = score.Clone()
	score.RawScores[index] = value
	if err := Recompute(&score, s.config); err != nil {
		return err
	}
	s.scores[studentID] = score
	s.edited = true
	return nil
}

// Save persists the whole score batch. The saved snapshot only moves once the
// backing store confirms; on failure the session stays READY and dirty.
func (s *GradeSession) Save(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateSaving:
		s.mu.Unlock()
		return appErrors.Clone(appErrors.ErrAlreadyInProgress, "grades are already being saved")
	case StateReady:
	default:
		s.mu.Unlock()
		return appErrors.Clone(appErrors.ErrConflict, "grade session not ready")
	}
	s.state = StateSaving
	epoch := s.epoch
	date := s.date
	configID := s.config.ID
	batch := s.orderedLocked(s.scores)
	s.mu.Unlock()

	err := s.persistence.SaveGrades(ctx, s.courseSlug, date, configID, batch)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return appErrors.Clone(appErrors.ErrStaleOperation, "grade sheet save superseded")
	}
	s.state = StateReady
	if err != nil {
		s.logger.Warn("grade save failed", zap.String("course", s.courseSlug), zap.Error(err))
		return persistenceError(err, "failed to save grades")
	}
	saved := make(scoreSet, len(batch))
	for _, score := range batch {
		saved[score.StudentID] = score
	}
	s.saved = saved
	s.undo = nil
	s.edited = s.dirtyLocked()
	return nil
}

// Revert restores the last saved snapshot.
func (s *GradeSession) Revert() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return appErrors.Clone(appErrors.ErrConflict, "grade session not ready")
	}
	s.scores = s.saved.clone()
	s.edited = false
	s.undo = nil
	return nil
}

// Reset clears every raw score, keeping the previous scores for UndoReset. It
// is refused while unsaved edits exist unless force is set.
func (s *GradeSession) Reset(force bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return appErrors.Clone(appErrors.ErrConflict, "grade session not ready")
	}
	if s.edited && !force {
		return appErrors.Clone(appErrors.ErrConflict, "unsaved grade edits would be discarded")
	}
	s.undo = s.scores.clone()
	s.undoEdited = s.edited
	cleared := make(scoreSet, len(s.scores))
	for id, score := range s.scores {
		score = score.Clone()
		score.RawScores = make([]int, len(s.config.Criteria))
		_ = Recompute(&score, s.config)
		cleared[id] = score
	}
	s.scores = cleared
	s.edited = false
	return nil
}

// UndoReset restores the scores captured by the last Reset.
func (s *GradeSession) UndoReset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateReady {
		return appErrors.Clone(appErrors.ErrConflict, "grade session not ready")
	}
	if s.undo == nil {
		return appErrors.Clone(appErrors.ErrConflict, "nothing to undo")
	}
	s.scores = s.undo
	s.edited = s.undoEdited
	s.undo = nil
	return nil
}

// Reshape adapts every score vector to an edited version of the active
// configuration. It reports whether any stored score was dropped. While a
// Load is in flight the new shape is applied when its rows arrive.
func (s *GradeSession) Reshape(cfg *models.GradebookConfiguration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil || cfg == nil || s.config.ID != cfg.ID {
		return false, appErrors.Clone(appErrors.ErrConflict, "configuration is not active in this session")
	}
	s.config = cfg.Clone()
	dropped := false
	for id, score := range s.scores {
		before := score.RawScores
		score = Normalize(score.Clone(), s.config)
		for i, v := range before {
			if v != 0 && (i >= len(score.RawScores) || score.RawScores[i] != v) {
				dropped = true
			}
		}
		s.scores[id] = score
	}
	s.undo = nil
	return dropped, nil
}

// Dirty reports whether scores differ from the last saved snapshot.
func (s *GradeSession) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirtyLocked()
}

// HasGrades reports whether any student has a recorded score.
func (s *GradeSession) HasGrades() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, set := range []scoreSet{s.scores, s.saved} {
		for _, score := range set {
			for _, v := range score.RawScores {
				if v != 0 {
					return true
				}
			}
		}
	}
	return false
}

// CanUndo reports whether a reset can be undone.
func (s *GradeSession) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.undo != nil
}

// Scores returns a copy of the scores in roster order.
func (s *GradeSession) Scores() []models.StudentScore {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderedLocked(s.scores)
}

// Score returns a copy of one student's score.
func (s *GradeSession) Score(studentID string) (models.StudentScore, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score, ok := s.scores[studentID]
	if !ok {
		return models.StudentScore{}, false
	}
	return score.Clone(), true
}

// State returns the current lifecycle state.
func (s *GradeSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Epoch identifies the current load generation.
func (s *GradeSession) Epoch() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Date returns the grade sheet date; zero before the first Load.
func (s *GradeSession) Date() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.date
}

// Configuration returns a copy of the active configuration, or nil.
func (s *GradeSession) Configuration() *models.GradebookConfiguration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config.Clone()
}

// binding returns the lifecycle state and the id of the configuration the
// session is bound to, read together.
func (s *GradeSession) binding() (SessionState, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.config == nil {
		return s.state, ""
	}
	return s.state, s.config.ID
}

// CourseSlug returns the course the session belongs to.
func (s *GradeSession) CourseSlug() string {
	return s.courseSlug
}

func (s *GradeSession) editableLocked() error {
	switch s.state {
	case StateReady, StateSaving:
		return nil
	default:
		return appErrors.Clone(appErrors.ErrConflict, "grade session not ready")
	}
}

func (s *GradeSession) resetLocked() {
	s.order = nil
	s.scores = nil
	s.saved = nil
	s.undo = nil
	s.edited = false
	s.undoEdited = false
}

func (s *GradeSession) orderedLocked(set scoreSet) []models.StudentScore {
	out := make([]models.StudentScore, 0, len(s.order))
	for _, id := range s.order {
		if score, ok := set[id]; ok {
			out = append(out, score.Clone())
		}
	}
	return out
}

func (s *GradeSession) dirtyLocked() bool {
	if len(s.scores) != len(s.saved) {
		return true
	}
	for id, score := range s.scores {
		saved, ok := s.saved[id]
		if !ok || saved.AggregatedPercent != score.AggregatedPercent || !slices.Equal(saved.RawScores, score.RawScores) {
			return true
		}
	}
	return false
}
