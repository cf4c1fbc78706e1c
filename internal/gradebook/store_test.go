package gradebook

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

type storeFixture struct {
	configs *fakeConfigStore
	grades  *fakeGradeStore
	session *GradeSession
	store   *ConfigurationStore
}

func newStoreFixture(t *testing.T, configs ...*models.GradebookConfiguration) storeFixture {
	t.Helper()
	fx := storeFixture{configs: &fakeConfigStore{}, grades: newFakeGradeStore()}
	for _, cfg := range configs {
		fx.configs.configs = append(fx.configs.configs, *cfg.Clone())
	}
	fx.session = NewGradeSession("math-7a", fx.grades, nil)
	fx.store = NewConfigurationStore("math-7a", fx.configs, fx.session, StoreOptions{
		Now: func() time.Time { return sheetDate },
	})
	require.NoError(t, fx.store.Refresh(context.Background()))
	return fx
}

func TestConfigurationStoreStartsEmpty(t *testing.T) {
	fx := newStoreFixture(t)
	assert.Nil(t, fx.store.Current())
	assert.Empty(t, fx.store.All())
}

func TestConfigurationStoreSelectExisting(t *testing.T) {
	fx := newStoreFixture(t, rubric("cfg-1", 5, 75, 60, 40), rubric("cfg-2", 10, 60, 100))
	fx.grades.seed("math-7a", sheetDate, "cfg-2", roster(2, 7)...)

	err := fx.store.SelectExisting(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
	assert.Nil(t, fx.store.Current())

	require.NoError(t, fx.store.SelectExisting(context.Background(), "cfg-2"))
	assert.Equal(t, "cfg-2", fx.store.Current().ID)
	assert.Equal(t, StateReady, fx.session.State())
	assert.Equal(t, sheetDate, fx.session.Date())
	assert.Len(t, fx.session.Scores(), 2)
	score, _ := fx.session.Score("a-id")
	assert.Equal(t, 70.0, score.AggregatedPercent)
	assert.Equal(t, models.RemarkPassed, score.Remark)
}

func TestConfigurationStoreSelectKeepsSessionDate(t *testing.T) {
	fx := newStoreFixture(t, rubric("cfg-1", 5, 75, 60, 40), rubric("cfg-2", 10, 60, 100))
	other := sheetDate.AddDate(0, 0, -7)
	require.NoError(t, fx.session.Load(context.Background(), other, rubric("cfg-1", 5, 75, 60, 40)))

	require.NoError(t, fx.store.SelectExisting(context.Background(), "cfg-2"))
	assert.Equal(t, other, fx.session.Date())
}

func TestConfigurationStoreCreateNew(t *testing.T) {
	fx := newStoreFixture(t, rubric("cfg-1", 5, 75, 60, 40))
	draft := *rubric("", 5, 75, 60, 40)
	draft.Name = "Term 2 Rubric"

	created, err := fx.store.CreateNew(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, "cfg-new-1", created.ID)
	assert.Equal(t, "cfg-new-1", fx.store.Current().ID)
	assert.Len(t, fx.store.All(), 2)
	assert.Equal(t, StateReady, fx.session.State())
	assert.Equal(t, "cfg-new-1", fx.session.Configuration().ID)
}

func TestConfigurationStoreCreateNewRejectsInvalidDraft(t *testing.T) {
	fx := newStoreFixture(t, rubric("cfg-1", 5, 75, 60, 40))
	draft := *rubric("", 5, 75, 50, 30, 15)
	draft.Name = "rubric CFG-1"

	_, err := fx.store.CreateNew(context.Background(), draft)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	details, ok := appErrors.FromError(err).Details.(FieldErrors)
	require.True(t, ok)
	assert.NotEmpty(t, details.Name)
	assert.NotEmpty(t, details.Weights)
	assert.Len(t, fx.configs.configs, 1)
	assert.Nil(t, fx.store.Current())
}

func TestConfigurationStoreCreateNewPersistenceFailure(t *testing.T) {
	fx := newStoreFixture(t)
	fx.configs.createErr = errors.New("bad gateway")
	draft := *rubric("", 5, 75, 100)

	_, err := fx.store.CreateNew(context.Background(), draft)
	assert.True(t, errors.Is(err, appErrors.ErrPersistence))
	assert.Nil(t, fx.store.Current())

	fx.configs.createErr = nil
	_, err = fx.store.CreateNew(context.Background(), draft)
	assert.NoError(t, err)
}

func TestConfigurationStoreRejectsConcurrentOperations(t *testing.T) {
	fx := newStoreFixture(t, rubric("cfg-1", 5, 75, 60, 40))
	var nested error
	fx.configs.listHook = func() {
		fx.configs.listHook = nil
		nested = fx.store.Refresh(context.Background())
	}
	require.NoError(t, fx.store.Refresh(context.Background()))
	assert.True(t, errors.Is(nested, appErrors.ErrAlreadyInProgress))
}

func TestConfigurationStoreRefreshClearsRemovedSelection(t *testing.T) {
	fx := newStoreFixture(t, rubric("cfg-1", 5, 75, 60, 40))
	require.NoError(t, fx.store.SelectExisting(context.Background(), "cfg-1"))

	fx.configs.configs = nil
	require.NoError(t, fx.store.Refresh(context.Background()))
	assert.Nil(t, fx.store.Current())
}

func TestConfigurationStoreEditInPlaceWithoutGrades(t *testing.T) {
	fx := newStoreFixture(t, rubric("cfg-1", 5, 75, 60, 40))
	require.NoError(t, fx.store.SelectExisting(context.Background(), "cfg-1"))

	name := "Renamed Rubric"
	threshold := 80
	updated, err := fx.store.EditInPlace(context.Background(), "cfg-1", ConfigurationPatch{
		Name:                    &name,
		PassingThresholdPercent: &threshold,
	}, EditOptions{})
	require.NoError(t, err)
	assert.Equal(t, "cfg-1", updated.ID)
	assert.Equal(t, 2, updated.Version)
	assert.Equal(t, "Renamed Rubric", fx.store.Current().Name)
	assert.Equal(t, 80, fx.session.Configuration().PassingThresholdPercent)
	assert.Equal(t, []bool{false}, fx.configs.confirms)
}

func TestConfigurationStoreEditInPlaceNotFound(t *testing.T) {
	fx := newStoreFixture(t)
	_, err := fx.store.EditInPlace(context.Background(), "nope", ConfigurationPatch{}, EditOptions{})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestConfigurationStoreEditInPlaceRequiresConfirmWhenGradesExist(t *testing.T) {
	fx := newStoreFixture(t, rubric("cfg-1", 5, 75, 60, 40))
	fx.grades.seed("math-7a", sheetDate, "cfg-1", roster(1, 4, 4)...)
	require.NoError(t, fx.store.SelectExisting(context.Background(), "cfg-1"))

	threshold := 85
	patch := ConfigurationPatch{PassingThresholdPercent: &threshold}
	_, err := fx.store.EditInPlace(context.Background(), "cfg-1", patch, EditOptions{})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.Empty(t, fx.configs.confirms)

	_, err = fx.store.EditInPlace(context.Background(), "cfg-1", patch, EditOptions{Confirm: true})
	require.NoError(t, err)
	score, _ := fx.session.Score("a-id")
	assert.Equal(t, models.RemarkFailed, score.Remark)
	assert.Equal(t, 0, fx.grades.saves)
}

func TestConfigurationStoreEditInPlaceDroppingCriterionTruncatesAndSaves(t *testing.T) {
	fx := newStoreFixture(t, rubric("cfg-1", 5, 75, 40, 30, 30))
	fx.grades.seed("math-7a", sheetDate, "cfg-1", roster(2, 5, 4, 3)...)
	require.NoError(t, fx.store.SelectExisting(context.Background(), "cfg-1"))

	patch := ConfigurationPatch{Criteria: criteria(60, 40)}
	_, err := fx.store.EditInPlace(context.Background(), "cfg-1", patch, EditOptions{})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	updated, err := fx.store.EditInPlace(context.Background(), "cfg-1", patch, EditOptions{Confirm: true})
	require.NoError(t, err)
	assert.Len(t, updated.Criteria, 2)

	for _, score := range fx.session.Scores() {
		assert.Equal(t, []int{5, 4}, score.RawScores)
		assert.Equal(t, 92.0, score.AggregatedPercent)
	}
	assert.False(t, fx.session.Dirty())
	stored := fx.grades.stored("math-7a", sheetDate, "cfg-1")
	require.Len(t, stored, 2)
	assert.Equal(t, []int{5, 4}, stored[0].RawScores)
}

func TestConfigurationStoreEditInPlaceShrinkingInactiveConfigurationStillNeedsConfirm(t *testing.T) {
	fx := newStoreFixture(t, rubric("cfg-1", 5, 75, 40, 30, 30), rubric("cfg-2", 5, 75, 100))
	require.NoError(t, fx.store.SelectExisting(context.Background(), "cfg-2"))

	patch := ConfigurationPatch{Criteria: criteria(50, 50)}
	_, err := fx.store.EditInPlace(context.Background(), "cfg-1", patch, EditOptions{})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = fx.store.EditInPlace(context.Background(), "cfg-1", patch, EditOptions{Confirm: true})
	require.NoError(t, err)
	assert.Equal(t, "cfg-2", fx.session.Configuration().ID)
	assert.Equal(t, 0, fx.grades.saves)
}

func TestConfigurationStoreEditInPlaceValidatesMergedResult(t *testing.T) {
	fx := newStoreFixture(t, rubric("cfg-1", 5, 75, 60, 40), rubric("cfg-2", 5, 75, 100))

	patch := ConfigurationPatch{Criteria: criteria(50, 30, 15)}
	_, err := fx.store.EditInPlace(context.Background(), "cfg-1", patch, EditOptions{Confirm: true})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	name := "rubric cfg-2"
	_, err = fx.store.EditInPlace(context.Background(), "cfg-1", ConfigurationPatch{Name: &name}, EditOptions{})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	same := "Rubric cfg-1"
	_, err = fx.store.EditInPlace(context.Background(), "cfg-1", ConfigurationPatch{Name: &same}, EditOptions{})
	assert.NoError(t, err)
	assert.Equal(t, []bool{false}, fx.configs.confirms)
}

func TestConfigurationStoreSelectExistingRejectsUnbalancedWeights(t *testing.T) {
	fx := newStoreFixture(t, rubric("cfg-1", 5, 75, 50, 30, 15))

	err := fx.store.SelectExisting(context.Background(), "cfg-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
	details, ok := appErrors.FromError(err).Details.(FieldErrors)
	require.True(t, ok)
	assert.NotEmpty(t, details.Weights)
	assert.Nil(t, fx.store.Current())
	assert.Equal(t, StateUninitialized, fx.session.State())
}

func TestConfigurationStoreRenameWithGradesNeedsNoConfirm(t *testing.T) {
	fx := newStoreFixture(t, rubric("cfg-1", 5, 75, 60, 40))
	fx.grades.seed("math-7a", sheetDate, "cfg-1", roster(1, 4, 4)...)
	require.NoError(t, fx.store.SelectExisting(context.Background(), "cfg-1"))

	name := "Midterm Rubric"
	updated, err := fx.store.EditInPlace(context.Background(), "cfg-1", ConfigurationPatch{Name: &name}, EditOptions{})
	require.NoError(t, err)
	assert.Equal(t, "Midterm Rubric", updated.Name)
	assert.Equal(t, []bool{false}, fx.configs.confirms)
	score, _ := fx.session.Score("a-id")
	assert.Equal(t, []int{4, 4}, score.RawScores)
}

func TestConfigurationStoreDateRangeEditWithGradesNeedsConfirm(t *testing.T) {
	fx := newStoreFixture(t, rubric("cfg-1", 5, 75, 60, 40))
	fx.grades.seed("math-7a", sheetDate, "cfg-1", roster(1, 4, 4)...)
	require.NoError(t, fx.store.SelectExisting(context.Background(), "cfg-1"))

	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	patch := ConfigurationPatch{ValidFrom: &from}
	_, err := fx.store.EditInPlace(context.Background(), "cfg-1", patch, EditOptions{})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))
	assert.Empty(t, fx.configs.confirms)

	updated, err := fx.store.EditInPlace(context.Background(), "cfg-1", patch, EditOptions{Confirm: true})
	require.NoError(t, err)
	assert.Equal(t, from, updated.ValidFrom)
	assert.Equal(t, []bool{true}, fx.configs.confirms)
}

func TestConfigurationStoreEditInPlaceWhileSessionLoadingAppliesNewShape(t *testing.T) {
	fx := newStoreFixture(t, rubric("cfg-1", 5, 75, 40, 30, 30))
	fx.grades.seed("math-7a", sheetDate, "cfg-1", roster(2, 5, 4, 3)...)

	var editErr error
	fx.grades.loadHook = func() {
		fx.grades.loadHook = nil
		_, editErr = fx.store.EditInPlace(context.Background(), "cfg-1",
			ConfigurationPatch{Criteria: criteria(60, 40)}, EditOptions{Confirm: true})
	}
	require.NoError(t, fx.store.SelectExisting(context.Background(), "cfg-1"))
	require.NoError(t, editErr)

	assert.Equal(t, StateReady, fx.session.State())
	assert.Len(t, fx.store.Current().Criteria, 2)
	assert.Len(t, fx.session.Configuration().Criteria, 2)
	for _, score := range fx.session.Scores() {
		assert.Equal(t, []int{5, 4}, score.RawScores)
		assert.Equal(t, 92.0, score.AggregatedPercent)
	}
	assert.False(t, fx.session.Dirty())
	assert.Equal(t, 0, fx.grades.saves)
}

func TestConfigurationStoreEditInPlaceRefusedWhileSessionSaving(t *testing.T) {
	fx := newStoreFixture(t, rubric("cfg-1", 5, 75, 60, 40))
	fx.grades.seed("math-7a", sheetDate, "cfg-1", roster(1, 4, 4)...)
	require.NoError(t, fx.store.SelectExisting(context.Background(), "cfg-1"))
	require.NoError(t, fx.session.SetScore("a-id", 0, 5))

	var editErr error
	threshold := 90
	fx.grades.saveHook = func() {
		fx.grades.saveHook = nil
		_, editErr = fx.store.EditInPlace(context.Background(), "cfg-1",
			ConfigurationPatch{PassingThresholdPercent: &threshold}, EditOptions{Confirm: true})
	}
	require.NoError(t, fx.session.Save(context.Background()))

	assert.True(t, errors.Is(editErr, appErrors.ErrAlreadyInProgress))
	assert.Empty(t, fx.configs.confirms)
	assert.Equal(t, 75, fx.store.Current().PassingThresholdPercent)
	assert.Equal(t, 75, fx.session.Configuration().PassingThresholdPercent)
}
