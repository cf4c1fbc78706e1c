package gradebook

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

type fakeGradeStore struct {
	mu       sync.Mutex
	rows     map[string][]models.StudentScore
	loadErr  error
	saveErr  error
	saves    int
	loadHook func()
	saveHook func()
}

func newFakeGradeStore() *fakeGradeStore {
	return &fakeGradeStore{rows: make(map[string][]models.StudentScore)}
}

func sheetKey(slug string, date time.Time, configID string) string {
	return fmt.Sprintf("%s|%s|%s", slug, date.Format(models.DateLayout), configID)
}

func (f *fakeGradeStore) seed(slug string, date time.Time, configID string, rows ...models.StudentScore) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[sheetKey(slug, date, configID)] = rows
}

func (f *fakeGradeStore) stored(slug string, date time.Time, configID string) []models.StudentScore {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[sheetKey(slug, date, configID)]
}

func (f *fakeGradeStore) LoadGrades(_ context.Context, slug string, date time.Time, configID string) ([]models.StudentScore, error) {
	if f.loadHook != nil {
		f.loadHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	rows := f.rows[sheetKey(slug, date, configID)]
	out := make([]models.StudentScore, len(rows))
	for i := range rows {
		out[i] = rows[i].Clone()
	}
	return out, nil
}

func (f *fakeGradeStore) SaveGrades(_ context.Context, slug string, date time.Time, configID string, scores []models.StudentScore) error {
	if f.saveHook != nil {
		f.saveHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	out := make([]models.StudentScore, len(scores))
	for i := range scores {
		out[i] = scores[i].Clone()
	}
	f.rows[sheetKey(slug, date, configID)] = out
	return nil
}

type fakeConfigStore struct {
	mu        sync.Mutex
	configs   []models.GradebookConfiguration
	nextID    int
	listErr   error
	createErr error
	updateErr error
	confirms  []bool
	listHook  func()
}

func (f *fakeConfigStore) ListConfigurations(_ context.Context, slug string) ([]models.GradebookConfiguration, error) {
	if f.listHook != nil {
		f.listHook()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []models.GradebookConfiguration
	for i := range f.configs {
		if f.configs[i].CourseSlug == slug {
			out = append(out, *f.configs[i].Clone())
		}
	}
	return out, nil
}

func (f *fakeConfigStore) CreateConfiguration(_ context.Context, slug string, draft models.GradebookConfiguration) (*models.GradebookConfiguration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.nextID++
	draft.ID = fmt.Sprintf("cfg-new-%d", f.nextID)
	draft.CourseSlug = slug
	draft.Version = 1
	f.configs = append(f.configs, *draft.Clone())
	return draft.Clone(), nil
}

func (f *fakeConfigStore) UpdateConfiguration(_ context.Context, slug string, cfg models.GradebookConfiguration, confirm bool) (*models.GradebookConfiguration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.confirms = append(f.confirms, confirm)
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	for i := range f.configs {
		if f.configs[i].ID == cfg.ID && f.configs[i].CourseSlug == slug {
			cfg.Version = f.configs[i].Version + 1
			f.configs[i] = *cfg.Clone()
			return cfg.Clone(), nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "gradebook configuration not found")
}
