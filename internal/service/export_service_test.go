package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-gradebook-api/internal/dto"
	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

func sampleSheet() (*models.GradeSheet, *models.GradebookConfiguration) {
	cfg := rubricConfig("cfg-1", 60, 40)
	sheet := &models.GradeSheet{
		CourseSlug:      "math-7a",
		Date:            "2024-03-04",
		ConfigurationID: "cfg-1",
		Scores: []models.StudentScore{
			{StudentID: "s1", StudentName: "Ana", RawScores: []int{4, 4}, AggregatedPercent: 80, Remark: models.RemarkPassed},
			{StudentID: "s2", StudentName: "Budi", RawScores: []int{3, 0}, AggregatedPercent: 36, Remark: models.RemarkIncomplete},
		},
	}
	return sheet, cfg
}

type stubSheetReader struct {
	err error
}

func (s stubSheetReader) Sheet(ctx context.Context, courseSlug string, query dto.GradeSheetQuery) (*models.GradeSheet, *models.GradebookConfiguration, error) {
	if s.err != nil {
		return nil, nil, s.err
	}
	sheet, cfg := sampleSheet()
	return sheet, cfg, nil
}

func TestGradeExportServiceBuild(t *testing.T) {
	sheet, cfg := sampleSheet()
	data := NewGradeExportService(nil, nil).Build(cfg, sheet)

	assert.Equal(t, []string{"Student ID", "Student", "Part A (60%)", "Part B (40%)", "Aggregate %", "Remark"}, data.Headers)
	assert.Equal(t, []string{"s1", "Ana", "4", "4", "80.00", "PASSED"}, data.Row(0))
	assert.Equal(t, []string{"s2", "Budi", "3", "", "36.00", "INCOMPLETE"}, data.Row(1))
	assert.Equal(t, "Grades MATH-7A", data.Title)
	assert.Equal(t, [2]string{"Configuration", "Rubric cfg-1 (v1)"}, data.Meta[1])
}

func TestGradeExportServiceExportFormats(t *testing.T) {
	svc := NewGradeExportService(stubSheetReader{}, nil)
	query := dto.ExportQuery{GradeSheetQuery: dto.GradeSheetQuery{Date: "2024-03-04", ConfigID: "cfg-1"}}

	file, err := svc.Export(context.Background(), "math-7a", query)
	require.NoError(t, err)
	assert.Equal(t, "grades-math-7a-2024-03-04.xlsx", file.Filename)
	assert.True(t, bytes.HasPrefix(file.Content, []byte("PK")))

	query.Format = "csv"
	file, err = svc.Export(context.Background(), "math-7a", query)
	require.NoError(t, err)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Contains(t, string(file.Content), "s1,Ana,4,4,80.00,PASSED")

	query.Format = "pdf"
	file, err = svc.Export(context.Background(), "math-7a", query)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(file.Content, []byte("%PDF")))
}

func TestGradeExportServiceErrors(t *testing.T) {
	svc := NewGradeExportService(stubSheetReader{}, nil)
	_, err := svc.Export(context.Background(), "math-7a", dto.ExportQuery{Format: "docx"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	svc = NewGradeExportService(stubSheetReader{err: appErrors.Clone(appErrors.ErrNotFound, "missing")}, nil)
	_, err = svc.Export(context.Background(), "math-7a", dto.ExportQuery{})
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}
