package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-gradebook-api/internal/dto"
	"github.com/noah-isme/sma-gradebook-api/internal/models"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
	"github.com/noah-isme/sma-gradebook-api/pkg/export"
)

type gradeSheetReader interface {
	Sheet(ctx context.Context, courseSlug string, query dto.GradeSheetQuery) (*models.GradeSheet, *models.GradebookConfiguration, error)
}

// ExportFile is a rendered grade sheet ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}

// GradeExportService renders grade sheets as spreadsheets or documents.
type GradeExportService struct {
	sheets gradeSheetReader
	logger *zap.Logger
}

// NewGradeExportService constructs the export service.
func NewGradeExportService(sheets gradeSheetReader, logger *zap.Logger) *GradeExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GradeExportService{sheets: sheets, logger: logger}
}

// Export renders the selected sheet in the requested format (xlsx by default).
func (s *GradeExportService) Export(ctx context.Context, courseSlug string, query dto.ExportQuery) (*ExportFile, error) {
	format, err := export.ParseFormat(query.Format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be one of xlsx, csv, pdf")
	}
	renderer, err := export.NewRenderer(format)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "unsupported export format")
	}
	sheet, config, err := s.sheets.Sheet(ctx, courseSlug, query.GradeSheetQuery)
	if err != nil {
		return nil, err
	}
	content, err := renderer.Render(s.Build(config, sheet))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Debug("grade sheet exported",
		zap.String("course", courseSlug),
		zap.String("format", string(format)),
		zap.Int("bytes", len(content)),
	)
	return &ExportFile{
		Filename:    fmt.Sprintf("grades-%s-%s.%s", courseSlug, sheet.Date, renderer.Extension()),
		ContentType: renderer.ContentType(),
		Content:     content,
	}, nil
}

// Build lays a grade sheet out as a dataset: one column per criterion
// followed by the aggregate and remark. Unset scores render empty.
func (s *GradeExportService) Build(config *models.GradebookConfiguration, sheet *models.GradeSheet) export.Dataset {
	headers := []string{"Student ID", "Student"}
	for _, criterion := range config.Criteria {
		headers = append(headers, fmt.Sprintf("%s (%d%%)", criterion.Name, criterion.WeightPercent))
	}
	headers = append(headers, "Aggregate %", "Remark")

	rows := make([]map[string]string, 0, len(sheet.Scores))
	for _, score := range sheet.Scores {
		row := map[string]string{
			"Student ID":  score.StudentID,
			"Student":     score.StudentName,
			"Aggregate %": strconv.FormatFloat(score.AggregatedPercent, 'f', 2, 64),
			"Remark":      string(score.Remark),
		}
		for i, value := range score.RawScores {
			if i < len(config.Criteria) && value != 0 {
				row[headers[i+2]] = strconv.Itoa(value)
			}
		}
		rows = append(rows, row)
	}

	return export.Dataset{
		Title: fmt.Sprintf("Grades %s", strings.ToUpper(sheet.CourseSlug)),
		Meta: [][2]string{
			{"Date", sheet.Date},
			{"Configuration", fmt.Sprintf("%s (v%d)", config.Name, config.Version)},
			{"Scoring range", fmt.Sprintf("1-%d", config.ScoringRangeMax)},
			{"Passing threshold", fmt.Sprintf("%d%%", config.PassingThresholdPercent)},
		},
		Headers: headers,
		Rows:    rows,
	}
}
