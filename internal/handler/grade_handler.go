package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-gradebook-api/internal/dto"
	"github.com/noah-isme/sma-gradebook-api/internal/models"
	"github.com/noah-isme/sma-gradebook-api/internal/service"
	"github.com/noah-isme/sma-gradebook-api/pkg/response"
)

type gradeSheetService interface {
	Sheet(ctx context.Context, courseSlug string, query dto.GradeSheetQuery) (*models.GradeSheet, *models.GradebookConfiguration, error)
	Save(ctx context.Context, courseSlug string, query dto.GradeSheetQuery, req dto.SaveGradesRequest, actor string) (*models.GradeSheet, error)
}

type gradeExporter interface {
	Export(ctx context.Context, courseSlug string, query dto.ExportQuery) (*service.ExportFile, error)
}

// GradeHandler serves grade sheets of a course.
type GradeHandler struct {
	grades   gradeSheetService
	exporter gradeExporter
}

// NewGradeHandler constructs handler.
func NewGradeHandler(grades gradeSheetService, exporter gradeExporter) *GradeHandler {
	return &GradeHandler{grades: grades, exporter: exporter}
}

// Sheet godoc
// @Summary Grade sheet for a date and configuration
// @Tags Grades
// @Produce json
// @Param slug path string true "Course slug"
// @Param date query string true "Class date (YYYY-MM-DD)"
// @Param criteriaId query string true "Configuration ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{slug}/grades [get]
func (h *GradeHandler) Sheet(c *gin.Context) {
	slug, query, ok := h.sheetQuery(c)
	if !ok {
		return
	}
	sheet, _, err := h.grades.Sheet(c.Request.Context(), slug, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet)
}

// Save godoc
// @Summary Save a grade sheet
// @Description Aggregates and remarks are recomputed server side; all rows are written in one transaction.
// @Tags Grades
// @Accept json
// @Produce json
// @Param slug path string true "Course slug"
// @Param date query string true "Class date (YYYY-MM-DD)"
// @Param criteriaId query string true "Configuration ID"
// @Param payload body dto.SaveGradesRequest true "Score vectors"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{slug}/grades [post]
func (h *GradeHandler) Save(c *gin.Context) {
	slug, query, ok := h.sheetQuery(c)
	if !ok {
		return
	}
	var req dto.SaveGradesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid grades payload"))
		return
	}
	sheet, err := h.grades.Save(c.Request.Context(), slug, query, req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sheet)
}

// Export godoc
// @Summary Download a grade sheet
// @Tags Grades
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Produce text/csv
// @Produce application/pdf
// @Param slug path string true "Course slug"
// @Param date query string true "Class date (YYYY-MM-DD)"
// @Param criteriaId query string true "Configuration ID"
// @Param format query string false "xlsx (default), csv or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /courses/{slug}/grades/export [get]
func (h *GradeHandler) Export(c *gin.Context) {
	slug, err := courseSlug(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid export query"))
		return
	}
	file, err := h.exporter.Export(c.Request.Context(), slug, query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Content)
}

func (h *GradeHandler) sheetQuery(c *gin.Context) (string, dto.GradeSheetQuery, bool) {
	slug, err := courseSlug(c)
	if err != nil {
		response.Error(c, err)
		return "", dto.GradeSheetQuery{}, false
	}
	var query dto.GradeSheetQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, bindError(err, "invalid grade sheet query"))
		return "", dto.GradeSheetQuery{}, false
	}
	return slug, query, true
}
