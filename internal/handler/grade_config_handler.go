package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-gradebook-api/internal/dto"
	"github.com/noah-isme/sma-gradebook-api/internal/middleware"
	"github.com/noah-isme/sma-gradebook-api/internal/models"
	"github.com/noah-isme/sma-gradebook-api/pkg/response"
)

type gradeConfigService interface {
	List(ctx context.Context, courseSlug string) ([]models.GradebookConfiguration, bool, error)
	Get(ctx context.Context, courseSlug, id string) (*models.GradebookConfiguration, error)
	Create(ctx context.Context, courseSlug string, req dto.CreateGradeConfigRequest, actor string) (*models.GradebookConfiguration, error)
	Update(ctx context.Context, courseSlug, id string, req dto.UpdateGradeConfigRequest, confirm bool, actor string) (*models.GradebookConfiguration, error)
}

// GradeConfigHandler exposes gradebook configuration endpoints of a course.
type GradeConfigHandler struct {
	configs gradeConfigService
}

// NewGradeConfigHandler constructs handler.
func NewGradeConfigHandler(configs gradeConfigService) *GradeConfigHandler {
	return &GradeConfigHandler{configs: configs}
}

// List godoc
// @Summary List gradebook configurations of a course
// @Tags Grade Configs
// @Produce json
// @Param slug path string true "Course slug"
// @Success 200 {object} response.Envelope
// @Router /courses/{slug}/grade-configs [get]
func (h *GradeConfigHandler) List(c *gin.Context) {
	slug, err := courseSlug(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	configs, cacheHit, err := h.configs.List(c.Request.Context(), slug)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, configs, middleware.ExtractMeta(c))
}

// Get godoc
// @Summary Get a gradebook configuration
// @Tags Grade Configs
// @Produce json
// @Param slug path string true "Course slug"
// @Param id path string true "Configuration ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /courses/{slug}/grade-configs/{id} [get]
func (h *GradeConfigHandler) Get(c *gin.Context) {
	slug, err := courseSlug(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	config, err := h.configs.Get(c.Request.Context(), slug, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, config)
}

// Create godoc
// @Summary Create a gradebook configuration
// @Tags Grade Configs
// @Accept json
// @Produce json
// @Param slug path string true "Course slug"
// @Param payload body dto.CreateGradeConfigRequest true "Configuration payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{slug}/grade-configs [post]
func (h *GradeConfigHandler) Create(c *gin.Context) {
	slug, err := courseSlug(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.CreateGradeConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid configuration payload"))
		return
	}
	config, err := h.configs.Create(c.Request.Context(), slug, req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, config)
}

// Update godoc
// @Summary Edit a gradebook configuration in place
// @Description Retroactive edits of a configuration that already has grades need confirm=true.
// @Tags Grade Configs
// @Accept json
// @Produce json
// @Param slug path string true "Course slug"
// @Param id path string true "Configuration ID"
// @Param confirm query bool false "Confirm a retroactive edit"
// @Param payload body dto.UpdateGradeConfigRequest true "Fields to change"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Security BearerAuth
// @Router /courses/{slug}/grade-configs/{id} [put]
func (h *GradeConfigHandler) Update(c *gin.Context) {
	slug, err := courseSlug(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	confirm, err := confirmFlag(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req dto.UpdateGradeConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid configuration payload"))
		return
	}
	config, err := h.configs.Update(c.Request.Context(), slug, c.Param("id"), req, confirm, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, config)
}
