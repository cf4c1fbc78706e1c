package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/sma-gradebook-api/internal/dto"
	"github.com/noah-isme/sma-gradebook-api/internal/models"
	"github.com/noah-isme/sma-gradebook-api/pkg/response"
)

type tokenIssuer interface {
	IssueToken(userID string, role models.UserRole) (string, time.Time, error)
}

// AuthHandler mints access tokens for local development and operator tooling.
// It is only routed outside production.
type AuthHandler struct {
	issuer    tokenIssuer
	validator *validator.Validate
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(issuer tokenIssuer) *AuthHandler {
	return &AuthHandler{issuer: issuer, validator: validator.New()}
}

// Token godoc
// @Summary Issue a development access token
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body dto.TokenRequest true "Subject and role"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /auth/token [post]
func (h *AuthHandler) Token(c *gin.Context) {
	var req dto.TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid token payload"))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, bindError(err, "invalid token payload"))
		return
	}
	token, expiresAt, err := h.issuer.IssueToken(req.UserID, req.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.TokenResponse{AccessToken: token, ExpiresAt: expiresAt})
}
