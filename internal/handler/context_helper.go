package handler

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-gradebook-api/internal/middleware"
	appErrors "github.com/noah-isme/sma-gradebook-api/pkg/errors"
)

// actorID returns the authenticated user id, or "" for anonymous reads.
func actorID(c *gin.Context) string {
	if claims := middleware.ClaimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}

func courseSlug(c *gin.Context) (string, error) {
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		return "", appErrors.Clone(appErrors.ErrValidation, "course slug is required")
	}
	return slug, nil
}

func confirmFlag(c *gin.Context) (bool, error) {
	raw := c.Query("confirm")
	if raw == "" {
		return false, nil
	}
	confirm, err := strconv.ParseBool(raw)
	if err != nil {
		return false, appErrors.Clone(appErrors.ErrValidation, "confirm must be a boolean")
	}
	return confirm, nil
}

func bindError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}
