package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-gradebook-api/internal/dto"
	"github.com/noah-isme/sma-gradebook-api/internal/models"
	"github.com/noah-isme/sma-gradebook-api/internal/service"
)

func TestAuthHandlerTokenIssuesValidToken(t *testing.T) {
	auth := service.NewAuthService(service.AuthConfig{AccessTokenSecret: "secret", Issuer: "gradebook", AccessTokenExpiry: time.Hour})
	handler := NewAuthHandler(auth)
	c, rec := newJSONContext(http.MethodPost, "/auth/token", dto.TokenRequest{UserID: "teacher-1", Role: models.RoleTeacher})

	handler.Token(c)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.TokenResponse
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, rec).Data, &resp))
	claims, err := auth.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "teacher-1", claims.UserID)
	assert.Equal(t, models.RoleTeacher, claims.Role)
}

func TestAuthHandlerTokenRejectsUnknownRole(t *testing.T) {
	handler := NewAuthHandler(service.NewAuthService(service.AuthConfig{AccessTokenSecret: "secret"}))
	c, rec := newJSONContext(http.MethodPost, "/auth/token", map[string]string{"user_id": "u-1", "role": "PRINCIPAL"})

	handler.Token(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, rec).Error.Code)
}
