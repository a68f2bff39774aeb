package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/canvas-sync-api/internal/service"
	"github.com/noah-isme/canvas-sync-api/pkg/config"
)

func newAuthTestRouter(t *testing.T, apiKey string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.MinCost)
	require.NoError(t, err)

	auth := service.NewAuthService(
		config.AuthConfig{APIKeyHash: string(hash)},
		config.JWTConfig{Secret: "test-secret", Expiration: time.Hour},
		nil, nil,
	)
	router := gin.New()
	router.POST("/auth/token", NewAuthHandler(auth).Token)
	return router
}

func TestAuthHandlerToken(t *testing.T) {
	router := newAuthTestRouter(t, "valid-api-key")

	body, _ := json.Marshal(map[string]string{"api_key": "valid-api-key"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data service.TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.NotEmpty(t, envelope.Data.AccessToken)
	assert.Equal(t, "Bearer", envelope.Data.TokenType)
}

func TestAuthHandlerTokenRejectsBadKey(t *testing.T) {
	router := newAuthTestRouter(t, "valid-api-key")

	body, _ := json.Marshal(map[string]string{"api_key": "wrong"})
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
}

func TestAuthHandlerTokenRejectsMalformedBody(t *testing.T) {
	router := newAuthTestRouter(t, "valid-api-key")

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/auth/token", bytes.NewReader([]byte(`{"api_key":`)))
	req.Header.Set("Content-Type", "application/json")
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}
