package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/canvas-sync-api/pkg/config"
	appErrors "github.com/noah-isme/canvas-sync-api/pkg/errors"
)

func newTestAuthService(t *testing.T, apiKey string) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), bcrypt.MinCost)
	require.NoError(t, err)
	return NewAuthService(
		config.AuthConfig{APIKeyHash: string(hash)},
		config.JWTConfig{Secret: "test-secret", Expiration: time.Hour},
		nil, nil,
	)
}

func TestIssueAndValidateToken(t *testing.T) {
	svc := newTestAuthService(t, "valid-api-key")

	resp, err := svc.IssueToken(TokenRequest{APIKey: "valid-api-key"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.True(t, resp.ExpiresAt.After(time.Now()))

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "sync-client", claims.Subject)
	assert.Equal(t, "canvas-sync-api", claims.Issuer)
}

func TestIssueTokenRejectsBadKey(t *testing.T) {
	svc := newTestAuthService(t, "valid-api-key")

	_, err := svc.IssueToken(TokenRequest{APIKey: "wrong-key"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestIssueTokenRejectsEmptyKey(t *testing.T) {
	svc := newTestAuthService(t, "valid-api-key")

	_, err := svc.IssueToken(TokenRequest{})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestIssueTokenWithoutProvisionedKey(t *testing.T) {
	svc := NewAuthService(config.AuthConfig{}, config.JWTConfig{Secret: "test-secret", Expiration: time.Hour}, nil, nil)

	_, err := svc.IssueToken(TokenRequest{APIKey: "anything"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthorized))
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := newTestAuthService(t, "valid-api-key")

	_, err := svc.ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestValidateTokenRejectsForeignSecret(t *testing.T) {
	issuer := newTestAuthService(t, "valid-api-key")
	resp, err := issuer.IssueToken(TokenRequest{APIKey: "valid-api-key"})
	require.NoError(t, err)

	verifier := NewAuthService(
		config.AuthConfig{},
		config.JWTConfig{Secret: "other-secret", Expiration: time.Hour},
		nil, nil,
	)
	_, err = verifier.ValidateToken(resp.AccessToken)
	assert.Error(t, err)
}
