package service

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/canvas-sync-api/pkg/config"
	appErrors "github.com/noah-isme/canvas-sync-api/pkg/errors"
)

// TokenRequest exchanges a provisioned API key for a bearer token.
type TokenRequest struct {
	APIKey string `json:"api_key" validate:"required"`
}

// TokenResponse carries the issued token and its lifetime.
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Claims is the JWT payload issued to sync clients.
type Claims struct {
	jwt.RegisteredClaims
}

// AuthService issues and validates the bearer tokens guarding the API.
// There is one principal: callers holding the provisioned API key.
type AuthService struct {
	validator  *validator.Validate
	logger     *zap.Logger
	apiKeyHash string
	secret     []byte
	expiry     time.Duration
}

// NewAuthService constructs the service from the auth and JWT config.
func NewAuthService(authCfg config.AuthConfig, jwtCfg config.JWTConfig, validate *validator.Validate, logger *zap.Logger) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AuthService{
		validator:  validate,
		logger:     logger,
		apiKeyHash: authCfg.APIKeyHash,
		secret:     []byte(jwtCfg.Secret),
		expiry:     jwtCfg.Expiration,
	}
}

// IssueToken verifies the API key against its stored bcrypt hash and
// returns a signed JWT.
func (s *AuthService) IssueToken(req TokenRequest) (*TokenResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid token request")
	}
	if s.apiKeyHash == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "no api key provisioned")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.apiKeyHash), []byte(req.APIKey)); err != nil {
		s.logger.Warn("api key rejected")
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid api key")
	}

	now := time.Now().UTC()
	expiresAt := now.Add(s.expiry)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   "sync-client",
			Issuer:    "canvas-sync-api",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign token")
	}

	return &TokenResponse{AccessToken: signed, TokenType: "Bearer", ExpiresAt: expiresAt}, nil
}

// ValidateToken parses and verifies a bearer token.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired token")
	}
	return claims, nil
}
