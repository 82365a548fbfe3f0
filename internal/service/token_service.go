package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-internship-api/internal/models"
	appErrors "github.com/noah-isme/sma-internship-api/pkg/errors"
)

type tokenUserRepository interface {
	FindByUsernameAndRole(ctx context.Context, username string, role models.UserRole) (*models.User, error)
}

// TokenConfig defines how access tokens are signed.
type TokenConfig struct {
	Secret   string
	Expiry   time.Duration
	Issuer   string
	Audience []string
}

// TokenService issues and validates HS256 access tokens.
type TokenService struct {
	repo      tokenUserRepository
	validator *validator.Validate
	logger    *zap.Logger
	config    TokenConfig
	now       func() time.Time
}

// NewTokenService constructs a TokenService instance.
func NewTokenService(repo tokenUserRepository, validate *validator.Validate, logger *zap.Logger, config TokenConfig) *TokenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.Expiry <= 0 {
		config.Expiry = 24 * time.Hour
	}
	return &TokenService{repo: repo, validator: validate, logger: logger, config: config, now: time.Now}
}

// SelectRole looks up a user by username and role and issues a token for it.
// Only mounted outside production.
func (s *TokenService) SelectRole(ctx context.Context, req models.SelectRoleRequest) (*models.TokenResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "username and role are required")
	}
	if !req.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown role %q", req.Role))
	}

	user, err := s.repo.FindByUsernameAndRole(ctx, req.Username, req.Role)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		s.logger.Error("lookup user for role selection", zap.String("username", req.Username), zap.Error(err))
		return nil, appErrors.Internal(err, "failed to look up user")
	}

	token, issuedAt, expiresAt, err := s.Issue(user)
	if err != nil {
		return nil, appErrors.Internal(err, "failed to issue token")
	}

	return &models.TokenResponse{
		AccessToken: token,
		ExpiresIn:   int64(expiresAt.Sub(issuedAt).Seconds()),
		IssuedAt:    issuedAt,
		User: models.UserInfo{
			ID:       user.ID,
			Username: user.Username,
			Name:     user.Name,
			Role:     user.Role,
		},
	}, nil
}

// Issue signs an access token for user.
func (s *TokenService) Issue(user *models.User) (string, time.Time, time.Time, error) {
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.config.Expiry)
	claims := &models.JWTClaims{
		UserID: user.ID,
		Role:   user.Role,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			Subject:   user.ID,
			Audience:  s.config.Audience,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.Secret))
	if err != nil {
		return "", time.Time{}, time.Time{}, err
	}
	return signed, issuedAt, expiresAt, nil
}

// ValidateToken parses and validates an access token returning the claims.
func (s *TokenService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.Secret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" || !claims.Role.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	return claims, nil
}
