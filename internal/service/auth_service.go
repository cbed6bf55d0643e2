package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/RGU-Computing/clood/internal/config"
	"github.com/RGU-Computing/clood/internal/model"
	appErr "github.com/RGU-Computing/clood/internal/pkg/errors"
	"github.com/RGU-Computing/clood/internal/pkg/jwt"
	"github.com/RGU-Computing/clood/internal/pkg/password"
	"github.com/RGU-Computing/clood/internal/repo"
)

type AuthService struct {
	admin     config.AdminConfig
	jwtSecret []byte
	jwtTTL    time.Duration
}

func NewAuthService(admin config.AdminConfig, secret []byte, ttl time.Duration) *AuthService {
	return &AuthService{admin: admin, jwtSecret: secret, jwtTTL: ttl}
}

// Login checks the configured admin account and issues a session token.
func (s *AuthService) Login(ctx context.Context, username, plainPassword string) (string, error) {
	if s.admin.Username == "" || username != s.admin.Username || !password.Matches(s.admin.PasswordHash, plainPassword) {
		logutil.GetLogger(ctx).Info("login rejected", zap.String("username", username))
		return "", appErr.Unauthorized()
	}
	return jwt.GenerateToken(username, s.jwtSecret, s.jwtTTL)
}

// Verify accepts both session tokens and API tokens.
func (s *AuthService) Verify(_ context.Context, raw string) (*jwt.Claims, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, appErr.Unauthorized()
	}
	claims, err := jwt.ParseToken(raw, s.jwtSecret)
	if err != nil {
		return nil, appErr.Unauthorized()
	}
	return claims, nil
}

type TokenService struct {
	tokens    *repo.TokenRepo
	jwtSecret []byte
}

func NewTokenService(tokens *repo.TokenRepo, secret []byte) *TokenService {
	return &TokenService{tokens: tokens, jwtSecret: secret}
}

type CreateTokenInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Expiry      int64  `json:"expiry"`
}

func (s *TokenService) List(ctx context.Context) ([]model.Token, error) {
	return s.tokens.List(ctx)
}

func (s *TokenService) Create(ctx context.Context, input CreateTokenInput) (*model.Token, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, appErr.TokenName()
	}
	signed, err := jwt.GenerateAPIToken(input.Name, input.Description, input.Expiry, s.jwtSecret)
	if err != nil {
		return nil, appErr.TokenCreate(err)
	}
	t := &model.Token{
		ID:          newID(),
		Name:        input.Name,
		Description: input.Description,
		Expiry:      input.Expiry,
		Token:       signed,
		Ctime:       time.Now().Unix(),
	}
	if err := s.tokens.Create(ctx, t); err != nil {
		return nil, appErr.TokenCreate(err)
	}
	return t, nil
}

func (s *TokenService) Delete(ctx context.Context, id string) error {
	if err := s.tokens.Delete(ctx, id); err != nil {
		if errors.Is(err, appErr.ErrNotFound) {
			return appErr.TokenNotFound()
		}
		return appErr.TokenDelete(err)
	}
	return nil
}
