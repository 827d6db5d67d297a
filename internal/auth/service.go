package auth

import (
	"context"
	"log/slog"

	"github.com/frahmantamala/audit-management/internal/core/common/validation"
	"github.com/frahmantamala/audit-management/internal/permission"
	"golang.org/x/crypto/bcrypt"
)

type UserRepository interface {
	FindCredentials(ctx context.Context, tenantID int64, email string) (*Credentials, error)
}

// PrincipalLoader resolves the current role assignments of a user.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, userID int64) (*permission.Principal, error)
}

type ServiceAPI interface {
	Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error)
	ValidateAccessToken(tokenString string) (*Claims, error)
}

type Service struct {
	userRepo       UserRepository
	principals     PrincipalLoader
	tokenGenerator TokenGenerator
	logger         *slog.Logger
}

func NewService(userRepo UserRepository, principals PrincipalLoader, tokenGen TokenGenerator, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		userRepo:       userRepo,
		principals:     principals,
		tokenGenerator: tokenGen,
		logger:         logger,
	}
}

// Authenticate validates credentials and returns an access token whose claims
// carry the user's tenant and role assignments.
func (s *Service) Authenticate(ctx context.Context, dto LoginDTO) (AuthTokens, error) {
	if verr := validation.Struct(dto); verr != nil {
		return AuthTokens{}, verr
	}

	creds, err := s.userRepo.FindCredentials(ctx, dto.TenantID, dto.Email)
	if err != nil {
		s.logger.Warn("login rejected: unknown user", "tenant_id", dto.TenantID, "error", err)
		return AuthTokens{}, ErrInvalidCredentials
	}

	if err := VerifyPassword(creds.PasswordHash, dto.Password); err != nil {
		s.logger.Warn("login rejected: bad password", "user_id", creds.UserID)
		return AuthTokens{}, ErrInvalidCredentials
	}

	principal, err := s.principals.LoadPrincipal(ctx, creds.UserID)
	if err != nil {
		s.logger.Error("failed to load principal", "user_id", creds.UserID, "error", err)
		return AuthTokens{}, err
	}

	token, expiresAt, err := s.tokenGenerator.GenerateAccessToken(*principal, creds.Email)
	if err != nil {
		s.logger.Error("failed to sign access token", "user_id", creds.UserID, "error", err)
		return AuthTokens{}, err
	}

	return AuthTokens{AccessToken: token, TokenType: "Bearer", ExpiresAt: expiresAt}, nil
}

func (s *Service) ValidateAccessToken(tokenString string) (*Claims, error) {
	return s.tokenGenerator.ValidateToken(tokenString)
}

func VerifyPassword(hashedPassword, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
}

func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
