package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"classroom-api/internal/adapters/persistence/models"
	"classroom-api/internal/adapters/persistence/repositories"
	"classroom-api/internal/core/domain"
	"classroom-api/internal/pkg/jwt"
	"classroom-api/internal/pkg/password"
)

// AuthService handles login, session tokens and principal resolution
type AuthService struct {
	userRepo  repositories.UserRepository
	signer    *jwt.Signer
	hasher    *password.Hasher
	audit     *AuditService
	accessTTL time.Duration
}

// NewAuthService creates a new auth service
func NewAuthService(
	userRepo repositories.UserRepository,
	signer *jwt.Signer,
	hasher *password.Hasher,
	audit *AuditService,
	accessTTL time.Duration,
) *AuthService {
	return &AuthService{
		userRepo:  userRepo,
		signer:    signer,
		hasher:    hasher,
		audit:     audit,
		accessTTL: accessTTL,
	}
}

// LoginInput represents login input
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResult is returned when a session token is issued
type SessionResult struct {
	AccessToken string               `json:"access_token"`
	TokenType   string               `json:"token_type"`
	ExpiresIn   int                  `json:"expires_in"`
	User        *models.UserResponse `json:"user"`
}

// AccessTTL returns the lifetime of session tokens
func (s *AuthService) AccessTTL() time.Duration {
	return s.accessTTL
}

// Login verifies credentials and issues a session token
func (s *AuthService) Login(ctx context.Context, input *LoginInput) (*SessionResult, error) {
	email := domain.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, domain.NewValidationError("email and password are required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnw("login failed: unknown email", "email", email)
			s.audit.Record(ctx, AuditEntry{Email: email, Action: domain.ActionLogin, Outcome: domain.OutcomeFailure, Detail: "unknown email"})
			return nil, domain.ErrInvalidCredentials
		}
		log.Errorw("login failed: user lookup", "email", email, "error", err)
		return nil, fmt.Errorf("load user: %w", err)
	}

	if !s.hasher.Verify(input.Password, user.PasswordHash) {
		log.Warnw("login failed: wrong password", "email", email, "user_id", user.ID)
		s.audit.Record(ctx, AuditEntry{UserID: user.ID, Email: email, Action: domain.ActionLogin, Outcome: domain.OutcomeFailure, Detail: "wrong password"})
		return nil, domain.ErrInvalidCredentials
	}

	if domain.Status(user.Status) != domain.StatusActive {
		log.Warnw("login failed: inactive account", "email", email, "user_id", user.ID)
		s.audit.Record(ctx, AuditEntry{UserID: user.ID, Email: email, Action: domain.ActionLogin, Outcome: domain.OutcomeFailure, Detail: "inactive"})
		return nil, domain.ErrAccountInactive
	}

	result, err := s.IssueSession(user, nil)
	if err != nil {
		log.Errorw("login failed: issue token", "email", email, "user_id", user.ID, "error", err)
		return nil, err
	}

	s.audit.Record(ctx, AuditEntry{UserID: user.ID, Email: email, Action: domain.ActionLogin, Outcome: domain.OutcomeSuccess})
	return result, nil
}

// IssueSession issues a session token for user
func (s *AuthService) IssueSession(user *models.User, extra map[string]string) (*SessionResult, error) {
	token, err := s.signer.Issue(user.ID, user.Role, s.accessTTL, extra)
	if err != nil {
		return nil, fmt.Errorf("issue session token: %w", err)
	}
	return &SessionResult{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int(s.accessTTL.Seconds()),
		User:        user.ToResponse(),
	}, nil
}

// ResolvePrincipal verifies token and loads the current state of its subject.
// Missing or non-ACTIVE accounts resolve to an error.
func (s *AuthService) ResolvePrincipal(ctx context.Context, token string) (*domain.Principal, error) {
	claims, err := s.signer.Verify(token)
	if err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, fmt.Errorf("load user: %w", err)
	}
	if domain.Status(user.Status) != domain.StatusActive {
		return nil, domain.ErrAccountInactive
	}

	role, ok := domain.ParseRole(user.Role)
	if !ok {
		return nil, fmt.Errorf("user %s has unknown role %q", user.ID, user.Role)
	}

	principal := domain.NewPrincipal(user.ID, user.Email, role)
	principal.Pending = claims.Get(jwt.ClaimStage) == jwt.StageOTPPending
	principal.AuthMethod = claims.Get(jwt.ClaimAuthMethod)
	return principal, nil
}

// Me returns the profile of the given user
func (s *AuthService) Me(ctx context.Context, userID string) (*models.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return user.ToResponse(), nil
}
