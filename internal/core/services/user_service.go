package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"classroom-api/internal/adapters/persistence/models"
	"classroom-api/internal/adapters/persistence/repositories"
	"classroom-api/internal/core/domain"
	"classroom-api/internal/pkg/jwt"
	"classroom-api/internal/pkg/pagination"
	"classroom-api/internal/pkg/password"
)

// UserService handles user management business logic
type UserService struct {
	userRepo repositories.UserRepository
	hasher   *password.Hasher
	audit    *AuditService
}

// NewUserService creates a new user service
func NewUserService(userRepo repositories.UserRepository, hasher *password.Hasher, audit *AuditService) *UserService {
	return &UserService{
		userRepo: userRepo,
		hasher:   hasher,
		audit:    audit,
	}
}

// CreateUserInput represents create user input
type CreateUserInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// ChangePasswordInput represents change password input
type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ListUsersInput represents list users input
type ListUsersInput struct {
	Role   string
	Status string
	Params *pagination.Params
}

// CreateUser registers a new credential
func (s *UserService) CreateUser(ctx context.Context, actor *domain.Principal, input *CreateUserInput) (*models.UserResponse, error) {
	email := domain.NormalizeEmail(input.Email)
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return nil, domain.NewValidationError("a valid email is required")
	}
	if !password.ValidatePassword(input.Password) {
		return nil, domain.NewValidationError(fmt.Sprintf("password must be %d to %d characters", password.MinLength, password.MaxLength))
	}
	role, ok := domain.ParseRole(input.Role)
	if !ok {
		return nil, domain.NewValidationError("role must be one of ADMIN, TEACHER, ADVISER, STUDENT")
	}

	exists, err := s.userRepo.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrEmailAlreadyExists
	}

	hashed, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hashed,
		Role:         string(role),
		Status:       string(domain.StatusActive),
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		log.Errorw("create user failed", "email", email, "error", err)
		return nil, err
	}

	log.Infow("user created", "user_id", user.ID, "email", email, "role", role, "actor", actorID(actor))
	s.audit.Record(ctx, AuditEntry{UserID: user.ID, Email: email, Action: domain.ActionUserCreate, Outcome: domain.OutcomeSuccess, Detail: "by " + actorID(actor)})
	return user.ToResponse(), nil
}

// ListUsers lists users with pagination
func (s *UserService) ListUsers(ctx context.Context, input *ListUsersInput) (*pagination.Response, error) {
	filter := repositories.UserFilter{}
	if input.Role != "" {
		role, ok := domain.ParseRole(input.Role)
		if !ok {
			return nil, domain.NewValidationError("unknown role filter")
		}
		filter.Role = string(role)
	}
	if input.Status != "" {
		status, ok := domain.ParseStatus(input.Status)
		if !ok {
			return nil, domain.NewValidationError("unknown status filter")
		}
		filter.Status = string(status)
	}

	params := input.Params
	if params == nil {
		params = pagination.New(1, pagination.DefaultLimit)
	}

	users, total, err := s.userRepo.List(ctx, filter, params.Offset, params.Limit)
	if err != nil {
		return nil, err
	}

	userResponses := make([]*models.UserResponse, len(users))
	for i, user := range users {
		userResponses[i] = user.ToResponse()
	}

	return pagination.NewResponse(userResponses, params, total).
		WithFilter("role", filter.Role).
		WithFilter("status", filter.Status), nil
}

// GetUserByID gets a user by ID
func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.UserResponse, error) {
	user, err := s.userRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	return user.ToResponse(), nil
}

// UpdateStatus activates or deactivates an account
func (s *UserService) UpdateStatus(ctx context.Context, actor *domain.Principal, id, status string) (*models.UserResponse, error) {
	st, ok := domain.ParseStatus(status)
	if !ok {
		return nil, domain.NewValidationError("status must be ACTIVE or INACTIVE")
	}
	if actorID(actor) == id && st == domain.StatusInactive {
		return nil, domain.ErrCannotDeactivateSelf
	}

	if err := s.userRepo.UpdateStatus(ctx, id, string(st)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	log.Infow("user status changed", "user_id", id, "status", st, "actor", actorID(actor))
	s.audit.Record(ctx, AuditEntry{UserID: id, Action: domain.ActionStatusChange, Outcome: domain.OutcomeSuccess, Detail: string(st)})
	return s.GetUserByID(ctx, id)
}

// UpdateRole changes the role of another account
func (s *UserService) UpdateRole(ctx context.Context, actor *domain.Principal, id, role string) (*models.UserResponse, error) {
	r, ok := domain.ParseRole(role)
	if !ok {
		return nil, domain.NewValidationError("role must be one of ADMIN, TEACHER, ADVISER, STUDENT")
	}
	if actorID(actor) == id {
		return nil, domain.ErrCannotChangeOwnRole
	}

	if err := s.userRepo.UpdateRole(ctx, id, string(r)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}

	log.Infow("user role changed", "user_id", id, "role", r, "actor", actorID(actor))
	s.audit.Record(ctx, AuditEntry{UserID: id, Action: domain.ActionRoleChange, Outcome: domain.OutcomeSuccess, Detail: string(r)})
	return s.GetUserByID(ctx, id)
}

// ChangePassword changes the caller's password. Sessions opened through OTP
// verification may skip the current password.
func (s *UserService) ChangePassword(ctx context.Context, principal *domain.Principal, input *ChangePasswordInput) error {
	if !principal.Authenticated() {
		return domain.ErrUnauthorized
	}

	user, err := s.userRepo.GetByID(ctx, principal.Subject)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ErrUserNotFound
		}
		return err
	}

	viaOTP := principal.AuthMethod == jwt.AuthMethodOTP
	if !viaOTP && !s.hasher.Verify(input.CurrentPassword, user.PasswordHash) {
		log.Warnw("password change rejected: wrong current password", "user_id", user.ID)
		s.audit.Record(ctx, AuditEntry{UserID: user.ID, Email: user.Email, Action: domain.ActionPasswordChange, Outcome: domain.OutcomeFailure, Detail: "wrong current password"})
		return domain.ErrOldPasswordWrong
	}

	if !password.ValidatePassword(input.NewPassword) {
		return domain.NewValidationError(fmt.Sprintf("new password must be %d to %d characters", password.MinLength, password.MaxLength))
	}

	hashed, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.userRepo.UpdatePassword(ctx, user.ID, hashed); err != nil {
		return err
	}

	detail := "password"
	if viaOTP {
		detail = "otp reset"
	}
	log.Infow("password changed", "user_id", user.ID, "method", detail)
	s.audit.Record(ctx, AuditEntry{UserID: user.ID, Email: user.Email, Action: domain.ActionPasswordChange, Outcome: domain.OutcomeSuccess, Detail: detail})
	return nil
}

// EnsureAdmin creates an ADMIN account when none exists. It reports whether one was created.
func (s *UserService) EnsureAdmin(ctx context.Context, email, plain string) (bool, error) {
	count, err := s.userRepo.CountByRole(ctx, string(domain.RoleAdmin))
	if err != nil {
		return false, err
	}
	if count > 0 {
		return false, nil
	}
	if _, err := s.CreateUser(ctx, nil, &CreateUserInput{Email: email, Password: plain, Role: string(domain.RoleAdmin)}); err != nil {
		return false, err
	}
	return true, nil
}

func actorID(p *domain.Principal) string {
	if p == nil {
		return "system"
	}
	return p.Subject
}
