package repositories

import (
	"context"
	"time"

	"classroom-api/internal/adapters/persistence/models"
)

// UserFilter narrows a user listing; empty fields match everything
type UserFilter struct {
	Role   string
	Status string
}

// UserRepository defines user repository interface
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateStatus(ctx context.Context, id, status string) error
	UpdateRole(ctx context.Context, id, role string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	List(ctx context.Context, filter UserFilter, offset, limit int) ([]*models.User, int64, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	CountByRole(ctx context.Context, role string) (int64, error)
}

// AuthEventRepository defines the auth event log interface
type AuthEventRepository interface {
	Create(ctx context.Context, event *models.AuthEvent) error
	ListByUserID(ctx context.Context, userID string, limit int) ([]*models.AuthEvent, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
