package repositories

import (
	"context"
	"time"

	"classroom-api/internal/adapters/persistence/models"

	"gorm.io/gorm"
)

// authEventRepository implements AuthEventRepository interface
type authEventRepository struct {
	db *gorm.DB
}

// NewAuthEventRepository creates a new auth event repository
func NewAuthEventRepository(db *gorm.DB) AuthEventRepository {
	return &authEventRepository{db: db}
}

// Create records an auth event
func (r *authEventRepository) Create(ctx context.Context, event *models.AuthEvent) error {
	return r.db.WithContext(ctx).Create(event).Error
}

// ListByUserID returns the latest events for a user
func (r *authEventRepository) ListByUserID(ctx context.Context, userID string, limit int) ([]*models.AuthEvent, error) {
	var events []*models.AuthEvent
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// DeleteOlderThan removes events created before cutoff
func (r *authEventRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.AuthEvent{})
	return result.RowsAffected, result.Error
}
