package services

import (
	"context"

	"github.com/gofiber/fiber/v2/log"

	"classroom-api/internal/adapters/persistence/models"
	"classroom-api/internal/adapters/persistence/repositories"
)

// AuditEntry is one auth event to record
type AuditEntry struct {
	UserID  string
	Email   string
	Action  string
	Outcome string
	Detail  string
}

// AuditService writes the auth event log. Write failures are logged and dropped.
type AuditService struct {
	repo repositories.AuthEventRepository
}

// NewAuditService creates a new audit service
func NewAuditService(repo repositories.AuthEventRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Record stores an auth event
func (s *AuditService) Record(ctx context.Context, e AuditEntry) {
	if s == nil || s.repo == nil {
		return
	}
	event := &models.AuthEvent{
		UserID:  e.UserID,
		Email:   e.Email,
		Action:  e.Action,
		Outcome: e.Outcome,
		Detail:  e.Detail,
		IP:      clientIP(ctx),
	}
	if err := s.repo.Create(ctx, event); err != nil {
		log.Errorw("failed to record auth event", "action", e.Action, "user_id", e.UserID, "error", err)
	}
}

// History returns the latest events for a user
func (s *AuditService) History(ctx context.Context, userID string, limit int) ([]*models.AuthEvent, error) {
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return s.repo.ListByUserID(ctx, userID, limit)
}
