package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents users table
type User struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	Email        string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	PasswordHash string    `gorm:"size:255;not null" json:"-"`
	Role         string    `gorm:"size:20;not null;index" json:"role"`
	Status       string    `gorm:"size:20;not null;default:'ACTIVE'" json:"status"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// BeforeCreate assigns a random id to new users
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	return nil
}

// UserResponse DTO
type UserResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (u *User) ToResponse() *UserResponse {
	return &UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		Status:    u.Status,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// AuthEvent represents auth_events table
type AuthEvent struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    string    `gorm:"size:36;index" json:"user_id"`
	Email     string    `gorm:"size:255" json:"email"`
	Action    string    `gorm:"size:30;not null" json:"action"`
	Outcome   string    `gorm:"size:10;not null" json:"outcome"`
	Detail    string    `gorm:"size:255" json:"detail,omitempty"`
	IP        string    `gorm:"size:45" json:"ip"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (AuthEvent) TableName() string {
	return "auth_events"
}

// AllModels returns the models managed by auto-migration
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&AuthEvent{},
	}
}

// AutoMigrate creates or updates the tables for AllModels
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(AllModels()...)
}
