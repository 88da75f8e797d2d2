package services

import (
	"context"
	"time"
)

// OTPStore keeps one-time codes and per-user request counters.
// Absent or expired keys are reported as not found, never as errors.
type OTPStore interface {
	PutCode(ctx context.Context, userID, code string) error
	GetCode(ctx context.Context, userID string) (string, bool, error)
	DeleteCode(ctx context.Context, userID string) error
	// ReserveRequest increments the counter unless it already reached max
	ReserveRequest(ctx context.Context, userID string, max int) (count int, ok bool, err error)
	Ping(ctx context.Context) error
	Backend() string
}

// OTPSender delivers a one-time code to a user
type OTPSender interface {
	SendOTP(ctx context.Context, to, code string, ttl time.Duration) error
}

type clientIPKey struct{}

// WithClientIP attaches the caller's address for auth event records
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey{}, ip)
}

func clientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}
