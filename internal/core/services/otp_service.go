package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"gorm.io/gorm"

	"classroom-api/internal/adapters/persistence/repositories"
	"classroom-api/internal/core/domain"
	"classroom-api/internal/pkg/jwt"
)

// OTPConfig holds OTP issuance settings
type OTPConfig struct {
	Length          int
	CodeTTL         time.Duration
	PendingTokenTTL time.Duration
	MaxRequests     int
}

// OTPService handles OTP generation and verification
type OTPService struct {
	userRepo repositories.UserRepository
	store    OTPStore
	sender   OTPSender
	signer   *jwt.Signer
	auth     *AuthService
	audit    *AuditService
	cfg      OTPConfig
	generate func(length int) (string, error)
}

// NewOTPService creates a new OTP service
func NewOTPService(
	userRepo repositories.UserRepository,
	store OTPStore,
	sender OTPSender,
	signer *jwt.Signer,
	auth *AuthService,
	audit *AuditService,
	cfg OTPConfig,
) *OTPService {
	return &OTPService{
		userRepo: userRepo,
		store:    store,
		sender:   sender,
		signer:   signer,
		auth:     auth,
		audit:    audit,
		cfg:      cfg,
		generate: generateSecureOTP,
	}
}

// OTPRequestResult is returned to the caller of GenerateOTP
type OTPRequestResult struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"`
}

// GenerateOTP sends a new code to the user with email and returns a pending-verification token
func (s *OTPService) GenerateOTP(ctx context.Context, email string) (*OTPRequestResult, error) {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return nil, domain.NewValidationError("email is required")
	}

	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Warnw("otp request: user not found", "email", email)
			s.audit.Record(ctx, AuditEntry{Email: email, Action: domain.ActionOTPRequest, Outcome: domain.OutcomeFailure, Detail: "unknown email"})
			return nil, domain.ErrUserNotFound
		}
		log.Errorw("otp request: user lookup failed", "email", email, "error", err)
		return nil, fmt.Errorf("load user: %w", err)
	}

	if domain.Status(user.Status) != domain.StatusActive {
		log.Warnw("otp request: inactive account", "email", email, "user_id", user.ID)
		s.audit.Record(ctx, AuditEntry{UserID: user.ID, Email: email, Action: domain.ActionOTPRequest, Outcome: domain.OutcomeFailure, Detail: "inactive"})
		return nil, domain.ErrAccountInactive
	}

	count, ok, err := s.store.ReserveRequest(ctx, user.ID, s.cfg.MaxRequests)
	if err != nil {
		log.Errorw("otp request: rate limit check failed", "email", email, "user_id", user.ID, "error", err)
		return nil, err
	}
	if !ok {
		log.Warnw("otp request: too many requests", "email", email, "user_id", user.ID, "attempts", count)
		s.audit.Record(ctx, AuditEntry{UserID: user.ID, Email: email, Action: domain.ActionOTPRequest, Outcome: domain.OutcomeFailure, Detail: "rate limited"})
		return nil, domain.ErrTooManyRequests
	}

	token, err := s.signer.Issue(user.ID, user.Role, s.cfg.PendingTokenTTL, map[string]string{jwt.ClaimStage: jwt.StageOTPPending})
	if err != nil {
		log.Errorw("otp request: issue pending token failed", "email", email, "user_id", user.ID, "error", err)
		return nil, fmt.Errorf("issue pending token: %w", err)
	}

	code, err := s.generate(s.cfg.Length)
	if err != nil {
		log.Errorw("otp request: generate code failed", "email", email, "user_id", user.ID, "error", err)
		return nil, fmt.Errorf("generate otp: %w", err)
	}

	if err := s.store.PutCode(ctx, user.ID, code); err != nil {
		log.Errorw("otp request: store code failed", "email", email, "user_id", user.ID, "error", err)
		return nil, err
	}

	if err := s.sender.SendOTP(ctx, user.Email, code, s.cfg.CodeTTL); err != nil {
		log.Errorw("otp request: send email failed", "email", email, "user_id", user.ID, "error", err)
		s.audit.Record(ctx, AuditEntry{UserID: user.ID, Email: email, Action: domain.ActionOTPRequest, Outcome: domain.OutcomeFailure, Detail: "delivery failed"})
		return nil, fmt.Errorf("send otp: %w", err)
	}

	log.Infow("otp sent", "email", email, "user_id", user.ID, "attempts", count)
	s.audit.Record(ctx, AuditEntry{UserID: user.ID, Email: email, Action: domain.ActionOTPRequest, Outcome: domain.OutcomeSuccess})

	return &OTPRequestResult{
		Token:     token,
		ExpiresIn: int(s.cfg.PendingTokenTTL.Seconds()),
	}, nil
}

// ValidateOTP checks code against the stored code for userID.
// The stored code is removed whether or not it matches.
func (s *OTPService) ValidateOTP(ctx context.Context, userID, code string) error {
	if userID == "" || code == "" {
		return domain.NewValidationError("user id and code are required")
	}

	stored, ok, err := s.store.GetCode(ctx, userID)
	if err != nil {
		log.Errorw("otp verify: load code failed", "user_id", userID, "error", err)
		return err
	}
	if !ok {
		log.Warnw("otp verify: no active code", "user_id", userID)
		s.audit.Record(ctx, AuditEntry{UserID: userID, Action: domain.ActionOTPVerify, Outcome: domain.OutcomeFailure, Detail: "no active code"})
		return domain.ErrOtpInvalid
	}

	if err := s.store.DeleteCode(ctx, userID); err != nil {
		log.Errorw("otp verify: invalidate code failed", "user_id", userID, "error", err)
		return err
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(code)) != 1 {
		log.Warnw("otp verify: code mismatch", "user_id", userID)
		s.audit.Record(ctx, AuditEntry{UserID: userID, Action: domain.ActionOTPVerify, Outcome: domain.OutcomeFailure, Detail: "mismatch"})
		return domain.ErrOtpInvalid
	}

	s.audit.Record(ctx, AuditEntry{UserID: userID, Action: domain.ActionOTPVerify, Outcome: domain.OutcomeSuccess})
	return nil
}

// VerifyAndIssue validates code and issues a full session token marked as OTP-authenticated
func (s *OTPService) VerifyAndIssue(ctx context.Context, userID, code string) (*SessionResult, error) {
	if err := s.ValidateOTP(ctx, userID, code); err != nil {
		return nil, err
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrUserNotFound
		}
		log.Errorw("otp verify: user lookup failed", "user_id", userID, "error", err)
		return nil, fmt.Errorf("load user: %w", err)
	}
	if domain.Status(user.Status) != domain.StatusActive {
		return nil, domain.ErrAccountInactive
	}

	return s.auth.IssueSession(user, map[string]string{jwt.ClaimAuthMethod: jwt.AuthMethodOTP})
}

// Settings returns the effective OTP settings
func (s *OTPService) Settings() OTPConfig {
	return s.cfg
}

// StoreBackend names the OTP store in use
func (s *OTPService) StoreBackend() string {
	return s.store.Backend()
}

// Ping checks the OTP store
func (s *OTPService) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// generateSecureOTP generates a cryptographically secure random OTP
func generateSecureOTP(length int) (string, error) {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits), nil
}
