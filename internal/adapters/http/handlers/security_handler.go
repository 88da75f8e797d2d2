package handlers

import (
	"classroom-api/internal/core/services"
	"classroom-api/internal/pkg/response"
	"classroom-api/internal/pkg/routepolicy"

	"github.com/gofiber/fiber/v2"
)

// SecurityHandler exposes the effective security settings
type SecurityHandler struct {
	otpService  *services.OTPService
	authService *services.AuthService
	policy      *routepolicy.Policy
}

// NewSecurityHandler creates a new security handler
func NewSecurityHandler(otpService *services.OTPService, authService *services.AuthService, policy *routepolicy.Policy) *SecurityHandler {
	return &SecurityHandler{otpService: otpService, authService: authService, policy: policy}
}

type policyRule struct {
	Method      string `json:"method"`
	Pattern     string `json:"pattern"`
	Requirement string `json:"requirement"`
}

// Settings returns OTP, token and route policy settings
// @Summary Security settings
// @Tags Security
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 403 {object} response.ErrorBody
// @Router /security/settings [get]
func (h *SecurityHandler) Settings(c *fiber.Ctx) error {
	otp := h.otpService.Settings()

	rules := make([]policyRule, 0, len(h.policy.Rules()))
	for _, r := range h.policy.Rules() {
		rules = append(rules, policyRule{Method: r.Method, Pattern: r.Pattern, Requirement: r.Requirement.String()})
	}

	return response.Success(c, "", fiber.Map{
		"otp": fiber.Map{
			"length":              otp.Length,
			"code_ttl_seconds":    int(otp.CodeTTL.Seconds()),
			"max_requests":        otp.MaxRequests,
			"pending_ttl_seconds": int(otp.PendingTokenTTL.Seconds()),
			"store":               h.otpService.StoreBackend(),
		},
		"session": fiber.Map{
			"access_ttl_seconds": int(h.authService.AccessTTL().Seconds()),
		},
		"route_policy": rules,
	})
}
