package handlers

import (
	"strings"

	"classroom-api/internal/adapters/http/middleware"
	"classroom-api/internal/config"
	"classroom-api/internal/core/services"
	"classroom-api/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// OTPHandler handles one-time code endpoints
type OTPHandler struct {
	otpService  *services.OTPService
	authService *services.AuthService
	cookie      sessionCookie
}

// NewOTPHandler creates a new OTP handler
func NewOTPHandler(otpService *services.OTPService, authService *services.AuthService, cookieCfg config.CookieConfig) *OTPHandler {
	return &OTPHandler{
		otpService:  otpService,
		authService: authService,
		cookie:      sessionCookie{cfg: cookieCfg},
	}
}

// OTPRequest represents the OTP request body
type OTPRequest struct {
	Email string `json:"email"`
}

// OTPVerificationRequest represents the OTP verification body.
// UserID may be omitted when the pending token is sent with the request.
type OTPVerificationRequest struct {
	UserID string `json:"user_id"`
	Code   string `json:"code"`
}

// Request emails a one-time code
// @Summary Request an OTP
// @Description Email a one-time code and return a pending-verification token
// @Tags OTP
// @Accept json
// @Produce json
// @Param body body OTPRequest true "Account email"
// @Success 200 {object} response.Response{data=services.OTPRequestResult}
// @Failure 404 {object} response.ErrorBody
// @Failure 429 {object} response.ErrorBody
// @Router /otp [post]
func (h *OTPHandler) Request(c *fiber.Ctx) error {
	var req OTPRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	result, err := h.otpService.GenerateOTP(c.UserContext(), req.Email)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "verification code sent", result)
}

// Verify checks a one-time code and opens a session
// @Summary Verify an OTP
// @Description Validate the code; on success set the access_token cookie and return a session token
// @Tags OTP
// @Accept json
// @Produce json
// @Param body body OTPVerificationRequest true "Code"
// @Success 200 {object} response.Response{data=services.SessionResult}
// @Failure 400 {object} response.ErrorBody
// @Failure 401 {object} response.ErrorBody
// @Router /otp/verification [post]
func (h *OTPHandler) Verify(c *fiber.Ctx) error {
	var req OTPVerificationRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	userID := strings.TrimSpace(req.UserID)
	if p := middleware.GetPrincipal(c); p != nil {
		userID = p.Subject
	}

	result, err := h.otpService.VerifyAndIssue(c.UserContext(), userID, strings.TrimSpace(req.Code))
	if err != nil {
		return response.FromError(c, err)
	}

	h.cookie.set(c, result.AccessToken, h.authService.AccessTTL())
	return response.Success(c, "verification successful", result)
}
