package handlers

import (
	"classroom-api/internal/adapters/http/middleware"
	"classroom-api/internal/config"
	"classroom-api/internal/core/domain"
	"classroom-api/internal/core/services"
	"classroom-api/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// AuthHandler handles session endpoints
type AuthHandler struct {
	authService *services.AuthService
	cookie      sessionCookie
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService *services.AuthService, cookieCfg config.CookieConfig) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		cookie:      sessionCookie{cfg: cookieCfg},
	}
}

// LoginRequest represents login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles user login
// @Summary Open a session
// @Description Verify email and password, set the access_token cookie and return the session token
// @Tags Auth
// @Accept json
// @Produce json
// @Param body body LoginRequest true "Login credentials"
// @Success 200 {object} response.Response{data=services.SessionResult}
// @Failure 400 {object} response.ErrorBody
// @Failure 401 {object} response.ErrorBody
// @Failure 403 {object} response.ErrorBody
// @Router /auth/session [post]
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	result, err := h.authService.Login(c.UserContext(), &services.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return response.FromError(c, err)
	}

	h.cookie.set(c, result.AccessToken, h.authService.AccessTTL())
	return response.Success(c, "login successful", result)
}

// Session returns the current principal
// @Summary Current session
// @Description Return the authenticated principal
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorBody
// @Router /auth/session [get]
func (h *AuthHandler) Session(c *fiber.Ctx) error {
	principal := middleware.GetPrincipal(c)
	if !principal.Authenticated() {
		return response.Unauthorized(c, domain.ErrUnauthorized.Message)
	}

	user, err := h.authService.Me(c.UserContext(), principal.Subject)
	if err != nil {
		return response.FromError(c, err)
	}

	return response.Success(c, "", fiber.Map{
		"user":        user,
		"authorities": principal.Authorities,
		"auth_method": principal.AuthMethod,
	})
}

// Logout clears the session cookie. Tokens stay valid until they expire.
// @Summary Close the session
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response
// @Router /auth/session [delete]
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	h.cookie.clear(c)
	return response.Success(c, "logged out", nil)
}
