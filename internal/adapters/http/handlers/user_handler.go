package handlers

import (
	"strconv"

	"classroom-api/internal/adapters/http/middleware"
	"classroom-api/internal/core/domain"
	"classroom-api/internal/core/services"
	"classroom-api/internal/pkg/pagination"
	"classroom-api/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// UserHandler handles user management endpoints
type UserHandler struct {
	userService  *services.UserService
	auditService *services.AuditService
}

// NewUserHandler creates a new user handler
func NewUserHandler(userService *services.UserService, auditService *services.AuditService) *UserHandler {
	return &UserHandler{
		userService:  userService,
		auditService: auditService,
	}
}

// StatusRequest represents the status change body
type StatusRequest struct {
	Status string `json:"status"`
}

// RoleRequest represents the role change body
type RoleRequest struct {
	Role string `json:"role"`
}

// CreateUser creates a credential
// @Summary Create user
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.CreateUserInput true "New user"
// @Success 201 {object} response.Response{data=models.UserResponse}
// @Failure 400 {object} response.ErrorBody
// @Failure 409 {object} response.ErrorBody
// @Router /users [post]
func (h *UserHandler) CreateUser(c *fiber.Ctx) error {
	var req services.CreateUserInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	user, err := h.userService.CreateUser(c.UserContext(), middleware.GetPrincipal(c), &req)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Created(c, "user created", user)
}

// ListUsers lists users
// @Summary List users
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param page query int false "Page number"
// @Param limit query int false "Items per page"
// @Param role query string false "Role filter"
// @Param status query string false "Status filter"
// @Success 200 {object} response.Response{data=pagination.Response}
// @Router /users [get]
func (h *UserHandler) ListUsers(c *fiber.Ctx) error {
	result, err := h.userService.ListUsers(c.UserContext(), &services.ListUsersInput{
		Role:   c.Query("role"),
		Status: c.Query("status"),
		Params: pagination.GetParams(c),
	})
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "", result)
}

// GetUser gets a user by id
// @Summary Get user
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} response.Response{data=models.UserResponse}
// @Failure 404 {object} response.ErrorBody
// @Router /users/{id} [get]
func (h *UserHandler) GetUser(c *fiber.Ctx) error {
	user, err := h.userService.GetUserByID(c.UserContext(), c.Params("id"))
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "", user)
}

// UpdateStatus activates or deactivates a user
// @Summary Change user status
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param body body StatusRequest true "ACTIVE or INACTIVE"
// @Success 200 {object} response.Response{data=models.UserResponse}
// @Failure 403 {object} response.ErrorBody
// @Router /users/{id}/status [patch]
func (h *UserHandler) UpdateStatus(c *fiber.Ctx) error {
	var req StatusRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	user, err := h.userService.UpdateStatus(c.UserContext(), middleware.GetPrincipal(c), c.Params("id"), req.Status)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "status updated", user)
}

// UpdateRole changes a user's role
// @Summary Change user role
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param body body RoleRequest true "New role"
// @Success 200 {object} response.Response{data=models.UserResponse}
// @Failure 403 {object} response.ErrorBody
// @Router /users/{id}/role [patch]
func (h *UserHandler) UpdateRole(c *fiber.Ctx) error {
	var req RoleRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	user, err := h.userService.UpdateRole(c.UserContext(), middleware.GetPrincipal(c), c.Params("id"), req.Role)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "role updated", user)
}

// Events lists recent auth events of a user
// @Summary User auth events
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Param limit query int false "Max events"
// @Success 200 {object} response.Response
// @Router /users/{id}/events [get]
func (h *UserHandler) Events(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	events, err := h.auditService.History(c.UserContext(), c.Params("id"), limit)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "", events)
}

// GetProfile returns the caller's own profile
// @Summary My profile
// @Tags Users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Response{data=models.UserResponse}
// @Router /users/me [get]
func (h *UserHandler) GetProfile(c *fiber.Ctx) error {
	principal := middleware.GetPrincipal(c)
	if !principal.Authenticated() {
		return response.Unauthorized(c, domain.ErrUnauthorized.Message)
	}

	user, err := h.userService.GetUserByID(c.UserContext(), principal.Subject)
	if err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "", user)
}

// ChangePassword changes the caller's password
// @Summary Change my password
// @Description current_password may be omitted for sessions opened by OTP verification
// @Tags Users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body services.ChangePasswordInput true "Passwords"
// @Success 200 {object} response.Response
// @Failure 401 {object} response.ErrorBody
// @Router /users/me/password [put]
func (h *UserHandler) ChangePassword(c *fiber.Ctx) error {
	var req services.ChangePasswordInput
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}

	if err := h.userService.ChangePassword(c.UserContext(), middleware.GetPrincipal(c), &req); err != nil {
		return response.FromError(c, err)
	}
	return response.Success(c, "password changed", nil)
}
