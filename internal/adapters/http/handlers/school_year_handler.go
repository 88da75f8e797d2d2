package handlers

import (
	"classroom-api/internal/core/services"
	"classroom-api/internal/pkg/response"

	"github.com/gofiber/fiber/v2"
)

// SchoolYearHandler handles school calendar endpoints
type SchoolYearHandler struct {
	schoolYearService *services.SchoolYearService
}

// NewSchoolYearHandler creates a new school year handler
func NewSchoolYearHandler(schoolYearService *services.SchoolYearService) *SchoolYearHandler {
	return &SchoolYearHandler{schoolYearService: schoolYearService}
}

// ActiveQuarter returns the current quarter
// @Summary Active quarter
// @Tags SchoolYear
// @Produce json
// @Success 200 {object} response.Response{data=services.ActiveQuarter}
// @Router /school-year/active-quarter [get]
func (h *SchoolYearHandler) ActiveQuarter(c *fiber.Ctx) error {
	return response.Success(c, "", h.schoolYearService.ActiveQuarter())
}
