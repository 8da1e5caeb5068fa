package employee

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	service Service
	logger  *zap.Logger
}

func NewHandler(s Service, logger *zap.Logger) *Handler {
	return &Handler{service: s, logger: logger}
}

// Verify godoc
// @Summary Verify an employee id against a position
// @Description Reason is one of malformed_input, not_found, wrong_position, inactive.
// @Tags Employees
// @Produce json
// @Param employee_id query string true "Employee ID"
// @Param required_position query string true "Designation label or abbreviation"
// @Success 200 {object} Verification
// @Router /api/v1/employees/verify [get]
func (h *Handler) Verify(c *gin.Context) {
	result, err := h.service.Verify(c.Request.Context(), c.Query("employee_id"), c.Query("required_position"))
	if err != nil {
		h.logger.Error("employee verification failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "employee registry unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": result.IsValid,
		"isValid": result.IsValid,
		"reason":  result.Reason,
		"message": result.Message,
	})
}

// Validate godoc
// @Summary Check that an employee id exists
// @Tags Employees
// @Produce json
// @Param id path string true "Employee ID"
// @Success 200 {object} Verification
// @Router /api/v1/employees/{id}/validate [get]
func (h *Handler) Validate(c *gin.Context) {
	result, err := h.service.Validate(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.Error("employee validation failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "employee registry unavailable"})
		return
	}
	c.JSON(http.StatusOK, result)
}
