package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sanvida/hms-api/internal/service"
	appErrors "github.com/sanvida/hms-api/pkg/errors"
	"github.com/sanvida/hms-api/pkg/response"
)

// ShiftHandler exposes rotation and scheduling endpoints.
type ShiftHandler struct {
	shifts *service.ShiftService
}

// NewShiftHandler constructs ShiftHandler.
func NewShiftHandler(shifts *service.ShiftService) *ShiftHandler {
	return &ShiftHandler{shifts: shifts}
}

// AssignGroup godoc
// @Summary Assign employee to a rotation group
// @Tags Shifts
// @Accept json
// @Produce json
// @Param id path string true "Employee ID"
// @Param payload body object true "Group payload"
// @Success 204
// @Router /employees/{id}/rotation [post]
func (h *ShiftHandler) AssignGroup(c *gin.Context) {
	var payload struct {
		Group string `json:"group" binding:"required"`
		Weeks int    `json:"weeks"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if payload.Weeks <= 0 {
		payload.Weeks = service.DefaultGenerationWeeks
	}
	if err := h.shifts.AssignGroup(c.Request.Context(), c.Param("id"), payload.Group, payload.Weeks); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Regenerate godoc
// @Summary Regenerate generated shifts for an employee
// @Tags Shifts
// @Accept json
// @Produce json
// @Param id path string true "Employee ID"
// @Param payload body object false "Regeneration window"
// @Success 204
// @Router /employees/{id}/rotation/regenerate [post]
func (h *ShiftHandler) Regenerate(c *gin.Context) {
	var payload struct {
		From  string `json:"from"`
		Weeks int    `json:"weeks"`
	}
	_ = c.ShouldBindJSON(&payload)

	from := time.Now().UTC()
	if payload.From != "" {
		parsed, err := time.Parse("2006-01-02", payload.From)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "from must be YYYY-MM-DD"))
			return
		}
		from = parsed
	}
	if payload.Weeks <= 0 {
		payload.Weeks = service.DefaultGenerationWeeks
	}

	if err := h.shifts.Regenerate(c.Request.Context(), c.Param("id"), from, payload.Weeks); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Calendar godoc
// @Summary Monthly shift calendar for an employee
// @Tags Shifts
// @Produce json
// @Param id path string true "Employee ID"
// @Param year query int false "Year"
// @Param month query int false "Month (1-12)"
// @Success 200 {object} response.Envelope
// @Router /employees/{id}/shifts [get]
func (h *ShiftHandler) Calendar(c *gin.Context) {
	now := time.Now().UTC()
	year := now.Year()
	month := now.Month()
	if raw := c.Query("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year must be numeric"))
			return
		}
		year = parsed
	}
	if raw := c.Query("month"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 12 {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "month must be between 1 and 12"))
			return
		}
		month = time.Month(parsed)
	}

	days, err := h.shifts.Calendar(c.Request.Context(), c.Param("id"), year, month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, days, nil)
}

// Day godoc
// @Summary Resolved shift for one day
// @Tags Shifts
// @Produce json
// @Param id path string true "Employee ID"
// @Param date query string true "Date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /employees/{id}/shifts/day [get]
func (h *ShiftHandler) Day(c *gin.Context) {
	date, err := time.Parse("2006-01-02", c.Query("date"))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
		return
	}

	day, err := h.shifts.Day(c.Request.Context(), c.Param("id"), date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, day, nil)
}

// Override godoc
// @Summary Manually override a shift
// @Tags Shifts
// @Accept json
// @Produce json
// @Param id path string true "Employee ID"
// @Param payload body service.OverrideShiftRequest true "Override payload"
// @Success 200 {object} response.Envelope
// @Router /employees/{id}/shifts/override [post]
func (h *ShiftHandler) Override(c *gin.Context) {
	var req service.OverrideShiftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	shift, err := h.shifts.Override(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, shift, nil)
}

// RemoveOverride godoc
// @Summary Remove a manual shift override
// @Tags Shifts
// @Produce json
// @Param shiftId path string true "Shift ID"
// @Success 204
// @Router /shifts/{shiftId} [delete]
func (h *ShiftHandler) RemoveOverride(c *gin.Context) {
	if err := h.shifts.RemoveOverride(c.Request.Context(), c.Param("shiftId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
