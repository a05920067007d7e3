package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sanvida/hms-api/internal/models"
	"github.com/sanvida/hms-api/internal/service"
	appErrors "github.com/sanvida/hms-api/pkg/errors"
	"github.com/sanvida/hms-api/pkg/response"
)

// AppointmentHandler exposes the appointment queue endpoints.
type AppointmentHandler struct {
	appointments *service.AppointmentService
}

// NewAppointmentHandler constructs AppointmentHandler.
func NewAppointmentHandler(appointments *service.AppointmentService) *AppointmentHandler {
	return &AppointmentHandler{appointments: appointments}
}

// List godoc
// @Summary List appointments
// @Tags Appointments
// @Produce json
// @Param doctorId query string false "Filter by doctor"
// @Param patientId query string false "Filter by patient"
// @Param status query string false "Filter by status"
// @Param date query string false "Filter by date (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /appointments [get]
func (h *AppointmentHandler) List(c *gin.Context) {
	var filter models.AppointmentFilter
	filter.DoctorID = c.Query("doctorId")
	filter.PatientID = c.Query("patientId")
	if status := c.Query("status"); status != "" {
		s := models.AppointmentStatus(status)
		filter.Status = &s
	}
	if raw := c.Query("date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD"))
			return
		}
		filter.Date = &date
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	appointments, pagination, err := h.appointments.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appointments, pagination)
}

// Get godoc
// @Summary Get appointment detail
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id} [get]
func (h *AppointmentHandler) Get(c *gin.Context) {
	appointment, err := h.appointments.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appointment, nil)
}

// Create godoc
// @Summary Request an appointment
// @Tags Appointments
// @Accept json
// @Produce json
// @Param payload body service.CreateAppointmentRequest true "Appointment payload"
// @Success 201 {object} response.Envelope
// @Router /appointments [post]
func (h *AppointmentHandler) Create(c *gin.Context) {
	var req service.CreateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	appointment, err := h.appointments.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, appointment)
}

func (h *AppointmentHandler) transition(c *gin.Context, fn func(*gin.Context) (*models.Appointment, error)) {
	appointment, err := fn(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appointment, nil)
}

// Accept godoc
// @Summary Accept a pending appointment
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/accept [post]
func (h *AppointmentHandler) Accept(c *gin.Context) {
	h.transition(c, func(c *gin.Context) (*models.Appointment, error) {
		return h.appointments.Accept(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	})
}

// Reject godoc
// @Summary Reject a pending appointment
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/reject [post]
func (h *AppointmentHandler) Reject(c *gin.Context) {
	h.transition(c, func(c *gin.Context) (*models.Appointment, error) {
		return h.appointments.Reject(c.Request.Context(), c.Param("id"), claimsFromContext(c))
	})
}

// Cancel godoc
// @Summary Cancel a pending appointment
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/cancel [post]
func (h *AppointmentHandler) Cancel(c *gin.Context) {
	h.transition(c, func(c *gin.Context) (*models.Appointment, error) {
		return h.appointments.Cancel(c.Request.Context(), c.Param("id"))
	})
}

// CheckIn godoc
// @Summary Check a patient into the waiting queue
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/checkin [post]
func (h *AppointmentHandler) CheckIn(c *gin.Context) {
	h.transition(c, func(c *gin.Context) (*models.Appointment, error) {
		return h.appointments.CheckIn(c.Request.Context(), c.Param("id"))
	})
}

// Start godoc
// @Summary Start the consultation
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/start [post]
func (h *AppointmentHandler) Start(c *gin.Context) {
	h.transition(c, func(c *gin.Context) (*models.Appointment, error) {
		return h.appointments.Start(c.Request.Context(), c.Param("id"))
	})
}

// Finish godoc
// @Summary Finish the consultation
// @Tags Appointments
// @Produce json
// @Param id path string true "Appointment ID"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/finish [post]
func (h *AppointmentHandler) Finish(c *gin.Context) {
	h.transition(c, func(c *gin.Context) (*models.Appointment, error) {
		return h.appointments.Finish(c.Request.Context(), c.Param("id"))
	})
}

// Rate godoc
// @Summary Rate an attended appointment
// @Tags Appointments
// @Accept json
// @Produce json
// @Param id path string true "Appointment ID"
// @Param payload body service.RateAppointmentRequest true "Rating payload"
// @Success 200 {object} response.Envelope
// @Router /appointments/{id}/rate [post]
func (h *AppointmentHandler) Rate(c *gin.Context) {
	var req service.RateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	appointment, err := h.appointments.Rate(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appointment, nil)
}

// Queue godoc
// @Summary Waiting queue for a doctor
// @Tags Appointments
// @Produce json
// @Param doctorId path string true "Doctor employee ID"
// @Success 200 {object} response.Envelope
// @Router /queue/{doctorId} [get]
func (h *AppointmentHandler) Queue(c *gin.Context) {
	entries, err := h.appointments.Queue(c.Request.Context(), c.Param("doctorId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Next godoc
// @Summary Close the open consultation and call the next waiting patient
// @Tags Appointments
// @Produce json
// @Param doctorId path string true "Doctor employee ID"
// @Success 200 {object} response.Envelope
// @Router /queue/{doctorId}/next [post]
func (h *AppointmentHandler) Next(c *gin.Context) {
	appointment, err := h.appointments.CallNext(c.Request.Context(), c.Param("doctorId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, appointment, nil)
}

// Board godoc
// @Summary Waiting-room board across all doctors
// @Tags Appointments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /queue [get]
func (h *AppointmentHandler) Board(c *gin.Context) {
	entries, err := h.appointments.Board(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Performance godoc
// @Summary Doctor performance summary
// @Tags Appointments
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /reports/doctor-performance [get]
func (h *AppointmentHandler) Performance(c *gin.Context) {
	rows, err := h.appointments.Performance(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rows, nil)
}
