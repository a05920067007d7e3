package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sanvida/hms-api/internal/models"
	"github.com/sanvida/hms-api/internal/service"
	appErrors "github.com/sanvida/hms-api/pkg/errors"
	"github.com/sanvida/hms-api/pkg/response"
)

// PatientHandler exposes patient registry endpoints.
type PatientHandler struct {
	patients *service.PatientService
}

// NewPatientHandler constructs PatientHandler.
func NewPatientHandler(patients *service.PatientService) *PatientHandler {
	return &PatientHandler{patients: patients}
}

// List godoc
// @Summary List patients
// @Tags Patients
// @Produce json
// @Param search query string false "Search by name or national ID"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /patients [get]
func (h *PatientHandler) List(c *gin.Context) {
	var filter models.PatientFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	patients, pagination, err := h.patients.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, patients, pagination)
}

// Get godoc
// @Summary Get patient detail
// @Tags Patients
// @Produce json
// @Param id path string true "Patient ID"
// @Success 200 {object} response.Envelope
// @Router /patients/{id} [get]
func (h *PatientHandler) Get(c *gin.Context) {
	patient, err := h.patients.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, patient, nil)
}

// Create godoc
// @Summary Register patient
// @Tags Patients
// @Accept json
// @Produce json
// @Param payload body service.CreatePatientRequest true "Patient payload"
// @Success 201 {object} response.Envelope
// @Router /patients [post]
func (h *PatientHandler) Create(c *gin.Context) {
	var req service.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	patient, err := h.patients.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, patient)
}

// Update godoc
// @Summary Update patient
// @Tags Patients
// @Accept json
// @Produce json
// @Param id path string true "Patient ID"
// @Param payload body service.CreatePatientRequest true "Patient payload"
// @Success 200 {object} response.Envelope
// @Router /patients/{id} [put]
func (h *PatientHandler) Update(c *gin.Context) {
	var req service.CreatePatientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	patient, err := h.patients.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, patient, nil)
}

// AddAnamnesis godoc
// @Summary Record anamnesis entry
// @Tags Patients
// @Accept json
// @Produce json
// @Param id path string true "Patient ID"
// @Param payload body service.CreateAnamnesisRequest true "Anamnesis payload"
// @Success 201 {object} response.Envelope
// @Router /patients/{id}/anamnesis [post]
func (h *PatientHandler) AddAnamnesis(c *gin.Context) {
	var req service.CreateAnamnesisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	entry, err := h.patients.AddAnamnesis(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// History godoc
// @Summary List anamnesis history
// @Tags Patients
// @Produce json
// @Param id path string true "Patient ID"
// @Success 200 {object} response.Envelope
// @Router /patients/{id}/anamnesis [get]
func (h *PatientHandler) History(c *gin.Context) {
	entries, err := h.patients.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// AddDiagnosis godoc
// @Summary Record diagnosis
// @Tags Patients
// @Accept json
// @Produce json
// @Param id path string true "Patient ID"
// @Param payload body service.CreateDiagnosisRequest true "Diagnosis payload"
// @Success 201 {object} response.Envelope
// @Router /patients/{id}/diagnoses [post]
func (h *PatientHandler) AddDiagnosis(c *gin.Context) {
	var req service.CreateDiagnosisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	diagnosis, err := h.patients.AddDiagnosis(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, diagnosis)
}

// Diagnoses godoc
// @Summary List patient diagnoses
// @Tags Patients
// @Produce json
// @Param id path string true "Patient ID"
// @Success 200 {object} response.Envelope
// @Router /patients/{id}/diagnoses [get]
func (h *PatientHandler) Diagnoses(c *gin.Context) {
	diagnoses, err := h.patients.Diagnoses(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, diagnoses, nil)
}

// CloseDiagnosis godoc
// @Summary Close an open diagnosis
// @Tags Patients
// @Produce json
// @Param diagnosisId path string true "Diagnosis ID"
// @Success 204
// @Router /diagnoses/{diagnosisId}/close [post]
func (h *PatientHandler) CloseDiagnosis(c *gin.Context) {
	if err := h.patients.CloseDiagnosis(c.Request.Context(), c.Param("diagnosisId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
