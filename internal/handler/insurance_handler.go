package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sanvida/hms-api/internal/models"
	"github.com/sanvida/hms-api/internal/service"
	appErrors "github.com/sanvida/hms-api/pkg/errors"
	"github.com/sanvida/hms-api/pkg/response"
)

// InsuranceHandler exposes insurer, plan and claim endpoints.
type InsuranceHandler struct {
	insurance *service.InsuranceService
}

// NewInsuranceHandler constructs InsuranceHandler.
func NewInsuranceHandler(insurance *service.InsuranceService) *InsuranceHandler {
	return &InsuranceHandler{insurance: insurance}
}

// Insurers godoc
// @Summary List insurers
// @Tags Insurance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /insurers [get]
func (h *InsuranceHandler) Insurers(c *gin.Context) {
	insurers, err := h.insurance.Insurers(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, insurers, nil)
}

// CreateInsurer godoc
// @Summary Create insurer
// @Tags Insurance
// @Accept json
// @Produce json
// @Param payload body service.CreateInsurerRequest true "Insurer payload"
// @Success 201 {object} response.Envelope
// @Router /insurers [post]
func (h *InsuranceHandler) CreateInsurer(c *gin.Context) {
	var req service.CreateInsurerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	insurer, err := h.insurance.CreateInsurer(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, insurer)
}

// Plans godoc
// @Summary List plans for an insurer
// @Tags Insurance
// @Produce json
// @Param id path string true "Insurer ID"
// @Success 200 {object} response.Envelope
// @Router /insurers/{id}/plans [get]
func (h *InsuranceHandler) Plans(c *gin.Context) {
	plans, err := h.insurance.Plans(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plans, nil)
}

// CreatePlan godoc
// @Summary Create insurance plan
// @Tags Insurance
// @Accept json
// @Produce json
// @Param payload body service.CreatePlanRequest true "Plan payload"
// @Success 201 {object} response.Envelope
// @Router /plans [post]
func (h *InsuranceHandler) CreatePlan(c *gin.Context) {
	var req service.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	plan, err := h.insurance.CreatePlan(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, plan)
}

// Estimate godoc
// @Summary Estimate coverage for an amount
// @Tags Insurance
// @Produce json
// @Param id path string true "Plan ID"
// @Param amount query number true "Billed amount"
// @Success 200 {object} response.Envelope
// @Router /plans/{id}/estimate [get]
func (h *InsuranceHandler) Estimate(c *gin.Context) {
	amount, err := strconv.ParseFloat(c.Query("amount"), 64)
	if err != nil || amount <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "amount must be a positive number"))
		return
	}
	estimate, err := h.insurance.Estimate(c.Request.Context(), c.Param("id"), amount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, estimate, nil)
}

// Claims godoc
// @Summary List claims
// @Tags Insurance
// @Produce json
// @Param patientId query string false "Filter by patient"
// @Param status query string false "Filter by status"
// @Param pending query bool false "Only claims awaiting a decision"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /claims [get]
func (h *InsuranceHandler) Claims(c *gin.Context) {
	var filter models.ClaimFilter
	filter.PatientID = c.Query("patientId")
	if status := c.Query("status"); status != "" {
		s := models.ClaimStatus(status)
		filter.Status = &s
	}
	filter.Pending = c.Query("pending") == "true"
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	claims, pagination, err := h.insurance.Claims(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, claims, pagination)
}

// GetClaim godoc
// @Summary Get claim detail
// @Tags Insurance
// @Produce json
// @Param id path string true "Claim ID"
// @Success 200 {object} response.Envelope
// @Router /claims/{id} [get]
func (h *InsuranceHandler) GetClaim(c *gin.Context) {
	claim, err := h.insurance.GetClaim(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, claim, nil)
}

// Submit godoc
// @Summary Submit a claim
// @Tags Insurance
// @Accept json
// @Produce json
// @Param payload body service.SubmitClaimRequest true "Claim payload"
// @Success 201 {object} response.Envelope
// @Router /claims [post]
func (h *InsuranceHandler) Submit(c *gin.Context) {
	var req service.SubmitClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claim, err := h.insurance.Submit(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, claim)
}

// Review godoc
// @Summary Advance a claim through its review workflow
// @Tags Insurance
// @Accept json
// @Produce json
// @Param id path string true "Claim ID"
// @Param payload body service.ReviewClaimRequest true "Review decision"
// @Success 200 {object} response.Envelope
// @Router /claims/{id}/review [post]
func (h *InsuranceHandler) Review(c *gin.Context) {
	var req service.ReviewClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	claim, err := h.insurance.Review(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, claim, nil)
}
