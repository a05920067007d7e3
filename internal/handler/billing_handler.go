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

// BillingHandler exposes service catalog and invoicing endpoints.
type BillingHandler struct {
	billing *service.BillingService
}

// NewBillingHandler constructs BillingHandler.
func NewBillingHandler(billing *service.BillingService) *BillingHandler {
	return &BillingHandler{billing: billing}
}

// Services godoc
// @Summary List billable services
// @Tags Billing
// @Produce json
// @Param active query bool false "Only active services"
// @Success 200 {object} response.Envelope
// @Router /billing/services [get]
func (h *BillingHandler) Services(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	services, err := h.billing.Services(c.Request.Context(), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, services, nil)
}

// CreateService godoc
// @Summary Create billable service
// @Tags Billing
// @Accept json
// @Produce json
// @Param payload body service.CreateServiceRequest true "Service payload"
// @Success 201 {object} response.Envelope
// @Router /billing/services [post]
func (h *BillingHandler) CreateService(c *gin.Context) {
	var req service.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	svc, err := h.billing.CreateService(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, svc)
}

// ListInvoices godoc
// @Summary List invoices
// @Tags Billing
// @Produce json
// @Param patientId query string false "Filter by patient"
// @Param status query string false "Filter by status"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /invoices [get]
func (h *BillingHandler) ListInvoices(c *gin.Context) {
	var filter models.InvoiceFilter
	filter.PatientID = c.Query("patientId")
	if status := c.Query("status"); status != "" {
		s := models.InvoiceStatus(status)
		filter.Status = &s
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	invoices, pagination, err := h.billing.ListInvoices(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoices, pagination)
}

// GetInvoice godoc
// @Summary Get invoice with items and transactions
// @Tags Billing
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 200 {object} response.Envelope
// @Router /invoices/{id} [get]
func (h *BillingHandler) GetInvoice(c *gin.Context) {
	invoice, err := h.billing.GetInvoice(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}

// CreateInvoice godoc
// @Summary Open an invoice for a patient
// @Tags Billing
// @Accept json
// @Produce json
// @Param payload body service.CreateInvoiceRequest true "Invoice payload"
// @Success 201 {object} response.Envelope
// @Router /invoices [post]
func (h *BillingHandler) CreateInvoice(c *gin.Context) {
	var req service.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	invoice, err := h.billing.CreateInvoice(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, invoice)
}

// AddItem godoc
// @Summary Add a line item to an invoice
// @Tags Billing
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param payload body service.AddInvoiceItemRequest true "Item payload"
// @Success 200 {object} response.Envelope
// @Router /invoices/{id}/items [post]
func (h *BillingHandler) AddItem(c *gin.Context) {
	var req service.AddInvoiceItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	invoice, err := h.billing.AddItem(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}

// RemoveItem godoc
// @Summary Remove a line item from an invoice
// @Tags Billing
// @Produce json
// @Param id path string true "Invoice ID"
// @Param itemId path string true "Item ID"
// @Success 200 {object} response.Envelope
// @Router /invoices/{id}/items/{itemId} [delete]
func (h *BillingHandler) RemoveItem(c *gin.Context) {
	invoice, err := h.billing.RemoveItem(c.Request.Context(), c.Param("id"), c.Param("itemId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}

// Pay godoc
// @Summary Settle an invoice
// @Tags Billing
// @Accept json
// @Produce json
// @Param id path string true "Invoice ID"
// @Param payload body service.PayInvoiceRequest true "Payment payload"
// @Success 200 {object} response.Envelope
// @Router /invoices/{id}/pay [post]
func (h *BillingHandler) Pay(c *gin.Context) {
	var req service.PayInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	invoice, err := h.billing.Pay(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invoice, nil)
}

// Void godoc
// @Summary Void a pending invoice
// @Tags Billing
// @Produce json
// @Param id path string true "Invoice ID"
// @Success 204
// @Router /invoices/{id}/void [post]
func (h *BillingHandler) Void(c *gin.Context) {
	if err := h.billing.Void(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Transactions godoc
// @Summary List transactions for a patient
// @Tags Billing
// @Produce json
// @Param patientId query string true "Patient ID"
// @Success 200 {object} response.Envelope
// @Router /transactions [get]
func (h *BillingHandler) Transactions(c *gin.Context) {
	patientID := c.Query("patientId")
	if patientID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "patientId is required"))
		return
	}
	transactions, err := h.billing.Transactions(c.Request.Context(), patientID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, transactions, nil)
}

// PaymentMethods godoc
// @Summary List accepted payment methods
// @Tags Billing
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /billing/payment-methods [get]
func (h *BillingHandler) PaymentMethods(c *gin.Context) {
	methods, err := h.billing.PaymentMethods(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, methods, nil)
}
