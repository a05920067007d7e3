package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sanvida/hms-api/internal/models"
	appErrors "github.com/sanvida/hms-api/pkg/errors"
)

type billingRepository interface {
	ListServices(ctx context.Context, activeOnly bool) ([]models.BillableService, error)
	FindServiceByID(ctx context.Context, id string) (*models.BillableService, error)
	CreateService(ctx context.Context, service *models.BillableService) error
	UpdateService(ctx context.Context, service *models.BillableService) error
	ListInvoices(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error)
	FindInvoiceByID(ctx context.Context, id string) (*models.InvoiceDetail, error)
	CreateInvoice(ctx context.Context, invoice *models.Invoice) error
	AddItem(ctx context.Context, item *models.InvoiceItem) (bool, error)
	RemoveItem(ctx context.Context, invoiceID, itemID string) (bool, error)
	Pay(ctx context.Context, invoiceID string, txn *models.Transaction) (bool, error)
	VoidInvoice(ctx context.Context, invoiceID string) (bool, error)
	ListTransactions(ctx context.Context, patientID string) ([]models.Transaction, error)
	ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error)
}

type billingPatientRepository interface {
	FindByID(ctx context.Context, id string) (*models.Patient, error)
}

// BillingService handles the service catalog, invoices and payments. Paid
// invoices are immutable: items cannot change and the invoice cannot be
// voided or deleted.
type BillingService struct {
	repo      billingRepository
	patients  billingPatientRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewBillingService constructs the service.
func NewBillingService(repo billingRepository, patients billingPatientRepository, validate *validator.Validate, logger *zap.Logger) *BillingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BillingService{repo: repo, patients: patients, validator: validate, logger: logger}
}

// CreateServiceRequest describes a catalog entry payload.
type CreateServiceRequest struct {
	Name        string  `json:"name" validate:"required"`
	UnitPrice   float64 `json:"unit_price" validate:"required,gt=0"`
	Description *string `json:"description"`
}

// CreateInvoiceRequest opens a pending invoice for a patient.
type CreateInvoiceRequest struct {
	PatientID string  `json:"patient_id" validate:"required,uuid4"`
	Notes     *string `json:"notes"`
}

// AddInvoiceItemRequest adds a catalog service to an invoice.
type AddInvoiceItemRequest struct {
	ServiceID string `json:"service_id" validate:"required,uuid4"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// PayInvoiceRequest settles a pending invoice.
type PayInvoiceRequest struct {
	PaymentMethodID string  `json:"payment_method_id" validate:"required"`
	Reference       *string `json:"reference"`
}

// Services returns the billable service catalog.
func (s *BillingService) Services(ctx context.Context, activeOnly bool) ([]models.BillableService, error) {
	services, err := s.repo.ListServices(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list services")
	}
	return services, nil
}

// CreateService registers a catalog entry.
func (s *BillingService) CreateService(ctx context.Context, req CreateServiceRequest) (*models.BillableService, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	service := &models.BillableService{
		Name:        req.Name,
		UnitPrice:   req.UnitPrice,
		Description: req.Description,
		Active:      true,
	}
	if err := s.repo.CreateService(ctx, service); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create service")
	}
	return service, nil
}

// ListInvoices returns invoices with pagination.
func (s *BillingService) ListInvoices(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	rows, total, err := s.repo.ListInvoices(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list invoices")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return rows, pagination, nil
}

// GetInvoice returns an invoice with its items.
func (s *BillingService) GetInvoice(ctx context.Context, id string) (*models.InvoiceDetail, error) {
	invoice, err := s.repo.FindInvoiceByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get invoice")
	}
	return invoice, nil
}

// CreateInvoice opens a pending invoice.
func (s *BillingService) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*models.Invoice, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if _, err := s.patients.FindByID(ctx, req.PatientID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "patient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get patient")
	}

	invoice := &models.Invoice{
		PatientID: req.PatientID,
		Status:    models.InvoicePending,
		Notes:     req.Notes,
	}
	if err := s.repo.CreateInvoice(ctx, invoice); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create invoice")
	}
	return invoice, nil
}

// AddItem adds a catalog service to a pending invoice at the catalog's
// current unit price. The invoice total is recomputed atomically.
func (s *BillingService) AddItem(ctx context.Context, invoiceID string, req AddInvoiceItemRequest) (*models.InvoiceDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	service, err := s.repo.FindServiceByID(ctx, req.ServiceID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "service not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get service")
	}
	if !service.Active {
		return nil, appErrors.Clone(appErrors.ErrValidation, "service is no longer offered")
	}

	item := &models.InvoiceItem{
		InvoiceID: invoiceID,
		ServiceID: req.ServiceID,
		Quantity:  req.Quantity,
		UnitPrice: service.UnitPrice,
	}
	added, err := s.repo.AddItem(ctx, item)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add item")
	}
	if !added {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only pending invoices can be edited")
	}
	return s.GetInvoice(ctx, invoiceID)
}

// RemoveItem removes an item from a pending invoice.
func (s *BillingService) RemoveItem(ctx context.Context, invoiceID, itemID string) (*models.InvoiceDetail, error) {
	removed, err := s.repo.RemoveItem(ctx, invoiceID, itemID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "invoice item not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove item")
	}
	if !removed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "only pending invoices can be edited")
	}
	return s.GetInvoice(ctx, invoiceID)
}

// Pay settles a pending invoice, recording an income transaction for the
// full total.
func (s *BillingService) Pay(ctx context.Context, invoiceID string, req PayInvoiceRequest) (*models.InvoiceDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	invoice, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice.Status != models.InvoicePending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "invoice is not pending")
	}
	if len(invoice.Items) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invoice has no items")
	}

	description := "invoice payment"
	txn := &models.Transaction{
		PatientID:       &invoice.PatientID,
		Amount:          invoice.Total,
		Type:            models.TransactionIncome,
		PaymentMethodID: req.PaymentMethodID,
		Reference:       req.Reference,
		Status:          models.TransactionCompleted,
		Description:     &description,
	}
	paid, err := s.repo.Pay(ctx, invoiceID, txn)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to pay invoice")
	}
	if !paid {
		return nil, appErrors.Clone(appErrors.ErrConflict, "invoice was settled concurrently")
	}
	s.logger.Info("invoice paid",
		zap.String("invoice_id", invoiceID),
		zap.Float64("amount", invoice.Total))
	return s.GetInvoice(ctx, invoiceID)
}

// Void cancels a pending invoice. Paid invoices cannot be voided.
func (s *BillingService) Void(ctx context.Context, invoiceID string) error {
	invoice, err := s.GetInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}
	if invoice.Status == models.InvoicePaid {
		return appErrors.Clone(appErrors.ErrConflict, "paid invoices cannot be voided")
	}
	ok, err := s.repo.VoidInvoice(ctx, invoiceID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to void invoice")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrConflict, "invoice is not pending")
	}
	return nil
}

// Transactions returns a patient's payment history.
func (s *BillingService) Transactions(ctx context.Context, patientID string) ([]models.Transaction, error) {
	txns, err := s.repo.ListTransactions(ctx, patientID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list transactions")
	}
	return txns, nil
}

// PaymentMethods returns the active payment methods.
func (s *BillingService) PaymentMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	methods, err := s.repo.ListPaymentMethods(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payment methods")
	}
	return methods, nil
}

// revenueWindow bounds dashboard revenue to the current day.
func revenueWindow(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
