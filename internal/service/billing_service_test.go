package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sanvida/hms-api/internal/models"
	appErrors "github.com/sanvida/hms-api/pkg/errors"
)

const testServiceID = "1f2e3d4c-5b6a-4798-8a9b-0c1d2e3f4a5b"

type mockBillingRepo struct {
	services     map[string]*models.BillableService
	invoices     map[string]*models.InvoiceDetail
	transactions []models.Transaction
	seq          int
}

func (m *mockBillingRepo) ListServices(_ context.Context, activeOnly bool) ([]models.BillableService, error) {
	var out []models.BillableService
	for _, svc := range m.services {
		if activeOnly && !svc.Active {
			continue
		}
		out = append(out, *svc)
	}
	return out, nil
}

func (m *mockBillingRepo) FindServiceByID(_ context.Context, id string) (*models.BillableService, error) {
	svc, ok := m.services[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *svc
	return &copied, nil
}

func (m *mockBillingRepo) CreateService(_ context.Context, service *models.BillableService) error {
	m.seq++
	service.ID = fmt.Sprintf("svc-%d", m.seq)
	if m.services == nil {
		m.services = make(map[string]*models.BillableService)
	}
	stored := *service
	m.services[service.ID] = &stored
	return nil
}

func (m *mockBillingRepo) UpdateService(_ context.Context, service *models.BillableService) error {
	stored := *service
	m.services[service.ID] = &stored
	return nil
}

func (m *mockBillingRepo) ListInvoices(_ context.Context, _ models.InvoiceFilter) ([]models.Invoice, int, error) {
	var out []models.Invoice
	for _, detail := range m.invoices {
		out = append(out, detail.Invoice)
	}
	return out, len(out), nil
}

func (m *mockBillingRepo) FindInvoiceByID(_ context.Context, id string) (*models.InvoiceDetail, error) {
	detail, ok := m.invoices[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *detail
	copied.Items = append([]models.InvoiceItem(nil), detail.Items...)
	return &copied, nil
}

func (m *mockBillingRepo) CreateInvoice(_ context.Context, invoice *models.Invoice) error {
	m.seq++
	invoice.ID = fmt.Sprintf("inv-%d", m.seq)
	invoice.IssuedAt = time.Now().UTC()
	if m.invoices == nil {
		m.invoices = make(map[string]*models.InvoiceDetail)
	}
	m.invoices[invoice.ID] = &models.InvoiceDetail{Invoice: *invoice}
	return nil
}

func (m *mockBillingRepo) AddItem(_ context.Context, item *models.InvoiceItem) (bool, error) {
	detail, ok := m.invoices[item.InvoiceID]
	if !ok {
		return false, sql.ErrNoRows
	}
	if detail.Status != models.InvoicePending {
		return false, nil
	}
	m.seq++
	item.ID = fmt.Sprintf("item-%d", m.seq)
	item.Subtotal = item.UnitPrice * float64(item.Quantity)
	detail.Items = append(detail.Items, *item)
	m.refreshTotal(detail)
	return true, nil
}

func (m *mockBillingRepo) RemoveItem(_ context.Context, invoiceID, itemID string) (bool, error) {
	detail, ok := m.invoices[invoiceID]
	if !ok {
		return false, sql.ErrNoRows
	}
	if detail.Status != models.InvoicePending {
		return false, nil
	}
	for i, item := range detail.Items {
		if item.ID == itemID {
			detail.Items = append(detail.Items[:i], detail.Items[i+1:]...)
			m.refreshTotal(detail)
			return true, nil
		}
	}
	return false, sql.ErrNoRows
}

func (m *mockBillingRepo) refreshTotal(detail *models.InvoiceDetail) {
	total := 0.0
	for _, item := range detail.Items {
		total += item.Subtotal
	}
	detail.Total = total
}

func (m *mockBillingRepo) Pay(_ context.Context, invoiceID string, txn *models.Transaction) (bool, error) {
	detail, ok := m.invoices[invoiceID]
	if !ok {
		return false, sql.ErrNoRows
	}
	if detail.Status != models.InvoicePending {
		return false, nil
	}
	m.seq++
	txn.ID = fmt.Sprintf("txn-%d", m.seq)
	txn.OccurredAt = time.Now().UTC()
	m.transactions = append(m.transactions, *txn)
	detail.Status = models.InvoicePaid
	detail.TransactionID = &txn.ID
	return true, nil
}

func (m *mockBillingRepo) VoidInvoice(_ context.Context, invoiceID string) (bool, error) {
	detail, ok := m.invoices[invoiceID]
	if !ok || detail.Status != models.InvoicePending {
		return false, nil
	}
	detail.Status = models.InvoiceVoid
	return true, nil
}

func (m *mockBillingRepo) ListTransactions(_ context.Context, patientID string) ([]models.Transaction, error) {
	var out []models.Transaction
	for _, txn := range m.transactions {
		if txn.PatientID != nil && *txn.PatientID == patientID {
			out = append(out, txn)
		}
	}
	return out, nil
}

func (m *mockBillingRepo) ListPaymentMethods(_ context.Context) ([]models.PaymentMethod, error) {
	return []models.PaymentMethod{{ID: "pm-1", Name: "Cash", Active: true}}, nil
}

func newBillingFixture() (*BillingService, *mockBillingRepo) {
	repo := &mockBillingRepo{
		services: map[string]*models.BillableService{
			testServiceID: {ID: testServiceID, Name: "General consultation", UnitPrice: 50, Active: true},
		},
	}
	patients := &mockPatientFinder{patients: map[string]*models.Patient{
		testPatientID: {ID: testPatientID, FirstName: "Luis", LastName: "Mora"},
	}}
	return NewBillingService(repo, patients, validator.New(), zap.NewNop()), repo
}

func TestBillingServiceInvoiceTotals(t *testing.T) {
	svc, _ := newBillingFixture()
	ctx := context.Background()

	invoice, err := svc.CreateInvoice(ctx, CreateInvoiceRequest{PatientID: testPatientID})
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePending, invoice.Status)

	detail, err := svc.AddItem(ctx, invoice.ID, AddInvoiceItemRequest{ServiceID: testServiceID, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, 150.0, detail.Total)
	require.Len(t, detail.Items, 1)
	assert.Equal(t, 50.0, detail.Items[0].UnitPrice)

	detail, err = svc.RemoveItem(ctx, invoice.ID, detail.Items[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 0.0, detail.Total)
	assert.Empty(t, detail.Items)
}

func TestBillingServicePriceSnapshot(t *testing.T) {
	svc, repo := newBillingFixture()
	ctx := context.Background()

	invoice, err := svc.CreateInvoice(ctx, CreateInvoiceRequest{PatientID: testPatientID})
	require.NoError(t, err)

	detail, err := svc.AddItem(ctx, invoice.ID, AddInvoiceItemRequest{ServiceID: testServiceID, Quantity: 1})
	require.NoError(t, err)

	// a later catalog price change leaves billed items untouched
	repo.services[testServiceID].UnitPrice = 90
	again, err := svc.GetInvoice(ctx, invoice.ID)
	require.NoError(t, err)
	assert.Equal(t, detail.Items[0].UnitPrice, again.Items[0].UnitPrice)
	assert.Equal(t, 50.0, again.Total)
}

func TestBillingServiceRejectsInactiveService(t *testing.T) {
	svc, repo := newBillingFixture()
	ctx := context.Background()
	repo.services[testServiceID].Active = false

	invoice, err := svc.CreateInvoice(ctx, CreateInvoiceRequest{PatientID: testPatientID})
	require.NoError(t, err)

	_, err = svc.AddItem(ctx, invoice.ID, AddInvoiceItemRequest{ServiceID: testServiceID, Quantity: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBillingServicePayRecordsTransaction(t *testing.T) {
	svc, repo := newBillingFixture()
	ctx := context.Background()

	invoice, err := svc.CreateInvoice(ctx, CreateInvoiceRequest{PatientID: testPatientID})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, invoice.ID, AddInvoiceItemRequest{ServiceID: testServiceID, Quantity: 2})
	require.NoError(t, err)

	paid, err := svc.Pay(ctx, invoice.ID, PayInvoiceRequest{PaymentMethodID: "pm-1"})
	require.NoError(t, err)
	assert.Equal(t, models.InvoicePaid, paid.Status)
	require.NotNil(t, paid.TransactionID)

	require.Len(t, repo.transactions, 1)
	txn := repo.transactions[0]
	assert.Equal(t, 100.0, txn.Amount)
	assert.Equal(t, models.TransactionIncome, txn.Type)
	assert.Equal(t, models.TransactionCompleted, txn.Status)
}

func TestBillingServicePayGuards(t *testing.T) {
	svc, _ := newBillingFixture()
	ctx := context.Background()

	invoice, err := svc.CreateInvoice(ctx, CreateInvoiceRequest{PatientID: testPatientID})
	require.NoError(t, err)

	// an empty invoice cannot be settled
	_, err = svc.Pay(ctx, invoice.ID, PayInvoiceRequest{PaymentMethodID: "pm-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.AddItem(ctx, invoice.ID, AddInvoiceItemRequest{ServiceID: testServiceID, Quantity: 1})
	require.NoError(t, err)
	_, err = svc.Pay(ctx, invoice.ID, PayInvoiceRequest{PaymentMethodID: "pm-1"})
	require.NoError(t, err)

	// paying twice fails
	_, err = svc.Pay(ctx, invoice.ID, PayInvoiceRequest{PaymentMethodID: "pm-1"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	// a paid invoice rejects edits and voiding
	_, err = svc.AddItem(ctx, invoice.ID, AddInvoiceItemRequest{ServiceID: testServiceID, Quantity: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	err = svc.Void(ctx, invoice.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestBillingServiceVoidPendingInvoice(t *testing.T) {
	svc, repo := newBillingFixture()
	ctx := context.Background()

	invoice, err := svc.CreateInvoice(ctx, CreateInvoiceRequest{PatientID: testPatientID})
	require.NoError(t, err)

	require.NoError(t, svc.Void(ctx, invoice.ID))
	assert.Equal(t, models.InvoiceVoid, repo.invoices[invoice.ID].Status)
}
