package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sanvida/hms-api/internal/models"
)

// BillingRepository manages billable services, invoices, invoice items and
// payment transactions. Invoice totals are always recomputed from items in
// the same transaction that changed them.
type BillingRepository struct {
	db *sqlx.DB
}

// NewBillingRepository constructs a BillingRepository.
func NewBillingRepository(db *sqlx.DB) *BillingRepository {
	return &BillingRepository{db: db}
}

// ListServices returns billable services, optionally only active ones.
func (r *BillingRepository) ListServices(ctx context.Context, activeOnly bool) ([]models.BillableService, error) {
	query := "SELECT id, name, unit_price, description, active, created_at FROM services"
	if activeOnly {
		query += " WHERE active = true"
	}
	query += " ORDER BY name"

	var services []models.BillableService
	if err := r.db.SelectContext(ctx, &services, query); err != nil {
		return nil, fmt.Errorf("list services: %w", err)
	}
	return services, nil
}

// FindServiceByID fetches one billable service.
func (r *BillingRepository) FindServiceByID(ctx context.Context, id string) (*models.BillableService, error) {
	var service models.BillableService
	err := r.db.GetContext(ctx, &service,
		"SELECT id, name, unit_price, description, active, created_at FROM services WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	return &service, nil
}

// CreateService inserts a billable service.
func (r *BillingRepository) CreateService(ctx context.Context, service *models.BillableService) error {
	if service.ID == "" {
		service.ID = uuid.NewString()
	}
	service.CreatedAt = time.Now().UTC()

	const query = `INSERT INTO services (id, name, unit_price, description, active, created_at)
		VALUES (:id, :name, :unit_price, :description, :active, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, service); err != nil {
		return fmt.Errorf("create service: %w", err)
	}
	return nil
}

// UpdateService modifies a billable service.
func (r *BillingRepository) UpdateService(ctx context.Context, service *models.BillableService) error {
	const query = `UPDATE services SET name = :name, unit_price = :unit_price, description = :description, active = :active WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, service); err != nil {
		return fmt.Errorf("update service: %w", err)
	}
	return nil
}

// ListInvoices returns invoices matching filters along with total count.
func (r *BillingRepository) ListInvoices(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error) {
	base := "FROM invoices WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.PatientID != "" {
		conditions = append(conditions, fmt.Sprintf("patient_id = $%d", len(args)+1))
		args = append(args, filter.PatientID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT id, patient_id, status, total, transaction_id, notes, issued_at, updated_at %s ORDER BY issued_at DESC LIMIT %d OFFSET %d", base, size, offset)
	var invoices []models.Invoice
	if err := r.db.SelectContext(ctx, &invoices, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	return invoices, total, nil
}

// FindInvoiceByID fetches an invoice with its items.
func (r *BillingRepository) FindInvoiceByID(ctx context.Context, id string) (*models.InvoiceDetail, error) {
	var invoice models.Invoice
	err := r.db.GetContext(ctx, &invoice,
		"SELECT id, patient_id, status, total, transaction_id, notes, issued_at, updated_at FROM invoices WHERE id = $1", id)
	if err != nil {
		return nil, err
	}

	var items []models.InvoiceItem
	err = r.db.SelectContext(ctx, &items,
		"SELECT id, invoice_id, service_id, quantity, unit_price, subtotal FROM invoice_items WHERE invoice_id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("list invoice items: %w", err)
	}

	return &models.InvoiceDetail{Invoice: invoice, Items: items}, nil
}

// CreateInvoice inserts a pending invoice with no items.
func (r *BillingRepository) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	if invoice.ID == "" {
		invoice.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	invoice.IssuedAt = now
	invoice.UpdatedAt = now

	const query = `INSERT INTO invoices (id, patient_id, status, total, transaction_id, notes, issued_at, updated_at)
		VALUES (:id, :patient_id, :status, :total, :transaction_id, :notes, :issued_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, invoice); err != nil {
		return fmt.Errorf("create invoice: %w", err)
	}
	return nil
}

// AddItem appends an item to a pending invoice and recomputes the total in
// the same transaction. Returns false when the invoice is not pending.
func (r *BillingRepository) AddItem(ctx context.Context, item *models.InvoiceItem) (added bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin add item: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var status models.InvoiceStatus
	err = tx.GetContext(ctx, &status,
		`SELECT status FROM invoices WHERE id = $1 FOR UPDATE`, item.InvoiceID)
	if err != nil {
		return false, err
	}
	if status != models.InvoicePending {
		tx.Rollback()
		return false, nil
	}

	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	item.Subtotal = item.UnitPrice * float64(item.Quantity)

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO invoice_items (id, invoice_id, service_id, quantity, unit_price, subtotal) VALUES ($1, $2, $3, $4, $5, $6)`,
		item.ID, item.InvoiceID, item.ServiceID, item.Quantity, item.UnitPrice, item.Subtotal); err != nil {
		return false, fmt.Errorf("insert invoice item: %w", err)
	}

	if err = r.refreshTotal(ctx, tx, item.InvoiceID); err != nil {
		return false, err
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit add item: %w", err)
	}
	return true, nil
}

// RemoveItem deletes an item from a pending invoice and recomputes the
// total. Returns false when the invoice is not pending.
func (r *BillingRepository) RemoveItem(ctx context.Context, invoiceID, itemID string) (removed bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin remove item: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var status models.InvoiceStatus
	err = tx.GetContext(ctx, &status,
		`SELECT status FROM invoices WHERE id = $1 FOR UPDATE`, invoiceID)
	if err != nil {
		return false, err
	}
	if status != models.InvoicePending {
		tx.Rollback()
		return false, nil
	}

	result, err := tx.ExecContext(ctx,
		`DELETE FROM invoice_items WHERE id = $1 AND invoice_id = $2`, itemID, invoiceID)
	if err != nil {
		return false, fmt.Errorf("delete invoice item: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete invoice item rows: %w", err)
	}
	if rows == 0 {
		tx.Rollback()
		return false, sql.ErrNoRows
	}

	if err = r.refreshTotal(ctx, tx, invoiceID); err != nil {
		return false, err
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit remove item: %w", err)
	}
	return true, nil
}

func (r *BillingRepository) refreshTotal(ctx context.Context, tx *sqlx.Tx, invoiceID string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE invoices SET total = (SELECT COALESCE(SUM(subtotal), 0) FROM invoice_items WHERE invoice_id = $1), updated_at = $2 WHERE id = $1`,
		invoiceID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("refresh invoice total: %w", err)
	}
	return nil
}

// Pay marks a pending invoice as paid and records the payment transaction
// atomically. The invoice update is conditional on it still being pending.
// Returns false when the invoice already left pending state.
func (r *BillingRepository) Pay(ctx context.Context, invoiceID string, txn *models.Transaction) (paid bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin pay: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if txn.ID == "" {
		txn.ID = uuid.NewString()
	}
	txn.OccurredAt = time.Now().UTC()

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO transactions (id, patient_id, amount, type, payment_method_id, reference, status, description, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		txn.ID, txn.PatientID, txn.Amount, txn.Type, txn.PaymentMethodID, txn.Reference, txn.Status, txn.Description, txn.OccurredAt); err != nil {
		return false, fmt.Errorf("insert transaction: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE invoices SET status = 'paid', transaction_id = $2, updated_at = $3 WHERE id = $1 AND status = 'pending'`,
		invoiceID, txn.ID, txn.OccurredAt)
	if err != nil {
		return false, fmt.Errorf("mark invoice paid: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark invoice paid rows: %w", err)
	}
	if rows == 0 {
		tx.Rollback()
		return false, nil
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit pay: %w", err)
	}
	return true, nil
}

// VoidInvoice cancels a pending invoice. Paid invoices cannot be voided or
// deleted; the conditional update enforces that. Returns false when the
// invoice is not pending.
func (r *BillingRepository) VoidInvoice(ctx context.Context, invoiceID string) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE invoices SET status = 'void', updated_at = $2 WHERE id = $1 AND status = 'pending'`,
		invoiceID, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("void invoice: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("void invoice rows: %w", err)
	}
	return rows == 1, nil
}

// RevenueSince sums completed income transactions from a point in time.
func (r *BillingRepository) RevenueSince(ctx context.Context, since time.Time) (float64, error) {
	var revenue float64
	err := r.db.GetContext(ctx, &revenue,
		`SELECT COALESCE(SUM(amount), 0) FROM transactions WHERE type = 'income' AND status = 'completed' AND occurred_at >= $1`,
		since)
	if err != nil {
		return 0, fmt.Errorf("revenue since: %w", err)
	}
	return revenue, nil
}

// ListTransactions returns transactions for a patient, newest first.
func (r *BillingRepository) ListTransactions(ctx context.Context, patientID string) ([]models.Transaction, error) {
	const query = `SELECT id, patient_id, amount, type, payment_method_id, reference, status, description, occurred_at
		FROM transactions WHERE patient_id = $1 ORDER BY occurred_at DESC`
	var txns []models.Transaction
	if err := r.db.SelectContext(ctx, &txns, query, patientID); err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txns, nil
}

// ListPaymentMethods returns active payment methods.
func (r *BillingRepository) ListPaymentMethods(ctx context.Context) ([]models.PaymentMethod, error) {
	var methods []models.PaymentMethod
	if err := r.db.SelectContext(ctx, &methods,
		"SELECT id, name, active FROM payment_methods WHERE active = true ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list payment methods: %w", err)
	}
	return methods, nil
}
