package models

import "time"

// InvoiceStatus enumerates invoice states.
type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "pending"
	InvoicePaid    InvoiceStatus = "paid"
	InvoiceVoid    InvoiceStatus = "void"
)

// BillableService is a catalog item that can appear on invoices.
type BillableService struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	UnitPrice   float64   `db:"unit_price" json:"unit_price"`
	Description *string   `db:"description" json:"description,omitempty"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Invoice groups billed line items for a patient.
type Invoice struct {
	ID            string        `db:"id" json:"id"`
	PatientID     string        `db:"patient_id" json:"patient_id"`
	Status        InvoiceStatus `db:"status" json:"status"`
	Total         float64       `db:"total" json:"total"`
	TransactionID *string       `db:"transaction_id" json:"transaction_id,omitempty"`
	Notes         *string       `db:"notes" json:"notes,omitempty"`
	IssuedAt      time.Time     `db:"issued_at" json:"issued_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// InvoiceItem is one line on an invoice. UnitPrice snapshots the catalog
// price at billing time.
type InvoiceItem struct {
	ID        string  `db:"id" json:"id"`
	InvoiceID string  `db:"invoice_id" json:"invoice_id"`
	ServiceID string  `db:"service_id" json:"service_id"`
	Quantity  int     `db:"quantity" json:"quantity"`
	UnitPrice float64 `db:"unit_price" json:"unit_price"`
	Subtotal  float64 `db:"subtotal" json:"subtotal"`
}

// InvoiceDetail bundles an invoice with its items.
type InvoiceDetail struct {
	Invoice
	Items []InvoiceItem `json:"items"`
}

// InvoiceFilter describes query params for listing invoices.
type InvoiceFilter struct {
	PatientID string
	Status    *InvoiceStatus
	Page      int
	PageSize  int
}
