package models

import "time"

// TransactionType enumerates money movement directions.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
	TransactionRefund  TransactionType = "refund"
)

// TransactionStatus enumerates settlement states.
type TransactionStatus string

const (
	TransactionCompleted TransactionStatus = "completed"
	TransactionPending   TransactionStatus = "pending"
	TransactionFailed    TransactionStatus = "failed"
	TransactionCancelled TransactionStatus = "cancelled"
)

// PaymentMethod is an enumerated payment channel row.
type PaymentMethod struct {
	ID     string `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	Active bool   `db:"active" json:"active"`
}

// Transaction records a money movement, usually created when an invoice is
// paid.
type Transaction struct {
	ID              string            `db:"id" json:"id"`
	PatientID       *string           `db:"patient_id" json:"patient_id,omitempty"`
	Amount          float64           `db:"amount" json:"amount"`
	Type            TransactionType   `db:"type" json:"type"`
	PaymentMethodID string            `db:"payment_method_id" json:"payment_method_id"`
	Reference       *string           `db:"reference" json:"reference,omitempty"`
	Status          TransactionStatus `db:"status" json:"status"`
	Description     *string           `db:"description" json:"description,omitempty"`
	OccurredAt      time.Time         `db:"occurred_at" json:"occurred_at"`
}
