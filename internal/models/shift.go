package models

import "time"

// ShiftAssignment is one concrete shift row for one employee on one date.
// A row with both times null records a manually entered rest day.
type ShiftAssignment struct {
	ID         string    `db:"id" json:"id"`
	EmployeeID string    `db:"employee_id" json:"employee_id"`
	Date       time.Time `db:"shift_date" json:"date"`
	StartTime  *string   `db:"start_time" json:"start_time,omitempty"`
	EndTime    *string   `db:"end_time" json:"end_time,omitempty"`
	Manual     bool      `db:"manual" json:"manual"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// ShiftDay is one resolved calendar day for an employee. Stored rows take
// precedence over the computed rotation; Source records which one won.
type ShiftDay struct {
	Date      time.Time `json:"date"`
	StartTime *string   `json:"start_time,omitempty"`
	EndTime   *string   `json:"end_time,omitempty"`
	Rest      bool      `json:"rest"`
	Manual    bool      `json:"manual"`
	Source    string    `json:"source"`
}

// ShiftDay sources.
const (
	ShiftSourceManual    = "manual"
	ShiftSourceGenerated = "generated"
	ShiftSourceComputed  = "computed"
)

// ShiftFilter describes query params for listing shift assignments.
type ShiftFilter struct {
	EmployeeID string
	Year       int
	Month      int
	Page       int
	PageSize   int
}
