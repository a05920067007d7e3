package models

import "time"

// EmployeeStatus enumerates employment states. Rotation logic never hard
// deletes an employee; they are moved to inactive instead.
type EmployeeStatus string

const (
	EmployeeActive   EmployeeStatus = "active"
	EmployeeInactive EmployeeStatus = "inactive"
	EmployeeVacation EmployeeStatus = "vacation"
)

// Employee represents a staff member.
//
// BadgeNumber is a small sequential integer issued at hire time; the shift
// rotation's rest-day round robin is keyed on it.
type Employee struct {
	ID            string         `db:"id" json:"id"`
	BadgeNumber   int            `db:"badge_number" json:"badge_number"`
	FirstName     string         `db:"first_name" json:"first_name"`
	LastName      string         `db:"last_name" json:"last_name"`
	Role          string         `db:"role" json:"role"`
	Department    *string        `db:"department" json:"department,omitempty"`
	Phone         *string        `db:"phone" json:"phone,omitempty"`
	Status        EmployeeStatus `db:"status" json:"status"`
	RotationGroup *string        `db:"rotation_group" json:"rotation_group,omitempty"`
	UserID        *string        `db:"user_id" json:"user_id,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// EmployeeFilter captures filtering options for listing employees.
type EmployeeFilter struct {
	Search     string
	Role       string
	Department string
	Group      string
	Status     *EmployeeStatus
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
