package models

import "time"

// ClaimStatus enumerates the insurance claim lifecycle.
type ClaimStatus string

const (
	ClaimSubmitted ClaimStatus = "submitted"
	ClaimInReview  ClaimStatus = "in_review"
	ClaimApproved  ClaimStatus = "approved"
	ClaimDenied    ClaimStatus = "denied"
	ClaimPaid      ClaimStatus = "paid"
)

// claimTransitions mirrors the appointment pattern: one table, one check.
var claimTransitions = map[ClaimStatus][]ClaimStatus{
	ClaimSubmitted: {ClaimInReview, ClaimApproved, ClaimDenied},
	ClaimInReview:  {ClaimApproved, ClaimDenied},
	ClaimApproved:  {ClaimPaid},
}

// CanTransitionClaim reports whether a claim status change is legal.
func CanTransitionClaim(from, to ClaimStatus) bool {
	for _, next := range claimTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Insurer is an insurance company the hospital works with.
type Insurer struct {
	ID           string    `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	ContactEmail *string   `db:"contact_email" json:"contact_email,omitempty"`
	ContactPhone *string   `db:"contact_phone" json:"contact_phone,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

// InsurancePlan is one plan offered by an insurer. (insurer, name) is unique.
type InsurancePlan struct {
	ID              string    `db:"id" json:"id"`
	InsurerID       string    `db:"insurer_id" json:"insurer_id"`
	Name            string    `db:"name" json:"name"`
	CoveragePercent float64   `db:"coverage_percent" json:"coverage_percent"`
	Deductible      float64   `db:"deductible" json:"deductible"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Claim is a payment request to an insurer for services rendered.
type Claim struct {
	ID             string      `db:"id" json:"id"`
	PatientID      string      `db:"patient_id" json:"patient_id"`
	PlanID         string      `db:"plan_id" json:"plan_id"`
	ServiceDate    time.Time   `db:"service_date" json:"service_date"`
	AmountClaimed  float64     `db:"amount_claimed" json:"amount_claimed"`
	AmountApproved *float64    `db:"amount_approved" json:"amount_approved,omitempty"`
	Status         ClaimStatus `db:"status" json:"status"`
	CreatedAt      time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at" json:"updated_at"`
}

// ClaimFilter describes query params for listing claims.
type ClaimFilter struct {
	PatientID string
	Status    *ClaimStatus
	Pending   bool
	Page      int
	PageSize  int
}
