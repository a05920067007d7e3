package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sanvida/hms-api/internal/models"
)

// InsuranceRepository manages insurers, plans and claims.
type InsuranceRepository struct {
	db *sqlx.DB
}

// NewInsuranceRepository constructs an InsuranceRepository.
func NewInsuranceRepository(db *sqlx.DB) *InsuranceRepository {
	return &InsuranceRepository{db: db}
}

// ListInsurers returns all insurers ordered by name.
func (r *InsuranceRepository) ListInsurers(ctx context.Context) ([]models.Insurer, error) {
	var insurers []models.Insurer
	if err := r.db.SelectContext(ctx, &insurers,
		"SELECT id, name, contact_email, contact_phone, created_at FROM insurers ORDER BY name"); err != nil {
		return nil, fmt.Errorf("list insurers: %w", err)
	}
	return insurers, nil
}

// CreateInsurer inserts an insurer.
func (r *InsuranceRepository) CreateInsurer(ctx context.Context, insurer *models.Insurer) error {
	if insurer.ID == "" {
		insurer.ID = uuid.NewString()
	}
	insurer.CreatedAt = time.Now().UTC()

	const query = `INSERT INTO insurers (id, name, contact_email, contact_phone, created_at)
		VALUES (:id, :name, :contact_email, :contact_phone, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, insurer); err != nil {
		return fmt.Errorf("create insurer: %w", err)
	}
	return nil
}

// ListPlans returns the plans offered by one insurer.
func (r *InsuranceRepository) ListPlans(ctx context.Context, insurerID string) ([]models.InsurancePlan, error) {
	var plans []models.InsurancePlan
	if err := r.db.SelectContext(ctx, &plans,
		"SELECT id, insurer_id, name, coverage_percent, deductible, created_at FROM insurance_plans WHERE insurer_id = $1 ORDER BY name",
		insurerID); err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	return plans, nil
}

// FindPlanByID fetches one plan.
func (r *InsuranceRepository) FindPlanByID(ctx context.Context, id string) (*models.InsurancePlan, error) {
	var plan models.InsurancePlan
	err := r.db.GetContext(ctx, &plan,
		"SELECT id, insurer_id, name, coverage_percent, deductible, created_at FROM insurance_plans WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	return &plan, nil
}

// CreatePlan inserts an insurance plan.
func (r *InsuranceRepository) CreatePlan(ctx context.Context, plan *models.InsurancePlan) error {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	plan.CreatedAt = time.Now().UTC()

	const query = `INSERT INTO insurance_plans (id, insurer_id, name, coverage_percent, deductible, created_at)
		VALUES (:id, :insurer_id, :name, :coverage_percent, :deductible, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, plan); err != nil {
		return fmt.Errorf("create plan: %w", err)
	}
	return nil
}

// ListClaims returns claims matching filters along with total count.
func (r *InsuranceRepository) ListClaims(ctx context.Context, filter models.ClaimFilter) ([]models.Claim, int, error) {
	base := "FROM claims WHERE 1=1"
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
	if filter.Pending {
		conditions = append(conditions, "status IN ('submitted', 'in_review')")
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

	query := fmt.Sprintf("SELECT id, patient_id, plan_id, service_date, amount_claimed, amount_approved, status, created_at, updated_at %s ORDER BY created_at DESC LIMIT %d OFFSET %d", base, size, offset)
	var claims []models.Claim
	if err := r.db.SelectContext(ctx, &claims, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list claims: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count claims: %w", err)
	}

	return claims, total, nil
}

// FindClaimByID fetches one claim.
func (r *InsuranceRepository) FindClaimByID(ctx context.Context, id string) (*models.Claim, error) {
	var claim models.Claim
	err := r.db.GetContext(ctx, &claim,
		"SELECT id, patient_id, plan_id, service_date, amount_claimed, amount_approved, status, created_at, updated_at FROM claims WHERE id = $1", id)
	if err != nil {
		return nil, err
	}
	return &claim, nil
}

// CreateClaim inserts a claim in submitted state.
func (r *InsuranceRepository) CreateClaim(ctx context.Context, claim *models.Claim) error {
	if claim.ID == "" {
		claim.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	claim.CreatedAt = now
	claim.UpdatedAt = now

	const query = `INSERT INTO claims (id, patient_id, plan_id, service_date, amount_claimed, amount_approved, status, created_at, updated_at)
		VALUES (:id, :patient_id, :plan_id, :service_date, :amount_claimed, :amount_approved, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, claim); err != nil {
		return fmt.Errorf("create claim: %w", err)
	}
	return nil
}

// TransitionClaim moves a claim between states with a conditional update,
// optionally setting the approved amount. Returns false when the claim was
// no longer in the expected state.
func (r *InsuranceRepository) TransitionClaim(ctx context.Context, id string, from, to models.ClaimStatus, amountApproved *float64) (bool, error) {
	const query = `UPDATE claims
		SET status = $3,
			amount_approved = COALESCE($4, amount_approved),
			updated_at = $5
		WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, from, to, amountApproved, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("transition claim: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition claim rows: %w", err)
	}
	return rows == 1, nil
}

// CountClaimsByStatus returns claim counts per status, for the dashboard.
func (r *InsuranceRepository) CountClaimsByStatus(ctx context.Context) (map[models.ClaimStatus]int, error) {
	rows, err := r.db.QueryxContext(ctx, "SELECT status, COUNT(*) FROM claims GROUP BY status")
	if err != nil {
		return nil, fmt.Errorf("count claims by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.ClaimStatus]int)
	for rows.Next() {
		var status models.ClaimStatus
		var total int
		if err := rows.Scan(&status, &total); err != nil {
			return nil, fmt.Errorf("scan claim count: %w", err)
		}
		counts[status] = total
	}
	return counts, rows.Err()
}
