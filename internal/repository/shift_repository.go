package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sanvida/hms-api/internal/models"
)

// ShiftRepository manages persisted shift assignments. Computed rotation
// cells are never stored; only generated rows and manual overrides are.
type ShiftRepository struct {
	db *sqlx.DB
}

// NewShiftRepository constructs a ShiftRepository.
func NewShiftRepository(db *sqlx.DB) *ShiftRepository {
	return &ShiftRepository{db: db}
}

const shiftColumns = "id, employee_id, shift_date, start_time, end_time, manual, created_at, updated_at"

// FindByEmployeeAndDate returns the shift row for one (employee, date) pair.
func (r *ShiftRepository) FindByEmployeeAndDate(ctx context.Context, employeeID string, date time.Time) (*models.ShiftAssignment, error) {
	query := fmt.Sprintf("SELECT %s FROM shift_assignments WHERE employee_id = $1 AND shift_date = $2", shiftColumns)
	var shift models.ShiftAssignment
	if err := r.db.GetContext(ctx, &shift, query, employeeID, date); err != nil {
		return nil, err
	}
	return &shift, nil
}

// ListByEmployeeMonth returns every stored shift for an employee in a month.
func (r *ShiftRepository) ListByEmployeeMonth(ctx context.Context, employeeID string, year int, month time.Month) ([]models.ShiftAssignment, error) {
	query := fmt.Sprintf(`SELECT %s FROM shift_assignments
		WHERE employee_id = $1 AND shift_date >= $2 AND shift_date < $3
		ORDER BY shift_date`, shiftColumns)
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	var shifts []models.ShiftAssignment
	if err := r.db.SelectContext(ctx, &shifts, query, employeeID, start, end); err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	return shifts, nil
}

// FindByID fetches a shift assignment by ID.
func (r *ShiftRepository) FindByID(ctx context.Context, id string) (*models.ShiftAssignment, error) {
	query := fmt.Sprintf("SELECT %s FROM shift_assignments WHERE id = $1", shiftColumns)
	var shift models.ShiftAssignment
	if err := r.db.GetContext(ctx, &shift, query, id); err != nil {
		return nil, err
	}
	return &shift, nil
}

// Upsert inserts or refreshes the shift row keyed on (employee, date) so
// re-running bulk generation for a week stays idempotent per date. A row
// edited by hand is only replaced by another manual write.
func (r *ShiftRepository) Upsert(ctx context.Context, shift *models.ShiftAssignment) error {
	if shift.ID == "" {
		shift.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if shift.CreatedAt.IsZero() {
		shift.CreatedAt = now
	}
	shift.UpdatedAt = now

	const query = `INSERT INTO shift_assignments (id, employee_id, shift_date, start_time, end_time, manual, created_at, updated_at)
		VALUES (:id, :employee_id, :shift_date, :start_time, :end_time, :manual, :created_at, :updated_at)
		ON CONFLICT (employee_id, shift_date)
		DO UPDATE SET start_time = EXCLUDED.start_time, end_time = EXCLUDED.end_time, manual = EXCLUDED.manual, updated_at = EXCLUDED.updated_at
		WHERE shift_assignments.manual = FALSE OR EXCLUDED.manual = TRUE`
	if _, err := r.db.NamedExecContext(ctx, query, shift); err != nil {
		return fmt.Errorf("upsert shift: %w", err)
	}
	return nil
}

// Update modifies a single shift row.
func (r *ShiftRepository) Update(ctx context.Context, shift *models.ShiftAssignment) error {
	shift.UpdatedAt = time.Now().UTC()
	const query = `UPDATE shift_assignments SET start_time = :start_time, end_time = :end_time, manual = :manual, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, shift)
	if err != nil {
		return fmt.Errorf("update shift: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a shift row.
func (r *ShiftRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM shift_assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete shift: %w", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
