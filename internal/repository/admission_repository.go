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

// AdmissionRepository manages bed assignments and the hospitalization
// waitlist. Bed claims run inside a single transaction so the bed state,
// the assignment row and the waitlist removal commit or roll back together.
type AdmissionRepository struct {
	db *sqlx.DB
}

// NewAdmissionRepository constructs an AdmissionRepository.
func NewAdmissionRepository(db *sqlx.DB) *AdmissionRepository {
	return &AdmissionRepository{db: db}
}

// Admit claims an available bed for a patient. The bed update is
// conditional on the bed still being available; when another admission won
// the race the transaction rolls back and claimed is false. A waitlist
// entry for the patient, if present, is consumed in the same transaction.
func (r *AdmissionRepository) Admit(ctx context.Context, patientID, bedID string) (assignment *models.BedAssignment, claimed bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin admit: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	result, err := tx.ExecContext(ctx,
		`UPDATE beds SET status = 'occupied', updated_at = $2 WHERE id = $1 AND status = 'available'`,
		bedID, now)
	if err != nil {
		return nil, false, fmt.Errorf("claim bed: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("claim bed rows: %w", err)
	}
	if rows == 0 {
		tx.Rollback()
		return nil, false, nil
	}

	assignment = &models.BedAssignment{
		ID:         uuid.NewString(),
		PatientID:  patientID,
		BedID:      bedID,
		AdmittedAt: now,
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO bed_assignments (id, patient_id, bed_id, admitted_at) VALUES ($1, $2, $3, $4)`,
		assignment.ID, assignment.PatientID, assignment.BedID, assignment.AdmittedAt); err != nil {
		return nil, false, fmt.Errorf("insert assignment: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`DELETE FROM waitlist WHERE patient_id = $1`, patientID); err != nil {
		return nil, false, fmt.Errorf("consume waitlist: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit admit: %w", err)
	}
	return assignment, true, nil
}

// Discharge closes the open assignment and moves the bed to cleaning, in
// one transaction. Returns sql.ErrNoRows when no open assignment exists.
func (r *AdmissionRepository) Discharge(ctx context.Context, assignmentID string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin discharge: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	var bedID string
	err = tx.GetContext(ctx, &bedID,
		`UPDATE bed_assignments SET discharged_at = $2 WHERE id = $1 AND discharged_at IS NULL RETURNING bed_id`,
		assignmentID, now)
	if err != nil {
		if err == sql.ErrNoRows {
			tx.Rollback()
			return sql.ErrNoRows
		}
		return fmt.Errorf("close assignment: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE beds SET status = 'cleaning', updated_at = $2 WHERE id = $1 AND status = 'occupied'`,
		bedID, now); err != nil {
		return fmt.Errorf("release bed: %w", err)
	}

	return tx.Commit()
}

// FindAssignmentByID fetches one assignment.
func (r *AdmissionRepository) FindAssignmentByID(ctx context.Context, id string) (*models.BedAssignment, error) {
	var assignment models.BedAssignment
	err := r.db.GetContext(ctx, &assignment,
		`SELECT id, patient_id, bed_id, admitted_at, discharged_at FROM bed_assignments WHERE id = $1`, id)
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

// OpenAssignmentForPatient returns the patient's current assignment, if any.
func (r *AdmissionRepository) OpenAssignmentForPatient(ctx context.Context, patientID string) (*models.BedAssignment, error) {
	var assignment models.BedAssignment
	err := r.db.GetContext(ctx, &assignment,
		`SELECT id, patient_id, bed_id, admitted_at, discharged_at FROM bed_assignments WHERE patient_id = $1 AND discharged_at IS NULL`, patientID)
	if err != nil {
		return nil, err
	}
	return &assignment, nil
}

// ListAdmitted returns current admissions with patient and bed context.
func (r *AdmissionRepository) ListAdmitted(ctx context.Context) ([]models.BedAssignmentDetail, error) {
	const query = `SELECT ba.id, ba.patient_id, ba.bed_id, ba.admitted_at, ba.discharged_at,
			p.first_name || ' ' || p.last_name AS patient_name,
			b.code AS bed_code, r.room_number, r.department
		FROM bed_assignments ba
		JOIN patients p ON p.id = ba.patient_id
		JOIN beds b ON b.id = ba.bed_id
		JOIN rooms r ON r.id = b.room_id
		WHERE ba.discharged_at IS NULL
		ORDER BY ba.admitted_at`
	var admitted []models.BedAssignmentDetail
	if err := r.db.SelectContext(ctx, &admitted, query); err != nil {
		return nil, fmt.Errorf("list admitted: %w", err)
	}
	return admitted, nil
}

// Enqueue inserts a waitlist entry for a patient.
func (r *AdmissionRepository) Enqueue(ctx context.Context, entry *models.WaitlistEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.RegisteredAt = time.Now().UTC()

	const query = `INSERT INTO waitlist (id, patient_id, department, registered_at)
		VALUES (:id, :patient_id, :department, :registered_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("enqueue waitlist: %w", err)
	}
	return nil
}

// Waitlist returns pending entries for a department, oldest first.
func (r *AdmissionRepository) Waitlist(ctx context.Context, department string) ([]models.WaitlistDetail, error) {
	query := `SELECT w.id, w.patient_id, w.department, w.registered_at,
			p.first_name || ' ' || p.last_name AS patient_name
		FROM waitlist w
		JOIN patients p ON p.id = w.patient_id`
	var args []interface{}
	if department != "" {
		query += " WHERE w.department = $1"
		args = append(args, department)
	}
	query += " ORDER BY w.registered_at"

	var entries []models.WaitlistDetail
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}
	return entries, nil
}

// RemoveFromWaitlist deletes a waitlist entry by ID.
func (r *AdmissionRepository) RemoveFromWaitlist(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM waitlist WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("remove waitlist entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove waitlist rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CountAdmitted returns the number of patients currently admitted.
func (r *AdmissionRepository) CountAdmitted(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM bed_assignments WHERE discharged_at IS NULL`); err != nil {
		return 0, fmt.Errorf("count admitted: %w", err)
	}
	return count, nil
}
