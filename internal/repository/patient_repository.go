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

// PatientRepository manages persistence for patients and their clinical
// records (anamnesis and diagnoses).
type PatientRepository struct {
	db *sqlx.DB
}

// NewPatientRepository constructs a PatientRepository.
func NewPatientRepository(db *sqlx.DB) *PatientRepository {
	return &PatientRepository{db: db}
}

const patientColumns = "id, national_id, first_name, last_name, second_last_name, birth_date, gender, phone, address, registered_at, updated_at"

// List returns patients matching filters along with total count.
func (r *PatientRepository) List(ctx context.Context, filter models.PatientFilter) ([]models.Patient, int, error) {
	base := "FROM patients WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(first_name ILIKE $%d OR last_name ILIKE $%d OR national_id ILIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	allowedSorts := map[string]string{
		"last_name":     "last_name",
		"registered_at": "registered_at",
		"birth_date":    "birth_date",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "last_name"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", patientColumns, base, column, order, size, offset)
	var patients []models.Patient
	if err := r.db.SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}

	return patients, total, nil
}

// FindByID fetches a patient by ID.
func (r *PatientRepository) FindByID(ctx context.Context, id string) (*models.Patient, error) {
	query := fmt.Sprintf("SELECT %s FROM patients WHERE id = $1", patientColumns)
	var patient models.Patient
	if err := r.db.GetContext(ctx, &patient, query, id); err != nil {
		return nil, err
	}
	return &patient, nil
}

// FindByNationalID fetches a patient by national identity number.
func (r *PatientRepository) FindByNationalID(ctx context.Context, nationalID string) (*models.Patient, error) {
	query := fmt.Sprintf("SELECT %s FROM patients WHERE national_id = $1", patientColumns)
	var patient models.Patient
	if err := r.db.GetContext(ctx, &patient, query, nationalID); err != nil {
		return nil, err
	}
	return &patient, nil
}

// Create inserts a new patient.
func (r *PatientRepository) Create(ctx context.Context, patient *models.Patient) error {
	if patient.ID == "" {
		patient.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	patient.RegisteredAt = now
	patient.UpdatedAt = now

	const query = `INSERT INTO patients (id, national_id, first_name, last_name, second_last_name, birth_date, gender, phone, address, registered_at, updated_at)
		VALUES (:id, :national_id, :first_name, :last_name, :second_last_name, :birth_date, :gender, :phone, :address, :registered_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, patient); err != nil {
		return fmt.Errorf("create patient: %w", err)
	}
	return nil
}

// Update modifies a patient's demographic fields.
func (r *PatientRepository) Update(ctx context.Context, patient *models.Patient) error {
	patient.UpdatedAt = time.Now().UTC()
	const query = `UPDATE patients SET national_id = :national_id, first_name = :first_name, last_name = :last_name, second_last_name = :second_last_name, birth_date = :birth_date, gender = :gender, phone = :phone, address = :address, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, patient); err != nil {
		return fmt.Errorf("update patient: %w", err)
	}
	return nil
}

// Count returns the total number of registered patients.
func (r *PatientRepository) Count(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM patients"); err != nil {
		return 0, fmt.Errorf("count patients: %w", err)
	}
	return total, nil
}

// CreateAnamnesis appends a clinical history entry for a patient.
func (r *PatientRepository) CreateAnamnesis(ctx context.Context, entry *models.Anamnesis) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.RecordedAt = time.Now().UTC()

	const query = `INSERT INTO anamnesis (id, patient_id, chief_complaint, vital_signs, present_illness, pathologic_history, non_pathologic_history, obstetric_history, family_history, recorded_at)
		VALUES (:id, :patient_id, :chief_complaint, :vital_signs, :present_illness, :pathologic_history, :non_pathologic_history, :obstetric_history, :family_history, :recorded_at)`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create anamnesis: %w", err)
	}
	return nil
}

// ListAnamnesis returns all history entries for a patient, newest first.
func (r *PatientRepository) ListAnamnesis(ctx context.Context, patientID string) ([]models.Anamnesis, error) {
	const query = `SELECT id, patient_id, chief_complaint, vital_signs, present_illness, pathologic_history, non_pathologic_history, obstetric_history, family_history, recorded_at
		FROM anamnesis WHERE patient_id = $1 ORDER BY recorded_at DESC`
	var entries []models.Anamnesis
	if err := r.db.SelectContext(ctx, &entries, query, patientID); err != nil {
		return nil, fmt.Errorf("list anamnesis: %w", err)
	}
	return entries, nil
}

// CreateDiagnosis records a diagnosis for a patient.
func (r *PatientRepository) CreateDiagnosis(ctx context.Context, diagnosis *models.Diagnosis) error {
	if diagnosis.ID == "" {
		diagnosis.ID = uuid.NewString()
	}

	const query = `INSERT INTO diagnoses (id, patient_id, description, specialty, treatment, start_date, end_date)
		VALUES (:id, :patient_id, :description, :specialty, :treatment, :start_date, :end_date)`
	if _, err := r.db.NamedExecContext(ctx, query, diagnosis); err != nil {
		return fmt.Errorf("create diagnosis: %w", err)
	}
	return nil
}

// ListDiagnoses returns all diagnoses for a patient, most recent first.
func (r *PatientRepository) ListDiagnoses(ctx context.Context, patientID string) ([]models.Diagnosis, error) {
	const query = `SELECT id, patient_id, description, specialty, treatment, start_date, end_date
		FROM diagnoses WHERE patient_id = $1 ORDER BY start_date DESC`
	var diagnoses []models.Diagnosis
	if err := r.db.SelectContext(ctx, &diagnoses, query, patientID); err != nil {
		return nil, fmt.Errorf("list diagnoses: %w", err)
	}
	return diagnoses, nil
}

// CloseDiagnosis sets the end date on an open diagnosis.
func (r *PatientRepository) CloseDiagnosis(ctx context.Context, id string, endDate time.Time) error {
	result, err := r.db.ExecContext(ctx, `UPDATE diagnoses SET end_date = $2 WHERE id = $1 AND end_date IS NULL`, id, endDate)
	if err != nil {
		return fmt.Errorf("close diagnosis: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("close diagnosis rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
