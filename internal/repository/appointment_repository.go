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

// AppointmentRepository manages persistence for appointments and the
// per-department ticket counters.
type AppointmentRepository struct {
	db *sqlx.DB
}

// NewAppointmentRepository constructs an AppointmentRepository.
func NewAppointmentRepository(db *sqlx.DB) *AppointmentRepository {
	return &AppointmentRepository{db: db}
}

const appointmentColumns = "id, patient_id, doctor_id, appointment_date, appointment_time, status, priority, ticket_number, started_at, ended_at, rating, created_at, updated_at"

// List returns appointments matching filters along with total count.
func (r *AppointmentRepository) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error) {
	base := "FROM appointments WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.DoctorID != "" {
		conditions = append(conditions, fmt.Sprintf("doctor_id = $%d", len(args)+1))
		args = append(args, filter.DoctorID)
	}
	if filter.PatientID != "" {
		conditions = append(conditions, fmt.Sprintf("patient_id = $%d", len(args)+1))
		args = append(args, filter.PatientID)
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Date != nil {
		conditions = append(conditions, fmt.Sprintf("appointment_date = $%d", len(args)+1))
		args = append(args, *filter.Date)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	allowedSorts := map[string]string{
		"appointment_date": "appointment_date",
		"priority":         "priority",
		"created_at":       "created_at",
	}
	column, ok := allowedSorts[filter.SortBy]
	if !ok {
		column = "appointment_date"
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

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, appointment_time LIMIT %d OFFSET %d", appointmentColumns, base, column, order, size, offset)
	var appointments []models.Appointment
	if err := r.db.SelectContext(ctx, &appointments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list appointments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count appointments: %w", err)
	}

	return appointments, total, nil
}

// FindByID fetches an appointment by ID.
func (r *AppointmentRepository) FindByID(ctx context.Context, id string) (*models.Appointment, error) {
	query := fmt.Sprintf("SELECT %s FROM appointments WHERE id = $1", appointmentColumns)
	var appointment models.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, id); err != nil {
		return nil, err
	}
	return &appointment, nil
}

// Create inserts a new appointment in pending state.
func (r *AppointmentRepository) Create(ctx context.Context, appointment *models.Appointment) error {
	if appointment.ID == "" {
		appointment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	appointment.CreatedAt = now
	appointment.UpdatedAt = now

	const query = `INSERT INTO appointments (id, patient_id, doctor_id, appointment_date, appointment_time, status, priority, ticket_number, started_at, ended_at, rating, created_at, updated_at)
		VALUES (:id, :patient_id, :doctor_id, :appointment_date, :appointment_time, :status, :priority, :ticket_number, :started_at, :ended_at, :rating, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, appointment); err != nil {
		return fmt.Errorf("create appointment: %w", err)
	}
	return nil
}

// Update modifies schedule fields of an appointment (not its status).
func (r *AppointmentRepository) Update(ctx context.Context, appointment *models.Appointment) error {
	appointment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE appointments SET patient_id = :patient_id, doctor_id = :doctor_id, appointment_date = :appointment_date, appointment_time = :appointment_time, priority = :priority, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, appointment); err != nil {
		return fmt.Errorf("update appointment: %w", err)
	}
	return nil
}

// Transition moves an appointment between states with a conditional update:
// the write only lands when the row is still in the expected state, so a
// concurrent transition loses cleanly instead of overwriting. Returns false
// when no row matched.
func (r *AppointmentRepository) Transition(ctx context.Context, id string, from, to models.AppointmentStatus, ticket *string, startedAt, endedAt *time.Time) (bool, error) {
	const query = `UPDATE appointments
		SET status = $3,
			ticket_number = COALESCE($4, ticket_number),
			started_at = COALESCE($5, started_at),
			ended_at = COALESCE($6, ended_at),
			updated_at = $7
		WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, from, to,
		ticket, startedAt, endedAt, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("transition appointment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition appointment rows: %w", err)
	}
	return rows == 1, nil
}

// SetRating stores the rating. When guardUnrated is true the write is
// conditioned on rating still being null, making first-write-wins explicit.
func (r *AppointmentRepository) SetRating(ctx context.Context, id string, rating int, guardUnrated bool) (bool, error) {
	query := `UPDATE appointments SET rating = $2, updated_at = $3 WHERE id = $1 AND status = 'attended'`
	if guardUnrated {
		query += " AND rating IS NULL"
	}
	result, err := r.db.ExecContext(ctx, query, id, rating, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("rate appointment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rate appointment rows: %w", err)
	}
	return rows == 1, nil
}

// NextTicketNumber atomically advances the per-department counter and
// returns the new value. The single upsert statement replaces the legacy
// count-then-write, which could hand out duplicate tickets under load.
func (r *AppointmentRepository) NextTicketNumber(ctx context.Context, prefix string) (int, error) {
	const query = `INSERT INTO ticket_counters (prefix, value) VALUES ($1, 1)
		ON CONFLICT (prefix) DO UPDATE SET value = ticket_counters.value + 1
		RETURNING value`
	var value int
	if err := r.db.GetContext(ctx, &value, query, prefix); err != nil {
		return 0, fmt.Errorf("next ticket number: %w", err)
	}
	return value, nil
}

// WaitingQueue returns the waiting appointments for one doctor ordered by
// priority first, scheduled time second.
func (r *AppointmentRepository) WaitingQueue(ctx context.Context, doctorID string) ([]models.QueueEntry, error) {
	const query = `SELECT a.id, a.patient_id, a.doctor_id, a.appointment_date, a.appointment_time, a.status, a.priority, a.ticket_number, a.started_at, a.ended_at, a.rating, a.created_at, a.updated_at,
			p.first_name || ' ' || p.last_name AS patient_name,
			e.first_name || ' ' || e.last_name AS doctor_name
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN employees e ON e.id = a.doctor_id
		WHERE a.doctor_id = $1 AND a.status = 'waiting'
		ORDER BY a.priority, a.appointment_time`
	var entries []models.QueueEntry
	if err := r.db.SelectContext(ctx, &entries, query, doctorID); err != nil {
		return nil, fmt.Errorf("waiting queue: %w", err)
	}
	return entries, nil
}

// WaitingBoard returns every waiting appointment ordered by ticket number,
// for the hospital-wide display board.
func (r *AppointmentRepository) WaitingBoard(ctx context.Context) ([]models.QueueEntry, error) {
	const query = `SELECT a.id, a.patient_id, a.doctor_id, a.appointment_date, a.appointment_time, a.status, a.priority, a.ticket_number, a.started_at, a.ended_at, a.rating, a.created_at, a.updated_at,
			p.first_name || ' ' || p.last_name AS patient_name,
			e.first_name || ' ' || e.last_name AS doctor_name
		FROM appointments a
		JOIN patients p ON p.id = a.patient_id
		JOIN employees e ON e.id = a.doctor_id
		WHERE a.status = 'waiting'
		ORDER BY a.ticket_number`
	var entries []models.QueueEntry
	if err := r.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, fmt.Errorf("waiting board: %w", err)
	}
	return entries, nil
}

// FirstInProgress returns the in-progress appointment for a doctor, if any.
func (r *AppointmentRepository) FirstInProgress(ctx context.Context, doctorID string) (*models.Appointment, error) {
	query := fmt.Sprintf(`SELECT %s FROM appointments WHERE doctor_id = $1 AND status = 'in_progress' ORDER BY started_at LIMIT 1`, appointmentColumns)
	var appointment models.Appointment
	if err := r.db.GetContext(ctx, &appointment, query, doctorID); err != nil {
		if err == sql.ErrNoRows {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("first in progress: %w", err)
	}
	return &appointment, nil
}

// DoctorPerformance aggregates attended counts and average ratings per
// doctor. The COALESCE keeps unrated doctors at 0 instead of NULL.
func (r *AppointmentRepository) DoctorPerformance(ctx context.Context) ([]models.DoctorPerformance, error) {
	const query = `SELECT e.id AS doctor_id,
			e.first_name || ' ' || e.last_name AS doctor_name,
			e.department,
			COUNT(a.id) AS attended_count,
			ROUND(COALESCE(AVG(a.rating), 0)::numeric, 2) AS average_rating
		FROM employees e
		LEFT JOIN appointments a ON a.doctor_id = e.id AND a.status = 'attended'
		WHERE e.role = 'Doctor'
		GROUP BY e.id, e.first_name, e.last_name, e.department
		ORDER BY attended_count DESC`
	var rows []models.DoctorPerformance
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("doctor performance: %w", err)
	}
	return rows, nil
}

// CountTodayByStatus counts today's appointments per status.
func (r *AppointmentRepository) CountTodayByStatus(ctx context.Context, day time.Time) (map[models.AppointmentStatus]int, error) {
	const query = `SELECT status, COUNT(*) AS total FROM appointments WHERE appointment_date = $1 GROUP BY status`
	rows, err := r.db.QueryxContext(ctx, query, day)
	if err != nil {
		return nil, fmt.Errorf("count today appointments: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.AppointmentStatus]int)
	for rows.Next() {
		var status models.AppointmentStatus
		var total int
		if err := rows.Scan(&status, &total); err != nil {
			return nil, fmt.Errorf("scan appointment count: %w", err)
		}
		counts[status] = total
	}
	return counts, rows.Err()
}
