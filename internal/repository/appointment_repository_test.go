package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/sanvida/hms-api/internal/models"
)

func newAppointmentRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAppointmentRepositoryNextTicketNumberIncrements(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	upsert := regexp.QuoteMeta("INSERT INTO ticket_counters (prefix, value) VALUES ($1, 1)")
	mock.ExpectQuery(upsert).
		WithArgs("EMER").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(1))
	mock.ExpectQuery(upsert).
		WithArgs("EMER").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(2))

	first, err := repo.NextTicketNumber(context.Background(), "EMER")
	require.NoError(t, err)
	require.Equal(t, 1, first)

	second, err := repo.NextTicketNumber(context.Background(), "EMER")
	require.NoError(t, err)
	require.Equal(t, 2, second)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryTransitionConditional(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	query := regexp.QuoteMeta("UPDATE appointments")
	ticket := "EMER-001"
	mock.ExpectExec(query).
		WithArgs("appt-1", models.AppointmentPending, models.AppointmentWaiting, &ticket, nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.Transition(context.Background(), "appt-1", models.AppointmentPending, models.AppointmentWaiting, &ticket, nil, nil)
	require.NoError(t, err)
	require.True(t, ok)

	// A row no longer in the expected state matches nothing.
	mock.ExpectExec(query).
		WithArgs("appt-1", models.AppointmentPending, models.AppointmentWaiting, &ticket, nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = repo.Transition(context.Background(), "appt-1", models.AppointmentPending, models.AppointmentWaiting, &ticket, nil, nil)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositorySetRatingGuarded(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE appointments SET rating = $2, updated_at = $3 WHERE id = $1 AND status = 'attended' AND rating IS NULL")).
		WithArgs("appt-1", 5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.SetRating(context.Background(), "appt-1", 5, true)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryWaitingQueueOrder(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "patient_id", "doctor_id", "appointment_date", "appointment_time", "status", "priority", "ticket_number", "started_at", "ended_at", "rating", "created_at", "updated_at", "patient_name", "doctor_name"}).
		AddRow("appt-1", "p-1", "d-1", now, "09:00", "waiting", 1, "EMER-001", nil, nil, nil, now, now, "Ana Perez", "Luis Soto").
		AddRow("appt-2", "p-2", "d-1", now, "08:30", "waiting", 2, "EMER-002", nil, nil, nil, now, now, "Eva Ruiz", "Luis Soto")
	mock.ExpectQuery("ORDER BY a.priority, a.appointment_time").
		WithArgs("d-1").
		WillReturnRows(rows)

	entries, err := repo.WaitingQueue(context.Background(), "d-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "appt-1", entries[0].ID)
	require.Equal(t, "Ana Perez", entries[0].PatientName)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepositoryDoctorPerformanceDefaultsRatingToZero(t *testing.T) {
	db, mock, cleanup := newAppointmentRepoMock(t)
	defer cleanup()
	repo := NewAppointmentRepository(db)

	dept := "Emergency"
	rows := sqlmock.NewRows([]string{"doctor_id", "doctor_name", "department", "attended_count", "average_rating"}).
		AddRow("d-1", "Luis Soto", dept, 12, 4.25).
		AddRow("d-2", "Mara Diaz", dept, 0, 0.0)
	mock.ExpectQuery("LEFT JOIN appointments").WillReturnRows(rows)

	perf, err := repo.DoctorPerformance(context.Background())
	require.NoError(t, err)
	require.Len(t, perf, 2)
	require.Equal(t, 4.25, perf[0].AverageRating)
	require.Zero(t, perf[1].AverageRating)
	require.NoError(t, mock.ExpectationsWereMet())
}
