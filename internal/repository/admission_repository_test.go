package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/sanvida/hms-api/internal/models"
)

func newAdmissionRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAdmissionRepositoryAdmitClaimsBedInOneTransaction(t *testing.T) {
	db, mock, cleanup := newAdmissionRepoMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE beds SET status = 'occupied', updated_at = $2 WHERE id = $1 AND status = 'available'")).
		WithArgs("bed-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO bed_assignments")).
		WithArgs(sqlmock.AnyArg(), "pat-1", "bed-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM waitlist WHERE patient_id = $1")).
		WithArgs("pat-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	assignment, claimed, err := repo.Admit(context.Background(), "pat-1", "bed-1")
	require.NoError(t, err)
	require.True(t, claimed)
	require.Equal(t, "pat-1", assignment.PatientID)
	require.Equal(t, "bed-1", assignment.BedID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepositoryAdmitLosesRaceCleanly(t *testing.T) {
	db, mock, cleanup := newAdmissionRepoMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE beds SET status = 'occupied'")).
		WithArgs("bed-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	assignment, claimed, err := repo.Admit(context.Background(), "pat-1", "bed-1")
	require.NoError(t, err)
	require.False(t, claimed)
	require.Nil(t, assignment)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAdmissionRepositoryDischargeMovesBedToCleaning(t *testing.T) {
	db, mock, cleanup := newAdmissionRepoMock(t)
	defer cleanup()
	repo := NewAdmissionRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE bed_assignments SET discharged_at = $2 WHERE id = $1 AND discharged_at IS NULL RETURNING bed_id")).
		WithArgs("asg-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"bed_id"}).AddRow("bed-1"))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE beds SET status = 'cleaning'")).
		WithArgs("bed-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Discharge(context.Background(), "asg-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRoomRepositorySetBedStatusConditional(t *testing.T) {
	db, mock, cleanup := newAdmissionRepoMock(t)
	defer cleanup()
	repo := NewRoomRepository(db)

	query := regexp.QuoteMeta("UPDATE beds SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2")
	mock.ExpectExec(query).
		WithArgs("bed-1", models.BedCleaning, models.BedAvailable, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.SetBedStatus(context.Background(), "bed-1", models.BedCleaning, models.BedAvailable)
	require.NoError(t, err)
	require.True(t, ok)

	mock.ExpectExec(query).
		WithArgs("bed-1", models.BedCleaning, models.BedAvailable, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = repo.SetBedStatus(context.Background(), "bed-1", models.BedCleaning, models.BedAvailable)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
