package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sanvida/hms-api/internal/models"
	"github.com/sanvida/hms-api/internal/rotation"
	appErrors "github.com/sanvida/hms-api/pkg/errors"
)

const (
	testPatientID = "0b24dfd2-2f28-4c8a-9f2e-6f0a9b8c7d61"
	testDoctorID  = "9d1f0a3c-5e7b-4f2d-8a6c-1b2c3d4e5f60"
)

type mockAppointmentRepo struct {
	appointments map[string]*models.Appointment
	ticketSeq    int
	board        []models.QueueEntry
	queue        []models.QueueEntry
	performance  []models.DoctorPerformance

	boardCalls      int
	transitionCalls int
	transitionFail  bool
	ratingFail      bool
}

func (m *mockAppointmentRepo) List(_ context.Context, _ models.AppointmentFilter) ([]models.Appointment, int, error) {
	rows := make([]models.Appointment, 0, len(m.appointments))
	for _, a := range m.appointments {
		rows = append(rows, *a)
	}
	return rows, len(rows), nil
}

func (m *mockAppointmentRepo) FindByID(_ context.Context, id string) (*models.Appointment, error) {
	a, ok := m.appointments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *a
	return &copied, nil
}

func (m *mockAppointmentRepo) Create(_ context.Context, appointment *models.Appointment) error {
	if appointment.ID == "" {
		appointment.ID = fmt.Sprintf("appt-%d", len(m.appointments)+1)
	}
	if m.appointments == nil {
		m.appointments = make(map[string]*models.Appointment)
	}
	stored := *appointment
	m.appointments[appointment.ID] = &stored
	return nil
}

func (m *mockAppointmentRepo) Update(_ context.Context, appointment *models.Appointment) error {
	stored := *appointment
	m.appointments[appointment.ID] = &stored
	return nil
}

func (m *mockAppointmentRepo) Transition(_ context.Context, id string, from, to models.AppointmentStatus, ticket *string, startedAt, endedAt *time.Time) (bool, error) {
	m.transitionCalls++
	if m.transitionFail {
		return false, nil
	}
	stored, ok := m.appointments[id]
	if !ok || stored.Status != from {
		return false, nil
	}
	stored.Status = to
	if ticket != nil {
		stored.TicketNumber = ticket
	}
	if startedAt != nil {
		stored.StartedAt = startedAt
	}
	if endedAt != nil {
		stored.EndedAt = endedAt
	}
	return true, nil
}

func (m *mockAppointmentRepo) SetRating(_ context.Context, id string, rating int, guardUnrated bool) (bool, error) {
	stored, ok := m.appointments[id]
	if !ok || m.ratingFail {
		return false, nil
	}
	if guardUnrated && stored.Rating != nil {
		return false, nil
	}
	stored.Rating = &rating
	return true, nil
}

func (m *mockAppointmentRepo) NextTicketNumber(_ context.Context, _ string) (int, error) {
	m.ticketSeq++
	return m.ticketSeq, nil
}

func (m *mockAppointmentRepo) FirstInProgress(_ context.Context, doctorID string) (*models.Appointment, error) {
	for _, a := range m.appointments {
		if a.DoctorID == doctorID && a.Status == models.AppointmentInProgress {
			copied := *a
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAppointmentRepo) WaitingQueue(_ context.Context, _ string) ([]models.QueueEntry, error) {
	return m.queue, nil
}

func (m *mockAppointmentRepo) WaitingBoard(_ context.Context) ([]models.QueueEntry, error) {
	m.boardCalls++
	return m.board, nil
}

func (m *mockAppointmentRepo) DoctorPerformance(_ context.Context) ([]models.DoctorPerformance, error) {
	return m.performance, nil
}

type mockEmployeeFinder struct {
	employees map[string]*models.Employee
}

func (m *mockEmployeeFinder) FindByID(_ context.Context, id string) (*models.Employee, error) {
	emp, ok := m.employees[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return emp, nil
}

type stubCacheRepo struct {
	store   map[string][]byte
	deleted []string
}

func (s *stubCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	payload, ok := s.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(payload, dest)
}

func (s *stubCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	if s.store == nil {
		s.store = make(map[string][]byte)
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}
	s.store[key] = payload
	return nil
}

func (s *stubCacheRepo) DeleteByPattern(_ context.Context, pattern string) error {
	s.deleted = append(s.deleted, pattern)
	s.store = nil
	return nil
}

func emergencyDoctor() map[string]*models.Employee {
	dept := "Emergency"
	return map[string]*models.Employee{
		testDoctorID: {ID: testDoctorID, BadgeNumber: 7, FirstName: "Ana", LastName: "Flores", Role: rotation.RoleDoctor, Department: &dept, Status: models.EmployeeActive},
	}
}

func pendingAppointment(id string) *models.Appointment {
	return &models.Appointment{
		ID:        id,
		PatientID: testPatientID,
		DoctorID:  testDoctorID,
		Date:      time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
		Time:      "09:30",
		Status:    models.AppointmentPending,
	}
}

func TestAppointmentServiceCheckInIssuesTicket(t *testing.T) {
	repo := &mockAppointmentRepo{appointments: map[string]*models.Appointment{"a1": pendingAppointment("a1")}}
	employees := &mockEmployeeFinder{employees: emergencyDoctor()}
	svc := NewAppointmentService(repo, employees, nil, time.Minute, false, validator.New(), zap.NewNop())

	first, err := svc.CheckIn(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentWaiting, first.Status)
	require.NotNil(t, first.TicketNumber)
	assert.Equal(t, "EMER-001", *first.TicketNumber)

	repo.appointments["a2"] = pendingAppointment("a2")
	second, err := svc.CheckIn(context.Background(), "a2")
	require.NoError(t, err)
	require.NotNil(t, second.TicketNumber)
	assert.Equal(t, "EMER-002", *second.TicketNumber)
}

func TestAppointmentServiceTransitionTable(t *testing.T) {
	repo := &mockAppointmentRepo{appointments: map[string]*models.Appointment{"a1": pendingAppointment("a1")}}
	employees := &mockEmployeeFinder{employees: emergencyDoctor()}
	svc := NewAppointmentService(repo, employees, nil, time.Minute, false, validator.New(), zap.NewNop())
	ctx := context.Background()

	// pending cannot start or finish directly
	_, err := svc.Start(ctx, "a1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIllegalTransition.Code, appErrors.FromError(err).Code)

	_, err = svc.Finish(ctx, "a1")
	require.Error(t, err)

	_, err = svc.CheckIn(ctx, "a1")
	require.NoError(t, err)

	started, err := svc.Start(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentInProgress, started.Status)
	assert.NotNil(t, started.StartedAt)

	// a started visit can no longer be cancelled
	_, err = svc.Cancel(ctx, "a1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIllegalTransition.Code, appErrors.FromError(err).Code)

	finished, err := svc.Finish(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentAttended, finished.Status)
	assert.NotNil(t, finished.EndedAt)
}

func TestAppointmentServiceConcurrentTransition(t *testing.T) {
	repo := &mockAppointmentRepo{
		appointments:   map[string]*models.Appointment{"a1": pendingAppointment("a1")},
		transitionFail: true,
	}
	employees := &mockEmployeeFinder{employees: emergencyDoctor()}
	svc := NewAppointmentService(repo, employees, nil, time.Minute, false, validator.New(), zap.NewNop())

	_, err := svc.Accept(context.Background(), "a1", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIllegalTransition.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 1, repo.transitionCalls)
}

func TestAppointmentServiceAcceptScopedToAssignedDoctor(t *testing.T) {
	repo := &mockAppointmentRepo{appointments: map[string]*models.Appointment{"a1": pendingAppointment("a1")}}
	employees := &mockEmployeeFinder{employees: emergencyDoctor()}
	svc := NewAppointmentService(repo, employees, nil, time.Minute, false, validator.New(), zap.NewNop())

	otherDoctor := &models.JWTClaims{UserID: "u-2", Role: models.RoleDoctor, EmployeeID: "someone-else"}
	_, err := svc.Accept(context.Background(), "a1", otherDoctor)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Equal(t, 0, repo.transitionCalls)

	assigned := &models.JWTClaims{UserID: "u-1", Role: models.RoleDoctor, EmployeeID: testDoctorID}
	updated, err := svc.Accept(context.Background(), "a1", assigned)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentAccepted, updated.Status)
}

func TestAppointmentServiceRejectAdminBypassesScope(t *testing.T) {
	repo := &mockAppointmentRepo{appointments: map[string]*models.Appointment{"a1": pendingAppointment("a1")}}
	employees := &mockEmployeeFinder{employees: emergencyDoctor()}
	svc := NewAppointmentService(repo, employees, nil, time.Minute, false, validator.New(), zap.NewNop())

	admin := &models.JWTClaims{UserID: "u-9", Role: models.RoleAdmin}
	updated, err := svc.Reject(context.Background(), "a1", admin)
	require.NoError(t, err)
	assert.Equal(t, models.AppointmentRejected, updated.Status)
}

func TestAppointmentServiceCallNext(t *testing.T) {
	current := pendingAppointment("a1")
	current.Status = models.AppointmentInProgress
	waiting := pendingAppointment("a2")
	waiting.Status = models.AppointmentWaiting

	repo := &mockAppointmentRepo{appointments: map[string]*models.Appointment{"a1": current, "a2": waiting}}
	entry := models.QueueEntry{}
	entry.Appointment = *waiting
	repo.queue = []models.QueueEntry{entry}

	employees := &mockEmployeeFinder{employees: emergencyDoctor()}
	svc := NewAppointmentService(repo, employees, nil, time.Minute, false, validator.New(), zap.NewNop())

	next, err := svc.CallNext(context.Background(), testDoctorID)
	require.NoError(t, err)
	assert.Equal(t, "a2", next.ID)
	assert.Equal(t, models.AppointmentInProgress, next.Status)
	require.NotNil(t, next.StartedAt)

	closed := repo.appointments["a1"]
	assert.Equal(t, models.AppointmentAttended, closed.Status)
	require.NotNil(t, closed.EndedAt)
}

func TestAppointmentServiceCallNextEmptyQueue(t *testing.T) {
	repo := &mockAppointmentRepo{appointments: map[string]*models.Appointment{}}
	employees := &mockEmployeeFinder{employees: emergencyDoctor()}
	svc := NewAppointmentService(repo, employees, nil, time.Minute, false, validator.New(), zap.NewNop())

	_, err := svc.CallNext(context.Background(), testDoctorID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestAppointmentServiceRateGuards(t *testing.T) {
	attended := pendingAppointment("a1")
	attended.Status = models.AppointmentAttended
	repo := &mockAppointmentRepo{appointments: map[string]*models.Appointment{"a1": attended}}
	employees := &mockEmployeeFinder{employees: emergencyDoctor()}
	svc := NewAppointmentService(repo, employees, nil, time.Minute, false, validator.New(), zap.NewNop())
	ctx := context.Background()

	for _, outOfRange := range []int{0, 6} {
		_, err := svc.Rate(ctx, "a1", RateAppointmentRequest{Rating: outOfRange})
		require.Error(t, err, "rating %d", outOfRange)
		assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		assert.Nil(t, repo.appointments["a1"].Rating)
	}

	rated, err := svc.Rate(ctx, "a1", RateAppointmentRequest{Rating: 4})
	require.NoError(t, err)
	require.NotNil(t, rated.Rating)
	assert.Equal(t, 4, *rated.Rating)

	_, err = svc.Rate(ctx, "a1", RateAppointmentRequest{Rating: 5})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyRated.Code, appErrors.FromError(err).Code)
}

func TestAppointmentServiceRateOnlyAttended(t *testing.T) {
	repo := &mockAppointmentRepo{appointments: map[string]*models.Appointment{"a1": pendingAppointment("a1")}}
	employees := &mockEmployeeFinder{employees: emergencyDoctor()}
	svc := NewAppointmentService(repo, employees, nil, time.Minute, false, validator.New(), zap.NewNop())

	_, err := svc.Rate(context.Background(), "a1", RateAppointmentRequest{Rating: 3})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIllegalTransition.Code, appErrors.FromError(err).Code)
}

func TestAppointmentServiceRerateAllowed(t *testing.T) {
	rating := 2
	attended := pendingAppointment("a1")
	attended.Status = models.AppointmentAttended
	attended.Rating = &rating
	repo := &mockAppointmentRepo{appointments: map[string]*models.Appointment{"a1": attended}}
	employees := &mockEmployeeFinder{employees: emergencyDoctor()}
	svc := NewAppointmentService(repo, employees, nil, time.Minute, true, validator.New(), zap.NewNop())

	rated, err := svc.Rate(context.Background(), "a1", RateAppointmentRequest{Rating: 5})
	require.NoError(t, err)
	require.NotNil(t, rated.Rating)
	assert.Equal(t, 5, *rated.Rating)
}

func TestAppointmentServiceCreateRejectsNonDoctor(t *testing.T) {
	nurseID := "3c5e7b9d-1f0a-4d2c-8b6a-2c3d4e5f6071"
	repo := &mockAppointmentRepo{appointments: map[string]*models.Appointment{}}
	employees := &mockEmployeeFinder{employees: map[string]*models.Employee{
		nurseID: {ID: nurseID, Role: rotation.RoleNurse, Status: models.EmployeeActive},
	}}
	svc := NewAppointmentService(repo, employees, nil, time.Minute, false, validator.New(), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateAppointmentRequest{
		PatientID: testPatientID,
		DoctorID:  nurseID,
		Date:      "2026-03-09",
		Time:      "09:30",
		Priority:  1,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAppointmentServiceBoardCaching(t *testing.T) {
	entry := models.QueueEntry{PatientName: "Luis Mora", DoctorName: "Ana Flores"}
	entry.ID = "a1"
	repo := &mockAppointmentRepo{board: []models.QueueEntry{entry}}
	employees := &mockEmployeeFinder{employees: emergencyDoctor()}
	cache := &stubCacheRepo{}
	svc := NewAppointmentService(repo, employees, cache, time.Minute, false, validator.New(), zap.NewNop())
	ctx := context.Background()

	first, err := svc.Board(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 1)
	assert.Equal(t, 1, repo.boardCalls)

	second, err := svc.Board(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, repo.boardCalls)
}

func TestAppointmentServiceTransitionInvalidatesBoard(t *testing.T) {
	repo := &mockAppointmentRepo{appointments: map[string]*models.Appointment{"a1": pendingAppointment("a1")}}
	employees := &mockEmployeeFinder{employees: emergencyDoctor()}
	cache := &stubCacheRepo{store: map[string][]byte{boardCacheKey: []byte("[]")}}
	svc := NewAppointmentService(repo, employees, cache, time.Minute, false, validator.New(), zap.NewNop())

	_, err := svc.Accept(context.Background(), "a1", nil)
	require.NoError(t, err)
	require.NotEmpty(t, cache.deleted)
	assert.Equal(t, "queue:*", cache.deleted[0])
}
