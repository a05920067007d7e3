package service

import (
	"context"
	"database/sql"
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

// rotationEpoch is a Monday so week indexes flip at week boundaries.
var rotationEpoch = time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)

type mockShiftRepo struct {
	rows map[string]*models.ShiftAssignment
	seq  int
}

func shiftKey(employeeID string, date time.Time) string {
	return employeeID + "|" + date.Format("2006-01-02")
}

func (m *mockShiftRepo) FindByEmployeeAndDate(_ context.Context, employeeID string, date time.Time) (*models.ShiftAssignment, error) {
	row, ok := m.rows[shiftKey(employeeID, date)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *row
	return &copied, nil
}

func (m *mockShiftRepo) ListByEmployeeMonth(_ context.Context, employeeID string, year int, month time.Month) ([]models.ShiftAssignment, error) {
	var out []models.ShiftAssignment
	for _, row := range m.rows {
		if row.EmployeeID == employeeID && row.Date.Year() == year && row.Date.Month() == month {
			out = append(out, *row)
		}
	}
	return out, nil
}

func (m *mockShiftRepo) FindByID(_ context.Context, id string) (*models.ShiftAssignment, error) {
	for _, row := range m.rows {
		if row.ID == id {
			copied := *row
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockShiftRepo) Upsert(_ context.Context, shift *models.ShiftAssignment) error {
	if m.rows == nil {
		m.rows = make(map[string]*models.ShiftAssignment)
	}
	key := shiftKey(shift.EmployeeID, shift.Date)
	if existing, ok := m.rows[key]; ok {
		// a manual row only yields to another manual write
		if existing.Manual && !shift.Manual {
			return nil
		}
		shift.ID = existing.ID
	}
	if shift.ID == "" {
		m.seq++
		shift.ID = fmt.Sprintf("shift-%d", m.seq)
	}
	stored := *shift
	m.rows[key] = &stored
	return nil
}

func (m *mockShiftRepo) Update(_ context.Context, shift *models.ShiftAssignment) error {
	stored := *shift
	m.rows[shiftKey(shift.EmployeeID, shift.Date)] = &stored
	return nil
}

func (m *mockShiftRepo) Delete(_ context.Context, id string) error {
	for key, row := range m.rows {
		if row.ID == id {
			delete(m.rows, key)
			return nil
		}
	}
	return sql.ErrNoRows
}

type mockShiftEmployeeRepo struct {
	employees map[string]*models.Employee
}

func (m *mockShiftEmployeeRepo) FindByID(_ context.Context, id string) (*models.Employee, error) {
	emp, ok := m.employees[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *emp
	return &copied, nil
}

func (m *mockShiftEmployeeRepo) SetRotationGroup(_ context.Context, id, group string) error {
	emp, ok := m.employees[id]
	if !ok {
		return sql.ErrNoRows
	}
	emp.RotationGroup = &group
	return nil
}

func rotationDoctor(group string) *models.Employee {
	emp := &models.Employee{
		ID:          "emp-1",
		BadgeNumber: 3,
		FirstName:   "Elena",
		LastName:    "Rivas",
		Role:        rotation.RoleDoctor,
		Status:      models.EmployeeActive,
	}
	if group != "" {
		emp.RotationGroup = &group
	}
	return emp
}

func newShiftService(repo *mockShiftRepo, employees *mockShiftEmployeeRepo) *ShiftService {
	return NewShiftService(repo, employees, rotationEpoch, validator.New(), zap.NewNop())
}

func TestShiftServiceAssignGroupGeneratesSchedule(t *testing.T) {
	repo := &mockShiftRepo{}
	employees := &mockShiftEmployeeRepo{employees: map[string]*models.Employee{"emp-1": rotationDoctor("")}}
	svc := newShiftService(repo, employees)

	err := svc.AssignGroup(context.Background(), "emp-1", rotation.Group1, 4)
	require.NoError(t, err)
	require.NotNil(t, employees.employees["emp-1"].RotationGroup)
	assert.Equal(t, rotation.Group1, *employees.employees["emp-1"].RotationGroup)

	// generation covers today through the end of the 4-week window, skipping
	// elapsed days of the current week and one rest day per week
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	weekStart := today.AddDate(0, 0, -((int(today.Weekday()) + 6) % 7))
	expected := 0
	for day := 0; day < 28; day++ {
		date := weekStart.AddDate(0, 0, day)
		if date.Before(today) {
			continue
		}
		weekIndex := rotation.WeeksSince(rotationEpoch, date)
		if (int(date.Weekday())+6)%7 == rotation.RestDay(3, weekIndex) {
			continue
		}
		expected++
	}
	assert.Len(t, repo.rows, expected)
	for _, row := range repo.rows {
		assert.False(t, row.Date.Before(today), row.Date.Format("2006-01-02"))
		require.NotNil(t, row.StartTime)
		require.NotNil(t, row.EndTime)
		assert.False(t, row.Manual)
	}
}

func TestShiftServiceAssignGroupUnknownGroup(t *testing.T) {
	repo := &mockShiftRepo{}
	employees := &mockShiftEmployeeRepo{employees: map[string]*models.Employee{"emp-1": rotationDoctor("")}}
	svc := newShiftService(repo, employees)

	err := svc.AssignGroup(context.Background(), "emp-1", "Group 9", 4)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.rows)
}

func TestShiftServiceRegenerateRequiresGroup(t *testing.T) {
	repo := &mockShiftRepo{}
	employees := &mockShiftEmployeeRepo{employees: map[string]*models.Employee{"emp-1": rotationDoctor("")}}
	svc := newShiftService(repo, employees)

	err := svc.Regenerate(context.Background(), "emp-1", rotationEpoch, 2)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestShiftServiceCalendarComputedFallback(t *testing.T) {
	repo := &mockShiftRepo{}
	employees := &mockShiftEmployeeRepo{employees: map[string]*models.Employee{"emp-1": rotationDoctor(rotation.Group1)}}
	svc := newShiftService(repo, employees)

	days, err := svc.Calendar(context.Background(), "emp-1", 2026, time.March)
	require.NoError(t, err)
	require.Len(t, days, 31)

	emp := employees.employees["emp-1"]
	restCount := 0
	for _, day := range days {
		assert.Equal(t, models.ShiftSourceComputed, day.Source)
		weekIndex := rotation.WeeksSince(rotationEpoch, day.Date)
		expectRest := (int(day.Date.Weekday())+6)%7 == rotation.RestDay(emp.BadgeNumber, weekIndex)
		assert.Equal(t, expectRest, day.Rest, day.Date.Format("2006-01-02"))
		if day.Rest {
			restCount++
			assert.Nil(t, day.StartTime)
			continue
		}
		window, ok := rotation.ComputeShift(emp.Role, *emp.RotationGroup, weekIndex)
		require.True(t, ok)
		require.NotNil(t, day.StartTime)
		assert.Equal(t, window.Start, *day.StartTime)
		assert.Equal(t, window.End, *day.EndTime)
	}
	assert.GreaterOrEqual(t, restCount, 4)
}

func TestShiftServiceManualOverrideSurvivesRegeneration(t *testing.T) {
	repo := &mockShiftRepo{}
	employees := &mockShiftEmployeeRepo{employees: map[string]*models.Employee{"emp-1": rotationDoctor(rotation.Group1)}}
	svc := newShiftService(repo, employees)
	ctx := context.Background()

	start, end := "10:00", "14:00"
	override, err := svc.Override(ctx, "emp-1", OverrideShiftRequest{Date: "2026-03-11", StartTime: &start, EndTime: &end})
	require.NoError(t, err)
	assert.True(t, override.Manual)

	err = svc.Regenerate(ctx, "emp-1", time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), 2)
	require.NoError(t, err)

	day, err := svc.Day(ctx, "emp-1", time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, models.ShiftSourceManual, day.Source)
	require.NotNil(t, day.StartTime)
	assert.Equal(t, "10:00", *day.StartTime)
	assert.Equal(t, "14:00", *day.EndTime)
}

func TestShiftServiceForcedRestDay(t *testing.T) {
	repo := &mockShiftRepo{}
	employees := &mockShiftEmployeeRepo{employees: map[string]*models.Employee{"emp-1": rotationDoctor(rotation.Group1)}}
	svc := newShiftService(repo, employees)
	ctx := context.Background()

	_, err := svc.Override(ctx, "emp-1", OverrideShiftRequest{Date: "2026-03-12"})
	require.NoError(t, err)

	day, err := svc.Day(ctx, "emp-1", time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, day.Rest)
	assert.Equal(t, models.ShiftSourceManual, day.Source)
}

func TestShiftServiceOverrideRejectsHalfWindow(t *testing.T) {
	repo := &mockShiftRepo{}
	employees := &mockShiftEmployeeRepo{employees: map[string]*models.Employee{"emp-1": rotationDoctor(rotation.Group1)}}
	svc := newShiftService(repo, employees)

	start := "08:00"
	_, err := svc.Override(context.Background(), "emp-1", OverrideShiftRequest{Date: "2026-03-12", StartTime: &start})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestShiftServiceOverrideRejectsInvertedWindow(t *testing.T) {
	repo := &mockShiftRepo{}
	employees := &mockShiftEmployeeRepo{employees: map[string]*models.Employee{"emp-1": rotationDoctor(rotation.Group1)}}
	svc := newShiftService(repo, employees)
	ctx := context.Background()

	start, end := "16:00", "08:00"
	_, err := svc.Override(ctx, "emp-1", OverrideShiftRequest{Date: "2026-02-10", StartTime: &start, EndTime: &end})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	same := "12:00"
	_, err = svc.Override(ctx, "emp-1", OverrideShiftRequest{Date: "2026-02-10", StartTime: &same, EndTime: &same})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.rows)
}

func TestShiftServiceRemoveOverrideFallsBack(t *testing.T) {
	repo := &mockShiftRepo{}
	employees := &mockShiftEmployeeRepo{employees: map[string]*models.Employee{"emp-1": rotationDoctor(rotation.Group1)}}
	svc := newShiftService(repo, employees)
	ctx := context.Background()

	start, end := "10:00", "14:00"
	override, err := svc.Override(ctx, "emp-1", OverrideShiftRequest{Date: "2026-03-11", StartTime: &start, EndTime: &end})
	require.NoError(t, err)

	require.NoError(t, svc.RemoveOverride(ctx, override.ID))

	day, err := svc.Day(ctx, "emp-1", time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, models.ShiftSourceComputed, day.Source)
}
