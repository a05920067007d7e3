package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sanvida/hms-api/internal/models"
	"github.com/sanvida/hms-api/internal/rotation"
	appErrors "github.com/sanvida/hms-api/pkg/errors"
)

type shiftRepository interface {
	FindByEmployeeAndDate(ctx context.Context, employeeID string, date time.Time) (*models.ShiftAssignment, error)
	ListByEmployeeMonth(ctx context.Context, employeeID string, year int, month time.Month) ([]models.ShiftAssignment, error)
	FindByID(ctx context.Context, id string) (*models.ShiftAssignment, error)
	Upsert(ctx context.Context, shift *models.ShiftAssignment) error
	Update(ctx context.Context, shift *models.ShiftAssignment) error
	Delete(ctx context.Context, id string) error
}

type shiftEmployeeRepository interface {
	FindByID(ctx context.Context, id string) (*models.Employee, error)
	SetRotationGroup(ctx context.Context, id, group string) error
}

// DefaultGenerationWeeks is how many weeks of shifts a group assignment
// materializes ahead.
const DefaultGenerationWeeks = 4

// ShiftService implements the rotation engine: group assignment, bulk
// schedule generation, manual overrides and calendar resolution.
//
// Resolution order for any single day is fixed: a manual row wins, then a
// generated row, then the value computed from the rotation tables. A manual
// row with both times null is a forced rest day.
type ShiftService struct {
	shifts    shiftRepository
	employees shiftEmployeeRepository
	epoch     time.Time
	validator *validator.Validate
	logger    *zap.Logger
}

// NewShiftService constructs the service. The epoch anchors week indexing
// for every rotation computation.
func NewShiftService(shifts shiftRepository, employees shiftEmployeeRepository, epoch time.Time, validate *validator.Validate, logger *zap.Logger) *ShiftService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShiftService{shifts: shifts, employees: employees, epoch: epoch, validator: validate, logger: logger}
}

// OverrideShiftRequest describes a manual shift edit. Leaving both times
// null forces a rest day.
type OverrideShiftRequest struct {
	Date      string  `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime *string `json:"start_time" validate:"omitempty,datetime=15:04"`
	EndTime   *string `json:"end_time" validate:"omitempty,datetime=15:04"`
}

// AssignGroup places an employee in a rotation group and materializes the
// upcoming weeks of shifts. Re-assigning is idempotent for untouched rows;
// manual edits inside the window survive.
func (s *ShiftService) AssignGroup(ctx context.Context, employeeID, group string, weeks int) error {
	if !rotation.ValidGroup(group) {
		return appErrors.Clone(appErrors.ErrValidation, "unknown rotation group")
	}
	employee, err := s.employees.FindByID(ctx, employeeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get employee")
	}
	if err := s.employees.SetRotationGroup(ctx, employeeID, group); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to set rotation group")
	}
	employee.RotationGroup = &group

	if weeks <= 0 {
		weeks = DefaultGenerationWeeks
	}
	// Only the remaining days of the current week get rows; elapsed days
	// are left alone.
	now := time.Now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if err := s.generate(ctx, employee, startOfWeek(now), weeks, today); err != nil {
		return err
	}
	s.logger.Info("rotation group assigned",
		zap.String("employee_id", employeeID),
		zap.String("group", group),
		zap.Int("weeks", weeks))
	return nil
}

// Regenerate re-materializes shifts for an employee already in a group.
func (s *ShiftService) Regenerate(ctx context.Context, employeeID string, from time.Time, weeks int) error {
	employee, err := s.employees.FindByID(ctx, employeeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get employee")
	}
	if employee.RotationGroup == nil {
		return appErrors.Clone(appErrors.ErrValidation, "employee has no rotation group")
	}
	if weeks <= 0 {
		weeks = DefaultGenerationWeeks
	}
	return s.generate(ctx, employee, startOfWeek(from), weeks, time.Time{})
}

func (s *ShiftService) generate(ctx context.Context, employee *models.Employee, from time.Time, weeks int, notBefore time.Time) error {
	for day := 0; day < weeks*7; day++ {
		date := from.AddDate(0, 0, day)
		if date.Before(notBefore) {
			continue
		}
		window, rest, ok := s.resolveComputed(employee, date)
		if !ok {
			return appErrors.Clone(appErrors.ErrValidation, "no rotation defined for role")
		}
		if rest {
			continue
		}
		shift := &models.ShiftAssignment{
			EmployeeID: employee.ID,
			Date:       date,
			StartTime:  &window.Start,
			EndTime:    &window.End,
		}
		if err := s.shifts.Upsert(ctx, shift); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write shift")
		}
	}
	return nil
}

// resolveComputed derives the rotation outcome for a date with no stored
// row: the rest-day round robin first, the group table second.
func (s *ShiftService) resolveComputed(employee *models.Employee, date time.Time) (rotation.Window, bool, bool) {
	weekIndex := rotation.WeeksSince(s.epoch, date)
	if weekdayIndex(date) == rotation.RestDay(employee.BadgeNumber, weekIndex) {
		return rotation.Window{}, true, true
	}
	if employee.RotationGroup != nil {
		if window, ok := rotation.ComputeShift(employee.Role, *employee.RotationGroup, weekIndex); ok {
			return window, false, true
		}
	}
	window, ok := rotation.DefaultWindow(employee.Role)
	return window, false, ok
}

// Calendar resolves one month of days for an employee.
func (s *ShiftService) Calendar(ctx context.Context, employeeID string, year int, month time.Month) ([]models.ShiftDay, error) {
	employee, err := s.employees.FindByID(ctx, employeeID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get employee")
	}

	stored, err := s.shifts.ListByEmployeeMonth(ctx, employeeID, year, month)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list shifts")
	}
	byDate := make(map[string]models.ShiftAssignment, len(stored))
	for _, row := range stored {
		byDate[row.Date.Format("2006-01-02")] = row
	}

	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	daysInMonth := first.AddDate(0, 1, -1).Day()

	days := make([]models.ShiftDay, 0, daysInMonth)
	for d := 1; d <= daysInMonth; d++ {
		date := time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
		if row, ok := byDate[date.Format("2006-01-02")]; ok {
			day := models.ShiftDay{
				Date:      date,
				StartTime: row.StartTime,
				EndTime:   row.EndTime,
				Rest:      row.StartTime == nil && row.EndTime == nil,
				Manual:    row.Manual,
				Source:    models.ShiftSourceGenerated,
			}
			if row.Manual {
				day.Source = models.ShiftSourceManual
			}
			days = append(days, day)
			continue
		}

		window, rest, ok := s.resolveComputed(employee, date)
		day := models.ShiftDay{Date: date, Rest: rest, Source: models.ShiftSourceComputed}
		if !rest && ok {
			start, end := window.Start, window.End
			day.StartTime = &start
			day.EndTime = &end
		}
		days = append(days, day)
	}
	return days, nil
}

// Day resolves a single date for an employee.
func (s *ShiftService) Day(ctx context.Context, employeeID string, date time.Time) (*models.ShiftDay, error) {
	days, err := s.Calendar(ctx, employeeID, date.Year(), date.Month())
	if err != nil {
		return nil, err
	}
	day := days[date.Day()-1]
	return &day, nil
}

// Override records a manual shift edit for one date. It always wins over
// generated and computed values until removed.
func (s *ShiftService) Override(ctx context.Context, employeeID string, req OverrideShiftRequest) (*models.ShiftAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if (req.StartTime == nil) != (req.EndTime == nil) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_time and end_time must both be set or both be empty")
	}
	if req.StartTime != nil && req.EndTime != nil && *req.EndTime <= *req.StartTime {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_time must be later than start_time")
	}
	if _, err := s.employees.FindByID(ctx, employeeID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get employee")
	}

	date, err := time.ParseInLocation("2006-01-02", req.Date, time.UTC)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date")
	}

	shift := &models.ShiftAssignment{
		EmployeeID: employeeID,
		Date:       date,
		StartTime:  req.StartTime,
		EndTime:    req.EndTime,
		Manual:     true,
	}
	if err := s.shifts.Upsert(ctx, shift); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save override")
	}
	return shift, nil
}

// RemoveOverride deletes a stored shift row so the date falls back to the
// computed rotation.
func (s *ShiftService) RemoveOverride(ctx context.Context, shiftID string) error {
	if err := s.shifts.Delete(ctx, shiftID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "shift not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete shift")
	}
	return nil
}

// weekdayIndex maps time.Weekday onto a Monday-first 0..6 index, matching
// the rest-day round robin.
func weekdayIndex(date time.Time) int {
	return (int(date.Weekday()) + 6) % 7
}

// startOfWeek truncates a date to its Monday.
func startOfWeek(date time.Time) time.Time {
	d := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	return d.AddDate(0, 0, -weekdayIndex(d))
}
