package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sanvida/hms-api/internal/models"
	"github.com/sanvida/hms-api/internal/rotation"
	appErrors "github.com/sanvida/hms-api/pkg/errors"
)

type appointmentRepository interface {
	List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error)
	FindByID(ctx context.Context, id string) (*models.Appointment, error)
	Create(ctx context.Context, appointment *models.Appointment) error
	Update(ctx context.Context, appointment *models.Appointment) error
	Transition(ctx context.Context, id string, from, to models.AppointmentStatus, ticket *string, startedAt, endedAt *time.Time) (bool, error)
	SetRating(ctx context.Context, id string, rating int, guardUnrated bool) (bool, error)
	NextTicketNumber(ctx context.Context, prefix string) (int, error)
	FirstInProgress(ctx context.Context, doctorID string) (*models.Appointment, error)
	WaitingQueue(ctx context.Context, doctorID string) ([]models.QueueEntry, error)
	WaitingBoard(ctx context.Context) ([]models.QueueEntry, error)
	DoctorPerformance(ctx context.Context) ([]models.DoctorPerformance, error)
}

type appointmentEmployeeRepository interface {
	FindByID(ctx context.Context, id string) (*models.Employee, error)
}

type appointmentCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

const boardCacheKey = "queue:board"

// AppointmentService implements the consultation queue: scheduling,
// guarded status transitions, ticket issuance, queue views and the doctor
// performance report.
type AppointmentService struct {
	repo        appointmentRepository
	employees   appointmentEmployeeRepository
	cache       appointmentCache
	boardTTL    time.Duration
	allowRerate bool
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewAppointmentService constructs the service. cache may be nil, which
// disables board caching.
func NewAppointmentService(repo appointmentRepository, employees appointmentEmployeeRepository, cache appointmentCache, boardTTL time.Duration, allowRerate bool, validate *validator.Validate, logger *zap.Logger) *AppointmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppointmentService{
		repo:        repo,
		employees:   employees,
		cache:       cache,
		boardTTL:    boardTTL,
		allowRerate: allowRerate,
		validator:   validate,
		logger:      logger,
	}
}

// CreateAppointmentRequest describes the scheduling payload.
type CreateAppointmentRequest struct {
	PatientID string `json:"patient_id" validate:"required,uuid4"`
	DoctorID  string `json:"doctor_id" validate:"required,uuid4"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
	Time      string `json:"time" validate:"required,datetime=15:04"`
	Priority  int    `json:"priority" validate:"min=0,max=5"`
}

// RateAppointmentRequest carries the patient's rating of an attended visit.
type RateAppointmentRequest struct {
	Rating int `json:"rating" validate:"required,min=1,max=5"`
}

// List returns appointments with pagination.
func (s *AppointmentService) List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list appointments")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return rows, pagination, nil
}

// Get returns an appointment by id.
func (s *AppointmentService) Get(ctx context.Context, id string) (*models.Appointment, error) {
	appointment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "appointment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get appointment")
	}
	return appointment, nil
}

// Create schedules a new appointment in pending state.
func (s *AppointmentService) Create(ctx context.Context, req CreateAppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	doctor, err := s.employees.FindByID(ctx, req.DoctorID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "doctor not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get doctor")
	}
	if doctor.Role != rotation.RoleDoctor {
		return nil, appErrors.Clone(appErrors.ErrValidation, "appointments can only be scheduled with doctors")
	}

	date, err := time.ParseInLocation("2006-01-02", req.Date, time.UTC)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid date")
	}

	appointment := &models.Appointment{
		PatientID: req.PatientID,
		DoctorID:  req.DoctorID,
		Date:      date,
		Time:      req.Time,
		Status:    models.AppointmentPending,
		Priority:  req.Priority,
	}
	if err := s.repo.Create(ctx, appointment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create appointment")
	}
	return appointment, nil
}

// Accept moves a pending appointment to accepted. Doctors may only accept
// their own appointments; admins may act on any.
func (s *AppointmentService) Accept(ctx context.Context, id string, actor *models.JWTClaims) (*models.Appointment, error) {
	if err := s.ensureAssignedDoctor(ctx, id, actor); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, models.AppointmentAccepted, nil, nil, nil)
}

// Reject moves a pending appointment to rejected. Doctors may only reject
// their own appointments; admins may act on any.
func (s *AppointmentService) Reject(ctx context.Context, id string, actor *models.JWTClaims) (*models.Appointment, error) {
	if err := s.ensureAssignedDoctor(ctx, id, actor); err != nil {
		return nil, err
	}
	return s.transition(ctx, id, models.AppointmentRejected, nil, nil, nil)
}

func (s *AppointmentService) ensureAssignedDoctor(ctx context.Context, id string, actor *models.JWTClaims) error {
	if actor == nil || actor.Role != models.RoleDoctor {
		return nil
	}
	appointment, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if actor.EmployeeID == "" || appointment.DoctorID != actor.EmployeeID {
		return appErrors.Clone(appErrors.ErrForbidden, "appointment is assigned to another doctor")
	}
	return nil
}

// Cancel moves a pending appointment to cancelled.
func (s *AppointmentService) Cancel(ctx context.Context, id string) (*models.Appointment, error) {
	return s.transition(ctx, id, models.AppointmentCancelled, nil, nil, nil)
}

// CheckIn moves a pending appointment to waiting and issues its ticket
// number from the doctor's department counter.
func (s *AppointmentService) CheckIn(ctx context.Context, id string) (*models.Appointment, error) {
	appointment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(appointment.Status, models.AppointmentWaiting) {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition, fmt.Sprintf("cannot check in from %s", appointment.Status))
	}

	doctor, err := s.employees.FindByID(ctx, appointment.DoctorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get doctor")
	}
	department := "General"
	if doctor.Department != nil {
		department = *doctor.Department
	}
	seq, err := s.repo.NextTicketNumber(ctx, rotation.TicketPrefix(department))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue ticket")
	}
	ticket := fmt.Sprintf("%s-%03d", rotation.TicketPrefix(department), seq)

	return s.transition(ctx, id, models.AppointmentWaiting, &ticket, nil, nil)
}

// Start moves a waiting appointment to in_progress and stamps the start.
func (s *AppointmentService) Start(ctx context.Context, id string) (*models.Appointment, error) {
	now := time.Now().UTC()
	return s.transition(ctx, id, models.AppointmentInProgress, nil, &now, nil)
}

// Finish moves an in-progress appointment to attended and stamps the end.
func (s *AppointmentService) Finish(ctx context.Context, id string) (*models.Appointment, error) {
	now := time.Now().UTC()
	return s.transition(ctx, id, models.AppointmentAttended, nil, nil, &now)
}

func (s *AppointmentService) transition(ctx context.Context, id string, to models.AppointmentStatus, ticket *string, startedAt, endedAt *time.Time) (*models.Appointment, error) {
	appointment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !models.CanTransition(appointment.Status, to) {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition, fmt.Sprintf("cannot move from %s to %s", appointment.Status, to))
	}

	ok, err := s.repo.Transition(ctx, id, appointment.Status, to, ticket, startedAt, endedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update appointment")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition, "appointment changed state concurrently")
	}
	s.invalidateBoard(ctx)
	return s.Get(ctx, id)
}

// Rate records the patient's rating of an attended appointment. By default
// a rating is written once; re-rating requires the config switch.
func (s *AppointmentService) Rate(ctx context.Context, id string, req RateAppointmentRequest) (*models.Appointment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	appointment, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if appointment.Status != models.AppointmentAttended {
		return nil, appErrors.Clone(appErrors.ErrIllegalTransition, "only attended appointments can be rated")
	}
	if appointment.Rating != nil && !s.allowRerate {
		return nil, appErrors.Clone(appErrors.ErrAlreadyRated, "appointment already rated")
	}

	ok, err := s.repo.SetRating(ctx, id, req.Rating, !s.allowRerate)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rate appointment")
	}
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrAlreadyRated, "appointment already rated")
	}
	return s.Get(ctx, id)
}

// CallNext closes the doctor's open consultation, if any, and starts the
// first waiting appointment in queue order.
func (s *AppointmentService) CallNext(ctx context.Context, doctorID string) (*models.Appointment, error) {
	current, err := s.repo.FirstInProgress(ctx, doctorID)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check open consultation")
	}
	if current != nil {
		if _, err := s.Finish(ctx, current.ID); err != nil {
			return nil, err
		}
	}

	queue, err := s.repo.WaitingQueue(ctx, doctorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load queue")
	}
	if len(queue) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no patients waiting")
	}
	return s.Start(ctx, queue[0].ID)
}

// Queue returns the waiting list for one doctor, urgent first.
func (s *AppointmentService) Queue(ctx context.Context, doctorID string) ([]models.QueueEntry, error) {
	entries, err := s.repo.WaitingQueue(ctx, doctorID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load queue")
	}
	return entries, nil
}

// Board returns the hospital-wide waiting board ordered by ticket number,
// served from cache when fresh.
func (s *AppointmentService) Board(ctx context.Context) ([]models.QueueEntry, error) {
	if s.cache != nil {
		var cached []models.QueueEntry
		if err := s.cache.Get(ctx, boardCacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	entries, err := s.repo.WaitingBoard(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load board")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, boardCacheKey, entries, s.boardTTL); err != nil {
			s.logger.Warn("board cache write failed", zap.Error(err))
		}
	}
	return entries, nil
}

// Performance returns attended counts and average ratings per doctor.
func (s *AppointmentService) Performance(ctx context.Context) ([]models.DoctorPerformance, error) {
	rows, err := s.repo.DoctorPerformance(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load performance report")
	}
	return rows, nil
}

func (s *AppointmentService) invalidateBoard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "queue:*"); err != nil {
		s.logger.Warn("board cache invalidation failed", zap.Error(err))
	}
}
