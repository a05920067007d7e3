package service

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sanvida/hms-api/internal/models"
	"github.com/sanvida/hms-api/internal/rotation"
	appErrors "github.com/sanvida/hms-api/pkg/errors"
)

type roomRepository interface {
	ListRooms(ctx context.Context, department string) ([]models.Room, error)
	FindRoomByID(ctx context.Context, id string) (*models.Room, error)
	NextRoomSequence(ctx context.Context, department string) (int, error)
	CreateRoom(ctx context.Context, room *models.Room) error
	UpdateRoom(ctx context.Context, room *models.Room) error
	ListBeds(ctx context.Context, roomID string) ([]models.Bed, error)
	FindBedByID(ctx context.Context, id string) (*models.Bed, error)
	CountBedsInRoom(ctx context.Context, roomID string) (int, error)
	CreateBed(ctx context.Context, bed *models.Bed) error
	SetBedStatus(ctx context.Context, bedID string, from, to models.BedStatus) (bool, error)
	AvailableRooms(ctx context.Context, department string) ([]models.AvailabilityItem, error)
	AvailableBeds(ctx context.Context, roomID string) ([]models.AvailabilityItem, error)
}

type admissionRepository interface {
	Admit(ctx context.Context, patientID, bedID string) (*models.BedAssignment, bool, error)
	Discharge(ctx context.Context, assignmentID string) error
	FindAssignmentByID(ctx context.Context, id string) (*models.BedAssignment, error)
	OpenAssignmentForPatient(ctx context.Context, patientID string) (*models.BedAssignment, error)
	ListAdmitted(ctx context.Context) ([]models.BedAssignmentDetail, error)
	Enqueue(ctx context.Context, entry *models.WaitlistEntry) error
	Waitlist(ctx context.Context, department string) ([]models.WaitlistDetail, error)
	RemoveFromWaitlist(ctx context.Context, id string) error
}

type bedPatientRepository interface {
	FindByID(ctx context.Context, id string) (*models.Patient, error)
}

// BedService handles rooms, beds, admissions and the hospitalization
// waitlist. Bed exclusivity rests on conditional state updates: a bed moves
// available -> occupied -> cleaning -> available and each hop only succeeds
// from its expected predecessor.
type BedService struct {
	rooms      roomRepository
	admissions admissionRepository
	patients   bedPatientRepository
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewBedService constructs the service.
func NewBedService(rooms roomRepository, admissions admissionRepository, patients bedPatientRepository, validate *validator.Validate, logger *zap.Logger) *BedService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BedService{rooms: rooms, admissions: admissions, patients: patients, validator: validate, logger: logger}
}

// CreateRoomRequest describes the room creation payload. The room number
// is generated from the department prefix.
type CreateRoomRequest struct {
	Department string `json:"department" validate:"required"`
	Type       string `json:"type" validate:"required"`
	Capacity   int    `json:"capacity" validate:"required,min=1,max=12"`
}

// AdmitRequest assigns a patient to a specific bed.
type AdmitRequest struct {
	PatientID string `json:"patient_id" validate:"required,uuid4"`
	BedID     string `json:"bed_id" validate:"required,uuid4"`
}

// WaitlistRequest queues a patient for a department.
type WaitlistRequest struct {
	PatientID  string `json:"patient_id" validate:"required,uuid4"`
	Department string `json:"department" validate:"required"`
}

// ListRooms returns rooms, optionally filtered by department.
func (s *BedService) ListRooms(ctx context.Context, department string) ([]models.Room, error) {
	rooms, err := s.rooms.ListRooms(ctx, department)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list rooms")
	}
	return rooms, nil
}

// GetRoom returns a room with its beds.
func (s *BedService) GetRoom(ctx context.Context, id string) (*models.Room, []models.Bed, error) {
	room, err := s.rooms.FindRoomByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get room")
	}
	beds, err := s.rooms.ListBeds(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list beds")
	}
	return room, beds, nil
}

// CreateRoom registers a room with a generated department-scoped number.
func (s *BedService) CreateRoom(ctx context.Context, req CreateRoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if !rotation.ValidDepartment(req.Department) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown department")
	}
	if !rotation.ValidRoomType(req.Department, req.Type) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "room type not offered by this department")
	}

	seq, err := s.rooms.NextRoomSequence(ctx, req.Department)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to number room")
	}

	room := &models.Room{
		Number:     fmt.Sprintf("%s%03d", rotation.RoomPrefix(req.Department), seq),
		Department: req.Department,
		Type:       req.Type,
		Capacity:   req.Capacity,
		Available:  true,
	}
	if err := s.rooms.CreateRoom(ctx, room); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create room")
	}
	return room, nil
}

// AddBed creates the next bed in a room, respecting its capacity.
func (s *BedService) AddBed(ctx context.Context, roomID string) (*models.Bed, error) {
	room, err := s.rooms.FindRoomByID(ctx, roomID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get room")
	}

	count, err := s.rooms.CountBedsInRoom(ctx, roomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count beds")
	}
	if count >= room.Capacity {
		return nil, appErrors.Clone(appErrors.ErrRoomAtCapacity, fmt.Sprintf("room %s already holds %d beds", room.Number, room.Capacity))
	}

	bed := &models.Bed{
		Code:   fmt.Sprintf("%s-C%d", room.Number, count+1),
		RoomID: roomID,
		Status: models.BedAvailable,
	}
	if err := s.rooms.CreateBed(ctx, bed); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create bed")
	}
	return bed, nil
}

// Admit assigns a patient to an available bed. One open admission per
// patient; the bed claim is atomic with the assignment.
func (s *BedService) Admit(ctx context.Context, req AdmitRequest) (*models.BedAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if _, err := s.patients.FindByID(ctx, req.PatientID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "patient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get patient")
	}
	if _, err := s.admissions.OpenAssignmentForPatient(ctx, req.PatientID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "patient is already admitted")
	} else if err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check admissions")
	}

	assignment, claimed, err := s.admissions.Admit(ctx, req.PatientID, req.BedID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to admit patient")
	}
	if !claimed {
		return nil, appErrors.Clone(appErrors.ErrBedUnavailable, "bed is no longer available")
	}
	s.logger.Info("patient admitted",
		zap.String("patient_id", req.PatientID),
		zap.String("bed_id", req.BedID))
	return assignment, nil
}

// Discharge releases a patient's bed into cleaning.
func (s *BedService) Discharge(ctx context.Context, assignmentID string) error {
	if err := s.admissions.Discharge(ctx, assignmentID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "open admission not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to discharge patient")
	}
	return nil
}

// ConfirmCleaning returns a cleaned bed to circulation.
func (s *BedService) ConfirmCleaning(ctx context.Context, bedID string) error {
	ok, err := s.rooms.SetBedStatus(ctx, bedID, models.BedCleaning, models.BedAvailable)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update bed")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrIllegalTransition, "bed is not awaiting cleaning")
	}
	return nil
}

// BlockBed takes an available bed out of service.
func (s *BedService) BlockBed(ctx context.Context, bedID string) error {
	ok, err := s.rooms.SetBedStatus(ctx, bedID, models.BedAvailable, models.BedBlocked)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update bed")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrIllegalTransition, "only available beds can be blocked")
	}
	return nil
}

// UnblockBed returns a blocked bed to service.
func (s *BedService) UnblockBed(ctx context.Context, bedID string) error {
	ok, err := s.rooms.SetBedStatus(ctx, bedID, models.BedBlocked, models.BedAvailable)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update bed")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrIllegalTransition, "bed is not blocked")
	}
	return nil
}

// ListAdmitted returns current admissions.
func (s *BedService) ListAdmitted(ctx context.Context) ([]models.BedAssignmentDetail, error) {
	admitted, err := s.admissions.ListAdmitted(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list admissions")
	}
	return admitted, nil
}

// AvailableRooms returns rooms with free beds for a department.
func (s *BedService) AvailableRooms(ctx context.Context, department string) ([]models.AvailabilityItem, error) {
	if !rotation.ValidDepartment(department) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown department")
	}
	items, err := s.rooms.AvailableRooms(ctx, department)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list available rooms")
	}
	return items, nil
}

// AvailableBeds returns the free beds in a room.
func (s *BedService) AvailableBeds(ctx context.Context, roomID string) ([]models.AvailabilityItem, error) {
	if _, err := s.rooms.FindRoomByID(ctx, roomID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get room")
	}
	items, err := s.rooms.AvailableBeds(ctx, roomID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list available beds")
	}
	return items, nil
}

// JoinWaitlist queues a patient for a department's next free bed.
func (s *BedService) JoinWaitlist(ctx context.Context, req WaitlistRequest) (*models.WaitlistEntry, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if !rotation.ValidDepartment(req.Department) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown department")
	}
	if _, err := s.patients.FindByID(ctx, req.PatientID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "patient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get patient")
	}

	entry := &models.WaitlistEntry{PatientID: req.PatientID, Department: req.Department}
	if err := s.admissions.Enqueue(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to join waitlist")
	}
	return entry, nil
}

// Waitlist returns pending entries, oldest first.
func (s *BedService) Waitlist(ctx context.Context, department string) ([]models.WaitlistDetail, error) {
	entries, err := s.admissions.Waitlist(ctx, department)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list waitlist")
	}
	return entries, nil
}

// LeaveWaitlist removes a waitlist entry.
func (s *BedService) LeaveWaitlist(ctx context.Context, entryID string) error {
	if err := s.admissions.RemoveFromWaitlist(ctx, entryID); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "waitlist entry not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to leave waitlist")
	}
	return nil
}
