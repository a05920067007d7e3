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
	appErrors "github.com/sanvida/hms-api/pkg/errors"
)

const testBedID = "5a6b7c8d-9e0f-4a1b-8c2d-3e4f5a6b7c8d"

type mockRoomRepo struct {
	rooms   map[string]*models.Room
	beds    map[string]*models.Bed
	roomSeq int
}

func (m *mockRoomRepo) ListRooms(_ context.Context, department string) ([]models.Room, error) {
	var out []models.Room
	for _, room := range m.rooms {
		if department == "" || room.Department == department {
			out = append(out, *room)
		}
	}
	return out, nil
}

func (m *mockRoomRepo) FindRoomByID(_ context.Context, id string) (*models.Room, error) {
	room, ok := m.rooms[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *room
	return &copied, nil
}

func (m *mockRoomRepo) NextRoomSequence(_ context.Context, _ string) (int, error) {
	m.roomSeq++
	return m.roomSeq, nil
}

func (m *mockRoomRepo) CreateRoom(_ context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = fmt.Sprintf("room-%d", len(m.rooms)+1)
	}
	if m.rooms == nil {
		m.rooms = make(map[string]*models.Room)
	}
	stored := *room
	m.rooms[room.ID] = &stored
	return nil
}

func (m *mockRoomRepo) UpdateRoom(_ context.Context, room *models.Room) error {
	stored := *room
	m.rooms[room.ID] = &stored
	return nil
}

func (m *mockRoomRepo) ListBeds(_ context.Context, roomID string) ([]models.Bed, error) {
	var out []models.Bed
	for _, bed := range m.beds {
		if bed.RoomID == roomID {
			out = append(out, *bed)
		}
	}
	return out, nil
}

func (m *mockRoomRepo) FindBedByID(_ context.Context, id string) (*models.Bed, error) {
	bed, ok := m.beds[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *bed
	return &copied, nil
}

func (m *mockRoomRepo) CountBedsInRoom(_ context.Context, roomID string) (int, error) {
	count := 0
	for _, bed := range m.beds {
		if bed.RoomID == roomID {
			count++
		}
	}
	return count, nil
}

func (m *mockRoomRepo) CreateBed(_ context.Context, bed *models.Bed) error {
	if bed.ID == "" {
		bed.ID = fmt.Sprintf("bed-%d", len(m.beds)+1)
	}
	if m.beds == nil {
		m.beds = make(map[string]*models.Bed)
	}
	stored := *bed
	m.beds[bed.ID] = &stored
	return nil
}

func (m *mockRoomRepo) SetBedStatus(_ context.Context, bedID string, from, to models.BedStatus) (bool, error) {
	bed, ok := m.beds[bedID]
	if !ok || bed.Status != from {
		return false, nil
	}
	bed.Status = to
	return true, nil
}

func (m *mockRoomRepo) AvailableRooms(_ context.Context, department string) ([]models.AvailabilityItem, error) {
	var out []models.AvailabilityItem
	for _, room := range m.rooms {
		if room.Department != department {
			continue
		}
		free := 0
		for _, bed := range m.beds {
			if bed.RoomID == room.ID && bed.Status == models.BedAvailable {
				free++
			}
		}
		if free > 0 {
			out = append(out, models.AvailabilityItem{ID: room.ID, Label: room.Number, Count: free})
		}
	}
	return out, nil
}

func (m *mockRoomRepo) AvailableBeds(_ context.Context, roomID string) ([]models.AvailabilityItem, error) {
	var out []models.AvailabilityItem
	for _, bed := range m.beds {
		if bed.RoomID == roomID && bed.Status == models.BedAvailable {
			out = append(out, models.AvailabilityItem{ID: bed.ID, Label: bed.Code, Count: 1})
		}
	}
	return out, nil
}

type mockAdmissionRepo struct {
	rooms       *mockRoomRepo
	assignments map[string]*models.BedAssignment
	waitlist    map[string]*models.WaitlistEntry
	seq         int
}

func (m *mockAdmissionRepo) Admit(_ context.Context, patientID, bedID string) (*models.BedAssignment, bool, error) {
	bed, ok := m.rooms.beds[bedID]
	if !ok || bed.Status != models.BedAvailable {
		return nil, false, nil
	}
	bed.Status = models.BedOccupied
	m.seq++
	assignment := &models.BedAssignment{
		ID:         fmt.Sprintf("assign-%d", m.seq),
		PatientID:  patientID,
		BedID:      bedID,
		AdmittedAt: time.Now().UTC(),
	}
	if m.assignments == nil {
		m.assignments = make(map[string]*models.BedAssignment)
	}
	m.assignments[assignment.ID] = assignment
	for id, entry := range m.waitlist {
		if entry.PatientID == patientID {
			delete(m.waitlist, id)
		}
	}
	return assignment, true, nil
}

func (m *mockAdmissionRepo) Discharge(_ context.Context, assignmentID string) error {
	assignment, ok := m.assignments[assignmentID]
	if !ok || assignment.DischargedAt != nil {
		return sql.ErrNoRows
	}
	now := time.Now().UTC()
	assignment.DischargedAt = &now
	if bed, ok := m.rooms.beds[assignment.BedID]; ok {
		bed.Status = models.BedCleaning
	}
	return nil
}

func (m *mockAdmissionRepo) FindAssignmentByID(_ context.Context, id string) (*models.BedAssignment, error) {
	assignment, ok := m.assignments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *assignment
	return &copied, nil
}

func (m *mockAdmissionRepo) OpenAssignmentForPatient(_ context.Context, patientID string) (*models.BedAssignment, error) {
	for _, assignment := range m.assignments {
		if assignment.PatientID == patientID && assignment.DischargedAt == nil {
			copied := *assignment
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockAdmissionRepo) ListAdmitted(_ context.Context) ([]models.BedAssignmentDetail, error) {
	var out []models.BedAssignmentDetail
	for _, assignment := range m.assignments {
		if assignment.DischargedAt == nil {
			out = append(out, models.BedAssignmentDetail{BedAssignment: *assignment})
		}
	}
	return out, nil
}

func (m *mockAdmissionRepo) Enqueue(_ context.Context, entry *models.WaitlistEntry) error {
	m.seq++
	entry.ID = fmt.Sprintf("wait-%d", m.seq)
	entry.RegisteredAt = time.Now().UTC()
	if m.waitlist == nil {
		m.waitlist = make(map[string]*models.WaitlistEntry)
	}
	stored := *entry
	m.waitlist[entry.ID] = &stored
	return nil
}

func (m *mockAdmissionRepo) Waitlist(_ context.Context, department string) ([]models.WaitlistDetail, error) {
	var out []models.WaitlistDetail
	for _, entry := range m.waitlist {
		if department == "" || entry.Department == department {
			out = append(out, models.WaitlistDetail{WaitlistEntry: *entry})
		}
	}
	return out, nil
}

func (m *mockAdmissionRepo) RemoveFromWaitlist(_ context.Context, id string) error {
	if _, ok := m.waitlist[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.waitlist, id)
	return nil
}

type mockPatientFinder struct {
	patients map[string]*models.Patient
}

func (m *mockPatientFinder) FindByID(_ context.Context, id string) (*models.Patient, error) {
	patient, ok := m.patients[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return patient, nil
}

func newBedFixture() (*BedService, *mockRoomRepo, *mockAdmissionRepo) {
	rooms := &mockRoomRepo{
		rooms: map[string]*models.Room{
			"room-1": {ID: "room-1", Number: "EME001", Department: "Emergency", Type: "Observation", Capacity: 2, Available: true},
		},
		beds: map[string]*models.Bed{
			testBedID: {ID: testBedID, Code: "EME001-C1", RoomID: "room-1", Status: models.BedAvailable},
		},
	}
	admissions := &mockAdmissionRepo{rooms: rooms}
	patients := &mockPatientFinder{patients: map[string]*models.Patient{
		testPatientID: {ID: testPatientID, FirstName: "Luis", LastName: "Mora"},
	}}
	svc := NewBedService(rooms, admissions, patients, validator.New(), zap.NewNop())
	return svc, rooms, admissions
}

func TestBedServiceCreateRoomNumbering(t *testing.T) {
	svc, _, _ := newBedFixture()

	room, err := svc.CreateRoom(context.Background(), CreateRoomRequest{Department: "Emergency", Type: "Observation", Capacity: 3})
	require.NoError(t, err)
	assert.Equal(t, "EME001", room.Number)
	assert.True(t, room.Available)
}

func TestBedServiceCreateRoomRejectsForeignType(t *testing.T) {
	svc, _, _ := newBedFixture()

	_, err := svc.CreateRoom(context.Background(), CreateRoomRequest{Department: "Laboratory", Type: "Single", Capacity: 2})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBedServiceAddBedRespectsCapacity(t *testing.T) {
	svc, rooms, _ := newBedFixture()
	ctx := context.Background()

	bed, err := svc.AddBed(ctx, "room-1")
	require.NoError(t, err)
	assert.Equal(t, "EME001-C2", bed.Code)
	assert.Equal(t, models.BedAvailable, bed.Status)

	_, err = svc.AddBed(ctx, "room-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrRoomAtCapacity.Code, appErrors.FromError(err).Code)
	count, _ := rooms.CountBedsInRoom(ctx, "room-1")
	assert.Equal(t, 2, count)
}

func TestBedServiceAdmitClaimsBed(t *testing.T) {
	svc, rooms, _ := newBedFixture()

	assignment, err := svc.Admit(context.Background(), AdmitRequest{PatientID: testPatientID, BedID: testBedID})
	require.NoError(t, err)
	assert.Equal(t, testPatientID, assignment.PatientID)
	assert.Nil(t, assignment.DischargedAt)
	assert.Equal(t, models.BedOccupied, rooms.beds[testBedID].Status)
}

func TestBedServiceAdmitRejectsSecondAdmission(t *testing.T) {
	svc, rooms, _ := newBedFixture()
	ctx := context.Background()

	_, err := svc.Admit(ctx, AdmitRequest{PatientID: testPatientID, BedID: testBedID})
	require.NoError(t, err)

	rooms.beds["bed-2"] = &models.Bed{ID: "bed-2", Code: "EME001-C2", RoomID: "room-1", Status: models.BedAvailable}
	_, err = svc.Admit(ctx, AdmitRequest{PatientID: testPatientID, BedID: testBedID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestBedServiceAdmitLosesRace(t *testing.T) {
	svc, rooms, _ := newBedFixture()
	rooms.beds[testBedID].Status = models.BedOccupied

	_, err := svc.Admit(context.Background(), AdmitRequest{PatientID: testPatientID, BedID: testBedID})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrBedUnavailable.Code, appErrors.FromError(err).Code)
}

func TestBedServiceBedLifecycle(t *testing.T) {
	svc, rooms, _ := newBedFixture()
	ctx := context.Background()

	assignment, err := svc.Admit(ctx, AdmitRequest{PatientID: testPatientID, BedID: testBedID})
	require.NoError(t, err)

	// occupied beds cannot be blocked
	err = svc.BlockBed(ctx, testBedID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrIllegalTransition.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Discharge(ctx, assignment.ID))
	assert.Equal(t, models.BedCleaning, rooms.beds[testBedID].Status)

	// cleaning must be confirmed before the bed is available again
	err = svc.BlockBed(ctx, testBedID)
	require.Error(t, err)

	require.NoError(t, svc.ConfirmCleaning(ctx, testBedID))
	assert.Equal(t, models.BedAvailable, rooms.beds[testBedID].Status)

	require.NoError(t, svc.BlockBed(ctx, testBedID))
	assert.Equal(t, models.BedBlocked, rooms.beds[testBedID].Status)
	require.NoError(t, svc.UnblockBed(ctx, testBedID))
	assert.Equal(t, models.BedAvailable, rooms.beds[testBedID].Status)
}

func TestBedServiceDischargeTwice(t *testing.T) {
	svc, _, _ := newBedFixture()
	ctx := context.Background()

	assignment, err := svc.Admit(ctx, AdmitRequest{PatientID: testPatientID, BedID: testBedID})
	require.NoError(t, err)
	require.NoError(t, svc.Discharge(ctx, assignment.ID))

	err = svc.Discharge(ctx, assignment.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestBedServiceWaitlistClearedOnAdmission(t *testing.T) {
	svc, _, _ := newBedFixture()
	ctx := context.Background()

	entry, err := svc.JoinWaitlist(ctx, WaitlistRequest{PatientID: testPatientID, Department: "Emergency"})
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)

	pending, err := svc.Waitlist(ctx, "Emergency")
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	_, err = svc.Admit(ctx, AdmitRequest{PatientID: testPatientID, BedID: testBedID})
	require.NoError(t, err)

	pending, err = svc.Waitlist(ctx, "Emergency")
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestBedServiceAvailability(t *testing.T) {
	svc, rooms, _ := newBedFixture()
	ctx := context.Background()

	items, err := svc.AvailableRooms(ctx, "Emergency")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "EME001", items[0].Label)
	assert.Equal(t, 1, items[0].Count)

	rooms.beds[testBedID].Status = models.BedOccupied
	items, err = svc.AvailableRooms(ctx, "Emergency")
	require.NoError(t, err)
	assert.Empty(t, items)

	beds, err := svc.AvailableBeds(ctx, "room-1")
	require.NoError(t, err)
	assert.Empty(t, beds)
}
