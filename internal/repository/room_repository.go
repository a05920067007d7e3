package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sanvida/hms-api/internal/models"
)

// RoomRepository manages persistence for rooms and beds, including the
// conditional bed state changes that back admissions.
type RoomRepository struct {
	db *sqlx.DB
}

// NewRoomRepository constructs a RoomRepository.
func NewRoomRepository(db *sqlx.DB) *RoomRepository {
	return &RoomRepository{db: db}
}

const roomColumns = "id, room_number, department, room_type, capacity, available, created_at, updated_at"
const bedColumns = "id, code, room_id, status, created_at, updated_at"

// ListRooms returns rooms, optionally filtered by department.
func (r *RoomRepository) ListRooms(ctx context.Context, department string) ([]models.Room, error) {
	query := fmt.Sprintf("SELECT %s FROM rooms", roomColumns)
	var args []interface{}
	if department != "" {
		query += " WHERE department = $1"
		args = append(args, department)
	}
	query += " ORDER BY room_number"

	var rooms []models.Room
	if err := r.db.SelectContext(ctx, &rooms, query, args...); err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}
	return rooms, nil
}

// FindRoomByID fetches a room by ID.
func (r *RoomRepository) FindRoomByID(ctx context.Context, id string) (*models.Room, error) {
	query := fmt.Sprintf("SELECT %s FROM rooms WHERE id = $1", roomColumns)
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, id); err != nil {
		return nil, err
	}
	return &room, nil
}

// NextRoomSequence returns the next sequence number for room numbering
// within a department, based on the highest existing numeric suffix.
func (r *RoomRepository) NextRoomSequence(ctx context.Context, department string) (int, error) {
	const query = `SELECT COALESCE(MAX(CAST(RIGHT(room_number, 3) AS integer)), 0) + 1
		FROM rooms WHERE department = $1`
	var next int
	if err := r.db.GetContext(ctx, &next, query, department); err != nil {
		return 0, fmt.Errorf("next room sequence: %w", err)
	}
	return next, nil
}

// CreateRoom inserts a new room.
func (r *RoomRepository) CreateRoom(ctx context.Context, room *models.Room) error {
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	room.CreatedAt = now
	room.UpdatedAt = now

	const query = `INSERT INTO rooms (id, room_number, department, room_type, capacity, available, created_at, updated_at)
		VALUES (:id, :room_number, :department, :room_type, :capacity, :available, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("create room: %w", err)
	}
	return nil
}

// UpdateRoom modifies a room's mutable fields.
func (r *RoomRepository) UpdateRoom(ctx context.Context, room *models.Room) error {
	room.UpdatedAt = time.Now().UTC()
	const query = `UPDATE rooms SET room_type = :room_type, capacity = :capacity, available = :available, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, room); err != nil {
		return fmt.Errorf("update room: %w", err)
	}
	return nil
}

// ListBeds returns the beds in a room ordered by code.
func (r *RoomRepository) ListBeds(ctx context.Context, roomID string) ([]models.Bed, error) {
	query := fmt.Sprintf("SELECT %s FROM beds WHERE room_id = $1 ORDER BY code", bedColumns)
	var beds []models.Bed
	if err := r.db.SelectContext(ctx, &beds, query, roomID); err != nil {
		return nil, fmt.Errorf("list beds: %w", err)
	}
	return beds, nil
}

// FindBedByID fetches a bed by ID.
func (r *RoomRepository) FindBedByID(ctx context.Context, id string) (*models.Bed, error) {
	query := fmt.Sprintf("SELECT %s FROM beds WHERE id = $1", bedColumns)
	var bed models.Bed
	if err := r.db.GetContext(ctx, &bed, query, id); err != nil {
		return nil, err
	}
	return &bed, nil
}

// CountBedsInRoom returns the number of beds a room currently holds.
func (r *RoomRepository) CountBedsInRoom(ctx context.Context, roomID string) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM beds WHERE room_id = $1", roomID); err != nil {
		return 0, fmt.Errorf("count beds: %w", err)
	}
	return count, nil
}

// CreateBed inserts a new bed in available state.
func (r *RoomRepository) CreateBed(ctx context.Context, bed *models.Bed) error {
	if bed.ID == "" {
		bed.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	bed.CreatedAt = now
	bed.UpdatedAt = now

	const query = `INSERT INTO beds (id, code, room_id, status, created_at, updated_at)
		VALUES (:id, :code, :room_id, :status, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, bed); err != nil {
		return fmt.Errorf("create bed: %w", err)
	}
	return nil
}

// SetBedStatus changes a bed's status conditionally: the write only lands
// when the bed is still in the expected state. Returns false when the bed
// was concurrently taken or already moved on.
func (r *RoomRepository) SetBedStatus(ctx context.Context, bedID string, from, to models.BedStatus) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE beds SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		bedID, from, to, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("set bed status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("set bed status rows: %w", err)
	}
	return rows == 1, nil
}

// AvailableRooms returns rooms in a department that still have free beds,
// with the free bed count per room.
func (r *RoomRepository) AvailableRooms(ctx context.Context, department string) ([]models.AvailabilityItem, error) {
	const query = `SELECT r.id, r.room_number AS label, COUNT(b.id) AS count
		FROM rooms r
		JOIN beds b ON b.room_id = r.id AND b.status = 'available'
		WHERE r.department = $1 AND r.available = true
		GROUP BY r.id, r.room_number
		ORDER BY r.room_number`
	var items []models.AvailabilityItem
	if err := r.db.SelectContext(ctx, &items, query, department); err != nil {
		return nil, fmt.Errorf("available rooms: %w", err)
	}
	return items, nil
}

// AvailableBeds returns the free beds in a room.
func (r *RoomRepository) AvailableBeds(ctx context.Context, roomID string) ([]models.AvailabilityItem, error) {
	const query = `SELECT id, code AS label, 1 AS count
		FROM beds WHERE room_id = $1 AND status = 'available'
		ORDER BY code`
	var items []models.AvailabilityItem
	if err := r.db.SelectContext(ctx, &items, query, roomID); err != nil {
		return nil, fmt.Errorf("available beds: %w", err)
	}
	return items, nil
}

// BedOccupancy returns total and occupied bed counts, for the dashboard.
func (r *RoomRepository) BedOccupancy(ctx context.Context) (total, occupied int, err error) {
	const query = `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE status = 'occupied') AS occupied FROM beds`
	row := r.db.QueryRowxContext(ctx, query)
	if err := row.Scan(&total, &occupied); err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("bed occupancy: %w", err)
	}
	return total, occupied, nil
}
