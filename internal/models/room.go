package models

import "time"

// BedStatus enumerates the bed lifecycle: available -> occupied -> cleaning
// -> available, plus a manually blocked state.
type BedStatus string

const (
	BedAvailable BedStatus = "available"
	BedOccupied  BedStatus = "occupied"
	BedCleaning  BedStatus = "cleaning"
	BedBlocked   BedStatus = "blocked"
)

// Room is a physical room inside a department. Number is generated from the
// department prefix plus a sequence and is unique hospital-wide.
type Room struct {
	ID         string    `db:"id" json:"id"`
	Number     string    `db:"room_number" json:"number"`
	Department string    `db:"department" json:"department"`
	Type       string    `db:"room_type" json:"type"`
	Capacity   int       `db:"capacity" json:"capacity"`
	Available  bool      `db:"available" json:"available"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Bed is a physical bed inside a room. Code derives from the room number
// plus a per-room sequence (e.g. EME001-C2).
type Bed struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	RoomID    string    `db:"room_id" json:"room_id"`
	Status    BedStatus `db:"status" json:"status"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// BedDetail joins bed rows with their room for listings.
type BedDetail struct {
	Bed
	RoomNumber string `db:"room_number" json:"room_number"`
	Department string `db:"department" json:"department"`
}

// AvailabilityItem is the wire shape of the availability lookups: an
// available room (count = free beds) or an available bed (count = 1).
type AvailabilityItem struct {
	ID    string `db:"id" json:"id"`
	Label string `db:"label" json:"label"`
	Count int    `db:"count" json:"count"`
}
