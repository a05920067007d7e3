package models

import "time"

// BedAssignment links a patient to a bed. DischargedAt stays null while the
// assignment is open; the row is retained as history after release.
type BedAssignment struct {
	ID           string     `db:"id" json:"id"`
	PatientID    string     `db:"patient_id" json:"patient_id"`
	BedID        string     `db:"bed_id" json:"bed_id"`
	AdmittedAt   time.Time  `db:"admitted_at" json:"admitted_at"`
	DischargedAt *time.Time `db:"discharged_at" json:"discharged_at,omitempty"`
}

// BedAssignmentDetail enriches an assignment with patient and bed context.
type BedAssignmentDetail struct {
	BedAssignment
	PatientName string `db:"patient_name" json:"patient_name"`
	BedCode     string `db:"bed_code" json:"bed_code"`
	RoomNumber  string `db:"room_number" json:"room_number"`
	Department  string `db:"department" json:"department"`
}

// WaitlistEntry queues a patient for bed availability in a department,
// served first-come first-served.
type WaitlistEntry struct {
	ID           string    `db:"id" json:"id"`
	PatientID    string    `db:"patient_id" json:"patient_id"`
	Department   string    `db:"department" json:"department"`
	RegisteredAt time.Time `db:"registered_at" json:"registered_at"`
}

// WaitlistDetail joins the waitlist with patient names for display.
type WaitlistDetail struct {
	WaitlistEntry
	PatientName string `db:"patient_name" json:"patient_name"`
}
