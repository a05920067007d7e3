package models

import "time"

// AppointmentStatus enumerates the appointment lifecycle.
type AppointmentStatus string

const (
	AppointmentPending    AppointmentStatus = "pending"
	AppointmentAccepted   AppointmentStatus = "accepted"
	AppointmentRejected   AppointmentStatus = "rejected"
	AppointmentCancelled  AppointmentStatus = "cancelled"
	AppointmentWaiting    AppointmentStatus = "waiting"
	AppointmentInProgress AppointmentStatus = "in_progress"
	AppointmentAttended   AppointmentStatus = "attended"
)

// appointmentTransitions is the single authoritative transition table.
// Every guarded operation resolves legality here instead of scattering
// status checks across call sites.
var appointmentTransitions = map[AppointmentStatus][]AppointmentStatus{
	AppointmentPending: {
		AppointmentWaiting,
		AppointmentAccepted,
		AppointmentRejected,
		AppointmentCancelled,
	},
	AppointmentWaiting:    {AppointmentInProgress},
	AppointmentInProgress: {AppointmentAttended},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to AppointmentStatus) bool {
	for _, next := range appointmentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidAppointmentStatus reports whether the value is a known status.
func ValidAppointmentStatus(s AppointmentStatus) bool {
	switch s {
	case AppointmentPending, AppointmentAccepted, AppointmentRejected,
		AppointmentCancelled, AppointmentWaiting, AppointmentInProgress,
		AppointmentAttended:
		return true
	}
	return false
}

// Appointment represents a scheduled encounter between a patient and a doctor.
// Priority is a plain integer; lower values are served first.
type Appointment struct {
	ID           string            `db:"id" json:"id"`
	PatientID    string            `db:"patient_id" json:"patient_id"`
	DoctorID     string            `db:"doctor_id" json:"doctor_id"`
	Date         time.Time         `db:"appointment_date" json:"date"`
	Time         string            `db:"appointment_time" json:"time"`
	Status       AppointmentStatus `db:"status" json:"status"`
	Priority     int               `db:"priority" json:"priority"`
	TicketNumber *string           `db:"ticket_number" json:"ticket_number,omitempty"`
	StartedAt    *time.Time        `db:"started_at" json:"started_at,omitempty"`
	EndedAt      *time.Time        `db:"ended_at" json:"ended_at,omitempty"`
	Rating       *int              `db:"rating" json:"rating,omitempty"`
	CreatedAt    time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time         `db:"updated_at" json:"updated_at"`
}

// AppointmentFilter describes query params for listing appointments.
type AppointmentFilter struct {
	DoctorID  string
	PatientID string
	Status    *AppointmentStatus
	Date      *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// QueueEntry is one waiting appointment enriched with patient/doctor names
// for queue boards.
type QueueEntry struct {
	Appointment
	PatientName string `db:"patient_name" json:"patient_name"`
	DoctorName  string `db:"doctor_name" json:"doctor_name"`
}

// DoctorPerformance aggregates attended counts and mean rating per doctor.
// AverageRating is 0 when no attended appointment carries a rating; callers
// must not read that as "zero-rated".
type DoctorPerformance struct {
	DoctorID      string  `db:"doctor_id" json:"doctor_id"`
	DoctorName    string  `db:"doctor_name" json:"doctor_name"`
	Department    *string `db:"department" json:"department,omitempty"`
	AttendedCount int     `db:"attended_count" json:"attended_count"`
	AverageRating float64 `db:"average_rating" json:"average_rating"`
}
