package models

import "time"

// Patient represents a registered patient.
type Patient struct {
	ID           string    `db:"id" json:"id"`
	NationalID   string    `db:"national_id" json:"national_id"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	SecondLast   *string   `db:"second_last_name" json:"second_last_name,omitempty"`
	BirthDate    time.Time `db:"birth_date" json:"birth_date"`
	Gender       string    `db:"gender" json:"gender"`
	Phone        *string   `db:"phone" json:"phone,omitempty"`
	Address      *string   `db:"address" json:"address,omitempty"`
	RegisteredAt time.Time `db:"registered_at" json:"registered_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// PatientFilter encapsulates allowed search parameters for listing patients.
type PatientFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Anamnesis is a clinical history entry recorded during consultation.
type Anamnesis struct {
	ID                string    `db:"id" json:"id"`
	PatientID         string    `db:"patient_id" json:"patient_id"`
	ChiefComplaint    string    `db:"chief_complaint" json:"chief_complaint"`
	VitalSigns        string    `db:"vital_signs" json:"vital_signs"`
	PresentIllness    string    `db:"present_illness" json:"present_illness"`
	PathologicHistory string    `db:"pathologic_history" json:"pathologic_history"`
	NonPathologic     string    `db:"non_pathologic_history" json:"non_pathologic_history"`
	ObstetricHistory  *string   `db:"obstetric_history" json:"obstetric_history,omitempty"`
	FamilyHistory     string    `db:"family_history" json:"family_history"`
	RecordedAt        time.Time `db:"recorded_at" json:"recorded_at"`
}

// Diagnosis is a dated diagnosis with its prescribed treatment.
type Diagnosis struct {
	ID          string     `db:"id" json:"id"`
	PatientID   string     `db:"patient_id" json:"patient_id"`
	Description string     `db:"description" json:"description"`
	Specialty   string     `db:"specialty" json:"specialty"`
	Treatment   string     `db:"treatment" json:"treatment"`
	StartDate   time.Time  `db:"start_date" json:"start_date"`
	EndDate     *time.Time `db:"end_date" json:"end_date,omitempty"`
}
