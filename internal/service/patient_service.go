package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sanvida/hms-api/internal/models"
	appErrors "github.com/sanvida/hms-api/pkg/errors"
)

type patientRepository interface {
	List(ctx context.Context, filter models.PatientFilter) ([]models.Patient, int, error)
	FindByID(ctx context.Context, id string) (*models.Patient, error)
	FindByNationalID(ctx context.Context, nationalID string) (*models.Patient, error)
	Create(ctx context.Context, patient *models.Patient) error
	Update(ctx context.Context, patient *models.Patient) error
	CreateAnamnesis(ctx context.Context, entry *models.Anamnesis) error
	ListAnamnesis(ctx context.Context, patientID string) ([]models.Anamnesis, error)
	CreateDiagnosis(ctx context.Context, diagnosis *models.Diagnosis) error
	ListDiagnoses(ctx context.Context, patientID string) ([]models.Diagnosis, error)
	CloseDiagnosis(ctx context.Context, id string, endDate time.Time) error
}

// PatientService handles patient demographics and clinical records.
type PatientService struct {
	repo      patientRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPatientService constructs the service.
func NewPatientService(repo patientRepository, validate *validator.Validate, logger *zap.Logger) *PatientService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PatientService{repo: repo, validator: validate, logger: logger}
}

// CreatePatientRequest describes the registration payload.
type CreatePatientRequest struct {
	NationalID string  `json:"national_id" validate:"required"`
	FirstName  string  `json:"first_name" validate:"required"`
	LastName   string  `json:"last_name" validate:"required"`
	SecondLast *string `json:"second_last_name"`
	BirthDate  string  `json:"birth_date" validate:"required,datetime=2006-01-02"`
	Gender     string  `json:"gender" validate:"required,oneof=F M X"`
	Phone      *string `json:"phone"`
	Address    *string `json:"address"`
}

// CreateAnamnesisRequest describes a clinical history entry.
type CreateAnamnesisRequest struct {
	ChiefComplaint    string  `json:"chief_complaint" validate:"required"`
	VitalSigns        string  `json:"vital_signs" validate:"required"`
	PresentIllness    string  `json:"present_illness" validate:"required"`
	PathologicHistory string  `json:"pathologic_history"`
	NonPathologic     string  `json:"non_pathologic_history"`
	ObstetricHistory  *string `json:"obstetric_history"`
	FamilyHistory     string  `json:"family_history"`
}

// CreateDiagnosisRequest describes a diagnosis entry.
type CreateDiagnosisRequest struct {
	Description string `json:"description" validate:"required"`
	Specialty   string `json:"specialty" validate:"required"`
	Treatment   string `json:"treatment" validate:"required"`
	StartDate   string `json:"start_date" validate:"required,datetime=2006-01-02"`
}

// List returns patients with pagination.
func (s *PatientService) List(ctx context.Context, filter models.PatientFilter) ([]models.Patient, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list patients")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return rows, pagination, nil
}

// Get returns a patient by id.
func (s *PatientService) Get(ctx context.Context, id string) (*models.Patient, error) {
	patient, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "patient not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get patient")
	}
	return patient, nil
}

// Create registers a new patient. The national identity number is unique.
func (s *PatientService) Create(ctx context.Context, req CreatePatientRequest) (*models.Patient, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if existing, err := s.repo.FindByNationalID(ctx, req.NationalID); err == nil && existing != nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "a patient with this national id already exists")
	} else if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check national id")
	}

	birthDate, err := time.ParseInLocation("2006-01-02", req.BirthDate, time.UTC)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid birth date")
	}

	patient := &models.Patient{
		NationalID: req.NationalID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		SecondLast: req.SecondLast,
		BirthDate:  birthDate,
		Gender:     req.Gender,
		Phone:      req.Phone,
		Address:    req.Address,
	}
	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create patient")
	}
	return patient, nil
}

// Update modifies a patient's demographic fields.
func (s *PatientService) Update(ctx context.Context, id string, req CreatePatientRequest) (*models.Patient, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	patient, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if patient.NationalID != req.NationalID {
		if existing, err := s.repo.FindByNationalID(ctx, req.NationalID); err == nil && existing != nil {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a patient with this national id already exists")
		} else if err != nil && err != sql.ErrNoRows {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check national id")
		}
	}

	birthDate, err := time.ParseInLocation("2006-01-02", req.BirthDate, time.UTC)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid birth date")
	}

	patient.NationalID = req.NationalID
	patient.FirstName = req.FirstName
	patient.LastName = req.LastName
	patient.SecondLast = req.SecondLast
	patient.BirthDate = birthDate
	patient.Gender = req.Gender
	patient.Phone = req.Phone
	patient.Address = req.Address

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update patient")
	}
	return patient, nil
}

// AddAnamnesis appends a clinical history entry.
func (s *PatientService) AddAnamnesis(ctx context.Context, patientID string, req CreateAnamnesisRequest) (*models.Anamnesis, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if _, err := s.Get(ctx, patientID); err != nil {
		return nil, err
	}

	entry := &models.Anamnesis{
		PatientID:         patientID,
		ChiefComplaint:    req.ChiefComplaint,
		VitalSigns:        req.VitalSigns,
		PresentIllness:    req.PresentIllness,
		PathologicHistory: req.PathologicHistory,
		NonPathologic:     req.NonPathologic,
		ObstetricHistory:  req.ObstetricHistory,
		FamilyHistory:     req.FamilyHistory,
	}
	if err := s.repo.CreateAnamnesis(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save anamnesis")
	}
	return entry, nil
}

// History returns a patient's clinical history entries.
func (s *PatientService) History(ctx context.Context, patientID string) ([]models.Anamnesis, error) {
	if _, err := s.Get(ctx, patientID); err != nil {
		return nil, err
	}
	entries, err := s.repo.ListAnamnesis(ctx, patientID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list anamnesis")
	}
	return entries, nil
}

// AddDiagnosis records a diagnosis for a patient.
func (s *PatientService) AddDiagnosis(ctx context.Context, patientID string, req CreateDiagnosisRequest) (*models.Diagnosis, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if _, err := s.Get(ctx, patientID); err != nil {
		return nil, err
	}

	startDate, err := time.ParseInLocation("2006-01-02", req.StartDate, time.UTC)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "invalid start date")
	}

	diagnosis := &models.Diagnosis{
		PatientID:   patientID,
		Description: req.Description,
		Specialty:   req.Specialty,
		Treatment:   req.Treatment,
		StartDate:   startDate,
	}
	if err := s.repo.CreateDiagnosis(ctx, diagnosis); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save diagnosis")
	}
	return diagnosis, nil
}

// Diagnoses returns a patient's diagnoses.
func (s *PatientService) Diagnoses(ctx context.Context, patientID string) ([]models.Diagnosis, error) {
	if _, err := s.Get(ctx, patientID); err != nil {
		return nil, err
	}
	diagnoses, err := s.repo.ListDiagnoses(ctx, patientID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list diagnoses")
	}
	return diagnoses, nil
}

// CloseDiagnosis ends treatment for an open diagnosis.
func (s *PatientService) CloseDiagnosis(ctx context.Context, diagnosisID string) error {
	if err := s.repo.CloseDiagnosis(ctx, diagnosisID, time.Now().UTC()); err != nil {
		if err == sql.ErrNoRows {
			return appErrors.Clone(appErrors.ErrNotFound, "open diagnosis not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to close diagnosis")
	}
	return nil
}
