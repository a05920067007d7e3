package service

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sanvida/hms-api/internal/models"
	appErrors "github.com/sanvida/hms-api/pkg/errors"
	"github.com/sanvida/hms-api/pkg/export"
	"github.com/sanvida/hms-api/pkg/storage"
)

// ExportType selects which dataset an export renders.
type ExportType string

// ExportFormat selects the output encoding.
type ExportFormat string

const (
	ExportTypePatients      ExportType = "patients"
	ExportTypeRoster        ExportType = "roster"
	ExportTypePerformance   ExportType = "performance"
	ExportTypeInvoices      ExportType = "invoices"
	ExportTypeMedicalRecord ExportType = "medical_record"

	ExportFormatCSV ExportFormat = "csv"
	ExportFormatPDF ExportFormat = "pdf"
)

type exportPatientRepository interface {
	List(ctx context.Context, filter models.PatientFilter) ([]models.Patient, int, error)
	FindByID(ctx context.Context, id string) (*models.Patient, error)
	ListAnamnesis(ctx context.Context, patientID string) ([]models.Anamnesis, error)
	ListDiagnoses(ctx context.Context, patientID string) ([]models.Diagnosis, error)
}

type exportEmployeeRepository interface {
	List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error)
}

type exportPerformanceRepository interface {
	DoctorPerformance(ctx context.Context) ([]models.DoctorPerformance, error)
	List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error)
}

type exportInvoiceRepository interface {
	ListInvoices(ctx context.Context, filter models.InvoiceFilter) ([]models.Invoice, int, error)
}

type shiftCalendar interface {
	Calendar(ctx context.Context, employeeID string, year int, month time.Month) ([]models.ShiftDay, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportRequest describes one export to generate.
type ExportRequest struct {
	Type      ExportType   `json:"type" validate:"required,oneof=patients roster performance invoices medical_record"`
	Format    ExportFormat `json:"format" validate:"required,oneof=csv pdf"`
	Year      int          `json:"year" validate:"omitempty,min=2000,max=2100"`
	Month     int          `json:"month" validate:"omitempty,min=1,max=12"`
	PatientID string       `json:"patient_id" validate:"required_if=Type medical_record,omitempty,uuid4"`
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string       `json:"path"`
	Token        string       `json:"-"`
	URL          string       `json:"url"`
	Format       ExportFormat `json:"format"`
	ExpiresAt    time.Time    `json:"expires_at"`
}

// ExportService builds report datasets and persists rendered files.
type ExportService struct {
	patients    exportPatientRepository
	employees   exportEmployeeRepository
	performance exportPerformanceRepository
	invoices    exportInvoiceRepository
	shifts      shiftCalendar
	storage     fileStorage
	csv         csvRenderer
	pdf         pdfRenderer
	signer      *storage.SignedURLSigner
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(
	patients exportPatientRepository,
	employees exportEmployeeRepository,
	performance exportPerformanceRepository,
	invoices exportInvoiceRepository,
	shifts shiftCalendar,
	store fileStorage,
	signer *storage.SignedURLSigner,
	cfg ExportConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		patients:    patients,
		employees:   employees,
		performance: performance,
		invoices:    invoices,
		shifts:      shifts,
		storage:     store,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
		signer:      signer,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
	}
}

// Generate builds the requested dataset and stores the rendered export.
func (s *ExportService) Generate(ctx context.Context, req ExportRequest) (*ExportResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if req.Year == 0 || req.Month == 0 {
		now := time.Now().UTC()
		req.Year = now.Year()
		req.Month = int(now.Month())
	}

	dataset, title, err := s.buildDataset(ctx, req)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch req.Format {
	case ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", req.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(req)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(string(req.Type), relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/exports/%s", signedURL, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       req.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (exportType, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(req ExportRequest) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s_%04d%02d_%s.%s", req.Type, req.Year, req.Month, timestamp, req.Format)
}

func (s *ExportService) buildDataset(ctx context.Context, req ExportRequest) (export.Dataset, string, error) {
	switch req.Type {
	case ExportTypePatients:
		return s.buildPatientDataset(ctx)
	case ExportTypeRoster:
		return s.buildRosterDataset(ctx, req.Year, time.Month(req.Month))
	case ExportTypePerformance:
		return s.buildPerformanceDataset(ctx)
	case ExportTypeInvoices:
		return s.buildInvoiceDataset(ctx)
	case ExportTypeMedicalRecord:
		return s.buildMedicalRecordDataset(ctx, req.PatientID)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported export type %s", req.Type)
	}
}

func (s *ExportService) buildPatientDataset(ctx context.Context) (export.Dataset, string, error) {
	patients, _, err := s.patients.List(ctx, models.PatientFilter{PageSize: 10000, SortBy: "last_name"})
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := make([]map[string]string, 0, len(patients))
	for _, p := range patients {
		rows = append(rows, map[string]string{
			"National ID": p.NationalID,
			"Last Name":   p.LastName,
			"First Name":  p.FirstName,
			"Gender":      p.Gender,
			"Birth Date":  p.BirthDate.Format("2006-01-02"),
			"Registered":  p.RegisteredAt.UTC().Format("2006-01-02"),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"National ID", "Last Name", "First Name", "Gender", "Birth Date", "Registered"},
		Rows:    rows,
	}
	return dataset, "Patient Registry", nil
}

// buildMedicalRecordDataset assembles one patient's clinical file as dated
// sections: demographics, anamnesis entries, diagnoses and visit history.
func (s *ExportService) buildMedicalRecordDataset(ctx context.Context, patientID string) (export.Dataset, string, error) {
	patient, err := s.patients.FindByID(ctx, patientID)
	if err != nil {
		if err == sql.ErrNoRows {
			return export.Dataset{}, "", appErrors.Clone(appErrors.ErrNotFound, "patient not found")
		}
		return export.Dataset{}, "", err
	}

	rows := []map[string]string{
		{"Section": "Demographics", "Date": patient.BirthDate.Format("2006-01-02"), "Detail": fmt.Sprintf("%s %s, national ID %s, %s", patient.FirstName, patient.LastName, patient.NationalID, patient.Gender)},
	}

	anamnesis, err := s.patients.ListAnamnesis(ctx, patientID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	for _, entry := range anamnesis {
		rows = append(rows, map[string]string{
			"Section": "Anamnesis",
			"Date":    entry.RecordedAt.UTC().Format("2006-01-02"),
			"Detail":  fmt.Sprintf("%s; vitals %s; %s", entry.ChiefComplaint, entry.VitalSigns, entry.PresentIllness),
		})
	}

	diagnoses, err := s.patients.ListDiagnoses(ctx, patientID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	for _, d := range diagnoses {
		detail := fmt.Sprintf("%s (%s), treatment: %s", d.Description, d.Specialty, d.Treatment)
		if d.EndDate != nil {
			detail += fmt.Sprintf(", closed %s", d.EndDate.Format("2006-01-02"))
		}
		rows = append(rows, map[string]string{
			"Section": "Diagnosis",
			"Date":    d.StartDate.Format("2006-01-02"),
			"Detail":  detail,
		})
	}

	visits, _, err := s.performance.List(ctx, models.AppointmentFilter{PatientID: patientID, PageSize: 1000, SortBy: "appointment_date"})
	if err != nil {
		return export.Dataset{}, "", err
	}
	for _, v := range visits {
		rows = append(rows, map[string]string{
			"Section": "Visit",
			"Date":    v.Date.Format("2006-01-02"),
			"Detail":  fmt.Sprintf("%s at %s, status %s", v.DoctorID, v.Time, v.Status),
		})
	}

	dataset := export.Dataset{
		Headers: []string{"Section", "Date", "Detail"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Medical Record: %s %s", patient.FirstName, patient.LastName)
	return dataset, title, nil
}

func (s *ExportService) buildRosterDataset(ctx context.Context, year int, month time.Month) (export.Dataset, string, error) {
	active := models.EmployeeActive
	employees, _, err := s.employees.List(ctx, models.EmployeeFilter{Status: &active, PageSize: 10000, SortBy: "badge_number"})
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := make([]map[string]string, 0, len(employees))
	for _, emp := range employees {
		days, err := s.shifts.Calendar(ctx, emp.ID, year, month)
		if err != nil {
			return export.Dataset{}, "", err
		}
		for _, day := range days {
			window := "rest"
			if !day.Rest && day.StartTime != nil && day.EndTime != nil {
				window = fmt.Sprintf("%s-%s", *day.StartTime, *day.EndTime)
			}
			rows = append(rows, map[string]string{
				"Badge":    fmt.Sprintf("%d", emp.BadgeNumber),
				"Employee": fmt.Sprintf("%s %s", emp.FirstName, emp.LastName),
				"Role":     emp.Role,
				"Date":     day.Date.Format("2006-01-02"),
				"Shift":    window,
				"Source":   day.Source,
			})
		}
	}
	dataset := export.Dataset{
		Headers: []string{"Badge", "Employee", "Role", "Date", "Shift", "Source"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Shift Roster %04d-%02d", year, int(month))
	return dataset, title, nil
}

func (s *ExportService) buildPerformanceDataset(ctx context.Context) (export.Dataset, string, error) {
	stats, err := s.performance.DoctorPerformance(ctx)
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := make([]map[string]string, 0, len(stats))
	for _, stat := range stats {
		dept := ""
		if stat.Department != nil {
			dept = *stat.Department
		}
		rows = append(rows, map[string]string{
			"Doctor":         stat.DoctorName,
			"Department":     dept,
			"Attended":       fmt.Sprintf("%d", stat.AttendedCount),
			"Average Rating": fmt.Sprintf("%.2f", stat.AverageRating),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Doctor", "Department", "Attended", "Average Rating"},
		Rows:    rows,
	}
	return dataset, "Doctor Performance", nil
}

func (s *ExportService) buildInvoiceDataset(ctx context.Context) (export.Dataset, string, error) {
	invoices, _, err := s.invoices.ListInvoices(ctx, models.InvoiceFilter{PageSize: 10000})
	if err != nil {
		return export.Dataset{}, "", err
	}
	rows := make([]map[string]string, 0, len(invoices))
	for _, inv := range invoices {
		rows = append(rows, map[string]string{
			"Invoice ID": inv.ID,
			"Patient ID": inv.PatientID,
			"Status":     string(inv.Status),
			"Total":      fmt.Sprintf("%.2f", inv.Total),
			"Issued At":  inv.IssuedAt.UTC().Format("2006-01-02"),
		})
	}
	dataset := export.Dataset{
		Headers: []string{"Invoice ID", "Patient ID", "Status", "Total", "Issued At"},
		Rows:    rows,
	}
	return dataset, "Invoice Ledger", nil
}
