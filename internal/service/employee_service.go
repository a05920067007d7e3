package service

import (
	"context"
	"database/sql"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sanvida/hms-api/internal/models"
	"github.com/sanvida/hms-api/internal/rotation"
	appErrors "github.com/sanvida/hms-api/pkg/errors"
)

type employeeRepository interface {
	List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error)
	FindByID(ctx context.Context, id string) (*models.Employee, error)
	Create(ctx context.Context, employee *models.Employee) error
	Update(ctx context.Context, employee *models.Employee) error
	Deactivate(ctx context.Context, id string) error
}

// EmployeeService handles staff directory workflows.
type EmployeeService struct {
	repo      employeeRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEmployeeService constructs the service.
func NewEmployeeService(repo employeeRepository, validate *validator.Validate, logger *zap.Logger) *EmployeeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmployeeService{repo: repo, validator: validate, logger: logger}
}

// CreateEmployeeRequest describes the create payload.
type CreateEmployeeRequest struct {
	FirstName  string  `json:"first_name" validate:"required"`
	LastName   string  `json:"last_name" validate:"required"`
	Role       string  `json:"role" validate:"required"`
	Department *string `json:"department"`
	Phone      *string `json:"phone"`
}

// UpdateEmployeeRequest describes the update payload.
type UpdateEmployeeRequest struct {
	FirstName  string  `json:"first_name" validate:"required"`
	LastName   string  `json:"last_name" validate:"required"`
	Role       string  `json:"role" validate:"required"`
	Department *string `json:"department"`
	Phone      *string `json:"phone"`
	Status     string  `json:"status" validate:"required,oneof=active inactive vacation"`
}

// List returns employees with pagination.
func (s *EmployeeService) List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	rows, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list employees")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return rows, pagination, nil
}

// Get returns an employee by id.
func (s *EmployeeService) Get(ctx context.Context, id string) (*models.Employee, error) {
	employee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get employee")
	}
	return employee, nil
}

// Create registers a new employee. The badge number is issued by the
// database sequence on insert.
func (s *EmployeeService) Create(ctx context.Context, req CreateEmployeeRequest) (*models.Employee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if !rotation.ValidRole(req.Role) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	if req.Department != nil && !rotation.ValidDepartment(*req.Department) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown department")
	}

	employee := &models.Employee{
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Role:       req.Role,
		Department: req.Department,
		Phone:      req.Phone,
		Status:     models.EmployeeActive,
	}
	if err := s.repo.Create(ctx, employee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create employee")
	}
	s.logger.Info("employee created",
		zap.String("employee_id", employee.ID),
		zap.Int("badge_number", employee.BadgeNumber))
	return employee, nil
}

// Update modifies an existing employee.
func (s *EmployeeService) Update(ctx context.Context, id string, req UpdateEmployeeRequest) (*models.Employee, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	if !rotation.ValidRole(req.Role) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown role")
	}
	if req.Department != nil && !rotation.ValidDepartment(*req.Department) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown department")
	}

	employee, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "employee not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get employee")
	}

	employee.FirstName = req.FirstName
	employee.LastName = req.LastName
	employee.Role = req.Role
	employee.Department = req.Department
	employee.Phone = req.Phone
	employee.Status = models.EmployeeStatus(req.Status)

	if err := s.repo.Update(ctx, employee); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update employee")
	}
	return employee, nil
}

// Deactivate marks an employee inactive. Records are kept for shift and
// appointment history.
func (s *EmployeeService) Deactivate(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate employee")
	}
	return nil
}
