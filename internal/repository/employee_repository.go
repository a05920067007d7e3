package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/sanvida/hms-api/internal/models"
)

// EmployeeRepository manages persistence for staff members.
type EmployeeRepository struct {
	db *sqlx.DB
}

// NewEmployeeRepository constructs an EmployeeRepository.
func NewEmployeeRepository(db *sqlx.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

const employeeColumns = "id, badge_number, first_name, last_name, role, department, phone, status, rotation_group, user_id, created_at, updated_at"

// List returns employees matching filters along with total count.
func (r *EmployeeRepository) List(ctx context.Context, filter models.EmployeeFilter) ([]models.Employee, int, error) {
	base := "FROM employees WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Role != "" {
		conditions = append(conditions, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, filter.Role)
	}
	if filter.Department != "" {
		conditions = append(conditions, fmt.Sprintf("department = $%d", len(args)+1))
		args = append(args, filter.Department)
	}
	if filter.Group != "" {
		conditions = append(conditions, fmt.Sprintf("rotation_group = $%d", len(args)+1))
		args = append(args, filter.Group)
	}
	if filter.Search != "" {
		search := "%" + strings.ToLower(filter.Search) + "%"
		conditions = append(conditions, fmt.Sprintf("(LOWER(first_name) LIKE $%d OR LOWER(last_name) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, search)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	allowedSorts := map[string]string{
		"first_name":   "first_name",
		"last_name":    "last_name",
		"badge_number": "badge_number",
		"department":   "department",
		"created_at":   "created_at",
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "created_at"
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", employeeColumns, base, column, order, size, offset)
	var employees []models.Employee
	if err := r.db.SelectContext(ctx, &employees, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list employees: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count employees: %w", err)
	}

	return employees, total, nil
}

// FindByID fetches an employee by ID.
func (r *EmployeeRepository) FindByID(ctx context.Context, id string) (*models.Employee, error) {
	query := fmt.Sprintf("SELECT %s FROM employees WHERE id = $1", employeeColumns)
	var employee models.Employee
	if err := r.db.GetContext(ctx, &employee, query, id); err != nil {
		return nil, err
	}
	return &employee, nil
}

// Create inserts a new employee. The badge number comes from a dedicated
// sequence so rest-day rotation keys stay small and dense.
func (r *EmployeeRepository) Create(ctx context.Context, employee *models.Employee) error {
	if employee.ID == "" {
		employee.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	employee.CreatedAt = now
	employee.UpdatedAt = now

	const query = `INSERT INTO employees (id, badge_number, first_name, last_name, role, department, phone, status, rotation_group, user_id, created_at, updated_at)
		VALUES ($1, nextval('employee_badge_seq'), $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING badge_number`
	if err := r.db.QueryRowxContext(ctx, query,
		employee.ID, employee.FirstName, employee.LastName, employee.Role,
		employee.Department, employee.Phone, employee.Status, employee.RotationGroup,
		employee.UserID, employee.CreatedAt, employee.UpdatedAt,
	).Scan(&employee.BadgeNumber); err != nil {
		return fmt.Errorf("create employee: %w", err)
	}
	return nil
}

// Update modifies an existing employee record.
func (r *EmployeeRepository) Update(ctx context.Context, employee *models.Employee) error {
	employee.UpdatedAt = time.Now().UTC()
	const query = `UPDATE employees SET first_name = :first_name, last_name = :last_name, role = :role, department = :department, phone = :phone, status = :status, rotation_group = :rotation_group, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, employee); err != nil {
		return fmt.Errorf("update employee: %w", err)
	}
	return nil
}

// SetRotationGroup stores the rotation group for an employee.
func (r *EmployeeRepository) SetRotationGroup(ctx context.Context, id, group string) error {
	const query = `UPDATE employees SET rotation_group = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, group, time.Now().UTC()); err != nil {
		return fmt.Errorf("set rotation group: %w", err)
	}
	return nil
}

// Deactivate marks an employee inactive. Rows are never hard-deleted so
// historical shifts and appointments keep their references.
func (r *EmployeeRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE employees SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, models.EmployeeInactive, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate employee: %w", err)
	}
	return nil
}
