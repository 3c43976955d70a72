package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-tenant-api/internal/models"
)

var (
	studentColumns = withTenantColumns("id", "user_id", "student_number", "admission_number", "first_name", "last_name", "gender", "date_of_birth", "grade_level", "admission_date")
	staffColumns   = withTenantColumns("id", "user_id", "staff_number", "first_name", "last_name", "designation", "department", "hire_date")
	parentColumns  = withTenantColumns("id", "user_id", "first_name", "last_name", "phone", "email", "is_primary_contact")
)

func stampNew(id *string, m *models.TenantModel) {
	if *id == "" {
		*id = uuid.NewString()
	}
	now := time.Now().UTC()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	m.Active = true
}

// execScoped runs a named update restricted to one school and reports sql.ErrNoRows
// when nothing matched.
func execScoped(ctx context.Context, db *sqlx.DB, query string, arg interface{}, label string) error {
	res, err := db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("update %s: %w", label, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s rows affected: %w", label, err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func listActive[T any](ctx context.Context, db *sqlx.DB, table string, columns []string, schoolID string) ([]T, error) {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE school_id = $1 AND is_active = TRUE ORDER BY created_at ASC", strings.Join(columns, ", "), table)
	var out []T
	if err := db.SelectContext(ctx, &out, query, schoolID); err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	return out, nil
}

// StaffRepository manages persistence for staff records.
type StaffRepository struct {
	*TenantFinder[models.Staff]
	db *sqlx.DB
}

func NewStaffRepository(db *sqlx.DB) *StaffRepository {
	return &StaffRepository{TenantFinder: NewTenantFinder[models.Staff](db, "staff", staffColumns), db: db}
}

// Create inserts a new staff member.
func (r *StaffRepository) Create(ctx context.Context, staff *models.Staff) error {
	stampNew(&staff.ID, &staff.TenantModel)
	if staff.HireDate.IsZero() {
		staff.HireDate = staff.CreatedAt
	}
	const query = `INSERT INTO staff (id, school_id, user_id, staff_number, first_name, last_name, designation, department, hire_date, is_active, created_at, updated_at)
        VALUES (:id, :school_id, :user_id, :staff_number, :first_name, :last_name, :designation, :department, :hire_date, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, staff); err != nil {
		return fmt.Errorf("create staff: %w", err)
	}
	return nil
}

// Update modifies an existing staff member within its school.
func (r *StaffRepository) Update(ctx context.Context, staff *models.Staff) error {
	staff.UpdatedAt = time.Now().UTC()
	const query = `UPDATE staff SET staff_number = :staff_number, first_name = :first_name, last_name = :last_name, designation = :designation, department = :department, updated_at = :updated_at
        WHERE id = :id AND school_id = :school_id`
	return execScoped(ctx, r.db, query, staff, "staff")
}

// ListBySchool returns active staff ordered by creation.
func (r *StaffRepository) ListBySchool(ctx context.Context, schoolID string) ([]models.Staff, error) {
	return listActive[models.Staff](ctx, r.db, "staff", staffColumns, schoolID)
}

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	*TenantFinder[models.Student]
	db *sqlx.DB
}

func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{TenantFinder: NewTenantFinder[models.Student](db, "students", studentColumns), db: db}
}

// Create inserts a new student.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	stampNew(&student.ID, &student.TenantModel)
	if student.AdmissionDate.IsZero() {
		student.AdmissionDate = student.CreatedAt
	}
	const query = `INSERT INTO students (id, school_id, user_id, student_number, admission_number, first_name, last_name, gender, date_of_birth, grade_level, admission_date, is_active, created_at, updated_at)
        VALUES (:id, :school_id, :user_id, :student_number, :admission_number, :first_name, :last_name, :gender, :date_of_birth, :grade_level, :admission_date, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update modifies an existing student within its school.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET student_number = :student_number, admission_number = :admission_number, first_name = :first_name, last_name = :last_name, gender = :gender, date_of_birth = :date_of_birth, grade_level = :grade_level, updated_at = :updated_at
        WHERE id = :id AND school_id = :school_id`
	return execScoped(ctx, r.db, query, student, "student")
}

func (r *StudentRepository) ListBySchool(ctx context.Context, schoolID string) ([]models.Student, error) {
	return listActive[models.Student](ctx, r.db, "students", studentColumns, schoolID)
}

// ParentRepository manages persistence for parent records.
type ParentRepository struct {
	*TenantFinder[models.Parent]
	db *sqlx.DB
}

func NewParentRepository(db *sqlx.DB) *ParentRepository {
	return &ParentRepository{TenantFinder: NewTenantFinder[models.Parent](db, "parents", parentColumns), db: db}
}

// Create inserts a new parent.
func (r *ParentRepository) Create(ctx context.Context, parent *models.Parent) error {
	stampNew(&parent.ID, &parent.TenantModel)
	const query = `INSERT INTO parents (id, school_id, user_id, first_name, last_name, phone, email, is_primary_contact, is_active, created_at, updated_at)
        VALUES (:id, :school_id, :user_id, :first_name, :last_name, :phone, :email, :is_primary_contact, :is_active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, parent); err != nil {
		return fmt.Errorf("create parent: %w", err)
	}
	return nil
}

// Update modifies an existing parent within its school.
func (r *ParentRepository) Update(ctx context.Context, parent *models.Parent) error {
	parent.UpdatedAt = time.Now().UTC()
	const query = `UPDATE parents SET first_name = :first_name, last_name = :last_name, phone = :phone, email = :email, is_primary_contact = :is_primary_contact, updated_at = :updated_at
        WHERE id = :id AND school_id = :school_id`
	return execScoped(ctx, r.db, query, parent, "parent")
}

func (r *ParentRepository) ListBySchool(ctx context.Context, schoolID string) ([]models.Parent, error) {
	return listActive[models.Parent](ctx, r.db, "parents", parentColumns, schoolID)
}

// ParentStudentRepository reads parent-student links.
type ParentStudentRepository struct {
	db *sqlx.DB
}

func NewParentStudentRepository(db *sqlx.DB) *ParentStudentRepository {
	return &ParentStudentRepository{db: db}
}

// ActiveLinkExists reports whether parent and student are actively linked in the school.
func (r *ParentStudentRepository) ActiveLinkExists(ctx context.Context, parentID, studentID, schoolID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM parent_student_relationships WHERE parent_id = $1 AND student_id = $2 AND school_id = $3 AND is_active = TRUE)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, parentID, studentID, schoolID); err != nil {
		return false, fmt.Errorf("check parent student link: %w", err)
	}
	return exists, nil
}
