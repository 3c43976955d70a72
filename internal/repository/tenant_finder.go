package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-tenant-api/internal/models"
)

// TenantFinder loads a school-owned row by primary key. It returns the row regardless of
// its school; tenant checks belong to the authorization service.
type TenantFinder[T any] struct {
	db    *sqlx.DB
	table string
	query string
}

// NewTenantFinder builds a finder selecting columns from table.
func NewTenantFinder[T any](db *sqlx.DB, table string, columns []string) *TenantFinder[T] {
	query := fmt.Sprintf("SELECT %s FROM %s WHERE id = $1 LIMIT 1", strings.Join(columns, ", "), table)
	return &TenantFinder[T]{db: db, table: table, query: query}
}

// FindByID returns sql.ErrNoRows when no row carries id.
func (f *TenantFinder[T]) FindByID(ctx context.Context, id string) (*T, error) {
	var out T
	if err := f.db.GetContext(ctx, &out, f.query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find %s by id: %w", f.table, err)
	}
	return &out, nil
}

// tenantColumns are appended to every school-owned column list.
var tenantColumns = []string{"school_id", "is_active", "created_at", "updated_at"}

func withTenantColumns(cols ...string) []string {
	return append(cols, tenantColumns...)
}

var (
	subjectColumns         = withTenantColumns("id", "subject_name", "subject_code", "description", "is_core_subject", "credit_hours")
	classColumns           = withTenantColumns("id", "class_name", "class_code", "grade_level", "department_id", "track_id", "max_capacity")
	examinationColumns     = withTenantColumns("id", "title", "exam_type", "subject_id", "class_id", "term", "session", "is_published", "start_time", "end_time")
	feeItemColumns         = withTenantColumns("id", "name", "amount", "fee_category", "is_mandatory", "is_recurring")
	academicSessionColumns = withTenantColumns("id", "session_name", "session_year", "start_date", "end_date", "is_current_session", "status")
	termColumns            = withTenantColumns("id", "academic_session_id", "term_name", "start_date", "end_date", "is_current_term", "status")
	departmentColumns      = withTenantColumns("id", "name", "track_id", "description")
	trackColumns           = withTenantColumns("id", "name", "description")
)

// Read-only lookups for kinds this service never mutates.

func NewSubjectFinder(db *sqlx.DB) *TenantFinder[models.Subject] {
	return NewTenantFinder[models.Subject](db, "subjects", subjectColumns)
}

func NewSchoolClassFinder(db *sqlx.DB) *TenantFinder[models.SchoolClass] {
	return NewTenantFinder[models.SchoolClass](db, "classes", classColumns)
}

func NewExaminationFinder(db *sqlx.DB) *TenantFinder[models.Examination] {
	return NewTenantFinder[models.Examination](db, "examinations", examinationColumns)
}

func NewFeeItemFinder(db *sqlx.DB) *TenantFinder[models.FeeItem] {
	return NewTenantFinder[models.FeeItem](db, "fee_items", feeItemColumns)
}

func NewAcademicSessionFinder(db *sqlx.DB) *TenantFinder[models.AcademicSession] {
	return NewTenantFinder[models.AcademicSession](db, "academic_sessions", academicSessionColumns)
}

func NewTermFinder(db *sqlx.DB) *TenantFinder[models.Term] {
	return NewTenantFinder[models.Term](db, "terms", termColumns)
}

func NewDepartmentFinder(db *sqlx.DB) *TenantFinder[models.Department] {
	return NewTenantFinder[models.Department](db, "departments", departmentColumns)
}

func NewEducationTrackFinder(db *sqlx.DB) *TenantFinder[models.EducationTrack] {
	return NewTenantFinder[models.EducationTrack](db, "education_tracks", trackColumns)
}
