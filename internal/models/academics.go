package models

import "time"

// Subject is a taught subject.
type Subject struct {
	ID          string  `db:"id" json:"id"`
	Name        string  `db:"subject_name" json:"subject_name"`
	Code        *string `db:"subject_code" json:"subject_code,omitempty"`
	Description *string `db:"description" json:"description,omitempty"`
	IsCore      bool    `db:"is_core_subject" json:"is_core_subject"`
	CreditHours int     `db:"credit_hours" json:"credit_hours"`
	TenantModel
}

// SchoolClass is a class or form group.
type SchoolClass struct {
	ID           string  `db:"id" json:"id"`
	Name         string  `db:"class_name" json:"class_name"`
	Code         *string `db:"class_code" json:"class_code,omitempty"`
	GradeLevel   *string `db:"grade_level" json:"grade_level,omitempty"`
	DepartmentID *string `db:"department_id" json:"department_id,omitempty"`
	TrackID      *string `db:"track_id" json:"track_id,omitempty"`
	MaxCapacity  int     `db:"max_capacity" json:"max_capacity"`
	TenantModel
}

// Examination is an assessment scheduled for a class and subject.
type Examination struct {
	ID          string     `db:"id" json:"id"`
	Title       string     `db:"title" json:"title"`
	ExamType    string     `db:"exam_type" json:"exam_type"`
	SubjectID   string     `db:"subject_id" json:"subject_id"`
	ClassID     string     `db:"class_id" json:"class_id"`
	Term        string     `db:"term" json:"term"`
	Session     string     `db:"session" json:"session"`
	IsPublished bool       `db:"is_published" json:"is_published"`
	StartTime   *time.Time `db:"start_time" json:"start_time,omitempty"`
	EndTime     *time.Time `db:"end_time" json:"end_time,omitempty"`
	TenantModel
}

// FeeItem is a chargeable fee.
type FeeItem struct {
	ID          string  `db:"id" json:"id"`
	Name        string  `db:"name" json:"name"`
	Amount      float64 `db:"amount" json:"amount"`
	Category    string  `db:"fee_category" json:"fee_category"`
	IsMandatory bool    `db:"is_mandatory" json:"is_mandatory"`
	IsRecurring bool    `db:"is_recurring" json:"is_recurring"`
	TenantModel
}

// AcademicSession is a school year.
type AcademicSession struct {
	ID        string     `db:"id" json:"id"`
	Name      string     `db:"session_name" json:"session_name"`
	Year      string     `db:"session_year" json:"session_year"`
	StartDate time.Time  `db:"start_date" json:"start_date"`
	EndDate   *time.Time `db:"end_date" json:"end_date,omitempty"`
	IsCurrent bool       `db:"is_current_session" json:"is_current_session"`
	Status    string     `db:"status" json:"status"`
	TenantModel
}

// Term is a subdivision of an academic session.
type Term struct {
	ID                string     `db:"id" json:"id"`
	AcademicSessionID string     `db:"academic_session_id" json:"academic_session_id"`
	Name              string     `db:"term_name" json:"term_name"`
	StartDate         time.Time  `db:"start_date" json:"start_date"`
	EndDate           *time.Time `db:"end_date" json:"end_date,omitempty"`
	IsCurrent         bool       `db:"is_current_term" json:"is_current_term"`
	Status            string     `db:"status" json:"status"`
	TenantModel
}

type Department struct {
	ID          string  `db:"id" json:"id"`
	Name        string  `db:"name" json:"name"`
	TrackID     *string `db:"track_id" json:"track_id,omitempty"`
	Description *string `db:"description" json:"description,omitempty"`
	TenantModel
}

type EducationTrack struct {
	ID          string  `db:"id" json:"id"`
	Name        string  `db:"name" json:"name"`
	Description *string `db:"description" json:"description,omitempty"`
	TenantModel
}
