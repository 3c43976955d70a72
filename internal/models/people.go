package models

import "time"

// Student is a learner enrolled in one school.
type Student struct {
	ID              string     `db:"id" json:"id"`
	UserID          *string    `db:"user_id" json:"user_id,omitempty"`
	StudentNumber   string     `db:"student_number" json:"student_number"`
	AdmissionNumber *string    `db:"admission_number" json:"admission_number,omitempty"`
	FirstName       string     `db:"first_name" json:"first_name"`
	LastName        string     `db:"last_name" json:"last_name"`
	Gender          *string    `db:"gender" json:"gender,omitempty"`
	DateOfBirth     *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	GradeLevel      *string    `db:"grade_level" json:"grade_level,omitempty"`
	AdmissionDate   time.Time  `db:"admission_date" json:"admission_date"`
	TenantModel
}

// Staff is an employee of a school.
type Staff struct {
	ID          string    `db:"id" json:"id"`
	UserID      *string   `db:"user_id" json:"user_id,omitempty"`
	StaffNumber string    `db:"staff_number" json:"staff_number"`
	FirstName   string    `db:"first_name" json:"first_name"`
	LastName    string    `db:"last_name" json:"last_name"`
	Designation string    `db:"designation" json:"designation"`
	Department  *string   `db:"department" json:"department,omitempty"`
	HireDate    time.Time `db:"hire_date" json:"hire_date"`
	TenantModel
}

// Parent is a guardian linked to one or more students of the same school.
type Parent struct {
	ID               string  `db:"id" json:"id"`
	UserID           *string `db:"user_id" json:"user_id,omitempty"`
	FirstName        string  `db:"first_name" json:"first_name"`
	LastName         string  `db:"last_name" json:"last_name"`
	Phone            *string `db:"phone" json:"phone,omitempty"`
	Email            *string `db:"email" json:"email,omitempty"`
	IsPrimaryContact bool    `db:"is_primary_contact" json:"is_primary_contact"`
	TenantModel
}

// ParentStudent links a parent to a student.
type ParentStudent struct {
	ID               string `db:"id" json:"id"`
	ParentID         string `db:"parent_id" json:"parent_id"`
	StudentID        string `db:"student_id" json:"student_id"`
	RelationshipType string `db:"relationship_type" json:"relationship_type"`
	TenantModel
}
