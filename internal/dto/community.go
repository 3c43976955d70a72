package dto

import "time"

// SaveStaffRequest is the payload for creating or updating a staff member.
type SaveStaffRequest struct {
	UserID      string     `json:"userId" validate:"omitempty,uuid"`
	StaffNumber string     `json:"staffNumber" validate:"required,max=50"`
	FirstName   string     `json:"firstName" validate:"required,max=100"`
	LastName    string     `json:"lastName" validate:"required,max=100"`
	Designation string     `json:"designation" validate:"required,max=100"`
	Department  string     `json:"department" validate:"max=100"`
	HireDate    *time.Time `json:"hireDate"`
}

// SaveStudentRequest is the payload for creating or updating a student.
type SaveStudentRequest struct {
	UserID          string     `json:"userId" validate:"omitempty,uuid"`
	StudentNumber   string     `json:"studentNumber" validate:"required,max=50"`
	AdmissionNumber string     `json:"admissionNumber" validate:"max=50"`
	FirstName       string     `json:"firstName" validate:"required,max=100"`
	LastName        string     `json:"lastName" validate:"required,max=100"`
	Gender          string     `json:"gender" validate:"omitempty,oneof=MALE FEMALE"`
	DateOfBirth     *time.Time `json:"dateOfBirth"`
	GradeLevel      string     `json:"gradeLevel" validate:"max=20"`
	AdmissionDate   *time.Time `json:"admissionDate"`
}

// SaveParentRequest is the payload for creating or updating a parent.
type SaveParentRequest struct {
	UserID           string `json:"userId" validate:"omitempty,uuid"`
	FirstName        string `json:"firstName" validate:"required,max=100"`
	LastName         string `json:"lastName" validate:"required,max=100"`
	Phone            string `json:"phone" validate:"max=30"`
	Email            string `json:"email" validate:"omitempty,email"`
	IsPrimaryContact bool   `json:"isPrimaryContact"`
}
