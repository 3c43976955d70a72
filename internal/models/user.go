package models

import (
	"strings"
	"time"
)

// UserRole represents the role names assigned per school.
type UserRole string

const (
	RoleSystemAdmin UserRole = "SYSTEM_ADMIN"
	RoleSchoolAdmin UserRole = "SCHOOL_ADMIN"
	RoleAdmin       UserRole = "ADMIN"
	RolePrincipal   UserRole = "PRINCIPAL"
	RoleStaff       UserRole = "STAFF"
	RoleTeacher     UserRole = "TEACHER"
	RoleParent      UserRole = "PARENT"
	RoleStudent     UserRole = "STUDENT"
)

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name, skipping blanks.
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
}

// UserSchoolRole grants a user a role inside one school.
type UserSchoolRole struct {
	ID        string     `db:"id" json:"id"`
	UserID    string     `db:"user_id" json:"user_id"`
	SchoolID  string     `db:"school_id" json:"school_id"`
	RoleName  UserRole   `db:"role_name" json:"role_name"`
	IsPrimary bool       `db:"is_primary" json:"is_primary"`
	Active    bool       `db:"is_active" json:"is_active"`
	ExpiresAt *time.Time `db:"expires_at" json:"expires_at,omitempty"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
