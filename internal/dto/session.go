package dto

// SelectSchoolRequest picks the school the session acts for.
type SelectSchoolRequest struct {
	SchoolID string `json:"schoolId" validate:"required,uuid"`
}

// SelectRoleRequest picks one of the caller's roles in the selected school.
type SelectRoleRequest struct {
	Role string `json:"role" validate:"required"`
}

// SessionSchool describes the session's current tenant selection.
type SessionSchool struct {
	SchoolID     string   `json:"schoolId"`
	Role         string   `json:"role,omitempty"`
	Roles        []string `json:"roles,omitempty"`
	RoleRequired bool     `json:"roleRequired"`
}

// AccessResponse answers a canAccess query.
type AccessResponse struct {
	Kind    string `json:"kind"`
	ID      string `json:"id"`
	Allowed bool   `json:"allowed"`
}
