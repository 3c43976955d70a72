package models

import "time"

// TenantModel carries the columns every school-owned table shares.
type TenantModel struct {
	SchoolID  string    `db:"school_id" json:"school_id"`
	Active    bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TenantID returns the owning school.
func (m TenantModel) TenantID() string {
	return m.SchoolID
}

// IsActive reports whether the row has not been soft-deleted.
func (m TenantModel) IsActive() bool {
	return m.Active
}

// TenantOwned is implemented by every resource scoped to a school.
type TenantOwned interface {
	TenantID() string
	IsActive() bool
}

// ResourceKind names a tenant-scoped resource type.
type ResourceKind string

const (
	KindStudent         ResourceKind = "student"
	KindParent          ResourceKind = "parent"
	KindStaff           ResourceKind = "staff"
	KindSubject         ResourceKind = "subject"
	KindSchoolClass     ResourceKind = "class"
	KindExamination     ResourceKind = "examination"
	KindFeeItem         ResourceKind = "fee_item"
	KindAcademicSession ResourceKind = "academic_session"
	KindTerm            ResourceKind = "term"
	KindDepartment      ResourceKind = "department"
	KindEducationTrack  ResourceKind = "education_track"
)

// GuardedKinds lists the kinds exposed to access predicates.
var GuardedKinds = []ResourceKind{
	KindStudent,
	KindParent,
	KindStaff,
	KindSubject,
	KindSchoolClass,
	KindExamination,
	KindFeeItem,
}

// ParseResourceKind maps a path segment to a guarded kind.
func ParseResourceKind(raw string) (ResourceKind, bool) {
	for _, k := range GuardedKinds {
		if string(k) == raw {
			return k, true
		}
	}
	return "", false
}

// Label returns the display name used for entity type tags and error messages.
func (k ResourceKind) Label() string {
	switch k {
	case KindStudent:
		return "Student"
	case KindParent:
		return "Parent"
	case KindStaff:
		return "Staff"
	case KindSubject:
		return "Subject"
	case KindSchoolClass:
		return "Class"
	case KindExamination:
		return "Examination"
	case KindFeeItem:
		return "Fee item"
	case KindAcademicSession:
		return "Academic session"
	case KindTerm:
		return "Term"
	case KindDepartment:
		return "Department"
	case KindEducationTrack:
		return "Education track"
	default:
		return string(k)
	}
}
