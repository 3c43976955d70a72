// Package tenant resolves the school a request acts for and carries it, with the
// caller's identity, through the operations that need it.
package tenant

import (
	"strings"

	"github.com/google/uuid"

	appErrors "github.com/noah-isme/sma-tenant-api/pkg/errors"
)

// Session attribute keys written by school and role selection.
const (
	SessionAttribute     = "selectedSchoolId"
	RoleSessionAttribute = "selectedRole"
	UserSessionAttribute = "selectedUserId"
)

// Attributes is the read side of a session.
type Attributes interface {
	Get(key string) (string, bool)
}

// Resolve returns the selected school id, or ErrNoTenantSelected when the attribute is
// absent, blank or not a UUID. It never mutates the session.
func Resolve(attrs Attributes) (string, error) {
	if attrs == nil {
		return "", appErrors.ErrNoTenantSelected
	}
	raw, ok := attrs.Get(SessionAttribute)
	if !ok {
		return "", appErrors.ErrNoTenantSelected
	}
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", appErrors.ErrNoTenantSelected
	}
	return id.String(), nil
}

// ResolveFor is Resolve for a known caller: the selection only counts when it was made
// by userID. A session carried over from another user resolves to ErrNoTenantSelected.
func ResolveFor(attrs Attributes, userID string) (string, error) {
	id, err := Resolve(attrs)
	if err != nil {
		return "", err
	}
	owner, ok := attrs.Get(UserSessionAttribute)
	if !ok || userID == "" || owner != userID {
		return "", appErrors.ErrNoTenantSelected
	}
	return id, nil
}

// SelectedRole returns the school role chosen for the session, if any.
func SelectedRole(attrs Attributes) string {
	if attrs == nil {
		return ""
	}
	role, _ := attrs.Get(RoleSessionAttribute)
	return role
}
