package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-tenant-api/internal/dto"
	"github.com/noah-isme/sma-tenant-api/internal/models"
	"github.com/noah-isme/sma-tenant-api/internal/tenant"
	appErrors "github.com/noah-isme/sma-tenant-api/pkg/errors"
)

type schoolRoleRepository interface {
	ListActive(ctx context.Context, userID, schoolID string) ([]models.UserSchoolRole, error)
	ListSchools(ctx context.Context, userID string) ([]string, error)
}

// SessionAttributes is the writable side of a session.
type SessionAttributes interface {
	Get(key string) (string, bool)
	Set(key, value string)
	Delete(key string)
}

// SchoolSelectionService writes the tenant attribute into the caller's session. It is the
// only writer of that attribute.
type SchoolSelectionService struct {
	roles  schoolRoleRepository
	logger *zap.Logger
}

func NewSchoolSelectionService(roles schoolRoleRepository, logger *zap.Logger) *SchoolSelectionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchoolSelectionService{roles: roles, logger: logger}
}

// Schools lists the schools the principal may select.
func (s *SchoolSelectionService) Schools(ctx context.Context, principal *models.Principal) ([]string, error) {
	if principal == nil {
		return nil, appErrors.ErrUnauthenticated
	}
	schools, err := s.roles.ListSchools(ctx, principal.UserID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load schools")
	}
	return schools, nil
}

// SelectSchool stores schoolID in the session when the principal holds an active role
// there. A single role is selected with it; several roles require SelectRole.
func (s *SchoolSelectionService) SelectSchool(ctx context.Context, principal *models.Principal, sess SessionAttributes, schoolID string) (*dto.SessionSchool, error) {
	if principal == nil {
		return nil, appErrors.ErrUnauthenticated
	}
	parsed, err := uuid.Parse(strings.TrimSpace(schoolID))
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "school id must be a UUID")
	}
	schoolID = parsed.String()

	if principal.IsSystemAdmin() {
		sess.Set(tenant.SessionAttribute, schoolID)
		sess.Set(tenant.UserSessionAttribute, principal.UserID)
		sess.Set(tenant.RoleSessionAttribute, string(models.RoleSystemAdmin))
		return &dto.SessionSchool{SchoolID: schoolID, Role: string(models.RoleSystemAdmin)}, nil
	}

	roles, err := s.roles.ListActive(ctx, principal.UserID, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school roles")
	}
	if len(roles) == 0 {
		s.logger.Warn("school selection denied", zap.String("user_id", principal.UserID), zap.String("school_id", schoolID))
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no access to the selected school")
	}

	sess.Set(tenant.SessionAttribute, schoolID)
	sess.Set(tenant.UserSessionAttribute, principal.UserID)
	sess.Delete(tenant.RoleSessionAttribute)

	out := &dto.SessionSchool{SchoolID: schoolID}
	if len(roles) == 1 {
		out.Role = string(roles[0].RoleName)
		sess.Set(tenant.RoleSessionAttribute, out.Role)
		return out, nil
	}
	out.RoleRequired = true
	for _, r := range roles {
		out.Roles = append(out.Roles, string(r.RoleName))
	}
	return out, nil
}

// SelectRole picks one of the principal's roles in the school the principal selected.
func (s *SchoolSelectionService) SelectRole(ctx context.Context, principal *models.Principal, sess SessionAttributes, role string) (*dto.SessionSchool, error) {
	if principal == nil {
		return nil, appErrors.ErrUnauthenticated
	}
	schoolID, err := tenant.ResolveFor(sess, principal.UserID)
	if err != nil {
		return nil, err
	}
	roles, err := s.roles.ListActive(ctx, principal.UserID, schoolID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load school roles")
	}
	for _, r := range roles {
		if strings.EqualFold(string(r.RoleName), role) {
			sess.Set(tenant.RoleSessionAttribute, string(r.RoleName))
			return &dto.SessionSchool{SchoolID: schoolID, Role: string(r.RoleName)}, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrForbidden, "role not granted in the selected school")
}

// Current reads the principal's selection back without touching the store.
func (s *SchoolSelectionService) Current(principal *models.Principal, sess SessionAttributes) (*dto.SessionSchool, error) {
	if principal == nil {
		return nil, appErrors.ErrUnauthenticated
	}
	schoolID, err := tenant.ResolveFor(sess, principal.UserID)
	if err != nil {
		return nil, err
	}
	return &dto.SessionSchool{SchoolID: schoolID, Role: tenant.SelectedRole(sess)}, nil
}

// Clear drops the selection.
func (s *SchoolSelectionService) Clear(sess SessionAttributes) {
	sess.Delete(tenant.SessionAttribute)
	sess.Delete(tenant.RoleSessionAttribute)
	sess.Delete(tenant.UserSessionAttribute)
}
