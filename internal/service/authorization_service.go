package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-tenant-api/internal/models"
	appErrors "github.com/noah-isme/sma-tenant-api/pkg/errors"
)

// Lookup fetches a school-owned row by id, returning sql.ErrNoRows when absent.
type Lookup[T any] interface {
	FindByID(ctx context.Context, id string) (*T, error)
}

type parentStudentLinks interface {
	ActiveLinkExists(ctx context.Context, parentID, studentID, schoolID string) (bool, error)
}

// AuthorizationLookups groups the per-kind lookups the authorization service checks.
type AuthorizationLookups struct {
	Students         Lookup[models.Student]
	Parents          Lookup[models.Parent]
	Staff            Lookup[models.Staff]
	Subjects         Lookup[models.Subject]
	Classes          Lookup[models.SchoolClass]
	Examinations     Lookup[models.Examination]
	FeeItems         Lookup[models.FeeItem]
	AcademicSessions Lookup[models.AcademicSession]
	Terms            Lookup[models.Term]
	Departments      Lookup[models.Department]
	Tracks           Lookup[models.EducationTrack]
	ParentStudents   parentStudentLinks
}

// AuthorizationService is the only place resource lookups are scoped to a school. A
// resource missing, inactive or owned by another school yields the same ResourceNotFound
// error. Results are never cached.
type AuthorizationService struct {
	lookups AuthorizationLookups
	logger  *zap.Logger
}

// NewAuthorizationService constructs the service.
func NewAuthorizationService(lookups AuthorizationLookups, logger *zap.Logger) *AuthorizationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthorizationService{lookups: lookups, logger: logger}
}

func notFound(kind models.ResourceKind) *appErrors.Error {
	return appErrors.Clone(appErrors.ErrResourceNotFound, fmt.Sprintf("%s not found or unauthorized access", kind.Label()))
}

func validateAndGet[T models.TenantOwned](ctx context.Context, s *AuthorizationService, lookup Lookup[T], kind models.ResourceKind, id, tenantID string) (*T, error) {
	if tenantID == "" {
		return nil, appErrors.ErrNoTenantSelected
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, notFound(kind)
	}
	id = parsed.String()
	if lookup == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("no lookup configured for %s", kind))
	}

	resource, err := lookup.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, notFound(kind)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to load %s", kind))
	}
	if resource == nil {
		return nil, notFound(kind)
	}

	owned := *resource
	if owned.TenantID() != tenantID {
		s.logger.Warn("cross-tenant lookup denied",
			zap.String("kind", string(kind)),
			zap.String("resource_id", id),
			zap.String("tenant_id", tenantID),
		)
		return nil, notFound(kind)
	}
	if !owned.IsActive() {
		return nil, notFound(kind)
	}
	return resource, nil
}

// ValidateSchoolAccess returns the selected school or NoTenantSelected.
func (s *AuthorizationService) ValidateSchoolAccess(tenantID *string) (string, error) {
	if tenantID == nil || *tenantID == "" {
		return "", appErrors.ErrNoTenantSelected
	}
	return *tenantID, nil
}

// ValidateSchoolOwnership checks an already loaded resource against the tenant.
func (s *AuthorizationService) ValidateSchoolOwnership(resource models.TenantOwned, kind models.ResourceKind, tenantID string) error {
	if tenantID == "" {
		return appErrors.ErrNoTenantSelected
	}
	if resource == nil || resource.TenantID() != tenantID {
		return notFound(kind)
	}
	return nil
}

func (s *AuthorizationService) ValidateAndGetStudent(ctx context.Context, id, tenantID string) (*models.Student, error) {
	return validateAndGet(ctx, s, s.lookups.Students, models.KindStudent, id, tenantID)
}

func (s *AuthorizationService) ValidateAndGetParent(ctx context.Context, id, tenantID string) (*models.Parent, error) {
	return validateAndGet(ctx, s, s.lookups.Parents, models.KindParent, id, tenantID)
}

func (s *AuthorizationService) ValidateAndGetStaff(ctx context.Context, id, tenantID string) (*models.Staff, error) {
	return validateAndGet(ctx, s, s.lookups.Staff, models.KindStaff, id, tenantID)
}

func (s *AuthorizationService) ValidateAndGetSubject(ctx context.Context, id, tenantID string) (*models.Subject, error) {
	return validateAndGet(ctx, s, s.lookups.Subjects, models.KindSubject, id, tenantID)
}

func (s *AuthorizationService) ValidateAndGetSchoolClass(ctx context.Context, id, tenantID string) (*models.SchoolClass, error) {
	return validateAndGet(ctx, s, s.lookups.Classes, models.KindSchoolClass, id, tenantID)
}

func (s *AuthorizationService) ValidateAndGetExamination(ctx context.Context, id, tenantID string) (*models.Examination, error) {
	return validateAndGet(ctx, s, s.lookups.Examinations, models.KindExamination, id, tenantID)
}

func (s *AuthorizationService) ValidateAndGetFeeItem(ctx context.Context, id, tenantID string) (*models.FeeItem, error) {
	return validateAndGet(ctx, s, s.lookups.FeeItems, models.KindFeeItem, id, tenantID)
}

func (s *AuthorizationService) ValidateAndGetAcademicSession(ctx context.Context, id, tenantID string) (*models.AcademicSession, error) {
	return validateAndGet(ctx, s, s.lookups.AcademicSessions, models.KindAcademicSession, id, tenantID)
}

func (s *AuthorizationService) ValidateAndGetTerm(ctx context.Context, id, tenantID string) (*models.Term, error) {
	return validateAndGet(ctx, s, s.lookups.Terms, models.KindTerm, id, tenantID)
}

func (s *AuthorizationService) ValidateAndGetDepartment(ctx context.Context, id, tenantID string) (*models.Department, error) {
	return validateAndGet(ctx, s, s.lookups.Departments, models.KindDepartment, id, tenantID)
}

func (s *AuthorizationService) ValidateAndGetEducationTrack(ctx context.Context, id, tenantID string) (*models.EducationTrack, error) {
	return validateAndGet(ctx, s, s.lookups.Tracks, models.KindEducationTrack, id, tenantID)
}

// Check validates a resource of any kind without returning it.
func (s *AuthorizationService) Check(ctx context.Context, kind models.ResourceKind, id, tenantID string) error {
	var err error
	switch kind {
	case models.KindStudent:
		_, err = s.ValidateAndGetStudent(ctx, id, tenantID)
	case models.KindParent:
		_, err = s.ValidateAndGetParent(ctx, id, tenantID)
	case models.KindStaff:
		_, err = s.ValidateAndGetStaff(ctx, id, tenantID)
	case models.KindSubject:
		_, err = s.ValidateAndGetSubject(ctx, id, tenantID)
	case models.KindSchoolClass:
		_, err = s.ValidateAndGetSchoolClass(ctx, id, tenantID)
	case models.KindExamination:
		_, err = s.ValidateAndGetExamination(ctx, id, tenantID)
	case models.KindFeeItem:
		_, err = s.ValidateAndGetFeeItem(ctx, id, tenantID)
	case models.KindAcademicSession:
		_, err = s.ValidateAndGetAcademicSession(ctx, id, tenantID)
	case models.KindTerm:
		_, err = s.ValidateAndGetTerm(ctx, id, tenantID)
	case models.KindDepartment:
		_, err = s.ValidateAndGetDepartment(ctx, id, tenantID)
	case models.KindEducationTrack:
		_, err = s.ValidateAndGetEducationTrack(ctx, id, tenantID)
	default:
		err = notFound(kind)
	}
	return err
}

// ValidateParentStudentAccess reports whether parent and student both belong to the
// tenant and are actively linked.
func (s *AuthorizationService) ValidateParentStudentAccess(ctx context.Context, parentID, studentID, tenantID string) (bool, error) {
	if _, err := s.ValidateAndGetParent(ctx, parentID, tenantID); err != nil {
		return false, err
	}
	if _, err := s.ValidateAndGetStudent(ctx, studentID, tenantID); err != nil {
		return false, err
	}
	if s.lookups.ParentStudents == nil {
		return false, nil
	}
	linked, err := s.lookups.ParentStudents.ActiveLinkExists(ctx, parentID, studentID, tenantID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check parent link")
	}
	return linked, nil
}
