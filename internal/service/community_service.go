package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-tenant-api/internal/audit"
	"github.com/noah-isme/sma-tenant-api/internal/dto"
	"github.com/noah-isme/sma-tenant-api/internal/models"
	"github.com/noah-isme/sma-tenant-api/internal/tenant"
	appErrors "github.com/noah-isme/sma-tenant-api/pkg/errors"
)

type staffStore interface {
	Create(ctx context.Context, staff *models.Staff) error
	Update(ctx context.Context, staff *models.Staff) error
	ListBySchool(ctx context.Context, schoolID string) ([]models.Staff, error)
}

type studentStore interface {
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
	ListBySchool(ctx context.Context, schoolID string) ([]models.Student, error)
}

type parentStore interface {
	Create(ctx context.Context, parent *models.Parent) error
	Update(ctx context.Context, parent *models.Parent) error
	ListBySchool(ctx context.Context, schoolID string) ([]models.Parent, error)
}

type tenantResourceLoader interface {
	ValidateAndGetStaff(ctx context.Context, id, tenantID string) (*models.Staff, error)
	ValidateAndGetStudent(ctx context.Context, id, tenantID string) (*models.Student, error)
	ValidateAndGetParent(ctx context.Context, id, tenantID string) (*models.Parent, error)
}

type auditEmitter interface {
	Emit(ctx context.Context, scope tenant.Scope, cmd audit.Command) audit.Outcome
}

// CommunityService saves staff, students and parents. Updates are loaded through the
// authorization service first; every successful save is handed to the audit port.
type CommunityService struct {
	staff     staffStore
	students  studentStore
	parents   parentStore
	authz     tenantResourceLoader
	audit     auditEmitter
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCommunityService constructs the service. recorder may be nil to disable auditing.
func NewCommunityService(staff staffStore, students studentStore, parents parentStore, authz tenantResourceLoader, recorder auditEmitter, validate *validator.Validate, logger *zap.Logger) *CommunityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommunityService{
		staff:     staff,
		students:  students,
		parents:   parents,
		authz:     authz,
		audit:     recorder,
		validator: validate,
		logger:    logger,
	}
}

func (s *CommunityService) validate(scope tenant.Scope, req interface{}) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload")
	}
	return nil
}

func (s *CommunityService) emit(ctx context.Context, scope tenant.Scope, cmd audit.Command) {
	if s.audit == nil {
		return
	}
	s.audit.Emit(ctx, scope, cmd)
}

func persistError(err error, kind models.ResourceKind) error {
	if errors.Is(err, sql.ErrNoRows) {
		return notFound(kind)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save "+kind.Label())
}

func nullable(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

// SaveStaff creates a staff member when id is empty and updates it otherwise.
func (s *CommunityService) SaveStaff(ctx context.Context, scope tenant.Scope, id string, req dto.SaveStaffRequest) (*models.Staff, error) {
	if err := s.validate(scope, req); err != nil {
		return nil, err
	}

	staff := &models.Staff{TenantModel: models.TenantModel{SchoolID: scope.TenantID}}
	if id != "" {
		existing, err := s.authz.ValidateAndGetStaff(ctx, id, scope.TenantID)
		if err != nil {
			return nil, err
		}
		staff = existing
	}
	staff.UserID = nullable(req.UserID)
	staff.StaffNumber = req.StaffNumber
	staff.FirstName = req.FirstName
	staff.LastName = req.LastName
	staff.Designation = req.Designation
	staff.Department = nullable(req.Department)
	if req.HireDate != nil {
		staff.HireDate = req.HireDate.UTC()
	}

	var err error
	if id != "" {
		err = s.staff.Update(ctx, staff)
	} else {
		err = s.staff.Create(ctx, staff)
	}
	if err != nil {
		return nil, persistError(err, models.KindStaff)
	}

	s.emit(ctx, scope, audit.StaffCommand{
		ID:          id,
		NewID:       staff.ID,
		FirstName:   staff.FirstName,
		LastName:    staff.LastName,
		Designation: staff.Designation,
	})
	return staff, nil
}

// SaveStudent creates a student when id is empty and updates it otherwise.
func (s *CommunityService) SaveStudent(ctx context.Context, scope tenant.Scope, id string, req dto.SaveStudentRequest) (*models.Student, error) {
	if err := s.validate(scope, req); err != nil {
		return nil, err
	}

	student := &models.Student{TenantModel: models.TenantModel{SchoolID: scope.TenantID}}
	if id != "" {
		existing, err := s.authz.ValidateAndGetStudent(ctx, id, scope.TenantID)
		if err != nil {
			return nil, err
		}
		student = existing
	}
	student.UserID = nullable(req.UserID)
	student.StudentNumber = req.StudentNumber
	student.AdmissionNumber = nullable(req.AdmissionNumber)
	student.FirstName = req.FirstName
	student.LastName = req.LastName
	student.Gender = nullable(req.Gender)
	student.DateOfBirth = req.DateOfBirth
	student.GradeLevel = nullable(req.GradeLevel)
	if req.AdmissionDate != nil {
		student.AdmissionDate = req.AdmissionDate.UTC()
	}

	var err error
	if id != "" {
		err = s.students.Update(ctx, student)
	} else {
		err = s.students.Create(ctx, student)
	}
	if err != nil {
		return nil, persistError(err, models.KindStudent)
	}

	s.emit(ctx, scope, audit.StudentCommand{
		ID:        id,
		NewID:     student.ID,
		FirstName: student.FirstName,
		LastName:  student.LastName,
	})
	return student, nil
}

// SaveParent creates a parent when id is empty and updates it otherwise.
func (s *CommunityService) SaveParent(ctx context.Context, scope tenant.Scope, id string, req dto.SaveParentRequest) (*models.Parent, error) {
	if err := s.validate(scope, req); err != nil {
		return nil, err
	}

	parent := &models.Parent{TenantModel: models.TenantModel{SchoolID: scope.TenantID}}
	if id != "" {
		existing, err := s.authz.ValidateAndGetParent(ctx, id, scope.TenantID)
		if err != nil {
			return nil, err
		}
		parent = existing
	}
	parent.UserID = nullable(req.UserID)
	parent.FirstName = req.FirstName
	parent.LastName = req.LastName
	parent.Phone = nullable(req.Phone)
	parent.Email = nullable(req.Email)
	parent.IsPrimaryContact = req.IsPrimaryContact

	var err error
	if id != "" {
		err = s.parents.Update(ctx, parent)
	} else {
		err = s.parents.Create(ctx, parent)
	}
	if err != nil {
		return nil, persistError(err, models.KindParent)
	}

	s.emit(ctx, scope, audit.ParentCommand{
		ID:        id,
		NewID:     parent.ID,
		FirstName: parent.FirstName,
		LastName:  parent.LastName,
	})
	return parent, nil
}

func (s *CommunityService) ListStaff(ctx context.Context, scope tenant.Scope) ([]models.Staff, error) {
	if scope.TenantID == "" {
		return nil, appErrors.ErrNoTenantSelected
	}
	staff, err := s.staff.ListBySchool(ctx, scope.TenantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list staff")
	}
	return staff, nil
}

func (s *CommunityService) ListStudents(ctx context.Context, scope tenant.Scope) ([]models.Student, error) {
	if scope.TenantID == "" {
		return nil, appErrors.ErrNoTenantSelected
	}
	students, err := s.students.ListBySchool(ctx, scope.TenantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, nil
}

func (s *CommunityService) ListParents(ctx context.Context, scope tenant.Scope) ([]models.Parent, error) {
	if scope.TenantID == "" {
		return nil, appErrors.ErrNoTenantSelected
	}
	parents, err := s.parents.ListBySchool(ctx, scope.TenantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list parents")
	}
	return parents, nil
}
