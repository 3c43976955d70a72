package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-tenant-api/internal/models"
	appErrors "github.com/noah-isme/sma-tenant-api/pkg/errors"
)

const (
	tenantA = "6f1f8b2e-1d8a-4d7e-9a38-1f2b3c4d5e6f"
	tenantB = "0c1d2e3f-4a5b-4c6d-8e7f-9a0b1c2d3e4f"

	studentOne    = "5d6c1a8e-7b2f-4c3d-9e1a-0f2b4c6d8e01"
	studentTwo    = "5d6c1a8e-7b2f-4c3d-9e1a-0f2b4c6d8e02"
	staffOne      = "7a1b2c3d-4e5f-4a6b-8c7d-9e0f1a2b3c01"
	parentOne     = "8b2c3d4e-5f6a-4b7c-9d8e-0f1a2b3c4d01"
	classOne      = "9c3d4e5f-6a7b-4c8d-8e9f-1a2b3c4d5e01"
	feeOne        = "ad4e5f6a-7b8c-4d9e-9f0a-2b3c4d5e6f01"
	termOne       = "be5f6a7b-8c9d-4e0f-8a1b-3c4d5e6f7a01"
	departmentOne = "cf6a7b8c-9d0e-4f1a-9b2c-4d5e6f7a8b01"
	examOne       = "d07b8c9d-0e1f-4a2b-8c3d-5e6f7a8b9c01"
	missingID     = "e18c9d0e-1f2a-4b3c-9d4e-6f7a8b9c0d01"
)

// mapLookup is an in-memory Lookup keyed by id.
type mapLookup[T any] struct {
	mu    sync.RWMutex
	rows  map[string]*T
	err   error
	calls int
}

func newMapLookup[T any]() *mapLookup[T] {
	return &mapLookup[T]{rows: map[string]*T{}}
}

func (l *mapLookup[T]) put(id string, row *T) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows[id] = row
}

func (l *mapLookup[T]) all() []T {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]T, 0, len(l.rows))
	for _, row := range l.rows {
		out = append(out, *row)
	}
	return out
}

func (l *mapLookup[T]) FindByID(_ context.Context, id string) (*T, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls++
	if l.err != nil {
		return nil, l.err
	}
	row, ok := l.rows[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *row
	return &copied, nil
}

type fakeLinks struct {
	linked bool
	err    error
}

func (f fakeLinks) ActiveLinkExists(context.Context, string, string, string) (bool, error) {
	return f.linked, f.err
}

func owned(tenantID string) models.TenantModel {
	return models.TenantModel{SchoolID: tenantID, Active: true}
}

type authzFixture struct {
	svc      *AuthorizationService
	students *mapLookup[models.Student]
	parents  *mapLookup[models.Parent]
	staff    *mapLookup[models.Staff]
	classes  *mapLookup[models.SchoolClass]
	fees     *mapLookup[models.FeeItem]
	terms    *mapLookup[models.Term]
}

func newAuthzFixture(links fakeLinks) *authzFixture {
	f := &authzFixture{
		students: newMapLookup[models.Student](),
		parents:  newMapLookup[models.Parent](),
		staff:    newMapLookup[models.Staff](),
		classes:  newMapLookup[models.SchoolClass](),
		fees:     newMapLookup[models.FeeItem](),
		terms:    newMapLookup[models.Term](),
	}
	f.svc = NewAuthorizationService(AuthorizationLookups{
		Students:       f.students,
		Parents:        f.parents,
		Staff:          f.staff,
		Classes:        f.classes,
		FeeItems:       f.fees,
		Terms:          f.terms,
		ParentStudents: links,
	}, nil)
	return f
}

func TestValidateAndGetStudentIsolatesTenants(t *testing.T) {
	f := newAuthzFixture(fakeLinks{})
	f.students.put(studentOne, &models.Student{ID: studentOne, FirstName: "Sam", TenantModel: owned(tenantA)})

	student, err := f.svc.ValidateAndGetStudent(context.Background(), studentOne, tenantA)
	require.NoError(t, err)
	assert.Equal(t, studentOne, student.ID)

	_, err = f.svc.ValidateAndGetStudent(context.Background(), studentOne, tenantB)
	assert.ErrorIs(t, err, appErrors.ErrResourceNotFound)
}

func TestCrossTenantAndMissingAreIndistinguishable(t *testing.T) {
	f := newAuthzFixture(fakeLinks{})
	f.staff.put(staffOne, &models.Staff{ID: staffOne, TenantModel: owned(tenantA)})

	_, crossErr := f.svc.ValidateAndGetStaff(context.Background(), staffOne, tenantB)
	_, missingErr := f.svc.ValidateAndGetStaff(context.Background(), missingID, tenantB)

	require.Error(t, crossErr)
	require.Error(t, missingErr)
	assert.Equal(t, crossErr.Error(), missingErr.Error())
	assert.Equal(t, appErrors.FromError(crossErr).Status, appErrors.FromError(missingErr).Status)
	assert.Equal(t, "Staff not found or unauthorized access", crossErr.Error())
}

func TestValidateAndGetRequiresTenant(t *testing.T) {
	f := newAuthzFixture(fakeLinks{})
	f.classes.put(classOne, &models.SchoolClass{ID: classOne, TenantModel: owned(tenantA)})

	_, err := f.svc.ValidateAndGetSchoolClass(context.Background(), classOne, "")
	assert.ErrorIs(t, err, appErrors.ErrNoTenantSelected)
	assert.Zero(t, f.classes.calls)
}

func TestMalformedIDIsNotFoundWithoutLookup(t *testing.T) {
	f := newAuthzFixture(fakeLinks{})
	f.students.put(studentOne, &models.Student{ID: studentOne, TenantModel: owned(tenantA)})

	for _, id := range []string{"not-a-uuid", "1 OR 1=1", studentOne + "x"} {
		_, err := f.svc.ValidateAndGetStudent(context.Background(), id, tenantA)
		assert.ErrorIs(t, err, appErrors.ErrResourceNotFound, id)
		assert.NotErrorIs(t, err, appErrors.ErrInternal, id)
	}
	assert.Zero(t, f.students.calls)

	upper := strings.ToUpper(studentOne)
	student, err := f.svc.ValidateAndGetStudent(context.Background(), upper, tenantA)
	require.NoError(t, err)
	assert.Equal(t, studentOne, student.ID)
}

func TestInactiveResourceIsNotFound(t *testing.T) {
	f := newAuthzFixture(fakeLinks{})
	f.fees.put(feeOne, &models.FeeItem{ID: feeOne, TenantModel: models.TenantModel{SchoolID: tenantA}})

	_, err := f.svc.ValidateAndGetFeeItem(context.Background(), feeOne, tenantA)
	assert.ErrorIs(t, err, appErrors.ErrResourceNotFound)
}

func TestLookupFailureIsInternal(t *testing.T) {
	f := newAuthzFixture(fakeLinks{})
	f.terms.err = errors.New("connection reset")

	_, err := f.svc.ValidateAndGetTerm(context.Background(), termOne, tenantA)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrInternal)
	assert.NotErrorIs(t, err, appErrors.ErrResourceNotFound)
}

func TestEveryCallHitsTheLookup(t *testing.T) {
	f := newAuthzFixture(fakeLinks{})
	f.students.put(studentOne, &models.Student{ID: studentOne, TenantModel: owned(tenantA)})

	for i := 0; i < 3; i++ {
		_, err := f.svc.ValidateAndGetStudent(context.Background(), studentOne, tenantA)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, f.students.calls)
}

func TestUnconfiguredKindFailsClosed(t *testing.T) {
	f := newAuthzFixture(fakeLinks{})
	_, err := f.svc.ValidateAndGetDepartment(context.Background(), departmentOne, tenantA)
	assert.Error(t, err)

	assert.ErrorIs(t, f.svc.Check(context.Background(), models.ResourceKind("unknown"), "x", tenantA), appErrors.ErrResourceNotFound)
}

func TestValidateSchoolAccess(t *testing.T) {
	svc := NewAuthorizationService(AuthorizationLookups{}, nil)

	_, err := svc.ValidateSchoolAccess(nil)
	assert.ErrorIs(t, err, appErrors.ErrNoTenantSelected)

	empty := ""
	_, err = svc.ValidateSchoolAccess(&empty)
	assert.ErrorIs(t, err, appErrors.ErrNoTenantSelected)

	id := tenantA
	got, err := svc.ValidateSchoolAccess(&id)
	require.NoError(t, err)
	assert.Equal(t, tenantA, got)
}

func TestValidateSchoolOwnership(t *testing.T) {
	svc := NewAuthorizationService(AuthorizationLookups{}, nil)
	student := &models.Student{ID: studentOne, TenantModel: owned(tenantA)}

	assert.NoError(t, svc.ValidateSchoolOwnership(student, models.KindStudent, tenantA))
	assert.ErrorIs(t, svc.ValidateSchoolOwnership(student, models.KindStudent, tenantB), appErrors.ErrResourceNotFound)
	assert.ErrorIs(t, svc.ValidateSchoolOwnership(nil, models.KindStudent, tenantA), appErrors.ErrResourceNotFound)
}

func TestValidateParentStudentAccess(t *testing.T) {
	f := newAuthzFixture(fakeLinks{linked: true})
	f.parents.put(parentOne, &models.Parent{ID: parentOne, TenantModel: owned(tenantA)})
	f.students.put(studentOne, &models.Student{ID: studentOne, TenantModel: owned(tenantA)})
	f.students.put(studentTwo, &models.Student{ID: studentTwo, TenantModel: owned(tenantB)})

	ok, err := f.svc.ValidateParentStudentAccess(context.Background(), parentOne, studentOne, tenantA)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = f.svc.ValidateParentStudentAccess(context.Background(), parentOne, studentTwo, tenantA)
	assert.ErrorIs(t, err, appErrors.ErrResourceNotFound)

	unlinked := newAuthzFixture(fakeLinks{linked: false})
	unlinked.parents.put(parentOne, &models.Parent{ID: parentOne, TenantModel: owned(tenantA)})
	unlinked.students.put(studentOne, &models.Student{ID: studentOne, TenantModel: owned(tenantA)})
	ok, err = unlinked.svc.ValidateParentStudentAccess(context.Background(), parentOne, studentOne, tenantA)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCheckDispatchesByKind(t *testing.T) {
	f := newAuthzFixture(fakeLinks{})
	f.parents.put(parentOne, &models.Parent{ID: parentOne, TenantModel: owned(tenantA)})

	assert.NoError(t, f.svc.Check(context.Background(), models.KindParent, parentOne, tenantA))
	assert.ErrorIs(t, f.svc.Check(context.Background(), models.KindParent, parentOne, tenantB), appErrors.ErrResourceNotFound)
}
