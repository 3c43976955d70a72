package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/sma-tenant-api/internal/models"
	"github.com/noah-isme/sma-tenant-api/internal/tenant"
	appErrors "github.com/noah-isme/sma-tenant-api/pkg/errors"
	"github.com/noah-isme/sma-tenant-api/pkg/session"
)

type mockAuthRepo struct {
	user             *models.User
	lastLoginUpdated bool
}

func (m *mockAuthRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	if m.user == nil || m.user.Email != email {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *mockAuthRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if m.user == nil || m.user.ID != id {
		return nil, sql.ErrNoRows
	}
	return m.user, nil
}

func (m *mockAuthRepo) UpdateLastLogin(context.Context, string, time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func newAuthFixture(t *testing.T, schools ...string) (*AuthService, *mockAuthRepo, *memActivityRepo) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)

	user := &models.User{ID: "u1", Email: "teacher@school.test", PasswordHash: string(hash), FirstName: "Tia", LastName: "Teacher", Role: models.RoleTeacher, Active: true}
	repo := &mockAuthRepo{user: user}

	grants := make([]models.UserSchoolRole, 0, len(schools))
	for _, s := range schools {
		grants = append(grants, models.UserSchoolRole{UserID: "u1", SchoolID: s, RoleName: models.RoleTeacher, Active: true})
	}
	selection := NewSchoolSelectionService(fakeSchoolRoles{roles: map[string][]models.UserSchoolRole{"u1": grants}}, nil)

	activityRepo := &memActivityRepo{}
	activity := newActivityService(activityRepo, fakeUsers{"u1": user}, nil)

	svc := NewAuthService(repo, selection, activity, nil, nil, AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "sma-tenant-api"})
	return svc, repo, activityRepo
}

func TestLoginSelectsOnlySchool(t *testing.T) {
	svc, repo, activity := newAuthFixture(t, tenantA)
	sess := session.New()

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "teacher@school.test", Password: "password123"}, sess, &models.RequestContext{IPAddress: "10.0.0.5"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, tenantA, resp.SchoolID)
	assert.True(t, repo.lastLoginUpdated)

	resolved, err := tenant.Resolve(sess)
	require.NoError(t, err)
	assert.Equal(t, tenantA, resolved)

	entries := activity.snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActivityUserLogin, entries[0].ActivityType)
	assert.Equal(t, tenantA, entries[0].SchoolID)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, "Tia", claims.FirstName)
}

func TestLoginWithSeveralSchoolsLeavesSelectionOpen(t *testing.T) {
	svc, _, activity := newAuthFixture(t, tenantA, tenantB)
	sess := session.New()

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "teacher@school.test", Password: "password123"}, sess, nil)
	require.NoError(t, err)
	assert.Empty(t, resp.SchoolID)
	_, err = tenant.Resolve(sess)
	assert.ErrorIs(t, err, appErrors.ErrNoTenantSelected)
	assert.Empty(t, activity.snapshot())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _, _ := newAuthFixture(t, tenantA)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "teacher@school.test", Password: "wrong"}, session.New(), nil)
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "nobody@school.test", Password: "password123"}, session.New(), nil)
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "not-an-email"}, session.New(), nil)
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestLoginRejectsInactiveUser(t *testing.T) {
	svc, repo, _ := newAuthFixture(t, tenantA)
	repo.user.Active = false

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "teacher@school.test", Password: "password123"}, session.New(), nil)
	assert.ErrorIs(t, err, appErrors.ErrInactiveAccount)
}

func TestLogoutRecordsAndDestroysSession(t *testing.T) {
	svc, repo, activity := newAuthFixture(t, tenantA)
	sess := session.New()
	sess.Set(tenant.SessionAttribute, tenantA)

	principal := &models.Principal{UserID: "u1", Authority: "TEACHER", User: repo.user}
	require.NoError(t, svc.Logout(context.Background(), principal, sess, nil))

	assert.True(t, sess.Destroyed())
	entries := activity.snapshot()
	require.Len(t, entries, 1)
	assert.Equal(t, models.ActivityUserLogout, entries[0].ActivityType)

	assert.ErrorIs(t, svc.Logout(context.Background(), nil, sess, nil), appErrors.ErrUnauthenticated)
}

func TestValidateTokenRejectsForeignSignature(t *testing.T) {
	svc, _, _ := newAuthFixture(t, tenantA)
	other := NewAuthService(&mockAuthRepo{}, nil, nil, nil, nil, AuthConfig{AccessTokenSecret: "other"})

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "teacher@school.test", Password: "password123"}, nil, nil)
	require.NoError(t, err)

	_, err = other.ValidateToken(resp.AccessToken)
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
