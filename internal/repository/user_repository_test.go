package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-tenant-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "first_name", "last_name", "role", "active", "last_login", "created_at", "updated_at"}).
		AddRow("u1", "admin@school.test", "hash", "Ada", "Lovelace", string(models.RoleSchoolAdmin), true, now, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("admin@school.test").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "admin@school.test")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", user.FullName())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindUserByIDPassesNoRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery("FROM users WHERE id = \\$1").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListActiveSchoolRoles(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserSchoolRoleRepository(db)

	rows := sqlmock.NewRows([]string{"id", "user_id", "school_id", "role_name", "is_primary", "is_active", "expires_at"}).
		AddRow("r1", "u1", "s1", "TEACHER", true, true, nil).
		AddRow("r2", "u1", "s1", "PARENT", false, true, nil)
	mock.ExpectQuery("FROM user_school_roles").WithArgs("u1", "s1").WillReturnRows(rows)

	roles, err := repo.ListActive(context.Background(), "u1", "s1")
	require.NoError(t, err)
	require.Len(t, roles, 2)
	assert.Equal(t, models.RoleTeacher, roles[0].RoleName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListSchools(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserSchoolRoleRepository(db)

	mock.ExpectQuery("SELECT DISTINCT school_id FROM user_school_roles").
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"school_id"}).AddRow("s1").AddRow("s2"))

	schools, err := repo.ListSchools(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"s1", "s2"}, schools)
}
