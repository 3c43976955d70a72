package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-tenant-api/internal/models"
)

const userColumns = `id, email, password_hash, first_name, last_name, role, active, last_login, created_at, updated_at`

// UserRepository provides database access for accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// UpdateLastLogin updates the last_login timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// UserSchoolRoleRepository reads the per-school role grants.
type UserSchoolRoleRepository struct {
	db *sqlx.DB
}

func NewUserSchoolRoleRepository(db *sqlx.DB) *UserSchoolRoleRepository {
	return &UserSchoolRoleRepository{db: db}
}

// ListActive returns unexpired active grants of user in school, primary first.
func (r *UserSchoolRoleRepository) ListActive(ctx context.Context, userID, schoolID string) ([]models.UserSchoolRole, error) {
	const query = `SELECT id, user_id, school_id, role_name, is_primary, is_active, expires_at FROM user_school_roles
        WHERE user_id = $1 AND school_id = $2 AND is_active = TRUE AND (expires_at IS NULL OR expires_at > NOW())
        ORDER BY is_primary DESC, role_name ASC`
	var roles []models.UserSchoolRole
	if err := r.db.SelectContext(ctx, &roles, query, userID, schoolID); err != nil {
		return nil, fmt.Errorf("list user school roles: %w", err)
	}
	return roles, nil
}

// ListSchools returns the distinct schools where user holds an active grant.
func (r *UserSchoolRoleRepository) ListSchools(ctx context.Context, userID string) ([]string, error) {
	const query = `SELECT DISTINCT school_id FROM user_school_roles
        WHERE user_id = $1 AND is_active = TRUE AND (expires_at IS NULL OR expires_at > NOW())
        ORDER BY school_id`
	var schools []string
	if err := r.db.SelectContext(ctx, &schools, query, userID); err != nil {
		return nil, fmt.Errorf("list user schools: %w", err)
	}
	return schools, nil
}
