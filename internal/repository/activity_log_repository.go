package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-tenant-api/internal/models"
)

const activityColumns = `id, school_id, activity_type, title, description, user_id, user_name, user_role, target_user_id, target_user_name, entity_type, entity_id, metadata, ip_address, user_agent, created_at`

// ActivityLogRepository persists append-only activity entries.
type ActivityLogRepository struct {
	db *sqlx.DB
}

func NewActivityLogRepository(db *sqlx.DB) *ActivityLogRepository {
	return &ActivityLogRepository{db: db}
}

// Create inserts one entry. Entries are never updated; inserting an id twice is a no-op.
func (r *ActivityLogRepository) Create(ctx context.Context, entry *models.ActivityLog) error {
	const query = `INSERT INTO activity_logs (` + activityColumns + `)
        VALUES (:id, :school_id, :activity_type, :title, :description, :user_id, :user_name, :user_role, :target_user_id, :target_user_name, :entity_type, :entity_id, :metadata, :ip_address, :user_agent, :created_at)
        ON CONFLICT (id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		return fmt.Errorf("create activity log: %w", err)
	}
	return nil
}

func buildActivityWhere(filter models.ActivityFilter) (string, []interface{}) {
	conditions := []string{"school_id = $1"}
	args := []interface{}{filter.SchoolID}

	if filter.RelatedUser != "" {
		conditions = append(conditions, fmt.Sprintf("(user_id = $%d OR target_user_id = $%d)", len(args)+1, len(args)+1))
		args = append(args, filter.RelatedUser)
	}
	if filter.Type != nil {
		conditions = append(conditions, fmt.Sprintf("activity_type = $%d", len(args)+1))
		args = append(args, *filter.Type)
	}
	if filter.Role != "" {
		conditions = append(conditions, fmt.Sprintf("user_role = $%d", len(args)+1))
		args = append(args, filter.Role)
	}
	if filter.Since != nil {
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, *filter.Since)
	}

	return "WHERE " + strings.Join(conditions, " AND "), args
}

// List returns entries newest first with the total matching count.
func (r *ActivityLogRepository) List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, int, error) {
	where, args := buildActivityWhere(filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 500 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM activity_logs %s ORDER BY created_at DESC LIMIT %d OFFSET %d", activityColumns, where, size, offset)
	var entries []models.ActivityLog
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list activity logs: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM activity_logs %s", where)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count activity logs: %w", err)
	}

	return entries, total, nil
}

// CountByType groups entries of a school created since the given instant.
func (r *ActivityLogRepository) CountByType(ctx context.Context, schoolID string, since time.Time) ([]models.ActivityStat, error) {
	const query = `SELECT activity_type, COUNT(*) AS count FROM activity_logs
        WHERE school_id = $1 AND created_at >= $2 GROUP BY activity_type ORDER BY count DESC, activity_type ASC`
	var stats []models.ActivityStat
	if err := r.db.SelectContext(ctx, &stats, query, schoolID, since); err != nil {
		return nil, fmt.Errorf("count activity logs by type: %w", err)
	}
	return stats, nil
}

// ExistsForEntity reports whether an entry of type already references entity.
func (r *ActivityLogRepository) ExistsForEntity(ctx context.Context, schoolID string, activityType models.ActivityType, entityID string) (bool, error) {
	const query = `SELECT EXISTS (SELECT 1 FROM activity_logs WHERE school_id = $1 AND activity_type = $2 AND entity_id = $3)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, schoolID, activityType, entityID); err != nil {
		return false, fmt.Errorf("check activity log for entity: %w", err)
	}
	return exists, nil
}
