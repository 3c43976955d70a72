package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-tenant-api/internal/audit"
	"github.com/noah-isme/sma-tenant-api/internal/models"
	appErrors "github.com/noah-isme/sma-tenant-api/pkg/errors"
	"github.com/noah-isme/sma-tenant-api/pkg/export"
)

const (
	unknownUserName     = "Unknown User"
	defaultRecentLimit  = 10
	defaultStatsDays    = 30
	maxActivityPageSize = 500
)

type activityLogRepository interface {
	Create(ctx context.Context, entry *models.ActivityLog) error
	List(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, int, error)
	CountByType(ctx context.Context, schoolID string, since time.Time) ([]models.ActivityStat, error)
}

type queryMetrics interface {
	ObserveDBQuery(label string, duration time.Duration)
}

type userLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// ActivityLogServiceConfig tunes query windows and caching.
type ActivityLogServiceConfig struct {
	RecentWindow  time.Duration
	StatsCacheTTL time.Duration
}

// ActivityLogService persists activity entries and answers tenant-scoped queries.
// Each LogActivity call writes exactly one entry.
type ActivityLogService struct {
	repo      activityLogRepository
	users     userLookup
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ActivityLogServiceConfig
	metrics   queryMetrics
	now       func() time.Time
}

// WithMetrics times repository queries under the activity_* labels.
func (s *ActivityLogService) WithMetrics(m queryMetrics) *ActivityLogService {
	s.metrics = m
	return s
}

func (s *ActivityLogService) observe(label string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveDBQuery(label, time.Since(start))
	}
}

// NewActivityLogService constructs the service. users and cache may be nil.
func NewActivityLogService(repo activityLogRepository, users userLookup, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cfg ActivityLogServiceConfig) *ActivityLogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = 7 * 24 * time.Hour
	}
	return &ActivityLogService{
		repo:      repo,
		users:     users,
		cache:     cache,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// LogActivity validates ev and persists it as one entry.
func (s *ActivityLogService) LogActivity(ctx context.Context, ev models.ActivityEvent) (*models.ActivityLog, error) {
	if ev.TenantID == "" {
		return nil, appErrors.ErrNoTenantSelected
	}
	if err := s.validator.Struct(ev); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity event")
	}
	if !ev.Type.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown activity type %q", ev.Type))
	}

	entry := s.buildEntry(ctx, ev)
	start := time.Now()
	err := s.repo.Create(ctx, entry)
	s.observe("activity_insert", start)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record activity")
	}
	if err := s.cache.InvalidateTenant(ctx, ev.TenantID, "activity", "stats"); err != nil {
		s.logger.Debug("activity stats invalidation failed", zap.String("tenant_id", ev.TenantID), zap.Error(err))
	}
	return entry, nil
}

// Record implements the audit sink.
func (s *ActivityLogService) Record(ctx context.Context, ev models.ActivityEvent) error {
	_, err := s.LogActivity(ctx, ev)
	return err
}

func (s *ActivityLogService) buildEntry(ctx context.Context, ev models.ActivityEvent) *models.ActivityLog {
	id := ev.ID
	if id == "" {
		id = uuid.NewString()
	}
	created := ev.OccurredAt
	if created.IsZero() {
		created = s.now()
	}

	userName := ev.ActorName
	if userName == "" {
		userName = s.displayName(ctx, ev.ActorID)
	}
	if userName == "" {
		userName = unknownUserName
	}

	entry := &models.ActivityLog{
		ID:           id,
		SchoolID:     ev.TenantID,
		ActivityType: ev.Type,
		Title:        ev.Title,
		Description:  optional(ev.Description),
		UserID:       ev.ActorID,
		UserName:     userName,
		UserRole:     ev.ActorRole,
		TargetUserID: optional(ev.TargetUserID),
		EntityType:   optional(ev.EntityType),
		EntityID:     optional(ev.EntityID),
		Metadata:     ev.Metadata,
		CreatedAt:    created,
	}
	if ev.TargetUserID != "" {
		entry.TargetUserName = optional(s.displayName(ctx, ev.TargetUserID))
	}
	if ev.Request != nil {
		entry.IPAddress = optional(ev.Request.IPAddress)
		entry.UserAgent = optional(ev.Request.UserAgent)
	}
	return entry
}

func (s *ActivityLogService) displayName(ctx context.Context, userID string) string {
	if s.users == nil || userID == "" {
		return ""
	}
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Debug("activity user lookup failed", zap.String("user_id", userID), zap.Error(err))
		}
		return ""
	}
	return user.FullName()
}

func optional(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

func actorEvent(tenantID string, actor audit.Actor, req *models.RequestContext) models.ActivityEvent {
	role := actor.Role
	if role == "" {
		role = "USER"
	}
	return models.ActivityEvent{
		TenantID:  tenantID,
		ActorID:   actor.UserID,
		ActorRole: role,
		ActorName: actor.Name,
		Request:   req,
	}
}

// LogUserLogin records a successful sign-in to the school.
func (s *ActivityLogService) LogUserLogin(ctx context.Context, tenantID string, user *models.User, req *models.RequestContext) error {
	if user == nil {
		return appErrors.ErrUnauthenticated
	}
	ev := actorEvent(tenantID, audit.Actor{UserID: user.ID, Role: "USER", Name: user.FullName()}, req)
	ev.Type = models.ActivityUserLogin
	ev.Title = "User logged in"
	ev.Description = "User successfully logged into the system"
	_, err := s.LogActivity(ctx, ev)
	return err
}

func (s *ActivityLogService) LogUserLogout(ctx context.Context, tenantID string, user *models.User, req *models.RequestContext) error {
	if user == nil {
		return appErrors.ErrUnauthenticated
	}
	ev := actorEvent(tenantID, audit.Actor{UserID: user.ID, Role: "USER", Name: user.FullName()}, req)
	ev.Type = models.ActivityUserLogout
	ev.Title = "User logged out"
	ev.Description = "User logged out of the system"
	_, err := s.LogActivity(ctx, ev)
	return err
}

// LogStudentEnrolled records a student placed into a class.
func (s *ActivityLogService) LogStudentEnrolled(ctx context.Context, tenantID string, actor audit.Actor, studentUserID, className string, req *models.RequestContext) error {
	ev := actorEvent(tenantID, actor, req)
	ev.Type = models.ActivityStudentEnrolled
	ev.Title = "New student enrolled"
	ev.Description = "Student enrolled in class " + className
	ev.TargetUserID = studentUserID
	ev.EntityType = "Student"
	ev.Metadata = models.NewMetadata("className", className)
	_, err := s.LogActivity(ctx, ev)
	return err
}

func (s *ActivityLogService) LogStudentUpdated(ctx context.Context, tenantID string, actor audit.Actor, studentUserID string, changes models.Metadata, req *models.RequestContext) error {
	ev := actorEvent(tenantID, actor, req)
	ev.Type = models.ActivityStudentUpdated
	ev.Title = "Student information updated"
	ev.Description = "Student profile information was modified"
	ev.TargetUserID = studentUserID
	ev.EntityType = "Student"
	ev.Metadata = changes
	_, err := s.LogActivity(ctx, ev)
	return err
}

func (s *ActivityLogService) LogStaffHired(ctx context.Context, tenantID string, actor audit.Actor, staffUserID, designation string, req *models.RequestContext) error {
	ev := actorEvent(tenantID, actor, req)
	ev.Type = models.ActivityStaffHired
	ev.Title = "New staff member hired"
	ev.Description = fmt.Sprintf("New %s hired", designation)
	ev.TargetUserID = staffUserID
	ev.EntityType = "Staff"
	ev.Metadata = models.NewMetadata("designation", designation)
	_, err := s.LogActivity(ctx, ev)
	return err
}

// LogStaffUpdated records changes to a staff profile; changes becomes the metadata.
func (s *ActivityLogService) LogStaffUpdated(ctx context.Context, tenantID string, actor audit.Actor, staffUserID string, changes models.Metadata, req *models.RequestContext) error {
	ev := actorEvent(tenantID, actor, req)
	ev.Type = models.ActivityStaffUpdated
	ev.Title = "Staff information updated"
	ev.Description = "Staff profile information was modified"
	ev.TargetUserID = staffUserID
	ev.EntityType = "Staff"
	ev.Metadata = changes
	_, err := s.LogActivity(ctx, ev)
	return err
}

func (s *ActivityLogService) LogParentAdded(ctx context.Context, tenantID string, actor audit.Actor, parentUserID, studentName string, req *models.RequestContext) error {
	ev := actorEvent(tenantID, actor, req)
	ev.Type = models.ActivityParentAdded
	ev.Title = "New parent added"
	ev.Description = "Parent linked to student " + studentName
	ev.TargetUserID = parentUserID
	ev.EntityType = "Parent"
	ev.Metadata = models.NewMetadata("studentName", studentName)
	_, err := s.LogActivity(ctx, ev)
	return err
}

func (s *ActivityLogService) LogParentUpdated(ctx context.Context, tenantID string, actor audit.Actor, parentUserID string, changes models.Metadata, req *models.RequestContext) error {
	ev := actorEvent(tenantID, actor, req)
	ev.Type = models.ActivityParentUpdated
	ev.Title = "Parent information updated"
	ev.Description = "Parent profile information was modified"
	ev.TargetUserID = parentUserID
	ev.EntityType = "Parent"
	ev.Metadata = changes
	_, err := s.LogActivity(ctx, ev)
	return err
}

func (s *ActivityLogService) LogPaymentReceived(ctx context.Context, tenantID string, actor audit.Actor, amount, studentName, paymentType string, req *models.RequestContext) error {
	ev := actorEvent(tenantID, actor, req)
	ev.Type = models.ActivityPaymentReceived
	ev.Title = "Payment received"
	ev.Description = fmt.Sprintf("%s payment of %s received for %s", paymentType, amount, studentName)
	ev.EntityType = "Payment"
	ev.Metadata = models.NewMetadata("amount", amount, "studentName", studentName, "paymentType", paymentType)
	_, err := s.LogActivity(ctx, ev)
	return err
}

func (s *ActivityLogService) LogGradeEntered(ctx context.Context, tenantID string, actor audit.Actor, studentUserID, subject, grade string, req *models.RequestContext) error {
	ev := actorEvent(tenantID, actor, req)
	ev.Type = models.ActivityGradeEntered
	ev.Title = "Grade entered"
	ev.Description = fmt.Sprintf("Grade %s entered for %s", grade, subject)
	ev.TargetUserID = studentUserID
	ev.EntityType = "Grade"
	ev.Metadata = models.NewMetadata("subject", subject, "grade", grade)
	_, err := s.LogActivity(ctx, ev)
	return err
}

// ManualActivityRequest is the payload accepted from controllers recording ad hoc events.
type ManualActivityRequest struct {
	Type         models.ActivityType `json:"activity_type" validate:"required"`
	Title        string              `json:"title" validate:"required,max=255"`
	Description  string              `json:"description" validate:"max=2000"`
	TargetUserID string              `json:"target_user_id" validate:"omitempty,uuid"`
	EntityType   string              `json:"entity_type" validate:"max=100"`
	EntityID     string              `json:"entity_id" validate:"omitempty,uuid"`
	Metadata     models.Metadata     `json:"metadata"`
}

// LogManualActivity records an event on behalf of principal. A missing principal is a no-op.
func (s *ActivityLogService) LogManualActivity(ctx context.Context, tenantID string, principal *models.Principal, req ManualActivityRequest, rc *models.RequestContext) (*models.ActivityLog, error) {
	if principal == nil {
		return nil, nil
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity payload")
	}
	ev := actorEvent(tenantID, audit.ActorFrom(principal), rc)
	ev.Type = req.Type
	ev.Title = req.Title
	ev.Description = req.Description
	ev.TargetUserID = req.TargetUserID
	ev.EntityType = req.EntityType
	ev.EntityID = req.EntityID
	ev.Metadata = req.Metadata
	return s.LogActivity(ctx, ev)
}

// Recent returns the newest entries within the configured window.
func (s *ActivityLogService) Recent(ctx context.Context, tenantID string, limit int) ([]models.ActivityLog, error) {
	if limit <= 0 {
		limit = defaultRecentLimit
	}
	since := s.now().Add(-s.cfg.RecentWindow)
	entries, _, err := s.list(ctx, models.ActivityFilter{SchoolID: tenantID, Since: &since, Page: 1, PageSize: limit})
	return entries, err
}

// RelatedToUser returns entries where userID is the actor or the target.
func (s *ActivityLogService) RelatedToUser(ctx context.Context, tenantID, userID string, page, size int) ([]models.ActivityLog, *models.Pagination, error) {
	if userID == "" {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "user id is required")
	}
	return s.paged(ctx, models.ActivityFilter{SchoolID: tenantID, RelatedUser: userID, Page: page, PageSize: size})
}

// List returns every entry of the tenant matching filter, newest first.
func (s *ActivityLogService) List(ctx context.Context, tenantID string, filter models.ActivityFilter) ([]models.ActivityLog, *models.Pagination, error) {
	filter.SchoolID = tenantID
	return s.paged(ctx, filter)
}

func (s *ActivityLogService) ByType(ctx context.Context, tenantID string, activityType models.ActivityType, page, size int) ([]models.ActivityLog, *models.Pagination, error) {
	if !activityType.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown activity type %q", activityType))
	}
	return s.paged(ctx, models.ActivityFilter{SchoolID: tenantID, Type: &activityType, Page: page, PageSize: size})
}

func (s *ActivityLogService) ByRole(ctx context.Context, tenantID, role string, page, size int) ([]models.ActivityLog, *models.Pagination, error) {
	return s.paged(ctx, models.ActivityFilter{SchoolID: tenantID, Role: role, Page: page, PageSize: size})
}

func (s *ActivityLogService) paged(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > maxActivityPageSize {
		filter.PageSize = 20
	}
	entries, total, err := s.list(ctx, filter)
	if err != nil {
		return nil, nil, err
	}
	return entries, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

func (s *ActivityLogService) list(ctx context.Context, filter models.ActivityFilter) ([]models.ActivityLog, int, error) {
	if filter.SchoolID == "" {
		return nil, 0, appErrors.ErrNoTenantSelected
	}
	start := time.Now()
	entries, total, err := s.repo.List(ctx, filter)
	s.observe("activity_list", start)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activities")
	}
	return entries, total, nil
}

// Stats counts entries per type over the last days days.
func (s *ActivityLogService) Stats(ctx context.Context, tenantID string, days int) ([]models.ActivityStat, error) {
	if tenantID == "" {
		return nil, appErrors.ErrNoTenantSelected
	}
	if days <= 0 {
		days = defaultStatsDays
	}

	key := TenantKey(tenantID, "activity", "stats", strconv.Itoa(days))
	var cached []models.ActivityStat
	if hit, _ := s.cache.Get(ctx, key, &cached); hit {
		return cached, nil
	}

	since := s.now().AddDate(0, 0, -days)
	start := time.Now()
	stats, err := s.repo.CountByType(ctx, tenantID, since)
	s.observe("activity_stats", start)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity stats")
	}
	if stats == nil {
		stats = []models.ActivityStat{}
	}
	_ = s.cache.Set(ctx, key, stats, s.cfg.StatsCacheTTL)
	return stats, nil
}

var activityExportHeaders = []string{"Time", "Type", "Title", "Description", "User", "Role", "Target", "Entity"}

// ExportDataset renders the tenant's entries matching filter as a table.
func (s *ActivityLogService) ExportDataset(ctx context.Context, tenantID string, filter models.ActivityFilter) (export.Dataset, error) {
	filter.SchoolID = tenantID
	filter.Page = 1
	filter.PageSize = maxActivityPageSize
	entries, _, err := s.list(ctx, filter)
	if err != nil {
		return export.Dataset{}, err
	}

	rows := make([]map[string]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, map[string]string{
			"Time":        e.CreatedAt.Format(time.RFC3339),
			"Type":        string(e.ActivityType),
			"Title":       e.Title,
			"Description": deref(e.Description),
			"User":        e.UserName,
			"Role":        e.UserRole,
			"Target":      deref(e.TargetUserName),
			"Entity":      deref(e.EntityType),
		})
	}
	return export.Dataset{Title: "Activity log", Headers: activityExportHeaders, Rows: rows}, nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
