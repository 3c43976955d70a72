package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-tenant-api/internal/dto"
	"github.com/noah-isme/sma-tenant-api/internal/models"
	appErrors "github.com/noah-isme/sma-tenant-api/pkg/errors"
)

const (
	migrationActorName = "System Migration"
	systemRole         = "SYSTEM"
)

type activityExistence interface {
	ExistsForEntity(ctx context.Context, schoolID string, activityType models.ActivityType, entityID string) (bool, error)
}

type activityWriter interface {
	LogActivity(ctx context.Context, ev models.ActivityEvent) (*models.ActivityLog, error)
}

// ActivityBackfillService writes historical entries for people that predate activity
// logging. Running it twice adds nothing the second time.
type ActivityBackfillService struct {
	staff    staffStore
	students studentStore
	parents  parentStore
	existing activityExistence
	writer   activityWriter
	logger   *zap.Logger
}

func NewActivityBackfillService(staff staffStore, students studentStore, parents parentStore, existing activityExistence, writer activityWriter, logger *zap.Logger) *ActivityBackfillService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivityBackfillService{staff: staff, students: students, parents: parents, existing: existing, writer: writer, logger: logger}
}

// Backfill records hire, enrolment and parent entries for tenantID on behalf of systemUserID.
func (s *ActivityBackfillService) Backfill(ctx context.Context, tenantID, systemUserID string) (*dto.BackfillResult, error) {
	if tenantID == "" {
		return nil, appErrors.ErrNoTenantSelected
	}
	result := &dto.BackfillResult{}
	s.logger.Info("activity backfill started", zap.String("tenant_id", tenantID))

	staff, err := s.staff.ListBySchool(ctx, tenantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load staff")
	}
	for _, m := range staff {
		when := m.HireDate
		if when.IsZero() {
			when = m.CreatedAt
		}
		ev := s.historical(tenantID, systemUserID, m.UserID, when)
		ev.Type = models.ActivityStaffHired
		ev.Title = "Staff member hired (Historical)"
		ev.Description = m.Designation + " hired: " + m.FirstName + " " + m.LastName
		ev.EntityType = "Staff"
		ev.EntityID = m.ID
		ev.Metadata = models.NewMetadata("designation", m.Designation, "hireDate", when.Format("2006-01-02"), "historical", "true")
		added, err := s.write(ctx, ev)
		if err != nil {
			return nil, err
		}
		tally(&result.Staff, &result.Skipped, added)
	}

	students, err := s.students.ListBySchool(ctx, tenantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load students")
	}
	for _, st := range students {
		ev := s.historical(tenantID, systemUserID, st.UserID, st.CreatedAt)
		ev.Type = models.ActivityStudentEnrolled
		ev.Title = "Student enrolled (Historical)"
		ev.Description = "Student enrolled: " + st.FirstName + " " + st.LastName
		ev.EntityType = "Student"
		ev.EntityID = st.ID
		ev.Metadata = models.NewMetadata("studentNumber", st.StudentNumber, "historical", "true")
		added, err := s.write(ctx, ev)
		if err != nil {
			return nil, err
		}
		tally(&result.Students, &result.Skipped, added)
	}

	parents, err := s.parents.ListBySchool(ctx, tenantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load parents")
	}
	for _, p := range parents {
		ev := s.historical(tenantID, systemUserID, p.UserID, p.CreatedAt)
		ev.Type = models.ActivityParentAdded
		ev.Title = "Parent added (Historical)"
		ev.Description = "Parent added: " + p.FirstName + " " + p.LastName
		ev.EntityType = "Parent"
		ev.EntityID = p.ID
		ev.Metadata = models.NewMetadata("historical", "true")
		added, err := s.write(ctx, ev)
		if err != nil {
			return nil, err
		}
		tally(&result.Parents, &result.Skipped, added)
	}

	s.logger.Info("activity backfill completed",
		zap.String("tenant_id", tenantID),
		zap.Int("staff", result.Staff),
		zap.Int("students", result.Students),
		zap.Int("parents", result.Parents),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

// InitializeSystem records that activity logging was enabled for the school.
func (s *ActivityBackfillService) InitializeSystem(ctx context.Context, tenantID, systemUserID string) error {
	ev := s.historical(tenantID, systemUserID, nil, time.Time{})
	ev.Type = models.ActivitySystemMaintenance
	ev.Title = "Activity logging system initialized"
	ev.Description = "Activity logging system has been activated for this school"
	ev.ActorName = "System"
	ev.EntityType = "System"
	_, err := s.writer.LogActivity(ctx, ev)
	return err
}

func (s *ActivityBackfillService) historical(tenantID, systemUserID string, target *string, at time.Time) models.ActivityEvent {
	ev := models.ActivityEvent{
		TenantID:   tenantID,
		ActorID:    systemUserID,
		ActorRole:  systemRole,
		ActorName:  migrationActorName,
		OccurredAt: at,
	}
	if target != nil {
		ev.TargetUserID = *target
	}
	return ev
}

func (s *ActivityBackfillService) write(ctx context.Context, ev models.ActivityEvent) (bool, error) {
	exists, err := s.existing.ExistsForEntity(ctx, ev.TenantID, ev.Type, ev.EntityID)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing activity")
	}
	if exists {
		return false, nil
	}
	if _, err := s.writer.LogActivity(ctx, ev); err != nil {
		return false, err
	}
	return true, nil
}

func tally(added, skipped *int, ok bool) {
	if ok {
		*added++
		return
	}
	*skipped++
}
