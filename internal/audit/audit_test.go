package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-tenant-api/internal/models"
	"github.com/noah-isme/sma-tenant-api/internal/tenant"
	"github.com/noah-isme/sma-tenant-api/pkg/jobs"
)

const (
	schoolA = "6f1f8b2e-1d8a-4d7e-9a38-1f2b3c4d5e6f"
	schoolB = "0c1d2e3f-4a5b-4c6d-8e7f-9a0b1c2d3e4f"
	staffID = "11111111-2222-4333-8444-555555555555"
)

type memorySink struct {
	mu     sync.Mutex
	events []models.ActivityEvent
	err    error
	panics bool
}

func (s *memorySink) Record(_ context.Context, ev models.ActivityEvent) error {
	if s.panics {
		panic("sink exploded")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *memorySink) recorded() []models.ActivityEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ActivityEvent(nil), s.events...)
}

type capturingDiagnostics struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (d *capturingDiagnostics) Report(o Outcome) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.outcomes = append(d.outcomes, o)
}

func (d *capturingDiagnostics) all() []Outcome {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Outcome(nil), d.outcomes...)
}

func (d *capturingDiagnostics) statuses() []Status {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Status, len(d.outcomes))
	for i, o := range d.outcomes {
		out[i] = o.Status
	}
	return out
}

func adminScope(tenantID string) tenant.Scope {
	return tenant.Scope{
		TenantID: tenantID,
		Principal: &models.Principal{
			UserID:    "admin-1",
			Authority: "SCHOOL_ADMIN",
			User:      &models.User{ID: "admin-1", FirstName: "Ada", LastName: "Admin"},
		},
		Request: &models.RequestContext{IPAddress: "10.0.0.1", UserAgent: "test"},
	}
}

func TestBuildStaffHired(t *testing.T) {
	cmd := StaffCommand{NewID: staffID, FirstName: "Jane", LastName: "Doe", Designation: "Teacher"}
	ev, err := Build(cmd, Actor{UserID: "u1", Role: "ADMIN"}, schoolA, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ActivityStaffHired, ev.Type)
	assert.Equal(t, "New staff member hired", ev.Title)
	assert.Equal(t, "New Teacher hired: Jane Doe", ev.Description)
	assert.Contains(t, ev.Description, "Jane")
	assert.Contains(t, ev.Description, "Doe")
	assert.Equal(t, "Staff", ev.EntityType)
	assert.Equal(t, staffID, ev.EntityID)
	assert.Empty(t, ev.TargetUserID)
	assert.Equal(t, []string{"firstName", "lastName", "designation"}, ev.Metadata.Keys())
}

func TestBuildStaffUpdatedUsesIdentifier(t *testing.T) {
	cmd := StaffCommand{ID: staffID, FirstName: "Jane", LastName: "Doe", Designation: "Principal"}
	ev, err := Build(cmd, Actor{UserID: "u1", Role: "ADMIN"}, schoolA, nil)
	require.NoError(t, err)

	assert.Equal(t, models.ActivityStaffUpdated, ev.Type)
	assert.Equal(t, "Staff profile information was modified", ev.Description)
	assert.Equal(t, staffID, ev.TargetUserID)
	assert.Equal(t, staffID, ev.EntityID)
	assert.Equal(t, []string{"firstName", "lastName", "designation"}, ev.Metadata.Keys())
	designation, _ := ev.Metadata.Get("designation")
	assert.Equal(t, "Principal", designation)
}

func TestBuildAppliesDefaults(t *testing.T) {
	ev, err := Build(StaffCommand{}, Actor{UserID: "u1", Role: "USER"}, schoolA, nil)
	require.NoError(t, err)
	assert.Equal(t, "New Staff hired: Unknown User", ev.Description)

	ev, err = Build(StudentCommand{FirstName: "Sam"}, Actor{UserID: "u1", Role: "USER"}, schoolA, nil)
	require.NoError(t, err)
	assert.Equal(t, "New student enrolled: Sam Student", ev.Description)

	ev, err = Build(ParentCommand{LastName: "Lee"}, Actor{UserID: "u1", Role: "USER"}, schoolA, nil)
	require.NoError(t, err)
	assert.Equal(t, "New parent added: Unknown Lee", ev.Description)
}

func TestBuildParentUpdatedHasNoMetadata(t *testing.T) {
	ev, err := Build(ParentCommand{ID: staffID, FirstName: "Pat", LastName: "Lee"}, Actor{UserID: "u1", Role: "USER"}, schoolA, nil)
	require.NoError(t, err)
	assert.Equal(t, models.ActivityParentUpdated, ev.Type)
	assert.Equal(t, "Parent profile updated: Pat Lee", ev.Description)
	assert.Nil(t, ev.Metadata)
}

func TestActorFromDefaultsRole(t *testing.T) {
	actor := ActorFrom(&models.Principal{UserID: "u1", User: &models.User{FirstName: "A", LastName: "B"}})
	assert.Equal(t, "USER", actor.Role)
	assert.Equal(t, "A B", actor.Name)
	assert.Equal(t, Actor{}, ActorFrom(nil))
}

func TestEmitRecordsSynchronously(t *testing.T) {
	sink := &memorySink{}
	diag := &capturingDiagnostics{}
	rec := NewRecorder(NewSyncDispatcher(sink), diag, nil, nil)

	out := rec.Emit(context.Background(), adminScope(schoolA), StaffCommand{ID: staffID, FirstName: "Jane", LastName: "Doe", Designation: "Teacher"})

	require.Equal(t, StatusRecorded, out.Status)
	assert.True(t, out.Delivered())
	events := sink.recorded()
	require.Len(t, events, 1)
	assert.Equal(t, schoolA, events[0].TenantID)
	assert.Equal(t, "admin-1", events[0].ActorID)
	assert.Equal(t, "SCHOOL_ADMIN", events[0].ActorRole)
	assert.Equal(t, "10.0.0.1", events[0].Request.IPAddress)
	assert.NotEmpty(t, events[0].ID)
	assert.Equal(t, out.EventID, events[0].ID)
	assert.False(t, events[0].OccurredAt.IsZero())
	assert.Equal(t, []Status{StatusRecorded}, diag.statuses())
}

func TestEmitSkipsWithoutScope(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(NewSyncDispatcher(sink), nil, nil, nil)

	noTenant := adminScope("")
	out := rec.Emit(context.Background(), noTenant, StudentCommand{FirstName: "A"})
	assert.Equal(t, StatusSkipped, out.Status)

	anonymous := adminScope(schoolA)
	anonymous.Principal = nil
	out = rec.Emit(context.Background(), anonymous, StudentCommand{FirstName: "A"})
	assert.Equal(t, StatusSkipped, out.Status)

	assert.Empty(t, sink.recorded())
}

func TestEmitRejectsInvalidCommand(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(NewSyncDispatcher(sink), nil, nil, nil)

	out := rec.Emit(context.Background(), adminScope(schoolA), StaffCommand{ID: "not-a-uuid"})
	assert.Equal(t, StatusFailed, out.Status)
	assert.Error(t, out.Err)
	assert.Empty(t, sink.recorded())
}

func TestEmitContainsSinkFailures(t *testing.T) {
	diag := &capturingDiagnostics{}
	rec := NewRecorder(NewSyncDispatcher(&memorySink{err: errors.New("db down")}), diag, nil, nil)
	out := rec.Emit(context.Background(), adminScope(schoolA), StudentCommand{FirstName: "A"})
	assert.Equal(t, StatusFailed, out.Status)
	assert.EqualError(t, out.Err, "db down")

	rec = NewRecorder(NewSyncDispatcher(&memorySink{panics: true}), diag, nil, nil)
	assert.NotPanics(t, func() {
		out = rec.Emit(context.Background(), adminScope(schoolA), StudentCommand{FirstName: "A"})
	})
	assert.Equal(t, StatusFailed, out.Status)
	assert.Equal(t, []Status{StatusFailed, StatusFailed}, diag.statuses())
}

func TestNilRecorderDoesNotPanic(t *testing.T) {
	var rec *Recorder
	assert.NotPanics(t, func() {
		out := rec.Emit(context.Background(), adminScope(schoolA), StudentCommand{})
		assert.Equal(t, StatusFailed, out.Status)
	})
}

type fullQueue struct{}

func (fullQueue) Enqueue(jobs.Job) error { return jobs.ErrQueueFull }

func TestQueueDispatcherDropsWhenFull(t *testing.T) {
	diag := &capturingDiagnostics{}
	rec := NewRecorder(NewQueueDispatcher(fullQueue{}), diag, nil, nil)

	out := rec.Emit(context.Background(), adminScope(schoolA), StudentCommand{FirstName: "A"})
	assert.Equal(t, StatusDropped, out.Status)
	assert.ErrorIs(t, out.Err, jobs.ErrQueueFull)
	assert.Equal(t, []Status{StatusDropped}, diag.statuses())
}

func TestQueueDeliversAsynchronously(t *testing.T) {
	sink := &memorySink{}
	diag := &capturingDiagnostics{}
	queue := jobs.NewQueue("audit", QueueHandler(sink, diag, time.Second), jobs.QueueConfig{Workers: 2, BufferSize: 64})
	queue.Start(context.Background())

	rec := NewRecorder(NewQueueDispatcher(queue), diag, nil, nil)
	for i := 0; i < 10; i++ {
		out := rec.Emit(context.Background(), adminScope(schoolA), StaffCommand{FirstName: "Jane", LastName: "Doe"})
		require.Equal(t, StatusQueued, out.Status)
	}
	require.NoError(t, queue.Stop(2*time.Second))

	assert.Len(t, sink.recorded(), 10)
	recorded := 0
	for _, s := range diag.statuses() {
		if s == StatusRecorded {
			recorded++
		}
	}
	assert.Equal(t, 10, recorded)
}

func TestQueueHandlerLeavesFailuresToRetry(t *testing.T) {
	diag := &capturingDiagnostics{}
	handler := QueueHandler(&memorySink{err: errors.New("boom")}, diag, 0)
	ev := models.ActivityEvent{ID: "e1", Type: models.ActivityStaffHired, TenantID: schoolA}

	assert.Error(t, handler(context.Background(), jobs.Job{Payload: ev, Attempt: 0}))
	assert.Error(t, handler(context.Background(), jobs.Job{Payload: ev, Attempt: 1}))
	assert.Empty(t, diag.statuses())
}

func TestQueueReportsEventsLostOnRetry(t *testing.T) {
	diag := &capturingDiagnostics{}
	sink := &memorySink{err: errors.New("db down")}
	failed := make(chan struct{}, 1)
	queue := jobs.NewQueue("audit", func(ctx context.Context, job jobs.Job) error {
		err := QueueHandler(sink, diag, 0)(ctx, job)
		failed <- struct{}{}
		return err
	}, jobs.QueueConfig{
		Workers: 1, BufferSize: 4, MaxRetries: 2, RetryDelay: time.Hour,
		OnGiveUp: GiveUpReporter(diag),
	})
	queue.Start(context.Background())

	rec := NewRecorder(NewQueueDispatcher(queue), nil, nil, nil)
	out := rec.Emit(context.Background(), adminScope(schoolA), StudentCommand{FirstName: "A"})
	require.Equal(t, StatusQueued, out.Status)
	<-failed
	require.NoError(t, queue.Stop(time.Second))

	require.Eventually(t, func() bool { return len(diag.statuses()) == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []Status{StatusFailed}, diag.statuses())
	assert.Empty(t, sink.recorded())
}

func TestGiveUpReporterCarriesEventIdentity(t *testing.T) {
	diag := &capturingDiagnostics{}
	ev := models.ActivityEvent{ID: "e2", Type: models.ActivityStudentEnrolled, TenantID: schoolB}

	GiveUpReporter(diag)(jobs.Job{ID: "e2", Payload: ev}, jobs.ErrQueueFull)

	require.Len(t, diag.all(), 1)
	got := diag.all()[0]
	assert.Equal(t, StatusFailed, got.Status)
	assert.Equal(t, schoolB, got.TenantID)
	assert.Equal(t, "e2", got.EventID)
	assert.ErrorIs(t, got.Err, jobs.ErrQueueFull)
}

func TestEventsNeverCrossTenants(t *testing.T) {
	sink := &memorySink{}
	rec := NewRecorder(NewSyncDispatcher(sink), nil, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			rec.Emit(context.Background(), adminScope(schoolA), StudentCommand{FirstName: "A", LastName: "School"})
		}()
		go func() {
			defer wg.Done()
			rec.Emit(context.Background(), adminScope(schoolB), StudentCommand{FirstName: "B", LastName: "School"})
		}()
	}
	wg.Wait()

	events := sink.recorded()
	require.Len(t, events, 100)
	for _, ev := range events {
		first, _ := ev.Metadata.Get("firstName")
		if first == "A" {
			assert.Equal(t, schoolA, ev.TenantID)
		} else {
			assert.Equal(t, schoolB, ev.TenantID)
		}
	}
}
