package audit

import (
	"context"

	"github.com/noah-isme/sma-tenant-api/internal/models"
)

// Status is how far an event got.
type Status string

const (
	StatusRecorded Status = "recorded"
	StatusQueued   Status = "queued"
	StatusSkipped  Status = "skipped"
	StatusDropped  Status = "dropped"
	StatusFailed   Status = "failed"
)

// Outcome is returned by every emit. Callers may ignore it; the business result is
// unaffected either way.
type Outcome struct {
	Status   Status
	Type     models.ActivityType
	TenantID string
	EventID  string
	Err      error
}

// Delivered reports whether the event was persisted or accepted for persistence.
func (o Outcome) Delivered() bool {
	return o.Status == StatusRecorded || o.Status == StatusQueued
}

// Sink persists activity events.
type Sink interface {
	Record(ctx context.Context, ev models.ActivityEvent) error
}

// Diagnostics observes outcomes that are not returned to anyone, including the results
// of asynchronous deliveries.
type Diagnostics interface {
	Report(o Outcome)
}

// Dispatcher hands a built event to a sink.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev models.ActivityEvent) Outcome
}
