package audit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/noah-isme/sma-tenant-api/internal/models"
	"github.com/noah-isme/sma-tenant-api/pkg/jobs"
)

// JobType identifies audit jobs on the shared queue.
const JobType = "activity.record"

func outcomeFor(ev models.ActivityEvent, status Status, err error) Outcome {
	return Outcome{Status: status, Type: ev.Type, TenantID: ev.TenantID, EventID: ev.ID, Err: err}
}

// SyncDispatcher records on the caller's goroutine.
type SyncDispatcher struct {
	sink Sink
}

func NewSyncDispatcher(sink Sink) *SyncDispatcher {
	return &SyncDispatcher{sink: sink}
}

func (d *SyncDispatcher) Dispatch(ctx context.Context, ev models.ActivityEvent) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = outcomeFor(ev, StatusFailed, fmt.Errorf("activity sink panicked: %v", r))
		}
	}()
	if d == nil || d.sink == nil {
		return outcomeFor(ev, StatusFailed, errors.New("no activity sink configured"))
	}
	if err := d.sink.Record(ctx, ev); err != nil {
		return outcomeFor(ev, StatusFailed, err)
	}
	return outcomeFor(ev, StatusRecorded, nil)
}

type enqueuer interface {
	Enqueue(job jobs.Job) error
}

// QueueDispatcher hands events to a bounded worker queue. A full or stopped queue drops
// the event; the business operation has already returned by the time a worker runs.
type QueueDispatcher struct {
	queue enqueuer
}

func NewQueueDispatcher(queue enqueuer) *QueueDispatcher {
	return &QueueDispatcher{queue: queue}
}

func (d *QueueDispatcher) Dispatch(_ context.Context, ev models.ActivityEvent) Outcome {
	if d == nil || d.queue == nil {
		return outcomeFor(ev, StatusDropped, jobs.ErrQueueNotStarted)
	}
	payload := ev
	payload.Metadata = append(models.Metadata(nil), ev.Metadata...)
	if ev.Request != nil {
		req := *ev.Request
		payload.Request = &req
	}
	if err := d.queue.Enqueue(jobs.Job{ID: ev.ID, Type: JobType, Payload: payload}); err != nil {
		return outcomeFor(ev, StatusDropped, err)
	}
	return outcomeFor(ev, StatusQueued, nil)
}

// QueueHandler returns the worker function that drains audit jobs into sink. Sink errors
// go back to the queue for retry; the loss is reported by GiveUpReporter once the queue
// abandons the job.
func QueueHandler(sink Sink, diag Diagnostics, timeout time.Duration) jobs.Handler {
	if diag == nil {
		diag = nopDiagnostics{}
	}
	return func(ctx context.Context, job jobs.Job) error {
		ev, ok := job.Payload.(models.ActivityEvent)
		if !ok {
			err := fmt.Errorf("unexpected audit payload %T", job.Payload)
			diag.Report(Outcome{Status: StatusFailed, EventID: job.ID, Err: err})
			return nil
		}

		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		if err := sink.Record(ctx, ev); err != nil {
			return err
		}
		diag.Report(outcomeFor(ev, StatusRecorded, nil))
		return nil
	}
}

// GiveUpReporter reports every audit job the queue abandons as a failed outcome.
func GiveUpReporter(diag Diagnostics) func(jobs.Job, error) {
	if diag == nil {
		diag = nopDiagnostics{}
	}
	return func(job jobs.Job, err error) {
		ev, ok := job.Payload.(models.ActivityEvent)
		if !ok {
			diag.Report(Outcome{Status: StatusFailed, EventID: job.ID, Err: err})
			return
		}
		diag.Report(outcomeFor(ev, StatusFailed, err))
	}
}
