package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-tenant-api/internal/models"
	"github.com/noah-isme/sma-tenant-api/internal/tenant"
)

// Recorder is the audit port business operations call after a successful mutation.
// Emit never panics and never returns an error; the Outcome describes what happened.
type Recorder struct {
	dispatcher Dispatcher
	diag       Diagnostics
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewRecorder wires a recorder. diag may be nil.
func NewRecorder(dispatcher Dispatcher, diag Diagnostics, validate *validator.Validate, logger *zap.Logger) *Recorder {
	if diag == nil {
		diag = nopDiagnostics{}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		dispatcher: dispatcher,
		diag:       diag,
		validator:  validate,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Emit builds and dispatches the event for cmd within scope. Without an authenticated
// principal or a selected tenant nothing is recorded.
func (r *Recorder) Emit(ctx context.Context, scope tenant.Scope, cmd Command) (out Outcome) {
	defer r.guard(&out)

	if scope.Principal == nil || scope.TenantID == "" {
		out = Outcome{Status: StatusSkipped, TenantID: scope.TenantID, Err: scope.Validate()}
		r.diag.Report(out)
		return out
	}
	if cmd == nil {
		out = Outcome{Status: StatusFailed, TenantID: scope.TenantID, Err: fmt.Errorf("audit: nil command")}
		r.diag.Report(out)
		return out
	}
	if err := r.validator.Struct(cmd); err != nil {
		out = Outcome{Status: StatusFailed, TenantID: scope.TenantID, Err: fmt.Errorf("audit: invalid %s command: %w", cmd.Kind(), err)}
		r.diag.Report(out)
		return out
	}

	ev, err := Build(cmd, ActorFrom(scope.Principal), scope.TenantID, scope.Request)
	if err != nil {
		out = Outcome{Status: StatusFailed, TenantID: scope.TenantID, Err: err}
		r.diag.Report(out)
		return out
	}
	return r.Publish(ctx, ev)
}

// Publish dispatches a prebuilt event, assigning its id and timestamp when missing.
func (r *Recorder) Publish(ctx context.Context, ev models.ActivityEvent) (out Outcome) {
	defer r.guard(&out)

	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = r.now()
	}
	if r.dispatcher == nil {
		out = outcomeFor(ev, StatusDropped, fmt.Errorf("no activity dispatcher configured"))
	} else {
		out = r.dispatcher.Dispatch(ctx, ev)
	}
	r.diag.Report(out)
	return out
}

func (r *Recorder) guard(out *Outcome) {
	if rec := recover(); rec != nil {
		*out = Outcome{Status: StatusFailed, Type: out.Type, TenantID: out.TenantID, Err: fmt.Errorf("audit panicked: %v", rec)}
		if r != nil && r.logger != nil {
			r.logger.Error("activity emit panicked", zap.Any("panic", rec))
		}
	}
}
