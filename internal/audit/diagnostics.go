package audit

import (
	"go.uber.org/zap"
)

type outcomeObserver interface {
	ObserveAuditOutcome(status, activityType string)
}

// LogDiagnostics reports outcomes to the logger and, when set, to metrics.
type LogDiagnostics struct {
	logger  *zap.Logger
	metrics outcomeObserver
}

// NewLogDiagnostics constructs the default diagnostics sink. metrics may be nil.
func NewLogDiagnostics(logger *zap.Logger, metrics outcomeObserver) *LogDiagnostics {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogDiagnostics{logger: logger, metrics: metrics}
}

func (d *LogDiagnostics) Report(o Outcome) {
	if d == nil {
		return
	}
	if d.metrics != nil {
		d.metrics.ObserveAuditOutcome(string(o.Status), string(o.Type))
	}

	fields := []zap.Field{
		zap.String("status", string(o.Status)),
		zap.String("activity_type", string(o.Type)),
		zap.String("tenant_id", o.TenantID),
		zap.String("event_id", o.EventID),
	}
	if o.Err != nil {
		fields = append(fields, zap.Error(o.Err))
	}

	switch o.Status {
	case StatusDropped, StatusFailed:
		d.logger.Warn("activity not recorded", fields...)
	case StatusSkipped:
		d.logger.Debug("activity skipped", fields...)
	default:
		d.logger.Debug("activity dispatched", fields...)
	}
}

type nopDiagnostics struct{}

func (nopDiagnostics) Report(Outcome) {}
