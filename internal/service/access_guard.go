package service

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-tenant-api/internal/models"
	"github.com/noah-isme/sma-tenant-api/internal/tenant"
	appErrors "github.com/noah-isme/sma-tenant-api/pkg/errors"
)

type resourceChecker interface {
	Check(ctx context.Context, kind models.ResourceKind, id, tenantID string) error
}

type accessRecorder interface {
	ObserveAccessDecision(kind string, allowed bool, reason string)
}

// Decision reasons reported to metrics and logs.
const (
	reasonAllowed         = "allowed"
	reasonUnauthenticated = "unauthenticated"
	reasonNoTenant        = "no_tenant"
	reasonNotFound        = "not_found"
	reasonError           = "error"
	reasonPanic           = "panic"
)

// AccessGuard answers yes/no access questions. Every failure, including a panic in the
// lookup path, is reported as false and never returned to the caller.
type AccessGuard struct {
	checker resourceChecker
	metrics accessRecorder
	logger  *zap.Logger
}

// NewAccessGuard constructs the guard. metrics may be nil.
func NewAccessGuard(checker resourceChecker, metrics accessRecorder, logger *zap.Logger) *AccessGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessGuard{checker: checker, metrics: metrics, logger: logger}
}

// Allow checks id of kind against the explicit scope.
func (g *AccessGuard) Allow(ctx context.Context, scope tenant.Scope, kind models.ResourceKind, id string) (allowed bool) {
	reason := reasonAllowed
	defer func() {
		if r := recover(); r != nil {
			allowed = false
			reason = reasonPanic
			if g != nil && g.logger != nil {
				g.logger.Error("access check panicked", zap.String("kind", string(kind)), zap.Any("panic", r))
			}
		}
		if g != nil {
			g.record(kind, id, scope.TenantID, allowed, reason)
		}
	}()

	if g == nil || g.checker == nil {
		reason = reasonError
		return false
	}
	if scope.Principal == nil {
		reason = reasonUnauthenticated
		return false
	}
	if scope.TenantID == "" {
		reason = reasonNoTenant
		return false
	}
	if err := g.checker.Check(ctx, kind, id, scope.TenantID); err != nil {
		reason = classify(err)
		return false
	}
	return true
}

// CanAccess reads the tenant from ctx and checks id of kind for principal.
func (g *AccessGuard) CanAccess(ctx context.Context, kind models.ResourceKind, id string, principal *models.Principal) bool {
	scope, _ := tenant.ScopeFrom(ctx)
	scope.Principal = principal
	return g.Allow(ctx, scope, kind, id)
}

func (g *AccessGuard) CanAccessStudent(ctx context.Context, id string, principal *models.Principal) bool {
	return g.CanAccess(ctx, models.KindStudent, id, principal)
}

func (g *AccessGuard) CanAccessParent(ctx context.Context, id string, principal *models.Principal) bool {
	return g.CanAccess(ctx, models.KindParent, id, principal)
}

func (g *AccessGuard) CanAccessStaff(ctx context.Context, id string, principal *models.Principal) bool {
	return g.CanAccess(ctx, models.KindStaff, id, principal)
}

func (g *AccessGuard) CanAccessSubject(ctx context.Context, id string, principal *models.Principal) bool {
	return g.CanAccess(ctx, models.KindSubject, id, principal)
}

func (g *AccessGuard) CanAccessClass(ctx context.Context, id string, principal *models.Principal) bool {
	return g.CanAccess(ctx, models.KindSchoolClass, id, principal)
}

func (g *AccessGuard) CanAccessExamination(ctx context.Context, id string, principal *models.Principal) bool {
	return g.CanAccess(ctx, models.KindExamination, id, principal)
}

func (g *AccessGuard) CanAccessFeeItem(ctx context.Context, id string, principal *models.Principal) bool {
	return g.CanAccess(ctx, models.KindFeeItem, id, principal)
}

func classify(err error) string {
	switch {
	case errors.Is(err, appErrors.ErrResourceNotFound):
		return reasonNotFound
	case errors.Is(err, appErrors.ErrNoTenantSelected):
		return reasonNoTenant
	default:
		return reasonError
	}
}

func (g *AccessGuard) record(kind models.ResourceKind, id, tenantID string, allowed bool, reason string) {
	defer func() { _ = recover() }()
	if g.metrics != nil {
		g.metrics.ObserveAccessDecision(string(kind), allowed, reason)
	}
	if g.logger == nil || allowed {
		return
	}
	g.logger.Debug("access denied",
		zap.String("kind", string(kind)),
		zap.String("resource_id", id),
		zap.String("tenant_id", tenantID),
		zap.String("reason", reason),
	)
}
