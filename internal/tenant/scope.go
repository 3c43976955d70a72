package tenant

import (
	"context"

	"github.com/noah-isme/sma-tenant-api/internal/models"
	appErrors "github.com/noah-isme/sma-tenant-api/pkg/errors"
)

// Scope is resolved once per request and passed explicitly to tenant-aware operations.
type Scope struct {
	TenantID  string
	Principal *models.Principal
	Request   *models.RequestContext
}

// Validate reports the first missing piece of the scope.
func (s Scope) Validate() error {
	if s.Principal == nil {
		return appErrors.ErrUnauthenticated
	}
	if s.TenantID == "" {
		return appErrors.ErrNoTenantSelected
	}
	return nil
}

type scopeKey struct{}

// WithScope stores s in ctx.
func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the scope stored in ctx.
func ScopeFrom(ctx context.Context) (Scope, bool) {
	if ctx == nil {
		return Scope{}, false
	}
	s, ok := ctx.Value(scopeKey{}).(Scope)
	return s, ok
}

// FromContext returns the tenant id in ctx or ErrNoTenantSelected.
func FromContext(ctx context.Context) (string, error) {
	s, ok := ScopeFrom(ctx)
	if !ok || s.TenantID == "" {
		return "", appErrors.ErrNoTenantSelected
	}
	return s.TenantID, nil
}
