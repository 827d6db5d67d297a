package auth

import (
	"context"

	"github.com/frahmantamala/audit-management/internal"
	"github.com/frahmantamala/audit-management/internal/permission"
)

type ctxKey string

const ContextPrincipalKey ctxKey = "principal"

func WithPrincipal(ctx context.Context, p permission.Principal) context.Context {
	ctx = internal.ContextWithActor(ctx, p.UserID, p.TenantID)
	return context.WithValue(ctx, ContextPrincipalKey, p)
}

func PrincipalFromContext(ctx context.Context) (permission.Principal, bool) {
	p, ok := ctx.Value(ContextPrincipalKey).(permission.Principal)
	return p, ok
}
