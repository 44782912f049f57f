package shared

import "context"

// Principal is the authenticated identity attached to a request after a
// successful credential or token verification. It carries no password
// material and is never persisted.
type Principal struct {
	Login string `json:"login"`
	Name  string `json:"name,omitempty"`
	Role  string `json:"role,omitempty"`
}

type principalContextKey struct{}

// ContextWithPrincipal stores the principal in context.
func ContextWithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, p)
}

// PrincipalFromContext extracts the principal from context.
func PrincipalFromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey{}).(*Principal)
	return p
}
