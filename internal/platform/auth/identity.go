package auth

import (
	"context"
	"strings"

	domain "github.com/techfy/storefront-api/internal/domain"
)

// Identity is the authenticated principal resolved from a verified credential.
type Identity struct {
	UID   string
	Email string
	Role  domain.Role
}

// Can reports whether the identity's role grants capability.
func (i *Identity) Can(capability domain.Capability) bool {
	if i == nil {
		return false
	}
	return i.Role.Can(capability)
}

// Actor converts the identity into the service-layer caller shape. A nil identity is anonymous.
func (i *Identity) Actor() domain.Actor {
	if i == nil {
		return domain.Actor{}
	}
	return domain.Actor{
		ID:    strings.TrimSpace(i.UID),
		Role:  i.Role,
		Email: strings.TrimSpace(i.Email),
	}
}

type contextKey struct{}

// WithIdentity stores identity on the request context.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// IdentityFromContext returns the identity stored by the auth middleware.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	if ctx == nil {
		return nil, false
	}
	identity, ok := ctx.Value(contextKey{}).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}

// ActorFromContext returns the caller for service calls, anonymous when unauthenticated.
func ActorFromContext(ctx context.Context) domain.Actor {
	identity, _ := IdentityFromContext(ctx)
	return identity.Actor()
}
