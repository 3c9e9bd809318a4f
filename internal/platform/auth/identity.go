package auth

import (
	"context"
	"strings"
)

// Audience types carried in the "type" custom claim.
const (
	TypeUser     = "user"
	TypeVendor   = "vendor"
	TypeDelivery = "delivery"
	TypeAdmin    = "admin"
)

// Identity is the authenticated caller extracted from a Firebase ID token.
type Identity struct {
	UID   string
	Email string
	Type  string
}

// IsAdmin reports whether the caller is a platform admin.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Type == TypeAdmin
}

// HasType reports whether the caller's type is one of the given types.
func (i *Identity) HasType(types ...string) bool {
	if i == nil {
		return false
	}
	for _, t := range types {
		if strings.EqualFold(strings.TrimSpace(t), i.Type) {
			return true
		}
	}
	return false
}

type contextKey struct{}

// WithIdentity stores the identity within the context for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, identity)
}

// IdentityFromContext retrieves the identity previously stored in context.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(contextKey{}).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}

func normaliseType(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	switch value {
	case TypeUser, TypeVendor, TypeDelivery, TypeAdmin:
		return value
	}
	return ""
}
