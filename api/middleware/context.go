package middleware

import (
	"context"

	"github.com/google/uuid"
)

// Identity is the authenticated caller as read from the access token.
type Identity struct {
	UserID   string
	Role     string
	AccessID string
	Email    string
}

type identityKey struct{}

func identityFrom(ctx context.Context) Identity {
	if ctx == nil {
		return Identity{}
	}
	id, _ := ctx.Value(identityKey{}).(Identity)
	return id
}

// WithIdentity stores the caller on ctx, replacing any earlier identity.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, identityKey{}, id)
}

func edit(ctx context.Context, fn func(*Identity)) context.Context {
	id := identityFrom(ctx)
	fn(&id)
	return WithIdentity(ctx, id)
}

func IdentityFromContext(ctx context.Context) Identity { return identityFrom(ctx) }

func UserIDFromContext(ctx context.Context) string { return identityFrom(ctx).UserID }

// AccessIDFromContext returns the jti of the access token on the request.
func AccessIDFromContext(ctx context.Context) string { return identityFrom(ctx).AccessID }

func EmailFromContext(ctx context.Context) string { return identityFrom(ctx).Email }

// UserUUIDFromContext parses the caller id. uuid.Nil means unauthenticated.
func UserUUIDFromContext(ctx context.Context) uuid.UUID {
	id, err := uuid.Parse(UserIDFromContext(ctx))
	if err != nil {
		return uuid.Nil
	}
	return id
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return edit(ctx, func(id *Identity) { id.UserID = userID })
}

func WithRole(ctx context.Context, role string) context.Context {
	return edit(ctx, func(id *Identity) { id.Role = role })
}

func WithAccessID(ctx context.Context, accessID string) context.Context {
	return edit(ctx, func(id *Identity) { id.AccessID = accessID })
}

func WithEmail(ctx context.Context, email string) context.Context {
	return edit(ctx, func(id *Identity) { id.Email = email })
}
