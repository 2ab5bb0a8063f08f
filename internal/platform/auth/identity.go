package auth

import (
	"context"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/ethanokamura/catmat/internal/domain"
)

// Identity is the principal extracted from a verified Firebase ID token.
type Identity struct {
	UID           string
	Email         string
	EmailVerified bool
	Name          string

	token *firebaseauth.Token
}

// Token exposes the decoded Firebase ID token.
func (i *Identity) Token() *firebaseauth.Token {
	if i == nil {
		return nil
	}
	return i.token
}

type contextKey int

const (
	identityKey contextKey = iota
	adminKey
)

// WithIdentity stores the identity for downstream handlers.
func WithIdentity(ctx context.Context, identity *Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// IdentityFromContext returns the identity stored by RequireFirebaseAuth.
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityKey).(*Identity)
	if !ok || identity == nil {
		return nil, false
	}
	return identity, true
}

// WithAdmin stores the admin record granted by RequireAdmin.
func WithAdmin(ctx context.Context, admin domain.AdminUser) context.Context {
	return context.WithValue(ctx, adminKey, admin)
}

// AdminFromContext returns the admin record for the current request.
func AdminFromContext(ctx context.Context) (domain.AdminUser, bool) {
	admin, ok := ctx.Value(adminKey).(domain.AdminUser)
	return admin, ok
}
