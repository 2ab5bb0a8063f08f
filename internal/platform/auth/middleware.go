package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/ethanokamura/catmat/internal/domain"
)

const defaultVerifyTimeout = 5 * time.Second

var (
	// ErrTokenExpired signals that the provided Firebase ID token has expired.
	ErrTokenExpired = errors.New("auth: firebase id token expired")
	// ErrTokenInvalid signals that the provided Firebase ID token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: firebase id token invalid")
)

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// AdminAuthorizer maps a verified identity to an admin record. ok is false when the identity
// has no admin record.
type AdminAuthorizer interface {
	Authorize(ctx context.Context, uid string) (admin domain.AdminUser, ok bool, err error)
}

// Authenticator wires Firebase token verification and the admin role lookup into middleware.
type Authenticator struct {
	verifier TokenVerifier
	admins   AdminAuthorizer
	timeout  time.Duration
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithAdminAuthorizer sets the lookup used by RequireAdmin.
func WithAdminAuthorizer(admins AdminAuthorizer) Option {
	return func(a *Authenticator) {
		a.admins = admins
	}
}

// WithVerificationTimeout bounds token verification and admin lookups.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier: verifier,
		timeout:  defaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireFirebaseAuth verifies the Authorization bearer token and stores the Identity.
// Missing or invalid tokens get 401.
func (a *Authenticator) RequireFirebaseAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
			if !ok {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization header missing or invalid")
				return
			}
			if a == nil || a.verifier == nil {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authorization service unavailable")
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
			token, err := a.verifier.VerifyIDToken(ctx, tokenStr)
			cancel()
			if err != nil {
				respondVerificationError(w, err)
				return
			}

			identity := &Identity{
				UID:           token.UID,
				Email:         claimAsString(token.Claims, "email"),
				EmailVerified: claimAsBool(token.Claims, "email_verified"),
				Name:          claimAsString(token.Claims, "name"),
				token:         token,
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireAdmin verifies the token, then grants the request only when an admin record exists for
// the uid. Verified non-admins get 403 admin_required.
func (a *Authenticator) RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		gate := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				respondAuthError(w, http.StatusUnauthorized, "unauthenticated", "authentication required")
				return
			}
			if a.admins == nil {
				respondAuthError(w, http.StatusForbidden, "admin_required", "admin access required")
				return
			}

			ctx, cancel := context.WithTimeout(r.Context(), a.timeout)
			admin, granted, err := a.admins.Authorize(ctx, identity.UID)
			cancel()
			switch {
			case err != nil:
				respondAuthError(w, http.StatusServiceUnavailable, "admin_lookup_failed", "unable to verify admin access")
				return
			case !granted:
				respondAuthError(w, http.StatusForbidden, "admin_required", "admin access required")
				return
			}

			if admin.Email == "" {
				admin.Email = identity.Email
			}
			next.ServeHTTP(w, r.WithContext(WithAdmin(r.Context(), admin)))
		})
		return a.RequireFirebaseAuth()(gate)
	}
}

func claimAsString(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

func claimAsBool(claims map[string]interface{}, key string) bool {
	v, _ := claims[key].(bool)
	return v
}

func extractBearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func respondAuthError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error":   code,
		"message": message,
		"status":  status,
	})
}

func respondVerificationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTokenExpired), firebaseauth.IsIDTokenExpired(err):
		respondAuthError(w, http.StatusUnauthorized, "token_expired", "firebase id token expired")
	default:
		respondAuthError(w, http.StatusUnauthorized, "invalid_token", "firebase id token invalid")
	}
}
