package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/foodhub/api/internal/platform/httpx"
)

const (
	defaultTypeClaim     = "type"
	defaultVerifyTimeout = 5 * time.Second
)

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// Authenticator turns bearer tokens into identities and enforces audience types.
type Authenticator struct {
	verifier  TokenVerifier
	typeClaim string
	timeout   time.Duration
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithTypeClaim overrides the custom claim carrying the user type.
func WithTypeClaim(claim string) Option {
	return func(a *Authenticator) {
		if claim = strings.TrimSpace(claim); claim != "" {
			a.typeClaim = claim
		}
	}
}

// WithVerificationTimeout bounds token verification.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator constructs an Authenticator for middleware composition.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier:  verifier,
		typeClaim: defaultTypeClaim,
		timeout:   defaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireAuth verifies the bearer token and, when types are given, restricts access to those
// audiences. Admins pass every type check.
func (a *Authenticator) RequireAuth(types ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			identity, err := a.authenticate(ctx, r.Header.Get("Authorization"))
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError(http.StatusUnauthorized, err.Error()))
				return
			}
			if len(types) > 0 && !identity.IsAdmin() && !identity.HasType(types...) {
				httpx.WriteError(ctx, w, httpx.NewError(http.StatusForbidden, "this app type is not allowed to access the resource"))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, identity)))
		})
	}
}

func (a *Authenticator) authenticate(ctx context.Context, header string) (*Identity, error) {
	if a == nil || a.verifier == nil {
		return nil, errors.New("authentication is not configured")
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return nil, errors.New("missing bearer token")
	}

	verifyCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()
	decoded, err := a.verifier.VerifyIDToken(verifyCtx, token)
	if err != nil {
		if firebaseauth.IsIDTokenExpired(err) {
			return nil, errors.New("token expired, please log in again")
		}
		return nil, errors.New("invalid token")
	}

	identity := &Identity{UID: decoded.UID, Type: TypeUser}
	if email, ok := decoded.Claims["email"].(string); ok {
		identity.Email = email
	}
	if raw, ok := decoded.Claims[a.typeClaim].(string); ok {
		if t := normaliseType(raw); t != "" {
			identity.Type = t
		}
	}
	return identity, nil
}
