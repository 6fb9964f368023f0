package httpx

import (
	"context"
	"net/http"
	"strings"

	"eternalflame/internal/apperr"
	"eternalflame/internal/locale"
	"eternalflame/pkg/token"
)

type identityKey struct{}

// Verifier resolves a bearer token to an identity.
type Verifier interface {
	Verify(tok string) (token.Identity, bool)
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// Authenticate attaches the caller identity to the context when a valid
// bearer token is present. Invalid tokens are treated as absent.
func Authenticate(v Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if id, ok := v.Verify(BearerToken(r)); ok {
				r = r.WithContext(WithIdentity(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects requests without an identity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := IdentityFrom(r.Context()); !ok {
			WriteError(w, r, RequestLocale(r), apperr.Auth("auth_unauthorized"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireElevated rejects requests whose identity is missing or not elevated.
func RequireElevated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		switch {
		case !ok:
			WriteError(w, r, RequestLocale(r), apperr.Auth("auth_unauthorized"))
		case !id.Elevated:
			WriteError(w, r, RequestLocale(r), apperr.Forbidden("auth_forbidden"))
		default:
			next.ServeHTTP(w, r)
		}
	})
}

func WithIdentity(ctx context.Context, id token.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

func IdentityFrom(ctx context.Context) (token.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(token.Identity)
	return id, ok
}

// RequestLocale negotiates from the query string and Accept-Language header.
// Handlers with a JSON body pass the body field to locale.Negotiate instead.
func RequestLocale(r *http.Request) string {
	return locale.Negotiate(r.URL.Query().Get("locale"), r.Header.Get("Accept-Language"))
}
