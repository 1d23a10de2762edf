package server

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/hyperjump/shiori/internal/config"
)

// UserHeader carries the caller identity in development mode.
const UserHeader = "X-User-ID"

type ctxKey int

const userKey ctxKey = iota

// UserFromContext returns the authenticated user id.
func UserFromContext(ctx context.Context) (string, bool) {
	user, ok := ctx.Value(userKey).(string)
	return user, ok && user != ""
}

// WithUser returns a context carrying user as the caller identity.
func WithUser(ctx context.Context, user string) context.Context {
	return context.WithValue(ctx, userKey, user)
}

type credential struct {
	token []byte
	user  string
}

// Authenticator resolves the caller of a request to a user id.
type Authenticator struct {
	mode        string
	defaultUser string
	credentials []credential
}

// NewAuthenticator builds an authenticator from the auth config.
func NewAuthenticator(cfg config.AuthConfig) *Authenticator {
	a := &Authenticator{mode: cfg.Mode, defaultUser: cfg.DefaultUser}
	for token, user := range cfg.Tokens {
		if token == "" || user == "" {
			continue
		}
		a.credentials = append(a.credentials, credential{token: []byte(token), user: user})
	}
	return a
}

// Authenticate returns the user id for r, or false when the request carries
// no valid credential.
func (a *Authenticator) Authenticate(r *http.Request) (string, bool) {
	if a.mode != config.AuthToken {
		if user := strings.TrimSpace(r.Header.Get(UserHeader)); user != "" {
			return user, true
		}
		return a.defaultUser, a.defaultUser != ""
	}

	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", false
	}
	token := []byte(strings.TrimSpace(strings.TrimPrefix(auth, "Bearer ")))
	user := ""
	// Every credential is compared so timing does not depend on which one matches.
	for _, c := range a.credentials {
		if subtle.ConstantTimeCompare(token, c.token) == 1 {
			user = c.user
		}
	}
	return user, user != ""
}

// Middleware rejects unauthenticated requests with 401 and stores the user
// id in the request context.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := a.Authenticate(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="shiori"`)
			respondError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}
