package httpx

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"

	"github.com/ariefcatur/go-reservations/internal/accounts"
	"github.com/ariefcatur/go-reservations/internal/booking"
)

type ctxKey int

const actorKey ctxKey = iota

// APIKeyHeader carries the shared client key.
const APIKeyHeader = "ApiKey"

type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (booking.User, error)
}

// Actor returns the authenticated username, or "" for anonymous requests.
func Actor(ctx context.Context) string {
	s, _ := ctx.Value(actorKey).(string)
	return s
}

func WithActor(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, actorKey, username)
}

// RequireAPIKey rejects requests whose ApiKey header does not match key.
// /healthz stays open.
func RequireAPIKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" || r.URL.Path == "/healthz" {
				next.ServeHTTP(w, r)
				return
			}
			got := r.Header.Get(APIKeyHeader)
			if got == "" {
				writeErr(w, http.StatusUnauthorized, "api key missing")
				return
			}
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				writeErr(w, http.StatusUnauthorized, "api key invalid")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BasicAuth resolves Authorization: Basic credentials into the request's
// actor. Requests without credentials pass through anonymously; bad
// credentials are rejected.
func BasicAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			if !ok {
				next.ServeHTTP(w, r)
				return
			}
			u, err := auth.Authenticate(r.Context(), user, pass)
			if err != nil {
				if errors.Is(err, accounts.ErrBadCredentials) {
					w.Header().Set("WWW-Authenticate", `Basic realm="reservations"`)
					writeErr(w, http.StatusUnauthorized, err.Error())
					return
				}
				writeErr(w, http.StatusInternalServerError, "internal error")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), u.Username)))
		})
	}
}

// RequireActor rejects anonymous requests.
func RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Actor(r.Context()) == "" {
			w.Header().Set("WWW-Authenticate", `Basic realm="reservations"`)
			writeErr(w, http.StatusUnauthorized, "authentication required")
			return
		}
		next.ServeHTTP(w, r)
	})
}
