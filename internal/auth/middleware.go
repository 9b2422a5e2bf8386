package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/sakif/markdown-blog/internal/apperror"
	"github.com/sakif/markdown-blog/internal/flash"
	"github.com/sakif/markdown-blog/internal/model"
)

// CookieName is the cookie holding the session JWT.
const CookieName = "token"

// contextKey is an unexported type used for context keys in this package, so no
// other package can read or shadow the Actor.
type contextKey string

const actorKey contextKey = "actor"

// LoginPath is where RequireAuth sends anonymous visitors.
const LoginPath = "/login"

// OptionalAuth puts the Actor on the request context when a valid session cookie
// is present and lets the request through either way. It is installed on every
// page so templates can show "logged in as".
//
// MIDDLEWARE CHAIN:
//
//	req → OptionalAuth → RequireAuth (protected routes only) → Handler
func OptionalAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if actor, err := actorFromCookie(r, tokens); err == nil {
				r = r.WithContext(WithActor(r.Context(), actor))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth protects HTML routes. Anonymous requests are redirected to the
// login page with a flash message instead of reaching the handler.
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, ok := ensureActor(r, tokens)
			if !ok {
				flash.Redirect(w, r, LoginPath, flash.Info, "Please log in first")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAPIAuth protects JSON routes with a 401 in the API error shape.
func RequireAPIAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, ok := ensureActor(r, tokens)
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "unauthorized",
					"message": "valid authentication required",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// WithActor returns a copy of ctx carrying actor.
func WithActor(ctx context.Context, actor model.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the logged-in user, or (zero, false) for an anonymous
// request.
//
// Usage in handlers:
//
//	actor, _ := auth.ActorFromContext(r.Context())
//	post, err := h.posts.Create(r.Context(), actor, title, content, tags)
func ActorFromContext(ctx context.Context) (model.Actor, bool) {
	actor, ok := ctx.Value(actorKey).(model.Actor)
	return actor, ok && !actor.IsZero()
}

// RequireActor is the guard every mutation calls first.
func RequireActor(actor model.Actor) error {
	if actor.IsZero() {
		return apperror.Unauthorized("Please log in first")
	}
	return nil
}

// ensureActor reuses an Actor placed by OptionalAuth, or reads the cookie itself
// when RequireAuth is mounted without it.
func ensureActor(r *http.Request, tokens *TokenService) (*http.Request, bool) {
	if _, ok := ActorFromContext(r.Context()); ok {
		return r, true
	}
	actor, err := actorFromCookie(r, tokens)
	if err != nil {
		return r, false
	}
	return r.WithContext(WithActor(r.Context(), actor)), true
}

func actorFromCookie(r *http.Request, tokens *TokenService) (model.Actor, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return model.Actor{}, err
	}
	return tokens.Validate(cookie.Value)
}
