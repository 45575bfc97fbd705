package auth

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"adops-backend/internal/storage"
)

type contextKey string

const userContextKey contextKey = "auth.user"

// UserFromContext returns the authenticated user stored by Middleware.
func UserFromContext(ctx context.Context) (*storage.User, bool) {
	user, ok := ctx.Value(userContextKey).(*storage.User)
	return user, ok
}

// ContextWithUser stores an authenticated user on the context.
func ContextWithUser(ctx context.Context, user *storage.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}

// Middleware authenticates requests with a Bearer token or an X-API-Key
// header and stores the user on the request context. Requests without
// valid credentials get 401.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var user *storage.User
		var err error

		switch {
		case strings.HasPrefix(r.Header.Get("Authorization"), "Bearer "):
			user, err = s.VerifyToken(r.Context(),
				strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer "))
		case r.Header.Get("X-API-Key") != "":
			user, err = s.VerifyAPIKey(r.Context(), r.Header.Get("X-API-Key"))
		default:
			unauthorized(w)
			return
		}
		if err != nil {
			unauthorized(w)
			return
		}

		// the rate limiter keys clients off this header
		r.Header.Set("X-User-ID", strconv.FormatInt(user.ID, 10))
		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
	})
}

// RequireSuperuser wraps a handler so only superusers reach it.
func RequireSuperuser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r.Context())
		if !ok || !user.IsSuperuser {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			w.Write([]byte(`{"error":"forbidden"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"error":"authentication required"}`))
}
