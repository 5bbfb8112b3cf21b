package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/teamdevhq/media-relay/internal/store"
)

type contextKey string

const (
	// KeyContextKey carries the validated API key through the request.
	KeyContextKey contextKey = "api_key"
	// AdminContextKey carries the admin flag set by RequireAdmin.
	AdminContextKey contextKey = "is_admin"
)

const sessionCookieName = "admin_session"

// AdminClaims is the payload of the admin session cookie.
type AdminClaims struct {
	IsAdmin bool `json:"is_admin"`
	jwt.RegisteredClaims
}

// RequireKey validates the key query parameter against the allow-list before
// the relay handler runs. The validated key is stored in the request context
// for the audit write.
func RequireKey(st store.Store, contactMessage string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.URL.Query().Get("key")
			if key == "" {
				writeError(w, http.StatusBadRequest, "Missing key", contactMessage)
				return
			}

			ok, err := st.LookupKey(r.Context(), key)
			if err != nil {
				log.Error().Err(err).Msg("Key lookup failed")
				writeError(w, http.StatusInternalServerError, "Internal server error", "")
				return
			}
			if !ok {
				writeError(w, http.StatusUnauthorized, "Invalid key", contactMessage)
				return
			}

			ctx := context.WithValue(r.Context(), KeyContextKey, key)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin validates the admin session cookie and sets the admin flag in
// the request context. Anything short of a valid session redirects to login.
func RequireAdmin(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(sessionCookieName)
			if err != nil {
				http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
				return
			}

			claims := &AdminClaims{}
			token, err := jwt.ParseWithClaims(cookie.Value, claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid || !claims.IsAdmin {
				http.Redirect(w, r, "/admin/login", http.StatusSeeOther)
				return
			}

			ctx := context.WithValue(r.Context(), AdminContextKey, true)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NewAdminSession issues a signed admin session token.
func NewAdminSession(secret string, ttl time.Duration) (string, error) {
	claims := AdminClaims{
		IsAdmin: true,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "media-relay",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// KeyFromContext returns the API key validated by RequireKey.
func KeyFromContext(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(KeyContextKey).(string)
	return key, ok
}

// IsAdminFromContext reports whether RequireAdmin validated this request.
func IsAdminFromContext(ctx context.Context) bool {
	isAdmin, ok := ctx.Value(AdminContextKey).(bool)
	return ok && isAdmin
}
