package middlewares

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/geocoder89/carshare/internal/actorctx"
	"github.com/geocoder89/carshare/internal/auth"
	"github.com/geocoder89/carshare/internal/domain/user"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type IdentityResolver interface {
	Resolve(ctx context.Context, token string) (user.User, error)
}

type AuthMiddleware struct {
	identities IdentityResolver
}

func NewAuthMiddleware(identities IdentityResolver) *AuthMiddleware {
	return &AuthMiddleware{identities: identities}
}

// RequireAuth admits a request only when it carries a valid bearer token
// for a user that still exists.
func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			abortError(c, http.StatusUnauthorized, "unauthorized", "No token, authorization denied")
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
		if raw == "" {
			abortError(c, http.StatusUnauthorized, "unauthorized", "No token, authorization denied")
			return
		}

		u, err := m.identities.Resolve(c.Request.Context(), raw)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpired):
				abortError(c, http.StatusUnauthorized, "token_expired", "Token has expired")
			case errors.Is(err, auth.ErrInvalidToken):
				abortError(c, http.StatusForbidden, "invalid_token", "Invalid token")
			case errors.Is(err, user.ErrNotFound):
				abortError(c, http.StatusUnauthorized, "user_not_found", "User not found")
			default:
				slog.Default().ErrorContext(c.Request.Context(), "resolve identity failed", "err", err)
				abortError(c, http.StatusInternalServerError, "internal_error", "Could not verify identity")
			}
			return
		}

		// Stash the identity for handlers and for code that only sees context.Context
		c.Set(CtxUserID, u.ID)
		c.Set(CtxUser, u)
		c.Request = c.Request.WithContext(actorctx.WithUserID(c.Request.Context(), u.ID))

		c.Next()
	}
}

// Optional helpers so handlers don’t need to know the magic keys.

func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(CtxUserID)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func UserFromContext(c *gin.Context) (user.User, bool) {
	v, ok := c.Get(CtxUser)
	if !ok {
		return user.User{}, false
	}
	u, ok := v.(user.User)
	return u, ok
}
