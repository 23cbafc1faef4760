package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nfrund/evmarket/internal/auth"
	"github.com/nfrund/evmarket/internal/domain"
)

// UserContextKey is the echo context key holding the caller's domain.Identity.
const UserContextKey = "user"

// TokenValidator validates bearer tokens.
type TokenValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// Auth rejects requests without a valid bearer token and stores the caller
// identity in the echo context for downstream handlers.
func Auth(validator TokenValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := auth.TokenFromRequest(c.Request())
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				FromContext(c.Request().Context()).Debug("Rejected bearer token", "error", err)
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired token")
			}

			c.Set(UserContextKey, claims.Identity())
			return next(c)
		}
	}
}

// RequireRole allows the request through only when the caller has one of roles.
// It must run after Auth.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			id, ok := IdentityFrom(c)
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
			}
			if _, ok := allowed[id.Role]; !ok {
				return echo.NewHTTPError(http.StatusForbidden, "role not permitted")
			}
			return next(c)
		}
	}
}

// IdentityFrom returns the identity stored by Auth.
func IdentityFrom(c echo.Context) (domain.Identity, bool) {
	id, ok := c.Get(UserContextKey).(domain.Identity)
	return id, ok
}
