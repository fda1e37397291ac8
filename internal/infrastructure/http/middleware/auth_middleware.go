package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/chemicheck/chemicheck/internal/domain/entities"
	"github.com/chemicheck/chemicheck/internal/usecase/auth"
)

const (
	// UserContextKey holds the authenticated *entities.User in Echo context.
	UserContextKey = "user"
	// UserIDContextKey holds the authenticated user's uuid.UUID.
	UserIDContextKey = "user_id"
)

// EchoAuth returns an Echo middleware that validates the bearer token and
// sets "user" and "user_id" into the request context.
func EchoAuth(authService auth.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := extractToken(c)
			if token == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Missing authorization token")
			}

			user, err := authService.ValidateAccessToken(c.Request().Context(), token)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "Invalid or expired token")
			}

			c.Set(UserContextKey, user)
			c.Set(UserIDContextKey, user.ID)
			return next(c)
		}
	}
}

// UserFromContext retrieves the authenticated user set by EchoAuth.
func UserFromContext(c echo.Context) (*entities.User, bool) {
	user, ok := c.Get(UserContextKey).(*entities.User)
	return user, ok
}

func extractToken(c echo.Context) string {
	authHeader := c.Request().Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.ToLower(parts[0]) == "bearer" {
			return parts[1]
		}
	}

	// Cookie fallback for browser clients.
	if cookie, err := c.Cookie("access_token"); err == nil {
		return cookie.Value
	}
	return ""
}
