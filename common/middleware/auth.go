package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ContextKey namespaces values stored on the echo.Context to avoid
// colliding with keys set by other middleware.
type ContextKey string

const UsernameKey ContextKey = "username"

// ExtractUsername reads X-User-ID and stores it in context for
// downstream rate-limit and ownership checks. Missing header is allowed;
// handlers that need an identity call RequireUsername.
func ExtractUsername() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if username := c.Request().Header.Get("X-User-ID"); username != "" {
				c.Set(string(UsernameKey), username)
			}
			return next(c)
		}
	}
}

// GetUsername returns the username stored by ExtractUsername, or "".
func GetUsername(c echo.Context) string {
	username, _ := c.Get(string(UsernameKey)).(string)
	return username
}

// RequireUsername returns the context username or writes a 401 response.
func RequireUsername(c echo.Context) (string, error) {
	username := GetUsername(c)
	if username == "" {
		return "", c.JSON(http.StatusUnauthorized, map[string]interface{}{
			"error": "X-User-ID header is required",
		})
	}
	return username, nil
}
