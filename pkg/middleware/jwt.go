package middleware

import (
	"net/http"
	"strings"

	"BranchLMS/internal/auth"

	"github.com/labstack/echo/v4"
)

// JWT rejects requests without a valid bearer token and stores the claims
// under auth.ContextKey.
func JWT(tokens *auth.Tokens) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
			}
			tokenString := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))

			claims, err := tokens.Validate(tokenString)
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token").SetInternal(err)
			}
			c.Set(auth.ContextKey, claims)
			return next(c)
		}
	}
}
