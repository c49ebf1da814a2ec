package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/gighub/internal/auth"
)

// TokenParser verifies a bearer token.
type TokenParser interface {
	Parse(token string) (auth.Claims, error)
}

// JWT authenticates the request and sets "user_id" and "role" on the echo
// context. Browsers cannot set headers on websocket upgrades, so a "token"
// query parameter is accepted as well.
func JWT(tokens TokenParser) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			tokenStr := ""
			const prefix = "Bearer "
			if h := c.Request().Header.Get("Authorization"); h != "" {
				if !strings.HasPrefix(h, prefix) || len(h) <= len(prefix) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid Authorization format"})
				}
				tokenStr = h[len(prefix):]
			} else {
				tokenStr = c.QueryParam("token")
			}
			if tokenStr == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing Authorization header"})
			}

			claims, err := tokens.Parse(tokenStr)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid or expired token"})
			}
			c.Set("user_id", claims.UserID)
			c.Set("role", claims.Role)
			return next(c)
		}
	}
}
