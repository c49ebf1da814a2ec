// Package httpx holds the response envelope and request binding shared by
// the echo handlers.
package httpx

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/gighub/internal/validation"
)

// Validator plugs the shared validator into echo.
type Validator struct{}

func (Validator) Validate(i any) error { return validation.Struct(i) }

// Data writes {"data": v}.
func Data(c echo.Context, status int, v any) error {
	return c.JSON(status, echo.Map{"data": v})
}

// Fail writes {"error": msg}.
func Fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, echo.Map{"error": msg})
}

// Bind decodes and validates the request body into v. When ok is false the
// 400 response has been written and the handler should return err as-is.
func Bind(c echo.Context, v any) (bool, error) {
	if err := c.Bind(v); err != nil {
		return false, Fail(c, http.StatusBadRequest, "invalid request")
	}
	if err := c.Validate(v); err != nil {
		var fe *validation.FieldError
		if errors.As(err, &fe) {
			return false, c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": fe.Fields})
		}
		return false, Fail(c, http.StatusBadRequest, err.Error())
	}
	return true, nil
}

// UserID is the authenticated caller set by the JWT middleware.
func UserID(c echo.Context) string {
	id, _ := c.Get("user_id").(string)
	return id
}

// Role is the authenticated caller's account role.
func Role(c echo.Context) string {
	role, _ := c.Get("role").(string)
	return role
}
