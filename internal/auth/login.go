package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/sudo-init-do/gighub/internal/httpx"
)

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// ===== Login =====
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if ok, err := httpx.Bind(c, &req); !ok {
		return err
	}

	u, err := h.store.UserByEmail(c.Request().Context(), req.Email)
	if err != nil {
		return httpx.Fail(c, http.StatusUnauthorized, "invalid credentials")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return httpx.Fail(c, http.StatusUnauthorized, "invalid credentials")
	}

	signed, err := h.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return httpx.Fail(c, http.StatusInternalServerError, "token generation failed")
	}
	return httpx.Data(c, http.StatusOK, AuthResponse{Token: signed, User: u})
}
