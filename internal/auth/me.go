package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/gighub/internal/httpx"
	"github.com/sudo-init-do/gighub/internal/store"
)

// Me returns the currently authenticated user's profile
func (h *Handler) Me(c echo.Context) error {
	u, err := h.store.UserByID(c.Request().Context(), httpx.UserID(c))
	if err != nil {
		return httpx.Fail(c, http.StatusNotFound, "user not found")
	}
	return httpx.Data(c, http.StatusOK, u)
}

// Profile returns any user's public profile
func (h *Handler) Profile(c echo.Context) error {
	u, err := h.store.UserByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusNotFound, "user not found")
	}
	return httpx.Data(c, http.StatusOK, u)
}

type UpdateProfileRequest struct {
	FullName  *string `json:"full_name" validate:"omitempty,min=1"`
	Bio       *string `json:"bio" validate:"omitempty,max=2000"`
	AvatarURL *string `json:"avatar_url" validate:"omitempty,url"`
}

// UpdateProfile edits the caller's own profile; the path id must be theirs.
func (h *Handler) UpdateProfile(c echo.Context) error {
	userID := httpx.UserID(c)
	if c.Param("id") != userID {
		return httpx.Fail(c, http.StatusForbidden, "you can only edit your own profile")
	}
	var req UpdateProfileRequest
	if ok, err := httpx.Bind(c, &req); !ok {
		return err
	}

	ctx := c.Request().Context()
	u, err := h.store.UserByID(ctx, userID)
	if err != nil {
		return httpx.Fail(c, http.StatusNotFound, "user not found")
	}
	if req.FullName != nil {
		u.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.Bio != nil {
		u.Bio = *req.Bio
	}
	if req.AvatarURL != nil {
		u.AvatarURL = *req.AvatarURL
	}
	u.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
	if err := h.store.UpdateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httpx.Fail(c, http.StatusNotFound, "user not found")
		}
		return httpx.Fail(c, http.StatusInternalServerError, "failed to update profile")
	}
	return httpx.Data(c, http.StatusOK, u)
}
