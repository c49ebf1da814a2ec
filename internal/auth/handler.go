package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/sudo-init-do/gighub/internal/httpx"
	"github.com/sudo-init-do/gighub/internal/models"
	"github.com/sudo-init-do/gighub/internal/store"
)

// Handler serves /auth.
type Handler struct {
	store  store.Store
	tokens *Tokens
	log    zerolog.Logger
}

func NewHandler(s store.Store, tokens *Tokens, log zerolog.Logger) *Handler {
	return &Handler{store: s, tokens: tokens, log: log}
}

type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=client freelancer"`
}

type AuthResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// ===== Register =====
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if ok, err := httpx.Bind(c, &req); !ok {
		return err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return httpx.Fail(c, http.StatusInternalServerError, "server error")
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	u := models.User{
		Email:        strings.ToLower(strings.TrimSpace(req.Email)),
		FullName:     strings.TrimSpace(req.FullName),
		Role:         req.Role,
		PasswordHash: string(hashed),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	ctx := c.Request().Context()
	if err := h.store.CreateUser(ctx, &u); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return httpx.Fail(c, http.StatusConflict, "email already exists")
		}
		h.log.Error().Err(err).Msg("create user")
		return httpx.Fail(c, http.StatusInternalServerError, "failed to create user")
	}

	signed, err := h.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return httpx.Fail(c, http.StatusInternalServerError, "token generation failed")
	}
	h.log.Info().Str("user_id", u.ID).Str("role", u.Role).Msg("user registered")
	return httpx.Data(c, http.StatusCreated, AuthResponse{Token: signed, User: u})
}
