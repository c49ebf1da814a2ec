package gateway

import (
	"context"
	"net/http"

	"github.com/sudo-init-do/gighub/internal/models"
)

// RegisterRequest creates an account.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"full_name" validate:"required"`
	Role     string `json:"role" validate:"required,oneof=client freelancer"`
}

// LoginRequest exchanges credentials for a token.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse carries the issued token and the account.
type AuthResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// UpdateProfileRequest edits the caller's own profile.
type UpdateProfileRequest struct {
	FullName  *string `json:"full_name,omitempty" validate:"omitempty,min=1"`
	Bio       *string `json:"bio,omitempty" validate:"omitempty,max=2000"`
	AvatarURL *string `json:"avatar_url,omitempty" validate:"omitempty,url"`
}

// AuthAPI covers /auth.
type AuthAPI struct{ c *Client }

func (a *AuthAPI) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	var out AuthResponse
	if err := a.c.do(ctx, http.MethodPost, "/auth/register", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *AuthAPI) Login(ctx context.Context, req LoginRequest) (*AuthResponse, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	var out AuthResponse
	if err := a.c.do(ctx, http.MethodPost, "/auth/login", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Me returns the account behind the current token.
func (a *AuthAPI) Me(ctx context.Context) (*models.User, error) {
	var out models.User
	if err := a.c.do(ctx, http.MethodGet, "/auth/me", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateProfile edits userID's profile; the server only allows the owner.
func (a *AuthAPI) UpdateProfile(ctx context.Context, userID string, req UpdateProfileRequest) (*models.User, error) {
	id, err := escape(userID)
	if err != nil {
		return nil, err
	}
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	var out models.User
	if err := a.c.do(ctx, http.MethodPut, "/auth/profile/"+id, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Profile returns another user's public profile.
func (a *AuthAPI) Profile(ctx context.Context, userID string) (*models.User, error) {
	id, err := escape(userID)
	if err != nil {
		return nil, err
	}
	var out models.User
	if err := a.c.do(ctx, http.MethodGet, "/auth/profile/"+id, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
