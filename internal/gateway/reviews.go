package gateway

import (
	"context"
	"net/http"

	"github.com/sudo-init-do/gighub/internal/models"
)

// CreateReviewRequest rates a delivered order.
type CreateReviewRequest struct {
	OrderID string `json:"order_id" validate:"required"`
	Rating  int    `json:"rating" validate:"required,gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

// ReviewAPI covers /reviews.
type ReviewAPI struct{ c *Client }

func (r *ReviewAPI) Create(ctx context.Context, req CreateReviewRequest) (*models.Review, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	var out models.Review
	if err := r.c.do(ctx, http.MethodPost, "/reviews", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *ReviewAPI) ForGig(ctx context.Context, gigID string) ([]models.Review, error) {
	return r.list(ctx, "/reviews/gig/", gigID)
}

func (r *ReviewAPI) ForUser(ctx context.Context, userID string) ([]models.Review, error) {
	return r.list(ctx, "/reviews/user/", userID)
}

func (r *ReviewAPI) list(ctx context.Context, prefix, rawID string) ([]models.Review, error) {
	id, err := escape(rawID)
	if err != nil {
		return nil, err
	}
	var out []models.Review
	if err := r.c.do(ctx, http.MethodGet, prefix+id, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
