package marketplace

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/gighub/internal/httpx"
	"github.com/sudo-init-do/gighub/internal/models"
	"github.com/sudo-init-do/gighub/internal/order"
	"github.com/sudo-init-do/gighub/internal/store"
)

type CreateReviewRequest struct {
	OrderID string `json:"order_id" validate:"required"`
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

// CreateReview lets the buyer rate a delivered or completed order, once.
func (h *Handler) CreateReview(c echo.Context) error {
	var req CreateReviewRequest
	if ok, err := httpx.Bind(c, &req); !ok {
		return err
	}
	buyerID := httpx.UserID(c)
	ctx := c.Request().Context()

	o, err := h.store.OrderByID(ctx, req.OrderID)
	if err == nil && order.RoleOf(o, buyerID) != order.RoleBuyer {
		err = store.ErrNotFound
	}
	if err != nil {
		return h.orderError(c, err)
	}
	if phase := o.Phase(); phase != order.PhaseDelivered && phase != order.PhaseCompleted {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":       "can only review delivered or completed orders",
			"order_phase": phase,
		})
	}

	r := models.Review{
		OrderID:        o.ID,
		GigID:          o.GigID,
		ReviewerID:     buyerID,
		ReviewedUserID: o.SellerID,
		Rating:         req.Rating,
		Comment:        strings.TrimSpace(req.Comment),
		CreatedAt:      h.now(),
	}
	if err := h.store.CreateReview(ctx, &r); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return httpx.Fail(c, http.StatusConflict, "review already exists for this order")
		}
		h.log.Error().Err(err).Str("order_id", o.ID).Msg("create review")
		return httpx.Fail(c, http.StatusInternalServerError, "failed to create review")
	}
	return httpx.Data(c, http.StatusCreated, r)
}

// GigReviews lists reviews of one gig, newest first.
func (h *Handler) GigReviews(c echo.Context) error {
	reviews, err := h.store.ReviewsByGig(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusInternalServerError, "failed to fetch reviews")
	}
	return httpx.Data(c, http.StatusOK, reviews)
}

// UserReviews lists reviews received by one seller.
func (h *Handler) UserReviews(c echo.Context) error {
	reviews, err := h.store.ReviewsByUser(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpx.Fail(c, http.StatusInternalServerError, "failed to fetch reviews")
	}
	return httpx.Data(c, http.StatusOK, reviews)
}
