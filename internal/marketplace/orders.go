package marketplace

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/gighub/internal/alerts"
	"github.com/sudo-init-do/gighub/internal/httpx"
	"github.com/sudo-init-do/gighub/internal/models"
	"github.com/sudo-init-do/gighub/internal/order"
	"github.com/sudo-init-do/gighub/internal/store"
)

type CreateOrderRequest struct {
	GigID        string `json:"gig_id" validate:"required"`
	Requirements string `json:"requirements" validate:"max=5000"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type ApproveDeliveryRequest struct {
	Rating  int    `json:"rating" validate:"omitempty,gte=1,lte=5"`
	Comment string `json:"comment" validate:"max=1000"`
}

// =========================
// CreateOrder - Buyer requests a gig
// =========================
func (h *Handler) CreateOrder(c echo.Context) error {
	var req CreateOrderRequest
	if ok, err := httpx.Bind(c, &req); !ok {
		return err
	}
	buyerID := httpx.UserID(c)
	ctx := c.Request().Context()

	g, err := h.store.GigByID(ctx, req.GigID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return httpx.Fail(c, http.StatusNotFound, "gig not found")
		}
		return httpx.Fail(c, http.StatusInternalServerError, "failed to fetch gig")
	}
	if g.Status != models.GigActive {
		return httpx.Fail(c, http.StatusConflict, "gig is not available")
	}
	if g.SellerID == buyerID {
		return httpx.Fail(c, http.StatusBadRequest, "you cannot order your own gig")
	}

	now := h.now()
	o := order.Order{
		GigID:        g.ID,
		BuyerID:      buyerID,
		SellerID:     g.SellerID,
		Status:       order.StatusRequested,
		Price:        g.Price,
		Requirements: strings.TrimSpace(req.Requirements),
		Gig: order.GigSnapshot{
			Title:            g.Title,
			Description:      g.Description,
			DeliveryTimeDays: g.DeliveryTimeDays,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := h.store.CreateOrder(ctx, &o); err != nil {
		h.log.Error().Err(err).Msg("create order")
		return httpx.Fail(c, http.StatusInternalServerError, "failed to create order")
	}
	h.notify(ctx, alerts.TaskOrderRequested, o, buyerID)
	h.log.Info().Str("order_id", o.ID).Str("gig_id", g.ID).Msg("order requested")
	return httpx.Data(c, http.StatusCreated, o)
}

// =========================
// GetOrder - Participants only
// =========================
func (h *Handler) GetOrder(c echo.Context) error {
	o, err := h.store.OrderByID(c.Request().Context(), c.Param("id"))
	if err == nil && order.RoleOf(o, httpx.UserID(c)) == order.RoleNeither {
		err = store.ErrNotFound
	}
	if err != nil {
		return h.orderError(c, err)
	}
	return httpx.Data(c, http.StatusOK, o)
}

// =========================
// ListOrders - ?type=bought|sold|all
// =========================
func (h *Handler) ListOrders(c echo.Context) error {
	side := store.Side(c.QueryParam("type"))
	switch side {
	case "":
		side = store.SideAll
	case store.SideAll, store.SideBought, store.SideSold:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":  "invalid query",
			"fields": map[string]string{"type": "must be one of all, bought, sold"},
		})
	}
	orders, err := h.store.ListOrders(c.Request().Context(), httpx.UserID(c), side)
	if err != nil {
		h.log.Error().Err(err).Msg("list orders")
		return httpx.Fail(c, http.StatusInternalServerError, "failed to fetch orders")
	}
	return httpx.Data(c, http.StatusOK, orders)
}

// =========================
// Seller: accept / approve / reject / mark work done
// =========================
func (h *Handler) AcceptOrder(c echo.Context) error {
	return h.simpleTransition(c, order.ActionAccept, alerts.TaskOrderAccepted)
}

// ApproveOrder is the older route name for AcceptOrder.
func (h *Handler) ApproveOrder(c echo.Context) error {
	return h.simpleTransition(c, order.ActionApprove, alerts.TaskOrderAccepted)
}

func (h *Handler) RejectOrder(c echo.Context) error {
	return h.simpleTransition(c, order.ActionReject, alerts.TaskOrderRejected)
}

func (h *Handler) MarkWorkDone(c echo.Context) error {
	return h.simpleTransition(c, order.ActionMarkWorkDone, alerts.TaskOrderDelivered)
}

// =========================
// CancelOrder - Either participant, only while unpaid
// =========================
func (h *Handler) CancelOrder(c echo.Context) error {
	var req CancelOrderRequest
	if ok, err := httpx.Bind(c, &req); !ok {
		return err
	}
	userID := httpx.UserID(c)
	ctx := c.Request().Context()
	o, err := h.apply(ctx, c.Param("id"), userID, order.ActionCancel, func(_, next order.Order) (order.Order, *models.Review) {
		next.CancelReason = strings.TrimSpace(req.Reason)
		return next, nil
	})
	if err != nil {
		return h.orderError(c, err)
	}
	h.notify(ctx, alerts.TaskOrderCancelled, o, userID)
	return httpx.Data(c, http.StatusOK, o)
}

// =========================
// ApproveDelivery - Buyer completes the order, optionally reviewing it
// =========================
func (h *Handler) ApproveDelivery(c echo.Context) error {
	var req ApproveDeliveryRequest
	if ok, err := httpx.Bind(c, &req); !ok {
		return err
	}
	userID := httpx.UserID(c)
	ctx := c.Request().Context()
	orderID := c.Param("id")

	var withReview bool
	if req.Rating > 0 {
		reviewed, err := h.hasReview(ctx, orderID)
		if err != nil {
			return h.orderError(c, err)
		}
		withReview = !reviewed
	}

	o, err := h.apply(ctx, orderID, userID, order.ActionApproveDelivery, func(_, next order.Order) (order.Order, *models.Review) {
		if !withReview {
			return next, nil
		}
		return next, &models.Review{
			OrderID:        next.ID,
			GigID:          next.GigID,
			ReviewerID:     next.BuyerID,
			ReviewedUserID: next.SellerID,
			Rating:         req.Rating,
			Comment:        strings.TrimSpace(req.Comment),
			CreatedAt:      *next.CompletedAt,
		}
	})
	if err != nil {
		return h.orderError(c, err)
	}
	h.notify(ctx, alerts.TaskOrderCompleted, o, userID)
	return httpx.Data(c, http.StatusOK, o)
}

func (h *Handler) simpleTransition(c echo.Context, action order.Action, task string) error {
	userID := httpx.UserID(c)
	ctx := c.Request().Context()
	o, err := h.apply(ctx, c.Param("id"), userID, action, nil)
	if err != nil {
		return h.orderError(c, err)
	}
	h.notify(ctx, task, o, userID)
	return httpx.Data(c, http.StatusOK, o)
}

// decorate adjusts the transitioned order and may attach a review to be
// written in the same store operation.
type decorate func(cur, next order.Order) (order.Order, *models.Review)

// apply runs action on the stored order as userID and returns the result.
func (h *Handler) apply(ctx context.Context, orderID, userID string, action order.Action, dec decorate) (order.Order, error) {
	o, _, err := h.transition(ctx, orderID, userID, action, dec)
	return o, err
}

// transition is apply that also reports whether anything was written. An
// empty userID is the processor acting on its own authority. The write is
// compare-and-swap on updated_at; a lost race reloads and re-evaluates once,
// so concurrent requests converge on whatever the first writer left.
func (h *Handler) transition(ctx context.Context, orderID, userID string, action order.Action, dec decorate) (order.Order, bool, error) {
	for attempt := 0; ; attempt++ {
		cur, err := h.store.OrderByID(ctx, orderID)
		if err != nil {
			return cur, false, err
		}
		role := order.RoleOf(cur, userID)
		if role == order.RoleNeither && userID != "" {
			return cur, false, store.ErrNotFound
		}
		next, changed, err := order.Transition(cur, role, action, h.now())
		if err != nil {
			return cur, false, err
		}
		if !changed {
			// e.g. confirming an already paid order
			return cur, false, nil
		}
		var review *models.Review
		if dec != nil {
			next, review = dec(cur, next)
		}
		if err := order.Validate(next); err != nil {
			return cur, false, err
		}
		err = h.store.CompleteOrder(ctx, next, cur.UpdatedAt, review)
		if errors.Is(err, store.ErrConflict) && attempt == 0 {
			h.log.Debug().Str("order_id", orderID).Str("action", string(action)).Msg("order changed concurrently, retrying")
			continue
		}
		if err != nil {
			return cur, false, err
		}
		h.log.Info().Str("order_id", orderID).Str("action", string(action)).Str("phase", string(next.Phase())).Msg("order transition")
		return next, true, nil
	}
}

func (h *Handler) hasReview(ctx context.Context, orderID string) (bool, error) {
	o, err := h.store.OrderByID(ctx, orderID)
	if err != nil {
		return false, err
	}
	reviews, err := h.store.ReviewsByUser(ctx, o.SellerID)
	if err != nil {
		return false, err
	}
	for _, r := range reviews {
		if r.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (h *Handler) orderError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return httpx.Fail(c, http.StatusNotFound, "order not found")
	case errors.Is(err, order.ErrIllegalTransition):
		return httpx.Fail(c, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrConflict):
		return httpx.Fail(c, http.StatusConflict, "order changed, reload and try again")
	}
	h.log.Error().Err(err).Str("order_id", c.Param("id")).Msg("order operation failed")
	return httpx.Fail(c, http.StatusInternalServerError, "order operation failed")
}
