package marketplace

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/gighub/internal/alerts"
	"github.com/sudo-init-do/gighub/internal/httpx"
	"github.com/sudo-init-do/gighub/internal/order"
	"github.com/sudo-init-do/gighub/internal/payments"
	"github.com/sudo-init-do/gighub/internal/store"
)

type CreatePaymentRequest struct {
	SuccessURL string `json:"success_url" validate:"omitempty,url"`
	CancelURL  string `json:"cancel_url" validate:"omitempty,url"`
}

type CheckoutResponse struct {
	OrderID     string `json:"order_id"`
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

type ConfirmPaymentResponse struct {
	Order            order.Order `json:"order"`
	PaidAt           *time.Time  `json:"paid_at"`
	AlreadyConfirmed bool        `json:"already_confirmed"`
}

// =========================
// CreatePayment - Buyer opens a hosted checkout for an accepted order
// =========================
func (h *Handler) CreatePayment(c echo.Context) error {
	var req CreatePaymentRequest
	if ok, err := httpx.Bind(c, &req); !ok {
		return err
	}
	ctx := c.Request().Context()
	o, err := h.store.OrderByID(ctx, c.Param("id"))
	if err != nil {
		return h.orderError(c, err)
	}
	role := order.RoleOf(o, httpx.UserID(c))
	if role == order.RoleNeither {
		return h.orderError(c, store.ErrNotFound)
	}
	if err := order.Check(o, role, order.ActionPay); err != nil {
		return h.orderError(c, err)
	}

	if req.SuccessURL == "" {
		req.SuccessURL = h.appURL + "/payment-success?order=" + url.QueryEscape(o.ID)
	}
	if req.CancelURL == "" {
		req.CancelURL = h.appURL + "/client-dashboard"
	}
	sess, err := h.provider.CreateCheckout(ctx, payments.CheckoutRequest{
		OrderID:    o.ID,
		Amount:     o.Price,
		Currency:   h.currency,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		h.log.Error().Err(err).Str("order_id", o.ID).Msg("create checkout session")
		return httpx.Fail(c, http.StatusBadGateway, "payment provider unavailable")
	}

	if o.CheckoutSessionID != sess.ID {
		if err := h.recordSession(ctx, o, sess.ID); err != nil {
			return h.orderError(c, err)
		}
	}
	return httpx.Data(c, http.StatusOK, CheckoutResponse{OrderID: o.ID, SessionID: sess.ID, CheckoutURL: sess.URL})
}

// recordSession stores the checkout session id without touching the
// lifecycle. updated_at is left alone so polling clients see no change.
func (h *Handler) recordSession(ctx context.Context, o order.Order, sessionID string) error {
	for attempt := 0; ; attempt++ {
		next := o
		next.CheckoutSessionID = sessionID
		err := h.store.SaveOrder(ctx, next, o.UpdatedAt)
		if !errors.Is(err, store.ErrConflict) || attempt > 0 {
			return err
		}
		if o, err = h.store.OrderByID(ctx, o.ID); err != nil {
			return err
		}
	}
}

// =========================
// ConfirmPayment - Verify with the processor and set paid_at once
// =========================
func (h *Handler) ConfirmPayment(c echo.Context) error {
	ctx := c.Request().Context()
	userID := httpx.UserID(c)
	o, err := h.store.OrderByID(ctx, c.Param("id"))
	if err == nil && order.RoleOf(o, userID) == order.RoleNeither {
		err = store.ErrNotFound
	}
	if err != nil {
		return h.orderError(c, err)
	}
	if o.Paid() {
		return httpx.Data(c, http.StatusOK, ConfirmPaymentResponse{Order: o, PaidAt: o.PaidAt, AlreadyConfirmed: true})
	}
	if err := order.Check(o, order.RoleOf(o, userID), order.ActionConfirmPayment); err != nil {
		return h.orderError(c, err)
	}
	if o.CheckoutSessionID == "" {
		return httpx.Fail(c, http.StatusConflict, "no payment has been started for this order")
	}

	sess, err := h.provider.SessionStatus(ctx, o.CheckoutSessionID)
	if err != nil {
		h.log.Error().Err(err).Str("order_id", o.ID).Msg("checkout session status")
		return httpx.Fail(c, http.StatusBadGateway, "payment provider unavailable")
	}
	if !sess.Paid() || sess.OrderID != o.ID {
		return httpx.Fail(c, http.StatusConflict, "payment not completed")
	}

	next, already, err := h.confirm(ctx, o.ID, userID)
	if err != nil {
		return h.orderError(c, err)
	}
	return httpx.Data(c, http.StatusOK, ConfirmPaymentResponse{Order: next, PaidAt: next.PaidAt, AlreadyConfirmed: already})
}

// confirm sets paid_at through the state machine. already is true when
// another request, a duplicate redirect or the webhook, got there first.
func (h *Handler) confirm(ctx context.Context, orderID, actorID string) (order.Order, bool, error) {
	next, wrote, err := h.transition(ctx, orderID, actorID, order.ActionConfirmPayment, nil)
	if err != nil {
		return next, false, err
	}
	if wrote {
		h.notify(ctx, alerts.TaskOrderPaid, next, actorID)
	}
	return next, !wrote, nil
}

// =========================
// PaymentWebhook - Processor-side confirmation, signed with the shared secret
// =========================
func (h *Handler) PaymentWebhook(c echo.Context) error {
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, 1<<20))
	if err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid body")
	}
	if !payments.Verify(h.webhookSecret, body, c.Request().Header.Get(payments.SignatureHeader)) {
		h.log.Warn().Str("ip", c.RealIP()).Msg("webhook signature rejected")
		return httpx.Fail(c, http.StatusUnauthorized, "invalid signature")
	}
	var ev payments.Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, "invalid event")
	}
	if ev.Type != payments.EventSessionCompleted || !ev.Data.Paid() {
		return c.JSON(http.StatusOK, echo.Map{"received": true, "ignored": true})
	}

	ctx := c.Request().Context()
	o, err := h.store.OrderByCheckoutSession(ctx, ev.Data.ID)
	if errors.Is(err, store.ErrNotFound) {
		// Unknown sessions are acknowledged so the processor stops retrying.
		h.log.Warn().Str("session_id", ev.Data.ID).Msg("webhook for unknown checkout session")
		return c.JSON(http.StatusOK, echo.Map{"received": true, "ignored": true})
	}
	if err != nil {
		return httpx.Fail(c, http.StatusInternalServerError, "failed to load order")
	}
	if o.Paid() {
		return c.JSON(http.StatusOK, echo.Map{"received": true, "already_confirmed": true})
	}
	_, already, err := h.confirm(ctx, o.ID, "")
	if err != nil {
		if errors.Is(err, order.ErrIllegalTransition) {
			h.log.Warn().Err(err).Str("order_id", o.ID).Msg("webhook payment for order that cannot be paid")
			return c.JSON(http.StatusOK, echo.Map{"received": true, "ignored": true})
		}
		return h.orderError(c, err)
	}
	h.log.Info().Str("order_id", o.ID).Bool("already_confirmed", already).Msg("payment confirmed by webhook")
	return c.JSON(http.StatusOK, echo.Map{"received": true, "already_confirmed": already})
}
