// Package payment bridges local order state with the redirect-based checkout.
// Control leaves the process between Begin and Return, so the order being
// paid is remembered in durable session storage rather than in memory.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sudo-init-do/gighub/internal/gateway"
	"github.com/sudo-init-do/gighub/internal/order"
	"github.com/sudo-init-do/gighub/internal/session"
)

// MarkerKey is the storage key holding the order awaiting confirmation.
const MarkerKey = "pendingPaymentOrderId"

// Return routes.
const (
	SuccessPath   = "/payment-success"
	DashboardPath = "/client-dashboard"
)

var (
	ErrNoPendingOrder = errors.New("no pending payment order")
	ErrNotReturn      = errors.New("not a payment return url")
)

// State of one handshake.
type State string

const (
	StateIdle      State = "idle"
	StateInFlight  State = "in_flight"
	StateConfirmed State = "confirmed"
	StateFailed    State = "failed"
)

// Outcome of a return.
type Outcome string

const (
	OutcomeConfirmed        Outcome = "confirmed"
	OutcomeAlreadyConfirmed Outcome = "already_confirmed"
	OutcomeFailed           Outcome = "failed"
)

// Result is what the caller shows after a return. Redirect is always the
// dashboard; the dashboard's fresh read is what the user trusts.
type Result struct {
	Outcome  Outcome
	OrderID  string
	PaidAt   *time.Time
	Redirect string
	Err      error
}

// Payments is the slice of the order API the handshake needs.
type Payments interface {
	CreatePayment(ctx context.Context, orderID string, req gateway.PaymentRequest) (*gateway.Checkout, error)
	ConfirmPayment(ctx context.Context, orderID string) (*gateway.PaymentConfirmation, error)
}

// Handshake runs Begin once before leaving for checkout and Return once when
// control comes back.
type Handshake struct {
	storage session.Storage
	api     Payments
	appURL  string
	refresh func(ctx context.Context) error
	log     zerolog.Logger

	mu      sync.Mutex
	state   State
	settled *Result
}

// NewHandshake builds a handshake. appURL is where the processor sends the
// browser back; refresh forces a fresh dashboard read after the return.
func NewHandshake(storage session.Storage, api Payments, appURL string, refresh func(ctx context.Context) error, log zerolog.Logger) *Handshake {
	return &Handshake{
		storage: storage,
		api:     api,
		appURL:  strings.TrimRight(appURL, "/"),
		refresh: refresh,
		log:     log,
		state:   StateIdle,
	}
}

// State returns the current handshake state.
func (h *Handshake) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Begin opens checkout for o on behalf of role and returns the checkout URL.
// The marker is persisted before the URL is handed out.
func (h *Handshake) Begin(ctx context.Context, o order.Order, role order.Role) (string, error) {
	if err := order.Check(o, role, order.ActionPay); err != nil {
		return "", err
	}
	q := url.Values{"order": {o.ID}}
	req := gateway.PaymentRequest{
		SuccessURL: h.appURL + SuccessPath + "?" + q.Encode(),
		CancelURL:  h.appURL + DashboardPath,
	}
	checkout, err := h.api.CreatePayment(ctx, o.ID, req)
	if err != nil {
		return "", fmt.Errorf("create payment: %w", err)
	}
	if checkout.CheckoutURL == "" {
		return "", errors.New("create payment: empty checkout url")
	}
	if err := h.storage.Set(ctx, MarkerKey, o.ID); err != nil {
		return "", fmt.Errorf("persist pending order: %w", err)
	}
	h.log.Info().Str("order_id", o.ID).Str("session_id", checkout.SessionID).Msg("checkout started")
	return checkout.CheckoutURL, nil
}

// ReturnParams is what the processor's redirect carried.
type ReturnParams struct {
	OrderID string
	Success bool
}

// ParseReturn recognizes both return routes:
// /payment-success?order=<id> and /client-dashboard?payment=success&order=<id>.
func ParseReturn(raw string) (ReturnParams, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return ReturnParams{}, fmt.Errorf("%w: %v", ErrNotReturn, err)
	}
	q := u.Query()
	path := strings.TrimRight(u.Path, "/")
	switch {
	case strings.HasSuffix(path, SuccessPath):
		return ReturnParams{OrderID: q.Get("order"), Success: true}, nil
	case strings.HasSuffix(path, DashboardPath):
		return ReturnParams{OrderID: q.Get("order"), Success: q.Get("payment") == "success"}, nil
	}
	return ReturnParams{}, ErrNotReturn
}

// Return completes the handshake. Confirmation is attempted at most once per
// handshake; a later Return reports the settled result. The marker is
// cleared whatever the outcome and the dashboard is refreshed.
func (h *Handshake) Return(ctx context.Context, p ReturnParams) Result {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.settled != nil {
		return *h.settled
	}

	res := Result{Redirect: DashboardPath}
	orderID, err := h.resolve(ctx, p)
	switch {
	case err != nil:
		res.Outcome, res.Err = OutcomeFailed, err
	default:
		// A lost success redirect still lands here with the marker set, so
		// confirm regardless and let the processor's answer decide.
		res.OrderID = orderID
		h.state = StateInFlight
		conf, cerr := h.api.ConfirmPayment(ctx, orderID)
		switch {
		case cerr != nil && !p.Success && gateway.IsKind(cerr, gateway.KindConflict):
			res.Outcome, res.Err = OutcomeFailed, fmt.Errorf("payment was not completed: %w", cerr)
		case cerr != nil:
			res.Outcome, res.Err = OutcomeFailed, cerr
		default:
			res.PaidAt = conf.PaidAt
			res.Outcome = OutcomeConfirmed
			if conf.AlreadyConfirmed {
				res.Outcome = OutcomeAlreadyConfirmed
			}
		}
	}

	if err := h.storage.Delete(ctx, MarkerKey); err != nil {
		h.log.Warn().Err(err).Msg("clear pending payment marker")
	}
	if h.refresh != nil {
		if err := h.refresh(ctx); err != nil {
			h.log.Warn().Err(err).Msg("dashboard refresh after payment")
		}
	}

	if res.Outcome == OutcomeFailed {
		h.state = StateFailed
		h.log.Warn().Err(res.Err).Str("order_id", res.OrderID).Msg("payment not confirmed")
	} else {
		h.state = StateConfirmed
		h.log.Info().Str("order_id", res.OrderID).Str("outcome", string(res.Outcome)).Msg("payment confirmed")
	}
	h.settled = &res
	return res
}

// resolve prefers the persisted marker and falls back to the query value.
func (h *Handshake) resolve(ctx context.Context, p ReturnParams) (string, error) {
	id, ok, err := h.storage.Get(ctx, MarkerKey)
	if err != nil {
		h.log.Warn().Err(err).Msg("read pending payment marker")
	}
	if ok && id != "" {
		return id, nil
	}
	if p.OrderID != "" {
		return p.OrderID, nil
	}
	return "", ErrNoPendingOrder
}
