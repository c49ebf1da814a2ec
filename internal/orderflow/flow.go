// Package orderflow drives user actions on one order view: it gates them on
// advisory legality, blocks double submission, installs the server's answer
// as the authoritative snapshot and re-syncs when the server disagrees.
package orderflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sudo-init-do/gighub/internal/gateway"
	"github.com/sudo-init-do/gighub/internal/order"
	"github.com/sudo-init-do/gighub/internal/reconcile"
)

// ErrInFlight is returned when an action is submitted while another one for
// the same order has not finished.
var ErrInFlight = errors.New("an action on this order is already in progress")

// ErrNotLoaded is returned when acting before the first snapshot arrived.
var ErrNotLoaded = errors.New("order not loaded")

// Orders is the slice of the order API a Flow needs.
type Orders interface {
	Get(ctx context.Context, orderID string) (*order.Order, error)
	Accept(ctx context.Context, orderID string) (*order.Order, error)
	Reject(ctx context.Context, orderID string) (*order.Order, error)
	Cancel(ctx context.Context, orderID string, req gateway.CancelRequest) (*order.Order, error)
	MarkWorkDone(ctx context.Context, orderID string) (*order.Order, error)
	ApproveDelivery(ctx context.Context, orderID string, req gateway.ApproveDeliveryRequest) (*order.Order, error)
}

// Input carries the optional payload of an action.
type Input struct {
	Reason  string
	Rating  int
	Comment string
}

// Flow binds one order view to the API for one signed-in user.
type Flow struct {
	api     Orders
	orderID string
	userID  string
	view    *reconcile.OrderView
	log     zerolog.Logger

	mu       sync.Mutex
	inFlight bool
}

// New builds a flow for orderID as seen by userID.
func New(api Orders, orderID, userID string, view *reconcile.OrderView, log zerolog.Logger) *Flow {
	if view == nil {
		view = reconcile.NewOrderView(nil)
	}
	return &Flow{api: api, orderID: orderID, userID: userID, view: view, log: log.With().Str("order_id", orderID).Logger()}
}

// View returns the underlying cache.
func (f *Flow) View() *reconcile.OrderView { return f.view }

// Load performs one sequenced read.
func (f *Flow) Load(ctx context.Context) error {
	return f.view.Refresh(ctx, f.fetch)
}

func (f *Flow) fetch(ctx context.Context) (*order.Order, error) {
	return f.api.Get(ctx, f.orderID)
}

// Role is the viewer's role on the cached order.
func (f *Flow) Role() order.Role {
	o, ok := f.view.Snapshot()
	if !ok {
		return order.RoleNeither
	}
	return order.RoleOf(o, f.userID)
}

// Allowed lists the actions to offer, or none while an action is in flight.
func (f *Flow) Allowed() []order.Action {
	f.mu.Lock()
	busy := f.inFlight
	f.mu.Unlock()
	o, ok := f.view.Snapshot()
	if busy || !ok {
		return nil
	}
	return order.Allowed(o, order.RoleOf(o, f.userID))
}

// Do submits action. The server's response replaces the cached snapshot; if
// the server rejects the action as stale or illegal the view is re-read.
func (f *Flow) Do(ctx context.Context, action order.Action, in Input) (order.Order, error) {
	o, ok := f.view.Snapshot()
	if !ok {
		return order.Order{}, ErrNotLoaded
	}
	if err := order.Check(o, order.RoleOf(o, f.userID), action); err != nil {
		return o, err
	}

	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return o, ErrInFlight
	}
	f.inFlight = true
	f.mu.Unlock()
	defer func() {
		f.mu.Lock()
		f.inFlight = false
		f.mu.Unlock()
	}()

	seq := f.view.BeginMutation()
	next, err := f.call(ctx, action, in)
	if err != nil {
		f.log.Warn().Err(err).Str("action", string(action)).Msg("order action rejected")
		switch gateway.KindOf(err) {
		case gateway.KindConflict, gateway.KindNotFound, gateway.KindValidation:
			if rerr := f.Load(ctx); rerr != nil {
				f.log.Debug().Err(rerr).Msg("re-sync after rejection failed")
			}
		}
		cur, _ := f.view.Snapshot()
		return cur, err
	}
	f.view.ApplyMutation(seq, *next)
	f.log.Info().Str("action", string(action)).Str("status", string(next.Status)).Msg("order updated")
	return *next, nil
}

func (f *Flow) call(ctx context.Context, action order.Action, in Input) (*order.Order, error) {
	switch action {
	case order.ActionAccept, order.ActionApprove:
		return f.api.Accept(ctx, f.orderID)
	case order.ActionReject:
		return f.api.Reject(ctx, f.orderID)
	case order.ActionCancel:
		return f.api.Cancel(ctx, f.orderID, gateway.CancelRequest{Reason: in.Reason})
	case order.ActionMarkWorkDone:
		return f.api.MarkWorkDone(ctx, f.orderID)
	case order.ActionApproveDelivery:
		return f.api.ApproveDelivery(ctx, f.orderID, gateway.ApproveDeliveryRequest{Rating: in.Rating, Comment: in.Comment})
	}
	return nil, fmt.Errorf("%w: %s is not driven from the order view", order.ErrIllegalTransition, action)
}

// Watch polls the order until ctx is cancelled. onError receives failed
// ticks; polling continues regardless.
func (f *Flow) Watch(ctx context.Context, interval time.Duration, onError func(error)) error {
	opts := []reconcile.PollerOption{reconcile.WithPollerLogger(f.log)}
	if onError != nil {
		opts = append(opts, reconcile.WithErrorHandler(onError))
	}
	return reconcile.NewPoller(interval, f.Load, opts...).Run(ctx)
}
