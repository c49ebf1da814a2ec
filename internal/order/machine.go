package order

import (
	"errors"
	"fmt"
	"slices"
	"time"
)

// Action is a user- or processor-initiated lifecycle step.
type Action string

const (
	ActionAccept          Action = "accept"
	ActionReject          Action = "reject"
	ActionApprove         Action = "approve" // legacy alias of accept
	ActionPay             Action = "pay"
	ActionConfirmPayment  Action = "confirm_payment"
	ActionMarkWorkDone    Action = "mark_work_done"
	ActionApproveDelivery Action = "approve_delivery"
	ActionCancel          Action = "cancel"
)

// ErrIllegalTransition is returned when an action is not legal for the
// order's current phase or the actor's role.
var ErrIllegalTransition = errors.New("illegal order transition")

type rule struct {
	roles  []Role
	phases []Phase
}

var rules = map[Action]rule{
	ActionAccept:          {roles: []Role{RoleSeller}, phases: []Phase{PhaseRequested}},
	ActionApprove:         {roles: []Role{RoleSeller}, phases: []Phase{PhaseRequested}},
	ActionReject:          {roles: []Role{RoleSeller}, phases: []Phase{PhaseRequested}},
	ActionPay:             {roles: []Role{RoleBuyer}, phases: []Phase{PhaseAwaitingPayment}},
	ActionMarkWorkDone:    {roles: []Role{RoleSeller}, phases: []Phase{PhaseInProgress}},
	ActionApproveDelivery: {roles: []Role{RoleBuyer}, phases: []Phase{PhaseDelivered}},
	ActionCancel:          {roles: []Role{RoleBuyer, RoleSeller}, phases: []Phase{PhaseRequested, PhaseAwaitingPayment}},
	// The processor is the authority for payment, so any caller may ask for
	// confirmation; repeats on a paid order are no-ops.
	ActionConfirmPayment: {
		roles:  []Role{RoleBuyer, RoleSeller, RoleNeither},
		phases: []Phase{PhaseAwaitingPayment, PhaseInProgress, PhaseDelivered, PhaseCompleted},
	},
}

// uiActions is the presentation order of actions a viewer can trigger.
var uiActions = []Action{
	ActionAccept,
	ActionReject,
	ActionPay,
	ActionMarkWorkDone,
	ActionApproveDelivery,
	ActionCancel,
}

// Check reports whether role may perform action on o.
func Check(o Order, role Role, action Action) error {
	r, ok := rules[action]
	if !ok {
		return fmt.Errorf("%w: unknown action %q", ErrIllegalTransition, action)
	}
	if !slices.Contains(r.roles, role) {
		return fmt.Errorf("%w: %s cannot %s", ErrIllegalTransition, role, action)
	}
	phase := o.Phase()
	if !slices.Contains(r.phases, phase) {
		return fmt.Errorf("%w: cannot %s an order that is %s", ErrIllegalTransition, action, phase)
	}
	return nil
}

// Allowed lists the actions role can currently take on o. The result is
// advisory; the backend remains the authority.
func Allowed(o Order, role Role) []Action {
	var out []Action
	for _, a := range uiActions {
		if Check(o, role, a) == nil {
			out = append(out, a)
		}
	}
	return out
}

// Apply performs action on o as role and returns the resulting order.
// ActionPay only checks legality: the payment itself happens externally.
func Apply(o Order, role Role, action Action, now time.Time) (Order, error) {
	next, _, err := Transition(o, role, action, now)
	return next, err
}

// Transition is Apply that also reports whether the order changed. A legal
// action can leave the order as it was: paying, or confirming an order that
// is already paid. updated_at always moves forward on a change, even when
// now is not after the stored value.
func Transition(o Order, role Role, action Action, now time.Time) (Order, bool, error) {
	if err := Check(o, role, action); err != nil {
		return o, false, err
	}
	now = now.UTC()
	if !now.After(o.UpdatedAt) {
		now = o.UpdatedAt.UTC().Add(time.Microsecond)
	}
	next := o
	switch action {
	case ActionAccept, ActionApprove:
		next.Status = StatusPending
		next.AcceptedAt = &now
	case ActionReject:
		next.Status = StatusRejected
	case ActionPay:
		return o, false, nil
	case ActionConfirmPayment:
		if o.Paid() {
			return o, false, nil
		}
		next.PaidAt = &now
	case ActionMarkWorkDone:
		next.DeliveredAt = &now
	case ActionApproveDelivery:
		next.Status = StatusCompleted
		next.CompletedAt = &now
	case ActionCancel:
		next.Status = StatusCancelled
		next.CancelledAt = &now
	}
	next.UpdatedAt = now
	return next, true, nil
}
