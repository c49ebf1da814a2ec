// Package order models the order lifecycle shared by the client and the
// backend: the persisted record, the participant roles and the transition
// rules between states.
package order

import (
	"errors"
	"fmt"
	"time"
)

// Status is the persisted order state.
type Status string

const (
	StatusRequested Status = "requested"
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusPending, StatusCompleted, StatusRejected, StatusCancelled:
		return true
	}
	return false
}

// GigSnapshot is the part of a gig frozen into the order at request time.
type GigSnapshot struct {
	Title            string `json:"title"`
	Description      string `json:"description"`
	DeliveryTimeDays int    `json:"delivery_time_days"`
}

// Order is a buyer's request for a seller's gig.
type Order struct {
	ID                string      `json:"id"`
	GigID             string      `json:"gig_id"`
	BuyerID           string      `json:"buyer_id"`
	SellerID          string      `json:"seller_id"`
	Status            Status      `json:"status"`
	Price             int64       `json:"price"`
	Requirements      string      `json:"requirements,omitempty"`
	Gig               GigSnapshot `json:"gig"`
	CheckoutSessionID string      `json:"-"`
	CancelReason      string      `json:"cancel_reason,omitempty"`
	AcceptedAt        *time.Time  `json:"accepted_at"`
	PaidAt            *time.Time  `json:"paid_at"`
	DeliveredAt       *time.Time  `json:"delivered_at"`
	CompletedAt       *time.Time  `json:"completed_at"`
	CancelledAt       *time.Time  `json:"cancelled_at"`
	CreatedAt         time.Time   `json:"created_at"`
	UpdatedAt         time.Time   `json:"updated_at"`
}

// Paid reports whether payment has been confirmed.
func (o Order) Paid() bool { return o.PaidAt != nil }

// Delivered reports whether the seller has marked the work done.
func (o Order) Delivered() bool { return o.DeliveredAt != nil }

// Phase is the lifecycle position derived from status and timestamps.
type Phase string

const (
	PhaseRequested       Phase = "requested"
	PhaseAwaitingPayment Phase = "awaiting_payment"
	PhaseInProgress      Phase = "in_progress"
	PhaseDelivered       Phase = "delivered"
	PhaseCompleted       Phase = "completed"
	PhaseRejected        Phase = "rejected"
	PhaseCancelled       Phase = "cancelled"
	PhaseUnknown         Phase = "unknown"
)

// Phase derives the lifecycle position of o.
func (o Order) Phase() Phase {
	switch o.Status {
	case StatusRequested:
		return PhaseRequested
	case StatusPending:
		switch {
		case o.Delivered():
			return PhaseDelivered
		case o.Paid():
			return PhaseInProgress
		default:
			return PhaseAwaitingPayment
		}
	case StatusCompleted:
		return PhaseCompleted
	case StatusRejected:
		return PhaseRejected
	case StatusCancelled:
		return PhaseCancelled
	}
	return PhaseUnknown
}

// Role is the viewer's relationship to an order.
type Role int

const (
	RoleNeither Role = iota
	RoleBuyer
	RoleSeller
)

func (r Role) String() string {
	switch r {
	case RoleBuyer:
		return "buyer"
	case RoleSeller:
		return "seller"
	}
	return "neither"
}

// RoleOf computes the role userID plays on o.
func RoleOf(o Order, userID string) Role {
	switch {
	case userID == "":
		return RoleNeither
	case userID == o.BuyerID:
		return RoleBuyer
	case userID == o.SellerID:
		return RoleSeller
	}
	return RoleNeither
}

// ErrInvariant is wrapped by Validate failures.
var ErrInvariant = errors.New("order invariant violated")

// Validate checks the timestamp/status invariants of a persisted order.
func Validate(o Order) error {
	if !o.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvariant, o.Status)
	}
	if (o.CompletedAt != nil) != (o.Status == StatusCompleted) {
		return fmt.Errorf("%w: completed_at must be set exactly when status is completed", ErrInvariant)
	}
	if o.PaidAt != nil {
		if o.Status != StatusPending && o.Status != StatusCompleted {
			return fmt.Errorf("%w: paid order in status %s", ErrInvariant, o.Status)
		}
		if o.AcceptedAt == nil {
			return fmt.Errorf("%w: paid before acceptance", ErrInvariant)
		}
	}
	if o.DeliveredAt != nil && o.PaidAt == nil {
		return fmt.Errorf("%w: delivered before payment", ErrInvariant)
	}
	if o.Price < 0 {
		return fmt.Errorf("%w: negative price", ErrInvariant)
	}
	return nil
}
