package gateway

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/sudo-init-do/gighub/internal/order"
)

// CreateOrderRequest requests a gig.
type CreateOrderRequest struct {
	GigID        string `json:"gig_id" validate:"required"`
	Requirements string `json:"requirements,omitempty" validate:"max=5000"`
}

// CancelRequest carries an optional reason.
type CancelRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// PaymentRequest tells the server where the processor should send the
// browser back.
type PaymentRequest struct {
	SuccessURL string `json:"success_url,omitempty" validate:"omitempty,url"`
	CancelURL  string `json:"cancel_url,omitempty" validate:"omitempty,url"`
}

// Checkout is the processor session opened for an order.
type Checkout struct {
	OrderID     string `json:"order_id"`
	SessionID   string `json:"session_id"`
	CheckoutURL string `json:"checkout_url"`
}

// PaymentConfirmation is the outcome of confirm-payment.
type PaymentConfirmation struct {
	Order            order.Order `json:"order"`
	PaidAt           *time.Time  `json:"paid_at"`
	AlreadyConfirmed bool        `json:"already_confirmed"`
}

// ApproveDeliveryRequest optionally reviews the work in the same call.
type ApproveDeliveryRequest struct {
	Rating  int    `json:"rating,omitempty" validate:"omitempty,gte=1,lte=5"`
	Comment string `json:"comment,omitempty" validate:"max=1000"`
}

// ListType selects which side of the caller's orders to list.
type ListType string

const (
	ListAll    ListType = "all"
	ListBought ListType = "bought"
	ListSold   ListType = "sold"
)

// OrderAPI covers /orders.
type OrderAPI struct{ c *Client }

func (o *OrderAPI) Create(ctx context.Context, req CreateOrderRequest) (*order.Order, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	var out order.Order
	if err := o.c.do(ctx, http.MethodPost, "/orders", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (o *OrderAPI) Get(ctx context.Context, orderID string) (*order.Order, error) {
	id, err := escape(orderID)
	if err != nil {
		return nil, err
	}
	var out order.Order
	if err := o.c.do(ctx, http.MethodGet, "/orders/"+id, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (o *OrderAPI) List(ctx context.Context, t ListType) ([]order.Order, error) {
	var q url.Values
	if t != "" {
		q = url.Values{"type": {string(t)}}
	}
	var out []order.Order
	if err := o.c.do(ctx, http.MethodGet, "/orders", q, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (o *OrderAPI) transition(ctx context.Context, orderID, verb string, body any) (*order.Order, error) {
	id, err := escape(orderID)
	if err != nil {
		return nil, err
	}
	var out order.Order
	if err := o.c.do(ctx, http.MethodPut, "/orders/"+id+"/"+verb, nil, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (o *OrderAPI) Accept(ctx context.Context, orderID string) (*order.Order, error) {
	return o.transition(ctx, orderID, "accept", nil)
}

func (o *OrderAPI) Reject(ctx context.Context, orderID string) (*order.Order, error) {
	return o.transition(ctx, orderID, "reject", nil)
}

// Approve is the older name for Accept; both reach the same transition.
func (o *OrderAPI) Approve(ctx context.Context, orderID string) (*order.Order, error) {
	return o.transition(ctx, orderID, "approve", nil)
}

func (o *OrderAPI) Cancel(ctx context.Context, orderID string, req CancelRequest) (*order.Order, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	return o.transition(ctx, orderID, "cancel", req)
}

func (o *OrderAPI) MarkWorkDone(ctx context.Context, orderID string) (*order.Order, error) {
	return o.transition(ctx, orderID, "mark-work-done", nil)
}

func (o *OrderAPI) ApproveDelivery(ctx context.Context, orderID string, req ApproveDeliveryRequest) (*order.Order, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	return o.transition(ctx, orderID, "approve-delivery", req)
}

// CreatePayment opens a checkout session and returns where to send the user.
func (o *OrderAPI) CreatePayment(ctx context.Context, orderID string, req PaymentRequest) (*Checkout, error) {
	id, err := escape(orderID)
	if err != nil {
		return nil, err
	}
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	var out Checkout
	if err := o.c.do(ctx, http.MethodPost, "/orders/"+id+"/payment", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmPayment asks the server to verify the processor outcome. Repeats
// answer AlreadyConfirmed with the original paid_at.
func (o *OrderAPI) ConfirmPayment(ctx context.Context, orderID string) (*PaymentConfirmation, error) {
	id, err := escape(orderID)
	if err != nil {
		return nil, err
	}
	var out PaymentConfirmation
	if err := o.c.do(ctx, http.MethodPost, "/orders/"+id+"/confirm-payment", nil, nil, &out); err != nil {
		return nil, err
	}
	if out.PaidAt == nil {
		out.PaidAt = out.Order.PaidAt
	}
	return &out, nil
}
