package alerts

import "time"

// Task type constants
const (
	TaskOrderRequested = "order:requested"
	TaskOrderAccepted  = "order:accepted"
	TaskOrderRejected  = "order:rejected"
	TaskOrderPaid      = "order:paid"
	TaskOrderDelivered = "order:delivered"
	TaskOrderCompleted = "order:completed"
	TaskOrderCancelled = "order:cancelled"
	TaskMessageNew     = "message:new"
)

// Queue names
const (
	QueueOrders   = "orders"
	QueueMessages = "messages"
)

// OrderEvent is the payload of every order:* task. Recipient is the
// participant who did not cause the change.
type OrderEvent struct {
	OrderID   string    `json:"order_id"`
	GigTitle  string    `json:"gig_title"`
	BuyerID   string    `json:"buyer_id"`
	SellerID  string    `json:"seller_id"`
	ActorID   string    `json:"actor_id"`
	Recipient string    `json:"recipient"`
	Amount    int64     `json:"amount"`
	Reason    string    `json:"reason,omitempty"`
	SentAt    time.Time `json:"sent_at"`
}

// MessageEvent is sent to the recipient of a new chat message
type MessageEvent struct {
	MessageID string    `json:"message_id"`
	SenderID  string    `json:"sender_id"`
	Recipient string    `json:"recipient"`
	Preview   string    `json:"preview"`
	SentAt    time.Time `json:"sent_at"`
}
