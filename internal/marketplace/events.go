package marketplace

import (
	"context"

	"github.com/sudo-init-do/gighub/internal/alerts"
	"github.com/sudo-init-do/gighub/internal/order"
)

// notify tells the participant who did not act. Best effort.
func (h *Handler) notify(ctx context.Context, task string, o order.Order, actorID string) {
	recipient := o.SellerID
	if actorID == o.SellerID {
		recipient = o.BuyerID
	}
	ev := alerts.OrderEvent{
		OrderID:   o.ID,
		GigTitle:  o.Gig.Title,
		BuyerID:   o.BuyerID,
		SellerID:  o.SellerID,
		ActorID:   actorID,
		Recipient: recipient,
		Amount:    o.Price,
		Reason:    o.CancelReason,
		SentAt:    h.now(),
	}
	if err := h.notifier.OrderEvent(context.WithoutCancel(ctx), task, ev); err != nil {
		h.log.Warn().Err(err).Str("task", task).Str("order_id", o.ID).Msg("notification not sent")
	}
}
