// Package marketplace serves gigs, orders, payments and reviews. Every order
// transition goes through order.Apply, so the rules the client predicts with
// are the rules enforced here.
package marketplace

import (
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sudo-init-do/gighub/internal/alerts"
	"github.com/sudo-init-do/gighub/internal/payments"
	"github.com/sudo-init-do/gighub/internal/store"
)

// Handler holds the marketplace dependencies.
type Handler struct {
	store         store.Store
	provider      payments.Provider
	notifier      alerts.Notifier
	appURL        string
	webhookSecret string
	currency      string
	log           zerolog.Logger
	now           func() time.Time
}

// Options configures a Handler beyond its required collaborators.
type Options struct {
	// AppURL is the front-end origin used for default checkout return URLs.
	AppURL        string
	WebhookSecret string
	Currency      string
}

func NewHandler(s store.Store, provider payments.Provider, notifier alerts.Notifier, opts Options, log zerolog.Logger) *Handler {
	if notifier == nil {
		notifier = alerts.NopNotifier{}
	}
	if opts.Currency == "" {
		opts.Currency = "usd"
	}
	return &Handler{
		store:         s,
		provider:      provider,
		notifier:      notifier,
		appURL:        strings.TrimRight(opts.AppURL, "/"),
		webhookSecret: opts.WebhookSecret,
		currency:      opts.Currency,
		log:           log,
		now:           func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}
