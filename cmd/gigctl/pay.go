package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sudo-init-do/gighub/internal/gateway"
	"github.com/sudo-init-do/gighub/internal/models"
	"github.com/sudo-init-do/gighub/internal/order"
	"github.com/sudo-init-do/gighub/internal/payment"
)

func (a *app) handshake(appURL string) *payment.Handshake {
	refresh := func(ctx context.Context) error {
		orders, err := a.api.Orders().List(ctx, gateway.ListBought)
		if err != nil {
			return err
		}
		fmt.Printf("Dashboard: %d active orders\n", order.Summarize(orders).Active)
		return nil
	}
	return payment.NewHandshake(a.session.Storage(), a.api.Orders(), appURL, refresh, a.log)
}

func printResult(res payment.Result) error {
	switch res.Outcome {
	case payment.OutcomeConfirmed:
		fmt.Printf("Payment confirmed for order %s\n", res.OrderID)
	case payment.OutcomeAlreadyConfirmed:
		fmt.Printf("Payment for order %s was already confirmed\n", res.OrderID)
	default:
		return fmt.Errorf("payment for order %s failed: %w", res.OrderID, res.Err)
	}
	if res.PaidAt != nil {
		fmt.Printf("Paid at %s\n", res.PaidAt.Local().Format(time.RFC1123))
	}
	return nil
}

// cmdPay opens checkout. With -listen the return is caught on a loopback
// listener; otherwise the browser lands on the web app and the return URL
// can be handed to pay-return.
func cmdPay(ctx context.Context, a *app, args []string) error {
	id, err := a.require(models.RoleClient)
	if err != nil {
		return err
	}
	var listen string
	of, err := parseOrderFlags("pay", args, func(fs *flag.FlagSet) {
		fs.StringVar(&listen, "listen", "", "loopback address to receive the return, e.g. 127.0.0.1:0")
	})
	if err != nil {
		return err
	}
	o, err := a.api.Orders().Get(ctx, of.orderID)
	if err != nil {
		return err
	}
	role := order.RoleOf(*o, id.ID)

	if listen == "" {
		url, err := a.handshake(a.cfg.Checkout.AppURL).Begin(ctx, *o, role)
		if err != nil {
			return err
		}
		fmt.Printf("Open to pay:\n  %s\nThen run: gigctl pay-return -url <the address you land on>\n", url)
		return nil
	}

	ln, err := net.Listen("tcp", listen)
	if err != nil {
		return err
	}
	hs := a.handshake("http://" + ln.Addr().String())
	url, err := hs.Begin(ctx, *o, role)
	if err != nil {
		ln.Close()
		return err
	}
	fmt.Printf("Open to pay:\n  %s\nWaiting for the return on %s ...\n", url, ln.Addr())

	results := make(chan payment.Result, 1)
	srv := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := payment.ParseReturn(r.URL.String())
			if err != nil {
				http.NotFound(w, r)
				return
			}
			res := hs.Return(r.Context(), p)
			if res.Outcome == payment.OutcomeFailed {
				fmt.Fprintln(w, "Payment was not completed. You can close this tab.")
			} else {
				fmt.Fprintln(w, "Payment confirmed. You can close this tab.")
			}
			select {
			case results <- res:
			default:
			}
		}),
	}

	g, gctx := errgroup.WithContext(ctx)
	var res payment.Result
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		select {
		case res = <-results:
			return nil
		case <-gctx.Done():
			return gctx.Err()
		}
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return printResult(res)
}

// cmdPayReturn completes a checkout started in an earlier run. The pending
// order comes from the persisted marker.
func cmdPayReturn(ctx context.Context, a *app, args []string) error {
	if _, err := a.require(models.RoleClient); err != nil {
		return err
	}
	fs := flag.NewFlagSet("pay-return", flag.ContinueOnError)
	raw := fs.String("url", "", "address the checkout returned to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	p, err := payment.ParseReturn(*raw)
	if err != nil {
		return err
	}
	return printResult(a.handshake(a.cfg.Checkout.AppURL).Return(ctx, p))
}
