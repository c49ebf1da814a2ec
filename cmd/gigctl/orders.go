package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/sudo-init-do/gighub/internal/gateway"
	"github.com/sudo-init-do/gighub/internal/models"
	"github.com/sudo-init-do/gighub/internal/order"
	"github.com/sudo-init-do/gighub/internal/orderflow"
	"github.com/sudo-init-do/gighub/internal/reconcile"
)

var errNoOrder = errors.New("-order is required")

func cmdOrderCreate(ctx context.Context, a *app, args []string) error {
	if _, err := a.require(models.RoleClient); err != nil {
		return err
	}
	fs := flag.NewFlagSet("order", flag.ContinueOnError)
	var req gateway.CreateOrderRequest
	fs.StringVar(&req.GigID, "gig", "", "gig id")
	fs.StringVar(&req.Requirements, "requirements", "", "what you need")
	if err := fs.Parse(args); err != nil {
		return err
	}
	o, err := a.api.Orders().Create(ctx, req)
	if err != nil {
		return err
	}
	fmt.Printf("Requested order %s for %q at %d\n", o.ID, o.Gig.Title, o.Price)
	return nil
}

func cmdOrders(ctx context.Context, a *app, args []string) error {
	if _, err := a.require(""); err != nil {
		return err
	}
	fs := flag.NewFlagSet("orders", flag.ContinueOnError)
	listType := fs.String("type", string(gateway.ListAll), "all, bought or sold")
	view := fs.String("view", string(order.ViewAll), "all, pending, active or completed")
	if err := fs.Parse(args); err != nil {
		return err
	}

	list := reconcile.NewOrderList()
	err := list.Refresh(ctx, func(ctx context.Context) ([]order.Order, error) {
		return a.api.Orders().List(ctx, gateway.ListType(*listType))
	})
	if err != nil {
		return err
	}
	orders, _ := list.Snapshot()
	sum := order.Summarize(orders)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tGIG\tPRICE\tPHASE\tUPDATED")
	for _, o := range order.Filter(orders, order.View(*view)) {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", o.ID, o.Gig.Title, o.Price, o.Phase(), o.UpdatedAt.Local().Format("Jan 2 15:04"))
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\nrequested %d  active %d  completed %d  paid total %d\n", sum.Requested, sum.Active, sum.Completed, sum.TotalPaid)
	return nil
}

type orderFlags struct {
	fs      *flag.FlagSet
	orderID string
}

func parseOrderFlags(name string, args []string, extra func(*flag.FlagSet)) (*orderFlags, error) {
	f := &orderFlags{fs: flag.NewFlagSet(name, flag.ContinueOnError)}
	f.fs.StringVar(&f.orderID, "order", "", "order id")
	if extra != nil {
		extra(f.fs)
	}
	if err := f.fs.Parse(args); err != nil {
		return nil, err
	}
	if f.orderID == "" {
		return nil, errNoOrder
	}
	return f, nil
}

func (a *app) flow(ctx context.Context, orderID string, onChange func(order.Order)) (*orderflow.Flow, error) {
	id, err := a.require("")
	if err != nil {
		return nil, err
	}
	f := orderflow.New(a.api.Orders(), orderID, id.ID, reconcile.NewOrderView(onChange), a.log)
	if err := f.Load(ctx); err != nil {
		return nil, err
	}
	return f, nil
}

func printOrder(o order.Order, role order.Role) {
	fmt.Printf("Order %s  %s\n", o.ID, o.Phase())
	fmt.Printf("  gig:      %s (%d days)\n", o.Gig.Title, o.Gig.DeliveryTimeDays)
	fmt.Printf("  price:    %d\n", o.Price)
	fmt.Printf("  you are:  %s\n", role)
	if o.Requirements != "" {
		fmt.Printf("  needs:    %s\n", o.Requirements)
	}
	if o.PaidAt != nil {
		fmt.Printf("  paid:     %s\n", o.PaidAt.Local().Format("Jan 2 15:04:05"))
	}
	if o.CancelReason != "" {
		fmt.Printf("  reason:   %s\n", o.CancelReason)
	}
}

func cmdShow(ctx context.Context, a *app, args []string) error {
	of, err := parseOrderFlags("show", args, nil)
	if err != nil {
		return err
	}
	f, err := a.flow(ctx, of.orderID, nil)
	if err != nil {
		return err
	}
	o, _ := f.View().Snapshot()
	printOrder(o, f.Role())
	if allowed := f.Allowed(); len(allowed) > 0 {
		names := make([]string, len(allowed))
		for i, act := range allowed {
			names[i] = string(act)
		}
		fmt.Printf("  actions:  %s\n", strings.Join(names, ", "))
	}
	return nil
}

func cmdAct(ctx context.Context, a *app, args []string) error {
	var (
		action string
		in     orderflow.Input
	)
	of, err := parseOrderFlags("act", args, func(fs *flag.FlagSet) {
		fs.StringVar(&action, "action", "", "accept, reject, cancel, mark_work_done or approve_delivery")
		fs.StringVar(&in.Reason, "reason", "", "cancel reason")
		fs.IntVar(&in.Rating, "rating", 0, "1-5, with approve_delivery")
		fs.StringVar(&in.Comment, "comment", "", "review comment")
	})
	if err != nil {
		return err
	}
	f, err := a.flow(ctx, of.orderID, nil)
	if err != nil {
		return err
	}
	o, err := f.Do(ctx, order.Action(action), in)
	if err != nil {
		return err
	}
	printOrder(o, f.Role())
	return nil
}

// cmdWatch follows an order until interrupted.
func cmdWatch(ctx context.Context, a *app, args []string) error {
	of, err := parseOrderFlags("watch", args, nil)
	if err != nil {
		return err
	}
	var last order.Phase
	f, err := a.flow(ctx, of.orderID, func(o order.Order) {
		if p := o.Phase(); p != last {
			last = p
			fmt.Printf("%s  %s\n", o.UpdatedAt.Local().Format("15:04:05"), p)
		}
	})
	if err != nil {
		return err
	}
	return f.Watch(ctx, a.cfg.Client.OrderPoll, func(err error) {
		a.log.Warn().Err(err).Msg("refresh failed")
	})
}
