package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/sudo-init-do/gighub/internal/gateway"
	"github.com/sudo-init-do/gighub/internal/models"
)

func cmdGigs(ctx context.Context, a *app, args []string) error {
	fs := flag.NewFlagSet("gigs", flag.ContinueOnError)
	var q gateway.GigQuery
	fs.StringVar(&q.Query, "q", "", "search text")
	fs.StringVar(&q.Category, "category", "", "category")
	fs.Int64Var(&q.MaxPrice, "max-price", 0, "maximum price")
	mine := fs.Bool("mine", false, "list my own gigs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var (
		gigs []models.Gig
		err  error
	)
	if *mine {
		if _, err := a.require(models.RoleFreelancer); err != nil {
			return err
		}
		gigs, err = a.api.Gigs().Mine(ctx)
	} else {
		gigs, err = a.api.Gigs().List(ctx, q)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tPRICE\tDAYS\tRATING\tSTATUS")
	for _, g := range gigs {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%.1f (%d)\t%s\n", g.ID, g.Title, g.Price, g.DeliveryTimeDays, g.AvgRating, g.ReviewCount, g.Status)
	}
	return w.Flush()
}

func cmdGigCreate(ctx context.Context, a *app, args []string) error {
	if _, err := a.require(models.RoleFreelancer); err != nil {
		return err
	}
	fs := flag.NewFlagSet("gig-create", flag.ContinueOnError)
	var in gateway.GigInput
	fs.StringVar(&in.Title, "title", "", "title")
	fs.StringVar(&in.Description, "desc", "", "description")
	fs.StringVar(&in.Category, "category", "", "category")
	fs.Int64Var(&in.Price, "price", 0, "price")
	fs.IntVar(&in.DeliveryTimeDays, "days", 0, "delivery time in days")
	if err := fs.Parse(args); err != nil {
		return err
	}
	g, err := a.api.Gigs().Create(ctx, in)
	if err != nil {
		return err
	}
	fmt.Printf("Created gig %s\n", g.ID)
	return nil
}
