package gateway

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/sudo-init-do/gighub/internal/models"
)

// GigInput is the editable part of a gig.
type GigInput struct {
	Title            string   `json:"title" validate:"required,min=3,max=200"`
	Description      string   `json:"description" validate:"required"`
	Category         string   `json:"category,omitempty" validate:"omitempty,max=100"`
	Price            int64    `json:"price" validate:"required,gt=0"`
	DeliveryTimeDays int      `json:"delivery_time_days" validate:"required,gte=1,lte=365"`
	Images           []string `json:"images,omitempty" validate:"omitempty,dive,url"`
}

// GigQuery narrows a gig listing.
type GigQuery struct {
	Query           string
	Category        string
	SellerID        string
	MinPrice        int64
	MaxPrice        int64
	MaxDeliveryDays int
	Limit           int
	Offset          int
}

func (q GigQuery) values() url.Values {
	v := url.Values{}
	set := func(k, s string) {
		if s != "" {
			v.Set(k, s)
		}
	}
	setInt := func(k string, n int64) {
		if n > 0 {
			v.Set(k, strconv.FormatInt(n, 10))
		}
	}
	set("q", q.Query)
	set("category", q.Category)
	set("seller_id", q.SellerID)
	setInt("min_price", q.MinPrice)
	setInt("max_price", q.MaxPrice)
	setInt("max_delivery_days", int64(q.MaxDeliveryDays))
	setInt("limit", int64(q.Limit))
	setInt("offset", int64(q.Offset))
	return v
}

// GigAPI covers /gigs.
type GigAPI struct{ c *Client }

func (g *GigAPI) List(ctx context.Context, q GigQuery) ([]models.Gig, error) {
	var out []models.Gig
	if err := g.c.do(ctx, http.MethodGet, "/gigs", q.values(), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Mine lists the caller's own gigs, inactive ones included.
func (g *GigAPI) Mine(ctx context.Context) ([]models.Gig, error) {
	var out []models.Gig
	if err := g.c.do(ctx, http.MethodGet, "/gigs/my-gigs", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (g *GigAPI) Get(ctx context.Context, gigID string) (*models.Gig, error) {
	id, err := escape(gigID)
	if err != nil {
		return nil, err
	}
	var out models.Gig
	if err := g.c.do(ctx, http.MethodGet, "/gigs/"+id, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *GigAPI) Create(ctx context.Context, in GigInput) (*models.Gig, error) {
	if err := ValidateRequest(in); err != nil {
		return nil, err
	}
	var out models.Gig
	if err := g.c.do(ctx, http.MethodPost, "/gigs", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (g *GigAPI) Update(ctx context.Context, gigID string, in GigInput) (*models.Gig, error) {
	id, err := escape(gigID)
	if err != nil {
		return nil, err
	}
	if err := ValidateRequest(in); err != nil {
		return nil, err
	}
	var out models.Gig
	if err := g.c.do(ctx, http.MethodPut, "/gigs/"+id, nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete deactivates a gig. Existing orders keep their snapshot.
func (g *GigAPI) Delete(ctx context.Context, gigID string) error {
	id, err := escape(gigID)
	if err != nil {
		return err
	}
	return g.c.do(ctx, http.MethodDelete, "/gigs/"+id, nil, nil, nil)
}
