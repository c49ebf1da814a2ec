package marketplace

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/sudo-init-do/gighub/internal/httpx"
	"github.com/sudo-init-do/gighub/internal/models"
	"github.com/sudo-init-do/gighub/internal/store"
)

// GigRequest is the body of create and update.
type GigRequest struct {
	Title            string   `json:"title" validate:"required,min=3,max=200"`
	Description      string   `json:"description" validate:"required"`
	Category         string   `json:"category" validate:"omitempty,max=100"`
	Price            int64    `json:"price" validate:"required,gt=0"`
	DeliveryTimeDays int      `json:"delivery_time_days" validate:"required,gte=1,lte=365"`
	Images           []string `json:"images" validate:"omitempty,dive,url"`
}

const (
	defaultGigLimit = 20
	maxGigLimit     = 100
)

// ===== CreateGig =====
func (h *Handler) CreateGig(c echo.Context) error {
	var req GigRequest
	if ok, err := httpx.Bind(c, &req); !ok {
		return err
	}
	now := h.now()
	g := models.Gig{
		SellerID:         httpx.UserID(c),
		Title:            strings.TrimSpace(req.Title),
		Description:      req.Description,
		Category:         req.Category,
		Price:            req.Price,
		DeliveryTimeDays: req.DeliveryTimeDays,
		Images:           req.Images,
		Status:           models.GigActive,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := h.store.CreateGig(c.Request().Context(), &g); err != nil {
		h.log.Error().Err(err).Msg("create gig")
		return httpx.Fail(c, http.StatusInternalServerError, "could not create gig")
	}
	return httpx.Data(c, http.StatusCreated, g)
}

// ===== ListGigs =====
// Optional filters: q, category, seller_id, min_price, max_price,
// max_delivery_days, limit, offset.
func (h *Handler) ListGigs(c echo.Context) error {
	f := models.GigFilter{
		Query:    strings.TrimSpace(c.QueryParam("q")),
		Category: c.QueryParam("category"),
		SellerID: c.QueryParam("seller_id"),
		Limit:    defaultGigLimit,
	}
	var bad []string
	parseInt := func(name string, dst *int64) {
		if s := c.QueryParam(name); s != "" {
			v, err := strconv.ParseInt(s, 10, 64)
			if err != nil || v < 0 {
				bad = append(bad, name)
				return
			}
			*dst = v
		}
	}
	var maxDays, limit, offset int64
	parseInt("min_price", &f.MinPrice)
	parseInt("max_price", &f.MaxPrice)
	parseInt("max_delivery_days", &maxDays)
	parseInt("limit", &limit)
	parseInt("offset", &offset)
	if len(bad) > 0 {
		fields := make(map[string]string, len(bad))
		for _, name := range bad {
			fields[name] = "must be a non-negative integer"
		}
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid query", "fields": fields})
	}
	f.MaxDeliveryDays = int(maxDays)
	if limit > 0 {
		f.Limit = int(min(limit, maxGigLimit))
	}
	f.Offset = int(offset)

	gigs, err := h.store.ListGigs(c.Request().Context(), f)
	if err != nil {
		h.log.Error().Err(err).Msg("list gigs")
		return httpx.Fail(c, http.StatusInternalServerError, "failed to list gigs")
	}
	return httpx.Data(c, http.StatusOK, gigs)
}

// ===== MyGigs =====
func (h *Handler) MyGigs(c echo.Context) error {
	gigs, err := h.store.ListGigs(c.Request().Context(), models.GigFilter{
		SellerID:        httpx.UserID(c),
		IncludeInactive: true,
	})
	if err != nil {
		return httpx.Fail(c, http.StatusInternalServerError, "failed to list gigs")
	}
	return httpx.Data(c, http.StatusOK, gigs)
}

// ===== GetGig =====
func (h *Handler) GetGig(c echo.Context) error {
	g, err := h.store.GigByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.gigError(c, err)
	}
	return httpx.Data(c, http.StatusOK, g)
}

// ===== UpdateGig =====
func (h *Handler) UpdateGig(c echo.Context) error {
	var req GigRequest
	if ok, err := httpx.Bind(c, &req); !ok {
		return err
	}
	ctx := c.Request().Context()
	g, ok, err := h.ownGig(c)
	if !ok {
		return err
	}
	g.Title = strings.TrimSpace(req.Title)
	g.Description = req.Description
	g.Category = req.Category
	g.Price = req.Price
	g.DeliveryTimeDays = req.DeliveryTimeDays
	g.Images = req.Images
	g.UpdatedAt = h.now()
	if err := h.store.UpdateGig(ctx, g); err != nil {
		return h.gigError(c, err)
	}
	return httpx.Data(c, http.StatusOK, g)
}

// ===== DeleteGig =====
// Gigs are deactivated rather than removed so existing orders keep their
// reference.
func (h *Handler) DeleteGig(c echo.Context) error {
	g, ok, err := h.ownGig(c)
	if !ok {
		return err
	}
	g.Status = models.GigInactive
	g.UpdatedAt = h.now()
	if err := h.store.UpdateGig(c.Request().Context(), g); err != nil {
		return h.gigError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// ownGig loads the path gig and checks the caller owns it. When ok is false
// the response has been written, as with httpx.Bind.
func (h *Handler) ownGig(c echo.Context) (models.Gig, bool, error) {
	g, err := h.store.GigByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return g, false, h.gigError(c, err)
	}
	if g.SellerID != httpx.UserID(c) {
		return g, false, httpx.Fail(c, http.StatusForbidden, "not your gig")
	}
	return g, true, nil
}

func (h *Handler) gigError(c echo.Context, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return httpx.Fail(c, http.StatusNotFound, "gig not found")
	}
	h.log.Error().Err(err).Msg("gig store")
	return httpx.Fail(c, http.StatusInternalServerError, "gig operation failed")
}
