// Package server assembles the echo application: middleware, health checks
// and every /api route.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/sudo-init-do/gighub/internal/alerts"
	"github.com/sudo-init-do/gighub/internal/auth"
	"github.com/sudo-init-do/gighub/internal/httpx"
	"github.com/sudo-init-do/gighub/internal/marketplace"
	"github.com/sudo-init-do/gighub/internal/messaging"
	mware "github.com/sudo-init-do/gighub/internal/middleware"
	"github.com/sudo-init-do/gighub/internal/models"
	"github.com/sudo-init-do/gighub/internal/payments"
	"github.com/sudo-init-do/gighub/internal/store"
)

// Deps are the collaborators the routes need.
type Deps struct {
	Store    store.Store
	Tokens   *auth.Tokens
	Provider payments.Provider
	Notifier alerts.Notifier
	Market   marketplace.Options
	Log      zerolog.Logger
	// AuthRateLimit is requests per second per IP on /api/auth; zero uses 20.
	AuthRateLimit float64
}

// New builds the echo instance.
func New(d Deps) *echo.Echo {
	if d.Notifier == nil {
		d.Notifier = alerts.NopNotifier{}
	}
	if d.AuthRateLimit <= 0 {
		d.AuthRateLimit = 20
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = httpx.Validator{}

	// Basic middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURIPath: true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			ev := d.Log.Info()
			if v.Status >= http.StatusInternalServerError || v.Error != nil {
				ev = d.Log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("path", v.URIPath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Msg("request")
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
	}))

	// Health and root routes
	e.GET("/", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok", "service": "gighub"})
	})
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, echo.Map{"status": "ok"})
	})
	e.GET("/ready", func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := d.Store.Ping(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "not_ready", "error": "store unreachable"})
		}
		return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
	})

	authH := auth.NewHandler(d.Store, d.Tokens, d.Log)
	market := marketplace.NewHandler(d.Store, d.Provider, d.Notifier, d.Market, d.Log)
	msgs := messaging.NewHandler(d.Store, messaging.NewHub(d.Log), d.Notifier, d.Log)

	jwt := mware.JWT(d.Tokens)
	client := mware.RequireRoles(models.RoleClient)
	freelancer := mware.RequireRoles(models.RoleFreelancer)

	api := e.Group("/api")

	// Auth routes with per-IP rate limiting to protect signup/login from abuse
	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(d.AuthRateLimit))))
	authGroup.POST("/register", authH.Register)
	authGroup.POST("/login", authH.Login)
	authGroup.GET("/me", authH.Me, jwt)
	authGroup.GET("/profile/:id", authH.Profile)
	authGroup.PUT("/profile/:id", authH.UpdateProfile, jwt)

	// Gigs: browsing is public, editing is for freelancers
	api.GET("/gigs", market.ListGigs)
	api.GET("/gigs/my-gigs", market.MyGigs, jwt, freelancer)
	api.GET("/gigs/:id", market.GetGig)
	api.POST("/gigs", market.CreateGig, jwt, freelancer)
	api.PUT("/gigs/:id", market.UpdateGig, jwt, freelancer)
	api.DELETE("/gigs/:id", market.DeleteGig, jwt, freelancer)

	// Orders: participant checks happen in the handlers
	orders := api.Group("/orders", jwt)
	orders.POST("", market.CreateOrder, client)
	orders.GET("", market.ListOrders)
	orders.GET("/:id", market.GetOrder)
	orders.PUT("/:id/accept", market.AcceptOrder)
	orders.PUT("/:id/approve", market.ApproveOrder)
	orders.PUT("/:id/reject", market.RejectOrder)
	orders.PUT("/:id/cancel", market.CancelOrder)
	orders.PUT("/:id/mark-work-done", market.MarkWorkDone)
	orders.PUT("/:id/approve-delivery", market.ApproveDelivery)
	orders.POST("/:id/payment", market.CreatePayment)
	orders.POST("/:id/confirm-payment", market.ConfirmPayment)

	// Processor callback, authenticated by signature
	api.POST("/payments/webhook", market.PaymentWebhook)

	api.POST("/reviews", market.CreateReview, jwt)
	api.GET("/reviews/gig/:id", market.GigReviews)
	api.GET("/reviews/user/:id", market.UserReviews)

	m := api.Group("/messages", jwt)
	m.POST("", msgs.SendMessage)
	m.GET("/conversations", msgs.Conversations)
	m.GET("/:userId", msgs.Thread)
	m.GET("/:userId/ws", msgs.ThreadWS)

	return e
}
