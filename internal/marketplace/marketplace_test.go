package marketplace

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/gighub/internal/alerts"
	"github.com/sudo-init-do/gighub/internal/httpx"
	"github.com/sudo-init-do/gighub/internal/models"
	"github.com/sudo-init-do/gighub/internal/order"
	"github.com/sudo-init-do/gighub/internal/payments"
	"github.com/sudo-init-do/gighub/internal/store"
)

type fakeProvider struct {
	mu       sync.Mutex
	sessions map[string]payments.Session
	statusN  int
}

func (p *fakeProvider) CreateCheckout(_ context.Context, req payments.CheckoutRequest) (payments.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessions == nil {
		p.sessions = map[string]payments.Session{}
	}
	for _, s := range p.sessions {
		if s.OrderID == req.OrderID && s.Status == payments.StatusOpen {
			return s, nil
		}
	}
	id := fmt.Sprintf("cs_%d", len(p.sessions)+1)
	s := payments.Session{ID: id, OrderID: req.OrderID, Amount: req.Amount, Status: payments.StatusOpen, URL: "http://checkout/" + id}
	p.sessions[id] = s
	return s, nil
}

func (p *fakeProvider) SessionStatus(_ context.Context, id string) (payments.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statusN++
	s, ok := p.sessions[id]
	if !ok {
		return s, payments.ErrSessionNotFound
	}
	return s, nil
}

func (p *fakeProvider) pay(orderID string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	for id, s := range p.sessions {
		if s.OrderID == orderID {
			s.Status = payments.StatusPaid
			p.sessions[id] = s
			return id
		}
	}
	return ""
}

type recordingNotifier struct {
	mu    sync.Mutex
	tasks []string
}

func (n *recordingNotifier) OrderEvent(_ context.Context, task string, _ alerts.OrderEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tasks = append(n.tasks, task)
	return nil
}

func (n *recordingNotifier) NewMessage(context.Context, alerts.MessageEvent) error { return nil }

func (n *recordingNotifier) count(task string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, t := range n.tasks {
		if t == task {
			c++
		}
	}
	return c
}

type harness struct {
	t        *testing.T
	e        *echo.Echo
	handler  *Handler
	store    *store.MemoryStore
	provider *fakeProvider
	notifier *recordingNotifier
	buyer    models.User
	seller   models.User
	gig      models.Gig
}

const testSecret = "whsec_test"

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, store: store.NewMemoryStore(), provider: &fakeProvider{}, notifier: &recordingNotifier{}}
	mh := NewHandler(h.store, h.provider, h.notifier, Options{AppURL: "http://app", WebhookSecret: testSecret}, zerolog.Nop())

	e := echo.New()
	e.Validator = httpx.Validator{}
	asUser := func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			c.Set("user_id", c.Request().Header.Get("X-User"))
			return next(c)
		}
	}
	g := e.Group("", asUser)
	g.GET("/gigs", mh.ListGigs)
	g.GET("/gigs/my-gigs", mh.MyGigs)
	g.GET("/gigs/:id", mh.GetGig)
	g.POST("/gigs", mh.CreateGig)
	g.PUT("/gigs/:id", mh.UpdateGig)
	g.DELETE("/gigs/:id", mh.DeleteGig)
	g.POST("/orders", mh.CreateOrder)
	g.GET("/orders", mh.ListOrders)
	g.GET("/orders/:id", mh.GetOrder)
	g.PUT("/orders/:id/accept", mh.AcceptOrder)
	g.PUT("/orders/:id/approve", mh.ApproveOrder)
	g.PUT("/orders/:id/reject", mh.RejectOrder)
	g.PUT("/orders/:id/cancel", mh.CancelOrder)
	g.PUT("/orders/:id/mark-work-done", mh.MarkWorkDone)
	g.PUT("/orders/:id/approve-delivery", mh.ApproveDelivery)
	g.POST("/orders/:id/payment", mh.CreatePayment)
	g.POST("/orders/:id/confirm-payment", mh.ConfirmPayment)
	g.POST("/reviews", mh.CreateReview)
	g.GET("/reviews/gig/:id", mh.GigReviews)
	g.GET("/reviews/user/:id", mh.UserReviews)
	e.POST("/payments/webhook", mh.PaymentWebhook)
	h.e = e
	h.handler = mh

	ctx := context.Background()
	h.buyer = models.User{Email: "buyer@x.io", FullName: "Buyer", Role: models.RoleClient}
	h.seller = models.User{Email: "seller@x.io", FullName: "Seller", Role: models.RoleFreelancer}
	require.NoError(t, h.store.CreateUser(ctx, &h.buyer))
	require.NoError(t, h.store.CreateUser(ctx, &h.seller))
	h.gig = models.Gig{SellerID: h.seller.ID, Title: "Logo design", Description: "A logo", Price: 500, DeliveryTimeDays: 3, Status: models.GigActive}
	require.NoError(t, h.store.CreateGig(ctx, &h.gig))
	return h
}

func (h *harness) do(method, path, userID string, body any) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-User", userID)
	rec := httptest.NewRecorder()
	h.e.ServeHTTP(rec, req)
	return rec
}

func decodeData[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var env struct {
		Data T `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return env.Data
}

func (h *harness) createOrder() order.Order {
	rec := h.do(http.MethodPost, "/orders", h.buyer.ID, CreateOrderRequest{GigID: h.gig.ID})
	require.Equal(h.t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeData[order.Order](h.t, rec)
}

func (h *harness) transition(id, verb, userID string, body any) *httptest.ResponseRecorder {
	return h.do(http.MethodPut, "/orders/"+id+"/"+verb, userID, body)
}

func (h *harness) paidOrder() order.Order {
	o := h.createOrder()
	require.Equal(h.t, http.StatusOK, h.transition(o.ID, "accept", h.seller.ID, nil).Code)
	require.Equal(h.t, http.StatusOK, h.do(http.MethodPost, "/orders/"+o.ID+"/payment", h.buyer.ID, nil).Code)
	h.provider.pay(o.ID)
	rec := h.do(http.MethodPost, "/orders/"+o.ID+"/confirm-payment", h.buyer.ID, nil)
	require.Equal(h.t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeData[ConfirmPaymentResponse](h.t, rec).Order
}

func TestFullLifecycleWithReview(t *testing.T) {
	h := newHarness(t)

	o := h.createOrder()
	assert.Equal(t, order.StatusRequested, o.Status)
	assert.Equal(t, int64(500), o.Price)
	assert.Equal(t, "Logo design", o.Gig.Title)

	rec := h.transition(o.ID, "accept", h.seller.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	o = decodeData[order.Order](t, rec)
	assert.Equal(t, order.StatusPending, o.Status)
	assert.Nil(t, o.PaidAt)

	rec = h.do(http.MethodPost, "/orders/"+o.ID+"/payment", h.buyer.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	co := decodeData[CheckoutResponse](t, rec)
	assert.Equal(t, "http://checkout/"+co.SessionID, co.CheckoutURL)

	h.provider.pay(o.ID)
	rec = h.do(http.MethodPost, "/orders/"+o.ID+"/confirm-payment", h.buyer.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	conf := decodeData[ConfirmPaymentResponse](t, rec)
	require.NotNil(t, conf.PaidAt)
	assert.False(t, conf.AlreadyConfirmed)
	assert.Equal(t, order.StatusPending, conf.Order.Status)

	rec = h.transition(o.ID, "mark-work-done", h.seller.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = h.transition(o.ID, "approve-delivery", h.buyer.ID, ApproveDeliveryRequest{Rating: 5, Comment: "great"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	o = decodeData[order.Order](t, rec)
	assert.Equal(t, order.StatusCompleted, o.Status)
	require.NotNil(t, o.CompletedAt)
	require.NoError(t, order.Validate(o))

	rec = h.do(http.MethodGet, "/reviews/gig/"+h.gig.ID, "", nil)
	reviews := decodeData[[]models.Review](t, rec)
	require.Len(t, reviews, 1)
	assert.Equal(t, o.ID, reviews[0].OrderID)
	assert.Equal(t, 5, reviews[0].Rating)

	assert.Equal(t, 1, h.notifier.count(alerts.TaskOrderPaid))
	assert.Equal(t, 1, h.notifier.count(alerts.TaskOrderCompleted))
}

func TestTransitionsWithFixedClock(t *testing.T) {
	h := newHarness(t)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	h.handler.now = func() time.Time { return fixed }

	o := h.createOrder()
	require.True(t, o.UpdatedAt.Equal(fixed))

	rec := h.transition(o.ID, "accept", h.seller.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	accepted := decodeData[order.Order](t, rec)
	assert.Equal(t, order.StatusPending, accepted.Status)
	require.NotNil(t, accepted.AcceptedAt)
	assert.True(t, accepted.UpdatedAt.After(o.UpdatedAt))

	stored, err := h.store.OrderByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, stored.Status)

	h.do(http.MethodPost, "/orders/"+o.ID+"/payment", h.buyer.ID, nil)
	h.provider.pay(o.ID)
	rec = h.do(http.MethodPost, "/orders/"+o.ID+"/confirm-payment", h.buyer.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	conf := decodeData[ConfirmPaymentResponse](t, rec)
	assert.False(t, conf.AlreadyConfirmed)
	require.NotNil(t, conf.PaidAt)

	rec = h.do(http.MethodPost, "/orders/"+o.ID+"/confirm-payment", h.buyer.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeData[ConfirmPaymentResponse](t, rec).AlreadyConfirmed)
	assert.Equal(t, 1, h.notifier.count(alerts.TaskOrderPaid))
}

func TestConfirmPaymentIdempotent(t *testing.T) {
	h := newHarness(t)
	o := h.paidOrder()

	rec := h.do(http.MethodPost, "/orders/"+o.ID+"/confirm-payment", h.buyer.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	again := decodeData[ConfirmPaymentResponse](t, rec)
	assert.True(t, again.AlreadyConfirmed)
	require.NotNil(t, again.PaidAt)
	assert.True(t, o.PaidAt.Equal(*again.PaidAt))
	assert.Equal(t, 1, h.notifier.count(alerts.TaskOrderPaid))
}

func TestConfirmPaymentRequiresPaidSession(t *testing.T) {
	h := newHarness(t)
	o := h.createOrder()
	h.transition(o.ID, "accept", h.seller.ID, nil)

	rec := h.do(http.MethodPost, "/orders/"+o.ID+"/confirm-payment", h.buyer.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "no session yet")

	h.do(http.MethodPost, "/orders/"+o.ID+"/payment", h.buyer.ID, nil)
	rec = h.do(http.MethodPost, "/orders/"+o.ID+"/confirm-payment", h.buyer.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "session still open")

	stored, err := h.store.OrderByID(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.PaidAt)
}

func TestCreatePaymentRules(t *testing.T) {
	h := newHarness(t)
	o := h.createOrder()

	rec := h.do(http.MethodPost, "/orders/"+o.ID+"/payment", h.buyer.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "cannot pay before acceptance")

	accepted := decodeData[order.Order](t, h.transition(o.ID, "accept", h.seller.ID, nil))
	rec = h.do(http.MethodPost, "/orders/"+o.ID+"/payment", h.seller.ID, nil)
	assert.Equal(t, http.StatusConflict, rec.Code, "seller cannot pay")

	first := decodeData[CheckoutResponse](t, h.do(http.MethodPost, "/orders/"+o.ID+"/payment", h.buyer.ID, nil))
	second := decodeData[CheckoutResponse](t, h.do(http.MethodPost, "/orders/"+o.ID+"/payment", h.buyer.ID, nil))
	assert.Equal(t, first.SessionID, second.SessionID)

	stored, _ := h.store.OrderByID(context.Background(), o.ID)
	assert.Equal(t, first.SessionID, stored.CheckoutSessionID)
	assert.True(t, accepted.UpdatedAt.Equal(stored.UpdatedAt), "opening checkout is not a lifecycle change")
}

func TestWebhookConfirms(t *testing.T) {
	h := newHarness(t)
	o := h.createOrder()
	h.transition(o.ID, "accept", h.seller.ID, nil)
	h.do(http.MethodPost, "/orders/"+o.ID+"/payment", h.buyer.ID, nil)
	sessionID := h.provider.pay(o.ID)

	body, _ := json.Marshal(payments.Event{ID: "evt_1", Type: payments.EventSessionCompleted, Data: payments.Session{ID: sessionID, OrderID: o.ID, Status: payments.StatusPaid}})
	post := func(sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
		req.Header.Set(payments.SignatureHeader, sig)
		rec := httptest.NewRecorder()
		h.e.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, post("deadbeef").Code)

	rec := post(payments.Sign(testSecret, body))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	stored, _ := h.store.OrderByID(context.Background(), o.ID)
	require.NotNil(t, stored.PaidAt)

	rec = post(payments.Sign(testSecret, body))
	assert.Contains(t, rec.Body.String(), `"already_confirmed":true`)

	// the browser return after the webhook reports the same paid_at
	conf := decodeData[ConfirmPaymentResponse](t, h.do(http.MethodPost, "/orders/"+o.ID+"/confirm-payment", h.buyer.ID, nil))
	assert.True(t, conf.AlreadyConfirmed)
	assert.True(t, stored.PaidAt.Equal(*conf.PaidAt))
}

func TestIllegalTransitions(t *testing.T) {
	h := newHarness(t)
	o := h.createOrder()

	assert.Equal(t, http.StatusConflict, h.transition(o.ID, "accept", h.buyer.ID, nil).Code, "buyer cannot accept")
	assert.Equal(t, http.StatusConflict, h.transition(o.ID, "mark-work-done", h.seller.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.transition(o.ID, "accept", "stranger", nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/orders/"+o.ID, "stranger", nil).Code)

	paid := h.paidOrder()
	assert.Equal(t, http.StatusConflict, h.transition(paid.ID, "cancel", h.buyer.ID, nil).Code, "paid orders cannot be cancelled")
	assert.Equal(t, http.StatusConflict, h.transition(paid.ID, "approve-delivery", h.buyer.ID, nil).Code, "not delivered yet")
}

func TestRejectAndCancel(t *testing.T) {
	h := newHarness(t)

	o := h.createOrder()
	rec := h.transition(o.ID, "reject", h.seller.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, order.StatusRejected, decodeData[order.Order](t, rec).Status)
	assert.Equal(t, http.StatusConflict, h.transition(o.ID, "accept", h.seller.ID, nil).Code)

	o = h.createOrder()
	h.transition(o.ID, "approve", h.seller.ID, nil)
	rec = h.transition(o.ID, "cancel", h.buyer.ID, CancelOrderRequest{Reason: "changed my mind"})
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeData[order.Order](t, rec)
	assert.Equal(t, order.StatusCancelled, got.Status)
	assert.Equal(t, "changed my mind", got.CancelReason)
	assert.NotNil(t, got.CancelledAt)
}

func TestCreateOrderRules(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/orders", h.seller.ID, CreateOrderRequest{GigID: h.gig.ID})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/orders", h.buyer.ID, CreateOrderRequest{GigID: "missing"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(http.MethodPost, "/orders", h.buyer.ID, CreateOrderRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"gig_id"`)
}

func TestGigSnapshotFrozen(t *testing.T) {
	h := newHarness(t)
	o := h.createOrder()

	rec := h.do(http.MethodPut, "/gigs/"+h.gig.ID, h.seller.ID, GigRequest{Title: "Brand kit", Description: "More", Price: 900, DeliveryTimeDays: 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	got := decodeData[order.Order](t, h.do(http.MethodGet, "/orders/"+o.ID, h.buyer.ID, nil))
	assert.Equal(t, "Logo design", got.Gig.Title)
	assert.Equal(t, int64(500), got.Price)
}

func TestListOrdersBySide(t *testing.T) {
	h := newHarness(t)
	h.createOrder()

	bought := decodeData[[]order.Order](t, h.do(http.MethodGet, "/orders?type=bought", h.buyer.ID, nil))
	sold := decodeData[[]order.Order](t, h.do(http.MethodGet, "/orders?type=sold", h.buyer.ID, nil))
	assert.Len(t, bought, 1)
	assert.Empty(t, sold)
	assert.Len(t, decodeData[[]order.Order](t, h.do(http.MethodGet, "/orders?type=sold", h.seller.ID, nil)), 1)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/orders?type=weird", h.buyer.ID, nil).Code)
}

func TestReviewRules(t *testing.T) {
	h := newHarness(t)
	o := h.paidOrder()

	rec := h.do(http.MethodPost, "/reviews", h.buyer.ID, CreateReviewRequest{OrderID: o.ID, Rating: 4})
	assert.Equal(t, http.StatusConflict, rec.Code, "not delivered yet")

	h.transition(o.ID, "mark-work-done", h.seller.ID, nil)
	rec = h.do(http.MethodPost, "/reviews", h.seller.ID, CreateReviewRequest{OrderID: o.ID, Rating: 4})
	assert.Equal(t, http.StatusNotFound, rec.Code, "seller cannot review")

	rec = h.do(http.MethodPost, "/reviews", h.buyer.ID, CreateReviewRequest{OrderID: o.ID, Rating: 6})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(http.MethodPost, "/reviews", h.buyer.ID, CreateReviewRequest{OrderID: o.ID, Rating: 4})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = h.do(http.MethodPost, "/reviews", h.buyer.ID, CreateReviewRequest{OrderID: o.ID, Rating: 5})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// approving with a rating after a standalone review keeps exactly one
	rec = h.transition(o.ID, "approve-delivery", h.buyer.ID, ApproveDeliveryRequest{Rating: 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	reviews := decodeData[[]models.Review](t, h.do(http.MethodGet, "/reviews/user/"+h.seller.ID, "", nil))
	require.Len(t, reviews, 1)
	assert.Equal(t, 4, reviews[0].Rating)
}

func TestGigOwnership(t *testing.T) {
	h := newHarness(t)
	body := GigRequest{Title: "Hijack", Description: "x", Price: 1, DeliveryTimeDays: 1}
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodPut, "/gigs/"+h.gig.ID, h.buyer.ID, body).Code)
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodDelete, "/gigs/"+h.gig.ID, h.buyer.ID, nil).Code)
	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/gigs/missing", "", nil).Code)

	assert.Equal(t, http.StatusNoContent, h.do(http.MethodDelete, "/gigs/"+h.gig.ID, h.seller.ID, nil).Code)
	assert.Empty(t, decodeData[[]models.Gig](t, h.do(http.MethodGet, "/gigs", "", nil)))
	assert.Len(t, decodeData[[]models.Gig](t, h.do(http.MethodGet, "/gigs/my-gigs", h.seller.ID, nil)), 1)
	assert.Equal(t, http.StatusConflict, h.do(http.MethodPost, "/orders", h.buyer.ID, CreateOrderRequest{GigID: h.gig.ID}).Code)
}

func TestListGigsFilters(t *testing.T) {
	h := newHarness(t)
	rec := h.do(http.MethodPost, "/gigs", h.seller.ID, GigRequest{Title: "Website build", Description: "Landing page", Category: "web", Price: 2000, DeliveryTimeDays: 10})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Len(t, decodeData[[]models.Gig](t, h.do(http.MethodGet, "/gigs?max_price=1000", "", nil)), 1)
	assert.Len(t, decodeData[[]models.Gig](t, h.do(http.MethodGet, "/gigs?category=web", "", nil)), 1)
	assert.Len(t, decodeData[[]models.Gig](t, h.do(http.MethodGet, "/gigs?q=logo", "", nil)), 1)
	assert.Len(t, decodeData[[]models.Gig](t, h.do(http.MethodGet, "/gigs?limit=1", "", nil)), 1)
	assert.Equal(t, http.StatusBadRequest, h.do(http.MethodGet, "/gigs?min_price=abc", "", nil).Code)

	rec = h.do(http.MethodPost, "/gigs", h.seller.ID, GigRequest{Title: "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestConcurrentConfirmsConverge(t *testing.T) {
	h := newHarness(t)
	o := h.createOrder()
	h.transition(o.ID, "accept", h.seller.ID, nil)
	h.do(http.MethodPost, "/orders/"+o.ID+"/payment", h.buyer.ID, nil)
	h.provider.pay(o.ID)

	var wg sync.WaitGroup
	results := make([]ConfirmPaymentResponse, 4)
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := h.do(http.MethodPost, "/orders/"+o.ID+"/confirm-payment", h.buyer.ID, nil)
			if assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String()) {
				results[i] = decodeData[ConfirmPaymentResponse](t, rec)
			}
		}()
	}
	wg.Wait()

	fresh := 0
	for _, r := range results {
		require.NotNil(t, r.PaidAt)
		assert.True(t, results[0].PaidAt.Equal(*r.PaidAt))
		if !r.AlreadyConfirmed {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
	assert.Equal(t, 1, h.notifier.count(alerts.TaskOrderPaid))
}
