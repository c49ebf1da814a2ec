package payment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/gighub/internal/gateway"
	"github.com/sudo-init-do/gighub/internal/order"
	"github.com/sudo-init-do/gighub/internal/session"
)

type fakePayments struct {
	created   []gateway.PaymentRequest
	confirms  int
	paidAt    time.Time
	confirmed bool
	err       error
}

func (f *fakePayments) CreatePayment(_ context.Context, orderID string, req gateway.PaymentRequest) (*gateway.Checkout, error) {
	f.created = append(f.created, req)
	return &gateway.Checkout{OrderID: orderID, SessionID: "cs_1", CheckoutURL: "https://pay.example/checkout/cs_1"}, nil
}

func (f *fakePayments) ConfirmPayment(_ context.Context, orderID string) (*gateway.PaymentConfirmation, error) {
	f.confirms++
	if f.err != nil {
		return nil, f.err
	}
	already := f.confirmed
	f.confirmed = true
	paid := f.paidAt
	return &gateway.PaymentConfirmation{Order: order.Order{ID: orderID, PaidAt: &paid}, PaidAt: &paid, AlreadyConfirmed: already}, nil
}

func unpaidOrder() order.Order {
	at := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	return order.Order{ID: "o-1", BuyerID: "b", SellerID: "s", Status: order.StatusPending, AcceptedAt: &at, UpdatedAt: at}
}

func TestBeginPersistsMarker(t *testing.T) {
	ctx := context.Background()
	storage := session.NewMemoryStorage()
	api := &fakePayments{}
	h := NewHandshake(storage, api, "http://localhost:5173/", nil, zerolog.Nop())

	u, err := h.Begin(ctx, unpaidOrder(), order.RoleBuyer)
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/checkout/cs_1", u)

	v, ok, err := storage.Get(ctx, MarkerKey)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "o-1", v)
	require.Len(t, api.created, 1)
	assert.Equal(t, "http://localhost:5173/payment-success?order=o-1", api.created[0].SuccessURL)
}

func TestBeginRejectsIllegalPayment(t *testing.T) {
	h := NewHandshake(session.NewMemoryStorage(), &fakePayments{}, "http://app", nil, zerolog.Nop())
	_, err := h.Begin(context.Background(), unpaidOrder(), order.RoleSeller)
	assert.ErrorIs(t, err, order.ErrIllegalTransition)

	paid := unpaidOrder()
	paid.PaidAt = paid.AcceptedAt
	_, err = h.Begin(context.Background(), paid, order.RoleBuyer)
	assert.ErrorIs(t, err, order.ErrIllegalTransition)
}

func TestReturnConfirmsOnceAndClearsMarker(t *testing.T) {
	ctx := context.Background()
	storage := session.NewMemoryStorage()
	api := &fakePayments{paidAt: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)}
	refreshed := 0
	h := NewHandshake(storage, api, "http://app", func(context.Context) error { refreshed++; return nil }, zerolog.Nop())
	require.NoError(t, storage.Set(ctx, MarkerKey, "o-1"))

	res := h.Return(ctx, ReturnParams{Success: true})
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	assert.Equal(t, "o-1", res.OrderID)
	assert.Equal(t, DashboardPath, res.Redirect)
	assert.Equal(t, StateConfirmed, h.State())

	again := h.Return(ctx, ReturnParams{Success: true, OrderID: "o-1"})
	assert.Equal(t, res, again)
	assert.Equal(t, 1, api.confirms)
	assert.Equal(t, 1, refreshed)

	_, ok, _ := storage.Get(ctx, MarkerKey)
	assert.False(t, ok)
}

func TestDuplicateRedirectIsAlreadyConfirmed(t *testing.T) {
	ctx := context.Background()
	api := &fakePayments{paidAt: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)}

	first := NewHandshake(session.NewMemoryStorage(), api, "http://app", nil, zerolog.Nop()).
		Return(ctx, ReturnParams{Success: true, OrderID: "o-1"})
	second := NewHandshake(session.NewMemoryStorage(), api, "http://app", nil, zerolog.Nop()).
		Return(ctx, ReturnParams{Success: true, OrderID: "o-1"})

	assert.Equal(t, OutcomeConfirmed, first.Outcome)
	assert.Equal(t, OutcomeAlreadyConfirmed, second.Outcome)
	require.NotNil(t, first.PaidAt)
	require.NotNil(t, second.PaidAt)
	assert.True(t, first.PaidAt.Equal(*second.PaidAt))
}

func TestReturnFallsBackToQueryParam(t *testing.T) {
	api := &fakePayments{}
	h := NewHandshake(session.NewMemoryStorage(), api, "http://app", nil, zerolog.Nop())
	res := h.Return(context.Background(), ReturnParams{Success: true, OrderID: "o-7"})
	assert.Equal(t, "o-7", res.OrderID)
	assert.Equal(t, 1, api.confirms)
}

func TestReturnMarkerWinsOverQuery(t *testing.T) {
	ctx := context.Background()
	storage := session.NewMemoryStorage()
	require.NoError(t, storage.Set(ctx, MarkerKey, "o-1"))
	h := NewHandshake(storage, &fakePayments{}, "http://app", nil, zerolog.Nop())
	res := h.Return(ctx, ReturnParams{Success: true, OrderID: "o-other"})
	assert.Equal(t, "o-1", res.OrderID)
}

func TestReturnWithoutOrder(t *testing.T) {
	api := &fakePayments{}
	h := NewHandshake(session.NewMemoryStorage(), api, "http://app", nil, zerolog.Nop())
	res := h.Return(context.Background(), ReturnParams{Success: true})
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrNoPendingOrder)
	assert.Equal(t, 0, api.confirms)
	assert.Equal(t, StateFailed, h.State())
}

func TestTransientFailureStillClearsAndRedirects(t *testing.T) {
	ctx := context.Background()
	storage := session.NewMemoryStorage()
	require.NoError(t, storage.Set(ctx, MarkerKey, "o-1"))
	api := &fakePayments{err: &gateway.Error{Kind: gateway.KindNetwork, Message: "timeout", Err: errors.New("timeout")}}
	refreshed := false
	h := NewHandshake(storage, api, "http://app", func(context.Context) error { refreshed = true; return nil }, zerolog.Nop())

	res := h.Return(ctx, ReturnParams{Success: true})
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, DashboardPath, res.Redirect)
	assert.True(t, refreshed)
	_, ok, _ := storage.Get(ctx, MarkerKey)
	assert.False(t, ok)

	// No automatic retry.
	h.Return(ctx, ReturnParams{Success: true, OrderID: "o-1"})
	assert.Equal(t, 1, api.confirms)
}

func TestAbandonedReturnConfirmsOnceFromMarker(t *testing.T) {
	ctx := context.Background()
	storage := session.NewMemoryStorage()
	require.NoError(t, storage.Set(ctx, MarkerKey, "o-1"))
	api := &fakePayments{err: &gateway.Error{Kind: gateway.KindConflict, Status: 409, Message: "payment not completed"}}
	h := NewHandshake(storage, api, "http://app", nil, zerolog.Nop())

	res := h.Return(ctx, ReturnParams{})
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.Equal(t, "o-1", res.OrderID)
	assert.True(t, gateway.IsKind(res.Err, gateway.KindConflict))
	assert.Equal(t, 1, api.confirms)
	assert.Equal(t, StateFailed, h.State())
	_, ok, _ := storage.Get(ctx, MarkerKey)
	assert.False(t, ok)

	h.Return(ctx, ReturnParams{})
	assert.Equal(t, 1, api.confirms)
}

func TestLostSuccessRedirectStillConfirms(t *testing.T) {
	ctx := context.Background()
	storage := session.NewMemoryStorage()
	require.NoError(t, storage.Set(ctx, MarkerKey, "o-1"))
	api := &fakePayments{paidAt: time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)}
	h := NewHandshake(storage, api, "http://app", nil, zerolog.Nop())

	p, err := ParseReturn("http://app/client-dashboard")
	require.NoError(t, err)
	res := h.Return(ctx, p)
	require.NoError(t, res.Err)
	assert.Equal(t, OutcomeConfirmed, res.Outcome)
	require.NotNil(t, res.PaidAt)
	assert.Equal(t, 1, api.confirms)
}

func TestDashboardVisitWithoutPendingOrder(t *testing.T) {
	api := &fakePayments{}
	h := NewHandshake(session.NewMemoryStorage(), api, "http://app", nil, zerolog.Nop())

	res := h.Return(context.Background(), ReturnParams{})
	assert.Equal(t, OutcomeFailed, res.Outcome)
	assert.ErrorIs(t, res.Err, ErrNoPendingOrder)
	assert.Equal(t, 0, api.confirms)
}

func TestParseReturn(t *testing.T) {
	p, err := ParseReturn("http://localhost:5173/payment-success?order=o-1")
	require.NoError(t, err)
	assert.Equal(t, ReturnParams{OrderID: "o-1", Success: true}, p)

	p, err = ParseReturn("http://localhost:5173/client-dashboard?payment=success&order=o-2")
	require.NoError(t, err)
	assert.Equal(t, ReturnParams{OrderID: "o-2", Success: true}, p)

	p, err = ParseReturn("/client-dashboard")
	require.NoError(t, err)
	assert.False(t, p.Success)

	_, err = ParseReturn("http://localhost:5173/gigs")
	assert.ErrorIs(t, err, ErrNotReturn)
}
