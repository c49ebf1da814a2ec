package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/gighub/internal/models"
	"github.com/sudo-init-do/gighub/internal/order"
)

var now = time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC)

func TestUserEmailUnique(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateUser(ctx, &models.User{Email: "A@x.io", FullName: "A"}))
	err := s.CreateUser(ctx, &models.User{Email: "a@x.io", FullName: "B"})
	assert.ErrorIs(t, err, ErrConflict)

	u, err := s.UserByEmail(ctx, "a@X.io")
	require.NoError(t, err)
	assert.Equal(t, "A", u.FullName)

	_, err = s.UserByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListGigsFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	gigs := []models.Gig{
		{SellerID: "s1", Title: "Logo design", Category: "design", Price: 500, DeliveryTimeDays: 3, Status: models.GigActive},
		{SellerID: "s1", Title: "Website", Category: "dev", Price: 5000, DeliveryTimeDays: 14, Status: models.GigActive},
		{SellerID: "s2", Title: "Retired logo", Category: "design", Price: 100, DeliveryTimeDays: 1, Status: models.GigInactive},
	}
	for i := range gigs {
		require.NoError(t, s.CreateGig(ctx, &gigs[i]))
	}

	all, _ := s.ListGigs(ctx, models.GigFilter{})
	assert.Len(t, all, 2)
	assert.Equal(t, "Website", all[0].Title, "newest first")

	got, _ := s.ListGigs(ctx, models.GigFilter{Query: "logo"})
	require.Len(t, got, 1)
	assert.Equal(t, "Logo design", got[0].Title)

	got, _ = s.ListGigs(ctx, models.GigFilter{MaxPrice: 1000, MaxDeliveryDays: 5})
	assert.Len(t, got, 1)

	got, _ = s.ListGigs(ctx, models.GigFilter{SellerID: "s2", IncludeInactive: true})
	assert.Len(t, got, 1)

	got, _ = s.ListGigs(ctx, models.GigFilter{Limit: 1, Offset: 1})
	require.Len(t, got, 1)
	assert.Equal(t, "Logo design", got[0].Title)
}

func TestSaveOrderCompareAndSwap(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	o := order.Order{BuyerID: "b", SellerID: "s", Status: order.StatusRequested, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, s.CreateOrder(ctx, &o))

	next, err := order.Apply(o, order.RoleSeller, order.ActionAccept, now.Add(time.Second))
	require.NoError(t, err)
	require.NoError(t, s.SaveOrder(ctx, next, o.UpdatedAt))

	// A second writer holding the old snapshot loses.
	rejected, err := order.Apply(o, order.RoleSeller, order.ActionReject, now.Add(2*time.Second))
	require.NoError(t, err)
	assert.ErrorIs(t, s.SaveOrder(ctx, rejected, o.UpdatedAt), ErrConflict)

	got, _ := s.OrderByID(ctx, o.ID)
	assert.Equal(t, order.StatusPending, got.Status)

	missing := next
	missing.ID = "nope"
	assert.ErrorIs(t, s.SaveOrder(ctx, missing, now), ErrNotFound)
}

func TestCompleteOrderWithReviewIsAtomic(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	o := order.Order{ID: "o-1", GigID: "g", BuyerID: "b", SellerID: "s", Status: order.StatusPending, UpdatedAt: now}
	require.NoError(t, s.CreateOrder(ctx, &o))
	require.NoError(t, s.CreateReview(ctx, &models.Review{OrderID: "o-1", GigID: "g", Rating: 4}))

	done := o
	done.Status = order.StatusCompleted
	done.UpdatedAt = now.Add(time.Minute)
	err := s.CompleteOrder(ctx, done, now, &models.Review{OrderID: "o-1", GigID: "g", Rating: 5})
	assert.ErrorIs(t, err, ErrConflict)

	got, _ := s.OrderByID(ctx, "o-1")
	assert.Equal(t, order.StatusPending, got.Status, "order untouched when review insert fails")
}

func TestGigRatingAggregates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	g := models.Gig{ID: "g", Status: models.GigActive}
	require.NoError(t, s.CreateGig(ctx, &g))
	require.NoError(t, s.CreateReview(ctx, &models.Review{OrderID: "o1", GigID: "g", Rating: 5}))
	require.NoError(t, s.CreateReview(ctx, &models.Review{OrderID: "o2", GigID: "g", Rating: 4}))

	got, err := s.GigByID(ctx, "g")
	require.NoError(t, err)
	assert.Equal(t, 2, got.ReviewCount)
	assert.InDelta(t, 4.5, got.AvgRating, 0.001)
}

func TestListOrdersBySide(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateOrder(ctx, &order.Order{ID: "bought", BuyerID: "me", SellerID: "x"}))
	require.NoError(t, s.CreateOrder(ctx, &order.Order{ID: "sold", BuyerID: "y", SellerID: "me"}))
	require.NoError(t, s.CreateOrder(ctx, &order.Order{ID: "other", BuyerID: "y", SellerID: "x"}))

	all, _ := s.ListOrders(ctx, "me", SideAll)
	assert.Len(t, all, 2)
	b, _ := s.ListOrders(ctx, "me", SideBought)
	require.Len(t, b, 1)
	assert.Equal(t, "bought", b[0].ID)
	sd, _ := s.ListOrders(ctx, "me", SideSold)
	require.Len(t, sd, 1)
	assert.Equal(t, "sold", sd[0].ID)
}

func TestThreadAndConversations(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "a", Email: "a@x", FullName: "Ann"}))
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "b", Email: "b@x", FullName: "Ben"}))
	require.NoError(t, s.CreateUser(ctx, &models.User{ID: "c", Email: "c@x", FullName: "Cat"}))

	msgs := []models.Message{
		{SenderID: "a", ReceiverID: "b", Content: "hi", CreatedAt: now},
		{SenderID: "b", ReceiverID: "a", Content: "hey", CreatedAt: now.Add(time.Second)},
		{SenderID: "c", ReceiverID: "a", Content: "yo", CreatedAt: now.Add(2 * time.Second)},
	}
	for i := range msgs {
		require.NoError(t, s.CreateMessage(ctx, &msgs[i]))
	}

	th, _ := s.Thread(ctx, "b", "a", time.Time{})
	require.Len(t, th, 2)
	assert.Equal(t, "hi", th[0].Content)

	th, _ = s.Thread(ctx, "a", "b", now)
	require.Len(t, th, 1)
	assert.Equal(t, "hey", th[0].Content)

	convs, _ := s.Conversations(ctx, "a")
	require.Len(t, convs, 2)
	assert.Equal(t, "c", convs[0].UserID)
	assert.Equal(t, "Cat", convs[0].FullName)
	assert.Equal(t, "hey", convs[1].LastMessage)
}
