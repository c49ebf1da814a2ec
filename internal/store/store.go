// Package store persists users, gigs, orders, reviews and messages. PGStore
// is the production backend; MemoryStore serves tests and -memory runs.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/sudo-init-do/gighub/internal/models"
	"github.com/sudo-init-do/gighub/internal/order"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict covers duplicate keys and lost compare-and-swap races.
	ErrConflict = errors.New("conflict")
)

// Side selects which of a user's orders to list.
type Side string

const (
	SideAll    Side = "all"
	SideBought Side = "bought"
	SideSold   Side = "sold"
)

// Store is the persistence contract shared by every backend.
type Store interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByID(ctx context.Context, id string) (models.User, error)
	UserByEmail(ctx context.Context, email string) (models.User, error)
	UpdateUser(ctx context.Context, u models.User) error

	CreateGig(ctx context.Context, g *models.Gig) error
	GigByID(ctx context.Context, id string) (models.Gig, error)
	ListGigs(ctx context.Context, f models.GigFilter) ([]models.Gig, error)
	UpdateGig(ctx context.Context, g models.Gig) error

	CreateOrder(ctx context.Context, o *order.Order) error
	OrderByID(ctx context.Context, id string) (order.Order, error)
	OrderByCheckoutSession(ctx context.Context, sessionID string) (order.Order, error)
	ListOrders(ctx context.Context, userID string, side Side) ([]order.Order, error)
	// SaveOrder writes next only if the stored updated_at still equals
	// prevUpdatedAt; otherwise it returns ErrConflict.
	SaveOrder(ctx context.Context, next order.Order, prevUpdatedAt time.Time) error
	// CompleteOrder is SaveOrder plus an optional review, atomically.
	CompleteOrder(ctx context.Context, next order.Order, prevUpdatedAt time.Time, review *models.Review) error

	// CreateReview returns ErrConflict if the order already has one.
	CreateReview(ctx context.Context, r *models.Review) error
	ReviewsByGig(ctx context.Context, gigID string) ([]models.Review, error)
	ReviewsByUser(ctx context.Context, userID string) ([]models.Review, error)

	CreateMessage(ctx context.Context, m *models.Message) error
	// Thread returns messages between a and b after since, oldest first.
	Thread(ctx context.Context, a, b string, since time.Time) ([]models.Message, error)
	Conversations(ctx context.Context, userID string) ([]models.Conversation, error)

	Ping(ctx context.Context) error
}
