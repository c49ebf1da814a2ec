package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sudo-init-do/gighub/internal/models"
	"github.com/sudo-init-do/gighub/internal/order"
)

// MemoryStore keeps everything in-process.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]models.User
	email    map[string]string // email -> user ID
	gigs     map[string]models.Gig
	gigOrder []string
	orders   map[string]order.Order
	ordOrder []string
	reviews  []models.Review
	messages []models.Message
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[string]models.User),
		email:  make(map[string]string),
		gigs:   make(map[string]models.Gig),
		orders: make(map[string]order.Order),
	}
}

var _ Store = (*MemoryStore)(nil)

func (m *MemoryStore) Ping(context.Context) error { return nil }

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.NewString()
}

func (m *MemoryStore) CreateUser(_ context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, exists := m.email[key]; exists {
		return ErrConflict
	}
	u.ID = newID(u.ID)
	m.users[u.ID] = *u
	m.email[key] = u.ID
	return nil
}

func (m *MemoryStore) UserByID(_ context.Context, id string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemoryStore) UserByEmail(_ context.Context, email string) (models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.email[strings.ToLower(email)]
	if !ok {
		return models.User{}, ErrNotFound
	}
	return m.users[id], nil
}

func (m *MemoryStore) UpdateUser(_ context.Context, u models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[u.ID]; !ok {
		return ErrNotFound
	}
	m.users[u.ID] = u
	return nil
}

func (m *MemoryStore) CreateGig(_ context.Context, g *models.Gig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g.ID = newID(g.ID)
	m.gigs[g.ID] = *g
	m.gigOrder = append(m.gigOrder, g.ID)
	return nil
}

func (m *MemoryStore) GigByID(_ context.Context, id string) (models.Gig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.gigs[id]
	if !ok {
		return models.Gig{}, ErrNotFound
	}
	return m.withRatingLocked(g), nil
}

func (m *MemoryStore) withRatingLocked(g models.Gig) models.Gig {
	sum, n := 0, 0
	for _, r := range m.reviews {
		if r.GigID == g.ID {
			sum += r.Rating
			n++
		}
	}
	g.ReviewCount = n
	g.AvgRating = 0
	if n > 0 {
		g.AvgRating = float64(sum) / float64(n)
	}
	return g
}

func (m *MemoryStore) ListGigs(_ context.Context, f models.GigFilter) ([]models.Gig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q := strings.ToLower(f.Query)
	res := make([]models.Gig, 0)
	// newest first
	for i := len(m.gigOrder) - 1; i >= 0; i-- {
		g := m.gigs[m.gigOrder[i]]
		switch {
		case !f.IncludeInactive && g.Status != models.GigActive:
			continue
		case f.SellerID != "" && g.SellerID != f.SellerID:
			continue
		case f.Category != "" && !strings.EqualFold(g.Category, f.Category):
			continue
		case f.MinPrice > 0 && g.Price < f.MinPrice:
			continue
		case f.MaxPrice > 0 && g.Price > f.MaxPrice:
			continue
		case f.MaxDeliveryDays > 0 && g.DeliveryTimeDays > f.MaxDeliveryDays:
			continue
		case q != "" && !strings.Contains(strings.ToLower(g.Title+" "+g.Description), q):
			continue
		}
		res = append(res, m.withRatingLocked(g))
	}
	return paginate(res, f.Offset, f.Limit), nil
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset > len(items) {
		return items[:0]
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func (m *MemoryStore) UpdateGig(_ context.Context, g models.Gig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.gigs[g.ID]; !ok {
		return ErrNotFound
	}
	m.gigs[g.ID] = g
	return nil
}

func (m *MemoryStore) CreateOrder(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.ID = newID(o.ID)
	m.orders[o.ID] = *o
	m.ordOrder = append(m.ordOrder, o.ID)
	return nil
}

func (m *MemoryStore) OrderByID(_ context.Context, id string) (order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.orders[id]
	if !ok {
		return order.Order{}, ErrNotFound
	}
	return o, nil
}

func (m *MemoryStore) OrderByCheckoutSession(_ context.Context, sessionID string) (order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, o := range m.orders {
		if sessionID != "" && o.CheckoutSessionID == sessionID {
			return o, nil
		}
	}
	return order.Order{}, ErrNotFound
}

func (m *MemoryStore) ListOrders(_ context.Context, userID string, side Side) ([]order.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]order.Order, 0)
	for i := len(m.ordOrder) - 1; i >= 0; i-- {
		o := m.orders[m.ordOrder[i]]
		bought, sold := o.BuyerID == userID, o.SellerID == userID
		if (side == SideBought && bought) || (side == SideSold && sold) || (side != SideBought && side != SideSold && (bought || sold)) {
			res = append(res, o)
		}
	}
	return res, nil
}

func (m *MemoryStore) SaveOrder(ctx context.Context, next order.Order, prevUpdatedAt time.Time) error {
	return m.CompleteOrder(ctx, next, prevUpdatedAt, nil)
}

func (m *MemoryStore) CompleteOrder(_ context.Context, next order.Order, prevUpdatedAt time.Time, review *models.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.orders[next.ID]
	if !ok {
		return ErrNotFound
	}
	if !cur.UpdatedAt.Equal(prevUpdatedAt) {
		return ErrConflict
	}
	if review != nil {
		if err := m.addReviewLocked(review); err != nil {
			return err
		}
	}
	m.orders[next.ID] = next
	return nil
}

func (m *MemoryStore) CreateReview(_ context.Context, r *models.Review) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addReviewLocked(r)
}

func (m *MemoryStore) addReviewLocked(r *models.Review) error {
	for _, existing := range m.reviews {
		if existing.OrderID == r.OrderID {
			return ErrConflict
		}
	}
	r.ID = newID(r.ID)
	m.reviews = append(m.reviews, *r)
	return nil
}

func (m *MemoryStore) ReviewsByGig(_ context.Context, gigID string) ([]models.Review, error) {
	return m.filterReviews(func(r models.Review) bool { return r.GigID == gigID }), nil
}

func (m *MemoryStore) ReviewsByUser(_ context.Context, userID string) ([]models.Review, error) {
	return m.filterReviews(func(r models.Review) bool { return r.ReviewedUserID == userID }), nil
}

func (m *MemoryStore) filterReviews(keep func(models.Review) bool) []models.Review {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]models.Review, 0)
	for i := len(m.reviews) - 1; i >= 0; i-- {
		if keep(m.reviews[i]) {
			res = append(res, m.reviews[i])
		}
	}
	return res
}

func (m *MemoryStore) CreateMessage(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg.ID = newID(msg.ID)
	m.messages = append(m.messages, *msg)
	return nil
}

func (m *MemoryStore) Thread(_ context.Context, a, b string, since time.Time) ([]models.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := models.ConversationKey(a, b)
	res := make([]models.Message, 0)
	for _, msg := range m.messages {
		if models.ConversationKey(msg.SenderID, msg.ReceiverID) == key && msg.CreatedAt.After(since) {
			res = append(res, msg)
		}
	}
	return res, nil
}

func (m *MemoryStore) Conversations(_ context.Context, userID string) ([]models.Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	latest := map[string]models.Message{}
	for _, msg := range m.messages {
		var other string
		switch userID {
		case msg.SenderID:
			other = msg.ReceiverID
		case msg.ReceiverID:
			other = msg.SenderID
		default:
			continue
		}
		latest[other] = msg
	}
	res := make([]models.Conversation, 0, len(latest))
	for other, msg := range latest {
		res = append(res, models.Conversation{
			UserID:        other,
			FullName:      m.users[other].FullName,
			LastMessage:   msg.Content,
			LastMessageAt: msg.CreatedAt,
		})
	}
	sortConversations(res)
	return res, nil
}

func sortConversations(cs []models.Conversation) {
	sort.Slice(cs, func(i, j int) bool { return cs[i].LastMessageAt.After(cs[j].LastMessageAt) })
}
