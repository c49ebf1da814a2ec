package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sudo-init-do/gighub/internal/models"
	"github.com/sudo-init-do/gighub/internal/order"
)

// PGStore is the Postgres-backed Store.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore wraps an open pool. The schema must already exist.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

var _ Store = (*PGStore)(nil)

func (s *PGStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// mapErr turns driver errors into store sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrConflict
	}
	return err
}

// ===== Users =====

const userCols = `id, email, full_name, role, bio, avatar_url, password_hash, created_at, updated_at`

func scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Email, &u.FullName, &u.Role, &u.Bio, &u.AvatarURL, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, mapErr(err)
}

func (s *PGStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (`+userCols+`)
		VALUES ($1, lower($2), $3, $4, $5, $6, $7, $8, $9)
	`, u.ID, u.Email, u.FullName, u.Role, u.Bio, u.AvatarURL, u.PasswordHash, u.CreatedAt, u.UpdatedAt)
	return mapErr(err)
}

func (s *PGStore) UserByID(ctx context.Context, id string) (models.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
}

func (s *PGStore) UserByEmail(ctx context.Context, email string) (models.User, error) {
	return scanUser(s.pool.QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE email = lower($1)`, email))
}

func (s *PGStore) UpdateUser(ctx context.Context, u models.User) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users SET full_name = $2, role = $3, bio = $4, avatar_url = $5, updated_at = $6
		WHERE id = $1
	`, u.ID, u.FullName, u.Role, u.Bio, u.AvatarURL, u.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ===== Gigs =====

const gigSelect = `
	SELECT g.id, g.seller_id, g.title, g.description, g.category, g.price, g.delivery_time_days,
	       g.images, g.status, g.created_at, g.updated_at,
	       COALESCE(r.avg_rating, 0), COALESCE(r.review_count, 0)
	FROM gigs g
	LEFT JOIN (
		SELECT gig_id, AVG(rating)::float8 AS avg_rating, COUNT(*) AS review_count
		FROM reviews GROUP BY gig_id
	) r ON r.gig_id = g.id`

func scanGig(row pgx.Row) (models.Gig, error) {
	var g models.Gig
	err := row.Scan(&g.ID, &g.SellerID, &g.Title, &g.Description, &g.Category, &g.Price, &g.DeliveryTimeDays,
		&g.Images, &g.Status, &g.CreatedAt, &g.UpdatedAt, &g.AvgRating, &g.ReviewCount)
	return g, mapErr(err)
}

func (s *PGStore) CreateGig(ctx context.Context, g *models.Gig) error {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Images == nil {
		g.Images = []string{}
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO gigs (id, seller_id, title, description, category, price, delivery_time_days, images, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, g.ID, g.SellerID, g.Title, g.Description, g.Category, g.Price, g.DeliveryTimeDays, g.Images, g.Status, g.CreatedAt, g.UpdatedAt)
	return mapErr(err)
}

func (s *PGStore) GigByID(ctx context.Context, id string) (models.Gig, error) {
	return scanGig(s.pool.QueryRow(ctx, gigSelect+` WHERE g.id = $1`, id))
}

func (s *PGStore) ListGigs(ctx context.Context, f models.GigFilter) ([]models.Gig, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if !f.IncludeInactive {
		add("g.status = $%d", models.GigActive)
	}
	if f.SellerID != "" {
		add("g.seller_id = $%d", f.SellerID)
	}
	if f.Category != "" {
		add("lower(g.category) = lower($%d)", f.Category)
	}
	if f.MinPrice > 0 {
		add("g.price >= $%d", f.MinPrice)
	}
	if f.MaxPrice > 0 {
		add("g.price <= $%d", f.MaxPrice)
	}
	if f.MaxDeliveryDays > 0 {
		add("g.delivery_time_days <= $%d", f.MaxDeliveryDays)
	}
	if f.Query != "" {
		add("(g.title || ' ' || g.description) ILIKE '%%' || $%d || '%%'", f.Query)
	}

	q := gigSelect
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY g.created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		q += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := make([]models.Gig, 0)
	for rows.Next() {
		g, err := scanGig(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, g)
	}
	return res, rows.Err()
}

func (s *PGStore) UpdateGig(ctx context.Context, g models.Gig) error {
	if g.Images == nil {
		g.Images = []string{}
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE gigs SET title = $2, description = $3, category = $4, price = $5,
		       delivery_time_days = $6, images = $7, status = $8, updated_at = $9
		WHERE id = $1
	`, g.ID, g.Title, g.Description, g.Category, g.Price, g.DeliveryTimeDays, g.Images, g.Status, g.UpdatedAt)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ===== Orders =====

const orderCols = `id, gig_id, buyer_id, seller_id, status, price, requirements,
	gig_title, gig_description, gig_delivery_time_days, checkout_session_id, cancel_reason,
	accepted_at, paid_at, delivered_at, completed_at, cancelled_at, created_at, updated_at`

func scanOrder(row pgx.Row) (order.Order, error) {
	var o order.Order
	err := row.Scan(&o.ID, &o.GigID, &o.BuyerID, &o.SellerID, &o.Status, &o.Price, &o.Requirements,
		&o.Gig.Title, &o.Gig.Description, &o.Gig.DeliveryTimeDays, &o.CheckoutSessionID, &o.CancelReason,
		&o.AcceptedAt, &o.PaidAt, &o.DeliveredAt, &o.CompletedAt, &o.CancelledAt, &o.CreatedAt, &o.UpdatedAt)
	return o, mapErr(err)
}

func (s *PGStore) CreateOrder(ctx context.Context, o *order.Order) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO orders (`+orderCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`, o.ID, o.GigID, o.BuyerID, o.SellerID, o.Status, o.Price, o.Requirements,
		o.Gig.Title, o.Gig.Description, o.Gig.DeliveryTimeDays, o.CheckoutSessionID, o.CancelReason,
		o.AcceptedAt, o.PaidAt, o.DeliveredAt, o.CompletedAt, o.CancelledAt, o.CreatedAt, o.UpdatedAt)
	return mapErr(err)
}

func (s *PGStore) OrderByID(ctx context.Context, id string) (order.Order, error) {
	return scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id = $1`, id))
}

func (s *PGStore) OrderByCheckoutSession(ctx context.Context, sessionID string) (order.Order, error) {
	if sessionID == "" {
		return order.Order{}, ErrNotFound
	}
	return scanOrder(s.pool.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE checkout_session_id = $1`, sessionID))
}

func (s *PGStore) ListOrders(ctx context.Context, userID string, side Side) ([]order.Order, error) {
	cond := "buyer_id = $1 OR seller_id = $1"
	switch side {
	case SideBought:
		cond = "buyer_id = $1"
	case SideSold:
		cond = "seller_id = $1"
	}
	rows, err := s.pool.Query(ctx, `SELECT `+orderCols+` FROM orders WHERE `+cond+` ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := make([]order.Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, o)
	}
	return res, rows.Err()
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// saveOrder is the guarded UPDATE: it only matches while updated_at is the
// value the caller read.
func saveOrder(ctx context.Context, db execer, next order.Order, prev time.Time) error {
	tag, err := db.Exec(ctx, `
		UPDATE orders SET status = $2, checkout_session_id = $3, cancel_reason = $4,
		       accepted_at = $5, paid_at = $6, delivered_at = $7, completed_at = $8,
		       cancelled_at = $9, updated_at = $10
		WHERE id = $1 AND updated_at = $11
	`, next.ID, next.Status, next.CheckoutSessionID, next.CancelReason,
		next.AcceptedAt, next.PaidAt, next.DeliveredAt, next.CompletedAt,
		next.CancelledAt, next.UpdatedAt, prev)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConflict
	}
	return nil
}

func (s *PGStore) SaveOrder(ctx context.Context, next order.Order, prevUpdatedAt time.Time) error {
	err := saveOrder(ctx, s.pool, next, prevUpdatedAt)
	if errors.Is(err, ErrConflict) {
		if _, lookErr := s.OrderByID(ctx, next.ID); errors.Is(lookErr, ErrNotFound) {
			return ErrNotFound
		}
	}
	return err
}

func (s *PGStore) CompleteOrder(ctx context.Context, next order.Order, prevUpdatedAt time.Time, review *models.Review) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := saveOrder(ctx, tx, next, prevUpdatedAt); err != nil {
		return err
	}
	if review != nil {
		if err := insertReview(ctx, tx, review); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ===== Reviews =====

const reviewCols = `id, order_id, gig_id, reviewer_id, reviewed_user_id, rating, comment, created_at`

func insertReview(ctx context.Context, db execer, r *models.Review) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	_, err := db.Exec(ctx, `
		INSERT INTO reviews (`+reviewCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, r.ID, r.OrderID, r.GigID, r.ReviewerID, r.ReviewedUserID, r.Rating, r.Comment, r.CreatedAt)
	return mapErr(err)
}

func (s *PGStore) CreateReview(ctx context.Context, r *models.Review) error {
	return insertReview(ctx, s.pool, r)
}

func (s *PGStore) listReviews(ctx context.Context, col, id string) ([]models.Review, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+reviewCols+` FROM reviews WHERE `+col+` = $1 ORDER BY created_at DESC`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := make([]models.Review, 0)
	for rows.Next() {
		var r models.Review
		if err := rows.Scan(&r.ID, &r.OrderID, &r.GigID, &r.ReviewerID, &r.ReviewedUserID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, r)
	}
	return res, rows.Err()
}

func (s *PGStore) ReviewsByGig(ctx context.Context, gigID string) ([]models.Review, error) {
	return s.listReviews(ctx, "gig_id", gigID)
}

func (s *PGStore) ReviewsByUser(ctx context.Context, userID string) ([]models.Review, error) {
	return s.listReviews(ctx, "reviewed_user_id", userID)
}

// ===== Messages =====

func (s *PGStore) CreateMessage(ctx context.Context, m *models.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (id, sender_id, receiver_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, m.ID, m.SenderID, m.ReceiverID, m.Content, m.CreatedAt)
	return mapErr(err)
}

func (s *PGStore) Thread(ctx context.Context, a, b string, since time.Time) ([]models.Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sender_id, receiver_id, content, created_at
		FROM messages
		WHERE ((sender_id = $1 AND receiver_id = $2) OR (sender_id = $2 AND receiver_id = $1))
		  AND created_at > $3
		ORDER BY created_at ASC
	`, a, b, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := make([]models.Message, 0)
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (s *PGStore) Conversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT ON (other) other, u.full_name, content, created_at
		FROM (
			SELECT CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END AS other,
			       content, created_at
			FROM messages
			WHERE sender_id = $1 OR receiver_id = $1
		) m
		JOIN users u ON u.id = m.other
		ORDER BY other, created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := make([]models.Conversation, 0)
	for rows.Next() {
		var c models.Conversation
		if err := rows.Scan(&c.UserID, &c.FullName, &c.LastMessage, &c.LastMessageAt); err != nil {
			return nil, err
		}
		res = append(res, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// DISTINCT ON forces ordering by counterpart; present newest first.
	sortConversations(res)
	return res, nil
}
