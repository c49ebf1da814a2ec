package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/sudo-init-do/gighub/internal/config"
)

// Connect opens a pool and pings it.
func Connect(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}
	log.Info().Str("host", cfg.Host).Str("db", cfg.DBName).Msg("Connected to Postgres successfully")
	return pool, nil
}

// EnsureSchema creates every table the store needs. Each step is idempotent
// so it runs on every start.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger) error {
	steps := []struct {
		name string
		sql  string
	}{
		{"users", `
			CREATE TABLE IF NOT EXISTS users (
				id TEXT PRIMARY KEY,
				email TEXT NOT NULL UNIQUE,
				full_name TEXT NOT NULL,
				role TEXT NOT NULL CHECK (role IN ('client','freelancer')),
				bio TEXT NOT NULL DEFAULT '',
				avatar_url TEXT NOT NULL DEFAULT '',
				password_hash TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)`},
		{"gigs", `
			CREATE TABLE IF NOT EXISTS gigs (
				id TEXT PRIMARY KEY,
				seller_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				title TEXT NOT NULL,
				description TEXT NOT NULL,
				category TEXT NOT NULL DEFAULT '',
				price BIGINT NOT NULL CHECK (price > 0),
				delivery_time_days INTEGER NOT NULL,
				images TEXT[] NOT NULL DEFAULT '{}',
				status TEXT NOT NULL DEFAULT 'active',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_gigs_seller ON gigs(seller_id)`},
		{"orders", `
			CREATE TABLE IF NOT EXISTS orders (
				id TEXT PRIMARY KEY,
				gig_id TEXT NOT NULL REFERENCES gigs(id),
				buyer_id TEXT NOT NULL REFERENCES users(id),
				seller_id TEXT NOT NULL REFERENCES users(id),
				status TEXT NOT NULL CHECK (status IN ('requested','pending','completed','rejected','cancelled')),
				price BIGINT NOT NULL,
				requirements TEXT NOT NULL DEFAULT '',
				gig_title TEXT NOT NULL,
				gig_description TEXT NOT NULL,
				gig_delivery_time_days INTEGER NOT NULL,
				checkout_session_id TEXT NOT NULL DEFAULT '',
				cancel_reason TEXT NOT NULL DEFAULT '',
				accepted_at TIMESTAMPTZ NULL,
				paid_at TIMESTAMPTZ NULL,
				delivered_at TIMESTAMPTZ NULL,
				completed_at TIMESTAMPTZ NULL,
				cancelled_at TIMESTAMPTZ NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				CHECK ((completed_at IS NOT NULL) = (status = 'completed'))
			);
			CREATE INDEX IF NOT EXISTS idx_orders_buyer ON orders(buyer_id, created_at);
			CREATE INDEX IF NOT EXISTS idx_orders_seller ON orders(seller_id, created_at);
			CREATE INDEX IF NOT EXISTS idx_orders_checkout ON orders(checkout_session_id) WHERE checkout_session_id <> ''`},
		{"reviews", `
			CREATE TABLE IF NOT EXISTS reviews (
				id TEXT PRIMARY KEY,
				order_id TEXT NOT NULL UNIQUE REFERENCES orders(id) ON DELETE CASCADE,
				gig_id TEXT NOT NULL REFERENCES gigs(id),
				reviewer_id TEXT NOT NULL REFERENCES users(id),
				reviewed_user_id TEXT NOT NULL REFERENCES users(id),
				rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
				comment TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_reviews_gig ON reviews(gig_id);
			CREATE INDEX IF NOT EXISTS idx_reviews_user ON reviews(reviewed_user_id)`},
		{"messages", `
			CREATE TABLE IF NOT EXISTS messages (
				id TEXT PRIMARY KEY,
				sender_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				receiver_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
				content TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_messages_pair ON messages(LEAST(sender_id, receiver_id), GREATEST(sender_id, receiver_id), created_at)`},
	}
	for _, s := range steps {
		if _, err := pool.Exec(ctx, s.sql); err != nil {
			return fmt.Errorf("ensure %s table: %w", s.name, err)
		}
		log.Debug().Str("table", s.name).Msg("schema ensured")
	}
	return nil
}
