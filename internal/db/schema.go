package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS portfolios (
		user_id UUID PRIMARY KEY,
		balance_usd NUMERIC(20, 4) NOT NULL DEFAULT 0,
		is_merchant BOOLEAN NOT NULL DEFAULT FALSE,
		is_frozen BOOLEAN NOT NULL DEFAULT FALSE,
		frozen_reason TEXT NOT NULL DEFAULT '',
		frozen_at TIMESTAMPTZ,
		frozen_by UUID,
		referral_code TEXT NOT NULL UNIQUE,
		account_number TEXT NOT NULL UNIQUE,
		referred_by UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS deposits (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES portfolios(user_id),
		amount NUMERIC(20, 4) NOT NULL,
		method TEXT NOT NULL,
		status TEXT NOT NULL,
		merchant_id UUID,
		merchant_action_required BOOLEAN NOT NULL DEFAULT FALSE,
		notes JSONB,
		reference TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_deposits_user_created ON deposits (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS withdrawals (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES portfolios(user_id),
		amount NUMERIC(20, 4) NOT NULL,
		method TEXT NOT NULL,
		status TEXT NOT NULL,
		destination TEXT NOT NULL DEFAULT '',
		merchant_id UUID,
		confirmation_required BOOLEAN NOT NULL DEFAULT FALSE,
		notes JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		confirmed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_withdrawals_user_created ON withdrawals (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS swap_requests (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES portfolios(user_id),
		from_asset TEXT NOT NULL,
		to_asset TEXT NOT NULL,
		back_asset TEXT NOT NULL,
		amount NUMERIC(20, 4) NOT NULL,
		back_amount NUMERIC(20, 4) NOT NULL DEFAULT 0,
		original_to_price NUMERIC(30, 10) NOT NULL,
		status TEXT NOT NULL,
		settle_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		completed_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS idx_swap_requests_due ON swap_requests (settle_at) WHERE status IN ('PENDING', 'APPROVED')`,
	`CREATE TABLE IF NOT EXISTS referral_edges (
		referrer_id UUID NOT NULL REFERENCES portfolios(user_id),
		referred_user_id UUID PRIMARY KEY REFERENCES portfolios(user_id),
		has_funded_wallet BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS trade_legs (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES portfolios(user_id),
		swap_id UUID NOT NULL REFERENCES swap_requests(id),
		asset TEXT NOT NULL,
		side TEXT NOT NULL,
		quantity NUMERIC(30, 10) NOT NULL,
		price NUMERIC(30, 10) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_trade_legs_swap ON trade_legs (swap_id)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id UUID PRIMARY KEY,
		user_id UUID NOT NULL REFERENCES portfolios(user_id),
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		is_read BOOLEAN NOT NULL DEFAULT FALSE,
		tx_kind TEXT NOT NULL DEFAULT '',
		tx_id UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS admin_logs (
		id UUID PRIMARY KEY,
		actor_id UUID NOT NULL,
		action TEXT NOT NULL,
		tx_kind TEXT NOT NULL DEFAULT '',
		tx_id UUID,
		affected_id UUID,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// EnsureSchema creates the ledger tables if they do not exist. Statements are
// idempotent so repeated startups are safe.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement: %w", err)
		}
	}
	return nil
}
