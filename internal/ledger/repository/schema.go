package repository

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Statements are portable between PostgreSQL and SQLite. Amounts are decimal
// strings in base units, times are unix seconds.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS ledger_settings (
		id               INTEGER PRIMARY KEY,
		owner            TEXT    NOT NULL,
		fee_basis_points BIGINT  NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS creators (
		creator  TEXT   PRIMARY KEY,
		position BIGINT NOT NULL UNIQUE
	)`,
	`CREATE TABLE IF NOT EXISTS creator_plans (
		creator          TEXT    PRIMARY KEY,
		plan_name        TEXT    NOT NULL,
		description      TEXT    NOT NULL,
		price_per_month  TEXT    NOT NULL,
		asset_id         TEXT    NOT NULL,
		is_active        BOOLEAN NOT NULL,
		subscriber_count BIGINT  NOT NULL,
		total_earned     TEXT    NOT NULL,
		created_at       BIGINT  NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		subscriber        TEXT    NOT NULL,
		creator           TEXT    NOT NULL,
		start_time        BIGINT  NOT NULL,
		last_payment_time BIGINT  NOT NULL,
		expiry_time       BIGINT  NOT NULL,
		is_active         BOOLEAN NOT NULL,
		total_paid        TEXT    NOT NULL,
		PRIMARY KEY (subscriber, creator)
	)`,
	`CREATE TABLE IF NOT EXISTS creator_subscribers (
		creator    TEXT   NOT NULL,
		subscriber TEXT   NOT NULL,
		position   BIGINT NOT NULL,
		PRIMARY KEY (creator, subscriber)
	)`,
	`CREATE TABLE IF NOT EXISTS platform_fees (
		asset_id TEXT PRIMARY KEY,
		amount   TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS balances (
		account  TEXT NOT NULL,
		asset_id TEXT NOT NULL,
		amount   TEXT NOT NULL,
		PRIMARY KEY (account, asset_id)
	)`,
	`CREATE TABLE IF NOT EXISTS ledger_events (
		seq        BIGINT PRIMARY KEY,
		id         TEXT   NOT NULL UNIQUE,
		type       TEXT   NOT NULL,
		created_at BIGINT NOT NULL,
		data       TEXT   NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_subscriptions_subscriber ON subscriptions (subscriber)`,
}

// EnsureSchema creates any missing tables.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "ensure schema")
		}
	}
	return nil
}
