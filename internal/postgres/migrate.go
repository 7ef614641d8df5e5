package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"
)

// schema is applied in order; every statement is idempotent.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS btree_gist`,
	`CREATE TABLE IF NOT EXISTS users (
		username      TEXT PRIMARY KEY,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL DEFAULT 'MEMBER' CHECK (role IN ('MEMBER', 'ADMIN')),
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		owner       TEXT NOT NULL REFERENCES users(username),
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS items_owner_idx ON items(owner)`,
	`CREATE TABLE IF NOT EXISTS reservations (
		id         BIGSERIAL PRIMARY KEY,
		item_id    BIGINT NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		owner      TEXT NOT NULL REFERENCES users(username),
		start_time TIMESTAMPTZ NOT NULL,
		end_time   TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT reservations_interval_check CHECK (start_time < end_time),
		CONSTRAINT reservations_no_overlap EXCLUDE USING gist (
			item_id WITH =,
			tstzrange(start_time, end_time, '[)') WITH &&
		)
	)`,
	`CREATE TABLE IF NOT EXISTS reservation_audit (
		event_id       UUID PRIMARY KEY,
		event_type     TEXT NOT NULL,
		reservation_id BIGINT NOT NULL,
		item_id        BIGINT NOT NULL,
		owner          TEXT NOT NULL,
		start_time     TIMESTAMPTZ NOT NULL,
		end_time       TIMESTAMPTZ NOT NULL,
		producer       TEXT NOT NULL,
		occurred_at    TIMESTAMPTZ NOT NULL,
		recorded_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS reservation_audit_reservation_idx ON reservation_audit(reservation_id)`,
}

func Migrate(ctx context.Context, db *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return errors.Wrapf(err, "migrate step %d", i)
		}
	}
	return nil
}
