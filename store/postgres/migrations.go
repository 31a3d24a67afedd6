package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the abacus store.
var Migrations = migrate.NewGroup("abacus")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_abacus_accounts",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS abacus_accounts (
    id         TEXT PRIMARY KEY,
    balance    BIGINT NOT NULL DEFAULT 0 CHECK (balance >= 0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS abacus_accounts`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_abacus_operations",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS abacus_operations (
    id         TEXT PRIMARY KEY,
    kind       TEXT NOT NULL,
    cost       BIGINT NOT NULL CHECK (cost > 0),
    arity      INT NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_abacus_operations_kind ON abacus_operations (kind);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS abacus_operations`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_abacus_records",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS abacus_records (
    id            TEXT PRIMARY KEY,
    operation_id  TEXT NOT NULL REFERENCES abacus_operations (id),
    account_id    TEXT NOT NULL REFERENCES abacus_accounts (id),
    kind          TEXT NOT NULL,
    cost          BIGINT NOT NULL,
    balance_after BIGINT NOT NULL,
    result        TEXT NOT NULL DEFAULT '',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    deleted       BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE INDEX IF NOT EXISTS idx_abacus_records_account ON abacus_records (account_id, created_at DESC);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS abacus_records`)
				return err
			},
		},
	)
}
