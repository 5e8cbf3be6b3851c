package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the token ledger store.
var Migrations = migrate.NewGroup("tokenledger")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_tokenledger_tokens",
			Version: "20240101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tokenledger_tokens (
    symbol       TEXT PRIMARY KEY,
    name         TEXT NOT NULL DEFAULT '',
    decimals     INT NOT NULL DEFAULT 0,
    description  TEXT NOT NULL DEFAULT '',
    logo         TEXT NOT NULL DEFAULT '',
    total_supply TEXT NOT NULL DEFAULT '0',
    owner        TEXT NOT NULL DEFAULT '',
    fee          TEXT NOT NULL DEFAULT '0',
    created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_tokenledger_tokens_owner ON tokenledger_tokens (owner);
CREATE INDEX IF NOT EXISTS idx_tokenledger_tokens_name ON tokenledger_tokens (name);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tokenledger_tokens`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tokenledger_balances",
			Version: "20240101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tokenledger_balances (
    symbol      TEXT NOT NULL,
    account_key TEXT NOT NULL,
    balance     TEXT NOT NULL DEFAULT '0',
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (symbol, account_key)
);

CREATE INDEX IF NOT EXISTS idx_tokenledger_balances_symbol ON tokenledger_balances (symbol);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tokenledger_balances`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tokenledger_allowances",
			Version: "20240101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tokenledger_allowances (
    symbol      TEXT NOT NULL,
    owner_key   TEXT NOT NULL,
    spender_key TEXT NOT NULL,
    amount      TEXT NOT NULL DEFAULT '0',
    updated_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    PRIMARY KEY (symbol, owner_key, spender_key)
);

CREATE INDEX IF NOT EXISTS idx_tokenledger_allowances_symbol ON tokenledger_allowances (symbol);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tokenledger_allowances`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_tokenledger_transactions",
			Version: "20240101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS tokenledger_transactions (
    symbol    TEXT NOT NULL,
    tx_id     BIGINT NOT NULL,
    from_key  TEXT NOT NULL DEFAULT '',
    to_key    TEXT NOT NULL DEFAULT '',
    amount    TEXT NOT NULL DEFAULT '0',
    timestamp BIGINT NOT NULL DEFAULT 0,
    memo      BYTEA,
    PRIMARY KEY (symbol, tx_id)
);

CREATE INDEX IF NOT EXISTS idx_tokenledger_txs_symbol ON tokenledger_transactions (symbol, tx_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS tokenledger_transactions`)
				return err
			},
		},
	)
}
