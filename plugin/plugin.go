// Package plugin provides an extensible plugin system for the token ledger.
// Plugins can hook into various lifecycle events to extend functionality.
package plugin

import (
	"context"

	"github.com/xraph/tokenledger/token"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the plugin is initialized.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the plugin is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Token lifecycle hooks
// ──────────────────────────────────────────────────

// OnTokenInitialized is called when a new token ledger is registered.
type OnTokenInitialized interface {
	Plugin
	OnTokenInitialized(ctx context.Context, meta token.Metadata) error
}

// ──────────────────────────────────────────────────
// Ledger operation hooks
// ──────────────────────────────────────────────────

// OnTransfer is called after a transfer is committed.
type OnTransfer interface {
	Plugin
	OnTransfer(ctx context.Context, symbol string, tx token.Transaction) error
}

// OnMint is called after a mint is committed.
type OnMint interface {
	Plugin
	OnMint(ctx context.Context, symbol string, tx token.Transaction) error
}

// OnBurn is called after a burn is committed.
type OnBurn interface {
	Plugin
	OnBurn(ctx context.Context, symbol string, tx token.Transaction) error
}

// OnApproval is called after an allowance is set.
type OnApproval interface {
	Plugin
	OnApproval(ctx context.Context, symbol string, entry token.AllowanceEntry) error
}

// OnTransferRejected is called when a mutating operation fails a
// precondition. op is the operation name (transfer, mint, burn, approve,
// transfer_from).
type OnTransferRejected interface {
	Plugin
	OnTransferRejected(ctx context.Context, symbol, op string, err error) error
}

// ──────────────────────────────────────────────────
// Scheduler hooks
// ──────────────────────────────────────────────────

// OnTaskExecuted is called after the scheduler runs a due task. err carries
// the task's failure, if any.
type OnTaskExecuted interface {
	Plugin
	OnTaskExecuted(ctx context.Context, taskID uint64, action string, err error) error
}

// TaskAction executes scheduled tasks of a named action type. Plugins
// implementing it extend the scheduler beyond the built-in ledger actions.
type TaskAction interface {
	Plugin
	ActionType() string
	Execute(ctx context.Context, data string) error
}
