package store

import (
	"context"

	"github.com/xraph/tokenledger/token"
	"github.com/xraph/tokenledger/types"
)

// Store is the unified storage interface for token ledgers. Implementations
// serialize UpdateToken calls per symbol, so the mutation closure always sees
// the latest state and its change set is persisted atomically with respect to
// other mutations of the same token. Reads never load more than they return.
type Store interface {
	// Token methods
	CreateToken(ctx context.Context, st *token.State) error
	UpdateToken(ctx context.Context, symbol string, fn func(st *token.State) error) error
	GetMetadata(ctx context.Context, symbol string) (*token.Metadata, error)
	ListTokens(ctx context.Context) ([]token.Info, error)

	// Balance methods
	GetBalance(ctx context.Context, symbol string, acct token.Account) (types.Amount, error)
	ListBalances(ctx context.Context, symbol string) ([]token.AccountBalance, error)

	// Allowance methods
	GetAllowance(ctx context.Context, symbol string, owner, spender token.Account) (types.Amount, error)

	// Transaction methods
	ListTransactions(ctx context.Context, symbol string, limit uint64) ([]token.Transaction, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
