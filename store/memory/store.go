// Package memory provides an in-memory Store for tests and single-process
// deployments. State survives only as long as the process.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xraph/tokenledger"
	"github.com/xraph/tokenledger/token"
	"github.com/xraph/tokenledger/types"
)

type Store struct {
	mu sync.RWMutex

	// Ledger state keyed by symbol
	tokens map[string]*token.State
}

func New() *Store {
	return &Store{
		tokens: make(map[string]*token.State),
	}
}

// Token Store implementation
func (s *Store) CreateToken(_ context.Context, st *token.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbol := st.Symbol()
	if _, exists := s.tokens[symbol]; exists {
		return tokenledger.ErrTokenExists
	}
	st.ResetChanges()
	s.tokens[symbol] = st
	return nil
}

func (s *Store) UpdateToken(_ context.Context, symbol string, fn func(st *token.State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.tokens[symbol]
	if !ok {
		return tokenledger.ErrTokenNotFound
	}
	// Run the mutation on a copy; committing means swapping the copy in, so
	// a failing callback leaves nothing behind.
	work := token.Restore(st.Metadata(), st.Accounts(), st.Allowances(), st.Transactions(0))
	if err := fn(work); err != nil {
		return err
	}
	work.ResetChanges()
	s.tokens[symbol] = work
	return nil
}

func (s *Store) GetMetadata(_ context.Context, symbol string) (*token.Metadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.tokens[symbol]
	if !ok {
		return nil, tokenledger.ErrTokenNotFound
	}
	meta := st.Metadata()
	return &meta, nil
}

func (s *Store) ListTokens(_ context.Context) ([]token.Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]token.Info, 0, len(s.tokens))
	for _, st := range s.tokens {
		result = append(result, st.Info())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Symbol < result[j].Symbol })
	return result, nil
}

// Balance Store implementation
func (s *Store) GetBalance(_ context.Context, symbol string, acct token.Account) (types.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.tokens[symbol]
	if !ok {
		return types.Amount{}, tokenledger.ErrTokenNotFound
	}
	return st.BalanceOf(acct), nil
}

func (s *Store) ListBalances(_ context.Context, symbol string) ([]token.AccountBalance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.tokens[symbol]
	if !ok {
		return nil, tokenledger.ErrTokenNotFound
	}
	return st.Accounts(), nil
}

// Allowance Store implementation
func (s *Store) GetAllowance(_ context.Context, symbol string, owner, spender token.Account) (types.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.tokens[symbol]
	if !ok {
		return types.Amount{}, tokenledger.ErrTokenNotFound
	}
	return st.Allowance(owner, spender), nil
}

// Transaction Store implementation
func (s *Store) ListTransactions(_ context.Context, symbol string, limit uint64) ([]token.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.tokens[symbol]
	if !ok {
		return nil, tokenledger.ErrTokenNotFound
	}
	return st.Transactions(limit), nil
}

// Store management
func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	return nil // Always available
}

func (s *Store) Close() error {
	return nil // Nothing to close
}
