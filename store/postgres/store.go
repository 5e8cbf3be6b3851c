// Package postgres provides a PostgreSQL-backed Store via the Grove ORM.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	tokenledger "github.com/xraph/tokenledger"
	tlstore "github.com/xraph/tokenledger/store"
	"github.com/xraph/tokenledger/token"
	"github.com/xraph/tokenledger/types"
)

// compile-time interface check
var _ tlstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM. Mutations are
// serialized per symbol so each one sees the latest persisted state.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:    db,
		pg:    pgdriver.Unwrap(db),
		locks: make(map[string]*sync.Mutex),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("tokenledger/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("tokenledger/postgres: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// symbolLock returns the mutex serializing mutations of one token.
func (s *Store) symbolLock(symbol string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[symbol]
	if !ok {
		l = new(sync.Mutex)
		s.locks[symbol] = l
	}
	return l
}

// ==================== Token Store ====================

func (s *Store) CreateToken(ctx context.Context, st *token.State) error {
	symbol := st.Symbol()
	l := s.symbolLock(symbol)
	l.Lock()
	defer l.Unlock()

	exists, err := s.tokenExists(ctx, symbol)
	if err != nil {
		return err
	}
	if exists {
		return tokenledger.ErrTokenExists
	}

	err = s.runInTx(ctx, func(ctx context.Context, tx *pgdriver.PgTx) error {
		m := toTokenModel(st.Metadata())
		if _, err := tx.NewInsert(m).Exec(ctx); err != nil {
			return err
		}
		return s.persistChanges(ctx, tx, symbol, st.Changes())
	})
	if err != nil {
		return err
	}
	st.ResetChanges()
	return nil
}

func (s *Store) UpdateToken(ctx context.Context, symbol string, fn func(st *token.State) error) error {
	l := s.symbolLock(symbol)
	l.Lock()
	defer l.Unlock()

	st, err := s.loadState(ctx, symbol)
	if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		return err
	}
	return s.runInTx(ctx, func(ctx context.Context, tx *pgdriver.PgTx) error {
		return s.persistChanges(ctx, tx, symbol, st.Changes())
	})
}

func (s *Store) GetMetadata(ctx context.Context, symbol string) (*token.Metadata, error) {
	m := new(tokenModel)
	err := s.pg.NewSelect(m).
		Where("symbol = ?", symbol).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, tokenledger.ErrTokenNotFound
		}
		return nil, err
	}
	return fromTokenModel(m)
}

func (s *Store) ListTokens(ctx context.Context) ([]token.Info, error) {
	var models []tokenModel
	err := s.pg.NewSelect(&models).
		OrderExpr("symbol ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]token.Info, len(models))
	for i := range models {
		meta, err := fromTokenModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = token.Info{Symbol: meta.Symbol, Name: meta.Name, Owner: meta.Owner}
	}
	return result, nil
}

// ==================== Balance Store ====================

func (s *Store) GetBalance(ctx context.Context, symbol string, acct token.Account) (types.Amount, error) {
	m := new(balanceModel)
	err := s.pg.NewSelect(m).
		Where("symbol = ?", symbol).
		Where("account_key = ?", acct.Key()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return s.zeroIfTokenExists(ctx, symbol)
		}
		return types.Amount{}, err
	}
	b, err := fromBalanceModel(m)
	if err != nil {
		return types.Amount{}, err
	}
	return b.Balance, nil
}

func (s *Store) ListBalances(ctx context.Context, symbol string) ([]token.AccountBalance, error) {
	if err := s.requireToken(ctx, symbol); err != nil {
		return nil, err
	}

	var models []balanceModel
	err := s.pg.NewSelect(&models).
		Where("symbol = ?", symbol).
		OrderExpr("account_key ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]token.AccountBalance, len(models))
	for i := range models {
		b, err := fromBalanceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = b
	}
	return result, nil
}

// ==================== Allowance Store ====================

func (s *Store) GetAllowance(ctx context.Context, symbol string, owner, spender token.Account) (types.Amount, error) {
	m := new(allowanceModel)
	err := s.pg.NewSelect(m).
		Where("symbol = ?", symbol).
		Where("owner_key = ?", owner.Key()).
		Where("spender_key = ?", spender.Key()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return s.zeroIfTokenExists(ctx, symbol)
		}
		return types.Amount{}, err
	}
	a, err := fromAllowanceModel(m)
	if err != nil {
		return types.Amount{}, err
	}
	return a.Amount, nil
}

// ==================== Transaction Store ====================

func (s *Store) ListTransactions(ctx context.Context, symbol string, limit uint64) ([]token.Transaction, error) {
	if err := s.requireToken(ctx, symbol); err != nil {
		return nil, err
	}

	var total int64
	err := s.pg.NewRaw(`
		SELECT COUNT(*) FROM tokenledger_transactions WHERE symbol = ?
	`, symbol).Scan(ctx, &total)
	if err != nil {
		return nil, err
	}

	var models []transactionModel
	q := s.pg.NewSelect(&models).Where("symbol = ?", symbol)
	if limit == 0 || limit > uint64(total) {
		q = q.OrderExpr("tx_id ASC")
	} else {
		q = q.OrderExpr("tx_id DESC").Limit(int(limit))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]token.Transaction, len(models))
	for i := range models {
		tx, err := fromTransactionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = tx
	}
	return result, nil
}

// ==================== Helpers ====================

// loadState rehydrates the full ledger state of one token. Only the latest
// transaction is loaded; it seeds the next transaction ID.
func (s *Store) loadState(ctx context.Context, symbol string) (*token.State, error) {
	meta, err := s.GetMetadata(ctx, symbol)
	if err != nil {
		return nil, err
	}

	var balanceModels []balanceModel
	err = s.pg.NewSelect(&balanceModels).
		Where("symbol = ?", symbol).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	balances := make([]token.AccountBalance, len(balanceModels))
	for i := range balanceModels {
		if balances[i], err = fromBalanceModel(&balanceModels[i]); err != nil {
			return nil, err
		}
	}

	var allowanceModels []allowanceModel
	err = s.pg.NewSelect(&allowanceModels).
		Where("symbol = ?", symbol).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	allowances := make([]token.AllowanceEntry, len(allowanceModels))
	for i := range allowanceModels {
		if allowances[i], err = fromAllowanceModel(&allowanceModels[i]); err != nil {
			return nil, err
		}
	}

	var txs []token.Transaction
	last := new(transactionModel)
	err = s.pg.NewSelect(last).
		Where("symbol = ?", symbol).
		OrderExpr("tx_id DESC").
		Limit(1).
		Scan(ctx)
	switch {
	case err == nil:
		tx, convErr := fromTransactionModel(last)
		if convErr != nil {
			return nil, convErr
		}
		txs = append(txs, tx)
	case isNoRows(err):
		// Fresh ledger with no transactions yet.
	default:
		return nil, err
	}

	return token.Restore(*meta, balances, allowances, txs), nil
}

// runInTx executes fn inside one database transaction, committing on success
// and rolling back on error.
func (s *Store) runInTx(ctx context.Context, fn func(ctx context.Context, tx *pgdriver.PgTx) error) error {
	tx, err := s.pg.BeginTxQuery(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// persistChanges writes a change set produced by a state mutation. All rows
// go through one database transaction so a failed mutation never leaves a
// partial update behind.
func (s *Store) persistChanges(ctx context.Context, tx *pgdriver.PgTx, symbol string, cs token.ChangeSet) error {
	if cs.Metadata != nil {
		m := toTokenModel(*cs.Metadata)
		if _, err := tx.NewUpdate(m).WherePK().Exec(ctx); err != nil {
			return err
		}
	}

	for _, b := range cs.Balances {
		m := toBalanceModel(symbol, b)
		_, err := tx.NewInsert(m).
			OnConflict("(symbol, account_key) DO UPDATE").
			Set("balance = EXCLUDED.balance").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	for _, a := range cs.Allowances {
		m := toAllowanceModel(symbol, a)
		_, err := tx.NewInsert(m).
			OnConflict("(symbol, owner_key, spender_key) DO UPDATE").
			Set("amount = EXCLUDED.amount").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		if err != nil {
			return err
		}
	}

	if len(cs.Transactions) > 0 {
		models := make([]transactionModel, len(cs.Transactions))
		for i, t := range cs.Transactions {
			models[i] = *toTransactionModel(symbol, t)
		}
		if _, err := tx.NewInsert(&models).Exec(ctx); err != nil {
			return err
		}
	}

	return nil
}

func (s *Store) tokenExists(ctx context.Context, symbol string) (bool, error) {
	var count int64
	err := s.pg.NewRaw(`
		SELECT COUNT(*) FROM tokenledger_tokens WHERE symbol = ?
	`, symbol).Scan(ctx, &count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Store) requireToken(ctx context.Context, symbol string) error {
	exists, err := s.tokenExists(ctx, symbol)
	if err != nil {
		return err
	}
	if !exists {
		return tokenledger.ErrTokenNotFound
	}
	return nil
}

// zeroIfTokenExists distinguishes a missing row (zero balance or allowance)
// from a missing token.
func (s *Store) zeroIfTokenExists(ctx context.Context, symbol string) (types.Amount, error) {
	if err := s.requireToken(ctx, symbol); err != nil {
		return types.Amount{}, err
	}
	return types.Amount{}, nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
