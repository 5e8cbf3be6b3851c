// Package mongo provides a MongoDB-backed Store via the Grove ORM. It suits
// deployments that already run Mongo and want the ledger colocated with it.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	tokenledger "github.com/xraph/tokenledger"
	tlstore "github.com/xraph/tokenledger/store"
	"github.com/xraph/tokenledger/token"
	"github.com/xraph/tokenledger/types"
)

// Collection name constants.
const (
	colTokens       = "tokenledger_tokens"
	colBalances     = "tokenledger_balances"
	colAllowances   = "tokenledger_allowances"
	colTransactions = "tokenledger_transactions"
)

// compile-time interface check
var _ tlstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM. Mutations are
// serialized per symbol so each one sees the latest persisted state.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:    db,
		mdb:   mongodriver.Unwrap(db),
		locks: make(map[string]*sync.Mutex),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all ledger collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("tokenledger/mongo: migrate %s indexes: %w", col, err)
		}
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

	err = s.inTransaction(ctx, func(ctx context.Context) error {
		m := toTokenModel(st.Metadata())
		if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
			return fmt.Errorf("tokenledger/mongo: create token: %w", err)
		}
		return s.persistChanges(ctx, symbol, st.Changes())
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
	return s.inTransaction(ctx, func(ctx context.Context) error {
		return s.persistChanges(ctx, symbol, st.Changes())
	})
}

func (s *Store) GetMetadata(ctx context.Context, symbol string) (*token.Metadata, error) {
	var m tokenModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": symbol}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, tokenledger.ErrTokenNotFound
		}
		return nil, fmt.Errorf("tokenledger/mongo: get metadata: %w", err)
	}
	return fromTokenModel(&m)
}

func (s *Store) ListTokens(ctx context.Context) ([]token.Info, error) {
	var models []tokenModel
	err := s.mdb.NewFind(&models).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("tokenledger/mongo: list tokens: %w", err)
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
	var m balanceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": balanceDocID(symbol, acct.Key())}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return s.zeroIfTokenExists(ctx, symbol)
		}
		return types.Amount{}, fmt.Errorf("tokenledger/mongo: get balance: %w", err)
	}
	b, err := fromBalanceModel(&m)
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
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"symbol": symbol}).
		Sort(bson.D{{Key: "account_key", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("tokenledger/mongo: list balances: %w", err)
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
	var m allowanceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": allowanceDocID(symbol, owner.Key(), spender.Key())}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return s.zeroIfTokenExists(ctx, symbol)
		}
		return types.Amount{}, fmt.Errorf("tokenledger/mongo: get allowance: %w", err)
	}
	a, err := fromAllowanceModel(&m)
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

	total, err := s.mdb.Collection(colTransactions).
		CountDocuments(ctx, bson.M{"symbol": symbol})
	if err != nil {
		return nil, fmt.Errorf("tokenledger/mongo: count transactions: %w", err)
	}

	var models []transactionModel
	q := s.mdb.NewFind(&models).Filter(bson.M{"symbol": symbol})
	if limit == 0 || limit > uint64(total) {
		q = q.Sort(bson.D{{Key: "tx_id", Value: 1}})
	} else {
		q = q.Sort(bson.D{{Key: "tx_id", Value: -1}}).Limit(int64(limit))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("tokenledger/mongo: list transactions: %w", err)
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
	err = s.mdb.NewFind(&balanceModels).
		Filter(bson.M{"symbol": symbol}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("tokenledger/mongo: load balances: %w", err)
	}
	balances := make([]token.AccountBalance, len(balanceModels))
	for i := range balanceModels {
		if balances[i], err = fromBalanceModel(&balanceModels[i]); err != nil {
			return nil, err
		}
	}

	var allowanceModels []allowanceModel
	err = s.mdb.NewFind(&allowanceModels).
		Filter(bson.M{"symbol": symbol}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("tokenledger/mongo: load allowances: %w", err)
	}
	allowances := make([]token.AllowanceEntry, len(allowanceModels))
	for i := range allowanceModels {
		if allowances[i], err = fromAllowanceModel(&allowanceModels[i]); err != nil {
			return nil, err
		}
	}

	var txs []token.Transaction
	var last transactionModel
	err = s.mdb.NewFind(&last).
		Filter(bson.M{"symbol": symbol}).
		Sort(bson.D{{Key: "tx_id", Value: -1}}).
		Limit(1).
		Scan(ctx)
	switch {
	case err == nil:
		tx, convErr := fromTransactionModel(&last)
		if convErr != nil {
			return nil, convErr
		}
		txs = append(txs, tx)
	case isNoDocuments(err):
		// Fresh ledger with no transactions yet.
	default:
		return nil, fmt.Errorf("tokenledger/mongo: load last transaction: %w", err)
	}

	return token.Restore(*meta, balances, allowances, txs), nil
}

// inTransaction runs fn inside a MongoDB session transaction so a change set
// either lands whole or not at all. Requires a replica set or sharded
// deployment; standalone servers reject transactions.
func (s *Store) inTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	client := s.mdb.Collection(colTokens).Database().Client()
	sess, err := client.StartSession()
	if err != nil {
		return fmt.Errorf("tokenledger/mongo: start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(ctx context.Context) (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// persistChanges writes a change set produced by a state mutation. It runs
// inside the session transaction opened by the caller.
func (s *Store) persistChanges(ctx context.Context, symbol string, cs token.ChangeSet) error {
	if cs.Metadata != nil {
		m := toTokenModel(*cs.Metadata)
		_, err := s.mdb.NewUpdate(m).
			Filter(bson.M{"_id": m.Symbol}).
			SetUpdate(bson.M{"$set": bson.M{
				"name":         m.Name,
				"decimals":     m.Decimals,
				"description":  m.Description,
				"logo":         m.Logo,
				"total_supply": m.TotalSupply,
				"owner":        m.Owner,
				"fee":          m.Fee,
				"updated_at":   m.UpdatedAt,
			}}).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("tokenledger/mongo: update metadata: %w", err)
		}
	}

	for _, b := range cs.Balances {
		m := toBalanceModel(symbol, b)
		_, err := s.mdb.NewUpdate(m).
			Filter(bson.M{"_id": m.DocID}).
			SetUpdate(bson.M{"$set": bson.M{
				"_id":         m.DocID,
				"symbol":      m.Symbol,
				"account_key": m.AccountKey,
				"balance":     m.Balance,
				"updated_at":  m.UpdatedAt,
			}}).
			Upsert().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("tokenledger/mongo: upsert balance: %w", err)
		}
	}

	for _, a := range cs.Allowances {
		m := toAllowanceModel(symbol, a)
		_, err := s.mdb.NewUpdate(m).
			Filter(bson.M{"_id": m.DocID}).
			SetUpdate(bson.M{"$set": bson.M{
				"_id":         m.DocID,
				"symbol":      m.Symbol,
				"owner_key":   m.OwnerKey,
				"spender_key": m.SpenderKey,
				"amount":      m.Amount,
				"updated_at":  m.UpdatedAt,
			}}).
			Upsert().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("tokenledger/mongo: upsert allowance: %w", err)
		}
	}

	for _, tx := range cs.Transactions {
		m := toTransactionModel(symbol, tx)
		if _, err := s.mdb.NewInsert(m).Exec(ctx); err != nil {
			return fmt.Errorf("tokenledger/mongo: insert transaction: %w", err)
		}
	}

	return nil
}

func (s *Store) tokenExists(ctx context.Context, symbol string) (bool, error) {
	count, err := s.mdb.Collection(colTokens).
		CountDocuments(ctx, bson.M{"_id": symbol})
	if err != nil {
		return false, fmt.Errorf("tokenledger/mongo: token exists: %w", err)
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

// zeroIfTokenExists distinguishes a missing document (zero balance or
// allowance) from a missing token.
func (s *Store) zeroIfTokenExists(ctx context.Context, symbol string) (types.Amount, error) {
	if err := s.requireToken(ctx, symbol); err != nil {
		return types.Amount{}, err
	}
	return types.Amount{}, nil
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all ledger collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colTokens: {
			{Keys: bson.D{{Key: "owner", Value: 1}}},
			{Keys: bson.D{{Key: "name", Value: 1}}},
		},
		colBalances: {
			{
				Keys:    bson.D{{Key: "symbol", Value: 1}, {Key: "account_key", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colAllowances: {
			{
				Keys:    bson.D{{Key: "symbol", Value: 1}, {Key: "owner_key", Value: 1}, {Key: "spender_key", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
		colTransactions: {
			{
				Keys:    bson.D{{Key: "symbol", Value: 1}, {Key: "tx_id", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
			{Keys: bson.D{{Key: "symbol", Value: 1}, {Key: "timestamp", Value: -1}}},
		},
	}
}
