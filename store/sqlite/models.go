package sqlite

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/tokenledger/id"
	"github.com/xraph/tokenledger/token"
	"github.com/xraph/tokenledger/types"
)

// Amounts are stored as base-10 strings so arbitrary-precision values
// survive the round trip unchanged.

// ==================== Token models ====================

type tokenModel struct {
	grove.BaseModel `grove:"table:tokenledger_tokens"`

	Symbol      string    `grove:"symbol,pk"`
	Name        string    `grove:"name"`
	Decimals    int       `grove:"decimals"`
	Description string    `grove:"description"`
	Logo        string    `grove:"logo"`
	TotalSupply string    `grove:"total_supply"`
	Owner       string    `grove:"owner"`
	Fee         string    `grove:"fee"`
	CreatedAt   time.Time `grove:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"`
}

func toTokenModel(meta token.Metadata) *tokenModel {
	return &tokenModel{
		Symbol:      meta.Symbol,
		Name:        meta.Name,
		Decimals:    int(meta.Decimals),
		Description: meta.Description,
		Logo:        meta.Logo,
		TotalSupply: meta.TotalSupply.String(),
		Owner:       meta.Owner.String(),
		Fee:         meta.Fee.String(),
		CreatedAt:   meta.CreatedAt,
		UpdatedAt:   meta.UpdatedAt,
	}
}

func fromTokenModel(m *tokenModel) (*token.Metadata, error) {
	owner, err := id.ParsePrincipal(m.Owner)
	if err != nil {
		return nil, err
	}
	totalSupply, err := types.ParseAmount(m.TotalSupply)
	if err != nil {
		return nil, err
	}
	fee, err := types.ParseAmount(m.Fee)
	if err != nil {
		return nil, err
	}

	return &token.Metadata{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Name:        m.Name,
		Symbol:      m.Symbol,
		Decimals:    uint8(m.Decimals),
		Description: m.Description,
		Logo:        m.Logo,
		TotalSupply: totalSupply,
		Owner:       owner,
		Fee:         fee,
	}, nil
}

// ==================== Balance models ====================

type balanceModel struct {
	grove.BaseModel `grove:"table:tokenledger_balances"`

	Symbol     string    `grove:"symbol"`
	AccountKey string    `grove:"account_key"`
	Balance    string    `grove:"balance"`
	UpdatedAt  time.Time `grove:"updated_at"`
}

func toBalanceModel(symbol string, b token.AccountBalance) *balanceModel {
	return &balanceModel{
		Symbol:     symbol,
		AccountKey: b.Account.Key(),
		Balance:    b.Balance.String(),
		UpdatedAt:  time.Now().UTC(),
	}
}

func fromBalanceModel(m *balanceModel) (token.AccountBalance, error) {
	acct, err := token.ParseAccount(m.AccountKey)
	if err != nil {
		return token.AccountBalance{}, err
	}
	balance, err := types.ParseAmount(m.Balance)
	if err != nil {
		return token.AccountBalance{}, err
	}
	return token.AccountBalance{Account: acct, Balance: balance}, nil
}

// ==================== Allowance models ====================

type allowanceModel struct {
	grove.BaseModel `grove:"table:tokenledger_allowances"`

	Symbol     string    `grove:"symbol"`
	OwnerKey   string    `grove:"owner_key"`
	SpenderKey string    `grove:"spender_key"`
	Amount     string    `grove:"amount"`
	UpdatedAt  time.Time `grove:"updated_at"`
}

func toAllowanceModel(symbol string, a token.AllowanceEntry) *allowanceModel {
	return &allowanceModel{
		Symbol:     symbol,
		OwnerKey:   a.Owner.Key(),
		SpenderKey: a.Spender.Key(),
		Amount:     a.Amount.String(),
		UpdatedAt:  time.Now().UTC(),
	}
}

func fromAllowanceModel(m *allowanceModel) (token.AllowanceEntry, error) {
	owner, err := token.ParseAccount(m.OwnerKey)
	if err != nil {
		return token.AllowanceEntry{}, err
	}
	spender, err := token.ParseAccount(m.SpenderKey)
	if err != nil {
		return token.AllowanceEntry{}, err
	}
	amount, err := types.ParseAmount(m.Amount)
	if err != nil {
		return token.AllowanceEntry{}, err
	}
	return token.AllowanceEntry{Owner: owner, Spender: spender, Amount: amount}, nil
}

// ==================== Transaction models ====================

type transactionModel struct {
	grove.BaseModel `grove:"table:tokenledger_transactions"`

	Symbol    string `grove:"symbol"`
	TxID      int64  `grove:"tx_id"`
	FromKey   string `grove:"from_key"`
	ToKey     string `grove:"to_key"`
	Amount    string `grove:"amount"`
	Timestamp int64  `grove:"timestamp"`
	Memo      []byte `grove:"memo"`
}

func toTransactionModel(symbol string, tx token.Transaction) *transactionModel {
	return &transactionModel{
		Symbol:    symbol,
		TxID:      int64(tx.ID),
		FromKey:   tx.From.Key(),
		ToKey:     tx.To.Key(),
		Amount:    tx.Amount.String(),
		Timestamp: int64(tx.Timestamp),
		Memo:      tx.Memo,
	}
}

func fromTransactionModel(m *transactionModel) (token.Transaction, error) {
	from, err := token.ParseAccount(m.FromKey)
	if err != nil {
		return token.Transaction{}, err
	}
	to, err := token.ParseAccount(m.ToKey)
	if err != nil {
		return token.Transaction{}, err
	}
	amount, err := types.ParseAmount(m.Amount)
	if err != nil {
		return token.Transaction{}, err
	}
	return token.Transaction{
		ID:        uint64(m.TxID),
		From:      from,
		To:        to,
		Amount:    amount,
		Timestamp: uint64(m.Timestamp),
		Memo:      m.Memo,
	}, nil
}
