package token

import (
	"strconv"

	"github.com/xraph/tokenledger/id"
	"github.com/xraph/tokenledger/types"
)

// Config carries the parameters of a token initialization.
type Config struct {
	Name          string       `json:"name"`
	Symbol        string       `json:"symbol"`
	Decimals      uint8        `json:"decimals"`
	Description   string       `json:"description,omitempty"`
	Logo          string       `json:"logo,omitempty"`
	InitialSupply types.Amount `json:"initial_supply"`
	Owner         id.Principal `json:"owner"`
	Fee           types.Amount `json:"fee"`
}

// Metadata describes one token. It is created at initialization;
// TotalSupply is the only field mutated afterwards, and only as a derived
// consequence of mint, burn and fee burning — it always equals the sum of
// all balances of that token.
type Metadata struct {
	types.Entity

	Name        string       `json:"name"`
	Symbol      string       `json:"symbol"`
	Decimals    uint8        `json:"decimals"`
	Description string       `json:"description,omitempty"`
	Logo        string       `json:"logo,omitempty"`
	TotalSupply types.Amount `json:"total_supply"`
	Owner       id.Principal `json:"owner"`
	Fee         types.Amount `json:"fee"`
}

// MetadataPair is one key/value entry of the textual metadata rendering.
type MetadataPair struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Pairs renders the metadata as key/value pairs with all numeric fields as
// base-10 strings. Optional fields appear only when set.
func (m *Metadata) Pairs() []MetadataPair {
	pairs := []MetadataPair{
		{Key: "name", Value: m.Name},
		{Key: "symbol", Value: m.Symbol},
		{Key: "decimals", Value: strconv.Itoa(int(m.Decimals))},
		{Key: "total_supply", Value: m.TotalSupply.String()},
		{Key: "owner", Value: m.Owner.String()},
		{Key: "fee", Value: m.Fee.String()},
	}
	if m.Description != "" {
		pairs = append(pairs, MetadataPair{Key: "description", Value: m.Description})
	}
	if m.Logo != "" {
		pairs = append(pairs, MetadataPair{Key: "logo", Value: m.Logo})
	}
	return pairs
}

// Transaction is one completed movement of value. Mint is recorded as a
// transaction from the minting account; burn as a transaction to it.
// Transactions are append-only and never mutated after creation.
type Transaction struct {
	ID        uint64       `json:"id"`
	From      Account      `json:"from"`
	To        Account      `json:"to"`
	Amount    types.Amount `json:"amount"`
	Timestamp uint64       `json:"timestamp"` // seconds since epoch
	Memo      []byte       `json:"memo,omitempty"`
}

// AccountBalance pairs an account with its current balance.
type AccountBalance struct {
	Account Account      `json:"account"`
	Balance types.Amount `json:"balance"`
}

// AllowanceEntry is one (owner, spender) allowance.
type AllowanceEntry struct {
	Owner   Account      `json:"owner"`
	Spender Account      `json:"spender"`
	Amount  types.Amount `json:"amount"`
}

// Info is a registry listing entry.
type Info struct {
	Symbol string       `json:"symbol"`
	Name   string       `json:"name"`
	Owner  id.Principal `json:"owner"`
}

// TransferArgs are the arguments of a transfer. The sending account is
// derived from the host-supplied caller identity plus FromSubaccount; it is
// never self-reported in the payload.
type TransferArgs struct {
	FromSubaccount *Subaccount   `json:"from_subaccount,omitempty"`
	To             Account       `json:"to"`
	Amount         types.Amount  `json:"amount"`
	Fee            *types.Amount `json:"fee,omitempty"`
	Memo           []byte        `json:"memo,omitempty"`
	CreatedAtTime  *uint64       `json:"created_at_time,omitempty"` // seconds
}

// ApproveArgs are the arguments of an approve. Approvals are not charged;
// Fee, ExpiresAt and CreatedAtTime are accepted for interface compatibility
// but not enforced.
type ApproveArgs struct {
	FromSubaccount    *Subaccount   `json:"from_subaccount,omitempty"`
	Spender           Account       `json:"spender"`
	Amount            types.Amount  `json:"amount"`
	ExpectedAllowance *types.Amount `json:"expected_allowance,omitempty"`
	ExpiresAt         *uint64       `json:"expires_at,omitempty"`
	Fee               *types.Amount `json:"fee,omitempty"`
	Memo              []byte        `json:"memo,omitempty"`
	CreatedAtTime     *uint64       `json:"created_at_time,omitempty"`
}

// TransferFromArgs are the arguments of a delegated transfer. The spender
// account is derived from the host-supplied caller identity plus
// SpenderSubaccount.
type TransferFromArgs struct {
	SpenderSubaccount *Subaccount   `json:"spender_subaccount,omitempty"`
	From              Account       `json:"from"`
	To                Account       `json:"to"`
	Amount            types.Amount  `json:"amount"`
	Fee               *types.Amount `json:"fee,omitempty"`
	Memo              []byte        `json:"memo,omitempty"`
	CreatedAtTime     *uint64       `json:"created_at_time,omitempty"`
}
