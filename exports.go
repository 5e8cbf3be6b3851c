package tokenledger

import (
	"github.com/xraph/tokenledger/token"
	"github.com/xraph/tokenledger/types"
)

// Re-export common types for convenience so users don't have to import the
// types and token packages.

// Amount is re-exported from the types package.
type Amount = types.Amount

// Entity is re-exported from the types package.
type Entity = types.Entity

// Account is re-exported from the token package.
type Account = token.Account

// Re-export Amount constructors
var (
	NewAmount   = types.NewAmount
	ParseAmount = types.ParseAmount
	MustAmount  = types.MustAmount
	ZeroAmount  = types.Zero
	Sum         = types.Sum
)

// Re-export Account constructors
var (
	NewAccount     = token.NewAccount
	WithSubaccount = token.WithSubaccount
)

// Re-export Entity constructor
var NewEntity = types.NewEntity
