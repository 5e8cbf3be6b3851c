// Package tokenledger provides an embeddable multi-token fungible ledger for
// Go applications.
//
// Tokenledger is designed as a library, not a service. Import it directly
// into your Go application and register any number of token ledgers, each
// keyed by its symbol. It provides:
//
//   - Transfer, mint, burn, and delegated spending with exact allowance accounting
//   - Arbitrary-precision balances that can never go negative
//   - A dense, append-only transaction log per token
//   - A task scheduler that drives ledger operations on a timetable
//   - Pluggable lifecycle hooks for audit trails and metrics
//   - Memory, SQLite, Postgres, and MongoDB storage backends
//
// # Quick Start
//
// Create a ledger instance with your preferred store:
//
//	import (
//	    "github.com/xraph/tokenledger"
//	    "github.com/xraph/tokenledger/store/postgres"
//	)
//
//	// Initialize store; db is a configured postgres-backed *grove.DB
//	store := postgres.New(db)
//
//	// Create ledger
//	l := tokenledger.New(store)
//
//	// Start the ledger (migrates the store, begins background workers)
//	if err := l.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer l.Stop()
//
// # Core Concepts
//
// Tokens are registered with an initial supply that is credited in full to
// the registering principal, who becomes the minting account:
//
//	owner := id.NewPrincipal()
//	meta, err := l.InitToken(ctx, owner, token.Config{
//	    Name:          "Gold Points",
//	    Symbol:        "GLD",
//	    Decimals:      8,
//	    InitialSupply: tokenledger.NewAmount(1_000_000_000),
//	    Fee:           tokenledger.NewAmount(10),
//	})
//
// Accounts are a principal plus an optional 32-byte subaccount. Transfers
// debit the sender the amount plus the fee; the fee is burned:
//
//	txID, err := l.Transfer(ctx, owner, "GLD", token.TransferArgs{
//	    To:     token.NewAccount(recipient),
//	    Amount: tokenledger.NewAmount(500),
//	})
//
// Allowances let a spender move tokens on an owner's behalf:
//
//	_, err = l.Approve(ctx, owner, "GLD", token.ApproveArgs{
//	    Spender: token.NewAccount(spender),
//	    Amount:  tokenledger.NewAmount(10_000),
//	})
//	txID, err = l.TransferFrom(ctx, spender, "GLD", token.TransferFromArgs{
//	    From:   token.NewAccount(owner),
//	    To:     token.NewAccount(recipient),
//	    Amount: tokenledger.NewAmount(2_500),
//	})
//
// # Invariants
//
// Every mutation is all-or-nothing: a rejected operation leaves balances,
// allowances, supply, and the transaction log exactly as they were. The
// total supply always equals the sum of all balances, transaction IDs are
// dense from zero, and all amount arithmetic is arbitrary-precision integer
// math.
//
// # TypeID
//
// Principals use TypeID for globally unique, type-safe identifiers:
//
//	prn_01h2xcejqtf2nbrexx3vqjhp41  // Principal
//
// TypeIDs are K-sortable, making them ideal for database indexes and
// providing natural time-ordering of identities.
package tokenledger
