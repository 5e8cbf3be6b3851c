// Package token defines the token ledger domain model and its pure
// state-transition machine: accounts, metadata, allowances, the append-only
// transaction log, and the five mutating operations with their invariants.
// The package performs no I/O; persistence and host concerns live in the
// store backends and the engine.
package token

import (
	"encoding/hex"
	"fmt"

	"github.com/xraph/tokenledger/id"
)

// SubaccountSize is the fixed byte length of a subaccount discriminator.
const SubaccountSize = 32

// Subaccount is an optional 32-byte discriminator distinguishing multiple
// accounts under one owner.
type Subaccount [SubaccountSize]byte

// ParseSubaccount decodes a hex-encoded subaccount. The empty string yields
// nil (no subaccount).
func ParseSubaccount(s string) (*Subaccount, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("token: parse subaccount %q: %w", s, err)
	}
	if len(raw) != SubaccountSize {
		return nil, fmt.Errorf("token: parse subaccount: got %d bytes, want %d", len(raw), SubaccountSize)
	}
	var sub Subaccount
	copy(sub[:], raw)
	return &sub, nil
}

// String returns the hex encoding of the subaccount.
func (s Subaccount) String() string {
	return hex.EncodeToString(s[:])
}

// Account identifies a balance holder: an owner principal plus an optional
// subaccount. Two accounts with the same owner but different subaccounts are
// distinct holders. Immutable once constructed.
type Account struct {
	Owner      id.Principal `json:"owner"`
	Subaccount *Subaccount  `json:"subaccount,omitempty"`
}

// NewAccount returns the default account of an owner (no subaccount).
func NewAccount(owner id.Principal) Account {
	return Account{Owner: owner}
}

// WithSubaccount returns the account of an owner under a subaccount.
func WithSubaccount(owner id.Principal, sub Subaccount) Account {
	return Account{Owner: owner, Subaccount: &sub}
}

// Key returns a stable string key over both fields, suitable for maps and
// storage. Accounts with equal keys are the same holder.
func (a Account) Key() string {
	if a.Subaccount == nil {
		return a.Owner.String()
	}
	return a.Owner.String() + ":" + a.Subaccount.String()
}

// Equal reports whether two accounts identify the same holder.
func (a Account) Equal(other Account) bool {
	return a.Key() == other.Key()
}

// String returns a human-readable form of the account.
func (a Account) String() string {
	return a.Key()
}

// ParseAccount parses a key produced by Key back into an Account.
func ParseAccount(key string) (Account, error) {
	ownerPart := key
	var subPart string
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			ownerPart, subPart = key[:i], key[i+1:]
			break
		}
	}

	owner, err := id.ParsePrincipal(ownerPart)
	if err != nil {
		return Account{}, err
	}
	sub, err := ParseSubaccount(subPart)
	if err != nil {
		return Account{}, err
	}
	return Account{Owner: owner, Subaccount: sub}, nil
}
