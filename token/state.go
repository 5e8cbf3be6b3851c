package token

import (
	"fmt"
	"sort"

	"github.com/xraph/tokenledger/id"
	"github.com/xraph/tokenledger/types"
)

// Permitted drift between a caller-supplied created_at_time and the ledger
// clock, in seconds.
const (
	maxFutureDrift uint64 = 120
	maxPastDrift   uint64 = 24 * 60 * 60
)

// State is the in-memory state of a single token ledger. It is a pure state
// machine: every mutation validates all preconditions before touching any
// field, so a rejected operation leaves the state untouched. State performs
// no I/O and is not safe for concurrent use; stores serialize access per
// token.
type State struct {
	meta       Metadata
	minting    Account
	balances   map[string]AccountBalance
	allowances map[string]AllowanceEntry
	txs        []Transaction
	txCounter  uint64

	metaDirty       bool
	dirtyBalances   map[string]struct{}
	dirtyAllowances map[string]struct{}
	persistedTxs    int
}

// ChangeSet is the delta accumulated by a State since the last ResetChanges.
// Stores use it to persist only what a mutation touched.
type ChangeSet struct {
	Metadata     *Metadata
	Balances     []AccountBalance
	Allowances   []AllowanceEntry
	Transactions []Transaction
}

// Empty reports whether the change set carries nothing to persist.
func (c ChangeSet) Empty() bool {
	return c.Metadata == nil && len(c.Balances) == 0 && len(c.Allowances) == 0 && len(c.Transactions) == 0
}

// NewState creates a fresh ledger from cfg. The configured owner receives the
// whole initial supply and becomes the minting account. now is the ledger
// clock in seconds.
func NewState(cfg Config, now uint64) (*State, error) {
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("token: symbol is required")
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("token: name is required")
	}
	if cfg.Owner.IsAnonymous() {
		return nil, fmt.Errorf("token: owner is required")
	}

	meta := Metadata{
		Entity:      types.NewEntity(),
		Name:        cfg.Name,
		Symbol:      cfg.Symbol,
		Decimals:    cfg.Decimals,
		Description: cfg.Description,
		Logo:        cfg.Logo,
		TotalSupply: cfg.InitialSupply,
		Owner:       cfg.Owner,
		Fee:         cfg.Fee,
	}
	s := newEmpty(meta)
	s.metaDirty = true
	s.setBalance(s.minting, cfg.InitialSupply)
	return s, nil
}

// Restore rebuilds a State from persisted rows. The change set starts empty.
func Restore(meta Metadata, balances []AccountBalance, allowances []AllowanceEntry, txs []Transaction) *State {
	s := newEmpty(meta)
	for _, b := range balances {
		s.balances[b.Account.Key()] = b
	}
	for _, a := range allowances {
		s.allowances[allowanceKey(a.Owner, a.Spender)] = a
	}
	s.txs = append(s.txs, txs...)
	sort.Slice(s.txs, func(i, j int) bool { return s.txs[i].ID < s.txs[j].ID })
	if n := len(s.txs); n > 0 {
		s.txCounter = s.txs[n-1].ID + 1
	}
	s.persistedTxs = len(s.txs)
	s.dirtyBalances = make(map[string]struct{})
	s.dirtyAllowances = make(map[string]struct{})
	return s
}

func newEmpty(meta Metadata) *State {
	return &State{
		meta:            meta,
		minting:         NewAccount(meta.Owner),
		balances:        make(map[string]AccountBalance),
		allowances:      make(map[string]AllowanceEntry),
		dirtyBalances:   make(map[string]struct{}),
		dirtyAllowances: make(map[string]struct{}),
	}
}

func allowanceKey(owner, spender Account) string {
	return owner.Key() + "|" + spender.Key()
}

// Transfer moves args.Amount from the caller's account to args.To and burns
// the ledger fee. It returns the ID of the recorded transaction.
func (s *State) Transfer(caller id.Principal, args TransferArgs, now uint64) (uint64, error) {
	from := Account{Owner: caller, Subaccount: args.FromSubaccount}

	fee := s.meta.Fee
	if args.Fee != nil {
		if !args.Fee.Equal(fee) {
			return 0, BadFeeError{Expected: fee}
		}
		fee = *args.Fee
	}

	balance := s.BalanceOf(from)
	total := args.Amount.Add(fee)
	if balance.LessThan(total) {
		return 0, InsufficientFundsError{Balance: balance}
	}

	if args.CreatedAtTime != nil {
		created := *args.CreatedAtTime
		if created > now && created-now > maxFutureDrift {
			return 0, CreatedInFutureError{LedgerTime: now}
		}
		if created < now && now-created > maxPastDrift {
			return 0, TooOldError{}
		}
	}

	s.debit(from, total)
	s.credit(args.To, args.Amount)
	s.burnSupply(fee)

	return s.record(from, args.To, args.Amount, now, args.Memo), nil
}

// Mint credits amount to the given account and grows the total supply. Only
// the minting account's owner may mint; no fee is charged.
func (s *State) Mint(caller id.Principal, to Account, amount types.Amount, now uint64) (uint64, error) {
	if !caller.Equal(s.minting.Owner) {
		return 0, errUnauthorized("not authorized to mint tokens")
	}

	s.credit(to, amount)
	s.meta.TotalSupply = s.meta.TotalSupply.Add(amount)
	s.meta.Touch()
	s.metaDirty = true

	return s.record(s.minting, to, amount, now, nil), nil
}

// Burn removes amount from the given account and shrinks the total supply.
// The account's owner and the minting account's owner may burn; no fee is
// charged.
func (s *State) Burn(caller id.Principal, from Account, amount types.Amount, now uint64) (uint64, error) {
	if !caller.Equal(from.Owner) && !caller.Equal(s.minting.Owner) {
		return 0, errUnauthorized("not authorized to burn tokens")
	}

	balance := s.BalanceOf(from)
	if balance.LessThan(amount) {
		return 0, InsufficientFundsError{Balance: balance}
	}

	s.debit(from, amount)
	s.burnSupply(amount)

	return s.record(from, s.minting, amount, now, nil), nil
}

// Approve sets the allowance the caller grants args.Spender, replacing any
// previous value. When args.ExpectedAllowance is set it must match the
// current allowance exactly. Approvals are free; the fee and timestamp
// fields are accepted and ignored. Approve records no transaction and
// returns 0.
func (s *State) Approve(caller id.Principal, args ApproveArgs, now uint64) (uint64, error) {
	owner := Account{Owner: caller, Subaccount: args.FromSubaccount}

	current := s.Allowance(owner, args.Spender)
	if args.ExpectedAllowance != nil && !current.Equal(*args.ExpectedAllowance) {
		return 0, GenericError{Code: CodeAllowanceMismatch, Message: "Allowance mismatch"}
	}

	s.setAllowance(owner, args.Spender, args.Amount)
	return 0, nil
}

// TransferFrom spends the caller's allowance on args.From to move args.Amount
// to args.To. The allowance is reduced by the amount only; the burned fee
// comes out of args.From's balance.
func (s *State) TransferFrom(caller id.Principal, args TransferFromArgs, now uint64) (uint64, error) {
	spender := Account{Owner: caller, Subaccount: args.SpenderSubaccount}

	allowance := s.Allowance(args.From, spender)
	if allowance.LessThan(args.Amount) {
		return 0, InsufficientAllowanceError{Allowance: allowance}
	}

	fee := s.meta.Fee
	if args.Fee != nil {
		if !args.Fee.Equal(fee) {
			return 0, BadFeeError{Expected: fee}
		}
		fee = *args.Fee
	}

	balance := s.BalanceOf(args.From)
	total := args.Amount.Add(fee)
	if balance.LessThan(total) {
		return 0, InsufficientFundsError{Balance: balance}
	}

	remaining, _ := allowance.Sub(args.Amount)
	s.setAllowance(args.From, spender, remaining)
	s.debit(args.From, total)
	s.credit(args.To, args.Amount)
	s.burnSupply(fee)

	return s.record(args.From, args.To, args.Amount, now, args.Memo), nil
}

// BalanceOf returns the balance of an account, zero when the account holds
// nothing.
func (s *State) BalanceOf(acct Account) types.Amount {
	return s.balances[acct.Key()].Balance
}

// Allowance returns what spender may still draw from owner, zero when no
// approval exists.
func (s *State) Allowance(owner, spender Account) types.Amount {
	return s.allowances[allowanceKey(owner, spender)].Amount
}

// Metadata returns a copy of the token metadata.
func (s *State) Metadata() Metadata { return s.meta }

// Info returns the identifying summary of the token.
func (s *State) Info() Info {
	return Info{Symbol: s.meta.Symbol, Name: s.meta.Name, Owner: s.meta.Owner}
}

// MintingAccount returns the account whose owner may mint and whose balance
// backs the undistributed supply.
func (s *State) MintingAccount() Account { return s.minting }

// TotalSupply returns the current circulating supply.
func (s *State) TotalSupply() types.Amount { return s.meta.TotalSupply }

// Fee returns the ledger fee charged on transfers.
func (s *State) Fee() types.Amount { return s.meta.Fee }

// Name returns the token name.
func (s *State) Name() string { return s.meta.Name }

// Symbol returns the token symbol.
func (s *State) Symbol() string { return s.meta.Symbol }

// Decimals returns the display precision.
func (s *State) Decimals() uint8 { return s.meta.Decimals }

// Transactions returns the transaction log. A limit of zero, or one beyond
// the log length, yields the whole log oldest first; otherwise the most
// recent limit entries are returned newest first.
func (s *State) Transactions(limit uint64) []Transaction {
	n := uint64(len(s.txs))
	if limit == 0 || limit > n {
		out := make([]Transaction, n)
		copy(out, s.txs)
		return out
	}
	out := make([]Transaction, 0, limit)
	for i := n; i > n-limit; i-- {
		out = append(out, s.txs[i-1])
	}
	return out
}

// Accounts returns every account with a recorded balance, sorted by account
// key for a stable order.
func (s *State) Accounts() []AccountBalance {
	keys := make([]string, 0, len(s.balances))
	for k := range s.balances {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]AccountBalance, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.balances[k])
	}
	return out
}

// Allowances returns every approval on the ledger, sorted by owner and
// spender key.
func (s *State) Allowances() []AllowanceEntry {
	keys := make([]string, 0, len(s.allowances))
	for k := range s.allowances {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]AllowanceEntry, 0, len(keys))
	for _, k := range keys {
		out = append(out, s.allowances[k])
	}
	return out
}

// Changes returns the delta since the last ResetChanges. Balance and
// allowance entries appear in key order.
func (s *State) Changes() ChangeSet {
	var cs ChangeSet
	if s.metaDirty {
		meta := s.meta
		cs.Metadata = &meta
	}
	if len(s.dirtyBalances) > 0 {
		keys := make([]string, 0, len(s.dirtyBalances))
		for k := range s.dirtyBalances {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			cs.Balances = append(cs.Balances, s.balances[k])
		}
	}
	if len(s.dirtyAllowances) > 0 {
		keys := make([]string, 0, len(s.dirtyAllowances))
		for k := range s.dirtyAllowances {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			cs.Allowances = append(cs.Allowances, s.allowances[k])
		}
	}
	if len(s.txs) > s.persistedTxs {
		cs.Transactions = append(cs.Transactions, s.txs[s.persistedTxs:]...)
	}
	return cs
}

// ResetChanges marks the current state as persisted.
func (s *State) ResetChanges() {
	s.metaDirty = false
	s.dirtyBalances = make(map[string]struct{})
	s.dirtyAllowances = make(map[string]struct{})
	s.persistedTxs = len(s.txs)
}

func (s *State) setBalance(acct Account, amount types.Amount) {
	key := acct.Key()
	s.balances[key] = AccountBalance{Account: acct, Balance: amount}
	s.dirtyBalances[key] = struct{}{}
}

func (s *State) credit(acct Account, amount types.Amount) {
	s.setBalance(acct, s.BalanceOf(acct).Add(amount))
}

// debit assumes the balance was already checked; a shortfall here is a bug
// in the caller.
func (s *State) debit(acct Account, amount types.Amount) {
	remaining, ok := s.BalanceOf(acct).Sub(amount)
	if !ok {
		panic(fmt.Sprintf("token: debit below zero for %s", acct))
	}
	s.setBalance(acct, remaining)
}

func (s *State) setAllowance(owner, spender Account, amount types.Amount) {
	key := allowanceKey(owner, spender)
	s.allowances[key] = AllowanceEntry{Owner: owner, Spender: spender, Amount: amount}
	s.dirtyAllowances[key] = struct{}{}
}

func (s *State) burnSupply(amount types.Amount) {
	if amount.IsZero() {
		return
	}
	remaining, ok := s.meta.TotalSupply.Sub(amount)
	if !ok {
		panic("token: total supply below zero")
	}
	s.meta.TotalSupply = remaining
	s.meta.Touch()
	s.metaDirty = true
}

func (s *State) record(from, to Account, amount types.Amount, now uint64, memo []byte) uint64 {
	txID := s.txCounter
	s.txCounter++
	s.txs = append(s.txs, Transaction{
		ID:        txID,
		From:      from,
		To:        to,
		Amount:    amount,
		Timestamp: now,
		Memo:      memo,
	})
	return txID
}
