package token

import (
	"errors"
	"testing"

	"github.com/xraph/tokenledger/id"
	"github.com/xraph/tokenledger/types"
)

const testNow uint64 = 1_700_000_000

var (
	owner = id.NewPrincipal()
	alice = id.NewPrincipal()
	bob   = id.NewPrincipal()
	carol = id.NewPrincipal()
)

func amt(v uint64) types.Amount { return types.NewAmount(v) }

func amtPtr(v uint64) *types.Amount {
	a := types.NewAmount(v)
	return &a
}

// newTestState creates a ledger with a 1,000,000 supply owned by owner and a
// transfer fee of 10.
func newTestState(t *testing.T) *State {
	t.Helper()
	s, err := NewState(Config{
		Name:          "Test Token",
		Symbol:        "TST",
		Decimals:      8,
		InitialSupply: amt(1_000_000),
		Fee:           amt(10),
		Owner:         owner,
	}, testNow)
	if err != nil {
		t.Fatal(err)
	}
	s.ResetChanges()
	return s
}

// fund moves v from the owner to acct and clears the change set.
func fund(t *testing.T, s *State, acct Account, v uint64) {
	t.Helper()
	if _, err := s.Transfer(owner, TransferArgs{To: acct, Amount: amt(v)}, testNow); err != nil {
		t.Fatalf("funding transfer failed: %v", err)
	}
	s.ResetChanges()
}

func TestNewStateValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"MissingSymbol", Config{Name: "Test", Owner: owner}},
		{"MissingName", Config{Symbol: "TST", Owner: owner}},
		{"MissingOwner", Config{Name: "Test", Symbol: "TST"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewState(tt.cfg, testNow); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewStateCreditsOwner(t *testing.T) {
	s := newTestState(t)

	if got := s.BalanceOf(NewAccount(owner)); !got.Equal(amt(1_000_000)) {
		t.Errorf("owner balance: got %v", got)
	}
	if got := s.TotalSupply(); !got.Equal(amt(1_000_000)) {
		t.Errorf("total supply: got %v", got)
	}
	if !s.MintingAccount().Equal(NewAccount(owner)) {
		t.Errorf("minting account: got %v", s.MintingAccount())
	}
	if len(s.Transactions(0)) != 0 {
		t.Error("fresh ledger should have no transactions")
	}
}

func TestTransfer(t *testing.T) {
	s := newTestState(t)

	txID, err := s.Transfer(owner, TransferArgs{To: NewAccount(alice), Amount: amt(100_000)}, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if txID != 0 {
		t.Errorf("first tx ID: got %d, want 0", txID)
	}

	// Sender pays amount plus fee; the fee leaves circulation.
	if got := s.BalanceOf(NewAccount(owner)); !got.Equal(amt(899_990)) {
		t.Errorf("sender balance: got %v", got)
	}
	if got := s.BalanceOf(NewAccount(alice)); !got.Equal(amt(100_000)) {
		t.Errorf("recipient balance: got %v", got)
	}
	if got := s.TotalSupply(); !got.Equal(amt(999_990)) {
		t.Errorf("total supply: got %v", got)
	}

	txs := s.Transactions(0)
	if len(txs) != 1 {
		t.Fatalf("transactions: got %d", len(txs))
	}
	tx := txs[0]
	if !tx.From.Equal(NewAccount(owner)) || !tx.To.Equal(NewAccount(alice)) {
		t.Errorf("tx endpoints: %v -> %v", tx.From, tx.To)
	}
	if !tx.Amount.Equal(amt(100_000)) {
		t.Errorf("tx amount: got %v", tx.Amount)
	}
	if tx.Timestamp != testNow {
		t.Errorf("tx timestamp: got %d", tx.Timestamp)
	}
}

func TestTransferPreconditions(t *testing.T) {
	tests := []struct {
		name    string
		args    TransferArgs
		wantErr any
	}{
		{
			"WrongFee",
			TransferArgs{To: NewAccount(alice), Amount: amt(100), Fee: amtPtr(5)},
			&BadFeeError{},
		},
		{
			"InsufficientFunds",
			TransferArgs{To: NewAccount(alice), Amount: amt(2_000_000)},
			&InsufficientFundsError{},
		},
		{
			"ExactBalanceButNotFee",
			TransferArgs{To: NewAccount(alice), Amount: amt(1_000_000)},
			&InsufficientFundsError{},
		},
		{
			"TooFarInFuture",
			TransferArgs{To: NewAccount(alice), Amount: amt(100), CreatedAtTime: uint64Ptr(testNow + 121)},
			&CreatedInFutureError{},
		},
		{
			"TooOld",
			TransferArgs{To: NewAccount(alice), Amount: amt(100), CreatedAtTime: uint64Ptr(testNow - 86_401)},
			&TooOldError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestState(t)
			_, err := s.Transfer(owner, tt.args, testNow)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.As(err, tt.wantErr) {
				t.Fatalf("got %T (%v), want %T", err, err, tt.wantErr)
			}

			// A rejected transfer must leave the ledger untouched.
			if got := s.BalanceOf(NewAccount(owner)); !got.Equal(amt(1_000_000)) {
				t.Errorf("owner balance changed: %v", got)
			}
			if got := s.TotalSupply(); !got.Equal(amt(1_000_000)) {
				t.Errorf("supply changed: %v", got)
			}
			if len(s.Transactions(0)) != 0 {
				t.Error("rejected transfer recorded a transaction")
			}
			if !s.Changes().Empty() {
				t.Error("rejected transfer dirtied the change set")
			}
		})
	}
}

func TestTransferCreatedAtTimeWithinDrift(t *testing.T) {
	for _, created := range []uint64{testNow, testNow + 120, testNow - 86_400} {
		s := newTestState(t)
		_, err := s.Transfer(owner, TransferArgs{
			To:            NewAccount(alice),
			Amount:        amt(100),
			CreatedAtTime: uint64Ptr(created),
		}, testNow)
		if err != nil {
			t.Errorf("created_at_time %d rejected: %v", created, err)
		}
	}
}

func TestTransferExplicitCorrectFee(t *testing.T) {
	s := newTestState(t)
	if _, err := s.Transfer(owner, TransferArgs{To: NewAccount(alice), Amount: amt(100), Fee: amtPtr(10)}, testNow); err != nil {
		t.Fatal(err)
	}
}

func TestTransferSubaccountsAreDistinct(t *testing.T) {
	s := newTestState(t)
	var sub Subaccount
	sub[31] = 1

	main := NewAccount(alice)
	side := WithSubaccount(alice, sub)
	fund(t, s, main, 1000)
	fund(t, s, side, 500)

	if got := s.BalanceOf(main); !got.Equal(amt(1000)) {
		t.Errorf("main balance: got %v", got)
	}
	if got := s.BalanceOf(side); !got.Equal(amt(500)) {
		t.Errorf("side balance: got %v", got)
	}

	// Spending from the subaccount must not touch the main account.
	if _, err := s.Transfer(alice, TransferArgs{FromSubaccount: &sub, To: NewAccount(bob), Amount: amt(100)}, testNow); err != nil {
		t.Fatal(err)
	}
	if got := s.BalanceOf(main); !got.Equal(amt(1000)) {
		t.Errorf("main balance after subaccount spend: got %v", got)
	}
	if got := s.BalanceOf(side); !got.Equal(amt(390)) {
		t.Errorf("side balance after spend: got %v", got)
	}
}

func TestMint(t *testing.T) {
	s := newTestState(t)

	txID, err := s.Mint(owner, NewAccount(alice), amt(50_000), testNow)
	if err != nil {
		t.Fatal(err)
	}

	if got := s.BalanceOf(NewAccount(alice)); !got.Equal(amt(50_000)) {
		t.Errorf("minted balance: got %v", got)
	}
	if got := s.TotalSupply(); !got.Equal(amt(1_050_000)) {
		t.Errorf("total supply: got %v", got)
	}

	// Mint records a transaction from the minting account, fee-free.
	txs := s.Transactions(0)
	if len(txs) != 1 || txs[0].ID != txID {
		t.Fatalf("transactions: %v", txs)
	}
	if !txs[0].From.Equal(s.MintingAccount()) {
		t.Errorf("mint tx from: got %v", txs[0].From)
	}
}

func TestMintUnauthorized(t *testing.T) {
	s := newTestState(t)

	_, err := s.Mint(alice, NewAccount(alice), amt(1), testNow)
	var ge GenericError
	if !errors.As(err, &ge) || ge.Code != CodeUnauthorized {
		t.Fatalf("got %v, want unauthorized code %d", err, CodeUnauthorized)
	}
	if got := s.TotalSupply(); !got.Equal(amt(1_000_000)) {
		t.Errorf("supply changed: %v", got)
	}
}

func TestBurn(t *testing.T) {
	s := newTestState(t)
	fund(t, s, NewAccount(alice), 1000)

	txID, err := s.Burn(alice, NewAccount(alice), amt(400), testNow)
	if err != nil {
		t.Fatal(err)
	}

	if got := s.BalanceOf(NewAccount(alice)); !got.Equal(amt(600)) {
		t.Errorf("balance after burn: got %v", got)
	}
	// 1,000,000 - 10 (funding fee) - 400 (burn).
	if got := s.TotalSupply(); !got.Equal(amt(999_590)) {
		t.Errorf("total supply: got %v", got)
	}

	txs := s.Transactions(1)
	if len(txs) != 1 || txs[0].ID != txID {
		t.Fatalf("transactions: %v", txs)
	}
	if !txs[0].To.Equal(s.MintingAccount()) {
		t.Errorf("burn tx to: got %v", txs[0].To)
	}
}

func TestBurnByMintingOwner(t *testing.T) {
	s := newTestState(t)
	fund(t, s, NewAccount(alice), 1000)

	// The minting owner may burn from any account.
	if _, err := s.Burn(owner, NewAccount(alice), amt(1000), testNow); err != nil {
		t.Fatal(err)
	}
	if got := s.BalanceOf(NewAccount(alice)); !got.IsZero() {
		t.Errorf("balance after burn: got %v", got)
	}
}

func TestBurnRejections(t *testing.T) {
	s := newTestState(t)
	fund(t, s, NewAccount(alice), 1000)

	_, err := s.Burn(bob, NewAccount(alice), amt(100), testNow)
	var ge GenericError
	if !errors.As(err, &ge) || ge.Code != CodeUnauthorized {
		t.Fatalf("third-party burn: got %v", err)
	}

	var ife InsufficientFundsError
	_, err = s.Burn(alice, NewAccount(alice), amt(1001), testNow)
	if !errors.As(err, &ife) {
		t.Fatalf("overdraft burn: got %v", err)
	}
	if !ife.Balance.Equal(amt(1000)) {
		t.Errorf("reported balance: got %v", ife.Balance)
	}
}

func TestApprove(t *testing.T) {
	s := newTestState(t)
	fund(t, s, NewAccount(alice), 1000)

	txID, err := s.Approve(alice, ApproveArgs{Spender: NewAccount(bob), Amount: amt(500)}, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if txID != 0 {
		t.Errorf("approve returns 0, got %d", txID)
	}

	if got := s.Allowance(NewAccount(alice), NewAccount(bob)); !got.Equal(amt(500)) {
		t.Errorf("allowance: got %v", got)
	}

	// Approvals are free and unlogged.
	if got := s.BalanceOf(NewAccount(alice)); !got.Equal(amt(1000)) {
		t.Errorf("approve charged the owner: %v", got)
	}
	if len(s.Transactions(0)) != 0 {
		t.Error("approve recorded a transaction")
	}

	// A later approve replaces, not adds.
	if _, err := s.Approve(alice, ApproveArgs{Spender: NewAccount(bob), Amount: amt(200)}, testNow); err != nil {
		t.Fatal(err)
	}
	if got := s.Allowance(NewAccount(alice), NewAccount(bob)); !got.Equal(amt(200)) {
		t.Errorf("allowance after replace: got %v", got)
	}
}

func TestApproveExpectedAllowance(t *testing.T) {
	s := newTestState(t)
	fund(t, s, NewAccount(alice), 1000)

	if _, err := s.Approve(alice, ApproveArgs{Spender: NewAccount(bob), Amount: amt(500)}, testNow); err != nil {
		t.Fatal(err)
	}

	// Matching expectation succeeds.
	_, err := s.Approve(alice, ApproveArgs{
		Spender:           NewAccount(bob),
		Amount:            amt(300),
		ExpectedAllowance: amtPtr(500),
	}, testNow)
	if err != nil {
		t.Fatal(err)
	}

	// Stale expectation is rejected without changing the allowance.
	_, err = s.Approve(alice, ApproveArgs{
		Spender:           NewAccount(bob),
		Amount:            amt(100),
		ExpectedAllowance: amtPtr(500),
	}, testNow)
	var ge GenericError
	if !errors.As(err, &ge) || ge.Code != CodeAllowanceMismatch {
		t.Fatalf("got %v, want allowance mismatch code %d", err, CodeAllowanceMismatch)
	}
	if got := s.Allowance(NewAccount(alice), NewAccount(bob)); !got.Equal(amt(300)) {
		t.Errorf("allowance after rejection: got %v", got)
	}
}

func TestApproveIgnoresFee(t *testing.T) {
	s := newTestState(t)

	// The fee field carries no weight on approve; even a wrong value is
	// accepted and nothing is charged.
	if _, err := s.Approve(alice, ApproveArgs{Spender: NewAccount(bob), Amount: amt(1), Fee: amtPtr(99)}, testNow); err != nil {
		t.Fatal(err)
	}
	if got := s.Allowance(NewAccount(alice), NewAccount(bob)); !got.Equal(amt(1)) {
		t.Errorf("allowance: got %v", got)
	}
	if got := s.BalanceOf(NewAccount(alice)); !got.IsZero() {
		t.Errorf("alice was charged: %v", got)
	}
	if got := s.TotalSupply(); !got.Equal(amt(1_000_000)) {
		t.Errorf("supply: got %v", got)
	}
}

func TestTransferFrom(t *testing.T) {
	s := newTestState(t)
	fund(t, s, NewAccount(alice), 1000)
	if _, err := s.Approve(alice, ApproveArgs{Spender: NewAccount(bob), Amount: amt(500)}, testNow); err != nil {
		t.Fatal(err)
	}

	_, err := s.TransferFrom(bob, TransferFromArgs{
		From:   NewAccount(alice),
		To:     NewAccount(carol),
		Amount: amt(300),
	}, testNow)
	if err != nil {
		t.Fatal(err)
	}

	// Owner pays amount plus fee; the allowance shrinks by the amount only.
	if got := s.BalanceOf(NewAccount(alice)); !got.Equal(amt(690)) {
		t.Errorf("owner balance: got %v", got)
	}
	if got := s.BalanceOf(NewAccount(carol)); !got.Equal(amt(300)) {
		t.Errorf("recipient balance: got %v", got)
	}
	if got := s.BalanceOf(NewAccount(bob)); !got.IsZero() {
		t.Errorf("spender balance: got %v", got)
	}
	if got := s.Allowance(NewAccount(alice), NewAccount(bob)); !got.Equal(amt(200)) {
		t.Errorf("allowance: got %v", got)
	}
}

func TestTransferFromPreconditionOrder(t *testing.T) {
	s := newTestState(t)
	fund(t, s, NewAccount(alice), 100)

	// No approval at all: allowance failure, even though funds are also short.
	_, err := s.TransferFrom(bob, TransferFromArgs{
		From:   NewAccount(alice),
		To:     NewAccount(carol),
		Amount: amt(1_000_000),
	}, testNow)
	var iae InsufficientAllowanceError
	if !errors.As(err, &iae) {
		t.Fatalf("got %v, want InsufficientAllowanceError", err)
	}

	// Generous approval but a short balance: funds failure.
	if _, err := s.Approve(alice, ApproveArgs{Spender: NewAccount(bob), Amount: amt(10_000)}, testNow); err != nil {
		t.Fatal(err)
	}
	_, err = s.TransferFrom(bob, TransferFromArgs{
		From:   NewAccount(alice),
		To:     NewAccount(carol),
		Amount: amt(100),
	}, testNow)
	var ife InsufficientFundsError
	if !errors.As(err, &ife) {
		t.Fatalf("got %v, want InsufficientFundsError", err)
	}

	// The failed attempt spent no allowance.
	if got := s.Allowance(NewAccount(alice), NewAccount(bob)); !got.Equal(amt(10_000)) {
		t.Errorf("allowance after failed spend: got %v", got)
	}
}

func TestSupplyConservation(t *testing.T) {
	s := newTestState(t)

	fund(t, s, NewAccount(alice), 10_000)
	fund(t, s, NewAccount(bob), 5_000)
	if _, err := s.Mint(owner, NewAccount(carol), amt(2_500), testNow); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Burn(alice, NewAccount(alice), amt(1_000), testNow); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Approve(alice, ApproveArgs{Spender: NewAccount(bob), Amount: amt(3_000)}, testNow); err != nil {
		t.Fatal(err)
	}
	if _, err := s.TransferFrom(bob, TransferFromArgs{From: NewAccount(alice), To: NewAccount(carol), Amount: amt(500)}, testNow); err != nil {
		t.Fatal(err)
	}

	var held []types.Amount
	for _, ab := range s.Accounts() {
		held = append(held, ab.Balance)
	}
	if got := types.Sum(held...); !got.Equal(s.TotalSupply()) {
		t.Errorf("supply %v != sum of balances %v", s.TotalSupply(), got)
	}
}

func TestTransactionIDsAreDense(t *testing.T) {
	s := newTestState(t)

	for i := 0; i < 5; i++ {
		txID, err := s.Transfer(owner, TransferArgs{To: NewAccount(alice), Amount: amt(10)}, testNow+uint64(i))
		if err != nil {
			t.Fatal(err)
		}
		if txID != uint64(i) {
			t.Errorf("tx %d: got ID %d", i, txID)
		}
	}
}

func TestTransactionsLimit(t *testing.T) {
	s := newTestState(t)
	for i := 0; i < 5; i++ {
		if _, err := s.Transfer(owner, TransferArgs{To: NewAccount(alice), Amount: amt(10)}, testNow); err != nil {
			t.Fatal(err)
		}
	}

	// Zero or an oversized limit yields the whole log oldest first.
	for _, limit := range []uint64{0, 6, 100} {
		txs := s.Transactions(limit)
		if len(txs) != 5 {
			t.Fatalf("limit %d: got %d txs", limit, len(txs))
		}
		for i, tx := range txs {
			if tx.ID != uint64(i) {
				t.Errorf("limit %d: position %d holds tx %d", limit, i, tx.ID)
			}
		}
	}

	// Any limit up to the log length yields the most recent entries newest
	// first, including a limit equal to the log length.
	txs := s.Transactions(2)
	if len(txs) != 2 || txs[0].ID != 4 || txs[1].ID != 3 {
		t.Errorf("limit 2: got %v", txs)
	}
	txs = s.Transactions(5)
	if len(txs) != 5 || txs[0].ID != 4 || txs[4].ID != 0 {
		t.Errorf("limit 5: got %v", txs)
	}
}

func TestReadDefaults(t *testing.T) {
	s := newTestState(t)

	if got := s.BalanceOf(NewAccount(bob)); !got.IsZero() {
		t.Errorf("unknown account balance: got %v", got)
	}
	if got := s.Allowance(NewAccount(alice), NewAccount(bob)); !got.IsZero() {
		t.Errorf("unknown allowance: got %v", got)
	}
}

func TestChangesTracking(t *testing.T) {
	s := newTestState(t)

	if !s.Changes().Empty() {
		t.Fatal("change set should start empty after reset")
	}

	if _, err := s.Transfer(owner, TransferArgs{To: NewAccount(alice), Amount: amt(100)}, testNow); err != nil {
		t.Fatal(err)
	}

	cs := s.Changes()
	if cs.Metadata == nil {
		t.Error("fee burn should dirty metadata")
	}
	if len(cs.Balances) != 2 {
		t.Errorf("dirty balances: got %d, want 2", len(cs.Balances))
	}
	if len(cs.Transactions) != 1 {
		t.Errorf("new transactions: got %d, want 1", len(cs.Transactions))
	}

	s.ResetChanges()
	if !s.Changes().Empty() {
		t.Error("change set should be empty after reset")
	}
}

func TestRestore(t *testing.T) {
	s := newTestState(t)
	fund(t, s, NewAccount(alice), 1000)
	if _, err := s.Approve(alice, ApproveArgs{Spender: NewAccount(bob), Amount: amt(200)}, testNow); err != nil {
		t.Fatal(err)
	}

	restored := Restore(s.Metadata(), s.Accounts(), s.Allowances(), s.Transactions(0))

	if got := restored.BalanceOf(NewAccount(alice)); !got.Equal(amt(1000)) {
		t.Errorf("restored balance: got %v", got)
	}
	if got := restored.Allowance(NewAccount(alice), NewAccount(bob)); !got.Equal(amt(200)) {
		t.Errorf("restored allowance: got %v", got)
	}
	if !restored.Changes().Empty() {
		t.Error("restored state should carry no pending changes")
	}

	// The transaction counter resumes after the last persisted transaction.
	txID, err := restored.Transfer(alice, TransferArgs{To: NewAccount(bob), Amount: amt(1)}, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if txID != 1 {
		t.Errorf("next tx ID: got %d, want 1", txID)
	}
}

func TestRestoreFromLatestTransactionOnly(t *testing.T) {
	s := newTestState(t)
	for i := 0; i < 3; i++ {
		fund(t, s, NewAccount(alice), 100)
	}

	latest := s.Transactions(1)
	restored := Restore(s.Metadata(), s.Accounts(), s.Allowances(), latest)

	txID, err := restored.Transfer(alice, TransferArgs{To: NewAccount(bob), Amount: amt(1)}, testNow)
	if err != nil {
		t.Fatal(err)
	}
	if txID != 3 {
		t.Errorf("next tx ID: got %d, want 3", txID)
	}
}

func uint64Ptr(v uint64) *uint64 { return &v }
