package tokenledger_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	tokenledger "github.com/xraph/tokenledger"
	"github.com/xraph/tokenledger/id"
	"github.com/xraph/tokenledger/scheduler"
	"github.com/xraph/tokenledger/store/memory"
	"github.com/xraph/tokenledger/token"
	"github.com/xraph/tokenledger/types"
)

// eventPlugin records every hook invocation for assertions.
type eventPlugin struct {
	mu        sync.Mutex
	inits     int
	tokens    []string
	transfers []token.Transaction
	mints     []token.Transaction
	burns     []token.Transaction
	approvals []token.AllowanceEntry
	rejected  []string
	tasks     []uint64
}

func (p *eventPlugin) Name() string { return "event-recorder" }

func (p *eventPlugin) OnInit(context.Context, interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inits++
	return nil
}

func (p *eventPlugin) OnTokenInitialized(_ context.Context, meta token.Metadata) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tokens = append(p.tokens, meta.Symbol)
	return nil
}

func (p *eventPlugin) OnTransfer(_ context.Context, _ string, tx token.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transfers = append(p.transfers, tx)
	return nil
}

func (p *eventPlugin) OnMint(_ context.Context, _ string, tx token.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mints = append(p.mints, tx)
	return nil
}

func (p *eventPlugin) OnBurn(_ context.Context, _ string, tx token.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.burns = append(p.burns, tx)
	return nil
}

func (p *eventPlugin) OnApproval(_ context.Context, _ string, entry token.AllowanceEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.approvals = append(p.approvals, entry)
	return nil
}

func (p *eventPlugin) OnTransferRejected(_ context.Context, _, op string, _ error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejected = append(p.rejected, op)
	return nil
}

func (p *eventPlugin) OnTaskExecuted(_ context.Context, taskID uint64, _ string, _ error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tasks = append(p.tasks, taskID)
	return nil
}

func amt(v uint64) types.Amount { return types.NewAmount(v) }

// newTestLedger starts an engine over a memory store with a fixed clock and a
// recording plugin.
func newTestLedger(t *testing.T) (*tokenledger.Ledger, *eventPlugin) {
	t.Helper()

	events := &eventPlugin{}
	fixed := time.Unix(1_700_000_000, 0)
	l := tokenledger.New(memory.New(),
		tokenledger.WithPlugin(events),
		tokenledger.WithClock(func() time.Time { return fixed }),
		tokenledger.WithSchedulerInterval(time.Hour),
	)
	if err := l.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := l.Stop(); err != nil {
			t.Errorf("stop: %v", err)
		}
	})
	return l, events
}

func initTestToken(t *testing.T, l *tokenledger.Ledger, owner id.Principal) {
	t.Helper()
	_, err := l.InitToken(context.Background(), owner, token.Config{
		Name:          "Test Token",
		Symbol:        "TST",
		Decimals:      8,
		InitialSupply: amt(1_000_000),
		Fee:           amt(10),
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestInitToken(t *testing.T) {
	ctx := context.Background()
	l, events := newTestLedger(t)
	owner := id.NewPrincipal()

	meta, err := l.InitToken(ctx, owner, token.Config{
		Name:          "Test Token",
		Symbol:        "TST",
		InitialSupply: amt(1_000_000),
		Fee:           amt(10),
	})
	if err != nil {
		t.Fatal(err)
	}
	if !meta.Owner.Equal(owner) {
		t.Errorf("owner: got %v", meta.Owner)
	}

	// The owner holds the full supply.
	balance, err := l.BalanceOf(ctx, "TST", token.NewAccount(owner))
	if err != nil {
		t.Fatal(err)
	}
	if !balance.Equal(amt(1_000_000)) {
		t.Errorf("owner balance: got %v", balance)
	}

	if events.inits != 1 {
		t.Errorf("OnInit calls: got %d", events.inits)
	}
	if len(events.tokens) != 1 || events.tokens[0] != "TST" {
		t.Errorf("OnTokenInitialized: %v", events.tokens)
	}

	// Duplicate symbols are rejected.
	_, err = l.InitToken(ctx, owner, token.Config{Name: "Again", Symbol: "TST"})
	if !errors.Is(err, tokenledger.ErrTokenExists) {
		t.Errorf("duplicate init: got %v", err)
	}

	// Invalid config maps to ErrInvalidInput.
	_, err = l.InitToken(ctx, owner, token.Config{Symbol: "XYZ"})
	if !errors.Is(err, tokenledger.ErrInvalidInput) {
		t.Errorf("invalid config: got %v", err)
	}
}

func TestInitTokenExplicitOwner(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	deployer := id.NewPrincipal()
	admin := id.NewPrincipal()

	meta, err := l.InitToken(ctx, deployer, token.Config{
		Name:          "Managed Token",
		Symbol:        "MGT",
		InitialSupply: amt(1_000),
		Owner:         admin,
	})
	if err != nil {
		t.Fatal(err)
	}
	if !meta.Owner.Equal(admin) {
		t.Errorf("owner: got %v, want the configured admin", meta.Owner)
	}

	// The configured owner holds the supply and controls minting.
	balance, err := l.BalanceOf(ctx, "MGT", token.NewAccount(admin))
	if err != nil {
		t.Fatal(err)
	}
	if !balance.Equal(amt(1_000)) {
		t.Errorf("admin balance: got %v", balance)
	}
	if _, err := l.Mint(ctx, admin, "MGT", token.NewAccount(deployer), amt(50)); err != nil {
		t.Fatal(err)
	}

	// The deployer gained no authority by initializing the token.
	var ge token.GenericError
	_, err = l.Mint(ctx, deployer, "MGT", token.NewAccount(deployer), amt(50))
	if !errors.As(err, &ge) || ge.Code != token.CodeUnauthorized {
		t.Errorf("deployer mint: got %v", err)
	}
}

func TestTransferEmitsPlugins(t *testing.T) {
	ctx := context.Background()
	l, events := newTestLedger(t)
	owner := id.NewPrincipal()
	alice := id.NewPrincipal()
	initTestToken(t, l, owner)

	txID, err := l.Transfer(ctx, owner, "TST", token.TransferArgs{
		To:     token.NewAccount(alice),
		Amount: amt(5000),
	})
	if err != nil {
		t.Fatal(err)
	}
	if txID != 0 {
		t.Errorf("tx ID: got %d", txID)
	}

	if len(events.transfers) != 1 || !events.transfers[0].Amount.Equal(amt(5000)) {
		t.Errorf("OnTransfer: %v", events.transfers)
	}

	// A rejected transfer reaches OnTransferRejected instead.
	_, err = l.Transfer(ctx, alice, "TST", token.TransferArgs{
		To:     token.NewAccount(owner),
		Amount: amt(1_000_000),
	})
	var ife token.InsufficientFundsError
	if !errors.As(err, &ife) {
		t.Fatalf("got %v", err)
	}
	if len(events.rejected) != 1 || events.rejected[0] != "transfer" {
		t.Errorf("OnTransferRejected: %v", events.rejected)
	}
}

func TestMintBurnApprove(t *testing.T) {
	ctx := context.Background()
	l, events := newTestLedger(t)
	owner := id.NewPrincipal()
	alice := id.NewPrincipal()
	bob := id.NewPrincipal()
	initTestToken(t, l, owner)

	if _, err := l.Mint(ctx, owner, "TST", token.NewAccount(alice), amt(10_000)); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Burn(ctx, alice, "TST", token.NewAccount(alice), amt(2_000)); err != nil {
		t.Fatal(err)
	}
	if _, err := l.Approve(ctx, alice, "TST", token.ApproveArgs{
		Spender: token.NewAccount(bob),
		Amount:  amt(3_000),
	}); err != nil {
		t.Fatal(err)
	}
	if _, err := l.TransferFrom(ctx, bob, "TST", token.TransferFromArgs{
		From:   token.NewAccount(alice),
		To:     token.NewAccount(bob),
		Amount: amt(1_000),
	}); err != nil {
		t.Fatal(err)
	}

	if len(events.mints) != 1 || len(events.burns) != 1 || len(events.approvals) != 1 {
		t.Errorf("hook counts: mints=%d burns=%d approvals=%d",
			len(events.mints), len(events.burns), len(events.approvals))
	}
	// TransferFrom surfaces through the transfer hook.
	if len(events.transfers) != 1 {
		t.Errorf("transfers: %d", len(events.transfers))
	}

	balance, err := l.BalanceOf(ctx, "TST", token.NewAccount(alice))
	if err != nil {
		t.Fatal(err)
	}
	// 10,000 minted - 2,000 burned - 1,000 sent - 10 fee.
	if !balance.Equal(amt(6_990)) {
		t.Errorf("alice balance: got %v", balance)
	}

	allowance, err := l.Allowance(ctx, "TST", token.NewAccount(alice), token.NewAccount(bob))
	if err != nil {
		t.Fatal(err)
	}
	if !allowance.Equal(amt(2_000)) {
		t.Errorf("allowance: got %v", allowance)
	}
}

func TestQueriesOnUnknownToken(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	acct := token.NewAccount(id.NewPrincipal())

	// Reads on an unknown token yield zero values, not errors.
	if balance, err := l.BalanceOf(ctx, "NOPE", acct); err != nil || !balance.IsZero() {
		t.Errorf("BalanceOf: %v, %v", balance, err)
	}
	if allowance, err := l.Allowance(ctx, "NOPE", acct, acct); err != nil || !allowance.IsZero() {
		t.Errorf("Allowance: %v, %v", allowance, err)
	}
	if name, err := l.Name(ctx, "NOPE"); err != nil || name != "" {
		t.Errorf("Name: %q, %v", name, err)
	}
	if supply, err := l.TotalSupply(ctx, "NOPE"); err != nil || !supply.IsZero() {
		t.Errorf("TotalSupply: %v, %v", supply, err)
	}
	if acct, err := l.MintingAccount(ctx, "NOPE"); err != nil || acct != nil {
		t.Errorf("MintingAccount: %v, %v", acct, err)
	}
	if txs, err := l.Transactions(ctx, "NOPE", 0); err != nil || len(txs) != 0 {
		t.Errorf("Transactions: %v, %v", txs, err)
	}
	if accts, err := l.Accounts(ctx, "NOPE"); err != nil || len(accts) != 0 {
		t.Errorf("Accounts: %v, %v", accts, err)
	}

	// Metadata keeps the sentinel so callers can distinguish.
	if _, err := l.Metadata(ctx, "NOPE"); !errors.Is(err, tokenledger.ErrTokenNotFound) {
		t.Errorf("Metadata: %v", err)
	}

	// Mutations on an unknown token fail.
	if _, err := l.Transfer(ctx, id.NewPrincipal(), "NOPE", token.TransferArgs{To: acct, Amount: amt(1)}); !errors.Is(err, tokenledger.ErrTokenNotFound) {
		t.Errorf("Transfer: %v", err)
	}
}

func TestMetadataQueries(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	owner := id.NewPrincipal()
	initTestToken(t, l, owner)

	if name, err := l.Name(ctx, "TST"); err != nil || name != "Test Token" {
		t.Errorf("Name: %q, %v", name, err)
	}
	if symbol, err := l.Symbol(ctx, "Test Token"); err != nil || symbol != "TST" {
		t.Errorf("Symbol: %q, %v", symbol, err)
	}
	if decimals, err := l.Decimals(ctx, "TST"); err != nil || decimals != 8 {
		t.Errorf("Decimals: %d, %v", decimals, err)
	}
	if fee, err := l.Fee(ctx, "TST"); err != nil || !fee.Equal(amt(10)) {
		t.Errorf("Fee: %v, %v", fee, err)
	}

	minting, err := l.MintingAccount(ctx, "TST")
	if err != nil || minting == nil || !minting.Owner.Equal(owner) {
		t.Errorf("MintingAccount: %v, %v", minting, err)
	}

	pairs, err := l.MetadataPairs(ctx, "TST")
	if err != nil || len(pairs) == 0 {
		t.Errorf("MetadataPairs: %v, %v", pairs, err)
	}
}

func TestTokensOwnedBy(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	owner := id.NewPrincipal()
	other := id.NewPrincipal()

	for _, cfg := range []token.Config{
		{Name: "Alpha", Symbol: "AAA"},
		{Name: "Beta", Symbol: "BBB"},
	} {
		if _, err := l.InitToken(ctx, owner, cfg); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := l.InitToken(ctx, other, token.Config{Name: "Gamma", Symbol: "CCC"}); err != nil {
		t.Fatal(err)
	}

	all, err := l.Tokens(ctx)
	if err != nil || len(all) != 3 {
		t.Fatalf("Tokens: %v, %v", all, err)
	}

	mine, err := l.TokensOwnedBy(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(mine) != 2 || mine[0].Symbol != "AAA" || mine[1].Symbol != "BBB" {
		t.Errorf("TokensOwnedBy: %v", mine)
	}
}

func TestScheduledTransferTask(t *testing.T) {
	ctx := context.Background()
	l, events := newTestLedger(t)
	owner := id.NewPrincipal()
	alice := id.NewPrincipal()
	initTestToken(t, l, owner)

	data, err := json.Marshal(map[string]string{
		"symbol": "TST",
		"to":     alice.String(),
		"amount": "750",
	})
	if err != nil {
		t.Fatal(err)
	}

	tid, err := l.CreateTask(owner, scheduler.Task{
		Data:       string(data),
		Frequency:  60,
		ActionType: scheduler.ActionTokenTransfer,
	})
	if err != nil {
		t.Fatal(err)
	}

	runs := l.ExecuteTasks(ctx)
	if len(runs) != 1 || runs[0].Err != nil {
		t.Fatalf("runs: %v", runs)
	}

	balance, err := l.BalanceOf(ctx, "TST", token.NewAccount(alice))
	if err != nil {
		t.Fatal(err)
	}
	if !balance.Equal(amt(750)) {
		t.Errorf("balance after task: got %v", balance)
	}

	// Ledger tasks are one-shot and record their outcome in the payload.
	task, err := l.GetTask(tid)
	if err != nil {
		t.Fatal(err)
	}
	if task.Enabled {
		t.Error("task should be disabled after execution")
	}
	var status map[string]string
	if err := json.Unmarshal([]byte(task.Data), &status); err != nil {
		t.Fatal(err)
	}
	if status["status"] != "success" || status["tx_id"] != "0" {
		t.Errorf("task status: %v", status)
	}

	if len(events.tasks) != 1 || events.tasks[0] != tid {
		t.Errorf("OnTaskExecuted: %v", events.tasks)
	}

	// A second sweep finds nothing due.
	if runs := l.ExecuteTasks(ctx); len(runs) != 0 {
		t.Errorf("second sweep: %v", runs)
	}
}

func TestScheduledMintAndBurnTasks(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	owner := id.NewPrincipal()
	alice := id.NewPrincipal()
	initTestToken(t, l, owner)

	mintData, err := json.Marshal(map[string]string{
		"symbol": "TST",
		"to":     alice.String(),
		"amount": "4000",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.CreateTask(owner, scheduler.Task{
		Data:       string(mintData),
		ActionType: scheduler.ActionTokenMint,
	}); err != nil {
		t.Fatal(err)
	}

	// Burn from alice, issued by the token owner.
	burnData, err := json.Marshal(map[string]string{
		"symbol": "TST",
		"from":   alice.String(),
		"amount": "1500",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.CreateTask(owner, scheduler.Task{
		Data:       string(burnData),
		ActionType: scheduler.ActionTokenBurn,
	}); err != nil {
		t.Fatal(err)
	}

	runs := l.ExecuteTasks(ctx)
	if len(runs) != 2 {
		t.Fatalf("runs: %v", runs)
	}
	for _, run := range runs {
		if run.Err != nil {
			t.Errorf("task %d failed: %v", run.TaskID, run.Err)
		}
	}

	balance, err := l.BalanceOf(ctx, "TST", token.NewAccount(alice))
	if err != nil {
		t.Fatal(err)
	}
	if !balance.Equal(amt(2500)) {
		t.Errorf("balance: got %v", balance)
	}
}

func TestScheduledTokenInitTask(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	owner := id.NewPrincipal()

	data, err := json.Marshal(map[string]any{
		"name":           "Scheduled Token",
		"symbol":         "SCH",
		"decimals":       6,
		"initial_supply": "500000",
		"fee":            "5",
	})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := l.CreateTask(owner, scheduler.Task{
		Data:       string(data),
		ActionType: scheduler.ActionTokenInit,
	}); err != nil {
		t.Fatal(err)
	}

	runs := l.ExecuteTasks(ctx)
	if len(runs) != 1 || runs[0].Err != nil {
		t.Fatalf("runs: %v", runs)
	}

	meta, err := l.Metadata(ctx, "SCH")
	if err != nil {
		t.Fatal(err)
	}
	if meta.Name != "Scheduled Token" || !meta.Owner.Equal(owner) {
		t.Errorf("metadata: %+v", meta)
	}
	if !meta.TotalSupply.Equal(amt(500_000)) {
		t.Errorf("supply: got %v", meta.TotalSupply)
	}
}

func TestFailedTaskRecordsError(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestLedger(t)
	owner := id.NewPrincipal()
	initTestToken(t, l, owner)

	// Transfer to a missing recipient field fails and marks the task.
	tid, err := l.CreateTask(owner, scheduler.Task{
		Data:       `{"symbol":"TST","amount":"10"}`,
		ActionType: scheduler.ActionTokenTransfer,
	})
	if err != nil {
		t.Fatal(err)
	}

	runs := l.ExecuteTasks(ctx)
	if len(runs) != 1 || runs[0].Err == nil {
		t.Fatalf("runs: %v", runs)
	}

	task, err := l.GetTask(tid)
	if err != nil {
		t.Fatal(err)
	}
	var status map[string]string
	if err := json.Unmarshal([]byte(task.Data), &status); err != nil {
		t.Fatal(err)
	}
	if status["status"] != "failed" || status["error"] == "" {
		t.Errorf("task status: %v", status)
	}
}

func TestTaskRegistry(t *testing.T) {
	l, _ := newTestLedger(t)
	owner := id.NewPrincipal()

	tid, err := l.CreateTask(owner, scheduler.Task{Data: "{}", Frequency: 300})
	if err != nil {
		t.Fatal(err)
	}

	task, err := l.GetTask(tid)
	if err != nil {
		t.Fatal(err)
	}
	if !task.Owner.Equal(owner) {
		t.Errorf("owner: got %v", task.Owner)
	}

	freq := uint64(600)
	if err := l.UpdateTask(tid, scheduler.UpdateArgs{Frequency: &freq}); err != nil {
		t.Fatal(err)
	}
	task, err = l.GetTask(tid)
	if err != nil {
		t.Fatal(err)
	}
	if task.Frequency != 600 {
		t.Errorf("frequency: got %d", task.Frequency)
	}

	if got := len(l.ListTasks()); got != 1 {
		t.Errorf("ListTasks: %d", got)
	}
	if got := len(l.ListTasksByType(scheduler.ActionCustom)); got != 1 {
		t.Errorf("ListTasksByType: %d", got)
	}

	if err := l.DeleteTask(tid); err != nil {
		t.Fatal(err)
	}
	if _, err := l.GetTask(tid); !errors.Is(err, tokenledger.ErrTaskNotFound) {
		t.Errorf("get after delete: %v", err)
	}
}
