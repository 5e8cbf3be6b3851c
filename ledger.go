package tokenledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/xraph/tokenledger/id"
	"github.com/xraph/tokenledger/plugin"
	"github.com/xraph/tokenledger/scheduler"
	"github.com/xraph/tokenledger/store"
	"github.com/xraph/tokenledger/token"
	"github.com/xraph/tokenledger/types"
)

// Ledger is the main token ledger engine. It registers token ledgers keyed
// by symbol, applies transfers against them through the configured store,
// and drives scheduled ledger operations in the background.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	sched   *scheduler.Scheduler

	// Background workers
	stopChan chan struct{}
	wg       sync.WaitGroup

	// Configuration
	clock             func() time.Time
	schedulerInterval time.Duration
	agentOwner        id.Principal
	disableMigrate    bool
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:             s,
		plugins:           plugin.NewRegistry(),
		logger:            slog.Default(),
		stopChan:          make(chan struct{}),
		clock:             time.Now,
		schedulerInterval: 30 * time.Second,
	}

	for _, opt := range opts {
		opt(l)
	}

	l.sched = scheduler.New(l.agentOwner, l.logger)
	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithClock sets the time source. Ledger timestamps are derived from it in
// whole seconds.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		l.clock = clock
	}
}

// WithSchedulerInterval sets how often the background worker sweeps for due
// tasks.
func WithSchedulerInterval(interval time.Duration) Option {
	return func(l *Ledger) {
		l.schedulerInterval = interval
	}
}

// WithAgentOwner sets the principal that owns the task registry.
func WithAgentOwner(owner id.Principal) Option {
	return func(l *Ledger) {
		l.agentOwner = owner
	}
}

// WithoutMigration skips store migration during Start. Use it when the
// schema is managed externally.
func WithoutMigration() Option {
	return func(l *Ledger) {
		l.disableMigrate = true
	}
}

// Start migrates the store, initializes plugins, and begins the scheduler
// worker.
func (l *Ledger) Start(ctx context.Context) error {
	// Migrate database
	if !l.disableMigrate {
		if err := l.store.Migrate(ctx); err != nil {
			return err
		}
	}

	// Initialize plugins
	l.plugins.EmitInit(ctx, l)

	// Start scheduler worker
	l.wg.Add(1)
	go l.schedulerWorker(ctx)

	l.logger.Info("token ledger started",
		"scheduler_interval", l.schedulerInterval,
	)

	return nil
}

// Stop shuts down the Ledger.
func (l *Ledger) Stop() error {
	close(l.stopChan)
	l.wg.Wait()

	ctx := context.Background()
	l.plugins.EmitShutdown(ctx)

	return l.store.Close()
}

// now returns the ledger clock in whole seconds.
func (l *Ledger) now() uint64 {
	return uint64(l.clock().Unix())
}

// ──────────────────────────────────────────────────
// Token Management
// ──────────────────────────────────────────────────

// InitToken registers a new token ledger. The owner named in cfg becomes the
// minting account and receives the whole initial supply; when cfg leaves the
// owner unset the caller takes that role. Symbols are unique; re-registering
// one fails with ErrTokenExists.
func (l *Ledger) InitToken(ctx context.Context, caller id.Principal, cfg token.Config) (*token.Metadata, error) {
	if cfg.Owner.IsAnonymous() {
		cfg.Owner = caller
	}

	st, err := token.NewState(cfg, l.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	if err := l.store.CreateToken(ctx, st); err != nil {
		return nil, err
	}

	meta := st.Metadata()
	l.plugins.EmitTokenInitialized(ctx, meta)
	l.logger.Info("token initialized",
		"symbol", meta.Symbol,
		"name", meta.Name,
		"initial_supply", meta.TotalSupply,
		"owner", meta.Owner,
	)
	return &meta, nil
}

// Tokens returns the identifying summary of every registered token.
func (l *Ledger) Tokens(ctx context.Context) ([]token.Info, error) {
	return l.store.ListTokens(ctx)
}

// TokensOwnedBy returns the tokens whose minting account is owned by the
// given principal.
func (l *Ledger) TokensOwnedBy(ctx context.Context, owner id.Principal) ([]token.Info, error) {
	all, err := l.store.ListTokens(ctx)
	if err != nil {
		return nil, err
	}
	result := make([]token.Info, 0)
	for _, info := range all {
		if info.Owner.Equal(owner) {
			result = append(result, info)
		}
	}
	return result, nil
}

// ──────────────────────────────────────────────────
// Ledger Operations
// ──────────────────────────────────────────────────

// Transfer moves tokens from the caller's account to args.To, burning the
// ledger fee. It returns the recorded transaction ID.
func (l *Ledger) Transfer(ctx context.Context, caller id.Principal, symbol string, args token.TransferArgs) (uint64, error) {
	tx, err := l.mutate(ctx, symbol, "transfer", func(st *token.State) (uint64, error) {
		return st.Transfer(caller, args, l.now())
	})
	if err != nil {
		return 0, err
	}

	l.plugins.EmitTransfer(ctx, symbol, tx)
	l.logger.Debug("transfer committed",
		"symbol", symbol,
		"tx_id", tx.ID,
		"from", tx.From,
		"to", tx.To,
		"amount", tx.Amount,
	)
	return tx.ID, nil
}

// Mint credits new tokens to an account. Only the token owner may mint.
func (l *Ledger) Mint(ctx context.Context, caller id.Principal, symbol string, to token.Account, amount types.Amount) (uint64, error) {
	tx, err := l.mutate(ctx, symbol, "mint", func(st *token.State) (uint64, error) {
		return st.Mint(caller, to, amount, l.now())
	})
	if err != nil {
		return 0, err
	}

	l.plugins.EmitMint(ctx, symbol, tx)
	l.logger.Debug("mint committed",
		"symbol", symbol,
		"tx_id", tx.ID,
		"to", tx.To,
		"amount", tx.Amount,
	)
	return tx.ID, nil
}

// Burn removes tokens from an account. The account owner and the token
// owner may burn.
func (l *Ledger) Burn(ctx context.Context, caller id.Principal, symbol string, from token.Account, amount types.Amount) (uint64, error) {
	tx, err := l.mutate(ctx, symbol, "burn", func(st *token.State) (uint64, error) {
		return st.Burn(caller, from, amount, l.now())
	})
	if err != nil {
		return 0, err
	}

	l.plugins.EmitBurn(ctx, symbol, tx)
	l.logger.Debug("burn committed",
		"symbol", symbol,
		"tx_id", tx.ID,
		"from", tx.From,
		"amount", tx.Amount,
	)
	return tx.ID, nil
}

// Approve sets the allowance the caller grants a spender, replacing any
// previous value.
func (l *Ledger) Approve(ctx context.Context, caller id.Principal, symbol string, args token.ApproveArgs) (uint64, error) {
	err := l.store.UpdateToken(ctx, symbol, func(st *token.State) error {
		_, err := st.Approve(caller, args, l.now())
		return err
	})
	if err != nil {
		l.emitRejected(ctx, symbol, "approve", err)
		return 0, err
	}

	entry := token.AllowanceEntry{
		Owner:   token.Account{Owner: caller, Subaccount: args.FromSubaccount},
		Spender: args.Spender,
		Amount:  args.Amount,
	}
	l.plugins.EmitApproval(ctx, symbol, entry)
	l.logger.Debug("approval committed",
		"symbol", symbol,
		"owner", entry.Owner,
		"spender", entry.Spender,
		"amount", entry.Amount,
	)
	return 0, nil
}

// TransferFrom spends the caller's allowance to move tokens between two
// other accounts.
func (l *Ledger) TransferFrom(ctx context.Context, caller id.Principal, symbol string, args token.TransferFromArgs) (uint64, error) {
	tx, err := l.mutate(ctx, symbol, "transfer_from", func(st *token.State) (uint64, error) {
		return st.TransferFrom(caller, args, l.now())
	})
	if err != nil {
		return 0, err
	}

	l.plugins.EmitTransfer(ctx, symbol, tx)
	l.logger.Debug("transfer_from committed",
		"symbol", symbol,
		"tx_id", tx.ID,
		"from", tx.From,
		"to", tx.To,
		"amount", tx.Amount,
	)
	return tx.ID, nil
}

// mutate runs a transaction-producing operation against the token's state
// and returns the recorded transaction.
func (l *Ledger) mutate(ctx context.Context, symbol, op string, fn func(st *token.State) (uint64, error)) (token.Transaction, error) {
	var tx token.Transaction
	err := l.store.UpdateToken(ctx, symbol, func(st *token.State) error {
		txID, err := fn(st)
		if err != nil {
			return err
		}
		for _, cand := range st.Transactions(1) {
			if cand.ID == txID {
				tx = cand
			}
		}
		return nil
	})
	if err != nil {
		l.emitRejected(ctx, symbol, op, err)
		return token.Transaction{}, err
	}
	return tx, nil
}

func (l *Ledger) emitRejected(ctx context.Context, symbol, op string, err error) {
	if _, ok := AsTransferError(err); ok {
		l.plugins.EmitTransferRejected(ctx, symbol, op, err)
	}
	l.logger.Debug("ledger operation rejected",
		"symbol", symbol,
		"op", op,
		"error", err,
	)
}

// ──────────────────────────────────────────────────
// Queries
// ──────────────────────────────────────────────────

// BalanceOf returns the balance of an account, zero when the account or the
// token is unknown.
func (l *Ledger) BalanceOf(ctx context.Context, symbol string, acct token.Account) (types.Amount, error) {
	balance, err := l.store.GetBalance(ctx, symbol, acct)
	if errors.Is(err, ErrTokenNotFound) {
		return types.Amount{}, nil
	}
	return balance, err
}

// Allowance returns what spender may still draw from owner, zero when no
// approval or token exists.
func (l *Ledger) Allowance(ctx context.Context, symbol string, owner, spender token.Account) (types.Amount, error) {
	allowance, err := l.store.GetAllowance(ctx, symbol, owner, spender)
	if errors.Is(err, ErrTokenNotFound) {
		return types.Amount{}, nil
	}
	return allowance, err
}

// Metadata returns the full metadata of a registered token.
func (l *Ledger) Metadata(ctx context.Context, symbol string) (*token.Metadata, error) {
	return l.store.GetMetadata(ctx, symbol)
}

// MetadataPairs returns the metadata of a registered token as key/value
// pairs.
func (l *Ledger) MetadataPairs(ctx context.Context, symbol string) ([]token.MetadataPair, error) {
	meta, err := l.store.GetMetadata(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return meta.Pairs(), nil
}

// Name returns the name of a token, empty when the token is unknown.
func (l *Ledger) Name(ctx context.Context, symbol string) (string, error) {
	meta, err := l.metadataOrZero(ctx, symbol)
	if err != nil {
		return "", err
	}
	return meta.Name, nil
}

// Symbol returns the symbol of the token with the given name, empty when no
// token has that name.
func (l *Ledger) Symbol(ctx context.Context, name string) (string, error) {
	all, err := l.store.ListTokens(ctx)
	if err != nil {
		return "", err
	}
	for _, info := range all {
		if info.Name == name {
			return info.Symbol, nil
		}
	}
	return "", nil
}

// Decimals returns the display precision of a token, zero when the token is
// unknown.
func (l *Ledger) Decimals(ctx context.Context, symbol string) (uint8, error) {
	meta, err := l.metadataOrZero(ctx, symbol)
	if err != nil {
		return 0, err
	}
	return meta.Decimals, nil
}

// Fee returns the transfer fee of a token, zero when the token is unknown.
func (l *Ledger) Fee(ctx context.Context, symbol string) (types.Amount, error) {
	meta, err := l.metadataOrZero(ctx, symbol)
	if err != nil {
		return types.Amount{}, err
	}
	return meta.Fee, nil
}

// TotalSupply returns the circulating supply of a token, zero when the token
// is unknown.
func (l *Ledger) TotalSupply(ctx context.Context, symbol string) (types.Amount, error) {
	meta, err := l.metadataOrZero(ctx, symbol)
	if err != nil {
		return types.Amount{}, err
	}
	return meta.TotalSupply, nil
}

// MintingAccount returns the minting account of a token, nil when the token
// is unknown.
func (l *Ledger) MintingAccount(ctx context.Context, symbol string) (*token.Account, error) {
	meta, err := l.store.GetMetadata(ctx, symbol)
	if errors.Is(err, ErrTokenNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	acct := token.NewAccount(meta.Owner)
	return &acct, nil
}

// Transactions returns the transaction log of a token. A limit of zero, or
// one beyond the log length, yields the whole log oldest first; otherwise
// the most recent limit entries are returned newest first. An unknown token
// yields an empty log.
func (l *Ledger) Transactions(ctx context.Context, symbol string, limit uint64) ([]token.Transaction, error) {
	txs, err := l.store.ListTransactions(ctx, symbol, limit)
	if errors.Is(err, ErrTokenNotFound) {
		return []token.Transaction{}, nil
	}
	return txs, err
}

// Accounts returns every account holding a recorded balance on a token. An
// unknown token yields no accounts.
func (l *Ledger) Accounts(ctx context.Context, symbol string) ([]token.AccountBalance, error) {
	balances, err := l.store.ListBalances(ctx, symbol)
	if errors.Is(err, ErrTokenNotFound) {
		return []token.AccountBalance{}, nil
	}
	return balances, err
}

func (l *Ledger) metadataOrZero(ctx context.Context, symbol string) (token.Metadata, error) {
	meta, err := l.store.GetMetadata(ctx, symbol)
	if errors.Is(err, ErrTokenNotFound) {
		return token.Metadata{}, nil
	}
	if err != nil {
		return token.Metadata{}, err
	}
	return *meta, nil
}

// ──────────────────────────────────────────────────
// Task Scheduling
// ──────────────────────────────────────────────────

// CreateTask registers a scheduled task owned by the given principal. A task
// ID of zero auto-assigns the next free ID.
func (l *Ledger) CreateTask(owner id.Principal, task scheduler.Task) (uint64, error) {
	task.Owner = owner
	return l.sched.CreateTask(task)
}

// UpdateTask applies the non-nil fields of args to an existing task.
func (l *Ledger) UpdateTask(taskID uint64, args scheduler.UpdateArgs) error {
	return l.sched.UpdateTask(taskID, args)
}

// GetTask returns the task with the given ID.
func (l *Ledger) GetTask(taskID uint64) (scheduler.Task, error) {
	return l.sched.GetTask(taskID)
}

// DeleteTask removes a task.
func (l *Ledger) DeleteTask(taskID uint64) error {
	return l.sched.DeleteTask(taskID)
}

// ListTasks returns all tasks ordered by ID.
func (l *Ledger) ListTasks() []scheduler.Task {
	return l.sched.ListTasks()
}

// ListTasksByType returns all tasks with the given action type.
func (l *Ledger) ListTasksByType(actionType string) []scheduler.Task {
	return l.sched.ListTasksByType(actionType)
}

// ExecuteTasks runs every due task immediately and returns a record per
// executed task. The background worker calls this on its interval; callers
// may also trigger a sweep by hand.
func (l *Ledger) ExecuteTasks(ctx context.Context) []scheduler.Execution {
	runs := l.sched.RunDue(ctx, l.now(), scheduler.ExecutorFunc(l.executeTask))
	for _, run := range runs {
		l.plugins.EmitTaskExecuted(ctx, run.TaskID, run.Action, run.Err)
	}
	return runs
}

func (l *Ledger) schedulerWorker(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.schedulerInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			return
		case <-ticker.C:
			l.ExecuteTasks(ctx)
		}
	}
}

// ──────────────────────────────────────────────────
// Task Execution
// ──────────────────────────────────────────────────

func (l *Ledger) executeTask(ctx context.Context, t *scheduler.Task) error {
	switch t.ActionType {
	case scheduler.ActionTokenInit:
		return l.runTokenInitTask(ctx, t)
	case scheduler.ActionTokenTransfer:
		return l.runTokenTransferTask(ctx, t)
	case scheduler.ActionTokenMint:
		return l.runTokenMintTask(ctx, t)
	case scheduler.ActionTokenBurn:
		return l.runTokenBurnTask(ctx, t)
	case scheduler.ActionHTTPRequest:
		// Outbound HTTP delivery is not wired up; record the intent only.
		l.logger.Info("http_request task due",
			"task_id", t.ID,
			"url", t.URL,
		)
		return nil
	default:
		if action := l.plugins.GetTaskAction(t.ActionType); action != nil {
			return action.Execute(ctx, t.Data)
		}
		l.logger.Info("custom task due",
			"task_id", t.ID,
			"action_type", t.ActionType,
		)
		return nil
	}
}

type tokenInitInstruction struct {
	Name          string `json:"name"`
	Symbol        string `json:"symbol"`
	Decimals      uint8  `json:"decimals"`
	InitialSupply string `json:"initial_supply"`
	Fee           string `json:"fee"`
	Description   string `json:"description"`
	Logo          string `json:"logo"`
}

func (l *Ledger) runTokenInitTask(ctx context.Context, t *scheduler.Task) error {
	var instr tokenInitInstruction
	if err := json.Unmarshal([]byte(t.Data), &instr); err != nil {
		t.MarkFailed("parse error: " + err.Error())
		return fmt.Errorf("parse token_init data: %w", err)
	}

	cfg := token.Config{
		Name:          instr.Name,
		Symbol:        instr.Symbol,
		Decimals:      instr.Decimals,
		Description:   instr.Description,
		Logo:          instr.Logo,
		InitialSupply: parseTaskAmount(instr.InitialSupply),
		Fee:           parseTaskAmount(instr.Fee),
	}

	// One-shot task regardless of outcome.
	t.Enabled = false

	if _, err := l.InitToken(ctx, t.Owner, cfg); err != nil {
		t.MarkFailed(err.Error())
		return err
	}
	t.MarkSuccess(nil)
	return nil
}

type tokenOpInstruction struct {
	Symbol string `json:"symbol"`
	To     string `json:"to"`
	From   string `json:"from"`
	Amount string `json:"amount"`
	Memo   string `json:"memo"`
}

func (l *Ledger) runTokenTransferTask(ctx context.Context, t *scheduler.Task) error {
	instr, to, err := parseOpInstruction(t.Data, true)
	if err != nil {
		t.MarkFailed(err.Error())
		return err
	}

	args := token.TransferArgs{
		To:     to,
		Amount: parseTaskAmount(instr.Amount),
	}
	if instr.Memo != "" {
		args.Memo = []byte(instr.Memo)
	}

	t.Enabled = false

	txID, err := l.Transfer(ctx, t.Owner, instr.Symbol, args)
	if err != nil {
		t.MarkFailed(err.Error())
		return err
	}
	t.MarkSuccess(map[string]string{"tx_id": strconv.FormatUint(txID, 10)})
	return nil
}

func (l *Ledger) runTokenMintTask(ctx context.Context, t *scheduler.Task) error {
	instr, to, err := parseOpInstruction(t.Data, true)
	if err != nil {
		t.MarkFailed(err.Error())
		return err
	}

	t.Enabled = false

	txID, err := l.Mint(ctx, t.Owner, instr.Symbol, to, parseTaskAmount(instr.Amount))
	if err != nil {
		t.MarkFailed(err.Error())
		return err
	}
	t.MarkSuccess(map[string]string{"tx_id": strconv.FormatUint(txID, 10)})
	return nil
}

func (l *Ledger) runTokenBurnTask(ctx context.Context, t *scheduler.Task) error {
	var instr tokenOpInstruction
	if err := json.Unmarshal([]byte(t.Data), &instr); err != nil {
		t.MarkFailed("parse error: " + err.Error())
		return fmt.Errorf("parse task data: %w", err)
	}

	from := token.NewAccount(t.Owner)
	if instr.From != "" {
		owner, err := id.ParsePrincipal(instr.From)
		if err != nil {
			t.MarkFailed("invalid from principal: " + err.Error())
			return err
		}
		from = token.NewAccount(owner)
	}

	t.Enabled = false

	txID, err := l.Burn(ctx, t.Owner, instr.Symbol, from, parseTaskAmount(instr.Amount))
	if err != nil {
		t.MarkFailed(err.Error())
		return err
	}
	t.MarkSuccess(map[string]string{"tx_id": strconv.FormatUint(txID, 10)})
	return nil
}

func parseOpInstruction(data string, needTo bool) (tokenOpInstruction, token.Account, error) {
	var instr tokenOpInstruction
	if err := json.Unmarshal([]byte(data), &instr); err != nil {
		return instr, token.Account{}, fmt.Errorf("parse task data: %w", err)
	}
	if !needTo {
		return instr, token.Account{}, nil
	}
	if instr.To == "" {
		return instr, token.Account{}, fmt.Errorf("missing required field: to")
	}
	owner, err := id.ParsePrincipal(instr.To)
	if err != nil {
		return instr, token.Account{}, fmt.Errorf("invalid to principal: %w", err)
	}
	return instr, token.NewAccount(owner), nil
}

// parseTaskAmount mirrors the lenient amount handling of task payloads:
// anything unparseable counts as zero.
func parseTaskAmount(s string) types.Amount {
	amount, err := types.ParseAmount(s)
	if err != nil {
		return types.Amount{}
	}
	return amount
}
