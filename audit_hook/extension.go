// Package audithook bridges token ledger lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not import
// Chronicle directly. Callers inject a RecorderFunc adapter that bridges
// to Chronicle at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/xraph/tokenledger/plugin"
	"github.com/xraph/tokenledger/token"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin             = (*Extension)(nil)
	_ plugin.OnTokenInitialized = (*Extension)(nil)
	_ plugin.OnTransfer         = (*Extension)(nil)
	_ plugin.OnMint             = (*Extension)(nil)
	_ plugin.OnBurn             = (*Extension)(nil)
	_ plugin.OnApproval         = (*Extension)(nil)
	_ plugin.OnTransferRejected = (*Extension)(nil)
	_ plugin.OnTaskExecuted     = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
// This matches chronicle.Emitter but is defined locally so that the
// audithook package does not import Chronicle directly — callers inject
// the concrete *chronicle.Chronicle at wiring time.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
// It mirrors chronicle/audit.Event but avoids a module dependency.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges token ledger lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Token lifecycle hooks
// ──────────────────────────────────────────────────

// OnTokenInitialized implements plugin.OnTokenInitialized.
func (e *Extension) OnTokenInitialized(ctx context.Context, meta token.Metadata) error {
	return e.record(ctx, ActionTokenInitialized, SeverityInfo, OutcomeSuccess,
		ResourceToken, meta.Symbol, CategoryLedger, nil,
		"symbol", meta.Symbol,
		"name", meta.Name,
		"owner", meta.Owner.String(),
		"initial_supply", meta.TotalSupply.String(),
	)
}

// ──────────────────────────────────────────────────
// Ledger operation hooks
// ──────────────────────────────────────────────────

// OnTransfer implements plugin.OnTransfer.
func (e *Extension) OnTransfer(ctx context.Context, symbol string, tx token.Transaction) error {
	return e.record(ctx, ActionTransfer, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, txResourceID(symbol, tx.ID), CategoryLedger, nil,
		"symbol", symbol,
		"tx_id", tx.ID,
		"from", tx.From.Key(),
		"to", tx.To.Key(),
		"amount", tx.Amount.String(),
	)
}

// OnMint implements plugin.OnMint.
func (e *Extension) OnMint(ctx context.Context, symbol string, tx token.Transaction) error {
	return e.record(ctx, ActionMint, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, txResourceID(symbol, tx.ID), CategoryLedger, nil,
		"symbol", symbol,
		"tx_id", tx.ID,
		"to", tx.To.Key(),
		"amount", tx.Amount.String(),
	)
}

// OnBurn implements plugin.OnBurn.
func (e *Extension) OnBurn(ctx context.Context, symbol string, tx token.Transaction) error {
	return e.record(ctx, ActionBurn, SeverityInfo, OutcomeSuccess,
		ResourceTransaction, txResourceID(symbol, tx.ID), CategoryLedger, nil,
		"symbol", symbol,
		"tx_id", tx.ID,
		"from", tx.From.Key(),
		"amount", tx.Amount.String(),
	)
}

// OnApproval implements plugin.OnApproval.
func (e *Extension) OnApproval(ctx context.Context, symbol string, entry token.AllowanceEntry) error {
	return e.record(ctx, ActionApproval, SeverityInfo, OutcomeSuccess,
		ResourceAllowance, symbol, CategoryAccess, nil,
		"symbol", symbol,
		"owner", entry.Owner.Key(),
		"spender", entry.Spender.Key(),
		"amount", entry.Amount.String(),
	)
}

// OnTransferRejected implements plugin.OnTransferRejected.
func (e *Extension) OnTransferRejected(ctx context.Context, symbol, op string, opErr error) error {
	return e.record(ctx, ActionOperationRejected, SeverityWarning, OutcomeFailure,
		ResourceTransaction, symbol, CategoryLedger, opErr,
		"symbol", symbol,
		"operation", op,
	)
}

// ──────────────────────────────────────────────────
// Scheduler hooks
// ──────────────────────────────────────────────────

// OnTaskExecuted implements plugin.OnTaskExecuted.
func (e *Extension) OnTaskExecuted(ctx context.Context, taskID uint64, action string, taskErr error) error {
	severity := SeverityInfo
	outcome := OutcomeSuccess
	if taskErr != nil {
		severity = SeverityError
		outcome = OutcomeFailure
	}
	return e.record(ctx, ActionTaskExecuted, severity, outcome,
		ResourceTask, strconv.FormatUint(taskID, 10), CategoryScheduler, taskErr,
		"task_id", taskID,
		"action", action,
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func txResourceID(symbol string, txID uint64) string {
	return symbol + "/" + strconv.FormatUint(txID, 10)
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audithook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
