// Package observability provides a metrics extension for the token ledger
// that records lifecycle event counts via a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/tokenledger/plugin"
	"github.com/xraph/tokenledger/token"
	"github.com/xraph/tokenledger/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin             = (*MetricsExtension)(nil)
	_ plugin.OnInit             = (*MetricsExtension)(nil)
	_ plugin.OnTokenInitialized = (*MetricsExtension)(nil)
	_ plugin.OnTransfer         = (*MetricsExtension)(nil)
	_ plugin.OnMint             = (*MetricsExtension)(nil)
	_ plugin.OnBurn             = (*MetricsExtension)(nil)
	_ plugin.OnApproval         = (*MetricsExtension)(nil)
	_ plugin.OnTransferRejected = (*MetricsExtension)(nil)
	_ plugin.OnTaskExecuted     = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide ledger metrics.
// Register it as a Ledger plugin to automatically track token activity.
type MetricsExtension struct {
	factory MetricFactory

	// Token metrics
	TokensInitialized Counter

	// Operation metrics
	Transfers     Counter
	Mints         Counter
	Burns         Counter
	Approvals     Counter
	Rejected      Counter
	TransferValue Histogram

	// Task metrics
	TasksExecuted Counter
	TasksFailed   Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Token metrics
		TokensInitialized: factory.Counter("tokenledger.token.initialized"),

		// Operation metrics
		Transfers:     factory.Counter("tokenledger.transfer.committed"),
		Mints:         factory.Counter("tokenledger.mint.committed"),
		Burns:         factory.Counter("tokenledger.burn.committed"),
		Approvals:     factory.Counter("tokenledger.approval.committed"),
		Rejected:      factory.Counter("tokenledger.operation.rejected"),
		TransferValue: factory.Histogram("tokenledger.transfer.amount"),

		// Task metrics
		TasksExecuted: factory.Counter("tokenledger.task.executed"),
		TasksFailed:   factory.Counter("tokenledger.task.failed"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	// No initialization needed
	return nil
}

// ──────────────────────────────────────────────────
// Token lifecycle hooks
// ──────────────────────────────────────────────────

// OnTokenInitialized implements plugin.OnTokenInitialized.
func (m *MetricsExtension) OnTokenInitialized(_ context.Context, _ token.Metadata) error {
	m.TokensInitialized.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Ledger operation hooks
// ──────────────────────────────────────────────────

// OnTransfer implements plugin.OnTransfer.
func (m *MetricsExtension) OnTransfer(_ context.Context, _ string, tx token.Transaction) error {
	m.Transfers.Inc()
	m.observeValue(tx.Amount)
	return nil
}

// OnMint implements plugin.OnMint.
func (m *MetricsExtension) OnMint(_ context.Context, _ string, tx token.Transaction) error {
	m.Mints.Inc()
	m.observeValue(tx.Amount)
	return nil
}

// OnBurn implements plugin.OnBurn.
func (m *MetricsExtension) OnBurn(_ context.Context, _ string, tx token.Transaction) error {
	m.Burns.Inc()
	m.observeValue(tx.Amount)
	return nil
}

// OnApproval implements plugin.OnApproval.
func (m *MetricsExtension) OnApproval(_ context.Context, _ string, _ token.AllowanceEntry) error {
	m.Approvals.Inc()
	return nil
}

// OnTransferRejected implements plugin.OnTransferRejected.
func (m *MetricsExtension) OnTransferRejected(_ context.Context, _, _ string, _ error) error {
	m.Rejected.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Scheduler hooks
// ──────────────────────────────────────────────────

// OnTaskExecuted implements plugin.OnTaskExecuted.
func (m *MetricsExtension) OnTaskExecuted(_ context.Context, _ uint64, _ string, err error) error {
	m.TasksExecuted.Inc()
	if err != nil {
		m.TasksFailed.Inc()
	}
	return nil
}

// observeValue records a transaction amount. Amounts beyond float precision
// saturate rather than fail.
func (m *MetricsExtension) observeValue(amount types.Amount) {
	m.TransferValue.Observe(amount.Float64())
}
