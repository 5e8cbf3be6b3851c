package audithook

// Action constants for audit events.
const (
	// Token actions
	ActionTokenInitialized = "token.initialized"

	// Ledger actions
	ActionTransfer          = "token.transfer"
	ActionMint              = "token.mint"
	ActionBurn              = "token.burn"
	ActionApproval          = "token.approval"
	ActionOperationRejected = "token.operation_rejected"

	// Task actions
	ActionTaskExecuted = "task.executed"
)

// Resource constants for audit events.
const (
	ResourceToken       = "token"
	ResourceTransaction = "transaction"
	ResourceAllowance   = "allowance"
	ResourceTask        = "task"
)

// Category constants for audit events.
const (
	CategoryLedger    = "ledger"
	CategoryAccess    = "access"
	CategoryScheduler = "scheduler"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)
