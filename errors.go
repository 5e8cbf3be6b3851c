package tokenledger

import (
	"errors"
	"fmt"

	"github.com/xraph/tokenledger/scheduler"
	"github.com/xraph/tokenledger/token"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("tokenledger: not found")
	ErrAlreadyExists = errors.New("tokenledger: already exists")
	ErrInvalidInput  = errors.New("tokenledger: invalid input")
	ErrUnauthorized  = errors.New("tokenledger: unauthorized")

	// Token errors
	ErrTokenNotFound = errors.New("tokenledger: token not initialized")
	ErrTokenExists   = errors.New("tokenledger: token symbol already registered")

	// Scheduler errors
	ErrTaskNotFound     = scheduler.ErrTaskNotFound
	ErrTaskExists       = scheduler.ErrTaskExists
	ErrSchedulerStopped = errors.New("tokenledger: scheduler is stopped")

	// Store errors
	ErrStoreNotReady   = errors.New("tokenledger: store not ready")
	ErrStoreClosed     = errors.New("tokenledger: store is closed")
	ErrMigrationFailed = errors.New("tokenledger: migration failed")

	// Engine errors
	ErrNotStarted     = errors.New("tokenledger: engine not started")
	ErrAlreadyStarted = errors.New("tokenledger: engine already started")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("tokenledger: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrTokenNotFound) ||
		errors.Is(err, ErrTaskNotFound)
}

// IsRetryable returns true if the error is temporary and the operation can be retried.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrStoreNotReady) {
		return true
	}
	var unavailable token.TemporarilyUnavailableError
	return errors.As(err, &unavailable)
}

// AsTransferError extracts the ledger rejection kind from err, if any.
func AsTransferError(err error) (token.TransferError, bool) {
	var te token.TransferError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
