package token

import (
	"fmt"

	"github.com/xraph/tokenledger/types"
)

// TransferError is the discriminated set of precondition failures a mutating
// ledger operation can return. Callers branch on the concrete kind with
// errors.As; none of these is ever wrapped in free-form text by the engine.
//
// DuplicateError and TemporarilyUnavailableError are part of the declared
// wire contract but are never produced: the ledger implements no duplicate
// detection and has no unavailable state.
type TransferError interface {
	error
	transferError()
}

// BadFeeError reports an explicit fee that does not equal the configured
// ledger fee.
type BadFeeError struct {
	Expected types.Amount
}

func (e BadFeeError) Error() string {
	return fmt.Sprintf("token: bad fee: expected %s", e.Expected)
}

// InsufficientFundsError reports a debit attempt exceeding the holder's
// balance. Balance is the balance at the time of the attempt.
type InsufficientFundsError struct {
	Balance types.Amount
}

func (e InsufficientFundsError) Error() string {
	return fmt.Sprintf("token: insufficient funds: balance %s", e.Balance)
}

// InsufficientAllowanceError reports a delegated transfer exceeding the
// spender's allowance. Allowance is the allowance at the time of the attempt.
type InsufficientAllowanceError struct {
	Allowance types.Amount
}

func (e InsufficientAllowanceError) Error() string {
	return fmt.Sprintf("token: insufficient allowance: %s", e.Allowance)
}

// TooOldError reports a created_at_time more than the permitted drift behind
// the ledger clock.
type TooOldError struct{}

func (e TooOldError) Error() string {
	return "token: transaction created_at_time too old"
}

// CreatedInFutureError reports a created_at_time ahead of the ledger clock
// beyond the permitted drift. LedgerTime is the ledger clock in seconds at
// the time of rejection.
type CreatedInFutureError struct {
	LedgerTime uint64
}

func (e CreatedInFutureError) Error() string {
	return fmt.Sprintf("token: transaction created in the future: ledger time %d", e.LedgerTime)
}

// DuplicateError reports a transaction already applied. Declared for the
// contract; never produced.
type DuplicateError struct {
	DuplicateOf uint64
}

func (e DuplicateError) Error() string {
	return fmt.Sprintf("token: duplicate of transaction %d", e.DuplicateOf)
}

// TemporarilyUnavailableError reports a ledger unable to serve the call.
// Declared for the contract; never produced.
type TemporarilyUnavailableError struct{}

func (e TemporarilyUnavailableError) Error() string {
	return "token: ledger temporarily unavailable"
}

// GenericError carries failures outside the specific kinds: authorization
// (code 1) and approve allowance mismatch (code 2).
type GenericError struct {
	Code    uint64
	Message string
}

func (e GenericError) Error() string {
	return fmt.Sprintf("token: error %d: %s", e.Code, e.Message)
}

// Error codes used with GenericError.
const (
	CodeUnauthorized      uint64 = 1
	CodeAllowanceMismatch uint64 = 2
)

func (BadFeeError) transferError()                 {}
func (InsufficientFundsError) transferError()      {}
func (InsufficientAllowanceError) transferError()  {}
func (TooOldError) transferError()                 {}
func (CreatedInFutureError) transferError()        {}
func (DuplicateError) transferError()              {}
func (TemporarilyUnavailableError) transferError() {}
func (GenericError) transferError()                {}

func errUnauthorized(msg string) GenericError {
	return GenericError{Code: CodeUnauthorized, Message: msg}
}
