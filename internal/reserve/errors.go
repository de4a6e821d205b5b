package reserve

import (
	"errors"
	"fmt"
)

// Code is a machine-readable rejection reason.
type Code string

const (
	CodeContractPaused         Code = "ContractPaused"
	CodeInvalidAmount          Code = "InvalidAmount"
	CodeAmountTooLarge         Code = "AmountTooLarge"
	CodeInsufficientSupply     Code = "InsufficientSupply"
	CodeOverflow               Code = "Overflow"
	CodeUnderflow              Code = "Underflow"
	CodeUnauthorized           Code = "Unauthorized"
	CodeAlreadyInitialized     Code = "AlreadyInitialized"
	CodeNotInitialized         Code = "NotInitialized"
	CodeExternalServiceFailure Code = "ExternalServiceFailure"
	CodeDuplicateReference     Code = "DuplicateReference"
	CodeInvalidAuthority       Code = "InvalidAuthority"
	CodeNoPendingAuthority     Code = "NoPendingAuthority"
	CodeInvalidDecimals        Code = "InvalidDecimals"
)

// Error is returned by every ledger operation that refuses a transition.
// Two errors are equal under errors.Is when their codes match.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Cause != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return msg
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error carrying the same code.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == other.Code
}

func newError(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

var (
	ErrContractPaused         = newError(CodeContractPaused, "contract is paused", nil)
	ErrInvalidAmount          = newError(CodeInvalidAmount, "amount must be greater than zero", nil)
	ErrAmountTooLarge         = newError(CodeAmountTooLarge, "amount exceeds the per-call mint limit", nil)
	ErrInsufficientSupply     = newError(CodeInsufficientSupply, "amount exceeds circulating supply", nil)
	ErrOverflow               = newError(CodeOverflow, "arithmetic overflow", nil)
	ErrUnderflow              = newError(CodeUnderflow, "arithmetic underflow", nil)
	ErrUnauthorized           = newError(CodeUnauthorized, "caller is not allowed to perform this operation", nil)
	ErrAlreadyInitialized     = newError(CodeAlreadyInitialized, "reserve already initialized", nil)
	ErrNotInitialized         = newError(CodeNotInitialized, "reserve not initialized", nil)
	ErrExternalServiceFailure = newError(CodeExternalServiceFailure, "token service call failed", nil)
	ErrDuplicateReference     = newError(CodeDuplicateReference, "deposit reference already used", nil)
	ErrInvalidAuthority       = newError(CodeInvalidAuthority, "authority must be a valid account address", nil)
	ErrNoPendingAuthority     = newError(CodeNoPendingAuthority, "no authority handoff pending", nil)
	ErrInvalidDecimals        = newError(CodeInvalidDecimals, "decimals out of range", nil)
)

// CodeOf extracts the rejection code from err, or "" when err is not a ledger error.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}
