package fluidpay

import (
	"errors"
)

var (
	ErrConfiguration      = errors.New("invalid configuration")
	ErrAuthorization      = errors.New("caller is not authorized")
	ErrUnacceptedToken    = errors.New("token is not accepted")
	ErrInsufficientAmount = errors.New("insufficient amount")
	// ErrSlippageExceeded is also returned by routers when amountOutMin cannot be met.
	ErrSlippageExceeded = errors.New("slippage exceeded")
	ErrExternalCall     = errors.New("external call failed")
	// ErrRollbackFailed is joined to the primary error when a compensation step fails
	// and the custody account may still hold funds from the aborted call.
	ErrRollbackFailed = errors.New("rollback failed")
)

const (
	CodeConfiguration      = "configuration_error"
	CodeAuthorization      = "authorization_error"
	CodeUnacceptedToken    = "unaccepted_token"
	CodeInsufficientAmount = "insufficient_amount"
	CodeSlippageExceeded   = "slippage_exceeded"
	CodeExternalCall       = "external_call_failure"
	CodeRollbackFailed     = "rollback_failed"
	CodeUnknown            = "unknown"
)

// ErrorCode maps an error returned by the module to a stable code.
// A failed rollback takes precedence since it needs manual reconciliation.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrRollbackFailed):
		return CodeRollbackFailed
	case errors.Is(err, ErrConfiguration):
		return CodeConfiguration
	case errors.Is(err, ErrAuthorization):
		return CodeAuthorization
	case errors.Is(err, ErrUnacceptedToken):
		return CodeUnacceptedToken
	case errors.Is(err, ErrInsufficientAmount):
		return CodeInsufficientAmount
	case errors.Is(err, ErrSlippageExceeded):
		return CodeSlippageExceeded
	case errors.Is(err, ErrExternalCall):
		return CodeExternalCall
	default:
		return CodeUnknown
	}
}
