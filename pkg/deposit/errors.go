package deposit

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidIntent       = errors.New("invalid deposit intent")
	ErrWalletUnavailable   = errors.New("wallet unavailable")
	ErrSubmissionRejected  = errors.New("transaction submission rejected")
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrApprovalFailed      = errors.New("approval failed")
	ErrDepositFailed       = errors.New("deposit failed")
	ErrConfirmationTimeout = errors.New("timed out waiting for confirmation")
	ErrCancelled           = errors.New("deposit cancelled")
)

var reasonErrors = map[FailureReason]error{
	ReasonInvalidAmount:       ErrInvalidAmount,
	ReasonInvalidIntent:       ErrInvalidIntent,
	ReasonWalletUnavailable:   ErrWalletUnavailable,
	ReasonSubmissionRejected:  ErrSubmissionRejected,
	ReasonInsufficientBalance: ErrInsufficientBalance,
	ReasonApprovalFailed:      ErrApprovalFailed,
	ReasonDepositFailed:       ErrDepositFailed,
	ReasonConfirmationTimeout: ErrConfirmationTimeout,
	ReasonCancelled:           ErrCancelled,
}

// FlowError is the terminal error of a failed flow
type FlowError struct {
	Reason FailureReason
	Err    error
}

func (e *FlowError) Error() string {
	sentinel := reasonErrors[e.Reason]
	if e.Err == nil {
		return sentinel.Error()
	}
	return fmt.Sprintf("%s: %v", sentinel, e.Err)
}

func (e *FlowError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's reason
func (e *FlowError) Is(target error) bool {
	return reasonErrors[e.Reason] == target
}

func newFlowError(reason FailureReason, err error) *FlowError {
	return &FlowError{Reason: reason, Err: err}
}

// Message returns a short human readable description of a failure reason
func (r FailureReason) Message() string {
	switch r {
	case ReasonInvalidAmount:
		return "The amount is not a valid positive number for this token."
	case ReasonInvalidIntent:
		return "The deposit request is incomplete."
	case ReasonWalletUnavailable:
		return "Connect the wallet that owns the funds and try again."
	case ReasonSubmissionRejected:
		return "The transaction was rejected before it reached the network."
	case ReasonInsufficientBalance:
		return "Your token balance is too low for this deposit."
	case ReasonApprovalFailed:
		return "The approval transaction failed on-chain."
	case ReasonDepositFailed:
		return "The deposit transaction failed on-chain."
	case ReasonConfirmationTimeout:
		return "No confirmation was seen in time. The transaction may still be mined."
	case ReasonCancelled:
		return "Tracking was cancelled. Already submitted transactions are not reverted."
	}
	return string(r)
}
