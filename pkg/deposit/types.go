package deposit

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"vault-deposit/pkg/chain"
)

// Phase is a state of the deposit state machine
type Phase string

const (
	PhaseIdle                         Phase = "idle"
	PhaseValidatingInput              Phase = "validating_input"
	PhaseCheckingAllowance            Phase = "checking_allowance"
	PhaseApproving                    Phase = "approving"
	PhaseAwaitingApprovalConfirmation Phase = "awaiting_approval_confirmation"
	PhaseDepositing                   Phase = "depositing"
	PhaseAwaitingDepositConfirmation  Phase = "awaiting_deposit_confirmation"
	PhaseSucceeded                    Phase = "succeeded"
	PhaseFailed                       Phase = "failed"
)

// IsTerminal reports whether no further transitions can happen
func (p Phase) IsTerminal() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}

// FailureReason classifies a failed flow
type FailureReason string

const (
	ReasonInvalidAmount       FailureReason = "invalid_amount"
	ReasonInvalidIntent       FailureReason = "invalid_intent"
	ReasonWalletUnavailable   FailureReason = "wallet_unavailable"
	ReasonSubmissionRejected  FailureReason = "submission_rejected"
	ReasonInsufficientBalance FailureReason = "insufficient_balance"
	ReasonApprovalFailed      FailureReason = "approval_failed"
	ReasonDepositFailed       FailureReason = "deposit_failed"
	ReasonConfirmationTimeout FailureReason = "confirmation_timeout"
	ReasonCancelled           FailureReason = "cancelled"
)

// TxKind identifies which step a transaction belongs to
type TxKind string

const (
	TxApproval TxKind = "approval"
	TxDeposit  TxKind = "deposit"
)

// TxStatus tracks a submitted transaction
type TxStatus string

const (
	TxSubmitted TxStatus = "submitted"
	TxConfirmed TxStatus = "confirmed"
	TxFailed    TxStatus = "failed"
)

// TransactionRecord is one transaction submitted during a flow. Records are
// kept in memory for the lifetime of the handle only.
type TransactionRecord struct {
	Kind        TxKind      `json:"kind"`
	Hash        common.Hash `json:"hash"`
	Status      TxStatus    `json:"status"`
	SubmittedAt time.Time   `json:"submitted_at"`
}

// Intent is a single deposit request. It is passed by value and never
// modified once submitted.
type Intent struct {
	Amount        string         `json:"amount"`
	Token         common.Address `json:"token"`
	Vault         common.Address `json:"vault"`
	Owner         common.Address `json:"owner"`
	ChainID       uint64         `json:"chain_id"`
	TokenDecimals uint8          `json:"token_decimals"`
}

// State is a read-only snapshot of a flow
type State struct {
	FlowID         string             `json:"flow_id,omitempty"`
	Phase          Phase              `json:"phase"`
	Intent         *Intent            `json:"intent,omitempty"`
	RequiredAmount *big.Int           `json:"required_amount,omitempty"`
	Allowance      *big.Int           `json:"allowance,omitempty"`
	Approval       *TransactionRecord `json:"approval,omitempty"`
	Deposit        *TransactionRecord `json:"deposit,omitempty"`
	ErrorReason    FailureReason      `json:"error_reason,omitempty"`
	Error          string             `json:"error,omitempty"`

	// OutcomeUncertain is set when a confirmation wait timed out: the
	// transaction may still be mined later.
	OutcomeUncertain bool                `json:"outcome_uncertain,omitempty"`
	LateOutcome      chain.ReceiptStatus `json:"late_outcome,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// TransactionHashes returns the hashes known so far
func (s State) TransactionHashes() (approval, deposit *common.Hash) {
	if s.Approval != nil {
		h := s.Approval.Hash
		approval = &h
	}
	if s.Deposit != nil {
		h := s.Deposit.Hash
		deposit = &h
	}
	return approval, deposit
}

// LastHash returns the most recent transaction hash, if any
func (s State) LastHash() (common.Hash, bool) {
	if s.Deposit != nil {
		return s.Deposit.Hash, true
	}
	if s.Approval != nil {
		return s.Approval.Hash, true
	}
	return common.Hash{}, false
}

func (s State) clone() State {
	c := s
	if s.Intent != nil {
		i := *s.Intent
		c.Intent = &i
	}
	if s.RequiredAmount != nil {
		c.RequiredAmount = new(big.Int).Set(s.RequiredAmount)
	}
	if s.Allowance != nil {
		c.Allowance = new(big.Int).Set(s.Allowance)
	}
	if s.Approval != nil {
		r := *s.Approval
		c.Approval = &r
	}
	if s.Deposit != nil {
		r := *s.Deposit
		c.Deposit = &r
	}
	return c
}
