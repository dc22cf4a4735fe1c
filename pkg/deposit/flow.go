package deposit

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"vault-deposit/pkg/chain"
)

// run drives the flow from validating_input to a terminal phase
func (h *Handle) run(ctx context.Context, chains chain.Resolver, required *big.Int) {
	defer h.cancel()

	err := h.execute(ctx, chains, required)
	if err == nil {
		if h.setPhase(PhaseSucceeded) {
			h.logger.Info("deposit succeeded")
		}
		return
	}

	var ferr *FlowError
	if !errors.As(err, &ferr) {
		ferr = newFlowError(ReasonSubmissionRejected, err)
	}
	if h.fail(ferr, nil) {
		h.logger.Warn("deposit failed", "reason", ferr.Reason, "error", ferr.Err)
	}
}

func (h *Handle) execute(ctx context.Context, chains chain.Resolver, required *big.Int) error {
	intent := h.intent

	client, err := chains.Client(ctx, intent.ChainID)
	if err != nil {
		return newFlowError(ReasonSubmissionRejected, fmt.Errorf("chain %d: %w", intent.ChainID, err))
	}
	h.setClient(client)

	decimals, err := chain.Decimals(ctx, client, intent.Token)
	if err != nil {
		return newFlowError(ReasonSubmissionRejected, err)
	}
	if decimals != intent.TokenDecimals {
		return newFlowError(ReasonInvalidAmount,
			fmt.Errorf("token reports %d decimals, intent uses %d", decimals, intent.TokenDecimals))
	}

	if !h.setPhase(PhaseCheckingAllowance) {
		return nil
	}
	allowance, err := chain.Allowance(ctx, client, intent.Token, intent.Owner, intent.Vault)
	if err != nil {
		return newFlowError(ReasonSubmissionRejected, err)
	}
	h.update(func(s *State) { s.Allowance = allowance })

	if allowance.Cmp(required) < 0 {
		h.logger.Info("allowance below required amount, approving",
			"allowance", allowance.String(), "required", required.String())
		if err := h.approve(ctx, client, required); err != nil {
			return err
		}
	}

	return h.deposit(ctx, client, required)
}

func (h *Handle) approve(ctx context.Context, client chain.Client, required *big.Int) error {
	intent := h.intent

	if !h.setPhase(PhaseApproving) {
		return nil
	}
	hash, err := client.WriteContract(ctx, chain.WriteRequest{
		Address: intent.Token,
		ABI:     chain.ERC20ABI,
		Method:  "approve",
		Args:    []interface{}{intent.Vault, required},
		ChainID: intent.ChainID,
		Account: intent.Owner,
	})
	if err != nil {
		return newFlowError(ReasonSubmissionRejected, err)
	}
	h.logger.Info("approval submitted", "tx_hash", hash.Hex())
	h.update(func(s *State) {
		s.Approval = &TransactionRecord{Kind: TxApproval, Hash: hash, Status: TxSubmitted, SubmittedAt: h.now()}
		s.Phase = PhaseAwaitingApprovalConfirmation
	})

	if err := h.confirm(ctx, client, hash, TxApproval, ReasonApprovalFailed); err != nil {
		return err
	}

	allowance, err := chain.Allowance(ctx, client, intent.Token, intent.Owner, intent.Vault)
	if err != nil {
		return newFlowError(ReasonSubmissionRejected, err)
	}
	h.update(func(s *State) { s.Allowance = allowance })
	if allowance.Cmp(required) < 0 {
		return newFlowError(ReasonApprovalFailed,
			fmt.Errorf("allowance %s still below %s after approval", allowance, required))
	}
	return nil
}

func (h *Handle) deposit(ctx context.Context, client chain.Client, required *big.Int) error {
	intent := h.intent

	if !h.setPhase(PhaseDepositing) {
		return nil
	}

	balance, err := chain.BalanceOf(ctx, client, intent.Token, intent.Owner)
	if err != nil {
		return newFlowError(ReasonSubmissionRejected, err)
	}
	if balance.Cmp(required) < 0 {
		return newFlowError(ReasonInsufficientBalance,
			fmt.Errorf("balance %s is below %s", balance, required))
	}

	hash, err := client.WriteContract(ctx, chain.WriteRequest{
		Address: intent.Vault,
		ABI:     chain.VaultABI,
		Method:  "deposit",
		Args:    []interface{}{required, intent.Owner},
		ChainID: intent.ChainID,
		Account: intent.Owner,
	})
	if err != nil {
		return newFlowError(ReasonSubmissionRejected, err)
	}
	h.logger.Info("deposit submitted to vault", "tx_hash", hash.Hex())
	h.update(func(s *State) {
		s.Deposit = &TransactionRecord{Kind: TxDeposit, Hash: hash, Status: TxSubmitted, SubmittedAt: h.now()}
		s.Phase = PhaseAwaitingDepositConfirmation
	})

	return h.confirm(ctx, client, hash, TxDeposit, ReasonDepositFailed)
}

// confirm waits for hash to be mined and records the result on the
// matching transaction record
func (h *Handle) confirm(ctx context.Context, client chain.Client, hash common.Hash, kind TxKind, revertReason FailureReason) error {
	waitCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	receipt, err := client.WaitForReceipt(waitCtx, hash)
	if err != nil {
		if ctx.Err() != nil {
			return newFlowError(ReasonCancelled, ctx.Err())
		}
		if errors.Is(err, context.DeadlineExceeded) {
			h.logger.Warn("no receipt before timeout, outcome unknown", "kind", kind, "tx_hash", hash.Hex(), "timeout", h.timeout)
			h.fail(newFlowError(ReasonConfirmationTimeout, fmt.Errorf("%s %s", kind, hash.Hex())), func(s *State) {
				s.OutcomeUncertain = true
			})
			return newFlowError(ReasonConfirmationTimeout, err)
		}
		return newFlowError(revertReason, err)
	}

	status := TxConfirmed
	if receipt.Status != chain.ReceiptSuccess {
		status = TxFailed
	}
	h.update(func(s *State) {
		rec := s.Approval
		if kind == TxDeposit {
			rec = s.Deposit
		}
		rec.Status = status
	})

	if status == TxFailed {
		return newFlowError(revertReason, fmt.Errorf("transaction %s reverted in block %d", hash.Hex(), receipt.BlockNumber))
	}
	h.logger.Info("transaction confirmed", "kind", kind, "tx_hash", hash.Hex(), "block", receipt.BlockNumber)
	return nil
}
