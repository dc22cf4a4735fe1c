package deposit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"vault-deposit/pkg/chain"
)

const testChainID = 8453

var (
	owner = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	token = common.HexToAddress("0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913")
	vault = common.HexToAddress("0x1111111111111111111111111111111111111111")
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	chain  *fakeChain
	wallet *fakeWallet
	rec    *recorder
	orch   *Orchestrator
}

func newFixture(t *testing.T, timeout time.Duration) *fixture {
	t.Helper()
	f := &fixture{
		chain:  newFakeChain(),
		wallet: &fakeWallet{address: owner, connected: true},
		rec:    &recorder{},
	}
	orch, err := NewOrchestrator(Options{
		Chains:              chain.StaticResolver{testChainID: f.chain},
		Wallet:              f.wallet,
		Logger:              slog.New(slog.NewTextHandler(io.Discard, nil)),
		ConfirmationTimeout: timeout,
		OnTransition:        f.rec.record,
	})
	require.NoError(t, err)
	f.orch = orch
	return f
}

func testIntent(amount string) Intent {
	return Intent{
		Amount:        amount,
		Token:         token,
		Vault:         vault,
		Owner:         owner,
		ChainID:       testChainID,
		TokenDecimals: 6,
	}
}

func waitDone(t *testing.T, h *Handle) (State, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	st, err := h.Wait(ctx)
	require.NotErrorIs(t, err, context.DeadlineExceeded, "flow did not finish")
	return st, err
}

func TestSubmit_SkipsApprovalWhenAllowanceSufficient(t *testing.T) {
	f := newFixture(t, time.Second)
	f.chain.allowance = big.NewInt(200_000_000)

	h, err := f.orch.Submit(context.Background(), testIntent("100.123456789"))
	require.NoError(t, err)

	st, err := waitDone(t, h)
	require.NoError(t, err)

	assert.Equal(t, PhaseSucceeded, st.Phase)
	assert.Equal(t, "100123457", st.RequiredAmount.String())
	assert.Nil(t, st.Approval)
	require.NotNil(t, st.Deposit)
	assert.Equal(t, TxConfirmed, st.Deposit.Status)

	assert.Equal(t, []string{"deposit"}, f.chain.writeMethods())
	dep := f.chain.writes[0]
	assert.Equal(t, vault, dep.Address)
	assert.Equal(t, big.NewInt(100_123_457), dep.Args[0])
	assert.Equal(t, owner, dep.Args[1])

	assert.Equal(t, []Phase{
		PhaseValidatingInput,
		PhaseCheckingAllowance,
		PhaseDepositing,
		PhaseAwaitingDepositConfirmation,
		PhaseSucceeded,
	}, f.rec.phases())
}

func TestSubmit_ApprovesBeforeDeposit(t *testing.T) {
	f := newFixture(t, time.Second)
	f.chain.allowance = big.NewInt(50_000_000)

	h, err := f.orch.Submit(context.Background(), testIntent("100.123456789"))
	require.NoError(t, err)

	st, err := waitDone(t, h)
	require.NoError(t, err)
	assert.Equal(t, PhaseSucceeded, st.Phase)

	assert.Equal(t, []string{"approve", "deposit"}, f.chain.writeMethods())
	approve := f.chain.writes[0]
	assert.Equal(t, token, approve.Address)
	assert.Equal(t, vault, approve.Args[0])
	assert.Equal(t, big.NewInt(100_123_457), approve.Args[1])

	require.NotNil(t, st.Approval)
	assert.Equal(t, TxConfirmed, st.Approval.Status)
	assert.Equal(t, "100123457", st.Allowance.String())

	approval, dep := st.TransactionHashes()
	require.NotNil(t, approval)
	require.NotNil(t, dep)
	assert.NotEqual(t, *approval, *dep)

	assert.Equal(t, []Phase{
		PhaseValidatingInput,
		PhaseCheckingAllowance,
		PhaseApproving,
		PhaseAwaitingApprovalConfirmation,
		PhaseDepositing,
		PhaseAwaitingDepositConfirmation,
		PhaseSucceeded,
	}, f.rec.phases())
}

func TestSubmit_BalanceDropsAfterApproval(t *testing.T) {
	f := newFixture(t, time.Second)
	f.chain.balanceAfterApproval = big.NewInt(10)

	h, err := f.orch.Submit(context.Background(), testIntent("25"))
	require.NoError(t, err)

	st, err := waitDone(t, h)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.Equal(t, ReasonInsufficientBalance, st.ErrorReason)
	assert.Nil(t, st.Deposit)
	assert.Equal(t, []string{"approve"}, f.chain.writeMethods())
}

func TestSubmit_ApprovalLeavesAllowanceShort(t *testing.T) {
	f := newFixture(t, time.Second)
	f.chain.allowanceAfterApproval = big.NewInt(1)

	h, err := f.orch.Submit(context.Background(), testIntent("25"))
	require.NoError(t, err)

	st, err := waitDone(t, h)
	assert.ErrorIs(t, err, ErrApprovalFailed)
	assert.Equal(t, ReasonApprovalFailed, st.ErrorReason)
	assert.Equal(t, []string{"approve"}, f.chain.writeMethods())
}

func TestSubmit_Reverts(t *testing.T) {
	t.Run("approval", func(t *testing.T) {
		f := newFixture(t, time.Second)
		f.chain.approvalStatus = chain.ReceiptReverted

		h, err := f.orch.Submit(context.Background(), testIntent("1"))
		require.NoError(t, err)

		st, err := waitDone(t, h)
		assert.ErrorIs(t, err, ErrApprovalFailed)
		assert.Equal(t, ReasonApprovalFailed, st.ErrorReason)
		require.NotNil(t, st.Approval)
		assert.Equal(t, TxFailed, st.Approval.Status)
		assert.Nil(t, st.Deposit)
		assert.False(t, st.OutcomeUncertain)
	})

	t.Run("deposit", func(t *testing.T) {
		f := newFixture(t, time.Second)
		f.chain.allowance = big.NewInt(5_000_000)
		f.chain.depositStatus = chain.ReceiptReverted

		h, err := f.orch.Submit(context.Background(), testIntent("1"))
		require.NoError(t, err)

		st, err := waitDone(t, h)
		assert.ErrorIs(t, err, ErrDepositFailed)
		assert.Equal(t, ReasonDepositFailed, st.ErrorReason)
		require.NotNil(t, st.Deposit)
		assert.Equal(t, TxFailed, st.Deposit.Status)
	})
}

func TestSubmit_WhileRunningReturnsSameHandle(t *testing.T) {
	f := newFixture(t, time.Second)
	f.chain.allowance = big.NewInt(5_000_000)
	f.chain.writeGate = make(chan struct{})

	h1, err := f.orch.Submit(context.Background(), testIntent("1"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return h1.State().Phase == PhaseDepositing
	}, 2*time.Second, 5*time.Millisecond)

	h2, err := f.orch.Submit(context.Background(), testIntent("2"))
	require.NoError(t, err)
	assert.Same(t, h1, h2)
	assert.Equal(t, "1", h2.Intent().Amount)

	close(f.chain.writeGate)
	_, err = waitDone(t, h1)
	require.NoError(t, err)
	assert.Equal(t, []string{"deposit"}, f.chain.writeMethods())

	h3, err := f.orch.Submit(context.Background(), testIntent("2"))
	require.NoError(t, err)
	assert.NotSame(t, h1, h3)
	_, err = waitDone(t, h3)
	require.NoError(t, err)
}

func TestSubmit_WhileApprovingReturnsSameHandle(t *testing.T) {
	f := newFixture(t, time.Second)
	f.chain.writeGate = make(chan struct{})

	h1, err := f.orch.Submit(context.Background(), testIntent("1"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return h1.State().Phase == PhaseApproving
	}, 2*time.Second, 5*time.Millisecond)

	h2, err := f.orch.Submit(context.Background(), testIntent("1"))
	require.NoError(t, err)
	assert.Same(t, h1, h2)

	close(f.chain.writeGate)
	_, err = waitDone(t, h1)
	require.NoError(t, err)
	assert.Equal(t, []string{"approve", "deposit"}, f.chain.writeMethods())
}

func TestOnTransition_CanReadCurrentState(t *testing.T) {
	var orch *Orchestrator
	var mu sync.Mutex
	var seen []Phase

	fc := newFakeChain()
	fc.allowance = big.NewInt(5_000_000)
	orch, err := NewOrchestrator(Options{
		Chains: chain.StaticResolver{testChainID: fc},
		Wallet: &fakeWallet{address: owner, connected: true},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		OnTransition: func(State) {
			st := orch.CurrentState()
			mu.Lock()
			seen = append(seen, st.Phase)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	h, err := orch.Submit(context.Background(), testIntent("1"))
	require.NoError(t, err)
	_, err = waitDone(t, h)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, seen)
	assert.Equal(t, PhaseSucceeded, seen[len(seen)-1])
}

func TestCancel(t *testing.T) {
	f := newFixture(t, time.Second)
	f.chain.writeGate = make(chan struct{})

	h, err := f.orch.Submit(context.Background(), testIntent("1"))
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		return h.State().Phase == PhaseApproving
	}, 2*time.Second, 5*time.Millisecond)

	assert.True(t, f.orch.Cancel())

	st, err := waitDone(t, h)
	assert.ErrorIs(t, err, ErrCancelled)
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.Equal(t, ReasonCancelled, st.ErrorReason)
	assert.Empty(t, f.chain.writeMethods())

	// terminal flows ignore further cancels
	assert.False(t, h.Cancel())
	assert.Equal(t, ReasonCancelled, h.State().ErrorReason)
	assert.Equal(t, PhaseFailed, f.rec.phases()[len(f.rec.phases())-1])
}

func TestCancel_AfterSuccessIsNoop(t *testing.T) {
	f := newFixture(t, time.Second)
	f.chain.allowance = big.NewInt(5_000_000)

	h, err := f.orch.Submit(context.Background(), testIntent("1"))
	require.NoError(t, err)
	_, err = waitDone(t, h)
	require.NoError(t, err)

	assert.False(t, h.Cancel())
	assert.Equal(t, PhaseSucceeded, h.State().Phase)
	assert.NoError(t, h.Err())
}

func TestSubmit_InvalidAmountMakesNoCalls(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals uint8
	}{
		{"empty", "", 6},
		{"letters", "abc", 6},
		{"zero", "0", 6},
		{"negative", "-5", 6},
		{"rounds to zero", "0.0000001", 6},
		{"exponent", "1e6", 6},
		{"more digits than token", "1.239", 2},
		{"fraction on whole token", "3.5", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, time.Second)
			f.chain.decimals = tt.decimals
			intent := testIntent(tt.amount)
			intent.TokenDecimals = tt.decimals

			h, err := f.orch.Submit(context.Background(), intent)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidAmount)

			var ferr *FlowError
			require.True(t, errors.As(err, &ferr))
			assert.Equal(t, ReasonInvalidAmount, ferr.Reason)

			st := h.State()
			assert.Equal(t, PhaseFailed, st.Phase)
			assert.Equal(t, ReasonInvalidAmount, st.ErrorReason)
			assert.Zero(t, f.chain.callCount())

			select {
			case <-h.Done():
			default:
				t.Fatal("failed handle should be done")
			}
		})
	}
}

func TestSubmit_InvalidIntent(t *testing.T) {
	f := newFixture(t, time.Second)

	intent := testIntent("1")
	intent.Vault = common.Address{}

	h, err := f.orch.Submit(context.Background(), intent)
	assert.ErrorIs(t, err, ErrInvalidIntent)
	assert.Equal(t, ReasonInvalidIntent, h.State().ErrorReason)
	assert.Zero(t, f.chain.callCount())
}

func TestSubmit_WalletUnavailable(t *testing.T) {
	tests := []struct {
		name  string
		setup func(w *fakeWallet)
	}{
		{"disconnected", func(w *fakeWallet) { w.connected = false }},
		{"authenticating", func(w *fakeWallet) { w.authenticating = true }},
		{"other account", func(w *fakeWallet) {
			w.address = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, time.Second)
			tt.setup(f.wallet)

			h, err := f.orch.Submit(context.Background(), testIntent("1"))
			assert.ErrorIs(t, err, ErrWalletUnavailable)
			assert.Equal(t, ReasonWalletUnavailable, h.State().ErrorReason)
			assert.Zero(t, f.chain.callCount())
		})
	}
}

func TestSubmit_DecimalsMismatch(t *testing.T) {
	f := newFixture(t, time.Second)
	f.chain.decimals = 18

	h, err := f.orch.Submit(context.Background(), testIntent("1"))
	require.NoError(t, err)

	st, err := waitDone(t, h)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	assert.Equal(t, ReasonInvalidAmount, st.ErrorReason)
	assert.Empty(t, f.chain.writeMethods())
}

func TestSubmit_SubmissionRejected(t *testing.T) {
	t.Run("unknown chain", func(t *testing.T) {
		f := newFixture(t, time.Second)
		intent := testIntent("1")
		intent.ChainID = 1

		h, err := f.orch.Submit(context.Background(), intent)
		require.NoError(t, err)

		st, err := waitDone(t, h)
		assert.ErrorIs(t, err, ErrSubmissionRejected)
		assert.ErrorIs(t, err, chain.ErrUnknownChain)
		assert.Equal(t, ReasonSubmissionRejected, st.ErrorReason)
	})

	t.Run("write refused", func(t *testing.T) {
		f := newFixture(t, time.Second)
		f.chain.writeErr = errors.New("user rejected the request")

		h, err := f.orch.Submit(context.Background(), testIntent("1"))
		require.NoError(t, err)

		st, err := waitDone(t, h)
		assert.ErrorIs(t, err, ErrSubmissionRejected)
		assert.ErrorContains(t, err, "user rejected")
		assert.Nil(t, st.Approval)
	})
}

func TestSubmit_ConfirmationTimeoutAndReconcile(t *testing.T) {
	f := newFixture(t, 50*time.Millisecond)
	f.chain.allowance = big.NewInt(5_000_000)
	f.chain.setHang(true)

	h, err := f.orch.Submit(context.Background(), testIntent("1"))
	require.NoError(t, err)

	st, err := waitDone(t, h)
	assert.ErrorIs(t, err, ErrConfirmationTimeout)
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.Equal(t, ReasonConfirmationTimeout, st.ErrorReason)
	assert.True(t, st.OutcomeUncertain)
	require.NotNil(t, st.Deposit)
	assert.Equal(t, TxSubmitted, st.Deposit.Status)

	f.chain.setHang(false)
	status, err := h.Reconcile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, chain.ReceiptSuccess, status)

	st = h.State()
	assert.Equal(t, PhaseFailed, st.Phase)
	assert.Equal(t, chain.ReceiptSuccess, st.LateOutcome)
	assert.Equal(t, TxConfirmed, st.Deposit.Status)
}

func TestReconcile_NotUncertain(t *testing.T) {
	f := newFixture(t, time.Second)
	f.chain.allowance = big.NewInt(5_000_000)

	h, err := f.orch.Submit(context.Background(), testIntent("1"))
	require.NoError(t, err)
	_, err = waitDone(t, h)
	require.NoError(t, err)

	_, err = h.Reconcile(context.Background())
	assert.ErrorIs(t, err, ErrNotUncertain)
}

func TestCurrentState_Idle(t *testing.T) {
	f := newFixture(t, time.Second)

	assert.Nil(t, f.orch.Current())
	assert.Equal(t, PhaseIdle, f.orch.CurrentState().Phase)
	assert.False(t, f.orch.Cancel())
}

func TestNewOrchestrator_RequiresDependencies(t *testing.T) {
	_, err := NewOrchestrator(Options{Wallet: &fakeWallet{}})
	assert.Error(t, err)

	_, err = NewOrchestrator(Options{Chains: chain.StaticResolver{}})
	assert.Error(t, err)
}

func TestFlowError(t *testing.T) {
	cause := errors.New("boom")
	err := newFlowError(ReasonDepositFailed, cause)

	assert.ErrorIs(t, err, ErrDepositFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrApprovalFailed)
	assert.Equal(t, "deposit failed: boom", err.Error())
	assert.Equal(t, "deposit cancelled", newFlowError(ReasonCancelled, nil).Error())
	assert.NotEmpty(t, ReasonConfirmationTimeout.Message())
}
