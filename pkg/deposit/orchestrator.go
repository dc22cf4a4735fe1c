package deposit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"vault-deposit/pkg/amount"
	"vault-deposit/pkg/chain"
	"vault-deposit/pkg/wallet"
)

const DefaultConfirmationTimeout = 5 * time.Minute

// Options configures an Orchestrator
type Options struct {
	Chains chain.Resolver
	Wallet wallet.Connector
	Logger *slog.Logger

	// ConfirmationTimeout bounds each wait for a transaction receipt
	ConfirmationTimeout time.Duration

	// OnTransition is called with a snapshot after every state change, in
	// order, from the goroutine that made the change. It must not block and
	// must not call Cancel on the handle being reported. Current and
	// CurrentState are safe to call from it.
	OnTransition func(State)

	// Now defaults to time.Now
	Now func() time.Time
}

// Orchestrator runs at most one deposit flow at a time
type Orchestrator struct {
	chains       chain.Resolver
	wallet       wallet.Connector
	logger       *slog.Logger
	timeout      time.Duration
	onTransition func(State)
	now          func() time.Time

	mu      sync.Mutex
	current *Handle
}

func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Chains == nil {
		return nil, fmt.Errorf("chain resolver is required")
	}
	if opts.Wallet == nil {
		return nil, fmt.Errorf("wallet connector is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ConfirmationTimeout <= 0 {
		opts.ConfirmationTimeout = DefaultConfirmationTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Orchestrator{
		chains:       opts.Chains,
		wallet:       opts.Wallet,
		logger:       opts.Logger,
		timeout:      opts.ConfirmationTimeout,
		onTransition: opts.OnTransition,
		now:          opts.Now,
	}, nil
}

// Submit starts a deposit flow for intent and returns its handle.
//
// While a flow is still running Submit returns that flow's handle and starts
// nothing. Shape errors (amount, addresses, wallet) are detected before any
// network call: the returned handle is already failed and the error wraps
// the matching sentinel.
//
// The flow does not stop when ctx is cancelled; use Handle.Cancel.
func (o *Orchestrator) Submit(ctx context.Context, intent Intent) (*Handle, error) {
	o.mu.Lock()
	if cur := o.current; cur != nil && !cur.State().Phase.IsTerminal() {
		o.mu.Unlock()
		o.logger.Info("deposit already in progress", "flow_id", cur.ID())
		return cur, nil
	}

	flowCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	h := &Handle{
		id:           uuid.NewString(),
		intent:       intent,
		timeout:      o.timeout,
		onTransition: o.onTransition,
		now:          o.now,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	h.logger = o.logger.With("flow_id", h.id)
	h.state = State{
		FlowID:    h.id,
		Phase:     PhaseIdle,
		Intent:    &h.intent,
		UpdatedAt: o.now(),
	}
	o.current = h
	// h is registered before any transition so OnTransition may call Current
	o.mu.Unlock()

	h.logger.Info("deposit submitted",
		"amount", intent.Amount,
		"token", intent.Token.Hex(),
		"vault", intent.Vault.Hex(),
		"chain_id", intent.ChainID,
	)
	h.update(func(s *State) { s.Phase = PhaseValidatingInput })

	required, ferr := o.validate(intent)
	if ferr != nil {
		h.fail(ferr, nil)
		cancel()
		return h, ferr
	}
	h.update(func(s *State) { s.RequiredAmount = required })

	go h.run(flowCtx, o.chains, required)

	return h, nil
}

func (o *Orchestrator) validate(intent Intent) (required *big.Int, ferr *FlowError) {
	switch {
	case intent.ChainID == 0:
		return nil, newFlowError(ReasonInvalidIntent, fmt.Errorf("chain id is required"))
	case intent.Token == (common.Address{}):
		return nil, newFlowError(ReasonInvalidIntent, fmt.Errorf("token address is required"))
	case intent.Vault == (common.Address{}):
		return nil, newFlowError(ReasonInvalidIntent, fmt.Errorf("vault address is required"))
	case intent.Owner == (common.Address{}):
		return nil, newFlowError(ReasonInvalidIntent, fmt.Errorf("owner address is required"))
	}

	required, err := amount.ToBaseUnits(intent.Amount, intent.TokenDecimals)
	if err != nil {
		return nil, newFlowError(ReasonInvalidAmount, err)
	}

	switch wallet.StatusOf(o.wallet) {
	case wallet.StatusAuthenticating:
		return nil, newFlowError(ReasonWalletUnavailable, fmt.Errorf("wallet is still authenticating"))
	case wallet.StatusDisconnected:
		return nil, newFlowError(ReasonWalletUnavailable, wallet.ErrDisconnected)
	}
	active, ok := o.wallet.ActiveAddress()
	if !ok {
		return nil, newFlowError(ReasonWalletUnavailable, wallet.ErrDisconnected)
	}
	if active != intent.Owner {
		return nil, newFlowError(ReasonWalletUnavailable,
			fmt.Errorf("active account %s is not the owner %s", active.Hex(), intent.Owner.Hex()))
	}

	return required, nil
}

// Current returns the most recent flow, or nil if none was submitted
func (o *Orchestrator) Current() *Handle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.current
}

// CurrentState returns the state of the most recent flow, or an idle state
func (o *Orchestrator) CurrentState() State {
	if h := o.Current(); h != nil {
		return h.State()
	}
	return State{Phase: PhaseIdle, UpdatedAt: o.now()}
}

// Cancel cancels the current flow. It reports whether a running flow was
// cancelled.
func (o *Orchestrator) Cancel() bool {
	if h := o.Current(); h != nil {
		return h.Cancel()
	}
	return false
}

// Handle tracks one deposit flow
type Handle struct {
	id           string
	intent       Intent
	logger       *slog.Logger
	timeout      time.Duration
	onTransition func(State)
	now          func() time.Time
	cancel       context.CancelFunc
	done         chan struct{}

	// notifyMu keeps OnTransition calls in transition order
	notifyMu sync.Mutex
	mu       sync.RWMutex
	state    State
	err      error
	client   chain.Client
}

func (h *Handle) ID() string {
	return h.id
}

// Intent returns the submitted intent
func (h *Handle) Intent() Intent {
	return h.intent
}

// State returns a snapshot of the flow
func (h *Handle) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.state.clone()
}

// Err returns the terminal error, or nil while running or after success
func (h *Handle) Err() error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.err
}

// Done is closed when the flow reaches a terminal phase
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Wait blocks until the flow ends or ctx is done
func (h *Handle) Wait(ctx context.Context) (State, error) {
	select {
	case <-h.done:
		return h.State(), h.Err()
	case <-ctx.Done():
		return h.State(), ctx.Err()
	}
}

// Cancel stops tracking the flow and moves it to failed(cancelled). It
// reports whether the flow was still running. Transactions already broadcast
// are not reverted and may still be mined.
func (h *Handle) Cancel() bool {
	changed := h.fail(newFlowError(ReasonCancelled, nil), nil)
	h.cancel()
	if changed {
		h.logger.Info("deposit cancelled")
	}
	return changed
}

// update applies mutate unless the flow is already terminal
func (h *Handle) update(mutate func(s *State)) bool {
	h.notifyMu.Lock()
	defer h.notifyMu.Unlock()

	h.mu.Lock()
	if h.state.Phase.IsTerminal() {
		h.mu.Unlock()
		return false
	}
	prev := h.state.Phase
	mutate(&h.state)
	h.state.UpdatedAt = h.now()
	snapshot := h.state.clone()
	if snapshot.Phase.IsTerminal() {
		close(h.done)
	}
	h.mu.Unlock()

	if snapshot.Phase != prev {
		h.logger.Debug("deposit phase changed", "from", prev, "to", snapshot.Phase)
	}
	if h.onTransition != nil {
		h.onTransition(snapshot)
	}
	return true
}

func (h *Handle) fail(ferr *FlowError, mutate func(s *State)) bool {
	return h.update(func(s *State) {
		if mutate != nil {
			mutate(s)
		}
		s.Phase = PhaseFailed
		s.ErrorReason = ferr.Reason
		s.Error = ferr.Error()
		h.err = ferr
	})
}

func (h *Handle) setPhase(p Phase) bool {
	return h.update(func(s *State) { s.Phase = p })
}

func (h *Handle) setClient(c chain.Client) {
	h.mu.Lock()
	h.client = c
	h.mu.Unlock()
}

func (h *Handle) chainClient() chain.Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.client
}

// ErrNotUncertain is returned by Reconcile for flows whose outcome is known
var ErrNotUncertain = errors.New("flow outcome is not uncertain")

const reconcileTimeout = 15 * time.Second

// Reconcile re-checks the receipt of the last transaction of a flow that
// timed out waiting for confirmation. The phase stays failed; the observed
// outcome is recorded in LateOutcome.
func (h *Handle) Reconcile(ctx context.Context) (chain.ReceiptStatus, error) {
	st := h.State()
	if st.Phase != PhaseFailed || !st.OutcomeUncertain {
		return "", ErrNotUncertain
	}
	hash, ok := st.LastHash()
	client := h.chainClient()
	if !ok || client == nil {
		return "", ErrNotUncertain
	}

	if _, has := ctx.Deadline(); !has {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, reconcileTimeout)
		defer cancel()
	}

	receipt, err := client.WaitForReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: %s still pending", ErrConfirmationTimeout, hash.Hex())
		}
		return "", err
	}

	h.annotate(func(s *State) {
		s.LateOutcome = receipt.Status
		rec := s.Deposit
		if rec == nil {
			rec = s.Approval
		}
		if receipt.Status == chain.ReceiptSuccess {
			rec.Status = TxConfirmed
		} else {
			rec.Status = TxFailed
		}
	})
	h.logger.Info("reconciled uncertain transaction", "tx_hash", hash.Hex(), "status", receipt.Status)

	return receipt.Status, nil
}

// annotate changes a terminal state without changing its phase
func (h *Handle) annotate(mutate func(s *State)) {
	h.notifyMu.Lock()
	defer h.notifyMu.Unlock()

	h.mu.Lock()
	mutate(&h.state)
	h.state.UpdatedAt = h.now()
	snapshot := h.state.clone()
	h.mu.Unlock()

	if h.onTransition != nil {
		h.onTransition(snapshot)
	}
}
