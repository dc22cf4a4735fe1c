package deposit

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"vault-deposit/pkg/chain"
)

// fakeChain is a scripted chain.Client holding one token balance and allowance
type fakeChain struct {
	mu sync.Mutex

	decimals  uint8
	allowance *big.Int
	balance   *big.Int

	// balanceAfterApproval replaces balance once an approval is mined
	balanceAfterApproval *big.Int
	// allowanceAfterApproval overrides the approved amount once mined
	allowanceAfterApproval *big.Int

	approvalStatus chain.ReceiptStatus
	depositStatus  chain.ReceiptStatus
	writeErr       error

	// writeGate, when set, blocks WriteContract until closed
	writeGate chan struct{}
	// hangReceipts makes WaitForReceipt block until its context ends
	hangReceipts bool

	reads  []string
	writes []chain.WriteRequest
	kinds  map[common.Hash]chain.WriteRequest
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		decimals:       6,
		allowance:      big.NewInt(0),
		balance:        big.NewInt(1_000_000_000),
		approvalStatus: chain.ReceiptSuccess,
		depositStatus:  chain.ReceiptSuccess,
		kinds:          make(map[common.Hash]chain.WriteRequest),
	}
}

func (f *fakeChain) ReadContract(_ context.Context, _ common.Address, _ abi.ABI, method string, _ ...interface{}) ([]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads = append(f.reads, method)
	switch method {
	case "decimals":
		return []interface{}{f.decimals}, nil
	case "allowance":
		return []interface{}{new(big.Int).Set(f.allowance)}, nil
	case "balanceOf":
		return []interface{}{new(big.Int).Set(f.balance)}, nil
	}
	return nil, fmt.Errorf("unexpected read %s", method)
}

func (f *fakeChain) WriteContract(ctx context.Context, req chain.WriteRequest) (common.Hash, error) {
	f.mu.Lock()
	gate := f.writeGate
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return common.Hash{}, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.writeErr != nil {
		return common.Hash{}, f.writeErr
	}
	f.writes = append(f.writes, req)
	hash := common.BigToHash(big.NewInt(int64(len(f.writes))))
	f.kinds[hash] = req
	return hash, nil
}

func (f *fakeChain) WaitForReceipt(ctx context.Context, hash common.Hash) (chain.Receipt, error) {
	f.mu.Lock()
	hang := f.hangReceipts
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return chain.Receipt{}, ctx.Err()
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	req, ok := f.kinds[hash]
	if !ok {
		return chain.Receipt{}, fmt.Errorf("unknown transaction %s", hash.Hex())
	}

	status := f.depositStatus
	if req.Method == "approve" {
		status = f.approvalStatus
		if status == chain.ReceiptSuccess {
			f.allowance = new(big.Int).Set(req.Args[1].(*big.Int))
			if f.allowanceAfterApproval != nil {
				f.allowance = f.allowanceAfterApproval
			}
			if f.balanceAfterApproval != nil {
				f.balance = f.balanceAfterApproval
			}
		}
	}
	return chain.Receipt{Hash: hash, Status: status, BlockNumber: 100}, nil
}

func (f *fakeChain) setHang(hang bool) {
	f.mu.Lock()
	f.hangReceipts = hang
	f.mu.Unlock()
}

func (f *fakeChain) writeMethods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	methods := make([]string, 0, len(f.writes))
	for _, w := range f.writes {
		methods = append(methods, w.Method)
	}
	return methods
}

func (f *fakeChain) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reads) + len(f.writes)
}

// fakeWallet is a wallet.Connector with a fixed account
type fakeWallet struct {
	mu             sync.Mutex
	address        common.Address
	connected      bool
	authenticating bool
}

func (w *fakeWallet) ActiveAddress() (common.Address, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.address, w.connected
}

func (w *fakeWallet) IsConnected() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.connected
}

func (w *fakeWallet) IsAuthenticating() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.authenticating
}

// recorder collects OnTransition snapshots
type recorder struct {
	mu     sync.Mutex
	states []State
}

func (r *recorder) record(s State) {
	r.mu.Lock()
	r.states = append(r.states, s)
	r.mu.Unlock()
}

// phases returns the observed phases with consecutive repeats removed
func (r *recorder) phases() []Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Phase
	for _, s := range r.states {
		if len(out) == 0 || out[len(out)-1] != s.Phase {
			out = append(out, s.Phase)
		}
	}
	return out
}
