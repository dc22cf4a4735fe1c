package chain

import (
	"context"
	"errors"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrWrongChain      = errors.New("transaction targets a different chain")
	ErrAccountMismatch = errors.New("signing account does not match requested account")
	ErrUnknownChain    = errors.New("chain not configured")
)

// ReceiptStatus is the execution outcome of a mined transaction
type ReceiptStatus string

const (
	ReceiptSuccess  ReceiptStatus = "success"
	ReceiptReverted ReceiptStatus = "reverted"
)

// Receipt is the subset of a transaction receipt the deposit flow needs
type Receipt struct {
	Hash        common.Hash   `json:"hash"`
	Status      ReceiptStatus `json:"status"`
	BlockNumber uint64        `json:"block_number"`
	GasUsed     uint64        `json:"gas_used"`
}

// WriteRequest describes a state-changing contract call
type WriteRequest struct {
	Address common.Address
	ABI     abi.ABI
	Method  string
	Args    []interface{}
	ChainID uint64
	Account common.Address
}

// Reader performs read-only contract calls
type Reader interface {
	ReadContract(ctx context.Context, address common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error)
}

// Client is everything the deposit orchestrator needs from a chain
type Client interface {
	Reader

	// WriteContract signs and broadcasts a transaction and returns its hash.
	// It never waits for inclusion.
	WriteContract(ctx context.Context, req WriteRequest) (common.Hash, error)

	// WaitForReceipt blocks until the transaction is mined or ctx is done.
	WaitForReceipt(ctx context.Context, hash common.Hash) (Receipt, error)
}

// Resolver returns the Client for a chain id
type Resolver interface {
	Client(ctx context.Context, chainID uint64) (Client, error)
}

// StaticResolver serves a fixed set of clients
type StaticResolver map[uint64]Client

func (r StaticResolver) Client(_ context.Context, chainID uint64) (Client, error) {
	c, ok := r[chainID]
	if !ok {
		return nil, ErrUnknownChain
	}
	return c, nil
}
