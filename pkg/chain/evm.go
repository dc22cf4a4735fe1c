package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"vault-deposit/pkg/wallet"
)

const (
	DefaultReceiptPollInterval = 2 * time.Second
	defaultGasLimit            = uint64(100000) // Typical ERC20 approve / vault deposit
)

// backend is the part of *ethclient.Client the EVM client uses
type backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	TransactionByHash(ctx context.Context, hash common.Hash) (*types.Transaction, bool, error)
	Close()
}

// EVMOptions configures an EVMClient
type EVMOptions struct {
	Endpoint            string
	ChainID             uint64
	GasLimit            *uint64
	GasPrice            *int64
	ReceiptPollInterval time.Duration
	Logger              *slog.Logger
}

// EVMClient implements Client on top of a JSON-RPC endpoint
type EVMClient struct {
	client  backend
	chainID *big.Int
	signer  wallet.Signer
	opts    EVMOptions
	logger  *slog.Logger
}

var _ Client = (*EVMClient)(nil)

// DialEVM connects to the RPC endpoint and checks it serves the configured chain.
// signer may be nil for read-only use.
func DialEVM(ctx context.Context, opts EVMOptions, signer wallet.Signer) (*EVMClient, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("RPC URL not configured for chain %d", opts.ChainID)
	}

	client, err := ethclient.DialContext(ctx, opts.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC endpoint: %w", err)
	}

	c, err := newEVMClient(ctx, client, opts, signer)
	if err != nil {
		client.Close()
		return nil, err
	}

	return c, nil
}

func newEVMClient(ctx context.Context, client backend, opts EVMOptions, signer wallet.Signer) (*EVMClient, error) {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.ReceiptPollInterval <= 0 {
		opts.ReceiptPollInterval = DefaultReceiptPollInterval
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chainId: %w", err)
	}
	if opts.ChainID != 0 && chainID.Uint64() != opts.ChainID {
		return nil, fmt.Errorf("%w: endpoint serves chain %s, configured %d", ErrWrongChain, chainID, opts.ChainID)
	}

	opts.Logger.Info("Connected to chain", "chainId", chainID)

	return &EVMClient{
		client:  client,
		chainID: chainID,
		signer:  signer,
		opts:    opts,
		logger:  opts.Logger,
	}, nil
}

// ChainID returns the chain id reported by the endpoint
func (c *EVMClient) ChainID() uint64 {
	return c.chainID.Uint64()
}

// ReadContract packs the call, executes it against the latest block and
// unpacks the outputs
func (c *EVMClient) ReadContract(ctx context.Context, address common.Address, contractABI abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s data: %w", method, err)
	}

	msg := ethereum.CallMsg{
		To:   &address,
		Data: data,
	}

	result, err := c.client.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}

	out, err := contractABI.Unpack(method, result)
	if err != nil {
		return nil, fmt.Errorf("failed to unpack %s result: %w", method, err)
	}

	return out, nil
}

// WriteContract builds, signs and broadcasts a contract call
func (c *EVMClient) WriteContract(ctx context.Context, req WriteRequest) (common.Hash, error) {
	if c.signer == nil {
		return common.Hash{}, fmt.Errorf("no signer configured")
	}
	if req.ChainID != c.chainID.Uint64() {
		return common.Hash{}, fmt.Errorf("%w: want %d, connected to %s", ErrWrongChain, req.ChainID, c.chainID)
	}
	from := c.signer.Address()
	if req.Account != from {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrAccountMismatch, req.Account.Hex())
	}

	data, err := req.ABI.Pack(req.Method, req.Args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to pack %s data: %w", req.Method, err)
	}

	nonce, err := c.client.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get nonce: %w", err)
	}

	gasPrice, err := c.getGasPrice(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to get gas price: %w", err)
	}

	gasLimit := c.gasLimit(ctx, from, req.Address, data)

	tx := types.NewTransaction(
		nonce,
		req.Address,
		big.NewInt(0), // No native value for token calls
		gasLimit,
		gasPrice,
		data,
	)

	signedTx, err := c.signer.SignTx(tx, c.chainID)
	if err != nil {
		return common.Hash{}, err
	}

	if err := c.client.SendTransaction(ctx, signedTx); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send transaction: %w", err)
	}

	c.logger.Debug("Transaction sent", "method", req.Method, "to", req.Address.Hex(), "hash", signedTx.Hash().Hex(), "nonce", nonce)

	return signedTx.Hash(), nil
}

// WaitForReceipt polls for the receipt until it appears or ctx is done.
// Transient RPC errors are logged and polling continues.
func (c *EVMClient) WaitForReceipt(ctx context.Context, hash common.Hash) (Receipt, error) {
	ticker := time.NewTicker(c.opts.ReceiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.client.TransactionReceipt(ctx, hash)
		if err == nil {
			return toReceipt(receipt), nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			c.logger.Warn("Receipt lookup failed", "hash", hash.Hex(), "error", err)
		}

		select {
		case <-ctx.Done():
			return Receipt{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

// TransactionInfo describes a transaction for display
type TransactionInfo struct {
	Hash     string   `json:"hash"`
	Nonce    uint64   `json:"nonce"`
	GasPrice string   `json:"gas_price"`
	GasLimit uint64   `json:"gas_limit"`
	To       string   `json:"to"`
	Value    string   `json:"value"`
	Pending  bool     `json:"pending"`
	Receipt  *Receipt `json:"receipt,omitempty"`
}

// GetTransactionInfo retrieves a transaction and, when mined, its receipt
func (c *EVMClient) GetTransactionInfo(ctx context.Context, hash common.Hash) (*TransactionInfo, error) {
	tx, isPending, err := c.client.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	info := &TransactionInfo{
		Hash:     tx.Hash().Hex(),
		Nonce:    tx.Nonce(),
		GasPrice: tx.GasPrice().String(),
		GasLimit: tx.Gas(),
		Value:    tx.Value().String(),
		Pending:  isPending,
	}
	if tx.To() != nil {
		info.To = tx.To().Hex()
	}

	if !isPending {
		receipt, err := c.client.TransactionReceipt(ctx, hash)
		if err != nil {
			return nil, fmt.Errorf("failed to get transaction receipt: %w", err)
		}
		r := toReceipt(receipt)
		info.Receipt = &r
	}

	return info, nil
}

// Close closes the client connection
func (c *EVMClient) Close() {
	if c.client != nil {
		c.client.Close()
	}
}

func (c *EVMClient) getGasPrice(ctx context.Context) (*big.Int, error) {
	if c.opts.GasPrice != nil {
		return big.NewInt(*c.opts.GasPrice), nil
	}
	return c.client.SuggestGasPrice(ctx)
}

func (c *EVMClient) gasLimit(ctx context.Context, from, to common.Address, data []byte) uint64 {
	if c.opts.GasLimit != nil {
		return *c.opts.GasLimit
	}

	msg := ethereum.CallMsg{
		From: from,
		To:   &to,
		Data: data,
	}
	estimated, err := c.client.EstimateGas(ctx, msg)
	if err != nil {
		c.logger.Debug("Gas estimation failed, using default", "error", err)
		return defaultGasLimit
	}

	return estimated * 120 / 100 // Add 20% buffer
}

func toReceipt(r *types.Receipt) Receipt {
	status := ReceiptReverted
	if r.Status == types.ReceiptStatusSuccessful {
		status = ReceiptSuccess
	}

	var block uint64
	if r.BlockNumber != nil {
		block = r.BlockNumber.Uint64()
	}

	return Receipt{
		Hash:        r.TxHash,
		Status:      status,
		BlockNumber: block,
		GasUsed:     r.GasUsed,
	}
}
