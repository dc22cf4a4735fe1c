package chain

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"vault-deposit/pkg/wallet"
)

// Pool lazily dials one EVMClient per configured chain
type Pool struct {
	mu       sync.Mutex
	networks map[uint64]EVMOptions
	clients  map[uint64]*EVMClient
	signer   wallet.Signer
	logger   *slog.Logger
}

var _ Resolver = (*Pool)(nil)

// NewPool creates a pool over the given networks. Options without a chain id
// are skipped since they could never be resolved.
func NewPool(networks []EVMOptions, signer wallet.Signer, logger *slog.Logger) *Pool {
	if logger == nil {
		logger = slog.Default()
	}

	byChain := make(map[uint64]EVMOptions, len(networks))
	for _, n := range networks {
		if n.ChainID == 0 {
			logger.Warn("Skipping network without chain id", "endpoint", n.Endpoint)
			continue
		}
		if n.Logger == nil {
			n.Logger = logger.With("chainId", n.ChainID)
		}
		byChain[n.ChainID] = n
	}

	return &Pool{
		networks: byChain,
		clients:  make(map[uint64]*EVMClient),
		signer:   signer,
		logger:   logger,
	}
}

// Client implements Resolver
func (p *Pool) Client(ctx context.Context, chainID uint64) (Client, error) {
	c, err := p.EVM(ctx, chainID)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// EVM returns the concrete client for chainID, dialing on first use
func (p *Pool) EVM(ctx context.Context, chainID uint64) (*EVMClient, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.clients[chainID]; ok {
		return c, nil
	}

	opts, ok := p.networks[chainID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownChain, chainID)
	}

	c, err := DialEVM(ctx, opts, p.signer)
	if err != nil {
		return nil, err
	}

	p.clients[chainID] = c
	return c, nil
}

// Close closes every dialed client
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, c := range p.clients {
		c.Close()
		delete(p.clients, id)
	}
}
