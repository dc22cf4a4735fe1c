package wallet

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Status describes the connection state of a wallet
type Status string

const (
	StatusConnected      Status = "connected"
	StatusDisconnected   Status = "disconnected"
	StatusAuthenticating Status = "authenticating"
)

var ErrDisconnected = errors.New("wallet is not connected")

// Connector supplies the active account. Implementations must be safe for
// concurrent use.
type Connector interface {
	ActiveAddress() (common.Address, bool)
	IsConnected() bool
	IsAuthenticating() bool
}

// Signer signs transactions for a single account
type Signer interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// StatusOf reports the Status of any Connector
func StatusOf(c Connector) Status {
	switch {
	case c.IsAuthenticating():
		return StatusAuthenticating
	case c.IsConnected():
		return StatusConnected
	default:
		return StatusDisconnected
	}
}

// KeyWallet is a Connector and Signer backed by a local private key
type KeyWallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address

	mu        sync.RWMutex
	connected bool
}

// NewKeyWallet parses a hex encoded private key (with or without 0x prefix)
func NewKeyWallet(hexKey string) (*KeyWallet, error) {
	if hexKey == "" {
		return nil, fmt.Errorf("private key not configured")
	}

	privateKey, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}

	return FromPrivateKey(privateKey), nil
}

// FromPrivateKey wraps an already parsed key. The wallet starts connected.
func FromPrivateKey(privateKey *ecdsa.PrivateKey) *KeyWallet {
	return &KeyWallet{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		connected:  true,
	}
}

func (w *KeyWallet) Address() common.Address {
	return w.address
}

func (w *KeyWallet) ActiveAddress() (common.Address, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if !w.connected {
		return common.Address{}, false
	}
	return w.address, true
}

func (w *KeyWallet) IsConnected() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.connected
}

// IsAuthenticating is always false: a local key needs no handshake.
func (w *KeyWallet) IsAuthenticating() bool {
	return false
}

// Connect marks the wallet as connected
func (w *KeyWallet) Connect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = true
}

// Disconnect marks the wallet as disconnected; signing is refused until Connect
func (w *KeyWallet) Disconnect() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.connected = false
}

// SignTx signs with the latest signer for chainID
func (w *KeyWallet) SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	if !w.IsConnected() {
		return nil, ErrDisconnected
	}

	signedTx, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), w.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}

	return signedTx, nil
}
