// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package ledger implements the singleton exchange ledger precompile.
// All pools live in this single contract, enabling flash accounting:
// balance changes during an atomic session are tracked as signed deltas
// and settled as net transfers before the session closes.
package ledger

import (
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"
)

// Pool fee tiers (hundredths of a basis point)
const (
	Fee001 uint24 = 100    // 0.01% - stablecoins
	Fee005 uint24 = 500    // 0.05% - stable pairs
	Fee030 uint24 = 3000   // 0.30% - standard
	Fee100 uint24 = 10000  // 1.00% - exotic pairs
	FeeMax uint24 = 100000 // 10% max fee
)

// FeeDenominator converts a fee tier into a fraction of the input amount.
var FeeDenominator = big.NewInt(1_000_000)

// Currency represents an asset (native or token).
// Address(0) represents the native asset.
type Currency struct {
	Address common.Address
}

// NativeCurrency is the domain's base unit of value (no wrapping needed).
var NativeCurrency = Currency{Address: common.Address{}}

// IsNative returns true if this currency is the native asset
func (c Currency) IsNative() bool {
	return c.Address == common.Address{}
}

// ToBytes serializes currency for storage
func (c Currency) ToBytes() []byte {
	return c.Address.Bytes()
}

// CurrencyFromBytes deserializes currency from storage
func CurrencyFromBytes(data []byte) Currency {
	return Currency{Address: common.BytesToAddress(data)}
}

// PoolKey uniquely identifies a pool.
// Sorted by currency address (currency0 < currency1).
type PoolKey struct {
	Currency0 Currency // Lower address asset
	Currency1 Currency // Higher address asset
	Fee       uint24   // Fee tier
}

// ID computes the unique pool identifier
func (pk PoolKey) ID() [32]byte {
	h := blake3.New()
	h.Write(pk.Currency0.ToBytes())
	h.Write(pk.Currency1.ToBytes())
	h.Write([]byte{byte(pk.Fee >> 16), byte(pk.Fee >> 8), byte(pk.Fee)})

	var id [32]byte
	h.Digest().Read(id[:])
	return id
}

// Other returns the pool's counterpart currency to [c].
func (pk PoolKey) Other(c Currency) Currency {
	if c == pk.Currency0 {
		return pk.Currency1
	}
	return pk.Currency0
}

// SwapParams contains parameters for an exchange.
// AmountSpecified is signed: negative = exact input, positive = exact output.
type SwapParams struct {
	ZeroForOne        bool     // true = sell currency0 for currency1
	AmountSpecified   *big.Int // Negative = exact input, positive = exact output
	SqrtPriceLimitX96 *big.Int // Price bound (sqrt(price) * 2^96), zero = unbounded
	HookData          []byte   // Opaque data forwarded to the exchange engine
}

// BalanceDelta reports the net signed balance changes of an exchange for
// the session account: negative = owed to the ledger, positive = owed to
// the account.
type BalanceDelta struct {
	Amount0 *big.Int // Currency0 delta
	Amount1 *big.Int // Currency1 delta
}

// NewBalanceDelta creates a new balance delta
func NewBalanceDelta(amount0, amount1 *big.Int) BalanceDelta {
	return BalanceDelta{
		Amount0: new(big.Int).Set(amount0),
		Amount1: new(big.Int).Set(amount1),
	}
}

// ZeroBalanceDelta returns a zero balance delta
func ZeroBalanceDelta() BalanceDelta {
	return BalanceDelta{
		Amount0: big.NewInt(0),
		Amount1: big.NewInt(0),
	}
}

// Add combines two balance deltas
func (bd BalanceDelta) Add(other BalanceDelta) BalanceDelta {
	return BalanceDelta{
		Amount0: new(big.Int).Add(bd.Amount0, other.Amount0),
		Amount1: new(big.Int).Add(bd.Amount1, other.Amount1),
	}
}

// Negate inverts the balance delta signs
func (bd BalanceDelta) Negate() BalanceDelta {
	return BalanceDelta{
		Amount0: new(big.Int).Neg(bd.Amount0),
		Amount1: new(big.Int).Neg(bd.Amount1),
	}
}

// IsZero returns true if both amounts are zero
func (bd BalanceDelta) IsZero() bool {
	return bd.Amount0.Sign() == 0 && bd.Amount1.Sign() == 0
}

// Pool represents the state of a liquidity pool
type Pool struct {
	SqrtPriceX96 *big.Int // sqrt(price) * 2^96 (Q64.96)
	Liquidity    *big.Int // Total liquidity (L)
}

// IsInitialized returns true if the pool has been initialized
func (p *Pool) IsInitialized() bool {
	return p.SqrtPriceX96 != nil && p.SqrtPriceX96.Sign() > 0
}

// NewPool creates a new uninitialized pool
func NewPool() *Pool {
	return &Pool{
		SqrtPriceX96: big.NewInt(0),
		Liquidity:    big.NewInt(0),
	}
}

// Errors
var (
	ErrPoolNotInitialized     = errors.New("pool not initialized")
	ErrPoolAlreadyInitialized = errors.New("pool already initialized")
	ErrCurrencyNotSorted      = errors.New("currencies not sorted")
	ErrInvalidFee             = errors.New("invalid fee")
	ErrInvalidSqrtPrice       = errors.New("invalid sqrt price")
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrInsufficientLiquidity  = errors.New("insufficient liquidity")
	ErrPriceLimitReached      = errors.New("price limit reached")
	ErrNoActiveSession        = errors.New("no active session")
	ErrSessionActive          = errors.New("session already active")
	ErrNonZeroDelta           = errors.New("non-zero balance delta after settlement")
	ErrInsufficientBalance    = errors.New("insufficient balance")

	ErrInsufficientTokenBalance = errors.New("insufficient token balance")
	ErrInsufficientAllowance    = errors.New("insufficient token allowance")
)

// Constants for math
var (
	Q96 = new(big.Int).Lsh(big.NewInt(1), 96)
)

// uint24 type alias for fees
type uint24 = uint32
