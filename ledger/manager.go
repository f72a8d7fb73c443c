// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"fmt"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/luxfi/swapbridge/contract"
)

// Storage key prefixes
var (
	poolPricePrefix     = []byte("pool_price")
	poolLiquidityPrefix = []byte("pool_liq")
)

// Unlocker receives control for the duration of an atomic session. The
// callback runs synchronously inside Unlock; every delta it accrues must
// be settled to zero before it returns.
type Unlocker interface {
	UnlockCallback(db contract.StateDB, sender common.Address, data []byte) ([]byte, error)
}

// Manager is the singleton exchange ledger. All pools share its storage,
// and custody of all pooled assets sits at its address. During a session
// it tracks signed per-currency deltas for the session account:
// negative = owed to the ledger, positive = owed to the account.
//
// Pool state lives only in the StateDB so snapshot reverts stay
// authoritative.
type Manager struct {
	mu   sync.RWMutex
	addr common.Address

	// Session state, only valid while unlocked
	unlocked bool
	locker   common.Address
	deltas   map[Currency]*big.Int
}

// NewManager creates a ledger manager anchored at [addr].
func NewManager(addr common.Address) *Manager {
	return &Manager{addr: addr}
}

// Address returns the ledger's custody address.
func (m *Manager) Address() common.Address {
	return m.addr
}

// makeStorageKey generates a storage key from prefix and pool ID
func makeStorageKey(prefix []byte, id [32]byte) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	h.Write(id[:])

	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// InitializePool creates a new pool with the given starting price and
// liquidity. Pool keys must be sorted (currency0 < currency1).
func (m *Manager) InitializePool(db contract.StateDB, key PoolKey, sqrtPriceX96, liquidity *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if key.Currency0.Address.Cmp(key.Currency1.Address) >= 0 {
		return ErrCurrencyNotSorted
	}
	if key.Fee > FeeMax {
		return fmt.Errorf("%w: %d exceeds max %d", ErrInvalidFee, key.Fee, FeeMax)
	}
	if sqrtPriceX96 == nil || sqrtPriceX96.Sign() <= 0 {
		return ErrInvalidSqrtPrice
	}
	if liquidity == nil || liquidity.Sign() <= 0 {
		return ErrInsufficientLiquidity
	}

	id := key.ID()
	pool := m.loadPool(db, id)
	if pool.IsInitialized() {
		return ErrPoolAlreadyInitialized
	}

	pool.SqrtPriceX96 = new(big.Int).Set(sqrtPriceX96)
	pool.Liquidity = new(big.Int).Set(liquidity)
	m.storePool(db, id, pool)
	return nil
}

// GetPool returns a copy of the pool state for [key].
func (m *Manager) GetPool(db contract.StateDB, key PoolKey) (*Pool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pool := m.loadPool(db, key.ID())
	if !pool.IsInitialized() {
		return nil, ErrPoolNotInitialized
	}
	return &Pool{
		SqrtPriceX96: new(big.Int).Set(pool.SqrtPriceX96),
		Liquidity:    new(big.Int).Set(pool.Liquidity),
	}, nil
}

// Unlock opens an atomic session for [locker] and hands control to the
// callback. The callback's accrued deltas must all be settled back to
// zero or the session fails with ErrNonZeroDelta. Reentrant unlock is
// rejected.
func (m *Manager) Unlock(db contract.StateDB, locker common.Address, u Unlocker, data []byte) ([]byte, error) {
	m.mu.Lock()
	if m.unlocked {
		m.mu.Unlock()
		return nil, ErrSessionActive
	}
	m.unlocked = true
	m.locker = locker
	m.deltas = make(map[Currency]*big.Int)
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.unlocked = false
		m.locker = common.Address{}
		m.deltas = nil
		m.mu.Unlock()
	}()

	// Callback runs without the manager lock held: it calls back into
	// Swap/SettleDebt/Withdraw on this same goroutine.
	result, err := u.UnlockCallback(db, m.addr, data)
	if err != nil {
		return nil, err
	}

	if err := m.verifySettlement(); err != nil {
		return nil, err
	}
	return result, nil
}

// Swap executes an exchange against the pool identified by [key] inside
// the active session. AmountSpecified < 0 means exact input, > 0 exact
// output. The returned delta carries the session account's new
// obligations: input currency negative, output currency positive.
func (m *Manager) Swap(db contract.StateDB, key PoolKey, params SwapParams) (BalanceDelta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.unlocked {
		return BalanceDelta{}, ErrNoActiveSession
	}
	if params.AmountSpecified == nil || params.AmountSpecified.Sign() == 0 {
		return BalanceDelta{}, ErrInvalidAmount
	}

	id := key.ID()
	pool := m.loadPool(db, id)
	if !pool.IsInitialized() {
		return BalanceDelta{}, ErrPoolNotInitialized
	}
	if pool.Liquidity.Sign() <= 0 {
		return BalanceDelta{}, ErrInsufficientLiquidity
	}

	amountIn, amountOut, err := computeSwapAmounts(pool.Liquidity, key.Fee, params.AmountSpecified)
	if err != nil {
		return BalanceDelta{}, err
	}

	// Constant-liquidity price update: selling currency0 pushes the price
	// down, selling currency1 pushes it up.
	newSqrtPrice := nextSqrtPrice(pool.SqrtPriceX96, pool.Liquidity, amountIn, params.ZeroForOne)
	if params.SqrtPriceLimitX96 != nil && params.SqrtPriceLimitX96.Sign() > 0 {
		if params.ZeroForOne && newSqrtPrice.Cmp(params.SqrtPriceLimitX96) < 0 {
			return BalanceDelta{}, ErrPriceLimitReached
		}
		if !params.ZeroForOne && newSqrtPrice.Cmp(params.SqrtPriceLimitX96) > 0 {
			return BalanceDelta{}, ErrPriceLimitReached
		}
	}
	pool.SqrtPriceX96 = newSqrtPrice
	m.storePool(db, id, pool)

	delta := ZeroBalanceDelta()
	if params.ZeroForOne {
		delta.Amount0 = new(big.Int).Neg(amountIn)
		delta.Amount1 = new(big.Int).Set(amountOut)
	} else {
		delta.Amount0 = new(big.Int).Set(amountOut)
		delta.Amount1 = new(big.Int).Neg(amountIn)
	}

	m.applyDelta(key.Currency0, delta.Amount0)
	m.applyDelta(key.Currency1, delta.Amount1)
	return delta, nil
}

// computeSwapAmounts derives (amountIn, amountOut) from the signed
// specified amount against a constant-product curve at liquidity L:
// out = L*effIn/(L+effIn), with the fee taken from the input side.
func computeSwapAmounts(liquidity *big.Int, fee uint24, amountSpecified *big.Int) (*big.Int, *big.Int, error) {
	feeBig := big.NewInt(int64(fee))
	feeFactor := new(big.Int).Sub(FeeDenominator, feeBig)

	if amountSpecified.Sign() < 0 {
		// Exact input
		amountIn := new(big.Int).Neg(amountSpecified)
		effIn := new(big.Int).Mul(amountIn, feeFactor)
		effIn.Div(effIn, FeeDenominator)

		num := new(big.Int).Mul(liquidity, effIn)
		den := new(big.Int).Add(liquidity, effIn)
		amountOut := num.Div(num, den)
		return amountIn, amountOut, nil
	}

	// Exact output: invert the curve, then gross the input up for the fee.
	amountOut := new(big.Int).Set(amountSpecified)
	if amountOut.Cmp(liquidity) >= 0 {
		return nil, nil, ErrInsufficientLiquidity
	}
	num := new(big.Int).Mul(liquidity, amountOut)
	den := new(big.Int).Sub(liquidity, amountOut)
	effIn := num.Div(num, den)

	amountIn := new(big.Int).Mul(effIn, FeeDenominator)
	amountIn.Div(amountIn, feeFactor)
	amountIn.Add(amountIn, big.NewInt(1)) // round against the taker
	return amountIn, amountOut, nil
}

// nextSqrtPrice moves sqrtP along the curve for an input of [amountIn]:
// down by L/(L+in) when selling currency0, up by (L+in)/L otherwise.
func nextSqrtPrice(sqrtPriceX96, liquidity, amountIn *big.Int, zeroForOne bool) *big.Int {
	sum := new(big.Int).Add(liquidity, amountIn)
	next := new(big.Int)
	if zeroForOne {
		next.Mul(sqrtPriceX96, liquidity)
		next.Div(next, sum)
	} else {
		next.Mul(sqrtPriceX96, sum)
		next.Div(next, liquidity)
	}
	return next
}

// NetDelta returns the session account's current signed delta in
// [currency]. Zero when no session is active or nothing has accrued.
func (m *Manager) NetDelta(currency Currency) *big.Int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.unlocked {
		return big.NewInt(0)
	}
	if d, ok := m.deltas[currency]; ok {
		return new(big.Int).Set(d)
	}
	return big.NewInt(0)
}

// SettleDebt pays [amount] of [currency] from [payer] into ledger custody
// and credits the session delta by the same amount. Used to clear a
// negative (owed-to-ledger) delta.
func (m *Manager) SettleDebt(db contract.StateDB, currency Currency, payer common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.unlocked {
		return ErrNoActiveSession
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	if currency.IsNative() {
		value, overflow := uint256.FromBig(amount)
		if overflow {
			return ErrInvalidAmount
		}
		if db.GetBalance(payer).Cmp(value) < 0 {
			return ErrInsufficientBalance
		}
		db.SubBalance(payer, value)
		db.AddBalance(m.addr, value)
	} else {
		if err := TokenTransfer(db, currency.Address, payer, m.addr, amount); err != nil {
			return err
		}
	}

	m.applyDelta(currency, amount)
	return nil
}

// Withdraw pays [amount] of [currency] from ledger custody to [to] and
// debits the session delta by the same amount. Used to collect a
// positive (owed-to-account) delta.
func (m *Manager) Withdraw(db contract.StateDB, currency Currency, to common.Address, amount *big.Int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.unlocked {
		return ErrNoActiveSession
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}

	if currency.IsNative() {
		value, overflow := uint256.FromBig(amount)
		if overflow {
			return ErrInvalidAmount
		}
		if db.GetBalance(m.addr).Cmp(value) < 0 {
			return ErrInsufficientBalance
		}
		db.SubBalance(m.addr, value)
		db.AddBalance(to, value)
	} else {
		if err := TokenTransfer(db, currency.Address, m.addr, to, amount); err != nil {
			return err
		}
	}

	m.applyDelta(currency, new(big.Int).Neg(amount))
	return nil
}

// applyDelta accumulates a signed change into the session delta map.
// Caller must hold m.mu.
func (m *Manager) applyDelta(currency Currency, change *big.Int) {
	d, ok := m.deltas[currency]
	if !ok {
		d = big.NewInt(0)
		m.deltas[currency] = d
	}
	d.Add(d, change)
}

// verifySettlement checks every session delta is zero.
func (m *Manager) verifySettlement() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for currency, d := range m.deltas {
		if d.Sign() != 0 {
			return fmt.Errorf("%w: currency %s delta %s", ErrNonZeroDelta, currency.Address.Hex(), d.String())
		}
	}
	return nil
}

// loadPool reads pool state from the StateDB.
func (m *Manager) loadPool(db contract.StateDB, id [32]byte) *Pool {
	pool := NewPool()
	priceHash := db.GetState(m.addr, makeStorageKey(poolPricePrefix, id))
	liqHash := db.GetState(m.addr, makeStorageKey(poolLiquidityPrefix, id))
	if priceHash != (common.Hash{}) {
		pool.SqrtPriceX96 = new(big.Int).SetBytes(priceHash[:])
		pool.Liquidity = new(big.Int).SetBytes(liqHash[:])
	}
	return pool
}

// storePool persists pool state.
func (m *Manager) storePool(db contract.StateDB, id [32]byte, pool *Pool) {
	db.SetState(m.addr, makeStorageKey(poolPricePrefix, id), common.BigToHash(pool.SqrtPriceX96))
	db.SetState(m.addr, makeStorageKey(poolLiquidityPrefix, id), common.BigToHash(pool.Liquidity))
}
