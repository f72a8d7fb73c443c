// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"math/big"
	"sync"

	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"

	"github.com/luxfi/swapbridge/bridge"
	"github.com/luxfi/swapbridge/contract"
	"github.com/luxfi/swapbridge/ledger"
)

// defaultBridgeMinGas is the destination-side gas floor for proceeds
// relayed through the gateway.
const defaultBridgeMinGas = uint32(100000)

// Ledger is the exchange ledger surface the orchestrator drives.
type Ledger interface {
	Address() common.Address
	Unlock(db contract.StateDB, locker common.Address, u ledger.Unlocker, data []byte) ([]byte, error)
	Swap(db contract.StateDB, key ledger.PoolKey, params ledger.SwapParams) (ledger.BalanceDelta, error)
	NetDelta(currency ledger.Currency) *big.Int
	SettleDebt(db contract.StateDB, currency ledger.Currency, payer common.Address, amount *big.Int) error
	Withdraw(db contract.StateDB, currency ledger.Currency, to common.Address, amount *big.Int) error
}

// Gateway is the deposit gateway surface the orchestrator routes bridged
// proceeds through.
type Gateway interface {
	Address() common.Address
	DepositNative(db contract.StateDB, from, recipient common.Address, amount *big.Int, minGas uint32, extraData []byte) (*bridge.TransferRequest, error)
	DepositToken(db contract.StateDB, localToken, remoteToken, from, recipient common.Address, amount *big.Int, minGas uint32, extraData []byte) (*bridge.TransferRequest, error)
	DropRequest(id [32]byte)
}

var _ ledger.Unlocker = (*Orchestrator)(nil)

// Orchestrator executes settlement requests: it opens a ledger session,
// performs the exchange in the unlock callback, settles the initiator's
// debts, and routes proceeds locally or through the gateway. All state
// changes of a failed request are rolled back.
type Orchestrator struct {
	addr     common.Address
	ledger   Ledger
	gateway  Gateway
	registry *AssetRegistry
	log      log.Logger

	mu      sync.Mutex
	session *sessionContext
	escrows [][32]byte // transfer requests recorded during the session
}

// NewOrchestrator creates an orchestrator anchored at [addr].
func NewOrchestrator(addr common.Address, l Ledger, gw Gateway) *Orchestrator {
	return &Orchestrator{
		addr:     addr,
		ledger:   l,
		gateway:  gw,
		registry: NewAssetRegistry(addr),
		log:      log.NewTestLogger(log.InfoLevel),
	}
}

// Registry returns the orchestrator's asset registry.
func (o *Orchestrator) Registry() *AssetRegistry {
	return o.registry
}

// Address returns the router's address.
func (o *Orchestrator) Address() common.Address {
	return o.addr
}

// Initiate runs one settlement request for [initiator]. On any failure
// the state is reverted to the pre-request snapshot and the error is
// returned; on success the exchange delta is returned and any native
// residue held by the router is refunded to the initiator.
func (o *Orchestrator) Initiate(db contract.StateDB, initiator common.Address, req SwapRequest, pref RoutingPreference) (ledger.BalanceDelta, error) {
	if req.Params.AmountSpecified == nil || req.Params.AmountSpecified.Sign() == 0 {
		return ledger.BalanceDelta{}, ledger.ErrInvalidAmount
	}

	// Reject unbridgeable proceeds before touching any state.
	if pref.BridgeProceeds {
		proceeds := req.ProceedsCurrency()
		if !proceeds.IsNative() && o.registry.Lookup(db, proceeds.Address) == (common.Address{}) {
			return ledger.BalanceDelta{}, ErrAssetNotBridgeable
		}
	}

	if pref.Recipient == (common.Address{}) {
		pref.Recipient = initiator
	}
	ctx := &sessionContext{
		Initiator: initiator,
		Pref:      pref,
		Req:       req,
	}

	o.mu.Lock()
	if o.session != nil {
		o.mu.Unlock()
		return ledger.BalanceDelta{}, ErrSessionBusy
	}
	o.session = ctx
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.session = nil
		o.escrows = nil
		o.mu.Unlock()
	}()

	snapshot := db.Snapshot()
	result, err := o.ledger.Unlock(db, o.addr, o, encodeSessionContext(ctx))
	if err != nil {
		o.abort(db, snapshot, initiator, err)
		return ledger.BalanceDelta{}, err
	}

	delta, err := decodeBalanceDelta(result)
	if err != nil {
		o.abort(db, snapshot, initiator, err)
		return ledger.BalanceDelta{}, err
	}

	o.refundResidue(db, initiator)
	return delta, nil
}

// abort rewinds a failed request. The StateDB revert undoes escrow and
// settlement; any gateway requests recorded during the session are
// dropped as well, so no pending transfer survives without its backing
// escrow.
func (o *Orchestrator) abort(db contract.StateDB, snapshot int, initiator common.Address, err error) {
	db.RevertToSnapshot(snapshot)

	o.mu.Lock()
	escrows := o.escrows
	o.escrows = nil
	o.mu.Unlock()
	for i := len(escrows) - 1; i >= 0; i-- {
		o.gateway.DropRequest(escrows[i])
	}

	o.log.Debug("settlement aborted", "initiator", initiator.Hex(), "err", err)
}

// recordEscrow remembers a gateway request created inside the current
// session so abort can drop it.
func (o *Orchestrator) recordEscrow(id [32]byte) {
	o.mu.Lock()
	o.escrows = append(o.escrows, id)
	o.mu.Unlock()
}

// UnlockCallback is invoked by the ledger inside the session opened by
// Initiate. It runs the exchange and clears every accrued delta: debts
// are settled from the initiator, proceeds are routed per preference.
// Only the ledger may call it, and only while a session is open.
//
// This runs on the Initiate goroutine and must not take o.mu.
func (o *Orchestrator) UnlockCallback(db contract.StateDB, sender common.Address, data []byte) ([]byte, error) {
	o.mu.Lock()
	session := o.session
	o.mu.Unlock()

	if session == nil || sender != o.ledger.Address() {
		return nil, ErrCallerNotAuthorized
	}

	ctx, err := decodeSessionContext(data)
	if err != nil {
		return nil, err
	}

	delta, err := o.ledger.Swap(db, ctx.Req.Key, ctx.Req.Params)
	if err != nil {
		return nil, err
	}

	proceeds := ctx.Req.ProceedsCurrency()
	for _, currency := range []ledger.Currency{ctx.Req.Key.Currency0, ctx.Req.Key.Currency1} {
		net := o.ledger.NetDelta(currency)
		switch {
		case net.Sign() < 0:
			owed := new(big.Int).Neg(net)
			if err := o.ledger.SettleDebt(db, currency, ctx.Initiator, owed); err != nil {
				return nil, err
			}
		case net.Sign() > 0:
			bridgeOut := ctx.Pref.BridgeProceeds && currency == proceeds
			if err := o.take(db, currency, ctx.Pref.Recipient, net, bridgeOut); err != nil {
				return nil, err
			}
		}
	}

	return encodeBalanceDelta(delta), nil
}

// take collects [amount] of [currency] owed by the ledger. A direct
// payout withdraws straight to the recipient; a bridged payout collects
// to the router first and escrows at the gateway.
func (o *Orchestrator) take(db contract.StateDB, currency ledger.Currency, recipient common.Address, amount *big.Int, bridgeOut bool) error {
	if !bridgeOut {
		return o.ledger.Withdraw(db, currency, recipient, amount)
	}

	if err := o.ledger.Withdraw(db, currency, o.addr, amount); err != nil {
		return err
	}

	if currency.IsNative() {
		request, err := o.gateway.DepositNative(db, o.addr, recipient, amount, defaultBridgeMinGas, nil)
		if err != nil {
			return err
		}
		o.recordEscrow(request.ID)
		return nil
	}

	// The mapping was checked at Initiate; re-read it so a same-session
	// removal still aborts the request.
	dest := o.registry.Lookup(db, currency.Address)
	if dest == (common.Address{}) {
		return ErrAssetNotBridgeable
	}
	ledger.TokenApprove(db, currency.Address, o.addr, o.gateway.Address(), amount)
	request, err := o.gateway.DepositToken(db, currency.Address, dest, o.addr, recipient, amount, defaultBridgeMinGas, nil)
	if err != nil {
		return err
	}
	o.recordEscrow(request.ID)
	return nil
}

// refundResidue sweeps any native balance left at the router back to the
// initiator.
func (o *Orchestrator) refundResidue(db contract.StateDB, initiator common.Address) {
	balance := db.GetBalance(o.addr)
	if balance.Sign() > 0 {
		db.SubBalance(o.addr, balance)
		db.AddBalance(initiator, balance)
	}
}
