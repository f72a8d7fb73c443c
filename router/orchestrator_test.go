// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"math/big"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/swapbridge/bridge"
	"github.com/luxfi/swapbridge/ledger"
)

var (
	hLedgerAddr     = common.HexToAddress("0x0000000000000000000000000000000000009010")
	hGatewayAddr    = common.HexToAddress("0x0000000000000000000000000000000000006010")
	initiatorAddr   = common.HexToAddress("0x5000000000000000000000000000000000000005")
	localRecipient  = common.HexToAddress("0x6000000000000000000000000000000000000006")
	remoteRecipient = common.HexToAddress("0x7000000000000000000000000000000000000007")
	poolToken       = common.HexToAddress("0xaaaa0000000000000000000000000000000000aa")
	remoteAsset     = common.HexToAddress("0xbbbb0000000000000000000000000000000000bb")
)

type harness struct {
	db      *mockStateDB
	manager *ledger.Manager
	gateway *bridge.Gateway
	orch    *Orchestrator
}

// newHarness wires a fresh ledger, gateway and orchestrator over one
// mock StateDB, with a zero-fee native/token pool at price 1 and
// liquidity 1000, funded custody, and a funded initiator.
func newHarness(t *testing.T) *harness {
	t.Helper()

	db := newMockStateDB()
	manager := ledger.NewManager(hLedgerAddr)
	gateway := bridge.NewGateway(hGatewayAddr, bridge.ChainEthereum)
	orch := NewOrchestrator(testRouterAddr, manager, gateway)

	h := &harness{db: db, manager: manager, gateway: gateway, orch: orch}
	require.NoError(t, manager.InitializePool(db, h.poolKey(), new(big.Int).Set(ledger.Q96), big.NewInt(1000)))

	db.setNativeBalance(hLedgerAddr, big.NewInt(10000))
	ledger.TokenMint(db, poolToken, hLedgerAddr, big.NewInt(10000))

	db.setNativeBalance(initiatorAddr, big.NewInt(1000))
	ledger.TokenMint(db, poolToken, initiatorAddr, big.NewInt(1000))
	return h
}

func (h *harness) poolKey() ledger.PoolKey {
	return ledger.PoolKey{
		Currency0: ledger.NativeCurrency,
		Currency1: ledger.Currency{Address: poolToken},
		Fee:       0,
	}
}

// exactInputRequest sells 100 of the input side at zero fee: output 90.
func (h *harness) exactInputRequest(zeroForOne bool) SwapRequest {
	return SwapRequest{
		Key: h.poolKey(),
		Params: ledger.SwapParams{
			ZeroForOne:      zeroForOne,
			AmountSpecified: big.NewInt(-100),
		},
	}
}

func (h *harness) enableTokenBridging(t *testing.T) {
	t.Helper()
	h.orch.Registry().SetAdmin(h.db, adminAddr)
	require.NoError(t, h.orch.Registry().Register(h.db, adminAddr, poolToken, remoteAsset))
	require.NoError(t, h.gateway.RegisterToken(poolToken, remoteAsset, 18, "TKN", "Pool Token", big.NewInt(1), nil))
}

func (h *harness) singleRequest(t *testing.T) *bridge.TransferRequest {
	t.Helper()
	require.Len(t, h.gateway.Requests, 1)
	for _, request := range h.gateway.Requests {
		return request
	}
	return nil
}

func TestExchangeDirectPayout(t *testing.T) {
	h := newHarness(t)

	delta, err := h.orch.Initiate(h.db, initiatorAddr, h.exactInputRequest(true), RoutingPreference{})
	require.NoError(t, err)
	require.Equal(t, 0, delta.Amount0.Cmp(big.NewInt(-100)))
	require.Equal(t, 0, delta.Amount1.Cmp(big.NewInt(90)))

	// Initiator paid 100 native, received 90 token; custody mirrors it.
	require.Equal(t, 0, h.db.nativeBalance(initiatorAddr).Cmp(big.NewInt(900)))
	require.Equal(t, 0, ledger.TokenBalanceOf(h.db, poolToken, initiatorAddr).Cmp(big.NewInt(1090)))
	require.Equal(t, 0, h.db.nativeBalance(hLedgerAddr).Cmp(big.NewInt(10100)))
	require.Equal(t, 0, ledger.TokenBalanceOf(h.db, poolToken, hLedgerAddr).Cmp(big.NewInt(9910)))

	// The router retains nothing.
	require.Equal(t, 0, h.db.nativeBalance(testRouterAddr).Sign())
	require.Equal(t, 0, ledger.TokenBalanceOf(h.db, poolToken, testRouterAddr).Sign())
}

func TestExchangeProceedsToThirdParty(t *testing.T) {
	h := newHarness(t)

	_, err := h.orch.Initiate(h.db, initiatorAddr, h.exactInputRequest(true), RoutingPreference{Recipient: localRecipient})
	require.NoError(t, err)

	// Debt comes from the initiator, proceeds go to the named recipient.
	require.Equal(t, 0, h.db.nativeBalance(initiatorAddr).Cmp(big.NewInt(900)))
	require.Equal(t, 0, ledger.TokenBalanceOf(h.db, poolToken, initiatorAddr).Cmp(big.NewInt(1000)))
	require.Equal(t, 0, ledger.TokenBalanceOf(h.db, poolToken, localRecipient).Cmp(big.NewInt(90)))
}

func TestExchangeExactOutput(t *testing.T) {
	h := newHarness(t)

	req := SwapRequest{
		Key: h.poolKey(),
		Params: ledger.SwapParams{
			ZeroForOne:      true,
			AmountSpecified: big.NewInt(90), // exact output
		},
	}
	delta, err := h.orch.Initiate(h.db, initiatorAddr, req, RoutingPreference{})
	require.NoError(t, err)

	// Zero-fee inverse: in = floor(1000*90/910) + 1 = 99
	require.Equal(t, 0, delta.Amount0.Cmp(big.NewInt(-99)))
	require.Equal(t, 0, delta.Amount1.Cmp(big.NewInt(90)))
	require.Equal(t, 0, h.db.nativeBalance(initiatorAddr).Cmp(big.NewInt(901)))
	require.Equal(t, 0, ledger.TokenBalanceOf(h.db, poolToken, initiatorAddr).Cmp(big.NewInt(1090)))
}

func TestExchangeBridgedTokenProceeds(t *testing.T) {
	h := newHarness(t)
	h.enableTokenBridging(t)

	_, err := h.orch.Initiate(h.db, initiatorAddr, h.exactInputRequest(true), RoutingPreference{
		BridgeProceeds: true,
		Recipient:      remoteRecipient,
	})
	require.NoError(t, err)

	// Proceeds escrowed at the gateway, not paid locally.
	require.Equal(t, 0, ledger.TokenBalanceOf(h.db, poolToken, hGatewayAddr).Cmp(big.NewInt(90)))
	require.Equal(t, 0, ledger.TokenBalanceOf(h.db, poolToken, initiatorAddr).Cmp(big.NewInt(1000)))
	require.Equal(t, 0, ledger.TokenBalanceOf(h.db, poolToken, testRouterAddr).Sign())

	// The router's approval to the gateway is fully consumed.
	require.Equal(t, 0, ledger.TokenAllowance(h.db, poolToken, testRouterAddr, hGatewayAddr).Sign())

	request := h.singleRequest(t)
	require.Equal(t, testRouterAddr, request.Sender)
	require.Equal(t, remoteRecipient, request.Recipient)
	require.Equal(t, poolToken, request.LocalToken)
	require.Equal(t, remoteAsset, request.RemoteToken)
	require.Equal(t, 0, request.Amount.Cmp(big.NewInt(90)))
	require.Equal(t, bridge.StatusPending, request.Status)
}

func TestExchangeBridgedNativeProceeds(t *testing.T) {
	h := newHarness(t)

	// Token in, native out: the native asset bridges without a mapping.
	_, err := h.orch.Initiate(h.db, initiatorAddr, h.exactInputRequest(false), RoutingPreference{
		BridgeProceeds: true,
		Recipient:      remoteRecipient,
	})
	require.NoError(t, err)

	require.Equal(t, 0, ledger.TokenBalanceOf(h.db, poolToken, initiatorAddr).Cmp(big.NewInt(900)))
	require.Equal(t, 0, ledger.TokenBalanceOf(h.db, poolToken, hLedgerAddr).Cmp(big.NewInt(10100)))
	require.Equal(t, 0, h.db.nativeBalance(hLedgerAddr).Cmp(big.NewInt(9910)))
	require.Equal(t, 0, h.db.nativeBalance(hGatewayAddr).Cmp(big.NewInt(90)))
	require.Equal(t, 0, h.db.nativeBalance(testRouterAddr).Sign())

	request := h.singleRequest(t)
	require.Equal(t, common.Address{}, request.LocalToken)
	require.Equal(t, 0, request.Amount.Cmp(big.NewInt(90)))
}

func TestBridgeRequestFailsFastForUnmappedAsset(t *testing.T) {
	h := newHarness(t)

	// Token proceeds with no destination mapping: rejected before any
	// state is touched.
	_, err := h.orch.Initiate(h.db, initiatorAddr, h.exactInputRequest(true), RoutingPreference{
		BridgeProceeds: true,
	})
	require.ErrorIs(t, err, ErrAssetNotBridgeable)

	require.Equal(t, 0, h.db.nativeBalance(initiatorAddr).Cmp(big.NewInt(1000)))
	require.Equal(t, 0, ledger.TokenBalanceOf(h.db, poolToken, initiatorAddr).Cmp(big.NewInt(1000)))
	require.Len(t, h.gateway.Requests, 0)
}

func TestFailedExchangeRollsBack(t *testing.T) {
	h := newHarness(t)
	h.db.setNativeBalance(initiatorAddr, big.NewInt(10))

	_, err := h.orch.Initiate(h.db, initiatorAddr, h.exactInputRequest(true), RoutingPreference{})
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	// Everything back to the pre-request state, including the pool price.
	require.Equal(t, 0, h.db.nativeBalance(initiatorAddr).Cmp(big.NewInt(10)))
	require.Equal(t, 0, h.db.nativeBalance(hLedgerAddr).Cmp(big.NewInt(10000)))
	require.Equal(t, 0, ledger.TokenBalanceOf(h.db, poolToken, hLedgerAddr).Cmp(big.NewInt(10000)))

	pool, err := h.manager.GetPool(h.db, h.poolKey())
	require.NoError(t, err)
	require.Equal(t, 0, pool.SqrtPriceX96.Cmp(ledger.Q96))

	// The orchestrator is reusable after a failure.
	h.db.setNativeBalance(initiatorAddr, big.NewInt(1000))
	_, err = h.orch.Initiate(h.db, initiatorAddr, h.exactInputRequest(true), RoutingPreference{})
	require.NoError(t, err)
}

func TestAbortedExchangeLeavesNoGatewayRequest(t *testing.T) {
	h := newHarness(t)

	// Token in, native out, bridged: the native leg deposits at the
	// gateway before the token debt is settled. Selling more tokens than
	// the initiator holds fails that settlement, so the whole request
	// must unwind, including the already-recorded transfer request.
	req := SwapRequest{
		Key: h.poolKey(),
		Params: ledger.SwapParams{
			ZeroForOne:      false,
			AmountSpecified: big.NewInt(-2000),
		},
	}
	_, err := h.orch.Initiate(h.db, initiatorAddr, req, RoutingPreference{
		BridgeProceeds: true,
		Recipient:      remoteRecipient,
	})
	require.ErrorIs(t, err, ledger.ErrInsufficientTokenBalance)

	// No pending transfer survives the abort, and the nonce slot is free.
	require.Len(t, h.gateway.Requests, 0)
	require.Equal(t, uint64(0), h.gateway.Nonces[testRouterAddr])

	// No escrow either: every balance is back at its pre-request value.
	require.Equal(t, 0, h.db.nativeBalance(hGatewayAddr).Sign())
	require.Equal(t, 0, h.db.nativeBalance(hLedgerAddr).Cmp(big.NewInt(10000)))
	require.Equal(t, 0, ledger.TokenBalanceOf(h.db, poolToken, initiatorAddr).Cmp(big.NewInt(1000)))

	// The next successful bridged request starts from nonce 0.
	_, err = h.orch.Initiate(h.db, initiatorAddr, h.exactInputRequest(false), RoutingPreference{
		BridgeProceeds: true,
		Recipient:      remoteRecipient,
	})
	require.NoError(t, err)
	require.Equal(t, uint64(0), h.singleRequest(t).Nonce)
}

func TestResidueRefundedToInitiator(t *testing.T) {
	h := newHarness(t)
	h.db.setNativeBalance(testRouterAddr, big.NewInt(7))

	_, err := h.orch.Initiate(h.db, initiatorAddr, h.exactInputRequest(true), RoutingPreference{})
	require.NoError(t, err)

	// Pre-existing router dust is swept to the initiator.
	require.Equal(t, 0, h.db.nativeBalance(initiatorAddr).Cmp(big.NewInt(907)))
	require.Equal(t, 0, h.db.nativeBalance(testRouterAddr).Sign())
}

func TestDirectCallbackRejected(t *testing.T) {
	h := newHarness(t)

	ctx := &sessionContext{
		Initiator: initiatorAddr,
		Req:       h.exactInputRequest(true),
	}

	// No session open: even the ledger's address is refused.
	_, err := h.orch.UnlockCallback(h.db, hLedgerAddr, encodeSessionContext(ctx))
	require.ErrorIs(t, err, ErrCallerNotAuthorized)

	_, err = h.orch.UnlockCallback(h.db, strangerAddr, encodeSessionContext(ctx))
	require.ErrorIs(t, err, ErrCallerNotAuthorized)
}

func TestInitiateRejectsZeroAmount(t *testing.T) {
	h := newHarness(t)

	req := SwapRequest{
		Key:    h.poolKey(),
		Params: ledger.SwapParams{ZeroForOne: true, AmountSpecified: big.NewInt(0)},
	}
	_, err := h.orch.Initiate(h.db, initiatorAddr, req, RoutingPreference{})
	require.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestSessionContextRoundTrip(t *testing.T) {
	ctx := &sessionContext{
		Initiator: initiatorAddr,
		Pref: RoutingPreference{
			BridgeProceeds: true,
			Recipient:      remoteRecipient,
		},
		Req: SwapRequest{
			Key: ledger.PoolKey{
				Currency0: ledger.NativeCurrency,
				Currency1: ledger.Currency{Address: poolToken},
				Fee:       ledger.Fee030,
			},
			Params: ledger.SwapParams{
				ZeroForOne:        true,
				AmountSpecified:   big.NewInt(-12345),
				SqrtPriceLimitX96: new(big.Int).Set(ledger.Q96),
				HookData:          []byte("aux"),
			},
		},
	}

	decoded, err := decodeSessionContext(encodeSessionContext(ctx))
	require.NoError(t, err)
	require.Equal(t, ctx.Initiator, decoded.Initiator)
	require.Equal(t, ctx.Pref, decoded.Pref)
	require.Equal(t, ctx.Req.Key, decoded.Req.Key)
	require.Equal(t, ctx.Req.Params.ZeroForOne, decoded.Req.Params.ZeroForOne)
	require.Equal(t, 0, decoded.Req.Params.AmountSpecified.Cmp(big.NewInt(-12345)))
	require.Equal(t, 0, decoded.Req.Params.SqrtPriceLimitX96.Cmp(ledger.Q96))
	require.Equal(t, []byte("aux"), decoded.Req.Params.HookData)

	_, err = decodeSessionContext([]byte("short"))
	require.ErrorIs(t, err, ErrInvalidInput)
}
