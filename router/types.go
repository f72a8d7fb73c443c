// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package router implements the settlement router precompile. It opens
// an atomic ledger session per exchange, settles the initiator's debts,
// and routes proceeds either to a local recipient or through the
// deposit gateway to the destination domain.
package router

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/swapbridge/ledger"
)

// Router errors
var (
	ErrAssetNotBridgeable  = errors.New("asset has no destination mapping")
	ErrCallerNotAuthorized = errors.New("caller not authorized for callback")
	ErrUnauthorized        = errors.New("caller is not the registry admin")
	ErrSessionBusy         = errors.New("settlement session in progress")
	ErrInvalidInput        = errors.New("invalid input")
)

// RoutingPreference selects where exchange proceeds go.
type RoutingPreference struct {
	// BridgeProceeds routes the output through the deposit gateway to
	// the destination domain instead of paying out locally.
	BridgeProceeds bool
	// Recipient receives the proceeds. Zero means the initiator.
	Recipient common.Address
}

// SwapRequest is the exchange half of a settlement request.
type SwapRequest struct {
	Key    ledger.PoolKey
	Params ledger.SwapParams
}

// ProceedsCurrency returns the output side of the exchange.
func (r SwapRequest) ProceedsCurrency() ledger.Currency {
	if r.Params.ZeroForOne {
		return r.Key.Currency1
	}
	return r.Key.Currency0
}

// InputCurrency returns the input side of the exchange.
func (r SwapRequest) InputCurrency() ledger.Currency {
	if r.Params.ZeroForOne {
		return r.Key.Currency0
	}
	return r.Key.Currency1
}

// sessionContext carries a settlement request through the unlock
// callback.
type sessionContext struct {
	Initiator common.Address
	Pref      RoutingPreference
	Req       SwapRequest
}

// Fixed wire layout for sessionContext, followed by variable-length
// hook data:
//   initiator (20) | bridgeFlag (1) | recipient (20) |
//   currency0 (20) | currency1 (20) | fee (3) |
//   zeroForOne (1) | amountSign (1) | amountMag (32) | sqrtPriceLimit (32)
const sessionContextLen = 150

func encodeSessionContext(ctx *sessionContext) []byte {
	out := make([]byte, sessionContextLen, sessionContextLen+len(ctx.Req.Params.HookData))
	copy(out[0:20], ctx.Initiator.Bytes())
	if ctx.Pref.BridgeProceeds {
		out[20] = 1
	}
	copy(out[21:41], ctx.Pref.Recipient.Bytes())
	copy(out[41:61], ctx.Req.Key.Currency0.Address.Bytes())
	copy(out[61:81], ctx.Req.Key.Currency1.Address.Bytes())
	out[81] = byte(ctx.Req.Key.Fee >> 16)
	out[82] = byte(ctx.Req.Key.Fee >> 8)
	out[83] = byte(ctx.Req.Key.Fee)
	if ctx.Req.Params.ZeroForOne {
		out[84] = 1
	}
	copy(out[85:118], encodeSignedAmount(ctx.Req.Params.AmountSpecified))
	limit := ctx.Req.Params.SqrtPriceLimitX96
	if limit == nil {
		limit = big.NewInt(0)
	}
	copy(out[118:150], common.BigToHash(limit).Bytes())
	return append(out, ctx.Req.Params.HookData...)
}

func decodeSessionContext(data []byte) (*sessionContext, error) {
	if len(data) < sessionContextLen {
		return nil, fmt.Errorf("%w: context length %d", ErrInvalidInput, len(data))
	}

	ctx := &sessionContext{
		Initiator: common.BytesToAddress(data[0:20]),
		Pref: RoutingPreference{
			BridgeProceeds: data[20] == 1,
			Recipient:      common.BytesToAddress(data[21:41]),
		},
		Req: SwapRequest{
			Key: ledger.PoolKey{
				Currency0: ledger.Currency{Address: common.BytesToAddress(data[41:61])},
				Currency1: ledger.Currency{Address: common.BytesToAddress(data[61:81])},
				Fee:       uint32(data[81])<<16 | uint32(data[82])<<8 | uint32(data[83]),
			},
			Params: ledger.SwapParams{
				ZeroForOne:        data[84] == 1,
				AmountSpecified:   decodeSignedAmount(data[85:118]),
				SqrtPriceLimitX96: new(big.Int).SetBytes(data[118:150]),
			},
		},
	}
	if len(data) > sessionContextLen {
		ctx.Req.Params.HookData = append([]byte(nil), data[sessionContextLen:]...)
	}
	return ctx, nil
}

// Signed amounts travel as a sign byte plus a 32-byte magnitude.
func encodeSignedAmount(v *big.Int) []byte {
	out := make([]byte, 33)
	if v == nil {
		return out
	}
	if v.Sign() < 0 {
		out[0] = 1
	}
	mag := new(big.Int).Abs(v)
	copy(out[1:33], common.BigToHash(mag).Bytes())
	return out
}

func decodeSignedAmount(data []byte) *big.Int {
	v := new(big.Int).SetBytes(data[1:33])
	if data[0] == 1 {
		v.Neg(v)
	}
	return v
}

// balanceDeltaLen is two signed amounts.
const balanceDeltaLen = 66

func encodeBalanceDelta(delta ledger.BalanceDelta) []byte {
	out := make([]byte, 0, balanceDeltaLen)
	out = append(out, encodeSignedAmount(delta.Amount0)...)
	out = append(out, encodeSignedAmount(delta.Amount1)...)
	return out
}

func decodeBalanceDelta(data []byte) (ledger.BalanceDelta, error) {
	if len(data) != balanceDeltaLen {
		return ledger.BalanceDelta{}, fmt.Errorf("%w: delta length %d", ErrInvalidInput, len(data))
	}
	return ledger.BalanceDelta{
		Amount0: decodeSignedAmount(data[0:33]),
		Amount1: decodeSignedAmount(data[33:66]),
	}, nil
}
