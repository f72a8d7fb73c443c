// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/swapbridge/bridge"
	"github.com/luxfi/swapbridge/contract"
	"github.com/luxfi/swapbridge/ledger"
	"github.com/luxfi/swapbridge/modules"
	"github.com/luxfi/swapbridge/precompileconfig"
	"github.com/luxfi/swapbridge/registry"
)

var _ contract.Configurator = (*configurator)(nil)
var _ contract.StatefulPrecompiledContract = (*RouterContract)(nil)

// ConfigKey is the key used in json config files to specify this precompile config.
const ConfigKey = "routerConfig"

// ContractRouterAddress is where the settlement router is installed (LP-9012).
var ContractRouterAddress = common.HexToAddress(registry.LXRouter)

// RouterPrecompile is the singleton instance
var RouterPrecompile = &RouterContract{
	orchestrator: NewOrchestrator(ContractRouterAddress, ledger.DefaultManager, bridge.DefaultGateway),
}

// Module is the precompile module
var Module = modules.Module{
	ConfigKey:    ConfigKey,
	Address:      ContractRouterAddress,
	Contract:     RouterPrecompile,
	Configurator: &configurator{},
}

// Method selectors
const (
	SelectorInitiate       uint32 = 0x01000000 // initiate(PoolKey,SwapParams,RoutingPreference)
	SelectorRegisterAsset  uint32 = 0x02000000 // registerAssetMapping(address,address)
	SelectorAssetLookup    uint32 = 0x03000000 // assetLookup(address)
	SelectorUnlockCallback uint32 = 0x04000000 // unlockCallback(bytes)
)

// Gas costs
const (
	GasInitiate        = uint64(100000)
	GasRegisterMapping = uint64(20000)
	GasAssetLookup     = uint64(5000)
	GasCallback        = uint64(10000)
)

type configurator struct{}

func init() {
	if err := modules.RegisterModule(Module); err != nil {
		panic(err)
	}
}

func (*configurator) MakeConfig() precompileconfig.Config {
	return new(Config)
}

func (*configurator) Configure(
	chainConfig precompileconfig.ChainConfig,
	cfg precompileconfig.Config,
	state contract.StateDB,
	blockContext contract.ConfigurationBlockContext,
) error {
	config, ok := cfg.(*Config)
	if !ok {
		return fmt.Errorf("expected config type %T, got %T: %v", &Config{}, cfg, cfg)
	}

	if config.Admin != (common.Address{}) {
		RouterPrecompile.orchestrator.Registry().SetAdmin(state, config.Admin)
	}
	if !state.Exist(ContractRouterAddress) {
		state.CreateAccount(ContractRouterAddress)
	}
	return nil
}

// Config implements the precompileconfig.Config interface
type Config struct {
	Upgrade precompileconfig.Upgrade `json:"upgrade,omitempty"`
	Admin   common.Address           `json:"admin,omitempty"`
}

func (c *Config) Key() string {
	return ConfigKey
}

func (c *Config) Timestamp() *uint64 {
	return c.Upgrade.Timestamp()
}

func (c *Config) IsDisabled() bool {
	return c.Upgrade.Disable
}

func (c *Config) Equal(cfg precompileconfig.Config) bool {
	other, ok := cfg.(*Config)
	if !ok {
		return false
	}
	return c.Upgrade.Equal(&other.Upgrade) && c.Admin == other.Admin
}

func (c *Config) Verify(chainConfig precompileconfig.ChainConfig) error {
	return nil
}

// RouterContract implements the settlement router precompile
type RouterContract struct {
	orchestrator *Orchestrator
}

// Orchestrator returns the underlying orchestrator for in-process callers.
func (c *RouterContract) Orchestrator() *Orchestrator {
	return c.orchestrator
}

// Run executes the precompile
func (c *RouterContract) Run(
	accessibleState contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) (ret []byte, remainingGas uint64, err error) {
	// Empty calldata is a plain value transfer (refund deposits land
	// here); accept it without dispatching.
	if len(input) == 0 {
		return nil, suppliedGas, nil
	}
	if len(input) < 4 {
		return nil, suppliedGas, fmt.Errorf("input too short")
	}

	selector := binary.BigEndian.Uint32(input[:4])
	data := input[4:]

	switch selector {
	case SelectorInitiate:
		return c.runInitiate(accessibleState, caller, data, suppliedGas, readOnly)
	case SelectorRegisterAsset:
		return c.runRegisterAsset(accessibleState, caller, data, suppliedGas, readOnly)
	case SelectorAssetLookup:
		return c.runAssetLookup(accessibleState, data, suppliedGas)
	case SelectorUnlockCallback:
		return c.runUnlockCallback(accessibleState, caller, data, suppliedGas, readOnly)
	default:
		return nil, suppliedGas, fmt.Errorf("unknown method selector: %x", selector)
	}
}

func (c *RouterContract) runInitiate(
	state contract.AccessibleState,
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}
	if suppliedGas < GasInitiate {
		return nil, 0, fmt.Errorf("out of gas")
	}

	req, pref, err := DecodeInitiateInput(input)
	if err != nil {
		return nil, suppliedGas - GasInitiate, err
	}

	delta, err := c.orchestrator.Initiate(state.GetStateDB(), caller, req, pref)
	if err != nil {
		return nil, suppliedGas - GasInitiate, err
	}
	return encodeBalanceDelta(delta), suppliedGas - GasInitiate, nil
}

func (c *RouterContract) runRegisterAsset(
	state contract.AccessibleState,
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}
	if suppliedGas < GasRegisterMapping {
		return nil, 0, fmt.Errorf("out of gas")
	}

	// src (32) + dest (32)
	if len(input) < 64 {
		return nil, suppliedGas - GasRegisterMapping, fmt.Errorf("input too short")
	}
	src := common.BytesToAddress(input[12:32])
	dest := common.BytesToAddress(input[44:64])

	if err := c.orchestrator.Registry().Register(state.GetStateDB(), caller, src, dest); err != nil {
		return nil, suppliedGas - GasRegisterMapping, err
	}
	return nil, suppliedGas - GasRegisterMapping, nil
}

func (c *RouterContract) runAssetLookup(
	state contract.AccessibleState,
	input []byte,
	suppliedGas uint64,
) ([]byte, uint64, error) {
	if suppliedGas < GasAssetLookup {
		return nil, 0, fmt.Errorf("out of gas")
	}
	if len(input) < 32 {
		return nil, suppliedGas - GasAssetLookup, fmt.Errorf("input too short")
	}

	src := common.BytesToAddress(input[12:32])
	dest := c.orchestrator.Registry().Lookup(state.GetStateDB(), src)

	result := make([]byte, 32)
	copy(result[12:], dest.Bytes())
	return result, suppliedGas - GasAssetLookup, nil
}

// runUnlockCallback exists only so a stray external call fails loudly:
// the real callback is dispatched in-process by the ledger, and the
// orchestrator rejects any sender that is not the ledger.
func (c *RouterContract) runUnlockCallback(
	state contract.AccessibleState,
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}
	if suppliedGas < GasCallback {
		return nil, 0, fmt.Errorf("out of gas")
	}

	result, err := c.orchestrator.UnlockCallback(state.GetStateDB(), caller, input)
	if err != nil {
		return nil, suppliedGas - GasCallback, err
	}
	return result, suppliedGas - GasCallback, nil
}

// RequiredGas returns the gas required for the precompile input
func (c *RouterContract) RequiredGas(input []byte) uint64 {
	if len(input) < 4 {
		return GasAssetLookup
	}

	selector := binary.BigEndian.Uint32(input[:4])
	switch selector {
	case SelectorInitiate:
		return GasInitiate
	case SelectorRegisterAsset:
		return GasRegisterMapping
	case SelectorAssetLookup:
		return GasAssetLookup
	case SelectorUnlockCallback:
		return GasCallback
	default:
		return GasAssetLookup
	}
}

// DecodeInitiateInput decodes an initiate call.
// Layout: PoolKey (96) + zeroForOne (32) + amountSign (32) + amountMag (32) +
// sqrtPriceLimit (32) + bridgeFlag (32) + recipient (32), then any
// remaining bytes are opaque hook data forwarded to the exchange.
func DecodeInitiateInput(input []byte) (SwapRequest, RoutingPreference, error) {
	if len(input) < 288 {
		return SwapRequest{}, RoutingPreference{}, fmt.Errorf("%w: initiate input length %d", ErrInvalidInput, len(input))
	}

	key, err := ledger.DecodePoolKey(input[:96])
	if err != nil {
		return SwapRequest{}, RoutingPreference{}, err
	}

	amount := new(big.Int).SetBytes(input[160:192])
	if input[159] == 1 {
		amount.Neg(amount)
	}

	req := SwapRequest{
		Key: key,
		Params: ledger.SwapParams{
			ZeroForOne:        input[127] == 1,
			AmountSpecified:   amount,
			SqrtPriceLimitX96: new(big.Int).SetBytes(input[192:224]),
		},
	}
	pref := RoutingPreference{
		BridgeProceeds: input[255] == 1,
		Recipient:      common.BytesToAddress(input[268:288]),
	}
	if len(input) > 288 {
		req.Params.HookData = append([]byte(nil), input[288:]...)
	}
	return req, pref, nil
}

// EncodeInitiateInput encodes an initiate call for DecodeInitiateInput.
func EncodeInitiateInput(req SwapRequest, pref RoutingPreference) []byte {
	out := make([]byte, 288)
	copy(out[0:96], ledger.EncodePoolKey(req.Key))
	if req.Params.ZeroForOne {
		out[127] = 1
	}
	if req.Params.AmountSpecified != nil {
		if req.Params.AmountSpecified.Sign() < 0 {
			out[159] = 1
		}
		mag := new(big.Int).Abs(req.Params.AmountSpecified)
		copy(out[160:192], common.BigToHash(mag).Bytes())
	}
	if req.Params.SqrtPriceLimitX96 != nil {
		copy(out[192:224], common.BigToHash(req.Params.SqrtPriceLimitX96).Bytes())
	}
	if pref.BridgeProceeds {
		out[255] = 1
	}
	copy(out[268:288], pref.Recipient.Bytes())
	return append(out, req.Params.HookData...)
}
