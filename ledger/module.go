// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/swapbridge/contract"
	"github.com/luxfi/swapbridge/modules"
	"github.com/luxfi/swapbridge/precompileconfig"
	"github.com/luxfi/swapbridge/registry"
)

var _ contract.Configurator = (*configurator)(nil)
var _ contract.StatefulPrecompiledContract = (*LedgerContract)(nil)

// ConfigKey is the key used in json config files to specify this precompile config.
const ConfigKey = "ledgerConfig"

// ContractLedgerAddress is where the ledger precompile is installed (LP-9010).
var ContractLedgerAddress = common.HexToAddress(registry.LXLedger)

// DefaultManager is the process-wide ledger the precompile and the
// settlement router share.
var DefaultManager = NewManager(ContractLedgerAddress)

// LedgerPrecompile is the singleton instance
var LedgerPrecompile = &LedgerContract{manager: DefaultManager}

// Module is the precompile module
var Module = modules.Module{
	ConfigKey:    ConfigKey,
	Address:      ContractLedgerAddress,
	Contract:     LedgerPrecompile,
	Configurator: &configurator{},
}

// Method selectors
const (
	SelectorInitializePool uint32 = 0x01000000 // initializePool(PoolKey,uint160,uint128)
	SelectorGetPool        uint32 = 0x02000000 // getPool(PoolKey)
	SelectorExchange       uint32 = 0x03000000 // exchange(PoolKey,SwapParams)
	SelectorSettle         uint32 = 0x04000000 // settle(Currency,uint256)
	SelectorWithdraw       uint32 = 0x05000000 // withdraw(Currency,address,uint256)
)

// Gas costs
const (
	GasPoolCreate    = uint64(50000)
	GasExchange      = uint64(30000)
	GasSettlement    = uint64(20000)
	GasBalanceUpdate = uint64(20000)
	GasPoolLookup    = uint64(5000)
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
	if _, ok := cfg.(*Config); !ok {
		return fmt.Errorf("expected config type %T, got %T: %v", &Config{}, cfg, cfg)
	}
	if !state.Exist(ContractLedgerAddress) {
		state.CreateAccount(ContractLedgerAddress)
	}
	return nil
}

// Config implements the precompileconfig.Config interface
type Config struct {
	Upgrade precompileconfig.Upgrade `json:"upgrade,omitempty"`
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
	return c.Upgrade.Equal(&other.Upgrade)
}

func (c *Config) Verify(chainConfig precompileconfig.ChainConfig) error {
	return nil
}

// LedgerContract implements the ledger precompile
type LedgerContract struct {
	manager *Manager
}

// Manager returns the underlying ledger for in-process callers.
func (c *LedgerContract) Manager() *Manager {
	return c.manager
}

// Run executes the precompile
func (c *LedgerContract) Run(
	accessibleState contract.AccessibleState,
	caller common.Address,
	addr common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) (ret []byte, remainingGas uint64, err error) {
	if len(input) < 4 {
		return nil, suppliedGas, fmt.Errorf("input too short")
	}

	selector := binary.BigEndian.Uint32(input[:4])
	data := input[4:]

	switch selector {
	case SelectorInitializePool:
		return c.runInitializePool(accessibleState, data, suppliedGas, readOnly)
	case SelectorGetPool:
		return c.runGetPool(accessibleState, data, suppliedGas)
	case SelectorExchange, SelectorSettle, SelectorWithdraw:
		// Session operations only make sense inside an unlock callback;
		// external entry goes through the settlement router.
		return nil, suppliedGas, fmt.Errorf("%w: call the router", ErrNoActiveSession)
	default:
		return nil, suppliedGas, fmt.Errorf("unknown method selector: %x", selector)
	}
}

func (c *LedgerContract) runInitializePool(
	state contract.AccessibleState,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}
	if suppliedGas < GasPoolCreate {
		return nil, 0, fmt.Errorf("out of gas")
	}

	// PoolKey (96) + sqrtPriceX96 (32) + liquidity (32)
	if len(input) < 160 {
		return nil, suppliedGas - GasPoolCreate, fmt.Errorf("input too short")
	}

	key, err := DecodePoolKey(input[:96])
	if err != nil {
		return nil, suppliedGas - GasPoolCreate, err
	}
	sqrtPriceX96 := new(big.Int).SetBytes(input[96:128])
	liquidity := new(big.Int).SetBytes(input[128:160])

	if err := c.manager.InitializePool(state.GetStateDB(), key, sqrtPriceX96, liquidity); err != nil {
		return nil, suppliedGas - GasPoolCreate, err
	}

	id := key.ID()
	return id[:], suppliedGas - GasPoolCreate, nil
}

func (c *LedgerContract) runGetPool(
	state contract.AccessibleState,
	input []byte,
	suppliedGas uint64,
) ([]byte, uint64, error) {
	if suppliedGas < GasPoolLookup {
		return nil, 0, fmt.Errorf("out of gas")
	}

	key, err := DecodePoolKey(input)
	if err != nil {
		return nil, suppliedGas - GasPoolLookup, err
	}

	pool, err := c.manager.GetPool(state.GetStateDB(), key)
	if err != nil {
		return nil, suppliedGas - GasPoolLookup, err
	}

	// sqrtPriceX96 (32) + liquidity (32)
	result := make([]byte, 64)
	copy(result[0:32], common.BigToHash(pool.SqrtPriceX96).Bytes())
	copy(result[32:64], common.BigToHash(pool.Liquidity).Bytes())
	return result, suppliedGas - GasPoolLookup, nil
}

// RequiredGas returns the gas required for the precompile input
func (c *LedgerContract) RequiredGas(input []byte) uint64 {
	if len(input) < 4 {
		return GasPoolLookup
	}

	selector := binary.BigEndian.Uint32(input[:4])
	switch selector {
	case SelectorInitializePool:
		return GasPoolCreate
	case SelectorGetPool:
		return GasPoolLookup
	case SelectorExchange:
		return GasExchange
	case SelectorSettle:
		return GasSettlement
	case SelectorWithdraw:
		return GasBalanceUpdate
	default:
		return GasPoolLookup
	}
}

// DecodePoolKey decodes a PoolKey from input bytes.
// Layout: currency0 (32, address right-aligned) + currency1 (32) + fee (32)
func DecodePoolKey(input []byte) (PoolKey, error) {
	if len(input) < 96 {
		return PoolKey{}, fmt.Errorf("input too short for PoolKey")
	}

	key := PoolKey{}
	key.Currency0 = Currency{Address: common.BytesToAddress(input[12:32])}
	key.Currency1 = Currency{Address: common.BytesToAddress(input[44:64])}
	key.Fee = uint24(binary.BigEndian.Uint32(input[92:96]))
	return key, nil
}

// EncodePoolKey encodes a PoolKey to the wire layout DecodePoolKey reads.
func EncodePoolKey(key PoolKey) []byte {
	out := make([]byte, 96)
	copy(out[12:32], key.Currency0.Address.Bytes())
	copy(out[44:64], key.Currency1.Address.Bytes())
	binary.BigEndian.PutUint32(out[92:96], key.Fee)
	return out
}
