// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/swapbridge/contract"
	"github.com/luxfi/swapbridge/modules"
	"github.com/luxfi/swapbridge/precompileconfig"
)

var _ contract.Configurator = (*configurator)(nil)
var _ contract.StatefulPrecompiledContract = (*GatewayContract)(nil)

// ConfigKey is the key used in json config files to specify this precompile config.
const ConfigKey = "bridgeGatewayConfig"

// GatewayPrecompile is the singleton instance
var GatewayPrecompile = &GatewayContract{gateway: DefaultGateway}

// Module is the precompile module
var Module = modules.Module{
	ConfigKey:    ConfigKey,
	Address:      common.HexToAddress(GatewayAddress),
	Contract:     GatewayPrecompile,
	Configurator: &configurator{},
}

// Method selectors
const (
	SelectorDepositNative    uint32 = 0x01000000 // depositNative(address,uint256,uint32,bytes)
	SelectorDepositToken     uint32 = 0x02000000 // depositToken(address,address,address,uint256,uint32,bytes)
	SelectorRegisterToken    uint32 = 0x03000000 // registerToken(address,address,uint8,uint256,uint256)
	SelectorCompleteTransfer uint32 = 0x04000000 // completeTransfer(bytes32,bytes[])
	SelectorGetRequest       uint32 = 0x05000000 // getRequest(bytes32)
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
		GatewayPrecompile.admin = config.Admin
	}
	if !state.Exist(Module.Address) {
		state.CreateAccount(Module.Address)
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

// GatewayContract implements the deposit gateway precompile
type GatewayContract struct {
	gateway *Gateway
	admin   common.Address
}

// Gateway returns the underlying gateway for in-process callers.
func (c *GatewayContract) Gateway() *Gateway {
	return c.gateway
}

// Run executes the precompile
func (c *GatewayContract) Run(
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
	case SelectorDepositNative:
		return c.runDepositNative(accessibleState, caller, data, suppliedGas, readOnly)
	case SelectorDepositToken:
		return c.runDepositToken(accessibleState, caller, data, suppliedGas, readOnly)
	case SelectorRegisterToken:
		return c.runRegisterToken(caller, data, suppliedGas, readOnly)
	case SelectorCompleteTransfer:
		return c.runCompleteTransfer(accessibleState, data, suppliedGas, readOnly)
	case SelectorGetRequest:
		return c.runGetRequest(data, suppliedGas)
	default:
		return nil, suppliedGas, fmt.Errorf("unknown method selector: %x", selector)
	}
}

func (c *GatewayContract) runDepositNative(
	state contract.AccessibleState,
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}
	if suppliedGas < GasDepositNative {
		return nil, 0, fmt.Errorf("out of gas")
	}

	// recipient (32) + amount (32) + minGas (32) + extraData
	if len(input) < 96 {
		return nil, suppliedGas - GasDepositNative, fmt.Errorf("input too short")
	}

	recipient := common.BytesToAddress(input[12:32])
	amount := new(big.Int).SetBytes(input[32:64])
	minGas := binary.BigEndian.Uint32(input[92:96])
	extraData := input[96:]

	request, err := c.gateway.DepositNative(state.GetStateDB(), caller, recipient, amount, minGas, extraData)
	if err != nil {
		return nil, suppliedGas - GasDepositNative, err
	}
	return request.ID[:], suppliedGas - GasDepositNative, nil
}

func (c *GatewayContract) runDepositToken(
	state contract.AccessibleState,
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}
	if suppliedGas < GasDepositToken {
		return nil, 0, fmt.Errorf("out of gas")
	}

	// localToken (32) + remoteToken (32) + recipient (32) + amount (32) + minGas (32) + extraData
	if len(input) < 160 {
		return nil, suppliedGas - GasDepositToken, fmt.Errorf("input too short")
	}

	localToken := common.BytesToAddress(input[12:32])
	remoteToken := common.BytesToAddress(input[44:64])
	recipient := common.BytesToAddress(input[76:96])
	amount := new(big.Int).SetBytes(input[96:128])
	minGas := binary.BigEndian.Uint32(input[156:160])
	extraData := input[160:]

	request, err := c.gateway.DepositToken(state.GetStateDB(), localToken, remoteToken, caller, recipient, amount, minGas, extraData)
	if err != nil {
		return nil, suppliedGas - GasDepositToken, err
	}
	return request.ID[:], suppliedGas - GasDepositToken, nil
}

func (c *GatewayContract) runRegisterToken(
	caller common.Address,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}
	if suppliedGas < GasRegisterToken {
		return nil, 0, fmt.Errorf("out of gas")
	}
	if c.admin == (common.Address{}) || caller != c.admin {
		return nil, suppliedGas - GasRegisterToken, ErrUnauthorizedSigner
	}

	// localToken (32) + remoteToken (32) + decimals (32) + minDeposit (32) + maxDeposit (32)
	if len(input) < 160 {
		return nil, suppliedGas - GasRegisterToken, fmt.Errorf("input too short")
	}

	localToken := common.BytesToAddress(input[12:32])
	remoteToken := common.BytesToAddress(input[44:64])
	decimals := input[95]
	minDeposit := new(big.Int).SetBytes(input[96:128])
	maxDeposit := new(big.Int).SetBytes(input[128:160])

	if err := c.gateway.RegisterToken(localToken, remoteToken, decimals, "", "", minDeposit, maxDeposit); err != nil {
		return nil, suppliedGas - GasRegisterToken, err
	}
	return nil, suppliedGas - GasRegisterToken, nil
}

func (c *GatewayContract) runCompleteTransfer(
	state contract.AccessibleState,
	input []byte,
	suppliedGas uint64,
	readOnly bool,
) ([]byte, uint64, error) {
	if readOnly {
		return nil, suppliedGas, fmt.Errorf("cannot write in read-only mode")
	}
	if suppliedGas < GasCompleteTransfer {
		return nil, 0, fmt.Errorf("out of gas")
	}

	// id (32) + sigCount (32) + sigCount * 65 bytes
	if len(input) < 64 {
		return nil, suppliedGas - GasCompleteTransfer, fmt.Errorf("input too short")
	}

	var id [32]byte
	copy(id[:], input[0:32])
	sigCount := new(big.Int).SetBytes(input[32:64]).Uint64()

	sigBytes := input[64:]
	if uint64(len(sigBytes)) != sigCount*65 {
		return nil, suppliedGas - GasCompleteTransfer, fmt.Errorf("malformed signature block")
	}
	signatures := make([][]byte, 0, sigCount)
	for i := uint64(0); i < sigCount; i++ {
		signatures = append(signatures, sigBytes[i*65:(i+1)*65])
	}

	if err := c.gateway.CompleteTransfer(state.GetStateDB(), id, signatures); err != nil {
		return nil, suppliedGas - GasCompleteTransfer, err
	}
	return nil, suppliedGas - GasCompleteTransfer, nil
}

func (c *GatewayContract) runGetRequest(
	input []byte,
	suppliedGas uint64,
) ([]byte, uint64, error) {
	if suppliedGas < GasGetRequest {
		return nil, 0, fmt.Errorf("out of gas")
	}
	if len(input) < 32 {
		return nil, suppliedGas - GasGetRequest, fmt.Errorf("input too short")
	}

	var id [32]byte
	copy(id[:], input[0:32])
	request, err := c.gateway.GetRequest(id)
	if err != nil {
		return nil, suppliedGas - GasGetRequest, err
	}

	// sender (32) + recipient (32) + localToken (32) + remoteToken (32) +
	// amount (32) + status (32)
	result := make([]byte, 192)
	copy(result[12:32], request.Sender.Bytes())
	copy(result[44:64], request.Recipient.Bytes())
	copy(result[76:96], request.LocalToken.Bytes())
	copy(result[108:128], request.RemoteToken.Bytes())
	copy(result[128:160], common.BigToHash(request.Amount).Bytes())
	result[191] = byte(request.Status)
	return result, suppliedGas - GasGetRequest, nil
}

// RequiredGas returns the gas required for the precompile input
func (c *GatewayContract) RequiredGas(input []byte) uint64 {
	if len(input) < 4 {
		return GasGetRequest
	}

	selector := binary.BigEndian.Uint32(input[:4])
	switch selector {
	case SelectorDepositNative:
		return GasDepositNative
	case SelectorDepositToken:
		return GasDepositToken
	case SelectorRegisterToken:
		return GasRegisterToken
	case SelectorCompleteTransfer:
		return GasCompleteTransfer
	case SelectorGetRequest:
		return GasGetRequest
	default:
		return GasGetRequest
	}
}
