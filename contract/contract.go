// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package contract defines the interfaces between the EVM and stateful
// precompiled contracts: state access, block context, and the contract
// entry point itself.
package contract

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/swapbridge/precompileconfig"
)

// StateDB is the subset of the EVM state interface available to stateful
// precompiles. Snapshot/RevertToSnapshot expose the state journal so a
// precompile can unwind every effect of a failed call.
type StateDB interface {
	GetState(addr common.Address, key common.Hash) common.Hash
	SetState(addr common.Address, key common.Hash, value common.Hash)

	GetBalance(addr common.Address) *uint256.Int
	AddBalance(addr common.Address, amount *uint256.Int)
	SubBalance(addr common.Address, amount *uint256.Int)

	Exist(addr common.Address) bool
	CreateAccount(addr common.Address)

	Snapshot() int
	RevertToSnapshot(int)

	GetBlockNumber() uint64
}

// BlockContext provides block information to precompiles.
type BlockContext interface {
	Number() *big.Int
	Timestamp() uint64
}

// ConfigurationBlockContext is the block context available while a
// precompile is being configured at an upgrade boundary.
type ConfigurationBlockContext = BlockContext

// AccessibleState is the execution state a precompile may touch during Run.
type AccessibleState interface {
	GetStateDB() StateDB
	GetBlockContext() BlockContext
}

// StatefulPrecompiledContract is the interface all stateful precompiles
// implement.
type StatefulPrecompiledContract interface {
	// Run executes the precompiled contract.
	Run(
		accessibleState AccessibleState,
		caller common.Address,
		addr common.Address,
		input []byte,
		suppliedGas uint64,
		readOnly bool,
	) (ret []byte, remainingGas uint64, err error)

	// RequiredGas returns the gas required to execute the given input.
	RequiredGas(input []byte) uint64
}

// Configurator applies a precompile's config when its activation timestamp
// is crossed.
type Configurator interface {
	MakeConfig() precompileconfig.Config
	Configure(
		chainConfig precompileconfig.ChainConfig,
		cfg precompileconfig.Config,
		state StateDB,
		blockContext ConfigurationBlockContext,
	) error
}
