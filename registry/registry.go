// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package registry documents the precompile address scheme for the
// swap-and-bridge suite and provides the canonical address constants.
package registry

import (
	"fmt"

	"github.com/luxfi/geth/common"
)

// ============================================================================
// PRECOMPILE ADDRESS SCHEME - Aligned with LP Numbering
// ============================================================================
//
// All suite precompiles use trailing-significant 20-byte addresses:
//   Format: 0x0000000000000000000000000000000000PCII
//
// The address ends with the 16-bit LP number (PCII). The selector encodes:
//   0x 0000...0000 P C II
//                  │ │ └┴─ Item/function (8 bits)
//                  │ └──── Chain slot    (4 bits)
//                  └────── Family page   (4 bits, aligned with LP-Pxxx)
//
// P nibble = LP range first digit:
//   P=6 → LP-6xxx (Bridges)
//   P=9 → LP-9xxx (DEX/Markets)

const (
	// Markets (LP-9xxx)
	LXLedger = "0x0000000000000000000000000000000000009010" // LP-9010 LXLedger (singleton exchange ledger)
	LXRouter = "0x0000000000000000000000000000000000009012" // LP-9012 LXRouter (settlement router)

	// Bridges (LP-6xxx)
	BridgeGateway = "0x0000000000000000000000000000000000006010" // LP-6010 BridgeGateway (cross-chain deposits)
)

// PrecompileAddress calculates address from (P, C, II) nibbles
// P = Family page (aligned with LP-Pxxx), C = Chain slot, II = Item
// Returns trailing-significant format: 0x0000000000000000000000000000000000PCII
func PrecompileAddress(p, c, ii uint8) common.Address {
	if p > 15 || c > 15 {
		return common.Address{}
	}
	// Build the 4-character selector: PCII (hex)
	selector := fmt.Sprintf("%x%x%02x", p, c, ii)
	// Pad with leading zeros to 40 hex chars (20 bytes)
	addr := "0000000000000000000000000000000000" + selector
	return common.HexToAddress("0x" + addr)
}

// PrecompileInfo contains metadata about a precompile
type PrecompileInfo struct {
	Address     string
	Name        string
	Description string
	GasBase     uint64
	Chains      []string
	LPRange     string
}

// AllPrecompiles lists the suite's precompiles with their metadata
var AllPrecompiles = []PrecompileInfo{
	{LXLedger, "LX_LEDGER", "Singleton exchange ledger with session accounting", 50000, []string{"C", "Zoo"}, "LP-9010"},
	{LXRouter, "LX_ROUTER", "Swap settlement and cross-chain routing", 10000, []string{"C", "Zoo"}, "LP-9012"},
	{BridgeGateway, "BRIDGE_GATEWAY", "Cross-chain deposit gateway", 75000, []string{"C", "B", "Zoo"}, "LP-6010"},
}

// GetPrecompileAddress returns the address for a precompile by name
func GetPrecompileAddress(name string) common.Address {
	for _, p := range AllPrecompiles {
		if p.Name == name {
			return common.HexToAddress(p.Address)
		}
	}
	return common.Address{}
}

// ChainPrecompiles defines which precompiles are enabled for each chain
var ChainPrecompiles = map[string][]string{
	// C-Chain (main EVM)
	"C": {LXLedger, LXRouter, BridgeGateway},
	// B-Chain (Bridge)
	"B": {BridgeGateway},
	// Zoo - markets focused, same addresses as C-Chain
	"Zoo": {LXLedger, LXRouter, BridgeGateway},
}

// IsPrecompileEnabled checks if a precompile is enabled for a chain
func IsPrecompileEnabled(chainLetter string, precompileAddr common.Address) bool {
	addrs := ChainPrecompiles[chainLetter]

	for _, addr := range addrs {
		if common.HexToAddress(addr) == precompileAddr {
			return true
		}
	}
	return false
}
