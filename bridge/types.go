// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package bridge implements the cross-chain deposit gateway precompile.
// Deposits escrow assets at the gateway address and emit a transfer
// request for the destination domain; a threshold signer set attests
// completions.
package bridge

import (
	"errors"
	"math/big"

	"github.com/luxfi/geth/common"

	"github.com/luxfi/swapbridge/registry"
)

// GatewayAddress is where the deposit gateway precompile is installed (LP-6010).
const GatewayAddress = registry.BridgeGateway

// Gas costs
const (
	GasDepositNative    = uint64(75000)
	GasDepositToken     = uint64(100000)
	GasRegisterToken    = uint64(50000)
	GasCompleteTransfer = uint64(50000)
	GasGetRequest       = uint64(5000)
)

// Destination chain IDs
const (
	ChainLux      uint32 = 96369  // Lux mainnet C-Chain
	ChainLuxTest  uint32 = 96368  // Lux testnet
	ChainZoo      uint32 = 200200 // Zoo mainnet
	ChainEthereum uint32 = 1      // Ethereum mainnet
)

// TransferRequest represents an escrowed deposit awaiting relay to the
// destination domain.
type TransferRequest struct {
	ID          [32]byte       // Unique request ID
	Sender      common.Address // Depositor on this chain
	Recipient   common.Address // Recipient on the destination chain
	LocalToken  common.Address // Asset escrowed here (address(0) for native)
	RemoteToken common.Address // Destination-domain representation
	Amount      *big.Int       // Escrowed amount
	DestChain   uint32         // Destination chain ID
	MinGas      uint32         // Minimum gas for the destination-side call
	ExtraData   []byte         // Opaque data forwarded to the recipient
	Nonce       uint64         // Sender nonce for replay protection
	Status      TransferStatus // Current status
	CreatedAt   uint64         // Block number of the deposit
	CompletedAt uint64         // Block number of completion attestation
}

// TransferStatus represents the status of a transfer request
type TransferStatus uint8

const (
	StatusPending TransferStatus = iota
	StatusRelaying
	StatusCompleted
	StatusFailed
)

// BridgedToken represents a token registered for bridging. The native
// asset needs no registration.
type BridgedToken struct {
	LocalAddress  common.Address // Address on this chain
	RemoteAddress common.Address // Address on the destination chain
	Decimals      uint8          // Token decimals
	Symbol        string         // Token symbol
	Name          string         // Token name
	MinDeposit    *big.Int       // Minimum deposit amount
	MaxDeposit    *big.Int       // Maximum deposit amount (per tx), zero = unlimited
	Paused        bool           // Deposits suspended for this token
}

// SignerInfo represents a member of the attestation signer set
type SignerInfo struct {
	NodeID     [20]byte       // Validator node ID
	Address    common.Address // Signing address
	Bond       *big.Int       // Staked bond
	JoinedAt   uint64         // Block number the signer joined at
	SignCount  uint64         // Total attestations produced
	SlashCount uint32         // Times slashed
	Status     SignerStatus
}

// SignerStatus represents signer status
type SignerStatus uint8

const (
	SignerActive SignerStatus = iota
	SignerSlashed
	SignerExited
)

// SignerSet is the threshold set whose attestations finalize transfers.
type SignerSet struct {
	Signers   []*SignerInfo // Active signers (max 100)
	Threshold uint32        // Required signatures (2/3 + 1 of signers)
	Epoch     uint64        // Current epoch
}

// Bridge errors
var (
	ErrBridgeDisabled     = errors.New("bridge is disabled")
	ErrTokenNotSupported  = errors.New("token not supported for bridging")
	ErrTokenRegistered    = errors.New("token already registered")
	ErrAmountTooLow       = errors.New("amount below minimum")
	ErrAmountTooHigh      = errors.New("amount exceeds maximum")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrInsufficientFunds  = errors.New("insufficient funds for deposit")
	ErrInvalidSignature   = errors.New("invalid attestation signature")
	ErrSignatureThreshold = errors.New("signature threshold not met")
	ErrRequestNotFound    = errors.New("transfer request not found")
	ErrRequestAlreadyDone = errors.New("transfer request already completed")
	ErrUnauthorizedSigner = errors.New("unauthorized signer")
	ErrSignerNotFound     = errors.New("signer not found")
	ErrInsufficientBond   = errors.New("insufficient signer bond")
	ErrAlreadySigner      = errors.New("already in signer set")
	ErrSignerSetFull      = errors.New("signer set is full")
)

// MinSignerBond is the minimum bond required to be a signer (100M LUX)
var MinSignerBond = new(big.Int).Mul(big.NewInt(100_000_000), big.NewInt(1e18))

// MaxSigners is the maximum number of active signers
const MaxSigners = 100
