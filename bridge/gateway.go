// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"encoding/binary"
	"math/big"
	"sync"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
	"github.com/zeebo/blake3"

	"github.com/luxfi/swapbridge/contract"
	"github.com/luxfi/swapbridge/ledger"
)

// Gateway escrows deposits at its precompile address and records a
// transfer request per deposit. Relay fees are charged on the
// destination leg, so deposits carry the full amount.
type Gateway struct {
	addr      common.Address
	destChain uint32
	log       log.Logger

	Requests        map[[32]byte]*TransferRequest
	Nonces          map[common.Address]uint64 // Per-sender nonces
	SupportedTokens map[common.Address]*BridgedToken

	SignerSet *SignerSet
	Paused    bool

	mu sync.RWMutex
}

// NewGateway creates a deposit gateway escrowing at [addr] and relaying
// to [destChain].
func NewGateway(addr common.Address, destChain uint32) *Gateway {
	return &Gateway{
		addr:            addr,
		destChain:       destChain,
		log:             log.NewTestLogger(log.InfoLevel),
		Requests:        make(map[[32]byte]*TransferRequest),
		Nonces:          make(map[common.Address]uint64),
		SupportedTokens: make(map[common.Address]*BridgedToken),
		SignerSet: &SignerSet{
			Signers:   make([]*SignerInfo, 0),
			Threshold: 1,
		},
	}
}

// DefaultGateway is the process-wide gateway instance the precompile
// modules dispatch against.
var DefaultGateway = NewGateway(common.HexToAddress(GatewayAddress), ChainEthereum)

// Address returns the gateway's escrow address.
func (gw *Gateway) Address() common.Address {
	return gw.addr
}

// DepositNative escrows [amount] of the native asset from [from] and
// records a transfer request for [recipient] on the destination chain.
// The native asset is always bridgeable.
func (gw *Gateway) DepositNative(
	db contract.StateDB,
	from common.Address,
	recipient common.Address,
	amount *big.Int,
	minGas uint32,
	extraData []byte,
) (*TransferRequest, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	if gw.Paused {
		return nil, ErrBridgeDisabled
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	value, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrInvalidAmount
	}
	if db.GetBalance(from).Cmp(value) < 0 {
		return nil, ErrInsufficientFunds
	}
	db.SubBalance(from, value)
	db.AddBalance(gw.addr, value)

	return gw.recordRequest(db, from, recipient, common.Address{}, common.Address{}, amount, minGas, extraData), nil
}

// DepositToken escrows [amount] of [localToken] from [from] via the
// gateway's allowance and records a transfer request targeting
// [remoteToken] on the destination chain. The token must be registered
// and [remoteToken] must match its registration.
func (gw *Gateway) DepositToken(
	db contract.StateDB,
	localToken common.Address,
	remoteToken common.Address,
	from common.Address,
	recipient common.Address,
	amount *big.Int,
	minGas uint32,
	extraData []byte,
) (*TransferRequest, error) {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	if gw.Paused {
		return nil, ErrBridgeDisabled
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	tokenInfo := gw.SupportedTokens[localToken]
	if tokenInfo == nil || tokenInfo.Paused || tokenInfo.RemoteAddress != remoteToken {
		return nil, ErrTokenNotSupported
	}
	if tokenInfo.MinDeposit != nil && amount.Cmp(tokenInfo.MinDeposit) < 0 {
		return nil, ErrAmountTooLow
	}
	if tokenInfo.MaxDeposit != nil && tokenInfo.MaxDeposit.Sign() > 0 && amount.Cmp(tokenInfo.MaxDeposit) > 0 {
		return nil, ErrAmountTooHigh
	}

	// Pull through the depositor's allowance for the gateway.
	if err := ledger.TokenTransferFrom(db, localToken, gw.addr, from, gw.addr, amount); err != nil {
		return nil, err
	}

	return gw.recordRequest(db, from, recipient, localToken, remoteToken, amount, minGas, extraData), nil
}

// recordRequest allocates the nonce and request ID and stores the
// pending request. Caller must hold gw.mu.
func (gw *Gateway) recordRequest(
	db contract.StateDB,
	sender, recipient, localToken, remoteToken common.Address,
	amount *big.Int,
	minGas uint32,
	extraData []byte,
) *TransferRequest {
	nonce := gw.Nonces[sender]
	gw.Nonces[sender] = nonce + 1

	request := &TransferRequest{
		ID:          requestID(sender, recipient, localToken, amount, gw.destChain, nonce),
		Sender:      sender,
		Recipient:   recipient,
		LocalToken:  localToken,
		RemoteToken: remoteToken,
		Amount:      new(big.Int).Set(amount),
		DestChain:   gw.destChain,
		MinGas:      minGas,
		ExtraData:   extraData,
		Nonce:       nonce,
		Status:      StatusPending,
		CreatedAt:   db.GetBlockNumber(),
	}
	gw.Requests[request.ID] = request
	gw.log.Debug("transfer request recorded",
		"id", common.Hash(request.ID).Hex(),
		"sender", sender.Hex(),
		"amount", amount.String(),
		"nonce", nonce,
	)
	return request
}

// CompleteTransfer finalizes a pending request once the signer set's
// attestations reach threshold. Signatures are 65-byte [R||S||V] over
// the request's transfer message hash.
func (gw *Gateway) CompleteTransfer(db contract.StateDB, id [32]byte, signatures [][]byte) error {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	request := gw.Requests[id]
	if request == nil {
		return ErrRequestNotFound
	}
	if request.Status == StatusCompleted {
		return ErrRequestAlreadyDone
	}

	messageHash := TransferMessageHash(request)
	if err := gw.SignerSet.VerifyAttestations(messageHash, signatures); err != nil {
		return err
	}

	request.Status = StatusCompleted
	request.CompletedAt = db.GetBlockNumber()
	gw.log.Info("transfer completed", "id", common.Hash(id).Hex(), "signers", len(signatures))
	return nil
}

// DropRequest forgets a pending request whose enclosing operation was
// rolled back, so the destination domain never sees a deposit with no
// backing escrow. Releases the nonce slot when it is the most recent
// one for the sender. Completed requests are never dropped.
func (gw *Gateway) DropRequest(id [32]byte) {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	request := gw.Requests[id]
	if request == nil || request.Status != StatusPending {
		return
	}
	delete(gw.Requests, id)
	if gw.Nonces[request.Sender] == request.Nonce+1 {
		gw.Nonces[request.Sender] = request.Nonce
	}
	gw.log.Debug("transfer request dropped", "id", common.Hash(id).Hex())
}

// GetRequest returns a transfer request by ID.
func (gw *Gateway) GetRequest(id [32]byte) (*TransferRequest, error) {
	gw.mu.RLock()
	defer gw.mu.RUnlock()

	request := gw.Requests[id]
	if request == nil {
		return nil, ErrRequestNotFound
	}
	return request, nil
}

// RegisterToken registers a token for bridging with its destination
// representation and deposit limits.
func (gw *Gateway) RegisterToken(
	localAddress common.Address,
	remoteAddress common.Address,
	decimals uint8,
	symbol string,
	name string,
	minDeposit *big.Int,
	maxDeposit *big.Int,
) error {
	gw.mu.Lock()
	defer gw.mu.Unlock()

	if gw.SupportedTokens[localAddress] != nil {
		return ErrTokenRegistered
	}

	gw.SupportedTokens[localAddress] = &BridgedToken{
		LocalAddress:  localAddress,
		RemoteAddress: remoteAddress,
		Decimals:      decimals,
		Symbol:        symbol,
		Name:          name,
		MinDeposit:    minDeposit,
		MaxDeposit:    maxDeposit,
	}
	return nil
}

// IsTokenSupported reports whether deposits of [token] are accepted.
func (gw *Gateway) IsTokenSupported(token common.Address) bool {
	gw.mu.RLock()
	defer gw.mu.RUnlock()

	info := gw.SupportedTokens[token]
	return info != nil && !info.Paused
}

// SetPaused suspends or resumes all deposits.
func (gw *Gateway) SetPaused(paused bool) {
	gw.mu.Lock()
	defer gw.mu.Unlock()
	gw.Paused = paused
}

// requestID derives a unique transfer request identifier.
func requestID(
	sender, recipient, token common.Address,
	amount *big.Int,
	destChain uint32,
	nonce uint64,
) [32]byte {
	h := blake3.New()
	h.Write(sender.Bytes())
	h.Write(recipient.Bytes())
	h.Write(token.Bytes())
	h.Write(common.BigToHash(amount).Bytes())

	var buf [12]byte
	binary.BigEndian.PutUint32(buf[0:4], destChain)
	binary.BigEndian.PutUint64(buf[4:12], nonce)
	h.Write(buf[:])

	var id [32]byte
	h.Digest().Read(id[:])
	return id
}

// TransferMessageHash is the digest the signer set attests to for a
// transfer request.
func TransferMessageHash(request *TransferRequest) [32]byte {
	h := blake3.New()
	h.Write(request.ID[:])
	h.Write(request.Sender.Bytes())
	h.Write(request.Recipient.Bytes())
	h.Write(request.LocalToken.Bytes())
	h.Write(request.RemoteToken.Bytes())
	h.Write(common.BigToHash(request.Amount).Bytes())

	var buf [16]byte
	binary.BigEndian.PutUint32(buf[0:4], request.DestChain)
	binary.BigEndian.PutUint32(buf[4:8], request.MinGas)
	binary.BigEndian.PutUint64(buf[8:16], request.Nonce)
	h.Write(buf[:])
	h.Write(request.ExtraData)

	var digest [32]byte
	h.Digest().Read(digest[:])
	return digest
}
