// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package ledger

import (
	"math/big"

	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/luxfi/swapbridge/contract"
)

// Token balances and allowances are kept in the token's own storage
// namespace, keyed by blake3 over a prefix and the account addresses.
// Precompiles in this suite move tokens by writing these slots directly.

var (
	tokenBalancePrefix   = []byte("tok_bal")
	tokenAllowancePrefix = []byte("tok_apr")
)

func tokenBalanceKey(holder common.Address) common.Hash {
	h := blake3.New()
	h.Write(tokenBalancePrefix)
	h.Write(holder.Bytes())

	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

func tokenAllowanceKey(owner, spender common.Address) common.Hash {
	h := blake3.New()
	h.Write(tokenAllowancePrefix)
	h.Write(owner.Bytes())
	h.Write(spender.Bytes())

	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// TokenBalanceOf returns [holder]'s balance of [token].
func TokenBalanceOf(db contract.StateDB, token, holder common.Address) *big.Int {
	value := db.GetState(token, tokenBalanceKey(holder))
	return new(big.Int).SetBytes(value[:])
}

func setTokenBalance(db contract.StateDB, token, holder common.Address, amount *big.Int) {
	db.SetState(token, tokenBalanceKey(holder), common.BigToHash(amount))
}

// TokenMint credits [amount] of [token] to [to].
func TokenMint(db contract.StateDB, token, to common.Address, amount *big.Int) {
	balance := TokenBalanceOf(db, token, to)
	setTokenBalance(db, token, to, balance.Add(balance, amount))
}

// TokenTransfer moves [amount] of [token] from [from] to [to].
func TokenTransfer(db contract.StateDB, token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	fromBalance := TokenBalanceOf(db, token, from)
	if fromBalance.Cmp(amount) < 0 {
		return ErrInsufficientTokenBalance
	}
	toBalance := TokenBalanceOf(db, token, to)

	setTokenBalance(db, token, from, fromBalance.Sub(fromBalance, amount))
	setTokenBalance(db, token, to, toBalance.Add(toBalance, amount))
	return nil
}

// TokenApprove sets [spender]'s allowance over [owner]'s [token] balance.
func TokenApprove(db contract.StateDB, token, owner, spender common.Address, amount *big.Int) {
	db.SetState(token, tokenAllowanceKey(owner, spender), common.BigToHash(amount))
}

// TokenAllowance returns [spender]'s remaining allowance over [owner]'s
// [token] balance.
func TokenAllowance(db contract.StateDB, token, owner, spender common.Address) *big.Int {
	value := db.GetState(token, tokenAllowanceKey(owner, spender))
	return new(big.Int).SetBytes(value[:])
}

// TokenTransferFrom moves [amount] of [token] from [from] to [to],
// consuming [spender]'s allowance.
func TokenTransferFrom(db contract.StateDB, token, spender, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}

	allowance := TokenAllowance(db, token, from, spender)
	if allowance.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if err := TokenTransfer(db, token, from, to, amount); err != nil {
		return err
	}
	TokenApprove(db, token, from, spender, allowance.Sub(allowance, amount))
	return nil
}
