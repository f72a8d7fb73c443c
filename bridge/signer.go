// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package bridge

import (
	"fmt"
	"math/big"

	"github.com/luxfi/crypto"
	"github.com/luxfi/geth/common"
)

// Signer set management and attestation verification. Completions are
// finalized by 2/3 + 1 of the active set signing the transfer message
// hash with plain ECDSA; signer membership is checked by recovered
// address.

// RegisterSigner adds a signer to the set. Requires the minimum bond.
func (s *SignerSet) RegisterSigner(nodeID [20]byte, address common.Address, bond *big.Int, blockNumber uint64) error {
	if bond == nil || bond.Cmp(MinSignerBond) < 0 {
		return ErrInsufficientBond
	}
	if len(s.Signers) >= MaxSigners {
		return ErrSignerSetFull
	}
	for _, signer := range s.Signers {
		if signer.NodeID == nodeID || signer.Address == address {
			return ErrAlreadySigner
		}
	}

	s.Signers = append(s.Signers, &SignerInfo{
		NodeID:   nodeID,
		Address:  address,
		Bond:     new(big.Int).Set(bond),
		JoinedAt: blockNumber,
		Status:   SignerActive,
	})
	s.updateThreshold()
	return nil
}

// RemoveSigner removes a signer from the set.
func (s *SignerSet) RemoveSigner(nodeID [20]byte) error {
	for i, signer := range s.Signers {
		if signer.NodeID == nodeID {
			s.Signers = append(s.Signers[:i], s.Signers[i+1:]...)
			s.updateThreshold()
			s.Epoch++
			return nil
		}
	}
	return ErrSignerNotFound
}

// SlashSigner reduces a signer's bond by [slashPercent] and ejects the
// signer if the remaining bond drops below the minimum.
func (s *SignerSet) SlashSigner(nodeID [20]byte, slashPercent uint32) error {
	for _, signer := range s.Signers {
		if signer.NodeID != nodeID {
			continue
		}

		slashAmount := new(big.Int).Mul(signer.Bond, big.NewInt(int64(slashPercent)))
		slashAmount.Div(slashAmount, big.NewInt(100))
		signer.Bond.Sub(signer.Bond, slashAmount)
		signer.SlashCount++

		if signer.Bond.Cmp(MinSignerBond) < 0 {
			signer.Status = SignerSlashed
			return s.RemoveSigner(nodeID)
		}
		return nil
	}
	return ErrSignerNotFound
}

// IsActiveSigner reports whether [address] belongs to an active signer.
func (s *SignerSet) IsActiveSigner(address common.Address) bool {
	for _, signer := range s.Signers {
		if signer.Address == address && signer.Status == SignerActive {
			return true
		}
	}
	return false
}

// VerifyAttestations checks that [signatures] carry at least threshold
// distinct active-signer signatures over [messageHash]. Signatures are
// 65-byte [R||S||V] with V in {0, 1}.
func (s *SignerSet) VerifyAttestations(messageHash [32]byte, signatures [][]byte) error {
	seen := make(map[common.Address]bool)
	for _, sig := range signatures {
		if len(sig) != crypto.SignatureLength {
			return fmt.Errorf("%w: length %d", ErrInvalidSignature, len(sig))
		}
		pubkey, err := crypto.SigToPub(messageHash[:], sig)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
		signer := common.BytesToAddress(crypto.PubkeyToAddress(*pubkey).Bytes())
		if !s.IsActiveSigner(signer) {
			return fmt.Errorf("%w: %s", ErrUnauthorizedSigner, signer.Hex())
		}
		seen[signer] = true
	}

	if uint32(len(seen)) < s.Threshold {
		return fmt.Errorf("%w: have %d, need %d", ErrSignatureThreshold, len(seen), s.Threshold)
	}

	for _, signer := range s.Signers {
		if seen[signer.Address] {
			signer.SignCount++
		}
	}
	return nil
}

// updateThreshold recomputes the 2/3 + 1 threshold.
func (s *SignerSet) updateThreshold() {
	if len(s.Signers) == 0 {
		s.Threshold = 1
		return
	}
	s.Threshold = (uint32(len(s.Signers)) * 2 / 3) + 1
}
