// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package precompileconfig defines the configuration interface stateful
// precompile modules implement, plus the shared upgrade/disable plumbing.
package precompileconfig

import "math/big"

// Config is implemented by each precompile's configuration. Instances are
// decoded from the chain's JSON upgrade config.
type Config interface {
	// Key returns the unique config key for this precompile.
	Key() string
	// Timestamp returns the activation timestamp, nil if never active.
	Timestamp() *uint64
	// IsDisabled returns true if this config disables the precompile.
	IsDisabled() bool
	// Equal reports whether this config equals [other].
	Equal(other Config) bool
	// Verify checks the config is well formed.
	Verify(chainConfig ChainConfig) error
}

// ChainConfig exposes the chain parameters precompile configs may verify
// themselves against.
type ChainConfig interface {
	ChainID() *big.Int
	IsActive(timestamp uint64) bool
}

// Upgrade carries the activation timestamp and disable flag every precompile
// config embeds.
type Upgrade struct {
	BlockTimestamp *uint64 `json:"blockTimestamp,omitempty"`
	Disable        bool    `json:"disable,omitempty"`
}

// Timestamp returns the timestamp this upgrade activates at.
func (u *Upgrade) Timestamp() *uint64 {
	return u.BlockTimestamp
}

// Equal reports whether [u] equals [other].
func (u *Upgrade) Equal(other *Upgrade) bool {
	if other == nil {
		return false
	}
	if u.Disable != other.Disable {
		return false
	}
	if (u.BlockTimestamp == nil) != (other.BlockTimestamp == nil) {
		return false
	}
	if u.BlockTimestamp != nil && *u.BlockTimestamp != *other.BlockTimestamp {
		return false
	}
	return true
}
