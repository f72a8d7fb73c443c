// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"github.com/luxfi/geth/common"
	"github.com/zeebo/blake3"

	"github.com/luxfi/swapbridge/contract"
)

// AssetRegistry maps source-domain assets to their destination-domain
// representations. Mappings live in the router's storage; only the
// registry admin may change them. The native asset needs no mapping.
type AssetRegistry struct {
	addr common.Address
}

// NewAssetRegistry creates a registry storing under [addr].
func NewAssetRegistry(addr common.Address) *AssetRegistry {
	return &AssetRegistry{addr: addr}
}

var (
	assetMappingPrefix = []byte("asset_map")
	registryAdminSalt  = []byte("registry_admin")
)

func mappingKey(src common.Address) common.Hash {
	h := blake3.New()
	h.Write(assetMappingPrefix)
	h.Write(src.Bytes())

	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

func adminKey() common.Hash {
	h := blake3.New()
	h.Write(registryAdminSalt)

	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

// Admin returns the registry admin address.
func (r *AssetRegistry) Admin(db contract.StateDB) common.Address {
	value := db.GetState(r.addr, adminKey())
	return common.BytesToAddress(value[12:])
}

// SetAdmin installs [admin] as the registry admin. Called from the
// precompile configurator at activation.
func (r *AssetRegistry) SetAdmin(db contract.StateDB, admin common.Address) {
	db.SetState(r.addr, adminKey(), common.BytesToHash(admin.Bytes()))
}

// Register maps [src] to [dest], overwriting any existing mapping.
// A zero [dest] removes the mapping. Admin only.
func (r *AssetRegistry) Register(db contract.StateDB, caller, src, dest common.Address) error {
	admin := r.Admin(db)
	if admin == (common.Address{}) || caller != admin {
		return ErrUnauthorized
	}
	db.SetState(r.addr, mappingKey(src), common.BytesToHash(dest.Bytes()))
	return nil
}

// Lookup returns the destination representation for [src], or the zero
// address when [src] is not bridgeable.
func (r *AssetRegistry) Lookup(db contract.StateDB, src common.Address) common.Address {
	value := db.GetState(r.addr, mappingKey(src))
	return common.BytesToAddress(value[12:])
}
