// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package router

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"

	"github.com/luxfi/swapbridge/contract"
)

// mockStateDB implements contract.StateDB for tests with copy-on-snapshot
// journaling, so rollback behavior can be asserted.
type mockStateDB struct {
	state     map[common.Address]map[common.Hash]common.Hash
	balances  map[common.Address]*uint256.Int
	snapshots []*mockSnapshot
	blockNum  uint64
}

type mockSnapshot struct {
	state    map[common.Address]map[common.Hash]common.Hash
	balances map[common.Address]*uint256.Int
}

func newMockStateDB() *mockStateDB {
	return &mockStateDB{
		state:    make(map[common.Address]map[common.Hash]common.Hash),
		balances: make(map[common.Address]*uint256.Int),
		blockNum: 42,
	}
}

func (m *mockStateDB) GetState(addr common.Address, key common.Hash) common.Hash {
	if s, ok := m.state[addr]; ok {
		return s[key]
	}
	return common.Hash{}
}

func (m *mockStateDB) SetState(addr common.Address, key common.Hash, value common.Hash) {
	if _, ok := m.state[addr]; !ok {
		m.state[addr] = make(map[common.Hash]common.Hash)
	}
	m.state[addr][key] = value
}

func (m *mockStateDB) GetBalance(addr common.Address) *uint256.Int {
	if b, ok := m.balances[addr]; ok {
		return new(uint256.Int).Set(b)
	}
	return uint256.NewInt(0)
}

func (m *mockStateDB) AddBalance(addr common.Address, amount *uint256.Int) {
	b := m.GetBalance(addr)
	m.balances[addr] = b.Add(b, amount)
}

func (m *mockStateDB) SubBalance(addr common.Address, amount *uint256.Int) {
	b := m.GetBalance(addr)
	m.balances[addr] = b.Sub(b, amount)
}

func (m *mockStateDB) Exist(addr common.Address) bool {
	_, hasState := m.state[addr]
	_, hasBalance := m.balances[addr]
	return hasState || hasBalance
}

func (m *mockStateDB) CreateAccount(addr common.Address) {
	if _, ok := m.state[addr]; !ok {
		m.state[addr] = make(map[common.Hash]common.Hash)
	}
}

func (m *mockStateDB) Snapshot() int {
	snap := &mockSnapshot{
		state:    make(map[common.Address]map[common.Hash]common.Hash, len(m.state)),
		balances: make(map[common.Address]*uint256.Int, len(m.balances)),
	}
	for addr, slots := range m.state {
		copied := make(map[common.Hash]common.Hash, len(slots))
		for k, v := range slots {
			copied[k] = v
		}
		snap.state[addr] = copied
	}
	for addr, b := range m.balances {
		snap.balances[addr] = new(uint256.Int).Set(b)
	}
	m.snapshots = append(m.snapshots, snap)
	return len(m.snapshots) - 1
}

func (m *mockStateDB) RevertToSnapshot(id int) {
	if id < 0 || id >= len(m.snapshots) {
		return
	}
	snap := m.snapshots[id]
	m.state = snap.state
	m.balances = snap.balances
	m.snapshots = m.snapshots[:id]
}

func (m *mockStateDB) GetBlockNumber() uint64 {
	return m.blockNum
}

func (m *mockStateDB) setNativeBalance(addr common.Address, amount *big.Int) {
	value, _ := uint256.FromBig(amount)
	m.balances[addr] = value
}

func (m *mockStateDB) nativeBalance(addr common.Address) *big.Int {
	return m.GetBalance(addr).ToBig()
}

// mockAccessibleState implements contract.AccessibleState.
type mockAccessibleState struct {
	db *mockStateDB
}

func (m *mockAccessibleState) GetStateDB() contract.StateDB {
	return m.db
}

func (m *mockAccessibleState) GetBlockContext() contract.BlockContext {
	return mockBlockContext{}
}

type mockBlockContext struct{}

func (mockBlockContext) Number() *big.Int  { return big.NewInt(42) }
func (mockBlockContext) Timestamp() uint64 { return 1700000000 }
