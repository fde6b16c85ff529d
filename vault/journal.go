// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
	ethtypes "github.com/luxfi/geth/core/types"
)

// journalState buffers every write made during a batch so the whole batch
// commits or discards as one unit. Reads see buffered writes first, then the
// parent. Native balance changes are tracked as signed deltas; callers check
// affordability before SubBalance, the journal does not.
type journalState struct {
	parent  StateDB
	storage map[common.Address]map[common.Hash]common.Hash
	deltas  map[common.Address]*big.Int
	logs    []*ethtypes.Log
}

func newJournal(parent StateDB) *journalState {
	return &journalState{
		parent:  parent,
		storage: make(map[common.Address]map[common.Hash]common.Hash),
		deltas:  make(map[common.Address]*big.Int),
	}
}

func (j *journalState) GetState(addr common.Address, key common.Hash) common.Hash {
	if slots, ok := j.storage[addr]; ok {
		if v, ok := slots[key]; ok {
			return v
		}
	}
	return j.parent.GetState(addr, key)
}

func (j *journalState) SetState(addr common.Address, key common.Hash, value common.Hash) {
	slots, ok := j.storage[addr]
	if !ok {
		slots = make(map[common.Hash]common.Hash)
		j.storage[addr] = slots
	}
	slots[key] = value
}

func (j *journalState) GetBalance(addr common.Address) *uint256.Int {
	bal := j.parent.GetBalance(addr).ToBig()
	if d, ok := j.deltas[addr]; ok {
		bal.Add(bal, d)
	}
	if bal.Sign() < 0 {
		return uint256.NewInt(0)
	}
	u, _ := uint256.FromBig(bal)
	return u
}

func (j *journalState) AddBalance(addr common.Address, amount *uint256.Int) {
	j.adjust(addr, amount.ToBig())
}

func (j *journalState) SubBalance(addr common.Address, amount *uint256.Int) {
	j.adjust(addr, new(big.Int).Neg(amount.ToBig()))
}

func (j *journalState) adjust(addr common.Address, delta *big.Int) {
	d, ok := j.deltas[addr]
	if !ok {
		d = big.NewInt(0)
		j.deltas[addr] = d
	}
	d.Add(d, delta)
}

func (j *journalState) AddLog(log *ethtypes.Log) {
	j.logs = append(j.logs, log)
}

func (j *journalState) GetBlockNumber() uint64 { return j.parent.GetBlockNumber() }

func (j *journalState) GetBlockTime() uint64 { return j.parent.GetBlockTime() }

// commit flushes all buffered writes to the parent. Discarding a journal is
// simply dropping it without calling commit.
func (j *journalState) commit() {
	for addr, slots := range j.storage {
		for key, value := range slots {
			j.parent.SetState(addr, key, value)
		}
	}
	for addr, d := range j.deltas {
		switch d.Sign() {
		case 1:
			u, _ := uint256.FromBig(d)
			j.parent.AddBalance(addr, u)
		case -1:
			u, _ := uint256.FromBig(new(big.Int).Neg(d))
			j.parent.SubBalance(addr, u)
		}
	}
	for _, l := range j.logs {
		j.parent.AddLog(l)
	}
}
