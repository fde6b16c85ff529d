// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"encoding/binary"

	"github.com/holiman/uint256"
	"github.com/luxfi/database"
	"github.com/luxfi/geth/common"
	ethtypes "github.com/luxfi/geth/core/types"
	"github.com/zeebo/blake3"
)

// StateDB is the narrow state interface the vault runs against. Production
// deployments back it with EVM state or DatabaseState; tests use a mock.
type StateDB interface {
	GetState(addr common.Address, key common.Hash) common.Hash
	SetState(addr common.Address, key common.Hash, value common.Hash)
	GetBalance(addr common.Address) *uint256.Int
	AddBalance(addr common.Address, amount *uint256.Int)
	SubBalance(addr common.Address, amount *uint256.Int)
	AddLog(log *ethtypes.Log)
	GetBlockNumber() uint64
	GetBlockTime() uint64
}

// Storage key prefixes for vault state.
var (
	poolMetaPrefix        = []byte("pool") // pool exists flag + token count
	poolTokenPrefix       = []byte("ptok") // pool token list, by index
	poolIndexPrefix       = []byte("pidx") // token -> list index + 1
	poolBalancePrefix     = []byte("pbal") // packed balance record
	assetManagerPrefix    = []byte("pmgr") // (pool, token) asset manager
	internalBalancePrefix = []byte("ibal") // (account, token) internal balance
	tokenBalancePrefix    = []byte("tbal") // (token, holder) token ledger
	poolNoncePrefix       = []byte("nonc") // pool registration counter
	relayerPrefix         = []byte("rlay") // (sender, relayer) approval
	pausedPrefix          = []byte("paus") // pause flag
)

// storageKey derives a storage slot from a prefix and identifier.
func storageKey(prefix []byte, id []byte) common.Hash {
	h := blake3.New()
	h.Write(prefix)
	h.Write(id)
	var key common.Hash
	h.Digest().Read(key[:])
	return key
}

func poolTokenKey(prefix []byte, poolID PoolID, token Currency) common.Hash {
	id := make([]byte, 0, 52)
	id = append(id, poolID[:]...)
	id = append(id, token.ToBytes()...)
	return storageKey(prefix, id)
}

func poolListKey(poolID PoolID, index uint32) common.Hash {
	id := make([]byte, 36)
	copy(id[:32], poolID[:])
	binary.BigEndian.PutUint32(id[32:], index)
	return storageKey(poolTokenPrefix, id)
}

func accountTokenKey(prefix []byte, account common.Address, token Currency) common.Hash {
	return addressPairKey(prefix, account, token.Address)
}

func addressPairKey(prefix []byte, a, b common.Address) common.Hash {
	id := make([]byte, 0, 40)
	id = append(id, a.Bytes()...)
	id = append(id, b.Bytes()...)
	return storageKey(prefix, id)
}

// Word codec helpers. Words follow EVM conventions: integers and addresses
// right-aligned in the 32-byte slot.

func u64Word(v uint64) common.Hash {
	var w common.Hash
	binary.BigEndian.PutUint64(w[24:], v)
	return w
}

func wordU64(w common.Hash) uint64 {
	return binary.BigEndian.Uint64(w[24:])
}

func addressWord(addr common.Address) common.Hash {
	var w common.Hash
	copy(w[12:], addr.Bytes())
	return w
}

func wordAddress(w common.Hash) common.Address {
	return common.BytesToAddress(w[12:])
}

func u256Word(v *uint256.Int) common.Hash {
	return common.Hash(v.Bytes32())
}

func wordU256(w common.Hash) *uint256.Int {
	return new(uint256.Int).SetBytes32(w[:])
}

// DatabaseState implements StateDB over a key-value database, giving the
// vault durable state outside an EVM. Keys are addr||slot for storage words
// and a "bal" prefix for native balances. Logs are retained in memory only.
type DatabaseState struct {
	db          database.Database
	blockNumber uint64
	blockTime   uint64
	logs        []*ethtypes.Log
	err         error
}

// NewDatabaseState wraps db as vault state.
func NewDatabaseState(db database.Database) *DatabaseState {
	return &DatabaseState{db: db}
}

// SetBlock advances the block context used for markers and deadlines.
func (s *DatabaseState) SetBlock(number, time uint64) {
	s.blockNumber = number
	s.blockTime = time
}

// Err returns the first database error encountered, if any.
func (s *DatabaseState) Err() error { return s.err }

// Logs returns the logs emitted so far.
func (s *DatabaseState) Logs() []*ethtypes.Log { return s.logs }

func (s *DatabaseState) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

func storageDBKey(addr common.Address, key common.Hash) []byte {
	k := make([]byte, 0, 52)
	k = append(k, addr.Bytes()...)
	k = append(k, key[:]...)
	return k
}

func balanceDBKey(addr common.Address) []byte {
	k := make([]byte, 0, 23)
	k = append(k, []byte("bal")...)
	k = append(k, addr.Bytes()...)
	return k
}

func (s *DatabaseState) GetState(addr common.Address, key common.Hash) common.Hash {
	raw, err := s.db.Get(storageDBKey(addr, key))
	if err == database.ErrNotFound {
		return common.Hash{}
	}
	if err != nil {
		s.fail(err)
		return common.Hash{}
	}
	return common.BytesToHash(raw)
}

func (s *DatabaseState) SetState(addr common.Address, key common.Hash, value common.Hash) {
	if err := s.db.Put(storageDBKey(addr, key), value[:]); err != nil {
		s.fail(err)
	}
}

func (s *DatabaseState) GetBalance(addr common.Address) *uint256.Int {
	raw, err := s.db.Get(balanceDBKey(addr))
	if err == database.ErrNotFound {
		return uint256.NewInt(0)
	}
	if err != nil {
		s.fail(err)
		return uint256.NewInt(0)
	}
	return new(uint256.Int).SetBytes(raw)
}

func (s *DatabaseState) AddBalance(addr common.Address, amount *uint256.Int) {
	bal := s.GetBalance(addr)
	bal.Add(bal, amount)
	if err := s.db.Put(balanceDBKey(addr), bal.Bytes()); err != nil {
		s.fail(err)
	}
}

func (s *DatabaseState) SubBalance(addr common.Address, amount *uint256.Int) {
	bal := s.GetBalance(addr)
	bal.Sub(bal, amount)
	if err := s.db.Put(balanceDBKey(addr), bal.Bytes()); err != nil {
		s.fail(err)
	}
}

func (s *DatabaseState) AddLog(log *ethtypes.Log) {
	s.logs = append(s.logs, log)
}

func (s *DatabaseState) GetBlockNumber() uint64 { return s.blockNumber }

func (s *DatabaseState) GetBlockTime() uint64 { return s.blockTime }
