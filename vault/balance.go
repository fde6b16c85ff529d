// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// A pool's per-token balance packs into a single 32-byte storage word:
//
//	bits   0..111  cash      (held by the vault, swappable)
//	bits 112..223  managed   (withdrawn by the asset manager)
//	bits 224..255  lastChangeBlock
//
// The packing is bit-exact: encode/decode round-trips every representable
// record. cash+managed must itself fit 112 bits so that totals never
// truncate; every operation below fails hard instead of saturating.
const (
	cashWidth    = 112
	managedShift = 112
	blockShift   = 224
)

var maxBalance = func() *uint256.Int {
	one := uint256.NewInt(1)
	max := new(uint256.Int).Lsh(one, cashWidth)
	return max.Sub(max, one)
}()

var mask112 = new(uint256.Int).Set(maxBalance)

// balanceRecord is the unpacked form of a pool's per-token balance.
type balanceRecord struct {
	Cash            *uint256.Int
	Managed         *uint256.Int
	LastChangeBlock uint32
}

func newBalanceRecord() balanceRecord {
	return balanceRecord{
		Cash:    uint256.NewInt(0),
		Managed: uint256.NewInt(0),
	}
}

// IsZero reports whether both sub-balances are zero.
func (r balanceRecord) IsZero() bool {
	return r.Cash.IsZero() && r.Managed.IsZero()
}

// Total returns cash+managed. Fails with ErrBalanceOverflow if the sum does
// not fit the 112-bit total field.
func (r balanceRecord) Total() (*uint256.Int, error) {
	total := new(uint256.Int).Add(r.Cash, r.Managed)
	if total.Gt(maxBalance) {
		return nil, ErrBalanceOverflow
	}
	return total, nil
}

// encodeBalance packs a record into one storage word.
func encodeBalance(r balanceRecord) common.Hash {
	word := new(uint256.Int).Lsh(uint256.NewInt(uint64(r.LastChangeBlock)), blockShift)
	word.Or(word, new(uint256.Int).Lsh(r.Managed, managedShift))
	word.Or(word, r.Cash)
	return common.Hash(word.Bytes32())
}

// decodeBalance unpacks a storage word into a record.
func decodeBalance(word common.Hash) balanceRecord {
	u := new(uint256.Int).SetBytes32(word[:])
	cash := new(uint256.Int).And(u, mask112)
	managed := new(uint256.Int).Rsh(u, managedShift)
	managed.And(managed, mask112)
	block := new(uint256.Int).Rsh(u, blockShift)
	return balanceRecord{
		Cash:            cash,
		Managed:         managed,
		LastChangeBlock: uint32(block.Uint64()),
	}
}

// increaseCash returns a copy of r with amount added to cash. Fails with
// ErrBalanceOverflow if the new total does not fit the balance field.
func increaseCash(r balanceRecord, amount *uint256.Int) (balanceRecord, error) {
	cash := new(uint256.Int).Add(r.Cash, amount)
	if cash.Lt(r.Cash) { // 256-bit wrap
		return balanceRecord{}, ErrBalanceOverflow
	}
	total := new(uint256.Int).Add(cash, r.Managed)
	if total.Lt(cash) || total.Gt(maxBalance) {
		return balanceRecord{}, ErrBalanceOverflow
	}
	return balanceRecord{Cash: cash, Managed: r.Managed, LastChangeBlock: r.LastChangeBlock}, nil
}

// decreaseCash returns a copy of r with amount removed from cash. Fails with
// ErrInsufficientCash if amount exceeds cash.
func decreaseCash(r balanceRecord, amount *uint256.Int) (balanceRecord, error) {
	if amount.Gt(r.Cash) {
		return balanceRecord{}, ErrInsufficientCash
	}
	cash := new(uint256.Int).Sub(r.Cash, amount)
	return balanceRecord{Cash: cash, Managed: r.Managed, LastChangeBlock: r.LastChangeBlock}, nil
}

// cashToManaged moves amount from cash to managed. The total is unchanged so
// no overflow check is needed beyond the cash floor.
func cashToManaged(r balanceRecord, amount *uint256.Int) (balanceRecord, error) {
	if amount.Gt(r.Cash) {
		return balanceRecord{}, ErrInsufficientCash
	}
	return balanceRecord{
		Cash:            new(uint256.Int).Sub(r.Cash, amount),
		Managed:         new(uint256.Int).Add(r.Managed, amount),
		LastChangeBlock: r.LastChangeBlock,
	}, nil
}

// managedToCash moves amount from managed back to cash. Fails with
// ErrExceedsManaged if amount exceeds managed.
func managedToCash(r balanceRecord, amount *uint256.Int) (balanceRecord, error) {
	if amount.Gt(r.Managed) {
		return balanceRecord{}, ErrExceedsManaged
	}
	return balanceRecord{
		Cash:            new(uint256.Int).Add(r.Cash, amount),
		Managed:         new(uint256.Int).Sub(r.Managed, amount),
		LastChangeBlock: r.LastChangeBlock,
	}, nil
}

// setManaged overwrites the managed sub-balance, used to reconcile external
// gains and losses. Fails with ErrBalanceOverflow if the new total does not
// fit the balance field.
func setManaged(r balanceRecord, managed *uint256.Int) (balanceRecord, error) {
	if managed.Gt(maxBalance) {
		return balanceRecord{}, ErrBalanceOverflow
	}
	total := new(uint256.Int).Add(r.Cash, managed)
	if total.Gt(maxBalance) {
		return balanceRecord{}, ErrBalanceOverflow
	}
	return balanceRecord{
		Cash:            new(uint256.Int).Set(r.Cash),
		Managed:         new(uint256.Int).Set(managed),
		LastChangeBlock: r.LastChangeBlock,
	}, nil
}

// withLastChangeBlock stamps the record with a new marker.
func withLastChangeBlock(r balanceRecord, block uint32) balanceRecord {
	r.LastChangeBlock = block
	return r
}

// bigToField converts a strategy-facing amount to a balance-field value.
// Fails on nil or negative amounts and on values wider than the 112-bit
// field.
func bigToField(amount *big.Int) (*uint256.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	u, overflow := uint256.FromBig(amount)
	if overflow || u.Gt(maxBalance) {
		return nil, ErrAmountTooWide
	}
	return u, nil
}
