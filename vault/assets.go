// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"math/big"

	"github.com/luxfi/geth/common"
)

// Asset managers move value between the vault's cash holding and external
// yield strategies. Withdrawals and deposits shuffle already-accounted value
// between the cash and managed sub-balances, so they leave the last-change
// marker alone; updates change the pool's total without a matching transfer,
// so they bump it for downstream price-oracle consumers.

// ManagePoolBalance executes a batch of asset-manager operations atomically:
// if any operation fails its preconditions, none are applied.
func (v *Vault) ManagePoolBalance(state StateDB, caller common.Address, ops []PoolBalanceOp) error {
	release, err := v.enter()
	if err != nil {
		return err
	}
	defer release()

	if v.isPaused(state) {
		return ErrPaused
	}

	j := newJournal(state)
	for _, op := range ops {
		if err := v.poolBalanceOp(j, caller, op); err != nil {
			return err
		}
	}
	j.commit()
	return nil
}

func (v *Vault) poolBalanceOp(state StateDB, caller common.Address, op PoolBalanceOp) error {
	if !poolExists(state, op.PoolID) {
		return ErrPoolNotFound
	}
	if _, registered := tokenIndex(state, op.PoolID, op.Token); !registered {
		return ErrTokenNotRegistered
	}
	if assetManagerFor(state, op.PoolID, op.Token) != caller {
		return ErrUnauthorized
	}
	amount, err := bigToField(op.Amount)
	if err != nil {
		return err
	}

	rec := readBalance(state, op.PoolID, op.Token)

	switch op.Kind {
	case PoolBalanceWithdraw:
		updated, err := cashToManaged(rec, amount)
		if err != nil {
			return err
		}
		if err := transferTokens(state, op.Token, VaultAddress, caller, amount); err != nil {
			return err
		}
		writeBalance(state, op.PoolID, op.Token, updated)
		emitPoolBalanceManaged(state, op.PoolID, caller, op.Token,
			new(big.Int).Neg(amount.ToBig()), amount.ToBig())
		return nil

	case PoolBalanceDeposit:
		updated, err := managedToCash(rec, amount)
		if err != nil {
			return err
		}
		if err := transferTokens(state, op.Token, caller, VaultAddress, amount); err != nil {
			return err
		}
		writeBalance(state, op.PoolID, op.Token, updated)
		emitPoolBalanceManaged(state, op.PoolID, caller, op.Token,
			amount.ToBig(), new(big.Int).Neg(amount.ToBig()))
		return nil

	case PoolBalanceUpdate:
		updated, err := setManaged(rec, amount)
		if err != nil {
			return err
		}
		block := uint32(state.GetBlockNumber())
		updated = withLastChangeBlock(updated, block)
		writeBalance(state, op.PoolID, op.Token, updated)
		v.touchSharedMarker(state, op.PoolID, op.Token, block)

		managedDelta := new(big.Int).Sub(amount.ToBig(), rec.Managed.ToBig())
		emitPoolBalanceManaged(state, op.PoolID, caller, op.Token, big.NewInt(0), managedDelta)
		v.log.Debug("managed balance reconciled",
			"poolID", common.Hash(op.PoolID), "token", op.Token.Address,
			"managedDelta", managedDelta)
		return nil

	default:
		return ErrUnknownOperation
	}
}

// touchSharedMarker replicates a marker bump to the sibling token of a
// TwoToken pool. The pair shares a single logical record, so a value change
// on one side is a change on both.
func (v *Vault) touchSharedMarker(state StateDB, poolID PoolID, token Currency, block uint32) {
	if poolID.Specialization() != SpecTwoToken {
		return
	}
	for _, sibling := range poolTokens(state, poolID) {
		if sibling == token {
			continue
		}
		rec := readBalance(state, poolID, sibling)
		writeBalance(state, poolID, sibling, withLastChangeBlock(rec, block))
	}
}
