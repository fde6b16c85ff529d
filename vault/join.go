// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"math/big"

	"github.com/luxfi/geth/common"
)

// Joins and exits are how pools gain and shed cash outside of swaps. The
// pool controller decides the amounts (share accounting is the pool's
// business, not the vault's); the vault moves the funds and keeps the
// records honest.

// JoinPool pulls amounts from sender and adds them to the pool's cash,
// in registered-token listing order. Only the pool controller may call it.
// Registered tokens are never the native sentinel, so joins carry no
// attached value; native joins go through the wrapped token.
func (v *Vault) JoinPool(state StateDB, caller common.Address, poolID PoolID, funds FundManagement, amounts []*big.Int) error {
	release, err := v.enter()
	if err != nil {
		return err
	}
	defer release()

	if v.isPaused(state) {
		return ErrPaused
	}
	if caller != poolID.Pool() {
		return ErrUnauthorized
	}
	if !poolExists(state, poolID) {
		return ErrPoolNotFound
	}

	j := newJournal(state)
	tokens := poolTokens(j, poolID)
	if len(amounts) != len(tokens) {
		return ErrLengthMismatch
	}

	native, err := takeAttached(j, funds.Sender, nil)
	if err != nil {
		return err
	}

	block := uint32(j.GetBlockNumber())
	for i, token := range tokens {
		amount, err := bigToField(amounts[i])
		if err != nil {
			return err
		}
		if amount.IsZero() {
			continue
		}
		if err := v.receiveAsset(j, token, amount, funds.Sender, funds.FromInternalBalance, native); err != nil {
			return err
		}
		rec, err := increaseCash(readBalance(j, poolID, token), amount)
		if err != nil {
			return err
		}
		writeBalance(j, poolID, token, withLastChangeBlock(rec, block))
		emitPoolBalanceChanged(j, poolID, funds.Sender, token, amount.ToBig(), big.NewInt(0))
	}

	native.refundExcess(j)
	j.commit()
	return nil
}

// ExitPool removes amounts from the pool's cash and sends them to the
// recipient, in registered-token listing order. Only the pool controller may
// call it; exits stay open while paused so funds are never trapped.
func (v *Vault) ExitPool(state StateDB, caller common.Address, poolID PoolID, funds FundManagement, amounts []*big.Int) error {
	release, err := v.enter()
	if err != nil {
		return err
	}
	defer release()

	if caller != poolID.Pool() {
		return ErrUnauthorized
	}
	if !poolExists(state, poolID) {
		return ErrPoolNotFound
	}

	j := newJournal(state)
	tokens := poolTokens(j, poolID)
	if len(amounts) != len(tokens) {
		return ErrLengthMismatch
	}

	block := uint32(j.GetBlockNumber())
	for i, token := range tokens {
		amount, err := bigToField(amounts[i])
		if err != nil {
			return err
		}
		if amount.IsZero() {
			continue
		}
		rec, err := decreaseCash(readBalance(j, poolID, token), amount)
		if err != nil {
			return err
		}
		writeBalance(j, poolID, token, withLastChangeBlock(rec, block))
		if err := v.sendAsset(j, token, amount, funds.Recipient, funds.ToInternalBalance); err != nil {
			return err
		}
		emitPoolBalanceChanged(j, poolID, funds.Sender, token, new(big.Int).Neg(amount.ToBig()), big.NewInt(0))
	}

	j.commit()
	return nil
}
