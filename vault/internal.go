// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Internal balance is per-account, per-token credit held by the vault,
// usable in place of external transfers during settlement. The native
// sentinel always books against the wrapped-native token here.

func internalBalance(state StateDB, account common.Address, token Currency) *uint256.Int {
	return wordU256(state.GetState(VaultAddress, accountTokenKey(internalBalancePrefix, account, token)))
}

func setInternalBalance(state StateDB, account common.Address, token Currency, amount *uint256.Int) {
	state.SetState(VaultAddress, accountTokenKey(internalBalancePrefix, account, token), u256Word(amount))
}

func increaseInternalBalance(state StateDB, account common.Address, token Currency, amount *uint256.Int) {
	bal := internalBalance(state, account, token)
	setInternalBalance(state, account, token, new(uint256.Int).Add(bal, amount))
}

func decreaseInternalBalance(state StateDB, account common.Address, token Currency, amount *uint256.Int) error {
	bal := internalBalance(state, account, token)
	if amount.Gt(bal) {
		return ErrInsufficientInternalBalance
	}
	setInternalBalance(state, account, token, new(uint256.Int).Sub(bal, amount))
	return nil
}

// decreaseInternalBalancePartial deducts up to amount, returning how much
// was actually deducted. Settlement uses it to draw internal balance first
// and pull only the remainder externally.
func decreaseInternalBalancePartial(state StateDB, account common.Address, token Currency, amount *uint256.Int) *uint256.Int {
	bal := internalBalance(state, account, token)
	deduct := amount
	if bal.Lt(amount) {
		deduct = bal
	}
	deduct = new(uint256.Int).Set(deduct)
	setInternalBalance(state, account, token, new(uint256.Int).Sub(bal, deduct))
	return deduct
}

// InternalBalanceOf returns an account's internal balance for token.
func (v *Vault) InternalBalanceOf(state StateDB, account common.Address, token Currency) *big.Int {
	return internalBalance(state, account, v.translateToLedger(token)).ToBig()
}

// ManageUserBalance executes a batch of internal-balance operations
// atomically. Deposits and transfers are blocked while paused; withdrawals
// stay open so users are never locked out of their credit.
func (v *Vault) ManageUserBalance(state StateDB, caller common.Address, ops []UserBalanceOp, attached *big.Int) error {
	release, err := v.enter()
	if err != nil {
		return err
	}
	defer release()

	if v.isPaused(state) {
		for _, op := range ops {
			if op.Kind != WithdrawInternal {
				return ErrPaused
			}
		}
	}

	attachedU, err := bigToAmount(attached)
	if err != nil {
		return err
	}

	j := newJournal(state)
	native, err := takeAttached(j, caller, attachedU)
	if err != nil {
		return err
	}

	for _, op := range ops {
		if err := v.userBalanceOp(j, caller, op, native); err != nil {
			return err
		}
	}

	native.refundExcess(j)
	j.commit()
	return nil
}

func (v *Vault) userBalanceOp(state StateDB, caller common.Address, op UserBalanceOp, native *nativeTracker) error {
	if err := v.authenticateFor(state, caller, op.Sender); err != nil {
		return err
	}
	amount, err := bigToAmount(op.Amount)
	if err != nil {
		return err
	}
	token := v.translateToLedger(op.Asset)

	switch op.Kind {
	case DepositInternal:
		if err := v.receiveAsset(state, op.Asset, amount, op.Sender, false, native); err != nil {
			return err
		}
		increaseInternalBalance(state, op.Recipient, token, amount)
		emitInternalBalanceChanged(state, op.Recipient, token, amount.ToBig())
		return nil

	case WithdrawInternal:
		if err := decreaseInternalBalance(state, op.Sender, token, amount); err != nil {
			return err
		}
		emitInternalBalanceChanged(state, op.Sender, token, negBig(amount))
		return v.sendAsset(state, op.Asset, amount, op.Recipient, false)

	case TransferInternal:
		if err := decreaseInternalBalance(state, op.Sender, token, amount); err != nil {
			return err
		}
		increaseInternalBalance(state, op.Recipient, token, amount)
		emitInternalBalanceChanged(state, op.Sender, token, negBig(amount))
		emitInternalBalanceChanged(state, op.Recipient, token, amount.ToBig())
		return nil

	default:
		return ErrUnknownOperation
	}
}

// bigToAmount converts a caller-supplied amount to the 256-bit ledger width.
// Unlike balance-field amounts these are not capped at 112 bits.
func bigToAmount(amount *big.Int) (*uint256.Int, error) {
	if amount == nil {
		return uint256.NewInt(0), nil
	}
	if amount.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	u, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrAmountTooWide
	}
	return u, nil
}

func negBig(amount *uint256.Int) *big.Int {
	return new(big.Int).Neg(amount.ToBig())
}
