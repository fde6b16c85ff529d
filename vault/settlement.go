// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// Settlement converts the net per-token deltas of a batch into actual asset
// movements: ledger transfers for ordinary tokens, wrap/unwrap for the
// native sentinel, and internal-balance draws and credits when the caller
// asks for them.

// nativeTracker accounts for the native value attached to a call. The
// attached amount is taken up front; whatever settlement does not consume is
// refunded to the original caller when the batch finishes.
type nativeTracker struct {
	caller   common.Address
	attached *uint256.Int
	used     *uint256.Int
}

// takeAttached pulls the attached native value from the caller into the
// vault. A nil or zero attachment is valid; settlement then simply has no
// native budget.
func takeAttached(state StateDB, caller common.Address, attached *uint256.Int) (*nativeTracker, error) {
	t := &nativeTracker{
		caller:   caller,
		attached: uint256.NewInt(0),
		used:     uint256.NewInt(0),
	}
	if attached == nil || attached.IsZero() {
		return t, nil
	}
	if attached.Gt(state.GetBalance(caller)) {
		return nil, ErrInsufficientBalance
	}
	state.SubBalance(caller, attached)
	state.AddBalance(VaultAddress, attached)
	t.attached = new(uint256.Int).Set(attached)
	return t, nil
}

// refundExcess returns any unconsumed attached value to the original caller,
// never to the batch recipient.
func (t *nativeTracker) refundExcess(state StateDB) {
	excess := new(uint256.Int).Sub(t.attached, t.used)
	if excess.IsZero() {
		return
	}
	state.SubBalance(VaultAddress, excess)
	state.AddBalance(t.caller, excess)
}

// consume reserves amount of the attached value. Fails with
// ErrInsufficientNative if less was attached than settlement needs. Excess
// attachment is not an error; it is refunded later.
func (t *nativeTracker) consume(amount *uint256.Int) error {
	used := new(uint256.Int).Add(t.used, amount)
	if used.Gt(t.attached) {
		return ErrInsufficientNative
	}
	t.used = used
	return nil
}

// receiveAsset pulls amount of asset from sender into the vault. Native
// amounts come out of the attached value and are wrapped; ordinary tokens
// may draw on the sender's internal balance first when the flag is set, with
// the remainder pulled through the token ledger.
func (v *Vault) receiveAsset(state StateDB, asset Currency, amount *uint256.Int, sender common.Address, fromInternalBalance bool, native *nativeTracker) error {
	if amount.IsZero() {
		return nil
	}
	if asset.IsNative() {
		if fromInternalBalance {
			return ErrInternalBalanceForNative
		}
		if err := native.consume(amount); err != nil {
			return err
		}
		// Wrap: the vault keeps the native value and mints itself the
		// fungible equivalent.
		mintTokens(state, Currency{Address: v.cfg.WrappedNative}, VaultAddress, amount)
		return nil
	}

	remaining := amount
	if fromInternalBalance {
		deducted := decreaseInternalBalancePartial(state, sender, asset, amount)
		if !deducted.IsZero() {
			emitInternalBalanceChanged(state, sender, asset, negBig(deducted))
			remaining = new(uint256.Int).Sub(amount, deducted)
		}
	}
	if remaining.IsZero() {
		return nil
	}
	return transferTokens(state, asset, sender, VaultAddress, remaining)
}

// sendAsset delivers amount of asset from the vault to recipient. Native
// amounts are unwrapped and paid out as native value; ordinary tokens are
// credited to the recipient's internal balance when the flag is set,
// otherwise transferred through the ledger.
func (v *Vault) sendAsset(state StateDB, asset Currency, amount *uint256.Int, recipient common.Address, toInternalBalance bool) error {
	if amount.IsZero() {
		return nil
	}
	if asset.IsNative() {
		if toInternalBalance {
			return ErrCreditInternalBalanceForNative
		}
		// Unwrap: burn the vault's wrapped holding, pay out native.
		if err := burnTokens(state, Currency{Address: v.cfg.WrappedNative}, VaultAddress, amount); err != nil {
			return err
		}
		state.SubBalance(VaultAddress, amount)
		state.AddBalance(recipient, amount)
		return nil
	}

	if toInternalBalance {
		increaseInternalBalance(state, recipient, asset, amount)
		emitInternalBalanceChanged(state, recipient, asset, amount.ToBig())
		return nil
	}
	return transferTokens(state, asset, VaultAddress, recipient, amount)
}

// translateToLedger maps an asset to the token settlement actually books:
// the native sentinel settles against the wrapped-native token everywhere
// except at the external edges handled above.
func (v *Vault) translateToLedger(asset Currency) Currency {
	if asset.IsNative() {
		return Currency{Address: v.cfg.WrappedNative}
	}
	return asset
}
