// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/luxfi/geth/common"
)

// The token ledger tracks ERC20-equivalent balances directly in vault state,
// keyed (token, holder). Settlement moves funds through it in place of
// external token-contract calls; the wrapped-native token is minted and
// burned here as native value is wrapped and unwrapped.

func tokenBalance(state StateDB, token Currency, holder common.Address) *uint256.Int {
	return wordU256(state.GetState(VaultAddress, accountTokenKey(tokenBalancePrefix, holder, token)))
}

func setTokenBalance(state StateDB, token Currency, holder common.Address, amount *uint256.Int) {
	state.SetState(VaultAddress, accountTokenKey(tokenBalancePrefix, holder, token), u256Word(amount))
}

// transferTokens moves amount of token from one holder to another. Fails
// with ErrInsufficientBalance if the source cannot cover it.
func transferTokens(state StateDB, token Currency, from, to common.Address, amount *uint256.Int) error {
	fromBal := tokenBalance(state, token, from)
	if amount.Gt(fromBal) {
		return ErrInsufficientBalance
	}
	setTokenBalance(state, token, from, new(uint256.Int).Sub(fromBal, amount))
	toBal := tokenBalance(state, token, to)
	setTokenBalance(state, token, to, new(uint256.Int).Add(toBal, amount))
	return nil
}

func mintTokens(state StateDB, token Currency, to common.Address, amount *uint256.Int) {
	bal := tokenBalance(state, token, to)
	setTokenBalance(state, token, to, new(uint256.Int).Add(bal, amount))
}

func burnTokens(state StateDB, token Currency, from common.Address, amount *uint256.Int) error {
	bal := tokenBalance(state, token, from)
	if amount.Gt(bal) {
		return ErrInsufficientBalance
	}
	setTokenBalance(state, token, from, new(uint256.Int).Sub(bal, amount))
	return nil
}

// MintTokens credits a holder's ledger balance. This is the entry point for
// the token bridge that backs the ledger; tests use it to seed accounts.
func MintTokens(state StateDB, token Currency, to common.Address, amount *big.Int) error {
	u, err := bigToField(amount)
	if err != nil {
		return err
	}
	mintTokens(state, token, to, u)
	return nil
}

// TokenBalanceOf returns a holder's ledger balance for token.
func TokenBalanceOf(state StateDB, token Currency, holder common.Address) *big.Int {
	return tokenBalance(state, token, holder).ToBig()
}
