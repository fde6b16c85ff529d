// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"math/big"

	"github.com/luxfi/geth/common"
)

// =========================================================================
// Pool registration
// =========================================================================

var poolNonceKey = storageKey(poolNoncePrefix, nil)

// RegisterPool allocates a pool ID for caller with the given specialization,
// fixed forever, and binds the pricing strategy the vault will invoke for it.
// General pools must supply a GeneralPool strategy, the other tiers a
// MinimalSwapInfoPool.
func (v *Vault) RegisterPool(state StateDB, caller common.Address, spec Specialization, strategy any) (PoolID, error) {
	if v.isPaused(state) {
		return PoolID{}, ErrPaused
	}
	switch spec {
	case SpecGeneral:
		if _, ok := strategy.(GeneralPool); !ok {
			return PoolID{}, ErrStrategyKind
		}
	case SpecMinimalSwapInfo, SpecTwoToken:
		if _, ok := strategy.(MinimalSwapInfoPool); !ok {
			return PoolID{}, ErrStrategyKind
		}
	default:
		return PoolID{}, ErrStrategyKind
	}

	nonce := wordU64(state.GetState(VaultAddress, poolNonceKey))
	poolID := newPoolID(caller, spec, nonce)
	state.SetState(VaultAddress, poolNonceKey, u64Word(nonce+1))
	setPoolMeta(state, poolID, 0)
	v.setStrategy(poolID, strategy)

	emitPoolRegistered(state, poolID, caller, spec)
	v.log.Info("pool registered", "poolID", common.Hash(poolID), "pool", caller, "specialization", spec.String())
	return poolID, nil
}

// BindStrategy re-attaches a pricing strategy to an existing pool. Pool
// records persist in state while strategies live in memory, so a restarted
// process rebinds before serving swaps. Only the pool controller may call it.
func (v *Vault) BindStrategy(state StateDB, caller common.Address, poolID PoolID, strategy any) error {
	if caller != poolID.Pool() {
		return ErrUnauthorized
	}
	if !poolExists(state, poolID) {
		return ErrPoolNotFound
	}
	switch poolID.Specialization() {
	case SpecGeneral:
		if _, ok := strategy.(GeneralPool); !ok {
			return ErrStrategyKind
		}
	default:
		if _, ok := strategy.(MinimalSwapInfoPool); !ok {
			return ErrStrategyKind
		}
	}
	v.setStrategy(poolID, strategy)
	return nil
}

// =========================================================================
// Token registration
// =========================================================================

// RegisterTokens adds tokens to a pool, each starting with a zeroed balance
// record and an optional asset manager (zero address for none). Only the
// pool's own controller may call it. TwoToken pools must register exactly
// their sorted pair in one call.
func (v *Vault) RegisterTokens(state StateDB, caller common.Address, poolID PoolID, tokens []Currency, managers []common.Address) error {
	if v.isPaused(state) {
		return ErrPaused
	}
	if caller != poolID.Pool() {
		return ErrUnauthorized
	}
	if !poolExists(state, poolID) {
		return ErrPoolNotFound
	}
	if len(tokens) != len(managers) {
		return ErrLengthMismatch
	}

	j := newJournal(state)
	count := poolTokenCount(j, poolID)

	if poolID.Specialization() == SpecTwoToken {
		if count != 0 || len(tokens) != 2 {
			return ErrInvalidTokenCount
		}
		if tokens[0].Cmp(tokens[1]) >= 0 {
			return ErrTokensMismatch
		}
	}

	for i, token := range tokens {
		if token.Address == (common.Address{}) {
			return ErrInvalidToken
		}
		if _, registered := tokenIndex(j, poolID, token); registered {
			return ErrTokenAlreadyRegistered
		}
		j.SetState(VaultAddress, poolListKey(poolID, count), addressWord(token.Address))
		j.SetState(VaultAddress, poolTokenKey(poolIndexPrefix, poolID, token), u64Word(uint64(count)+1))
		j.SetState(VaultAddress, poolTokenKey(poolBalancePrefix, poolID, token), encodeBalance(newBalanceRecord()))
		if managers[i] != (common.Address{}) {
			j.SetState(VaultAddress, poolTokenKey(assetManagerPrefix, poolID, token), addressWord(managers[i]))
		}
		count++
	}
	setPoolMeta(j, poolID, count)
	emitTokensRegistered(j, poolID, tokens, managers)
	j.commit()

	v.log.Info("tokens registered", "poolID", common.Hash(poolID), "count", len(tokens))
	return nil
}

// DeregisterTokens removes tokens from a pool. Every named token must hold a
// zero balance. TwoToken pools deregister their full pair atomically or not
// at all; the other tiers allow subsets.
func (v *Vault) DeregisterTokens(state StateDB, caller common.Address, poolID PoolID, tokens []Currency) error {
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
	count := poolTokenCount(j, poolID)

	if poolID.Specialization() == SpecTwoToken {
		if len(tokens) != int(count) {
			return ErrTokensMismatch
		}
	}

	for _, token := range tokens {
		index, registered := tokenIndex(j, poolID, token)
		if !registered {
			return ErrTokenNotRegistered
		}
		if !readBalance(j, poolID, token).IsZero() {
			return ErrNonZeroBalance
		}

		// Compact the ordered list so the remaining tokens keep their
		// insertion order.
		for i := index + 1; i < count; i++ {
			moved := wordAddress(j.GetState(VaultAddress, poolListKey(poolID, i)))
			j.SetState(VaultAddress, poolListKey(poolID, i-1), addressWord(moved))
			j.SetState(VaultAddress, poolTokenKey(poolIndexPrefix, poolID, Currency{Address: moved}), u64Word(uint64(i)))
		}
		count--
		j.SetState(VaultAddress, poolListKey(poolID, count), common.Hash{})
		j.SetState(VaultAddress, poolTokenKey(poolIndexPrefix, poolID, token), common.Hash{})
		j.SetState(VaultAddress, poolTokenKey(poolBalancePrefix, poolID, token), common.Hash{})
		j.SetState(VaultAddress, poolTokenKey(assetManagerPrefix, poolID, token), common.Hash{})
	}
	setPoolMeta(j, poolID, count)
	emitTokensDeregistered(j, poolID, tokens)
	j.commit()

	v.log.Info("tokens deregistered", "poolID", common.Hash(poolID), "count", len(tokens))
	return nil
}

// =========================================================================
// Queries
// =========================================================================

// GetPoolTokens returns the pool's registered tokens in listing order:
// insertion order for General and MinimalSwapInfo pools, the sorted pair for
// TwoToken pools.
func (v *Vault) GetPoolTokens(state StateDB, poolID PoolID) ([]Currency, error) {
	if !poolExists(state, poolID) {
		return nil, ErrPoolNotFound
	}
	return poolTokens(state, poolID), nil
}

// PoolTokenInfo is the queryable view of one token's balance record.
type PoolTokenInfo struct {
	Cash            *big.Int
	Managed         *big.Int
	LastChangeBlock uint64
	AssetManager    common.Address
}

// GetPoolTokenInfo returns the balance record for one registered token.
// A pool with no registered tokens answers exactly like an unknown token.
func (v *Vault) GetPoolTokenInfo(state StateDB, poolID PoolID, token Currency) (PoolTokenInfo, error) {
	if !poolExists(state, poolID) {
		return PoolTokenInfo{}, ErrPoolNotFound
	}
	if _, registered := tokenIndex(state, poolID, token); !registered {
		return PoolTokenInfo{}, ErrTokenNotRegistered
	}
	rec := readBalance(state, poolID, token)
	return PoolTokenInfo{
		Cash:            rec.Cash.ToBig(),
		Managed:         rec.Managed.ToBig(),
		LastChangeBlock: uint64(rec.LastChangeBlock),
		AssetManager:    wordAddress(state.GetState(VaultAddress, poolTokenKey(assetManagerPrefix, poolID, token))),
	}, nil
}

// GetPoolBalances returns each registered token's total balance
// (cash+managed) in listing order.
func (v *Vault) GetPoolBalances(state StateDB, poolID PoolID) ([]Currency, []*big.Int, error) {
	tokens, err := v.GetPoolTokens(state, poolID)
	if err != nil {
		return nil, nil, err
	}
	balances := make([]*big.Int, len(tokens))
	for i, token := range tokens {
		total, err := readBalance(state, poolID, token).Total()
		if err != nil {
			return nil, nil, err
		}
		balances[i] = total.ToBig()
	}
	return tokens, balances, nil
}

// =========================================================================
// Internal accessors
// =========================================================================

func poolMetaKey(poolID PoolID) common.Hash {
	return storageKey(poolMetaPrefix, poolID[:])
}

// The pool meta word holds an existence marker in the top byte and the token
// count in the low 64 bits.
func setPoolMeta(state StateDB, poolID PoolID, count uint32) {
	w := u64Word(uint64(count))
	w[0] = 1
	state.SetState(VaultAddress, poolMetaKey(poolID), w)
}

func poolExists(state StateDB, poolID PoolID) bool {
	return state.GetState(VaultAddress, poolMetaKey(poolID))[0] == 1
}

func poolTokenCount(state StateDB, poolID PoolID) uint32 {
	w := state.GetState(VaultAddress, poolMetaKey(poolID))
	w[0] = 0
	return uint32(wordU64(w))
}

func poolTokens(state StateDB, poolID PoolID) []Currency {
	count := poolTokenCount(state, poolID)
	tokens := make([]Currency, count)
	for i := uint32(0); i < count; i++ {
		tokens[i] = Currency{Address: wordAddress(state.GetState(VaultAddress, poolListKey(poolID, i)))}
	}
	return tokens
}

// tokenIndex returns a token's position in the pool's listing order.
func tokenIndex(state StateDB, poolID PoolID, token Currency) (uint32, bool) {
	raw := wordU64(state.GetState(VaultAddress, poolTokenKey(poolIndexPrefix, poolID, token)))
	if raw == 0 {
		return 0, false
	}
	return uint32(raw - 1), true
}

func readBalance(state StateDB, poolID PoolID, token Currency) balanceRecord {
	return decodeBalance(state.GetState(VaultAddress, poolTokenKey(poolBalancePrefix, poolID, token)))
}

func writeBalance(state StateDB, poolID PoolID, token Currency, rec balanceRecord) {
	state.SetState(VaultAddress, poolTokenKey(poolBalancePrefix, poolID, token), encodeBalance(rec))
}

func assetManagerFor(state StateDB, poolID PoolID, token Currency) common.Address {
	return wordAddress(state.GetState(VaultAddress, poolTokenKey(assetManagerPrefix, poolID, token)))
}
