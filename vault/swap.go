// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"math/big"

	"github.com/luxfi/geth/common"
)

// The swap engine executes an ordered list of steps against one or more
// pools, nets the per-token deltas across the whole batch, enforces the
// caller's limits, and settles the result. Steps see balances as mutated by
// earlier steps in the same batch; there is no stale view. Everything runs
// inside a journal, so a failure at any step leaves no trace.

// SingleSwap describes a one-step swap. Limit semantics depend on the kind:
// minimum amount out for GivenIn, maximum amount in for GivenOut.
type SingleSwap struct {
	Pool     PoolID
	Kind     SwapKind
	TokenIn  Currency
	TokenOut Currency
	Amount   *big.Int
	UserData []byte
}

// Swap executes a single swap with limit and deadline checks and settles it.
// It returns the calculated amount: out for GivenIn, in for GivenOut.
func (v *Vault) Swap(state StateDB, caller common.Address, swap SingleSwap, funds FundManagement, limit *big.Int, deadline uint64, attached *big.Int) (*big.Int, error) {
	release, err := v.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	if swap.Amount == nil || swap.Amount.Sign() == 0 {
		return nil, ErrUnknownAmountInFirstSwap
	}
	steps := []SwapStep{{
		Pool:     swap.Pool,
		TokenIn:  swap.TokenIn,
		TokenOut: swap.TokenOut,
		Amount:   swap.Amount,
		UserData: swap.UserData,
	}}

	// Express the single-swap limit in batch form: the given side is
	// bounded by the amount itself, the calculated side by the limit. A nil
	// limit means no minimum out for GivenIn and a zero in-budget for
	// GivenOut.
	if limit == nil {
		limit = big.NewInt(0)
	}
	var limits []*big.Int
	if swap.Kind == GivenIn {
		limits = []*big.Int{new(big.Int).Set(swap.Amount), new(big.Int).Neg(limit)}
	} else {
		limits = []*big.Int{new(big.Int).Set(limit), new(big.Int).Neg(swap.Amount)}
	}

	deltas, err := v.batchSwap(state, caller, swap.Kind, steps, limits, funds, deadline, attached)
	if err != nil {
		return nil, err
	}
	if swap.Kind == GivenIn {
		return new(big.Int).Neg(deltas[1]), nil
	}
	return deltas[0], nil
}

// BatchSwap executes a batch of swap steps and settles the net result.
// limits is aligned with the distinct-token list derived from the steps in
// order of first appearance (see DeriveAssets); each net delta must satisfy
// delta <= limit. The returned deltas use the same alignment: positive means
// the sender paid, negative means the recipient received.
func (v *Vault) BatchSwap(state StateDB, caller common.Address, kind SwapKind, steps []SwapStep, limits []*big.Int, funds FundManagement, deadline uint64, attached *big.Int) ([]*big.Int, error) {
	release, err := v.enter()
	if err != nil {
		return nil, err
	}
	defer release()
	return v.batchSwap(state, caller, kind, steps, limits, funds, deadline, attached)
}

// QueryBatchSwap simulates a batch swap and returns the net deltas without
// mutating any state or settling funds. Strategy failures surface with their
// original reason so callers can tell "would revert because X" apart from
// "cannot simulate".
func (v *Vault) QueryBatchSwap(state StateDB, kind SwapKind, steps []SwapStep, funds FundManagement) ([]*big.Int, error) {
	release, err := v.enter()
	if err != nil {
		return nil, err
	}
	defer release()

	assets, index := DeriveAssets(steps)

	// Writes land in a journal that is deliberately never committed.
	j := newJournal(state)
	deltas, err := v.executeSteps(j, kind, steps, funds, assets, index)
	if err != nil {
		return nil, err
	}
	return deltas, nil
}

func (v *Vault) batchSwap(state StateDB, caller common.Address, kind SwapKind, steps []SwapStep, limits []*big.Int, funds FundManagement, deadline uint64, attached *big.Int) ([]*big.Int, error) {
	if state.GetBlockTime() > deadline {
		return nil, ErrDeadlineExpired
	}
	if v.isPaused(state) {
		return nil, ErrPaused
	}
	if err := v.authenticateFor(state, caller, funds.Sender); err != nil {
		return nil, err
	}

	assets, index := DeriveAssets(steps)
	if len(limits) != len(assets) {
		return nil, ErrLimitsLengthMismatch
	}

	attachedU, err := bigToAmount(attached)
	if err != nil {
		return nil, err
	}

	j := newJournal(state)
	deltas, err := v.executeSteps(j, kind, steps, funds, assets, index)
	if err != nil {
		return nil, err
	}

	for i, delta := range deltas {
		if limits[i] == nil || delta.Cmp(limits[i]) > 0 {
			return nil, ErrSwapLimitExceeded
		}
	}

	native, err := takeAttached(j, caller, attachedU)
	if err != nil {
		return nil, err
	}
	for i, delta := range deltas {
		switch delta.Sign() {
		case 1:
			amount, err := bigToAmount(delta)
			if err != nil {
				return nil, err
			}
			if err := v.receiveAsset(j, assets[i], amount, funds.Sender, funds.FromInternalBalance, native); err != nil {
				return nil, err
			}
		case -1:
			amount, err := bigToAmount(new(big.Int).Neg(delta))
			if err != nil {
				return nil, err
			}
			if err := v.sendAsset(j, assets[i], amount, funds.Recipient, funds.ToInternalBalance); err != nil {
				return nil, err
			}
		}
	}
	native.refundExcess(j)
	j.commit()

	v.log.Debug("batch swap settled", "steps", len(steps), "assets", len(assets), "sender", funds.Sender)
	return deltas, nil
}

// DeriveAssets returns the distinct tokens a batch touches, in order of
// first appearance, with an index lookup. Limits and returned deltas align
// with this order.
func DeriveAssets(steps []SwapStep) ([]Currency, map[Currency]int) {
	assets := make([]Currency, 0, len(steps)*2)
	index := make(map[Currency]int)
	add := func(c Currency) {
		if _, ok := index[c]; !ok {
			index[c] = len(assets)
			assets = append(assets, c)
		}
	}
	for _, step := range steps {
		add(step.TokenIn)
		add(step.TokenOut)
	}
	return assets, index
}

// executeSteps runs every step in order against state, returning net deltas
// aligned with assets. A zero step amount means "use the previous step's
// calculated amount", valid only after the first step and only when the
// steps chain on the token the previous step calculated.
func (v *Vault) executeSteps(state StateDB, kind SwapKind, steps []SwapStep, funds FundManagement, assets []Currency, index map[Currency]int) ([]*big.Int, error) {
	deltas := make([]*big.Int, len(assets))
	for i := range deltas {
		deltas[i] = big.NewInt(0)
	}

	var (
		previousCalculated *big.Int
		previousToken      Currency
		havePrevious       bool
	)

	for i, step := range steps {
		// Pools know nothing of the native sentinel: compare and price on
		// the ledger tokens, settle on the raw assets.
		if v.translateToLedger(step.TokenIn) == v.translateToLedger(step.TokenOut) {
			return nil, ErrCannotSwapSameToken
		}

		amount := step.Amount
		if amount == nil || amount.Sign() == 0 {
			if i == 0 {
				return nil, ErrUnknownAmountInFirstSwap
			}
			// The previous step's calculated token must be this
			// step's given token, or the hop chain is broken.
			given := step.TokenIn
			if kind == GivenOut {
				given = step.TokenOut
			}
			if !havePrevious || previousToken != given {
				return nil, ErrMalconstructedMultihop
			}
			amount = previousCalculated
		}

		amountIn, amountOut, calculated, err := v.swapWithPool(state, kind, step, amount, funds)
		if err != nil {
			return nil, err
		}

		deltas[index[step.TokenIn]].Add(deltas[index[step.TokenIn]], amountIn)
		deltas[index[step.TokenOut]].Sub(deltas[index[step.TokenOut]], amountOut)

		previousCalculated = calculated
		if kind == GivenIn {
			previousToken = step.TokenOut
		} else {
			previousToken = step.TokenIn
		}
		havePrevious = true
	}
	return deltas, nil
}

// swapWithPool prices one step against its pool's strategy and applies the
// cash movement. Strategy errors propagate unchanged so pool-specific
// failure reasons reach the caller intact.
func (v *Vault) swapWithPool(state StateDB, kind SwapKind, step SwapStep, amount *big.Int, funds FundManagement) (amountIn, amountOut, calculated *big.Int, err error) {
	if !poolExists(state, step.Pool) {
		return nil, nil, nil, ErrPoolNotFound
	}
	strategy, ok := v.strategyFor(step.Pool)
	if !ok {
		return nil, nil, nil, ErrPoolNotFound
	}
	tokenIn := v.translateToLedger(step.TokenIn)
	tokenOut := v.translateToLedger(step.TokenOut)
	indexIn, registered := tokenIndex(state, step.Pool, tokenIn)
	if !registered {
		return nil, nil, nil, ErrTokenNotRegistered
	}
	indexOut, registered := tokenIndex(state, step.Pool, tokenOut)
	if !registered {
		return nil, nil, nil, ErrTokenNotRegistered
	}

	recIn := readBalance(state, step.Pool, tokenIn)
	recOut := readBalance(state, step.Pool, tokenOut)

	lastChange := recIn.LastChangeBlock
	if recOut.LastChangeBlock > lastChange {
		lastChange = recOut.LastChangeBlock
	}
	request := &SwapRequest{
		Kind:            kind,
		TokenIn:         tokenIn,
		TokenOut:        tokenOut,
		Amount:          amount,
		PoolID:          step.Pool,
		LastChangeBlock: uint64(lastChange),
		Sender:          funds.Sender,
		Recipient:       funds.Recipient,
		UserData:        step.UserData,
	}

	switch step.Pool.Specialization() {
	case SpecGeneral:
		pool, ok := strategy.(GeneralPool)
		if !ok {
			return nil, nil, nil, ErrStrategyKind
		}
		_, balances, berr := v.GetPoolBalances(state, step.Pool)
		if berr != nil {
			return nil, nil, nil, berr
		}
		calculated, err = pool.OnSwapGeneral(request, balances, int(indexIn), int(indexOut))
	default:
		pool, ok := strategy.(MinimalSwapInfoPool)
		if !ok {
			return nil, nil, nil, ErrStrategyKind
		}
		totalIn, terr := recIn.Total()
		if terr != nil {
			return nil, nil, nil, terr
		}
		totalOut, terr := recOut.Total()
		if terr != nil {
			return nil, nil, nil, terr
		}
		calculated, err = pool.OnSwap(request, totalIn.ToBig(), totalOut.ToBig())
	}
	if err != nil {
		return nil, nil, nil, err
	}
	if calculated == nil || calculated.Sign() < 0 {
		return nil, nil, nil, ErrNegativeAmount
	}

	if kind == GivenIn {
		amountIn, amountOut = amount, calculated
	} else {
		amountIn, amountOut = calculated, amount
	}

	fieldIn, err := bigToField(amountIn)
	if err != nil {
		return nil, nil, nil, err
	}
	fieldOut, err := bigToField(amountOut)
	if err != nil {
		return nil, nil, nil, err
	}

	block := uint32(state.GetBlockNumber())
	updatedIn, err := increaseCash(recIn, fieldIn)
	if err != nil {
		return nil, nil, nil, err
	}
	updatedOut, err := decreaseCash(recOut, fieldOut)
	if err != nil {
		return nil, nil, nil, err
	}
	writeBalance(state, step.Pool, tokenIn, withLastChangeBlock(updatedIn, block))
	writeBalance(state, step.Pool, tokenOut, withLastChangeBlock(updatedOut, block))

	emitSwap(state, step.Pool, tokenIn, tokenOut, amountIn, amountOut)
	return amountIn, amountOut, calculated, nil
}
