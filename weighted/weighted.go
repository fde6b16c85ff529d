// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package weighted implements a constant-mean pricing strategy: a pool of
// tokens whose balances, raised to fixed integer weights, keep a constant
// product. Equal weights degenerate to the familiar constant-product curve.
package weighted

import (
	"errors"
	"math/big"

	"github.com/luxfi/amm/vault"
)

const (
	// FeeDenominator expresses swap fees in parts per million.
	FeeDenominator = 1_000_000

	// MaxWeight bounds individual weights so invariant exponentiation stays
	// cheap.
	MaxWeight = 50

	// maxSearchBits bounds the binary search for the unequal-weight case.
	maxSearchBits = 256
)

var (
	ErrNoWeights      = errors.New("pool needs at least two weights")
	ErrZeroWeight     = errors.New("weight must be positive")
	ErrWeightTooLarge = errors.New("weight exceeds maximum")
	ErrFeeTooHigh     = errors.New("swap fee must be below the denominator")
	ErrZeroBalance    = errors.New("pool balance is zero")
	ErrDrainedPool    = errors.New("requested amount drains the pool")
	ErrIndexRange     = errors.New("token index out of range")
)

// Pool prices swaps against fixed integer weights and a parts-per-million
// swap fee. It serves both the pair-balance and full-vector strategy entry
// points; the pair form assumes indexes 0 and 1.
type Pool struct {
	weights []uint64
	feePPM  uint64
}

// New validates weights and fee and returns a pricing strategy.
func New(weights []uint64, feePPM uint64) (*Pool, error) {
	if len(weights) < 2 {
		return nil, ErrNoWeights
	}
	for _, w := range weights {
		if w == 0 {
			return nil, ErrZeroWeight
		}
		if w > MaxWeight {
			return nil, ErrWeightTooLarge
		}
	}
	if feePPM >= FeeDenominator {
		return nil, ErrFeeTooHigh
	}
	return &Pool{weights: append([]uint64(nil), weights...), feePPM: feePPM}, nil
}

// OnSwap prices against the in/out pair, using the first two weights.
func (p *Pool) OnSwap(req *vault.SwapRequest, balanceIn, balanceOut *big.Int) (*big.Int, error) {
	return p.price(req.Kind, req.Amount, balanceIn, balanceOut, 0, 1)
}

// OnSwapGeneral prices against the full balance vector.
func (p *Pool) OnSwapGeneral(req *vault.SwapRequest, balances []*big.Int, indexIn, indexOut int) (*big.Int, error) {
	if indexIn < 0 || indexIn >= len(p.weights) || indexOut < 0 || indexOut >= len(p.weights) {
		return nil, ErrIndexRange
	}
	if indexIn >= len(balances) || indexOut >= len(balances) {
		return nil, ErrIndexRange
	}
	return p.price(req.Kind, req.Amount, balances[indexIn], balances[indexOut], indexIn, indexOut)
}

func (p *Pool) price(kind vault.SwapKind, amount, balanceIn, balanceOut *big.Int, indexIn, indexOut int) (*big.Int, error) {
	if balanceIn == nil || balanceIn.Sign() <= 0 || balanceOut == nil || balanceOut.Sign() <= 0 {
		return nil, ErrZeroBalance
	}
	if kind == vault.GivenIn {
		net := p.netOfFee(amount)
		return p.amountOut(net, balanceIn, balanceOut, p.weights[indexIn], p.weights[indexOut])
	}
	net, err := p.amountIn(amount, balanceIn, balanceOut, p.weights[indexIn], p.weights[indexOut])
	if err != nil {
		return nil, err
	}
	return p.grossOfFee(net), nil
}

// netOfFee deducts the swap fee from an in amount, rounding in the pool's
// favor.
func (p *Pool) netOfFee(amount *big.Int) *big.Int {
	net := new(big.Int).Mul(amount, big.NewInt(FeeDenominator-int64(p.feePPM)))
	return net.Quo(net, big.NewInt(FeeDenominator))
}

// grossOfFee adds the swap fee on top of a net in amount, rounding up.
func (p *Pool) grossOfFee(net *big.Int) *big.Int {
	num := new(big.Int).Mul(net, big.NewInt(FeeDenominator))
	den := big.NewInt(FeeDenominator - int64(p.feePPM))
	num.Add(num, new(big.Int).Sub(den, big.NewInt(1)))
	return num.Quo(num, den)
}

// amountOut returns the out amount preserving the weighted invariant for a
// fee-free in amount. Equal weights use the constant-product closed form;
// unequal weights binary-search the largest out the invariant admits.
func (p *Pool) amountOut(net, balanceIn, balanceOut *big.Int, weightIn, weightOut uint64) (*big.Int, error) {
	if weightIn == weightOut {
		// out = bOut*net/(bIn+net), flooring toward the pool.
		num := new(big.Int).Mul(balanceOut, net)
		den := new(big.Int).Add(balanceIn, net)
		return num.Quo(num, den), nil
	}

	before := invariantPair(balanceIn, balanceOut, weightIn, weightOut)
	newIn := new(big.Int).Add(balanceIn, net)

	// Largest out in [0, balanceOut) keeping the invariant non-decreasing.
	lo := big.NewInt(0)
	hi := new(big.Int).Sub(balanceOut, big.NewInt(1))
	if hi.Sign() < 0 {
		return big.NewInt(0), nil
	}
	for i := 0; i < maxSearchBits && lo.Cmp(hi) < 0; i++ {
		mid := new(big.Int).Add(lo, hi)
		mid.Add(mid, big.NewInt(1)).Rsh(mid, 1)
		newOut := new(big.Int).Sub(balanceOut, mid)
		if invariantPair(newIn, newOut, weightIn, weightOut).Cmp(before) >= 0 {
			lo = mid
		} else {
			hi = new(big.Int).Sub(mid, big.NewInt(1))
		}
	}
	return lo, nil
}

// amountIn returns the smallest fee-free in amount that yields the requested
// out amount under the weighted invariant.
func (p *Pool) amountIn(out, balanceIn, balanceOut *big.Int, weightIn, weightOut uint64) (*big.Int, error) {
	if out.Cmp(balanceOut) >= 0 {
		return nil, ErrDrainedPool
	}
	newOut := new(big.Int).Sub(balanceOut, out)

	if weightIn == weightOut {
		// in = bIn*out/(bOut-out), rounding up toward the pool.
		num := new(big.Int).Mul(balanceIn, out)
		num.Add(num, new(big.Int).Sub(newOut, big.NewInt(1)))
		return num.Quo(num, newOut), nil
	}

	before := invariantPair(balanceIn, balanceOut, weightIn, weightOut)

	// Smallest in with the invariant non-decreasing. The out side shrank,
	// so doubling the in side must eventually cross.
	lo := big.NewInt(1)
	hi := big.NewInt(1)
	for invariantPair(new(big.Int).Add(balanceIn, hi), newOut, weightIn, weightOut).Cmp(before) < 0 {
		hi = new(big.Int).Lsh(hi, 1)
	}
	for lo.Cmp(hi) < 0 {
		mid := new(big.Int).Add(lo, hi)
		mid.Rsh(mid, 1)
		if invariantPair(new(big.Int).Add(balanceIn, mid), newOut, weightIn, weightOut).Cmp(before) >= 0 {
			hi = mid
		} else {
			lo = new(big.Int).Add(mid, big.NewInt(1))
		}
	}
	return lo, nil
}

// invariantPair computes x^wx * y^wy for the two balances being traded. The
// untouched balances cancel out of the comparison, so the pair is enough.
func invariantPair(x, y *big.Int, wx, wy uint64) *big.Int {
	xi := new(big.Int).Exp(x, new(big.Int).SetUint64(wx), nil)
	yi := new(big.Int).Exp(y, new(big.Int).SetUint64(wy), nil)
	return xi.Mul(xi, yi)
}
