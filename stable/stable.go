// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package stable implements a stableswap pricing strategy: an amplified
// invariant that trades near parity while balances are even and degrades
// toward constant-product as they drift apart.
package stable

import (
	"errors"
	"math/big"

	"github.com/luxfi/amm/vault"
)

const (
	// FeeDenominator expresses swap fees in parts per million.
	FeeDenominator = 1_000_000

	// MinAmplification and MaxAmplification bound the amplification
	// coefficient. One is plain constant-product behavior.
	MinAmplification = 1
	MaxAmplification = 5000

	// maxIterations caps Newton iteration for both the invariant and the
	// post-swap balance solve.
	maxIterations = 255
)

var (
	ErrAmplificationRange = errors.New("amplification out of range")
	ErrFeeTooHigh         = errors.New("swap fee must be below the denominator")
	ErrTooFewTokens       = errors.New("pool needs at least two tokens")
	ErrZeroBalance        = errors.New("pool balance is zero")
	ErrDrainedPool        = errors.New("requested amount drains the pool")
	ErrIndexRange         = errors.New("token index out of range")
	ErrNoConvergence      = errors.New("invariant iteration did not converge")
)

// Pool prices swaps with the stableswap invariant at a fixed amplification
// and a parts-per-million swap fee. The pair entry point treats the two
// balances as the whole pool.
type Pool struct {
	amp    uint64
	feePPM uint64
}

// New validates the amplification coefficient and fee.
func New(amplification, feePPM uint64) (*Pool, error) {
	if amplification < MinAmplification || amplification > MaxAmplification {
		return nil, ErrAmplificationRange
	}
	if feePPM >= FeeDenominator {
		return nil, ErrFeeTooHigh
	}
	return &Pool{amp: amplification, feePPM: feePPM}, nil
}

// OnSwap prices against the in/out pair as a two-token pool.
func (p *Pool) OnSwap(req *vault.SwapRequest, balanceIn, balanceOut *big.Int) (*big.Int, error) {
	return p.price(req.Kind, req.Amount, []*big.Int{balanceIn, balanceOut}, 0, 1)
}

// OnSwapGeneral prices against the full balance vector.
func (p *Pool) OnSwapGeneral(req *vault.SwapRequest, balances []*big.Int, indexIn, indexOut int) (*big.Int, error) {
	return p.price(req.Kind, req.Amount, balances, indexIn, indexOut)
}

func (p *Pool) price(kind vault.SwapKind, amount *big.Int, balances []*big.Int, indexIn, indexOut int) (*big.Int, error) {
	if len(balances) < 2 {
		return nil, ErrTooFewTokens
	}
	if indexIn < 0 || indexIn >= len(balances) || indexOut < 0 || indexOut >= len(balances) {
		return nil, ErrIndexRange
	}
	for _, b := range balances {
		if b == nil || b.Sign() <= 0 {
			return nil, ErrZeroBalance
		}
	}

	if kind == vault.GivenIn {
		net := p.netOfFee(amount)
		newIn := new(big.Int).Add(balances[indexIn], net)
		newOut, err := p.solveBalance(balances, indexIn, indexOut, newIn)
		if err != nil {
			return nil, err
		}
		out := new(big.Int).Sub(balances[indexOut], newOut)
		out.Sub(out, big.NewInt(1))
		if out.Sign() < 0 {
			out.SetInt64(0)
		}
		return out, nil
	}

	if amount.Cmp(balances[indexOut]) >= 0 {
		return nil, ErrDrainedPool
	}
	newOut := new(big.Int).Sub(balances[indexOut], amount)
	newIn, err := p.solveBalance(balances, indexOut, indexIn, newOut)
	if err != nil {
		return nil, err
	}
	net := new(big.Int).Sub(newIn, balances[indexIn])
	net.Add(net, big.NewInt(1))
	return p.grossOfFee(net), nil
}

func (p *Pool) netOfFee(amount *big.Int) *big.Int {
	net := new(big.Int).Mul(amount, big.NewInt(FeeDenominator-int64(p.feePPM)))
	return net.Quo(net, big.NewInt(FeeDenominator))
}

func (p *Pool) grossOfFee(net *big.Int) *big.Int {
	num := new(big.Int).Mul(net, big.NewInt(FeeDenominator))
	den := big.NewInt(FeeDenominator - int64(p.feePPM))
	num.Add(num, new(big.Int).Sub(den, big.NewInt(1)))
	return num.Quo(num, den)
}

// invariant computes D by Newton iteration: the value satisfying
//
//	Ann*S + D = Ann*D + D^(n+1) / (n^n * prod(x))
//
// where Ann is amp*n^n and S the balance sum.
func (p *Pool) invariant(balances []*big.Int) (*big.Int, error) {
	n := int64(len(balances))
	sum := new(big.Int)
	for _, b := range balances {
		sum.Add(sum, b)
	}
	if sum.Sign() == 0 {
		return new(big.Int), nil
	}

	ann := annCoefficient(p.amp, n)
	d := new(big.Int).Set(sum)
	one := big.NewInt(1)

	for i := 0; i < maxIterations; i++ {
		dp := new(big.Int).Set(d)
		for _, b := range balances {
			dp.Mul(dp, d)
			dp.Quo(dp, new(big.Int).Mul(b, big.NewInt(n)))
		}
		prev := new(big.Int).Set(d)

		// d = (ann*sum + dp*n) * d / ((ann-1)*d + (n+1)*dp)
		num := new(big.Int).Mul(ann, sum)
		num.Add(num, new(big.Int).Mul(dp, big.NewInt(n)))
		num.Mul(num, d)
		den := new(big.Int).Mul(new(big.Int).Sub(ann, one), d)
		den.Add(den, new(big.Int).Mul(dp, big.NewInt(n+1)))
		d.Quo(num, den)

		if converged(d, prev) {
			return d, nil
		}
	}
	return nil, ErrNoConvergence
}

// solveBalance returns the post-swap balance of token j once token i's
// balance is replaced by newI, holding the invariant fixed.
func (p *Pool) solveBalance(balances []*big.Int, i, j int, newI *big.Int) (*big.Int, error) {
	d, err := p.invariant(balances)
	if err != nil {
		return nil, err
	}
	n := int64(len(balances))
	ann := annCoefficient(p.amp, n)

	c := new(big.Int).Set(d)
	s := new(big.Int)
	for k, b := range balances {
		if k == j {
			continue
		}
		x := b
		if k == i {
			x = newI
		}
		s.Add(s, x)
		c.Mul(c, d)
		c.Quo(c, new(big.Int).Mul(x, big.NewInt(n)))
	}
	c.Mul(c, d)
	c.Quo(c, new(big.Int).Mul(ann, big.NewInt(n)))

	b := new(big.Int).Add(s, new(big.Int).Quo(d, ann))
	y := new(big.Int).Set(d)

	for it := 0; it < maxIterations; it++ {
		prev := new(big.Int).Set(y)

		// y = (y*y + c) / (2y + b - d)
		num := new(big.Int).Mul(y, y)
		num.Add(num, c)
		den := new(big.Int).Lsh(y, 1)
		den.Add(den, b)
		den.Sub(den, d)
		y.Quo(num, den)

		if converged(y, prev) {
			return y, nil
		}
	}
	return nil, ErrNoConvergence
}

func annCoefficient(amp uint64, n int64) *big.Int {
	nn := new(big.Int).Exp(big.NewInt(n), big.NewInt(n), nil)
	return nn.Mul(nn, new(big.Int).SetUint64(amp))
}

func converged(a, b *big.Int) bool {
	diff := new(big.Int).Sub(a, b)
	return diff.CmpAbs(big.NewInt(1)) <= 0
}
