// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package weighted

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luxfi/amm/vault"
)

func givenIn(amount int64) *vault.SwapRequest {
	return &vault.SwapRequest{Kind: vault.GivenIn, Amount: big.NewInt(amount)}
}

func givenOut(amount int64) *vault.SwapRequest {
	return &vault.SwapRequest{Kind: vault.GivenOut, Amount: big.NewInt(amount)}
}

func TestNewValidation(t *testing.T) {
	_, err := New([]uint64{1}, 0)
	require.ErrorIs(t, err, ErrNoWeights)

	_, err = New([]uint64{1, 0}, 0)
	require.ErrorIs(t, err, ErrZeroWeight)

	_, err = New([]uint64{1, MaxWeight + 1}, 0)
	require.ErrorIs(t, err, ErrWeightTooLarge)

	_, err = New([]uint64{1, 1}, FeeDenominator)
	require.ErrorIs(t, err, ErrFeeTooHigh)

	p, err := New([]uint64{1, 1}, 3000)
	require.NoError(t, err)
	require.NotNil(t, p)
}

func TestEqualWeightsConstantProduct(t *testing.T) {
	p, err := New([]uint64{1, 1}, 0)
	require.NoError(t, err)

	// out = 100000*1000/(100000+1000) = 990 (floored).
	out, err := p.OnSwap(givenIn(1000), big.NewInt(100_000), big.NewInt(100_000))
	require.NoError(t, err)
	require.Equal(t, big.NewInt(990), out)

	// The inverse direction needs at least as much in as the forward
	// direction charged.
	in, err := p.OnSwap(givenOut(990), big.NewInt(100_000), big.NewInt(100_000))
	require.NoError(t, err)
	require.True(t, in.Cmp(big.NewInt(1000)) <= 0)
	require.True(t, in.Cmp(big.NewInt(998)) >= 0)
}

func TestSwapFeeReducesOutput(t *testing.T) {
	// A 0.3% fee prices like the classic 997/1000 router formula.
	p, err := New([]uint64{1, 1}, 3000)
	require.NoError(t, err)

	out, err := p.OnSwap(givenIn(1000), big.NewInt(100_000), big.NewInt(100_000))
	require.NoError(t, err)
	// net = 997; out = 100000*997/100997 = 987.
	require.Equal(t, big.NewInt(987), out)

	noFee, err := New([]uint64{1, 1}, 0)
	require.NoError(t, err)
	freeOut, err := noFee.OnSwap(givenIn(1000), big.NewInt(100_000), big.NewInt(100_000))
	require.NoError(t, err)
	require.True(t, out.Cmp(freeOut) < 0)
}

func TestSwapFeeGrossedUpOnGivenOut(t *testing.T) {
	p, err := New([]uint64{1, 1}, 3000)
	require.NoError(t, err)

	in, err := p.OnSwap(givenOut(987), big.NewInt(100_000), big.NewInt(100_000))
	require.NoError(t, err)

	// Whatever it charges must round against the trader: feeding the
	// charged amount back through given-in must cover the request.
	out, err := p.OnSwap(givenIn(in.Int64()), big.NewInt(100_000), big.NewInt(100_000))
	require.NoError(t, err)
	require.True(t, out.Cmp(big.NewInt(987)) >= 0)
}

func TestUnequalWeightsFavorHeavySide(t *testing.T) {
	// An 80/20 pool with equal balances prices the heavy token dearer than
	// a 50/50 pool does.
	heavy, err := New([]uint64{4, 1}, 0)
	require.NoError(t, err)
	even, err := New([]uint64{1, 1}, 0)
	require.NoError(t, err)

	heavyOut, err := heavy.OnSwap(givenIn(1000), big.NewInt(100_000), big.NewInt(100_000))
	require.NoError(t, err)
	evenOut, err := even.OnSwap(givenIn(1000), big.NewInt(100_000), big.NewInt(100_000))
	require.NoError(t, err)
	require.True(t, heavyOut.Cmp(evenOut) > 0, "heavy-in side should buy more: %s vs %s", heavyOut, evenOut)
}

func TestUnequalWeightsPreserveInvariant(t *testing.T) {
	p, err := New([]uint64{3, 2}, 0)
	require.NoError(t, err)

	bIn, bOut := big.NewInt(50_000), big.NewInt(80_000)
	out, err := p.OnSwap(givenIn(5000), bIn, bOut)
	require.NoError(t, err)
	require.True(t, out.Sign() > 0)

	before := invariantPair(bIn, bOut, 3, 2)
	after := invariantPair(
		new(big.Int).Add(bIn, big.NewInt(5000)),
		new(big.Int).Sub(bOut, out), 3, 2)
	require.True(t, after.Cmp(before) >= 0, "invariant decreased")

	// One more unit out would break it.
	broken := invariantPair(
		new(big.Int).Add(bIn, big.NewInt(5000)),
		new(big.Int).Sub(bOut, new(big.Int).Add(out, big.NewInt(1))), 3, 2)
	require.True(t, broken.Cmp(before) < 0, "out amount not maximal")
}

func TestUnequalWeightsGivenOutRoundTrip(t *testing.T) {
	p, err := New([]uint64{3, 2}, 0)
	require.NoError(t, err)

	bIn, bOut := big.NewInt(50_000), big.NewInt(80_000)
	in, err := p.OnSwap(givenOut(4000), bIn, bOut)
	require.NoError(t, err)

	// Charging that much in must buy at least the requested out.
	out, err := p.OnSwap(givenIn(in.Int64()), bIn, bOut)
	require.NoError(t, err)
	require.True(t, out.Cmp(big.NewInt(4000)) >= 0)
}

func TestOnSwapGeneralIndexes(t *testing.T) {
	p, err := New([]uint64{1, 2, 1}, 0)
	require.NoError(t, err)

	balances := []*big.Int{big.NewInt(100_000), big.NewInt(200_000), big.NewInt(100_000)}
	out, err := p.OnSwapGeneral(givenIn(1000), balances, 0, 2)
	require.NoError(t, err)
	require.True(t, out.Sign() > 0)

	_, err = p.OnSwapGeneral(givenIn(1000), balances, 0, 3)
	require.ErrorIs(t, err, ErrIndexRange)
	_, err = p.OnSwapGeneral(givenIn(1000), balances[:2], 0, 2)
	require.ErrorIs(t, err, ErrIndexRange)
}

func TestErrorCases(t *testing.T) {
	p, err := New([]uint64{1, 1}, 0)
	require.NoError(t, err)

	_, err = p.OnSwap(givenIn(1000), big.NewInt(0), big.NewInt(100))
	require.ErrorIs(t, err, ErrZeroBalance)

	_, err = p.OnSwap(givenOut(100), big.NewInt(100), big.NewInt(100))
	require.ErrorIs(t, err, ErrDrainedPool)
}
