// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

func TestConfigVerify(t *testing.T) {
	cfg := testConfig()
	require.NoError(t, cfg.Verify())

	bad := cfg
	bad.WrappedNative = common.Address{}
	require.Error(t, bad.Verify())

	bad = cfg
	bad.BufferPeriodEndTime = cfg.PauseWindowEndTime - 1
	require.Error(t, bad.Verify())

	_, err := New(bad, testLogger())
	require.Error(t, err)
}

func TestConfigEqual(t *testing.T) {
	cfg := testConfig()
	other := testConfig()
	require.True(t, cfg.Equal(&other))
	require.False(t, cfg.Equal(nil))

	other.PauseWindowEndTime++
	require.False(t, cfg.Equal(&other))
}

func TestSetPaused(t *testing.T) {
	v, m := newTestVault(t)

	err := v.SetPaused(m, testSender, true)
	require.ErrorIs(t, err, ErrUnauthorized)
	require.False(t, v.isPaused(m))

	require.NoError(t, v.SetPaused(m, testAuthorizer, true))
	require.True(t, v.isPaused(m))

	require.NoError(t, v.SetPaused(m, testAuthorizer, false))
	require.False(t, v.isPaused(m))
}

func TestPauseWindowExpiry(t *testing.T) {
	v, m := newTestVault(t)

	// Past the pause window, pausing fails; unpausing still works.
	m.SetBlock(10, testConfig().PauseWindowEndTime)
	err := v.SetPaused(m, testAuthorizer, true)
	require.ErrorIs(t, err, ErrPauseExpired)
	require.NoError(t, v.SetPaused(m, testAuthorizer, false))
}

func TestPauseExpiresWithBufferPeriod(t *testing.T) {
	v, m := newTestVault(t)
	require.NoError(t, v.SetPaused(m, testAuthorizer, true))
	require.True(t, v.isPaused(m))

	// The flag stays set but stops having effect after the buffer period.
	m.SetBlock(10, testConfig().BufferPeriodEndTime)
	require.False(t, v.isPaused(m))
}

func TestEnterLatch(t *testing.T) {
	v, _ := newTestVault(t)

	release, err := v.enter()
	require.NoError(t, err)

	_, err = v.enter()
	require.ErrorIs(t, err, ErrReentrancy)

	release()
	release2, err := v.enter()
	require.NoError(t, err)
	release2()
}

func TestRelayerApprovalEvent(t *testing.T) {
	v, m := newTestVault(t)

	v.SetRelayerApproval(m, testSender, testRelayer, true)

	logs := m.Logs()
	require.NotEmpty(t, logs)
	last := logs[len(logs)-1]
	require.Equal(t, TopicRelayerApprovalChanged, last.Topics[0])
	require.Equal(t, addressWord(testSender), last.Topics[1])

	// Approvals are directional.
	require.True(t, v.HasApprovedRelayer(m, testSender, testRelayer))
	require.False(t, v.HasApprovedRelayer(m, testRelayer, testSender))
}
