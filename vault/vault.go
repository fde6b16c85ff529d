// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"sync"
	"sync/atomic"

	"github.com/luxfi/geth/common"
	log "github.com/luxfi/log"
)

// Vault is the singleton accounting and settlement engine. All persistent
// state lives in the StateDB passed to each operation; the Vault itself only
// holds configuration, the strategy registry and the reentrancy latch, so a
// single Vault can serve any number of state views.
type Vault struct {
	// mu protects the strategy registry.
	mu sync.RWMutex

	// entered rejects nested or concurrent engine entry. Strategy
	// callbacks run while mid-batch balances are a transient view, so a
	// callback that re-invokes the vault is an error, not a wait.
	entered atomic.Bool

	log        log.Logger
	cfg        Config
	strategies map[PoolID]any
}

// New creates a vault with the given config.
func New(cfg Config, logger log.Logger) (*Vault, error) {
	if err := cfg.Verify(); err != nil {
		return nil, err
	}
	return &Vault{
		log:        logger,
		cfg:        cfg,
		strategies: make(map[PoolID]any),
	}, nil
}

// Config returns the vault's config.
func (v *Vault) Config() Config { return v.cfg }

// enter latches the vault for a mutating operation. It returns ErrReentrancy
// if the vault is already executing; release via the returned func, which is
// safe under defer on every exit path.
func (v *Vault) enter() (func(), error) {
	if !v.entered.CompareAndSwap(false, true) {
		return nil, ErrReentrancy
	}
	return func() { v.entered.Store(false) }, nil
}

func (v *Vault) strategyFor(poolID PoolID) (any, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	s, ok := v.strategies[poolID]
	return s, ok
}

func (v *Vault) setStrategy(poolID PoolID, strategy any) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.strategies[poolID] = strategy
}

// =========================================================================
// Pause control
// =========================================================================

var pausedKey = storageKey(pausedPrefix, nil)

// isPaused reports whether the vault is currently paused. A pause expires on
// its own once the buffer period ends.
func (v *Vault) isPaused(state StateDB) bool {
	if wordU64(state.GetState(VaultAddress, pausedKey)) == 0 {
		return false
	}
	return state.GetBlockTime() < v.cfg.BufferPeriodEndTime
}

// SetPaused pauses or unpauses the vault. Only the authorizer may call it,
// and pausing is only possible inside the pause window.
func (v *Vault) SetPaused(state StateDB, caller common.Address, paused bool) error {
	if caller != v.cfg.Authorizer {
		return ErrUnauthorized
	}
	if paused && state.GetBlockTime() >= v.cfg.PauseWindowEndTime {
		return ErrPauseExpired
	}
	flag := uint64(0)
	if paused {
		flag = 1
	}
	state.SetState(VaultAddress, pausedKey, u64Word(flag))
	emitPausedStateChanged(state, paused)
	v.log.Info("vault paused state changed", "paused", paused, "caller", caller)
	return nil
}

// =========================================================================
// Relayer approval
// =========================================================================

// SetRelayerApproval lets caller approve or revoke a relayer to act on its
// behalf in operations that take an explicit sender.
func (v *Vault) SetRelayerApproval(state StateDB, caller, relayer common.Address, approved bool) {
	flag := uint64(0)
	if approved {
		flag = 1
	}
	state.SetState(VaultAddress, addressPairKey(relayerPrefix, caller, relayer), u64Word(flag))
	emitRelayerApprovalChanged(state, caller, relayer, approved)
}

// HasApprovedRelayer reports whether sender has approved relayer.
func (v *Vault) HasApprovedRelayer(state StateDB, sender, relayer common.Address) bool {
	return wordU64(state.GetState(VaultAddress, addressPairKey(relayerPrefix, sender, relayer))) != 0
}

// authenticateFor checks that caller may act for sender: either they are the
// same account, or sender has approved caller as a relayer.
func (v *Vault) authenticateFor(state StateDB, caller, sender common.Address) error {
	if caller == sender {
		return nil
	}
	if !v.HasApprovedRelayer(state, sender, caller) {
		return ErrRelayerNotApproved
	}
	return nil
}
