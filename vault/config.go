// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"fmt"

	"github.com/luxfi/geth/common"
)

// ConfigKey is the key used in json config files to specify the vault config.
const ConfigKey = "vaultConfig"

// Config carries the vault's deployment parameters.
//
// The pause window is the period after deployment during which the authorizer
// may pause the vault; the buffer period extends past it so an active pause
// can still be lifted. After BufferPeriodEndTime the vault is permanently
// unpausable.
type Config struct {
	Authorizer          common.Address `json:"authorizer"`
	WrappedNative       common.Address `json:"wrappedNative"`
	PauseWindowEndTime  uint64         `json:"pauseWindowEndTime"`
	BufferPeriodEndTime uint64         `json:"bufferPeriodEndTime"`
}

// Key returns the config key.
func (c *Config) Key() string {
	return ConfigKey
}

// Verify checks the config is internally consistent.
func (c *Config) Verify() error {
	if c.WrappedNative == (common.Address{}) {
		return fmt.Errorf("wrappedNative must be set")
	}
	if c.BufferPeriodEndTime < c.PauseWindowEndTime {
		return fmt.Errorf("buffer period ends before pause window: %d < %d",
			c.BufferPeriodEndTime, c.PauseWindowEndTime)
	}
	return nil
}

// Equal reports whether two configs are equivalent.
func (c *Config) Equal(other *Config) bool {
	if other == nil {
		return false
	}
	return c.Authorizer == other.Authorizer &&
		c.WrappedNative == other.WrappedNative &&
		c.PauseWindowEndTime == other.PauseWindowEndTime &&
		c.BufferPeriodEndTime == other.BufferPeriodEndTime
}
