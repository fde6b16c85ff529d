// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package modules

import (
	"bytes"
	"testing"

	"github.com/luxfi/geth/common"
	"github.com/stretchr/testify/require"
)

type nopConfig struct{ key string }

func (c *nopConfig) Key() string   { return c.key }
func (c *nopConfig) Verify() error { return nil }

type nopConfigurator struct{ key string }

func (c *nopConfigurator) MakeConfig() Config { return &nopConfig{key: c.key} }

func TestReservedAddress(t *testing.T) {
	require.True(t, ReservedAddress(common.HexToAddress("0x0000000000000000000000000000000000009030")))
	require.True(t, ReservedAddress(common.HexToAddress("0x0000000000000000000000000000000000009fff")))
	require.False(t, ReservedAddress(common.HexToAddress("0x000000000000000000000000000000000000a000")))
	require.False(t, ReservedAddress(common.HexToAddress("0x0000000000000000000000000000000000008fff")))
}

func TestRegisterModule(t *testing.T) {
	m := Module{
		ConfigKey:    "testModuleConfig",
		Address:      common.HexToAddress("0x0000000000000000000000000000000000009100"),
		Configurator: &nopConfigurator{key: "testModuleConfig"},
	}
	require.NoError(t, RegisterModule(m))

	got, ok := GetModuleByAddress(m.Address)
	require.True(t, ok)
	require.Equal(t, m.ConfigKey, got.ConfigKey)

	got, ok = GetModule(m.ConfigKey)
	require.True(t, ok)
	require.Equal(t, m.Address, got.Address)

	// Duplicate key and duplicate address both fail.
	dup := m
	dup.Address = common.HexToAddress("0x0000000000000000000000000000000000009101")
	require.Error(t, RegisterModule(dup))

	dup = m
	dup.ConfigKey = "otherModuleConfig"
	require.Error(t, RegisterModule(dup))

	// Unreserved addresses are rejected.
	outside := Module{
		ConfigKey:    "outsideConfig",
		Address:      common.HexToAddress("0x0000000000000000000000000000000000000001"),
		Configurator: &nopConfigurator{key: "outsideConfig"},
	}
	require.Error(t, RegisterModule(outside))
}

func TestRegisteredModulesSorted(t *testing.T) {
	a := Module{
		ConfigKey:    "sortBConfig",
		Address:      common.HexToAddress("0x0000000000000000000000000000000000009201"),
		Configurator: &nopConfigurator{key: "sortBConfig"},
	}
	b := Module{
		ConfigKey:    "sortAConfig",
		Address:      common.HexToAddress("0x0000000000000000000000000000000000009200"),
		Configurator: &nopConfigurator{key: "sortAConfig"},
	}
	require.NoError(t, RegisterModule(a))
	require.NoError(t, RegisterModule(b))

	mods := RegisteredModules()
	for i := 1; i < len(mods); i++ {
		require.True(t, bytes.Compare(mods[i-1].Address[:], mods[i].Address[:]) < 0, "modules not sorted by address")
	}
}
