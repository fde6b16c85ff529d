// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package modules keeps the registry of stateful service modules a chain can
// enable. Each module claims a fixed address inside a reserved range and a
// unique config key; the host looks modules up by either to wire deployment
// config to the right engine.
package modules

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/luxfi/geth/common"
)

// Config is the deployment configuration a module accepts.
type Config interface {
	Key() string
	Verify() error
}

// Configurator builds a module's zero-value config for the host to unmarshal
// deployment parameters into.
type Configurator interface {
	MakeConfig() Config
}

// Module binds a service to its reserved address and config key.
type Module struct {
	ConfigKey    string
	Address      common.Address
	Configurator Configurator
}

// AddressRange is a continuous, inclusive range of addresses.
type AddressRange struct {
	Start common.Address
	End   common.Address
}

// Contains reports whether addr falls inside the range.
func (a *AddressRange) Contains(addr common.Address) bool {
	b := addr.Bytes()
	return bytes.Compare(b, a.Start[:]) >= 0 && bytes.Compare(b, a.End[:]) <= 0
}

var (
	// registeredModules stays sorted by address for deterministic iteration.
	registeredModules = make([]Module, 0)

	// Reserved ranges. The LP-9xxx block (0x0000...9000-9FFF) carries the
	// markets series; the vault sits at LP-9030.
	reservedRanges = []AddressRange{
		{
			Start: common.HexToAddress("0x0000000000000000000000000000000000009000"),
			End:   common.HexToAddress("0x0000000000000000000000000000000000009fff"),
		},
	}
)

// ReservedAddress returns true if addr is inside a reserved module range.
func ReservedAddress(addr common.Address) bool {
	for _, r := range reservedRanges {
		if r.Contains(addr) {
			return true
		}
	}
	return false
}

// RegisterModule adds a module to the registry. Addresses and config keys
// must be unique, and the address must be reserved.
func RegisterModule(m Module) error {
	if !ReservedAddress(m.Address) {
		return fmt.Errorf("address %s not in a reserved range", m.Address)
	}
	for _, registered := range registeredModules {
		if registered.ConfigKey == m.ConfigKey {
			return fmt.Errorf("config key %s already used by a module", m.ConfigKey)
		}
		if registered.Address == m.Address {
			return fmt.Errorf("address %s already used by a module", m.Address)
		}
	}
	registeredModules = insertSortedByAddress(registeredModules, m)
	return nil
}

// GetModuleByAddress looks a module up by its reserved address.
func GetModuleByAddress(address common.Address) (Module, bool) {
	for _, m := range registeredModules {
		if m.Address == address {
			return m, true
		}
	}
	return Module{}, false
}

// GetModule looks a module up by config key.
func GetModule(key string) (Module, bool) {
	for _, m := range registeredModules {
		if m.ConfigKey == key {
			return m, true
		}
	}
	return Module{}, false
}

// RegisteredModules returns every registered module in address order.
func RegisteredModules() []Module {
	return registeredModules
}

func insertSortedByAddress(data []Module, m Module) []Module {
	data = append(data, m)
	sort.Slice(data, func(i, j int) bool {
		return bytes.Compare(data[i].Address[:], data[j].Address[:]) < 0
	})
	return data
}
