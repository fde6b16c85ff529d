// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package vault

import (
	"github.com/luxfi/amm/modules"
)

var _ modules.Configurator = (*configurator)(nil)

// Module registers the vault in the LP-9xxx markets range.
var Module = modules.Module{
	ConfigKey:    ConfigKey,
	Address:      VaultAddress,
	Configurator: &configurator{},
}

type configurator struct{}

func (*configurator) MakeConfig() modules.Config {
	return &Config{}
}

func init() {
	if err := modules.RegisterModule(Module); err != nil {
		panic(err)
	}
}
