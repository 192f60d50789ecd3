package config

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"
)

func TestDefaultConfig(t *testing.T) {
	c := qt.New(t)
	for _, network := range AvailableNetworks {
		cfg, ok := DefaultConfig[network]
		c.Assert(ok, qt.IsTrue, qt.Commentf("network %s", network))
		c.Assert(cfg.ChainID, qt.Not(qt.Equals), uint64(0))
		c.Assert(common.IsHexAddress(cfg.VoterRegistrySmartContract), qt.IsTrue)
		c.Assert(common.IsHexAddress(cfg.ElectionsSmartContract), qt.IsTrue)
		c.Assert(cfg.VoterRegistrySmartContract, qt.Not(qt.Equals), cfg.ElectionsSmartContract)
	}
}
