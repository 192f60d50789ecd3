// Package config holds the per-network defaults of the e-voting node.
package config

// EVotingWeb3Config contains the smart contract addresses and chain ID of a
// network.
type EVotingWeb3Config struct {
	ChainID                    uint64
	VoterRegistrySmartContract string
	ElectionsSmartContract     string
}

// DefaultConfig contains the default smart contract addresses by network.
var DefaultConfig = map[string]EVotingWeb3Config{
	// first two deployments of the default account of a hardhat or anvil node
	"localhost": {
		ChainID:                    31337,
		VoterRegistrySmartContract: "0x5FbDB2315678afecb367f032d93F642f64180aa3",
		ElectionsSmartContract:     "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512",
	},
}

// AvailableNetworks contains the list of networks with default addresses.
var AvailableNetworks = []string{
	"localhost",
}
