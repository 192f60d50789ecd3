package api

import (
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Rdilshan/e-voting-web-sub000/types"
)

// ElectionSummary is the listing form of a stored election.
type ElectionSummary struct {
	ID         types.ElectionID `json:"id"`
	Title      string           `json:"title"`
	StartTime  time.Time        `json:"startTime"`
	EndTime    time.Time        `json:"endTime"`
	MerkleRoot common.Hash      `json:"merkleRoot"`
	TxHash     common.Hash      `json:"txHash"`
	Voters     int              `json:"voters"`
}

// ElectionList is the response of GET /elections.
type ElectionList struct {
	Elections []*ElectionSummary `json:"elections"`
}

// EligibilityProof proves that a wallet belongs to the eligibility set
// committed on-chain for an election. Proof holds the sibling hashes from
// the leaf up to the root.
type EligibilityProof struct {
	ElectionID types.ElectionID `json:"electionId"`
	Wallet     common.Address   `json:"wallet"`
	Leaf       common.Hash      `json:"leaf"`
	Proof      []common.Hash    `json:"proof"`
	Root       common.Hash      `json:"root"`
	Verified   bool             `json:"verified"`
}

// ContractAddresses holds the smart contract addresses used by the node.
type ContractAddresses struct {
	VoterRegistry string `json:"voterRegistry"`
	Elections     string `json:"elections"`
}

// NodeInfo contains the network the node provisions elections on.
type NodeInfo struct {
	Network   string            `json:"network"`
	ChainID   uint64            `json:"chainId"`
	Contracts ContractAddresses `json:"contracts"`
}
