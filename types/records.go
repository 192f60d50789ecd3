package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// VoterWallet is a voter identifier with the wallet registered for it.
type VoterWallet struct {
	Identifier string         `json:"identifier"`
	Wallet     common.Address `json:"wallet"`
}

// ElectionRecord is the local record of a provisioned election. Voters are
// kept in the order their leaves were committed, so the tree can be rebuilt
// to serve membership proofs.
type ElectionRecord struct {
	ID          ElectionID          `json:"id"`
	Title       string              `json:"title"`
	Description string              `json:"description"`
	StartTime   time.Time           `json:"startTime"`
	EndTime     time.Time           `json:"endTime"`
	Candidates  []ElectionCandidate `json:"candidates"`
	Voters      []VoterWallet       `json:"voters"`
	MerkleRoot  common.Hash         `json:"merkleRoot"`
	TxHash      common.Hash         `json:"txHash"`
	CreatedAt   time.Time           `json:"createdAt"`
}

// VoterAddresses returns the voter wallets in commitment order.
func (r *ElectionRecord) VoterAddresses() []common.Address {
	wallets := make([]common.Address, 0, len(r.Voters))
	for _, v := range r.Voters {
		wallets = append(wallets, v.Wallet)
	}
	return wallets
}

// ProvisioningRun is the journal entry of one provisioning request, kept
// whatever its outcome.
type ProvisioningRun struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Success     bool        `json:"success"`
	State       string      `json:"state"`
	FailedState string      `json:"failedState,omitempty"`
	ElectionID  *ElectionID `json:"electionId,omitempty"`
	TxHash      common.Hash `json:"txHash"`
	Root        common.Hash `json:"root"`
	Message     string      `json:"message,omitempty"`
	Errors      []string    `json:"errors,omitempty"`
	// Unconfirmed lists registrations sent without a confirmation whose
	// wallet key was discarded.
	Unconfirmed []VoterWallet `json:"unconfirmed,omitempty"`
	StartedAt   time.Time     `json:"startedAt"`
	FinishedAt  time.Time     `json:"finishedAt"`
}

// Commitment is the archived eligibility commitment of an election: the
// ordered leaves, the wallets they were derived from and the root.
type Commitment struct {
	ElectionID ElectionID       `json:"electionId"`
	Root       common.Hash      `json:"root"`
	Leaves     []common.Hash    `json:"leaves"`
	Wallets    []common.Address `json:"wallets"`
}
