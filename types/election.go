package types

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Candidate is a candidate as supplied by the administrator. The identifier
// is resolved to a registered wallet before the election is created.
type Candidate struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
	Party      string `json:"party"`
}

// ElectionRequest is the structured election-creation request accepted by
// the provisioning entry point. Dates are ISO 8601, either RFC 3339
// timestamps or zone-less forms read as UTC.
type ElectionRequest struct {
	Title       string      `json:"title"`
	Description string      `json:"description"`
	StartDate   string      `json:"startDate"`
	EndDate     string      `json:"endDate"`
	Candidates  []Candidate `json:"candidates"`
	Voters      []string    `json:"voters"`
}

// dateLayouts are the accepted ISO 8601 forms of a request date, tried in
// order. Layouts without a zone are read as UTC.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.DateOnly,
}

// ParseDate parses an ISO 8601 date or timestamp.
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	// report the error of the full timestamp layout
	_, err := time.Parse(time.RFC3339, s)
	return time.Time{}, err
}

// Period parses the start and end dates of the request.
func (r *ElectionRequest) Period() (time.Time, time.Time, error) {
	start, err := ParseDate(r.StartDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start date %q: %w", r.StartDate, err)
	}
	end, err := ParseDate(r.EndDate)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end date %q: %w", r.EndDate, err)
	}
	return start, end, nil
}

// ElectionCandidate is the on-chain form of a candidate.
type ElectionCandidate struct {
	Name   string         `json:"name"`
	Party  string         `json:"party"`
	Wallet common.Address `json:"wallet"`
}

// ElectionParams holds the arguments of the election-creation contract call.
type ElectionParams struct {
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Candidates  []ElectionCandidate
	MerkleRoot  common.Hash
}

// StartTimestamp returns the start time in seconds since epoch.
func (p *ElectionParams) StartTimestamp() *big.Int {
	return big.NewInt(p.Start.Unix())
}

// EndTimestamp returns the end time in seconds since epoch.
func (p *ElectionParams) EndTimestamp() *big.Int {
	return big.NewInt(p.End.Unix())
}

// OnchainElection is the election record as stored by the election contract.
type OnchainElection struct {
	ID          *big.Int    `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	StartTime   *big.Int    `json:"startTime"`
	EndTime     *big.Int    `json:"endTime"`
	MerkleRoot  common.Hash `json:"merkleRoot"`
	Exists      bool        `json:"exists"`
}

// OnchainElectionData bundles an election record with its candidates.
type OnchainElectionData struct {
	Election   *OnchainElection    `json:"election"`
	Candidates []ElectionCandidate `json:"candidates"`
}
