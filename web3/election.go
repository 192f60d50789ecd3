package web3

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/Rdilshan/e-voting-web-sub000/types"
)

// ElectionsCandidate mirrors the candidate tuple of the elections contract.
type ElectionsCandidate struct {
	Name   string
	Party  string
	Wallet common.Address
}

// ElectionsElection mirrors the election tuple of the elections contract.
type ElectionsElection struct {
	Id          *big.Int
	Title       string
	Description string
	StartTime   *big.Int
	EndTime     *big.Int
	MerkleRoot  [32]byte
	Exists      bool
}

func (e *ElectionsElection) toOnchain() *types.OnchainElection {
	return &types.OnchainElection{
		ID:          e.Id,
		Title:       e.Title,
		Description: e.Description,
		StartTime:   e.StartTime,
		EndTime:     e.EndTime,
		MerkleRoot:  common.Hash(e.MerkleRoot),
		Exists:      e.Exists,
	}
}

// ElectionCount returns the number of elections created so far. Election ids
// start at one, so the next election gets ElectionCount()+1.
func (c *Contracts) ElectionCount(ctx context.Context) (*big.Int, error) {
	if c.elections == nil {
		return nil, ErrContractsNotLoaded
	}
	var out []any
	if err := c.elections.Call(c.callOpts(ctx), &out, "electionCount"); err != nil {
		return nil, fmt.Errorf("failed to get election count: %w", err)
	}
	if len(out) != 1 {
		return nil, fmt.Errorf("unexpected electionCount output length %d", len(out))
	}
	return *abi.ConvertType(out[0], new(*big.Int)).(**big.Int), nil
}

// CreateElection sends the election creation transaction and returns its
// hash without waiting for it.
func (c *Contracts) CreateElection(ctx context.Context, params *types.ElectionParams) (common.Hash, error) {
	if params == nil {
		return common.Hash{}, fmt.Errorf("nil election params")
	}
	candidates := make([]ElectionsCandidate, 0, len(params.Candidates))
	for _, cand := range params.Candidates {
		candidates = append(candidates, ElectionsCandidate{
			Name:   cand.Name,
			Party:  cand.Party,
			Wallet: cand.Wallet,
		})
	}
	return c.transact(ctx, c.elections, "createElection",
		params.Title,
		params.Description,
		params.StartTimestamp(),
		params.EndTimestamp(),
		candidates,
		[32]byte(params.MerkleRoot),
	)
}

// Election returns the stored election record. A record with Exists unset
// means there is no election with that id.
func (c *Contracts) Election(ctx context.Context, electionID *big.Int) (*types.OnchainElection, error) {
	if c.elections == nil {
		return nil, ErrContractsNotLoaded
	}
	var out []any
	if err := c.elections.Call(c.callOpts(ctx), &out, "elections", electionID); err != nil {
		return nil, fmt.Errorf("failed to get election %s: %w", electionID, err)
	}
	if len(out) != 7 {
		return nil, fmt.Errorf("unexpected elections output length %d", len(out))
	}
	e := &ElectionsElection{
		Id:          *abi.ConvertType(out[0], new(*big.Int)).(**big.Int),
		Title:       *abi.ConvertType(out[1], new(string)).(*string),
		Description: *abi.ConvertType(out[2], new(string)).(*string),
		StartTime:   *abi.ConvertType(out[3], new(*big.Int)).(**big.Int),
		EndTime:     *abi.ConvertType(out[4], new(*big.Int)).(**big.Int),
		MerkleRoot:  *abi.ConvertType(out[5], new([32]byte)).(*[32]byte),
		Exists:      *abi.ConvertType(out[6], new(bool)).(*bool),
	}
	return e.toOnchain(), nil
}

// ElectionData returns the election record together with its candidates.
func (c *Contracts) ElectionData(ctx context.Context, electionID *big.Int) (*types.OnchainElectionData, error) {
	if c.elections == nil {
		return nil, ErrContractsNotLoaded
	}
	var out []any
	if err := c.elections.Call(c.callOpts(ctx), &out, "getElectionData", electionID); err != nil {
		return nil, fmt.Errorf("failed to get election data %s: %w", electionID, err)
	}
	if len(out) != 2 {
		return nil, fmt.Errorf("unexpected getElectionData output length %d", len(out))
	}
	election := *abi.ConvertType(out[0], new(ElectionsElection)).(*ElectionsElection)
	candidates := *abi.ConvertType(out[1], new([]ElectionsCandidate)).(*[]ElectionsCandidate)

	data := &types.OnchainElectionData{
		Election:   election.toOnchain(),
		Candidates: make([]types.ElectionCandidate, 0, len(candidates)),
	}
	for _, cand := range candidates {
		data.Candidates = append(data.Candidates, types.ElectionCandidate{
			Name:   cand.Name,
			Party:  cand.Party,
			Wallet: cand.Wallet,
		})
	}
	return data, nil
}
