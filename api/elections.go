package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"github.com/Rdilshan/e-voting-web-sub000/log"
	"github.com/Rdilshan/e-voting-web-sub000/merkle"
	stg "github.com/Rdilshan/e-voting-web-sub000/storage"
	"github.com/Rdilshan/e-voting-web-sub000/types"
	"github.com/Rdilshan/e-voting-web-sub000/web3/rpc"
)

// newElection provisions an election. Aborted runs are answered with 422
// and the same body as successful ones.
// POST /elections
func (a *API) newElection(w http.ResponseWriter, r *http.Request) {
	req := &types.ElectionRequest{}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodySize)).Decode(req); err != nil {
		ErrMalformedBody.WithErr(err).Write(w)
		return
	}
	// a client disconnecting must not leave the chain half provisioned
	res := a.provisioner.Provision(context.WithoutCancel(r.Context()), req)
	if !res.Success {
		httpWriteJSONStatus(w, http.StatusUnprocessableEntity, res)
		return
	}
	httpWriteJSON(w, res)
}

// listElections returns a summary of every stored election.
// GET /elections
func (a *API) listElections(w http.ResponseWriter, r *http.Request) {
	ids, err := a.storage.ListElections()
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	list := &ElectionList{Elections: make([]*ElectionSummary, 0, len(ids))}
	for _, id := range ids {
		rec, err := a.storage.Election(id)
		if err != nil {
			log.Warnw("could not load election", "electionId", id.String(), "error", err.Error())
			continue
		}
		list.Elections = append(list.Elections, &ElectionSummary{
			ID:         rec.ID,
			Title:      rec.Title,
			StartTime:  rec.StartTime,
			EndTime:    rec.EndTime,
			MerkleRoot: rec.MerkleRoot,
			TxHash:     rec.TxHash,
			Voters:     len(rec.Voters),
		})
	}
	httpWriteJSON(w, list)
}

// election returns the local record of an election.
// GET /elections/{electionId}
func (a *API) election(w http.ResponseWriter, r *http.Request) {
	rec, apiErr := a.electionRecord(r)
	if apiErr != nil {
		apiErr.Write(w)
		return
	}
	httpWriteJSON(w, rec)
}

// onchainElection reads the election and its candidates from the election
// contract.
// GET /elections/{electionId}/onchain
func (a *API) onchainElection(w http.ResponseWriter, r *http.Request) {
	id, err := types.ParseElectionID(chi.URLParam(r, ElectionURLParam))
	if err != nil {
		ErrMalformedElectionID.WithErr(err).Write(w)
		return
	}
	if a.elections == nil {
		ErrChainUnavailable.With("no election contract configured").Write(w)
		return
	}
	data, err := rpc.Retry(r.Context(), a.policy, func(ctx context.Context) (*types.OnchainElectionData, error) {
		return a.elections.ElectionData(ctx, id.BigInt())
	})
	if err != nil {
		ErrChainUnavailable.WithErr(err).Write(w)
		return
	}
	if data.Election == nil || !data.Election.Exists {
		ErrElectionNotFound.Withf("election %s does not exist on-chain", id).Write(w)
		return
	}
	httpWriteJSON(w, data)
}

// eligibilityProof returns the membership proof of a wallet, rebuilt from
// the stored voter wallets.
// GET /elections/{electionId}/proof/{address}
func (a *API) eligibilityProof(w http.ResponseWriter, r *http.Request) {
	addrStr := chi.URLParam(r, AddressURLParam)
	if !common.IsHexAddress(addrStr) {
		ErrMalformedAddress.With(addrStr).Write(w)
		return
	}
	wallet := common.HexToAddress(addrStr)
	rec, apiErr := a.electionRecord(r)
	if apiErr != nil {
		apiErr.Write(w)
		return
	}
	tree, ok := a.trees.Get(rec.ID.String())
	if !ok {
		var err error
		tree, err = merkle.Build(rec.VoterAddresses(), rec.ID.Uint256())
		if err != nil {
			ErrGenericInternalServerError.Withf("could not rebuild eligibility tree: %v", err).Write(w)
			return
		}
		if tree.Root() != rec.MerkleRoot {
			log.Warnw("rebuilt eligibility root differs from the stored one",
				"electionId", rec.ID.String(),
				"stored", rec.MerkleRoot.Hex(),
				"rebuilt", tree.Root().Hex())
		}
		a.trees.Add(rec.ID.String(), tree)
	}
	leaf, proof, err := tree.Proof(wallet)
	if err != nil {
		if errors.Is(err, merkle.ErrNotInTree) {
			ErrVoterNotEligible.With(wallet.Hex()).Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	if proof == nil {
		proof = []common.Hash{}
	}
	httpWriteJSON(w, &EligibilityProof{
		ElectionID: rec.ID,
		Wallet:     wallet,
		Leaf:       leaf,
		Proof:      proof,
		Root:       rec.MerkleRoot,
		Verified:   merkle.Verify(rec.MerkleRoot, leaf, proof),
	})
}

// provisioningRun returns the stored outcome of a provisioning request.
// GET /provisioning/{runId}
func (a *API) provisioningRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, RunURLParam)
	if runID == "" {
		ErrMalformedParam.With("missing run id").Write(w)
		return
	}
	run, err := a.storage.Run(runID)
	if err != nil {
		if errors.Is(err, stg.ErrNotFound) {
			ErrProvisioningRunUnknown.With(runID).Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, run)
}

// electionRecord loads the election named by the URL.
func (a *API) electionRecord(r *http.Request) (*types.ElectionRecord, *Error) {
	id, err := types.ParseElectionID(chi.URLParam(r, ElectionURLParam))
	if err != nil {
		apiErr := ErrMalformedElectionID.WithErr(err)
		return nil, &apiErr
	}
	rec, err := a.storage.Election(id)
	if err != nil {
		apiErr := ErrGenericInternalServerError.WithErr(err)
		if errors.Is(err, stg.ErrNotFound) {
			apiErr = ErrElectionNotFound.With(id.String())
		}
		return nil, &apiErr
	}
	return rec, nil
}
