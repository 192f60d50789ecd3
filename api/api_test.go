package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"

	"github.com/Rdilshan/e-voting-web-sub000/db/metadb"
	"github.com/Rdilshan/e-voting-web-sub000/merkle"
	"github.com/Rdilshan/e-voting-web-sub000/provision"
	"github.com/Rdilshan/e-voting-web-sub000/registry"
	stg "github.com/Rdilshan/e-voting-web-sub000/storage"
	"github.com/Rdilshan/e-voting-web-sub000/types"
	"github.com/Rdilshan/e-voting-web-sub000/web3/rpc"
	"github.com/Rdilshan/e-voting-web-sub000/web3/web3test"
)

var testPolicy = rpc.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

type testAPI struct {
	api   *API
	chain *web3test.Chain
	store *stg.Storage
}

func newTestAPI(c *qt.C) *testAPI {
	contracts, chain, err := web3test.NewContracts(context.Background())
	c.Assert(err, qt.IsNil)
	resolver, err := registry.New(contracts, testPolicy, 0)
	c.Assert(err, qt.IsNil)
	store := stg.New(metadb.ForTest())
	c.Cleanup(store.Close)
	prov, err := provision.New(provision.Config{
		Resolver:  resolver,
		Elections: contracts,
		Policy:    testPolicy,
		Store:     store,
	})
	c.Assert(err, qt.IsNil)
	a, err := newAPI(&APIConfig{
		Storage:     store,
		Provisioner: prov,
		Elections:   contracts,
		Policy:      testPolicy,
		Network:     "localhost",
	})
	c.Assert(err, qt.IsNil)
	chain.SetWallet("CAND-1", common.HexToAddress("0x00000000000000000000000000000000000ca001"))
	return &testAPI{api: a, chain: chain, store: store}
}

func (t *testAPI) request(c *qt.C, method, path string, body any) *httptest.ResponseRecorder {
	var data []byte
	switch b := body.(type) {
	case nil:
	case []byte:
		data = b
	default:
		var err error
		data, err = json.Marshal(b)
		c.Assert(err, qt.IsNil)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	rec := httptest.NewRecorder()
	t.api.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](c *qt.C, rec *httptest.ResponseRecorder) *T {
	out := new(T)
	c.Assert(json.Unmarshal(rec.Body.Bytes(), out), qt.IsNil, qt.Commentf("body: %s", rec.Body.String()))
	return out
}

func electionRequest(voters ...string) *types.ElectionRequest {
	return &types.ElectionRequest{
		Title:      "Student council",
		StartDate:  "2026-11-02T09:00:00Z",
		EndDate:    "2026-11-03T09:00:00Z",
		Candidates: []types.Candidate{{Name: "Alice", Identifier: "CAND-1", Party: "Blue"}},
		Voters:     voters,
	}
}

func TestPing(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c)
	rec := ta.request(c, http.MethodGet, PingEndpoint, nil)
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
}

func TestNewRequiresCollaborators(t *testing.T) {
	c := qt.New(t)
	_, err := newAPI(nil)
	c.Assert(err, qt.IsNotNil)
	_, err = newAPI(&APIConfig{})
	c.Assert(err, qt.ErrorMatches, "missing storage instance")
	_, err = newAPI(&APIConfig{Storage: stg.New(metadb.ForTest())})
	c.Assert(err, qt.ErrorMatches, "missing provisioner")
}

func TestElectionLifecycle(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c)

	rec := ta.request(c, http.MethodPost, ElectionsEndpoint, electionRequest("V-1", "V-2", "V-3"))
	c.Assert(rec.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", rec.Body.String()))
	res := decode[provision.Result](c, rec)
	c.Assert(res.Success, qt.IsTrue)
	c.Assert(res.State, qt.Equals, provision.StateDone)
	c.Assert(res.ElectionID, qt.IsNotNil)
	c.Assert(res.ElectionID.String(), qt.Equals, "1")

	// listing
	rec = ta.request(c, http.MethodGet, ElectionsEndpoint, nil)
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	list := decode[ElectionList](c, rec)
	c.Assert(list.Elections, qt.HasLen, 1)
	c.Assert(list.Elections[0].Voters, qt.Equals, 3)
	c.Assert(list.Elections[0].MerkleRoot, qt.Equals, res.Root)

	// local record
	rec = ta.request(c, http.MethodGet, EndpointWithParam(ElectionEndpoint, ElectionURLParam, "1"), nil)
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	election := decode[types.ElectionRecord](c, rec)
	c.Assert(election.Title, qt.Equals, "Student council")
	c.Assert(election.Voters, qt.HasLen, 3)

	// on-chain record
	rec = ta.request(c, http.MethodGet, EndpointWithParam(ElectionOnchainEndpoint, ElectionURLParam, "1"), nil)
	c.Assert(rec.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", rec.Body.String()))
	onchain := decode[types.OnchainElectionData](c, rec)
	c.Assert(onchain.Election.Exists, qt.IsTrue)
	c.Assert(onchain.Election.MerkleRoot, qt.Equals, res.Root)
	c.Assert(onchain.Candidates, qt.HasLen, 1)
	c.Assert(onchain.Candidates[0].Name, qt.Equals, "Alice")

	// provisioning journal
	rec = ta.request(c, http.MethodGet, EndpointWithParam(ProvisioningEndpoint, RunURLParam, res.RunID), nil)
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	run := decode[types.ProvisioningRun](c, rec)
	c.Assert(run.Success, qt.IsTrue)
	c.Assert(run.Title, qt.Equals, "Student council")
}

func TestEligibilityProof(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c)

	rec := ta.request(c, http.MethodPost, ElectionsEndpoint, electionRequest("V-1", "V-2", "V-3"))
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	res := decode[provision.Result](c, rec)

	wallet := ta.chain.Wallet("V-2")
	path := EndpointWithParam(ElectionProofEndpoint, ElectionURLParam, "1")
	path = EndpointWithParam(path, AddressURLParam, wallet.Hex())
	rec = ta.request(c, http.MethodGet, path, nil)
	c.Assert(rec.Code, qt.Equals, http.StatusOK, qt.Commentf("body: %s", rec.Body.String()))
	proof := decode[EligibilityProof](c, rec)
	c.Assert(proof.Verified, qt.IsTrue)
	c.Assert(proof.Root, qt.Equals, res.Root)
	c.Assert(proof.Wallet, qt.Equals, wallet)
	c.Assert(proof.Leaf, qt.Equals, merkle.LeafHash(wallet, types.NewElectionID(1).Uint256()))
	c.Assert(merkle.Verify(res.Root, proof.Leaf, proof.Proof), qt.IsTrue)

	// served from the tree cache the second time
	rec = ta.request(c, http.MethodGet, path, nil)
	c.Assert(rec.Code, qt.Equals, http.StatusOK)

	// not a voter
	path = EndpointWithParam(ElectionProofEndpoint, ElectionURLParam, "1")
	rec = ta.request(c, http.MethodGet, EndpointWithParam(path, AddressURLParam, "0x00000000000000000000000000000000000ca001"), nil)
	c.Assert(rec.Code, qt.Equals, http.StatusNotFound)
	apiErr := decode[struct {
		Code int `json:"code"`
	}](c, rec)
	c.Assert(apiErr.Code, qt.Equals, ErrVoterNotEligible.Code)

	// malformed address
	rec = ta.request(c, http.MethodGet, EndpointWithParam(path, AddressURLParam, "0xnope"), nil)
	c.Assert(rec.Code, qt.Equals, http.StatusBadRequest)
}

func TestProvisioningErrors(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c)

	rec := ta.request(c, http.MethodPost, ElectionsEndpoint, []byte("{not json"))
	c.Assert(rec.Code, qt.Equals, http.StatusBadRequest)
	apiErr := decode[struct {
		Code int `json:"code"`
	}](c, rec)
	c.Assert(apiErr.Code, qt.Equals, ErrMalformedBody.Code)

	rec = ta.request(c, http.MethodPost, ElectionsEndpoint, electionRequest())
	c.Assert(rec.Code, qt.Equals, http.StatusUnprocessableEntity)
	res := decode[provision.Result](c, rec)
	c.Assert(res.Success, qt.IsFalse)
	c.Assert(res.State, qt.Equals, provision.StateAborted)
	c.Assert(res.FailedState, qt.Equals, provision.StateValidating)
	c.Assert(res.Message, qt.Equals, provision.ErrNoEligibleVoters.Error())
	c.Assert(ta.chain.Sent(), qt.HasLen, 0)

	// the aborted run is journaled too
	rec = ta.request(c, http.MethodGet, EndpointWithParam(ProvisioningEndpoint, RunURLParam, res.RunID), nil)
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
}

func TestLookupErrors(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c)

	for _, tc := range []struct {
		path   string
		status int
		code   int
	}{
		{EndpointWithParam(ElectionEndpoint, ElectionURLParam, "abc"), http.StatusBadRequest, ErrMalformedElectionID.Code},
		{EndpointWithParam(ElectionEndpoint, ElectionURLParam, "7"), http.StatusNotFound, ErrElectionNotFound.Code},
		{EndpointWithParam(ElectionOnchainEndpoint, ElectionURLParam, "7"), http.StatusNotFound, ErrElectionNotFound.Code},
		{EndpointWithParam(ProvisioningEndpoint, RunURLParam, "unknown"), http.StatusNotFound, ErrProvisioningRunUnknown.Code},
	} {
		rec := ta.request(c, http.MethodGet, tc.path, nil)
		c.Assert(rec.Code, qt.Equals, tc.status, qt.Commentf("path %s", tc.path))
		apiErr := decode[struct {
			Code int `json:"code"`
		}](c, rec)
		c.Assert(apiErr.Code, qt.Equals, tc.code)
	}
}

func TestInfo(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c)

	rec := ta.request(c, http.MethodGet, InfoEndpoint, nil)
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	info := decode[NodeInfo](c, rec)
	c.Assert(info.Network, qt.Equals, "localhost")
	c.Assert(info.ChainID, qt.Equals, uint64(31337))
	c.Assert(info.Contracts.VoterRegistry, qt.Equals, "0x5FbDB2315678afecb367f032d93F642f64180aa3")

	ta.api.network = "invalid_network"
	rec = ta.request(c, http.MethodGet, InfoEndpoint, nil)
	c.Assert(rec.Code, qt.Equals, http.StatusInternalServerError)

	ta.api.contracts = &ContractAddresses{VoterRegistry: "0x01", Elections: "0x02"}
	ta.api.chainID = 1337
	rec = ta.request(c, http.MethodGet, InfoEndpoint, nil)
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	info = decode[NodeInfo](c, rec)
	c.Assert(info.ChainID, qt.Equals, uint64(1337))
	c.Assert(info.Contracts.Elections, qt.Equals, "0x02")
}

func TestServeAndClose(t *testing.T) {
	c := qt.New(t)
	ta := newTestAPI(c)
	a, err := New(&APIConfig{
		Host:        "127.0.0.1",
		Port:        0,
		Storage:     ta.store,
		Provisioner: ta.api.provisioner,
		Network:     "localhost",
	})
	c.Assert(err, qt.IsNil)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c.Assert(a.Close(ctx), qt.IsNil)
}

func TestErrorWrapping(t *testing.T) {
	c := qt.New(t)
	err := ErrElectionNotFound.With("12")
	c.Assert(err.Error(), qt.Equals, "election not found: 12")
	c.Assert(IsCode(err, ErrElectionNotFound.Code), qt.IsTrue)
	c.Assert(IsCode(err, ErrMalformedBody.Code), qt.IsFalse)

	rec := httptest.NewRecorder()
	ErrMalformedAddress.Withf("bad %s", "0x1").Write(rec)
	c.Assert(rec.Code, qt.Equals, http.StatusBadRequest)
	c.Assert(rec.Body.String(), qt.Equals, `{"error":"malformed address: bad 0x1","code":40017}`)
}
