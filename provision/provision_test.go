package provision

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	qt "github.com/frankban/quicktest"

	"github.com/Rdilshan/e-voting-web-sub000/db/metadb"
	"github.com/Rdilshan/e-voting-web-sub000/merkle"
	"github.com/Rdilshan/e-voting-web-sub000/registry"
	"github.com/Rdilshan/e-voting-web-sub000/storage"
	"github.com/Rdilshan/e-voting-web-sub000/types"
	"github.com/Rdilshan/e-voting-web-sub000/web3"
	"github.com/Rdilshan/e-voting-web-sub000/web3/rpc"
	"github.com/Rdilshan/e-voting-web-sub000/web3/web3test"
)

var testPolicy = rpc.RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond}

var candidateWallet = common.HexToAddress("0x00000000000000000000000000000000000ca001")

type memMirror struct {
	mtx       sync.Mutex
	fail      error
	elections []*types.ElectionRecord
	voters    map[string][]types.VoterWallet
}

func (m *memMirror) InsertElection(_ context.Context, rec *types.ElectionRecord) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.fail != nil {
		return m.fail
	}
	m.elections = append(m.elections, rec)
	return nil
}

func (m *memMirror) InsertVoterWallets(_ context.Context, id types.ElectionID, voters []types.VoterWallet) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if m.fail != nil {
		return m.fail
	}
	if m.voters == nil {
		m.voters = make(map[string][]types.VoterWallet)
	}
	m.voters[id.String()] = voters
	return nil
}

func (m *memMirror) Close() error { return nil }

type memArchive struct {
	commitments []*types.Commitment
}

func (a *memArchive) PutCommitment(_ context.Context, commitment *types.Commitment) (string, error) {
	a.commitments = append(a.commitments, commitment)
	return fmt.Sprintf("commitments/%s.json", commitment.ElectionID), nil
}

type testEnv struct {
	contracts *web3.Contracts
	chain     *web3test.Chain
	store     *storage.Storage
	mirror    *memMirror
	archive   *memArchive
	prov      *Provisioner
	wallets   []*registry.Wallet
}

func newTestEnv(c *qt.C) *testEnv {
	contracts, chain, err := web3test.NewContracts(context.Background())
	c.Assert(err, qt.IsNil)
	resolver, err := registry.New(contracts, testPolicy, 0)
	c.Assert(err, qt.IsNil)

	env := &testEnv{
		contracts: contracts,
		chain:     chain,
		store:     storage.New(metadb.ForTest()),
		mirror:    &memMirror{},
		archive:   &memArchive{},
	}
	c.Cleanup(env.store.Close)
	env.prov, err = New(Config{
		Resolver:  resolver,
		Elections: contracts,
		Policy:    testPolicy,
		Mirror:    env.mirror,
		Store:     env.store,
		Archive:   env.archive,
		NewWallet: func() (*registry.Wallet, error) {
			w, err := registry.NewWallet()
			if err == nil {
				env.wallets = append(env.wallets, w)
			}
			return w, err
		},
	})
	c.Assert(err, qt.IsNil)
	chain.SetWallet("CAND-1", candidateWallet)
	return env
}

func testRequest(voters ...string) *types.ElectionRequest {
	return &types.ElectionRequest{
		Title:       "Board election",
		Description: "Yearly board election",
		StartDate:   "2026-11-01T08:00:00Z",
		EndDate:     "2026-11-01T18:00:00Z",
		Candidates: []types.Candidate{
			{Name: "Alice", Identifier: "CAND-1", Party: "Blue"},
		},
		Voters: voters,
	}
}

func TestProvisionRegistersAndCommits(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()

	res := env.prov.Provision(ctx, testRequest("V-1", "V-2", "V-3"))
	c.Assert(res.Err(), qt.IsNil)
	c.Assert(res.Success, qt.IsTrue)
	c.Assert(res.State, qt.Equals, StateDone)
	c.Assert(res.ElectionID.String(), qt.Equals, "1")
	c.Assert(res.Registrations, qt.HasLen, 3)
	c.Assert(res.RunID, qt.Not(qt.Equals), "")

	c.Assert(env.chain.SentMethod("registerWallet"), qt.HasLen, 3)
	created := env.chain.SentMethod("createElection")
	c.Assert(created, qt.HasLen, 1)
	c.Assert(env.chain.ElectionCount(), qt.Equals, 1)

	// root commits to the registered wallets, in voter order, for election 1
	var wallets []common.Address
	for _, id := range []string{"V-1", "V-2", "V-3"} {
		w := env.chain.Wallet(id)
		c.Assert(w, qt.Not(qt.Equals), common.Address{})
		wallets = append(wallets, w)
	}
	tree, err := merkle.Build(wallets, types.NewElectionID(1).Uint256())
	c.Assert(err, qt.IsNil)
	c.Assert(res.Root, qt.Equals, tree.Root())
	c.Assert(common.Hash(created[0].Args[5].([32]byte)), qt.Equals, tree.Root())
	c.Assert(res.TxHash, qt.Equals, created[0].Hash)

	// minted keys are wiped
	c.Assert(env.wallets, qt.HasLen, 3)
	for _, w := range env.wallets {
		c.Assert(w.Wiped(), qt.IsTrue)
	}

	// off-chain copies
	c.Assert(env.mirror.elections, qt.HasLen, 1)
	c.Assert(env.mirror.voters["1"], qt.HasLen, 3)
	c.Assert(env.mirror.voters["1"][0].Identifier, qt.Equals, "V-1")
	c.Assert(env.archive.commitments, qt.HasLen, 1)
	c.Assert(env.archive.commitments[0].Root, qt.Equals, res.Root)
	c.Assert(env.archive.commitments[0].Leaves, qt.HasLen, 3)

	rec, err := env.store.Election(types.NewElectionID(1))
	c.Assert(err, qt.IsNil)
	c.Assert(rec.Title, qt.Equals, "Board election")
	c.Assert(rec.VoterAddresses(), qt.DeepEquals, wallets)
	c.Assert(rec.Candidates, qt.HasLen, 1)
	c.Assert(rec.Candidates[0].Wallet, qt.Equals, candidateWallet)

	run, err := env.store.Run(res.RunID)
	c.Assert(err, qt.IsNil)
	c.Assert(run.Success, qt.IsTrue)
	c.Assert(run.State, qt.Equals, string(StateDone))
	c.Assert(run.FinishedAt.IsZero(), qt.IsFalse)
}

func TestProvisionSkipsRegisteredVoters(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	existing := common.HexToAddress("0x00000000000000000000000000000000000b0b01")
	env.chain.SetWallet("V-1", existing)

	res := env.prov.Provision(context.Background(), testRequest("V-1", "V-2"))
	c.Assert(res.Err(), qt.IsNil)
	c.Assert(env.chain.SentMethod("registerWallet"), qt.HasLen, 1)
	c.Assert(env.mirror.voters["1"][0].Wallet, qt.Equals, existing)
}

func TestProvisionNextElectionID(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx := context.Background()

	res := env.prov.Provision(ctx, testRequest("V-1"))
	c.Assert(res.Err(), qt.IsNil)
	res = env.prov.Provision(ctx, testRequest("V-1", "V-2"))
	c.Assert(res.Err(), qt.IsNil)
	c.Assert(res.ElectionID.String(), qt.Equals, "2")
	// V-1 is bound once and reused
	c.Assert(env.chain.SentMethod("registerWallet"), qt.HasLen, 2)

	ids, err := env.store.ListElections()
	c.Assert(err, qt.IsNil)
	c.Assert(ids, qt.HasLen, 2)
}

func TestProvisionRejectsInvalidRequests(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)

	for name, tc := range map[string]struct {
		edit func(*types.ElectionRequest)
		want error
	}{
		"no voters":            {func(r *types.ElectionRequest) { r.Voters = nil }, ErrNoEligibleVoters},
		"no title":             {func(r *types.ElectionRequest) { r.Title = " " }, ErrInvalidRequest},
		"bad date":             {func(r *types.ElectionRequest) { r.StartDate = "tomorrow" }, ErrInvalidRequest},
		"end before start":     {func(r *types.ElectionRequest) { r.EndDate = "2026-10-01T00:00:00Z" }, ErrInvalidRequest},
		"start before epoch":   {func(r *types.ElectionRequest) { r.StartDate = "1969-12-31T23:00:00Z" }, ErrInvalidRequest},
		"no candidates":        {func(r *types.ElectionRequest) { r.Candidates = nil }, ErrInvalidRequest},
		"duplicate voter":      {func(r *types.ElectionRequest) { r.Voters = []string{"V-1", "V-1"} }, ErrInvalidRequest},
		"candidate without id": {func(r *types.ElectionRequest) { r.Candidates[0].Identifier = "" }, ErrInvalidRequest},
	} {
		c.Run(name, func(c *qt.C) {
			req := testRequest("V-1", "V-2")
			tc.edit(req)
			res := env.prov.Provision(context.Background(), req)
			c.Assert(res.Success, qt.IsFalse)
			c.Assert(res.State, qt.Equals, StateAborted)
			c.Assert(res.FailedState, qt.Equals, StateValidating)
			c.Assert(res.Err(), qt.ErrorIs, tc.want)
			c.Assert(res.Message, qt.Not(qt.Equals), "")
		})
	}
	c.Assert(env.chain.Sent(), qt.HasLen, 0)

	res := env.prov.Provision(context.Background(), nil)
	c.Assert(res.Err(), qt.ErrorIs, ErrInvalidRequest)
}

func TestProvisionReportsUnconfirmedRegistration(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	env.contracts.TxTimeout = 50 * time.Millisecond
	env.chain.HoldReceipt = func(method string, args []any) bool {
		return method == "registerWallet" && args[0].(string) == "V-2"
	}

	res := env.prov.Provision(context.Background(), testRequest("V-1", "V-2"))
	c.Assert(res.Success, qt.IsFalse)
	c.Assert(res.FailedState, qt.Equals, StateRegistering)
	c.Assert(res.Err(), qt.ErrorIs, ErrPartialRoster)
	c.Assert(res.Errors, qt.HasLen, 1)
	c.Assert(res.Unconfirmed, qt.HasLen, 1)
	c.Assert(res.Unconfirmed[0].Identifier, qt.Equals, "V-2")
	// the binding landed after all, with a key that no longer exists
	c.Assert(env.chain.Wallet("V-2"), qt.Equals, res.Unconfirmed[0].Wallet)
	c.Assert(env.chain.SentMethod("createElection"), qt.HasLen, 0)
	for _, w := range env.wallets {
		c.Assert(w.Wiped(), qt.IsTrue)
	}

	run, err := env.store.Run(res.RunID)
	c.Assert(err, qt.IsNil)
	c.Assert(run.Unconfirmed, qt.DeepEquals, res.Unconfirmed)
}

func TestProvisionAbortsOnFailedRegistration(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	env.chain.BeforeSend = func(method string, args []any) error {
		if method == "registerWallet" && args[0].(string) == "V-2" {
			return fmt.Errorf("insufficient funds for gas * price + value")
		}
		return nil
	}

	res := env.prov.Provision(context.Background(), testRequest("V-1", "V-2", "V-3"))
	c.Assert(res.Success, qt.IsFalse)
	c.Assert(res.FailedState, qt.Equals, StateRegistering)
	c.Assert(res.Err(), qt.ErrorIs, ErrPartialRoster)
	c.Assert(res.Errors, qt.HasLen, 1)
	c.Assert(res.Errors[0], qt.Matches, "V-2: .*insufficient funds.*")
	// the other voters are still registered, but no election is created
	c.Assert(env.chain.SentMethod("registerWallet"), qt.HasLen, 2)
	c.Assert(env.chain.SentMethod("createElection"), qt.HasLen, 0)
	for _, w := range env.wallets {
		c.Assert(w.Wiped(), qt.IsTrue)
	}

	run, err := env.store.Run(res.RunID)
	c.Assert(err, qt.IsNil)
	c.Assert(run.Success, qt.IsFalse)
	c.Assert(run.FailedState, qt.Equals, string(StateRegistering))
	c.Assert(run.Errors, qt.HasLen, 1)
}

func TestProvisionAdoptsBindingWhenLookupFails(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	existing := common.HexToAddress("0x00000000000000000000000000000000000b0b02")
	env.chain.SetWallet("V-1", existing)
	failed := false
	env.chain.BeforeCall = func(method string, args []any) error {
		if method == "getWalletByNIC" && args[0].(string) == "V-1" && !failed {
			failed = true
			return fmt.Errorf("connection refused")
		}
		return nil
	}

	res := env.prov.Provision(context.Background(), testRequest("V-1"))
	c.Assert(res.Err(), qt.IsNil)
	c.Assert(res.Registrations, qt.HasLen, 1)
	c.Assert(res.Registrations[0].AlreadyRegistered, qt.IsTrue)
	c.Assert(res.Registrations[0].Wallet, qt.Equals, existing)
	c.Assert(env.mirror.voters["1"][0].Wallet, qt.Equals, existing)
}

func TestProvisionVerificationMismatch(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	env.chain.BeforeCall = func(method string, args []any) error {
		if method == "elections" {
			env.chain.CorruptElection(args[0].(*big.Int).Uint64(), common.HexToHash("0xbad"))
		}
		return nil
	}

	res := env.prov.Provision(context.Background(), testRequest("V-1", "V-2"))
	c.Assert(res.Success, qt.IsFalse)
	c.Assert(res.FailedState, qt.Equals, StateSubmitting)
	c.Assert(res.Err(), qt.ErrorIs, ErrVerificationMismatch)
	c.Assert(res.ElectionID, qt.IsNil)
	c.Assert(env.chain.SentMethod("createElection"), qt.HasLen, 1)
	c.Assert(env.mirror.elections, qt.HasLen, 0)
	c.Assert(env.archive.commitments, qt.HasLen, 0)
}

func TestProvisionRetriesTransientReads(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	failures := 2
	env.chain.BeforeCall = func(method string, _ []any) error {
		if method == "electionCount" && failures > 0 {
			failures--
			return fmt.Errorf("429 Too Many Requests")
		}
		return nil
	}

	res := env.prov.Provision(context.Background(), testRequest("V-1"))
	c.Assert(res.Err(), qt.IsNil)
	c.Assert(failures, qt.Equals, 0)
}

func TestProvisionMirrorFailureIsNotFatal(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	env.mirror.fail = fmt.Errorf("connection reset by peer")

	res := env.prov.Provision(context.Background(), testRequest("V-1", "V-2"))
	c.Assert(res.Err(), qt.IsNil)
	c.Assert(res.Success, qt.IsTrue)
	c.Assert(env.archive.commitments, qt.HasLen, 1)
	_, err := env.store.Election(types.NewElectionID(1))
	c.Assert(err, qt.IsNil)
}

func TestProvisionCanceled(t *testing.T) {
	c := qt.New(t)
	env := newTestEnv(c)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := env.prov.Provision(ctx, testRequest("V-1"))
	c.Assert(res.FailedState, qt.Equals, StateResolving)
	c.Assert(res.Err(), qt.ErrorIs, context.Canceled)
	c.Assert(env.chain.Sent(), qt.HasLen, 0)
}

func TestNewRequiresCollaborators(t *testing.T) {
	c := qt.New(t)
	_, err := New(Config{})
	c.Assert(err, qt.ErrorIs, ErrMissingConfig)

	contracts, _, err := web3test.NewContracts(context.Background())
	c.Assert(err, qt.IsNil)
	_, err = New(Config{Elections: contracts})
	c.Assert(err, qt.ErrorIs, ErrMissingConfig)

	resolver, err := registry.New(contracts, testPolicy, 0)
	c.Assert(err, qt.IsNil)
	p, err := New(Config{Resolver: resolver, Elections: contracts})
	c.Assert(err, qt.IsNil)
	res := p.Provision(context.Background(), testRequest("V-1"))
	c.Assert(res.Err(), qt.IsNil)
}
