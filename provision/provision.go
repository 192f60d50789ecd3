// Package provision turns an election-creation request into a verified
// on-chain election whose eligibility root commits to the wallets of every
// eligible voter.
package provision

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/Rdilshan/e-voting-web-sub000/archive"
	"github.com/Rdilshan/e-voting-web-sub000/log"
	"github.com/Rdilshan/e-voting-web-sub000/merkle"
	"github.com/Rdilshan/e-voting-web-sub000/mirror"
	"github.com/Rdilshan/e-voting-web-sub000/registry"
	"github.com/Rdilshan/e-voting-web-sub000/types"
	"github.com/Rdilshan/e-voting-web-sub000/web3"
	"github.com/Rdilshan/e-voting-web-sub000/web3/rpc"
)

var (
	ErrMissingConfig        = errors.New("missing provisioning configuration")
	ErrInvalidRequest       = errors.New("invalid election request")
	ErrNoEligibleVoters     = errors.New("no eligible voters")
	ErrPartialRoster        = errors.New("voter registration failed")
	ErrVerificationMismatch = errors.New("on-chain election does not match the submitted commitment")
)

// Resolver resolves and registers identifiers. *registry.Resolver
// implements it.
type Resolver interface {
	Resolve(ctx context.Context, identifier string) (*registry.Resolution, error)
	Register(ctx context.Context, identifier string, wallet common.Address) (*registry.Registration, error)
}

// ElectionContract is the subset of the election contract used to create
// and verify elections. *web3.Contracts implements it.
type ElectionContract interface {
	ElectionCount(ctx context.Context) (*big.Int, error)
	CreateElection(ctx context.Context, params *types.ElectionParams) (common.Hash, error)
	WaitTx(ctx context.Context, txHash common.Hash) error
	Election(ctx context.Context, electionID *big.Int) (*types.OnchainElection, error)
}

// Store keeps the local election records and the provisioning journal.
// *storage.Storage implements it.
type Store interface {
	SetElection(rec *types.ElectionRecord) error
	SetRun(run *types.ProvisioningRun) error
}

var _ ElectionContract = (*web3.Contracts)(nil)

// Config holds the collaborators of a Provisioner. Resolver and Elections
// are required, the rest are optional.
type Config struct {
	Resolver  Resolver
	Elections ElectionContract
	Policy    rpc.RetryPolicy
	Mirror    mirror.Mirror
	Store     Store
	Archive   archive.Archive
	// NewWallet mints the wallet of an unregistered identifier. Defaults to
	// registry.NewWallet.
	NewWallet func() (*registry.Wallet, error)
	// Now defaults to time.Now.
	Now func() time.Time
}

// Provisioner runs the provisioning workflow.
type Provisioner struct {
	cfg Config
}

// New validates cfg and returns a Provisioner.
func New(cfg Config) (*Provisioner, error) {
	if cfg.Resolver == nil {
		return nil, fmt.Errorf("%w: resolver", ErrMissingConfig)
	}
	if cfg.Elections == nil {
		return nil, fmt.Errorf("%w: election contract", ErrMissingConfig)
	}
	if cfg.Mirror == nil {
		cfg.Mirror = mirror.Nop{}
	}
	if cfg.NewWallet == nil {
		cfg.NewWallet = registry.NewWallet
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Provisioner{cfg: cfg}, nil
}

// binding is the wallet an identifier ends up bound to.
type binding struct {
	wallet  common.Address
	pending bool
}

// Provision runs the workflow for req. It never returns nil: expected
// failures abort the workflow and are reported in the Result. Wallet keys
// minted during the call are wiped before it returns.
func (p *Provisioner) Provision(ctx context.Context, req *types.ElectionRequest) *Result {
	started := p.cfg.Now()
	res := &Result{RunID: uuid.NewString(), State: StateValidating}
	title := ""
	if req != nil {
		title = req.Title
	}
	p.journal(res, title, started, time.Time{})
	defer func() {
		p.journal(res, title, started, p.cfg.Now())
		if res.Success {
			log.Infow("election provisioned",
				"runId", res.RunID,
				"electionId", res.ElectionID.String(),
				"root", res.Root.Hex(),
				"took", log.Since(started))
		} else {
			log.Warnw("election provisioning aborted",
				"runId", res.RunID,
				"failedState", string(res.FailedState),
				"message", res.Message,
				"errors", len(res.Errors))
		}
	}()

	start, end, err := validate(req)
	if err != nil {
		return res.abort(StateValidating, err)
	}
	log.Infow("provisioning election",
		"runId", res.RunID,
		"title", req.Title,
		"voters", len(req.Voters),
		"candidates", len(req.Candidates))

	// resolving
	res.State = StateResolving
	order, bindings, err := p.resolve(ctx, req)
	if err != nil {
		return res.abort(StateResolving, err)
	}

	// registering
	res.State = StateRegistering
	var minted []*registry.Wallet
	defer func() {
		for _, w := range minted {
			w.Wipe()
		}
	}()
	var failures []string
	for _, id := range order {
		b := bindings[id]
		if !b.pending {
			continue
		}
		wallet, err := p.cfg.NewWallet()
		if err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", id, err))
			continue
		}
		minted = append(minted, wallet)
		reg, err := p.cfg.Resolver.Register(ctx, id, wallet.Address())
		if err != nil {
			log.Warnw("registration failed", "runId", res.RunID, "identifier", id, "error", err.Error())
			failures = append(failures, fmt.Sprintf("%s: %v", id, err))
			if errors.Is(err, registry.ErrUnconfirmed) {
				// the key is wiped on return, a late binding is orphaned
				log.Errorw(err, fmt.Sprintf("orphaned registration: identifier %s may be bound to %s",
					id, wallet.Address().Hex()))
				res.Unconfirmed = append(res.Unconfirmed, types.VoterWallet{Identifier: id, Wallet: wallet.Address()})
			}
			continue
		}
		log.Debugw("identifier registered",
			"identifier", id,
			"wallet", reg.Wallet.Hex(),
			"alreadyRegistered", reg.AlreadyRegistered)
		res.Registrations = append(res.Registrations, reg)
		bindings[id] = &binding{wallet: reg.Wallet}
	}
	if len(failures) > 0 {
		return res.abort(StateRegistering,
			fmt.Errorf("%w: %d of %d registrations failed", ErrPartialRoster, len(failures), len(failures)+len(res.Registrations)),
			failures...)
	}

	// building the commitment
	res.State = StateBuildingCommitment
	voters := make([]types.VoterWallet, 0, len(req.Voters))
	wallets := make([]common.Address, 0, len(req.Voters))
	for _, id := range req.Voters {
		voters = append(voters, types.VoterWallet{Identifier: id, Wallet: bindings[id].wallet})
		wallets = append(wallets, bindings[id].wallet)
	}
	if len(wallets) == 0 {
		return res.abort(StateBuildingCommitment, ErrNoEligibleVoters)
	}
	count, err := rpc.Retry(ctx, p.cfg.Policy, p.cfg.Elections.ElectionCount)
	if err != nil {
		return res.abort(StateBuildingCommitment, fmt.Errorf("could not read election count: %w", err))
	}
	current, err := types.ElectionIDFromBig(count)
	if err != nil {
		return res.abort(StateBuildingCommitment, err)
	}
	electionID := current.Next()
	tree, err := merkle.Build(wallets, electionID.Uint256())
	if err != nil {
		return res.abort(StateBuildingCommitment, err)
	}
	res.Root = tree.Root()
	log.Debugw("eligibility commitment built",
		"runId", res.RunID,
		"electionId", electionID.String(),
		"leaves", tree.Size(),
		"root", res.Root.Hex())

	// submitting
	res.State = StateSubmitting
	candidates := make([]types.ElectionCandidate, 0, len(req.Candidates))
	for _, cand := range req.Candidates {
		candidates = append(candidates, types.ElectionCandidate{
			Name:   cand.Name,
			Party:  cand.Party,
			Wallet: bindings[cand.Identifier].wallet,
		})
	}
	params := &types.ElectionParams{
		Title:       req.Title,
		Description: req.Description,
		Start:       start,
		End:         end,
		Candidates:  candidates,
		MerkleRoot:  res.Root,
	}
	txHash, err := rpc.Retry(ctx, p.cfg.Policy, func(ctx context.Context) (common.Hash, error) {
		return p.cfg.Elections.CreateElection(ctx, params)
	})
	if err != nil {
		return res.abort(StateSubmitting, fmt.Errorf("could not create election: %w", err))
	}
	res.TxHash = txHash
	if err := p.cfg.Elections.WaitTx(ctx, txHash); err != nil {
		return res.abort(StateSubmitting, fmt.Errorf("election transaction %s not confirmed: %w", txHash.Hex(), err))
	}
	if err := p.verify(ctx, electionID, res.Root); err != nil {
		return res.abort(StateSubmitting, err)
	}
	res.ElectionID = &electionID

	// persisting
	res.State = StatePersisting
	p.persist(ctx, &types.ElectionRecord{
		ID:          electionID,
		Title:       req.Title,
		Description: req.Description,
		StartTime:   start,
		EndTime:     end,
		Candidates:  candidates,
		Voters:      voters,
		MerkleRoot:  res.Root,
		TxHash:      txHash,
		CreatedAt:   p.cfg.Now(),
	}, tree)

	res.State = StateDone
	res.Success = true
	return res
}

// resolve looks up voters, then candidates, in input order. Identifiers
// appearing twice are looked up once. A failed lookup marks the identifier
// for registration: an existing binding is then adopted by Register.
func (p *Provisioner) resolve(ctx context.Context, req *types.ElectionRequest) ([]string, map[string]*binding, error) {
	ids := make([]string, 0, len(req.Voters)+len(req.Candidates))
	ids = append(ids, req.Voters...)
	for _, cand := range req.Candidates {
		ids = append(ids, cand.Identifier)
	}

	order := make([]string, 0, len(ids))
	bindings := make(map[string]*binding, len(ids))
	for _, id := range ids {
		if _, ok := bindings[id]; ok {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		order = append(order, id)
		resolution, err := p.cfg.Resolver.Resolve(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			log.Warnw("could not resolve identifier, will register it", "identifier", id, "error", err.Error())
			bindings[id] = &binding{pending: true}
			continue
		}
		bindings[id] = &binding{wallet: resolution.Wallet, pending: !resolution.Registered}
	}
	return order, bindings, nil
}

// verify reads the election back and checks that it exists and stores root.
func (p *Provisioner) verify(ctx context.Context, id types.ElectionID, root common.Hash) error {
	onchain, err := rpc.Retry(ctx, p.cfg.Policy, func(ctx context.Context) (*types.OnchainElection, error) {
		return p.cfg.Elections.Election(ctx, id.BigInt())
	})
	if err != nil {
		return fmt.Errorf("could not read election %s: %w", id, err)
	}
	if !onchain.Exists {
		return fmt.Errorf("%w: election %s does not exist", ErrVerificationMismatch, id)
	}
	if onchain.MerkleRoot != root {
		return fmt.Errorf("%w: election %s stores root %s, expected %s",
			ErrVerificationMismatch, id, onchain.MerkleRoot.Hex(), root.Hex())
	}
	return nil
}

// persist writes the off-chain copies of a verified election. The election
// already exists on-chain, so failures are only logged.
func (p *Provisioner) persist(ctx context.Context, rec *types.ElectionRecord, tree *merkle.Tree) {
	if err := p.cfg.Mirror.InsertElection(ctx, rec); err != nil {
		log.Warnw("could not mirror election", "electionId", rec.ID.String(), "error", err.Error())
	} else if err := p.cfg.Mirror.InsertVoterWallets(ctx, rec.ID, rec.Voters); err != nil {
		log.Warnw("could not mirror voter wallets", "electionId", rec.ID.String(), "error", err.Error())
	}
	if p.cfg.Store != nil {
		if err := p.cfg.Store.SetElection(rec); err != nil {
			log.Warnw("could not store election", "electionId", rec.ID.String(), "error", err.Error())
		}
	}
	if p.cfg.Archive != nil {
		key, err := p.cfg.Archive.PutCommitment(ctx, &types.Commitment{
			ElectionID: rec.ID,
			Root:       tree.Root(),
			Leaves:     tree.Leaves(),
			Wallets:    tree.Wallets(),
		})
		if err != nil {
			log.Warnw("could not archive commitment", "electionId", rec.ID.String(), "error", err.Error())
		} else {
			log.Debugw("commitment archived", "electionId", rec.ID.String(), "key", key)
		}
	}
}

func (p *Provisioner) journal(res *Result, title string, started, finished time.Time) {
	if p.cfg.Store == nil {
		return
	}
	if err := p.cfg.Store.SetRun(res.Run(title, started, finished)); err != nil {
		log.Warnw("could not journal provisioning run", "runId", res.RunID, "error", err.Error())
	}
}
